// Package notify publishes committed ledger operations for downstream consumers.
package notify

import (
	"context"

	"github.com/eaglebank/ledger/internal/ledger"
	"github.com/eaglebank/ledger/shared/events"
)

type Publisher interface {
	Publish(ctx context.Context, stream, eventType string, data any) error
}

// StreamDispatcher turns engine notifications into transaction.completed events.
type StreamDispatcher struct {
	publisher Publisher
	stream    string
}

func NewStreamDispatcher(publisher Publisher) *StreamDispatcher {
	return &StreamDispatcher{publisher: publisher, stream: events.TransactionEventsStream}
}

func (d *StreamDispatcher) TransactionCommitted(ctx context.Context, n ledger.Notification) error {
	return d.publisher.Publish(ctx, d.stream, events.TransactionCompleted, events.TransactionCompletedEvent{
		TransactionID:           n.TransactionID,
		CommissionTransactionID: n.CommissionTransactionID,
		Type:                    n.Kind,
		Amount:                  n.Amount,
		Commission:              n.Commission,
		Currency:                n.Currency,
		FromAccountID:           n.FromAccountID,
		FromAccountNumber:       n.FromAccountNumber,
		ToAccountID:             n.ToAccountID,
		ToAccountNumber:         n.ToAccountNumber,
		SourceUserID:            n.SourceOwnerID,
		DestinationUserID:       n.DestinationOwnerID,
		Description:             n.Description,
		Counterparty:            n.Counterparty,
		APIKeyID:                n.APIKeyID,
		CreatedAt:               n.CreatedAt,
	})
}
