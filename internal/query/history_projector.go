package query

import (
	"context"
	"fmt"

	"github.com/eaglebank/ledger/shared/events"
	"github.com/eaglebank/ledger/shared/logger"
	"github.com/eaglebank/ledger/shared/models"
)

// ProjectorGroup is the consumer group the history projector reads transaction.events with.
const ProjectorGroup = "ledger-history-projector"

type ViewCacher interface {
	CacheTransactionView(ctx context.Context, view *models.TransactionView)
}

// HistoryProjector keeps the transaction view cache warm from completed-transaction events.
type HistoryProjector struct {
	cache ViewCacher
}

func NewHistoryProjector(cache ViewCacher) *HistoryProjector {
	return &HistoryProjector{cache: cache}
}

// Handle satisfies events.Handler. Unknown event types are acknowledged and skipped.
func (p *HistoryProjector) Handle(ctx context.Context, event events.Event) error {
	if event.Type != events.TransactionCompleted {
		return nil
	}
	var payload events.TransactionCompletedEvent
	if err := event.Decode(&payload); err != nil {
		return fmt.Errorf("failed to decode %s: %w", event.Type, err)
	}

	for _, view := range projectViews(payload) {
		p.cache.CacheTransactionView(ctx, view)
	}

	log := logger.FromContext(ctx)
	log.Debug().Str("transaction_id", payload.TransactionID).Msg("history view projected")
	return nil
}

// projectViews builds the main entry view and, for external transfers, the commission entry.
func projectViews(e events.TransactionCompletedEvent) []*models.TransactionView {
	views := []*models.TransactionView{{
		ID:                e.TransactionID,
		FromAccountID:     e.FromAccountID,
		FromAccountNumber: e.FromAccountNumber,
		ToAccountID:       e.ToAccountID,
		ToAccountNumber:   e.ToAccountNumber,
		Amount:            e.Amount,
		Currency:          e.Currency,
		Type:              e.Type,
		Description:       e.Description,
		Counterparty:      e.Counterparty,
		Status:            models.StatusCompleted,
		CreatedAt:         e.CreatedAt,
	}}
	if e.CommissionTransactionID != "" {
		views = append(views, &models.TransactionView{
			ID:                e.CommissionTransactionID,
			FromAccountID:     e.FromAccountID,
			FromAccountNumber: e.FromAccountNumber,
			Amount:            e.Commission,
			Currency:          e.Currency,
			Type:              models.KindCommission,
			Description:       "Commission for external transfer " + e.TransactionID,
			Status:            models.StatusCompleted,
			CreatedAt:         e.CreatedAt,
		})
	}
	return views
}
