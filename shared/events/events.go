package events

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	TransactionCompleted = "transaction.completed"
)

// Stream names
const (
	TransactionEventsStream = "transaction.events"
)

// Base event structure
type Event struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Decode unmarshals the event payload into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Data, v)
}

// TransactionCompletedEvent is published once per committed ledger operation.
// Account and user fields are empty for sides outside the bank.
type TransactionCompletedEvent struct {
	TransactionID           string          `json:"transactionId"`
	CommissionTransactionID string          `json:"commissionTransactionId,omitempty"`
	Type                    string          `json:"type"`
	Amount                  decimal.Decimal `json:"amount"`
	Commission              decimal.Decimal `json:"commission"`
	Currency                string          `json:"currency"`
	FromAccountID           string          `json:"fromAccountId,omitempty"`
	FromAccountNumber       string          `json:"fromAccountNumber,omitempty"`
	ToAccountID             string          `json:"toAccountId,omitempty"`
	ToAccountNumber         string          `json:"toAccountNumber,omitempty"`
	SourceUserID            string          `json:"sourceUserId,omitempty"`
	DestinationUserID       string          `json:"destinationUserId,omitempty"`
	Description             string          `json:"description,omitempty"`
	Counterparty            string          `json:"counterparty,omitempty"`
	APIKeyID                string          `json:"apiKeyId,omitempty"`
	CreatedAt               time.Time       `json:"createdTimestamp"`
}
