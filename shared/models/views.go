package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionView is the read-optimised projection of a ledger entry as seen from one account.
// Account display numbers are denormalised so history reads need no joins.
type TransactionView struct {
	ID                string          `json:"id"`
	FromAccountID     string          `json:"fromAccountId,omitempty"`
	FromAccountNumber string          `json:"fromAccountNumber,omitempty"`
	ToAccountID       string          `json:"toAccountId,omitempty"`
	ToAccountNumber   string          `json:"toAccountNumber,omitempty"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	Type              string          `json:"type"`
	Description       string          `json:"description,omitempty"`
	Counterparty      string          `json:"counterparty,omitempty"`
	Status            string          `json:"status"`
	CreatedAt         time.Time       `json:"createdTimestamp"`
}

// Involves reports whether the view touches accountID on either side.
func (v *TransactionView) Involves(accountID string) bool {
	return v.FromAccountID == accountID || v.ToAccountID == accountID
}
