package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Account types
const (
	AccountTypeChecking = "checking"
	AccountTypeCredit   = "credit"
	AccountTypeSavings  = "savings"
)

// Transaction kinds
const (
	KindTransfer         = "transfer"
	KindSelfTransfer     = "self_transfer"
	KindExternalTransfer = "external_transfer"
	KindCommission       = "commission"
	KindServicePayment   = "service_payment"
	KindAdminDeposit     = "admin_deposit"
	KindAPITransfer      = "api_transfer"
)

// Transaction statuses
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

type Account struct {
	ID            string              `json:"id"`
	OwnerID       string              `json:"-"`
	AccountNumber string              `json:"accountNumber"`
	AccountType   string              `json:"accountType"`
	Balance       decimal.Decimal     `json:"balance"`
	Currency      string              `json:"currency"`
	DailyLimit    decimal.NullDecimal `json:"dailyLimit"`
	IsActive      bool                `json:"isActive"`
	IsFrozen      bool                `json:"isFrozen"`
	PINHash       string              `json:"-"`
	CreatedAt     time.Time           `json:"createdTimestamp"`
	UpdatedAt     time.Time           `json:"updatedTimestamp"`
}

// Available reports whether the account may take part in a ledger operation as a debit side.
func (a *Account) Available() bool {
	return a.IsActive && !a.IsFrozen
}

// Transaction is an append-only ledger entry. A nil FromAccountID or ToAccountID
// stands for a counterparty outside the bank.
type Transaction struct {
	ID            string          `json:"id"`
	FromAccountID *string         `json:"fromAccountId"`
	ToAccountID   *string         `json:"toAccountId"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Kind          string          `json:"type"`
	Description   string          `json:"description,omitempty"`
	Counterparty  string          `json:"counterparty,omitempty"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"createdTimestamp"`
}

// IsDebitOf reports whether the entry moved money out of accountID.
func (t *Transaction) IsDebitOf(accountID string) bool {
	return t.FromAccountID != nil && *t.FromAccountID == accountID
}

// KnownKind reports whether kind is one of the ledger transaction kinds.
func KnownKind(kind string) bool {
	switch kind {
	case KindTransfer, KindSelfTransfer, KindExternalTransfer, KindCommission,
		KindServicePayment, KindAdminDeposit, KindAPITransfer:
		return true
	}
	return false
}

var minorUnits = map[string]int32{
	"JPY": 0, "KRW": 0, "VND": 0, "CLP": 0, "ISK": 0,
	"BHD": 3, "KWD": 3, "OMR": 3, "JOD": 3, "TND": 3,
}

// MinorUnits returns the number of fractional digits a currency is booked with.
func MinorUnits(currency string) int32 {
	if n, ok := minorUnits[strings.ToUpper(currency)]; ok {
		return n
	}
	return 2
}

// FitsCurrency reports whether amount is representable in the currency's minor unit.
func FitsCurrency(amount decimal.Decimal, currency string) bool {
	return amount.Equal(amount.Truncate(MinorUnits(currency)))
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// APIKey is a partner credential bound to a holder. Only the SHA-256 of the raw key is stored.
type APIKey struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	Permissions []string   `json:"permissions"`
	IsActive    bool       `json:"isActive"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

// Usable reports whether the key is active and not expired at now.
func (k *APIKey) Usable(now time.Time) bool {
	return k.IsActive && (k.ExpiresAt == nil || now.Before(*k.ExpiresAt))
}

// Allows reports whether the key carries permission.
func (k *APIKey) Allows(permission string) bool {
	for _, p := range k.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}
