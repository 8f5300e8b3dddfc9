package cqrs

import "github.com/shopspring/decimal"

// TransferCommand moves money between two accounts of the bank. The recipient is
// addressed by ToAccountID or ToAccountNumber.
type TransferCommand struct {
	UserID          string
	Role            string
	FromAccountID   string
	ToAccountID     string
	ToAccountNumber string
	Amount          decimal.Decimal
	Description     string
	PIN             string
}

// SelfTransferCommand moves money between two accounts owned by the caller.
type SelfTransferCommand struct {
	UserID        string
	Role          string
	FromAccountID string
	ToAccountID   string
	Amount        decimal.Decimal
	Description   string
	PIN           string
}

// ExternalPaymentCommand sends money to another bank. A commission is charged on top.
type ExternalPaymentCommand struct {
	UserID        string
	Role          string
	FromAccountID string
	BankName      string
	AccountNumber string
	RecipientName string
	Amount        decimal.Decimal
	Description   string
	PIN           string
}

// ServicePaymentCommand pays a service provider, for example a utility bill.
type ServicePaymentCommand struct {
	UserID          string
	Role            string
	FromAccountID   string
	ServiceType     string
	ServiceProvider string
	AccountNumber   string
	Amount          decimal.Decimal
	Description     string
	PIN             string
}

type AdminDepositCommand struct {
	AdminID     string
	AccountID   string
	Amount      decimal.Decimal
	Description string
}

// APITransferCommand is a transfer requested by a partner through an API key.
// UserID is the key holder.
type APITransferCommand struct {
	UserID          string
	APIKeyID        string
	FromAccountID   string
	ToAccountID     string
	ToAccountNumber string
	Amount          decimal.Decimal
	Description     string
}

// SetDailyLimitCommand replaces the daily debit limit of an account owned by
// UserID. An invalid DailyLimit removes the limit.
type SetDailyLimitCommand struct {
	UserID     string
	AccountID  string
	DailyLimit decimal.NullDecimal
}

type FreezeAccountCommand struct {
	UserID    string
	AccountID string
	Freeze    bool
}

// ChangePINCommand sets a new PIN. OldPIN must match when a PIN is already set.
type ChangePINCommand struct {
	UserID    string
	AccountID string
	OldPIN    string
	NewPIN    string
}
