package ledger

import (
	"strings"
	"time"

	"github.com/eaglebank/ledger/shared/models"
	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
	RoleAPIKey   Role = "api_key"
)

// Caller is the authenticated identity behind an intent. For RoleAPIKey, UserID is
// the holder the key is bound to and APIKeyID names the key.
type Caller struct {
	UserID   string
	Role     Role
	APIKeyID string
}

// ExternalParty is a counterparty outside the bank: another bank's account or a
// service provider.
type ExternalParty struct {
	BankName      string
	AccountNumber string
	Name          string
}

func (p *ExternalParty) String() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{p.Name, p.BankName, p.AccountNumber} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " / ")
}

// Destination names where the money goes. Internal kinds use AccountID or
// AccountNumber; external transfers and service payments use External.
type Destination struct {
	AccountID     string
	AccountNumber string
	External      *ExternalParty
}

func (d Destination) internal() bool {
	return d.AccountID != "" || d.AccountNumber != ""
}

type Intent struct {
	Kind            string
	SourceAccountID string
	Destination     Destination
	Amount          decimal.Decimal
	Description     string
	Caller          Caller
	// PIN is checked against the source account's PIN hash when both are present.
	PIN string
}

type Result struct {
	TransactionID           string          `json:"transactionId"`
	CommissionTransactionID string          `json:"commissionTransactionId,omitempty"`
	Kind                    string          `json:"type"`
	Amount                  decimal.Decimal `json:"amount"`
	Commission              decimal.Decimal `json:"commission"`
	TotalDebited            decimal.Decimal `json:"totalDebited"`
	Currency                string          `json:"currency"`
	Status                  string          `json:"status"`
	FromAccountID           string          `json:"fromAccountId,omitempty"`
	FromAccountNumber       string          `json:"fromAccountNumber,omitempty"`
	ToAccountID             string          `json:"toAccountId,omitempty"`
	ToAccountNumber         string          `json:"toAccountNumber,omitempty"`
	CreatedAt               time.Time       `json:"createdTimestamp"`
}

// rule describes what each kind needs from an intent.
type rule struct {
	roles        []Role
	source       bool // debits a source account
	internalDest bool // credits an account of this bank
	external     bool // requires an external counterparty
	ownsSource   bool // source must belong to the caller
	ownsDest     bool // destination must belong to the caller
	commission   bool
}

var rules = map[string]rule{
	models.KindTransfer:         {roles: []Role{RoleCustomer, RoleAdmin}, source: true, internalDest: true, ownsSource: true},
	models.KindSelfTransfer:     {roles: []Role{RoleCustomer, RoleAdmin}, source: true, internalDest: true, ownsSource: true, ownsDest: true},
	models.KindExternalTransfer: {roles: []Role{RoleCustomer, RoleAdmin}, source: true, external: true, ownsSource: true, commission: true},
	models.KindServicePayment:   {roles: []Role{RoleCustomer, RoleAdmin}, source: true, ownsSource: true},
	models.KindAPITransfer:      {roles: []Role{RoleAPIKey}, source: true, internalDest: true, ownsSource: true},
	models.KindAdminDeposit:     {roles: []Role{RoleAdmin}, internalDest: true},
}

func (r rule) permits(role Role) bool {
	for _, allowed := range r.roles {
		if allowed == role {
			return true
		}
	}
	return false
}

// checkShape validates an intent before any store access.
func checkShape(in Intent) (rule, *Error) {
	r, ok := rules[in.Kind]
	if !ok {
		return rule{}, invalid("unknown transaction kind " + in.Kind)
	}
	if in.Caller.UserID == "" {
		return r, invalid("caller identity is required")
	}
	if !r.permits(in.Caller.Role) {
		return r, invalid(string(in.Caller.Role) + " may not perform " + in.Kind)
	}
	if !in.Amount.IsPositive() {
		return r, invalid("amount must be greater than zero")
	}
	if r.source && in.SourceAccountID == "" {
		return r, invalid("source account is required")
	}
	if !r.source && in.SourceAccountID != "" {
		return r, invalid(in.Kind + " takes no source account")
	}
	if r.internalDest && !in.Destination.internal() {
		return r, invalid("destination account is required")
	}
	if !r.internalDest && in.Destination.internal() {
		return r, invalid(in.Kind + " takes no destination account")
	}
	if r.external && (in.Destination.External == nil || strings.TrimSpace(in.Destination.External.AccountNumber) == "") {
		return r, invalid("external account number is required")
	}
	if r.internalDest && in.Destination.External != nil {
		return r, invalid(in.Kind + " takes no external counterparty")
	}
	if in.SourceAccountID != "" && in.SourceAccountID == in.Destination.AccountID {
		return r, invalid("source and destination must differ")
	}
	return r, nil
}
