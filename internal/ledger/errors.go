package ledger

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Failure kinds. Match with errors.Is.
var (
	ErrInvalidRequest       = errors.New("invalid request")
	ErrAccountUnavailable   = errors.New("account unavailable")
	ErrRecipientUnavailable = errors.New("recipient unavailable")
	ErrLimitExceeded        = errors.New("daily limit exceeded")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrBusy                 = errors.New("ledger busy, retry later")
	ErrInternal             = errors.New("internal ledger error")
)

// Error is the failure returned by ExecuteTransfer. Kind is one of the Err* values above.
// Headroom is set for ErrLimitExceeded and Shortfall for ErrInsufficientFunds.
type Error struct {
	Kind      error
	Message   string
	Headroom  decimal.Decimal
	Shortfall decimal.Decimal
	cause     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Message
}

func (e *Error) Unwrap() []error {
	if e.cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.cause}
}

// Retryable reports whether the same intent may succeed if submitted again unchanged.
func (e *Error) Retryable() bool {
	return e.Kind == ErrBusy
}

// AsError extracts the ledger error from err.
func AsError(err error) (*Error, bool) {
	var le *Error
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}

func invalid(msg string) *Error {
	return &Error{Kind: ErrInvalidRequest, Message: msg}
}

func unavailable(msg string) *Error {
	return &Error{Kind: ErrAccountUnavailable, Message: msg}
}

func recipientUnavailable(msg string) *Error {
	return &Error{Kind: ErrRecipientUnavailable, Message: msg}
}
