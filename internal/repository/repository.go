// Package repository defines the account and ledger stores the engine works against.
//
// Every mutating call takes an explicit Tx obtained from a UnitOfWork. Stores never
// commit on their own; the caller decides commit or rollback.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/eaglebank/ledger/shared/models"
	"github.com/shopspring/decimal"
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrAPIKeyNotFound      = models.ErrAPIKeyNotFound
	ErrLockTimeout         = errors.New("lock wait timed out")
	ErrNotLocked           = errors.New("account is not locked by this unit of work")
	ErrTxDone              = errors.New("unit of work already finished")
	ErrBalanceConstraint   = errors.New("balance would become negative")
	ErrForeignTx           = errors.New("unit of work belongs to another store")
)

// Tx is an open unit of work. Rollback after Commit is a no-op.
type Tx interface {
	Commit() error
	Rollback() error
}

type UnitOfWork interface {
	Begin(ctx context.Context) (Tx, error)
}

type AccountStore interface {
	// LockForUpdate takes the exclusive row lock on id for the lifetime of tx and
	// returns the row as seen after the lock was granted.
	LockForUpdate(ctx context.Context, tx Tx, id string) (*models.Account, error)
	Get(ctx context.Context, id string) (*models.Account, error)
	GetByNumber(ctx context.Context, tx Tx, accountNumber string) (*models.Account, error)
	// ApplyDelta adds delta (negative for debits) to the balance of a locked account.
	ApplyDelta(ctx context.Context, tx Tx, id string, delta decimal.Decimal) error
	IsOwnedBy(ctx context.Context, id, ownerID string) (bool, error)
}

type TransactionStore interface {
	Append(ctx context.Context, tx Tx, t *models.Transaction) error
	// SumCompletedDebits totals completed entries debiting accountID with from <= created_at < to.
	SumCompletedDebits(ctx context.Context, tx Tx, accountID string, from, to time.Time) (decimal.Decimal, error)
}

// HistoryReader serves completed ledger entries as views, newest first.
type HistoryReader interface {
	GetByID(ctx context.Context, id string) (*models.TransactionView, error)
	ListByAccount(ctx context.Context, accountID string, limit int) ([]models.TransactionView, error)
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]models.TransactionView, error)
}

// AuditLog records administrative actions.
type AuditLog interface {
	RecordAdminAction(ctx context.Context, adminID, action, targetAccountID, details string) error
}

// APIKeyResolver looks up a partner key by its raw value.
type APIKeyResolver interface {
	ResolveAPIKey(ctx context.Context, rawKey string) (*models.APIKey, error)
}
