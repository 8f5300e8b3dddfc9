// Package postgres implements the account and ledger stores on PostgreSQL.
//
// Row locks are SELECT ... FOR UPDATE inside a transaction whose lock waits are
// bounded with SET LOCAL lock_timeout.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/eaglebank/ledger/internal/repository"
	"github.com/lib/pq"
)

// UnitOfWork opens database transactions for the ledger engine.
type UnitOfWork struct {
	db          *sql.DB
	lockTimeout time.Duration
}

func NewUnitOfWork(db *sql.DB, lockTimeout time.Duration) *UnitOfWork {
	return &UnitOfWork{db: db, lockTimeout: lockTimeout}
}

type pgTx struct {
	tx   *sql.Tx
	done bool
}

func (u *UnitOfWork) Begin(ctx context.Context) (repository.Tx, error) {
	tx, err := u.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", classify(err))
	}
	if u.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", u.lockTimeout.Milliseconds())
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("failed to set lock timeout: %w", classify(err))
		}
	}
	return &pgTx{tx: tx}, nil
}

func (t *pgTx) Commit() error {
	if t.done {
		return repository.ErrTxDone
	}
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", classify(err))
	}
	return nil
}

func (t *pgTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("failed to roll back transaction: %w", err)
	}
	return nil
}

// sqlTx unwraps a unit of work opened by this package.
func sqlTx(tx repository.Tx) (*sql.Tx, error) {
	t, ok := tx.(*pgTx)
	if !ok {
		return nil, repository.ErrForeignTx
	}
	if t.done {
		return nil, repository.ErrTxDone
	}
	return t.tx, nil
}

// classify maps lock and constraint failures onto the store's sentinel errors.
func classify(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case "55P03", "40P01", "40001", "57014":
		return fmt.Errorf("%w: %s", repository.ErrLockTimeout, pqErr.Message)
	case "23514":
		return fmt.Errorf("%w: %s", repository.ErrBalanceConstraint, pqErr.Message)
	}
	return err
}
