package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/eaglebank/ledger/internal/repository"
	"github.com/eaglebank/ledger/shared/models"
	"github.com/eaglebank/ledger/shared/utils"
	"github.com/shopspring/decimal"
)

const accountColumns = `id, owner_id, account_number, account_type, balance, currency,
	daily_limit, is_active, is_frozen, pin_hash, created_at, updated_at`

// AccountWriteRepository handles locked reads and balance mutations for accounts.
// It operates exclusively against the PostgreSQL write store (source of truth).
type AccountWriteRepository struct {
	db *sql.DB
}

func NewAccountWriteRepository(db *sql.DB) *AccountWriteRepository {
	return &AccountWriteRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var account models.Account
	var pinHash sql.NullString
	err := row.Scan(
		&account.ID, &account.OwnerID, &account.AccountNumber, &account.AccountType,
		&account.Balance, &account.Currency, &account.DailyLimit,
		&account.IsActive, &account.IsFrozen, &pinHash,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	account.PINHash = pinHash.String
	return &account, nil
}

func (r *AccountWriteRepository) LockForUpdate(ctx context.Context, tx repository.Tx, id string) (*models.Account, error) {
	stx, err := sqlTx(tx)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`
	account, err := scanAccount(stx.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock account: %w", classify(err))
	}
	return account, nil
}

func (r *AccountWriteRepository) Get(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	account, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// GetByNumber reads an account by display number, inside tx when one is given.
func (r *AccountWriteRepository) GetByNumber(ctx context.Context, tx repository.Tx, accountNumber string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_number = $1`
	var row *sql.Row
	if tx != nil {
		stx, err := sqlTx(tx)
		if err != nil {
			return nil, err
		}
		row = stx.QueryRowContext(ctx, query, accountNumber)
	} else {
		row = r.db.QueryRowContext(ctx, query, accountNumber)
	}
	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", classify(err))
	}
	return account, nil
}

// ApplyDelta adds delta to the balance. The row must already be locked by tx.
func (r *AccountWriteRepository) ApplyDelta(ctx context.Context, tx repository.Tx, id string, delta decimal.Decimal) error {
	stx, err := sqlTx(tx)
	if err != nil {
		return err
	}
	query := `
		UPDATE accounts
		SET balance = balance + $2, updated_at = NOW()
		WHERE id = $1 AND (account_type = 'credit' OR balance + $2 >= 0)
	`
	result, err := stx.ExecContext(ctx, query, id, delta)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", classify(err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("account %s: %w", id, repository.ErrBalanceConstraint)
	}
	return nil
}

func (r *AccountWriteRepository) IsOwnedBy(ctx context.Context, id, ownerID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1 AND owner_id = $2)`
	var owned bool
	if err := r.db.QueryRowContext(ctx, query, id, ownerID).Scan(&owned); err != nil {
		return false, fmt.Errorf("failed to check account ownership: %w", err)
	}
	return owned, nil
}

func (r *AccountWriteRepository) SetFrozen(ctx context.Context, id string, frozen bool) error {
	return r.updateOne(ctx, `UPDATE accounts SET is_frozen = $2, updated_at = NOW() WHERE id = $1`, id, frozen)
}

// SetDailyLimit replaces the daily debit limit. A null limit removes it.
func (r *AccountWriteRepository) SetDailyLimit(ctx context.Context, id string, limit decimal.NullDecimal) error {
	return r.updateOne(ctx, `UPDATE accounts SET daily_limit = $2, updated_at = NOW() WHERE id = $1`, id, limit)
}

func (r *AccountWriteRepository) SetPIN(ctx context.Context, id, pin string) error {
	hash, err := utils.HashPIN(pin)
	if err != nil {
		return err
	}
	return r.updateOne(ctx, `UPDATE accounts SET pin_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
}

func (r *AccountWriteRepository) updateOne(ctx context.Context, query, id string, value any) error {
	result, err := r.db.ExecContext(ctx, query, id, value)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrAccountNotFound
	}
	return nil
}
