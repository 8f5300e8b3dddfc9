package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/eaglebank/ledger/internal/repository"
	"github.com/eaglebank/ledger/shared/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionWriteRepository appends ledger entries. Entries are never updated or deleted.
type TransactionWriteRepository struct{}

func NewTransactionWriteRepository() *TransactionWriteRepository {
	return &TransactionWriteRepository{}
}

func (r *TransactionWriteRepository) Append(ctx context.Context, tx repository.Tx, t *models.Transaction) error {
	stx, err := sqlTx(tx)
	if err != nil {
		return err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	query := `
		INSERT INTO transactions (id, from_account_id, to_account_id, amount, currency, type,
			description, counterparty, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = stx.ExecContext(ctx, query,
		t.ID, t.FromAccountID, t.ToAccountID, t.Amount, t.Currency, t.Kind,
		nullString(t.Description), nullString(t.Counterparty), t.Status, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", classify(err))
	}
	return nil
}

func (r *TransactionWriteRepository) SumCompletedDebits(ctx context.Context, tx repository.Tx, accountID string, from, to time.Time) (decimal.Decimal, error) {
	stx, err := sqlTx(tx)
	if err != nil {
		return decimal.Zero, err
	}
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE from_account_id = $1 AND status = 'completed'
			AND created_at >= $2 AND created_at < $3
	`
	var total decimal.Decimal
	if err := stx.QueryRowContext(ctx, query, accountID, from, to).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum daily debits: %w", classify(err))
	}
	return total, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}
