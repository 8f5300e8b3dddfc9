package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/eaglebank/ledger/internal/repository"
	"github.com/eaglebank/ledger/shared/models"
	sharedredis "github.com/eaglebank/ledger/shared/redis"
	goredis "github.com/redis/go-redis/v9"
)

const transactionViewKeyPrefix = "transaction:view:"

const viewSelect = `
	SELECT t.id, t.from_account_id, fa.account_number, t.to_account_id, ta.account_number,
		t.amount, t.currency, t.type, t.description, t.counterparty, t.status, t.created_at
	FROM transactions t
	LEFT JOIN accounts fa ON fa.id = t.from_account_id
	LEFT JOIN accounts ta ON ta.id = t.to_account_id
`

// TransactionReadRepository serves transaction history.
// Single views are read from Redis first and fall back to PostgreSQL; lists always hit PostgreSQL.
type TransactionReadRepository struct {
	db    *sql.DB
	cache *sharedredis.ViewCache[models.TransactionView]
}

func NewTransactionReadRepository(db *sql.DB, redisClient *goredis.Client) *TransactionReadRepository {
	return &TransactionReadRepository{
		db:    db,
		cache: sharedredis.NewViewCache[models.TransactionView](redisClient, 0),
	}
}

func scanView(row rowScanner) (*models.TransactionView, error) {
	var view models.TransactionView
	var fromID, fromNumber, toID, toNumber, description, counterparty sql.NullString
	err := row.Scan(
		&view.ID, &fromID, &fromNumber, &toID, &toNumber,
		&view.Amount, &view.Currency, &view.Type, &description, &counterparty,
		&view.Status, &view.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	view.FromAccountID = fromID.String
	view.FromAccountNumber = fromNumber.String
	view.ToAccountID = toID.String
	view.ToAccountNumber = toNumber.String
	view.Description = description.String
	view.Counterparty = counterparty.String
	return &view, nil
}

// GetByID returns a TransactionView by attempting Redis first, then PostgreSQL.
func (r *TransactionReadRepository) GetByID(ctx context.Context, id string) (*models.TransactionView, error) {
	if view, ok := r.cache.Get(ctx, transactionViewKeyPrefix+id); ok {
		return view, nil
	}

	view, err := scanView(r.db.QueryRowContext(ctx, viewSelect+`WHERE t.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	// Warm the cache
	r.CacheTransactionView(ctx, view)
	return view, nil
}

// ListByAccount returns up to limit entries touching accountID, newest first.
func (r *TransactionReadRepository) ListByAccount(ctx context.Context, accountID string, limit int) ([]models.TransactionView, error) {
	query := viewSelect + `
		WHERE t.from_account_id = $1 OR t.to_account_id = $1
		ORDER BY t.created_at DESC, t.id DESC
		LIMIT $2
	`
	return r.list(ctx, query, accountID, limit)
}

// ListByOwner returns up to limit entries touching any account of ownerID, newest first.
func (r *TransactionReadRepository) ListByOwner(ctx context.Context, ownerID string, limit int) ([]models.TransactionView, error) {
	query := viewSelect + `
		WHERE fa.owner_id = $1 OR ta.owner_id = $1
		ORDER BY t.created_at DESC, t.id DESC
		LIMIT $2
	`
	return r.list(ctx, query, ownerID, limit)
}

func (r *TransactionReadRepository) list(ctx context.Context, query, key string, limit int) ([]models.TransactionView, error) {
	rows, err := r.db.QueryContext(ctx, query, key, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	views := []models.TransactionView{}
	for rows.Next() {
		view, err := scanView(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		views = append(views, *view)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return views, nil
}

// CacheTransactionView stores the read model for a transaction in Redis.
// Called by the history projector for every completed transaction event.
func (r *TransactionReadRepository) CacheTransactionView(ctx context.Context, view *models.TransactionView) {
	r.cache.Set(ctx, transactionViewKeyPrefix+view.ID, view)
}
