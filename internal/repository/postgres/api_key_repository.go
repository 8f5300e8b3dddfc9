package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/eaglebank/ledger/internal/repository"
	"github.com/eaglebank/ledger/shared/models"
	"github.com/eaglebank/ledger/shared/utils"
	"github.com/lib/pq"
)

// APIKeyRepository resolves partner keys. Keys are issued elsewhere; this side only reads.
type APIKeyRepository struct {
	db *sql.DB
}

func NewAPIKeyRepository(db *sql.DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

func (r *APIKeyRepository) ResolveAPIKey(ctx context.Context, rawKey string) (*models.APIKey, error) {
	query := `
		SELECT id, user_id, permissions, is_active, expires_at
		FROM api_keys
		WHERE key_hash = $1
	`
	var key models.APIKey
	var permissions pq.StringArray
	var expiresAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, utils.HashAPIKey(rawKey)).Scan(
		&key.ID, &key.UserID, &permissions, &key.IsActive, &expiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrAPIKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get api key: %w", err)
	}
	key.Permissions = permissions
	if expiresAt.Valid {
		key.ExpiresAt = &expiresAt.Time
	}
	return &key, nil
}
