package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// AuditRepository writes administrative actions to admin_logs.
type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) RecordAdminAction(ctx context.Context, adminID, action, targetAccountID, details string) error {
	query := `
		INSERT INTO admin_logs (id, admin_id, action, target_account_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`
	_, err := r.db.ExecContext(ctx, query, uuid.NewString(), adminID, action, nullString(targetAccountID), nullString(details))
	if err != nil {
		return fmt.Errorf("failed to record admin action: %w", err)
	}
	return nil
}
