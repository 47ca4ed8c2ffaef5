package audit

import (
	"context"
	"database/sql"
)

// PostgresRepository persists audit events to the video_audit_events table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new audit repository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts one audit event.
func (r *PostgresRepository) Create(ctx context.Context, e *Event) error {
	query := `
		INSERT INTO video_audit_events (id, user_id, session_id, video_id, action, risk, ip, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.UserID, e.SessionID, e.VideoID,
		e.Action, string(e.Risk), e.IP, e.Detail, e.CreatedAt,
	)
	return err
}
