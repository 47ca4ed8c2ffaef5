// Package entitlement answers whether a user may watch videos in a batch.
// It is a read-only collaborator of the video guard: the issuance handler
// checks entitlement first, and the guard itself never re-verifies it.
package entitlement

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/video-guard/pkg/domain"
)

// Checker reports whether a user holds an active enrollment for a batch.
type Checker interface {
	CheckEnrollment(ctx context.Context, userID uuid.UUID, batchID string) error
}

// Repository looks up enrollments in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new entitlement repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CheckEnrollment returns nil when the user has an active, unexpired
// enrollment in the batch, domain.ErrEnrollmentRequired or
// domain.ErrEnrollmentExpired otherwise.
func (r *Repository) CheckEnrollment(ctx context.Context, userID uuid.UUID, batchID string) error {
	query := `
		SELECT valid_until
		FROM enrollments
		WHERE user_id = $1 AND batch_id = $2 AND status = 'active'
	`
	var validUntil sql.NullTime
	err := r.db.QueryRowContext(ctx, query, userID, batchID).Scan(&validUntil)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrEnrollmentRequired
	}
	if err != nil {
		return err
	}
	if validUntil.Valid && validUntil.Time.Before(time.Now()) {
		return domain.ErrEnrollmentExpired
	}
	return nil
}
