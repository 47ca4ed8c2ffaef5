package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/video-guard/pkg/domain"
)

const sessionColumns = `id, user_id, video_id, batch_id, device_fingerprint, issued_hour, status, created_at, last_access_at, expires_at`

// SessionsRepository handles video session persistence. It implements
// guard.SessionStore.
type SessionsRepository struct {
	db *sql.DB
}

// NewSessionsRepository creates a new sessions repository.
func NewSessionsRepository(db *sql.DB) *SessionsRepository {
	return &SessionsRepository{db: db}
}

// Create persists a new session, evicting the user's oldest active sessions
// when the cap is reached. The cap check and the insert run in one
// transaction under a per-user advisory lock, so two concurrent issuance
// calls for the same user cannot both pass the check and exceed the cap.
func (r *SessionsRepository) Create(ctx context.Context, session *domain.VideoSession, maxActive int) ([]*domain.VideoSession, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Serializes issuance per user for the duration of the transaction.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, session.UserID.String()); err != nil {
		return nil, err
	}

	query := `
		SELECT ` + sessionColumns + `
		FROM video_sessions
		WHERE user_id = $1 AND status = $2 AND expires_at > $3
		ORDER BY created_at ASC
	`
	rows, err := tx.QueryContext(ctx, query, session.UserID, domain.SessionActive, session.CreatedAt)
	if err != nil {
		return nil, err
	}
	active, err := scanSessions(rows)
	if err != nil {
		return nil, err
	}

	var evicted []*domain.VideoSession
	if excess := len(active) - maxActive + 1; excess > 0 {
		evicted = active[:excess]
		for _, ev := range evicted {
			if _, err := tx.ExecContext(ctx, `
				UPDATE video_sessions SET status = $2 WHERE id = $1
			`, ev.ID, domain.SessionTerminated); err != nil {
				return nil, err
			}
			ev.Status = domain.SessionTerminated
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO video_sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		session.ID, session.UserID, session.VideoID, session.BatchID,
		session.DeviceFingerprint, session.IssuedHour, session.Status,
		session.CreatedAt, session.LastAccessAt, session.ExpiresAt,
	); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return evicted, nil
}

// Get retrieves a session by ID regardless of status.
func (r *SessionsRepository) Get(ctx context.Context, id uuid.UUID) (*domain.VideoSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM video_sessions
		WHERE id = $1
	`
	session := &domain.VideoSession{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&session.ID, &session.UserID, &session.VideoID, &session.BatchID,
		&session.DeviceFingerprint, &session.IssuedHour, &session.Status,
		&session.CreatedAt, &session.LastAccessAt, &session.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

// ActiveByUser retrieves all active, non-expired sessions for a user,
// newest first.
func (r *SessionsRepository) ActiveByUser(ctx context.Context, userID uuid.UUID) ([]*domain.VideoSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM video_sessions
		WHERE user_id = $1 AND status = $2 AND expires_at > NOW()
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID, domain.SessionActive)
	if err != nil {
		return nil, err
	}
	return scanSessions(rows)
}

// Terminate marks a session terminated. Absent or already-terminated
// sessions are not an error.
func (r *SessionsRepository) Terminate(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE video_sessions
		SET status = $2
		WHERE id = $1 AND status = $3
	`
	_, err := r.db.ExecContext(ctx, query, id, domain.SessionTerminated, domain.SessionActive)
	return err
}

// Touch updates the last_access_at timestamp.
func (r *SessionsRepository) Touch(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE video_sessions
		SET last_access_at = NOW()
		WHERE id = $1 AND status = $2
	`
	_, err := r.db.ExecContext(ctx, query, id, domain.SessionActive)
	return err
}

// DeleteExpired deletes sessions whose expiry passed more than olderThan
// ago. Operator tooling; verification relies on lazy expiry, not cleanup.
func (r *SessionsRepository) DeleteExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `
		DELETE FROM video_sessions
		WHERE expires_at < $1
	`
	cutoff := time.Now().Add(-olderThan)
	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func scanSessions(rows *sql.Rows) ([]*domain.VideoSession, error) {
	defer rows.Close()

	var sessions []*domain.VideoSession
	for rows.Next() {
		session := &domain.VideoSession{}
		err := rows.Scan(
			&session.ID, &session.UserID, &session.VideoID, &session.BatchID,
			&session.DeviceFingerprint, &session.IssuedHour, &session.Status,
			&session.CreatedAt, &session.LastAccessAt, &session.ExpiresAt,
		)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}
