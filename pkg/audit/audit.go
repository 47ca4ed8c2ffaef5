package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Risk classifies how security-relevant an event is. High-risk events
// (device mismatch) feed downstream alerting; the Guard only reports,
// consequences are decided elsewhere.
type Risk string

const (
	RiskInfo   Risk = "info"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// Event actions
const (
	ActionTokenIssued       = "video_token_issued"
	ActionInvalidToken      = "video_token_invalid"
	ActionDeviceMismatch    = "device_mismatch"
	ActionSessionTerminated = "video_session_terminated"
	ActionSessionEvicted    = "video_session_evicted"
)

// Event is one security-relevant occurrence in the video access layer.
type Event struct {
	ID        uuid.UUID
	UserID    string
	SessionID string
	VideoID   string
	Action    string
	Risk      Risk
	IP        string
	Detail    string
	CreatedAt time.Time
}

// Recorder receives audit events. Record is fire-and-forget: failures must
// not affect the caller.
type Recorder interface {
	Record(ctx context.Context, e Event)
}

// Repository persists audit events.
type Repository interface {
	Create(ctx context.Context, e *Event) error
}

// Logger implements Recorder over a repository with a structured log
// fallback. Persistence failures are logged, never returned.
type Logger struct {
	repo Repository
	log  *slog.Logger
}

// NewLogger creates a Recorder. repo may be nil; events are then only logged.
func NewLogger(repo Repository, log *slog.Logger) *Logger {
	if log == nil {
		log = slog.Default()
	}
	return &Logger{repo: repo, log: log}
}

// Record writes one audit event, best-effort.
func (l *Logger) Record(ctx context.Context, e Event) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	l.log.Info("audit event",
		"action", e.Action,
		"risk", string(e.Risk),
		"user_id", e.UserID,
		"session_id", e.SessionID,
		"video_id", e.VideoID,
		"ip", e.IP,
	)

	if l.repo == nil {
		return
	}
	if err := l.repo.Create(ctx, &e); err != nil {
		l.log.Error("failed to persist audit event", "action", e.Action, "error", err)
	}
}

// Nop is a Recorder that discards events.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(context.Context, Event) {}
