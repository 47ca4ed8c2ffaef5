package session

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tendant/video-guard/internal/http/middleware"
	"github.com/tendant/video-guard/internal/httputil"
	"github.com/tendant/video-guard/pkg/domain"
	"github.com/tendant/video-guard/pkg/guard"
)

// Handler handles the session listing and termination endpoints.
type Handler struct {
	logger *slog.Logger
	guard  *guard.Guard
}

// NewHandler creates a new session handler.
func NewHandler(logger *slog.Logger, g *guard.Guard) *Handler {
	return &Handler{logger: logger, guard: g}
}

// SessionView is the client-facing shape of an active session. The device
// fingerprint is not exposed.
type SessionView struct {
	SessionID    string    `json:"session_id"`
	VideoID      string    `json:"video_id"`
	BatchID      string    `json:"batch_id"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessAt time.Time `json:"last_access_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// ListResponse is the session listing response.
type ListResponse struct {
	Sessions    []SessionView `json:"sessions"`
	MaxSessions int           `json:"max_sessions"`
}

// List returns the caller's active sessions and the configured maximum.
// GET /v1/video-sessions
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	sessions, err := h.guard.ActiveSessions(r.Context(), userID)
	if err != nil {
		h.logger.Error("session listing failed", "user_id", userID, "error", err)
		httputil.ErrorCode(w, http.StatusInternalServerError, domain.CodeInternal, "internal error")
		return
	}

	views := make([]SessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, SessionView{
			SessionID:    s.ID.String(),
			VideoID:      s.VideoID,
			BatchID:      s.BatchID,
			CreatedAt:    s.CreatedAt,
			LastAccessAt: s.LastAccessAt,
			ExpiresAt:    s.ExpiresAt,
		})
	}

	httputil.JSON(w, http.StatusOK, ListResponse{
		Sessions:    views,
		MaxSessions: h.guard.MaxSessions(),
	})
}

// Terminate ends one of the caller's sessions.
// DELETE /v1/video-sessions/{sessionID}
//
// Idempotent: terminating an absent or already-terminated session of your
// own succeeds. Sessions owned by other users report not found.
func (h *Handler) Terminate(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid session id")
		return
	}

	if err := h.guard.TerminateSession(r.Context(), sessionID, userID); err != nil {
		if code := domain.CodeForError(err); code == domain.CodeInternal {
			h.logger.Error("session termination failed", "user_id", userID, "session_id", sessionID, "error", err)
		}
		httputil.GuardError(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]bool{"success": true})
}
