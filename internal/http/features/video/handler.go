package video

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tendant/video-guard/internal/http/middleware"
	"github.com/tendant/video-guard/internal/httputil"
	"github.com/tendant/video-guard/pkg/domain"
	"github.com/tendant/video-guard/pkg/entitlement"
	"github.com/tendant/video-guard/pkg/guard"
)

// Handler handles video token issuance and the protected stream endpoint.
type Handler struct {
	logger      *slog.Logger
	guard       *guard.Guard
	entitlement entitlement.Checker
}

// NewHandler creates a new video handler.
func NewHandler(logger *slog.Logger, g *guard.Guard, checker entitlement.Checker) *Handler {
	return &Handler{
		logger:      logger,
		guard:       g,
		entitlement: checker,
	}
}

// IssueTokenRequest is the issuance request body.
type IssueTokenRequest struct {
	BatchID string `json:"batch_id"`
}

// IssueTokenResponse is the issuance response.
type IssueTokenResponse struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	ExpiresIn int    `json:"expires_in"`
}

// IssueToken issues a device-bound video token.
// POST /v1/videos/{videoID}/token
//
// Entitlement is checked here, before the guard is invoked; the guard
// trusts that this handler only passes enrolled users.
func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	videoID := chi.URLParam(r, "videoID")
	if videoID == "" {
		httputil.Error(w, http.StatusBadRequest, "video id is required")
		return
	}

	var req IssueTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.BatchID == "" {
		httputil.Error(w, http.StatusBadRequest, "batch_id is required")
		return
	}

	if err := h.entitlement.CheckEnrollment(r.Context(), userID, req.BatchID); err != nil {
		if errors.Is(err, domain.ErrEnrollmentRequired) || errors.Is(err, domain.ErrEnrollmentExpired) {
			httputil.GuardError(w, err)
			return
		}
		h.logger.Error("enrollment lookup failed", "user_id", userID, "batch_id", req.BatchID, "error", err)
		httputil.ErrorCode(w, http.StatusInternalServerError, domain.CodeInternal, "internal error")
		return
	}

	issued, err := h.guard.IssueToken(r.Context(), userID, videoID, req.BatchID, guard.ContextFromRequest(r))
	if err != nil {
		h.logger.Error("token issuance failed", "user_id", userID, "video_id", videoID, "error", err)
		httputil.ErrorCode(w, http.StatusInternalServerError, domain.CodeInternal, "internal error")
		return
	}

	httputil.JSON(w, http.StatusOK, IssueTokenResponse{
		Token:     issued.Token,
		SessionID: issued.SessionID.String(),
		ExpiresIn: issued.ExpiresIn,
	})
}

// StreamResponse is the playback descriptor returned to verified clients.
type StreamResponse struct {
	VideoID   string                  `json:"video_id"`
	BatchID   string                  `json:"batch_id"`
	StreamURL string                  `json:"stream_url"`
	Watermark domain.WatermarkPayload `json:"watermark"`
}

// Stream serves the playback descriptor for a verified session.
// GET /v1/videos/{videoID}/stream, behind the video token middleware.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	access, ok := middleware.GetVideoAccess(r.Context())
	if !ok {
		httputil.ErrorCode(w, http.StatusUnauthorized, domain.CodeMissingVideoToken, "no verified video access")
		return
	}

	// Tokens are scoped to a single video.
	videoID := chi.URLParam(r, "videoID")
	if videoID != access.VideoID {
		httputil.ErrorCode(w, http.StatusForbidden, domain.CodeInvalidVideoSession, "token was not issued for this video")
		return
	}

	httputil.JSON(w, http.StatusOK, StreamResponse{
		VideoID:   access.VideoID,
		BatchID:   access.BatchID,
		StreamURL: fmt.Sprintf("/media/%s/manifest.m3u8", access.VideoID),
		Watermark: access.Watermark,
	})
}
