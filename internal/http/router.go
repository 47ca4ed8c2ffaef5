package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tendant/video-guard/internal/config"
	"github.com/tendant/video-guard/internal/http/features/session"
	"github.com/tendant/video-guard/internal/http/features/video"
	"github.com/tendant/video-guard/internal/http/middleware"
	"github.com/tendant/video-guard/internal/httputil"
	"github.com/tendant/video-guard/pkg/entitlement"
	"github.com/tendant/video-guard/pkg/guard"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger          *slog.Logger
	Guard           *guard.Guard
	Entitlement     entitlement.Checker
	AuthJWTSecret   []byte
	RateLimitConfig config.RateLimitConfig
	SecurityHeaders config.SecurityHeadersConfig
	MaxRequestBody  int64
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders(cfg.SecurityHeaders))
	r.Use(middleware.RequestSizeLimit(cfg.MaxRequestBody))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	rateLimiters := middleware.CreateRateLimiters(cfg.RateLimitConfig, cfg.Logger)

	videoHandler := video.NewHandler(cfg.Logger, cfg.Guard, cfg.Entitlement)
	sessionHandler := session.NewHandler(cfg.Logger, cfg.Guard)

	auth := middleware.Auth(cfg.AuthJWTSecret)
	videoToken := middleware.VideoToken(cfg.Guard)

	// Token issuance: caller identity from the platform token, entitlement
	// checked in the handler before the guard issues.
	r.Group(func(r chi.Router) {
		r.Use(auth)
		r.Use(rateLimiters["issue"])
		r.Post("/v1/videos/{videoID}/token", videoHandler.IssueToken)
	})

	// Playback: gated solely by the video token, which carries identity,
	// session and device binding.
	r.Group(func(r chi.Router) {
		r.Use(videoToken)
		r.Get("/v1/videos/{videoID}/stream", videoHandler.Stream)
	})

	// Session management ("your devices")
	r.Group(func(r chi.Router) {
		r.Use(auth)
		r.Use(rateLimiters["session"])
		r.Get("/v1/video-sessions", sessionHandler.List)
		r.Delete("/v1/video-sessions/{sessionID}", sessionHandler.Terminate)
	})

	return r
}
