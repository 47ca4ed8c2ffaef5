// Package vguard provides the video session guard as an embeddable library,
// for platforms that already run their own HTTP stack and only need the
// token issuance, verification and session management routes.
//
// Setup:
//
//  1. Run migrations from migrations/ folder using your preferred tool
//  2. Create a VideoGuard instance and mount routes
//
// Basic usage:
//
//	db, _ := sql.Open("postgres", "postgres://localhost/myapp?sslmode=disable")
//
//	vg, err := vguard.New(vguard.Config{
//	    DB:            db,
//	    GuardSecret:   "your-secret-key-at-least-32-chars",
//	    AuthJWTSecret: "the-platform-auth-secret",
//	})
//	if err != nil {
//	    log.Fatal(err) // Will fail if migrations haven't been run
//	}
//
//	r := chi.NewRouter()
//	r.Mount("/video", vg.Router())
//	http.ListenAndServe(":8080", r)
package vguard

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/tendant/video-guard/internal/http/features/session"
	"github.com/tendant/video-guard/internal/http/features/video"
	"github.com/tendant/video-guard/internal/http/middleware"
	"github.com/tendant/video-guard/internal/httputil"
	"github.com/tendant/video-guard/pkg/audit"
	"github.com/tendant/video-guard/pkg/domain"
	"github.com/tendant/video-guard/pkg/entitlement"
	"github.com/tendant/video-guard/pkg/guard"
	"github.com/tendant/video-guard/pkg/repository"
)

// Config holds the configuration for the video guard library.
type Config struct {
	// DB is the database connection (required).
	DB *sql.DB

	// GuardSecret is the master secret the token signing key and
	// fingerprint salt are derived from (required, min 32 chars).
	GuardSecret string

	// AuthJWTSecret verifies the platform's own access tokens on the
	// issuance and session-management routes (required).
	AuthJWTSecret string

	// Issuer is the issuer claim in video tokens (default: "video-guard").
	Issuer string

	// TokenTTL is the lifetime of video tokens (default: 4 hours).
	TokenTTL time.Duration

	// MaxSessions is the concurrent-session cap per user (default: 3).
	MaxSessions int

	// Logger is the structured logger (default: slog JSON to stdout).
	Logger *slog.Logger
}

// VideoGuard is the main library instance.
type VideoGuard struct {
	config       Config
	db           *sql.DB
	sessionsRepo *repository.SessionsRepository
	enrollments  *entitlement.Repository
	auditor      *audit.Logger
	guard        *guard.Guard
}

// New creates a new VideoGuard instance with the given configuration.
// Returns an error if required database tables don't exist.
// Run migrations first - see migrations/ folder for SQL files.
func New(cfg Config) (*VideoGuard, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	// Validate schema exists
	if err := validateSchema(cfg.DB); err != nil {
		return nil, err
	}

	sessionsRepo := repository.NewSessionsRepository(cfg.DB)
	enrollments := entitlement.NewRepository(cfg.DB)
	auditor := audit.NewLogger(audit.NewPostgresRepository(cfg.DB), cfg.Logger)

	g, err := guard.New(guard.Config{
		Secret:      []byte(cfg.GuardSecret),
		Issuer:      cfg.Issuer,
		TokenTTL:    cfg.TokenTTL,
		MaxSessions: cfg.MaxSessions,
	}, sessionsRepo, auditor)
	if err != nil {
		return nil, err
	}

	return &VideoGuard{
		config:       cfg,
		db:           cfg.DB,
		sessionsRepo: sessionsRepo,
		enrollments:  enrollments,
		auditor:      auditor,
		guard:        g,
	}, nil
}

// Router returns a chi router with all video guard routes.
// Mount this on your main router:
//
//	r := chi.NewRouter()
//	r.Mount("/video", vg.Router())
//
// Routes:
//
//	POST   /videos/{videoID}/token    - Issue a device-bound token (protected)
//	GET    /videos/{videoID}/stream   - Playback descriptor (video token)
//	GET    /sessions                  - List active sessions (protected)
//	DELETE /sessions/{sessionID}      - Terminate a session (protected)
func (v *VideoGuard) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)

	videoHandler := video.NewHandler(v.config.Logger, v.guard, v.enrollments)
	sessionHandler := session.NewHandler(v.config.Logger, v.guard)

	auth := middleware.Auth([]byte(v.config.AuthJWTSecret))

	r.Group(func(r chi.Router) {
		r.Use(auth)
		r.Post("/videos/{videoID}/token", videoHandler.IssueToken)
		r.Get("/sessions", sessionHandler.List)
		r.Delete("/sessions/{sessionID}", sessionHandler.Terminate)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.VideoToken(v.guard))
		r.Get("/videos/{videoID}/stream", videoHandler.Stream)
	})

	return r
}

// Guard returns the underlying guard for advanced usage.
func (v *VideoGuard) Guard() *guard.Guard {
	return v.guard
}

// VideoTokenMiddleware returns the verification middleware. Use this to put
// your own video-serving routes behind the guard:
//
//	r.Group(func(r chi.Router) {
//	    r.Use(vg.VideoTokenMiddleware())
//	    r.Get("/media/{videoID}/manifest", handler)
//	})
func (v *VideoGuard) VideoTokenMiddleware() func(http.Handler) http.Handler {
	return middleware.VideoToken(v.guard)
}

// GetVideoAccess extracts the verified video access from a request.
// Use after VideoTokenMiddleware:
//
//	access, ok := vguard.GetVideoAccess(r)
func GetVideoAccess(r *http.Request) (*domain.VideoAccess, bool) {
	return middleware.GetVideoAccess(r.Context())
}

// GetVideoAccessFromContext extracts the verified video access from a context.
func GetVideoAccessFromContext(ctx context.Context) (*domain.VideoAccess, bool) {
	return middleware.GetVideoAccess(ctx)
}

// TerminateSession ends one of a user's sessions programmatically, for
// host-platform flows like account deactivation.
func (v *VideoGuard) TerminateSession(ctx context.Context, sessionID, userID uuid.UUID) error {
	return v.guard.TerminateSession(ctx, sessionID, userID)
}

// HealthHandler returns a simple health check handler.
func (v *VideoGuard) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// Handler returns an http.Handler for mounting with http.StripPrefix.
// This is useful when using standard library ServeMux:
//
//	mux := http.NewServeMux()
//	mux.Handle("/video/", http.StripPrefix("/video", vg.Handler()))
func (v *VideoGuard) Handler() http.Handler {
	return v.Router()
}

func validateConfig(cfg *Config) error {
	if cfg.DB == nil {
		return errors.New("vguard: DB is required")
	}
	if cfg.GuardSecret == "" {
		return errors.New("vguard: GuardSecret is required")
	}
	if len(cfg.GuardSecret) < 32 {
		return errors.New("vguard: GuardSecret must be at least 32 characters")
	}
	if cfg.AuthJWTSecret == "" {
		return errors.New("vguard: AuthJWTSecret is required")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Issuer == "" {
		cfg.Issuer = "video-guard"
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = guard.DefaultTokenTTL
	}
	if cfg.MaxSessions == 0 {
		cfg.MaxSessions = guard.DefaultMaxSessions
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
}

// validateSchema checks that required database tables exist.
func validateSchema(db *sql.DB) error {
	requiredTables := []string{"video_sessions", "enrollments", "video_audit_events"}

	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name = $1
	`

	for _, table := range requiredTables {
		var name string
		err := db.QueryRow(query, table).Scan(&name)
		if err == sql.ErrNoRows {
			return fmt.Errorf("vguard: missing table '%s' - run migrations first (see migrations/ folder)", table)
		}
		if err != nil {
			return fmt.Errorf("vguard: failed to check schema: %w", err)
		}
	}

	return nil
}
