package guard

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"

	"github.com/tendant/video-guard/pkg/audit"
	"github.com/tendant/video-guard/pkg/domain"
)

const (
	// Default token lifetime
	DefaultTokenTTL = 4 * time.Hour

	// DefaultMaxSessions is the concurrent-session cap per user.
	DefaultMaxSessions = 3

	keyLen = 32
)

// SessionStore persists video sessions. The Postgres repository implements
// it; tests substitute an in-memory fake.
type SessionStore interface {
	// Create persists a new session. When the user already holds maxActive
	// or more active sessions, the oldest are terminated in the same
	// transaction before the new session is written; the evicted sessions
	// are returned. The write is atomic: on error no session exists.
	Create(ctx context.Context, session *domain.VideoSession, maxActive int) (evicted []*domain.VideoSession, err error)

	// Get returns a session by ID regardless of status, or
	// domain.ErrSessionNotFound.
	Get(ctx context.Context, id uuid.UUID) (*domain.VideoSession, error)

	// ActiveByUser returns the user's active, non-expired sessions,
	// newest first.
	ActiveByUser(ctx context.Context, userID uuid.UUID) ([]*domain.VideoSession, error)

	// Terminate marks a session terminated. Terminating an absent or
	// already-terminated session is not an error.
	Terminate(ctx context.Context, id uuid.UUID) error

	// Touch updates the session's last access timestamp.
	Touch(ctx context.Context, id uuid.UUID) error
}

// Config holds Guard configuration. Secret is the master secret; the token
// signing key and fingerprint salt are both derived from it via HKDF, so
// rotating it invalidates all outstanding tokens at once.
type Config struct {
	Secret      []byte
	Issuer      string
	TokenTTL    time.Duration
	MaxSessions int

	// Now is the clock; defaults to time.Now. Injectable for tests.
	Now func() time.Time
}

// Guard issues device-bound video access tokens and verifies that playback
// requests originate from the device and session the token was minted for.
// Entitlement is the caller's responsibility: Guard trusts that enrollment
// was checked before IssueToken is invoked.
type Guard struct {
	cfg        Config
	signingKey []byte
	fpSalt     []byte
	sessions   SessionStore
	auditor    audit.Recorder
}

// New creates a Guard. auditor may be nil; audit then becomes a no-op.
func New(cfg Config, sessions SessionStore, auditor audit.Recorder) (*Guard, error) {
	if len(cfg.Secret) == 0 {
		return nil, fmt.Errorf("guard: secret is required")
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	if cfg.MaxSessions == 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if auditor == nil {
		auditor = audit.Nop{}
	}

	signingKey, err := deriveKey(cfg.Secret, "video-guard token signing")
	if err != nil {
		return nil, err
	}
	fpSalt, err := deriveKey(cfg.Secret, "video-guard fingerprint salt")
	if err != nil {
		return nil, err
	}

	return &Guard{
		cfg:        cfg,
		signingKey: signingKey,
		fpSalt:     fpSalt,
		sessions:   sessions,
		auditor:    auditor,
	}, nil
}

// TokenTTL returns the configured token lifetime.
func (g *Guard) TokenTTL() time.Duration {
	return g.cfg.TokenTTL
}

// MaxSessions returns the concurrent-session cap.
func (g *Guard) MaxSessions() int {
	return g.cfg.MaxSessions
}

// VideoTokenClaims is the payload of an issued video token.
type VideoTokenClaims struct {
	jwt.RegisteredClaims
	VideoID           string `json:"video_id"`
	BatchID           string `json:"batch_id"`
	DeviceFingerprint string `json:"device_fp"`
	IssuedHour        int64  `json:"issued_hour"`
}

// IssueToken mints a signed, device-bound token for a video and records the
// backing session. When the user is at the session cap the oldest session is
// evicted (terminated) and issuance proceeds. The store write is atomic: if
// it fails, no token is returned.
//
// Two calls from the same request context within the same hour yield tokens
// with identical fingerprints but distinct session IDs.
func (g *Guard) IssueToken(ctx context.Context, userID uuid.UUID, videoID, batchID string, rctx RequestContext) (*domain.IssuedToken, error) {
	now := g.cfg.Now()
	issuedHour := EpochHour(now.Unix())
	fingerprint := Fingerprint(g.fpSalt, rctx, issuedHour)
	sessionID := uuid.New()
	expiresAt := now.Add(g.cfg.TokenTTL)

	claims := VideoTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    g.cfg.Issuer,
			ID:        sessionID.String(),
		},
		VideoID:           videoID,
		BatchID:           batchID,
		DeviceFingerprint: fingerprint,
		IssuedHour:        issuedHour,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.signingKey)
	if err != nil {
		return nil, err
	}

	session := &domain.VideoSession{
		ID:                sessionID,
		UserID:            userID,
		VideoID:           videoID,
		BatchID:           batchID,
		DeviceFingerprint: fingerprint,
		IssuedHour:        issuedHour,
		Status:            domain.SessionActive,
		CreatedAt:         now,
		LastAccessAt:      now,
		ExpiresAt:         expiresAt,
	}

	evicted, err := g.sessions.Create(ctx, session, g.cfg.MaxSessions)
	if err != nil {
		return nil, err
	}

	for _, ev := range evicted {
		g.auditor.Record(ctx, audit.Event{
			UserID:    userID.String(),
			SessionID: ev.ID.String(),
			VideoID:   ev.VideoID,
			Action:    audit.ActionSessionEvicted,
			Risk:      audit.RiskInfo,
			IP:        rctx.IP,
			Detail:    "concurrent session limit reached, oldest session evicted",
		})
	}
	g.auditor.Record(ctx, audit.Event{
		UserID:    userID.String(),
		SessionID: sessionID.String(),
		VideoID:   videoID,
		Action:    audit.ActionTokenIssued,
		Risk:      audit.RiskInfo,
		IP:        rctx.IP,
	})

	return &domain.IssuedToken{
		Token:     token,
		SessionID: sessionID,
		ExpiresIn: int(g.cfg.TokenTTL.Seconds()),
		ExpiresAt: expiresAt,
	}, nil
}

// VerifyToken checks a presented token against its backing session and the
// current request context. The fingerprint is recomputed with the issuedHour
// stored in the token, so an unchanged device still verifies after the hour
// rolls over. Store failures reject the request; verification never fails
// open.
func (g *Guard) VerifyToken(ctx context.Context, tokenString string, rctx RequestContext) (*domain.VideoAccess, error) {
	if tokenString == "" {
		return nil, domain.ErrMissingVideoToken
	}

	claims, err := g.parseToken(tokenString)
	if err != nil {
		g.auditor.Record(ctx, audit.Event{
			Action: audit.ActionInvalidToken,
			Risk:   audit.RiskMedium,
			IP:     rctx.IP,
			Detail: "signature, format or expiry check failed",
		})
		return nil, domain.ErrInvalidVideoToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, domain.ErrInvalidVideoToken
	}
	sessionID, err := uuid.Parse(claims.ID)
	if err != nil {
		return nil, domain.ErrInvalidVideoToken
	}

	session, err := g.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, domain.ErrInvalidVideoSession
		}
		return nil, err
	}
	now := g.cfg.Now()
	if !session.IsActive(now) {
		return nil, domain.ErrInvalidVideoSession
	}

	// Recompute with the stored hour: the fingerprint is a commitment made
	// at issuance, not a moving target.
	fingerprint := Fingerprint(g.fpSalt, rctx, claims.IssuedHour)
	if fingerprint != claims.DeviceFingerprint || fingerprint != session.DeviceFingerprint {
		g.auditor.Record(ctx, audit.Event{
			UserID:    claims.Subject,
			SessionID: claims.ID,
			VideoID:   claims.VideoID,
			Action:    audit.ActionDeviceMismatch,
			Risk:      audit.RiskHigh,
			IP:        rctx.IP,
			Detail:    "fingerprint recomputation disagrees with bound value",
		})
		return nil, domain.ErrDeviceMismatch
	}

	// Best-effort liveness hint; must not block or fail the response.
	go func(id uuid.UUID) {
		touchCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = g.sessions.Touch(touchCtx, id)
	}(sessionID)

	return &domain.VideoAccess{
		UserID:    userID,
		SessionID: sessionID,
		VideoID:   claims.VideoID,
		BatchID:   claims.BatchID,
		Watermark: domain.WatermarkPayload{
			UserID:    claims.Subject,
			SessionID: claims.ID,
			IssuedAt:  claims.IssuedAt.Unix(),
		},
	}, nil
}

// TerminateSession marks the caller's session terminated. Idempotent:
// terminating an absent or already-terminated session succeeds. A session
// owned by a different user is reported as not found rather than forbidden,
// so session IDs cannot be probed for existence.
func (g *Guard) TerminateSession(ctx context.Context, sessionID, userID uuid.UUID) error {
	session, err := g.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil
		}
		return err
	}
	if session.UserID != userID {
		return domain.ErrSessionNotFound
	}
	if session.Status == domain.SessionTerminated {
		return nil
	}

	if err := g.sessions.Terminate(ctx, sessionID); err != nil {
		return err
	}

	g.auditor.Record(ctx, audit.Event{
		UserID:    userID.String(),
		SessionID: sessionID.String(),
		VideoID:   session.VideoID,
		Action:    audit.ActionSessionTerminated,
		Risk:      audit.RiskInfo,
	})
	return nil
}

// ActiveSessions returns the user's active, non-expired sessions, newest
// first. Feeds both the "your devices" view and the issuance cap check.
func (g *Guard) ActiveSessions(ctx context.Context, userID uuid.UUID) ([]*domain.VideoSession, error) {
	return g.sessions.ActiveByUser(ctx, userID)
}

func (g *Guard) parseToken(tokenString string) (*VideoTokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &VideoTokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrInvalidVideoToken
		}
		return g.signingKey, nil
	}, jwt.WithTimeFunc(g.cfg.Now))
	if err != nil {
		return nil, domain.ErrInvalidVideoToken
	}
	claims, ok := token.Claims.(*VideoTokenClaims)
	if !ok || !token.Valid {
		return nil, domain.ErrInvalidVideoToken
	}
	return claims, nil
}

func deriveKey(secret []byte, info string) ([]byte, error) {
	key := make([]byte, keyLen)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("guard: derive key: %w", err)
	}
	return key, nil
}
