package domain

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of a video session.
type SessionStatus string

const (
	SessionActive     SessionStatus = "active"
	SessionTerminated SessionStatus = "terminated"
)

// VideoSession represents one issued, device-bound video access token.
// The fingerprint is fixed at issuance and never updated; expiry is fixed
// at issuance and never extended by access.
type VideoSession struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	VideoID           string
	BatchID           string
	DeviceFingerprint string
	IssuedHour        int64
	Status            SessionStatus
	CreatedAt         time.Time
	LastAccessAt      time.Time
	ExpiresAt         time.Time
}

// IsActive reports whether the session can still be used for playback.
// Expiry is checked lazily; there is no background reaper.
func (s *VideoSession) IsActive(now time.Time) bool {
	return s.Status == SessionActive && now.Before(s.ExpiresAt)
}

// VideoAccess is the verified-access context attached to a request after
// the video token middleware accepts it.
type VideoAccess struct {
	UserID    uuid.UUID
	SessionID uuid.UUID
	VideoID   string
	BatchID   string
	Watermark WatermarkPayload
}

// WatermarkPayload is opaque data handed to the player for on-screen
// rendering. It identifies the viewer and session, not the video.
type WatermarkPayload struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	IssuedAt  int64  `json:"issued_at"`
}

// IssuedToken is the result of a successful token issuance.
type IssuedToken struct {
	Token     string    `json:"token"`
	SessionID uuid.UUID `json:"session_id"`
	ExpiresIn int       `json:"expires_in"`
	ExpiresAt time.Time `json:"expires_at"`
}
