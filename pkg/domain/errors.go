package domain

import "errors"

// Video token errors
var (
	ErrMissingVideoToken   = errors.New("no video token presented")
	ErrInvalidVideoToken   = errors.New("video token invalid, malformed or expired")
	ErrInvalidVideoSession = errors.New("no active session for video token")
	ErrDeviceMismatch      = errors.New("device fingerprint mismatch - possible token theft")
	ErrSessionNotFound     = errors.New("video session not found")
)

// Entitlement errors
var (
	ErrEnrollmentRequired = errors.New("no active enrollment for batch")
	ErrEnrollmentExpired  = errors.New("enrollment expired")
)

// ErrorCode is the stable machine-readable code surfaced to clients.
// All Guard failures cross the HTTP boundary as one of these.
type ErrorCode string

const (
	CodeMissingVideoToken   ErrorCode = "MISSING_VIDEO_TOKEN"
	CodeInvalidVideoToken   ErrorCode = "INVALID_VIDEO_TOKEN"
	CodeInvalidVideoSession ErrorCode = "INVALID_VIDEO_SESSION"
	CodeDeviceMismatch      ErrorCode = "DEVICE_MISMATCH"
	CodeSessionNotFound     ErrorCode = "SESSION_NOT_FOUND"
	CodeEnrollmentRequired  ErrorCode = "ENROLLMENT_REQUIRED"
	CodeInternal            ErrorCode = "INTERNAL_ERROR"
)

// CodeForError maps a Guard error to its client-facing code.
// Unknown errors map to CodeInternal so infrastructure detail never leaks.
func CodeForError(err error) ErrorCode {
	switch {
	case errors.Is(err, ErrMissingVideoToken):
		return CodeMissingVideoToken
	case errors.Is(err, ErrInvalidVideoToken):
		return CodeInvalidVideoToken
	case errors.Is(err, ErrInvalidVideoSession):
		return CodeInvalidVideoSession
	case errors.Is(err, ErrDeviceMismatch):
		return CodeDeviceMismatch
	case errors.Is(err, ErrSessionNotFound):
		return CodeSessionNotFound
	case errors.Is(err, ErrEnrollmentRequired), errors.Is(err, ErrEnrollmentExpired):
		return CodeEnrollmentRequired
	default:
		return CodeInternal
	}
}
