package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/tendant/video-guard/pkg/domain"
)

// JSON writes v as a JSON response with the given status.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes a plain error message response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// codedError is the structured {code, message} error body the guard
// endpoints return.
type codedError struct {
	Code    domain.ErrorCode `json:"code"`
	Message string           `json:"message"`
}

// ErrorCode writes a structured error response carrying a stable error code.
func ErrorCode(w http.ResponseWriter, status int, code domain.ErrorCode, message string) {
	JSON(w, status, map[string]codedError{"error": {Code: code, Message: message}})
}

// GuardError converts a guard failure into its HTTP response. Infrastructure
// errors surface as a generic 500; internal detail never reaches the client.
func GuardError(w http.ResponseWriter, err error) {
	code := domain.CodeForError(err)
	switch code {
	case domain.CodeMissingVideoToken, domain.CodeInvalidVideoToken, domain.CodeInvalidVideoSession:
		ErrorCode(w, http.StatusUnauthorized, code, err.Error())
	case domain.CodeDeviceMismatch, domain.CodeEnrollmentRequired:
		ErrorCode(w, http.StatusForbidden, code, err.Error())
	case domain.CodeSessionNotFound:
		ErrorCode(w, http.StatusNotFound, code, err.Error())
	default:
		ErrorCode(w, http.StatusInternalServerError, domain.CodeInternal, "internal error")
	}
}
