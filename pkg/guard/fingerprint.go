package guard

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
)

// RequestContext carries the request-identifying signals the fingerprint is
// derived from. It is an explicit value type so the derivation has no hidden
// dependency on a framework request object.
type RequestContext struct {
	UserAgent      string
	AcceptLanguage string
	IP             string
}

// ContextFromRequest extracts a RequestContext from an HTTP request.
func ContextFromRequest(r *http.Request) RequestContext {
	return RequestContext{
		UserAgent:      r.UserAgent(),
		AcceptLanguage: r.Header.Get("Accept-Language"),
		IP:             clientIP(r),
	}
}

// Fingerprint derives the device fingerprint for a request context at a
// given epoch hour. The digest is deterministic: verification recomputes it
// with the issuedHour stored in the token, not the current hour, so a token
// minted in hour H still verifies in hour H+1 from the same device.
func Fingerprint(salt []byte, ctx RequestContext, issuedHour int64) string {
	data := fmt.Sprintf("%s|%s|%s|%d", ctx.UserAgent, ctx.AcceptLanguage, ctx.IP, issuedHour)
	h := sha256.New()
	h.Write(salt)
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

// EpochHour truncates a Unix timestamp in seconds to its epoch hour.
func EpochHour(unixSeconds int64) int64 {
	return unixSeconds / 3600
}

// clientIP extracts the client IP address from the request.
// Checks X-Forwarded-For and X-Real-IP headers before falling back to RemoteAddr.
func clientIP(r *http.Request) string {
	// X-Forwarded-For may contain multiple IPs; the first is the client
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		ips := strings.Split(forwarded, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	// RemoteAddr format is "IP:port", so we need to strip the port
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}

	return addr
}
