package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/tendant/video-guard/pkg/guard"
)

func newTestGuard(t *testing.T) *guard.Guard {
	t.Helper()
	g, err := guard.New(guard.Config{
		Secret: []byte("test-guard-secret-0123456789abcdef"),
		Issuer: "video-guard-test",
	}, guard.NewMemStore(), nil)
	if err != nil {
		t.Fatalf("guard.New failed: %v", err)
	}
	return g
}

func issueForRequest(t *testing.T, g *guard.Guard, r *http.Request) string {
	t.Helper()
	issued, err := g.IssueToken(context.Background(), uuid.New(), "video42", "batch7", guard.ContextFromRequest(r))
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	return issued.Token
}

func playerRequest(ip string) *http.Request {
	req := httptest.NewRequest("GET", "/v1/videos/video42/stream", nil)
	req.RemoteAddr = ip + ":12345"
	req.Header.Set("User-Agent", "UA-X")
	req.Header.Set("Accept-Language", "en-US")
	return req
}

func TestVideoToken_Success(t *testing.T) {
	g := newTestGuard(t)
	token := issueForRequest(t, g, playerRequest("10.0.0.1"))

	var sawAccess bool
	handler := VideoToken(g)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		access, ok := GetVideoAccess(r.Context())
		if !ok {
			t.Error("video access missing from context")
			return
		}
		if access.VideoID != "video42" {
			t.Errorf("VideoID = %q, want %q", access.VideoID, "video42")
		}
		sawAccess = true
		w.WriteHeader(http.StatusOK)
	}))

	req := playerRequest("10.0.0.1")
	req.Header.Set(VideoTokenHeader, token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !sawAccess {
		t.Error("downstream handler was not invoked")
	}
}

func TestVideoToken_Rejections(t *testing.T) {
	g := newTestGuard(t)
	token := issueForRequest(t, g, playerRequest("10.0.0.1"))

	tests := []struct {
		name       string
		setupReq   func() *http.Request
		wantStatus int
		wantCode   string
	}{
		{
			name: "missing token",
			setupReq: func() *http.Request {
				return playerRequest("10.0.0.1")
			},
			wantStatus: http.StatusUnauthorized,
			wantCode:   "MISSING_VIDEO_TOKEN",
		},
		{
			name: "malformed token",
			setupReq: func() *http.Request {
				req := playerRequest("10.0.0.1")
				req.Header.Set(VideoTokenHeader, "garbage")
				return req
			},
			wantStatus: http.StatusUnauthorized,
			wantCode:   "INVALID_VIDEO_TOKEN",
		},
		{
			name: "different device",
			setupReq: func() *http.Request {
				req := playerRequest("10.0.0.2")
				req.Header.Set(VideoTokenHeader, token)
				return req
			},
			wantStatus: http.StatusForbidden,
			wantCode:   "DEVICE_MISMATCH",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var downstream bool
			handler := VideoToken(g)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				downstream = true
			}))

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, tt.setupReq())

			if downstream {
				t.Error("downstream handler should not be invoked")
			}
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var body struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Error.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Error.Code, tt.wantCode)
			}
		})
	}
}

func TestVideoToken_TerminatedSessionRejected(t *testing.T) {
	g := newTestGuard(t)
	userID := uuid.New()
	issued, err := g.IssueToken(context.Background(), userID, "video42", "batch7", guard.ContextFromRequest(playerRequest("10.0.0.1")))
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	if err := g.TerminateSession(context.Background(), issued.SessionID, userID); err != nil {
		t.Fatalf("TerminateSession failed: %v", err)
	}

	handler := VideoToken(g)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("downstream handler should not be invoked")
	}))

	req := playerRequest("10.0.0.1")
	req.Header.Set(VideoTokenHeader, issued.Token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}
