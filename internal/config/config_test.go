package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("AUTH_JWT_SECRET", "test-auth-secret")
	t.Setenv("VIDEO_GUARD_SECRET", "test-guard-secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ServerPort != 8080 {
		t.Errorf("ServerPort = %d, want 8080", cfg.ServerPort)
	}
	if cfg.DBName != "video_guard" {
		t.Errorf("DBName = %q, want video_guard", cfg.DBName)
	}
	if cfg.VideoTokenTTL != 4*time.Hour {
		t.Errorf("VideoTokenTTL = %v, want 4h", cfg.VideoTokenTTL)
	}
	if cfg.MaxConcurrentSessions != 3 {
		t.Errorf("MaxConcurrentSessions = %d, want 3", cfg.MaxConcurrentSessions)
	}
	if !cfg.RateLimit.Enabled {
		t.Error("RateLimit.Enabled = false, want true")
	}
	if !cfg.SecurityHeaders.Enabled {
		t.Error("SecurityHeaders.Enabled = false, want true")
	}
}

func TestLoad_CustomValues(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("VIDEO_TOKEN_TTL", "30m")
	t.Setenv("MAX_CONCURRENT_SESSIONS", "5")
	t.Setenv("RATE_LIMIT_ENABLED", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ServerPort != 9090 {
		t.Errorf("ServerPort = %d, want 9090", cfg.ServerPort)
	}
	if cfg.VideoTokenTTL != 30*time.Minute {
		t.Errorf("VideoTokenTTL = %v, want 30m", cfg.VideoTokenTTL)
	}
	if cfg.MaxConcurrentSessions != 5 {
		t.Errorf("MaxConcurrentSessions = %d, want 5", cfg.MaxConcurrentSessions)
	}
	if cfg.RateLimit.Enabled {
		t.Error("RateLimit.Enabled = true, want false")
	}
}

func TestLoad_MissingSecrets(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "")
	t.Setenv("VIDEO_GUARD_SECRET", "")

	if _, err := Load(); err == nil {
		t.Error("expected error when AUTH_JWT_SECRET is unset")
	}

	t.Setenv("AUTH_JWT_SECRET", "test-auth-secret")
	if _, err := Load(); err == nil {
		t.Error("expected error when VIDEO_GUARD_SECRET is unset")
	}
}

func TestLoad_InvalidSessionCap(t *testing.T) {
	setRequired(t)
	t.Setenv("MAX_CONCURRENT_SESSIONS", "0")

	if _, err := Load(); err == nil {
		t.Error("expected error when MAX_CONCURRENT_SESSIONS is below 1")
	}
}
