package guard

import (
	"net/http/httptest"
	"testing"
)

var testSalt = []byte("0123456789abcdef0123456789abcdef")

func TestFingerprint_Deterministic(t *testing.T) {
	ctx := RequestContext{
		UserAgent:      "UA-X",
		AcceptLanguage: "en-US",
		IP:             "10.0.0.1",
	}

	first := Fingerprint(testSalt, ctx, 430000)
	second := Fingerprint(testSalt, ctx, 430000)

	if first != second {
		t.Errorf("Fingerprint not deterministic: %s != %s", first, second)
	}
	if len(first) != 64 {
		t.Errorf("Fingerprint length = %d, want 64 hex chars", len(first))
	}
}

func TestFingerprint_Sensitivity(t *testing.T) {
	base := RequestContext{
		UserAgent:      "UA-X",
		AcceptLanguage: "en-US",
		IP:             "10.0.0.1",
	}
	baseFP := Fingerprint(testSalt, base, 430000)

	tests := []struct {
		name string
		ctx  RequestContext
		hour int64
	}{
		{
			name: "different IP",
			ctx:  RequestContext{UserAgent: "UA-X", AcceptLanguage: "en-US", IP: "10.0.0.2"},
			hour: 430000,
		},
		{
			name: "different User-Agent",
			ctx:  RequestContext{UserAgent: "UA-Y", AcceptLanguage: "en-US", IP: "10.0.0.1"},
			hour: 430000,
		},
		{
			name: "different Accept-Language",
			ctx:  RequestContext{UserAgent: "UA-X", AcceptLanguage: "fr-FR", IP: "10.0.0.1"},
			hour: 430000,
		},
		{
			name: "different hour",
			ctx:  base,
			hour: 430001,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if fp := Fingerprint(testSalt, tt.ctx, tt.hour); fp == baseFP {
				t.Errorf("Fingerprint unchanged for %s", tt.name)
			}
		})
	}
}

func TestFingerprint_SaltDependent(t *testing.T) {
	ctx := RequestContext{UserAgent: "UA-X", AcceptLanguage: "en-US", IP: "10.0.0.1"}

	a := Fingerprint([]byte("salt-a"), ctx, 430000)
	b := Fingerprint([]byte("salt-b"), ctx, 430000)
	if a == b {
		t.Error("Fingerprint should depend on the salt")
	}
}

func TestEpochHour(t *testing.T) {
	tests := []struct {
		name string
		unix int64
		want int64
	}{
		{name: "exact hour", unix: 430000 * 3600, want: 430000},
		{name: "mid hour", unix: 430000*3600 + 1800, want: 430000},
		{name: "last second of hour", unix: 430001*3600 - 1, want: 430000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EpochHour(tt.unix); got != tt.want {
				t.Errorf("EpochHour(%d) = %d, want %d", tt.unix, got, tt.want)
			}
		})
	}
}

func TestContextFromRequest(t *testing.T) {
	tests := []struct {
		name     string
		remote   string
		headers  map[string]string
		wantIP   string
		wantUA   string
		wantLang string
	}{
		{
			name:   "remote addr with port",
			remote: "192.168.1.1:12345",
			headers: map[string]string{
				"User-Agent":      "Mozilla/5.0",
				"Accept-Language": "en-US,en;q=0.9",
			},
			wantIP:   "192.168.1.1",
			wantUA:   "Mozilla/5.0",
			wantLang: "en-US,en;q=0.9",
		},
		{
			name:   "x-forwarded-for takes precedence",
			remote: "10.0.0.1:443",
			headers: map[string]string{
				"X-Forwarded-For": "203.0.113.7, 70.41.3.18",
				"User-Agent":      "Mozilla/5.0",
			},
			wantIP: "203.0.113.7",
			wantUA: "Mozilla/5.0",
		},
		{
			name:   "x-real-ip fallback",
			remote: "10.0.0.1:443",
			headers: map[string]string{
				"X-Real-IP": "198.51.100.4",
			},
			wantIP: "198.51.100.4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			ctx := ContextFromRequest(req)
			if ctx.IP != tt.wantIP {
				t.Errorf("IP = %q, want %q", ctx.IP, tt.wantIP)
			}
			if ctx.UserAgent != tt.wantUA {
				t.Errorf("UserAgent = %q, want %q", ctx.UserAgent, tt.wantUA)
			}
			if ctx.AcceptLanguage != tt.wantLang {
				t.Errorf("AcceptLanguage = %q, want %q", ctx.AcceptLanguage, tt.wantLang)
			}
		})
	}
}
