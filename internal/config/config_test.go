package config

import (
	"testing"
	"time"
)

func setRequiredSecrets(t *testing.T) {
	t.Helper()
	t.Setenv("QR_SIGNING_SECRET", "test-signing-secret")
	t.Setenv("CREDENTIALS_ENCRYPTION_KEY", "0000000000000000000000000000000000000000000000000000000000000000")
	t.Setenv("JWT_SECRET", "test-jwt-secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredSecrets(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ServerAddr != "0.0.0.0" {
		t.Errorf("ServerAddr = %q, want 0.0.0.0", cfg.ServerAddr)
	}
	if cfg.ServerPort != 8080 {
		t.Errorf("ServerPort = %d, want 8080", cfg.ServerPort)
	}
	if cfg.HasDatabase() {
		t.Error("HasDatabase = true with no DB_HOST")
	}
	if cfg.JWTIssuer != "simple-idm" {
		t.Errorf("JWTIssuer = %q, want simple-idm", cfg.JWTIssuer)
	}
	if cfg.QRSessionTTL != 2*time.Minute {
		t.Errorf("QRSessionTTL = %v, want 2m", cfg.QRSessionTTL)
	}
	if cfg.SweepInterval != time.Minute {
		t.Errorf("SweepInterval = %v, want 1m", cfg.SweepInterval)
	}
	if cfg.TrustTokenTTL != 30*24*time.Hour {
		t.Errorf("TrustTokenTTL = %v, want 720h", cfg.TrustTokenTTL)
	}
	if !cfg.RateLimit.Enabled {
		t.Error("rate limiting disabled by default")
	}
	if cfg.RateLimit.PollRequestsPerWindow != 120 {
		t.Errorf("PollRequestsPerWindow = %d, want 120", cfg.RateLimit.PollRequestsPerWindow)
	}
	if !cfg.SecurityHeaders.Enabled {
		t.Error("security headers disabled by default")
	}
	if cfg.Validation.MaxRequestBodySize != 65536 {
		t.Errorf("MaxRequestBodySize = %d, want 65536", cfg.Validation.MaxRequestBodySize)
	}
	if cfg.CookieSecure {
		t.Error("CookieSecure = true by default")
	}
}

func TestLoad_RequiredSecrets(t *testing.T) {
	tests := []struct {
		name    string
		missing string
	}{
		{"signing secret", "QR_SIGNING_SECRET"},
		{"encryption key", "CREDENTIALS_ENCRYPTION_KEY"},
		{"jwt secret", "JWT_SECRET"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredSecrets(t)
			t.Setenv(tt.missing, "")

			if _, err := Load(); err == nil {
				t.Errorf("Load succeeded without %s", tt.missing)
			}
		})
	}
}

func TestLoad_CustomValues(t *testing.T) {
	setRequiredSecrets(t)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("QR_SESSION_TTL", "90s")
	t.Setenv("TRUST_TOKEN_TTL", "168h")
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	t.Setenv("RATE_LIMIT_CREATE_REQUESTS", "5")
	t.Setenv("COOKIE_SECURE", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ServerPort != 9090 {
		t.Errorf("ServerPort = %d, want 9090", cfg.ServerPort)
	}
	if !cfg.HasDatabase() {
		t.Error("HasDatabase = false with DB_HOST set")
	}
	if cfg.QRSessionTTL != 90*time.Second {
		t.Errorf("QRSessionTTL = %v, want 90s", cfg.QRSessionTTL)
	}
	if cfg.TrustTokenTTL != 168*time.Hour {
		t.Errorf("TrustTokenTTL = %v, want 168h", cfg.TrustTokenTTL)
	}
	if cfg.RateLimit.Enabled {
		t.Error("RateLimit.Enabled = true, want false")
	}
	if cfg.RateLimit.CreateRequestsPerWindow != 5 {
		t.Errorf("CreateRequestsPerWindow = %d, want 5", cfg.RateLimit.CreateRequestsPerWindow)
	}
	if !cfg.CookieSecure {
		t.Error("CookieSecure = false, want true")
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	setRequiredSecrets(t)
	t.Setenv("SERVER_PORT", "not-a-number")
	t.Setenv("QR_SESSION_TTL", "soon")
	t.Setenv("RATE_LIMIT_ENABLED", "maybe")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ServerPort != 8080 {
		t.Errorf("ServerPort = %d, want default 8080", cfg.ServerPort)
	}
	if cfg.QRSessionTTL != 2*time.Minute {
		t.Errorf("QRSessionTTL = %v, want default 2m", cfg.QRSessionTTL)
	}
	if !cfg.RateLimit.Enabled {
		t.Error("RateLimit.Enabled = false, want default true")
	}
}
