package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration. Secrets are loaded once here and
// injected into services at construction; nothing reads the process
// environment after Load returns.
type Config struct {
	// Server
	ServerAddr string
	ServerPort int

	// Database. Leave DB_HOST unset to run on the in-memory session store
	// (single replica only; the secondary challenge needs the database).
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Secrets
	SigningSecret string // HMAC key for session handles and trust tokens
	EncryptionKey string // 64-char hex (32 bytes) for credentials at rest
	JWTSecret     string // shared with the primary identity service
	JWTIssuer     string

	// Protocol
	QRSessionTTL  time.Duration
	SweepInterval time.Duration
	TrustTokenTTL time.Duration

	RateLimit       RateLimitConfig
	SecurityHeaders SecurityHeadersConfig
	Validation      ValidationConfig

	CookieSecure bool
}

// RateLimitConfig holds per-endpoint-class rate limiting configuration.
type RateLimitConfig struct {
	Enabled bool

	CreateRequestsPerWindow int
	CreateWindowMinutes     int

	ExchangeRequestsPerWindow int
	ExchangeWindowMinutes     int

	PollRequestsPerWindow int
	PollWindowMinutes     int

	VerifyRequestsPerWindow int
	VerifyWindowMinutes     int
}

// SecurityHeadersConfig holds security header configuration.
type SecurityHeadersConfig struct {
	Enabled            bool
	CSP                string
	HSTSMaxAge         int
	FrameOptions       string
	ContentTypeOptions string
	XSSProtection      string
	ReferrerPolicy     string
	PermissionsPolicy  string
}

// ValidationConfig holds request validation configuration.
type ValidationConfig struct {
	MaxRequestBodySize int64
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		// Server defaults
		ServerAddr: getEnv("SERVER_ADDR", "0.0.0.0"),
		ServerPort: getEnvInt("SERVER_PORT", 8080),

		// Database (optional)
		DBHost:     getEnv("DB_HOST", ""),
		DBPort:     getEnvInt("DB_PORT", 5432),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "qr_handoff"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		// Secrets
		SigningSecret: getEnv("QR_SIGNING_SECRET", ""),
		EncryptionKey: getEnv("CREDENTIALS_ENCRYPTION_KEY", ""),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		JWTIssuer:     getEnv("JWT_ISSUER", "simple-idm"),

		// Protocol defaults
		QRSessionTTL:  getEnvDuration("QR_SESSION_TTL", 2*time.Minute),
		SweepInterval: getEnvDuration("QR_SWEEP_INTERVAL", time.Minute),
		TrustTokenTTL: getEnvDuration("TRUST_TOKEN_TTL", 30*24*time.Hour),

		RateLimit: RateLimitConfig{
			Enabled:                   getEnvBool("RATE_LIMIT_ENABLED", true),
			CreateRequestsPerWindow:   getEnvInt("RATE_LIMIT_CREATE_REQUESTS", 10),
			CreateWindowMinutes:       getEnvInt("RATE_LIMIT_CREATE_WINDOW_MINUTES", 1),
			ExchangeRequestsPerWindow: getEnvInt("RATE_LIMIT_EXCHANGE_REQUESTS", 20),
			ExchangeWindowMinutes:     getEnvInt("RATE_LIMIT_EXCHANGE_WINDOW_MINUTES", 1),
			PollRequestsPerWindow:     getEnvInt("RATE_LIMIT_POLL_REQUESTS", 120),
			PollWindowMinutes:         getEnvInt("RATE_LIMIT_POLL_WINDOW_MINUTES", 1),
			VerifyRequestsPerWindow:   getEnvInt("RATE_LIMIT_VERIFY_REQUESTS", 10),
			VerifyWindowMinutes:       getEnvInt("RATE_LIMIT_VERIFY_WINDOW_MINUTES", 1),
		},

		SecurityHeaders: SecurityHeadersConfig{
			Enabled:            getEnvBool("SECURITY_HEADERS_ENABLED", true),
			CSP:                getEnv("SECURITY_CSP", "default-src 'none'; frame-ancestors 'none'"),
			HSTSMaxAge:         getEnvInt("SECURITY_HSTS_MAX_AGE", 31536000),
			FrameOptions:       getEnv("SECURITY_FRAME_OPTIONS", "DENY"),
			ContentTypeOptions: getEnv("SECURITY_CONTENT_TYPE_OPTIONS", "nosniff"),
			XSSProtection:      getEnv("SECURITY_XSS_PROTECTION", "1; mode=block"),
			ReferrerPolicy:     getEnv("SECURITY_REFERRER_POLICY", "no-referrer"),
			PermissionsPolicy:  getEnv("SECURITY_PERMISSIONS_POLICY", ""),
		},

		Validation: ValidationConfig{
			MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_SIZE", 65536)),
		},

		CookieSecure: getEnvBool("COOKIE_SECURE", false),
	}

	// Validate required fields
	if cfg.SigningSecret == "" {
		return nil, fmt.Errorf("QR_SIGNING_SECRET is required")
	}
	if cfg.EncryptionKey == "" {
		return nil, fmt.Errorf("CREDENTIALS_ENCRYPTION_KEY is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

// HasDatabase returns true if a Postgres store is configured.
func (c *Config) HasDatabase() bool {
	return c.DBHost != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
