package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/tendant/qr-handoff/internal/config"
	"github.com/tendant/qr-handoff/internal/httputil"
)

// RateLimitConfig holds rate limiting configuration for a specific endpoint type.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	Logger   *slog.Logger
}

// RateLimit creates an IP-based rate limiter middleware with logging.
// Rejections use the rate_limited code so legitimate clients can back off.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.Requests,
		cfg.Window,
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Logger != nil {
				cfg.Logger.Warn("rate limit exceeded",
					"ip", r.RemoteAddr,
					"path", r.URL.Path,
					"method", r.Method,
				)
			}
			httputil.Error(w, http.StatusTooManyRequests, "rate_limited")
		}),
	)
}

// NoRateLimit returns a no-op middleware when rate limiting is disabled.
func NoRateLimit() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return next
	}
}

// CreateRateLimiters creates rate limiting middleware functions based on configuration.
func CreateRateLimiters(cfg config.RateLimitConfig, logger *slog.Logger) map[string]func(http.Handler) http.Handler {
	if !cfg.Enabled {
		noOp := NoRateLimit()
		return map[string]func(http.Handler) http.Handler{
			"create":   noOp,
			"exchange": noOp,
			"poll":     noOp,
			"verify":   noOp,
		}
	}

	return map[string]func(http.Handler) http.Handler{
		"create": RateLimit(RateLimitConfig{
			Requests: cfg.CreateRequestsPerWindow,
			Window:   time.Duration(cfg.CreateWindowMinutes) * time.Minute,
			Logger:   logger,
		}),
		"exchange": RateLimit(RateLimitConfig{
			Requests: cfg.ExchangeRequestsPerWindow,
			Window:   time.Duration(cfg.ExchangeWindowMinutes) * time.Minute,
			Logger:   logger,
		}),
		"poll": RateLimit(RateLimitConfig{
			Requests: cfg.PollRequestsPerWindow,
			Window:   time.Duration(cfg.PollWindowMinutes) * time.Minute,
			Logger:   logger,
		}),
		"verify": RateLimit(RateLimitConfig{
			Requests: cfg.VerifyRequestsPerWindow,
			Window:   time.Duration(cfg.VerifyWindowMinutes) * time.Minute,
			Logger:   logger,
		}),
	}
}
