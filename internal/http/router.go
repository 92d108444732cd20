package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/qr-handoff/internal/config"
	"github.com/tendant/qr-handoff/internal/http/features/device"
	"github.com/tendant/qr-handoff/internal/http/features/qr"
	"github.com/tendant/qr-handoff/internal/http/middleware"
	"github.com/tendant/qr-handoff/internal/httputil"
	"github.com/tendant/qr-handoff/pkg/auth"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger           *slog.Logger
	QRService        *auth.QRSessionService
	TrustService     *auth.TrustService
	ChallengeService *auth.ChallengeService
	Verifier         middleware.AccessTokenVerifier
	RateLimit        config.RateLimitConfig
	SecurityHeaders  config.SecurityHeadersConfig
	Validation       config.ValidationConfig
	CookieSecure     bool
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders(cfg.SecurityHeaders))
	r.Use(middleware.RequestSizeLimit(cfg.Validation.MaxRequestBodySize))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Create rate limiters for different endpoint types
	rateLimiters := middleware.CreateRateLimiters(cfg.RateLimit, cfg.Logger)

	// Register QR handoff routes
	qrHandler := qr.NewHandler(cfg.Logger, cfg.QRService)
	r.Group(func(r chi.Router) {
		r.Use(rateLimiters["create"])
		r.Post("/v1/auth/qr/create", qrHandler.Create)
	})
	r.Group(func(r chi.Router) {
		r.Use(rateLimiters["exchange"])
		r.Post("/v1/auth/qr/exchange", qrHandler.Exchange)
	})
	r.Group(func(r chi.Router) {
		r.Use(rateLimiters["poll"])
		r.Post("/v1/auth/qr/poll", qrHandler.Poll)
	})

	// Register trusted-device routes
	cookieConfig := httputil.DefaultCookieConfig()
	cookieConfig.Secure = cfg.CookieSecure
	deviceHandler := device.NewHandler(cfg.Logger, cfg.TrustService, cfg.ChallengeService, cookieConfig)
	r.With(middleware.Auth(cfg.Verifier)).Post("/v1/auth/device/trust", deviceHandler.Trust)
	if cfg.ChallengeService != nil {
		r.With(rateLimiters["verify"]).Post("/v1/auth/device/verify", deviceHandler.Verify)
	}

	return r
}
