package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/tendant/qr-handoff/internal/config"
	httpserver "github.com/tendant/qr-handoff/internal/http"
	"github.com/tendant/qr-handoff/pkg/auth"
	"github.com/tendant/qr-handoff/pkg/repository"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	encryptionKey, err := hex.DecodeString(cfg.EncryptionKey)
	if err != nil || len(encryptionKey) != 32 {
		logger.Error("CREDENTIALS_ENCRYPTION_KEY must be 64-char hex (32 bytes)")
		os.Exit(1)
	}
	crypter, err := auth.NewCrypter(encryptionKey)
	if err != nil {
		logger.Error("failed to initialize crypter", "error", err)
		os.Exit(1)
	}

	signer := auth.NewSigner([]byte(cfg.SigningSecret))
	validator := auth.NewJWTValidator([]byte(cfg.JWTSecret), cfg.JWTIssuer)

	// Select session store: Postgres when configured, in-memory otherwise
	var store auth.QRSessionStore
	var secrets auth.TOTPSecretSource
	if cfg.HasDatabase() {
		db, err := repository.NewDB(repository.Config{
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			DBName:   cfg.DBName,
			SSLMode:  cfg.DBSSLMode,
		})
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		logger.Info("connected to database")
		store = repository.NewQRSessionsRepository(db)
		secrets = repository.NewTOTPSecretsRepository(db)
	} else {
		logger.Warn("no database configured, using in-memory session store (single replica only)")
		store = repository.NewInMemQRSessionsRepository()
	}

	// Initialize services
	qrService := auth.NewQRSessionService(auth.QRSessionConfig{
		SessionTTL: cfg.QRSessionTTL,
	}, store, signer, crypter, validator)

	trustService := auth.NewTrustService(auth.TrustConfig{
		TokenTTL: cfg.TrustTokenTTL,
	}, signer)

	var challengeService *auth.ChallengeService
	if secrets != nil {
		challengeService = auth.NewChallengeService(trustService, secrets, crypter)
		logger.Info("secondary challenge enabled")
	}

	// Create router
	router := httpserver.NewRouter(httpserver.RouterConfig{
		Logger:           logger,
		QRService:        qrService,
		TrustService:     trustService,
		ChallengeService: challengeService,
		Verifier:         validator,
		RateLimit:        cfg.RateLimit,
		SecurityHeaders:  cfg.SecurityHeaders,
		Validation:       cfg.Validation,
		CookieSecure:     cfg.CookieSecure,
	})

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.ServerAddr, cfg.ServerPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Background TTL sweep. Expiry is enforced on every access; the sweep
	// only reclaims storage.
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go func() {
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				removed, err := qrService.SweepExpired(sweepCtx)
				if err != nil {
					logger.Error("session sweep failed", "error", err)
				} else if removed > 0 {
					logger.Info("swept expired sessions", "count", removed)
				}
			}
		}
	}()

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
