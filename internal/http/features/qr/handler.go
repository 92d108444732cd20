package qr

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/tendant/qr-handoff/internal/httputil"
	"github.com/tendant/qr-handoff/pkg/auth"
	"github.com/tendant/qr-handoff/pkg/domain"
)

// Handler handles the QR handoff endpoints.
type Handler struct {
	logger    *slog.Logger
	qrService *auth.QRSessionService
}

// NewHandler creates a new QR handoff handler.
func NewHandler(logger *slog.Logger, qrService *auth.QRSessionService) *Handler {
	return &Handler{
		logger:    logger,
		qrService: qrService,
	}
}

// CreateResponse is the envelope for a freshly created session.
type CreateResponse struct {
	Success      bool      `json:"success"`
	SessionToken string    `json:"sessionToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// ExchangeRequest carries the live credentials an authenticated device hands
// into a pending session.
type ExchangeRequest struct {
	SessionToken string `json:"sessionToken"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	DeviceID     string `json:"deviceId,omitempty"`
	Fingerprint  string `json:"fingerprint,omitempty"`
}

// AckResponse is the bare success envelope.
type AckResponse struct {
	Success bool `json:"success"`
}

// PollRequest carries the session token being polled.
type PollRequest struct {
	SessionToken string `json:"sessionToken"`
}

// PollResponse reports the session status; tokens are present only when the
// status is fulfilled.
type PollResponse struct {
	Success      bool   `json:"success"`
	Status       string `json:"status"`
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// Create allocates a new pending session for the requesting device.
// POST /v1/auth/qr/create
//
// No request fields are required; the network origin is taken from the
// connection. Rate limiting is applied per origin by the route middleware.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	originFingerprint := auth.RequestFingerprint(r)

	token, expiresAt, err := h.qrService.CreateSession(r.Context(), originFingerprint)
	if err != nil {
		h.logger.Error("qr session create failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "session_create_failed")
		return
	}

	httputil.JSON(w, http.StatusOK, CreateResponse{
		Success:      true,
		SessionToken: token,
		ExpiresAt:    expiresAt,
	})
}

// Exchange binds live credentials from an authenticated device into a
// pending session.
// POST /v1/auth/qr/exchange
func (h *Handler) Exchange(w http.ResponseWriter, r *http.Request) {
	var req ExchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "missing_parameters")
		return
	}
	if req.SessionToken == "" || req.AccessToken == "" || req.RefreshToken == "" {
		httputil.Error(w, http.StatusBadRequest, "missing_parameters")
		return
	}

	creds := domain.Credentials{
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		DeviceID:     req.DeviceID,
		Fingerprint:  req.Fingerprint,
	}

	err := h.qrService.Exchange(r.Context(), req.SessionToken, creds, auth.RequestFingerprint(r))
	switch {
	case err == nil:
		httputil.JSON(w, http.StatusOK, AckResponse{Success: true})
	case errors.Is(err, domain.ErrSessionNotFound):
		httputil.Error(w, http.StatusNotFound, "session_not_found")
	case errors.Is(err, domain.ErrSessionAlreadyFulfilled), errors.Is(err, domain.ErrSessionConsumed):
		httputil.Error(w, http.StatusConflict, "already_fulfilled")
	case errors.Is(err, domain.ErrInvalidCredentials):
		httputil.Error(w, http.StatusUnauthorized, "exchange_failed")
	default:
		h.logger.Error("qr exchange failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "exchange_failed")
	}
}

// Poll attempts the one-shot consumption of a fulfilled session.
// POST /v1/auth/qr/poll
//
// A second poll after a successful one returns poll_failed, never the same
// credentials twice.
func (h *Handler) Poll(w http.ResponseWriter, r *http.Request) {
	var req PollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "missing_token")
		return
	}
	if req.SessionToken == "" {
		httputil.Error(w, http.StatusBadRequest, "missing_token")
		return
	}

	creds, err := h.qrService.Poll(r.Context(), req.SessionToken)
	switch {
	case err == nil:
		httputil.JSON(w, http.StatusOK, PollResponse{
			Success:      true,
			Status:       "fulfilled",
			AccessToken:  creds.AccessToken,
			RefreshToken: creds.RefreshToken,
		})
	case errors.Is(err, domain.ErrSessionPending):
		httputil.JSON(w, http.StatusOK, PollResponse{Success: true, Status: "pending"})
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrSessionExpired),
		errors.Is(err, domain.ErrSessionConsumed),
		errors.Is(err, domain.ErrSessionAlreadyFulfilled):
		// State rejections share one code; callers learn nothing about
		// whether the token ever existed.
		httputil.Error(w, http.StatusBadRequest, "poll_failed")
	default:
		h.logger.Error("qr poll failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "poll_failed")
	}
}
