package device

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/tendant/qr-handoff/internal/http/middleware"
	"github.com/tendant/qr-handoff/internal/httputil"
	"github.com/tendant/qr-handoff/pkg/auth"
	"github.com/tendant/qr-handoff/pkg/domain"
)

// Handler handles trusted-device endpoints.
type Handler struct {
	logger           *slog.Logger
	trustService     *auth.TrustService
	challengeService *auth.ChallengeService
	cookieConfig     httputil.CookieConfig
}

// NewHandler creates a new trusted-device handler. challengeService may be
// nil when the secondary challenge is not configured; the verify route is
// then not registered.
func NewHandler(logger *slog.Logger, trustService *auth.TrustService, challengeService *auth.ChallengeService, cookieConfig httputil.CookieConfig) *Handler {
	return &Handler{
		logger:           logger,
		trustService:     trustService,
		challengeService: challengeService,
		cookieConfig:     cookieConfig,
	}
}

// TrustResponse carries a freshly issued trust token.
type TrustResponse struct {
	Success    bool   `json:"success"`
	TrustToken string `json:"trustToken"`
}

// VerifyRequest carries the inputs of a secondary-challenge decision. The
// trust token may instead arrive in the cookie for web clients.
type VerifyRequest struct {
	UserID     string `json:"userId"`
	TrustToken string `json:"trustToken,omitempty"`
	Code       string `json:"code,omitempty"`
}

// Trust issues a trust token bound to the calling device's fingerprint.
// POST /v1/auth/device/trust (authenticated)
//
// Called after a completed primary login so later logins from this device
// can skip the secondary challenge.
func (h *Handler) Trust(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "missing_authorization")
		return
	}

	token, err := h.trustService.Issue(userID, auth.RequestFingerprint(r))
	if err != nil {
		h.logger.Error("trust token issue failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "trust_issue_failed")
		return
	}

	if !httputil.IsMobileClient(r) {
		httputil.SetTrustCookie(w, token, h.trustService.TokenTTL(), h.cookieConfig)
	}
	httputil.JSON(w, http.StatusOK, TrustResponse{Success: true, TrustToken: token})
}

// Verify runs the secondary-challenge decision for a device. A valid trust
// token for the current fingerprint skips the TOTP code; otherwise a valid
// code is required. Either path returns a fresh trust token.
// POST /v1/auth/device/verify
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "missing_parameters")
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "missing_parameters")
		return
	}

	trustToken := req.TrustToken
	if trustToken == "" && !httputil.IsMobileClient(r) {
		trustToken, _ = httputil.GetTrustTokenFromCookie(r)
	}

	newToken, err := h.challengeService.VerifyDevice(r.Context(), userID, auth.RequestFingerprint(r), trustToken, req.Code)
	switch {
	case err == nil:
		if !httputil.IsMobileClient(r) {
			httputil.SetTrustCookie(w, newToken, h.trustService.TokenTTL(), h.cookieConfig)
		}
		httputil.JSON(w, http.StatusOK, TrustResponse{Success: true, TrustToken: newToken})
	case errors.Is(err, domain.ErrDeviceUntrusted):
		httputil.Error(w, http.StatusUnauthorized, "device_untrusted")
	case errors.Is(err, domain.ErrInvalidTOTPCode):
		httputil.Error(w, http.StatusUnauthorized, "invalid_code")
	case errors.Is(err, domain.ErrTOTPNotEnabled):
		httputil.Error(w, http.StatusBadRequest, "totp_not_enabled")
	default:
		h.logger.Error("device verify failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "verify_failed")
	}
}
