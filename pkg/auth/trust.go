package auth

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/qr-handoff/pkg/domain"
)

// DefaultTrustTokenTTL is how long a device-trust token stays valid. The TTL
// is independent of any session lifetime.
const DefaultTrustTokenTTL = 30 * 24 * time.Hour

// TrustConfig holds trusted-device settings.
type TrustConfig struct {
	TokenTTL time.Duration
}

// TrustService binds signed device-trust tokens to users. A valid trust
// token lets a device skip the secondary challenge on later logins; it never
// grants access by itself.
type TrustService struct {
	config TrustConfig
	signer *Signer
}

// NewTrustService creates a trust service signing with signer.
func NewTrustService(config TrustConfig, signer *Signer) *TrustService {
	if config.TokenTTL == 0 {
		config.TokenTTL = DefaultTrustTokenTTL
	}
	return &TrustService{config: config, signer: signer}
}

// TokenTTL returns the trust token lifetime.
func (s *TrustService) TokenTTL() time.Duration {
	return s.config.TokenTTL
}

// Issue signs a trust token binding userID to the device fingerprint.
func (s *TrustService) Issue(userID uuid.UUID, fingerprint string) (string, error) {
	payload, err := json.Marshal(domain.TrustClaims{
		UserID:      userID,
		Fingerprint: fingerprint,
		IssuedAt:    time.Now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode trust claims: %w", err)
	}
	return s.signer.Sign(payload), nil
}

// Check verifies a trust token against the fingerprint of the current
// request. Any failure -- bad signature, undecodable claims, fingerprint
// mismatch, expired token -- yields untrusted. The check never fails open.
func (s *TrustService) Check(token, fingerprint string) (uuid.UUID, bool) {
	payload, err := s.signer.Verify(token)
	if err != nil {
		return uuid.Nil, false
	}
	var claims domain.TrustClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return uuid.Nil, false
	}
	if claims.UserID == uuid.Nil || claims.Fingerprint == "" || fingerprint == "" {
		return uuid.Nil, false
	}
	if subtle.ConstantTimeCompare([]byte(claims.Fingerprint), []byte(fingerprint)) != 1 {
		return uuid.Nil, false
	}
	if time.Since(claims.IssuedAt) > s.config.TokenTTL {
		return uuid.Nil, false
	}
	return claims.UserID, true
}
