package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/tendant/qr-handoff/pkg/domain"
)

// TOTPSecretSource provides the encrypted TOTP secret provisioned for a
// user by the primary identity service. Implementations return
// domain.ErrTOTPNotEnabled when the user has no secret.
type TOTPSecretSource interface {
	GetSecret(ctx context.Context, userID uuid.UUID) (string, error)
}

// ChallengeService decides whether a device may skip the secondary
// challenge. A valid trust token for the current fingerprint bypasses the
// TOTP check entirely; an untrusted device must present a valid code. Both
// paths end with a fresh trust token bound to the current fingerprint.
type ChallengeService struct {
	trust   *TrustService
	secrets TOTPSecretSource
	crypter *Crypter
}

// NewChallengeService creates the secondary challenge service.
func NewChallengeService(trust *TrustService, secrets TOTPSecretSource, crypter *Crypter) *ChallengeService {
	return &ChallengeService{trust: trust, secrets: secrets, crypter: crypter}
}

// VerifyDevice runs the challenge decision for userID on the device with
// the given fingerprint. trustToken and code may each be empty.
func (s *ChallengeService) VerifyDevice(ctx context.Context, userID uuid.UUID, fingerprint, trustToken, code string) (string, error) {
	if trustToken != "" {
		if tokenUser, ok := s.trust.Check(trustToken, fingerprint); ok && tokenUser == userID {
			return s.trust.Issue(userID, fingerprint)
		}
	}

	if code == "" {
		return "", domain.ErrDeviceUntrusted
	}

	encrypted, err := s.secrets.GetSecret(ctx, userID)
	if err != nil {
		return "", err
	}
	secret, err := s.crypter.DecryptString(encrypted)
	if err != nil {
		return "", err
	}

	valid, err := totp.ValidateCustom(code, secret, time.Now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil || !valid {
		return "", domain.ErrInvalidTOTPCode
	}

	return s.trust.Issue(userID, fingerprint)
}
