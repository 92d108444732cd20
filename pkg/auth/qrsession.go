package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/qr-handoff/pkg/domain"
)

const (
	// sessionTokenLen is the entropy behind each session handle, in bytes.
	// 32 bytes keeps tokens well past the non-enumerable threshold.
	sessionTokenLen = 32

	// DefaultSessionTTL bounds how long a displayed QR code stays usable.
	// The TTL is fixed by server configuration; no request parameter can
	// extend it.
	DefaultSessionTTL = 2 * time.Minute
)

// QRSessionStore is the persistence contract the protocol service needs and
// nothing more. Implementations must make Fulfill and Consume atomic
// first-committer-wins transitions, and must treat any session past its
// expiry as Expired before any other check.
type QRSessionStore interface {
	// Create persists a new Pending session.
	Create(ctx context.Context, session *domain.QRSession) error
	// Fulfill transitions Pending -> Fulfilled and stores the encrypted
	// credential bundle exactly once. Concurrent attempts serialize such
	// that at most one succeeds; later attempts see
	// domain.ErrSessionAlreadyFulfilled.
	Fulfill(ctx context.Context, tokenHash string, credentials []byte, fulfillingFingerprint string, now time.Time) error
	// Consume transitions Fulfilled -> Consumed and returns the encrypted
	// credentials. domain.ErrSessionPending means the caller should retry
	// later; every other failure is terminal for this token.
	Consume(ctx context.Context, tokenHash string, now time.Time) ([]byte, error)
	// DeleteExpired removes sessions whose expiry passed before now and
	// returns how many were swept.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// QRSessionConfig holds protocol settings.
type QRSessionConfig struct {
	SessionTTL time.Duration
}

// QRSessionService drives the cross-device handoff: a requesting device
// creates a session and renders its handle as a QR code, an already
// authenticated device exchanges live credentials into it, and the
// requesting device polls until it can consume them exactly once.
//
// Session handles given to clients are the store token wrapped by the
// Signer, so forged or mangled handles are rejected before any store access
// and look identical to unknown sessions.
type QRSessionService struct {
	config    QRSessionConfig
	store     QRSessionStore
	signer    *Signer
	crypter   *Crypter
	validator CredentialValidator
}

// NewQRSessionService creates the protocol service.
func NewQRSessionService(config QRSessionConfig, store QRSessionStore, signer *Signer, crypter *Crypter, validator CredentialValidator) *QRSessionService {
	if config.SessionTTL == 0 {
		config.SessionTTL = DefaultSessionTTL
	}
	return &QRSessionService{
		config:    config,
		store:     store,
		signer:    signer,
		crypter:   crypter,
		validator: validator,
	}
}

// SessionTTL returns the configured session lifetime.
func (s *QRSessionService) SessionTTL() time.Duration {
	return s.config.SessionTTL
}

// CreateSession allocates a Pending session bound to the requesting device's
// fingerprint and returns the signed session handle with its expiry. No
// credentials are involved at this step.
func (s *QRSessionService) CreateSession(ctx context.Context, originFingerprint string) (string, time.Time, error) {
	raw, err := GenerateToken(sessionTokenLen)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate session token: %w", err)
	}

	now := time.Now().UTC()
	session := &domain.QRSession{
		ID:                uuid.New(),
		TokenHash:         HashToken(raw),
		State:             domain.SessionPending,
		CreatedAt:         now,
		ExpiresAt:         now.Add(s.config.SessionTTL),
		OriginFingerprint: originFingerprint,
	}
	if err := s.store.Create(ctx, session); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to create qr session: %w", err)
	}

	return s.signer.Sign([]byte(raw)), session.ExpiresAt, nil
}

// Exchange binds live credentials from an authenticated device into a
// pending session. The credentials are validated against the primary
// identity service, sealed, and stored atomically with the
// Pending -> Fulfilled transition. A failed exchange leaves the session
// state untouched.
//
// Expired and unknown sessions both report domain.ErrSessionNotFound so the
// endpoint cannot be used to probe which tokens once existed.
func (s *QRSessionService) Exchange(ctx context.Context, sessionToken string, creds domain.Credentials, fulfillingFingerprint string) error {
	raw, err := s.signer.Verify(sessionToken)
	if err != nil {
		return domain.ErrSessionNotFound
	}

	if _, err := s.validator.Validate(ctx, creds.AccessToken, creds.RefreshToken); err != nil {
		return domain.ErrInvalidCredentials
	}

	plaintext, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	sealed, err := s.crypter.Encrypt(plaintext)
	if err != nil {
		return fmt.Errorf("failed to seal credentials: %w", err)
	}

	err = s.store.Fulfill(ctx, HashToken(string(raw)), sealed, fulfillingFingerprint, time.Now().UTC())
	if errors.Is(err, domain.ErrSessionExpired) {
		return domain.ErrSessionNotFound
	}
	return err
}

// Poll attempts the one-shot consumption of a fulfilled session. It returns
// domain.ErrSessionPending while the session awaits fulfillment; on success
// the session is burned and the credentials are never readable again.
func (s *QRSessionService) Poll(ctx context.Context, sessionToken string) (*domain.Credentials, error) {
	raw, err := s.signer.Verify(sessionToken)
	if err != nil {
		return nil, domain.ErrSessionNotFound
	}

	sealed, err := s.store.Consume(ctx, HashToken(string(raw)), time.Now().UTC())
	if err != nil {
		return nil, err
	}

	plaintext, err := s.crypter.Decrypt(sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to open credentials: %w", err)
	}
	var creds domain.Credentials
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return nil, fmt.Errorf("failed to decode credentials: %w", err)
	}
	return &creds, nil
}

// SweepExpired removes expired sessions from the store. Expiry is already
// enforced on every access; the sweep only reclaims storage.
func (s *QRSessionService) SweepExpired(ctx context.Context) (int64, error) {
	return s.store.DeleteExpired(ctx, time.Now().UTC())
}
