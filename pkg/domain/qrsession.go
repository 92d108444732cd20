package domain

import (
	"time"

	"github.com/google/uuid"
)

// SessionState is the lifecycle state of a QR handoff session.
type SessionState string

const (
	SessionPending   SessionState = "pending"
	SessionFulfilled SessionState = "fulfilled"
	SessionConsumed  SessionState = "consumed"
	SessionExpired   SessionState = "expired"
)

// Terminal reports whether no further transitions are legal from s.
func (s SessionState) Terminal() bool {
	return s == SessionConsumed || s == SessionExpired
}

// QRSession represents one cross-device login handoff attempt.
//
// Legal transitions: Pending -> Fulfilled -> Consumed, with Expired reachable
// from Pending or Fulfilled by timeout. The encrypted credential bundle is
// written exactly once, atomically with the Pending -> Fulfilled transition,
// and read exactly once, atomically with Fulfilled -> Consumed.
type QRSession struct {
	ID        uuid.UUID
	TokenHash string
	State     SessionState
	CreatedAt time.Time
	// ExpiresAt = CreatedAt + TTL. The TTL clock starts at creation and is
	// never extended.
	ExpiresAt   time.Time
	FulfilledAt *time.Time
	ConsumedAt  *time.Time
	// CredentialsEncrypted holds the AES-GCM sealed credential bundle.
	// Stores never see plaintext credentials.
	CredentialsEncrypted []byte
	// OriginFingerprint is the fingerprint of the device that created the
	// session; FulfillingFingerprint is the fingerprint of the device that
	// supplied credentials. They legitimately differ (cross-device by
	// design) and are kept for anomaly correlation only.
	OriginFingerprint     string
	FulfillingFingerprint string
}

// Expired reports whether the session's TTL has passed at now. A session
// past its expiry is treated as Expired regardless of stored state.
func (s *QRSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Credentials is the opaque bundle an authenticated device hands into a
// pending session. It is returned to the originating device at most once.
type Credentials struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	DeviceID     string `json:"device_id,omitempty"`
	Fingerprint  string `json:"fingerprint,omitempty"`
}
