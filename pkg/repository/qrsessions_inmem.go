package repository

import (
	"context"
	"sync"
	"time"

	"github.com/tendant/qr-handoff/pkg/domain"
)

// InMemQRSessionsRepository keeps QR sessions in a mutex-guarded map with
// the same transition semantics as the Postgres repository. It is the
// default store when no database is configured, and backs tests.
type InMemQRSessionsRepository struct {
	mu       sync.Mutex
	sessions map[string]*domain.QRSession
}

// NewInMemQRSessionsRepository creates an empty in-memory store.
func NewInMemQRSessionsRepository() *InMemQRSessionsRepository {
	return &InMemQRSessionsRepository{
		sessions: make(map[string]*domain.QRSession),
	}
}

// Create persists a new Pending session.
func (r *InMemQRSessionsRepository) Create(ctx context.Context, session *domain.QRSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[session.TokenHash]; exists {
		return domain.ErrSessionExists
	}
	copied := *session
	r.sessions[session.TokenHash] = &copied
	return nil
}

// Fulfill transitions Pending -> Fulfilled under the lock, storing the
// encrypted credentials exactly once.
func (r *InMemQRSessionsRepository) Fulfill(ctx context.Context, tokenHash string, credentials []byte, fulfillingFingerprint string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[tokenHash]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if err := r.expire(session, now); err != nil {
		return err
	}

	switch session.State {
	case domain.SessionPending:
		session.State = domain.SessionFulfilled
		session.CredentialsEncrypted = credentials
		session.FulfillingFingerprint = fulfillingFingerprint
		fulfilledAt := now
		session.FulfilledAt = &fulfilledAt
		return nil
	case domain.SessionFulfilled:
		return domain.ErrSessionAlreadyFulfilled
	case domain.SessionConsumed:
		return domain.ErrSessionConsumed
	default:
		return domain.ErrSessionNotFound
	}
}

// Consume transitions Fulfilled -> Consumed under the lock and returns the
// encrypted credentials exactly once.
func (r *InMemQRSessionsRepository) Consume(ctx context.Context, tokenHash string, now time.Time) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[tokenHash]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if err := r.expire(session, now); err != nil {
		return nil, err
	}

	switch session.State {
	case domain.SessionPending:
		return nil, domain.ErrSessionPending
	case domain.SessionFulfilled:
		session.State = domain.SessionConsumed
		consumedAt := now
		session.ConsumedAt = &consumedAt
		credentials := session.CredentialsEncrypted
		// Burned: the bundle is not readable through any later call.
		session.CredentialsEncrypted = nil
		return credentials, nil
	case domain.SessionConsumed:
		return nil, domain.ErrSessionConsumed
	default:
		return nil, domain.ErrSessionNotFound
	}
}

// DeleteExpired removes sessions whose expiry passed before now.
func (r *InMemQRSessionsRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for tokenHash, session := range r.sessions {
		if session.Expired(now) {
			delete(r.sessions, tokenHash)
			removed++
		}
	}
	return removed, nil
}

// expire applies the lazy expiry check that runs before any other logic.
// Callers hold the lock.
func (r *InMemQRSessionsRepository) expire(session *domain.QRSession, now time.Time) error {
	if session.State == domain.SessionExpired {
		return domain.ErrSessionExpired
	}
	if session.Expired(now) {
		session.State = domain.SessionExpired
		session.CredentialsEncrypted = nil
		return domain.ErrSessionExpired
	}
	return nil
}
