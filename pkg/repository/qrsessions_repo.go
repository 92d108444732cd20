package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/tendant/qr-handoff/pkg/domain"
)

// QRSessionsRepository persists QR handoff sessions in Postgres. Sessions
// are keyed by the SHA-256 hash of their token; the raw token never reaches
// the database. State transitions are single conditional updates so
// concurrent callers serialize in the database and at most one commits.
type QRSessionsRepository struct {
	db *sql.DB
}

// NewQRSessionsRepository creates a new QR sessions repository.
func NewQRSessionsRepository(db *sql.DB) *QRSessionsRepository {
	return &QRSessionsRepository{db: db}
}

// Create persists a new Pending session.
func (r *QRSessionsRepository) Create(ctx context.Context, session *domain.QRSession) error {
	query := `
		INSERT INTO qr_sessions (id, token_hash, state, created_at, expires_at, origin_fingerprint)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		session.ID, session.TokenHash, string(session.State),
		session.CreatedAt, session.ExpiresAt, session.OriginFingerprint,
	)
	return err
}

// Fulfill performs the Pending -> Fulfilled transition. The state and expiry
// predicates make it first-committer-wins: a concurrent fulfill attempt sees
// zero rows updated and is rejected with the reason.
func (r *QRSessionsRepository) Fulfill(ctx context.Context, tokenHash string, credentials []byte, fulfillingFingerprint string, now time.Time) error {
	query := `
		UPDATE qr_sessions
		SET state = $2, credentials = $3, fulfilling_fingerprint = $4, fulfilled_at = $5
		WHERE token_hash = $1 AND state = $6 AND expires_at > $5
	`
	result, err := r.db.ExecContext(ctx, query,
		tokenHash, string(domain.SessionFulfilled), credentials, fulfillingFingerprint,
		now, string(domain.SessionPending),
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return r.transitionError(ctx, tokenHash, now)
	}
	return nil
}

// Consume performs the one-shot Fulfilled -> Consumed transition and returns
// the stored encrypted credentials. This is the only read path that ever
// returns credentials; the column is nulled in the same statement, so after a
// consume the bundle exists nowhere in the database. RETURNING on an UPDATE
// yields post-update values, hence the self-join to hand back the bytes
// being cleared.
func (r *QRSessionsRepository) Consume(ctx context.Context, tokenHash string, now time.Time) ([]byte, error) {
	query := `
		UPDATE qr_sessions AS q
		SET state = $2, consumed_at = $3, credentials = NULL
		FROM (SELECT token_hash, credentials FROM qr_sessions WHERE token_hash = $1 FOR UPDATE) AS prev
		WHERE q.token_hash = prev.token_hash AND q.state = $4 AND q.expires_at > $3
		RETURNING prev.credentials
	`
	var credentials []byte
	err := r.db.QueryRowContext(ctx, query,
		tokenHash, string(domain.SessionConsumed), now, string(domain.SessionFulfilled),
	).Scan(&credentials)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, r.transitionError(ctx, tokenHash, now)
	}
	if err != nil {
		return nil, err
	}
	return credentials, nil
}

// DeleteExpired removes sessions whose expiry passed before now.
func (r *QRSessionsRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM qr_sessions WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// transitionError explains why a conditional update matched no rows. Expiry
// wins over stored state: a session past its TTL reports expired no matter
// what state the row still carries.
func (r *QRSessionsRepository) transitionError(ctx context.Context, tokenHash string, now time.Time) error {
	var state string
	var expiresAt time.Time
	err := r.db.QueryRowContext(ctx,
		`SELECT state, expires_at FROM qr_sessions WHERE token_hash = $1`, tokenHash,
	).Scan(&state, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrSessionNotFound
	}
	if err != nil {
		return err
	}

	if !now.Before(expiresAt) || domain.SessionState(state) == domain.SessionExpired {
		return domain.ErrSessionExpired
	}
	switch domain.SessionState(state) {
	case domain.SessionPending:
		return domain.ErrSessionPending
	case domain.SessionFulfilled:
		return domain.ErrSessionAlreadyFulfilled
	case domain.SessionConsumed:
		return domain.ErrSessionConsumed
	}
	return domain.ErrSessionNotFound
}
