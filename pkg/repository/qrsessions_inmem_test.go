package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/qr-handoff/pkg/domain"
)

func newPendingSession(tokenHash string, ttl time.Duration) *domain.QRSession {
	now := time.Now().UTC()
	return &domain.QRSession{
		ID:                uuid.New(),
		TokenHash:         tokenHash,
		State:             domain.SessionPending,
		CreatedAt:         now,
		ExpiresAt:         now.Add(ttl),
		OriginFingerprint: "fp-origin",
	}
}

func TestInMemRepo_Lifecycle(t *testing.T) {
	repo := NewInMemQRSessionsRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	if err := repo.Create(ctx, newPendingSession("hash-1", time.Minute)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Pending sessions are not consumable yet.
	if _, err := repo.Consume(ctx, "hash-1", now); !errors.Is(err, domain.ErrSessionPending) {
		t.Fatalf("Consume on pending = %v, want ErrSessionPending", err)
	}

	sealed := []byte("sealed-credentials")
	if err := repo.Fulfill(ctx, "hash-1", sealed, "fp-fulfiller", now); err != nil {
		t.Fatalf("Fulfill failed: %v", err)
	}

	got, err := repo.Consume(ctx, "hash-1", now)
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if string(got) != string(sealed) {
		t.Errorf("Consume returned %q, want %q", got, sealed)
	}

	// Consume is one-shot.
	if _, err := repo.Consume(ctx, "hash-1", now); !errors.Is(err, domain.ErrSessionConsumed) {
		t.Errorf("second Consume = %v, want ErrSessionConsumed", err)
	}
	if err := repo.Fulfill(ctx, "hash-1", sealed, "fp-late", now); !errors.Is(err, domain.ErrSessionConsumed) {
		t.Errorf("Fulfill after consume = %v, want ErrSessionConsumed", err)
	}
}

func TestInMemRepo_CreateDuplicate(t *testing.T) {
	repo := NewInMemQRSessionsRepository()
	ctx := context.Background()

	if err := repo.Create(ctx, newPendingSession("hash-1", time.Minute)); err != nil {
		t.Fatal(err)
	}
	if err := repo.Create(ctx, newPendingSession("hash-1", time.Minute)); !errors.Is(err, domain.ErrSessionExists) {
		t.Errorf("duplicate Create = %v, want ErrSessionExists", err)
	}
}

func TestInMemRepo_UnknownHash(t *testing.T) {
	repo := NewInMemQRSessionsRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	if err := repo.Fulfill(ctx, "missing", nil, "fp", now); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("Fulfill on missing hash = %v, want ErrSessionNotFound", err)
	}
	if _, err := repo.Consume(ctx, "missing", now); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("Consume on missing hash = %v, want ErrSessionNotFound", err)
	}
}

func TestInMemRepo_DoubleFulfill(t *testing.T) {
	repo := NewInMemQRSessionsRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	if err := repo.Create(ctx, newPendingSession("hash-1", time.Minute)); err != nil {
		t.Fatal(err)
	}
	if err := repo.Fulfill(ctx, "hash-1", []byte("first"), "fp-one", now); err != nil {
		t.Fatal(err)
	}
	if err := repo.Fulfill(ctx, "hash-1", []byte("second"), "fp-two", now); !errors.Is(err, domain.ErrSessionAlreadyFulfilled) {
		t.Fatalf("second Fulfill = %v, want ErrSessionAlreadyFulfilled", err)
	}

	// The winning write is untouched by the losing one.
	got, err := repo.Consume(ctx, "hash-1", now)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "first" {
		t.Errorf("Consume returned %q, want the first write", got)
	}
}

func TestInMemRepo_ConcurrentFulfill(t *testing.T) {
	repo := NewInMemQRSessionsRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	if err := repo.Create(ctx, newPendingSession("hash-1", time.Minute)); err != nil {
		t.Fatal(err)
	}

	const attempts = 32
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = repo.Fulfill(ctx, "hash-1", []byte("creds"), "fp", now)
		}(i)
	}
	wg.Wait()

	var wins int
	for i, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, domain.ErrSessionAlreadyFulfilled):
		default:
			t.Errorf("attempt %d: unexpected error %v", i, err)
		}
	}
	if wins != 1 {
		t.Errorf("%d fulfills succeeded, want exactly 1", wins)
	}
}

func TestInMemRepo_LazyExpiry(t *testing.T) {
	repo := NewInMemQRSessionsRepository()
	ctx := context.Background()

	session := newPendingSession("hash-1", time.Minute)
	if err := repo.Create(ctx, session); err != nil {
		t.Fatal(err)
	}

	after := session.ExpiresAt.Add(time.Second)
	if err := repo.Fulfill(ctx, "hash-1", []byte("creds"), "fp", after); !errors.Is(err, domain.ErrSessionExpired) {
		t.Errorf("Fulfill past expiry = %v, want ErrSessionExpired", err)
	}
	if _, err := repo.Consume(ctx, "hash-1", after); !errors.Is(err, domain.ErrSessionExpired) {
		t.Errorf("Consume past expiry = %v, want ErrSessionExpired", err)
	}

	// Once expired the session stays expired, even for an in-time clock.
	if _, err := repo.Consume(ctx, "hash-1", session.ExpiresAt.Add(-time.Second)); !errors.Is(err, domain.ErrSessionExpired) {
		t.Errorf("Consume after expiry marking = %v, want ErrSessionExpired", err)
	}
}

func TestInMemRepo_ExpiryDropsCredentials(t *testing.T) {
	repo := NewInMemQRSessionsRepository()
	ctx := context.Background()

	session := newPendingSession("hash-1", time.Minute)
	if err := repo.Create(ctx, session); err != nil {
		t.Fatal(err)
	}
	if err := repo.Fulfill(ctx, "hash-1", []byte("creds"), "fp", time.Now().UTC()); err != nil {
		t.Fatal(err)
	}

	after := session.ExpiresAt.Add(time.Second)
	if _, err := repo.Consume(ctx, "hash-1", after); !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("Consume past expiry = %v, want ErrSessionExpired", err)
	}

	repo.mu.Lock()
	stored := repo.sessions["hash-1"]
	repo.mu.Unlock()
	if stored.CredentialsEncrypted != nil {
		t.Error("expired session still holds credentials")
	}
}

func TestInMemRepo_ConsumeDropsCredentials(t *testing.T) {
	repo := NewInMemQRSessionsRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	if err := repo.Create(ctx, newPendingSession("hash-1", time.Minute)); err != nil {
		t.Fatal(err)
	}
	if err := repo.Fulfill(ctx, "hash-1", []byte("sealed"), "fp", now); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Consume(ctx, "hash-1", now); err != nil {
		t.Fatal(err)
	}

	// Once delivered, the bundle exists nowhere in the store.
	repo.mu.Lock()
	stored := repo.sessions["hash-1"]
	repo.mu.Unlock()
	if stored.CredentialsEncrypted != nil {
		t.Error("consumed session still holds credentials")
	}
}

func TestInMemRepo_DeleteExpired(t *testing.T) {
	repo := NewInMemQRSessionsRepository()
	ctx := context.Background()

	if err := repo.Create(ctx, newPendingSession("hash-live", time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := repo.Create(ctx, newPendingSession("hash-dead-1", -time.Minute)); err != nil {
		t.Fatal(err)
	}
	if err := repo.Create(ctx, newPendingSession("hash-dead-2", -time.Minute)); err != nil {
		t.Fatal(err)
	}

	removed, err := repo.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("DeleteExpired failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("DeleteExpired removed %d, want 2", removed)
	}

	// The live session is untouched.
	if _, err := repo.Consume(ctx, "hash-live", time.Now().UTC()); !errors.Is(err, domain.ErrSessionPending) {
		t.Errorf("live session after sweep = %v, want ErrSessionPending", err)
	}
}

func TestInMemRepo_CreateCopiesSession(t *testing.T) {
	repo := NewInMemQRSessionsRepository()
	ctx := context.Background()

	session := newPendingSession("hash-1", time.Minute)
	if err := repo.Create(ctx, session); err != nil {
		t.Fatal(err)
	}

	// Caller mutations after Create must not leak into the store.
	session.State = domain.SessionConsumed

	if _, err := repo.Consume(ctx, "hash-1", time.Now().UTC()); !errors.Is(err, domain.ErrSessionPending) {
		t.Errorf("stored session affected by caller mutation: %v", err)
	}
}
