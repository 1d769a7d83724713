package session

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

// Integration test; requires a migrated database. Set
// GITFOLIO_TEST_DATABASE_URL to run it.
func newPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()

	dsn := os.Getenv("GITFOLIO_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("GITFOLIO_TEST_DATABASE_URL not set")
	}

	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}
	t.Cleanup(pool.Close)

	return NewPostgresStore(pool)
}

func TestPostgresStoreLifecycle(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Microsecond)

	sess := testSession(ulid.Make().String(), now)
	if err := store.Put(ctx, sess); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := store.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Identity != sess.Identity {
		t.Errorf("Identity = %+v, want %+v", got.Identity, sess.Identity)
	}
	if got.Generation != 1 {
		t.Errorf("Generation = %d", got.Generation)
	}
	if !got.IssuingIP.Equal(sess.IssuingIP) {
		t.Errorf("IssuingIP = %v", got.IssuingIP)
	}

	rotated, err := store.Rotate(ctx, RotateInput{
		SessionID:        sess.ID,
		FromGeneration:   1,
		Now:              now.Add(time.Minute),
		AccessExpiresAt:  now.Add(16 * time.Minute),
		RefreshExpiresAt: now.Add(7*24*time.Hour + time.Minute),
		Client:           ClientContext{UserAgent: "rotated-agent"},
	})
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if rotated.Generation != 2 {
		t.Errorf("Generation = %d, want 2", rotated.Generation)
	}

	// Stale generation after the rotation above.
	_, err = store.Rotate(ctx, RotateInput{
		SessionID:      sess.ID,
		FromGeneration: 1,
		Now:            now.Add(2 * time.Minute),
	})
	if !errors.Is(err, ErrStaleGeneration) {
		t.Fatalf("stale err = %v", err)
	}

	if err := store.Revoke(ctx, now.Add(3*time.Minute), sess.ID, "logout"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if err := store.Revoke(ctx, now.Add(4*time.Minute), sess.ID, "replay"); err != nil {
		t.Fatalf("second Revoke: %v", err)
	}

	got, err = store.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get after revoke: %v", err)
	}
	if !got.Revoked() || got.RevocationReason != "logout" {
		t.Errorf("revocation state = %v %q", got.RevokedAt, got.RevocationReason)
	}

	if _, err := store.Get(ctx, "01INVALIDSESSIONID"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("missing err = %v", err)
	}
}

func TestPostgresStoreDeleteExpired(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()
	now := time.Now()

	stale := testSession(ulid.Make().String(), now.Add(-8*24*time.Hour))
	stale.RefreshExpiresAt = now.Add(-time.Hour)
	if err := store.Put(ctx, stale); err != nil {
		t.Fatalf("Put: %v", err)
	}

	n, err := store.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if n < 1 {
		t.Errorf("deleted %d, want >= 1", n)
	}
	if _, err := store.Get(ctx, stale.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("stale session still present: %v", err)
	}
}
