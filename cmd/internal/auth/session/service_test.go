package session

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"
)

type stubResolver struct {
	ident Identity
	err   error
}

func (r stubResolver) Resolve(ctx context.Context, upstreamToken string) (Identity, error) {
	if r.err != nil {
		return Identity{}, r.err
	}
	return r.ident, nil
}

func newTestService(t *testing.T, store Store, resolver IdentityResolver) *Service {
	t.Helper()
	cfg := testConfig()

	access, err := NewPasetoV4LocalManager(cfg)
	if err != nil {
		t.Fatalf("NewPasetoV4LocalManager: %v", err)
	}
	refresh, err := NewHS256RefreshManager(cfg)
	if err != nil {
		t.Fatalf("NewHS256RefreshManager: %v", err)
	}
	return NewService(cfg, store, access, refresh, resolver)
}

func TestCreateSessionAndValidate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := newTestService(t, store, stubResolver{ident: testIdentity})

	now := time.Now()
	client := ClientContext{IP: net.ParseIP("1.2.3.4"), UserAgent: "test-agent"}

	issued, err := svc.CreateSession(ctx, now, "gho_upstream", client)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if issued.SessionID == "" {
		t.Fatal("empty session id")
	}
	if issued.Identity != testIdentity {
		t.Errorf("Identity = %+v", issued.Identity)
	}

	claims, err := svc.ValidateAccess(issued.AccessToken, now)
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if claims.UserID != testIdentity.UserID {
		t.Errorf("UserID = %d", claims.UserID)
	}
	if claims.SessionID != issued.SessionID {
		t.Errorf("SessionID = %q, want %q", claims.SessionID, issued.SessionID)
	}
	if claims.UpstreamToken != "gho_upstream" {
		t.Errorf("UpstreamToken = %q", claims.UpstreamToken)
	}

	sess, err := store.Get(ctx, issued.SessionID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if sess.Generation != 1 {
		t.Errorf("Generation = %d, want 1", sess.Generation)
	}
	if !sess.IssuingIP.Equal(net.ParseIP("1.2.3.4")) {
		t.Errorf("IssuingIP = %v", sess.IssuingIP)
	}
	if sess.IssuingUserAgent != "test-agent" {
		t.Errorf("IssuingUserAgent = %q", sess.IssuingUserAgent)
	}
}

func TestCreateSessionResolverFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := newTestService(t, store, stubResolver{err: errors.New("upstream 401")})

	_, err := svc.CreateSession(ctx, time.Now(), "gho_bad", ClientContext{})
	if !errors.Is(err, ErrIdentityResolution) {
		t.Fatalf("err = %v, want ErrIdentityResolution", err)
	}

	if n, _ := store.DeleteExpired(ctx, time.Now().Add(365*24*time.Hour)); n != 0 {
		t.Errorf("store contains %d sessions, want 0", n)
	}
}

func TestRotateIssuesNewPairAndInvalidatesOld(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := newTestService(t, store, stubResolver{ident: testIdentity})

	now := time.Now()
	issued, err := svc.CreateSession(ctx, now, "gho_upstream", ClientContext{IP: net.ParseIP("1.2.3.4")})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	later := now.Add(time.Minute)
	rotated, err := svc.Rotate(ctx, later, issued.RefreshToken, ClientContext{IP: net.ParseIP("5.6.7.8")})
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if rotated.SessionID != issued.SessionID {
		t.Errorf("SessionID changed on rotation: %q -> %q", issued.SessionID, rotated.SessionID)
	}
	if rotated.RefreshToken == issued.RefreshToken {
		t.Error("rotation returned the same refresh token")
	}

	// The rotated session carries the new client context.
	sess, err := store.Get(ctx, issued.SessionID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if sess.Generation != 2 {
		t.Errorf("Generation = %d, want 2", sess.Generation)
	}
	if !sess.IssuingIP.Equal(net.ParseIP("5.6.7.8")) {
		t.Errorf("IssuingIP = %v, want 5.6.7.8", sess.IssuingIP)
	}

	// Replaying the superseded refresh token trips replay detection and
	// kills the session.
	_, err = svc.Rotate(ctx, later.Add(time.Second), issued.RefreshToken, ClientContext{})
	if !errors.Is(err, ErrReplayDetected) {
		t.Fatalf("replay err = %v, want ErrReplayDetected", err)
	}

	sess, err = store.Get(ctx, issued.SessionID)
	if err != nil {
		t.Fatalf("Get after replay: %v", err)
	}
	if !sess.Revoked() {
		t.Fatal("session not revoked after replay")
	}
	if sess.RevocationReason != "replay" {
		t.Errorf("RevocationReason = %q, want replay", sess.RevocationReason)
	}

	// The current refresh token is dead too: the whole chain is burned.
	_, err = svc.Rotate(ctx, later.Add(2*time.Second), rotated.RefreshToken, ClientContext{})
	if !errors.Is(err, ErrReplayDetected) {
		t.Fatalf("post-replay rotate err = %v, want ErrReplayDetected", err)
	}
}

func TestRotateAfterLogoutIsReplay(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := newTestService(t, store, stubResolver{ident: testIdentity})

	now := time.Now()
	issued, err := svc.CreateSession(ctx, now, "gho_upstream", ClientContext{})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if err := svc.Logout(ctx, now, issued.SessionID); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	// Logout is idempotent and the first reason sticks.
	if err := svc.Logout(ctx, now.Add(time.Second), issued.SessionID); err != nil {
		t.Fatalf("second Logout: %v", err)
	}
	sess, err := store.Get(ctx, issued.SessionID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if sess.RevocationReason != "logout" {
		t.Errorf("RevocationReason = %q, want logout", sess.RevocationReason)
	}

	if _, err := svc.Rotate(ctx, now.Add(time.Minute), issued.RefreshToken, ClientContext{}); !errors.Is(err, ErrReplayDetected) {
		t.Fatalf("err = %v, want ErrReplayDetected", err)
	}
}

func TestValidateAccessAfterExpiry(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, NewMemoryStore(), stubResolver{ident: testIdentity})

	now := time.Now()
	issued, err := svc.CreateSession(ctx, now, "gho_upstream", ClientContext{})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if _, err := svc.ValidateAccess(issued.AccessToken, now.Add(16*time.Minute)); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("err = %v, want ErrTokenExpired", err)
	}
}

func TestRotateExpiredRefreshToken(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, NewMemoryStore(), stubResolver{ident: testIdentity})

	now := time.Now()
	issued, err := svc.CreateSession(ctx, now, "gho_upstream", ClientContext{})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	_, err = svc.Rotate(ctx, now.Add(8*24*time.Hour), issued.RefreshToken, ClientContext{})
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("err = %v, want ErrTokenExpired", err)
	}
}

func TestConcurrentRotationExactlyOneWins(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := newTestService(t, store, stubResolver{ident: testIdentity})

	now := time.Now()
	issued, err := svc.CreateSession(ctx, now, "gho_upstream", ClientContext{})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	const racers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, rpl  int
		lastErrs []error
	)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Rotate(ctx, now.Add(time.Minute), issued.RefreshToken, ClientContext{})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrReplayDetected):
				rpl++
			default:
				lastErrs = append(lastErrs, err)
			}
		}()
	}
	wg.Wait()

	if len(lastErrs) > 0 {
		t.Fatalf("unexpected errors: %v", lastErrs)
	}
	if ok != 1 {
		t.Fatalf("%d rotations succeeded, want exactly 1", ok)
	}
	if rpl != racers-1 {
		t.Fatalf("%d replays detected, want %d", rpl, racers-1)
	}
}

func TestRevokeAllForUser(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := newTestService(t, store, stubResolver{ident: testIdentity})

	now := time.Now()
	first, err := svc.CreateSession(ctx, now, "gho_laptop", ClientContext{})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	second, err := svc.CreateSession(ctx, now, "gho_phone", ClientContext{})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if err := svc.RevokeAllForUser(ctx, now, testIdentity.UserID); err != nil {
		t.Fatalf("RevokeAllForUser: %v", err)
	}

	for _, id := range []string{first.SessionID, second.SessionID} {
		sess, err := store.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get(%s): %v", id, err)
		}
		if !sess.Revoked() {
			t.Errorf("session %s not revoked", id)
		}
	}
}

func TestGetSession(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := newTestService(t, store, stubResolver{ident: testIdentity})

	now := time.Now()
	issued, err := svc.CreateSession(ctx, now, "gho_upstream", ClientContext{})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	sess, err := svc.GetSession(ctx, now, issued.SessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess.Identity != testIdentity {
		t.Errorf("Identity = %+v", sess.Identity)
	}

	if _, err := svc.GetSession(ctx, now, "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("missing err = %v, want ErrSessionNotFound", err)
	}

	if err := svc.Logout(ctx, now, issued.SessionID); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := svc.GetSession(ctx, now, issued.SessionID); !errors.Is(err, ErrSessionRevoked) {
		t.Errorf("revoked err = %v, want ErrSessionRevoked", err)
	}
}

func TestSweepExpired(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := newTestService(t, store, stubResolver{ident: testIdentity})

	now := time.Now()
	if _, err := svc.CreateSession(ctx, now, "gho_upstream", ClientContext{}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	n, err := svc.SweepExpired(ctx, now.Add(8*24*time.Hour))
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if n != 1 {
		t.Errorf("swept %d sessions, want 1", n)
	}
}
