package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// IdentityResolver resolves the authenticated identity behind an upstream
// OAuth token, so a session is keyed to a verified user rather than to an
// opaque credential.
type IdentityResolver interface {
	Resolve(ctx context.Context, upstreamToken string) (Identity, error)
}

// Service implements the high-level session operations for gitfolio.
//
// It creates sessions from upstream OAuth tokens, validates access tokens,
// performs refresh rotation with replay detection, and supports per-session
// and per-user revocation.
type Service struct {
	cfg      Config
	store    Store
	access   AccessTokenManager
	refresh  RefreshTokenManager
	resolver IdentityResolver
}

// Issued is the result of creating or rotating a session.
type Issued struct {
	SessionID string
	Identity  Identity

	AccessToken  string
	AccessExp    time.Time
	RefreshToken string
	RefreshExp   time.Time
}

// NewService constructs a Service with the provided configuration, store,
// token managers, and identity resolver.
func NewService(cfg Config, store Store, access AccessTokenManager, refresh RefreshTokenManager, resolver IdentityResolver) *Service {
	return &Service{cfg: cfg, store: store, access: access, refresh: refresh, resolver: resolver}
}

// CreateSession resolves the identity behind upstreamToken, persists a new
// session record at generation 1, and signs a fresh access/refresh pair.
//
// Identity resolution failing means no session is written: there are no
// orphaned sessions for identities that were never verified.
func (s *Service) CreateSession(ctx context.Context, now time.Time, upstreamToken string, client ClientContext) (Issued, error) {
	ident, err := s.resolver.Resolve(ctx, upstreamToken)
	if err != nil {
		return Issued{}, fmt.Errorf("%w: %s", ErrIdentityResolution, err)
	}

	sess := Session{
		ID:               ulid.Make().String(),
		Identity:         ident,
		UpstreamToken:    upstreamToken,
		Generation:       1,
		IssuedAt:         now,
		AccessExpiresAt:  now.Add(s.cfg.AccessTokenTTL),
		RefreshExpiresAt: now.Add(s.cfg.RefreshTokenTTL),
		IssuingIP:        client.IP,
		IssuingUserAgent: client.UserAgent,
	}

	if err := s.store.Put(ctx, sess); err != nil {
		return Issued{}, err
	}

	return s.sign(now, sess)
}

// ValidateAccess verifies an access token by key alone. The store is never
// consulted: access tokens are the fast path, and revocation propagates
// within one access TTL via rotation.
func (s *Service) ValidateAccess(token string, now time.Time) (AccessClaims, error) {
	return s.access.Verify(token, now)
}

// Rotate validates a presented refresh token, advances the session
// generation atomically, and returns a fresh access/refresh pair bound to
// the same session. There is no window in which both the old and the new
// refresh token are valid.
//
// A refresh token pointing at a revoked session, or at a generation the
// session has moved past, is a replay. The session is revoked defensively
// (it may already be revoked; Revoke is idempotent) and ErrReplayDetected
// is returned. New tokens are never issued on that path.
func (s *Service) Rotate(ctx context.Context, now time.Time, refreshToken string, client ClientContext) (Issued, error) {
	claims, err := s.refresh.Verify(refreshToken, now)
	if err != nil {
		return Issued{}, err
	}

	rotated, err := s.store.Rotate(ctx, RotateInput{
		SessionID:        claims.SessionID,
		FromGeneration:   claims.Generation,
		Now:              now,
		AccessExpiresAt:  now.Add(s.cfg.AccessTokenTTL),
		RefreshExpiresAt: now.Add(s.cfg.RefreshTokenTTL),
		Client:           client,
	})
	switch {
	case errors.Is(err, ErrSessionRevoked), errors.Is(err, ErrStaleGeneration):
		_ = s.store.Revoke(ctx, now, claims.SessionID, "replay")
		return Issued{}, ErrReplayDetected
	case err != nil:
		return Issued{}, err
	}

	return s.sign(now, rotated)
}

// GetSession loads a live session record. Used by the cookie bootstrap
// endpoint, which needs profile fields the access token does not carry.
func (s *Service) GetSession(ctx context.Context, now time.Time, sessionID string) (Session, error) {
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	if sess.Revoked() {
		return Session{}, ErrSessionRevoked
	}
	if sess.Expired(now) {
		return Session{}, ErrSessionNotFound
	}
	return sess, nil
}

// Logout revokes a single session. Idempotent: revoking twice leaves the
// same terminal state and no error.
func (s *Service) Logout(ctx context.Context, now time.Time, sessionID string) error {
	return s.store.Revoke(ctx, now, sessionID, "logout")
}

// RevokeAllForUser revokes every session for a user (logout everywhere).
func (s *Service) RevokeAllForUser(ctx context.Context, now time.Time, userID int64) error {
	return s.store.RevokeAllForUser(ctx, now, userID)
}

// SweepExpired drops expired session records. Best-effort hygiene only;
// correctness never depends on it.
func (s *Service) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	return s.store.DeleteExpired(ctx, now)
}

func (s *Service) sign(now time.Time, sess Session) (Issued, error) {
	accessToken, accessExp, err := s.access.Issue(sess.Identity, sess.ID, sess.UpstreamToken, now)
	if err != nil {
		return Issued{}, err
	}

	refreshToken, err := s.refresh.Issue(sess.ID, sess.Generation, now, sess.RefreshExpiresAt)
	if err != nil {
		return Issued{}, err
	}

	return Issued{
		SessionID:    sess.ID,
		Identity:     sess.Identity,
		AccessToken:  accessToken,
		AccessExp:    accessExp,
		RefreshToken: refreshToken,
		RefreshExp:   sess.RefreshExpiresAt,
	}, nil
}
