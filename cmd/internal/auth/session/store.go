package session

import (
	"context"
	"net"
	"time"
)

// Identity is the resolved GitHub identity a session is bound to.
type Identity struct {
	UserID    int64
	Login     string
	Name      string
	Email     string
	AvatarURL string
}

// ClientContext describes the client that initiated issuance or rotation.
// IP and user agent are recorded for anomaly comparison, never enforced.
type ClientContext struct {
	IP        net.IP
	UserAgent string
}

// Session is the durable unit of trust. One record per login; rotation
// advances Generation in place, logout and replay detection set RevokedAt.
type Session struct {
	ID       string
	Identity Identity

	// UpstreamToken is the GitHub OAuth access token. It is the one piece
	// of secret material kept server-side and never appears outside
	// encrypted or httpOnly channels.
	UpstreamToken string

	// Generation is monotonic, starting at 1. The current refresh token
	// embeds it; a mismatch on rotation means a stale or replayed token.
	Generation int64

	IssuedAt         time.Time
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time

	IssuingIP        net.IP
	IssuingUserAgent string

	RevokedAt        *time.Time
	RevocationReason string
}

// Revoked reports whether the session has been revoked. A revoked session
// is terminal; a new login creates a new session.
func (s Session) Revoked() bool { return s.RevokedAt != nil }

// Expired reports whether the refresh window has elapsed.
func (s Session) Expired(now time.Time) bool { return !s.RefreshExpiresAt.After(now) }

// RotateInput carries everything a store needs to advance a session's
// generation atomically.
type RotateInput struct {
	SessionID      string
	FromGeneration int64
	Now            time.Time

	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	Client           ClientContext
}

// Store abstracts persistence for session state.
//
// Implementations must provide read-your-writes consistency and make Rotate
// a single-record atomic update: of two concurrent rotations from the same
// generation, exactly one may succeed.
type Store interface {
	// Put writes a new session record.
	Put(ctx context.Context, s Session) error

	// Get loads a session by id. Missing records return ErrSessionNotFound.
	Get(ctx context.Context, sessionID string) (Session, error)

	// Rotate advances the session generation by one, writing new expiries
	// and issuing metadata, if and only if the record is live and its
	// generation equals FromGeneration. Returns the updated session, or
	// ErrSessionNotFound (absent or expired record), ErrSessionRevoked,
	// or ErrStaleGeneration.
	Rotate(ctx context.Context, in RotateInput) (Session, error)

	// Revoke marks a session revoked (idempotent; first reason wins).
	Revoke(ctx context.Context, now time.Time, sessionID string, reason string) error

	// RevokeAllForUser revokes every session owned by a user (idempotent).
	RevokeAllForUser(ctx context.Context, now time.Time, userID int64) error

	// DeleteExpired drops records whose refresh window has elapsed. It is
	// best-effort hygiene, never a correctness dependency: expired records
	// are already treated as invalid on lookup.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
