package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the dev fallback when neither Postgres nor Redis is
// configured. One mutex guards the whole map, which also makes Rotate's
// generation check atomic.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Session
}

// NewMemoryStore constructs an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

// Put writes a new session record.
func (s *MemoryStore) Put(ctx context.Context, sess Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return nil
}

// Get loads a session by id.
func (s *MemoryStore) Get(ctx context.Context, sessionID string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return sess, nil
}

// Rotate advances the generation under the store lock; of two concurrent
// rotations from the same generation exactly one observes a match.
func (s *MemoryStore) Rotate(ctx context.Context, in RotateInput) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[in.SessionID]
	if !ok || sess.Expired(in.Now) {
		return Session{}, ErrSessionNotFound
	}
	if sess.Revoked() {
		return Session{}, ErrSessionRevoked
	}
	if sess.Generation != in.FromGeneration {
		return Session{}, ErrStaleGeneration
	}

	sess.Generation++
	sess.AccessExpiresAt = in.AccessExpiresAt
	sess.RefreshExpiresAt = in.RefreshExpiresAt
	sess.IssuingIP = in.Client.IP
	sess.IssuingUserAgent = in.Client.UserAgent

	s.sessions[in.SessionID] = sess
	return sess, nil
}

// Revoke marks a session revoked. Unknown ids and already-revoked sessions
// are no-ops; the first revocation reason wins.
func (s *MemoryStore) Revoke(ctx context.Context, now time.Time, sessionID string, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok || sess.Revoked() {
		return nil
	}

	t := now
	sess.RevokedAt = &t
	sess.RevocationReason = reason
	s.sessions[sessionID] = sess
	return nil
}

// RevokeAllForUser revokes every session owned by userID.
func (s *MemoryStore) RevokeAllForUser(ctx context.Context, now time.Time, userID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sess := range s.sessions {
		if sess.Identity.UserID != userID || sess.Revoked() {
			continue
		}
		t := now
		sess.RevokedAt = &t
		sess.RevocationReason = "logout_all"
		s.sessions[id] = sess
	}
	return nil
}

// DeleteExpired drops sessions whose refresh window has elapsed.
func (s *MemoryStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}
