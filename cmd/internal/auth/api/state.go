package api

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type stateEntry struct {
	redirect string
	expires  time.Time
}

// StateStore issues single-use anti-CSRF nonces for the OAuth round trip.
// Each nonce remembers the post-login redirect the client asked for.
type StateStore struct {
	ttl time.Duration

	mu     sync.Mutex
	states map[string]stateEntry
}

// NewStateStore constructs a StateStore whose nonces expire after ttl.
func NewStateStore(ttl time.Duration) *StateStore {
	return &StateStore{
		ttl:    ttl,
		states: make(map[string]stateEntry),
	}
}

// Issue mints a fresh nonce bound to the given redirect target.
func (s *StateStore) Issue(now time.Time, redirect string) string {
	state := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Opportunistic cleanup keeps abandoned logins from accumulating.
	for k, e := range s.states {
		if !e.expires.After(now) {
			delete(s.states, k)
		}
	}

	s.states[state] = stateEntry{redirect: redirect, expires: now.Add(s.ttl)}
	return state
}

// Redeem consumes a nonce, returning the redirect it was bound to. A nonce
// redeems at most once; unknown or expired nonces fail.
func (s *StateStore) Redeem(now time.Time, state string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.states[state]
	if !ok {
		return "", false
	}
	delete(s.states, state)

	if !e.expires.After(now) {
		return "", false
	}
	return e.redirect, true
}
