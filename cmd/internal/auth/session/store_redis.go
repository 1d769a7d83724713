package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	redisSessionKeyPrefix = "gitfolio:session:"
	redisUserIndexPrefix  = "gitfolio:user_sessions:"
)

// RedisStore implements Store over Redis. Each session is one JSON value
// keyed by id with a TTL matching the refresh window; a per-user set holds
// the ids so logout-everywhere can find them.
//
// Rotate and Revoke run inside WATCH transactions so concurrent writers
// conflict instead of clobbering each other.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func sessionKey(id string) string { return redisSessionKeyPrefix + id }

func userIndexKey(userID int64) string {
	return fmt.Sprintf("%s%d", redisUserIndexPrefix, userID)
}

// Put stores a new session record with a TTL covering the refresh window.
func (s *RedisStore) Put(ctx context.Context, sess Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}

	// The refresh window measured from the record's own clock, so Put
	// never consults the wall clock.
	ttl := sess.RefreshExpiresAt.Sub(sess.IssuedAt)
	if ttl <= 0 {
		return fmt.Errorf("put %s: refresh window is not in the future", sess.ID)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionKey(sess.ID), raw, ttl)
	pipe.SAdd(ctx, userIndexKey(sess.Identity.UserID), sess.ID)
	pipe.Expire(ctx, userIndexKey(sess.Identity.UserID), ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// Get loads a session by id.
func (s *RedisStore) Get(ctx context.Context, sessionID string) (Session, error) {
	raw, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, err
	}

	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Rotate advances the generation inside a WATCH transaction. A concurrent
// write between read and commit aborts the transaction, which surfaces as
// ErrStaleGeneration so the caller treats it like a lost race.
func (s *RedisStore) Rotate(ctx context.Context, in RotateInput) (Session, error) {
	var rotated Session

	key := sessionKey(in.SessionID)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrSessionNotFound
		}
		if err != nil {
			return err
		}

		var sess Session
		if err := json.Unmarshal(raw, &sess); err != nil {
			return err
		}

		if sess.Expired(in.Now) {
			return ErrSessionNotFound
		}
		if sess.Revoked() {
			return ErrSessionRevoked
		}
		if sess.Generation != in.FromGeneration {
			return ErrStaleGeneration
		}

		sess.Generation++
		sess.AccessExpiresAt = in.AccessExpiresAt
		sess.RefreshExpiresAt = in.RefreshExpiresAt
		sess.IssuingIP = in.Client.IP
		sess.IssuingUserAgent = in.Client.UserAgent

		next, err := json.Marshal(sess)
		if err != nil {
			return err
		}

		ttl := in.RefreshExpiresAt.Sub(in.Now)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, ttl)
			pipe.Expire(ctx, userIndexKey(sess.Identity.UserID), ttl)
			return nil
		})
		if err != nil {
			return err
		}

		rotated = sess
		return nil
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		// Lost the race to another rotation of the same session.
		return Session{}, ErrStaleGeneration
	}
	if err != nil {
		return Session{}, err
	}
	return rotated, nil
}

// revokeRetries bounds the optimistic-lock retry loop in Revoke.
const revokeRetries = 16

// Revoke marks a session revoked in place, keeping the remaining TTL so the
// tombstone outlives any refresh token still pointing at it.
//
// A WATCH conflict is retried: the conflicting writer may have been a
// concurrent rotation landing between our read and commit, and a revoke
// must stick even when it races the rotation it is punishing. The loop
// terminates because revocation is a terminal write; once any revoke
// commits, the next attempt reads Revoked() and returns without writing.
func (s *RedisStore) Revoke(ctx context.Context, now time.Time, sessionID string, reason string) error {
	key := sessionKey(sessionID)

	for i := 0; i < revokeRetries; i++ {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				return nil
			}
			if err != nil {
				return err
			}

			var sess Session
			if err := json.Unmarshal(raw, &sess); err != nil {
				return err
			}
			if sess.Revoked() {
				return nil
			}

			t := now
			sess.RevokedAt = &t
			sess.RevocationReason = reason

			next, err := json.Marshal(sess)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, next, redis.KeepTTL)
				return nil
			})
			return err
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("revoke %s: %w", sessionID, redis.TxFailedErr)
}

// RevokeAllForUser walks the per-user index and revokes each live session.
func (s *RedisStore) RevokeAllForUser(ctx context.Context, now time.Time, userID int64) error {
	ids, err := s.client.SMembers(ctx, userIndexKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	for _, id := range ids {
		if err := s.Revoke(ctx, now, id, "logout_all"); err != nil {
			return err
		}
	}
	return nil
}

// DeleteExpired is a no-op for Redis: the per-key TTL already evicts
// sessions when the refresh window closes.
func (s *RedisStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}
