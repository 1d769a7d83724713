package session

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using PostgreSQL (gitfolio.sessions).
// Rotation runs inside a transaction with a row lock so the generation
// check and the update are a single atomic step.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed session store. The pool is
// owned by the caller; Close is the app's job.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const sessionColumns = `
	id, user_id, login, name, email, avatar_url,
	upstream_token, generation,
	issued_at, access_expires_at, refresh_expires_at,
	issuing_ip, issuing_user_agent, revoked_at, revocation_reason
`

// Put inserts a new session row.
func (s *PostgresStore) Put(ctx context.Context, sess Session) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO gitfolio.sessions (`+sessionColumns+`)
		VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8,
			$9, $10, $11,
			$12, $13, NULL, NULL
		)
	`,
		sess.ID, sess.Identity.UserID, sess.Identity.Login, sess.Identity.Name,
		sess.Identity.Email, sess.Identity.AvatarURL,
		sess.UpstreamToken, sess.Generation,
		sess.IssuedAt, sess.AccessExpiresAt, sess.RefreshExpiresAt,
		nullIfEmpty(ipString(sess.IssuingIP)), nullIfEmpty(sess.IssuingUserAgent),
	)
	return err
}

// Get loads a session row by id.
func (s *PostgresStore) Get(ctx context.Context, sessionID string) (Session, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM gitfolio.sessions
		WHERE id = $1
	`, sessionID)

	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Rotate locks the session row, validates liveness and generation, and
// advances the record in place.
func (s *PostgresStore) Rotate(ctx context.Context, in RotateInput) (Session, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Session{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM gitfolio.sessions
		WHERE id = $1
		FOR UPDATE
	`, in.SessionID)

	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, err
	}

	if sess.Expired(in.Now) {
		return Session{}, ErrSessionNotFound
	}
	if sess.Revoked() {
		return Session{}, ErrSessionRevoked
	}
	if sess.Generation != in.FromGeneration {
		return Session{}, ErrStaleGeneration
	}

	_, err = tx.Exec(ctx, `
		UPDATE gitfolio.sessions
		SET
			generation = generation + 1,
			access_expires_at = $2,
			refresh_expires_at = $3,
			issuing_ip = $4,
			issuing_user_agent = $5
		WHERE id = $1
	`, in.SessionID, in.AccessExpiresAt, in.RefreshExpiresAt,
		nullIfEmpty(ipString(in.Client.IP)), nullIfEmpty(in.Client.UserAgent))
	if err != nil {
		return Session{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Session{}, err
	}

	sess.Generation++
	sess.AccessExpiresAt = in.AccessExpiresAt
	sess.RefreshExpiresAt = in.RefreshExpiresAt
	sess.IssuingIP = in.Client.IP
	sess.IssuingUserAgent = in.Client.UserAgent
	return sess, nil
}

// Revoke revokes a single session (idempotent, first reason wins).
func (s *PostgresStore) Revoke(ctx context.Context, now time.Time, sessionID string, reason string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE gitfolio.sessions
		SET revoked_at = COALESCE(revoked_at, $2),
		    revocation_reason = COALESCE(revocation_reason, $3)
		WHERE id = $1
	`, sessionID, now, reason)
	return err
}

// RevokeAllForUser revokes all sessions for a user (idempotent).
func (s *PostgresStore) RevokeAllForUser(ctx context.Context, now time.Time, userID int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE gitfolio.sessions
		SET revoked_at = COALESCE(revoked_at, $2),
		    revocation_reason = COALESCE(revocation_reason, 'logout_all')
		WHERE user_id = $1
	`, userID, now)
	return err
}

// DeleteExpired drops rows whose refresh window has elapsed.
func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM gitfolio.sessions
		WHERE refresh_expires_at <= $1
	`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanSession(row pgx.Row) (Session, error) {
	var (
		sess             Session
		issuingIP        *string
		issuingUserAgent *string
		revocationReason *string
	)

	err := row.Scan(
		&sess.ID,
		&sess.Identity.UserID,
		&sess.Identity.Login,
		&sess.Identity.Name,
		&sess.Identity.Email,
		&sess.Identity.AvatarURL,
		&sess.UpstreamToken,
		&sess.Generation,
		&sess.IssuedAt,
		&sess.AccessExpiresAt,
		&sess.RefreshExpiresAt,
		&issuingIP,
		&issuingUserAgent,
		&sess.RevokedAt,
		&revocationReason,
	)
	if err != nil {
		return Session{}, err
	}

	if issuingIP != nil {
		sess.IssuingIP = net.ParseIP(*issuingIP)
	}
	if issuingUserAgent != nil {
		sess.IssuingUserAgent = *issuingUserAgent
	}
	if revocationReason != nil {
		sess.RevocationReason = *revocationReason
	}
	return sess, nil
}

func ipString(ip net.IP) string {
	if ip == nil {
		return ""
	}
	return ip.String()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
