package session

import "errors"

var (
	// ErrInvalidToken is returned when an access or refresh token fails
	// signature verification or carries malformed claims.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when a token's expiry has passed.
	ErrTokenExpired = errors.New("token expired")

	// ErrSessionNotFound is returned when a session id does not match any
	// live session record. Expired records count as not found.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionRevoked is returned by stores when an operation hits a
	// session that has already been revoked.
	ErrSessionRevoked = errors.New("session revoked")

	// ErrStaleGeneration is returned by stores when a rotation is attempted
	// from a generation the session has already advanced past.
	ErrStaleGeneration = errors.New("stale refresh generation")

	// ErrReplayDetected is returned when a rotated-away or logged-out
	// refresh token is presented again. The session is revoked defensively
	// before this error surfaces.
	ErrReplayDetected = errors.New("refresh token replay detected")

	// ErrIdentityResolution is returned when the upstream identity call
	// fails after a successful code exchange. No session is created.
	ErrIdentityResolution = errors.New("identity resolution failed")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)
