// Package session implements gitfolio's session and token-lifecycle subsystem.
//
// A Session binds a verified GitHub identity and its upstream OAuth token to a
// rotating refresh-token generation. Access tokens are PASETO v4.local and are
// short-lived; because they are encrypted, the upstream GitHub token rides
// inside them and request authentication never touches the store. Refresh
// tokens are HS256 JWTs carrying the session id and generation, signed with an
// independent secret, and are validated against the store on every rotation.
//
// Presenting a refresh token whose generation has been rotated past (or whose
// session was logged out) is treated as replay: the session is revoked
// defensively and ErrReplayDetected is returned.
//
// HTTP transport lives in the api package.
package session
