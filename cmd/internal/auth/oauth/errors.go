package oauth

import "errors"

var (
	// ErrExchange is returned when GitHub rejects the authorization code.
	// The code may be expired, already used, or simply wrong.
	ErrExchange = errors.New("oauth code exchange rejected")

	// ErrProviderUnavailable is returned when GitHub cannot be reached or
	// answers with a server error. Retryable, unlike ErrExchange.
	ErrProviderUnavailable = errors.New("oauth provider unavailable")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)
