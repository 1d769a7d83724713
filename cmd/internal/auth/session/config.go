package session

import (
	"os"
	"strings"
	"time"
)

// Config defines all runtime configuration for the session subsystem.
//
// It controls access/refresh TTLs, clock skew tolerance, and the two
// independent signing secrets. Two key classes are deliberate: leaking the
// refresh secret must not allow forging access tokens, and vice versa.
type Config struct {
	// Issuer is the value set in the "iss" claim of both token families.
	Issuer string

	// AccessTokenTTL defines the lifetime of PASETO v4.local access tokens.
	// It also bounds revocation propagation, since access verification
	// never consults the store.
	AccessTokenTTL time.Duration

	// RefreshTokenTTL defines the refresh window of a session. Each
	// successful rotation starts a fresh window.
	RefreshTokenTTL time.Duration

	// ClockSkew is the allowed time skew during token validation.
	ClockSkew time.Duration

	// AccessKeyHex is the hex-encoded 32-byte symmetric key used to
	// encrypt PASETO v4.local access tokens.
	AccessKeyHex string

	// RefreshSecret is the HMAC secret for HS256 refresh tokens.
	// Independent from AccessKeyHex; minimum 32 bytes.
	RefreshSecret string
}

// DefaultConfig returns a secure default configuration suitable for
// development. Production deployments override values via environment
// variables.
func DefaultConfig() Config {
	return Config{
		Issuer:          "gitfolio",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		ClockSkew:       30 * time.Second,
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Required:
//   - GITFOLIO_ACCESS_KEY_HEX (64 hex chars)
//   - GITFOLIO_REFRESH_SECRET (>= 32 bytes)
//
// Optional (durations must be valid Go duration strings):
//   - GITFOLIO_AUTH_ISSUER
//   - GITFOLIO_AUTH_ACCESS_TTL
//   - GITFOLIO_AUTH_REFRESH_TTL
//   - GITFOLIO_AUTH_CLOCK_SKEW
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("GITFOLIO_AUTH_ISSUER"); v != "" {
		cfg.Issuer = v
	}

	if v := os.Getenv("GITFOLIO_AUTH_ACCESS_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.AccessTokenTTL = d
	}

	if v := os.Getenv("GITFOLIO_AUTH_REFRESH_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.RefreshTokenTTL = d
	}

	if v := os.Getenv("GITFOLIO_AUTH_CLOCK_SKEW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, ErrConfig
		}
		cfg.ClockSkew = d
	}

	cfg.AccessKeyHex = strings.TrimSpace(os.Getenv("GITFOLIO_ACCESS_KEY_HEX"))
	if len(cfg.AccessKeyHex) != 64 {
		return Config{}, ErrConfig
	}

	cfg.RefreshSecret = strings.TrimSpace(os.Getenv("GITFOLIO_REFRESH_SECRET"))
	if len(cfg.RefreshSecret) < 32 {
		return Config{}, ErrConfig
	}

	// Invariants: the access window must sit inside the refresh window,
	// and the two secrets must actually be independent.
	if cfg.AccessTokenTTL >= cfg.RefreshTokenTTL {
		return Config{}, ErrConfig
	}
	if cfg.AccessKeyHex == cfg.RefreshSecret {
		return Config{}, ErrConfig
	}

	return cfg, nil
}
