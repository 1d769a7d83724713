package api

import (
	"errors"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrConfig is returned for invalid configuration.
var ErrConfig = errors.New("invalid config")

// Cookie names used by the auth surface. Both cookies are httpOnly; the
// browser carries tokens without script-visible storage.
const (
	accessCookieName  = "access_token"
	refreshCookieName = "refresh_token"
)

// Config holds HTTP-surface settings for the auth endpoints.
type Config struct {
	// CookieSecure sets the Secure flag on auth cookies. Disabled only for
	// plain-HTTP local development.
	CookieSecure bool

	// CookieDomain optionally scopes auth cookies to a parent domain.
	CookieDomain string

	// TrustProxy enables reading the client IP from X-Forwarded-For /
	// X-Real-IP. Only safe behind a proxy that overwrites those headers.
	TrustProxy bool

	// StateTTL bounds how long an OAuth state nonce stays redeemable.
	StateTTL time.Duration

	// AllowedRedirectHosts lists hosts a post-login redirect may target.
	// The callback refuses to redirect anywhere else.
	AllowedRedirectHosts []string

	// DefaultRedirect is where the callback sends the browser when the
	// login request named no redirect of its own.
	DefaultRedirect string
}

// DefaultConfig returns settings suitable for local development.
func DefaultConfig() Config {
	return Config{
		CookieSecure:    true,
		StateTTL:        10 * time.Minute,
		DefaultRedirect: "/",
	}
}

// LoadConfigFromEnv loads HTTP-surface configuration from environment
// variables:
//   - GITFOLIO_COOKIE_SECURE
//   - GITFOLIO_COOKIE_DOMAIN
//   - GITFOLIO_TRUST_PROXY
//   - GITFOLIO_STATE_TTL
//   - GITFOLIO_REDIRECT_HOSTS (comma separated)
//   - GITFOLIO_DEFAULT_REDIRECT
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	var err error
	if cfg.CookieSecure, err = envBool("GITFOLIO_COOKIE_SECURE", cfg.CookieSecure); err != nil {
		return Config{}, err
	}
	if cfg.TrustProxy, err = envBool("GITFOLIO_TRUST_PROXY", cfg.TrustProxy); err != nil {
		return Config{}, err
	}

	cfg.CookieDomain = os.Getenv("GITFOLIO_COOKIE_DOMAIN")

	if v := os.Getenv("GITFOLIO_STATE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.StateTTL = d
	}

	if v := os.Getenv("GITFOLIO_REDIRECT_HOSTS"); v != "" {
		for _, h := range strings.Split(v, ",") {
			if h = strings.TrimSpace(h); h != "" {
				cfg.AllowedRedirectHosts = append(cfg.AllowedRedirectHosts, h)
			}
		}
	}

	if v := os.Getenv("GITFOLIO_DEFAULT_REDIRECT"); v != "" {
		cfg.DefaultRedirect = v
	}

	return cfg, nil
}

// redirectAllowed reports whether the callback may send the browser to
// target. Relative paths are always fine; absolute URLs must name an
// allowed host.
func (c Config) redirectAllowed(target string) bool {
	if target == "" {
		return false
	}

	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	if u.Host == "" && u.Scheme == "" && strings.HasPrefix(u.Path, "/") && !strings.HasPrefix(u.Path, "//") {
		return true
	}

	for _, h := range c.AllowedRedirectHosts {
		if strings.EqualFold(u.Host, h) {
			return true
		}
	}
	return false
}

func envBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, ErrConfig
	}
	return b, nil
}
