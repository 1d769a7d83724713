package oauth

import (
	"os"
	"time"
)

// Config holds the GitHub OAuth application settings.
type Config struct {
	// ClientID and ClientSecret identify the registered GitHub OAuth app.
	ClientID     string
	ClientSecret string

	// RedirectURL is the callback this service registered with GitHub.
	RedirectURL string

	// Scopes requested during authorization.
	Scopes []string

	// Endpoint overrides, used by tests to point at a fake GitHub. Empty
	// values fall back to the public github.com endpoints.
	AuthorizeURL string
	TokenURL     string
	APIBaseURL   string

	// HTTPTimeout bounds every upstream call.
	HTTPTimeout time.Duration
}

// DefaultConfig returns a configuration pointed at the public GitHub
// endpoints with the scopes gitfolio needs.
func DefaultConfig() Config {
	return Config{
		Scopes:       []string{"read:user", "user:email"},
		AuthorizeURL: "https://github.com/login/oauth/authorize",
		TokenURL:     "https://github.com/login/oauth/access_token",
		APIBaseURL:   "https://api.github.com",
		HTTPTimeout:  10 * time.Second,
	}
}

// LoadConfigFromEnv loads OAuth configuration from environment variables.
//
// Required:
//   - GITFOLIO_GITHUB_CLIENT_ID
//   - GITFOLIO_GITHUB_CLIENT_SECRET
//   - GITFOLIO_GITHUB_REDIRECT_URL
//
// Optional:
//   - GITFOLIO_GITHUB_AUTHORIZE_URL
//   - GITFOLIO_GITHUB_TOKEN_URL
//   - GITFOLIO_GITHUB_API_URL
//   - GITFOLIO_GITHUB_TIMEOUT
//
// Returns ErrConfig if a required value is missing.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	cfg.ClientID = os.Getenv("GITFOLIO_GITHUB_CLIENT_ID")
	cfg.ClientSecret = os.Getenv("GITFOLIO_GITHUB_CLIENT_SECRET")
	cfg.RedirectURL = os.Getenv("GITFOLIO_GITHUB_REDIRECT_URL")
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RedirectURL == "" {
		return Config{}, ErrConfig
	}

	if v := os.Getenv("GITFOLIO_GITHUB_AUTHORIZE_URL"); v != "" {
		cfg.AuthorizeURL = v
	}
	if v := os.Getenv("GITFOLIO_GITHUB_TOKEN_URL"); v != "" {
		cfg.TokenURL = v
	}
	if v := os.Getenv("GITFOLIO_GITHUB_API_URL"); v != "" {
		cfg.APIBaseURL = v
	}
	if v := os.Getenv("GITFOLIO_GITHUB_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.HTTPTimeout = d
	}

	return cfg, nil
}
