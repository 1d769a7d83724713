// Package oauth implements the GitHub side of login: building the
// authorization redirect, exchanging the callback code for an upstream
// access token, and resolving the identity behind that token.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"gitfolio/cmd/internal/auth/session"
)

// Client talks to GitHub's OAuth and REST endpoints.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient constructs a GitHub OAuth client.
func NewClient(cfg Config) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.HTTPTimeout},
	}
}

// AuthorizationURL builds the GitHub authorize redirect carrying the
// anti-CSRF state nonce.
func (c *Client) AuthorizationURL(state string) string {
	q := url.Values{}
	q.Set("client_id", c.cfg.ClientID)
	q.Set("redirect_uri", c.cfg.RedirectURL)
	q.Set("scope", strings.Join(c.cfg.Scopes, " "))
	q.Set("state", state)

	return c.cfg.AuthorizeURL + "?" + q.Encode()
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	Scope            string `json:"scope"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// ExchangeCode trades a callback code for an upstream GitHub access token.
//
// GitHub signals rejection in-band: a 200 response whose body carries an
// "error" field. That maps to ErrExchange, while transport failures and
// 5xx responses map to ErrProviderUnavailable so callers can tell the
// user's mistake from GitHub being down.
func (c *Client) ExchangeCode(ctx context.Context, code string) (string, error) {
	form := url.Values{}
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("code", code)
	form.Set("redirect_uri", c.cfg.RedirectURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return "", fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrExchange, resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&tr); err != nil {
		return "", fmt.Errorf("%w: %s", ErrProviderUnavailable, err)
	}
	if tr.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrExchange, tr.Error)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrExchange)
	}

	return tr.AccessToken, nil
}

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// Resolve fetches the identity behind an upstream token from GET /user.
// GitHub hides the email on /user for users with a private email, so an
// empty email triggers a follow-up to /user/emails for the primary one.
//
// Resolve satisfies session.IdentityResolver.
func (c *Client) Resolve(ctx context.Context, upstreamToken string) (session.Identity, error) {
	var user githubUser
	if err := c.apiGet(ctx, upstreamToken, "/user", &user); err != nil {
		return session.Identity{}, err
	}
	if user.ID == 0 || user.Login == "" {
		return session.Identity{}, fmt.Errorf("incomplete user response for /user")
	}

	if user.Email == "" {
		var emails []githubEmail
		// Best effort: a missing email is not fatal.
		if err := c.apiGet(ctx, upstreamToken, "/user/emails", &emails); err == nil {
			for _, e := range emails {
				if e.Primary && e.Verified {
					user.Email = e.Email
					break
				}
			}
		}
	}

	return session.Identity{
		UserID:    user.ID,
		Login:     user.Login,
		Name:      user.Name,
		Email:     user.Email,
		AvatarURL: user.AvatarURL,
	}, nil
}

func (c *Client) apiGet(ctx context.Context, token, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIBaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github %s: status %d", path, resp.StatusCode)
	}

	return json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out)
}
