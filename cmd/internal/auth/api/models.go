package api

import "time"

type userPayload struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// sessionResponse is what the session bootstrap endpoint hands a page that
// just landed from the OAuth callback: the bearer token for API calls plus
// the profile to render.
type sessionResponse struct {
	Success   bool        `json:"success"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      userPayload `json:"user"`
}

type refreshResponse struct {
	Success   bool      `json:"success"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type okResponse struct {
	Success bool `json:"success"`
}
