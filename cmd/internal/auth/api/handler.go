// Package api exposes the auth subsystem over HTTP: the GitHub login
// redirect and callback, the session bootstrap endpoint, refresh rotation,
// and logout. Browsers authenticate via httpOnly cookies, API clients via
// bearer tokens; both paths converge on the same access token check.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"gitfolio/cmd/internal/auth/oauth"
	"gitfolio/cmd/internal/auth/session"
)

// Handler serves the /auth endpoints.
type Handler struct {
	log      *slog.Logger
	cfg      Config
	sessions *session.Service
	github   *oauth.Client
	states   *StateStore
	metrics  *Metrics

	now func() time.Time
}

// NewHandler constructs the auth HTTP handler.
func NewHandler(log *slog.Logger, cfg Config, sessions *session.Service, github *oauth.Client, metrics *Metrics) *Handler {
	return &Handler{
		log:      log,
		cfg:      cfg,
		sessions: sessions,
		github:   github,
		states:   NewStateStore(cfg.StateTTL),
		metrics:  metrics,
		now:      time.Now,
	}
}

// Register mounts the auth routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /auth/github", h.handleLogin)
	mux.HandleFunc("GET /auth/github/callback", h.handleCallback)
	mux.HandleFunc("GET /auth/session", h.handleSession)
	mux.HandleFunc("POST /auth/refresh", h.handleRefresh)
	mux.Handle("POST /auth/logout", h.RequireAuth(http.HandlerFunc(h.handleLogout)))
	mux.Handle("POST /auth/logout_all", h.RequireAuth(http.HandlerFunc(h.handleLogoutAll)))
}

// handleLogin starts the OAuth round trip: mint a state nonce bound to the
// requested post-login redirect and send the browser to GitHub.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	redirect := r.URL.Query().Get("redirect_uri")
	if !h.cfg.redirectAllowed(redirect) {
		redirect = h.cfg.DefaultRedirect
	}

	state := h.states.Issue(h.now(), redirect)
	http.Redirect(w, r, h.github.AuthorizationURL(state), http.StatusFound)
}

// handleCallback receives the browser back from GitHub. Every failure path
// redirects to the frontend with an error code instead of rendering JSON,
// since the caller here is always a browser mid-navigation.
func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	q := r.URL.Query()

	redirect, ok := h.states.Redeem(now, q.Get("state"))
	if !ok {
		h.log.Warn("oauth callback with unknown or expired state")
		h.redirectWithError(w, r, h.cfg.DefaultRedirect, "auth_failed")
		return
	}
	if redirect == "" {
		redirect = h.cfg.DefaultRedirect
	}

	if errCode := q.Get("error"); errCode != "" {
		// The user denied the authorization prompt, or GitHub refused.
		h.log.Info("oauth callback carried an error", "code", errCode)
		h.redirectWithError(w, r, redirect, "auth_failed")
		return
	}

	upstream, err := h.github.ExchangeCode(r.Context(), q.Get("code"))
	if err != nil {
		h.log.Warn("code exchange failed", "error", err)
		if errors.Is(err, oauth.ErrProviderUnavailable) {
			h.redirectWithError(w, r, redirect, "provider_error")
		} else {
			h.redirectWithError(w, r, redirect, "auth_failed")
		}
		return
	}

	issued, err := h.sessions.CreateSession(r.Context(), now, upstream, h.clientContext(r))
	if err != nil {
		h.log.Error("session creation failed", "error", err)
		if errors.Is(err, session.ErrIdentityResolution) {
			h.redirectWithError(w, r, redirect, "provider_error")
		} else {
			h.redirectWithError(w, r, redirect, "auth_failed")
		}
		return
	}

	h.metrics.SessionsIssued.Inc()
	h.log.Info("session issued",
		"session_id", issued.SessionID,
		"user", issued.Identity.Login,
	)

	h.setAuthCookies(w, issued, now)
	http.Redirect(w, r, appendQuery(redirect, "auth", "success"), http.StatusFound)
}

// handleSession bootstraps a page after the callback redirect: it turns the
// httpOnly access cookie into a bearer token plus the profile to render.
// This is the one authenticated read that touches the store, because the
// profile fields it returns are not carried in the token.
//
// "Not logged in" is a normal answer here, not an error: pages probe this
// endpoint on load, so the anonymous case is a 200 with success false.
func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	now := h.now()

	token := accessTokenFromRequest(r)
	if token == "" {
		writeJSON(w, http.StatusOK, okResponse{Success: false})
		return
	}

	claims, err := h.sessions.ValidateAccess(token, now)
	if err != nil {
		writeJSON(w, http.StatusOK, okResponse{Success: false})
		return
	}

	sess, err := h.sessions.GetSession(r.Context(), now, claims.SessionID)
	switch {
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, session.ErrSessionRevoked):
		writeJSON(w, http.StatusOK, okResponse{Success: false})
		return
	case err != nil:
		h.log.Error("session lookup failed", "error", err)
		writeError(w, http.StatusBadGateway, "store_unavailable")
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		Success:   true,
		Token:     token,
		ExpiresAt: claims.ExpiresAt,
		User: userPayload{
			ID:        sess.Identity.UserID,
			Login:     sess.Identity.Login,
			Name:      sess.Identity.Name,
			Email:     sess.Identity.Email,
			AvatarURL: sess.Identity.AvatarURL,
		},
	})
}

// handleRefresh rotates the refresh token and re-issues both cookies.
// Rejections stay coarse on purpose: a caller probing with stolen tokens
// learns only "unauthorized", never which check failed.
func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	now := h.now()

	token := refreshTokenFromRequest(r)
	if token == "" {
		// Non-browser clients send the token in the body instead.
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := decodeJSON(w, r, &body); err == nil {
			token = body.RefreshToken
		}
	}
	if token == "" {
		h.metrics.Rotations.WithLabelValues("rejected").Inc()
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	issued, err := h.sessions.Rotate(r.Context(), now, token, h.clientContext(r))
	switch {
	case err == nil:
		// Fall through to success below.
	case errors.Is(err, session.ErrReplayDetected):
		h.metrics.ReplaysDetected.Inc()
		h.metrics.Rotations.WithLabelValues("replay").Inc()
		h.log.Warn("refresh replay detected", "ip", clientIP(r, h.cfg.TrustProxy))
		h.clearAuthCookies(w)
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	case errors.Is(err, session.ErrTokenExpired),
		errors.Is(err, session.ErrInvalidToken),
		errors.Is(err, session.ErrSessionNotFound):
		h.metrics.Rotations.WithLabelValues("rejected").Inc()
		h.clearAuthCookies(w)
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	default:
		// Store trouble is not the caller's fault; do not kill their
		// cookies over it.
		h.metrics.Rotations.WithLabelValues("error").Inc()
		h.log.Error("rotation failed", "error", err)
		writeError(w, http.StatusBadGateway, "store_unavailable")
		return
	}

	h.metrics.Rotations.WithLabelValues("ok").Inc()
	h.setAuthCookies(w, issued, now)
	writeJSON(w, http.StatusOK, refreshResponse{
		Success:   true,
		Token:     issued.AccessToken,
		ExpiresAt: issued.AccessExp,
	})
}

// handleLogout revokes the caller's session. Always answers 200: from the
// client's point of view logout succeeded the moment the cookies die.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	if err := h.sessions.Logout(r.Context(), h.now(), claims.SessionID); err != nil {
		h.log.Error("logout revocation failed", "error", err, "session_id", claims.SessionID)
	}

	h.clearAuthCookies(w)
	writeJSON(w, http.StatusOK, okResponse{Success: true})
}

// handleLogoutAll revokes every session of the calling user.
func (h *Handler) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	if err := h.sessions.RevokeAllForUser(r.Context(), h.now(), claims.UserID); err != nil {
		h.log.Error("logout_all revocation failed", "error", err, "user_id", claims.UserID)
		writeError(w, http.StatusBadGateway, "store_unavailable")
		return
	}

	h.clearAuthCookies(w)
	writeJSON(w, http.StatusOK, okResponse{Success: true})
}

func (h *Handler) redirectWithError(w http.ResponseWriter, r *http.Request, target, code string) {
	http.Redirect(w, r, appendQuery(target, "error", code), http.StatusFound)
}

func appendQuery(target, key, value string) string {
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}
