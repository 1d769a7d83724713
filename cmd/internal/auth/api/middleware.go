package api

import (
	"context"
	"errors"
	"net/http"

	"gitfolio/cmd/internal/auth/session"
)

type contextKey int

const claimsKey contextKey = iota

// ClaimsFromContext returns the access claims attached by RequireAuth.
func ClaimsFromContext(ctx context.Context) (session.AccessClaims, bool) {
	claims, ok := ctx.Value(claimsKey).(session.AccessClaims)
	return claims, ok
}

// RequireAuth authenticates the request from its access token alone and
// attaches the resulting claims to the context. No store access happens
// here; this is the hot path every protected endpoint goes through.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := accessTokenFromRequest(r)
		if token == "" {
			h.metrics.AuthFailures.WithLabelValues("missing").Inc()
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		claims, err := h.sessions.ValidateAccess(token, h.now())
		if err != nil {
			reason := "invalid"
			if errors.Is(err, session.ErrTokenExpired) {
				reason = "expired"
			}
			h.metrics.AuthFailures.WithLabelValues(reason).Inc()
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}
