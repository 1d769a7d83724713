package api

import (
	"net"
	"net/http"
	"strings"
	"time"

	"gitfolio/cmd/internal/auth/session"
)

func (h *Handler) setAuthCookies(w http.ResponseWriter, issued session.Issued, now time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessCookieName,
		Value:    issued.AccessToken,
		Path:     "/",
		Domain:   h.cfg.CookieDomain,
		MaxAge:   int(issued.AccessExp.Sub(now) / time.Second),
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// The refresh cookie rides only on /auth so it never accompanies
	// ordinary API traffic.
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    issued.RefreshToken,
		Path:     "/auth",
		Domain:   h.cfg.CookieDomain,
		MaxAge:   int(issued.RefreshExp.Sub(now) / time.Second),
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearAuthCookies(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.cfg.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/auth",
		Domain:   h.cfg.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// accessTokenFromRequest reads the access token from a Bearer
// Authorization header, falling back to the cookie for browser traffic.
// A non-Bearer Authorization header (Basic, a proxy's scheme) is simply
// not ours and must not mask a valid cookie session.
func accessTokenFromRequest(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			if token := strings.TrimSpace(parts[1]); token != "" {
				return token
			}
		}
	}

	if c, err := r.Cookie(accessCookieName); err == nil {
		return c.Value
	}
	return ""
}

func refreshTokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(refreshCookieName); err == nil {
		return c.Value
	}
	return ""
}

// clientIP derives the requester's IP, honoring proxy headers only when
// the deployment says they can be trusted.
func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if v := r.Header.Get("X-Forwarded-For"); v != "" {
			first := strings.TrimSpace(strings.Split(v, ",")[0])
			if ip := net.ParseIP(first); ip != nil {
				return ip
			}
		}
		if v := r.Header.Get("X-Real-IP"); v != "" {
			if ip := net.ParseIP(v); ip != nil {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return net.ParseIP(r.RemoteAddr)
	}
	return net.ParseIP(host)
}

func (h *Handler) clientContext(r *http.Request) session.ClientContext {
	return session.ClientContext{
		IP:        clientIP(r, h.cfg.TrustProxy),
		UserAgent: r.UserAgent(),
	}
}
