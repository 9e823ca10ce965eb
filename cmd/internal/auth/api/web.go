package authapi

import (
	"net"
	"net/http"
	"strings"
	"time"

	"vidtube/cmd/internal/auth/gate"
	"vidtube/cmd/internal/auth/session"
)

// RefreshCookieName is the cookie carrying the refresh token.
const RefreshCookieName = "refreshToken"

// setAuthCookies writes the accessToken/refreshToken pair. Both cookies are
// HttpOnly: scripts never see tokens, the browser replays them.
func (h *Handler) setAuthCookies(w http.ResponseWriter, pair session.TokenPair) {
	h.setCookie(w, gate.AccessCookieName, pair.AccessToken, pair.AccessExp)
	h.setCookie(w, RefreshCookieName, pair.RefreshToken, pair.RefreshExp)
}

func (h *Handler) clearAuthCookies(w http.ResponseWriter) {
	h.expireCookie(w, gate.AccessCookieName)
	h.expireCookie(w, RefreshCookieName)
}

func (h *Handler) setCookie(w http.ResponseWriter, name, value string, exp time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     h.cfg.CookiePath,
		Domain:   h.cfg.CookieDomain,
		Expires:  exp,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: h.cfg.CookieSameSite,
	})
}

func (h *Handler) expireCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     h.cfg.CookiePath,
		Domain:   h.cfg.CookieDomain,
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: h.cfg.CookieSameSite,
	})
}

func refreshTokenFromCookie(r *http.Request) string {
	c, err := r.Cookie(RefreshCookieName)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

func parseForwardedIP(header string) net.IP {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil
	}
	// First hop is the client.
	first, _, _ := strings.Cut(header, ",")
	return net.ParseIP(strings.TrimSpace(first))
}
