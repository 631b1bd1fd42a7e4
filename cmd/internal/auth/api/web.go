package authapi

import (
	"net/http"
	"strings"
	"time"

	"tasker/cmd/internal/auth/session"
)

// setSessionCookies writes both tokens. Each cookie expires with its token.
func (h *Handler) setSessionCookies(w http.ResponseWriter, issued session.Issued) {
	h.setCookie(w, h.cfg.Cookies.AccessName, issued.AccessToken, issued.AccessExp)
	h.setCookie(w, h.cfg.Cookies.RefreshName, issued.RefreshToken, issued.RefreshExp)
}

func (h *Handler) clearSessionCookies(w http.ResponseWriter) {
	h.expireCookie(w, h.cfg.Cookies.AccessName)
	h.expireCookie(w, h.cfg.Cookies.RefreshName)
}

func (h *Handler) refreshTokenFromCookie(r *http.Request) string {
	c, err := r.Cookie(h.cfg.Cookies.RefreshName)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}

func (h *Handler) setCookie(w http.ResponseWriter, name, value string, exp time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     h.cfg.Cookies.Path,
		Domain:   h.cfg.Cookies.Domain,
		Expires:  exp,
		HttpOnly: true,
		Secure:   h.cfg.Cookies.Secure,
		SameSite: h.cfg.Cookies.SameSite,
	})
}

func (h *Handler) expireCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     h.cfg.Cookies.Path,
		Domain:   h.cfg.Cookies.Domain,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.Cookies.Secure,
		SameSite: h.cfg.Cookies.SameSite,
	})
}
