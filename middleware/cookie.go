package middleware

import (
	"math"
	"net/http"
	"time"

	"github.com/MrEthical07/rolegate"
)

// SetSessionCookie stores token in the session cookie named by cfg. The
// cookie expires with the token: MaxAge is the time left until expiresAt,
// rounded up to a whole second. A zero expiresAt falls back to the JWT TTL.
func SetSessionCookie(w http.ResponseWriter, cfg rolegate.Config, token string, expiresAt time.Time) {
	maxAge := int(cfg.JWT.TTL.Seconds())
	if !expiresAt.IsZero() {
		maxAge = cookieMaxAge(time.Until(expiresAt))
	}
	if maxAge <= 0 {
		ClearSessionCookie(w, cfg)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.Security.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   cfg.Security.RequireSecureCookies,
		SameSite: cfg.Security.SameSitePolicy,
	})
}

func cookieMaxAge(left time.Duration) int {
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Seconds()))
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(w http.ResponseWriter, cfg rolegate.Config) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.Security.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Security.RequireSecureCookies,
		SameSite: cfg.Security.SameSitePolicy,
	})
}
