package auth

import (
	"net/http"
	"time"
)

const (
	// SessionCookieName carries the session token
	SessionCookieName = "session_token"
	// SessionCookieMaxAge is the cookie lifetime in seconds (7 days)
	SessionCookieMaxAge = 7 * 24 * 60 * 60
)

// SetSessionCookie writes the session cookie. Secure is only set in production
// so the cookie still works over plain HTTP during development.
func SetSessionCookie(w http.ResponseWriter, token string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   SessionCookieMaxAge,
		Expires:  time.Now().Add(SessionCookieMaxAge * time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie in the browser
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// TokenFromRequest returns the session token carried by the request cookie
func TokenFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
