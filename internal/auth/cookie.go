package auth

import (
	"net/http"
	"time"
)

// CookieName is the single session cookie carrying the opaque token.
const CookieName = "token"

// Cookies writes and clears the session cookie with one fixed policy.
type Cookies struct {
	Domain string
	Secure bool
}

func (c Cookies) base() *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Path:     "/",
		Domain:   c.Domain,
		Secure:   c.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// Set stores token in the cookie until expires.
func (c Cookies) Set(w http.ResponseWriter, token string, expires time.Time) {
	ck := c.base()
	ck.Value = token
	ck.Expires = expires
	http.SetCookie(w, ck)
}

// Clear tells the client to drop the session cookie.
func (c Cookies) Clear(w http.ResponseWriter) {
	ck := c.base()
	ck.Expires = time.Unix(0, 0)
	ck.MaxAge = -1
	http.SetCookie(w, ck)
}
