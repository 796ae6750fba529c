package session

import (
	"net/http"
	"strings"
	"time"
)

const cookieBase = "clinic"

// CookieNames are the names of the three auth cookies for one deployment
// mode. Secure deployments use the __Secure-/__Host- prefixes so browsers
// refuse them over plain HTTP or from a subdomain.
type CookieNames struct {
	Session     string
	CallbackURL string
	CSRF        string
}

func Names(secure bool) CookieNames {
	if secure {
		return CookieNames{
			Session:     "__Secure-" + cookieBase + ".session-token",
			CallbackURL: "__Secure-" + cookieBase + ".callback-url",
			CSRF:        "__Host-" + cookieBase + ".csrf-token",
		}
	}
	return CookieNames{
		Session:     cookieBase + ".session-token",
		CallbackURL: cookieBase + ".callback-url",
		CSRF:        cookieBase + ".csrf-token",
	}
}

// CookieOptions builds http.Cookie values with the shared attributes:
// httpOnly, SameSite=Lax, Path=/, Secure per deployment.
type CookieOptions struct {
	Names  CookieNames
	Secure bool
}

func NewCookieOptions(secure bool) CookieOptions {
	return CookieOptions{Names: Names(secure), Secure: secure}
}

func (o CookieOptions) cookie(name, value string, maxAge time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (o CookieOptions) SessionCookie(token string, maxAge time.Duration) *http.Cookie {
	return o.cookie(o.Names.Session, token, maxAge)
}

func (o CookieOptions) CSRFCookie(token string) *http.Cookie {
	// Session-scoped: no MaxAge.
	return o.cookie(o.Names.CSRF, token, 0)
}

func (o CookieOptions) CallbackCookie(url string) *http.Cookie {
	return o.cookie(o.Names.CallbackURL, url, 0)
}

// Expire returns a cookie that deletes name on the client.
func (o CookieOptions) Expire(name string) *http.Cookie {
	c := o.cookie(name, "", 0)
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0)
	return c
}

// SafeCallbackURL accepts only same-origin relative paths.
func SafeCallbackURL(u string) bool {
	return strings.HasPrefix(u, "/") && !strings.HasPrefix(u, "//") && !strings.Contains(u, `\`)
}
