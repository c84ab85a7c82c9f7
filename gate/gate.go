// Package gate guards the admin UI and admin API behind a single shared
// session token carried in a cookie.
package gate

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	// CookieName is the cookie holding the admin session token.
	CookieName = "admin_session"

	// LoginPath is where denied admin UI requests are sent.
	LoginPath = "/admin/login"

	// LoginAPIPath accepts password submissions without a session.
	LoginAPIPath = "/api/admin/login"

	uiPrefix  = "/admin"
	apiPrefix = "/api/admin"
)

// Decision is the outcome of checking one request.
type Decision int

const (
	// Allow lets the request reach its handler.
	Allow Decision = iota
	// Redirect sends an admin UI request to the login page.
	Redirect
	// Unauthorized rejects an admin API request with 401.
	Unauthorized
	// Misconfigured rejects an admin API request with 500 because no token is configured.
	Misconfigured
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Redirect:
		return "redirect"
	case Unauthorized:
		return "unauthorized"
	case Misconfigured:
		return "misconfigured"
	default:
		return "unknown"
	}
}

// Config carries the admin secrets. Password is checked at login; Token is
// the cookie value the gate accepts.
type Config struct {
	Password string
	Token    string
}

// Configured reports whether both secrets are set. Login refuses to issue a
// session otherwise.
func (c Config) Configured() bool {
	return c.Password != "" && c.Token != ""
}

// Valid reports whether cookie carries the configured token. An empty token
// never matches, so an unconfigured server has no admin sessions.
func Valid(token, cookie string) bool {
	if token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cookie), []byte(token)) == 1
}

// Decide classifies a request for path presenting cookie against the
// configured token. It has no side effects.
func Decide(token, cookie, path string) Decision {
	if strings.HasPrefix(path, LoginPath) || path == LoginAPIPath {
		return Allow
	}
	isUI := strings.HasPrefix(path, uiPrefix)
	isAPI := strings.HasPrefix(path, apiPrefix)
	if !isUI && !isAPI {
		return Allow
	}

	if token == "" {
		if isUI {
			return Redirect
		}
		return Misconfigured
	}
	if Valid(token, cookie) {
		return Allow
	}
	if isUI {
		return Redirect
	}
	return Unauthorized
}

// Middleware enforces Decide on every request. Denied requests are answered
// here and never reach the next handler.
func Middleware(cfg Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var cookie string
			if ck, err := c.Cookie(CookieName); err == nil {
				cookie = ck.Value
			}
			switch Decide(cfg.Token, cookie, c.Request().URL.Path) {
			case Allow:
				return next(c)
			case Redirect:
				return c.Redirect(http.StatusSeeOther, LoginPath)
			case Misconfigured:
				return c.String(http.StatusInternalServerError, "Admin not configured")
			default:
				return c.String(http.StatusUnauthorized, "Unauthorized")
			}
		}
	}
}

// SessionCookie returns the cookie issued after a successful login.
func SessionCookie(token string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearedCookie returns a cookie that expires the admin session immediately.
func ClearedCookie(secure bool) *http.Cookie {
	c := SessionCookie("", secure)
	c.MaxAge = -1
	return c
}
