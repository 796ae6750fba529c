package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/hipaa"
	"github.com/clinic/clinic/internal/platform/session"
)

type SessionConfig struct {
	Manager *session.Manager
	Logger  zerolog.Logger
	Skipper middleware.Skipper
}

// SessionMiddleware loads the session cookie. A valid session is attached
// to the request context; state-changing requests count as activity and
// re-issue the cookie at most once per update age. An expired or invalid
// cookie is cleared and the request continues unauthenticated, so the gate
// answers it exactly like a request that never had a session.
func SessionMiddleware(cfg SessionConfig) echo.MiddlewareFunc {
	if cfg.Skipper == nil {
		cfg.Skipper = middleware.DefaultSkipper
	}
	m := cfg.Manager
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper(c) {
				return next(c)
			}
			res, present := m.Load(c.Request())
			if !present {
				return next(c)
			}

			switch r := res.(type) {
			case session.Expired:
				cfg.Logger.Debug().Str("reason", string(r.Reason)).Msg("session expired")
				m.Clear(c.Response())
				return next(c)
			case session.Valid:
				s := r.Session
				if isActivity(c.Request()) {
					now := m.Now()
					if session.NeedsReissue(s, now, m.UpdateAge()) {
						s = session.Touch(s, now)
						if err := m.Issue(c.Response(), s); err != nil {
							cfg.Logger.Error().Err(err).Msg("reissue session cookie")
						}
					}
				}
				ctx := session.WithContext(c.Request().Context(), s)
				c.SetRequest(c.Request().WithContext(ctx))
			}
			return next(c)
		}
	}
}

// isActivity reports whether a request refreshes the session. Passive
// reads do not.
func isActivity(r *http.Request) bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

// RequestMeta attaches best-effort ip and user agent to the request context
// for audit entries.
func RequestMeta() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			meta := ExtractRequestMeta(c.Request())
			ctx := hipaa.WithRequestMeta(c.Request().Context(), meta)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// ExtractRequestMeta reads the client ip from the first X-Forwarded-For
// entry, then X-Real-IP. Either field is nil when absent.
func ExtractRequestMeta(r *http.Request) hipaa.RequestMeta {
	var meta hipaa.RequestMeta
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			meta.IPAddress = &ip
		}
	}
	if meta.IPAddress == nil {
		if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
			meta.IPAddress = &ip
		}
	}
	if ua := r.UserAgent(); ua != "" {
		meta.UserAgent = &ua
	}
	return meta
}
