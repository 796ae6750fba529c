package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/hipaa"
	"github.com/clinic/clinic/internal/platform/session"
)

const (
	msgInvalidLogin = "Invalid email or password"
	msgTryLater     = "Invalid email or password. Try again later."
)

// Handler serves the cookie-based auth endpoints under /api/auth.
type Handler struct {
	authn   *Authenticator
	manager *session.Manager
	audit   *hipaa.Writer
}

func NewHandler(authn *Authenticator, manager *session.Manager, audit *hipaa.Writer) *Handler {
	return &Handler{authn: authn, manager: manager, audit: audit}
}

// RegisterRoutes mounts the auth endpoints. loginLimit, when given, wraps
// the login route only.
func (h *Handler) RegisterRoutes(g *echo.Group, loginLimit ...echo.MiddlewareFunc) {
	g.GET("/csrf", h.CSRF)
	g.POST("/login", h.Login, loginLimit...)
	g.POST("/logout", h.Logout)
	g.GET("/session", h.Session)
	g.POST("/session", h.Session)
}

type loginRequest struct {
	Email       string `json:"email" form:"email"`
	Password    string `json:"password" form:"password"`
	CallbackURL string `json:"callbackUrl" form:"callbackUrl"`
}

type sessionResponse struct {
	User    *sessionUser `json:"user"`
	Expires *time.Time   `json:"expires,omitempty"`
}

type sessionUser struct {
	ID       string       `json:"id"`
	Role     session.Role `json:"role"`
	TenantID string       `json:"tenantId"`
}

func (h *Handler) sessionBody(s session.Session) sessionResponse {
	idleExpiry := s.LastActivity.Add(h.manager.IdleTimeout())
	return sessionResponse{
		User:    &sessionUser{ID: s.UserID, Role: s.Role, TenantID: s.TenantID},
		Expires: &idleExpiry,
	}
}

// CSRF handles GET /api/auth/csrf: issues a fresh double-submit token.
func (h *Handler) CSRF(c echo.Context) error {
	token, err := session.NewCSRFToken()
	if err != nil {
		return apperr.Internal("issue csrf token", err)
	}
	c.SetCookie(h.manager.Cookies().CSRFCookie(token))
	return c.JSON(http.StatusOK, map[string]string{"csrfToken": token})
}

func (h *Handler) checkCSRF(c echo.Context) error {
	cookie, err := c.Cookie(h.manager.Cookies().Names.CSRF)
	if err != nil || !session.ValidCSRF(cookie.Value, c.Request().Header.Get(session.CSRFHeader)) {
		return apperr.New(apperr.KindForbidden, "invalid csrf token")
	}
	return nil
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(c echo.Context) error {
	if err := h.checkCSRF(c); err != nil {
		return err
	}
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Invalid("invalid request body")
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return apperr.New(apperr.KindUnauthenticated, msgInvalidLogin)
	}

	ctx := c.Request().Context()
	res, err := h.authn.Authenticate(ctx, req.Email, req.Password, hipaa.RequestMetaFromContext(ctx))
	if err != nil {
		return apperr.Internal("authenticate", err)
	}
	switch res.Status {
	case StatusLocked:
		return apperr.New(apperr.KindUnauthenticated, msgTryLater)
	case StatusRejected:
		return apperr.New(apperr.KindUnauthenticated, msgInvalidLogin)
	}

	if err := h.manager.Issue(c.Response(), res.Session); err != nil {
		return apperr.Internal("issue session", err)
	}
	if req.CallbackURL != "" && session.SafeCallbackURL(req.CallbackURL) {
		c.SetCookie(h.manager.Cookies().CallbackCookie(req.CallbackURL))
	}
	return c.JSON(http.StatusOK, h.sessionBody(res.Session))
}

// Logout handles POST /api/auth/logout. It always clears the cookies; a
// LOGOUT entry is written only when there was a live session.
func (h *Handler) Logout(c echo.Context) error {
	if err := h.checkCSRF(c); err != nil {
		return err
	}
	ctx := c.Request().Context()
	if s, ok := session.FromContext(ctx); ok {
		actor := hipaa.Actor{UserID: s.UserID, TenantID: s.TenantID}
		h.audit.LogAuthEvent(ctx, hipaa.ActionLogout, s.UserID, actor, "", hipaa.RequestMetaFromContext(ctx))
	}
	h.manager.Clear(c.Response())
	return c.NoContent(http.StatusNoContent)
}

// Session handles GET (passive read) and POST (explicit touch) of
// /api/auth/session. The touch itself happens in SessionMiddleware.
func (h *Handler) Session(c echo.Context) error {
	s, ok := session.FromContext(c.Request().Context())
	if !ok {
		return c.JSON(http.StatusOK, sessionResponse{})
	}
	return c.JSON(http.StatusOK, h.sessionBody(s))
}
