package middleware

import (
	"errors"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/hipaa"
	"github.com/clinic/clinic/internal/platform/session"
)

// routeEntities maps the first path segment under /api/v1/ to the audited
// entity type.
var routeEntities = map[string]string{
	"patients":   hipaa.EntityPatient,
	"audit-logs": hipaa.EntityAuditLog,
	"accounts":   hipaa.EntityAccount,
}

// RouteEntityType is used when a denied route has no mapped entity.
const RouteEntityType = "Route"

// DeniedAudit records an ACCESS_DENIED entry when a forbidden error leaves
// the chain for an authenticated session with a tenant. The reason is the
// gate's internal detail; the client still only sees "access denied".
// Audit failures are logged and never change the response.
func DeniedAudit(w *hipaa.Writer, logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil || !apperr.Is(err, apperr.KindForbidden) {
				return err
			}

			ctx := c.Request().Context()
			s, ok := session.FromContext(ctx)
			if !ok || s.TenantID == "" {
				return err
			}

			entityType, entityID := deniedTarget(c)
			actor := hipaa.Actor{UserID: s.UserID, TenantID: s.TenantID}
			res := w.LogSecurityEvent(ctx, entityType, entityID, actor, denialReason(err), hipaa.RequestMetaFromContext(ctx))
			if res.Failed() {
				logger.Warn().Str("path", c.Path()).Msg("access denied but not audited")
			}
			return err
		}
	}
}

// deniedTarget resolves the entity a denied request was aimed at. Routes
// without an :id parameter use the route pattern as the entity id.
func deniedTarget(c echo.Context) (string, string) {
	route := c.Path()
	if route == "" {
		route = c.Request().URL.Path
	}
	entityType := RouteEntityType
	if rest, ok := strings.CutPrefix(route, "/api/v1/"); ok {
		seg, _, _ := strings.Cut(rest, "/")
		if et, known := routeEntities[seg]; known {
			entityType = et
		}
	}
	if id := c.Param("id"); id != "" && entityType != RouteEntityType {
		return entityType, id
	}
	return entityType, c.Request().Method + " " + route
}

func denialReason(err error) string {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		if ae.Err != nil {
			return ae.Err.Error()
		}
		return ae.Message
	}
	return err.Error()
}
