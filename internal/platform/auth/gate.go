package auth

import (
	"context"
	"fmt"

	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/hipaa"
	"github.com/clinic/clinic/internal/platform/session"
)

// Policy is the declarative access rule attached to a route. An empty
// Roles set admits any authenticated session with a tenant.
type Policy struct {
	Name  string
	Roles []session.Role
}

var (
	Authenticated = Policy{Name: "authenticated"}
	AdminOnly     = Policy{Name: "admin_only", Roles: []session.Role{session.RoleAdmin}}
	AdminOrDoctor = Policy{Name: "admin_or_doctor", Roles: []session.Role{session.RoleAdmin, session.RoleDoctor}}
	ClinicalStaff = Policy{Name: "clinical_staff", Roles: []session.Role{
		session.RoleAdmin, session.RoleDoctor, session.RoleNurse, session.RoleStaff,
	}}
)

func (p Policy) allows(r session.Role) bool {
	if len(p.Roles) == 0 {
		return true
	}
	for _, allowed := range p.Roles {
		if r == allowed {
			return true
		}
	}
	return false
}

func checkSession(ctx context.Context) (session.Session, error) {
	s, ok := session.FromContext(ctx)
	if !ok || s.UserID == "" {
		return session.Session{}, apperr.Unauthenticated()
	}
	return s, nil
}

// checkTenant fails with an internal error: a session without a tenant is
// a bug, not something the caller can fix by logging in again.
func checkTenant(s session.Session) error {
	if s.TenantID == "" || !db.ValidTenantID(s.TenantID) {
		return apperr.Internal("session has no usable tenant", fmt.Errorf("user %s", s.UserID))
	}
	return nil
}

func checkRole(s session.Session, p Policy) error {
	if !p.allows(s.Role) {
		return apperr.Wrap(apperr.KindForbidden, "access denied",
			fmt.Errorf("role %s not permitted by %s", s.Role, p.Name))
	}
	return nil
}

// Evaluate runs the gate for p against ctx: session, then tenant, then
// role, stopping at the first failure. On success the returned context
// carries the tenant.
func Evaluate(ctx context.Context, p Policy) (context.Context, error) {
	s, err := checkSession(ctx)
	if err != nil {
		return ctx, err
	}
	if err := checkTenant(s); err != nil {
		return ctx, err
	}
	if err := checkRole(s, p); err != nil {
		return ctx, err
	}
	return db.WithTenant(ctx, s.TenantID), nil
}

// Guard enforces p on every route it wraps. Handlers behind it can rely on
// ScopeFrom succeeding.
func Guard(p Policy) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, err := Evaluate(c.Request().Context(), p)
			if err != nil {
				return err
			}
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// RequireSession admits any request carrying a session, tenant or not.
func RequireSession() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, err := checkSession(c.Request().Context()); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// RequireTenant is Guard(Authenticated).
func RequireTenant() echo.MiddlewareFunc {
	return Guard(Authenticated)
}

// RequireRole is Guard with an ad hoc role set.
func RequireRole(roles ...session.Role) echo.MiddlewareFunc {
	return Guard(Policy{Name: fmt.Sprintf("roles%v", roles), Roles: roles})
}

// Scope is what a gated handler acts with.
type Scope struct {
	Session  session.Session
	TenantID string
	Meta     hipaa.RequestMeta
}

// Actor returns the audit identity of the scope.
func (s Scope) Actor() hipaa.Actor {
	return hipaa.Actor{UserID: s.Session.UserID, TenantID: s.TenantID}
}

// ScopeFromContext returns the scope the gate established. It fails with
// an internal error when called on a route the gate did not wrap.
func ScopeFromContext(ctx context.Context) (Scope, error) {
	s, ok := session.FromContext(ctx)
	tenantID := db.TenantFromContext(ctx)
	if !ok || tenantID == "" || tenantID != s.TenantID {
		return Scope{}, apperr.Internal("handler reached without gate", nil)
	}
	return Scope{Session: s, TenantID: tenantID, Meta: hipaa.RequestMetaFromContext(ctx)}, nil
}

func ScopeFrom(c echo.Context) (Scope, error) {
	return ScopeFromContext(c.Request().Context())
}
