// Package session models the signed, client-held session: who the caller is,
// which tenant they act for, and when the session was issued and last used.
// Nothing here is stored server-side.
package session

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleDoctor  Role = "DOCTOR"
	RoleNurse   Role = "NURSE"
	RoleStaff   Role = "STAFF"
	RolePatient Role = "PATIENT"
)

var allRoles = []Role{RoleAdmin, RoleDoctor, RoleNurse, RoleStaff, RolePatient}

func (r Role) Valid() bool {
	for _, known := range allRoles {
		if r == known {
			return true
		}
	}
	return false
}

// ParseRole accepts a role name in any case.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Session is the identity carried by a request.
type Session struct {
	UserID       string    `json:"user_id"`
	Role         Role      `json:"role"`
	TenantID     string    `json:"tenant_id"`
	IssuedAt     time.Time `json:"issued_at"`
	LastActivity time.Time `json:"last_activity"`
}

// New returns a session issued now, with last activity also set to now.
func New(userID string, role Role, tenantID string, now time.Time) Session {
	now = now.UTC().Truncate(time.Second)
	return Session{
		UserID:       userID,
		Role:         role,
		TenantID:     tenantID,
		IssuedAt:     now,
		LastActivity: now,
	}
}

// Touch returns s with LastActivity bumped to now.
func Touch(s Session, now time.Time) Session {
	s.LastActivity = now.UTC().Truncate(time.Second)
	return s
}

// NeedsReissue reports whether the cookie should be rewritten: at most once
// per updateAge of activity.
func NeedsReissue(s Session, now time.Time, updateAge time.Duration) bool {
	return now.Sub(s.LastActivity) >= updateAge
}

type contextKey struct{}

// WithContext attaches s to ctx.
func WithContext(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session attached by the session middleware.
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(contextKey{}).(Session)
	return s, ok
}
