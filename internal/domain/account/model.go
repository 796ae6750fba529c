package account

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/session"
)

// Account is a user who can sign in. It belongs to exactly one tenant.
type Account struct {
	ID           uuid.UUID    `json:"id"`
	TenantID     string       `json:"tenant_id"`
	Email        string       `json:"email"`
	Name         string       `json:"name"`
	Role         session.Role `json:"role"`
	PasswordHash string       `json:"-"`
	Active       bool         `json:"active"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// NormalizeEmail trims and lowercases an email so lookups and the login
// throttle agree on one identifier.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
