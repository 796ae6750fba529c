package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/session"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

type CreateRequest struct {
	TenantID   string
	TenantName string
	Email      string
	Name       string
	Role       string
	Password   string
}

// CreateAccount validates req, hashes the password and stores an active
// account, creating the tenant row on first use.
func (s *Service) CreateAccount(ctx context.Context, req CreateRequest) (*Account, error) {
	if !db.ValidTenantID(req.TenantID) {
		return nil, apperr.Invalid("tenant id must be 1-64 letters, digits, '-' or '_'")
	}
	email := NormalizeEmail(req.Email)
	if !strings.Contains(email, "@") {
		return nil, apperr.Invalid("email is invalid")
	}
	role, err := session.ParseRole(req.Role)
	if err != nil {
		return nil, apperr.Invalid(err.Error())
	}
	hash, err := auth.HashPassword(req.Password)
	if errors.Is(err, auth.ErrPasswordTooShort) {
		return nil, apperr.Invalid(err.Error())
	}
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	tenantName := req.TenantName
	if tenantName == "" {
		tenantName = req.TenantID
	}
	if err := s.repo.EnsureTenant(ctx, req.TenantID, tenantName); err != nil {
		return nil, err
	}

	a := &Account{
		ID:           uuid.New(),
		TenantID:     req.TenantID,
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		Role:         role,
		PasswordHash: hash,
		Active:       true,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// FindActiveByEmail adapts accounts to the authenticator's credential
// lookup.
func (s *Service) FindActiveByEmail(ctx context.Context, email string) (*auth.Credential, error) {
	a, err := s.repo.FindActiveByEmail(ctx, NormalizeEmail(email))
	if err != nil || a == nil {
		return nil, err
	}
	return &auth.Credential{
		UserID:       a.ID.String(),
		TenantID:     a.TenantID,
		Role:         a.Role,
		PasswordHash: a.PasswordHash,
	}, nil
}

var _ auth.CredentialStore = (*Service)(nil)

// roleOrEmpty keeps unknown stored roles out of sessions; the authenticator
// refuses an empty role.
func roleOrEmpty(s string) session.Role {
	r, err := session.ParseRole(s)
	if err != nil {
		return ""
	}
	return r
}
