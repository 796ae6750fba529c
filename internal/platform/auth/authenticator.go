// Package auth authenticates credentials, carries the session through
// requests, and gates handlers on session, tenant and role.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/hipaa"
	"github.com/clinic/clinic/internal/platform/session"
	"github.com/clinic/clinic/internal/platform/throttle"
)

// Credential is what the authenticator needs to know about an account.
type Credential struct {
	UserID       string
	TenantID     string
	Role         session.Role
	PasswordHash string
}

// CredentialStore looks up active accounts by normalized email. A missing
// or inactive account is (nil, nil); errors are reserved for storage
// failures.
type CredentialStore interface {
	FindActiveByEmail(ctx context.Context, email string) (*Credential, error)
}

type Status int

const (
	StatusRejected Status = iota
	StatusOK
	// StatusLocked is a rejection while the identifier is locked out.
	StatusLocked
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusLocked:
		return "locked"
	default:
		return "rejected"
	}
}

// Result of Authenticate. Session is set only when Status is StatusOK.
// Unknown email and wrong password produce the same Result.
type Result struct {
	Status  Status
	Session session.Session
}

type AuthenticatorConfig struct {
	// SystemTenantID is recorded on failed logins that cannot be tied to
	// an account.
	SystemTenantID string
}

type Authenticator struct {
	creds        CredentialStore
	throttle     *throttle.Throttle
	audit        *hipaa.Writer
	systemTenant string
	logger       zerolog.Logger
	now          func() time.Time
}

func NewAuthenticator(creds CredentialStore, th *throttle.Throttle, audit *hipaa.Writer, cfg AuthenticatorConfig, logger zerolog.Logger) *Authenticator {
	return &Authenticator{
		creds:        creds,
		throttle:     th,
		audit:        audit,
		systemTenant: cfg.SystemTenantID,
		logger:       logger.With().Str("component", "authenticator").Logger(),
		now:          time.Now,
	}
}

// SetClock replaces the time source. Tests only.
func (a *Authenticator) SetClock(now func() time.Time) {
	a.now = now
}

// Authenticate checks email and password. Expected failures (lockout,
// unknown account, wrong password) are reported through Result; the error
// return is for storage failures only.
func (a *Authenticator) Authenticate(ctx context.Context, email, password string, meta hipaa.RequestMeta) (Result, error) {
	id := throttle.NormalizeIdentifier(email)
	system := hipaa.Actor{TenantID: a.systemTenant}

	locked, err := a.throttle.IsLocked(ctx, id)
	if err != nil {
		return Result{}, fmt.Errorf("check lockout: %w", err)
	}
	if locked {
		a.logger.Info().Str("reason", hipaa.ReasonAccountLocked).Msg("login rejected")
		a.audit.LogAuthEvent(ctx, hipaa.ActionLoginFailed, id, system, hipaa.ReasonAccountLocked, meta)
		return Result{Status: StatusLocked}, nil
	}

	cred, err := a.creds.FindActiveByEmail(ctx, id)
	if err != nil {
		return Result{}, fmt.Errorf("find credential: %w", err)
	}
	if cred == nil || cred.PasswordHash == "" {
		burnCompare(password)
		return a.reject(ctx, id, id, system, meta)
	}
	if !VerifyPassword(cred.PasswordHash, password) {
		actor := hipaa.Actor{UserID: cred.UserID, TenantID: cred.TenantID}
		return a.reject(ctx, id, cred.UserID, actor, meta)
	}

	if err := validCredential(cred); err != nil {
		return Result{}, err
	}
	if err := a.throttle.Clear(ctx, id); err != nil {
		return Result{}, fmt.Errorf("clear login counter: %w", err)
	}

	s := session.New(cred.UserID, cred.Role, cred.TenantID, a.now())
	actor := hipaa.Actor{UserID: cred.UserID, TenantID: cred.TenantID}
	a.audit.LogAuthEvent(ctx, hipaa.ActionLogin, cred.UserID, actor, "", meta)
	return Result{Status: StatusOK, Session: s}, nil
}

func (a *Authenticator) reject(ctx context.Context, id, subject string, actor hipaa.Actor, meta hipaa.RequestMeta) (Result, error) {
	if _, err := a.throttle.RecordFailure(ctx, id); err != nil {
		return Result{}, fmt.Errorf("record login failure: %w", err)
	}
	a.logger.Info().Str("reason", hipaa.ReasonInvalidCredentials).Msg("login rejected")
	a.audit.LogAuthEvent(ctx, hipaa.ActionLoginFailed, subject, actor, hipaa.ReasonInvalidCredentials, meta)
	return Result{Status: StatusRejected}, nil
}

// validCredential rejects accounts that would produce a partial session.
func validCredential(c *Credential) error {
	if c.UserID == "" || c.TenantID == "" {
		return errors.New("account is missing user or tenant id")
	}
	if !c.Role.Valid() {
		return fmt.Errorf("account has unknown role %q", c.Role)
	}
	return nil
}
