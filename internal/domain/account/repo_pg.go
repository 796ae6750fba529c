package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/db"
)

type repoPG struct {
	db db.Querier
}

func NewRepo(q db.Querier) Repository {
	return &repoPG{db: q}
}

const accountCols = `id, tenant_id, email, name, role, COALESCE(password_hash, ''), active, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, a *Account) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO users (id, tenant_id, email, name, role, password_hash, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		a.ID, a.TenantID, a.Email, a.Name, string(a.Role), a.PasswordHash, a.Active,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return apperr.Wrap(apperr.KindConflict, "email already registered", err)
	}
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (r *repoPG) FindActiveByEmail(ctx context.Context, email string) (*Account, error) {
	var (
		a    Account
		role string
	)
	err := r.db.QueryRow(ctx, `SELECT `+accountCols+` FROM users WHERE lower(email) = $1 AND active`, email).
		Scan(&a.ID, &a.TenantID, &a.Email, &a.Name, &role, &a.PasswordHash, &a.Active, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find account by email: %w", err)
	}
	a.Role = roleOrEmpty(role)
	return &a, nil
}

func (r *repoPG) EnsureTenant(ctx context.Context, id, name string) error {
	if _, err := r.db.Exec(ctx,
		`INSERT INTO tenants (id, name) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`, id, name,
	); err != nil {
		return fmt.Errorf("ensure tenant: %w", err)
	}
	return nil
}
