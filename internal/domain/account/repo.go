package account

import "context"

type Repository interface {
	// Create inserts a. A duplicate email is apperr.Conflict.
	Create(ctx context.Context, a *Account) error
	// FindActiveByEmail returns (nil, nil) when no active account matches.
	FindActiveByEmail(ctx context.Context, email string) (*Account, error)
	// EnsureTenant creates the tenant row if it does not exist yet.
	EnsureTenant(ctx context.Context, id, name string) error
}
