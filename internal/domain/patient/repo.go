package patient

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("patient not found")
	ErrDuplicateMRN = errors.New("mrn already exists in tenant")
)

// Query selects patients. Zero-valued predicates are not applied: the
// repository does not scope by tenant on its own, callers set TenantID.
type Query struct {
	TenantID string
	ID       uuid.UUID
	IDs      []uuid.UUID
	MRN      string
	// Search matches a name prefix or an exact MRN.
	Search string
}

type Repository interface {
	// Find returns matches ordered by last name, first name, id and the
	// total match count. limit 0 returns all.
	Find(ctx context.Context, q Query, limit, offset int) ([]*Patient, int, error)
	FindOne(ctx context.Context, q Query) (*Patient, error)
	Create(ctx context.Context, p *Patient) error
	Update(ctx context.Context, q Query, p *Patient) error
	Delete(ctx context.Context, q Query) error
}
