package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/hipaa"
)

// Export formats.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// maxExport bounds one export request.
const maxExport = 1000

// Service is the tenant-scoped patient API. Every repository call carries
// the caller's tenant; audit failures are logged by the writer and never
// fail the operation.
type Service struct {
	repo  Repository
	audit *hipaa.Writer
}

func NewService(repo Repository, audit *hipaa.Writer) *Service {
	return &Service{repo: repo, audit: audit}
}

func scoped(scope auth.Scope, q Query) Query {
	q.TenantID = scope.TenantID
	return q
}

func mapRepoErr(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return apperr.NotFound("patient")
	case errors.Is(err, ErrDuplicateMRN):
		return apperr.Wrap(apperr.KindConflict, "mrn already exists", err)
	}
	return err
}

// Get returns one patient of the caller's tenant and records the access.
// A patient of another tenant is indistinguishable from a missing one.
func (s *Service) Get(ctx context.Context, scope auth.Scope, id uuid.UUID) (*Patient, error) {
	p, err := s.repo.FindOne(ctx, scoped(scope, Query{ID: id}))
	if err != nil {
		return nil, mapRepoErr(err)
	}
	s.audit.LogAccess(ctx, hipaa.EntityPatient, p.ID.String(), scope.Actor(), scope.Meta)
	return p, nil
}

// List returns a page of the tenant's patients. Each returned patient is
// recorded as accessed.
func (s *Service) List(ctx context.Context, scope auth.Scope, search string, limit, offset int) ([]*Patient, int, error) {
	patients, total, err := s.repo.Find(ctx, scoped(scope, Query{Search: search}), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	for _, p := range patients {
		s.audit.LogAccess(ctx, hipaa.EntityPatient, p.ID.String(), scope.Actor(), scope.Meta)
	}
	return patients, total, nil
}

func (s *Service) Create(ctx context.Context, scope auth.Scope, in Input) (*Patient, error) {
	p := &Patient{ID: uuid.New(), TenantID: scope.TenantID}
	if err := in.apply(p); err != nil {
		return nil, apperr.Invalid(err.Error())
	}
	if err := p.validate(); err != nil {
		return nil, apperr.Invalid(err.Error())
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, mapRepoErr(err)
	}
	s.audit.LogModification(ctx, hipaa.ActionCreate, hipaa.EntityPatient, p.ID.String(), scope.Actor(), nil, nil, scope.Meta)
	return p, nil
}

// Update applies in to the patient and records the names of the changed
// fields. An update that changes nothing is not written or audited.
func (s *Service) Update(ctx context.Context, scope auth.Scope, id uuid.UUID, in Input) (*Patient, error) {
	q := scoped(scope, Query{ID: id})
	current, err := s.repo.FindOne(ctx, q)
	if err != nil {
		return nil, mapRepoErr(err)
	}

	next := *current
	if err := in.apply(&next); err != nil {
		return nil, apperr.Invalid(err.Error())
	}
	if err := next.validate(); err != nil {
		return nil, apperr.Invalid(err.Error())
	}
	changed := hipaa.Changes(current.auditFields(), next.auditFields())
	if len(changed) == 0 {
		return current, nil
	}

	if err := s.repo.Update(ctx, q, &next); err != nil {
		return nil, mapRepoErr(err)
	}
	s.audit.LogModification(ctx, hipaa.ActionUpdate, hipaa.EntityPatient, id.String(), scope.Actor(),
		nil, hipaa.UpdatedFields{UpdatedFields: changed}, scope.Meta)
	return &next, nil
}

func (s *Service) Delete(ctx context.Context, scope auth.Scope, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, scoped(scope, Query{ID: id})); err != nil {
		return mapRepoErr(err)
	}
	s.audit.LogModification(ctx, hipaa.ActionDelete, hipaa.EntityPatient, id.String(), scope.Actor(), nil, nil, scope.Meta)
	return nil
}

// Export returns the requested patients of the caller's tenant and records
// one EXPORT entry listing the ids actually exported. Ids of other tenants
// are silently absent from the result.
func (s *Service) Export(ctx context.Context, scope auth.Scope, ids []uuid.UUID, format string) ([]*Patient, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format != FormatCSV && format != FormatJSON {
		return nil, apperr.Invalid(fmt.Sprintf("format must be %q or %q", FormatCSV, FormatJSON))
	}
	if len(ids) == 0 {
		return nil, apperr.Invalid("ids are required")
	}
	if len(ids) > maxExport {
		return nil, apperr.Invalid(fmt.Sprintf("at most %d patients per export", maxExport))
	}

	patients, _, err := s.repo.Find(ctx, scoped(scope, Query{IDs: ids}), 0, 0)
	if err != nil {
		return nil, err
	}
	exported := make([]string, len(patients))
	for i, p := range patients {
		exported[i] = p.ID.String()
	}
	if len(exported) > 0 {
		s.audit.LogExportEvent(ctx, hipaa.EntityPatient, exported, format, scope.Actor(), scope.Meta)
	}
	return patients, nil
}

// Print returns a patient for printing and records a PRINT entry.
func (s *Service) Print(ctx context.Context, scope auth.Scope, id uuid.UUID) (*Patient, error) {
	p, err := s.repo.FindOne(ctx, scoped(scope, Query{ID: id}))
	if err != nil {
		return nil, mapRepoErr(err)
	}
	s.audit.LogPrintEvent(ctx, hipaa.EntityPatient, p.ID.String(), scope.Actor(), scope.Meta)
	return p, nil
}
