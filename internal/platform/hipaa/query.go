package hipaa

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/clinic/clinic/pkg/pagination"
)

// Page is one page of audit entries plus the total match count.
type Page struct {
	Logs   []Entry `json:"logs"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

// QueryService reads the audit trail. Every call is scoped to one tenant;
// there is no cross-tenant view. Callers are expected to have passed the
// admin gate already.
type QueryService struct {
	store  Store
	limits pagination.Limits
}

func NewQueryService(store Store, defaultLimit, maxLimit int) *QueryService {
	return &QueryService{
		store:  store,
		limits: pagination.Limits{Default: defaultLimit, Max: maxLimit},
	}
}

var errNoTenant = errors.New("audit query requires a tenant")

// Query returns the entries of tenantID matching f, newest first. f's
// TenantID is ignored.
func (q *QueryService) Query(ctx context.Context, tenantID string, f Filter) (*Page, error) {
	if tenantID == "" {
		return nil, errNoTenant
	}
	f.TenantID = tenantID
	p := pagination.Params{Limit: f.Limit, Offset: f.Offset}.Clamp(q.limits)
	f.Limit, f.Offset = p.Limit, p.Offset

	entries, total, err := q.store.Find(ctx, f)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []Entry{}
	}
	return &Page{Logs: entries, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

// EntityTrail returns the full history of one entity, newest first.
func (q *QueryService) EntityTrail(ctx context.Context, tenantID, entityType, entityID string) ([]Entry, error) {
	if tenantID == "" {
		return nil, errNoTenant
	}
	entries, _, err := q.store.Find(ctx, Filter{
		TenantID:   tenantID,
		EntityType: entityType,
		EntityID:   entityID,
	})
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

var csvHeader = []string{
	"id", "created_at", "action", "entity_type", "entity_id",
	"user_id", "tenant_id", "ip_address", "user_agent",
}

// ExportCSV writes every entry of tenantID matching f as CSV, ignoring
// pagination, and returns the ids written.
func (q *QueryService) ExportCSV(ctx context.Context, tenantID string, f Filter, w io.Writer) ([]string, error) {
	if tenantID == "" {
		return nil, errNoTenant
	}
	f.TenantID = tenantID
	f.Limit, f.Offset = 0, 0

	entries, _, err := q.store.Find(ctx, f)
	if err != nil {
		return nil, err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("audit export csv: write header: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		record := []string{
			e.ID,
			e.CreatedAt.UTC().Format(time.RFC3339),
			string(e.Action),
			e.EntityType,
			e.EntityID,
			deref(e.UserID),
			e.TenantID,
			deref(e.IPAddress),
			deref(e.UserAgent),
		}
		if err := cw.Write(CSVRecord(record)); err != nil {
			return nil, fmt.Errorf("audit export csv: write record: %w", err)
		}
		ids = append(ids, e.ID)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("audit export csv: flush: %w", err)
	}
	return ids, nil
}
