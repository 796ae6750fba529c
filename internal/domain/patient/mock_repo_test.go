package patient

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// mockRepo is an in-memory Repository that applies Query predicates the
// way the postgres implementation does.
type mockRepo struct {
	patients map[uuid.UUID]*Patient
	updates  int
	err      error
}

func newMockRepo(seed ...*Patient) *mockRepo {
	r := &mockRepo{patients: make(map[uuid.UUID]*Patient)}
	for _, p := range seed {
		cp := *p
		r.patients[p.ID] = &cp
	}
	return r
}

func (r *mockRepo) matches(p *Patient, q Query) bool {
	if q.TenantID != "" && p.TenantID != q.TenantID {
		return false
	}
	if q.ID != uuid.Nil && p.ID != q.ID {
		return false
	}
	if len(q.IDs) > 0 {
		found := false
		for _, id := range q.IDs {
			if id == p.ID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q.MRN != "" && p.MRN != q.MRN {
		return false
	}
	if s := strings.ToLower(strings.TrimSpace(q.Search)); s != "" {
		if !strings.HasPrefix(strings.ToLower(p.LastName), s) &&
			!strings.HasPrefix(strings.ToLower(p.FirstName), s) && p.MRN != q.Search {
			return false
		}
	}
	return true
}

func (r *mockRepo) Find(_ context.Context, q Query, limit, offset int) ([]*Patient, int, error) {
	if r.err != nil {
		return nil, 0, r.err
	}
	var out []*Patient
	for _, p := range r.patients {
		if r.matches(p, q) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastName != out[j].LastName {
			return out[i].LastName < out[j].LastName
		}
		if out[i].FirstName != out[j].FirstName {
			return out[i].FirstName < out[j].FirstName
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	total := len(out)
	if limit <= 0 {
		return out, total, nil
	}
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return out[offset:end], total, nil
}

func (r *mockRepo) FindOne(ctx context.Context, q Query) (*Patient, error) {
	found, _, err := r.Find(ctx, q, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, ErrNotFound
	}
	return found[0], nil
}

func (r *mockRepo) Create(_ context.Context, p *Patient) error {
	if r.err != nil {
		return r.err
	}
	for _, existing := range r.patients {
		if existing.TenantID == p.TenantID && existing.MRN == p.MRN {
			return ErrDuplicateMRN
		}
	}
	cp := *p
	r.patients[p.ID] = &cp
	return nil
}

func (r *mockRepo) Update(_ context.Context, q Query, p *Patient) error {
	if r.err != nil {
		return r.err
	}
	for id, existing := range r.patients {
		if r.matches(existing, q) {
			cp := *p
			r.patients[id] = &cp
			r.updates++
			return nil
		}
	}
	return ErrNotFound
}

func (r *mockRepo) Delete(_ context.Context, q Query) error {
	if r.err != nil {
		return r.err
	}
	for id, existing := range r.patients {
		if r.matches(existing, q) {
			delete(r.patients, id)
			return nil
		}
	}
	return ErrNotFound
}
