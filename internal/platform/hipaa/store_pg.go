package hipaa

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/clinic/clinic/internal/platform/db"
)

type storePG struct {
	db db.Querier
}

// NewPGStore returns a Store backed by the audit_logs table.
func NewPGStore(q db.Querier) Store {
	return &storePG{db: q}
}

const auditCols = `id::text, action, entity_type, entity_id, user_id, tenant_id,
	ip_address, user_agent, old_data, new_data, created_at`

func (s *storePG) Insert(ctx context.Context, e *Entry) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO audit_logs (
			id, action, entity_type, entity_id, user_id, tenant_id,
			ip_address, user_agent, old_data, new_data
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at`,
		e.ID, string(e.Action), e.EntityType, e.EntityID, e.UserID, e.TenantID,
		e.IPAddress, e.UserAgent, nullJSON(e.OldData), nullJSON(e.NewData),
	).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// where builds the WHERE clause for f. The tenant predicate is always
// first.
func where(f Filter) (string, []interface{}) {
	clauses := []string{"tenant_id = $1"}
	args := []interface{}{f.TenantID}
	add := func(clause string, v interface{}) {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if f.EntityType != "" {
		add("entity_type = $%d", f.EntityType)
	}
	if f.EntityID != "" {
		add("entity_id = $%d", f.EntityID)
	}
	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}
	if f.Action != "" {
		add("action = $%d", string(f.Action))
	}
	if f.From != nil {
		add("created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("created_at <= $%d", *f.To)
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (s *storePG) Find(ctx context.Context, f Filter) ([]Entry, int, error) {
	cond, args := where(f)

	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM audit_logs`+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit logs: %w", err)
	}

	query := `SELECT ` + auditCols + ` FROM audit_logs` + cond + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, f.Limit, f.Offset)
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query audit logs: %w", err)
	}
	defer rows.Close()

	entries, err := collectEntries(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func collectEntries(rows pgx.Rows) ([]Entry, error) {
	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var action string
		var oldData, newData []byte
		if err := rows.Scan(
			&e.ID, &action, &e.EntityType, &e.EntityID, &e.UserID, &e.TenantID,
			&e.IPAddress, &e.UserAgent, &oldData, &newData, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		e.Action = Action(action)
		e.OldData = oldData
		e.NewData = newData
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit logs: %w", err)
	}
	return entries, nil
}

// nullJSON maps an empty payload to SQL NULL.
func nullJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
