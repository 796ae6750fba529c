package patient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/hipaa"
)

type repoPG struct {
	db     db.Querier
	cipher hipaa.FieldCipher
}

// NewRepo returns a postgres Repository. Phone, email and address are
// sealed with cipher before they are written.
func NewRepo(q db.Querier, cipher hipaa.FieldCipher) Repository {
	if cipher == nil {
		cipher = hipaa.PlainCipher{}
	}
	return &repoPG{db: q, cipher: cipher}
}

const patientCols = `id, tenant_id, mrn, first_name, last_name, birth_date, gender,
	phone, email, address, created_at, updated_at`

// where renders q as a WHERE clause with placeholders starting at $start.
func where(q Query, start int) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(start+len(args)-1)))
	}
	if q.TenantID != "" {
		add("tenant_id = ?", q.TenantID)
	}
	if q.ID != uuid.Nil {
		add("id = ?", q.ID)
	}
	if len(q.IDs) > 0 {
		add("id = ANY(?)", q.IDs)
	}
	if q.MRN != "" {
		add("mrn = ?", q.MRN)
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		pattern := "$" + strconv.Itoa(start+len(args))
		exact := "$" + strconv.Itoa(start+len(args)+1)
		args = append(args, likePrefix(s), s)
		conds = append(conds, "(last_name ILIKE "+pattern+" OR first_name ILIKE "+pattern+" OR mrn = "+exact+")")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePrefix matches values starting with s literally. Backslash is the
// default LIKE escape character.
func likePrefix(s string) string {
	return likeEscaper.Replace(s) + "%"
}

func (r *repoPG) Find(ctx context.Context, q Query, limit, offset int) ([]*Patient, int, error) {
	clause, args := where(q, 1)

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM patients`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count patients: %w", err)
	}

	sql := `SELECT ` + patientCols + ` FROM patients` + clause + ` ORDER BY last_name, first_name, id`
	if limit > 0 {
		n := len(args)
		sql += fmt.Sprintf(" LIMIT $%d OFFSET $%d", n+1, n+2)
		args = append(args, limit, offset)
	}
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("find patients: %w", err)
	}
	defer rows.Close()

	out := []*Patient{}
	for rows.Next() {
		p, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate patients: %w", err)
	}
	return out, total, nil
}

func (r *repoPG) FindOne(ctx context.Context, q Query) (*Patient, error) {
	clause, args := where(q, 1)
	p, err := r.scan(r.db.QueryRow(ctx, `SELECT `+patientCols+` FROM patients`+clause+` LIMIT 1`, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	sealed, err := r.seal(p)
	if err != nil {
		return err
	}
	err = r.db.QueryRow(ctx, `
		INSERT INTO patients (id, tenant_id, mrn, first_name, last_name, birth_date, gender, phone, email, address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`,
		p.ID, p.TenantID, p.MRN, p.FirstName, p.LastName, p.BirthDate, p.Gender,
		sealed[0], sealed[1], sealed[2],
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateMRN
	}
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (r *repoPG) Update(ctx context.Context, q Query, p *Patient) error {
	sealed, err := r.seal(p)
	if err != nil {
		return err
	}
	clause, args := where(q, 9)
	args = append([]any{p.MRN, p.FirstName, p.LastName, p.BirthDate, p.Gender, sealed[0], sealed[1], sealed[2]}, args...)

	var updated time.Time
	err = r.db.QueryRow(ctx, `
		UPDATE patients SET mrn = $1, first_name = $2, last_name = $3, birth_date = $4, gender = $5,
			phone = $6, email = $7, address = $8, updated_at = NOW()`+clause+`
		RETURNING updated_at`, args...).Scan(&updated)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return ErrNotFound
	case db.IsUniqueViolation(err):
		return ErrDuplicateMRN
	case err != nil:
		return fmt.Errorf("update patient: %w", err)
	}
	p.UpdatedAt = updated
	return nil
}

func (r *repoPG) Delete(ctx context.Context, q Query) error {
	clause, args := where(q, 1)
	tag, err := r.db.Exec(ctx, `DELETE FROM patients`+clause, args...)
	if err != nil {
		return fmt.Errorf("delete patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// seal returns the encrypted phone, email and address.
func (r *repoPG) seal(p *Patient) ([3]*string, error) {
	var out [3]*string
	for i, v := range []*string{p.Phone, p.Email, p.Address} {
		if v == nil {
			continue
		}
		s, err := r.cipher.Seal(*v)
		if err != nil {
			return out, fmt.Errorf("seal patient field: %w", err)
		}
		out[i] = &s
	}
	return out, nil
}

func (r *repoPG) scan(row pgx.Row) (*Patient, error) {
	var p Patient
	if err := row.Scan(&p.ID, &p.TenantID, &p.MRN, &p.FirstName, &p.LastName, &p.BirthDate, &p.Gender,
		&p.Phone, &p.Email, &p.Address, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan patient: %w", err)
	}
	for _, f := range []**string{&p.Phone, &p.Email, &p.Address} {
		if *f == nil {
			continue
		}
		plain, err := r.cipher.Open(**f)
		if err != nil {
			return nil, fmt.Errorf("open patient field: %w", err)
		}
		*f = &plain
	}
	return &p, nil
}
