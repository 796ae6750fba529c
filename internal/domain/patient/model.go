package patient

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

// Patient maps to the patients table. Phone, Email and Address are
// encrypted at rest.
type Patient struct {
	ID        uuid.UUID  `json:"id"`
	TenantID  string     `json:"tenant_id"`
	MRN       string     `json:"mrn"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
	Gender    *string    `json:"gender,omitempty"`
	Phone     *string    `json:"phone,omitempty"`
	Email     *string    `json:"email,omitempty"`
	Address   *string    `json:"address,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// auditFields is the comparable view used to compute which fields an
// update changed.
func (p *Patient) auditFields() map[string]any {
	m := map[string]any{
		"mrn":        p.MRN,
		"first_name": p.FirstName,
		"last_name":  p.LastName,
		"birth_date": "",
		"gender":     deref(p.Gender),
		"phone":      deref(p.Phone),
		"email":      deref(p.Email),
		"address":    deref(p.Address),
	}
	if p.BirthDate != nil {
		m["birth_date"] = p.BirthDate.Format(dateLayout)
	}
	return m
}

// Input is the writable part of a patient. Nil pointers leave a field
// unchanged on update and empty on create.
type Input struct {
	MRN       *string `json:"mrn"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	BirthDate *string `json:"birth_date"`
	Gender    *string `json:"gender"`
	Phone     *string `json:"phone"`
	Email     *string `json:"email"`
	Address   *string `json:"address"`
}

// apply copies the set fields of in onto p.
func (in Input) apply(p *Patient) error {
	if in.MRN != nil {
		p.MRN = strings.TrimSpace(*in.MRN)
	}
	if in.FirstName != nil {
		p.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		p.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.BirthDate != nil {
		if *in.BirthDate == "" {
			p.BirthDate = nil
		} else {
			d, err := time.Parse(dateLayout, *in.BirthDate)
			if err != nil {
				return fmt.Errorf("birth_date must be YYYY-MM-DD")
			}
			p.BirthDate = &d
		}
	}
	p.Gender = applyOptional(p.Gender, in.Gender)
	p.Phone = applyOptional(p.Phone, in.Phone)
	p.Email = applyOptional(p.Email, in.Email)
	p.Address = applyOptional(p.Address, in.Address)
	return nil
}

func (p *Patient) validate() error {
	if p.MRN == "" {
		return fmt.Errorf("mrn is required")
	}
	if p.FirstName == "" || p.LastName == "" {
		return fmt.Errorf("first_name and last_name are required")
	}
	if p.BirthDate != nil && p.BirthDate.After(time.Now()) {
		return fmt.Errorf("birth_date cannot be in the future")
	}
	return nil
}

// applyOptional sets an optional field; an empty string clears it.
func applyOptional(cur, in *string) *string {
	if in == nil {
		return cur
	}
	v := strings.TrimSpace(*in)
	if v == "" {
		return nil
	}
	return &v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
