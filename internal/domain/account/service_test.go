package account

import (
	"context"
	"sync"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/session"
)

// mockRepo is an in-memory Repository keyed by email.
type mockRepo struct {
	mu       sync.Mutex
	accounts map[string]*Account
	tenants  map[string]string
}

func newMockRepo() *mockRepo {
	return &mockRepo{accounts: make(map[string]*Account), tenants: make(map[string]string)}
}

func (m *mockRepo) Create(_ context.Context, a *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[a.Email]; ok {
		return apperr.Conflict("email already registered")
	}
	cp := *a
	m.accounts[a.Email] = &cp
	return nil
}

func (m *mockRepo) FindActiveByEmail(_ context.Context, email string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[email]
	if !ok || !a.Active {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (m *mockRepo) EnsureTenant(_ context.Context, id, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tenants[id]; !ok {
		m.tenants[id] = name
	}
	return nil
}

func validRequest() CreateRequest {
	return CreateRequest{
		TenantID: "clinic-a",
		Email:    "  Doctor@Example.com ",
		Name:     "Dr. Rivera",
		Role:     "doctor",
		Password: "correct-horse",
	}
}

func TestCreateAccount(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	a, err := svc.CreateAccount(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Email != "doctor@example.com" || a.Role != session.RoleDoctor || !a.Active {
		t.Errorf("unexpected account %+v", a)
	}
	if a.PasswordHash == "" || a.PasswordHash == "correct-horse" {
		t.Error("expected hashed password")
	}
	if bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte("correct-horse")) != nil {
		t.Error("hash does not match password")
	}
	if repo.tenants["clinic-a"] != "clinic-a" {
		t.Errorf("expected tenant to be created, got %v", repo.tenants)
	}
}

func TestCreateAccount_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *CreateRequest)
	}{
		{"bad tenant", func(r *CreateRequest) { r.TenantID = "clinic a" }},
		{"empty tenant", func(r *CreateRequest) { r.TenantID = "" }},
		{"bad email", func(r *CreateRequest) { r.Email = "doctor" }},
		{"unknown role", func(r *CreateRequest) { r.Role = "janitor" }},
		{"short password", func(r *CreateRequest) { r.Password = "short" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			_, err := NewService(newMockRepo()).CreateAccount(context.Background(), req)
			if !apperr.Is(err, apperr.KindInvalid) {
				t.Errorf("expected invalid, got %v", err)
			}
		})
	}
}

func TestCreateAccount_DuplicateEmail(t *testing.T) {
	svc := NewService(newMockRepo())
	if _, err := svc.CreateAccount(context.Background(), validRequest()); err != nil {
		t.Fatal(err)
	}
	req := validRequest()
	req.Email = "DOCTOR@example.com"
	if _, err := svc.CreateAccount(context.Background(), req); !apperr.Is(err, apperr.KindConflict) {
		t.Errorf("expected conflict, got %v", err)
	}
}

func TestFindActiveByEmail_Credential(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	a, err := svc.CreateAccount(context.Background(), validRequest())
	if err != nil {
		t.Fatal(err)
	}

	var store auth.CredentialStore = svc
	cred, err := store.FindActiveByEmail(context.Background(), " DOCTOR@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if cred == nil || cred.UserID != a.ID.String() || cred.TenantID != "clinic-a" || cred.Role != session.RoleDoctor {
		t.Fatalf("unexpected credential %+v", cred)
	}
	if !auth.VerifyPassword(cred.PasswordHash, "correct-horse") {
		t.Error("credential hash must verify")
	}

	repo.accounts["doctor@example.com"].Active = false
	cred, err = store.FindActiveByEmail(context.Background(), "doctor@example.com")
	if err != nil || cred != nil {
		t.Errorf("inactive account must not be found, got %+v %v", cred, err)
	}

	cred, err = store.FindActiveByEmail(context.Background(), "ghost@example.com")
	if err != nil || cred != nil {
		t.Errorf("missing account must be (nil, nil), got %+v %v", cred, err)
	}
}
