package hipaa

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func TestPGStore_Insert(t *testing.T) {
	mock := newMock(t)
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO audit_logs").
		WithArgs(
			"e-1", "UPDATE", "Patient", "p-1", pgxmock.AnyArg(), "clinic-a",
			pgxmock.AnyArg(), pgxmock.AnyArg(), nil, `{"updatedFields":["phone"]}`,
		).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(created))

	e := &Entry{
		ID: "e-1", Action: ActionUpdate, EntityType: "Patient", EntityID: "p-1",
		UserID: strPtr("user-1"), TenantID: "clinic-a",
		NewData: json.RawMessage(`{"updatedFields":["phone"]}`),
	}
	if err := NewPGStore(mock).Insert(context.Background(), e); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !e.CreatedAt.Equal(created) {
		t.Errorf("expected created_at from the database, got %s", e.CreatedAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPGStore_InsertError(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("INSERT INTO audit_logs").
		WithArgs("e-1", "LOGIN", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "t",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("disk full"))

	err := NewPGStore(mock).Insert(context.Background(), &Entry{ID: "e-1", Action: ActionLogin, TenantID: "t"})
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected the store error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPGStore_FindBuildsTenantScopedQuery(t *testing.T) {
	mock := newMock(t)
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM audit_logs WHERE tenant_id = \$1 AND entity_type = \$2 AND action = \$3`).
		WithArgs("clinic-a", "Patient", "PHI_ACCESS").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))

	cols := []string{"id", "action", "entity_type", "entity_id", "user_id", "tenant_id",
		"ip_address", "user_agent", "old_data", "new_data", "created_at"}
	mock.ExpectQuery(`ORDER BY created_at DESC, id DESC LIMIT \$4 OFFSET \$5`).
		WithArgs("clinic-a", "Patient", "PHI_ACCESS", 2, 4).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("e-2", "PHI_ACCESS", "Patient", "p-2", strPtr("user-1"), "clinic-a",
				strPtr("10.0.0.1"), (*string)(nil), []byte(nil), []byte(nil), created.Add(time.Minute)).
			AddRow("e-1", "PHI_ACCESS", "Patient", "p-1", (*string)(nil), "clinic-a",
				(*string)(nil), (*string)(nil), []byte(nil), []byte(nil), created))

	entries, total, err := NewPGStore(mock).Find(context.Background(), Filter{
		TenantID: "clinic-a", EntityType: "Patient", Action: ActionPHIAccess, Limit: 2, Offset: 4,
	})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if total != 7 {
		t.Errorf("expected total 7, got %d", total)
	}
	if len(entries) != 2 || entries[0].ID != "e-2" {
		t.Fatalf("unexpected entries %+v", entries)
	}
	if entries[0].Action != ActionPHIAccess || *entries[0].IPAddress != "10.0.0.1" {
		t.Errorf("unexpected first entry %+v", entries[0])
	}
	if entries[1].UserID != nil {
		t.Errorf("expected nil user id on second entry")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPGStore_FindUnpaginated(t *testing.T) {
	mock := newMock(t)
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM audit_logs WHERE tenant_id = \$1 AND entity_id = \$2 AND created_at >= \$3`).
		WithArgs("clinic-a", "p-1", from).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`ORDER BY created_at DESC, id DESC$`).
		WithArgs("clinic-a", "p-1", from).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	entries, total, err := NewPGStore(mock).Find(context.Background(), Filter{
		TenantID: "clinic-a", EntityID: "p-1", From: &from,
	})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if total != 0 || len(entries) != 0 || entries == nil {
		t.Errorf("expected empty non-nil result, got %v (%d)", entries, total)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
