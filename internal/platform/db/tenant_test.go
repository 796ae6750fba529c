package db

import (
	"context"
	"testing"
)

func TestValidTenantID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"clinic_a", true},
		{"cl9x2k1pz0000abc", true},
		{"3f1c2a9e-8d7b-4c6a-9e5f-0a1b2c3d4e5f", true},
		{"", false},
		{"tenant; DROP TABLE patients", false},
		{"a/b", false},
	}
	for _, tt := range tests {
		if got := ValidTenantID(tt.id); got != tt.want {
			t.Errorf("ValidTenantID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestTenantContext(t *testing.T) {
	ctx := context.Background()
	if got := TenantFromContext(ctx); got != "" {
		t.Errorf("expected empty tenant, got %q", got)
	}
	ctx = WithTenant(ctx, "clinic_a")
	if got := TenantFromContext(ctx); got != "clinic_a" {
		t.Errorf("expected clinic_a, got %q", got)
	}
}
