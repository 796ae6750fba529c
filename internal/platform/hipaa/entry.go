package hipaa

import (
	"context"
	"encoding/json"
	"time"
)

// Entry is one append-only audit record. UserID, IPAddress and UserAgent
// are nil when unknown; OldData and NewData are opaque JSON.
type Entry struct {
	ID         string          `json:"id"`
	Action     Action          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	UserID     *string         `json:"user_id"`
	TenantID   string          `json:"tenant_id"`
	IPAddress  *string         `json:"ip_address"`
	UserAgent  *string         `json:"user_agent"`
	OldData    json.RawMessage `json:"old_data,omitempty"`
	NewData    json.RawMessage `json:"new_data,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Actor identifies who performed an audited operation.
type Actor struct {
	UserID   string
	TenantID string
}

// RequestMeta is best-effort forensic context taken from the request.
type RequestMeta struct {
	IPAddress *string
	UserAgent *string
}

type requestMetaKey struct{}

func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFromContext returns the metadata attached by the request
// middleware, or the zero value.
func RequestMetaFromContext(ctx context.Context) RequestMeta {
	meta, _ := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
