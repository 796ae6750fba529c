package hipaa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

var auditWriteFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "clinic_audit_write_failures_total",
		Help: "Audit entries that could not be persisted.",
	},
	[]string{"action"},
)

// Collectors returns the package metrics for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{auditWriteFailures}
}

// Result reports the outcome of one audit write. Written is false when the
// entry was skipped (non-PHI entity) or failed (Err set).
type Result struct {
	Written bool
	Err     error
}

// Failed reports whether a write was attempted and did not persist.
func (r Result) Failed() bool {
	return r.Err != nil
}

// Writer records audit entries. Persistence failures are logged and
// counted, then handed back in Result; they are never returned as errors
// so an audit outage cannot abort the operation being observed.
type Writer struct {
	store  Store
	logger zerolog.Logger
}

func NewWriter(store Store, logger zerolog.Logger) *Writer {
	return &Writer{
		store:  store,
		logger: logger.With().Str("component", "audit").Logger(),
	}
}

// Record persists e as given. Callers normally use the Log* helpers.
func (w *Writer) Record(ctx context.Context, e Entry) Result {
	if err := validate(e); err != nil {
		return w.fail(e, err)
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if err := w.store.Insert(ctx, &e); err != nil {
		return w.fail(e, err)
	}
	return Result{Written: true}
}

func validate(e Entry) error {
	if !e.Action.Valid() {
		return fmt.Errorf("invalid audit action %q", e.Action)
	}
	if e.TenantID == "" {
		return errors.New("audit entry has no tenant")
	}
	if e.EntityType == "" || e.EntityID == "" {
		return errors.New("audit entry has no entity")
	}
	return nil
}

func (w *Writer) fail(e Entry, err error) Result {
	auditWriteFailures.WithLabelValues(string(e.Action)).Inc()
	w.logger.Error().Err(err).
		Str("action", string(e.Action)).
		Str("entity_type", e.EntityType).
		Str("entity_id", e.EntityID).
		Str("tenant_id", e.TenantID).
		Msg("audit write failed")
	return Result{Err: err}
}

func newEntry(action Action, entityType, entityID string, actor Actor, meta RequestMeta) Entry {
	return Entry{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		UserID:     optional(actor.UserID),
		TenantID:   actor.TenantID,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
	}
}

// LogAccess records a read of a PHI entity. Reads of other entity types
// are not recorded.
func (w *Writer) LogAccess(ctx context.Context, entityType, entityID string, actor Actor, meta RequestMeta) Result {
	if !IsPHI(entityType) {
		return Result{}
	}
	return w.Record(ctx, newEntry(ActionPHIAccess, entityType, entityID, actor, meta))
}

// LogModification records a CREATE, UPDATE or DELETE of a PHI entity.
// oldData and newData should carry only what changed plus identifying
// context, not whole records; either may be nil.
func (w *Writer) LogModification(ctx context.Context, action Action, entityType, entityID string, actor Actor, oldData, newData any, meta RequestMeta) Result {
	if !IsPHI(entityType) {
		return Result{}
	}
	e := newEntry(action, entityType, entityID, actor, meta)
	if !action.IsModification() {
		return w.fail(e, fmt.Errorf("%s is not a modification action", action))
	}
	var err error
	if e.OldData, err = marshal(oldData); err != nil {
		return w.fail(e, err)
	}
	if e.NewData, err = marshal(newData); err != nil {
		return w.fail(e, err)
	}
	return w.Record(ctx, e)
}

// LogAuthEvent records LOGIN, LOGOUT or LOGIN_FAILED. subject is the
// user id when known, otherwise the normalized login identifier. Auth
// events are always recorded.
func (w *Writer) LogAuthEvent(ctx context.Context, action Action, subject string, actor Actor, reason string, meta RequestMeta) Result {
	e := newEntry(action, EntityUser, subject, actor, meta)
	if !action.isAuth() {
		return w.fail(e, fmt.Errorf("%s is not an auth action", action))
	}
	if reason != "" {
		e.NewData, _ = marshal(map[string]string{"reason": reason})
	}
	return w.Record(ctx, e)
}

// LogSecurityEvent records an ACCESS_DENIED with a free-text reason.
func (w *Writer) LogSecurityEvent(ctx context.Context, entityType, entityID string, actor Actor, reason string, meta RequestMeta) Result {
	e := newEntry(ActionAccessDenied, entityType, entityID, actor, meta)
	e.NewData, _ = marshal(map[string]string{"reason": reason})
	return w.Record(ctx, e)
}

// BulkEntityID is the entity id of export entries that cover more than
// one record.
const BulkEntityID = "bulk"

// LogExportEvent records an export of ids in the given format.
func (w *Writer) LogExportEvent(ctx context.Context, entityType string, ids []string, format string, actor Actor, meta RequestMeta) Result {
	entityID := BulkEntityID
	if len(ids) == 1 {
		entityID = ids[0]
	}
	if ids == nil {
		ids = []string{}
	}
	e := newEntry(ActionExport, entityType, entityID, actor, meta)
	e.NewData, _ = marshal(map[string]any{
		"ids":    ids,
		"format": format,
		"count":  len(ids),
	})
	return w.Record(ctx, e)
}

// LogPrintEvent records that an entity was printed.
func (w *Writer) LogPrintEvent(ctx context.Context, entityType, entityID string, actor Actor, meta RequestMeta) Result {
	return w.Record(ctx, newEntry(ActionPrint, entityType, entityID, actor, meta))
}

func marshal(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal audit payload: %w", err)
	}
	return b, nil
}
