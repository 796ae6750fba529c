package hipaa

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/session"
)

// Handler serves the audit trail to administrators.
type Handler struct {
	query  *QueryService
	writer *Writer
}

func NewHandler(query *QueryService, writer *Writer) *Handler {
	return &Handler{query: query, writer: writer}
}

// RegisterRoutes mounts the audit endpoints on g behind guard, which must
// restrict access to administrators.
func (h *Handler) RegisterRoutes(g *echo.Group, guard ...echo.MiddlewareFunc) {
	audit := g.Group("/audit-logs", guard...)
	audit.GET("", h.List)
	audit.GET("/trail/:entityType/:entityId", h.Trail)
	audit.GET("/export", h.ExportCSV)
}

func scope(c echo.Context) (string, Actor, RequestMeta, error) {
	ctx := c.Request().Context()
	tenantID := db.TenantFromContext(ctx)
	s, ok := session.FromContext(ctx)
	if !ok || tenantID == "" {
		return "", Actor{}, RequestMeta{}, apperr.Internal("audit handler reached without a scoped session", nil)
	}
	return tenantID, Actor{UserID: s.UserID, TenantID: tenantID}, RequestMetaFromContext(ctx), nil
}

// parseFilter reads the audit filter query parameters.
func parseFilter(c echo.Context) (Filter, error) {
	f := Filter{
		EntityType: c.QueryParam("entityType"),
		EntityID:   c.QueryParam("entityId"),
		UserID:     c.QueryParam("userId"),
	}
	if v := c.QueryParam("action"); v != "" {
		a, err := ParseAction(v)
		if err != nil {
			return Filter{}, apperr.Invalid(err.Error())
		}
		f.Action = a
	}
	for name, dst := range map[string]**time.Time{"from": &f.From, "to": &f.To} {
		v := c.QueryParam(name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return Filter{}, apperr.Invalid(fmt.Sprintf("%s must be an RFC 3339 timestamp", name))
		}
		*dst = &t
	}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Filter{}, apperr.Invalid("limit must be an integer")
		}
		f.Limit = n
	}
	if v := c.QueryParam("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Filter{}, apperr.Invalid("offset must be an integer")
		}
		f.Offset = n
	}
	return f, nil
}

// List handles GET /audit-logs.
func (h *Handler) List(c echo.Context) error {
	tenantID, _, _, err := scope(c)
	if err != nil {
		return err
	}
	f, err := parseFilter(c)
	if err != nil {
		return err
	}
	page, err := h.query.Query(c.Request().Context(), tenantID, f)
	if err != nil {
		return apperr.Internal("query audit logs", err)
	}
	return c.JSON(http.StatusOK, page)
}

// Trail handles GET /audit-logs/trail/:entityType/:entityId.
func (h *Handler) Trail(c echo.Context) error {
	tenantID, _, _, err := scope(c)
	if err != nil {
		return err
	}
	entries, err := h.query.EntityTrail(c.Request().Context(), tenantID, c.Param("entityType"), c.Param("entityId"))
	if err != nil {
		return apperr.Internal("load audit trail", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"logs": entries})
}

// ExportCSV handles GET /audit-logs/export. The export itself is audited.
func (h *Handler) ExportCSV(c echo.Context) error {
	tenantID, actor, meta, err := scope(c)
	if err != nil {
		return err
	}
	f, err := parseFilter(c)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	ids, err := h.query.ExportCSV(c.Request().Context(), tenantID, f, &buf)
	if err != nil {
		return apperr.Internal("export audit logs", err)
	}
	h.writer.LogExportEvent(c.Request().Context(), EntityAuditLog, ids, "csv", actor, meta)

	c.Response().Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=\"audit_export_%s.csv\"", time.Now().UTC().Format("20060102_150405")))
	return c.Blob(http.StatusOK, "text/csv", buf.Bytes())
}
