package patient

import (
	"bytes"
	"encoding/csv"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/hipaa"
	"github.com/clinic/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts /patients on g. Clinical staff read and write;
// deletion and export are limited to admins and doctors.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	staff := auth.Guard(auth.ClinicalStaff)
	privileged := auth.Guard(auth.AdminOrDoctor)

	p := g.Group("/patients")
	p.GET("", h.List, staff)
	p.POST("", h.Create, staff)
	p.POST("/export", h.Export, privileged)
	p.GET("/:id", h.Get, staff)
	p.PUT("/:id", h.Update, staff)
	p.DELETE("/:id", h.Delete, privileged)
	p.GET("/:id/print", h.Print, staff)
}

func pathID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		// A malformed id cannot exist in any tenant.
		return uuid.Nil, apperr.NotFound("patient")
	}
	return id, nil
}

func (h *Handler) List(c echo.Context) error {
	scope, err := auth.ScopeFrom(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	patients, total, err := h.svc.List(c.Request().Context(), scope, c.QueryParam("q"), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(patients, total, pg.Limit, pg.Offset))
}

func (h *Handler) Get(c echo.Context) error {
	scope, err := auth.ScopeFrom(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Get(c.Request().Context(), scope, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Create(c echo.Context) error {
	scope, err := auth.ScopeFrom(c)
	if err != nil {
		return err
	}
	var in Input
	if err := c.Bind(&in); err != nil {
		return apperr.Invalid("invalid request body")
	}
	p, err := h.svc.Create(c.Request().Context(), scope, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) Update(c echo.Context) error {
	scope, err := auth.ScopeFrom(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var in Input
	if err := c.Bind(&in); err != nil {
		return apperr.Invalid("invalid request body")
	}
	p, err := h.svc.Update(c.Request().Context(), scope, id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Delete(c echo.Context) error {
	scope, err := auth.ScopeFrom(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), scope, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type exportRequest struct {
	IDs    []string `json:"ids"`
	Format string   `json:"format"`
}

var csvHeader = []string{"id", "mrn", "first_name", "last_name", "birth_date", "gender", "phone", "email", "address"}

func (h *Handler) Export(c echo.Context) error {
	scope, err := auth.ScopeFrom(c)
	if err != nil {
		return err
	}
	var req exportRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Invalid("invalid request body")
	}
	ids := make([]uuid.UUID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return apperr.Invalid("ids must be UUIDs")
		}
		ids = append(ids, id)
	}
	req.Format = strings.ToLower(strings.TrimSpace(req.Format))
	if req.Format == "" {
		req.Format = FormatJSON
	}

	patients, err := h.svc.Export(c.Request().Context(), scope, ids, req.Format)
	if err != nil {
		return err
	}
	if req.Format == FormatJSON {
		return c.JSON(http.StatusOK, map[string]any{"patients": patients})
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(csvHeader)
	for _, p := range patients {
		birth := ""
		if p.BirthDate != nil {
			birth = p.BirthDate.Format(dateLayout)
		}
		_ = w.Write(hipaa.CSVRecord([]string{p.ID.String(), p.MRN, p.FirstName, p.LastName, birth,
			deref(p.Gender), deref(p.Phone), deref(p.Email), deref(p.Address)}))
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return apperr.Internal("write csv", err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="patients.csv"`)
	return c.Blob(http.StatusOK, "text/csv", buf.Bytes())
}

func (h *Handler) Print(c echo.Context) error {
	scope, err := auth.ScopeFrom(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Print(c.Request().Context(), scope, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}
