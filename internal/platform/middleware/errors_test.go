package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/apperr"
)

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"unauthenticated", apperr.Unauthenticated(), http.StatusUnauthorized, "authentication required"},
		{"forbidden hides reason", apperr.Wrap(apperr.KindForbidden, "access denied", errors.New("role STAFF")), http.StatusForbidden, "access denied"},
		{"not found", apperr.NotFound("patient"), http.StatusNotFound, "patient not found"},
		{"conflict", apperr.Conflict("mrn already exists"), http.StatusConflict, "mrn already exists"},
		{"invalid", apperr.Invalid("bad limit"), http.StatusBadRequest, "bad limit"},
		{"internal hides detail", apperr.Internal("session has no tenant", errors.New("user 42")), http.StatusInternalServerError, "internal server error"},
		{"plain error", errors.New("pq: connection refused"), http.StatusInternalServerError, "internal server error"},
		{"echo error", echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded"), http.StatusTooManyRequests, "rate limit exceeded"},
		{"echo not found", echo.ErrNotFound, http.StatusNotFound, "Not Found"},
	}

	h := ErrorHandler(zerolog.Nop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil), rec)

			h(tt.err, c)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["error"] != tt.wantMsg {
				t.Errorf("message = %q, want %q", body["error"], tt.wantMsg)
			}
		})
	}
}

func TestErrorHandler_CommittedResponseUntouched(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	_ = c.String(http.StatusOK, "partial")

	ErrorHandler(zerolog.Nop())(apperr.Forbidden(), c)

	if rec.Code != http.StatusOK || rec.Body.String() != "partial" {
		t.Errorf("committed response was modified: %d %q", rec.Code, rec.Body.String())
	}
}

func TestRecovery(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	err := Recovery(zerolog.Nop())(func(echo.Context) error {
		panic("nil map write")
	})(c)

	if !apperr.Is(err, apperr.KindInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
	if apperr.PublicMessage(err) != "internal server error" {
		t.Errorf("panic detail leaked: %q", apperr.PublicMessage(err))
	}
}
