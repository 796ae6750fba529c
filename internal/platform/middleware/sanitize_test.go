package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/apperr"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		headers map[string]string
		reject  bool
	}{
		{"clean request", "/api/v1/patients?limit=10&entityType=Patient", nil, false},
		{"sql-like value is only logged", "/api/v1/patients?q=1%27%20OR%201=1", nil, false},
		{"path traversal", "/api/v1/../../etc/passwd", nil, true},
		{"encoded traversal", "/api/v1/%2e%2e/%2e%2e/etc/passwd", nil, true},
		{"null byte in path", "/api/v1/patients/abc%00", nil, true},
		{"null byte in query", "/api/v1/patients?mrn=abc%00", nil, true},
		{"script in query", "/api/v1/patients?name=%3Cscript%3Ealert(1)%3C/script%3E", nil, true},
		{"javascript uri", "/api/v1/patients?next=javascript:alert(1)", nil, true},
		{"event handler attribute", "/api/v1/patients?name=x%22onerror%3Dalert(1)", nil, true},
		{"oversized header", "/api/v1/patients", map[string]string{"X-Big": strings.Repeat("a", maxHeaderValueSize+1)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			c := e.NewContext(req, httptest.NewRecorder())

			called := false
			err := Sanitize(zerolog.Nop())(func(echo.Context) error {
				called = true
				return nil
			})(c)

			if tt.reject {
				if !apperr.Is(err, apperr.KindInvalid) {
					t.Fatalf("expected invalid error, got %v", err)
				}
				if called {
					t.Error("handler must not run")
				}
				return
			}
			if err != nil || !called {
				t.Fatalf("expected pass-through, got %v", err)
			}
		})
	}
}

func TestSanitize_HeaderInjection(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil)
	// Header.Set would canonicalize but keeps the raw value.
	req.Header["X-Injected"] = []string{"value\r\nSet-Cookie: x=y"}
	c := e.NewContext(req, httptest.NewRecorder())

	err := Sanitize(zerolog.Nop())(func(echo.Context) error { return nil })(c)
	if !apperr.Is(err, apperr.KindInvalid) {
		t.Fatalf("expected invalid error, got %v", err)
	}
	if strings.Contains(apperr.PublicMessage(err), "Set-Cookie") {
		t.Error("rejection must not echo the header value")
	}
}
