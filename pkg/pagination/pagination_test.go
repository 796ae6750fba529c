package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func newContext(target string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestFromContext_Defaults(t *testing.T) {
	p := FromContext(newContext("/"))

	if p.Limit != DefaultLimit {
		t.Errorf("expected default limit %d, got %d", DefaultLimit, p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected default offset 0, got %d", p.Offset)
	}
}

func TestFromContext_CustomValues(t *testing.T) {
	p := FromContext(newContext("/?limit=50&offset=10"))

	if p.Limit != 50 {
		t.Errorf("expected limit 50, got %d", p.Limit)
	}
	if p.Offset != 10 {
		t.Errorf("expected offset 10, got %d", p.Offset)
	}
}

func TestParse_PageSizeAlias(t *testing.T) {
	p := Parse(newContext("/?pageSize=30"), Limits{Default: 50, Max: 500})
	if p.Limit != 30 {
		t.Errorf("expected limit 30, got %d", p.Limit)
	}
}

func TestParse_Limits(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		wantLimit  int
		wantOffset int
	}{
		{"default", "/", 50, 0},
		{"capped", "/?limit=10000", 500, 0},
		{"negative offset", "/?offset=-5", 50, 0},
		{"garbage", "/?limit=abc&offset=xyz", 50, 0},
		{"explicit", "/?limit=5&offset=15", 5, 15},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Parse(newContext(tt.target), Limits{Default: 50, Max: 500})
			if p.Limit != tt.wantLimit || p.Offset != tt.wantOffset {
				t.Errorf("got limit=%d offset=%d, want %d/%d", p.Limit, p.Offset, tt.wantLimit, tt.wantOffset)
			}
		})
	}
}

func TestNewResponse_HasMore(t *testing.T) {
	r := NewResponse([]int{1, 2}, 5, 2, 0)
	if !r.HasMore {
		t.Error("expected has_more with 5 total and first page of 2")
	}
	r = NewResponse([]int{5}, 5, 2, 4)
	if r.HasMore {
		t.Error("did not expect has_more on the last page")
	}
}

func TestParams_Navigation(t *testing.T) {
	p := Params{Limit: 10, Offset: 0}
	if !p.HasNext(25) {
		t.Error("expected next page")
	}
	if p.HasPrevious() {
		t.Error("did not expect previous page")
	}
	p.Offset = 20
	if p.HasNext(25) {
		t.Error("did not expect next page")
	}
	if !p.HasPrevious() {
		t.Error("expected previous page")
	}
}
