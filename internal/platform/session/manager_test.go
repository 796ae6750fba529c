package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestManager(now *time.Time) *Manager {
	m := NewManager(ManagerConfig{
		Secret:      testSecret,
		MaxAge:      24 * time.Hour,
		IdleTimeout: 30 * time.Minute,
		UpdateAge:   5 * time.Minute,
		Secure:      false,
	})
	m.SetClock(func() time.Time { return *now })
	return m
}

func issueCookie(t *testing.T, m *Manager, s Session) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	if err := m.Issue(rec, s); err != nil {
		t.Fatalf("issue: %v", err)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	return cookies[0]
}

func TestManager_LoadWithoutCookie(t *testing.T) {
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	m := newTestManager(&now)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if res, present := m.Load(req); present || res != nil {
		t.Fatalf("expected no session, got %#v", res)
	}
}

func TestManager_IssueAndLoad(t *testing.T) {
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	m := newTestManager(&now)

	cookie := issueCookie(t, m, New("user-1", RoleAdmin, "clinic-a", now))
	if cookie.Name != "clinic.session-token" {
		t.Errorf("unexpected cookie name %q", cookie.Name)
	}
	if cookie.MaxAge != int((24 * time.Hour).Seconds()) {
		t.Errorf("expected cookie max age of the full lifetime, got %d", cookie.MaxAge)
	}

	now = now.Add(29 * time.Minute)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	res, present := m.Load(req)
	if !present {
		t.Fatal("expected cookie to be present")
	}
	v, ok := res.(Valid)
	if !ok {
		t.Fatalf("expected valid session, got %#v", res)
	}
	if v.Session.Role != RoleAdmin {
		t.Errorf("unexpected role %q", v.Session.Role)
	}
}

func TestManager_LoadIdleExpired(t *testing.T) {
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	m := newTestManager(&now)
	cookie := issueCookie(t, m, New("user-1", RoleAdmin, "clinic-a", now))

	now = now.Add(31 * time.Minute)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	res, _ := m.Load(req)
	exp, ok := res.(Expired)
	if !ok || exp.Reason != ReasonIdle {
		t.Fatalf("expected idle expiry, got %#v", res)
	}
}

func TestManager_LoadAbsoluteExpired(t *testing.T) {
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	m := newTestManager(&now)
	cookie := issueCookie(t, m, New("user-1", RoleAdmin, "clinic-a", now))

	now = now.Add(25 * time.Hour)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	res, _ := m.Load(req)
	exp, ok := res.(Expired)
	if !ok || exp.Reason != ReasonAbsolute {
		t.Fatalf("expected absolute expiry, got %#v", res)
	}
}

func TestManager_LoadGarbage(t *testing.T) {
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	m := newTestManager(&now)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "clinic.session-token", Value: "not-a-jwt"})
	res, present := m.Load(req)
	if !present {
		t.Fatal("expected cookie to be present")
	}
	exp, ok := res.(Expired)
	if !ok || exp.Reason != ReasonInvalid {
		t.Fatalf("expected invalid, got %#v", res)
	}
}

func TestManager_IssueShrinksMaxAge(t *testing.T) {
	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	now := start
	m := newTestManager(&now)
	s := New("user-1", RoleAdmin, "clinic-a", start)

	now = start.Add(10 * time.Hour)
	cookie := issueCookie(t, m, Touch(s, now))
	if cookie.MaxAge != int((14 * time.Hour).Seconds()) {
		t.Errorf("expected remaining lifetime of 14h, got %ds", cookie.MaxAge)
	}
}

func TestManager_Clear(t *testing.T) {
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	m := newTestManager(&now)

	rec := httptest.NewRecorder()
	m.Clear(rec)
	cookies := rec.Result().Cookies()
	if len(cookies) != 2 {
		t.Fatalf("expected 2 cookies, got %d", len(cookies))
	}
	for _, c := range cookies {
		if c.MaxAge >= 0 {
			t.Errorf("cookie %s not expired", c.Name)
		}
	}
}
