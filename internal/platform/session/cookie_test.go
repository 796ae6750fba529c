package session

import (
	"net/http"
	"testing"
	"time"
)

func TestNames(t *testing.T) {
	secure := Names(true)
	if secure.Session != "__Secure-clinic.session-token" {
		t.Errorf("unexpected secure session cookie %q", secure.Session)
	}
	if secure.CallbackURL != "__Secure-clinic.callback-url" {
		t.Errorf("unexpected secure callback cookie %q", secure.CallbackURL)
	}
	if secure.CSRF != "__Host-clinic.csrf-token" {
		t.Errorf("unexpected secure csrf cookie %q", secure.CSRF)
	}

	dev := Names(false)
	if dev.Session != "clinic.session-token" || dev.CSRF != "clinic.csrf-token" {
		t.Errorf("unexpected dev cookie names %+v", dev)
	}
}

func TestSessionCookieAttributes(t *testing.T) {
	opts := NewCookieOptions(true)
	c := opts.SessionCookie("tok", 2*time.Hour)

	if !c.HttpOnly {
		t.Error("expected httpOnly")
	}
	if !c.Secure {
		t.Error("expected secure")
	}
	if c.SameSite != http.SameSiteLaxMode {
		t.Errorf("expected SameSite=Lax, got %v", c.SameSite)
	}
	if c.Path != "/" {
		t.Errorf("expected path /, got %q", c.Path)
	}
	if c.MaxAge != 7200 {
		t.Errorf("expected max age 7200, got %d", c.MaxAge)
	}
}

func TestExpire(t *testing.T) {
	c := NewCookieOptions(false).Expire("clinic.session-token")
	if c.MaxAge >= 0 {
		t.Errorf("expected negative max age, got %d", c.MaxAge)
	}
	if c.Value != "" {
		t.Error("expected empty value")
	}
}

func TestSafeCallbackURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"/patients", true},
		{"/patients?page=2", true},
		{"//evil.example.com", false},
		{"https://evil.example.com", false},
		{`/\evil.example.com`, false},
		{"", false},
	}
	for _, tt := range tests {
		if got := SafeCallbackURL(tt.url); got != tt.want {
			t.Errorf("SafeCallbackURL(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestCSRF(t *testing.T) {
	a, err := NewCSRFToken()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := NewCSRFToken()
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
	if a == b {
		t.Error("expected distinct tokens")
	}
	if !ValidCSRF(a, a) {
		t.Error("expected matching tokens to validate")
	}
	if ValidCSRF(a, b) {
		t.Error("expected mismatched tokens to fail")
	}
	if ValidCSRF("", "") {
		t.Error("expected empty tokens to fail")
	}
}
