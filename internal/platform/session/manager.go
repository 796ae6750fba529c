package session

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Manager ties the codec to cookie transport and the idle/refresh policy.
type Manager struct {
	codec     *Codec
	cookies   CookieOptions
	idle      time.Duration
	updateAge time.Duration
	now       func() time.Time
}

type ManagerConfig struct {
	Secret      []byte
	MaxAge      time.Duration
	IdleTimeout time.Duration
	UpdateAge   time.Duration
	Secure      bool
}

func NewManager(cfg ManagerConfig) *Manager {
	return &Manager{
		codec:     NewCodec(cfg.Secret, cfg.MaxAge),
		cookies:   NewCookieOptions(cfg.Secure),
		idle:      cfg.IdleTimeout,
		updateAge: cfg.UpdateAge,
		now:       time.Now,
	}
}

// SetClock replaces the time source. Tests only.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
	m.codec.now = now
}

func (m *Manager) Now() time.Time {
	return m.now()
}

func (m *Manager) Cookies() CookieOptions {
	return m.cookies
}

func (m *Manager) UpdateAge() time.Duration {
	return m.updateAge
}

func (m *Manager) IdleTimeout() time.Duration {
	return m.idle
}

// Load reads and evaluates the session cookie. The boolean is false when
// the request carries no session cookie at all.
func (m *Manager) Load(r *http.Request) (Result, bool) {
	c, err := r.Cookie(m.cookies.Names.Session)
	if err != nil || c.Value == "" {
		return nil, false
	}
	claims, err := m.codec.Parse(c.Value)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return Expired{Reason: ReasonAbsolute}, true
	}
	if err != nil {
		return Expired{Reason: ReasonInvalid}, true
	}
	return Evaluate(claims, m.now(), m.idle), true
}

// Issue signs s and writes the session cookie. The cookie's max-age is the
// remaining absolute lifetime.
func (m *Manager) Issue(w http.ResponseWriter, s Session) error {
	token, err := m.codec.Sign(s)
	if err != nil {
		return err
	}
	remaining := s.IssuedAt.Add(m.codec.MaxAge()).Sub(m.now())
	if remaining < time.Second {
		remaining = time.Second
	}
	http.SetCookie(w, m.cookies.SessionCookie(token, remaining))
	return nil
}

// Clear deletes the session and callback-url cookies.
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, m.cookies.Expire(m.cookies.Names.Session))
	http.SetCookie(w, m.cookies.Expire(m.cookies.Names.CallbackURL))
}
