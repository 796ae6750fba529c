package session

import "time"

// Reason explains why a token no longer yields a session.
type Reason string

const (
	ReasonInvalid    Reason = "invalid"
	ReasonIncomplete Reason = "incomplete"
	ReasonIdle       Reason = "idle"
	ReasonAbsolute   Reason = "absolute"
)

// Result is either Valid or Expired.
type Result interface {
	result()
}

type Valid struct {
	Session Session
}

type Expired struct {
	Reason Reason
}

func (Valid) result()   {}
func (Expired) result() {}

// ToRequestSession converts claims into a Session. It refuses claims missing
// the user id or the tenant id: no partially populated session leaves here.
func ToRequestSession(claims *Claims) (Session, bool) {
	if claims == nil || claims.Subject == "" || claims.TenantID == "" {
		return Session{}, false
	}
	s := Session{
		UserID:   claims.Subject,
		Role:     Role(claims.Role),
		TenantID: claims.TenantID,
	}
	if claims.IssuedAt != nil {
		s.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	s.LastActivity = s.IssuedAt
	if claims.LastActivity > 0 {
		s.LastActivity = time.Unix(claims.LastActivity, 0).UTC()
	}
	return s, true
}

// Evaluate decides whether claims still describe a live session at now.
// A session idle for longer than idleTimeout is expired; exactly
// idleTimeout is still valid.
func Evaluate(claims *Claims, now time.Time, idleTimeout time.Duration) Result {
	if claims == nil {
		return Expired{Reason: ReasonInvalid}
	}
	if claims.ExpiresAt != nil && !now.Before(claims.ExpiresAt.Time) {
		return Expired{Reason: ReasonAbsolute}
	}
	s, ok := ToRequestSession(claims)
	if !ok {
		return Expired{Reason: ReasonIncomplete}
	}
	if now.Sub(s.LastActivity) > idleTimeout {
		return Expired{Reason: ReasonIdle}
	}
	return Valid{Session: s}
}
