package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the signed token payload.
type Claims struct {
	jwt.RegisteredClaims
	Role         string `json:"role,omitempty"`
	TenantID     string `json:"tenant_id,omitempty"`
	LastActivity int64  `json:"last_activity,omitempty"`
}

// Codec signs and verifies session tokens with HMAC-SHA256. The token
// expires maxAge after issuance regardless of activity.
type Codec struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

func NewCodec(secret []byte, maxAge time.Duration) *Codec {
	return &Codec{secret: secret, maxAge: maxAge, now: time.Now}
}

func (c *Codec) MaxAge() time.Duration {
	return c.maxAge
}

// Sign encodes s. The absolute expiry is derived from s.IssuedAt, so
// re-signing a touched session never extends its lifetime.
func (c *Codec) Sign(s Session) (string, error) {
	if len(c.secret) == 0 {
		return "", errors.New("session: signing secret is empty")
	}
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.UserID,
			IssuedAt:  jwt.NewNumericDate(s.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(s.IssuedAt.Add(c.maxAge)),
		},
		Role:         string(s.Role),
		TenantID:     s.TenantID,
		LastActivity: s.LastActivity.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("session: sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies signature and absolute expiry and returns the claims.
func (c *Codec) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, fmt.Errorf("session: parse token: %w", err)
	}
	if !parsed.Valid {
		return nil, errors.New("session: invalid token")
	}
	return claims, nil
}
