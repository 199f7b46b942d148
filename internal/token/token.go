// Package token issues and verifies the signed, expiring tokens used across
// the authentication flow. Every token carries a subject (the user id) and a
// purpose claim; verification requires the expected purpose, so a session
// token can never stand in for an email-verification or reset token.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Purpose tags what a token is allowed to be used for.
type Purpose string

const (
	// PurposeVerify authorizes the verify-email step after sign-up.
	PurposeVerify Purpose = "verify"
	// PurposeSession proves identity on subsequent requests.
	PurposeSession Purpose = "session"
	// PurposeReset authorizes exactly one password change after OTP verification.
	PurposeReset Purpose = "reset"
)

// ErrInvalid is returned for any token that fails signature, expiry,
// malformation, or purpose checks.
var ErrInvalid = errors.New("invalid or expired token")

type claims struct {
	Purpose Purpose `json:"purpose"`
	jwt.RegisteredClaims
}

// Manager signs and verifies HMAC-SHA256 tokens with a shared secret.
type Manager struct {
	secret []byte
}

// NewManager returns a Manager signing with the given secret.
func NewManager(secret []byte) (*Manager, error) {
	if len(secret) == 0 {
		return nil, errors.New("token: empty signing secret")
	}
	return &Manager{secret: secret}, nil
}

// Issue signs a token for the given subject with the given purpose and TTL.
func (m *Manager) Issue(subject string, purpose Purpose, ttl time.Duration) (string, error) {
	now := time.Now()
	c := claims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.secret)
}

// Verify parses the token, checks signature and expiry, and requires the
// purpose claim to match. It returns the embedded subject.
func (m *Manager) Verify(tokenStr string, want Purpose) (string, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return "", ErrInvalid
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || c.Purpose != want || c.Subject == "" {
		return "", ErrInvalid
	}
	return c.Subject, nil
}
