// Package jwt implements generation and parsing of the JWT tokens used
// by the school-admin API. Tokens are minted by the platform auth
// service; this package only needs the shared secret to validate them.
package jwt

import (
	"time"
)

// Maker describes generation and parsing of JWT tokens.
type Maker interface {
	// GenerateToken creates a token for a school admin.
	GenerateToken(username, role, schoolID string) (string, error)
	// ParseToken validates a token and returns its claims.
	ParseToken(tokenStr string) (*CustomClaims, error)
}

// MakerImpl implements Maker with a shared secret key and a token TTL.
type MakerImpl struct {
	secretKey string
	tokenTTL  time.Duration
}

// NewJWTMaker creates a MakerImpl from a secret key and TTL.
func NewJWTMaker(secretKey string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
	}
}
