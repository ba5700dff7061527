package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// DefaultAccessTokenTTL is the default lifetime for access tokens.
	DefaultAccessTokenTTL = 15 * time.Minute

	// DefaultRefreshTokenTTL is the default lifetime of refresh tokens and of
	// the refresh cookie that carries them.
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Payload is what the service puts in both access and refresh tokens.
type Payload struct {
	UserID string
	Email  string
	Role   string
}

// Claims are the JWT claims for access and refresh tokens. Both kinds share
// the shape and differ only by signing secret and lifetime.
type Claims struct {
	jwt.RegisteredClaims

	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// Payload returns the identity carried by the claims.
func (c *Claims) Payload() Payload {
	return Payload{UserID: c.UserID, Email: c.Email, Role: c.Role}
}

// NewClaims builds claims for p, valid for ttl from now.
func NewClaims(p Payload, issuer, audience string, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   p.UserID,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		UserID: p.UserID,
		Email:  p.Email,
		Role:   p.Role,
	}
}

// NewJTI returns a random identifier for the "jti" claim. Two tokens minted
// for the same user in the same second would otherwise be byte-identical,
// and refresh tokens are stored under a unique index.
func NewJTI() string {
	return uuid.NewString()
}
