package domain

import (
	"errors"
	"fmt"
	"time"
)

// RevokeReason is why a refresh token stopped being usable.
type RevokeReason string

const (
	RevokeLogout           RevokeReason = "logout"
	RevokeSecurityBreach   RevokeReason = "security_breach"
	RevokeTokenRotation    RevokeReason = "token_rotation"
	RevokePasswordReset    RevokeReason = "password_reset"
	RevokeManualRevocation RevokeReason = "manual_revocation"
)

var ErrAlreadyRevoked = errors.New("domain: refresh token already revoked")

// ParseRevokeReason maps a stored string back onto the closed set.
func ParseRevokeReason(s string) (RevokeReason, error) {
	switch r := RevokeReason(s); r {
	case RevokeLogout, RevokeSecurityBreach, RevokeTokenRotation, RevokePasswordReset, RevokeManualRevocation:
		return r, nil
	}
	return "", fmt.Errorf("domain: unknown revoke reason %q", s)
}

// TokenPair is what a session-establishing operation hands back. The refresh
// token never goes in a response body; the transport puts it in a cookie.
type TokenPair struct {
	AccessToken     string
	RefreshToken    string
	AccessExpiresIn time.Duration
	RefreshExpires  time.Time
}

// RefreshToken models the stored refresh token record. Only the fingerprint
// of the signed token is kept.
type RefreshToken struct {
	ID            string
	UserID        string
	TokenHash     string // deterministic fingerprint (base64url SHA-256)
	ExpiresAt     time.Time
	Revoked       bool
	RevokedAt     *time.Time
	RevokedReason *RevokeReason
	CreatedAt     time.Time
}

// IsValid reports whether the token can still be exchanged at now.
func (t RefreshToken) IsValid(now time.Time) bool {
	return !t.Revoked && t.ExpiresAt.After(now)
}

// Revoke marks the token revoked. Revocation is one-way: a second call fails
// and leaves the original reason and time alone.
func (t *RefreshToken) Revoke(reason RevokeReason, now time.Time) error {
	if t.Revoked {
		return ErrAlreadyRevoked
	}
	t.Revoked = true
	t.RevokedAt = &now
	t.RevokedReason = &reason
	return nil
}
