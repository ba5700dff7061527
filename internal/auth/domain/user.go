package domain

import (
	"errors"
	"time"
)

// Role is carried in tokens; nothing in this service enforces it.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// AuthProvider is the identity provider the account last signed up or linked
// with.
type AuthProvider string

const (
	ProviderLocal  AuthProvider = "local"
	ProviderGoogle AuthProvider = "google"
)

var (
	ErrPasswordRequired = errors.New("domain: password hash required for non-federated users")
	ErrTokenPairBroken  = errors.New("domain: token and expiry must be set together")
)

type User struct {
	ID            string
	Email         string // trimmed, lowercase
	PasswordHash  string // argon2id PHC, empty for federated-only accounts
	FullName      string
	Role          Role
	EmailVerified bool

	// One-shot tokens are stored as fingerprints (cryptox.FingerprintToken).
	VerificationTokenHash *string
	VerificationExpiresAt *time.Time
	ResetTokenHash        *string
	ResetExpiresAt        *time.Time

	FederatedSubject *string // immutable once set
	AuthProvider     AuthProvider
	ProfilePicture   string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasPassword reports whether the user can log in with a password.
func (u User) HasPassword() bool { return u.PasswordHash != "" }

// Validate checks the invariants the stores also enforce in their schemas.
func (u User) Validate() error {
	if u.PasswordHash == "" && u.FederatedSubject == nil {
		return ErrPasswordRequired
	}
	if (u.VerificationTokenHash == nil) != (u.VerificationExpiresAt == nil) {
		return ErrTokenPairBroken
	}
	if (u.ResetTokenHash == nil) != (u.ResetExpiresAt == nil) {
		return ErrTokenPairBroken
	}
	return nil
}

// FederatedLink is what gets written onto a user when a federated identity is
// attached to it.
type FederatedLink struct {
	Subject        string
	Provider       AuthProvider
	FullName       string
	ProfilePicture string
}

// UserView is the user as callers see it: no password or token fields.
type UserView struct {
	ID              string       `json:"id"`
	Email           string       `json:"email"`
	FullName        string       `json:"fullName"`
	Role            Role         `json:"role"`
	IsEmailVerified bool         `json:"isEmailVerified"`
	AuthProvider    AuthProvider `json:"authProvider"`
	ProfilePicture  string       `json:"profilePicture,omitempty"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

func (u User) View() UserView {
	return UserView{
		ID:              u.ID,
		Email:           u.Email,
		FullName:        u.FullName,
		Role:            u.Role,
		IsEmailVerified: u.EmailVerified,
		AuthProvider:    u.AuthProvider,
		ProfilePicture:  u.ProfilePicture,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}
