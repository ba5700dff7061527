package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/passport/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrConflict is returned when a conditional write lost to a concurrent
	// one (for example a federated subject was linked first).
	ErrConflict = errors.New("store: conflict")
)

// Store is the root data access interface. Concrete drivers (sqlite, postgres)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable. Every multi-step write that must be atomic is a single repository
// method, so callers never hold a transaction themselves.
type Store interface {
	Users() Users
	RefreshTokens() RefreshTokens

	ApplyMigrations(ctx context.Context) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

type Users interface {
	// CreateUser inserts a new user (id is provided by app via ULID).
	// Returns ErrAlreadyExists if the email or federated subject is taken.
	CreateUser(ctx context.Context, u domain.User) error

	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail expects an already normalised email.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// GetUserByEmailOrFederatedSubject prefers the subject match when both
	// exist on different rows.
	GetUserByEmailOrFederatedSubject(ctx context.Context, email, subject string) (domain.User, error)

	// SetVerificationToken replaces the verification token pair.
	SetVerificationToken(ctx context.Context, userID, hash string, expiresAt time.Time) error

	// ConsumeVerificationToken marks the owner verified and clears the pair,
	// but only if the hash matches and has not expired. A miss of any kind is
	// ErrNotFound.
	ConsumeVerificationToken(ctx context.Context, hash string, now time.Time) (domain.User, error)

	// SetResetToken replaces the reset token pair.
	SetResetToken(ctx context.Context, userID, hash string, expiresAt time.Time) error

	// ConsumeResetToken swaps in newPasswordHash and clears the pair under the
	// same conditions as ConsumeVerificationToken.
	ConsumeResetToken(ctx context.Context, hash, newPasswordHash string, now time.Time) (domain.User, error)

	// UpdatePasswordHash sets the password_hash (argon2) and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID, hash string) error

	// LinkFederatedIdentity attaches a federated subject to a user that has
	// none, overwriting name and picture and marking the email verified.
	// Returns ErrConflict if a subject is already present.
	LinkFederatedIdentity(ctx context.Context, userID string, link domain.FederatedLink) (domain.User, error)
}

// RefreshTokens is the session store. The SQL drivers implement it alongside
// Users; the redis driver implements only this.
type RefreshTokens interface {
	// CreateRefreshToken stores a new refresh token record.
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// GetRefreshTokenByHash returns the token by its fingerprint, revoked or
	// not. Expired rows may already be gone.
	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	// RevokeRefreshToken revokes a still-valid token. ErrNotFound if there is
	// no valid token with that hash.
	RevokeRefreshToken(ctx context.Context, hash string, reason domain.RevokeReason, now time.Time) error

	// RevokeAllUserRefreshTokens revokes every valid token of a user and
	// returns how many were revoked.
	RevokeAllUserRefreshTokens(ctx context.Context, userID string, reason domain.RevokeReason, now time.Time) (int64, error)

	// RotateRefreshToken revokes oldHash with reason token_rotation and stores
	// next in one atomic step. ErrNotFound if oldHash is no longer valid, in
	// which case next is not stored.
	RotateRefreshToken(ctx context.Context, oldHash string, next domain.RefreshToken, now time.Time) error

	// DeleteExpiredRefreshTokens is housekeeping.
	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}
