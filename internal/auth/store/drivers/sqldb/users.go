package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/aussiebroadwan/passport/internal/auth/domain"
	"github.com/aussiebroadwan/passport/internal/auth/store"
)

const userColumns = `id, email, password_hash, full_name, role, email_verified,
	verification_token_hash, verification_expires_at,
	reset_token_hash, reset_expires_at,
	federated_subject, auth_provider, profile_picture,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.User, error) {
	var (
		u                  domain.User
		passwordHash       sql.NullString
		verificationHash   sql.NullString
		verificationExpiry sql.NullTime
		resetHash          sql.NullString
		resetExpiry        sql.NullTime
		federatedSubject   sql.NullString
		profilePicture     sql.NullString
		role, provider     string
	)
	err := row.Scan(
		&u.ID, &u.Email, &passwordHash, &u.FullName, &role, &u.EmailVerified,
		&verificationHash, &verificationExpiry,
		&resetHash, &resetExpiry,
		&federatedSubject, &provider, &profilePicture,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}

	u.PasswordHash = mapNullString(passwordHash)
	u.Role = domain.Role(role)
	u.VerificationTokenHash = mapNullStringPtr(verificationHash)
	u.VerificationExpiresAt = mapNullTimePtr(verificationExpiry)
	u.ResetTokenHash = mapNullStringPtr(resetHash)
	u.ResetExpiresAt = mapNullTimePtr(resetExpiry)
	u.FederatedSubject = mapNullStringPtr(federatedSubject)
	u.AuthProvider = domain.AuthProvider(provider)
	u.ProfilePicture = mapNullString(profilePicture)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u, nil
}

type usersRepo struct {
	db DBTX
	d  Dialect
}

func (r *usersRepo) queryUser(ctx context.Context, query string, args ...any) (domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, r.d.rebind(query), args...))
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, r.d.rebind(`
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		u.ID, u.Email, mapStringNull(u.PasswordHash), u.FullName, string(u.Role), u.EmailVerified,
		mapOptionalString(u.VerificationTokenHash), mapOptionalTime(u.VerificationExpiresAt),
		mapOptionalString(u.ResetTokenHash), mapOptionalTime(u.ResetExpiresAt),
		mapOptionalString(u.FederatedSubject), string(u.AuthProvider), mapStringNull(u.ProfilePicture),
		u.CreatedAt.UTC(), u.UpdatedAt.UTC(),
	)
	return r.d.mapWriteErr(err)
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return r.queryUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.queryUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (r *usersRepo) GetUserByEmailOrFederatedSubject(
	ctx context.Context,
	email, subject string,
) (domain.User, error) {
	return r.queryUser(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE email = ? OR federated_subject = ?
		ORDER BY CASE WHEN federated_subject = ? THEN 0 ELSE 1 END
		LIMIT 1`,
		email, subject, subject,
	)
}

func (r *usersRepo) SetVerificationToken(
	ctx context.Context,
	userID, hash string,
	expiresAt time.Time,
) error {
	return r.execOne(ctx, `
		UPDATE users
		SET verification_token_hash = ?, verification_expires_at = ?, updated_at = ?
		WHERE id = ?`,
		hash, expiresAt.UTC(), time.Now().UTC(), userID,
	)
}

func (r *usersRepo) ConsumeVerificationToken(
	ctx context.Context,
	hash string,
	now time.Time,
) (domain.User, error) {
	return r.queryUser(ctx, `
		UPDATE users
		SET email_verified = TRUE,
			verification_token_hash = NULL,
			verification_expires_at = NULL,
			updated_at = ?
		WHERE verification_token_hash = ? AND verification_expires_at > ?
		RETURNING `+userColumns,
		now.UTC(), hash, now.UTC(),
	)
}

func (r *usersRepo) SetResetToken(
	ctx context.Context,
	userID, hash string,
	expiresAt time.Time,
) error {
	return r.execOne(ctx, `
		UPDATE users
		SET reset_token_hash = ?, reset_expires_at = ?, updated_at = ?
		WHERE id = ?`,
		hash, expiresAt.UTC(), time.Now().UTC(), userID,
	)
}

func (r *usersRepo) ConsumeResetToken(
	ctx context.Context,
	hash, newPasswordHash string,
	now time.Time,
) (domain.User, error) {
	return r.queryUser(ctx, `
		UPDATE users
		SET password_hash = ?,
			reset_token_hash = NULL,
			reset_expires_at = NULL,
			updated_at = ?
		WHERE reset_token_hash = ? AND reset_expires_at > ?
		RETURNING `+userColumns,
		newPasswordHash, now.UTC(), hash, now.UTC(),
	)
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	return r.execOne(ctx, `
		UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		hash, time.Now().UTC(), userID,
	)
}

func (r *usersRepo) LinkFederatedIdentity(
	ctx context.Context,
	userID string,
	link domain.FederatedLink,
) (domain.User, error) {
	u, err := r.queryUser(ctx, `
		UPDATE users
		SET federated_subject = ?,
			auth_provider = ?,
			full_name = ?,
			profile_picture = ?,
			email_verified = TRUE,
			updated_at = ?
		WHERE id = ? AND federated_subject IS NULL
		RETURNING `+userColumns,
		link.Subject, string(link.Provider), link.FullName, mapStringNull(link.ProfilePicture),
		time.Now().UTC(), userID,
	)
	switch {
	case err == nil:
		return u, nil
	case r.d.mapWriteErr(err) == store.ErrAlreadyExists:
		// Subject already belongs to another row.
		return domain.User{}, store.ErrConflict
	case !errors.Is(err, store.ErrNotFound):
		return domain.User{}, err
	}

	// Either the user is gone or someone linked first.
	if _, err := r.GetUserByID(ctx, userID); err != nil {
		return domain.User{}, err
	}
	return domain.User{}, store.ErrConflict
}

// execOne runs an UPDATE that must touch exactly one row.
func (r *usersRepo) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, r.d.rebind(query), args...)
	if err != nil {
		return r.d.mapWriteErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
