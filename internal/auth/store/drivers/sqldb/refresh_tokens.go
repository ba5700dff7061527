package sqldb

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/passport/internal/auth/domain"
	"github.com/aussiebroadwan/passport/internal/auth/store"
)

const refreshTokenColumns = `id, user_id, token_hash, expires_at, revoked, revoked_at, revoked_reason, created_at`

func scanRefreshToken(row rowScanner) (domain.RefreshToken, error) {
	var (
		t         domain.RefreshToken
		revokedAt sql.NullTime
		reason    sql.NullString
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.Revoked, &revokedAt, &reason, &t.CreatedAt); err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}

	t.ExpiresAt = t.ExpiresAt.UTC()
	t.CreatedAt = t.CreatedAt.UTC()
	t.RevokedAt = mapNullTimePtr(revokedAt)
	if reason.Valid {
		rr, err := domain.ParseRevokeReason(reason.String)
		if err != nil {
			return domain.RefreshToken{}, err
		}
		t.RevokedReason = &rr
	}
	return t, nil
}

type refreshTokensRepo struct {
	db *sql.DB
	d  Dialect
}

func (r *refreshTokensRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	return r.create(ctx, r.db, t)
}

func (r *refreshTokensRepo) create(ctx context.Context, db DBTX, t domain.RefreshToken) error {
	var reason sql.NullString
	if t.RevokedReason != nil {
		reason = mapStringNull(string(*t.RevokedReason))
	}
	_, err := db.ExecContext(ctx, r.d.rebind(`
		INSERT INTO refresh_tokens (`+refreshTokenColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		t.ID, t.UserID, t.TokenHash, t.ExpiresAt.UTC(), t.Revoked,
		mapOptionalTime(t.RevokedAt), reason, t.CreatedAt.UTC(),
	)
	return r.d.mapWriteErr(err)
}

func (r *refreshTokensRepo) GetRefreshTokenByHash(
	ctx context.Context,
	hash string,
) (domain.RefreshToken, error) {
	return scanRefreshToken(r.db.QueryRowContext(ctx, r.d.rebind(
		`SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE token_hash = ?`),
		hash,
	))
}

func (r *refreshTokensRepo) RevokeRefreshToken(
	ctx context.Context,
	hash string,
	reason domain.RevokeReason,
	now time.Time,
) error {
	n, err := r.revokeByHash(ctx, r.db, hash, reason, now)
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// revokeByHash flips a still-valid row to revoked. Revoked rows are never
// touched again so their reason and time stay as first written.
func (r *refreshTokensRepo) revokeByHash(
	ctx context.Context,
	db DBTX,
	hash string,
	reason domain.RevokeReason,
	now time.Time,
) (int64, error) {
	res, err := db.ExecContext(ctx, r.d.rebind(`
		UPDATE refresh_tokens
		SET revoked = TRUE, revoked_at = ?, revoked_reason = ?
		WHERE token_hash = ? AND NOT revoked AND expires_at > ?`),
		now.UTC(), string(reason), hash, now.UTC(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *refreshTokensRepo) RevokeAllUserRefreshTokens(
	ctx context.Context,
	userID string,
	reason domain.RevokeReason,
	now time.Time,
) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.d.rebind(`
		UPDATE refresh_tokens
		SET revoked = TRUE, revoked_at = ?, revoked_reason = ?
		WHERE user_id = ? AND NOT revoked AND expires_at > ?`),
		now.UTC(), string(reason), userID, now.UTC(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *refreshTokensRepo) RotateRefreshToken(
	ctx context.Context,
	oldHash string,
	next domain.RefreshToken,
	now time.Time,
) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		n, err := r.revokeByHash(ctx, tx, oldHash, domain.RevokeTokenRotation, now)
		if err != nil {
			return err
		}
		if n == 0 {
			return store.ErrNotFound
		}
		return r.create(ctx, tx, next)
	})
}

func (r *refreshTokensRepo) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.d.rebind(
		`DELETE FROM refresh_tokens WHERE expires_at <= ?`),
		now.UTC(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
