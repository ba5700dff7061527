// Package redis is a session store backed by Redis. Each refresh token lives
// under its own key with a TTL matching its expiry, and a per-user set indexes
// the tokens for bulk revocation. Users are not stored here.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/passport/internal/auth/domain"
	"github.com/aussiebroadwan/passport/internal/auth/store"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultPrefix = "passport"
	maxRetries    = 4

	// Revoked tokens are kept at least this long so reuse can still be
	// recognised as revoked rather than unknown.
	minRetention = time.Minute
)

var ErrUnavailable = errors.New("redis: session store unavailable")

type Store struct {
	client goredis.UniversalClient
	prefix string
}

var _ store.RefreshTokens = (*Store)(nil)

// NewStore wraps an existing client. prefix namespaces every key.
func NewStore(client goredis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

// Open parses a redis:// URL, connects and pings.
func Open(ctx context.Context, url, prefix string) (*Store, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return NewStore(client, prefix), nil
}

func (s *Store) Ping(ctx context.Context) error { return s.client.Ping(ctx).Err() }
func (s *Store) Close() error                   { return s.client.Close() }

func (s *Store) tokenKey(hash string) string  { return s.prefix + ":rt:" + hash }
func (s *Store) userKey(userID string) string { return s.prefix + ":user:" + userID }

type record struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	TokenHash     string     `json:"token_hash"`
	ExpiresAt     time.Time  `json:"expires_at"`
	Revoked       bool       `json:"revoked"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty"`
	RevokedReason string     `json:"revoked_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func toRecord(t domain.RefreshToken) record {
	r := record{
		ID:        t.ID,
		UserID:    t.UserID,
		TokenHash: t.TokenHash,
		ExpiresAt: t.ExpiresAt.UTC(),
		Revoked:   t.Revoked,
		RevokedAt: t.RevokedAt,
		CreatedAt: t.CreatedAt.UTC(),
	}
	if t.RevokedReason != nil {
		r.RevokedReason = string(*t.RevokedReason)
	}
	return r
}

func (r record) token() (domain.RefreshToken, error) {
	t := domain.RefreshToken{
		ID:        r.ID,
		UserID:    r.UserID,
		TokenHash: r.TokenHash,
		ExpiresAt: r.ExpiresAt,
		Revoked:   r.Revoked,
		RevokedAt: r.RevokedAt,
		CreatedAt: r.CreatedAt,
	}
	if r.RevokedReason != "" {
		reason, err := domain.ParseRevokeReason(r.RevokedReason)
		if err != nil {
			return domain.RefreshToken{}, err
		}
		t.RevokedReason = &reason
	}
	return t, nil
}

func ttlFor(expiresAt, now time.Time) time.Duration {
	ttl := expiresAt.Sub(now)
	if ttl < minRetention {
		return minRetention
	}
	return ttl
}

func (s *Store) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	data, err := json.Marshal(toRecord(t))
	if err != nil {
		return err
	}
	ttl := ttlFor(t.ExpiresAt, time.Now())

	ok, err := s.client.SetNX(ctx, s.tokenKey(t.TokenHash), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !ok {
		return store.ErrAlreadyExists
	}

	_, err = s.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.SAdd(ctx, s.userKey(t.UserID), t.TokenHash)
		pipe.Expire(ctx, s.userKey(t.UserID), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *Store) GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error) {
	data, err := s.client.Get(ctx, s.tokenKey(hash)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.RefreshToken{}, store.ErrNotFound
	}
	if err != nil {
		return domain.RefreshToken{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return decode(data)
}

func decode(data []byte) (domain.RefreshToken, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return domain.RefreshToken{}, err
	}
	return r.token()
}

func (s *Store) RevokeRefreshToken(
	ctx context.Context,
	hash string,
	reason domain.RevokeReason,
	now time.Time,
) error {
	return s.retry(ctx, []string{s.tokenKey(hash)}, func(tx *goredis.Tx) error {
		return s.revokeInTx(ctx, tx, hash, reason, now, nil)
	})
}

func (s *Store) RevokeAllUserRefreshTokens(
	ctx context.Context,
	userID string,
	reason domain.RevokeReason,
	now time.Time,
) (int64, error) {
	hashes, err := s.client.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var revoked int64
	var errs []error
	for _, hash := range hashes {
		err := s.RevokeRefreshToken(ctx, hash, reason, now)
		switch {
		case err == nil:
			revoked++
		case errors.Is(err, store.ErrNotFound):
			// Already revoked, expired or evicted.
		default:
			errs = append(errs, err)
		}
	}
	return revoked, errors.Join(errs...)
}

func (s *Store) RotateRefreshToken(
	ctx context.Context,
	oldHash string,
	next domain.RefreshToken,
	now time.Time,
) error {
	nextData, err := json.Marshal(toRecord(next))
	if err != nil {
		return err
	}
	nextKey := s.tokenKey(next.TokenHash)

	return s.retry(ctx, []string{s.tokenKey(oldHash), nextKey}, func(tx *goredis.Tx) error {
		exists, err := tx.Exists(ctx, nextKey).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return store.ErrAlreadyExists
		}

		return s.revokeInTx(ctx, tx, oldHash, domain.RevokeTokenRotation, now, func(pipe goredis.Pipeliner) {
			ttl := ttlFor(next.ExpiresAt, now)
			pipe.Set(ctx, nextKey, nextData, ttl)
			pipe.SAdd(ctx, s.userKey(next.UserID), next.TokenHash)
			pipe.Expire(ctx, s.userKey(next.UserID), ttl)
		})
	})
}

// DeleteExpiredRefreshTokens is a no-op: key TTLs do the reaping.
func (s *Store) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

// revokeInTx reads the watched token, and if still valid writes it back
// revoked together with whatever extra commands are queued.
func (s *Store) revokeInTx(
	ctx context.Context,
	tx *goredis.Tx,
	hash string,
	reason domain.RevokeReason,
	now time.Time,
	extra func(pipe goredis.Pipeliner),
) error {
	key := s.tokenKey(hash)
	data, err := tx.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return store.ErrNotFound
	}
	if err != nil {
		return err
	}

	t, err := decode(data)
	if err != nil {
		return err
	}
	if !t.IsValid(now) {
		return store.ErrNotFound
	}
	if err := t.Revoke(reason, now.UTC()); err != nil {
		return store.ErrNotFound
	}

	updated, err := json.Marshal(toRecord(t))
	if err != nil {
		return err
	}
	ttl, err := tx.PTTL(ctx, key).Result()
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = minRetention
	}

	_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, key, updated, ttl)
		if extra != nil {
			extra(pipe)
		}
		return nil
	})
	return err
}

// retry runs fn under WATCH on keys, retrying when a concurrent writer
// invalidates the transaction.
func (s *Store) retry(ctx context.Context, keys []string, fn func(tx *goredis.Tx) error) error {
	for i := 0; i < maxRetries; i++ {
		err := s.client.Watch(ctx, fn, keys...)
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		if err == nil || errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrAlreadyExists) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	// Every attempt lost to a concurrent writer, so the token is no longer ours.
	return store.ErrNotFound
}
