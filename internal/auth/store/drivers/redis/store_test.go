package redis_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aussiebroadwan/passport/internal/auth/domain"
	"github.com/aussiebroadwan/passport/internal/auth/store"
	redisstore "github.com/aussiebroadwan/passport/internal/auth/store/drivers/redis"
	"github.com/aussiebroadwan/passport/pkg/idx"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*redisstore.Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return redisstore.NewStore(client, "test"), mr
}

func token(userID, hash string, expiresAt time.Time) domain.RefreshToken {
	return domain.RefreshToken{
		ID:        idx.NewSessionID(),
		UserID:    userID,
		TokenHash: hash,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
}

func TestCreateAndGet(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.CreateRefreshToken(ctx, token("u1", "h1", now.Add(time.Hour))))
	require.ErrorIs(t, s.CreateRefreshToken(ctx, token("u1", "h1", now.Add(time.Hour))), store.ErrAlreadyExists)

	got, err := s.GetRefreshTokenByHash(ctx, "h1")
	require.NoError(t, err)
	require.Equal(t, "u1", got.UserID)
	require.True(t, got.IsValid(now))

	// Key TTL tracks the token expiry.
	ttl := mr.TTL("test:rt:h1")
	require.InDelta(t, time.Hour.Seconds(), ttl.Seconds(), 5)
	require.True(t, mr.Exists("test:user:u1"))

	_, err = s.GetRefreshTokenByHash(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestExpiryByTTL(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.CreateRefreshToken(ctx, token("u1", "short", now.Add(2*time.Minute))))
	mr.FastForward(3 * time.Minute)

	_, err := s.GetRefreshTokenByHash(ctx, "short")
	require.ErrorIs(t, err, store.ErrNotFound)

	n, err := s.DeleteExpiredRefreshTokens(ctx, now)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestRevoke(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.CreateRefreshToken(ctx, token("u1", "h1", now.Add(time.Hour))))
	require.NoError(t, s.RevokeRefreshToken(ctx, "h1", domain.RevokeLogout, now))

	got, err := s.GetRefreshTokenByHash(ctx, "h1")
	require.NoError(t, err)
	require.True(t, got.Revoked)
	require.Equal(t, domain.RevokeLogout, *got.RevokedReason)

	require.ErrorIs(t, s.RevokeRefreshToken(ctx, "h1", domain.RevokeSecurityBreach, now), store.ErrNotFound)
	got, err = s.GetRefreshTokenByHash(ctx, "h1")
	require.NoError(t, err)
	require.Equal(t, domain.RevokeLogout, *got.RevokedReason)
}

func TestRevokeAll(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, h := range []string{"a", "b", "c"} {
		require.NoError(t, s.CreateRefreshToken(ctx, token("u1", h, now.Add(time.Hour))))
	}
	require.NoError(t, s.CreateRefreshToken(ctx, token("u2", "other", now.Add(time.Hour))))
	require.NoError(t, s.RevokeRefreshToken(ctx, "a", domain.RevokeLogout, now))

	n, err := s.RevokeAllUserRefreshTokens(ctx, "u1", domain.RevokePasswordReset, now)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	other, err := s.GetRefreshTokenByHash(ctx, "other")
	require.NoError(t, err)
	require.True(t, other.IsValid(now))
}

func TestRotate(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.CreateRefreshToken(ctx, token("u1", "old", now.Add(time.Hour))))
	require.NoError(t, s.RotateRefreshToken(ctx, "old", token("u1", "new", now.Add(time.Hour)), now))

	old, err := s.GetRefreshTokenByHash(ctx, "old")
	require.NoError(t, err)
	require.Equal(t, domain.RevokeTokenRotation, *old.RevokedReason)

	next, err := s.GetRefreshTokenByHash(ctx, "new")
	require.NoError(t, err)
	require.True(t, next.IsValid(now))

	err = s.RotateRefreshToken(ctx, "old", token("u1", "replay", now.Add(time.Hour)), now)
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetRefreshTokenByHash(ctx, "replay")
	require.ErrorIs(t, err, store.ErrNotFound)

	// Rotated-in tokens are indexed for bulk revocation.
	n, err := s.RevokeAllUserRefreshTokens(ctx, "u1", domain.RevokePasswordReset, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestRotateConcurrentlyHasOneWinner(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.CreateRefreshToken(ctx, token("u1", "shared", now.Add(time.Hour))))

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			next := token("u1", idx.NewSessionID(), now.Add(time.Hour))
			if err := s.RotateRefreshToken(ctx, "shared", next, now); err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, winners)
}
