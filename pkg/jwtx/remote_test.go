package jwtx_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/passport/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestRemoteKeySet(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	var hits atomic.Int32
	jwks := jwtx.JWKS{Keys: []jwtx.JWK{
		jwtx.NewRSAJWK("kid-1", "RS256", &key.PublicKey),
		{Kty: "oct", Kid: "symmetric"}, // unsupported, skipped
	}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Cache-Control", "public, max-age=600, must-revalidate")
		_ = json.NewEncoder(w).Encode(jwks)
	}))
	defer srv.Close()

	ks := jwtx.NewRemoteKeySet(srv.URL)
	now := time.Now()
	ks.Now = func() time.Time { return now }
	ctx := context.Background()

	t.Run("fetches on first use", func(t *testing.T) {
		got, err := ks.Get(ctx, "kid-1")
		require.NoError(t, err)
		require.Equal(t, key.PublicKey.N, got.(*rsa.PublicKey).N)
		require.EqualValues(t, 1, hits.Load())
	})

	t.Run("serves from cache", func(t *testing.T) {
		_, err := ks.Get(ctx, "kid-1")
		require.NoError(t, err)
		require.EqualValues(t, 1, hits.Load())
	})

	t.Run("unknown kid forces a refetch", func(t *testing.T) {
		_, err := ks.Get(ctx, "kid-2")
		require.ErrorIs(t, err, jwtx.ErrNoKey)
		require.EqualValues(t, 2, hits.Load())
	})

	t.Run("refetches after max-age", func(t *testing.T) {
		now = now.Add(11 * time.Minute)
		_, err := ks.Get(ctx, "kid-1")
		require.NoError(t, err)
		require.EqualValues(t, 3, hits.Load())
	})
}

func TestRemoteKeySet_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ks := jwtx.NewRemoteKeySet(srv.URL)
	_, err := ks.Get(context.Background(), "kid-1")
	require.ErrorIs(t, err, jwtx.ErrJWKSUnavailable)
}
