//go:build e2e

package auth_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/passport/pkg/authsdk"
)

func TestRefreshRotation(t *testing.T) {
	svc, cleanup := setupAuthContainer(t)
	defer cleanup()

	ctx := t.Context()
	client := svc.client()
	session := registerUser(t, client, "a@x.com")

	oldAccess := session.AccessToken()
	oldRefresh := client.RefreshCookie()

	require.NoError(t, session.Refresh(ctx))
	require.NotEqual(t, oldRefresh, client.RefreshCookie(), "Refresh token should be rotated")
	require.NotEmpty(t, session.AccessToken())
	require.NotEqual(t, oldAccess, session.AccessToken(), "Access token should be reissued")

	replay := svc.client()
	replay.SetRefreshCookie(oldRefresh)
	_, err := replay.Refresh(ctx)
	assertAPIError(t, err, authsdk.ErrUnauthorized, "Rotated refresh token is single use")

	_, err = session.GetProfile(ctx)
	require.NoError(t, err, "The new pair keeps working")
}

func TestConcurrentRefreshSingleWinner(t *testing.T) {
	svc, cleanup := setupAuthContainer(t)
	defer cleanup()

	registerUser(t, svc.client(), "a@x.com")
	login := svc.client()
	_, err := login.Login(t.Context(), "a@x.com", testPassword)
	require.NoError(t, err)
	shared := login.RefreshCookie()

	const workers = 6
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := svc.client()
			c.SetRefreshCookie(shared)
			if _, err := c.Refresh(t.Context()); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, wins, "Exactly one concurrent refresh may succeed")
}

func TestLogout(t *testing.T) {
	svc, cleanup := setupAuthContainer(t)
	defer cleanup()

	ctx := t.Context()
	client := svc.client()
	session := registerUser(t, client, "a@x.com")
	refresh := client.RefreshCookie()

	require.NoError(t, session.Logout(ctx))
	require.Empty(t, client.RefreshCookie(), "Logout clears the cookie")

	again := svc.client()
	again.SetRefreshCookie(refresh)
	_, err := again.Refresh(ctx)
	assertAPIError(t, err, authsdk.ErrUnauthorized, "Refresh after logout")

	again.SetRefreshCookie(refresh)
	require.NoError(t, again.Logout(ctx), "Logout is idempotent")
}

func TestProfileRequiresAccessToken(t *testing.T) {
	svc, cleanup := setupAuthContainer(t)
	defer cleanup()

	client := svc.client()
	registerUser(t, client, "a@x.com")

	resp, err := client.HTTPClient.Get(svc.BaseURL + "/v1/auth/me")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 401, resp.StatusCode)
}
