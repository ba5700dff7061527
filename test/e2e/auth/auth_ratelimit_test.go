//go:build e2e

package auth_test

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/passport/pkg/authsdk"
)

// TestRateLimitLoginEndpoint verifies the strict limit (5 req/min) on login.
func TestRateLimitLoginEndpoint(t *testing.T) {
	svc, cleanup := setupAuthContainerWithDefaultRateLimits(t)
	defer cleanup()

	client := svc.client()

	var lastErr error
	for i := range 6 {
		_, err := client.Login(t.Context(), "nobody@x.com", "Wr0ng!pass")
		if i < 5 {
			assertAPIError(t, err, authsdk.ErrUnauthorized, "Invalid credentials should fail before the limit")
		} else {
			lastErr = err
		}
	}

	assertAPIError(t, lastErr, authsdk.ErrTooManyRequests, "Sixth login should be rate limited")
}

// TestRateLimitHealthEndpoints verifies probes are not throttled at normal
// polling rates.
func TestRateLimitHealthEndpoints(t *testing.T) {
	svc, cleanup := setupAuthContainerWithDefaultRateLimits(t)
	defer cleanup()

	client := svc.client()

	for i := range 30 {
		health, err := client.GetLiveness(t.Context())
		require.NoError(t, err, "Liveness request %d should not be rate limited", i+1)
		require.Equal(t, "ok", health.Status)

		health, err = client.GetReadiness(t.Context())
		require.NoError(t, err, "Readiness request %d should not be rate limited", i+1)
		require.Equal(t, "ok", health.Status)
	}
}

// TestRateLimitHeadersPresent verifies the 429 carries Retry-After and the
// error envelope.
func TestRateLimitHeadersPresent(t *testing.T) {
	svc, cleanup := setupAuthContainerWithDefaultRateLimits(t)
	defer cleanup()

	httpClient := &http.Client{}

	var resp *http.Response
	for range 6 {
		if resp != nil {
			resp.Body.Close()
		}
		var err error
		resp, err = httpClient.Post(svc.BaseURL+"/v1/auth/forgot-password", "application/json",
			strings.NewReader(`{"email":"nobody@x.com"}`))
		require.NoError(t, err)
	}
	defer resp.Body.Close()

	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("Retry-After"))
	require.NotEmpty(t, resp.Header.Get("X-RateLimit-Limit"))

	var env authsdk.Response[json.RawMessage]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	require.False(t, env.Success)
	require.Equal(t, "TOO_MANY_REQUESTS", env.Error.Code)
}
