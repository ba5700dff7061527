//go:build e2e

package auth_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/passport/pkg/authsdk"
)

// TestAccountLifecycle walks one account through every credential flow:
// register, verify, login, forgot and reset password.
func TestAccountLifecycle(t *testing.T) {
	svc, cleanup := setupAuthContainer(t)
	defer cleanup()

	ctx := t.Context()
	client := svc.client()

	session := registerUser(t, client, "a@x.com")
	require.False(t, session.User().IsEmailVerified, "New accounts start unverified")
	firstRefresh := client.RefreshCookie()

	_, err := client.VerifyEmail(ctx, "not-the-token")
	assertAPIError(t, err, authsdk.ErrNotFound, "Wrong verification token")

	verified, err := client.VerifyEmail(ctx, svc.latestToken(t, "verify-email"))
	require.NoError(t, err)
	require.True(t, verified.User().IsEmailVerified)

	_, err = client.ResendVerification(ctx, "a@x.com")
	assertAPIError(t, err, authsdk.ErrEmailAlreadyVerified, "Resend after verification")

	login, err := client.Login(ctx, "A@X.com", testPassword)
	require.NoError(t, err, "Login is case-insensitive on email")

	profile, err := login.GetProfile(ctx)
	require.NoError(t, err)
	require.Equal(t, "a@x.com", profile.Email)
	require.Equal(t, testFullName, profile.FullName)

	require.NoError(t, client.ForgotPassword(ctx, "a@x.com"))
	require.NoError(t, client.ForgotPassword(ctx, "nobody@x.com"), "Unknown emails look the same")

	_, err = client.ResetPassword(ctx, svc.latestToken(t, "reset-password"), newPassword)
	require.NoError(t, err)

	// Every session from before the reset is gone.
	other := svc.client()
	other.SetRefreshCookie(firstRefresh)
	_, err = other.Refresh(ctx)
	assertAPIError(t, err, authsdk.ErrUnauthorized, "Refresh after password reset")

	_, err = client.Login(ctx, "a@x.com", testPassword)
	assertAPIError(t, err, authsdk.ErrUnauthorized, "Old password after reset")

	_, err = client.Login(ctx, "a@x.com", newPassword)
	require.NoError(t, err)
}

func TestRegisterValidation(t *testing.T) {
	svc, cleanup := setupAuthContainer(t)
	defer cleanup()

	client := svc.client()
	registerUser(t, client, "taken@x.com")

	tests := []struct {
		name string
		req  authsdk.RegisterRequest
		want *authsdk.APIError
	}{
		{"bad email", authsdk.RegisterRequest{Email: "nope", Password: testPassword, FullName: "A"}, authsdk.ErrValidation},
		{"weak password", authsdk.RegisterRequest{Email: "b@x.com", Password: "password", FullName: "B"}, authsdk.ErrValidation},
		{"empty name", authsdk.RegisterRequest{Email: "c@x.com", Password: testPassword, FullName: " "}, authsdk.ErrValidation},
		{"duplicate", authsdk.RegisterRequest{Email: "Taken@X.com", Password: testPassword, FullName: "T"}, authsdk.ErrEmailExists},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Register(t.Context(), tt.req)
			assertAPIError(t, err, tt.want, tt.name)
		})
	}
}

func TestGoogleSignInDisabled(t *testing.T) {
	svc, cleanup := setupAuthContainer(t)
	defer cleanup()

	_, err := svc.client().SignInWithGoogle(t.Context(), "some-id-token")
	require.Error(t, err)

	var apiErr *authsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, 500, apiErr.StatusCode, "No FIREBASE_PROJECT_ID means federation is not configured")
}
