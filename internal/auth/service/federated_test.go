package service_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/passport/internal/auth/domain"
	"github.com/aussiebroadwan/passport/internal/auth/federation"
	"github.com/aussiebroadwan/passport/internal/auth/service"
)

func withAssertions(f *fixture, assertions map[string]federation.Assertion) {
	f.svc.Verifier = federation.StaticVerifier{Assertions: assertions}
}

func TestFederatedSignIn_NewUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	withAssertions(f, map[string]federation.Assertion{
		"tok": {Subject: "g-1", Email: "New@X.com", EmailVerified: true, Name: "New User", Picture: "https://img/1"},
	})

	res, err := f.svc.FederatedSignIn(ctx, "tok")
	require.NoError(t, err)
	require.Equal(t, "new@x.com", res.User.Email)
	require.True(t, res.User.IsEmailVerified)
	require.Equal(t, domain.ProviderGoogle, res.User.AuthProvider)
	require.Equal(t, "https://img/1", res.User.ProfilePicture)
	require.True(t, f.sessionValid(t, res.Tokens.RefreshToken))

	u, err := f.store.Users().GetUserByID(ctx, res.User.ID)
	require.NoError(t, err)
	require.False(t, u.HasPassword())
	require.Equal(t, "g-1", *u.FederatedSubject)

	_, err = f.svc.Login(ctx, "new@x.com", testPassword)
	requireServiceError(t, err, service.ErrUnauthorized)

	again, err := f.svc.FederatedSignIn(ctx, "tok")
	require.NoError(t, err)
	require.Equal(t, res.User.ID, again.User.ID)
}

func TestFederatedSignIn_LinksLocalAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reg := f.register(t, "a@x.com")
	withAssertions(f, map[string]federation.Assertion{
		"tok": {Subject: "g-1", Email: "a@x.com", EmailVerified: true, Name: "Ann Google", Picture: "https://img/a"},
	})

	res, err := f.svc.FederatedSignIn(ctx, "tok")
	require.NoError(t, err)
	require.Equal(t, reg.User.ID, res.User.ID)
	require.Equal(t, "Ann Google", res.User.FullName)
	require.True(t, res.User.IsEmailVerified)
	require.Equal(t, domain.ProviderGoogle, res.User.AuthProvider)

	_, err = f.svc.Login(ctx, "a@x.com", testPassword)
	require.NoError(t, err, "linking keeps the password")
}

func TestFederatedSignIn_AccountConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	withAssertions(f, map[string]federation.Assertion{
		"first":  {Subject: "g-1", Email: "a@x.com", EmailVerified: true, Name: "Ann"},
		"second": {Subject: "g-2", Email: "a@x.com", EmailVerified: true, Name: "Ann"},
	})

	_, err := f.svc.FederatedSignIn(ctx, "first")
	require.NoError(t, err)

	_, err = f.svc.FederatedSignIn(ctx, "second")
	requireServiceError(t, err, service.ErrAccountConflict)
}

func TestFederatedSignIn_Errors(t *testing.T) {
	tests := []struct {
		name       string
		verifier   federation.Verifier
		token      string
		wantCode   string
		wantStatus int
	}{
		{"not configured", nil, "tok", service.CodeFederationNotConfigured, http.StatusInternalServerError},
		{"empty token", federation.StaticVerifier{}, "  ", service.CodeValidation, http.StatusBadRequest},
		{"unknown token", federation.StaticVerifier{}, "tok", service.CodeInvalidIDToken, http.StatusUnauthorized},
		{"expired", federation.StaticVerifier{Err: federation.ErrExpired}, "tok", service.CodeInvalidIDToken, http.StatusUnauthorized},
		{"revoked", federation.StaticVerifier{Err: federation.ErrRevoked}, "tok", service.CodeInvalidIDToken, http.StatusUnauthorized},
		{"disabled", federation.StaticVerifier{Err: federation.ErrDisabled}, "tok", service.CodeInvalidIDToken, http.StatusUnauthorized},
		{"unavailable", federation.StaticVerifier{Err: federation.ErrUnavailable}, "tok", service.CodeFederationUnavailable, http.StatusServiceUnavailable},
		{
			"unverified email",
			federation.StaticVerifier{Assertions: map[string]federation.Assertion{
				"tok": {Subject: "g-1", Email: "a@x.com", Name: "Ann"},
			}},
			"tok", service.CodeValidation, http.StatusBadRequest,
		},
		{
			"missing email",
			federation.StaticVerifier{Assertions: map[string]federation.Assertion{
				"tok": {Subject: "g-1", EmailVerified: true, Name: "Ann"},
			}},
			"tok", service.CodeValidation, http.StatusBadRequest,
		},
		{
			"missing name",
			federation.StaticVerifier{Assertions: map[string]federation.Assertion{
				"tok": {Subject: "g-1", Email: "a@x.com", EmailVerified: true},
			}},
			"tok", service.CodeValidation, http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.svc.Verifier = tt.verifier

			_, err := f.svc.FederatedSignIn(context.Background(), tt.token)
			se := service.AsError(err)
			require.NotNil(t, se)
			require.Equal(t, tt.wantCode, se.Code)
			require.Equal(t, tt.wantStatus, se.Status)
		})
	}
}
