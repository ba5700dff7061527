package authsdk

import (
	"context"
	"net/http"
)

// Register creates an account and signs it in.
func (c *SDKClient) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	return c.authenticate(ctx, "/v1/auth/register", req, http.StatusCreated)
}

// Login signs in with email and password.
func (c *SDKClient) Login(ctx context.Context, email, password string) (*Session, error) {
	return c.authenticate(ctx, "/v1/auth/login", LoginRequest{Email: email, Password: password}, http.StatusOK)
}

// VerifyEmail redeems the token from a verification email.
func (c *SDKClient) VerifyEmail(ctx context.Context, token string) (*Session, error) {
	return c.authenticate(ctx, "/v1/auth/verify-email", TokenRequest{Token: token}, http.StatusOK)
}

// ResendVerification sends a new verification email.
func (c *SDKClient) ResendVerification(ctx context.Context, email string) (*Session, error) {
	return c.authenticate(ctx, "/v1/auth/resend-verification", EmailRequest{Email: email}, http.StatusOK)
}

// ResetPassword redeems a reset token and sets a new password.
func (c *SDKClient) ResetPassword(ctx context.Context, token, password string) (*Session, error) {
	return c.authenticate(ctx, "/v1/auth/reset-password", ResetPasswordRequest{Token: token, Password: password}, http.StatusOK)
}

// SignInWithGoogle exchanges a Firebase ID token for a session.
func (c *SDKClient) SignInWithGoogle(ctx context.Context, idToken string) (*Session, error) {
	return c.authenticate(ctx, "/v1/auth/google", GoogleSignInRequest{IDToken: idToken}, http.StatusOK)
}

// ForgotPassword asks for a reset email. It succeeds for unknown emails too.
func (c *SDKClient) ForgotPassword(ctx context.Context, email string) error {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/auth/forgot-password", "", EmailRequest{Email: email})
	if err != nil {
		return err
	}
	return decodeJSON(resp, nil, http.StatusOK)
}

// Refresh exchanges the refresh cookie in the jar for a new session.
func (c *SDKClient) Refresh(ctx context.Context) (*Session, error) {
	return c.authenticate(ctx, "/v1/auth/refresh", nil, http.StatusOK)
}

// Logout revokes the refresh cookie in the jar. The server clears it.
func (c *SDKClient) Logout(ctx context.Context) error {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/auth/logout", "", nil)
	if err != nil {
		return err
	}
	return decodeJSON(resp, nil, http.StatusOK)
}

func (c *SDKClient) authenticate(ctx context.Context, path string, body any, want int) (*Session, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, path, "", body)
	if err != nil {
		return nil, err
	}

	var out Response[AuthData]
	if err := decodeJSON(resp, &out, want); err != nil {
		return nil, err
	}
	return newSession(c, out.Data), nil
}
