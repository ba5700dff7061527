package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aussiebroadwan/passport/internal/auth/domain"
	"github.com/aussiebroadwan/passport/internal/auth/service"
	"github.com/aussiebroadwan/passport/pkg/authsdk"
	"github.com/aussiebroadwan/passport/pkg/httpx"
	"github.com/aussiebroadwan/passport/pkg/slogx"
)

const maxBodyBytes = 1 << 20

// AuthHandler serves the /v1/auth endpoints. It only translates between HTTP
// and the credential service.
type AuthHandler struct {
	Service              *service.CredentialService
	Cookies              CookieConfig
	ExposeInternalErrors bool
}

// authData is the data member of every session-establishing response.
type authData struct {
	User        domain.UserView `json:"user"`
	AccessToken string          `json:"accessToken"`
	ExpiresIn   int             `json:"expiresIn"`
}

type profileData struct {
	User domain.UserView `json:"user"`
}

// HandleRegister godoc
//
//	@Summary		Register an account
//	@Description	Creates an unverified local account, starts a session and sends a verification email.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RegisterRequest					true	"email, password, fullName"
//	@Success		201		{object}	authsdk.Response[authsdk.AuthData]		"Sets the refreshToken cookie"
//	@Failure		400		{object}	authsdk.Response[authsdk.ErrorBody]	"VALIDATION_ERROR"
//	@Failure		409		{object}	authsdk.Response[authsdk.ErrorBody]	"EMAIL_EXISTS"
//	@Failure		429		{object}	authsdk.Response[authsdk.ErrorBody]	"TOO_MANY_REQUESTS"
//	@Router			/v1/auth/register [post].
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.Service.Register(r.Context(), service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeSession(w, http.StatusCreated, "Registration successful. Please check your email to verify your account.", res)
}

// HandleVerifyEmail godoc
//
//	@Summary		Verify an email address
//	@Description	Redeems the token from a verification email and starts a session. Tokens are single use.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.TokenRequest					true	"token"
//	@Success		200		{object}	authsdk.Response[authsdk.AuthData]		"Sets the refreshToken cookie"
//	@Failure		404		{object}	authsdk.Response[authsdk.ErrorBody]	"Invalid or expired verification token"
//	@Router			/v1/auth/verify-email [post].
func (h *AuthHandler) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req authsdk.TokenRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.Service.VerifyEmail(r.Context(), req.Token)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeSession(w, http.StatusOK, "Email verified successfully", res)
}

// HandleResendVerification godoc
//
//	@Summary		Resend the verification email
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.EmailRequest					true	"email"
//	@Success		200		{object}	authsdk.Response[authsdk.AuthData]		"Sets the refreshToken cookie"
//	@Failure		400		{object}	authsdk.Response[authsdk.ErrorBody]	"EMAIL_ALREADY_VERIFIED"
//	@Failure		404		{object}	authsdk.Response[authsdk.ErrorBody]	"User not found"
//	@Router			/v1/auth/resend-verification [post].
func (h *AuthHandler) HandleResendVerification(w http.ResponseWriter, r *http.Request) {
	var req authsdk.EmailRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.Service.ResendVerification(r.Context(), req.Email)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeSession(w, http.StatusOK, "Verification email sent", res)
}

// HandleLogin godoc
//
//	@Summary		Log in with email and password
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.LoginRequest					true	"email, password"
//	@Success		200		{object}	authsdk.Response[authsdk.AuthData]		"Sets the refreshToken cookie"
//	@Failure		401		{object}	authsdk.Response[authsdk.ErrorBody]	"Invalid email or password"
//	@Failure		429		{object}	authsdk.Response[authsdk.ErrorBody]	"TOO_MANY_REQUESTS"
//	@Router			/v1/auth/login [post].
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.Service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeSession(w, http.StatusOK, "Login successful", res)
}

// HandleForgotPassword godoc
//
//	@Summary		Request a password reset email
//	@Description	Always succeeds for unknown emails.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.EmailRequest					true	"email"
//	@Success		200		{object}	authsdk.Response[authsdk.ErrorBody]
//	@Failure		500		{object}	authsdk.Response[authsdk.ErrorBody]	"EMAIL_SEND_FAILED"
//	@Router			/v1/auth/forgot-password [post].
func (h *AuthHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req authsdk.EmailRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.Service.ForgotPassword(r.Context(), req.Email); err != nil {
		h.writeError(w, r, err)
		return
	}

	httpx.WriteSuccess(w, http.StatusOK, "If an account with that email exists, a password reset link has been sent.", nil)
}

// HandleResetPassword godoc
//
//	@Summary		Reset a password
//	@Description	Redeems a reset token, sets the new password, ends every other session and starts a new one.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.ResetPasswordRequest			true	"token, password"
//	@Success		200		{object}	authsdk.Response[authsdk.AuthData]		"Sets the refreshToken cookie"
//	@Failure		400		{object}	authsdk.Response[authsdk.ErrorBody]	"VALIDATION_ERROR"
//	@Failure		404		{object}	authsdk.Response[authsdk.ErrorBody]	"Invalid or expired reset token"
//	@Router			/v1/auth/reset-password [post].
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ResetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.Service.ResetPassword(r.Context(), req.Token, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeSession(w, http.StatusOK, "Password reset successful", res)
}

// HandleGoogle godoc
//
//	@Summary		Sign in with Google
//	@Description	Verifies a Firebase ID token and signs in, creating or linking the account by email.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.GoogleSignInRequest				true	"idToken"
//	@Success		200		{object}	authsdk.Response[authsdk.AuthData]		"Sets the refreshToken cookie"
//	@Failure		400		{object}	authsdk.Response[authsdk.ErrorBody]	"ACCOUNT_CONFLICT"
//	@Failure		401		{object}	authsdk.Response[authsdk.ErrorBody]	"INVALID_ID_TOKEN"
//	@Failure		503		{object}	authsdk.Response[authsdk.ErrorBody]	"FEDERATION_UNAVAILABLE"
//	@Router			/v1/auth/google [post].
func (h *AuthHandler) HandleGoogle(w http.ResponseWriter, r *http.Request) {
	var req authsdk.GoogleSignInRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.IDToken == "" {
		httpx.WriteError(w, http.StatusBadRequest, service.CodeValidation, "Firebase ID token is required")
		return
	}

	res, err := h.Service.FederatedSignIn(r.Context(), req.IDToken)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeSession(w, http.StatusOK, "Authentication successful. Redirecting to your dashboard.", res)
}

// HandleRefresh godoc
//
//	@Summary		Refresh the session
//	@Description	Exchanges the refresh token (cookie, or body for cookieless clients) for a new pair.
//	@Description	The presented refresh token is revoked.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RefreshRequest					false	"refreshToken"
//	@Success		200		{object}	authsdk.Response[authsdk.AuthData]		"Sets the refreshToken cookie"
//	@Failure		401		{object}	authsdk.Response[authsdk.ErrorBody]	"UNAUTHORIZED, TOKEN_EXPIRED or INVALID_TOKEN"
//	@Router			/v1/auth/refresh [post].
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	token := readRefreshCookie(r)
	if token == "" && r.ContentLength != 0 {
		var req authsdk.RefreshRequest
		if !h.decode(w, r, &req) {
			return
		}
		token = req.RefreshToken
	}
	if token == "" {
		httpx.WriteError(w, http.StatusUnauthorized, service.CodeUnauthorized, "Refresh token required")
		return
	}

	res, err := h.Service.Refresh(r.Context(), token)
	if err != nil {
		h.Cookies.clear(w)
		h.writeError(w, r, err)
		return
	}

	h.writeSession(w, http.StatusOK, "Token refreshed successfully", res)
}

// HandleLogout godoc
//
//	@Summary		Log out
//	@Description	Revokes the refresh cookie and clears it. Unknown or already revoked tokens still succeed.
//	@Tags			Auth
//	@Produce		json
//	@Success		200	{object}	authsdk.Response[authsdk.ErrorBody]
//	@Failure		401	{object}	authsdk.Response[authsdk.ErrorBody]	"Refresh token required"
//	@Router			/v1/auth/logout [post].
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	token := readRefreshCookie(r)
	if token == "" {
		httpx.WriteError(w, http.StatusUnauthorized, service.CodeUnauthorized, "Refresh token required")
		return
	}

	_ = h.Service.Logout(r.Context(), token)
	h.Cookies.clear(w)
	httpx.WriteSuccess(w, http.StatusOK, "Logout successful", nil)
}

// HandleMe godoc
//
//	@Summary		Current user
//	@Tags			Auth
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.Response[authsdk.ProfileData]
//	@Failure		401	{object}	authsdk.Response[authsdk.ErrorBody]	"Invalid or missing access token"
//	@Failure		404	{object}	authsdk.Response[authsdk.ErrorBody]	"User not found"
//	@Router			/v1/auth/me [get].
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := httpx.UserIDFromContext(ctx)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, service.CodeUnauthorized, "Unauthorized")
		return
	}

	view, err := h.Service.GetProfile(ctx, userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	httpx.WriteSuccess(w, http.StatusOK, "Profile retrieved successfully", profileData{User: view})
}

func (h *AuthHandler) writeSession(w http.ResponseWriter, status int, message string, res *service.AuthResult) {
	h.Cookies.set(w, res.Tokens.RefreshToken)
	httpx.WriteSuccess(w, status, message, authData{
		User:        res.User,
		AccessToken: res.Tokens.AccessToken,
		ExpiresIn:   int(res.Tokens.AccessExpiresIn.Seconds()),
	})
}

// decode reads a JSON body into v. On failure it writes the error response
// and returns false.
func (h *AuthHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.WriteError(w, http.StatusRequestEntityTooLarge, service.CodeValidation, "Request body too large")
			return false
		}
		httpx.WriteError(w, http.StatusBadRequest, service.CodeValidation, "Invalid request body")
		return false
	}
	return true
}

// writeError writes err as the error envelope. Internal failures are logged
// with their cause; the cause only reaches the response outside production.
func (h *AuthHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	se := service.AsError(err)
	msg := se.Message

	if se.Status >= http.StatusInternalServerError {
		slogx.FromContext(r.Context()).Error("request failed", "code", se.Code, "err", err)
		if se.Code == service.CodeInternal && h.ExposeInternalErrors && se.Err != nil {
			msg = se.Err.Error()
		}
	}

	httpx.WriteError(w, se.Status, se.Code, msg)
}
