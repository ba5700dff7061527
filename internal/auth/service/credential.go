package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aussiebroadwan/passport/internal/auth/domain"
	"github.com/aussiebroadwan/passport/internal/auth/federation"
	"github.com/aussiebroadwan/passport/internal/auth/notify"
	"github.com/aussiebroadwan/passport/internal/auth/store"
	"github.com/aussiebroadwan/passport/pkg/cryptox"
	"github.com/aussiebroadwan/passport/pkg/idx"
	"github.com/aussiebroadwan/passport/pkg/jwtx"
	"github.com/aussiebroadwan/passport/pkg/slogx"
)

const (
	DefaultVerificationTTL = 24 * time.Hour
	DefaultResetTTL        = time.Hour
)

var tracer = otel.Tracer("github.com/aussiebroadwan/passport/internal/auth/service")

// ErrInvalidCredentials is the one answer to every failed login, whichever
// part was wrong.
var ErrInvalidCredentials = ErrUnauthorized.WithMessage("Invalid email or password")

// AuthResult is returned by every operation that establishes a session.
type AuthResult struct {
	User   domain.UserView
	Tokens domain.TokenPair
}

// CredentialService owns the account lifecycle and session issuance. It keeps
// no state of its own; everything lives in Users and Sessions.
type CredentialService struct {
	Users    store.Users
	Sessions store.RefreshTokens
	Codec    *jwtx.Codec

	// Verifier may be nil, which disables federated sign-in.
	Verifier federation.Verifier
	Mailer   notify.Notifier
	Links    notify.Links
	Policy   NotifyPolicy

	VerificationTTL time.Duration
	ResetTTL        time.Duration

	Now func() time.Time
}

type RegisterInput struct {
	Email    string
	Password string
	FullName string
}

// Register creates an unverified local account, signs it in and sends the
// verification email.
func (s *CredentialService) Register(ctx context.Context, in RegisterInput) (res *AuthResult, err error) {
	ctx, span := tracer.Start(ctx, "CredentialService.Register")
	defer func() { endSpan(span, err) }()
	l := slogx.FromContext(ctx)

	email, err := NormalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if err := ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	fullName, err := NormalizeFullName(in.FullName)
	if err != nil {
		return nil, err
	}

	if _, err := s.Users.GetUserByEmail(ctx, email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, ErrRegistrationFailed.Wrap(err)
	}

	hash, err := cryptox.HashPassword(in.Password)
	if err != nil {
		return nil, ErrRegistrationFailed.Wrap(err)
	}

	token, tokenHash, expiresAt, err := s.newOneShotToken(s.verificationTTL())
	if err != nil {
		return nil, ErrRegistrationFailed.Wrap(err)
	}

	now := s.now()
	u := domain.User{
		ID:                    idx.NewUserID(),
		Email:                 email,
		PasswordHash:          hash,
		FullName:              fullName,
		Role:                  domain.RoleUser,
		VerificationTokenHash: &tokenHash,
		VerificationExpiresAt: &expiresAt,
		AuthProvider:          domain.ProviderLocal,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := s.Users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, ErrEmailExists
		}
		return nil, ErrRegistrationFailed.Wrap(err)
	}

	pair, err := s.startSession(ctx, u)
	if err != nil {
		return nil, ErrRegistrationFailed.Wrap(err)
	}

	err = s.deliver(ctx, s.Policy.Register, "verification", func(ctx context.Context) error {
		return s.Mailer.SendVerificationEmail(ctx, u.Email, u.FullName, s.Links.VerifyURL(token))
	})
	if err != nil {
		return nil, err
	}

	l.Info("user registered", "user_id", u.ID)
	return &AuthResult{User: u.View(), Tokens: pair}, nil
}

// VerifyEmail consumes a verification token and signs the owner in. Wrong,
// expired and already-used tokens are indistinguishable to the caller.
func (s *CredentialService) VerifyEmail(ctx context.Context, token string) (res *AuthResult, err error) {
	ctx, span := tracer.Start(ctx, "CredentialService.VerifyEmail")
	defer func() { endSpan(span, err) }()

	if token == "" {
		return nil, ErrValidation.WithMessage("Verification token is required")
	}

	u, err := s.Users.ConsumeVerificationToken(ctx, cryptox.FingerprintToken(token), s.now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound.WithMessage("Invalid or expired verification token")
		}
		return nil, ErrInternal.Wrap(err)
	}

	pair, err := s.startSession(ctx, u)
	if err != nil {
		return nil, ErrInternal.Wrap(err)
	}

	slogx.FromContext(ctx).Info("email verified", "user_id", u.ID)
	return &AuthResult{User: u.View(), Tokens: pair}, nil
}

// ResendVerification issues a new verification token, replacing the old one.
func (s *CredentialService) ResendVerification(ctx context.Context, email string) (res *AuthResult, err error) {
	ctx, span := tracer.Start(ctx, "CredentialService.ResendVerification")
	defer func() { endSpan(span, err) }()

	email, err = NormalizeEmail(email)
	if err != nil {
		return nil, err
	}

	u, err := s.Users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound.WithMessage("User not found")
		}
		return nil, ErrInternal.Wrap(err)
	}
	if u.EmailVerified {
		return nil, ErrEmailAlreadyVerified
	}

	token, tokenHash, expiresAt, err := s.newOneShotToken(s.verificationTTL())
	if err != nil {
		return nil, ErrInternal.Wrap(err)
	}
	if err := s.Users.SetVerificationToken(ctx, u.ID, tokenHash, expiresAt); err != nil {
		return nil, ErrInternal.Wrap(err)
	}

	pair, err := s.startSession(ctx, u)
	if err != nil {
		return nil, ErrInternal.Wrap(err)
	}

	err = s.deliver(ctx, s.Policy.Resend, "verification", func(ctx context.Context) error {
		return s.Mailer.SendVerificationEmail(ctx, u.Email, u.FullName, s.Links.VerifyURL(token))
	})
	if err != nil {
		return nil, err
	}

	return &AuthResult{User: u.View(), Tokens: pair}, nil
}

// Login checks a password and signs the user in. Unverified users may log in.
func (s *CredentialService) Login(ctx context.Context, email, password string) (res *AuthResult, err error) {
	ctx, span := tracer.Start(ctx, "CredentialService.Login")
	defer func() { endSpan(span, err) }()
	l := slogx.FromContext(ctx)

	email, err = NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if password == "" {
		return nil, ErrValidation.WithMessage("Password is required")
	}

	u, err := s.Users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			burnPasswordCheck(password)
			return nil, ErrInvalidCredentials
		}
		return nil, ErrInternal.Wrap(err)
	}
	if !u.HasPassword() {
		burnPasswordCheck(password)
		return nil, ErrInvalidCredentials
	}

	ok, err := cryptox.ComparePassword(password, u.PasswordHash)
	if err != nil {
		return nil, ErrInternal.Wrap(err)
	}
	if !ok {
		l.Info("login failed", "user_id", u.ID)
		return nil, ErrInvalidCredentials
	}

	if cryptox.NeedsRehash(u.PasswordHash) {
		if hash, err := cryptox.HashPassword(password); err != nil {
			l.Warn("password rehash failed", "user_id", u.ID, "error", err)
		} else if err := s.Users.UpdatePasswordHash(ctx, u.ID, hash); err != nil {
			l.Warn("password rehash not stored", "user_id", u.ID, "error", err)
		}
	}

	pair, err := s.startSession(ctx, u)
	if err != nil {
		return nil, ErrInternal.Wrap(err)
	}

	l.Info("user logged in", "user_id", u.ID)
	return &AuthResult{User: u.View(), Tokens: pair}, nil
}

// ForgotPassword sends a reset link if the email belongs to an account. It
// reports success for unknown emails.
func (s *CredentialService) ForgotPassword(ctx context.Context, email string) (err error) {
	ctx, span := tracer.Start(ctx, "CredentialService.ForgotPassword")
	defer func() { endSpan(span, err) }()
	l := slogx.FromContext(ctx)

	email, err = NormalizeEmail(email)
	if err != nil {
		return err
	}

	u, err := s.Users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			l.Debug("password reset requested for unknown email")
			return nil
		}
		return ErrInternal.Wrap(err)
	}

	token, tokenHash, expiresAt, err := s.newOneShotToken(s.resetTTL())
	if err != nil {
		return ErrInternal.Wrap(err)
	}
	if err := s.Users.SetResetToken(ctx, u.ID, tokenHash, expiresAt); err != nil {
		return ErrInternal.Wrap(err)
	}

	return s.deliver(ctx, s.Policy.ForgotPassword, "password_reset", func(ctx context.Context) error {
		return s.Mailer.SendPasswordResetEmail(ctx, u.Email, u.FullName, s.Links.ResetURL(token))
	})
}

// ResetPassword consumes a reset token, sets the new password, revokes every
// existing session of the user and starts a fresh one.
func (s *CredentialService) ResetPassword(ctx context.Context, token, newPassword string) (res *AuthResult, err error) {
	ctx, span := tracer.Start(ctx, "CredentialService.ResetPassword")
	defer func() { endSpan(span, err) }()
	l := slogx.FromContext(ctx)

	if token == "" {
		return nil, ErrValidation.WithMessage("Reset token is required")
	}
	if err := ValidatePassword(newPassword); err != nil {
		return nil, err
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return nil, ErrInternal.Wrap(err)
	}

	now := s.now()
	u, err := s.Users.ConsumeResetToken(ctx, cryptox.FingerprintToken(token), hash, now)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound.WithMessage("Invalid or expired reset token")
		}
		return nil, ErrInternal.Wrap(err)
	}

	if n, err := s.Sessions.RevokeAllUserRefreshTokens(ctx, u.ID, domain.RevokePasswordReset, now); err != nil {
		l.Error("failed to revoke sessions after password reset", "user_id", u.ID, "revoked", n, "error", err)
	} else {
		l.Info("sessions revoked after password reset", "user_id", u.ID, "revoked", n)
	}

	pair, err := s.startSession(ctx, u)
	if err != nil {
		return nil, ErrInternal.Wrap(err)
	}

	return &AuthResult{User: u.View(), Tokens: pair}, nil
}

// GetProfile returns the caller's own user record.
func (s *CredentialService) GetProfile(ctx context.Context, userID string) (domain.UserView, error) {
	u, err := s.Users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.UserView{}, ErrNotFound.WithMessage("User not found")
		}
		return domain.UserView{}, ErrInternal.Wrap(err)
	}
	return u.View(), nil
}

// deliver runs send under mode. BestEffort failures are logged and dropped.
func (s *CredentialService) deliver(ctx context.Context, mode NotifyMode, kind string, send func(context.Context) error) error {
	err := send(ctx)
	if err == nil {
		return nil
	}
	if mode == Required {
		slogx.FromContext(ctx).Error("email delivery failed", "kind", kind, "error", err)
		return ErrEmailSendFailed.Wrap(err)
	}
	slogx.FromContext(ctx).Warn("email delivery failed, continuing", "kind", kind, "error", err)
	return nil
}

// newOneShotToken returns a fresh token, its stored fingerprint and expiry.
func (s *CredentialService) newOneShotToken(ttl time.Duration) (token, hash string, expiresAt time.Time, err error) {
	token, err = cryptox.GenerateSecureToken()
	if err != nil {
		return "", "", time.Time{}, err
	}
	return token, cryptox.FingerprintToken(token), s.now().Add(ttl), nil
}

func (s *CredentialService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *CredentialService) verificationTTL() time.Duration {
	if s.VerificationTTL > 0 {
		return s.VerificationTTL
	}
	return DefaultVerificationTTL
}

func (s *CredentialService) resetTTL() time.Duration {
	if s.ResetTTL > 0 {
		return s.ResetTTL
	}
	return DefaultResetTTL
}

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// burnPasswordCheck does the work of a real comparison so a login for an
// unknown email takes as long as a wrong password.
func burnPasswordCheck(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = cryptox.HashPassword("passport-timing-equaliser")
	})
	if dummyHash != "" {
		_, _ = cryptox.ComparePassword(password, dummyHash)
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, AsError(err).Code)
	}
	span.End()
}
