package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/passport/internal/auth/domain"
	"github.com/aussiebroadwan/passport/internal/auth/store"
	"github.com/aussiebroadwan/passport/pkg/cryptox"
	"github.com/aussiebroadwan/passport/pkg/idx"
	"github.com/aussiebroadwan/passport/pkg/jwtx"
	"github.com/aussiebroadwan/passport/pkg/slogx"
)

// Logout revokes the session behind refreshToken. It never fails: an unknown
// or already revoked token is logged and ignored.
func (s *CredentialService) Logout(ctx context.Context, refreshToken string) error {
	ctx, span := tracer.Start(ctx, "CredentialService.Logout")
	defer span.End()
	l := slogx.FromContext(ctx)

	if refreshToken == "" {
		return nil
	}

	err := s.Sessions.RevokeRefreshToken(ctx, cryptox.FingerprintToken(refreshToken), domain.RevokeLogout, s.now())
	switch {
	case err == nil:
		l.Info("session revoked", "reason", domain.RevokeLogout)
	case errors.Is(err, store.ErrNotFound):
		l.Debug("logout for unknown or inactive session")
	default:
		l.Warn("failed to revoke session on logout", "error", err)
	}
	return nil
}

// Refresh exchanges a valid refresh token for a new pair. The presented token
// is revoked in the same step, so it works exactly once.
func (s *CredentialService) Refresh(ctx context.Context, refreshToken string) (res *AuthResult, err error) {
	ctx, span := tracer.Start(ctx, "CredentialService.Refresh")
	defer func() { endSpan(span, err) }()
	l := slogx.FromContext(ctx)

	if refreshToken == "" {
		return nil, ErrUnauthorized.WithMessage("Refresh token required")
	}

	claims, err := s.Codec.VerifyRefreshToken(refreshToken)
	if err != nil {
		if errors.Is(err, jwtx.ErrTokenExpired) {
			return nil, ErrTokenExpired.WithMessage("Refresh token expired")
		}
		return nil, ErrTokenInvalid.WithMessage("Invalid refresh token").Wrap(err)
	}

	u, err := s.Users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnauthorized.WithMessage("User not found")
		}
		return nil, ErrInternal.Wrap(err)
	}

	pair, next, err := s.mintSession(u)
	if err != nil {
		return nil, ErrInternal.Wrap(err)
	}

	err = s.Sessions.RotateRefreshToken(ctx, cryptox.FingerprintToken(refreshToken), next, s.now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			l.Info("refresh with inactive session", "user_id", u.ID)
			return nil, ErrUnauthorized.WithMessage("Refresh token revoked or expired")
		}
		return nil, ErrInternal.Wrap(err)
	}

	return &AuthResult{User: u.View(), Tokens: pair}, nil
}

// startSession mints a token pair for u and stores the refresh half.
func (s *CredentialService) startSession(ctx context.Context, u domain.User) (domain.TokenPair, error) {
	pair, row, err := s.mintSession(u)
	if err != nil {
		return domain.TokenPair{}, err
	}
	if err := s.Sessions.CreateRefreshToken(ctx, row); err != nil {
		return domain.TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}
	return pair, nil
}

// mintSession signs both tokens from the current user record so role and
// email changes reach the next access token.
func (s *CredentialService) mintSession(u domain.User) (domain.TokenPair, domain.RefreshToken, error) {
	p := jwtx.Payload{UserID: u.ID, Email: u.Email, Role: string(u.Role)}

	access, err := s.Codec.GenerateAccessToken(p)
	if err != nil {
		return domain.TokenPair{}, domain.RefreshToken{}, err
	}
	refresh, err := s.Codec.GenerateRefreshToken(p)
	if err != nil {
		return domain.TokenPair{}, domain.RefreshToken{}, err
	}

	now := s.now()
	expiresAt := now.Add(s.Codec.RefreshTTL())
	row := domain.RefreshToken{
		ID:        idx.NewSessionID(),
		UserID:    u.ID,
		TokenHash: cryptox.FingerprintToken(refresh),
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}
	pair := domain.TokenPair{
		AccessToken:     access,
		RefreshToken:    refresh,
		AccessExpiresIn: s.Codec.AccessTTL(),
		RefreshExpires:  expiresAt,
	}
	return pair, row, nil
}
