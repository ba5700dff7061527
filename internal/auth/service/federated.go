package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/aussiebroadwan/passport/internal/auth/domain"
	"github.com/aussiebroadwan/passport/internal/auth/federation"
	"github.com/aussiebroadwan/passport/internal/auth/store"
	"github.com/aussiebroadwan/passport/pkg/idx"
	"github.com/aussiebroadwan/passport/pkg/slogx"
)

// errLostRace means a concurrent sign-in changed the rows reconcile read.
var errLostRace = errors.New("service: federated reconcile lost a race")

// FederatedSignIn verifies an identity assertion from Google and signs in the
// matching account, creating or linking one as needed.
func (s *CredentialService) FederatedSignIn(ctx context.Context, idToken string) (res *AuthResult, err error) {
	ctx, span := tracer.Start(ctx, "CredentialService.FederatedSignIn")
	defer func() { endSpan(span, err) }()
	l := slogx.FromContext(ctx)

	if s.Verifier == nil {
		return nil, ErrFederationNotConfigured
	}
	if strings.TrimSpace(idToken) == "" {
		return nil, ErrValidation.WithMessage("ID token is required")
	}

	a, err := s.Verifier.Verify(ctx, idToken)
	if err != nil {
		return nil, mapFederationError(err)
	}

	email, err := NormalizeEmail(a.Email)
	if err != nil {
		return nil, ErrValidation.WithMessage("Google account has no usable email address")
	}
	if !a.EmailVerified {
		return nil, ErrValidation.WithMessage("Google account email is not verified")
	}
	name := federatedName(a.Name)
	if name == "" {
		return nil, ErrValidation.WithMessage("Google account has no name")
	}

	// One retry: a lost race means another request wrote the row we need,
	// so the second read sees it.
	var u domain.User
	for attempt := 0; attempt < 2; attempt++ {
		u, err = s.reconcile(ctx, email, name, a)
		if !errors.Is(err, errLostRace) {
			break
		}
		l.Debug("federated reconcile retry", "attempt", attempt+1)
	}
	if err != nil {
		if errors.Is(err, errLostRace) {
			return nil, ErrInternal.Wrap(err)
		}
		return nil, err
	}

	pair, err := s.startSession(ctx, u)
	if err != nil {
		return nil, ErrInternal.Wrap(err)
	}

	l.Info("federated sign-in", "user_id", u.ID, "provider", domain.ProviderGoogle)
	return &AuthResult{User: u.View(), Tokens: pair}, nil
}

// reconcile finds, creates or links the account for a.
func (s *CredentialService) reconcile(ctx context.Context, email, name string, a federation.Assertion) (domain.User, error) {
	u, err := s.Users.GetUserByEmailOrFederatedSubject(ctx, email, a.Subject)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return s.createFederatedUser(ctx, email, name, a)
	case err != nil:
		return domain.User{}, ErrInternal.Wrap(err)
	case u.FederatedSubject == nil:
		linked, err := s.Users.LinkFederatedIdentity(ctx, u.ID, domain.FederatedLink{
			Subject:        a.Subject,
			Provider:       domain.ProviderGoogle,
			FullName:       name,
			ProfilePicture: a.Picture,
		})
		if err != nil {
			if errors.Is(err, store.ErrConflict) || errors.Is(err, store.ErrNotFound) {
				return domain.User{}, errLostRace
			}
			return domain.User{}, ErrInternal.Wrap(err)
		}
		slogx.FromContext(ctx).Info("federated identity linked", "user_id", linked.ID)
		return linked, nil
	case *u.FederatedSubject == a.Subject:
		return u, nil
	default:
		return domain.User{}, ErrAccountConflict
	}
}

func (s *CredentialService) createFederatedUser(ctx context.Context, email, name string, a federation.Assertion) (domain.User, error) {
	now := s.now()
	subject := a.Subject
	u := domain.User{
		ID:               idx.NewUserID(),
		Email:            email,
		FullName:         name,
		Role:             domain.RoleUser,
		EmailVerified:    true,
		FederatedSubject: &subject,
		AuthProvider:     domain.ProviderGoogle,
		ProfilePicture:   a.Picture,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.Users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, errLostRace
		}
		return domain.User{}, ErrInternal.Wrap(err)
	}
	return u, nil
}

func mapFederationError(err error) *Error {
	switch {
	case errors.Is(err, federation.ErrExpired):
		return ErrInvalidIDToken.WithMessage("Firebase ID token has expired").Wrap(err)
	case errors.Is(err, federation.ErrRevoked):
		return ErrInvalidIDToken.WithMessage("Firebase ID token has been revoked").Wrap(err)
	case errors.Is(err, federation.ErrDisabled):
		return ErrInvalidIDToken.WithMessage("User account has been disabled").Wrap(err)
	case errors.Is(err, federation.ErrUnavailable):
		return ErrFederationUnavailable.Wrap(err)
	default:
		return ErrInvalidIDToken.WithMessage("Invalid Firebase ID token").Wrap(err)
	}
}

// federatedName normalises a provider display name, cutting it to the same
// limit local accounts have.
func federatedName(s string) string {
	name := norm.NFC.String(strings.TrimSpace(s))
	if utf8.RuneCountInString(name) > maxFullNameLength {
		name = strings.TrimSpace(string([]rune(name)[:maxFullNameLength]))
	}
	return name
}
