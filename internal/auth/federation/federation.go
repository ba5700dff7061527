// Package federation verifies identity assertions issued by an external
// provider (Google sign-in through Firebase).
package federation

import (
	"context"
	"errors"
)

var (
	ErrExpired     = errors.New("federation: id token expired")
	ErrRevoked     = errors.New("federation: id token revoked")
	ErrInvalid     = errors.New("federation: id token invalid")
	ErrDisabled    = errors.New("federation: account disabled")
	ErrUnavailable = errors.New("federation: provider unavailable")
)

// Assertion is what the provider vouches for.
type Assertion struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

type Verifier interface {
	Verify(ctx context.Context, idToken string) (Assertion, error)
}

// StaticVerifier resolves tokens from a fixed table. Unknown tokens are
// ErrInvalid. Used in tests and local development.
type StaticVerifier struct {
	Assertions map[string]Assertion

	// Err, when set, is returned for every call.
	Err error
}

func (v StaticVerifier) Verify(_ context.Context, idToken string) (Assertion, error) {
	if v.Err != nil {
		return Assertion{}, v.Err
	}
	a, ok := v.Assertions[idToken]
	if !ok {
		return Assertion{}, ErrInvalid
	}
	return a, nil
}
