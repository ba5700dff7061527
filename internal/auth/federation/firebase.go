package federation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/passport/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// GoogleSecureTokenJWKS publishes the keys Firebase signs ID tokens with.
	GoogleSecureTokenJWKS = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"

	firebaseIssuerPrefix = "https://securetoken.google.com/"
	maxSubjectLength     = 128
)

type firebaseClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	AuthTime      int64  `json:"auth_time"`
}

// FirebaseVerifier checks Firebase ID tokens offline against Google's
// published keys. Revocation and disabled-account checks need the Admin API
// and a service account, so it never reports ErrRevoked or ErrDisabled.
type FirebaseVerifier struct {
	ProjectID string
	Keys      *jwtx.RemoteKeySet
	Now       func() time.Time
}

func NewFirebaseVerifier(projectID string) *FirebaseVerifier {
	return &FirebaseVerifier{
		ProjectID: projectID,
		Keys:      jwtx.NewRemoteKeySet(GoogleSecureTokenJWKS),
		Now:       time.Now,
	}
}

func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) (Assertion, error) {
	if idToken == "" {
		return Assertion{}, ErrInvalid
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(firebaseIssuerPrefix+v.ProjectID),
		jwt.WithAudience(v.ProjectID),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(v.Now),
	)

	claims := &firebaseClaims{}
	_, err := parser.ParseWithClaims(idToken, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		return v.Keys.Get(ctx, kid)
	})
	switch {
	case err == nil:
	case errors.Is(err, jwtx.ErrJWKSUnavailable):
		return Assertion{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return Assertion{}, ErrExpired
	default:
		return Assertion{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if claims.Subject == "" || len(claims.Subject) > maxSubjectLength {
		return Assertion{}, fmt.Errorf("%w: bad subject", ErrInvalid)
	}
	if claims.AuthTime > v.Now().Unix() {
		return Assertion{}, fmt.Errorf("%w: auth_time in the future", ErrInvalid)
	}

	return Assertion{
		Subject:       claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
		Picture:       claims.Picture,
	}, nil
}
