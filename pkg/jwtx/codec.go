package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the shortest HMAC secret NewCodec accepts.
const MinSecretLength = 32

// CodecConfig configures a Codec.
type CodecConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	Issuer        string
	Audience      string
	AccessTTL     time.Duration // default: DefaultAccessTokenTTL
	RefreshTTL    time.Duration // default: DefaultRefreshTokenTTL
}

// Codec signs and verifies the HS256 access and refresh tokens. Each kind has
// its own secret, so a leaked access secret can't be used to forge refresh
// tokens and the other way round.
type Codec struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	audience      string
	accessTTL     time.Duration
	refreshTTL    time.Duration

	// Now is the clock used for iat/exp and for verification. Tests swap it.
	Now func() time.Time
}

// NewCodec validates cfg and returns a Codec.
func NewCodec(cfg CodecConfig) (*Codec, error) {
	if len(cfg.AccessSecret) < MinSecretLength || len(cfg.RefreshSecret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, ErrSharedSecret
	}
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, errors.New("jwtx: issuer and audience are required")
	}

	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTokenTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTokenTTL
	}

	return &Codec{
		accessSecret:  cfg.AccessSecret,
		refreshSecret: cfg.RefreshSecret,
		issuer:        cfg.Issuer,
		audience:      cfg.Audience,
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		Now:           time.Now,
	}, nil
}

func (c *Codec) AccessTTL() time.Duration  { return c.accessTTL }
func (c *Codec) RefreshTTL() time.Duration { return c.refreshTTL }

// GenerateAccessToken signs a short-lived access token for p.
func (c *Codec) GenerateAccessToken(p Payload) (string, error) {
	return c.sign(p, c.accessSecret, c.accessTTL)
}

// GenerateRefreshToken signs a long-lived refresh token for p.
func (c *Codec) GenerateRefreshToken(p Payload) (string, error) {
	return c.sign(p, c.refreshSecret, c.refreshTTL)
}

// VerifyAccessToken checks signature, issuer, audience and expiry.
func (c *Codec) VerifyAccessToken(token string) (*Claims, error) {
	return c.verify(token, c.accessSecret)
}

// VerifyRefreshToken checks signature, issuer, audience and expiry.
func (c *Codec) VerifyRefreshToken(token string) (*Claims, error) {
	return c.verify(token, c.refreshSecret)
}

func (c *Codec) sign(p Payload, secret []byte, ttl time.Duration) (string, error) {
	claims := NewClaims(p, c.issuer, c.audience, ttl, c.Now())
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("jwtx: sign: %w", err)
	}
	return signed, nil
}

func (c *Codec) verify(tokenStr string, secret []byte) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.Now),
	)

	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
