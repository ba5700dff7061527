package httpx

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/passport/pkg/jwtx"
	"github.com/aussiebroadwan/passport/pkg/slogx"
)

// AccessTokenVerifier is the part of jwtx.Codec the middleware needs.
type AccessTokenVerifier interface {
	VerifyAccessToken(token string) (*jwtx.Claims, error)
}

// AuthnMiddleware requires a valid Bearer access token and puts its claims in
// the request context.
func AuthnMiddleware(v AccessTokenVerifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			raw, err := jwtx.ExtractBearerToken(r.Header.Get("Authorization"))
			if err != nil {
				if errors.Is(err, jwtx.ErrMissingAuthorization) {
					writeBearerError(w, "UNAUTHORIZED", "Authorization header missing")
				} else {
					writeBearerError(w, "UNAUTHORIZED", "Invalid authorization header format")
				}
				return
			}

			claims, err := v.VerifyAccessToken(raw)
			if err != nil {
				if errors.Is(err, jwtx.ErrTokenExpired) {
					writeBearerError(w, "TOKEN_EXPIRED", "Access token expired")
					return
				}
				log.Warn("jwt verify failed", "err", err)
				writeBearerError(w, "INVALID_TOKEN", "Invalid access token")
				return
			}

			ctx = contextWithAuth(ctx, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RFC 6750 challenge plus the usual error envelope.
func writeBearerError(w http.ResponseWriter, code, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+msg+`"`)
	WriteError(w, http.StatusUnauthorized, code, msg)
}
