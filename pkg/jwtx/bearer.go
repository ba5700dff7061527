package jwtx

import "strings"

// ExtractBearerToken returns the token from an Authorization header of the
// exact form "Bearer <token>".
func ExtractBearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingAuthorization
	}

	parts := strings.Fields(header)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", ErrInvalidAuthorization
	}

	return parts[1], nil
}
