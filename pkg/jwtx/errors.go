package jwtx

import "errors"

var (
	ErrTokenExpired = errors.New("jwtx: token expired")
	ErrTokenInvalid = errors.New("jwtx: token invalid")

	ErrMissingAuthorization = errors.New("jwtx: authorization header missing")
	ErrInvalidAuthorization = errors.New("jwtx: invalid authorization header format")

	ErrWeakSecret   = errors.New("jwtx: signing secret must be at least 32 bytes")
	ErrSharedSecret = errors.New("jwtx: access and refresh secrets must differ")

	ErrNoKey = errors.New("jwtx: key not found")
)
