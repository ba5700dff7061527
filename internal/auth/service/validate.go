package service

import (
	"net/mail"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	minPasswordLength = 8
	maxFullNameLength = 50
	maxEmailLength    = 254

	passwordSpecials = "@$!%*?&"
)

// NormalizeEmail trims and lowercases s and checks it is a bare address.
func NormalizeEmail(s string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(s))
	if email == "" {
		return "", ErrValidation.WithMessage("Email is required")
	}
	if len(email) > maxEmailLength {
		return "", ErrValidation.WithMessage("Invalid email format")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return "", ErrValidation.WithMessage("Invalid email format")
	}
	return email, nil
}

// ValidatePassword enforces the password policy: at least eight characters
// including a lowercase letter, an uppercase letter, a digit and one of
// @$!%*?&.
func ValidatePassword(p string) error {
	if utf8.RuneCountInString(p) < minPasswordLength {
		return ErrValidation.WithMessage("Password must be at least 8 characters long")
	}

	var lower, upper, digit, special bool
	for _, r := range p {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}
	if !lower || !upper || !digit || !special {
		return ErrValidation.WithMessage("Password must contain at least one uppercase letter, one lowercase letter, one number, and one special character")
	}
	return nil
}

// NormalizeFullName trims s and puts it in NFC so the length check counts
// what a reader sees.
func NormalizeFullName(s string) (string, error) {
	name := norm.NFC.String(strings.TrimSpace(s))
	if name == "" {
		return "", ErrValidation.WithMessage("Full name is required")
	}
	if utf8.RuneCountInString(name) > maxFullNameLength {
		return "", ErrValidation.WithMessage("Full name must be less than 50 characters")
	}
	return name, nil
}
