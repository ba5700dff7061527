package service

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"a@x.com", "a@x.com", false},
		{"  Ann.Lee@Example.COM ", "ann.lee@example.com", false},
		{"", "", true},
		{"no-at-sign", "", true},
		{"Ann <a@x.com>", "", true},
		{"a@", "", true},
		{strings.Repeat("a", 250) + "@x.com", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeEmail(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		ok       bool
	}{
		{"P@ssw0rd1", true},
		{"NewP@ss1", true},
		{"P@ss1", false},
		{"p@ssw0rd1", false},
		{"P@SSW0RD1", false},
		{"P@ssword!", false},
		{"Passw0rd1", false},
		{"Passw0rd#", false},
	}

	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, ErrValidation)
			}
		})
	}
}

func TestNormalizeFullName(t *testing.T) {
	// "e" followed by a combining acute accent composes to a single rune.
	got, err := NormalizeFullName("  Rene\u0301 ")
	require.NoError(t, err)
	require.Equal(t, "Ren\u00e9", got)

	_, err = NormalizeFullName(strings.Repeat("e\u0301", 50))
	require.NoError(t, err, "length is counted after composition")

	_, err = NormalizeFullName(strings.Repeat("x", 51))
	require.ErrorIs(t, err, ErrValidation)

	_, err = NormalizeFullName("   ")
	require.ErrorIs(t, err, ErrValidation)
}

func TestFederatedName(t *testing.T) {
	require.Equal(t, "Ann", federatedName("  Ann "))
	require.Len(t, []rune(federatedName(strings.Repeat("y", 80))), maxFullNameLength)
}

func TestError(t *testing.T) {
	cause := errors.New("disk on fire")

	err := ErrNotFound.WithMessage("User not found")
	require.ErrorIs(t, err, ErrNotFound)
	require.NotErrorIs(t, err, ErrUnauthorized)
	require.Equal(t, "Not found", ErrNotFound.Message, "WithMessage copies")

	wrapped := fmt.Errorf("outer: %w", ErrInternal.Wrap(cause))
	require.ErrorIs(t, wrapped, ErrInternal)
	require.ErrorIs(t, wrapped, cause)

	require.Nil(t, AsError(nil))
	require.Same(t, ErrEmailExists, AsError(ErrEmailExists))

	internal := AsError(cause)
	require.Equal(t, http.StatusInternalServerError, internal.Status)
	require.Equal(t, CodeInternal, internal.Code)
	require.ErrorIs(t, internal, cause)
}

func TestNotifyMode(t *testing.T) {
	m, err := ParseNotifyMode("required")
	require.NoError(t, err)
	require.Equal(t, Required, m)
	require.Equal(t, "required", m.String())

	var decoded NotifyMode
	require.NoError(t, decoded.UnmarshalText([]byte("best_effort")))
	require.Equal(t, BestEffort, decoded)

	_, err = ParseNotifyMode("sometimes")
	require.Error(t, err)

	p := DefaultNotifyPolicy()
	require.Equal(t, BestEffort, p.Register)
	require.Equal(t, BestEffort, p.Resend)
	require.Equal(t, Required, p.ForgotPassword)
}
