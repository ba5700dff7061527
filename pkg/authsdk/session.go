package authsdk

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// Session is a signed-in user. Its access token is refreshed on demand
// through the client's refresh cookie.
type Session struct {
	client *SDKClient

	mu          sync.Mutex
	user        User
	accessToken string
	expiresAt   time.Time
}

func newSession(c *SDKClient, data AuthData) *Session {
	return &Session{
		client:      c,
		user:        data.User,
		accessToken: data.AccessToken,
		// 30 second buffer
		expiresAt: time.Now().Add(time.Duration(data.ExpiresIn)*time.Second - 30*time.Second),
	}
}

// User is the account as returned when the session started or last refreshed.
func (s *Session) User() User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// AccessToken returns the current access token without refreshing it.
func (s *Session) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken
}

// Refresh rotates the refresh cookie and replaces the access token.
func (s *Session) Refresh(ctx context.Context) error {
	next, err := s.client.Refresh(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = next.user
	s.accessToken = next.accessToken
	s.expiresAt = next.expiresAt
	return nil
}

// GetProfile returns the current user, refreshing the access token first if
// it is about to expire.
func (s *Session) GetProfile(ctx context.Context) (*User, error) {
	token, err := s.validToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.doJSON(ctx, http.MethodGet, "/v1/auth/me", token, nil)
	if err != nil {
		return nil, err
	}

	var out Response[ProfileData]
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out.Data.User, nil
}

// Logout revokes the refresh cookie. It succeeds even if the session was
// already gone.
func (s *Session) Logout(ctx context.Context) error {
	return s.client.Logout(ctx)
}

func (s *Session) validToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	expired := time.Now().After(s.expiresAt)
	token := s.accessToken
	s.mu.Unlock()

	if !expired {
		return token, nil
	}
	if err := s.Refresh(ctx); err != nil {
		return "", err
	}
	return s.AccessToken(), nil
}
