package jwtx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrJWKSUnavailable is returned when the remote key set can't be fetched.
var ErrJWKSUnavailable = errors.New("jwtx: jwks unavailable")

const defaultJWKSMaxAge = time.Hour

// RemoteKeySet caches a JWKS served over HTTP. Keys are refreshed when the
// Cache-Control max-age lapses or when a kid is asked for that isn't loaded
// (providers rotate keys ahead of the cache expiry).
type RemoteKeySet struct {
	URL        string
	HTTPClient *http.Client

	// Now is the clock used for cache expiry.
	Now func() time.Time

	mu      sync.Mutex
	keys    *KeySet
	expires time.Time
}

// NewRemoteKeySet returns a RemoteKeySet for url with a 10 second fetch timeout.
func NewRemoteKeySet(url string) *RemoteKeySet {
	return &RemoteKeySet{
		URL: url,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		Now:  time.Now,
		keys: NewKeySet(),
	}
}

// Get returns the public key for kid, fetching the set if needed.
func (r *RemoteKeySet) Get(ctx context.Context, kid string) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Now().Before(r.expires) {
		if key, err := r.keys.Get(kid); err == nil {
			return key, nil
		}
	}

	if err := r.refresh(ctx); err != nil {
		return nil, err
	}
	return r.keys.Get(kid)
}

// refresh must be called with r.mu held.
func (r *RemoteKeySet) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrJWKSUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrJWKSUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrJWKSUnavailable, resp.StatusCode)
	}

	var jwks JWKS
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrJWKSUnavailable, err)
	}
	if err := r.keys.ResetFromJWKS(jwks); err != nil {
		return fmt.Errorf("%w: %v", ErrJWKSUnavailable, err)
	}

	r.expires = r.Now().Add(maxAge(resp.Header.Get("Cache-Control")))
	return nil
}

// maxAge pulls max-age out of a Cache-Control header.
func maxAge(cacheControl string) time.Duration {
	for _, directive := range strings.Split(cacheControl, ",") {
		directive = strings.TrimSpace(directive)
		v, ok := strings.CutPrefix(directive, "max-age=")
		if !ok {
			continue
		}
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultJWKSMaxAge
}
