package authsdk

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

// RefreshCookieName is the cookie the service keeps the refresh token in.
const RefreshCookieName = "refreshToken"

// SDKClient is a client for the passport service. Its HTTP client has a
// cookie jar so the refresh cookie set by the service is sent back on refresh
// and logout.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSDKClient creates a client with its own cookie jar.
func NewSDKClient(baseURL string) *SDKClient {
	jar, _ := cookiejar.New(nil) // only fails with non-nil options
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
			Jar:     jar,
		},
	}
}

// RefreshCookie returns the refresh token currently held in the jar.
func (c *SDKClient) RefreshCookie() string {
	if c.HTTPClient.Jar == nil {
		return ""
	}
	u, err := url.Parse(c.BaseURL + "/")
	if err != nil {
		return ""
	}
	for _, ck := range c.HTTPClient.Jar.Cookies(u) {
		if ck.Name == RefreshCookieName {
			return ck.Value
		}
	}
	return ""
}

// SetRefreshCookie puts token in the jar, replacing whatever was there.
func (c *SDKClient) SetRefreshCookie(token string) {
	if c.HTTPClient.Jar == nil {
		return
	}
	u, err := url.Parse(c.BaseURL + "/")
	if err != nil {
		return
	}
	c.HTTPClient.Jar.SetCookies(u, []*http.Cookie{{Name: RefreshCookieName, Value: token, Path: "/"}})
}
