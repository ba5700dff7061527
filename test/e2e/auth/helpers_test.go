//go:build e2e

package auth_test

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aussiebroadwan/passport/pkg/authsdk"
)

/*
 * Common constants and helper functions for auth service end-to-end tests.
 * This includes container setup, reading emails from the log provider, and
 * assertions.
 */

const (
	testImageName = "passport-auth-test:latest"

	testPassword = "P@ssw0rd1"
	newPassword  = "NewP@ss1"
	testFullName = "Ann Example"
)

// relaxedLimits keeps the credential endpoints out of the way of tests that
// make many requests from the same address.
var relaxedLimits = map[string]string{
	"RATELIMIT_STRICT_REQUESTS":   "1000",
	"RATELIMIT_STRICT_WINDOW_SEC": "60",
	"RATELIMIT_STRICT_BURST":      "1000",
	"RATELIMIT_MODERATE_REQUESTS": "1000",
	"RATELIMIT_MODERATE_BURST":    "1000",
}

// TestMain builds the Docker image once before all tests and cleans it up
// after all tests complete.
func TestMain(m *testing.M) {
	fmt.Fprintf(os.Stdout, "Building Auth Service Docker image...")

	if err := buildDockerImage(); err != nil {
		fmt.Fprintf(os.Stderr, "\nFailed to build Docker image: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, " done\n")

	exitCode := m.Run()

	fmt.Fprintf(os.Stdout, "Cleaning up Auth Service Docker image...")
	cleanupDockerImage()
	fmt.Fprintf(os.Stdout, " done\n")

	os.Exit(exitCode)
}

func buildDockerImage() error {
	ctx := context.Background()
	cmd := exec.CommandContext(ctx, "docker", "build",
		"-t", testImageName,
		"-f", "../../../cmd/auth/Dockerfile",
		"../../../")
	cmd.Dir = "."
	cmd.Stdout = os.Stdout
	cmd.Stderr = nil

	return cmd.Run()
}

func cleanupDockerImage() {
	ctx := context.Background()
	cmd := exec.CommandContext(ctx, "docker", "rmi", "-f", testImageName)
	_ = cmd.Run() // image might not exist
}

// authService is a running container plus its base URL.
type authService struct {
	BaseURL   string
	container testcontainers.Container
}

func (s *authService) client() *authsdk.SDKClient {
	return authsdk.NewSDKClient(s.BaseURL)
}

// setupAuthContainer starts the service with relaxed rate limits.
func setupAuthContainer(t *testing.T) (*authService, func()) {
	t.Helper()
	return startContainer(t, relaxedLimits)
}

// setupAuthContainerWithDefaultRateLimits starts the service with the
// production limits. Only the rate limit tests should need it.
func setupAuthContainerWithDefaultRateLimits(t *testing.T) (*authService, func()) {
	t.Helper()
	return startContainer(t, nil)
}

func startContainer(t *testing.T, extraEnv map[string]string) (*authService, func()) {
	t.Helper()
	ctx := context.Background()

	env := map[string]string{
		"AUTH_ACCESS_SECRET":  strings.Repeat("a", 48),
		"AUTH_REFRESH_SECRET": strings.Repeat("r", 48),
		"AUTH_DATABASE_FILE":  "/data/auth.db",
		"AUTH_PEPPER_FILE":    "/data/pepper",
		"MAIL_PROVIDER":       "log",
		"FRONTEND_URL":        "http://localhost:3000",
		"ENV":                 "test",
		"LOG_LEVEL":           "info",
		"LOG_FORMAT":          "json",
	}
	for k, v := range extraEnv {
		env[k] = v
	}

	req := testcontainers.ContainerRequest{
		Image:        testImageName,
		ExposedPorts: []string{"8080/tcp"},
		Env:          env,
		WaitingFor: wait.ForHTTP("/livez").
			WithPort("8080/tcp").
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	mappedPort, err := container.MappedPort(ctx, "8080")
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	svc := &authService{
		BaseURL:   fmt.Sprintf("http://%s:%s", host, mappedPort.Port()),
		container: container,
	}

	cleanup := func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return svc, cleanup
}

var linkPattern = regexp.MustCompile(`/(verify-email|reset-password)\?token=([0-9a-f]{64})`)

// latestToken scans the container log for the newest link of the given kind
// ("verify-email" or "reset-password"). The log mail provider writes the
// whole text body, link included.
func (s *authService) latestToken(t *testing.T, kind string) string {
	t.Helper()

	var token string
	require.Eventually(t, func() bool {
		rc, err := s.container.Logs(context.Background())
		if err != nil {
			return false
		}
		defer rc.Close()

		raw, err := io.ReadAll(rc)
		if err != nil {
			return false
		}
		for _, m := range linkPattern.FindAllStringSubmatch(string(raw), -1) {
			if m[1] == kind {
				token = m[2]
			}
		}
		return token != ""
	}, 5*time.Second, 100*time.Millisecond, "no %s link in the container log", kind)

	return token
}

// registerUser registers email with the default password and name.
func registerUser(t *testing.T, client *authsdk.SDKClient, email string) *authsdk.Session {
	t.Helper()

	session, err := client.Register(t.Context(), authsdk.RegisterRequest{
		Email:    email,
		Password: testPassword,
		FullName: testFullName,
	})
	require.NoError(t, err, "Register should succeed")
	require.NotNil(t, session)
	require.NotEmpty(t, session.AccessToken())
	require.NotEmpty(t, client.RefreshCookie(), "Register should set the refresh cookie")

	return session
}

// assertAPIError checks err is an APIError with the given status and code.
func assertAPIError(t *testing.T, err error, want *authsdk.APIError, context string) {
	t.Helper()
	require.Error(t, err, context)
	require.ErrorIs(t, err, want, "%s: got %v", context, err)

	var apiErr *authsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, want.StatusCode, apiErr.StatusCode, context)
}

func assertHealthy(t *testing.T, health *authsdk.HealthResponse, err error) {
	t.Helper()
	require.NoError(t, err)
	require.NotNil(t, health)
	require.Equal(t, "ok", health.Status)
}
