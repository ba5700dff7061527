package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/passport/internal/auth/service"
	"github.com/aussiebroadwan/passport/pkg/httpx"
	"github.com/aussiebroadwan/passport/pkg/jwtx"
	"github.com/aussiebroadwan/passport/pkg/otelx"
	"github.com/aussiebroadwan/passport/pkg/slogx"

	_ "github.com/aussiebroadwan/passport/api/auth" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Pinger is anything readyz can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	codec        *jwtx.Codec
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	CredentialService *service.CredentialService

	// Database and Sessions are probed by /readyz. Sessions may be nil when
	// sessions live in the database.
	Database Pinger
	Sessions Pinger

	// SecureCookies marks the refresh cookie Secure (production).
	SecureCookies bool
	// ExposeInternalErrors writes the cause of 500s to the response (dev).
	ExposeInternalErrors bool
	// CORSOrigins may call the API from a browser with credentials.
	CORSOrigins []string
}

func NewRouter(codec *jwtx.Codec, buildVersion string, logger *slog.Logger) *Router {
	return &Router{
		Mux:          http.NewServeMux(),
		codec:        codec,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
	}
}

// ApplyRoutes registers every endpoint and builds the global middleware
// chain. Call it once, after the exported fields are set.
func (r *Router) ApplyRoutes() {
	r.middlewares = []httpx.Middleware{
		otelx.HTTPMiddleware,
		slogx.HTTPMiddleware(r.logger),
		httpx.SecureHeaders,
		httpx.CORS(r.CORSOrigins...),
	}

	r.registerAuth()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Passport Identity Service API
//	@version		0.1.0
//	@description	Account registration, email verification, password login and reset, Google sign-in,
//	@description	and session management with short-lived access tokens and rotating refresh tokens.
//	@description
//	@description				The refresh token is only ever sent as the HttpOnly "refreshToken" cookie.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/passport
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{
		Service:              r.CredentialService,
		Cookies:              CookieConfig{Secure: r.SecureCookies, MaxAge: r.codec.RefreshTTL()},
		ExposeInternalErrors: r.ExposeInternalErrors,
	}

	strict := func(fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn, httpx.RateLimitByIP(httpx.StrictLimit))
	}
	moderate := func(fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn, httpx.RateLimitByIP(httpx.ModerateLimit))
	}

	// Credential endpoints - strict rate limit by IP (brute force prevention)
	r.Mux.Handle("POST /v1/auth/register", strict(h.HandleRegister))
	r.Mux.Handle("POST /v1/auth/login", strict(h.HandleLogin))
	r.Mux.Handle("POST /v1/auth/forgot-password", strict(h.HandleForgotPassword))
	r.Mux.Handle("POST /v1/auth/reset-password", strict(h.HandleResetPassword))
	r.Mux.Handle("POST /v1/auth/verify-email", strict(h.HandleVerifyEmail))
	r.Mux.Handle("POST /v1/auth/resend-verification", strict(h.HandleResendVerification))

	// Session endpoints - moderate rate limit
	r.Mux.Handle("POST /v1/auth/google", moderate(h.HandleGoogle))
	r.Mux.Handle("POST /v1/auth/refresh", moderate(h.HandleRefresh))
	r.Mux.Handle("POST /v1/auth/logout", moderate(h.HandleLogout))

	// Authenticated endpoint - lenient rate limit by user
	r.Mux.Handle("GET /v1/auth/me",
		httpx.Chain(http.HandlerFunc(h.HandleMe),
			httpx.AuthnMiddleware(r.codec),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerSystem() {
	// Health check endpoints - public rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.Database, r.Sessions),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /v1/health",
		httpx.Chain(HealthHandler(r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
