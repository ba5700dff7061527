package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/passport/internal/auth/http"
	"github.com/aussiebroadwan/passport/internal/auth/federation"
	"github.com/aussiebroadwan/passport/internal/auth/notify"
	"github.com/aussiebroadwan/passport/internal/auth/service"
	"github.com/aussiebroadwan/passport/internal/auth/store"
	"github.com/aussiebroadwan/passport/internal/auth/store/drivers/postgres"
	"github.com/aussiebroadwan/passport/internal/auth/store/drivers/redis"
	"github.com/aussiebroadwan/passport/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/passport/pkg/cryptox"
	"github.com/aussiebroadwan/passport/pkg/jwtx"
	"github.com/aussiebroadwan/passport/pkg/otelx"
	"github.com/aussiebroadwan/passport/pkg/slogx"
)

const serviceName = "passport"

// BuildVersion is overridden at build time with -ldflags "-X ...app.BuildVersion=...".
var BuildVersion = "v0.1.0"

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db       store.Store
	sessions *redis.Store // nil when sessions live in db
	codec    *jwtx.Codec

	// Services
	credentialService   *service.CredentialService
	housekeepingService *service.HousekeepingService // nil with redis sessions

	shutdownTracing func(context.Context) error

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: serviceName,
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	ctx := context.Background()

	cryptox.SetPepperPath(cfg.PepperFile)
	cryptox.SetParams(cryptox.Params{
		Memory:      cfg.HashMemoryKiB,
		Iterations:  cfg.HashIterations,
		Parallelism: cfg.HashParallelism,
	})

	shutdown, err := otelx.Setup(ctx, otelx.Config{
		ServiceName:    serviceName,
		ServiceVersion: BuildVersion,
		Endpoint:       cfg.OTelEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	app.shutdownTracing = shutdown

	codec, err := jwtx.NewCodec(jwtx.CodecConfig{
		AccessSecret:  []byte(cfg.AccessSecret),
		RefreshSecret: []byte(cfg.RefreshSecret),
		Issuer:        cfg.Issuer,
		Audience:      cfg.Audience,
		AccessTTL:     cfg.AccessTTL,
		RefreshTTL:    cfg.RefreshTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token codec: %w", err)
	}
	app.codec = codec

	if err := app.initDatabase(ctx); err != nil {
		return nil, err
	}
	if err := app.initSessions(ctx); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	if app.housekeepingService != nil {
		app.housekeepingService.Start()
	}

	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if app.housekeepingService != nil {
		app.housekeepingService.Stop()
	}

	if err := app.shutdownTracing(ctx); err != nil {
		app.logger.Error("error flushing traces", "error", err)
	}

	if app.sessions != nil {
		if err := app.sessions.Close(); err != nil {
			app.logger.Error("error closing session store", "error", err)
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

// initDatabase opens the configured driver and applies migrations
func (app *Application) initDatabase(ctx context.Context) error {
	var (
		db  store.Store
		err error
	)

	switch app.cfg.DatabaseDriver {
	case "postgres":
		db, err = postgres.NewStore(ctx, app.cfg.DatabaseURL)
	default:
		dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", app.cfg.DatabaseFile)
		db, err = sqlite.NewStore(dsn)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "driver", app.cfg.DatabaseDriver)
	return nil
}

func (app *Application) initSessions(ctx context.Context) error {
	if app.cfg.SessionStore != "redis" {
		return nil
	}

	sessions, err := redis.Open(ctx, app.cfg.RedisURL, serviceName)
	if err != nil {
		return fmt.Errorf("failed to connect session store: %w", err)
	}
	app.sessions = sessions

	app.logger.Info("refresh tokens stored in redis")
	return nil
}

func (app *Application) sessionStore() store.RefreshTokens {
	if app.sessions != nil {
		return app.sessions
	}
	return app.db.RefreshTokens()
}

func (app *Application) notifier() notify.Notifier {
	var sender notify.Sender = notify.LogSender{Logger: app.logger}
	if app.cfg.MailProvider == "resend" {
		sender = notify.NewResendSender(app.cfg.ResendAPIKey, app.cfg.MailFrom)
	} else {
		app.logger.Warn("mail provider is log: emails are written to the log, not sent")
	}

	return &notify.Mailer{
		Sender:          sender,
		AppName:         "Passport",
		VerificationTTL: app.cfg.VerificationTTL,
		ResetTTL:        app.cfg.ResetTTL,
	}
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	var verifier federation.Verifier
	if app.cfg.FirebaseProjectID != "" {
		verifier = federation.NewFirebaseVerifier(app.cfg.FirebaseProjectID)
	} else {
		app.logger.Warn("FIREBASE_PROJECT_ID not set: Google sign-in disabled")
	}

	app.credentialService = &service.CredentialService{
		Users:           app.db.Users(),
		Sessions:        app.sessionStore(),
		Codec:           app.codec,
		Verifier:        verifier,
		Mailer:          app.notifier(),
		Links:           notify.Links{FrontendURL: app.cfg.FrontendURL},
		Policy:          app.cfg.NotifyPolicy(),
		VerificationTTL: app.cfg.VerificationTTL,
		ResetTTL:        app.cfg.ResetTTL,
	}

	// Redis expires sessions by key TTL, nothing to sweep.
	if app.sessions == nil {
		app.housekeepingService = service.NewHousekeepingService(
			app.db.RefreshTokens(),
			app.logger,
			app.cfg.HousekeepingInterval,
		)
	}
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(app.codec, BuildVersion, app.logger)

	router.CredentialService = app.credentialService
	router.Database = app.db
	if app.sessions != nil {
		router.Sessions = app.sessions
	}
	router.SecureCookies = app.cfg.Production()
	router.ExposeInternalErrors = !app.cfg.Production()
	router.CORSOrigins = app.cfg.CORSOrigins
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
