package app

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/aussiebroadwan/passport/internal/auth/service"
	"github.com/aussiebroadwan/passport/pkg/jwtx"
)

type Config struct {
	Issuer        string        `env:"AUTH_ISSUER"         envDefault:"passport"`
	Audience      string        `env:"AUTH_AUDIENCE"       envDefault:"http://localhost:8080"`
	AccessSecret  string        `env:"AUTH_ACCESS_SECRET"`  // Required, at least 32 bytes
	RefreshSecret string        `env:"AUTH_REFRESH_SECRET"` // Required, at least 32 bytes, distinct from AccessSecret
	AccessTTL     time.Duration `env:"AUTH_ACCESS_TTL"     envDefault:"15m"`
	RefreshTTL    time.Duration `env:"AUTH_REFRESH_TTL"    envDefault:"168h"`

	VerificationTTL time.Duration `env:"AUTH_VERIFICATION_TTL" envDefault:"24h"`
	ResetTTL        time.Duration `env:"AUTH_RESET_TTL"        envDefault:"1h"`

	// argon2id cost
	HashMemoryKiB   uint32 `env:"AUTH_HASH_MEMORY_KIB"  envDefault:"19456"`
	HashIterations  uint32 `env:"AUTH_HASH_ITERATIONS"  envDefault:"2"`
	HashParallelism uint8  `env:"AUTH_HASH_PARALLELISM" envDefault:"1"`
	PepperFile      string `env:"AUTH_PEPPER_FILE"      envDefault:"pepper"`

	DatabaseDriver string `env:"DATABASE_DRIVER"    envDefault:"sqlite"` // sqlite or postgres
	DatabaseFile   string `env:"AUTH_DATABASE_FILE" envDefault:"auth.db"`
	DatabaseURL    string `env:"DATABASE_URL"`

	SessionStore string `env:"SESSION_STORE" envDefault:"sql"` // sql or redis
	RedisURL     string `env:"REDIS_URL"`

	FrontendURL  string   `env:"FRONTEND_URL"  envDefault:"http://localhost:3000"`
	CORSOrigins  []string `env:"CORS_ORIGIN"   envSeparator:","` // Defaults to FrontendURL
	MailProvider string   `env:"MAIL_PROVIDER" envDefault:"log"` // log or resend
	ResendAPIKey string   `env:"RESEND_API_KEY"`
	MailFrom     string   `env:"MAIL_FROM"`

	FirebaseProjectID string `env:"FIREBASE_PROJECT_ID"` // Empty disables Google sign-in

	NotifyRegister       service.NotifyMode `env:"NOTIFY_REGISTER"        envDefault:"best_effort"`
	NotifyResend         service.NotifyMode `env:"NOTIFY_RESEND"          envDefault:"best_effort"`
	NotifyForgotPassword service.NotifyMode `env:"NOTIFY_FORGOT_PASSWORD" envDefault:"required"`

	OTelEndpoint string `env:"OTEL_ENDPOINT"` // Tracing is off when empty

	Env                  string        `env:"ENV"                   envDefault:"dev"` // dev, staging, prod
	LogLevel             string        `env:"LOG_LEVEL"             envDefault:"info"`
	LogFormat            string        `env:"LOG_FORMAT"            envDefault:"json"`
	Port                 int           `env:"PORT"                  envDefault:"8080"`
	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
	HousekeepingInterval time.Duration `env:"HOUSEKEEPING_INTERVAL" envDefault:"1h"`
}

// LoadConfig parses the environment and validates the result.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{cfg.FrontendURL}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Production() bool { return c.Env == "prod" || c.Env == "production" }

func (c Config) NotifyPolicy() service.NotifyPolicy {
	return service.NotifyPolicy{
		Register:       c.NotifyRegister,
		Resend:         c.NotifyResend,
		ForgotPassword: c.NotifyForgotPassword,
	}
}

// Validate enforces the rules a single env tag cannot express.
func (c Config) Validate() error {
	var errs []error

	if c.AccessSecret == "" || c.RefreshSecret == "" {
		errs = append(errs, errors.New("AUTH_ACCESS_SECRET and AUTH_REFRESH_SECRET are required"))
	} else {
		// Same strength rules as the codec.
		if _, err := jwtx.NewCodec(jwtx.CodecConfig{
			AccessSecret:  []byte(c.AccessSecret),
			RefreshSecret: []byte(c.RefreshSecret),
			Issuer:        c.Issuer,
			Audience:      c.Audience,
		}); err != nil {
			errs = append(errs, fmt.Errorf("token secrets: %w", err))
		}
	}

	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 || c.VerificationTTL <= 0 || c.ResetTTL <= 0 {
		errs = append(errs, errors.New("token lifetimes must be positive"))
	}
	if c.AccessTTL >= c.RefreshTTL {
		errs = append(errs, errors.New("AUTH_ACCESS_TTL must be shorter than AUTH_REFRESH_TTL"))
	}
	if c.HashMemoryKiB < 8*uint32(max(c.HashParallelism, 1)) || c.HashIterations == 0 || c.HashParallelism == 0 {
		errs = append(errs, errors.New("argon2id parameters are out of range"))
	}

	switch c.DatabaseDriver {
	case "sqlite":
		if c.DatabaseFile == "" {
			errs = append(errs, errors.New("AUTH_DATABASE_FILE is required for sqlite"))
		}
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown DATABASE_DRIVER %q", c.DatabaseDriver))
	}

	switch c.SessionStore {
	case "sql":
	case "redis":
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required when SESSION_STORE=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown SESSION_STORE %q", c.SessionStore))
	}

	switch c.MailProvider {
	case "log":
	case "resend":
		if c.ResendAPIKey == "" || c.MailFrom == "" {
			errs = append(errs, errors.New("RESEND_API_KEY and MAIL_FROM are required for the resend provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown MAIL_PROVIDER %q", c.MailProvider))
	}

	if u, err := url.Parse(c.FrontendURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("FRONTEND_URL %q is not an absolute URL", c.FrontendURL))
	}

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}

	return errors.Join(errs...)
}
