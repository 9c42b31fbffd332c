package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

const minJWTSecretLen = 32

// SMTP TLS modes.
const (
	SMTPTLSStartTLS = "starttls"
	SMTPTLSImplicit = "tls"
	SMTPTLSNone     = "none"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" default:"development"`
	Port        string `env:"PORT" default:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`
	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`
	StaticDir   string `env:"STATIC_DIR"`

	JWTSecret     string        `env:"JWT_SECRET"`
	TokenTTL      time.Duration `env:"TOKEN_TTL" default:"12h"`
	SessionSecret string        `env:"SESSION_SECRET"`
	SessionMaxAge time.Duration `env:"SESSION_MAX_AGE" default:"168h"` // 7 days

	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" default:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPTLS      string `env:"SMTP_TLS" default:"starttls"`

	MailRatePerSecond float64 `env:"MAIL_RATE_PER_SECOND" default:"5"`
	BlastWorkers      int     `env:"BLAST_WORKERS" default:"4"`

	AnalyticsCacheTTL time.Duration `env:"ANALYTICS_CACHE_TTL" default:"1m"`
	MaxUploadBytes    int64         `env:"MAX_UPLOAD_BYTES" default:"10485760"`
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadDatabase loads only what the CLI needs to reach PostgreSQL.
func LoadDatabase() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	// ordered so the first missing variable is reported deterministically
	required := []struct{ name, value string }{
		{"DATABASE_URL", cfg.DatabaseURL},
		{"REDIS_URL", cfg.RedisURL},
		{"JWT_SECRET", cfg.JWTSecret},
		{"SESSION_SECRET", cfg.SessionSecret},
		{"SMTP_HOST", cfg.SMTPHost},
		{"SMTP_FROM", cfg.SMTPFrom},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%s is required", r.name)
		}
	}

	if len(cfg.JWTSecret) < minJWTSecretLen {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLen)
	}
	if cfg.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}

	if _, err := mail.ParseAddress(cfg.SMTPFrom); err != nil {
		return fmt.Errorf("SMTP_FROM must be a valid address: %w", err)
	}
	if cfg.SMTPPort < 1 || cfg.SMTPPort > 65535 {
		return errors.New("SMTP_PORT must be between 1 and 65535")
	}
	if (cfg.SMTPUsername == "") != (cfg.SMTPPassword == "") {
		return errors.New("SMTP_USERNAME and SMTP_PASSWORD must be set together")
	}
	switch cfg.SMTPTLS {
	case SMTPTLSStartTLS, SMTPTLSImplicit, SMTPTLSNone:
	default:
		return fmt.Errorf("SMTP_TLS must be one of %q, %q, %q", SMTPTLSStartTLS, SMTPTLSImplicit, SMTPTLSNone)
	}

	if cfg.MailRatePerSecond <= 0 {
		return errors.New("MAIL_RATE_PER_SECOND must be positive")
	}
	if cfg.BlastWorkers < 1 || cfg.BlastWorkers > 64 {
		return errors.New("BLAST_WORKERS must be between 1 and 64")
	}
	if cfg.MaxUploadBytes <= 0 {
		return errors.New("MAX_UPLOAD_BYTES must be positive")
	}

	if (cfg.AdminEmail == "") != (cfg.AdminPassword == "") {
		return errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}

	return nil
}
