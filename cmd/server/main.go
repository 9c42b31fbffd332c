package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/blastdesk/internal/adapter/httpserver"
	"github.com/pscheid92/blastdesk/internal/adapter/metrics"
	"github.com/pscheid92/blastdesk/internal/adapter/postgres"
	"github.com/pscheid92/blastdesk/internal/adapter/redis"
	"github.com/pscheid92/blastdesk/internal/adapter/smtp"
	"github.com/pscheid92/blastdesk/internal/app"
	"github.com/pscheid92/blastdesk/internal/ecard"
	"github.com/pscheid92/blastdesk/internal/platform/config"
	"github.com/pscheid92/blastdesk/internal/platform/logging"
	"github.com/pscheid92/blastdesk/internal/platform/version"
)

const (
	shutdownTimeout  = 10 * time.Second
	drainTimeout     = 30 * time.Second
	recoveryInterval = 5 * time.Minute
	startupTimeout   = 10 * time.Second
	blastLockTTL     = time.Minute
)

func runGracefulShutdown(srv *httpserver.Server, blasts *app.BlastService, stopRecovery context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		stopRecovery()

		// running blasts get a grace period before they are cancelled
		drainCtx, cancelDrain := context.WithTimeout(context.Background(), drainTimeout)
		defer cancelDrain()
		if err := blasts.Wait(drainCtx); err != nil {
			slog.Warn("Blast deliveries still running, interrupting", "error", err)
		}
		blasts.Stop()

		close(done)
	}()

	return done
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config, m *metrics.StoreMetrics) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.DatabaseURL, m)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrationsWithLock(ctx, db); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return db
}

func setupRedis(cfg *config.Config, m *metrics.StoreMetrics) *goredis.Client {
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	client, err := redis.NewClient(ctx, cfg.RedisURL, m)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func setupMailer(cfg *config.Config, m *metrics.BreakerMetrics) *smtp.Mailer {
	mailer, err := smtp.New(smtp.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		TLS:      cfg.SMTPTLS,
	}, m)
	if err != nil {
		slog.Error("Failed to create mailer", "error", err)
		os.Exit(1)
	}
	return mailer
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Get().Version)

	reg := metrics.NewRegistry()
	storeMetrics := metrics.NewStoreMetrics(reg)
	blastMetrics := metrics.NewBlastMetrics(reg)

	pool := setupDB(cfg, storeMetrics)
	defer pool.Close()

	redisClient := setupRedis(cfg, storeMetrics)
	defer func() { _ = redisClient.Close() }()

	mailer := setupMailer(cfg, metrics.NewBreakerMetrics(reg))
	renderer := ecard.NewRenderer(blastMetrics)
	cache := redis.NewAnalyticsCache(redisClient, metrics.NewCacheMetrics(reg))

	admins := postgres.NewAdminRepo(pool)
	departments := postgres.NewDepartmentRepo(pool)
	participants := postgres.NewParticipantRepo(pool)
	templates := postgres.NewTemplateRepo(pool)
	blastRepo := postgres.NewBlastRepo(pool)

	authSvc, err := app.NewAuthService(admins, redis.NewTokenDenylist(redisClient), cfg.JWTSecret, cfg.TokenTTL, clock)
	if err != nil {
		slog.Error("Failed to create auth service", "error", err)
		os.Exit(1)
	}

	blastSvc := app.NewBlastService(
		blastRepo, templates, participants,
		redis.NewBlastLock(redisClient), mailer, renderer, cache,
		blastMetrics, clock,
		app.BlastConfig{
			Workers:       cfg.BlastWorkers,
			RatePerSecond: cfg.MailRatePerSecond,
			LockTTL:       blastLockTTL,
		},
	)

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), startupTimeout)
	if err := authSvc.EnsureBootstrapAdmin(startupCtx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		slog.Error("Failed to bootstrap admin", "error", err)
		os.Exit(1)
	}
	if n, err := blastSvc.RecoverInterrupted(startupCtx); err != nil {
		slog.Warn("Failed to recover interrupted blasts", "error", err)
	} else if n > 0 {
		slog.Info("Recovered interrupted blasts", "count", n)
	}
	cancelStartup()

	recoveryCtx, stopRecovery := context.WithCancel(context.Background())
	go blastSvc.RunRecovery(recoveryCtx, recoveryInterval)

	srv := httpserver.NewServer(cfg, httpserver.Services{
		Auth:      authSvc,
		Directory: app.NewDirectoryService(departments, participants, cache),
		Templates: app.NewTemplateService(templates, renderer, cache),
		Blasts:    blastSvc,
		Analytics: app.NewAnalyticsService(postgres.NewAnalyticsRepo(pool), cache, cfg.AnalyticsCacheTTL, clock),
	},
		httpserver.WithMetrics(metrics.NewHTTPMetrics(reg), metrics.Handler(reg)),
		httpserver.WithHealthChecks(
			httpserver.HealthCheck{Name: "postgres", Check: pool.Ping},
			httpserver.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			}},
		),
	)

	done := runGracefulShutdown(srv, blastSvc, stopRecovery)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
