// Package server wires the auth core together and owns the process
// lifecycle: configuration, connection pool, migrations and shutdown.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/shopscale-auth/internal/cryptox"
	"github.com/dmitrijs2005/shopscale-auth/internal/logging"
	"github.com/dmitrijs2005/shopscale-auth/internal/server/auth"
	"github.com/dmitrijs2005/shopscale-auth/internal/server/config"
	"github.com/dmitrijs2005/shopscale-auth/internal/server/pool"
	"github.com/dmitrijs2005/shopscale-auth/internal/server/services"
	"github.com/dmitrijs2005/shopscale-auth/internal/server/store"
)

// ShutdownTimeout bounds how long Close waits for in-flight sessions.
const ShutdownTimeout = 10 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger
	pool   *pool.Pool
	auth   *services.AuthService
}

// NewLogger returns the JSON logger used by the service binaries: debug
// level in development, info in production.
func NewLogger(cfg *config.Config) logging.Logger {
	level := slog.LevelDebug
	if cfg.IsProduction() {
		level = slog.LevelInfo
	}
	return logging.NewJSONLogger(os.Stdout, level).With("service", cfg.ProjectName)
}

// NewApp opens the connection pool, brings the schema up to date and
// builds the services. On error nothing is left open.
func NewApp(ctx context.Context, cfg *config.Config, logger logging.Logger) (*App, error) {
	if cfg.EphemeralSecret {
		logger.Warn(ctx, "SECRET_KEY is not set; using a random per-process key, tokens will not survive a restart")
	}

	tokens, err := auth.NewTokenService(auth.Options{
		Secret:    []byte(cfg.SecretKey),
		Algorithm: cfg.Algorithm,
		TTL:       cfg.AccessTokenTTL(),
		Leeway:    cfg.TokenLeeway(),
		Issuer:    cfg.ProjectName,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("token service init error: %w", err)
	}

	hasher := cryptox.NewPasswordHasher(cryptox.Params{
		MemoryKiB:   cfg.Argon2MemoryKiB,
		Iterations:  cfg.Argon2Iterations,
		Parallelism: cfg.Argon2Parallelism,
	}, cfg.HashWorkers)

	p := pool.New(pool.OptionsFromConfig(cfg), logger)
	if err := p.Init(ctx, cfg.DatabaseDSN); err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := p.Migrate(ctx); err != nil {
		_ = p.Close(ctx)
		return nil, err
	}

	authSvc, err := services.NewAuthService(ctx, store.NewUserStore(p), hasher, tokens, logger)
	if err != nil {
		_ = p.Close(ctx)
		return nil, err
	}

	return &App{
		config: cfg,
		logger: logger,
		pool:   p,
		auth:   authSvc,
	}, nil
}

// Auth exposes the service layer to transports built on top of the core.
func (app *App) Auth() *services.AuthService {
	return app.auth
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case <-sigs:
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

// Run blocks until ctx is cancelled or the process receives a termination
// signal, then closes the pool.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.initSignalHandler(ctx, cancelFunc)
	app.logger.Info(ctx, "auth core started", "environment", app.config.Environment)

	<-ctx.Done()
	app.logger.Info(context.Background(), "shutting down")

	return app.Close()
}

// Close releases the connection pool, waiting up to ShutdownTimeout for
// in-flight sessions.
func (app *App) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return app.pool.Close(ctx)
}
