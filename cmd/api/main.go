package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/davincilab-soft/kity-chatgpt-navigator/internal/config"
	httptransport "github.com/davincilab-soft/kity-chatgpt-navigator/internal/http"
	"github.com/davincilab-soft/kity-chatgpt-navigator/internal/http/handler"
	httpmiddleware "github.com/davincilab-soft/kity-chatgpt-navigator/internal/http/middleware"
	"github.com/davincilab-soft/kity-chatgpt-navigator/internal/payment"
	"github.com/davincilab-soft/kity-chatgpt-navigator/internal/repository"
	"github.com/davincilab-soft/kity-chatgpt-navigator/internal/scheduler"
	"github.com/davincilab-soft/kity-chatgpt-navigator/internal/server"
	"github.com/davincilab-soft/kity-chatgpt-navigator/internal/service"
	"github.com/davincilab-soft/kity-chatgpt-navigator/internal/telemetry"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newDatabase,
			newUserRepository,
			newSnapshotRepository,
			newCheckoutProvider,
			service.NewUserService,
			service.NewSyncService,
			service.NewMetricsService,
			newAuthMiddleware,
			handler.NewUserHandler,
			httptransport.NewRouter,
			server.NewHTTPServer,
			scheduler.NewManager,
		),
		fx.Invoke(useTelemetry, startHTTPServer, startScheduler),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newDatabase(lc fx.Lifecycle, cfg config.Config) (*sql.DB, error) {
	db, err := repository.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return db.Close()
		},
	})

	return db, nil
}

func newUserRepository(db *sql.DB) repository.UserRepository {
	return repository.NewSQLiteUserRepo(db)
}

func newSnapshotRepository(db *sql.DB) repository.SnapshotRepository {
	return repository.NewSQLiteSnapshotRepo(db)
}

func newCheckoutProvider(cfg config.Config) payment.CheckoutProvider {
	return payment.NewStripeCheckout(cfg)
}

func newAuthMiddleware(users *service.UserService) *httpmiddleware.Auth {
	return &httpmiddleware.Auth{Users: users}
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func startScheduler(lc fx.Lifecycle, manager *scheduler.Manager) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return manager.Start()
		},
		OnStop: func(context.Context) error {
			manager.Stop()
			return nil
		},
	})
}

func useTelemetry(*telemetry.Provider) {}
