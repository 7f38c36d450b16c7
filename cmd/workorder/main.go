package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/workorder-service/internal/api/http"
	"github.com/spec-kit/workorder-service/internal/api/http/handlers"
	"github.com/spec-kit/workorder-service/internal/audit"
	"github.com/spec-kit/workorder-service/internal/auth"
	"github.com/spec-kit/workorder-service/internal/config"
	"github.com/spec-kit/workorder-service/internal/observability"
	"github.com/spec-kit/workorder-service/internal/persistence"
	"github.com/spec-kit/workorder-service/internal/repository"
	"github.com/spec-kit/workorder-service/internal/service"
	"github.com/spec-kit/workorder-service/internal/storage"
)

const shutdownTimeout = 10 * time.Second

var rootCmd = &cobra.Command{
	Use:   "workorder",
	Short: "Work-order ticketing service",
	Long: `Work-order ticketing service: requesters file tickets, agents work them
through a fixed lifecycle under SLA deadlines, and every change lands in an
append-only audit trail. Running without a subcommand starts the HTTP server.`,
	SilenceUsage: true,
}

func main() {
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func registerCommands() {
	serve := serveCmd()
	rootCmd.RunE = serve.RunE
	rootCmd.Flags().AddFlagSet(serve.Flags())
	rootCmd.AddCommand(serve)
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
}

// env holds what every subcommand needs after start-up.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	pg     *persistence.Postgres
}

func bootstrap(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &env{cfg: cfg, logger: logger, pg: pg}, nil
}

func (r *env) close() {
	r.pg.Close()
	_ = r.logger.Sync()
}

func serveCmd() *cobra.Command {
	var seedDemo bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			rt, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer rt.close()
			return serve(ctx, rt, seedDemo)
		},
	}
	cmd.Flags().BoolVar(&seedDemo, "seed-demo", false, "create the demo accounts on start-up")
	return cmd
}

func serve(ctx context.Context, rt *env, seedDemo bool) error {
	cfg, logger := rt.cfg, rt.logger

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, rt.pg.Pool, cfg.Postgres.MigrationsDir, logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	store := rt.pg.Store()
	if seedDemo {
		if err := seedUsers(ctx, store, cfg.Auth.BcryptCost, logger); err != nil {
			return err
		}
	}

	blobs, err := storage.NewLocalStore(cfg.Upload.Dir)
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics()
	recorder := audit.NewRecorder(metrics)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)

	var throttle auth.LoginThrottle = auth.NoopThrottle{}
	if redis.Reachable && cfg.LoginThrottle.MaxAttempts > 0 {
		throttle = auth.NewRedisThrottle(redis.Client, cfg.LoginThrottle.MaxAttempts, cfg.LoginThrottle.Window())
	}

	ticketService := service.NewTicketService(service.TicketDependencies{Store: store, Recorder: recorder, Observer: metrics})
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{Store: store, Recorder: recorder, Tickets: ticketService})
	evidenceService := service.NewEvidenceService(service.EvidenceDependencies{
		Store:    store,
		Blobs:    blobs,
		Recorder: recorder,
		Logger:   logger,
		MaxBytes: cfg.Upload.MaxBytes,
	})
	authService := service.NewAuthService(service.AuthDependencies{
		Store:      store,
		Tokens:     tokens,
		Throttle:   throttle,
		Recorder:   recorder,
		Logger:     logger,
		BcryptCost: cfg.Auth.BcryptCost,
	})

	checks := []handlers.DependencyCheck{}
	if rt.pg.Enabled() {
		checks = append(checks, handlers.DependencyCheck{Name: "postgres", Ping: rt.pg.Ping})
	}
	if redis.Reachable {
		checks = append(checks, handlers.DependencyCheck{Name: "redis", Ping: redis.Ping})
	}

	app := httptransport.NewApp(httptransport.ServerConfig{
		Name:           cfg.App.Name,
		MaxUploadBytes: cfg.Upload.MaxBytes,
		RequestTimeout: cfg.App.RequestTimeout(),
		Logger:         logger,
		Metrics:        metrics,
	})
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, checks...),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService, assignmentService),
		Evidence:       handlers.NewEvidenceHandler(evidenceService),
		AuditLogs:      handlers.NewAuditLogsHandler(service.NewAuditLogService(store.AuditLogs())),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, store.Users()),
		Metrics:        metrics.Handler(),
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		errCh <- app.Listen(cfg.App.Addr())
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("fiber listen: %w", err)
	case <-waitForShutdown(logger):
	}

	return app.ShutdownWithTimeout(shutdownTimeout)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply SQL migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()
			if !rt.pg.Enabled() {
				return fmt.Errorf("POSTGRES_DSN is required to run migrations")
			}
			return persistence.RunMigrations(cmd.Context(), rt.pg.Pool, rt.cfg.Postgres.MigrationsDir, rt.logger)
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the demo accounts if they do not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()
			if !rt.pg.Enabled() {
				return fmt.Errorf("POSTGRES_DSN is required to seed; use serve --seed-demo for the in-memory store")
			}
			return seedUsers(cmd.Context(), rt.pg.Store(), rt.cfg.Auth.BcryptCost, rt.logger)
		},
	}
}

func seedUsers(ctx context.Context, store repository.Store, cost int, logger *zap.Logger) error {
	created, err := service.SeedUsers(ctx, store.Users(), service.DemoUsers, cost)
	if err != nil {
		return fmt.Errorf("seed users: %w", err)
	}
	logger.Info("demo users seeded", zap.Int("created", created), zap.Int("total", len(service.DemoUsers)))
	return nil
}

func waitForShutdown(logger *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("shutting down", zap.String("signal", sig.String()))
		close(done)
	}()
	return done
}
