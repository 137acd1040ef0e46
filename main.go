package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lifeline-hq/lifeline/engine/core"
	"github.com/lifeline-hq/lifeline/engine/infra/postgres"
	"github.com/lifeline-hq/lifeline/engine/infra/repo"
	"github.com/lifeline-hq/lifeline/engine/infra/server"
	"github.com/lifeline-hq/lifeline/engine/user"
	"github.com/lifeline-hq/lifeline/pkg/config"
	"github.com/lifeline-hq/lifeline/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "lifeline: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is fine; the environment itself may carry everything.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.NewLogger(&logger.Config{
		Level:  logger.LogLevel(cfg.Log.Level),
		Output: os.Stderr,
		JSON:   cfg.Log.JSON,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.ContextWithLogger(ctx, log)

	if err := postgres.ApplyMigrations(ctx, cfg.Database.DSN()); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	log.Info("migrations applied")

	store, err := postgres.NewStore(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer store.Close(context.WithoutCancel(ctx))

	if err := bootstrapAdmin(ctx, cfg, store, log); err != nil {
		return fmt.Errorf("bootstrapping admin: %w", err)
	}

	return server.New(cfg, log, store).Run(ctx)
}

// bootstrapAdmin seeds the initial administrator account on first start.
// Skipped when no bootstrap password is configured; a no-op once any admin
// exists.
func bootstrapAdmin(ctx context.Context, cfg *config.Config, store *postgres.Store, log logger.Logger) error {
	if cfg.Bootstrap.AdminPassword == "" {
		log.Debug("no bootstrap admin password configured, skipping")
		return nil
	}
	admin, err := user.NewUser(
		cfg.Bootstrap.AdminUsername,
		cfg.Bootstrap.AdminEmail,
		"Administrator",
		cfg.Bootstrap.AdminPassword,
		user.TypeAdmin,
	)
	if err != nil {
		return err
	}
	users := repo.NewProvider(store.Pool()).NewUserRepo()
	if err := users.CreateInitialAdminIfNone(ctx, admin); err != nil {
		if errors.Is(err, user.ErrAlreadyBootstrap) || core.CodeOf(err) == core.ErrCodeAlreadyBootstrapped {
			log.Debug("admin already exists, bootstrap skipped")
			return nil
		}
		return err
	}
	log.Info("bootstrap admin created", "username", admin.Username)
	return nil
}
