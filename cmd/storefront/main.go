// Command storefront serves the Scolay storefront: the auth pages, the role-aware
// navbar and the portal and admin pages behind it.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/scolay/storefront/config"
	"github.com/scolay/storefront/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "storefront exited", "error", err)
		os.Exit(1) //nolint:forbidigo // non-zero exit status for supervisors
	}
}

// infra holds the connections shared by every service.
type infra struct {
	db  *sql.DB
	rdb redis.UniversalClient
}

func connect(cfg *config.AppConfig, logger *slog.Logger) (*infra, error) {
	dbCfg := bootstrap.DatabaseConfig{DBConfig: cfg.Postgres, RedisConfig: cfg.Redis, Logger: logger}

	db, err := bootstrap.ConnectDB(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	rdb, err := bootstrap.ConnectRedis(dbCfg)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("connect redis: %w", err), closeErr("database", db.Close()))
	}
	return &infra{db: db, rdb: rdb}, nil
}

func (in *infra) close() error {
	return errors.Join(closeErr("redis", in.rdb.Close()), closeErr("database", in.db.Close()))
}

func closeErr(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("close %s: %w", what, err)
}

func run(ctx context.Context, logger *slog.Logger) (err error) {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	logger.InfoContext(ctx, "starting storefront",
		"addr", cfg.HTTP.Addr,
		"auth_mode", cfg.Auth.Mode,
		"db", cfg.Postgres.Host+"/"+cfg.Postgres.Name,
		"dev", cfg.IsDev)

	in, err := connect(&cfg, logger)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, in.close()) }()

	if cfg.Postgres.RunMigrationsOnStart {
		if err := bootstrap.RunMigrations(ctx, in.db, logger); err != nil {
			return err
		}
	} else {
		logger.InfoContext(ctx, "migrations on start disabled")
	}

	clients, err := bootstrap.BuildAuthClients(ctx, bootstrap.AuthConfig{Auth: cfg.Auth, Logger: logger})
	if err != nil {
		return err
	}
	services, err := bootstrap.NewServices(&bootstrap.ServiceDeps{
		Config:      &cfg,
		DB:          in.db,
		RedisClient: in.rdb,
		Clients:     clients,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	return bootstrap.Run(ctx, &bootstrap.RunConfig{
		Config:       &cfg,
		Services:     services,
		HealthChecks: bootstrap.HealthChecks(in.db, in.rdb),
		Logger:       logger,
	})
}
