package bootstrap

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/scolay/storefront/config"
	redisadapter "github.com/scolay/storefront/internal/adapters/redis"
	"github.com/scolay/storefront/internal/data"
	httpx "github.com/scolay/storefront/internal/http"
	"github.com/scolay/storefront/internal/ports"
	"github.com/scolay/storefront/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Profiles *service.ProfileService
	Names    *service.DisplayNamer
	Registry *service.AuthContextRegistry
	Carts    *redisadapter.CartStore
	Storage  *redisadapter.BrowserStorage
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Clients     ports.AuthClientFactory
	Logger      *slog.Logger
}

// NewServices wires repositories, caches and the auth context registry.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service deps with config are required")
	}
	if deps.DB == nil || deps.RedisClient == nil {
		return ServiceContainer{}, errors.New("database and redis are required")
	}
	if deps.Clients == nil {
		return ServiceContainer{}, errors.New("auth client factory is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	profiles := service.NewProfileService(service.ProfileServiceOptions{
		Store: data.NewProfileRepo(deps.DB),
		Cache: service.ProfileCacheConfig{
			Repo: data.NewRedisCacheRepo(deps.RedisClient),
			TTL:  cfg.Cache.ProfileTTL,
		},
		Logger: logger,
	})

	names, err := service.NewDisplayNamer(cfg.Auth.DisplayNameExpr)
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("display name expression: %w", err)
	}

	storage := redisadapter.NewBrowserStorage(deps.RedisClient, redisadapter.BrowserStorageOptions{})
	registry := service.NewAuthContextRegistry(service.AuthContextRegistryOptions{
		Clients:  deps.Clients,
		Profiles: profiles,
		Storage:  storage,
		Config: service.RegistryConfig{
			StorageKey:    cfg.Auth.StorageKey,
			IdleTTL:       cfg.Session.IdleTTL,
			SweepInterval: cfg.Session.SweepInterval,
		},
		Logger: logger.With("component", "auth_context"),
	})

	return ServiceContainer{
		Profiles: profiles,
		Names:    names,
		Registry: registry,
		Carts:    redisadapter.NewCartStore(deps.RedisClient, 0),
		Storage:  storage,
	}, nil
}

// HealthChecks returns readiness checks for the shared infrastructure.
func HealthChecks(db *sql.DB, rdb redis.UniversalClient) map[string]httpx.HealthCheck {
	checks := make(map[string]httpx.HealthCheck, 2)
	if db != nil {
		checks["postgres"] = db.PingContext
	}
	if rdb != nil {
		checks["redis"] = data.NewRedisCacheRepo(rdb).Health
	}
	return checks
}
