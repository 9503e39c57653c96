package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/scolay/storefront/config"
	"github.com/scolay/storefront/internal/adapters/devauth"
	"github.com/scolay/storefront/internal/adapters/gotrue"
	"github.com/scolay/storefront/internal/ports"
)

// tokenLeeway tolerates clock skew between the storefront and the auth server.
const tokenLeeway = 30 * time.Second

// AuthConfig contains configuration for the auth client factory.
type AuthConfig struct {
	Auth   config.AuthConfig
	Logger *slog.Logger
}

// BuildAuthClients creates the per-browser auth client factory for the configured mode.
//
//nolint:ireturn // the factory is chosen at runtime.
func BuildAuthClients(ctx context.Context, cfg AuthConfig) (ports.AuthClientFactory, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Auth.Mode {
	case config.AuthModeMock:
		f, err := devauth.NewFactory(devauth.Config{
			UserID:     cfg.Auth.DevAuth.UserID,
			Email:      cfg.Auth.DevAuth.Email,
			Password:   cfg.Auth.DevAuth.Password,
			StorageKey: cfg.Auth.StorageKey,
			Logger:     logger,
		})
		if err != nil {
			return nil, fmt.Errorf("build dev auth: %w", err)
		}
		logger.WarnContext(ctx, "dev auth enabled; do not use in production", "email", cfg.Auth.DevAuth.Email)
		return f, nil

	case config.AuthModeSupabase, "":
		if !cfg.Auth.SupabaseConfigured() {
			return nil, errors.New("supabase auth requires SUPABASE_URL and SUPABASE_ANON_KEY")
		}
		verifier, err := buildVerifier(ctx, cfg.Auth.Supabase)
		if err != nil {
			return nil, err
		}
		if verifier == nil {
			logger.WarnContext(ctx, "no access token verifier configured; stored tokens are trusted until expiry")
		}
		f, err := gotrue.NewFactory(gotrue.Config{
			URL:        cfg.Auth.Supabase.URL,
			AnonKey:    cfg.Auth.Supabase.AnonKey,
			StorageKey: cfg.Auth.StorageKey,
			Verifier:   verifier,
			Logger:     logger,
		})
		if err != nil {
			return nil, fmt.Errorf("build supabase auth: %w", err)
		}
		return f, nil

	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.Auth.Mode)
	}
}

// buildVerifier prefers the project key set over the shared secret. It returns
// nil when neither is configured.
//
//nolint:ireturn // the verifier is chosen at runtime.
func buildVerifier(ctx context.Context, cfg config.SupabaseConfig) (gotrue.TokenVerifier, error) {
	switch {
	case cfg.JWKSURL != "":
		v, err := gotrue.NewJWKSVerifier(ctx, cfg.JWKSURL, cfg.Issuer)
		if err != nil {
			return nil, fmt.Errorf("build jwks verifier: %w", err)
		}
		return v, nil
	case cfg.JWTSecret != "":
		v, err := gotrue.NewHS256Verifier(cfg.JWTSecret, cfg.Issuer, tokenLeeway)
		if err != nil {
			return nil, fmt.Errorf("build hs256 verifier: %w", err)
		}
		return v, nil
	default:
		return nil, nil
	}
}
