// Package config declares the storefront's environment-driven settings.
package config

import (
	"os"
	"strings"
)

// AppConfig is the root configuration, parsed with github.com/caarlos0/env.
// Each nested struct lives in its own file:
//   - auth.go: auth provider selection and Supabase settings
//   - database.go: Postgres, Redis and the profile cache
//   - http.go: listener, cookies and compression
//   - session.go: per-browser auth context lifetime
type AppConfig struct {
	// IsDev serves templates and static files from disk. NODE_ENV=development also enables it.
	IsDev bool `env:"DEV" envDefault:"false"`

	Auth     AuthConfig
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`
	Cache    CacheConfig
	HTTP     HTTPConfig
	Session  SessionConfig
}

// Sanitize clamps loaded values into their usable ranges. Call it once after parsing.
func (c *AppConfig) Sanitize() {
	c.Auth.Sanitize()
	c.Postgres.Sanitize()
	c.Cache.Sanitize()
	c.HTTP.Sanitize()
	c.Session.Sanitize()
	c.IsDev = c.IsDev || nodeEnvIsDev()
}

func nodeEnvIsDev() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("NODE_ENV"))) {
	case "development", "dev":
		return true
	default:
		return false
	}
}
