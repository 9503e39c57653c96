package config

import (
	"fmt"
	"strings"
)

// AuthMode represents the authentication backend used by the storefront.
type AuthMode string

const (
	// AuthModeSupabase talks to a hosted Supabase GoTrue instance.
	AuthModeSupabase AuthMode = "supabase"
	// AuthModeMock uses an in-process auth client (for development only).
	AuthModeMock AuthMode = "mock"
)

// DefaultStorageKey is the browser storage key holding the persisted session.
const DefaultStorageKey = "scolay-auth-token"

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "supabase", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: supabase, mock)", v)
	}
}

// SupabaseConfig contains the hosted auth provider settings.
type SupabaseConfig struct {
	// URL is the project URL, e.g. https://xyzcompany.supabase.co. The GoTrue API lives under /auth/v1.
	URL     string `env:"URL"`
	AnonKey string `env:"ANON_KEY"`

	// JWTSecret verifies HS256 access tokens. Leave empty when the project uses asymmetric keys.
	JWTSecret string `env:"JWT_SECRET"`

	// JWKSURL and Issuer verify asymmetric access tokens through the project's key set.
	JWKSURL string `env:"JWKS_URL"`
	Issuer  string `env:"ISSUER"`
}

// DevAuthConfig controls the mock auth identity.
// Used when AUTH_MODE=mock for development and testing.
type DevAuthConfig struct {
	UserID   string `env:"USER_ID"  envDefault:"00000000-0000-4000-8000-000000000001"`
	Email    string `env:"EMAIL"    envDefault:"dev@scolay.test"`
	Password string `env:"PASSWORD" envDefault:"scolay"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which auth client backs the per-browser auth context.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"supabase"`

	Supabase SupabaseConfig `envPrefix:"SUPABASE_"`

	// DevAuth configuration (used when Mode=mock).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`

	// StorageKey names the browser storage entry that holds the persisted session.
	StorageKey string `env:"AUTH_STORAGE_KEY" envDefault:"scolay-auth-token"`

	// DisplayNameExpr is a JMESPath expression evaluated against the user record
	// to derive the name shown in the navbar.
	DisplayNameExpr string `env:"AUTH_DISPLAY_NAME_EXPR" envDefault:"user_metadata.full_name || email"`
}

// Sanitize normalizes auth settings.
func (a *AuthConfig) Sanitize() {
	a.Supabase.URL = strings.TrimRight(strings.TrimSpace(a.Supabase.URL), "/")
	a.StorageKey = strings.TrimSpace(a.StorageKey)
	if a.StorageKey == "" {
		a.StorageKey = DefaultStorageKey
	}
	a.DisplayNameExpr = strings.TrimSpace(a.DisplayNameExpr)
}

// SupabaseConfigured reports whether the hosted provider has the minimum settings to be used.
func (a *AuthConfig) SupabaseConfigured() bool {
	return a.Supabase.URL != "" && a.Supabase.AnonKey != ""
}
