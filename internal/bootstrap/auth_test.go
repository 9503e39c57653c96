package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scolay/storefront/config"
	"github.com/scolay/storefront/internal/adapters/devauth"
	"github.com/scolay/storefront/internal/adapters/gotrue"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildAuthClients(t *testing.T) {
	tests := []struct {
		name    string
		auth    config.AuthConfig
		wantErr string
		check   func(t *testing.T, got any)
	}{
		{
			name: "mock mode builds dev auth",
			auth: config.AuthConfig{
				Mode: config.AuthModeMock,
				DevAuth: config.DevAuthConfig{
					UserID:   "00000000-0000-4000-8000-000000000001",
					Email:    "dev@scolay.test",
					Password: "scolay",
				},
			},
			check: func(t *testing.T, got any) {
				assert.IsType(t, &devauth.Factory{}, got)
			},
		},
		{
			name:    "mock mode rejects a non-uuid user id",
			auth:    config.AuthConfig{Mode: config.AuthModeMock, DevAuth: config.DevAuthConfig{UserID: "dev", Email: "a@b.co", Password: "x"}},
			wantErr: "build dev auth",
		},
		{
			name:    "supabase mode requires url and anon key",
			auth:    config.AuthConfig{Mode: config.AuthModeSupabase},
			wantErr: "SUPABASE_URL",
		},
		{
			name: "supabase mode with shared secret",
			auth: config.AuthConfig{
				Mode: config.AuthModeSupabase,
				Supabase: config.SupabaseConfig{
					URL:       "https://project.supabase.co",
					AnonKey:   "anon",
					JWTSecret: "super-secret-jwt-token-with-at-least-32-characters",
				},
			},
			check: func(t *testing.T, got any) {
				assert.IsType(t, &gotrue.Factory{}, got)
			},
		},
		{
			name:    "unknown mode",
			auth:    config.AuthConfig{Mode: config.AuthMode("ldap")},
			wantErr: "unsupported auth mode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildAuthClients(context.Background(), AuthConfig{Auth: tt.auth, Logger: discardLogger()})
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			tt.check(t, got)
		})
	}
}

func TestBuildVerifier(t *testing.T) {
	t.Run("none configured", func(t *testing.T) {
		v, err := buildVerifier(context.Background(), config.SupabaseConfig{})
		require.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("shared secret", func(t *testing.T) {
		v, err := buildVerifier(context.Background(), config.SupabaseConfig{
			JWTSecret: "super-secret-jwt-token-with-at-least-32-characters",
		})
		require.NoError(t, err)
		assert.IsType(t, &gotrue.HS256Verifier{}, v)
	})
}
