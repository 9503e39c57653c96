package gotrue

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHS256Verifier(t *testing.T) {
	v, err := NewHS256Verifier(testSecret, "", 0)
	require.NoError(t, err)

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	claims, err := v.Verify(context.Background(), signToken(t, testSecret, testUserID, exp))
	require.NoError(t, err)
	assert.Equal(t, testUserID, claims.Subject)
	assert.Equal(t, "shopper@example.com", claims.Email)
	assert.Equal(t, "authenticated", claims.Role)
	assert.True(t, exp.Equal(claims.ExpiresAt))
}

func TestHS256Verifier_Rejects(t *testing.T) {
	v, err := NewHS256Verifier(testSecret, "https://example.supabase.co/auth/v1", time.Second)
	require.NoError(t, err)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": testUserID,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"expired", signToken(t, testSecret, testUserID, time.Now().Add(-time.Hour))},
		{"wrong secret", signToken(t, "wrong-secret", testUserID, time.Now().Add(time.Hour))},
		{"issuer missing", signToken(t, testSecret, testUserID, time.Now().Add(time.Hour))},
		{"alg none", noneToken},
		{"garbage", "a.b.c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tt.token)
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestNewHS256Verifier_RequiresSecret(t *testing.T) {
	_, err := NewHS256Verifier("", "", 0)
	require.Error(t, err)
}

func TestJWKSVerifier(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	jwks := map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": "test-key",
			"use": "sig",
			"alg": "RS256",
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jwks)
	}))
	defer srv.Close()

	const issuer = "https://example.supabase.co/auth/v1"
	v, err := NewJWKSVerifier(context.Background(), srv.URL, issuer)
	require.NoError(t, err)

	sign := func(iss string) string {
		tok := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
			"iss":   iss,
			"sub":   testUserID,
			"aud":   "authenticated",
			"email": "shopper@example.com",
			"role":  "authenticated",
			"exp":   time.Now().Add(time.Hour).Unix(),
		})
		tok.Header["kid"] = "test-key"
		s, err := tok.SignedString(key)
		require.NoError(t, err)
		return s
	}

	claims, err := v.Verify(context.Background(), sign(issuer))
	require.NoError(t, err)
	assert.Equal(t, testUserID, claims.Subject)
	assert.Equal(t, "shopper@example.com", claims.Email)
	assert.Equal(t, "authenticated", claims.Role)

	_, err = v.Verify(context.Background(), sign("https://evil.example.com"))
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewJWKSVerifier_RequiresURL(t *testing.T) {
	_, err := NewJWKSVerifier(context.Background(), "", "")
	require.Error(t, err)
}

func TestUnverifiedClaims(t *testing.T) {
	exp := time.Now().Add(-time.Hour).Truncate(time.Second)
	claims, err := unverifiedClaims(signToken(t, "any-secret", testUserID, exp))
	require.NoError(t, err)
	assert.Equal(t, testUserID, claims.Subject)
	assert.True(t, exp.Equal(claims.ExpiresAt), "expired tokens still yield claims")

	_, err = unverifiedClaims("not-a-jwt")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestAPIError(t *testing.T) {
	e := &APIError{Status: 404, Code: "session_not_found", Message: "Session not found"}
	assert.Equal(t, "gotrue: 404 session_not_found: Session not found", e.Error())
	assert.True(t, e.SessionMissing())
	assert.False(t, (&APIError{Status: 500}).SessionMissing())
	assert.Equal(t, "gotrue: 500: boom", (&APIError{Status: 500, Message: "boom"}).Error())
}
