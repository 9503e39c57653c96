package gotrue

import (
	"context"
	"errors"
	"fmt"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when an access token fails verification.
var ErrInvalidToken = errors.New("invalid access token")

// Claims are the access token claims the client relies on.
type Claims struct {
	Subject   string
	Email     string
	Role      string
	ExpiresAt time.Time
}

// TokenVerifier validates a provider-issued access token.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}

// accessTokenClaims mirrors the GoTrue JWT payload.
type accessTokenClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func (c accessTokenClaims) toClaims() Claims {
	out := Claims{Subject: c.Subject, Email: c.Email, Role: c.Role}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	return out
}

// HS256Verifier checks tokens signed with the project's shared JWT secret.
type HS256Verifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewHS256Verifier creates a verifier for secret. A non-empty issuer is enforced.
func NewHS256Verifier(secret, issuer string, leeway time.Duration) (*HS256Verifier, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(leeway),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return &HS256Verifier{secret: []byte(secret), parser: jwt.NewParser(opts...)}, nil
}

func (v *HS256Verifier) Verify(_ context.Context, token string) (Claims, error) {
	var claims accessTokenClaims
	_, err := v.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return claims.toClaims(), nil
}

// JWKSVerifier checks tokens signed with the project's asymmetric keys, fetched
// from the JWKS endpoint and cached by go-oidc.
type JWKSVerifier struct {
	verifier *gooidc.IDTokenVerifier
}

// NewJWKSVerifier creates a verifier backed by a remote key set. An empty issuer skips the issuer check.
func NewJWKSVerifier(ctx context.Context, jwksURL, issuer string) (*JWKSVerifier, error) {
	if jwksURL == "" {
		return nil, errors.New("jwks url is required")
	}
	keySet := gooidc.NewRemoteKeySet(ctx, jwksURL)
	v := gooidc.NewVerifier(issuer, keySet, &gooidc.Config{
		SkipClientIDCheck:    true,
		SkipIssuerCheck:      issuer == "",
		SupportedSigningAlgs: []string{gooidc.RS256, gooidc.ES256},
	})
	return &JWKSVerifier{verifier: v}, nil
}

func (v *JWKSVerifier) Verify(ctx context.Context, token string) (Claims, error) {
	idt, err := v.verifier.Verify(ctx, token)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	var claims struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := idt.Claims(&claims); err != nil {
		return Claims{}, fmt.Errorf("%w: decode claims: %w", ErrInvalidToken, err)
	}
	return Claims{Subject: idt.Subject, Email: claims.Email, Role: claims.Role, ExpiresAt: idt.Expiry}, nil
}

// unverifiedClaims reads claims without checking the signature. It is used only
// to decide whether a token needs refreshing when no verifier is configured.
func unverifiedClaims(token string) (Claims, error) {
	var claims accessTokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return claims.toClaims(), nil
}
