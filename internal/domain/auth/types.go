package auth

// Package auth contains domain-level types for the storefront's authentication state.
// It is pure and free of framework/adapter concerns.

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Role is the profile attribute that decides which portal a user may reach.
// Keep string form for easy persistence.
type Role string

const (
	RoleNone          Role = ""
	RoleAdmin         Role = "admin"
	RoleSchoolAdmin   Role = "school_admin"
	RoleSupplierAdmin Role = "supplier_admin"
)

// ParseRole maps a stored role string to a Role. Unknown values map to RoleNone.
func ParseRole(s string) Role {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleSchoolAdmin, RoleSupplierAdmin:
		return r
	default:
		return RoleNone
	}
}

// Valid reports whether r is one of the known, non-empty roles.
func (r Role) Valid() bool {
	return ParseRole(string(r)) == r && r != RoleNone
}

// User is the identity record tied to a Session.
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email,omitempty"`
	Phone        string         `json:"phone,omitempty"`
	Role         string         `json:"role,omitempty"` // provider role claim, e.g. "authenticated"
	AppMetadata  map[string]any `json:"app_metadata,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at,omitzero"`
}

// Session is the credential bundle issued by the hosted auth provider.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type,omitempty"`
	ExpiresIn    int64     `json:"expires_in,omitempty"`
	ExpiresAt    int64     `json:"expires_at,omitempty"` // unix seconds
	User         *User     `json:"user"`
	ReceivedAt   time.Time `json:"-"`
}

// Expiry returns the access token expiry, or the zero time when unknown.
func (s *Session) Expiry() time.Time {
	if s == nil || s.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.Unix(s.ExpiresAt, 0)
}

// Expired reports whether the access token is expired at now, allowing for leeway.
// A session without an expiry never expires.
func (s *Session) Expired(now time.Time, leeway time.Duration) bool {
	exp := s.Expiry()
	if exp.IsZero() {
		return false
	}
	return !now.Add(leeway).Before(exp)
}

// Token exposes the session as an oauth2 token for bearer-authenticated calls.
func (s *Session) Token() *oauth2.Token {
	if s == nil {
		return nil
	}
	tokenType := s.TokenType
	if tokenType == "" {
		tokenType = "bearer"
	}
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    tokenType,
		Expiry:       s.Expiry(),
	}
}

// Profile is the application-level record keyed by user id.
type Profile struct {
	ID         string    `json:"id"          db:"id"`
	Role       Role      `json:"role"        db:"role"`
	FullName   *string   `json:"full_name"   db:"full_name"`
	SchoolID   *string   `json:"school_id"   db:"school_id"`
	SupplierID *string   `json:"supplier_id" db:"supplier_id"`
	CreatedAt  time.Time `json:"created_at"  db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"  db:"updated_at"`
}

// Event names the provider-pushed auth notifications.
type Event string

const (
	EventInitialSession Event = "INITIAL_SESSION"
	EventSignedIn       Event = "SIGNED_IN"
	EventSignedOut      Event = "SIGNED_OUT"
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
	EventUserUpdated    Event = "USER_UPDATED"
)

// TokenPair is the input to a set-session call.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// ErrIncompleteToken is returned when a persisted token lacks access or refresh fields.
var ErrIncompleteToken = errors.New("persisted token missing access_token or refresh_token")

// ParseStoredToken parses the JSON value persisted in browser storage.
func ParseStoredToken(raw string) (TokenPair, error) {
	var pair TokenPair
	if err := json.Unmarshal([]byte(raw), &pair); err != nil {
		return TokenPair{}, err
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return TokenPair{}, ErrIncompleteToken
	}
	return pair, nil
}
