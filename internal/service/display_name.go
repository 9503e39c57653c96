package service

import (
	"encoding/json"
	"fmt"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"
	domainauth "github.com/scolay/storefront/internal/domain/auth"
)

// DisplayNamer derives a human-readable name for the signed-in user.
// A profile full name wins; otherwise a JMESPath expression is evaluated
// against the provider user record (e.g. "user_metadata.full_name || email").
type DisplayNamer struct {
	expr string
}

// NewDisplayNamer compiles expr. An empty expression falls back to the email address.
func NewDisplayNamer(expr string) (*DisplayNamer, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		expr = "email"
	}
	if _, err := jmespath.Compile(expr); err != nil {
		return nil, fmt.Errorf("invalid display name expression %q: %w", expr, err)
	}
	return &DisplayNamer{expr: expr}, nil
}

// Name returns the display name, or "" when no user is signed in.
func (d *DisplayNamer) Name(user *domainauth.User, profile *domainauth.Profile) string {
	if user == nil {
		return ""
	}
	if profile != nil && profile.FullName != nil && strings.TrimSpace(*profile.FullName) != "" {
		return strings.TrimSpace(*profile.FullName)
	}
	if d == nil {
		return user.Email
	}

	// Evaluate against the JSON shape so expressions use wire field names.
	raw, err := json.Marshal(user)
	if err != nil {
		return user.Email
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return user.Email
	}
	out, err := jmespath.Search(d.expr, doc)
	if err != nil {
		return user.Email
	}
	if s, ok := out.(string); ok && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s)
	}
	return user.Email
}
