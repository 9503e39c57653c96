// Package devseed populates a development database with profiles for every navbar role.
package devseed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/scolay/storefront/config"
	"github.com/scolay/storefront/internal/adapters/devauth"
	"github.com/scolay/storefront/internal/data"
	domainauth "github.com/scolay/storefront/internal/domain/auth"
)

// ProfileWriter is the subset of the profile repository used for seeding.
type ProfileWriter interface {
	Upsert(ctx context.Context, req data.UpsertProfileRequest) (*domainauth.Profile, error)
}

// SeedProfile describes one seeded account.
type SeedProfile struct {
	Email    string
	FullName string
	Role     domainauth.Role
}

// DemoProfiles are created alongside the configured dev user. Signing up with
// one of these addresses in mock auth mode lands on the seeded profile.
var DemoProfiles = []SeedProfile{
	{Email: "school@scolay.test", FullName: "Sam School", Role: domainauth.RoleSchoolAdmin},
	{Email: "supplier@scolay.test", FullName: "Sasha Supplier", Role: domainauth.RoleSupplierAdmin},
	{Email: "parent@scolay.test", FullName: "Pat Parent", Role: domainauth.RoleNone},
}

// Run upserts the dev user as an admin and the demo profiles. It keeps going
// after a failed profile and reports the failure count at the end.
func Run(ctx context.Context, repo ProfileWriter, dev config.DevAuthConfig, logger *slog.Logger) error {
	if repo == nil {
		return errors.New("profile repository is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	failures := 0
	if dev.UserID != "" {
		name := "Dev Admin"
		if _, err := repo.Upsert(ctx, data.UpsertProfileRequest{ID: dev.UserID, Role: domainauth.RoleAdmin, FullName: &name}); err != nil {
			logger.ErrorContext(ctx, "failed to seed dev profile", "email", dev.Email, "error", err)
			failures++
		} else {
			logger.InfoContext(ctx, "seeded profile", "email", dev.Email, "role", domainauth.RoleAdmin)
		}
	}

	for _, p := range DemoProfiles {
		name := p.FullName
		req := data.UpsertProfileRequest{ID: devauth.UserIDFor(p.Email), Role: p.Role, FullName: &name}
		if _, err := repo.Upsert(ctx, req); err != nil {
			logger.ErrorContext(ctx, "failed to seed profile", "email", p.Email, "error", err)
			failures++
			continue
		}
		logger.InfoContext(ctx, "seeded profile", "email", p.Email, "role", p.Role)
	}

	if failures > 0 {
		return fmt.Errorf("%d seed errors; check logs", failures)
	}
	return nil
}
