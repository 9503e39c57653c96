package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/scolay/storefront/internal/bootstrap"
	"github.com/scolay/storefront/internal/data"
	domainauth "github.com/scolay/storefront/internal/domain/auth"
	"github.com/scolay/storefront/internal/service"
)

const profileCommandTimeout = 30 * time.Second

func newProfileCmd(cmdCtx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Inspect and manage user profiles",
	}

	get := &cobra.Command{
		Use:   "get <user-id>",
		Short: "Show the profile for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			return withDatabase(cmdCtx, profileCommandTimeout, func(ctx context.Context, db *sql.DB) error {
				p, err := data.NewProfileRepo(db).GetByUserID(ctx, userID)
				if err != nil {
					if data.IsProfileNotFound(err) {
						return fmt.Errorf("no profile for user %s", userID)
					}
					return err
				}
				return renderProfileTable(c.OutOrStdout(), []*domainauth.Profile{p})
			})
		},
	}

	var limit, offset int
	list := &cobra.Command{
		Use:   "list",
		Short: "List profiles",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			if limit <= 0 {
				return errors.New("--limit must be greater than zero")
			}
			return withDatabase(cmdCtx, profileCommandTimeout, func(ctx context.Context, db *sql.DB) error {
				page, err := data.NewProfileRepo(db).List(ctx, limit, offset)
				if err != nil {
					return err
				}
				if err := renderProfileTable(c.OutOrStdout(), page.Profiles); err != nil {
					return err
				}
				return printPageSummary(c.OutOrStdout(), offset, len(page.Profiles), page.Total)
			})
		},
	}
	list.Flags().IntVar(&limit, "limit", 50, "Maximum number of profiles to show")
	list.Flags().IntVar(&offset, "offset", 0, "Number of profiles to skip")

	var fullName string
	setRole := &cobra.Command{
		Use:   "set-role <user-id> <admin|school_admin|supplier_admin|none>",
		Short: "Create or update a profile's role",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			role, err := parseRoleArg(args[1])
			if err != nil {
				return err
			}
			return withDatabase(cmdCtx, profileCommandTimeout, func(ctx context.Context, db *sql.DB) error {
				req := data.UpsertProfileRequest{ID: userID, Role: role}
				if c.Flags().Changed("name") {
					req.FullName = &fullName
				}
				p, err := data.NewProfileRepo(db).Upsert(ctx, req)
				if err != nil {
					return err
				}
				invalidateCachedProfile(ctx, cmdCtx, db, userID)
				return renderProfileTable(c.OutOrStdout(), []*domainauth.Profile{p})
			})
		},
	}
	setRole.Flags().StringVar(&fullName, "name", "", "Full name to store on the profile")

	cmd.AddCommand(get, list, setRole)
	return cmd
}

// invalidateCachedProfile drops the cached copy so running storefronts pick up
// the new role on their next lookup. Redis is optional for this command.
func invalidateCachedProfile(ctx context.Context, cmdCtx *commandContext, db *sql.DB, userID string) {
	if strings.TrimSpace(cmdCtx.Config.Redis.URI) == "" && !cmdCtx.Config.Redis.UseCluster && !cmdCtx.Config.Redis.UseSentinel {
		return
	}
	rdb, err := bootstrap.ConnectRedis(bootstrap.DatabaseConfig{RedisConfig: cmdCtx.Config.Redis, Logger: cmdCtx.Logger})
	if err != nil {
		cmdCtx.Logger.WarnContext(ctx, "redis unavailable; cached profile expires on its own", "error", err)
		return
	}
	defer func() {
		if cerr := rdb.Close(); cerr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", cerr)
		}
	}()
	profiles := service.NewProfileService(service.ProfileServiceOptions{
		Store:  data.NewProfileRepo(db),
		Cache:  service.ProfileCacheConfig{Repo: data.NewRedisCacheRepo(rdb), TTL: cmdCtx.Config.Cache.ProfileTTL},
		Logger: cmdCtx.Logger,
	})
	if err := profiles.Invalidate(ctx, userID); err != nil {
		cmdCtx.Logger.WarnContext(ctx, "invalidate cached profile failed", "user_id", userID, "error", err)
	}
}

func parseUserID(raw string) (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("user id must be a uuid: %w", err)
	}
	return id.String(), nil
}

func parseRoleArg(raw string) (domainauth.Role, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "none" {
		return domainauth.RoleNone, nil
	}
	role := domainauth.ParseRole(v)
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q (valid: admin, school_admin, supplier_admin, none)", raw)
	}
	return role, nil
}

func renderProfileTable(w io.Writer, profiles []*domainauth.Profile) error {
	if len(profiles) == 0 {
		return writeln(w, "No profiles found.")
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if err := writeln(tw, "ID\tROLE\tNAME\tUPDATED"); err != nil {
		return err
	}
	for _, p := range profiles {
		role := string(p.Role)
		if role == "" {
			role = "-"
		}
		name := "-"
		if p.FullName != nil && *p.FullName != "" {
			name = *p.FullName
		}
		if err := writef(tw, "%s\t%s\t%s\t%s\n", p.ID, role, name, formatTimestamp(p.UpdatedAt)); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func printPageSummary(w io.Writer, offset, shown, total int) error {
	if shown == 0 {
		return nil
	}
	return writef(w, "Showing %d-%d of %d profile(s).\n", offset+1, offset+shown, total)
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func writeln(w io.Writer, args ...any) error {
	_, err := fmt.Fprintln(w, args...)
	return err
}
