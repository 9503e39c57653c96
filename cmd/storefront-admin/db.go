package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/scolay/storefront/internal/bootstrap"
	"github.com/scolay/storefront/internal/data"
	"github.com/scolay/storefront/internal/devseed"
	"github.com/scolay/storefront/internal/migrate"
)

func newMigrateCmd(cmdCtx *commandContext) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := validateTimeout(timeout); err != nil {
				return err
			}
			return withDatabase(cmdCtx, timeout, func(ctx context.Context, db *sql.DB) error {
				cmdCtx.Logger.Info("running database migrations")
				if err := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); err != nil {
					return err
				}
				cmdCtx.Logger.Info("migrations completed successfully")
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", defaultMigrationTimeout,
		"Maximum duration to wait for migrations to complete")

	status := &cobra.Command{
		Use:   "status",
		Short: "List migrations that have not been applied",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return withDatabase(cmdCtx, defaultMigrationTimeout, func(ctx context.Context, db *sql.DB) error {
				pending, err := migrate.Pending(ctx, db)
				if err != nil {
					return fmt.Errorf("list pending migrations: %w", err)
				}
				return printPending(c.OutOrStdout(), pending)
			})
		},
	}
	cmd.AddCommand(status)
	return cmd
}

func printPending(w io.Writer, pending []string) error {
	if len(pending) == 0 {
		return writeln(w, "Database schema is up to date.")
	}
	if err := writef(w, "%d pending migration(s):\n", len(pending)); err != nil {
		return err
	}
	for _, v := range pending {
		if err := writef(w, "  %s\n", v); err != nil {
			return err
		}
	}
	return nil
}

type dbResetOptions struct {
	Timeout     time.Duration
	Yes         bool
	Seed        bool
	AllowRemote bool
}

func newDBResetCmd(cmdCtx *commandContext) *cobra.Command {
	var opts dbResetOptions
	cmd := &cobra.Command{
		Use:   "db-reset",
		Short: "Drop the database schema, run migrations, and optionally seed data",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			if err := validateTimeout(opts.Timeout); err != nil {
				return err
			}
			return runDBReset(cmdCtx, opts, c.InOrStdin(), c.ErrOrStderr())
		},
	}
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", defaultMigrationTimeout,
		"Maximum duration to wait for reset operations to complete")
	cmd.Flags().BoolVar(&opts.Yes, "yes", false, "Skip confirmation prompt")
	cmd.Flags().BoolVar(&opts.Seed, "seed", false, "Run database seeding after reset completes")
	cmd.Flags().BoolVar(&opts.AllowRemote, "allow-remote", false,
		"Permit running against database hosts that do not look local")
	return cmd
}

func runDBReset(cmdCtx *commandContext, opts dbResetOptions, in io.Reader, out io.Writer) error {
	pg := cmdCtx.Config.Postgres
	// Share one buffered reader so both prompts see every input line.
	in = bufio.NewReader(in)
	remote, err := guardRemoteHost(cmdCtx, opts.AllowRemote, "drop and recreate the public schema", in, out)
	if err != nil {
		return err
	}
	if !opts.Yes || remote {
		target := fmt.Sprintf("database %q on %s:%d", pg.Name, pg.Host, pg.Port)
		if confirmErr := confirm(in, out,
			"WARNING: this will drop and recreate the public schema for "+target+"."); confirmErr != nil {
			return confirmErr
		}
	}

	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		cmdCtx.Logger.Info("dropping public schema", "database", pg.Name)
		if resetErr := cmdCtx.resetDatabase(ctx, db); resetErr != nil {
			return resetErr
		}

		cmdCtx.Logger.Info("re-running database migrations")
		if migrateErr := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); migrateErr != nil {
			return migrateErr
		}

		if opts.Seed {
			cmdCtx.Logger.Info("seeding development data after reset")
			if seedErr := devseed.Run(ctx, data.NewProfileRepo(db), cmdCtx.Config.Auth.DevAuth, cmdCtx.Logger); seedErr != nil {
				return fmt.Errorf("seed data: %w", seedErr)
			}
		}

		cmdCtx.Logger.Info("database reset completed successfully")
		return nil
	})
}

func newDBSeedCmd(cmdCtx *commandContext) *cobra.Command {
	var (
		timeout     time.Duration
		allowRemote bool
	)
	cmd := &cobra.Command{
		Use:   "db-seed",
		Short: "Run database migrations and seed development profiles",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			if err := validateTimeout(timeout); err != nil {
				return err
			}
			if _, err := guardRemoteHost(cmdCtx, allowRemote, "seed development data on the configured database",
				c.InOrStdin(), c.ErrOrStderr()); err != nil {
				return err
			}
			return withDatabase(cmdCtx, timeout, func(ctx context.Context, db *sql.DB) error {
				cmdCtx.Logger.Info("ensuring database migrations are current")
				if err := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); err != nil {
					return err
				}
				cmdCtx.Logger.Info("seeding development profiles")
				if err := devseed.Run(ctx, data.NewProfileRepo(db), cmdCtx.Config.Auth.DevAuth, cmdCtx.Logger); err != nil {
					return fmt.Errorf("seed data: %w", err)
				}
				cmdCtx.Logger.Info("database seeding completed successfully")
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", defaultMigrationTimeout,
		"Maximum duration to wait for seeding to complete")
	cmd.Flags().BoolVar(&allowRemote, "allow-remote", false,
		"Permit running against database hosts that do not look local")
	return cmd
}

func validateTimeout(d time.Duration) error {
	if d <= 0 {
		return errors.New("--timeout must be greater than zero")
	}
	return nil
}

func withDatabase(
	cmdCtx *commandContext,
	timeout time.Duration,
	f func(context.Context, *sql.DB) error,
) error {
	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
		DBConfig: cmdCtx.Config.Postgres,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", cerr)
		}
	}()

	return f(ctx, db)
}

func guardRemoteHost(cmdCtx *commandContext, allow bool, action string, in io.Reader, out io.Writer) (bool, error) {
	host := cmdCtx.Config.Postgres.Host
	if !isLikelyRemoteHost(host) {
		return false, nil
	}
	if !allow {
		return true, fmt.Errorf(
			"refusing to run against potentially remote database host %q; re-run with --allow-remote if this is intentional",
			host,
		)
	}
	if err := writef(out,
		"\nWARNING: database host %q does not look like a local address.\nThis operation will %s.\n"+
			"Type %q to continue or press enter to abort: ", host, action, host); err != nil {
		return true, fmt.Errorf("print remote host prompt: %w", err)
	}
	resp, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return true, fmt.Errorf("read confirmation: %w", err)
	}
	if strings.TrimSpace(resp) != host {
		return true, errors.New("aborted by user")
	}
	return true, nil
}

func confirm(in io.Reader, out io.Writer, warning string) error {
	if err := writef(out, "%s\nContinue? [y/N]: ", warning); err != nil {
		return fmt.Errorf("print confirmation prompt: %w", err)
	}
	resp, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read confirmation: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(resp)) {
	case "y", "yes":
		return nil
	default:
		return errors.New("aborted by user")
	}
}

func (cmdCtx *commandContext) resetDatabase(ctx context.Context, db *sql.DB) error {
	statements := []string{
		"DROP SCHEMA public CASCADE",
		"CREATE SCHEMA public",
		"GRANT ALL ON SCHEMA public TO public",
	}
	if user := strings.TrimSpace(cmdCtx.Config.Postgres.User); user != "" && !strings.EqualFold(user, "public") {
		statements = append(statements, "GRANT ALL ON SCHEMA public TO "+quoteIdentifier(user))
	}

	for _, stmt := range statements {
		cmdCtx.Logger.DebugContext(ctx, "executing reset statement", "sql", stmt)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt, err)
		}
	}
	return nil
}

func quoteIdentifier(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func isLikelyRemoteHost(host string) bool {
	h := strings.ToLower(strings.TrimSpace(host))
	if h == "" || h == "localhost" || strings.HasSuffix(h, ".local") {
		return false
	}
	if ip := net.ParseIP(h); ip != nil {
		return !ip.IsLoopback()
	}
	return true
}
