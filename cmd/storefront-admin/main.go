package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/scolay/storefront/config"
	"github.com/scolay/storefront/internal/bootstrap"
)

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
}

const defaultMigrationTimeout = 5 * time.Minute

func main() {
	logger := bootstrap.InitLogger()
	cmdCtx := &commandContext{Ctx: context.Background(), Logger: logger}
	if err := newRootCmd(cmdCtx, bootstrap.LoadConfig).Execute(); err != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

// newRootCmd builds the command tree. Config is loaded once, before any
// subcommand runs, so flag and argument errors surface without touching the environment.
func newRootCmd(cmdCtx *commandContext, loadConfig func() (config.AppConfig, error)) *cobra.Command {
	root := &cobra.Command{
		Use:           "storefront-admin",
		Short:         "Administrative tasks for the Scolay storefront",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cmdCtx.Config = cfg
			if cmd.Context() != nil {
				cmdCtx.Ctx = cmd.Context()
			}
			return nil
		},
	}
	root.AddCommand(
		newMigrateCmd(cmdCtx),
		newDBResetCmd(cmdCtx),
		newDBSeedCmd(cmdCtx),
		newProfileCmd(cmdCtx),
	)
	return root
}
