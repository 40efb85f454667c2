package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/omada-captive-portal/internal/config"
	"github.com/sandeepkv93/omada-captive-portal/internal/database"
	"github.com/sandeepkv93/omada-captive-portal/internal/di"
	"github.com/sandeepkv93/omada-captive-portal/internal/observability"
	"github.com/sandeepkv93/omada-captive-portal/internal/tools/common"
)

func main() {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := common.LoadEnvFile(envFile); err != nil {
		fmt.Fprintf(os.Stderr, "load env: %v\n", err)
		os.Exit(1)
	}
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "portal-api",
		Short:        "Omada external captive portal and inventory API",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCommand(), newMigrateCommand())
	return root
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger, lp, err := observability.InitLogging(ctx, cfg, os.Stdout)
			if err != nil {
				return fmt.Errorf("init logging: %w", err)
			}
			slog.SetDefault(logger)
			a, err := di.InitializeApp(ctx, cfg, logger, lp)
			if err != nil {
				logger.Error("startup failed", "error", err.Error())
				if lp != nil {
					_ = lp.Shutdown(context.Background())
				}
				return err
			}
			return a.Run(ctx)
		},
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := database.Open(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = database.Close(db) }()
			if err := database.Migrate(db); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "migrated %s database\n", cfg.DBDriver)
			return err
		},
	}
}
