// Package cli implements the datachat command line.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/malbeclabs/datachat/internal/app"
	"github.com/malbeclabs/datachat/pkg/config"
	"github.com/malbeclabs/datachat/pkg/logger"
	"github.com/spf13/cobra"
)

type ExitCode int

const (
	exitCodeSuccess = 0
	exitCodeError   = 1
)

func Run() ExitCode {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		return exitCodeError
	}
	return exitCodeSuccess
}

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "datachat",
		Short:         "Ask questions of your data and documentation in plain language.",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Help(); err != nil {
				return fmt.Errorf("failed to show help: %w", err)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "set debug logging level")
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file loaded before reading the environment")

	rootCmd.AddCommand(
		NewAskCmd().Command(),
		NewSchemaCmd().Command(),
		NewIngestCmd().Command(),
		NewSourcesCmd().Command(),
		NewMetricsCmd().Command(),
	)
	return rootCmd
}

// loadConfig reads the dotenv file, if present, and the environment.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	verbose, err := cmd.Root().PersistentFlags().GetBool("verbose")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get verbose flag: %w", err)
	}
	envFile, err := cmd.Root().PersistentFlags().GetString("env-file")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get env-file flag: %w", err)
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	log := logger.NewWithWriter(cmd.ErrOrStderr(), verbose)
	cfg, err := config.Load(os.LookupEnv)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, log, nil
}

func openApp(ctx context.Context, cmd *cobra.Command) (*app.App, error) {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, log, cfg)
}
