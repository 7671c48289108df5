package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/pricebot-bootstrap/internal/config"
	"github.com/oshokin/pricebot-bootstrap/internal/logger"
	"github.com/oshokin/pricebot-bootstrap/internal/service/bootstrap"
	"github.com/oshokin/pricebot-bootstrap/internal/version"
)

var (
	// configPath to the optional settings file.
	configPath string

	// logLevel overrides the logger level for every subcommand.
	logLevel string

	// rootCmd prepares the environment and hands off to robot.py.
	rootCmd = &cobra.Command{
		Use:   "pricebot-bootstrap",
		Short: "Install PriceRobot dependencies, fetch robot.py and run it",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return applyLogLevel()
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return bootstrap.Run(ctx, &bootstrap.Options{ConfigPath: configPath})
		},
		SilenceUsage: true,
	}
)

// Execute runs the pricebot-bootstrap CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func applyLogLevel() error {
	if logLevel == "" {
		return nil
	}

	level, ok := logger.ParseLogLevel(logLevel)
	if !ok {
		return fmt.Errorf("unknown log level %q", logLevel)
	}

	logger.SetLevel(level)

	return nil
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to settings file (YAML or TOML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}
