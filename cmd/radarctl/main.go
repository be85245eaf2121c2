package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/eventradar/radar/internal/app"
	"github.com/eventradar/radar/internal/config"
	"github.com/eventradar/radar/internal/logging"
)

var (
	rootCmd = &cobra.Command{
		Use:           "radarctl",
		Short:         "Operate the event radar pipeline from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	sourcesFile string
	logLevel    string
)

func main() {
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVar(&sourcesFile, "sources", "", "path to the source registry (overrides RADAR_SOURCES_FILE)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level for this invocation (debug, info, warn, error)")

	rootCmd.AddCommand(runCmd, cleanupCmd, digestCmd, sourcesCmd, healthCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// withApp loads configuration, wires the application and runs fn with a
// context cancelled on SIGINT/SIGTERM.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	if sourcesFile != "" {
		os.Setenv("RADAR_SOURCES_FILE", sourcesFile)
	}
	if logLevel != "" {
		os.Setenv("LOG_LEVEL", logLevel)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	// Logs go to stderr so command output stays machine readable.
	logger, err := logging.NewWithWriter(cfg.Logging, os.Stderr)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}
