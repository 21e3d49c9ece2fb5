// Package cmd holds the debate command line.
package cmd

import (
	"context"
	"fmt"

	"github.com/Invisible042/multi-ai-user-debates/internal/config"
	"github.com/Invisible042/multi-ai-user-debates/internal/telemetry"
	"github.com/spf13/cobra"
)

var envFiles []string

var rootCmd = &cobra.Command{
	Use:   "debate",
	Short: "Multi-persona AI voice debates",
	Long: `Debate runs structured spoken debates between AI personas in LiveKit
rooms. Human participants join the same room and can listen or take part.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "env files to load before the environment (default .env)")
}

// setup loads the configuration and installs telemetry. The returned
// function flushes telemetry and must be called before exiting.
func setup(ctx context.Context, validate func(*config.Config) error) (*config.Config, telemetry.ShutdownFunc, error) {
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	shutdown, err := telemetry.Setup(ctx, telemetry.Options{
		Exporter: cfg.TelemetryExporter,
		LogLevel: cfg.LogLevel,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up telemetry: %w", err)
	}
	return cfg, shutdown, nil
}
