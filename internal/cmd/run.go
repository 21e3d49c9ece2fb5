package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	orchestration "github.com/Invisible042/multi-ai-user-debates/core"
	"github.com/Invisible042/multi-ai-user-debates/core/personas"
	"github.com/Invisible042/multi-ai-user-debates/internal/config"
	"github.com/Invisible042/multi-ai-user-debates/internal/roomcontrol"
	"github.com/Invisible042/multi-ai-user-debates/internal/worker"
	"github.com/spf13/cobra"
)

var runFlags struct {
	room         string
	topic        string
	personas     []string
	turnDuration int
	rounds       int
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single debate in a room",
		Long: `Run holds one debate in the given room without the control plane and
exits when it is over. Interrupting it closes every session first.`,
		Args: cobra.NoArgs,
		RunE: runDebate,
	}
	cmd.Flags().StringVar(&runFlags.room, "room", roomcontrol.DefaultRoom, "LiveKit room name")
	cmd.Flags().StringVar(&runFlags.topic, "topic", "", "debate topic (default DEFAULT_TOPIC)")
	cmd.Flags().StringArrayVar(&runFlags.personas, "persona", nil, "persona id or name, repeatable, at most three are seated")
	cmd.Flags().IntVar(&runFlags.turnDuration, "turn-duration", 0, "seconds between turns (default DEFAULT_TURN_DURATION_MIN)")
	cmd.Flags().IntVar(&runFlags.rounds, "rounds", 0, "debate rounds after the introductions (default DEFAULT_TOTAL_ROUNDS)")
	return cmd
}

func init() {
	rootCmd.AddCommand(newRunCmd())
}

func runDebate(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, shutdownTelemetry, err := setup(ctx, (*config.Config).Validate)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			slog.Error("failed to flush telemetry", "error", err)
		}
	}()

	w, err := worker.New(cfg)
	if err != nil {
		return err
	}

	debate := debateConfig(cmd, cfg, w.Catalog())
	if err := debate.Validate(); err != nil {
		return err
	}

	err = w.Run(ctx, debate)
	if errors.Is(err, orchestration.ErrDebateCancelled) {
		fmt.Fprintln(cmd.OutOrStdout(), "debate cancelled")
		return nil
	}
	return err
}

// debateConfig fills the flags left unset from the configured defaults.
func debateConfig(cmd *cobra.Command, cfg *config.Config, catalog *personas.Catalog) orchestration.DebateConfig {
	debate := orchestration.DebateConfig{
		Room:                runFlags.room,
		Topic:               runFlags.topic,
		PersonaIDs:          catalog.MapFrontendIDs(runFlags.personas),
		TurnDurationSeconds: cfg.Debate.TurnDurationMinutes * 60,
		TotalRounds:         cfg.Debate.TotalRounds,
	}
	if debate.Topic == "" {
		debate.Topic = cfg.Debate.Topic
	}
	if len(debate.PersonaIDs) == 0 {
		debate.PersonaIDs = roomcontrol.DefaultPersonas
	}
	if cmd.Flags().Changed("turn-duration") {
		debate.TurnDurationSeconds = runFlags.turnDuration
	}
	if cmd.Flags().Changed("rounds") {
		debate.TotalRounds = runFlags.rounds
	}
	return debate
}
