package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Invisible042/multi-ai-user-debates/internal/config"
	"github.com/Invisible042/multi-ai-user-debates/internal/roomcontrol"
	"github.com/Invisible042/multi-ai-user-debates/internal/worker"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the control plane and the debate workers",
	Long: `Serve exposes the HTTP control plane. Joining a room for the first time
registers its debate and starts the debate worker for it.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default HTTP_ADDR)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
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

	server := roomcontrol.NewServer(cfg.LiveKit.URL, w.TokenIssuer(), w.Run,
		roomcontrol.WithCatalog(w.Catalog()),
		roomcontrol.WithDefaults(roomcontrol.Defaults{
			Topic:               cfg.Debate.Topic,
			TurnDurationMinutes: cfg.Debate.TurnDurationMinutes,
			TotalRounds:         cfg.Debate.TotalRounds,
		}),
		roomcontrol.WithRoomDeleter(lksdk.NewRoomServiceClient(cfg.LiveKit.URL, cfg.LiveKit.APIKey, cfg.LiveKit.APISecret)),
	)

	addr := serveAddr
	if addr == "" {
		addr = cfg.HTTPAddr
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start(addr) }()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		slog.Info("shutting down", "drain_timeout", cfg.DrainTimeout.String())
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.DrainTimeout)
	defer cancel()
	if err := server.Shutdown(drainCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
