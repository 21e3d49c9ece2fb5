// Package worker runs debates against the real providers: LiveKit for the
// room, Deepgram for speech and an OpenAI compatible endpoint for replies.
package worker

import (
	"context"
	"errors"
	"fmt"

	orchestration "github.com/Invisible042/multi-ai-user-debates/core"
	"github.com/Invisible042/multi-ai-user-debates/core/conversations"
	"github.com/Invisible042/multi-ai-user-debates/core/events"
	"github.com/Invisible042/multi-ai-user-debates/core/llms/openai"
	"github.com/Invisible042/multi-ai-user-debates/core/personas"
	"github.com/Invisible042/multi-ai-user-debates/core/rooms"
	"github.com/Invisible042/multi-ai-user-debates/core/rooms/livekit"
	stt "github.com/Invisible042/multi-ai-user-debates/core/speechtotext/deepgram"
	tts "github.com/Invisible042/multi-ai-user-debates/core/texttospeech/deepgram"
	"github.com/Invisible042/multi-ai-user-debates/internal/config"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Worker holds the clients shared by every debate it runs. Speech
// recognition streams are per speaker and are opened on demand.
type Worker struct {
	cfg     *config.Config
	issuer  *livekit.TokenIssuer
	llm     *openai.Client
	speech  *tts.TextToSpeechClient
	catalog *personas.Catalog
}

func New(cfg *config.Config) (*Worker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid worker configuration: %w", err)
	}

	issuer, err := livekit.NewTokenIssuer(cfg.LiveKit.APIKey, cfg.LiveKit.APISecret, cfg.LiveKit.TokenTTL)
	if err != nil {
		return nil, err
	}

	llm, err := NewLLM(cfg.LLM)
	if err != nil {
		return nil, err
	}

	speech, err := tts.NewTextToSpeechClient(cfg.Deepgram.APIKey, tts.WithDefaultVoice(cfg.Deepgram.DefaultVoice))
	if err != nil {
		return nil, err
	}

	return &Worker{
		cfg:     cfg,
		issuer:  issuer,
		llm:     llm,
		speech:  speech,
		catalog: NewCatalog(cfg),
	}, nil
}

// NewLLM selects OpenRouter when configured and OpenAI otherwise.
func NewLLM(cfg config.LLMConfig) (*openai.Client, error) {
	if cfg.UseOpenRouter {
		return openai.NewClient(cfg.OpenRouterAPIKey,
			openai.WithOpenRouter(),
			openai.WithBaseURL(cfg.OpenRouterBaseURL),
			openai.WithModel(cfg.OpenRouterModel),
		)
	}
	return openai.NewClient(cfg.OpenAIAPIKey, openai.WithModel(cfg.Model))
}

// NewCatalog is the default persona catalog with the configured voices.
func NewCatalog(cfg *config.Config) *personas.Catalog {
	return personas.DefaultCatalog(
		personas.WithDefaultVoice(cfg.Deepgram.DefaultVoice),
		personas.WithVoiceOverrides(cfg.Voices),
	)
}

func (w *Worker) Catalog() *personas.Catalog { return w.catalog }

func (w *Worker) TokenIssuer() *livekit.TokenIssuer { return w.issuer }

// Run holds one debate in its LiveKit room and returns when it is over. It
// matches roomcontrol.RunFunc.
func (w *Worker) Run(ctx context.Context, debate orchestration.DebateConfig) error {
	ctx, span := tracer.Start(ctx, "run debate worker", trace.WithAttributes(
		attribute.String("room.name", debate.Room),
	))
	defer span.End()

	room := livekit.NewRoom(w.cfg.LiveKit.URL, debate.Room, w.issuer)
	defer func() {
		if err := room.Close(); err != nil {
			logger.WarnContext(ctx, "failed to close room", "room", debate.Room, "error", err)
		}
	}()

	orchestrator, err := orchestration.NewOrchestrator(debate, room, w.orchestratorOptions(debate.Room, room)...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	report, err := orchestrator.Run(ctx)
	logger.InfoContext(ctx, "debate finished",
		"room", debate.Room,
		"sessions", report.Sessions,
		"failed", report.Failed,
		"turns", report.Turns,
		"rounds", report.Rounds,
		"cancelled", report.Cancelled,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (w *Worker) orchestratorOptions(room string, publisher rooms.DataPublisher) []orchestration.OrchestratorOption {
	return []orchestration.OrchestratorOption{
		orchestration.WithCatalog(w.catalog),
		orchestration.WithSessionStarter(orchestration.ConversationStarter(w.sessionOptions()...)),
		orchestration.WithEventHandler(PublishEvents(room, publisher)),
		orchestration.WithMaxConsecutiveReplyFailures(w.cfg.Debate.MaxReplyFailures),
	}
}

func (w *Worker) sessionOptions() []conversations.SessionOption {
	return []conversations.SessionOption{
		conversations.WithLLM(w.llm),
		conversations.WithTextToSpeech(w.speech),
		conversations.WithSpeechToText(w.openTranscription),
		conversations.WithNoiseCancellation(w.cfg.Pipeline.NoiseCancellation),
		conversations.WithVoiceActivityDetection(w.cfg.Pipeline.VoiceActivityDetection),
		conversations.WithTurnDetection(w.cfg.Pipeline.TurnDetection),
	}
}

// openTranscription opens a Deepgram stream for one speaker of a session.
func (w *Worker) openTranscription() (conversations.SpeechToText, error) {
	client, err := stt.NewTranscriptionClient(w.cfg.Deepgram.APIKey,
		stt.WithModel(w.cfg.Deepgram.STTModel),
		stt.WithLanguage(w.cfg.Deepgram.STTLanguage),
		stt.WithEndpointing(w.cfg.Deepgram.EndpointingMS),
	)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// PublishEvents broadcasts debate events to the room's participants. Events
// raised before the room is connected are dropped.
func PublishEvents(room string, publisher rooms.DataPublisher) orchestration.EventHandler {
	return func(ctx context.Context, event events.Event) {
		payload, err := events.Encode(room, event)
		if err != nil {
			logger.WarnContext(ctx, "failed to encode debate event", "kind", event.Kind(), "error", err)
			return
		}

		err = publisher.PublishData(ctx, livekit.EventsTopic, payload)
		switch {
		case err == nil:
		case errors.Is(err, livekit.ErrNotConnected):
			logger.DebugContext(ctx, "room not connected, event not published", "kind", event.Kind())
		default:
			logger.WarnContext(ctx, "failed to publish debate event", "kind", event.Kind(), "error", err)
		}
	}
}
