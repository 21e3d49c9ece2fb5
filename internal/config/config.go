package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Invisible042/multi-ai-user-debates/core/llms/openai"
	"github.com/Invisible042/multi-ai-user-debates/core/personas"
	"github.com/Invisible042/multi-ai-user-debates/core/rooms/livekit"
	stt "github.com/Invisible042/multi-ai-user-debates/core/speechtotext/deepgram"
	tts "github.com/Invisible042/multi-ai-user-debates/core/texttospeech/deepgram"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds everything read from the environment at start-up. Nothing
// reads the process environment afterwards.
type Config struct {
	LiveKit  LiveKitConfig
	Deepgram DeepgramConfig
	LLM      LLMConfig
	Pipeline PipelineConfig
	Debate   DebateDefaults

	// Voices maps persona ids to voice overrides.
	Voices map[string]string

	HTTPAddr          string
	DrainTimeout      time.Duration
	LogLevel          string
	TelemetryExporter string
}

type LiveKitConfig struct {
	URL       string
	APIKey    string
	APISecret string
	TokenTTL  time.Duration
}

type DeepgramConfig struct {
	APIKey       string
	STTModel     string
	STTLanguage  string
	DefaultVoice string

	// EndpointingMS is the silence, in milliseconds, that ends an utterance.
	EndpointingMS int
}

type LLMConfig struct {
	OpenAIAPIKey string
	Model        string

	UseOpenRouter     bool
	OpenRouterAPIKey  string
	OpenRouterModel   string
	OpenRouterBaseURL string
}

// APIKey returns the key of the selected provider.
func (c LLMConfig) APIKey() string {
	if c.UseOpenRouter {
		return c.OpenRouterAPIKey
	}
	return c.OpenAIAPIKey
}

type PipelineConfig struct {
	NoiseCancellation      bool
	VoiceActivityDetection bool
	TurnDetection          bool
}

// DebateDefaults fill in what a join request leaves out.
type DebateDefaults struct {
	Topic               string
	TurnDurationMinutes int
	TotalRounds         int

	// MaxReplyFailures benches a persona after that many failed replies in
	// a row. Zero keeps every persona in the rotation.
	MaxReplyFailures int
}

const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
)

// Load reads the optional env files (".env" when none are given), then the
// environment. Missing env files are not an error.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		LiveKit: LiveKitConfig{
			URL:       v.GetString("LIVEKIT_URL"),
			APIKey:    v.GetString("LIVEKIT_API_KEY"),
			APISecret: v.GetString("LIVEKIT_API_SECRET"),
			TokenTTL:  v.GetDuration("TOKEN_TTL"),
		},
		Deepgram: DeepgramConfig{
			APIKey:        v.GetString("DEEPGRAM_API_KEY"),
			STTModel:      v.GetString("STT_MODEL"),
			STTLanguage:   v.GetString("STT_LANGUAGE"),
			DefaultVoice:  v.GetString("TTS_MODEL"),
			EndpointingMS: v.GetInt("STT_ENDPOINTING_MS"),
		},
		LLM: LLMConfig{
			OpenAIAPIKey:      v.GetString("OPENAI_API_KEY"),
			Model:             v.GetString("LLM_MODEL"),
			UseOpenRouter:     v.GetBool("USE_OPENROUTER"),
			OpenRouterAPIKey:  v.GetString("OPENROUTER_API_KEY"),
			OpenRouterModel:   v.GetString("OPENROUTER_MODEL"),
			OpenRouterBaseURL: v.GetString("OPENROUTER_BASE_URL"),
		},
		Pipeline: PipelineConfig{
			NoiseCancellation:      v.GetBool("NOISE_CANCELLATION"),
			VoiceActivityDetection: v.GetBool("VAD"),
			TurnDetection:          v.GetBool("TURN_DETECTION"),
		},
		Debate: DebateDefaults{
			Topic:               v.GetString("DEFAULT_TOPIC"),
			TurnDurationMinutes: v.GetInt("DEFAULT_TURN_DURATION_MIN"),
			TotalRounds:         v.GetInt("DEFAULT_TOTAL_ROUNDS"),
			MaxReplyFailures:    v.GetInt("MAX_REPLY_FAILURES"),
		},
		Voices:            map[string]string{},
		HTTPAddr:          v.GetString("HTTP_ADDR"),
		DrainTimeout:      v.GetDuration("DRAIN_TIMEOUT"),
		LogLevel:          strings.ToLower(v.GetString("LOG_LEVEL")),
		TelemetryExporter: strings.ToLower(v.GetString("TELEMETRY_EXPORTER")),
	}

	for _, definition := range personas.DefaultDefinitions() {
		if voice := v.GetString(VoiceKey(definition.ID)); voice != "" {
			cfg.Voices[definition.ID] = voice
		}
	}

	return cfg, nil
}

// VoiceKey is the environment variable overriding a persona's voice,
// e.g. VOICE_SOCRATES.
func VoiceKey(personaID string) string {
	return "VOICE_" + strings.ToUpper(personaID)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("TOKEN_TTL", livekit.DefaultTokenTTL)
	v.SetDefault("STT_MODEL", stt.DefaultModel)
	v.SetDefault("STT_LANGUAGE", stt.DefaultLanguage)
	v.SetDefault("STT_ENDPOINTING_MS", stt.DefaultEndpointing)
	v.SetDefault("TTS_MODEL", tts.DefaultVoice)
	v.SetDefault("LLM_MODEL", openai.DefaultModel)
	v.SetDefault("USE_OPENROUTER", false)
	v.SetDefault("OPENROUTER_MODEL", openai.OpenRouterModel)
	v.SetDefault("OPENROUTER_BASE_URL", openai.OpenRouterBaseURL)
	v.SetDefault("NOISE_CANCELLATION", true)
	v.SetDefault("VAD", true)
	v.SetDefault("TURN_DETECTION", false)
	v.SetDefault("DEFAULT_TOPIC", "AI Debate")
	v.SetDefault("DEFAULT_TURN_DURATION_MIN", 3)
	v.SetDefault("DEFAULT_TOTAL_ROUNDS", 4)
	v.SetDefault("MAX_REPLY_FAILURES", 0)
	v.SetDefault("HTTP_ADDR", ":8000")
	v.SetDefault("DRAIN_TIMEOUT", 30*time.Second)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("TELEMETRY_EXPORTER", ExporterNone)
}

// ValidateControlPlane checks what is needed to hand out room tokens.
func (c *Config) ValidateControlPlane() error {
	var errs []error
	if c.LiveKit.URL == "" {
		errs = append(errs, errors.New("LIVEKIT_URL is required"))
	}
	if c.LiveKit.APIKey == "" {
		errs = append(errs, errors.New("LIVEKIT_API_KEY is required"))
	}
	if c.LiveKit.APISecret == "" {
		errs = append(errs, errors.New("LIVEKIT_API_SECRET is required"))
	}
	if c.LiveKit.TokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("TOKEN_TTL must be positive, got %s", c.LiveKit.TokenTTL))
	}
	switch c.TelemetryExporter {
	case ExporterNone, ExporterStdout:
	default:
		errs = append(errs, fmt.Errorf("TELEMETRY_EXPORTER must be %q or %q, got %q", ExporterNone, ExporterStdout, c.TelemetryExporter))
	}
	return errors.Join(errs...)
}

// Validate checks everything a debate worker needs.
func (c *Config) Validate() error {
	errs := []error{c.ValidateControlPlane()}
	if c.Deepgram.APIKey == "" {
		errs = append(errs, errors.New("DEEPGRAM_API_KEY is required"))
	}
	if c.LLM.APIKey() == "" {
		if c.LLM.UseOpenRouter {
			errs = append(errs, errors.New("OPENROUTER_API_KEY is required when USE_OPENROUTER is set"))
		} else {
			errs = append(errs, errors.New("OPENAI_API_KEY is required"))
		}
	}
	if c.Debate.TurnDurationMinutes <= 0 {
		errs = append(errs, fmt.Errorf("DEFAULT_TURN_DURATION_MIN must be positive, got %d", c.Debate.TurnDurationMinutes))
	}
	if c.Debate.TotalRounds < 0 {
		errs = append(errs, fmt.Errorf("DEFAULT_TOTAL_ROUNDS must not be negative, got %d", c.Debate.TotalRounds))
	}
	if c.Debate.MaxReplyFailures < 0 {
		errs = append(errs, fmt.Errorf("MAX_REPLY_FAILURES must not be negative, got %d", c.Debate.MaxReplyFailures))
	}
	if c.Deepgram.EndpointingMS <= 0 {
		errs = append(errs, fmt.Errorf("STT_ENDPOINTING_MS must be positive, got %d", c.Deepgram.EndpointingMS))
	}
	return errors.Join(errs...)
}
