package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// missingEnvFile clears the keys read by Load and returns an env file path
// that does not exist.
func missingEnvFile(t *testing.T) string {
	for _, key := range []string{
		"LIVEKIT_URL", "LIVEKIT_API_KEY", "LIVEKIT_API_SECRET", "TOKEN_TTL",
		"DEEPGRAM_API_KEY", "STT_MODEL", "STT_LANGUAGE", "TTS_MODEL",
		"OPENAI_API_KEY", "LLM_MODEL", "USE_OPENROUTER", "OPENROUTER_API_KEY",
		"NOISE_CANCELLATION", "VAD", "TURN_DETECTION", "DEFAULT_TOPIC",
		"HTTP_ADDR", "DRAIN_TIMEOUT", "LOG_LEVEL", "TELEMETRY_EXPORTER",
		"STT_ENDPOINTING_MS", "MAX_REPLY_FAILURES",
	} {
		t.Setenv(key, "")
	}
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(missingEnvFile(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTPAddr != ":8000" {
		t.Fatalf("expected :8000, got %s", cfg.HTTPAddr)
	}
	if cfg.LiveKit.TokenTTL != 2*time.Hour {
		t.Fatalf("expected 2h token ttl, got %s", cfg.LiveKit.TokenTTL)
	}
	if cfg.Deepgram.STTModel != "nova-3" || cfg.Deepgram.STTLanguage != "multi" || cfg.Deepgram.DefaultVoice != "aura-2-thalia-en" {
		t.Fatalf("unexpected deepgram defaults %+v", cfg.Deepgram)
	}
	if cfg.LLM.Model != "gpt-4o-mini" || cfg.LLM.UseOpenRouter {
		t.Fatalf("unexpected llm defaults %+v", cfg.LLM)
	}
	if !cfg.Pipeline.NoiseCancellation || !cfg.Pipeline.VoiceActivityDetection || cfg.Pipeline.TurnDetection {
		t.Fatalf("unexpected pipeline defaults %+v", cfg.Pipeline)
	}
	if cfg.Debate.Topic != "AI Debate" || cfg.Debate.TurnDurationMinutes != 3 || cfg.Debate.TotalRounds != 4 {
		t.Fatalf("unexpected debate defaults %+v", cfg.Debate)
	}
	if cfg.Debate.MaxReplyFailures != 0 || cfg.Deepgram.EndpointingMS != 300 {
		t.Fatalf("expected no benching and 300ms endpointing, got %d, %d", cfg.Debate.MaxReplyFailures, cfg.Deepgram.EndpointingMS)
	}
	if cfg.DrainTimeout != 30*time.Second || cfg.TelemetryExporter != ExporterNone {
		t.Fatalf("unexpected process defaults %s, %s", cfg.DrainTimeout, cfg.TelemetryExporter)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	envFile := missingEnvFile(t)
	t.Setenv("LIVEKIT_URL", "wss://example.livekit.cloud")
	t.Setenv("TOKEN_TTL", "30m")
	t.Setenv("USE_OPENROUTER", "true")
	t.Setenv("OPENROUTER_API_KEY", "or-key")
	t.Setenv("VOICE_SOCRATES", "aura-2-orpheus-en")
	t.Setenv("TURN_DETECTION", "1")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("MAX_REPLY_FAILURES", "3")
	t.Setenv("STT_ENDPOINTING_MS", "500")

	cfg, err := Load(envFile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.LiveKit.URL != "wss://example.livekit.cloud" || cfg.LiveKit.TokenTTL != 30*time.Minute {
		t.Fatalf("unexpected livekit config %+v", cfg.LiveKit)
	}
	if cfg.LLM.APIKey() != "or-key" {
		t.Fatalf("expected openrouter key to be selected, got %q", cfg.LLM.APIKey())
	}
	if cfg.Voices["socrates"] != "aura-2-orpheus-en" || len(cfg.Voices) != 1 {
		t.Fatalf("expected a single voice override, got %v", cfg.Voices)
	}
	if !cfg.Pipeline.TurnDetection || cfg.LogLevel != "debug" {
		t.Fatalf("expected turn detection and debug logging, got %+v, %s", cfg.Pipeline, cfg.LogLevel)
	}
	if cfg.Debate.MaxReplyFailures != 3 || cfg.Deepgram.EndpointingMS != 500 {
		t.Fatalf("expected 3 reply failures and 500ms endpointing, got %d, %d", cfg.Debate.MaxReplyFailures, cfg.Deepgram.EndpointingMS)
	}
}

func TestLoadEnvFile(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "from-environment")

	path := filepath.Join(t.TempDir(), ".env")
	content := "DEEPGRAM_API_KEY=from-file\nDEFAULT_TOPIC=Free will\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("DEFAULT_TOPIC") })

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Deepgram.APIKey != "from-environment" {
		t.Fatalf("expected environment to win over env file, got %s", cfg.Deepgram.APIKey)
	}
	if cfg.Debate.Topic != "Free will" {
		t.Fatalf("expected topic from env file, got %s", cfg.Debate.Topic)
	}
}

func TestValidate(t *testing.T) {
	cfg, err := Load(missingEnvFile(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = cfg.Validate()
	if err == nil {
		t.Fatalf("expected missing credentials to fail validation")
	}
	for _, key := range []string{"LIVEKIT_URL", "LIVEKIT_API_KEY", "LIVEKIT_API_SECRET", "DEEPGRAM_API_KEY", "OPENAI_API_KEY"} {
		if !strings.Contains(err.Error(), key) {
			t.Fatalf("expected %s to be reported, got %v", key, err)
		}
	}

	cfg.LiveKit = LiveKitConfig{URL: "wss://lk", APIKey: "key", APISecret: "secret", TokenTTL: time.Hour}
	if err := cfg.ValidateControlPlane(); err != nil {
		t.Fatalf("expected control plane config to be valid, got %v", err)
	}

	cfg.Deepgram.APIKey = "dg"
	cfg.LLM.OpenAIAPIKey = "sk"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected complete config to be valid, got %v", err)
	}

	cfg.TelemetryExporter = "jaeger"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "TELEMETRY_EXPORTER") {
		t.Fatalf("expected unknown exporter to be reported, got %v", err)
	}
	cfg.TelemetryExporter = ExporterNone

	cfg.Debate.MaxReplyFailures = -1
	cfg.Deepgram.EndpointingMS = 0
	err = cfg.Validate()
	for _, key := range []string{"MAX_REPLY_FAILURES", "STT_ENDPOINTING_MS"} {
		if err == nil || !strings.Contains(err.Error(), key) {
			t.Fatalf("expected %s to be reported, got %v", key, err)
		}
	}
}
