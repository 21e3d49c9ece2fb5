package cmd

import (
	"slices"
	"testing"

	"github.com/Invisible042/multi-ai-user-debates/core/personas"
	"github.com/Invisible042/multi-ai-user-debates/internal/config"
	"github.com/Invisible042/multi-ai-user-debates/internal/roomcontrol"
)

func testConfig() *config.Config {
	return &config.Config{
		Debate: config.DebateDefaults{Topic: "AI Debate", TurnDurationMinutes: 3, TotalRounds: 4},
	}
}

func TestDebateConfigDefaults(t *testing.T) {
	cmd := newRunCmd()
	if err := cmd.ParseFlags(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	debate := debateConfig(cmd, testConfig(), personas.DefaultCatalog())
	if debate.Room != roomcontrol.DefaultRoom || debate.Topic != "AI Debate" {
		t.Fatalf("unexpected room or topic %+v", debate)
	}
	if debate.TurnDurationSeconds != 180 || debate.TotalRounds != 4 {
		t.Fatalf("expected configured pacing, got %+v", debate)
	}
	if !slices.Equal(debate.PersonaIDs, roomcontrol.DefaultPersonas) {
		t.Fatalf("expected default personas, got %v", debate.PersonaIDs)
	}
}

func TestDebateConfigFlags(t *testing.T) {
	cmd := newRunCmd()
	args := []string{
		"--room", "physics",
		"--topic", "Is time real?",
		"--persona", "einstein",
		"--persona", "Ada Lovelace",
		"--turn-duration", "20",
		"--rounds", "0",
	}
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	debate := debateConfig(cmd, testConfig(), personas.DefaultCatalog())
	if debate.Room != "physics" || debate.Topic != "Is time real?" {
		t.Fatalf("unexpected room or topic %+v", debate)
	}
	if !slices.Equal(debate.PersonaIDs, []string{"AI Einstein", "Ada Lovelace"}) {
		t.Fatalf("expected mapped personas, got %v", debate.PersonaIDs)
	}
	if debate.TurnDurationSeconds != 20 || debate.TotalRounds != 0 {
		t.Fatalf("expected explicit pacing, got %+v", debate)
	}
	if err := debate.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"serve", "run"} {
		if cmd, _, err := rootCmd.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Fatalf("expected %s command, got %v (%v)", name, cmd, err)
		}
	}
}
