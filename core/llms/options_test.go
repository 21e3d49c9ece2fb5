package llms

import "testing"

func TestNewPromptOptions(t *testing.T) {
	options := NewPromptOptions(
		WithInstructions("first"),
		WithMessages(Message{Role: RoleUser, Content: "hello"}),
		WithInstructions("second"),
		WithMessages(Message{Role: RoleAssistant, Content: "hi"}),
		WithTemperature(0.7),
		WithMaxTokens(256),
	)

	if options.Instructions != "second" {
		t.Fatalf("expected later instructions to win, got %q", options.Instructions)
	}
	if len(options.Messages) != 2 || options.Messages[1].Role != RoleAssistant {
		t.Fatalf("expected messages to accumulate, got %+v", options.Messages)
	}
	if options.Temperature == nil || *options.Temperature != 0.7 {
		t.Fatalf("expected temperature 0.7, got %v", options.Temperature)
	}
	if options.MaxTokens != 256 {
		t.Fatalf("expected max tokens 256, got %d", options.MaxTokens)
	}
}

func TestNewPromptOptionsDefaults(t *testing.T) {
	options := NewPromptOptions()
	if options.Temperature != nil {
		t.Fatalf("expected nil temperature by default")
	}
	if options.Instructions != "" || len(options.Messages) != 0 {
		t.Fatalf("expected empty options, got %+v", options)
	}
}
