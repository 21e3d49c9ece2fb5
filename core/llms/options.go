package llms

// PromptOptions contains everything a provider needs to build a request.
type PromptOptions struct {
	Instructions string
	Messages     []Message
	// Temperature is left to the provider default when nil.
	Temperature *float32
	MaxTokens   int
}

type PromptOption func(*PromptOptions)

// NewPromptOptions applies opts in order over the zero value.
func NewPromptOptions(opts ...PromptOption) PromptOptions {
	options := PromptOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// WithInstructions sets the system instructions. Later calls override
// earlier ones.
func WithInstructions(instructions string) PromptOption {
	return func(o *PromptOptions) {
		o.Instructions = instructions
	}
}

// WithMessages appends messages to the conversation history.
func WithMessages(messages ...Message) PromptOption {
	return func(o *PromptOptions) {
		o.Messages = append(o.Messages, messages...)
	}
}

func WithTemperature(temperature float32) PromptOption {
	return func(o *PromptOptions) {
		o.Temperature = &temperature
	}
}

func WithMaxTokens(maxTokens int) PromptOption {
	return func(o *PromptOptions) {
		o.MaxTokens = maxTokens
	}
}
