package llms

// Role describes who authored a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single entry of the conversation history sent to an LLM.
type Message struct {
	Role Role
	// Name optionally identifies the speaker of a user message, e.g. another
	// debate participant.
	Name    string
	Content string
}

// Response is a single, fully generated response from an LLM
type Response struct {
	Content      string
	FinishReason string
	Usage        Usage
}

type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}
