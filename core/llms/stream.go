package llms

import "context"

// Stream is a lazily started streaming completion. Ranging over Chunks sends
// the request; breaking out of the loop cancels it.
type Stream interface {
	Chunks(context.Context) func(func(StreamChunk, error) bool)
}

type StreamChunk struct {
	Content string
	// FinishReason is set on the last chunk only.
	FinishReason string
}
