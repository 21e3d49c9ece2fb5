package orchestration

import (
	"context"

	"github.com/Invisible042/multi-ai-user-debates/core/events"
)

// EventHandler receives lifecycle events on the orchestrator's goroutine.
// Handlers must not block for long, the schedule waits for them.
type EventHandler func(ctx context.Context, event events.Event)

type eventEmitter []EventHandler

func (e eventEmitter) emit(ctx context.Context, event events.Event) {
	logger.DebugContext(ctx, "debate event", "kind", string(event.Kind()))
	for _, handler := range e {
		handler(ctx, event)
	}
}
