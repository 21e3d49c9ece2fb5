package orchestration

import (
	"context"
	"time"

	"github.com/Invisible042/multi-ai-user-debates/core/conversations"
	"github.com/Invisible042/multi-ai-user-debates/core/personas"
	"github.com/Invisible042/multi-ai-user-debates/core/rooms"
)

// Session is the part of a conversation session the orchestrator drives.
type Session interface {
	GenerateReply(ctx context.Context, opts ...conversations.ReplyOption) error
	Close() error
}

// SessionStarter brings one persona into the room.
type SessionStarter func(ctx context.Context, room rooms.Room, persona personas.Definition, instructions string) (Session, error)

// ConversationStarter starts real conversation sessions with the given
// pipeline options.
func ConversationStarter(opts ...conversations.SessionOption) SessionStarter {
	return func(ctx context.Context, room rooms.Room, persona personas.Definition, instructions string) (Session, error) {
		session, err := conversations.Start(ctx, room, persona, instructions, opts...)
		if err != nil {
			return nil, err
		}
		return session, nil
	}
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type OrchestratorOption func(*Orchestrator)

func WithCatalog(catalog *personas.Catalog) OrchestratorOption {
	return func(o *Orchestrator) {
		if catalog != nil {
			o.catalog = catalog
		}
	}
}

func WithSessionStarter(starter SessionStarter) OrchestratorOption {
	return func(o *Orchestrator) {
		if starter != nil {
			o.startSession = starter
		}
	}
}

// WithSleep replaces the pacing clock.
func WithSleep(sleep SleepFunc) OrchestratorOption {
	return func(o *Orchestrator) {
		if sleep != nil {
			o.sleep = sleep
		}
	}
}

// WithEventHandler adds a lifecycle event handler. Handlers are called in the
// order they were added.
func WithEventHandler(handler EventHandler) OrchestratorOption {
	return func(o *Orchestrator) {
		if handler != nil {
			o.emitter = append(o.emitter, handler)
		}
	}
}

// WithMaxConsecutiveReplyFailures benches a persona for the rest of the
// debate after n failed replies in a row. Its slots are skipped without the
// pacing delay. With n <= 0, the default, failures are only logged.
func WithMaxConsecutiveReplyFailures(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		o.maxReplyFailures = n
	}
}
