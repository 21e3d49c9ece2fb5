// Package orchestration schedules a voice debate between AI personas: it
// seats one conversation session per persona, lets everyone introduce
// themselves, runs a fixed round-robin schedule and finally releases every
// session.
package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Invisible042/multi-ai-user-debates/core/conversations"
	"github.com/Invisible042/multi-ai-user-debates/core/events"
	"github.com/Invisible042/multi-ai-user-debates/core/personas"
	"github.com/Invisible042/multi-ai-user-debates/core/rooms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

type Orchestrator struct {
	config DebateConfig
	room   rooms.Room

	catalog          *personas.Catalog
	startSession     SessionStarter
	sleep            SleepFunc
	emitter          eventEmitter
	maxReplyFailures int

	started atomic.Bool
	phase   atomic.Int32
	round   atomic.Int64
	turn    atomic.Int64
}

// Report summarises a finished debate.
type Report struct {
	// Sessions lists the seated personas in speaking order.
	Sessions []string
	// Failed lists personas whose session could not start.
	Failed []string
	// Turns counts dispatched turns, failed ones included and skipped ones
	// excluded.
	Turns int
	// Rounds counts completed rounds.
	Rounds    int
	Cancelled bool
}

type seat struct {
	resolution personas.Resolution
	session    Session

	consecutiveFailures int
	benched             bool
}

func (s *seat) name() string { return s.resolution.DisplayName }

func NewOrchestrator(config DebateConfig, room rooms.Room, opts ...OrchestratorOption) (*Orchestrator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if room == nil {
		return nil, fmt.Errorf("%w: room transport is required", ErrInvalidConfig)
	}

	o := &Orchestrator{
		config:       config.normalized(),
		room:         room,
		catalog:      personas.DefaultCatalog(),
		startSession: ConversationStarter(),
		sleep:        sleep,
	}
	for _, opt := range opts {
		opt(o)
	}

	if len(config.PersonaIDs) > MaxPersonas {
		logger.Warn("too many personas requested, extra personas are ignored",
			"room", config.Room, "requested", len(config.PersonaIDs), "max", MaxPersonas)
	}
	return o, nil
}

func (o *Orchestrator) Config() DebateConfig {
	config := o.config
	config.PersonaIDs = append([]string(nil), config.PersonaIDs...)
	return config
}

func (o *Orchestrator) Phase() Phase {
	return Phase(o.phase.Load())
}

// Position reports the current round and turn index of the schedule, both
// 0-based.
func (o *Orchestrator) Position() (round, turn int) {
	return int(o.round.Load()), int(o.turn.Load())
}

func (o *Orchestrator) setPhase(ctx context.Context, phase Phase) {
	o.phase.Store(int32(phase))
	trace.SpanFromContext(ctx).AddEvent("phase changed", trace.WithAttributes(attribute.String("phase", phase.String())))
	logger.InfoContext(ctx, "debate phase changed", "room", o.config.Room, "phase", phase.String())
	o.emitter.emit(ctx, events.NewPhaseChanged(phase.String()))
}

// Run drives the debate to the end. Sessions are closed before Run returns,
// also when ctx is cancelled. Run can only be called once.
//
// Introductions are dispatched concurrently and are not ordered relative to
// each other. Only the dispatch is awaited, introductions may still overlap
// in the room.
func (o *Orchestrator) Run(ctx context.Context) (report Report, err error) {
	if !o.started.CompareAndSwap(false, true) {
		return Report{}, ErrAlreadyRunning
	}

	ctx, span := tracer.Start(ctx, "run debate", trace.WithAttributes(
		attribute.String("debate.room", o.config.Room),
		attribute.String("debate.topic", o.config.Topic),
		attribute.StringSlice("debate.personas", o.config.PersonaIDs),
		attribute.Int("debate.total_rounds", o.config.TotalRounds),
		attribute.Int("debate.turn_duration_seconds", o.config.TurnDurationSeconds),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.Int("debate.turns", report.Turns), attribute.Bool("debate.cancelled", report.Cancelled))
		span.End()
		o.setPhase(context.WithoutCancel(ctx), PhaseTerminated)
	}()

	o.setPhase(ctx, PhaseBuildingSessions)
	seats, failures := o.buildSessions(ctx)
	for _, seat := range seats {
		report.Sessions = append(report.Sessions, seat.name())
	}
	for _, failure := range failures {
		report.Failed = append(report.Failed, failure.Persona)
	}

	// sessions cut short by cancellation are not an abort
	if ctxErr := ctx.Err(); ctxErr != nil {
		report.Cancelled = true
		o.shutdown(ctx, seats)
		o.emitter.emit(context.WithoutCancel(ctx), events.NewDebateComplete(0, true))
		return report, fmt.Errorf("%w: %w", ErrDebateCancelled, ctxErr)
	}

	if len(seats) == 0 {
		err = &DebateAbortedError{Failures: failures}
		logger.ErrorContext(ctx, "debate aborted", "room", o.config.Room, "error", err)
		return report, err
	}

	if connectErr := o.room.Connect(ctx); connectErr != nil {
		o.shutdown(ctx, seats)
		return report, fmt.Errorf("failed to connect to room %s: %w", o.config.Room, connectErr)
	}

	o.setPhase(ctx, PhaseIntroducing)
	o.introduce(ctx, seats)
	o.emitter.emit(ctx, events.NewIntroductionsComplete(len(seats)))

	o.setPhase(ctx, PhaseDebating)
	report.Turns, report.Rounds, err = o.debate(ctx, seats)
	report.Cancelled = errors.Is(err, ErrDebateCancelled)

	o.shutdown(ctx, seats)
	o.emitter.emit(context.WithoutCancel(ctx), events.NewDebateComplete(report.Turns, report.Cancelled))
	logger.InfoContext(ctx, "debate finished",
		"room", o.config.Room, "turns", report.Turns, "rounds", report.Rounds, "cancelled", report.Cancelled)

	return report, err
}

// buildSessions starts all sessions concurrently. The returned seats keep
// the requested persona order.
func (o *Orchestrator) buildSessions(ctx context.Context) ([]*seat, []*SessionStartError) {
	ctx, span := tracer.Start(ctx, "build sessions")
	defer span.End()

	type result struct {
		resolution personas.Resolution
		session    Session
		err        error
	}
	results := make([]result, len(o.config.PersonaIDs))

	var wg sync.WaitGroup
	for i, id := range o.config.PersonaIDs {
		resolution := o.catalog.Resolve(id)
		results[i].resolution = resolution

		wg.Add(1)
		go func() {
			defer wg.Done()
			instructions := personas.Instructions(resolution.Definition, o.config.Topic)
			results[i].session, results[i].err = o.startSession(ctx, o.room, resolution.Definition, instructions)
			if results[i].err == nil && results[i].session == nil {
				results[i].err = errors.New("session starter returned no session")
			}
		}()
	}
	wg.Wait()

	var (
		seats    []*seat
		failures []*SessionStartError
	)
	for _, result := range results {
		name := result.resolution.DisplayName
		if result.err != nil {
			failure := &SessionStartError{Persona: name, Err: result.err}
			failures = append(failures, failure)
			sessionStartFailureCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("persona.name", name)))
			span.RecordError(failure)
			logger.WarnContext(ctx, "persona dropped from debate", "room", o.config.Room, "persona", name, "error", result.err)
			o.emitter.emit(ctx, events.NewSessionFailed(name, result.err))
			continue
		}

		seats = append(seats, &seat{resolution: result.resolution, session: result.session})
		logger.InfoContext(ctx, "session created",
			"room", o.config.Room, "persona", name, "synthesized", result.resolution.IsSynthesized())
		o.emitter.emit(ctx, events.NewSessionCreated(name, result.resolution.IsSynthesized()))
	}

	span.SetAttributes(attribute.Int("sessions.started", len(seats)), attribute.Int("sessions.failed", len(failures)))
	return seats, failures
}

// introduce asks every seat to introduce itself at the same time and waits
// until all introductions have been dispatched.
func (o *Orchestrator) introduce(ctx context.Context, seats []*seat) {
	ctx, span := tracer.Start(ctx, "introduce personas")
	defer span.End()

	introErrs := make([]error, len(seats))
	var g errgroup.Group
	for i, seat := range seats {
		g.Go(func() error {
			instructions := personas.IntroductionInstructions(seat.name(), o.config.Topic)
			if err := seat.session.GenerateReply(ctx, conversations.WithInstructions(instructions)); err != nil {
				introErrs[i] = &ReplyDispatchError{Persona: seat.name(), Introduction: true, Err: err}
				return introErrs[i]
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
	}

	for i, err := range introErrs {
		if err == nil {
			continue
		}
		replyFailureCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("persona.name", seats[i].name())))
		logger.WarnContext(ctx, "introduction failed", "room", o.config.Room, "persona", seats[i].name(), "error", err)
	}
}

// debate runs the round-robin schedule. Only one reply and its pacing delay
// are ever in flight.
func (o *Orchestrator) debate(ctx context.Context, seats []*seat) (turns, rounds int, err error) {
	ctx, span := tracer.Start(ctx, "debate rounds")
	defer span.End()

	turnIndex, roundCounter := 0, 0
	cancelled := func() error {
		logger.WarnContext(ctx, "debate cancelled", "room", o.config.Room, "round", roundCounter, "turns", turns)
		return fmt.Errorf("%w: %w", ErrDebateCancelled, context.Cause(ctx))
	}
	for roundCounter < o.config.TotalRounds {
		if ctx.Err() != nil {
			return turns, roundCounter, cancelled()
		}
		o.round.Store(int64(roundCounter))
		o.turn.Store(int64(turnIndex))

		speaker := seats[turnIndex]
		if speaker.benched {
			o.emitter.emit(ctx, events.NewTurnSkipped(roundCounter, turnIndex, speaker.name()))
		} else {
			turns++
			o.emitter.emit(ctx, events.NewTurnStarted(roundCounter, turnIndex, speaker.name()))
			logger.InfoContext(ctx, "turn started",
				"room", o.config.Room, "round", roundCounter, "index", turnIndex, "persona", speaker.name())
			turnCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("persona.name", speaker.name())))

			if replyErr := speaker.session.GenerateReply(ctx); replyErr != nil {
				if ctx.Err() != nil {
					return turns, roundCounter, cancelled()
				}
				o.recordReplyFailure(ctx, speaker, roundCounter, turnIndex, replyErr)
			} else {
				speaker.consecutiveFailures = 0
			}

			if sleepErr := o.sleep(ctx, o.config.TurnDuration()); sleepErr != nil {
				return turns, roundCounter, cancelled()
			}
		}

		turnIndex = (turnIndex + 1) % len(seats)
		if turnIndex == 0 {
			roundCounter++
		}
	}
	o.round.Store(int64(roundCounter))
	o.turn.Store(int64(turnIndex))

	return turns, roundCounter, nil
}

func (o *Orchestrator) recordReplyFailure(ctx context.Context, speaker *seat, round, index int, err error) {
	replyErr := &ReplyDispatchError{Persona: speaker.name(), Round: round, Index: index, Err: err}
	trace.SpanFromContext(ctx).RecordError(replyErr)
	replyFailureCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("persona.name", speaker.name())))
	logger.WarnContext(ctx, "reply failed, continuing schedule", "room", o.config.Room, "error", replyErr)
	o.emitter.emit(ctx, events.NewTurnFailed(round, index, speaker.name(), err))

	speaker.consecutiveFailures++
	if o.maxReplyFailures > 0 && speaker.consecutiveFailures >= o.maxReplyFailures {
		speaker.benched = true
		logger.WarnContext(ctx, "persona benched after repeated failures",
			"room", o.config.Room, "persona", speaker.name(), "failures", speaker.consecutiveFailures)
	}
}

// shutdown closes every seat in speaking order. Failures are logged and
// never stop the remaining closes.
func (o *Orchestrator) shutdown(ctx context.Context, seats []*seat) {
	ctx = context.WithoutCancel(ctx)
	o.setPhase(ctx, PhaseShuttingDown)

	ctx, span := tracer.Start(ctx, "shutdown sessions")
	defer span.End()

	for _, seat := range seats {
		err := seat.session.Close()
		if err != nil {
			closeErr := &SessionCloseError{Persona: seat.name(), Err: err}
			span.RecordError(closeErr)
			logger.WarnContext(ctx, "session close failed", "room", o.config.Room, "error", closeErr)
		}
		o.emitter.emit(ctx, events.NewSessionClosed(seat.name(), err))
	}
}
