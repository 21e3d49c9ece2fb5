package roomcontrol

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	orchestration "github.com/Invisible042/multi-ai-user-debates/core"
	"github.com/google/uuid"
)

var (
	ErrRoomActive = errors.New("room already has an active debate")
	ErrDraining   = errors.New("supervisor is draining")
	ErrUnknownJob = errors.New("no active debate for room")
)

// RunFunc runs one debate to the end. It must return once ctx is cancelled.
type RunFunc func(ctx context.Context, config orchestration.DebateConfig) error

// ExitFunc is called after a room's debate returned.
type ExitFunc func(room string, err error)

// Supervisor runs at most one debate per room and keeps a handle to each so
// debates can be stopped individually or drained together.
type Supervisor struct {
	run    RunFunc
	onExit ExitFunc

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	jobs     map[string]*job
	draining bool
}

type job struct {
	ID        string
	Room      string
	StartedAt time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

type SupervisorOption func(*Supervisor)

func WithExitHandler(onExit ExitFunc) SupervisorOption {
	return func(s *Supervisor) { s.onExit = onExit }
}

func NewSupervisor(run RunFunc, opts ...SupervisorOption) *Supervisor {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Supervisor{
		run:    run,
		ctx:    ctx,
		cancel: cancel,
		jobs:   map[string]*job{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the debate for config.Room in the background.
func (s *Supervisor) Start(config orchestration.DebateConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.draining {
		return ErrDraining
	}
	if _, ok := s.jobs[config.Room]; ok {
		return fmt.Errorf("%w: %s", ErrRoomActive, config.Room)
	}

	ctx, cancel := context.WithCancel(s.ctx)
	j := &job{
		ID:        uuid.NewString(),
		Room:      config.Room,
		StartedAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	s.jobs[config.Room] = j

	go func() {
		defer close(j.done)
		defer cancel()

		logger.InfoContext(ctx, "debate worker started", "room", j.Room, "job", j.ID)
		err := s.run(ctx, config)
		if err != nil {
			logger.ErrorContext(ctx, "debate worker exited with error", "room", j.Room, "job", j.ID, "error", err)
		} else {
			logger.InfoContext(ctx, "debate worker completed", "room", j.Room, "job", j.ID,
				"duration", time.Since(j.StartedAt).String())
		}

		s.mu.Lock()
		delete(s.jobs, j.Room)
		s.mu.Unlock()

		if s.onExit != nil {
			s.onExit(j.Room, err)
		}
	}()

	return nil
}

// Stop cancels the room's debate and waits for it to exit or for ctx.
func (s *Supervisor) Stop(ctx context.Context, room string) error {
	s.mu.Lock()
	j, ok := s.jobs[room]
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, room)
	}

	j.cancel()
	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Active lists rooms with a running debate in lexical order.
func (s *Supervisor) Active() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	rooms := make([]string, 0, len(s.jobs))
	for room := range s.jobs {
		rooms = append(rooms, room)
	}
	slices.Sort(rooms)
	return rooms
}

func (s *Supervisor) IsActive(room string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.jobs[room]
	return ok
}

// Shutdown stops accepting debates and waits for the running ones to finish.
// When ctx ends first the remaining debates are cancelled, which still lets
// them close their sessions, and ctx's error is returned.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.draining = true
	jobs := make([]*job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	s.mu.Unlock()

	logger.InfoContext(ctx, "draining debate workers", "active", len(jobs))

	allDone := make(chan struct{})
	go func() {
		for _, j := range jobs {
			<-j.done
		}
		close(allDone)
	}()

	select {
	case <-allDone:
		s.cancel()
		logger.InfoContext(ctx, "all debate workers completed")
		return nil
	case <-ctx.Done():
	}

	logger.WarnContext(ctx, "drain timeout exceeded, cancelling debates")
	s.cancel()

	select {
	case <-allDone:
		logger.InfoContext(ctx, "all debates cancelled and exited")
	case <-time.After(cancelGracePeriod):
		logger.WarnContext(ctx, "timeout waiting for debates to exit after cancellation")
	}
	return ctx.Err()
}

const cancelGracePeriod = 10 * time.Second
