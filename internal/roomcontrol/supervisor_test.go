package roomcontrol

import (
	"context"
	"errors"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	orchestration "github.com/Invisible042/multi-ai-user-debates/core"
)

func TestSupervisorRefusesSecondDebateForRoom(t *testing.T) {
	runner := newBlockingRunner()
	s := NewSupervisor(runner.run)
	defer s.cancel()

	if err := s.Start(orchestration.DebateConfig{Room: "main"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	runner.waitStarted(t)

	if err := s.Start(orchestration.DebateConfig{Room: "main"}); !errors.Is(err, ErrRoomActive) {
		t.Fatalf("expected ErrRoomActive, got %v", err)
	}
	if err := s.Start(orchestration.DebateConfig{Room: "other"}); err != nil {
		t.Fatalf("expected other rooms to start, got %v", err)
	}
	runner.waitStarted(t)

	if active := s.Active(); !slices.Equal(active, []string{"main", "other"}) {
		t.Fatalf("expected two active rooms, got %v", active)
	}
}

func TestSupervisorStop(t *testing.T) {
	runner := newBlockingRunner()
	exits := make(chan error, 1)
	s := NewSupervisor(runner.run, WithExitHandler(func(_ string, err error) { exits <- err }))
	defer s.cancel()

	if err := s.Stop(context.Background(), "main"); !errors.Is(err, ErrUnknownJob) {
		t.Fatalf("expected ErrUnknownJob, got %v", err)
	}

	if err := s.Start(orchestration.DebateConfig{Room: "main"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	runner.waitStarted(t)

	if err := s.Stop(context.Background(), "main"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := <-exits; !errors.Is(err, orchestration.ErrDebateCancelled) {
		t.Fatalf("expected cancelled exit, got %v", err)
	}
	if s.IsActive("main") {
		t.Fatalf("expected room to be inactive after stop")
	}

	// the room can host a new debate once the previous one exited
	if err := s.Start(orchestration.DebateConfig{Room: "main"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSupervisorShutdownDrains(t *testing.T) {
	release := make(chan struct{})
	var finished atomic.Int32
	s := NewSupervisor(func(ctx context.Context, _ orchestration.DebateConfig) error {
		<-release
		finished.Add(1)
		return nil
	})

	for _, room := range []string{"a", "b"} {
		if err := s.Start(orchestration.DebateConfig{Room: room}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		close(release)
	}()
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if finished.Load() != 2 {
		t.Fatalf("expected both debates to finish, got %d", finished.Load())
	}

	if err := s.Start(orchestration.DebateConfig{Room: "late"}); !errors.Is(err, ErrDraining) {
		t.Fatalf("expected ErrDraining, got %v", err)
	}
}

func TestSupervisorShutdownCancelsAfterTimeout(t *testing.T) {
	runner := newBlockingRunner()
	s := NewSupervisor(runner.run)

	if err := s.Start(orchestration.DebateConfig{Room: "main"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	runner.waitStarted(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := s.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected drain timeout, got %v", err)
	}
	if s.IsActive("main") {
		t.Fatalf("expected debate to be cancelled")
	}
}
