package roomcontrol

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	orchestration "github.com/Invisible042/multi-ai-user-debates/core"
	"github.com/livekit/protocol/livekit"
)

type fakeIssuer struct {
	mu     sync.Mutex
	issued []string
}

func (i *fakeIssuer) Issue(room, identity, _ string) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.issued = append(i.issued, room+"/"+identity)
	return "token-for-" + identity, nil
}

type fakeRoomDeleter struct {
	deleted []string
}

func (d *fakeRoomDeleter) DeleteRoom(_ context.Context, req *livekit.DeleteRoomRequest) (*livekit.DeleteRoomResponse, error) {
	d.deleted = append(d.deleted, req.Room)
	return &livekit.DeleteRoomResponse{}, nil
}

// blockingRunner records started debates and runs until cancelled.
type blockingRunner struct {
	mu      sync.Mutex
	configs []orchestration.DebateConfig
	started chan string
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{started: make(chan string, 10)}
}

func (r *blockingRunner) run(ctx context.Context, config orchestration.DebateConfig) error {
	r.mu.Lock()
	r.configs = append(r.configs, config)
	r.mu.Unlock()
	r.started <- config.Room

	<-ctx.Done()
	return orchestration.ErrDebateCancelled
}

func (r *blockingRunner) waitStarted(t *testing.T) string {
	t.Helper()
	select {
	case room := <-r.started:
		return room
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for debate to start")
		return ""
	}
}

func (r *blockingRunner) startedConfigs() []orchestration.DebateConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.configs)
}

// shutdown cancels debates that block until cancelled.
func shutdown(s *Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_ = s.Supervisor().Shutdown(ctx)
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestJoinStartsOneDebatePerRoom(t *testing.T) {
	runner := newBlockingRunner()
	issuer := &fakeIssuer{}
	s := NewServer("wss://livekit.example", issuer, runner.run)
	defer shutdown(s)

	body := `{"room":"philosophy","user":"alice","topic":"Free will","personas":["socrates","einstein","unknown-id"],"turnDuration":2,"numberOfTurns":5}`
	rec := do(t, s, http.MethodPost, "/join", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp JoinResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.URL != "wss://livekit.example" || resp.Token != "token-for-alice" {
		t.Fatalf("unexpected join response %+v", resp)
	}

	if room := runner.waitStarted(t); room != "philosophy" {
		t.Fatalf("expected debate for philosophy, got %s", room)
	}
	config := runner.startedConfigs()[0]
	if !slices.Equal(config.PersonaIDs, []string{"AI Socrates", "AI Einstein", "unknown-id"}) {
		t.Fatalf("expected mapped personas, got %v", config.PersonaIDs)
	}
	if config.TurnDurationSeconds != 120 || config.TotalRounds != 5 || config.Topic != "Free will" {
		t.Fatalf("unexpected debate config %+v", config)
	}

	// a second participant joins the running debate
	rec = do(t, s, http.MethodPost, "/join", `{"room":"philosophy","topic":"Ignored"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(runner.startedConfigs()) != 1 {
		t.Fatalf("expected a single debate for the room, got %d", len(runner.startedConfigs()))
	}
	if entry, _ := s.Registry().Get("philosophy"); entry.Topic != "Free will" {
		t.Fatalf("expected original entry to be kept, got %+v", entry)
	}

	issuer.mu.Lock()
	second := issuer.issued[1]
	issuer.mu.Unlock()
	if !strings.HasPrefix(second, "philosophy/human-") || len(second) != len("philosophy/human-")+6 {
		t.Fatalf("expected generated human identity, got %s", second)
	}
}

func TestJoinDefaults(t *testing.T) {
	runner := newBlockingRunner()
	s := NewServer("wss://livekit.example", &fakeIssuer{}, runner.run)
	defer shutdown(s)

	rec := do(t, s, http.MethodPost, "/join", `{}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if room := runner.waitStarted(t); room != DefaultRoom {
		t.Fatalf("expected default room, got %s", room)
	}
	config := runner.startedConfigs()[0]
	if config.Topic != "AI Debate" || config.TurnDurationSeconds != 180 || config.TotalRounds != 4 {
		t.Fatalf("unexpected defaults %+v", config)
	}
	if !slices.Equal(config.PersonaIDs, DefaultPersonas) {
		t.Fatalf("expected default personas, got %v", config.PersonaIDs)
	}
}

func TestJoinRejectsInvalidPacing(t *testing.T) {
	runner := newBlockingRunner()
	s := NewServer("wss://livekit.example", &fakeIssuer{}, runner.run)

	for _, body := range []string{`{"turnDuration":0}`, `{"numberOfTurns":-1}`, `{"personas":`} {
		if rec := do(t, s, http.MethodPost, "/join", body); rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %s, got %d", body, rec.Code)
		}
	}
	if names := s.Registry().Names(); len(names) != 0 {
		t.Fatalf("expected nothing registered, got %v", names)
	}
}

func TestListAndDeleteRooms(t *testing.T) {
	runner := newBlockingRunner()
	deleter := &fakeRoomDeleter{}
	s := NewServer("wss://livekit.example", &fakeIssuer{}, runner.run, WithRoomDeleter(deleter))
	defer shutdown(s)

	do(t, s, http.MethodPost, "/join", `{"room":"b"}`)
	do(t, s, http.MethodPost, "/join", `{"room":"a"}`)
	runner.waitStarted(t)
	runner.waitStarted(t)

	rec := do(t, s, http.MethodGet, "/rooms", "")
	var rooms roomsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &rooms); err != nil {
		t.Fatalf("failed to decode rooms: %v", err)
	}
	if !slices.Equal(rooms.Rooms, []string{"a", "b"}) || rooms.RoomDetails["a"].Status != RoomRunning {
		t.Fatalf("unexpected rooms %+v", rooms)
	}

	if rec := do(t, s, http.MethodDelete, "/rooms/a", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if s.Supervisor().IsActive("a") {
		t.Fatalf("expected debate in room a to be stopped")
	}
	if _, ok := s.Registry().Get("a"); ok {
		t.Fatalf("expected room a to be removed")
	}
	if !slices.Equal(deleter.deleted, []string{"a"}) {
		t.Fatalf("expected media room to be deleted, got %v", deleter.deleted)
	}

	if rec := do(t, s, http.MethodDelete, "/rooms/a", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown room, got %d", rec.Code)
	}
}

func TestFinishedDebateUpdatesRegistry(t *testing.T) {
	done := make(chan struct{})
	run := func(context.Context, orchestration.DebateConfig) error {
		defer close(done)
		return nil
	}
	s := NewServer("wss://livekit.example", &fakeIssuer{}, run)

	do(t, s, http.MethodPost, "/join", `{"room":"quick"}`)
	<-done

	deadline := time.Now().Add(2 * time.Second)
	for {
		entry, _ := s.Registry().Get("quick")
		if entry.Status == RoomFinished {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected finished status, got %s", entry.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPersonasAndHealth(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	s := NewServer("wss://livekit.example", &fakeIssuer{}, newBlockingRunner().run, WithClock(func() time.Time { return now }))

	rec := do(t, s, http.MethodGet, "/personas", "")
	var resp struct {
		Personas []struct {
			ID          string `json:"id"`
			DisplayName string `json:"displayName"`
		} `json:"personas"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode personas: %v", err)
	}
	if len(resp.Personas) != 8 || resp.Personas[0].ID != "socrates" {
		t.Fatalf("expected the eight default personas, got %+v", resp.Personas)
	}

	rec = do(t, s, http.MethodGet, "/", "")
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) || !strings.Contains(rec.Body.String(), "2025-01-02T03:04:05Z") {
		t.Fatalf("unexpected health response %s", rec.Body.String())
	}
}

func TestCORSAllowsAnyOrigin(t *testing.T) {
	s := NewServer("wss://livekit.example", &fakeIssuer{}, newBlockingRunner().run)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected wildcard CORS origin, got %q", got)
	}
}
