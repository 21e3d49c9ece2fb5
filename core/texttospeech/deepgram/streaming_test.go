package deepgram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Invisible042/multi-ai-user-debates/core/texttospeech"
	"github.com/gorilla/websocket"
)

// fakeSpeakServer answers every Flush with one audio frame followed by a
// Flushed message and records the control messages it saw.
type fakeSpeakServer struct {
	*httptest.Server

	mu       sync.Mutex
	query    map[string]string
	messages []string
}

func newFakeSpeakServer(t *testing.T) *fakeSpeakServer {
	t.Helper()

	fake := &fakeSpeakServer{}
	upgrader := websocket.Upgrader{}
	fake.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fake.mu.Lock()
		fake.query = map[string]string{
			"model":       r.URL.Query().Get("model"),
			"encoding":    r.URL.Query().Get("encoding"),
			"sample_rate": r.URL.Query().Get("sample_rate"),
			"container":   r.URL.Query().Get("container"),
		}
		fake.mu.Unlock()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var parsed struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(msg, &parsed); err != nil {
				continue
			}

			fake.mu.Lock()
			fake.messages = append(fake.messages, parsed.Type)
			fake.mu.Unlock()

			switch parsed.Type {
			case "Flush":
				conn.WriteMessage(websocket.BinaryMessage, []byte{0xFF, 0xFE})
				conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Flushed","sequence_id":0}`))
			case "Close":
				return
			}
		}
	}))
	t.Cleanup(fake.Close)
	return fake
}

func (f *fakeSpeakServer) url() string {
	return "ws" + strings.TrimPrefix(f.URL, "http")
}

func (f *fakeSpeakServer) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages...)
}

func TestNewTextToSpeechClientValidatesVoice(t *testing.T) {
	if _, err := NewTextToSpeechClient(""); err == nil {
		t.Fatalf("expected error without api key")
	}
	if _, err := NewTextToSpeechClient("key", WithDefaultVoice("sonic-2")); err == nil {
		t.Fatalf("expected error for non deepgram voice")
	}
	if _, err := NewTextToSpeechClient("key", WithDefaultVoice("aura-2-zeus-en")); err != nil {
		t.Fatalf("expected aura voice to be valid, got %v", err)
	}
}

func TestSpeechGeneratorMarksAndEnds(t *testing.T) {
	server := newFakeSpeakServer(t)
	client, err := NewTextToSpeechClient("key", WithURL(server.url()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var mu sync.Mutex
	var marks []string
	audioBytes := 0
	ended := make(chan texttospeech.SpeechEndedReport, 1)

	generator, err := client.NewSpeechGeneratorV0(context.Background(),
		texttospeech.WithVoice("aura-2-zeus-en"),
		texttospeech.WithSpeechAudioCallback(func(audio []byte) {
			mu.Lock()
			audioBytes += len(audio)
			mu.Unlock()
		}),
		texttospeech.WithSpeechMarkCallback(func(text string) {
			mu.Lock()
			marks = append(marks, text)
			mu.Unlock()
		}),
		texttospeech.WithSpeechEndedCallbackV0(func(report texttospeech.SpeechEndedReport) { ended <- report }),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := generator.SendText("Know "); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := generator.SendText("thyself."); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := generator.Mark(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := generator.SendText(" The unexamined life."); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := generator.EndOfText(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case report := <-ended:
		if report.Segments != 2 || report.Cancelled {
			t.Fatalf("unexpected report: %+v", report)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for speech end")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(marks) != 2 || marks[0] != "Know thyself." || marks[1] != " The unexamined life." {
		t.Fatalf("unexpected marks: %q", marks)
	}
	if audioBytes != 4 {
		t.Fatalf("expected 4 audio bytes, got %d", audioBytes)
	}

	server.mu.Lock()
	query := server.query
	server.mu.Unlock()
	if query["model"] != "aura-2-zeus-en" || query["encoding"] != "mulaw" || query["sample_rate"] != "8000" || query["container"] != "none" {
		t.Fatalf("unexpected query: %v", query)
	}

	if err := generator.SendText("more"); err == nil {
		t.Fatalf("expected SendText after end to fail")
	}
}

func TestSpeechGeneratorEndOfTextWithoutTextEndsImmediately(t *testing.T) {
	server := newFakeSpeakServer(t)
	client, err := NewTextToSpeechClient("key", WithURL(server.url()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ended := make(chan texttospeech.SpeechEndedReport, 1)
	generator, err := client.NewSpeechGeneratorV0(context.Background(),
		texttospeech.WithSpeechEndedCallbackV0(func(report texttospeech.SpeechEndedReport) { ended <- report }),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := generator.EndOfText(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	select {
	case report := <-ended:
		if report.Segments != 0 {
			t.Fatalf("expected no segments, got %d", report.Segments)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected immediate end")
	}
}

func TestSpeechGeneratorCancelClears(t *testing.T) {
	server := newFakeSpeakServer(t)
	client, err := NewTextToSpeechClient("key", WithURL(server.url()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ended := make(chan texttospeech.SpeechEndedReport, 1)
	generator, err := client.NewSpeechGeneratorV0(context.Background(),
		texttospeech.WithSpeechEndedCallbackV0(func(report texttospeech.SpeechEndedReport) { ended <- report }),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := generator.SendText("I have nothing to offer but blood"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := generator.Cancel(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case report := <-ended:
		if !report.Cancelled {
			t.Fatalf("expected cancelled report")
		}
	case <-time.After(time.Second):
		t.Fatalf("expected end report after cancel")
	}

	if err := generator.Close(); err != nil {
		t.Fatalf("expected repeated close to be ignored, got %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		seen := strings.Join(server.seen(), ",")
		if strings.Contains(seen, "Clear") {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected Clear to reach the server, saw %v", server.seen())
}
