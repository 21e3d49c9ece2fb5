package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/Invisible042/multi-ai-user-debates/core/audio"
	"github.com/Invisible042/multi-ai-user-debates/core/texttospeech"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrGeneratorClosed    = errors.New("speech generator closed")
	ErrGeneratorCancelled = errors.New("speech generator cancelled")
	ErrTextCompleted      = errors.New("speech generator text already completed")
)

type speechGenerator struct {
	ws   *websocket.Conn
	wsMu sync.Mutex

	// mu guards everything below
	mu            sync.Mutex
	currentText   string
	awaitingFlush []string
	textComplete  bool
	cancelled     bool
	closed        bool
	ended         bool
	spoken        int

	options texttospeech.TextToSpeechOptions
}

// NewSpeechGeneratorV0 opens a speak stream for one reply. Audio arrives
// through the audio callback as the stream progresses.
func (c *TextToSpeechClient) NewSpeechGeneratorV0(ctx context.Context, opts ...texttospeech.TextToSpeechOption) (texttospeech.SpeechGeneratorV0, error) {
	options := texttospeech.NewTextToSpeechOptions(opts...)
	if options.Voice == "" {
		options.Voice = c.voice
	}

	ctx, span := tracer.Start(ctx, "open speech generator", trace.WithAttributes(attribute.String("tts.voice", options.Voice)))
	defer span.End()

	if err := validateVoice(options.Voice); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	ws, err := c.connectWebsocket(ctx, options.Voice, options.EncodingInfo)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to open websocket: %w", err)
	}

	generator := &speechGenerator{ws: ws, options: options}
	go generator.processIncomingMessages()

	return generator, nil
}

func (c *TextToSpeechClient) connectWebsocket(ctx context.Context, voice string, encodingInfo audio.EncodingInfo) (*websocket.Conn, error) {
	speakURL, err := url.Parse(c.speakURL)
	if err != nil {
		return nil, fmt.Errorf("invalid speak url: %w", err)
	}

	urlValues := speakURL.Query()
	urlValues.Set("encoding", encodingInfo.Format.Name())
	urlValues.Set("sample_rate", strconv.Itoa(encodingInfo.SampleRate))
	urlValues.Set("model", voice)
	urlValues.Set("container", "none")
	speakURL.RawQuery = urlValues.Encode()

	conn, _, err := c.dialer.DialContext(ctx, speakURL.String(),
		http.Header{"Authorization": {"token " + c.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, nil
}

func (g *speechGenerator) processIncomingMessages() {
	for {
		msgType, msg, err := g.ws.ReadMessage()
		if err != nil {
			g.mu.Lock()
			expected := g.closed || g.ended
			g.mu.Unlock()

			if !expected {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					logger.Warn("speak websocket read failed", "error", err)
				}
				g.options.ErrorCallback(fmt.Errorf("speech stream ended unexpectedly: %w", err))
				g.finish(true)
			}
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			if len(msg) > 0 {
				g.options.SpeechAudioCallback(msg)
			}
		case websocket.TextMessage:
			var parsedMsg struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(msg, &parsedMsg); err != nil {
				logger.Debug("failed to unmarshal deepgram message", "error", err)
				continue
			}

			switch parsedMsg.Type {
			case "Flushed":
				g.onFlushed()
			case "Warning":
				logger.Warn("deepgram speak warning", "message", string(msg))
			}
		}
	}
}

func (g *speechGenerator) onFlushed() {
	g.mu.Lock()
	if len(g.awaitingFlush) == 0 {
		g.mu.Unlock()
		return
	}
	segment := g.awaitingFlush[0]
	g.awaitingFlush = g.awaitingFlush[1:]
	g.spoken++
	done := len(g.awaitingFlush) == 0 && g.textComplete
	g.mu.Unlock()

	g.options.SpeechMarkCallback(segment)
	if done {
		g.finish(false)
	}
}

func (g *speechGenerator) checkWritable() error {
	switch {
	case g.closed:
		return ErrGeneratorClosed
	case g.cancelled:
		return ErrGeneratorCancelled
	case g.textComplete:
		return ErrTextCompleted
	}
	return nil
}

func (g *speechGenerator) SendText(text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.checkWritable(); err != nil {
		return err
	}
	if text == "" {
		return nil
	}

	if err := g.send(speakMessage{Type: "Speak", Text: text}); err != nil {
		return fmt.Errorf("failed to send text: %w", err)
	}
	g.currentText += text
	return nil
}

func (g *speechGenerator) Mark() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.checkWritable(); err != nil {
		return err
	}
	return g.flushLocked()
}

func (g *speechGenerator) flushLocked() error {
	if g.currentText == "" {
		return nil
	}
	if err := g.send(controlMessage{Type: "Flush"}); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	g.awaitingFlush = append(g.awaitingFlush, g.currentText)
	g.currentText = ""
	return nil
}

func (g *speechGenerator) EndOfText() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return ErrGeneratorClosed
	} else if g.cancelled {
		g.mu.Unlock()
		return ErrGeneratorCancelled
	} else if g.textComplete {
		g.mu.Unlock()
		return nil
	}

	err := g.flushLocked()
	g.textComplete = true
	done := len(g.awaitingFlush) == 0
	g.mu.Unlock()

	if done {
		g.finish(false)
	}
	return err
}

func (g *speechGenerator) Cancel() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return ErrGeneratorClosed
	}
	g.cancelled = true
	err := g.send(controlMessage{Type: "Clear"})
	g.mu.Unlock()

	g.finish(true)
	if err != nil {
		return fmt.Errorf("failed to clear speech: %w", err)
	}
	return nil
}

// finish reports the end of speech once and closes the stream.
func (g *speechGenerator) finish(cancelled bool) {
	g.mu.Lock()
	if g.ended {
		g.mu.Unlock()
		return
	}
	g.ended = true
	report := texttospeech.SpeechEndedReport{Segments: g.spoken, Cancelled: cancelled || g.cancelled}
	g.mu.Unlock()

	g.options.SpeechEndedCallbackV0(report)
	_ = g.Close()
}

func (g *speechGenerator) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	g.ended = true
	g.mu.Unlock()

	sendErr := g.send(controlMessage{Type: "Close"})
	if closeErr := g.ws.Close(); closeErr != nil && sendErr != nil {
		return fmt.Errorf("failed to close websocket: %w", errors.Join(sendErr, closeErr))
	}
	return nil
}

type controlMessage struct {
	Type string `json:"type"`
}

type speakMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (g *speechGenerator) send(msg any) error {
	g.wsMu.Lock()
	defer g.wsMu.Unlock()

	if err := g.ws.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to write to websocket: %w", err)
	}
	return nil
}
