package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Invisible042/multi-ai-user-debates/core/audio"
	"github.com/Invisible042/multi-ai-user-debates/core/speechtotext"
	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultModel       = "nova-3"
	DefaultLanguage    = "multi"
	DefaultEndpointing = 300

	defaultListenURL = "wss://api.deepgram.com/v1/listen"
	utteranceEndMs   = 1000

	closeStreamMessage = "CloseStream"
	keepAliveMessage   = "KeepAlive"
)

var ErrNotConnected = errors.New("transcription stream is not connected")

// TranscriptionClient streams audio to Deepgram's live transcription API.
// A client serves a single stream: Transcribe opens it and Close ends it.
type TranscriptionClient struct {
	apiKey      string
	listenURL   string
	model       string
	language    string
	endpointing int
	dialer      *websocket.Dialer

	connMu    sync.Mutex
	conn      *websocket.Conn
	lastMsgTs atomic.Int64

	// accessed only by the read loop
	accumulatedTranscript string
	unendedSegment        bool

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

type ClientOption func(*TranscriptionClient)

func WithModel(model string) ClientOption {
	return func(c *TranscriptionClient) { c.model = model }
}

func WithLanguage(language string) ClientOption {
	return func(c *TranscriptionClient) { c.language = language }
}

// WithEndpointing sets how many milliseconds of silence finalize a segment.
func WithEndpointing(ms int) ClientOption {
	return func(c *TranscriptionClient) { c.endpointing = ms }
}

// WithURL overrides the listen endpoint.
func WithURL(listenURL string) ClientOption {
	return func(c *TranscriptionClient) { c.listenURL = listenURL }
}

func NewTranscriptionClient(apiKey string, opts ...ClientOption) (*TranscriptionClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("deepgram api key is required")
	}

	client := &TranscriptionClient{
		apiKey:      apiKey,
		listenURL:   defaultListenURL,
		model:       DefaultModel,
		language:    DefaultLanguage,
		endpointing: DefaultEndpointing,
		dialer:      websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

func (s *TranscriptionClient) Transcribe(ctx context.Context, opts ...speechtotext.TranscriptionOption) error {
	ctx, span := tracer.Start(ctx, "open transcription stream", trace.WithAttributes(
		attribute.String("stt.model", s.model),
		attribute.String("stt.language", s.language),
	))
	defer span.End()

	options := speechtotext.NewTranscriptionOptions(opts...)

	encoding, err := convertEncoding(options.EncodingInfo)
	if err != nil {
		err = fmt.Errorf("invalid encoding: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	conn, err := s.connectWebsocket(ctx, connectionOptions{
		sampleRate: encoding.SampleRate,
		encoding:   encoding.Format,

		detectSpeechStart: options.SpeechStartedCallback != nil || options.VoiceActivityDetection,
		enhanceSpeechEndingDetection: options.TranscriptionCallback != nil ||
			options.SpeechEndedCallback != nil,
		interimResults: options.InterimTranscriptionCallback != nil,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	s.connMu.Lock()
	if s.conn != nil {
		s.connMu.Unlock()
		conn.Close()
		return fmt.Errorf("transcription stream already open")
	}
	s.conn = conn
	s.connMu.Unlock()
	s.lastMsgTs.Store(time.Now().UnixNano())

	// The stream outlives the call that opened it.
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.readAndProcessMessages(streamCtx, conn, options)

	return nil
}

type connectionOptions struct {
	sampleRate int
	encoding   string

	detectSpeechStart            bool
	enhanceSpeechEndingDetection bool
	interimResults               bool
}

func (s *TranscriptionClient) connectWebsocket(ctx context.Context, options connectionOptions) (*websocket.Conn, error) {
	listenURL, err := url.Parse(s.listenURL)
	if err != nil {
		return nil, fmt.Errorf("invalid listen url: %w", err)
	}

	queryParams := listenURL.Query()
	queryParams.Set("encoding", options.encoding)
	queryParams.Set("sample_rate", strconv.Itoa(options.sampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", s.model)
	queryParams.Set("language", s.language)
	queryParams.Set("smart_format", "true")
	if options.enhanceSpeechEndingDetection {
		queryParams.Set("utterance_end_ms", strconv.Itoa(utteranceEndMs))
		queryParams.Set("interim_results", "true")
	} else if options.interimResults {
		queryParams.Set("interim_results", "true")
	}
	queryParams.Set("endpointing", strconv.Itoa(s.endpointing))
	if options.detectSpeechStart || options.enhanceSpeechEndingDetection {
		queryParams.Set("vad_events", "true")
	}
	listenURL.RawQuery = queryParams.Encode()

	conn, _, err := s.dialer.DialContext(ctx, listenURL.String(),
		http.Header{"Authorization": {"Token " + s.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, nil
}

func (s *TranscriptionClient) SendAudio(audio []byte) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return ErrNotConnected
	}

	s.lastMsgTs.Store(time.Now().UnixNano())
	if err := s.conn.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	return nil
}

func (s *TranscriptionClient) sendSilence(audio []byte) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return ErrNotConnected
	}
	if err := s.conn.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	return nil
}

func (s *TranscriptionClient) sendControl(messageType string) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return ErrNotConnected
	}
	if err := s.conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: messageType}); err != nil {
		return fmt.Errorf("failed to send %s to deepgram: %w", messageType, err)
	}
	return nil
}

// Close asks Deepgram to flush the stream and waits briefly for the final
// results before dropping the connection. Only the first call has an effect.
func (s *TranscriptionClient) Close() error {
	s.closeOnce.Do(func() {
		if s.done == nil {
			return
		}

		if err := s.sendControl(closeStreamMessage); err != nil && !errors.Is(err, ErrNotConnected) {
			s.closeErr = err
		}

		select {
		case <-s.done:
		case <-time.After(2 * time.Second):
		}

		s.cancel()
		s.connMu.Lock()
		if s.conn != nil {
			s.conn.Close()
			s.conn = nil
		}
		s.connMu.Unlock()
		<-s.done
	})
	return s.closeErr
}

func (s *TranscriptionClient) readAndProcessMessages(ctx context.Context, conn *websocket.Conn, options speechtotext.TranscriptionOptions) {
	defer close(s.done)

	silenceCtx, silenceCancel := context.WithCancel(ctx)
	defer silenceCancel()
	go s.generateSilence(silenceCtx, options.EncodingInfo)

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				logger.Warn("failed to read deepgram websocket message", "error", err)
			}

			s.connMu.Lock()
			if s.conn == conn {
				s.conn = nil
			}
			s.connMu.Unlock()
			conn.Close()
			return
		}
		if msgType != websocket.BinaryMessage {
			s.processMessage(msg, options)
		}
	}
}

func (s *TranscriptionClient) processMessage(msg []byte, options speechtotext.TranscriptionOptions) {
	var parsedMsg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		logger.Warn("failed to unmarshal deepgram message", "error", err)
		return
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			logger.Warn("failed to unmarshal deepgram results", "error", err)
			return
		}

		transcript := ""
		if len(msgResp.Channel.Alternatives) > 0 {
			transcript = strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript)
		}

		if !msgResp.IsFinal {
			if transcript != "" && options.InterimTranscriptionCallback != nil {
				options.InterimTranscriptionCallback(strings.TrimSpace(s.accumulatedTranscript + " " + transcript))
			}
			return
		}

		if transcript != "" {
			s.accumulatedTranscript += " " + transcript
			if options.PartialTranscriptionCallback != nil {
				options.PartialTranscriptionCallback(transcript)
			}
		}
		if msgResp.SpeechFinal {
			s.onSpeechEnded(options)
		}

	case api.TypeUtteranceEndResponse:
		if s.unendedSegment || strings.TrimSpace(s.accumulatedTranscript) != "" {
			s.onSpeechEnded(options)
		}

	case api.TypeSpeechStartedResponse:
		s.unendedSegment = true
		if options.SpeechStartedCallback != nil {
			options.SpeechStartedCallback()
		}
	}
}

func (s *TranscriptionClient) onSpeechEnded(options speechtotext.TranscriptionOptions) {
	s.unendedSegment = false
	fullTranscript := strings.TrimSpace(s.accumulatedTranscript)
	s.accumulatedTranscript = ""

	if options.TranscriptionCallback != nil && fullTranscript != "" {
		options.TranscriptionCallback(fullTranscript)
	}
	if options.SpeechEndedCallback != nil {
		options.SpeechEndedCallback()
	}
}

// generateSilence keeps the stream alive while nobody talks: it pads short
// gaps with silence so endpointing can fire, then falls back to KeepAlive
// messages.
func (s *TranscriptionClient) generateSilence(ctx context.Context, encoding audio.EncodingInfo) {
	type silenceGeneratorState string
	const (
		stateWaiting   silenceGeneratorState = "waiting"
		stateSilence   silenceGeneratorState = "silence"
		stateKeepAlive silenceGeneratorState = "keepAlive"
	)

	const (
		interval          = 50 * time.Millisecond
		silencePadding    = time.Second
		keepAliveInterval = 5 * time.Second
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	chunk := encoding.Silence(interval)
	sinceLastAudio := func() time.Duration {
		return time.Since(time.Unix(0, s.lastMsgTs.Load()))
	}

	state := stateWaiting
	var firstSilenceTime, lastKeepAliveTime time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			switch state {
			case stateWaiting:
				if sinceLastAudio() > interval {
					state = stateSilence
					firstSilenceTime = time.Now()
				}

			case stateSilence:
				if sinceLastAudio() < interval {
					state = stateWaiting
					continue
				}
				if time.Since(firstSilenceTime) >= silencePadding {
					state = stateKeepAlive
					lastKeepAliveTime = time.Now()
					continue
				}

				if err := s.sendSilence(chunk); err != nil && !errors.Is(err, ErrNotConnected) {
					logger.Debug("failed to send silence", "error", err)
				}

			case stateKeepAlive:
				if sinceLastAudio() < interval {
					state = stateWaiting
					continue
				}

				if time.Since(lastKeepAliveTime) >= keepAliveInterval {
					lastKeepAliveTime = time.Now()
					if err := s.sendControl(keepAliveMessage); err != nil && !errors.Is(err, ErrNotConnected) {
						logger.Debug("failed to send keep alive", "error", err)
					}
				}
			}
		}
	}
}
