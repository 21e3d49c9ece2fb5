// Package conversations runs one persona's voice pipeline inside a room:
// room audio goes to speech recognition, replies come from the LLM and are
// spoken through speech synthesis.
package conversations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Invisible042/multi-ai-user-debates/core/audio"
	"github.com/Invisible042/multi-ai-user-debates/core/llms"
	"github.com/Invisible042/multi-ai-user-debates/core/personas"
	"github.com/Invisible042/multi-ai-user-debates/core/rooms"
	"github.com/Invisible042/multi-ai-user-debates/core/speechtotext"
	"github.com/Invisible042/multi-ai-user-debates/core/texttospeech"
	"github.com/Invisible042/multi-ai-user-debates/internal/utils"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	AgentIdentityPrefix = "agent-"

	maxIdentityLength = 63
	// previous speech gets this long to finish synthesis before a new reply
	// cuts it off
	speechWaitTimeout = 30 * time.Second
	// a speaker whose recognition stream failed to open is retried after this
	listenerRetryDelay = 5 * time.Second
)

var (
	ErrSessionClosed = errors.New("session closed")
	ErrNoLLM         = errors.New("session requires an llm")
)

var replyCounter, _ = meter.Int64Counter("conversation.replies",
	metric.WithDescription("Replies generated by conversation sessions"))

// AgentIdentity derives the room identity of a persona from its display
// name, e.g. "AI Socrates" becomes "agent-ai-socrates".
func AgentIdentity(displayName string) string {
	slug := utils.Slug(displayName)
	if slug == "" {
		slug = uuid.NewString()[:8]
	}
	return strings.TrimRight(utils.Truncate(AgentIdentityPrefix+slug, maxIdentityLength), "-")
}

func IsAgentIdentity(identity string) bool {
	return strings.HasPrefix(identity, AgentIdentityPrefix)
}

// Session is one persona's live presence in a room.
type Session struct {
	id           string
	persona      personas.Definition
	instructions string
	identity     string
	participant  rooms.Participant
	options      sessionOptions
	gate         audio.NoiseGate

	// baseCtx outlives Start and is cancelled on Close; used for replies the
	// session triggers on its own.
	baseCtx context.Context
	cancel  context.CancelFunc

	mu         sync.Mutex
	state      State
	history    []llms.Message
	listeners  map[string]*listener
	generator  texttospeech.SpeechGeneratorV0
	speechSeq  uint64
	speechDone chan struct{}

	replyMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// listener is the recognition stream of one remote speaker.
type listener struct {
	stream  SpeechToText
	opening bool
	retryAt time.Time
}

// Start joins the room as the persona and starts listening. The session
// stays in the room until Close.
func Start(ctx context.Context, room rooms.Room, persona personas.Definition, instructions string, opts ...SessionOption) (*Session, error) {
	if persona.DisplayName == "" {
		persona.DisplayName = persona.ID
	}

	ctx, span := tracer.Start(ctx, "start session", trace.WithAttributes(
		attribute.String("persona.name", persona.DisplayName),
	))
	defer span.End()

	options := defaultSessionOptions()
	for _, opt := range opts {
		opt(&options)
	}

	fail := func(err error) (*Session, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if options.llm == nil {
		return fail(ErrNoLLM)
	}
	if room == nil {
		return fail(fmt.Errorf("session requires a room"))
	}

	s := &Session{
		id:           uuid.NewString(),
		persona:      persona,
		instructions: instructions,
		identity:     AgentIdentity(persona.DisplayName),
		options:      options,
		gate:         audio.NewNoiseGate(options.encoding),
		state:        StateCreated,
		listeners:    map[string]*listener{},
	}
	s.baseCtx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	span.SetAttributes(attribute.String("session.id", s.id), attribute.String("participant.identity", s.identity))

	participant, err := room.Join(ctx, s.identity, persona.DisplayName)
	if err != nil {
		s.cancel()
		return fail(fmt.Errorf("failed to join room: %w", err))
	}
	s.participant = participant
	participant.OnRemoteAudio(s.onRemoteAudio)

	s.mu.Lock()
	s.state = StateStarted
	s.mu.Unlock()

	logger.InfoContext(ctx, "session started",
		"session", s.id, "persona", persona.DisplayName, "identity", s.identity,
		"noise_cancellation", options.noiseCancellation, "turn_detection", options.turnDetection)
	return s, nil
}

func (s *Session) ID() string                   { return s.id }
func (s *Session) Identity() string             { return s.identity }
func (s *Session) Persona() personas.Definition { return s.persona }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// History returns a snapshot of the conversation, oldest first.
func (s *Session) History() []llms.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]llms.Message(nil), s.history...)
}

func (s *Session) appendHistory(message llms.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, message)
	if overflow := len(s.history) - s.options.historyLimit; overflow > 0 {
		s.history = append([]llms.Message(nil), s.history[overflow:]...)
	}
}

// GenerateReply produces one turn and hands it to speech synthesis. It
// returns once the text is dispatched, not once the audio has been played.
func (s *Session) GenerateReply(ctx context.Context, opts ...ReplyOption) error {
	options := NewReplyOptions(opts...)

	s.replyMu.Lock()
	defer s.replyMu.Unlock()

	if s.State() == StateClosed {
		return ErrSessionClosed
	}

	ctx, span := tracer.Start(ctx, "generate reply", trace.WithAttributes(
		attribute.String("persona.name", s.persona.DisplayName),
		attribute.Bool("reply.instructed", options.Instructions != ""),
	))
	defer span.End()

	fail := func(err error) error {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	promptOpts := []llms.PromptOption{
		llms.WithInstructions(s.instructions),
		llms.WithMessages(s.History()...),
	}
	if options.Instructions != "" {
		promptOpts = append(promptOpts, llms.WithMessages(llms.Message{Role: llms.RoleSystem, Content: options.Instructions}))
	}

	var generator texttospeech.SpeechGeneratorV0
	if s.options.textToSpeech != nil {
		var err error
		if generator, err = s.startSpeech(ctx); err != nil {
			return fail(err)
		}
	}

	reply, err := s.prompt(ctx, generator, promptOpts)
	if err != nil {
		if generator != nil {
			_ = generator.Cancel()
		}
		return fail(err)
	}

	if generator != nil {
		if err := generator.EndOfText(); err != nil {
			return fail(fmt.Errorf("failed to finish speech: %w", err))
		}
	}

	if reply != "" {
		s.appendHistory(llms.Message{Role: llms.RoleAssistant, Name: s.persona.DisplayName, Content: reply})
	}
	if generator == nil {
		s.mu.Lock()
		if s.state != StateClosed {
			s.state = StateIdle
		}
		s.mu.Unlock()
	}
	replyCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("persona.name", s.persona.DisplayName)))

	return nil
}

func (s *Session) prompt(ctx context.Context, generator texttospeech.SpeechGeneratorV0, opts []llms.PromptOption) (string, error) {
	if streaming, ok := s.options.llm.(LLMWithStream); ok && generator != nil {
		var reply strings.Builder
		for chunk, err := range streaming.PromptWithStream(ctx, opts...).Chunks(ctx) {
			if err != nil {
				return "", fmt.Errorf("failed to generate reply: %w", err)
			}
			if chunk.Content == "" {
				continue
			}

			reply.WriteString(chunk.Content)
			if err := generator.SendText(chunk.Content); err != nil {
				return "", fmt.Errorf("failed to send text to speech: %w", err)
			}
			if endsSentence(chunk.Content) {
				if err := generator.Mark(); err != nil {
					return "", fmt.Errorf("failed to mark speech: %w", err)
				}
			}
		}
		return strings.TrimSpace(reply.String()), nil
	}

	response, err := s.options.llm.Prompt(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to generate reply: %w", err)
	}

	reply := strings.TrimSpace(response.Content)
	if generator != nil && reply != "" {
		if err := generator.SendText(reply); err != nil {
			return "", fmt.Errorf("failed to send text to speech: %w", err)
		}
	}
	return reply, nil
}

func endsSentence(text string) bool {
	text = strings.TrimRight(text, " \t\n\"'”)")
	return strings.HasSuffix(text, ".") || strings.HasSuffix(text, "!") || strings.HasSuffix(text, "?")
}

// startSpeech waits for the previous reply to finish synthesis and opens a
// generator for the next one.
func (s *Session) startSpeech(ctx context.Context) (texttospeech.SpeechGeneratorV0, error) {
	if err := s.waitForSpeech(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.speechSeq++
	seq := s.speechSeq
	s.mu.Unlock()

	output := s.participant.AudioOutput()
	generator, err := s.options.textToSpeech.NewSpeechGeneratorV0(ctx,
		texttospeech.WithVoice(s.persona.VoiceID),
		texttospeech.WithEncodingInfo(s.options.encoding),
		texttospeech.WithSpeechAudioCallback(func(audio []byte) {
			if _, err := output.Write(audio); err != nil {
				logger.Debug("failed to write speech audio", "identity", s.identity, "error", err)
			}
		}),
		texttospeech.WithSpeechEndedCallbackV0(func(texttospeech.SpeechEndedReport) { s.endSpeech(seq) }),
		texttospeech.WithErrorCallback(func(err error) {
			logger.Warn("speech synthesis failed", "identity", s.identity, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open speech generator: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		_ = generator.Close()
		return nil, ErrSessionClosed
	}
	if s.speechSeq == seq {
		s.generator = generator
		s.speechDone = make(chan struct{})
		s.state = StateSpeaking
	}
	return generator, nil
}

func (s *Session) waitForSpeech(ctx context.Context) error {
	s.mu.Lock()
	done := s.speechDone
	seq := s.speechSeq
	generator := s.generator
	s.mu.Unlock()

	if done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(speechWaitTimeout):
		logger.Warn("previous speech did not finish in time, cancelling it", "identity", s.identity)
		_ = generator.Cancel()
		s.endSpeech(seq)
		return nil
	}
}

func (s *Session) endSpeech(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.speechSeq != seq || s.speechDone == nil {
		return
	}
	close(s.speechDone)
	s.speechDone = nil
	s.generator = nil
	if s.state != StateClosed {
		s.state = StateIdle
	}
}

func (s *Session) onRemoteAudio(identity string, payload []byte) {
	if s.options.speechToText == nil {
		return
	}

	stream := s.listener(identity)
	if stream == nil {
		return
	}
	if s.options.noiseCancellation {
		payload = s.gate.Apply(payload)
	}

	if err := stream.SendAudio(payload); err != nil {
		logger.Debug("failed to forward room audio", "identity", s.identity, "speaker", identity, "error", err)
	}
}

// listener returns the speaker's recognition stream, opening it on the
// speaker's first audio. It returns nil while the stream is unavailable.
func (s *Session) listener(speaker string) SpeechToText {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	l, ok := s.listeners[speaker]
	if ok && (l.stream != nil || l.opening || time.Now().Before(l.retryAt)) {
		stream := l.stream
		s.mu.Unlock()
		return stream
	}
	l = &listener{opening: true}
	s.listeners[speaker] = l
	s.mu.Unlock()

	stream, err := s.openListener(speaker)

	s.mu.Lock()
	l.opening = false
	closed := s.state == StateClosed
	if err == nil && !closed {
		l.stream = stream
	}
	if err != nil {
		l.retryAt = time.Now().Add(listenerRetryDelay)
	}
	s.mu.Unlock()

	switch {
	case err != nil:
		logger.Warn("failed to start speech-to-text for speaker", "identity", s.identity, "speaker", speaker, "error", err)
		return nil
	case closed:
		_ = stream.Close()
		return nil
	}
	logger.Debug("listening to speaker", "identity", s.identity, "speaker", speaker)
	return stream
}

func (s *Session) openListener(speaker string) (SpeechToText, error) {
	stream, err := s.options.speechToText()
	if err != nil {
		return nil, err
	}

	if err := stream.Transcribe(s.baseCtx,
		speechtotext.WithTranscriptionCallback(func(transcript string) { s.onTranscription(speaker, transcript) }),
		speechtotext.WithVoiceActivityDetection(s.options.voiceActivityDetection),
		speechtotext.WithEncodingInfo(s.options.encoding),
	); err != nil {
		_ = stream.Close()
		return nil, err
	}
	return stream, nil
}

func (s *Session) onTranscription(speaker, transcript string) {
	if s.State() == StateClosed {
		return
	}

	s.appendHistory(llms.Message{Role: llms.RoleUser, Name: speaker, Content: transcript})

	if s.options.turnDetection && !IsAgentIdentity(speaker) {
		go func() {
			if err := s.GenerateReply(s.baseCtx); err != nil && !errors.Is(err, ErrSessionClosed) {
				logger.Warn("failed to reply to speaker", "identity", s.identity, "speaker", speaker, "error", err)
			}
		}()
	}
}

// Close leaves the room and releases the pipeline. Only the first call does
// any work; later calls return the same result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = StateClosed
		generator := s.generator
		s.generator = nil
		if s.speechDone != nil {
			close(s.speechDone)
			s.speechDone = nil
		}
		var streams []SpeechToText
		for _, l := range s.listeners {
			if l.stream != nil {
				streams = append(streams, l.stream)
			}
		}
		s.listeners = map[string]*listener{}
		s.mu.Unlock()

		var errs []error
		if generator != nil {
			if err := generator.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close speech generator: %w", err))
			}
		}
		s.participant.ClearAudio()

		for _, stream := range streams {
			if err := stream.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close speech-to-text: %w", err))
			}
		}
		s.cancel()

		if err := s.participant.Leave(); err != nil {
			errs = append(errs, fmt.Errorf("failed to leave room: %w", err))
		}

		s.closeErr = errors.Join(errs...)
		logger.Info("session closed", "session", s.id, "persona", s.persona.DisplayName, "error", s.closeErr)
	})
	return s.closeErr
}
