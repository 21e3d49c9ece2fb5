package conversations

import (
	"context"

	"github.com/Invisible042/multi-ai-user-debates/core/audio"
	"github.com/Invisible042/multi-ai-user-debates/core/llms"
	"github.com/Invisible042/multi-ai-user-debates/core/speechtotext"
	"github.com/Invisible042/multi-ai-user-debates/core/texttospeech"
)

type LLM interface {
	Prompt(ctx context.Context, opts ...llms.PromptOption) (*llms.Response, error)
}

// LLMWithStream is preferred when available: text is handed to speech
// synthesis while it is still being generated.
type LLMWithStream interface {
	LLM
	PromptWithStream(ctx context.Context, opts ...llms.PromptOption) llms.Stream
}

// SpeechToText is a single recognition stream. A session owns one per remote
// speaker.
type SpeechToText interface {
	Transcribe(ctx context.Context, opts ...speechtotext.TranscriptionOption) error
	SendAudio(audio []byte) error
	Close() error
}

type TextToSpeech interface {
	NewSpeechGeneratorV0(ctx context.Context, opts ...texttospeech.TextToSpeechOption) (texttospeech.SpeechGeneratorV0, error)
}

// SpeechToTextFactory opens a new, not yet started, recognition stream.
type SpeechToTextFactory func() (SpeechToText, error)

type SessionOption func(*sessionOptions)

type sessionOptions struct {
	speechToText SpeechToTextFactory
	llm          LLM
	textToSpeech TextToSpeech

	noiseCancellation      bool
	voiceActivityDetection bool
	turnDetection          bool
	encoding               audio.EncodingInfo
	historyLimit           int
}

func defaultSessionOptions() sessionOptions {
	return sessionOptions{
		voiceActivityDetection: true,
		encoding:               audio.GetDefaultEncodingInfo(),
		historyLimit:           50,
	}
}

// WithSpeechToText gives the session ears. Every remote speaker gets a
// stream of its own so transcripts are attributed to whoever said them.
// Without it the session only hears its own replies.
func WithSpeechToText(open SpeechToTextFactory) SessionOption {
	return func(o *sessionOptions) { o.speechToText = open }
}

func WithLLM(client LLM) SessionOption {
	return func(o *sessionOptions) { o.llm = client }
}

// WithTextToSpeech gives the session a voice. Without it replies are only
// recorded in the history.
func WithTextToSpeech(client TextToSpeech) SessionOption {
	return func(o *sessionOptions) { o.textToSpeech = client }
}

// WithNoiseCancellation gates low-energy room audio before recognition.
func WithNoiseCancellation(enabled bool) SessionOption {
	return func(o *sessionOptions) { o.noiseCancellation = enabled }
}

func WithVoiceActivityDetection(enabled bool) SessionOption {
	return func(o *sessionOptions) { o.voiceActivityDetection = enabled }
}

// WithTurnDetection makes the session answer human speakers on its own once
// they finish an utterance. Other agents never trigger a reply.
func WithTurnDetection(enabled bool) SessionOption {
	return func(o *sessionOptions) { o.turnDetection = enabled }
}

// WithHistoryLimit bounds how many messages are kept as reply context.
// Values below 1 are ignored.
func WithHistoryLimit(limit int) SessionOption {
	return func(o *sessionOptions) {
		if limit > 0 {
			o.historyLimit = limit
		}
	}
}

type ReplyOption func(*ReplyOptions)

type ReplyOptions struct {
	Instructions string
}

func NewReplyOptions(opts ...ReplyOption) ReplyOptions {
	options := ReplyOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// WithInstructions overrides the continuation behaviour for a single reply.
func WithInstructions(instructions string) ReplyOption {
	return func(o *ReplyOptions) { o.Instructions = instructions }
}
