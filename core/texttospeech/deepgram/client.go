package deepgram

import (
	"fmt"
	"strings"

	"github.com/gorilla/websocket"
)

const (
	DefaultVoice = "aura-2-thalia-en"

	defaultSpeakURL = "wss://api.deepgram.com/v1/speak"
)

// TextToSpeechClient opens one speak stream per speech generator. It holds
// no connection itself and is safe to share between sessions.
type TextToSpeechClient struct {
	apiKey   string
	speakURL string
	voice    string
	dialer   *websocket.Dialer
}

type ClientOption func(*TextToSpeechClient)

// WithDefaultVoice sets the voice used when a generator does not pick one.
func WithDefaultVoice(voice string) ClientOption {
	return func(c *TextToSpeechClient) { c.voice = voice }
}

// WithURL overrides the speak endpoint.
func WithURL(speakURL string) ClientOption {
	return func(c *TextToSpeechClient) { c.speakURL = speakURL }
}

func NewTextToSpeechClient(apiKey string, opts ...ClientOption) (*TextToSpeechClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("deepgram api key is required")
	}

	client := &TextToSpeechClient{
		apiKey:   apiKey,
		speakURL: defaultSpeakURL,
		voice:    DefaultVoice,
		dialer:   websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(client)
	}

	if err := validateVoice(client.voice); err != nil {
		return nil, err
	}

	return client, nil
}

// Deepgram voices are named aura[-2]-<name>-<language>.
func validateVoice(voice string) error {
	if !strings.HasPrefix(voice, "aura-") || strings.Count(voice, "-") < 2 {
		return fmt.Errorf("invalid voice %q", voice)
	}
	return nil
}
