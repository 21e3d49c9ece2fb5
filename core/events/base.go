package events

import (
	"encoding/json"
	"time"
)

type Kind string

type Event interface {
	Kind() Kind
	Timestamp() time.Time
}

type Base struct {
	kind      Kind
	timestamp time.Time
}

func NewBase(kind Kind) Base {
	return Base{kind: kind, timestamp: time.Now()}
}

func (b Base) Kind() Kind           { return b.kind }
func (b Base) Timestamp() time.Time { return b.timestamp }

// Envelope is the wire form of an event, used when lifecycle events leave the
// process (e.g. as room data messages).
type Envelope struct {
	Kind      Kind      `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Room      string    `json:"room,omitempty"`
	Persona   string    `json:"persona,omitempty"`
	Phase     string    `json:"phase,omitempty"`
	Round     *int      `json:"round,omitempty"`
	Index     *int      `json:"index,omitempty"`
	Count     *int      `json:"count,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// NewEnvelope flattens an event into its wire form.
func NewEnvelope(room string, event Event) Envelope {
	envelope := Envelope{Kind: event.Kind(), Timestamp: event.Timestamp(), Room: room}

	switch typed := event.(type) {
	case SessionCreated:
		envelope.Persona = typed.Persona
	case SessionFailed:
		envelope.Persona = typed.Persona
		envelope.Error = errorString(typed.Err)
	case SessionClosed:
		envelope.Persona = typed.Persona
		envelope.Error = errorString(typed.Err)
	case PhaseChanged:
		envelope.Phase = typed.Phase
	case IntroductionsComplete:
		envelope.Count = &typed.Sessions
	case DebateComplete:
		envelope.Count = &typed.Turns
	case TurnStarted:
		envelope.Persona, envelope.Round, envelope.Index = typed.Persona, &typed.Round, &typed.Index
	case TurnFailed:
		envelope.Persona, envelope.Round, envelope.Index = typed.Persona, &typed.Round, &typed.Index
		envelope.Error = errorString(typed.Err)
	case TurnSkipped:
		envelope.Persona, envelope.Round, envelope.Index = typed.Persona, &typed.Round, &typed.Index
	}

	return envelope
}

// Encode returns the JSON wire form of event.
func Encode(room string, event Event) ([]byte, error) {
	return json.Marshal(NewEnvelope(room, event))
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
