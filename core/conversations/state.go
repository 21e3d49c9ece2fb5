package conversations

type State int

const (
	StateCreated State = iota
	StateStarted
	StateSpeaking
	StateIdle
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarted:
		return "started"
	case StateSpeaking:
		return "speaking"
	case StateIdle:
		return "idle"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
