package events

const (
	KindTurnStarted Kind = "turn_state.started"
	KindTurnFailed  Kind = "turn_state.failed"
	KindTurnSkipped Kind = "turn_state.skipped"
)

// TurnStarted marks a scheduled speaker being asked to reply.
type TurnStarted struct {
	Base
	Round   int
	Index   int
	Persona string
}

func NewTurnStarted(round, index int, persona string) TurnStarted {
	return TurnStarted{Base: NewBase(KindTurnStarted), Round: round, Index: index, Persona: persona}
}

type TurnFailed struct {
	Base
	Round   int
	Index   int
	Persona string
	Err     error
}

func NewTurnFailed(round, index int, persona string, err error) TurnFailed {
	return TurnFailed{Base: NewBase(KindTurnFailed), Round: round, Index: index, Persona: persona, Err: err}
}

type TurnSkipped struct {
	Base
	Round   int
	Index   int
	Persona string
}

func NewTurnSkipped(round, index int, persona string) TurnSkipped {
	return TurnSkipped{Base: NewBase(KindTurnSkipped), Round: round, Index: index, Persona: persona}
}
