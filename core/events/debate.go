package events

const (
	KindPhaseChanged          Kind = "debate.phase_changed"
	KindIntroductionsComplete Kind = "debate.introductions_complete"
	KindDebateComplete        Kind = "debate.complete"
)

type PhaseChanged struct {
	Base
	Phase string
}

func NewPhaseChanged(phase string) PhaseChanged {
	return PhaseChanged{Base: NewBase(KindPhaseChanged), Phase: phase}
}

type IntroductionsComplete struct {
	Base
	Sessions int
}

func NewIntroductionsComplete(sessions int) IntroductionsComplete {
	return IntroductionsComplete{Base: NewBase(KindIntroductionsComplete), Sessions: sessions}
}

type DebateComplete struct {
	Base
	Turns     int
	Cancelled bool
}

func NewDebateComplete(turns int, cancelled bool) DebateComplete {
	return DebateComplete{Base: NewBase(KindDebateComplete), Turns: turns, Cancelled: cancelled}
}
