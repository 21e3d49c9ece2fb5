package events

const (
	KindSessionCreated Kind = "session.created"
	KindSessionFailed  Kind = "session.failed"
	KindSessionClosed  Kind = "session.closed"
)

type SessionCreated struct {
	Base
	Persona     string
	Synthesized bool
}

func NewSessionCreated(persona string, synthesized bool) SessionCreated {
	return SessionCreated{Base: NewBase(KindSessionCreated), Persona: persona, Synthesized: synthesized}
}

type SessionFailed struct {
	Base
	Persona string
	Err     error
}

func NewSessionFailed(persona string, err error) SessionFailed {
	return SessionFailed{Base: NewBase(KindSessionFailed), Persona: persona, Err: err}
}

type SessionClosed struct {
	Base
	Persona string
	Err     error
}

func NewSessionClosed(persona string, err error) SessionClosed {
	return SessionClosed{Base: NewBase(KindSessionClosed), Persona: persona, Err: err}
}
