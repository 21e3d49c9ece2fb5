package orchestration

type Phase int32

const (
	PhaseInitializing Phase = iota
	PhaseBuildingSessions
	PhaseIntroducing
	PhaseDebating
	PhaseShuttingDown
	PhaseTerminated
)

func (p Phase) String() string {
	switch p {
	case PhaseInitializing:
		return "initializing"
	case PhaseBuildingSessions:
		return "building_sessions"
	case PhaseIntroducing:
		return "introducing"
	case PhaseDebating:
		return "debating"
	case PhaseShuttingDown:
		return "shutting_down"
	case PhaseTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}
