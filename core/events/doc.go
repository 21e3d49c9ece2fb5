// Package events defines the typed debate lifecycle event contract.
//
// Events are produced for observability only. No component relies on them
// for correctness, and a slow handler delays the producer.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - session.*
//   - debate.*
//   - turn_state.*
//
// session events
//
//   - SessionCreated (session.created): a persona's pipeline joined the room.
//     Synthesized reports whether the persona fell back to a generated
//     definition.
//   - SessionFailed (session.failed): a persona's pipeline could not bind and
//     the persona was dropped from the debate.
//   - SessionClosed (session.closed): a session was released during shutdown;
//     Err is set when the close failed.
//
// debate events
//
//   - PhaseChanged (debate.phase_changed): the orchestrator entered a new
//     phase.
//   - IntroductionsComplete (debate.introductions_complete): every
//     introduction was dispatched. Dispatch is not playback, introductions may
//     still be audible.
//   - DebateComplete (debate.complete): the schedule finished or was
//     cancelled; carries the number of turns taken.
//
// turn_state events
//
//   - TurnStarted (turn_state.started): a scheduled speaker was asked to
//     reply. Round and Index are 0-based.
//   - TurnFailed (turn_state.failed): the reply could not be dispatched. The
//     schedule continues.
//   - TurnSkipped (turn_state.skipped): the speaker was benched after repeated
//     failures and its slot passed silently.
package events
