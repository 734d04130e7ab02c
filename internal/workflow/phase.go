// Package workflow implements the reply workflow state machine: the
// single authoritative phase value that drives which user actions are
// valid while a reply is dictated, composed, and sent or saved.
package workflow

// Phase is the workflow phase. Exactly one phase is active per machine.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRecording
	PhaseComposing
	PhaseComposed
	PhaseConfirming
	PhaseSending
	PhaseSent
	PhaseDraftSaving
	PhaseFailed
)

// String returns the phase name for logging.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRecording:
		return "recording"
	case PhaseComposing:
		return "composing"
	case PhaseComposed:
		return "composed"
	case PhaseConfirming:
		return "confirming"
	case PhaseSending:
		return "sending"
	case PhaseSent:
		return "sent"
	case PhaseDraftSaving:
		return "draft-saving"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Busy reports whether a network call for this phase is outstanding.
// The presentation layer disables all mutating affordances while busy.
func (p Phase) Busy() bool {
	switch p {
	case PhaseComposing, PhaseSending, PhaseDraftSaving:
		return true
	default:
		return false
	}
}

// ErrorKind classifies workflow failures. Each kind carries its own
// retry affordance: Compose and EmptySpeech retry the recording,
// Send re-issues the send, Draft re-issues the draft save.
type ErrorKind int

const (
	ErrorNone ErrorKind = iota
	ErrorCompose
	ErrorSend
	ErrorDraft
	ErrorEmptySpeech
)

// String returns the error kind name for logging.
func (k ErrorKind) String() string {
	switch k {
	case ErrorNone:
		return "none"
	case ErrorCompose:
		return "compose"
	case ErrorSend:
		return "send"
	case ErrorDraft:
		return "draft"
	case ErrorEmptySpeech:
		return "empty-speech"
	default:
		return "unknown"
	}
}

// Effect names a side effect the presentation adapter must execute on
// behalf of the machine.
type Effect int

const (
	EffectNone Effect = iota
	// EffectStartCapture resets the capture transcript and starts a new
	// capture cycle.
	EffectStartCapture
	// EffectCompose calls the composition service with RawText.
	EffectCompose
	// EffectSend calls the send service with Body and Subject.
	EffectSend
	// EffectSaveDraft calls the draft service with Body and Subject.
	EffectSaveDraft
)

// Command is returned by machine triggers that require a side effect.
// Gen identifies the machine generation that issued the call; completion
// methods discard results whose generation is stale.
type Command struct {
	Effect  Effect
	Gen     uint64
	RawText string
	Body    string
	Subject string
}
