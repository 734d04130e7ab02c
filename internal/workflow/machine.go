package workflow

import "strings"

// msgEmptySpeech is shown when a recording cycle ends with no transcript.
const msgEmptySpeech = "音声が認識できませんでした。もう一度お試しください"

// Draft is the composed reply pending confirmation, send, or draft-save.
// Body and Subject are user-editable after composition.
type Draft struct {
	Body    string
	Subject string
}

// Snapshot is the immutable tuple the presentation layer renders from.
type Snapshot struct {
	Phase         Phase
	Draft         *Draft
	HasSavedDraft bool
	ErrKind       ErrorKind
	ErrMessage    string
	Replied       bool
}

// Config seeds a machine for one email.
type Config struct {
	// Authorized reports whether a bearer credential is present. When
	// false, every trigger that would issue a network call is silently
	// ignored; auth failures belong to the external auth collaborator.
	Authorized bool

	// StoredDraft restores a previously composed-but-unsent draft from
	// the remote email record, booting the machine directly into
	// Composed.
	StoredDraft *Draft

	// Replied marks an email that already has a reply. The machine then
	// exposes no mutating entry point, only the read-only sent view.
	Replied bool

	// OnReplied is invoked once when a send succeeds.
	OnReplied func()
}

// Machine drives the reply workflow for a single email. It is owned by
// the UI event loop and is not safe for concurrent use; asynchronous
// completions re-enter it through the *Finished methods, which validate
// the generation that issued the call before applying anything.
type Machine struct {
	phase         Phase
	draft         *Draft
	hasSavedDraft bool
	errKind       ErrorKind
	errMessage    string

	// composeTriggered guards the auto-compose trigger so duplicate
	// "listening stopped" notifications cannot double-submit.
	composeTriggered bool

	gen        uint64
	authorized bool
	replied    bool
	onReplied  func()
}

// New creates a machine in its initial phase: Sent for an already
// replied email, Composed when a stored draft is restored, Idle
// otherwise.
func New(cfg Config) *Machine {
	m := &Machine{
		phase:      PhaseIdle,
		authorized: cfg.Authorized,
		replied:    cfg.Replied,
		onReplied:  cfg.OnReplied,
	}

	if cfg.StoredDraft != nil {
		d := *cfg.StoredDraft
		m.draft = &d
		m.phase = PhaseComposed
		m.hasSavedDraft = true
	}

	if cfg.Replied {
		m.phase = PhaseSent
	}

	return m
}

// Snapshot returns the current render tuple. The draft is copied so the
// caller cannot mutate machine state behind its back.
func (m *Machine) Snapshot() Snapshot {
	snap := Snapshot{
		Phase:         m.phase,
		HasSavedDraft: m.hasSavedDraft,
		ErrKind:       m.errKind,
		ErrMessage:    m.errMessage,
		Replied:       m.replied,
	}

	if m.draft != nil {
		d := *m.draft
		snap.Draft = &d
	}

	return snap
}

// StartRecording enters a new recording cycle. Valid from Idle, from
// Composed or Confirming (re-record, discarding the draft and any
// confirmation dialog in progress), and from a Compose or EmptySpeech
// failure.
func (m *Machine) StartRecording() Command {
	if m.replied {
		return Command{}
	}

	switch m.phase {
	case PhaseIdle, PhaseComposed, PhaseConfirming:
	case PhaseFailed:
		if m.errKind != ErrorCompose && m.errKind != ErrorEmptySpeech {
			return Command{}
		}
	default:
		return Command{}
	}

	return m.enterRecording()
}

func (m *Machine) enterRecording() Command {
	m.phase = PhaseRecording
	// The draft is cleared but hasSavedDraft is not: a draft already
	// saved in the remote mailbox is not invalidated by re-recording.
	m.draft = nil
	m.clearError()
	m.composeTriggered = false
	m.gen++

	return Command{Effect: EffectStartCapture, Gen: m.gen}
}

// CaptureStopped reacts to the capture session's listening flag falling.
// It fires the auto-compose at most once per recording cycle, preferring
// the final transcript and falling back to the interim one; with neither
// present the composition service is never called and the machine fails
// with EmptySpeech.
func (m *Machine) CaptureStopped(finalText, interimText string) Command {
	if m.replied || m.phase != PhaseRecording || m.composeTriggered {
		return Command{}
	}

	text := strings.TrimSpace(finalText)
	if text == "" {
		text = strings.TrimSpace(interimText)
	}

	if text == "" {
		m.composeTriggered = true
		m.fail(ErrorEmptySpeech, msgEmptySpeech)

		return Command{}
	}

	if !m.authorized {
		return Command{}
	}

	m.composeTriggered = true
	m.phase = PhaseComposing
	m.gen++

	return Command{Effect: EffectCompose, Gen: m.gen, RawText: text}
}

// CancelRecording abandons the recording cycle without composing. The
// transcript captured so far is discarded by the caller; a draft saved
// remotely is untouched.
func (m *Machine) CancelRecording() {
	if m.phase != PhaseRecording {
		return
	}

	m.composeTriggered = true
	m.phase = PhaseIdle
}

// ComposeFinished applies the result of a compose call. Stale
// generations and results arriving after the machine left Composing are
// discarded.
func (m *Machine) ComposeFinished(gen uint64, body, subject string, err error) {
	if gen != m.gen || m.phase != PhaseComposing {
		return
	}

	if err != nil {
		m.fail(ErrorCompose, err.Error())
		return
	}

	m.draft = &Draft{Body: body, Subject: subject}
	m.phase = PhaseComposed
}

// Confirm moves from the composed view to the confirmation dialog.
func (m *Machine) Confirm() {
	if m.phase == PhaseComposed {
		m.phase = PhaseConfirming
	}
}

// Back returns from the confirmation dialog without touching the draft.
func (m *Machine) Back() {
	if m.phase == PhaseConfirming {
		m.phase = PhaseComposed
	}
}

// SetDraftBody edits the composed body. Only valid while the draft is
// reviewable.
func (m *Machine) SetDraftBody(body string) {
	if m.editable() {
		m.draft.Body = body
	}
}

// SetDraftSubject edits the composed subject.
func (m *Machine) SetDraftSubject(subject string) {
	if m.editable() {
		m.draft.Subject = subject
	}
}

func (m *Machine) editable() bool {
	if m.replied || m.draft == nil {
		return false
	}

	return m.phase == PhaseComposed || m.phase == PhaseConfirming
}

// Send issues the send call for the current draft.
func (m *Machine) Send() Command {
	if m.replied || m.draft == nil || !m.authorized {
		return Command{}
	}

	if m.phase != PhaseComposed && m.phase != PhaseConfirming {
		return Command{}
	}

	m.clearError()
	m.phase = PhaseSending
	m.gen++

	return Command{Effect: EffectSend, Gen: m.gen, Body: m.draft.Body, Subject: m.draft.Subject}
}

// SendFinished applies the result of a send call.
func (m *Machine) SendFinished(gen uint64, err error) {
	if gen != m.gen || m.phase != PhaseSending {
		return
	}

	if err != nil {
		m.fail(ErrorSend, err.Error())
		return
	}

	m.phase = PhaseSent
	m.replied = true

	if m.onReplied != nil {
		m.onReplied()
	}
}

// SaveDraft issues the draft-save call for the current draft.
func (m *Machine) SaveDraft() Command {
	if m.replied || m.draft == nil || !m.authorized {
		return Command{}
	}

	if m.phase != PhaseComposed && m.phase != PhaseConfirming {
		return Command{}
	}

	m.clearError()
	m.phase = PhaseDraftSaving
	m.gen++

	return Command{Effect: EffectSaveDraft, Gen: m.gen, Body: m.draft.Body, Subject: m.draft.Subject}
}

// DraftFinished applies the result of a draft-save call. On success the
// machine returns to Composed with hasSavedDraft set; the flag is never
// reset afterwards, not even by a later successful send.
func (m *Machine) DraftFinished(gen uint64, err error) {
	if gen != m.gen || m.phase != PhaseDraftSaving {
		return
	}

	if err != nil {
		m.fail(ErrorDraft, err.Error())
		return
	}

	m.hasSavedDraft = true
	m.phase = PhaseComposed
}

// Retry recovers from a failure: Compose and EmptySpeech failures
// restart the recording, Send re-issues the send with the same stored
// draft, Draft re-issues the draft save.
func (m *Machine) Retry() Command {
	if m.phase != PhaseFailed {
		return Command{}
	}

	switch m.errKind {
	case ErrorCompose, ErrorEmptySpeech:
		return m.enterRecording()
	case ErrorSend:
		m.clearError()
		m.phase = PhaseComposed

		return m.Send()
	case ErrorDraft:
		m.clearError()
		m.phase = PhaseComposed

		return m.SaveDraft()
	default:
		return Command{}
	}
}

func (m *Machine) fail(kind ErrorKind, message string) {
	// The draft and transcript survive failures so retrying never
	// requires re-entering data.
	m.phase = PhaseFailed
	m.errKind = kind
	m.errMessage = message
}

func (m *Machine) clearError() {
	m.errKind = ErrorNone
	m.errMessage = ""
}
