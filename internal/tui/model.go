// Package tui is the interactive reply workflow UI. It owns the
// workflow machine and executes its effects as bubbletea commands, so
// every state change flows through the single event loop.
package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/amaki/voicereply/internal/mailapi"
	"github.com/amaki/voicereply/internal/speech"
	"github.com/amaki/voicereply/internal/tui/components/labeledspinner"
	"github.com/amaki/voicereply/internal/workflow"
)

// MailClient is the subset of the mail backend client the UI drives.
type MailClient interface {
	ComposeReply(ctx context.Context, emailID, rawText string) (*mailapi.ComposeResult, error)
	SendReply(ctx context.Context, emailID, body, subject string) (*mailapi.SendResult, error)
	SaveDraft(ctx context.Context, emailID, body, subject string) (*mailapi.DraftResult, error)
}

// Config wires the UI to its collaborators.
type Config struct {
	Email      *mailapi.Email
	Client     MailClient
	Session    *speech.Session
	Language   string
	Authorized bool
}

type editTarget int

const (
	editNone editTarget = iota
	editBody
	editSubject
)

// Messages produced by effect commands. Each carries the generation of
// the machine command that issued the call so stale completions are
// discarded by the machine.
type (
	captureUpdateMsg speech.State

	composeResultMsg struct {
		gen    uint64
		result *mailapi.ComposeResult
		err    error
	}

	sendResultMsg struct {
		gen uint64
		err error
	}

	draftResultMsg struct {
		gen uint64
		err error
	}
)

// Model is the root bubbletea model.
type Model struct {
	keys     KeyMap
	machine  *workflow.Machine
	session  *speech.Session
	client   MailClient
	email    *mailapi.Email
	language string

	capture       speech.State
	usingFallback bool

	spin         labeledspinner.Model
	bodyArea     textarea.Model
	subjectInput textinput.Model
	fallbackArea textarea.Model
	editing      editTarget

	width  int
	height int
}

// New creates the root model for one email.
func New(cfg Config) *Model {
	wcfg := workflow.Config{
		Authorized: cfg.Authorized,
		Replied:    cfg.Email.Replied(),
	}
	if cfg.Email.HasStoredDraft() {
		wcfg.StoredDraft = &workflow.Draft{
			Body:    cfg.Email.ComposedBody,
			Subject: cfg.Email.ComposedSubject,
		}
	}

	body := textarea.New()
	body.CharLimit = 0

	fallback := textarea.New()
	fallback.Placeholder = "返信内容を入力してください"
	fallback.CharLimit = 0

	subject := textinput.New()
	subject.CharLimit = 0

	return &Model{
		keys:         DefaultKeyMap(),
		machine:      workflow.New(wcfg),
		session:      cfg.Session,
		client:       cfg.Client,
		email:        cfg.Email,
		language:     cfg.Language,
		capture:      cfg.Session.State(),
		spin:         labeledspinner.New(spinner.Points, "", "", ""),
		bodyArea:     body,
		subjectInput: subject,
		fallbackArea: fallback,
		width:        80,
		height:       24,
	}
}

// Init returns the initial command.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Init(), m.waitForCapture())
}

// Update handles all messages.
func (m *Model) Update(teaMsg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := teaMsg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeEditors()

		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)

		return m, cmd

	case captureUpdateMsg:
		return m, tea.Batch(m.handleCaptureUpdate(speech.State(msg)), m.waitForCapture())

	case composeResultMsg:
		if msg.err != nil {
			m.machine.ComposeFinished(msg.gen, "", "", msg.err)
		} else {
			m.machine.ComposeFinished(msg.gen, msg.result.ComposedBody, msg.result.ComposedSubject, nil)
		}

		return m, nil

	case sendResultMsg:
		m.machine.SendFinished(msg.gen, msg.err)
		return m, nil

	case draftResultMsg:
		m.machine.DraftFinished(msg.gen, msg.err)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

// handleCaptureUpdate notifies the machine when a recording cycle ends.
// Device errors leave the machine in Recording so the user can retry the
// microphone or cancel; only a clean stop triggers composition.
func (m *Model) handleCaptureUpdate(state speech.State) tea.Cmd {
	wasListening := m.capture.Listening
	m.capture = state

	if m.machine.Snapshot().Phase != workflow.PhaseRecording {
		return nil
	}

	if !state.Listening && wasListening && !state.HasError() {
		return m.runCommand(m.machine.CaptureStopped(state.FinalText, state.InterimText))
	}

	return nil
}

func (m *Model) handleKey(msg tea.Msg) (tea.Model, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	if key.Matches(km, m.keys.ForceQuit) {
		m.session.Abort()
		return m, tea.Quit
	}

	if m.editing != editNone {
		return m.handleEditingKey(km)
	}

	snap := m.machine.Snapshot()

	if snap.Phase == workflow.PhaseRecording {
		return m.handleRecordingKey(km)
	}

	// Busy phases only accept quit keys; everything else is refused
	// while a call is in flight.
	if snap.Phase.Busy() {
		if key.Matches(km, m.keys.Quit) {
			return m, tea.Quit
		}

		return m, nil
	}

	if key.Matches(km, m.keys.Quit) {
		return m, tea.Quit
	}

	switch snap.Phase {
	case workflow.PhaseIdle:
		if key.Matches(km, m.keys.Record) {
			return m, m.startRecording()
		}

	case workflow.PhaseComposed:
		return m.handleComposedKey(km)

	case workflow.PhaseConfirming:
		switch {
		case key.Matches(km, m.keys.Confirm):
			return m, m.runCommand(m.machine.Send())
		case key.Matches(km, m.keys.Cancel):
			m.machine.Back()
			return m, nil
		case key.Matches(km, m.keys.Record):
			return m, m.startRecording()
		}

	case workflow.PhaseFailed:
		switch {
		case key.Matches(km, m.keys.Retry):
			return m, m.runCommand(m.machine.Retry())
		case key.Matches(km, m.keys.Record):
			return m, m.startRecording()
		}
	}

	return m, nil
}

func (m *Model) handleRecordingKey(km tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.usingFallback {
		switch {
		case key.Matches(km, m.keys.Cancel):
			m.usingFallback = false
			m.fallbackArea.Blur()

			return m, m.runCommand(m.machine.CaptureStopped(m.fallbackArea.Value(), ""))
		}

		var cmd tea.Cmd
		m.fallbackArea, cmd = m.fallbackArea.Update(km)

		return m, cmd
	}

	switch {
	case key.Matches(km, m.keys.Stop):
		m.session.Stop()
	case key.Matches(km, m.keys.Cancel):
		m.session.Abort()
		m.machine.CancelRecording()
	case key.Matches(km, m.keys.Record):
		// Retry the microphone after a device error.
		if m.capture.HasError() {
			m.capture = speech.State{}
			m.session.Start(m.language)
		}
	}

	return m, nil
}

func (m *Model) handleComposedKey(km tea.KeyMsg) (tea.Model, tea.Cmd) {
	snap := m.machine.Snapshot()

	switch {
	case key.Matches(km, m.keys.Send):
		m.machine.Confirm()
		return m, nil

	case key.Matches(km, m.keys.SaveDraft):
		return m, m.runCommand(m.machine.SaveDraft())

	case key.Matches(km, m.keys.Record):
		return m, m.startRecording()

	case key.Matches(km, m.keys.EditBody):
		if snap.Draft != nil {
			m.editing = editBody
			m.bodyArea.SetValue(snap.Draft.Body)

			return m, m.bodyArea.Focus()
		}

	case key.Matches(km, m.keys.EditSubject):
		if snap.Draft != nil {
			m.editing = editSubject
			m.subjectInput.SetValue(snap.Draft.Subject)

			return m, m.subjectInput.Focus()
		}
	}

	return m, nil
}

// handleEditingKey routes keys to the focused editor; escape commits the
// edit back into the machine.
func (m *Model) handleEditingKey(km tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(km, m.keys.Cancel) {
		switch m.editing {
		case editBody:
			m.machine.SetDraftBody(m.bodyArea.Value())
			m.bodyArea.Blur()
		case editSubject:
			m.machine.SetDraftSubject(m.subjectInput.Value())
			m.subjectInput.Blur()
		}
		m.editing = editNone

		return m, nil
	}

	var cmd tea.Cmd
	switch m.editing {
	case editBody:
		m.bodyArea, cmd = m.bodyArea.Update(km)
	case editSubject:
		m.subjectInput, cmd = m.subjectInput.Update(km)
	}

	return m, cmd
}

// startRecording asks the machine to enter a recording cycle and, when
// it agrees, begins the capture.
func (m *Model) startRecording() tea.Cmd {
	cmd := m.machine.StartRecording()
	if cmd.Effect != workflow.EffectStartCapture {
		return nil
	}

	return m.beginCapture()
}

// beginCapture performs the capture side of EffectStartCapture: with a
// usable speech session the microphone starts immediately; without one
// the UI falls back to a typed-input area so the workflow stays usable.
// The machine has already moved to Recording when this runs.
func (m *Model) beginCapture() tea.Cmd {
	m.capture = speech.State{}

	if m.session.Available() {
		m.usingFallback = false
		m.session.Start(m.language)

		return nil
	}

	m.usingFallback = true
	m.fallbackArea.Reset()

	return m.fallbackArea.Focus()
}

// runCommand executes a machine effect as a bubbletea command. The
// generation travels with the call so the completion message can be
// validated against the machine's current cycle.
func (m *Model) runCommand(cmd workflow.Command) tea.Cmd {
	switch cmd.Effect {
	case workflow.EffectCompose:
		gen, raw := cmd.Gen, cmd.RawText

		return tea.Batch(m.spin.Init(), func() tea.Msg {
			res, err := m.client.ComposeReply(context.Background(), m.email.ID, raw)
			return composeResultMsg{gen: gen, result: res, err: err}
		})

	case workflow.EffectSend:
		gen, body, subject := cmd.Gen, cmd.Body, cmd.Subject

		return tea.Batch(m.spin.Init(), func() tea.Msg {
			_, err := m.client.SendReply(context.Background(), m.email.ID, body, subject)
			return sendResultMsg{gen: gen, err: err}
		})

	case workflow.EffectSaveDraft:
		gen, body, subject := cmd.Gen, cmd.Body, cmd.Subject

		return tea.Batch(m.spin.Init(), func() tea.Msg {
			_, err := m.client.SaveDraft(context.Background(), m.email.ID, body, subject)
			return draftResultMsg{gen: gen, err: err}
		})

	case workflow.EffectStartCapture:
		// The machine already entered Recording when it issued this
		// effect (Retry does); only the capture must start.
		return m.beginCapture()
	}

	return nil
}

// waitForCapture blocks on the next capture state publication. It is
// re-armed after every message so the updates channel never backs up.
func (m *Model) waitForCapture() tea.Cmd {
	return func() tea.Msg {
		state, ok := <-m.session.Updates()
		if !ok {
			return nil
		}

		return captureUpdateMsg(state)
	}
}

func (m *Model) resizeEditors() {
	w := m.width - 6
	if w < 20 {
		w = 20
	}

	m.bodyArea.SetWidth(w)
	m.fallbackArea.SetWidth(w)
	m.subjectInput.Width = w
}
