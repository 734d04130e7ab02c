package speech

import (
	"sync"

	"github.com/amaki/voicereply/pkg/channels"
)

// State is the capture session state published to the UI. It is replaced
// wholesale on every Start; FinalText always holds the latest cumulative
// finalized transcript and InterimText the current unconfirmed guess.
type State struct {
	Available   bool
	Listening   bool
	FinalText   string
	InterimText string
	// Err is the zero value while no device error is pending.
	Err ErrorKind
}

// HasError reports whether a device error is set.
func (s State) HasError() bool {
	return s.Err != ""
}

// Session owns one speech recognizer at a time and isolates each
// start/stop cycle behind a generation token: every recognizer callback
// is closed over the generation that created it, and a callback whose
// generation no longer matches is a no-op. A superseded engine's delayed
// "end" notification can therefore never flip the listening flag of a
// newer cycle.
type Session struct {
	factory Factory

	mu      sync.Mutex
	gen     uint64
	rec     Recognizer
	state   State
	updates chan State
}

// NewSession creates a capture session. A nil factory marks the session
// unavailable; Start becomes a no-op and the UI falls back to text entry.
func NewSession(factory Factory) *Session {
	return &Session{
		factory: factory,
		state:   State{Available: factory != nil},
		updates: make(chan State, 16),
	}
}

// Available reports whether a recognition engine can be constructed.
// Computed once at construction.
func (s *Session) Available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Available
}

// State returns a snapshot of the current capture state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Updates returns the channel on which state snapshots are published.
// Snapshots may be dropped under backpressure; State() is authoritative.
func (s *Session) Updates() <-chan State {
	return s.updates
}

// Start begins a new capture cycle in the given language. Any previous
// recognizer is aborted and its pending callbacks invalidated. Listening
// is set synchronously so the UI reflects recording immediately, before
// the device confirms.
func (s *Session) Start(language string) {
	s.mu.Lock()
	if !s.state.Available {
		s.mu.Unlock()
		return
	}

	if s.rec != nil {
		old := s.rec
		s.rec = nil
		defer old.Abort()
	}

	s.gen++
	gen := s.gen
	s.state = State{Available: true, Listening: true}

	cb := Callbacks{
		OnResult: func(r Result) { s.handleResult(gen, r) },
		OnError:  func(code string) { s.handleError(gen, code) },
		OnEnd:    func() { s.handleEnd(gen) },
	}

	rec, err := s.factory.New(Config{
		Language:   language,
		Continuous: true,
		Interim:    true,
	}, cb)
	if err != nil {
		s.state.Listening = false
		s.state.Err = ErrAudioCapture
		s.publishLocked()
		s.mu.Unlock()
		return
	}

	s.rec = rec
	s.publishLocked()
	s.mu.Unlock()

	// Started outside the lock: engines may fire callbacks synchronously.
	if err := rec.Start(); err != nil {
		s.handleError(gen, string(ErrAudioCapture))
	}
}

// Stop requests the current recognizer to stop. Listening stays true
// until the engine's own end notification arrives under the current
// generation.
func (s *Session) Stop() {
	s.mu.Lock()
	rec := s.rec
	s.mu.Unlock()

	if rec != nil {
		rec.Stop()
	}
}

// Abort tears down the current recognizer and invalidates its callbacks.
// Used when the owning screen goes away mid-capture.
func (s *Session) Abort() {
	s.mu.Lock()
	rec := s.rec
	s.rec = nil
	if rec != nil {
		s.gen++
		s.state.Listening = false
		s.publishLocked()
	}
	s.mu.Unlock()

	if rec != nil {
		rec.Abort()
	}
}

// ResetTranscript clears the accumulated transcript and any device
// error without touching the listening flag.
func (s *Session) ResetTranscript() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.FinalText = ""
	s.state.InterimText = ""
	s.state.Err = ""
	s.publishLocked()
}

func (s *Session) handleResult(gen uint64, r Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		return
	}

	if r.Final {
		s.state.FinalText = r.Text
		s.state.InterimText = ""
	} else {
		s.state.InterimText = r.Text
	}
	s.publishLocked()
}

func (s *Session) handleError(gen uint64, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		return
	}

	s.state.Err = KindFromCode(code)
	s.state.Listening = false
	s.publishLocked()
}

func (s *Session) handleEnd(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		return
	}

	s.state.Listening = false
	s.publishLocked()
}

func (s *Session) publishLocked() {
	// Dropped snapshots are fine: consumers re-read State().
	_ = channels.SendNonBlock(s.updates, s.state)
}
