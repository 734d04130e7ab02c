// Package speech implements the dictation capture session and the
// recognizer contract it drives.
package speech

// Result carries one recognition event from an engine. For final results
// Text holds the full finalized-so-far transcript, not a delta; interim
// results carry the current unconfirmed guess.
type Result struct {
	Text  string
	Final bool
}

// Callbacks are wired into a recognizer at construction time and fired
// from the engine's own goroutines.
type Callbacks struct {
	OnResult func(Result)
	OnError  func(code string)
	OnEnd    func()
}

// Config configures one recognizer lifetime.
type Config struct {
	// Language is a BCP 47 tag, e.g. "ja-JP".
	Language string
	// Continuous keeps the engine capturing across pauses instead of
	// ending after the first utterance.
	Continuous bool
	// Interim enables unconfirmed partial results.
	Interim bool
}

// Recognizer is one start-to-stop lifetime of a speech-to-text engine.
// A recognizer is never restarted; the session builds a fresh one per
// generation.
type Recognizer interface {
	// Start begins capture. Callbacks may fire from engine goroutines
	// until OnEnd is delivered.
	Start() error

	// Stop requests a graceful stop. The engine keeps delivering
	// results until it emits OnEnd; a stop request is not instantaneous.
	Stop()

	// Abort tears the engine down without waiting for pending results.
	Abort()
}

// Factory builds a fresh Recognizer for each capture session generation.
// A session constructed without a factory reports itself unavailable and
// the UI falls back to text entry.
type Factory interface {
	New(cfg Config, cb Callbacks) (Recognizer, error)
}
