package tui

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/exp/teatest"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/require"

	"github.com/amaki/voicereply/internal/mailapi"
	"github.com/amaki/voicereply/internal/speech"
)

//nolint:gochecknoinits // recommend for CI by bubbletea folks
func init() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

// outputChecker provides helpers for testing teatest output. WaitFor
// consumes the output stream, so the checker keeps everything read so
// far: repeated checks against a single rendered frame still see it.
type outputChecker struct {
	intervl, timeout time.Duration
	seen             bytes.Buffer
}

func defaultChecker() *outputChecker {
	return &outputChecker{
		intervl: 100 * time.Millisecond,
		timeout: 3 * time.Second,
	}
}

func (o *outputChecker) checkString(t *testing.T, tm *teatest.TestModel, substr string) {
	t.Helper()
	teatest.WaitFor(t, io.TeeReader(tm.Output(), &o.seen), func([]byte) bool {
		return bytes.Contains(o.seen.Bytes(), []byte(substr))
	},
		teatest.WithCheckInterval(o.intervl),
		teatest.WithDuration(o.timeout))
}

// fakeClient implements MailClient with scripted responses.
type fakeClient struct {
	mu sync.Mutex

	composeErrs  []error
	composeCalls int
	sendErr      error
	draftErr     error
}

func (f *fakeClient) ComposeReply(_ context.Context, _, rawText string) (*mailapi.ComposeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	call := f.composeCalls
	f.composeCalls++

	if call < len(f.composeErrs) && f.composeErrs[call] != nil {
		return nil, f.composeErrs[call]
	}

	return &mailapi.ComposeResult{
		ComposedBody:    "お世話になっております。" + rawText,
		ComposedSubject: "Re: 明日の打ち合わせの件",
	}, nil
}

func (f *fakeClient) SendReply(context.Context, string, string, string) (*mailapi.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.sendErr != nil {
		return nil, f.sendErr
	}

	return &mailapi.SendResult{Success: true, GoogleMessageID: "msg-1"}, nil
}

func (f *fakeClient) SaveDraft(context.Context, string, string, string) (*mailapi.DraftResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.draftErr != nil {
		return nil, f.draftErr
	}

	return &mailapi.DraftResult{Success: true, GoogleDraftID: "draft-1"}, nil
}

func testEmail() *mailapi.Email {
	return &mailapi.Email{
		ID:      "demo-1",
		From:    "tanaka@example.com",
		Subject: "明日の打ち合わせの件",
		Body:    "明日の打ち合わせですが、10時からに変更できますでしょうか。",
	}
}

// newFallbackModel builds a model with no recognition engine, so the
// recording phase uses the typed-input fallback.
func newFallbackModel(email *mailapi.Email, client MailClient) *Model {
	return New(Config{
		Email:      email,
		Client:     client,
		Session:    speech.NewSession(nil),
		Language:   "ja-JP",
		Authorized: true,
	})
}

func typeText(tm *teatest.TestModel, text string) {
	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

func TestModel_TypedFallbackComposeAndSend(t *testing.T) {
	client := &fakeClient{}
	m := newFallbackModel(testEmail(), client)
	tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(80, 24))
	checker := defaultChecker()

	// Idle shows the original email.
	checker.checkString(t, tm, "tanaka@example.com")

	// Start recording; without an engine the typed fallback appears.
	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	checker.checkString(t, tm, "音声入力が利用できません")

	typeText(tm, "明日十時で大丈夫です")
	tm.Send(tea.KeyMsg{Type: tea.KeyEsc})

	// Composition result arrives and the draft is shown.
	checker.checkString(t, tm, "返信の下書き")
	checker.checkString(t, tm, "お世話になっております。明日十時で大丈夫です")
	checker.checkString(t, tm, "Re: 明日の打ち合わせの件")

	// Send with confirmation.
	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	checker.checkString(t, tm, "この内容で送信しますか")

	tm.Send(tea.KeyMsg{Type: tea.KeyEnter})
	checker.checkString(t, tm, "返信を送信しました")

	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	tm.WaitFinished(t, teatest.WithFinalTimeout(2*time.Second))
}

func TestModel_ComposeFailureShowsErrorAndRetries(t *testing.T) {
	client := &fakeClient{composeErrs: []error{contextError("返信の作成に失敗しました")}}
	m := newFallbackModel(testEmail(), client)
	tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(80, 24))
	checker := defaultChecker()

	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	checker.checkString(t, tm, "音声入力が利用できません")

	typeText(tm, "承知しました")
	tm.Send(tea.KeyMsg{Type: tea.KeyEsc})

	checker.checkString(t, tm, "返信の作成に失敗しました")
	checker.checkString(t, tm, "再試行")

	// Retrying a compose failure restarts the dictation cycle: the
	// fallback input must be re-armed so a second dictation can be
	// committed and composed.
	tm.Send(tea.KeyMsg{Type: tea.KeyEnter})
	typeText(tm, "改めて承知しました")
	tm.Send(tea.KeyMsg{Type: tea.KeyEsc})

	checker.checkString(t, tm, "返信の下書き")
	checker.checkString(t, tm, "お世話になっております。改めて承知しました")

	client.mu.Lock()
	calls := client.composeCalls
	client.mu.Unlock()
	require.Equal(t, 2, calls, "retry must lead to a second compose call")

	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	tm.WaitFinished(t, teatest.WithFinalTimeout(2*time.Second))
}

// stubRecognizer records the callbacks it was built with so tests can
// drive recognition events.
type stubRecognizer struct {
	cb speech.Callbacks
}

func (r *stubRecognizer) Start() error { return nil }
func (r *stubRecognizer) Stop()        {}
func (r *stubRecognizer) Abort()       {}

type stubFactory struct {
	mu   sync.Mutex
	recs []*stubRecognizer
}

func (f *stubFactory) New(_ speech.Config, cb speech.Callbacks) (speech.Recognizer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec := &stubRecognizer{cb: cb}
	f.recs = append(f.recs, rec)

	return rec, nil
}

func (f *stubFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.recs)
}

func (f *stubFactory) last() *stubRecognizer {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.recs[len(f.recs)-1]
}

func TestModel_RetryAfterComposeFailureStartsNewCapture(t *testing.T) {
	client := &fakeClient{composeErrs: []error{contextError("返信の作成に失敗しました")}}
	factory := &stubFactory{}
	session := speech.NewSession(factory)

	m := New(Config{
		Email:      testEmail(),
		Client:     client,
		Session:    session,
		Language:   "ja-JP",
		Authorized: true,
	})
	tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(80, 24))
	checker := defaultChecker()

	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	checker.checkString(t, tm, "録音中")
	require.Eventually(t, func() bool { return factory.count() == 1 },
		2*time.Second, 50*time.Millisecond)

	// The engine delivers a final transcript and drains; composition
	// fails.
	rec := factory.last()
	rec.cb.OnResult(speech.Result{Text: "承知しました", Final: true})
	rec.cb.OnEnd()
	checker.checkString(t, tm, "返信の作成に失敗しました")

	// Retry must start a whole new capture cycle: a fresh recognizer
	// and a listening session, not just the Recording view.
	tm.Send(tea.KeyMsg{Type: tea.KeyEnter})
	require.Eventually(t, func() bool {
		return factory.count() == 2 && session.State().Listening
	}, 2*time.Second, 50*time.Millisecond,
		"retry must construct a fresh recognizer and start listening")

	tm.Send(tea.KeyMsg{Type: tea.KeyCtrlC})
	tm.WaitFinished(t, teatest.WithFinalTimeout(2*time.Second))
}

func TestModel_EmptyDictationFailsWithoutComposeCall(t *testing.T) {
	client := &fakeClient{}
	m := newFallbackModel(testEmail(), client)
	tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(80, 24))
	checker := defaultChecker()

	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	checker.checkString(t, tm, "音声入力が利用できません")

	// Commit with nothing typed.
	tm.Send(tea.KeyMsg{Type: tea.KeyEsc})
	checker.checkString(t, tm, "音声が認識できませんでした")

	client.mu.Lock()
	calls := client.composeCalls
	client.mu.Unlock()
	if calls != 0 {
		t.Fatalf("compose called %d times for empty dictation", calls)
	}

	tm.Send(tea.KeyMsg{Type: tea.KeyCtrlC})
	tm.WaitFinished(t, teatest.WithFinalTimeout(2*time.Second))
}

func TestModel_StoredDraftBootsComposed(t *testing.T) {
	email := testEmail()
	email.ComposedBody = "保存済みの下書き本文です。"
	email.ComposedSubject = "Re: 明日の打ち合わせの件"

	m := newFallbackModel(email, &fakeClient{})
	tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(80, 24))
	checker := defaultChecker()

	checker.checkString(t, tm, "返信の下書き")
	checker.checkString(t, tm, "下書き保存済み")
	checker.checkString(t, tm, "保存済みの下書き本文です。")

	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	tm.WaitFinished(t, teatest.WithFinalTimeout(2*time.Second))
}

func TestModel_RepliedEmailIsReadOnly(t *testing.T) {
	now := time.Now()
	email := testEmail()
	email.RepliedAt = &now

	client := &fakeClient{}
	m := newFallbackModel(email, client)
	tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(80, 24))
	checker := defaultChecker()

	checker.checkString(t, tm, "返信を送信しました")

	// Recording is refused on a replied email.
	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	checker.checkString(t, tm, "返信を送信しました")

	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	tm.WaitFinished(t, teatest.WithFinalTimeout(2*time.Second))
}

func TestModel_SaveDraftShowsIndicator(t *testing.T) {
	client := &fakeClient{}
	m := newFallbackModel(testEmail(), client)
	tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(80, 24))
	checker := defaultChecker()

	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	checker.checkString(t, tm, "音声入力が利用できません")

	typeText(tm, "承知しました")
	tm.Send(tea.KeyMsg{Type: tea.KeyEsc})
	checker.checkString(t, tm, "返信の下書き")

	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")})
	checker.checkString(t, tm, "下書き保存済み")

	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	tm.WaitFinished(t, teatest.WithFinalTimeout(2*time.Second))
}

// contextError is a trivial error type for scripting failures.
type contextError string

func (e contextError) Error() string { return string(e) }
