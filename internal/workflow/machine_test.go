package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthorized() *Machine {
	return New(Config{Authorized: true})
}

// composeMachine drives a machine through a successful compose so tests
// can start from the Composed phase.
func composeMachine(t *testing.T, m *Machine) Command {
	t.Helper()

	cmd := m.StartRecording()
	require.Equal(t, EffectStartCapture, cmd.Effect)

	cmd = m.CaptureStopped("お疲れ様です", "")
	require.Equal(t, EffectCompose, cmd.Effect)

	m.ComposeFinished(cmd.Gen, "清書されたメール本文", "Re: テスト件名", nil)
	require.Equal(t, PhaseComposed, m.Snapshot().Phase)

	return cmd
}

func TestMachine_InitialPhases(t *testing.T) {
	assert.Equal(t, PhaseIdle, New(Config{Authorized: true}).Snapshot().Phase)

	restored := New(Config{
		Authorized:  true,
		StoredDraft: &Draft{Body: "保存済み本文", Subject: "Re: 保存済み"},
	})
	snap := restored.Snapshot()
	assert.Equal(t, PhaseComposed, snap.Phase, "stored draft boots straight into Composed")
	require.NotNil(t, snap.Draft)
	assert.Equal(t, "保存済み本文", snap.Draft.Body)
	assert.True(t, snap.HasSavedDraft)

	replied := New(Config{Authorized: true, Replied: true})
	assert.Equal(t, PhaseSent, replied.Snapshot().Phase)
}

func TestMachine_RepliedEmailExposesNoMutations(t *testing.T) {
	m := New(Config{Authorized: true, Replied: true, StoredDraft: &Draft{Body: "送信済み"}})

	assert.Equal(t, EffectNone, m.StartRecording().Effect)
	assert.Equal(t, EffectNone, m.Send().Effect)
	assert.Equal(t, EffectNone, m.SaveDraft().Effect)
	assert.Equal(t, EffectNone, m.CaptureStopped("text", "").Effect)

	m.SetDraftBody("書き換え")
	assert.Equal(t, "送信済み", m.Snapshot().Draft.Body)
	assert.Equal(t, PhaseSent, m.Snapshot().Phase)
}

func TestMachine_ComposeScenario(t *testing.T) {
	m := newAuthorized()

	cmd := m.StartRecording()
	assert.Equal(t, PhaseRecording, m.Snapshot().Phase)
	assert.Equal(t, EffectStartCapture, cmd.Effect)

	cmd = m.CaptureStopped("お疲れ様です", "")
	assert.Equal(t, PhaseComposing, m.Snapshot().Phase)
	assert.Equal(t, "お疲れ様です", cmd.RawText)

	m.ComposeFinished(cmd.Gen, "清書されたメール本文", "Re: テスト件名", nil)

	snap := m.Snapshot()
	assert.Equal(t, PhaseComposed, snap.Phase)
	require.NotNil(t, snap.Draft)
	assert.Equal(t, "清書されたメール本文", snap.Draft.Body)
	assert.Equal(t, "Re: テスト件名", snap.Draft.Subject)
}

func TestMachine_CaptureStoppedFallsBackToInterim(t *testing.T) {
	m := newAuthorized()
	m.StartRecording()

	cmd := m.CaptureStopped("  ", "まだ確定していない文")
	assert.Equal(t, EffectCompose, cmd.Effect)
	assert.Equal(t, "まだ確定していない文", cmd.RawText)
}

func TestMachine_EmptySpeechNeverCallsComposer(t *testing.T) {
	m := newAuthorized()
	m.StartRecording()

	cmd := m.CaptureStopped("", "   ")
	assert.Equal(t, EffectNone, cmd.Effect)

	snap := m.Snapshot()
	assert.Equal(t, PhaseFailed, snap.Phase)
	assert.Equal(t, ErrorEmptySpeech, snap.ErrKind)
	assert.NotEmpty(t, snap.ErrMessage)
}

func TestMachine_DuplicateStopSignalsComposeOnce(t *testing.T) {
	m := newAuthorized()
	m.StartRecording()

	first := m.CaptureStopped("本文です", "")
	assert.Equal(t, EffectCompose, first.Effect)

	// The device may emit more than one "listening stopped" signal.
	second := m.CaptureStopped("本文です", "")
	assert.Equal(t, EffectNone, second.Effect)
	assert.Equal(t, PhaseComposing, m.Snapshot().Phase)
}

func TestMachine_ComposeTriggerResetsPerCycle(t *testing.T) {
	m := newAuthorized()
	m.StartRecording()
	cmd := m.CaptureStopped("一回目", "")
	m.ComposeFinished(cmd.Gen, "本文", "件名", nil)

	m.StartRecording()
	cmd = m.CaptureStopped("二回目", "")
	assert.Equal(t, EffectCompose, cmd.Effect, "new cycle re-arms the trigger")
	assert.Equal(t, "二回目", cmd.RawText)
}

func TestMachine_ComposeFailure(t *testing.T) {
	m := newAuthorized()
	m.StartRecording()
	cmd := m.CaptureStopped("本文", "")

	m.ComposeFinished(cmd.Gen, "", "", errors.New("返信の作成に失敗しました"))

	snap := m.Snapshot()
	assert.Equal(t, PhaseFailed, snap.Phase)
	assert.Equal(t, ErrorCompose, snap.ErrKind)
	assert.Equal(t, "返信の作成に失敗しました", snap.ErrMessage)

	retry := m.Retry()
	assert.Equal(t, EffectStartCapture, retry.Effect)
	assert.Equal(t, PhaseRecording, m.Snapshot().Phase)
	assert.Equal(t, ErrorNone, m.Snapshot().ErrKind)
}

func TestMachine_StaleSendCompletionDiscarded(t *testing.T) {
	m := newAuthorized()
	composeMachine(t, m)

	first := m.Send()
	m.SendFinished(first.Gen, errors.New("送信に失敗しました"))
	retry := m.Retry()
	require.Equal(t, PhaseSending, m.Snapshot().Phase)

	// A late duplicate completion of the first send must not resolve the
	// retried one.
	m.SendFinished(first.Gen, nil)
	assert.Equal(t, PhaseSending, m.Snapshot().Phase)

	m.SendFinished(retry.Gen, nil)
	assert.Equal(t, PhaseSent, m.Snapshot().Phase)
}

func TestMachine_BusyPhasesRefuseNewTriggers(t *testing.T) {
	m := newAuthorized()
	m.StartRecording()
	m.CaptureStopped("本文", "")
	require.Equal(t, PhaseComposing, m.Snapshot().Phase)

	assert.Equal(t, EffectNone, m.StartRecording().Effect)
	assert.Equal(t, EffectNone, m.Send().Effect)
	assert.Equal(t, EffectNone, m.SaveDraft().Effect)
	assert.Equal(t, EffectNone, m.Retry().Effect)
}

func TestMachine_ConfirmBackRoundTripKeepsDraft(t *testing.T) {
	m := newAuthorized()
	composeMachine(t, m)

	m.Confirm()
	assert.Equal(t, PhaseConfirming, m.Snapshot().Phase)
	m.Back()
	m.Confirm()
	m.Back()

	snap := m.Snapshot()
	assert.Equal(t, PhaseComposed, snap.Phase)
	assert.Equal(t, "清書されたメール本文", snap.Draft.Body)
	assert.Equal(t, "Re: テスト件名", snap.Draft.Subject)
}

func TestMachine_SendSuccessNotifiesReplied(t *testing.T) {
	notified := false
	m := New(Config{Authorized: true, OnReplied: func() { notified = true }})
	composeMachine(t, m)

	cmd := m.Send()
	assert.Equal(t, EffectSend, cmd.Effect)
	assert.Equal(t, PhaseSending, m.Snapshot().Phase)
	assert.Equal(t, "清書されたメール本文", cmd.Body)

	m.SendFinished(cmd.Gen, nil)
	snap := m.Snapshot()
	assert.Equal(t, PhaseSent, snap.Phase)
	assert.True(t, snap.Replied)
	assert.True(t, notified)
}

func TestMachine_SendFailureRetryReissuesIdenticalPayload(t *testing.T) {
	m := newAuthorized()
	composeMachine(t, m)

	cmd := m.Send()
	m.SendFinished(cmd.Gen, errors.New("送信に失敗しました"))

	snap := m.Snapshot()
	assert.Equal(t, PhaseFailed, snap.Phase)
	assert.Equal(t, ErrorSend, snap.ErrKind)
	assert.Equal(t, "送信に失敗しました", snap.ErrMessage)

	retry := m.Retry()
	assert.Equal(t, EffectSend, retry.Effect)
	assert.Equal(t, cmd.Body, retry.Body)
	assert.Equal(t, cmd.Subject, retry.Subject)
	assert.Equal(t, PhaseSending, m.Snapshot().Phase)
}

func TestMachine_SendFromConfirming(t *testing.T) {
	m := newAuthorized()
	composeMachine(t, m)
	m.Confirm()

	cmd := m.Send()
	assert.Equal(t, EffectSend, cmd.Effect)
}

func TestMachine_DraftSaveSetsFlagAndSurvivesSend(t *testing.T) {
	m := newAuthorized()
	composeMachine(t, m)

	cmd := m.SaveDraft()
	assert.Equal(t, EffectSaveDraft, cmd.Effect)
	assert.Equal(t, PhaseDraftSaving, m.Snapshot().Phase)

	m.DraftFinished(cmd.Gen, nil)
	snap := m.Snapshot()
	assert.Equal(t, PhaseComposed, snap.Phase)
	assert.True(t, snap.HasSavedDraft)

	cmd = m.Send()
	m.SendFinished(cmd.Gen, nil)
	assert.True(t, m.Snapshot().HasSavedDraft, "hasSavedDraft is not reset by Sent")
}

func TestMachine_DraftFailureRetry(t *testing.T) {
	m := newAuthorized()
	composeMachine(t, m)

	cmd := m.SaveDraft()
	m.DraftFinished(cmd.Gen, errors.New("下書きの保存に失敗しました"))

	snap := m.Snapshot()
	assert.Equal(t, ErrorDraft, snap.ErrKind)

	retry := m.Retry()
	assert.Equal(t, EffectSaveDraft, retry.Effect)
	assert.Equal(t, "清書されたメール本文", retry.Body)
}

func TestMachine_ReRecordClearsDraftKeepsSavedFlag(t *testing.T) {
	m := newAuthorized()
	composeMachine(t, m)

	cmd := m.SaveDraft()
	m.DraftFinished(cmd.Gen, nil)
	require.True(t, m.Snapshot().HasSavedDraft)

	m.StartRecording()

	snap := m.Snapshot()
	assert.Equal(t, PhaseRecording, snap.Phase)
	assert.Nil(t, snap.Draft)
	assert.True(t, snap.HasSavedDraft, "a remotely saved draft is not invalidated by re-recording")
}

func TestMachine_ReRecordFromConfirmingDiscardsDialog(t *testing.T) {
	m := newAuthorized()
	composeMachine(t, m)
	m.Confirm()

	cmd := m.StartRecording()
	assert.Equal(t, EffectStartCapture, cmd.Effect)
	assert.Equal(t, PhaseRecording, m.Snapshot().Phase)
}

func TestMachine_UnauthorizedNeverIssuesCalls(t *testing.T) {
	m := New(Config{Authorized: false})

	cmd := m.StartRecording()
	assert.Equal(t, EffectStartCapture, cmd.Effect, "capture itself needs no credential")

	cmd = m.CaptureStopped("本文です", "")
	assert.Equal(t, EffectNone, cmd.Effect)
	assert.Equal(t, PhaseRecording, m.Snapshot().Phase, "the call is simply never made")
}

func TestMachine_DraftEditing(t *testing.T) {
	m := newAuthorized()
	composeMachine(t, m)

	m.SetDraftBody("手直しした本文")
	m.SetDraftSubject("Re: 修正済み")

	snap := m.Snapshot()
	assert.Equal(t, "手直しした本文", snap.Draft.Body)
	assert.Equal(t, "Re: 修正済み", snap.Draft.Subject)

	cmd := m.Send()
	assert.Equal(t, "手直しした本文", cmd.Body)
	assert.Equal(t, "Re: 修正済み", cmd.Subject)
}

func TestMachine_NoEditingWhileBusy(t *testing.T) {
	m := newAuthorized()
	composeMachine(t, m)

	m.Send()
	m.SetDraftBody("途中で書き換え")
	assert.Equal(t, "清書されたメール本文", m.Snapshot().Draft.Body)
}

func TestMachine_SnapshotDraftIsACopy(t *testing.T) {
	m := newAuthorized()
	composeMachine(t, m)

	snap := m.Snapshot()
	snap.Draft.Body = "外から書き換え"

	assert.Equal(t, "清書されたメール本文", m.Snapshot().Draft.Body)
}

func TestMachine_FailurePreservesDraft(t *testing.T) {
	m := newAuthorized()
	composeMachine(t, m)

	cmd := m.Send()
	m.SendFinished(cmd.Gen, errors.New("送信に失敗しました"))

	snap := m.Snapshot()
	require.NotNil(t, snap.Draft, "composed text is preserved across a Send error")
	assert.Equal(t, "清書されたメール本文", snap.Draft.Body)
}

func TestMachine_CancelRecordingReturnsToIdle(t *testing.T) {
	m := newAuthorized()
	m.StartRecording()

	m.CancelRecording()
	assert.Equal(t, PhaseIdle, m.Snapshot().Phase)

	// A capture-stop notification arriving after the cancel must not
	// trigger composition.
	assert.Equal(t, Command{}, m.CaptureStopped("お疲れ様です", ""))
	assert.Equal(t, PhaseIdle, m.Snapshot().Phase)
}

func TestMachine_CancelRecordingOnlyFromRecording(t *testing.T) {
	m := newAuthorized()
	composeMachine(t, m)

	m.CancelRecording()
	assert.Equal(t, PhaseComposed, m.Snapshot().Phase)
}
