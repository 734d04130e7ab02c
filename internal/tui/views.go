package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/amaki/voicereply/internal/tui/style"
	"github.com/amaki/voicereply/internal/workflow"
)

// View renders the current phase.
func (m *Model) View() string {
	snap := m.machine.Snapshot()

	switch snap.Phase {
	case workflow.PhaseIdle:
		return m.viewIdle()
	case workflow.PhaseRecording:
		return m.viewRecording()
	case workflow.PhaseComposing:
		return m.viewBusy("清書中", "口述内容から返信を作成しています")
	case workflow.PhaseComposed:
		return m.viewComposed(snap)
	case workflow.PhaseConfirming:
		return m.viewConfirming(snap)
	case workflow.PhaseSending:
		return m.viewBusy("送信中", "返信を送信しています")
	case workflow.PhaseSent:
		return m.viewSent()
	case workflow.PhaseDraftSaving:
		return m.viewBusy("保存中", "下書きを保存しています")
	case workflow.PhaseFailed:
		return m.viewFailed(snap)
	}

	return ""
}

func (m *Model) viewIdle() string {
	var sb strings.Builder

	sb.WriteString(m.viewEmailHeader())
	sb.WriteString("\n")
	sb.WriteString(wrapText(m.email.Body, m.width-4))
	sb.WriteString("\n\n")

	sb.WriteString(renderKeyHelp(m.keys.Record, "  "))
	sb.WriteString(renderKeyHelp(m.keys.Quit, "\n"))

	return sb.String()
}

func (m *Model) viewRecording() string {
	if m.usingFallback {
		return m.viewFallbackInput()
	}

	var sb strings.Builder

	if m.capture.HasError() {
		sb.WriteString(style.Warning.Render(m.capture.Err.Message()))
		sb.WriteString("\n\n")
		sb.WriteString(renderKeyHelp(m.keys.Record, "  "))
		sb.WriteString(renderKeyHelp(m.keys.Cancel, "\n"))

		return sb.String()
	}

	sb.WriteString(m.spin.Spinner.View())
	sb.WriteString(" ")
	sb.WriteString(style.Title.Render("録音中"))
	sb.WriteString("\n\n")

	if m.capture.FinalText != "" {
		sb.WriteString(wrapText(m.capture.FinalText, m.width-4))
		sb.WriteString("\n")
	}
	if m.capture.InterimText != "" {
		sb.WriteString(style.Muted.Render(wrapText(m.capture.InterimText, m.width-4)))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	sb.WriteString(renderKeyHelp(m.keys.Stop, "  "))
	sb.WriteString(renderKeyHelp(m.keys.Cancel, "\n"))

	return sb.String()
}

func (m *Model) viewFallbackInput() string {
	var sb strings.Builder

	sb.WriteString(style.Warning.Render("音声入力が利用できません。返信内容を入力してください"))
	sb.WriteString("\n\n")
	sb.WriteString(m.fallbackArea.View())
	sb.WriteString("\n\n")
	sb.WriteString(style.Help.Render("[") + style.Key.Render("esc") + style.Help.Render("] 入力を確定"))
	sb.WriteString("\n")

	return sb.String()
}

func (m *Model) viewBusy(title, subtitle string) string {
	m.spin.Title = title
	m.spin.Subtitle = subtitle
	m.spin.Help = "しばらくお待ちください"

	return m.spin.View()
}

func (m *Model) viewComposed(snap workflow.Snapshot) string {
	var sb strings.Builder

	sb.WriteString(style.Title.Render("返信の下書き"))
	if snap.HasSavedDraft {
		sb.WriteString("  ")
		sb.WriteString(style.Success.Render("下書き保存済み"))
	}
	sb.WriteString("\n\n")

	if snap.Draft != nil {
		sb.WriteString(style.Label.Render("件名: "))
		if m.editing == editSubject {
			sb.WriteString(m.subjectInput.View())
		} else {
			sb.WriteString(snap.Draft.Subject)
		}
		sb.WriteString("\n\n")

		if m.editing == editBody {
			sb.WriteString(m.bodyArea.View())
		} else {
			sb.WriteString(style.Viewport.Render(wrapText(snap.Draft.Body, m.width-6)))
		}
		sb.WriteString("\n\n")
	}

	if m.editing != editNone {
		sb.WriteString(style.Help.Render("[") + style.Key.Render("esc") + style.Help.Render("] 編集を確定"))
		sb.WriteString("\n")

		return sb.String()
	}

	sb.WriteString(renderKeyHelp(m.keys.Send, "  "))
	sb.WriteString(renderKeyHelp(m.keys.SaveDraft, "  "))
	sb.WriteString(renderKeyHelp(m.keys.Record, "\n"))
	sb.WriteString(renderKeyHelp(m.keys.EditBody, "  "))
	sb.WriteString(renderKeyHelp(m.keys.EditSubject, "  "))
	sb.WriteString(renderKeyHelp(m.keys.Quit, "\n"))

	return sb.String()
}

func (m *Model) viewConfirming(snap workflow.Snapshot) string {
	var sb strings.Builder

	sb.WriteString(style.Title.Render("この内容で送信しますか?"))
	sb.WriteString("\n\n")

	if snap.Draft != nil {
		sb.WriteString(style.Label.Render("件名: "))
		sb.WriteString(snap.Draft.Subject)
		sb.WriteString("\n\n")
		sb.WriteString(style.Viewport.Render(wrapText(snap.Draft.Body, m.width-6)))
		sb.WriteString("\n\n")
	}

	sb.WriteString(renderKeyHelp(m.keys.Confirm, "  "))
	sb.WriteString(renderKeyHelp(m.keys.Cancel, "  "))
	sb.WriteString(renderKeyHelp(m.keys.Record, "\n"))

	return sb.String()
}

func (m *Model) viewSent() string {
	var sb strings.Builder

	sb.WriteString(style.Success.Render("返信を送信しました"))
	sb.WriteString("\n\n")
	sb.WriteString(m.viewEmailHeader())
	sb.WriteString("\n")
	sb.WriteString(renderKeyHelp(m.keys.Quit, "\n"))

	return sb.String()
}

func (m *Model) viewFailed(snap workflow.Snapshot) string {
	var sb strings.Builder

	sb.WriteString(style.Error.Render(snap.ErrMessage))
	sb.WriteString("\n\n")

	sb.WriteString(renderKeyHelp(m.keys.Retry, "  "))
	if snap.ErrKind == workflow.ErrorCompose || snap.ErrKind == workflow.ErrorEmptySpeech {
		sb.WriteString(renderKeyHelp(m.keys.Record, "  "))
	}
	sb.WriteString(renderKeyHelp(m.keys.Quit, "\n"))

	return sb.String()
}

func (m *Model) viewEmailHeader() string {
	var sb strings.Builder

	sb.WriteString(style.Label.Render("差出人: "))
	sb.WriteString(m.email.From)
	sb.WriteString("\n")
	sb.WriteString(style.Label.Render("件名: "))
	sb.WriteString(m.email.Subject)
	sb.WriteString("\n")

	return sb.String()
}

func renderKeyHelp(keyBinding key.Binding, suffix string) string {
	return style.Help.Render("[") + style.Key.Render(keyBinding.Help().Key) +
		style.Help.Render("] ") +
		style.Help.Render(keyBinding.Help().Desc) +
		suffix
}

// wrapText wraps the given text to fit within the specified width using
// lipgloss, so long lines wrap instead of being truncated.
func wrapText(text string, width int) string {
	if width <= 0 {
		return text
	}

	return lipgloss.NewStyle().Width(width).Render(text)
}
