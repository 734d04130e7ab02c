package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings for the reply workflow.
type KeyMap struct {
	Record      key.Binding
	Stop        key.Binding
	Cancel      key.Binding
	Confirm     key.Binding
	Send        key.Binding
	SaveDraft   key.Binding
	EditBody    key.Binding
	EditSubject key.Binding
	Retry       key.Binding
	Quit        key.Binding
	ForceQuit   key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Record: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "録音"),
		),
		Stop: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "録音を停止"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "キャンセル"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "送信する"),
		),
		Send: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "送信"),
		),
		SaveDraft: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "下書き保存"),
		),
		EditBody: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "本文を編集"),
		),
		EditSubject: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "件名を編集"),
		),
		Retry: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "再試行"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "終了"),
		),
		ForceQuit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "強制終了"),
		),
	}
}
