package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up     key.Binding
	down   key.Binding
	start  key.Binding
	cancel key.Binding
	rerun  key.Binding
	quit   key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		start:  key.NewBinding(key.WithKeys("y", "enter"), key.WithHelp("y", "start")),
		cancel: key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n", "cancel")),
		rerun:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "run again")),
		quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down},
		{k.start, k.cancel},
		{k.rerun, k.quit},
	}
}
