package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/gmx/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgProgressUpdate MsgKind = iota
	MsgRunComplete
	MsgInterrupted
)

type runResult struct {
	report *tasks.Report
	err    error
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// runCompleteMsg is the constructor for [MsgRunComplete]
func runCompleteMsg(report *tasks.Report, err error) Msg {
	return Msg{kind: MsgRunComplete, data: runResult{report: report, err: err}}
}

// interruptedMsg is the constructor for [MsgInterrupted]
func interruptedMsg() Msg {
	return Msg{kind: MsgInterrupted}
}
