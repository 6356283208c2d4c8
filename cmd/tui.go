package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/gmx/internal/shared"
	"github.com/desertthunder/gmx/internal/tasks"
	"github.com/desertthunder/gmx/internal/ui"
)

// tuiLogPath receives logs while the TUI owns the terminal.
const tuiLogPath = "./tmp/gmx-tui.log"

// runTUI runs the suite inside the interactive terminal UI.
//
// The report is nil when the user quits before confirming the run.
func (r *Runner) runTUI(ctx context.Context, suite tasks.Suite, session *runSession) (*tasks.Report, error) {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, f, err := shared.NewFileLogger(tuiLogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file logger: %w", err)
	}
	defer f.Close()

	consoleLogger := r.logger
	fileLogger.SetLevel(consoleLogger.GetLevel())
	r.SetLogger(fileLogger)
	defer r.SetLogger(consoleLogger)

	run := func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*tasks.Report, error) {
		return session.run(ctx, suite, fileLogger, progress)
	}

	model := ui.NewModel(ctx, run, r.config.Service.BaseURL, suite)

	// Signals are handled by the root context: the model cancels the run on
	// ctx.Done and quits only after cleanup has returned.
	p := tea.NewProgram(model, tea.WithoutSignalHandler())

	_, err = p.Run()
	model.Stop()
	if err != nil {
		return nil, fmt.Errorf("error running TUI: %w", err)
	}

	return model.Report(), model.Err()
}
