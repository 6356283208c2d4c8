package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/gmx/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	ConfirmView ViewState = iota
	RunView
	ResultView
)

// maxLines is the number of finished steps kept on screen while running.
const maxLines = 12

// RunFunc starts a run and reports progress on the channel until it returns.
type RunFunc func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*tasks.Report, error)

// Model represents the TUI application state.
type Model struct {
	ctx         context.Context
	cancel      context.CancelFunc
	view        ViewState
	run         RunFunc
	target      string
	groups      int
	total       int
	width       int
	height      int
	spinner     spinner.Model
	results     list.Model
	progressCh  chan tasks.ProgressUpdate
	doneCh      chan runResult
	runDone     chan struct{}
	progress    tasks.ProgressUpdate
	lines       []string
	retries     int
	cancelled   bool
	// interrupted is set once the parent context is done; the program quits after the run returns.
	interrupted bool
	report      *tasks.Report
	err         error
	help        help.Model
	keys        keyMap
}

// NewModel creates a TUI model that runs suite against target through run.
func NewModel(ctx context.Context, run RunFunc, target string, suite tasks.Suite) *Model {
	return &Model{
		ctx:     ctx,
		view:    ConfirmView,
		run:     run,
		target:  target,
		groups:  len(suite.Groups),
		total:   suite.Total(),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.title.UnsetMarginBottom())),
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Report returns the report of the last completed run.
func (m *Model) Report() *tasks.Report { return m.report }

// Err returns the error of the last completed run.
func (m *Model) Err() error { return m.err }

// Init watches the parent context; the run itself waits for confirmation.
func (m *Model) Init() tea.Cmd {
	done := m.ctx.Done()
	if done == nil {
		return nil
	}
	return func() tea.Msg {
		<-done
		return interruptedMsg()
	}
}

// Stop cancels an in-flight run and blocks until it has returned.
//
// Call it after the program exits so cleanup never races the caller's teardown.
func (m *Model) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	if m.runDone != nil {
		<-m.runDone
	}
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.view == ResultView {
			m.results.SetSize(max(msg.Width-4, 0), max(msg.Height-8, 0))
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case RunView:
			return m.handleRunKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case spinner.TickMsg:
		if m.view != RunView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		switch msg.kind {
		case MsgProgressUpdate:
			m.applyProgress(msg.data.(tasks.ProgressUpdate))
			return m, m.waitForProgress()
		case MsgRunComplete:
			res := msg.data.(runResult)
			m.finish(res.report, res.err)
			if m.interrupted {
				return m, tea.Quit
			}
			return m, nil
		case MsgInterrupted:
			return m, m.interrupt()
		}
	}

	if m.view == ResultView {
		var cmd tea.Cmd
		m.results, cmd = m.results.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case ConfirmView:
		return m.renderConfirm()
	case RunView:
		return m.renderRun()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.start):
		return m, m.startRun()
	case key.Matches(msg, m.keys.cancel), key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	}
	return m, nil
}

// handleRunKeys cancels the run on quit; the view stays until cleanup has finished.
func (m *Model) handleRunKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.quit) && !m.cancelled {
		m.cancelled = true
		if m.cancel != nil {
			m.cancel()
		}
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.results.FilterState() != list.Filtering {
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.rerun) && !m.interrupted:
			return m, m.startRun()
		}
	}

	var cmd tea.Cmd
	m.results, cmd = m.results.Update(msg)
	return m, cmd
}

// interrupt reacts to the parent context ending. A running suite is already
// cancelled through its derived context, so the view waits for its cleanup.
func (m *Model) interrupt() tea.Cmd {
	m.interrupted = true
	if m.view == RunView {
		m.cancelled = true
		return nil
	}
	return tea.Quit
}

func (m *Model) startRun() tea.Cmd {
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel
	m.view = RunView
	m.progress = tasks.ProgressUpdate{}
	m.lines = nil
	m.retries = 0
	m.cancelled = false
	m.report = nil
	m.err = nil

	progress := make(chan tasks.ProgressUpdate, 64)
	done := make(chan runResult, 1)
	finished := make(chan struct{})
	m.progressCh = progress
	m.doneCh = done
	m.runDone = finished

	run := m.run
	go func() {
		defer close(finished)
		report, err := run(ctx, progress)
		done <- runResult{report: report, err: err}
		close(progress)
	}()

	return tea.Batch(m.spinner.Tick, m.waitForProgress())
}

func (m *Model) waitForProgress() tea.Cmd {
	progress, done := m.progressCh, m.doneCh
	return func() tea.Msg {
		if progress == nil {
			return runCompleteMsg(m.report, m.err)
		}

		update, ok := <-progress
		if !ok {
			res := <-done
			return runCompleteMsg(res.report, res.err)
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) applyProgress(update tasks.ProgressUpdate) {
	m.progress = update

	switch data := update.Data.(type) {
	case tasks.RetryInfo:
		m.retries++
	case tasks.StepResult:
		line := fmt.Sprintf("%s %s/%s", styles.Outcome(data.Outcome).Render(data.Outcome.Symbol()), data.Group, data.Step)
		if data.Err != nil {
			line += styles.help.Render(": " + data.Err.Error())
		}
		m.lines = append(m.lines, line)
		if len(m.lines) > maxLines {
			m.lines = m.lines[len(m.lines)-maxLines:]
		}
	}
}

func (m *Model) finish(report *tasks.Report, err error) {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.progressCh = nil
	m.doneCh = nil
	m.report = report
	m.err = err
	m.view = ResultView

	m.results = list.New(stepItems(report), list.NewDefaultDelegate(), max(m.width-4, 0), max(m.height-8, 0))
	if report != nil {
		m.results.Title = resultsTitle(report)
	}
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render(fmt.Sprintf("Run the live suite against %s?", m.target))
	info := fmt.Sprintf("\nGroups: %d\nSteps: %d\n\nA test song and playlist will be created and deleted.\n", m.groups, m.total)

	helpKeys := []key.Binding{m.keys.start, m.keys.cancel, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}

func (m *Model) renderRun() string {
	title := styles.title.Render("Running Suite")

	status := m.progress.Message
	if status == "" {
		status = "Starting..."
	}
	if m.progress.Total > 0 {
		status = fmt.Sprintf("%s %s", m.progress.Phase, status)
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s\n\n%s %s\n", title, m.spinner.View(), status))
	if m.retries > 0 {
		b.WriteString(styles.skipped.Render(fmt.Sprintf("waited %d times for the library to converge", m.retries)) + "\n")
	}
	if m.cancelled {
		b.WriteString(styles.failed.Render("cancelling, cleanup steps still run...") + "\n")
	}
	b.WriteString("\n" + strings.Join(m.lines, "\n"))

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.quit})
	return fmt.Sprintf("%s\n\n%s", b.String(), helpView)
}

func (m *Model) renderResult() string {
	helpKeys := []key.Binding{m.keys.rerun, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	if m.err != nil {
		return styles.failed.Render(fmt.Sprintf("Run failed: %v", m.err)) + "\n\n" + helpView
	}
	if m.report == nil {
		return styles.failed.Render("No report available") + "\n\n" + helpView
	}

	var banner string
	if m.report.Failed() {
		banner = styles.failed.Render("✗ Suite failed")
	} else {
		banner = styles.passed.Render("✓ Suite passed")
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", banner, m.results.View(), helpView)
}
