package tasks

import (
	"fmt"
	"time"

	"github.com/desertthunder/gmx/internal/shared"
)

// ProgressUpdate represents a progress event during a suite run or sweep.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within the run
	Total   int    // Total steps in the run
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	Login Phase = iota
	Songs
	Playlists
	Search
	Cleanup
	Logout
	Retry
	Sweeping
	Done
)

func (p Phase) String() string {
	switch p {
	case Login:
		return "login"
	case Songs:
		return "songs"
	case Playlists:
		return "playlists"
	case Search:
		return "search"
	case Cleanup:
		return "cleanup"
	case Logout:
		return "logout"
	case Retry:
		return "retry"
	case Sweeping:
		return "sweep"
	case Done:
		return "done"
	default:
		return ""
	}
}

// RetryInfo is the Data of a [Retry] update.
type RetryInfo struct {
	Step    string
	Attempt int
	Wait    time.Duration
	Err     error
}

func stepStartedUpdate(step, total int, group, name string, phase Phase) ProgressUpdate {
	return ProgressUpdate{
		Phase:   phase,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s/%s...", step, total, group, name),
	}
}

func stepFinishedUpdate(step, total int, res StepResult) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] %s %s/%s (%s)", step, total, res.Outcome.Symbol(), res.Group, res.Step, shared.FormatDuration(res.Duration))
	if res.Err != nil {
		msg += ": " + res.Err.Error()
	}
	return ProgressUpdate{
		Phase:   res.Phase,
		Step:    step,
		Total:   total,
		Message: msg,
		Data:    res,
	}
}

func retryUpdate(step, total int, info RetryInfo) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Retry,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("%s not converged (attempt %d), retrying in %s", info.Step, info.Attempt, shared.FormatDuration(info.Wait)),
		Data:    info,
	}
}

func runDoneUpdate(total int, report *Report) ProgressUpdate {
	return ProgressUpdate{
		Phase: Done,
		Step:  total,
		Total: total,
		Message: fmt.Sprintf("%d passed, %d failed, %d skipped",
			report.Count(Passed), report.Count(Failed), report.Count(Skipped)),
		Data: report,
	}
}

func sweepUpdate(step, total int, kind, id string, err error) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] ✓ deleted %s %s", step, total, kind, id)
	if err != nil {
		msg = fmt.Sprintf("[%d/%d] ✗ %s %s: %v", step, total, kind, id, err)
	}
	return ProgressUpdate{
		Phase:   Sweeping,
		Step:    step,
		Total:   total,
		Message: msg,
	}
}
