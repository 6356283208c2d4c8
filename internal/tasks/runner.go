package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/gmx/internal/models"
	"github.com/desertthunder/gmx/internal/shared"
)

// Outcome is the result of a single step.
type Outcome int

const (
	Passed Outcome = iota
	Failed
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Passed:
		return "passed"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	default:
		return ""
	}
}

// Symbol is the one-character marker used in progress lines and reports.
func (o Outcome) Symbol() string {
	switch o {
	case Passed:
		return "✓"
	case Failed:
		return "✗"
	default:
		return "-"
	}
}

type skipError struct {
	reason string
}

func (e *skipError) Error() string { return e.reason }

// Skip returns an error that marks the current step as skipped rather than failed.
func Skip(format string, args ...any) error {
	return &skipError{reason: fmt.Sprintf(format, args...)}
}

// IsSkip reports whether err is, or wraps, a [Skip] error.
func IsSkip(err error) bool {
	var s *skipError
	return errors.As(err, &s)
}

// Step is one ordered check in a [Group].
type Step struct {
	Name  string
	Phase Phase

	// After names earlier steps of the same group that must have passed.
	After []string

	// Requires is checked before Run; any error skips the step.
	Requires func(st *State) error

	// AlwaysRun steps ignore After and a failed setup, and run even after
	// the context is cancelled. Requires still applies.
	AlwaysRun bool

	Run func(ctx context.Context, st *State) error
}

// Group is a sequence of steps sharing one session.
//
// A nil Setup logs in (with upload auth when UploadAuth is set) and checks the
// session is authenticated. A nil Teardown logs out and checks a session ended.
// Teardown runs whenever the service reports an authenticated session.
type Group struct {
	Name       string
	UploadAuth bool
	Setup      func(ctx context.Context, st *State) error
	Steps      []Step
	Teardown   func(ctx context.Context, st *State) error
}

// Suite is the ordered list of groups to run.
type Suite struct {
	Groups []Group
}

// Validate checks that step names are unique within a group and that every
// After reference names an earlier step.
func (s Suite) Validate() error {
	if len(s.Groups) == 0 {
		return fmt.Errorf("%w: suite has no groups", shared.ErrInvalidInput)
	}

	for _, g := range s.Groups {
		if g.Name == "" {
			return fmt.Errorf("%w: group name is required", shared.ErrInvalidInput)
		}

		seen := make(map[string]bool, len(g.Steps))
		for _, step := range g.Steps {
			if step.Name == "" {
				return fmt.Errorf("%w: group %s has a step without a name", shared.ErrInvalidInput, g.Name)
			}
			if step.Run == nil {
				return fmt.Errorf("%w: step %s/%s has nothing to run", shared.ErrInvalidInput, g.Name, step.Name)
			}
			if seen[step.Name] {
				return fmt.Errorf("%w: step %s/%s is defined twice", shared.ErrInvalidInput, g.Name, step.Name)
			}
			for _, dep := range step.After {
				if !seen[dep] {
					return fmt.Errorf("%w: step %s/%s runs after %q, which is not an earlier step", shared.ErrInvalidInput, g.Name, step.Name, dep)
				}
			}
			seen[step.Name] = true
		}
	}
	return nil
}

// Total is the number of results a run produces: every step plus each group's setup and teardown.
func (s Suite) Total() int {
	n := 0
	for _, g := range s.Groups {
		n += len(g.Steps) + 2
	}
	return n
}

// StepResult is the outcome of one step, setup or teardown.
type StepResult struct {
	Group    string
	Step     string
	Phase    Phase
	Outcome  Outcome
	Attempts int // polls made while waiting for convergence
	Duration time.Duration
	Err      error // failure, or the reason for a skip
}

// Message returns the failure or skip reason.
func (r StepResult) Message() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Report aggregates the results of a run.
type Report struct {
	RunID      string
	Service    string
	BaseURL    string
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []StepResult
	Retries    int // total waits across all steps
}

// Failed reports whether any step failed.
func (r *Report) Failed() bool {
	return r.Count(Failed) > 0
}

// Count returns the number of results with outcome o.
func (r *Report) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Result returns the result for group/step.
func (r *Report) Result(group, step string) (StepResult, bool) {
	for _, res := range r.Results {
		if res.Group == group && res.Step == step {
			return res, true
		}
	}
	return StepResult{}, false
}

// Records converts the report into ledger models.
func (r *Report) Records() (*models.Run, []*models.StepResult) {
	run := models.NewRun(r.RunID, r.BaseURL, r.StartedAt)
	run.Finish(r.FinishedAt, r.Count(Passed), r.Count(Failed), r.Count(Skipped), r.Retries)

	steps := make([]*models.StepResult, 0, len(r.Results))
	for i, res := range r.Results {
		step := models.NewStepResult(r.RunID, i, res.Group, res.Step, res.Outcome.String())
		step.SetAttempts(res.Attempts)
		step.SetDuration(res.Duration)
		step.SetMessage(res.Message())
		steps = append(steps, step)
	}
	return run, steps
}

// Runner executes a [Suite] sequentially.
type Runner struct {
	suite Suite
}

// NewRunner creates a Runner for suite.
func NewRunner(suite Suite) *Runner {
	return &Runner{suite: suite}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Run executes every group in order and returns the report.
//
// Step failures are recorded in the report, not returned. The error is
// non-nil only when the suite is invalid or st has no service.
func (r *Runner) Run(ctx context.Context, st *State, progress chan<- ProgressUpdate) (*Report, error) {
	if err := r.suite.Validate(); err != nil {
		return nil, err
	}
	if st == nil || st.Service == nil {
		return nil, fmt.Errorf("%w: service not initialized", shared.ErrServiceUnavailable)
	}
	defer st.removeSample()

	var (
		total  = r.suite.Total()
		pos    = 0
		logger = st.logger()
		report = &Report{
			RunID:     st.RunID,
			Service:   st.Service.Name(),
			BaseURL:   st.BaseURL,
			StartedAt: time.Now(),
		}
	)

	st.onRetry = func(info RetryInfo) {
		sendProgress(progress, retryUpdate(pos, total, info))
	}
	defer func() { st.onRetry = nil }()

	logger.Info("starting run", "run", st.RunID, "service", report.Service, "steps", total)

	for _, g := range r.suite.Groups {
		passed := make(map[string]bool, len(g.Steps))

		pos++
		setup := r.exec(ctx, st, g.Name, Step{Name: "setup", Phase: Login, Run: g.setup()}, pos, total, progress)
		report.Results = append(report.Results, setup)

		for _, step := range g.Steps {
			pos++

			var res StepResult
			if reason := blocked(ctx, step, setup, passed); reason != nil && !step.AlwaysRun {
				res = StepResult{Group: g.Name, Step: step.Name, Phase: step.Phase, Outcome: Skipped, Err: reason}
				logger.Warn("step skipped", "group", g.Name, "step", step.Name, "reason", reason)
				sendProgress(progress, stepFinishedUpdate(pos, total, res))
			} else {
				res = r.exec(ctx, st, g.Name, step, pos, total, progress)
			}

			if res.Outcome == Passed {
				passed[step.Name] = true
			}
			report.Results = append(report.Results, res)
		}

		pos++
		teardown := Step{Name: "teardown", Phase: Logout, AlwaysRun: true, Run: g.teardown()}
		if st.Service.IsAuthenticated() {
			report.Results = append(report.Results, r.exec(ctx, st, g.Name, teardown, pos, total, progress))
		} else {
			res := StepResult{Group: g.Name, Step: teardown.Name, Phase: Logout, Outcome: Skipped, Err: Skip("no session to end")}
			sendProgress(progress, stepFinishedUpdate(pos, total, res))
			report.Results = append(report.Results, res)
		}
	}

	report.FinishedAt = time.Now()
	report.Retries = st.retries

	logger.Info("run finished",
		"run", st.RunID,
		"passed", report.Count(Passed),
		"failed", report.Count(Failed),
		"skipped", report.Count(Skipped),
		"retries", report.Retries,
		"duration", shared.FormatDuration(report.Duration()),
	)
	sendProgress(progress, runDoneUpdate(total, report))

	return report, nil
}

// blocked returns the reason a non-always-run step cannot run.
func blocked(ctx context.Context, step Step, setup StepResult, passed map[string]bool) error {
	if setup.Outcome != Passed {
		return Skip("group setup did not pass")
	}
	if err := ctx.Err(); err != nil {
		return Skip("run cancelled: %v", err)
	}
	for _, dep := range step.After {
		if !passed[dep] {
			return Skip("%s did not pass", dep)
		}
	}
	return nil
}

// exec runs one step and classifies its error.
func (r *Runner) exec(ctx context.Context, st *State, group string, step Step, pos, total int, progress chan<- ProgressUpdate) StepResult {
	sendProgress(progress, stepStartedUpdate(pos, total, group, step.Name, step.Phase))

	st.step = group + "/" + step.Name
	st.attempts = 0
	if step.AlwaysRun {
		ctx = context.WithoutCancel(ctx)
	}

	start := time.Now()
	var err error
	if step.Requires != nil {
		if reason := step.Requires(st); reason != nil {
			err = Skip("%v", reason)
		}
	}
	if err == nil {
		err = step.Run(ctx, st)
	}

	res := StepResult{
		Group:    group,
		Step:     step.Name,
		Phase:    step.Phase,
		Attempts: st.attempts,
		Duration: time.Since(start),
		Err:      err,
	}

	logger := shared.WithLogger(st.logger(), "group", group, "step", step.Name)
	switch {
	case err == nil:
		res.Outcome = Passed
		logger.Info("step passed", "duration", shared.FormatDuration(res.Duration))
	case IsSkip(err):
		res.Outcome = Skipped
		logger.Warn("step skipped", "reason", err)
	default:
		res.Outcome = Failed
		logger.Error("step failed", "err", err, "attempts", res.Attempts)
	}

	sendProgress(progress, stepFinishedUpdate(pos, total, res))
	return res
}
