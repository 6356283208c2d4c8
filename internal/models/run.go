package models

import (
	"fmt"
	"time"

	"github.com/desertthunder/gmx/internal/shared"
)

// RunStatus is the lifecycle state of a [Run].
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunPassed  RunStatus = "passed"
	RunFailed  RunStatus = "failed"
)

// Run is one execution of the live suite against a service.
//
// A run is inserted as running when the suite starts, so a crash leaves a
// running row behind; it is finished with the step counts once the suite ends.
type Run struct {
	record
	sequence   int
	baseURL    string
	status     RunStatus
	passed     int
	failed     int
	skipped    int
	retries    int
	startedAt  time.Time
	finishedAt *time.Time
}

// NewRun creates a running run. An empty id is generated on insert.
func NewRun(id, baseURL string, startedAt time.Time) *Run {
	r := &Run{
		record:    newRecord(),
		baseURL:   baseURL,
		status:    RunRunning,
		startedAt: startedAt.UTC(),
	}
	r.id = id
	return r
}

func (r *Run) Sequence() int          { return r.sequence }
func (r *Run) BaseURL() string        { return r.baseURL }
func (r *Run) Status() RunStatus      { return r.status }
func (r *Run) Passed() int            { return r.passed }
func (r *Run) Failed() int            { return r.failed }
func (r *Run) Skipped() int           { return r.skipped }
func (r *Run) Retries() int           { return r.retries }
func (r *Run) StartedAt() time.Time   { return r.startedAt }
func (r *Run) FinishedAt() *time.Time { return r.finishedAt }

func (r *Run) SetSequence(seq int)        { r.sequence = seq }
func (r *Run) SetStatus(status RunStatus) { r.status = status }
func (r *Run) SetFinishedAt(t *time.Time) { r.finishedAt = t }
func (r *Run) SetCounts(passed, failed, skipped, retries int) {
	r.passed, r.failed, r.skipped, r.retries = passed, failed, skipped, retries
}

// Finish records the outcome counts and marks the run passed or failed.
func (r *Run) Finish(at time.Time, passed, failed, skipped, retries int) {
	r.SetCounts(passed, failed, skipped, retries)
	r.status = RunPassed
	if failed > 0 {
		r.status = RunFailed
	}
	t := at.UTC()
	r.finishedAt = &t
	r.updatedAt = t
}

// Duration returns how long the run took, or zero while it is running.
func (r *Run) Duration() time.Duration {
	if r.finishedAt == nil {
		return 0
	}
	return r.finishedAt.Sub(r.startedAt)
}

func (r *Run) Validate() error {
	if r.startedAt.IsZero() {
		return fmt.Errorf("%w: started_at is required", shared.ErrInvalidInput)
	}
	return firstError(
		check("base_url", r.baseURL, "required,url"),
		check("status", string(r.status), "oneof=running passed failed"),
		check("counts", r.passed+r.failed+r.skipped, "gte=0"),
	)
}
