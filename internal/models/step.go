package models

import "time"

// StepResult is the persisted outcome of one suite step.
type StepResult struct {
	record
	runID    string
	position int
	group    string
	step     string
	outcome  string
	attempts int
	duration time.Duration
	message  string
}

// NewStepResult creates a step result at position within its run.
func NewStepResult(runID string, position int, group, step, outcome string) *StepResult {
	return &StepResult{
		record:   newRecord(),
		runID:    runID,
		position: position,
		group:    group,
		step:     step,
		outcome:  outcome,
	}
}

func (s *StepResult) RunID() string           { return s.runID }
func (s *StepResult) Position() int           { return s.position }
func (s *StepResult) Group() string           { return s.group }
func (s *StepResult) Step() string            { return s.step }
func (s *StepResult) Outcome() string         { return s.outcome }
func (s *StepResult) Attempts() int           { return s.attempts }
func (s *StepResult) Duration() time.Duration { return s.duration }
func (s *StepResult) Message() string         { return s.message }

func (s *StepResult) SetAttempts(n int)           { s.attempts = n }
func (s *StepResult) SetDuration(d time.Duration) { s.duration = d }
func (s *StepResult) SetMessage(msg string)       { s.message = msg }

func (s *StepResult) Validate() error {
	return firstError(
		check("run_id", s.runID, "required"),
		check("position", s.position, "gte=0"),
		check("group", s.group, "required"),
		check("step", s.step, "required"),
		check("outcome", s.outcome, "oneof=passed failed skipped"),
		check("attempts", s.attempts, "gte=0"),
	)
}
