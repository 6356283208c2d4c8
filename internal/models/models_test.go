package models

import (
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/gmx/internal/shared"
)

func TestRun(t *testing.T) {
	t.Run("New Run Is Running", func(t *testing.T) {
		run := NewRun("run-1", "http://127.0.0.1:8080", time.Now())
		if run.Status() != RunRunning {
			t.Errorf("expected status %s, got %s", RunRunning, run.Status())
		}
		if run.FinishedAt() != nil {
			t.Error("expected no finished time")
		}
		if run.Duration() != 0 {
			t.Errorf("expected zero duration, got %v", run.Duration())
		}
		if err := run.Validate(); err != nil {
			t.Errorf("expected valid run, got %v", err)
		}
	})

	t.Run("Finish", func(t *testing.T) {
		start := time.Now()

		t.Run("Without Failures Passes", func(t *testing.T) {
			run := NewRun("run-1", "http://127.0.0.1:8080", start)
			run.Finish(start.Add(3*time.Second), 10, 0, 2, 4)

			if run.Status() != RunPassed {
				t.Errorf("expected status %s, got %s", RunPassed, run.Status())
			}
			if run.Skipped() != 2 || run.Retries() != 4 {
				t.Errorf("expected 2 skipped and 4 retries, got %d and %d", run.Skipped(), run.Retries())
			}
			if run.Duration() != 3*time.Second {
				t.Errorf("expected 3s duration, got %v", run.Duration())
			}
		})

		t.Run("With A Failure Fails", func(t *testing.T) {
			run := NewRun("run-1", "http://127.0.0.1:8080", start)
			run.Finish(start, 9, 1, 0, 0)

			if run.Status() != RunFailed {
				t.Errorf("expected status %s, got %s", RunFailed, run.Status())
			}
		})
	})

	t.Run("Validate", func(t *testing.T) {
		tests := []struct {
			name string
			run  *Run
		}{
			{"missing base url", NewRun("run-1", "", time.Now())},
			{"invalid base url", NewRun("run-1", "not a url", time.Now())},
			{"zero start", NewRun("run-1", "http://127.0.0.1:8080", time.Time{})},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := tt.run.Validate()
				if !errors.Is(err, shared.ErrInvalidInput) {
					t.Errorf("expected ErrInvalidInput, got %v", err)
				}
			})
		}

		t.Run("unknown status", func(t *testing.T) {
			run := NewRun("run-1", "http://127.0.0.1:8080", time.Now())
			run.SetStatus("paused")
			if err := run.Validate(); !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	})
}

func TestStepResult(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		step := NewStepResult("run-1", 0, "upload-auth", "song_create", "passed")
		step.SetAttempts(3)
		step.SetDuration(time.Second)

		if err := step.Validate(); err != nil {
			t.Errorf("expected valid step, got %v", err)
		}
		if step.Attempts() != 3 {
			t.Errorf("expected 3 attempts, got %d", step.Attempts())
		}
	})

	t.Run("Invalid Outcome", func(t *testing.T) {
		step := NewStepResult("run-1", 0, "upload-auth", "song_create", "errored")
		if err := step.Validate(); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Missing Run", func(t *testing.T) {
		step := NewStepResult("", 0, "upload-auth", "song_create", "passed")
		if err := step.Validate(); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestResource(t *testing.T) {
	t.Run("New Resource Is Unreleased", func(t *testing.T) {
		res := NewResource("run-1", ResourcePlaylist, "pl-1", "gmusicapi_test_playlist")
		if res.Released() {
			t.Error("expected unreleased resource")
		}
		if err := res.Validate(); err != nil {
			t.Errorf("expected valid resource, got %v", err)
		}

		now := time.Now()
		res.SetReleasedAt(&now)
		if !res.Released() {
			t.Error("expected released resource")
		}
	})

	t.Run("Invalid Kind", func(t *testing.T) {
		res := NewResource("run-1", ResourceKind("album"), "al-1", "")
		if err := res.Validate(); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Missing Remote ID", func(t *testing.T) {
		res := NewResource("run-1", ResourceSong, "", "")
		if err := res.Validate(); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}
