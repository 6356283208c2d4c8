package formatter

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/gmx/internal/tasks"
	tu "github.com/desertthunder/gmx/internal/testing"
)

func TestMetrics(t *testing.T) {
	t.Run("Observe", func(t *testing.T) {
		m := NewMetrics()
		m.Observe(sampleReport())

		families, err := m.Registry().Gather()
		if err != nil {
			t.Fatalf("failed to gather: %v", err)
		}

		values := make(map[string]float64)
		for _, mf := range families {
			for _, metric := range mf.GetMetric() {
				switch {
				case metric.GetCounter() != nil:
					values[mf.GetName()] += metric.GetCounter().GetValue()
				case metric.GetGauge() != nil:
					values[mf.GetName()] = metric.GetGauge().GetValue()
				case metric.GetHistogram() != nil:
					values[mf.GetName()] += float64(metric.GetHistogram().GetSampleCount())
				}
			}
		}

		if values["gmx_step_outcomes_total"] != 4 {
			t.Errorf("expected 4 outcomes, got %v", values["gmx_step_outcomes_total"])
		}
		if values["gmx_step_duration_seconds"] != 3 {
			t.Errorf("expected skipped step left out of durations, got %v samples", values["gmx_step_duration_seconds"])
		}
		if values["gmx_step_attempts_total"] != 4 {
			t.Errorf("expected 4 attempts, got %v", values["gmx_step_attempts_total"])
		}
		if values["gmx_retry_waits_total"] != 3 {
			t.Errorf("expected 3 retry waits, got %v", values["gmx_retry_waits_total"])
		}
		if values["gmx_run_failed"] != 1 {
			t.Errorf("expected failed run, got %v", values["gmx_run_failed"])
		}
		if values["gmx_run_duration_seconds"] != 4 {
			t.Errorf("expected 4s run, got %v", values["gmx_run_duration_seconds"])
		}
	})

	t.Run("passing run", func(t *testing.T) {
		report := sampleReport()
		report.Results = report.Results[:2]

		path := filepath.Join(t.TempDir(), "gmx.prom")
		if err := WriteMetrics(path, report); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		content := tu.MustReadFile(t, path)
		if !strings.Contains(content, "gmx_run_failed 0") {
			t.Errorf("expected run_failed 0, got: %s", content)
		}
		if !strings.Contains(content, `gmx_step_outcomes_total{group="upload-auth",outcome="passed",step="song_create"} 1`) {
			t.Errorf("expected song_create outcome, got: %s", content)
		}
	})

	t.Run("unwritable path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing", "gmx.prom")
		if err := WriteMetrics(path, &tasks.Report{}); err == nil {
			t.Error("expected error for missing directory")
		}
	})
}
