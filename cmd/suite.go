package main

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/gmx/internal/formatter"
	"github.com/desertthunder/gmx/internal/models"
	"github.com/desertthunder/gmx/internal/shared"
	"github.com/desertthunder/gmx/internal/tasks"
)

// RunSuite runs the live suite, records it in the ledger and writes the report.
//
// A failed step makes the command fail with [shared.ErrSuiteFailed] after the report is written.
func (r *Runner) RunSuite(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.Validate(); err != nil {
		return err
	}
	creds, err := r.credentials()
	if err != nil {
		return err
	}

	format := cmd.String("format")
	if format == "" {
		format = r.config.Report.Format
	}
	metricsPath := cmd.String("metrics")
	if metricsPath == "" {
		metricsPath = r.config.Report.MetricsFile
	}

	suite := tasks.DefaultSuite()
	session := &runSession{
		begin: func(ctx context.Context) (*tasks.State, error) {
			st := tasks.NewState(r.musicService(), r.config)
			st.Credentials = creds
			return st, nil
		},
		finish: func(*tasks.Report) {},
	}

	if !cmd.Bool("no-ledger") {
		ledger, closeLedger, err := r.openLedger()
		if err != nil {
			return err
		}
		defer closeLedger()

		newState := session.begin
		session.begin = func(ctx context.Context) (*tasks.State, error) {
			st, err := newState(ctx)
			if err != nil {
				return nil, err
			}
			if err := ledger.Runs.Create(ctx, models.NewRun(st.RunID, st.BaseURL, time.Now())); err != nil {
				return nil, fmt.Errorf("failed to record run: %w", err)
			}
			st.Tracker = ledger.Tracker
			return st, nil
		}
		session.finish = func(report *tasks.Report) {
			run, steps := report.Records()
			if err := ledger.Finish(context.WithoutCancel(ctx), run, steps); err != nil {
				r.logger.Error("failed to record results", "run", report.RunID, "error", err)
			}
		}
	}

	var report *tasks.Report
	if cmd.Bool("tui") {
		report, err = r.runTUI(ctx, suite, session)
	} else {
		report, err = r.runPlain(ctx, suite, session)
	}
	if err != nil {
		return err
	}
	if report == nil {
		return nil
	}

	if path := cmd.String("output"); path != "" {
		written, err := formatter.WriteReportFile(report, format, path)
		if err != nil {
			return err
		}
		r.logger.Info("report written", "path", written, "format", format)
	} else if err := formatter.WriteReport(r.output, report, format); err != nil {
		return err
	}

	if metricsPath != "" {
		if err := formatter.WriteMetrics(metricsPath, report); err != nil {
			return err
		}
		r.logger.Info("metrics written", "path", metricsPath)
	}

	if report.Failed() {
		return fmt.Errorf("%w: %d of %d steps failed (run %s)", shared.ErrSuiteFailed,
			report.Count(tasks.Failed), len(report.Results), report.RunID)
	}
	return nil
}

// runSession creates the state for each run and records each report.
//
// The TUI can rerun the suite, so every run gets its own state and run id.
type runSession struct {
	begin  func(ctx context.Context) (*tasks.State, error)
	finish func(report *tasks.Report)
}

// run executes suite once with a fresh state.
func (s *runSession) run(ctx context.Context, suite tasks.Suite, logger *log.Logger, progress chan<- tasks.ProgressUpdate) (*tasks.Report, error) {
	st, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	st.Logger = shared.WithLogger(logger, "run", shortRunID(st.RunID))

	report, err := tasks.NewRunner(suite).Run(ctx, st, progress)
	if report != nil {
		s.finish(report)
	}
	return report, err
}

// runPlain runs the suite and logs each progress update.
func (r *Runner) runPlain(ctx context.Context, suite tasks.Suite, session *runSession) (*tasks.Report, error) {
	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			switch update.Phase {
			case tasks.Retry:
				r.logger.Debug(update.Message)
			case tasks.Done:
				r.logger.Info("run complete", "result", update.Message)
			default:
				if res, ok := update.Data.(tasks.StepResult); ok && res.Outcome == tasks.Failed {
					r.logger.Error(update.Message)
				} else {
					r.logger.Info(update.Message)
				}
			}
		}
	}()

	report, err := session.run(ctx, suite, r.logger, progressCh)
	close(progressCh)
	<-done

	return report, err
}
