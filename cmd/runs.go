package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/gmx/internal/formatter"
	"github.com/desertthunder/gmx/internal/models"
	"github.com/desertthunder/gmx/internal/repositories"
	"github.com/desertthunder/gmx/internal/shared"
)

type runJSON struct {
	ID         string     `json:"id"`
	Sequence   int        `json:"sequence"`
	BaseURL    string     `json:"base_url"`
	Status     string     `json:"status"`
	Passed     int        `json:"passed"`
	Failed     int        `json:"failed"`
	Skipped    int        `json:"skipped"`
	Retries    int        `json:"retries"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// RunsList lists recorded runs, newest first.
func (r *Runner) RunsList(ctx context.Context, cmd *cli.Command) error {
	ledger, closeLedger, err := r.openLedger()
	if err != nil {
		return err
	}
	defer closeLedger()

	runs, err := ledger.Runs.List(ctx, map[string]any{
		"status": cmd.String("status"),
		"limit":  int(cmd.Int("limit")),
	})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		out := make([]runJSON, 0, len(runs))
		for _, run := range runs {
			out = append(out, runJSON{
				ID:         run.ID(),
				Sequence:   run.Sequence(),
				BaseURL:    run.BaseURL(),
				Status:     string(run.Status()),
				Passed:     run.Passed(),
				Failed:     run.Failed(),
				Skipped:    run.Skipped(),
				Retries:    run.Retries(),
				StartedAt:  run.StartedAt(),
				FinishedAt: run.FinishedAt(),
			})
		}
		return r.writeJSON(out, true)
	}

	_, err = r.output.Write(formatter.RunsToText(runs))
	return err
}

// RunsShow prints the steps of a run. The id may be a unique prefix.
func (r *Runner) RunsShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: run id", shared.ErrMissingArgument)
	}

	ledger, closeLedger, err := r.openLedger()
	if err != nil {
		return err
	}
	defer closeLedger()

	run, err := findRun(ctx, ledger, id)
	if err != nil {
		return err
	}

	steps, err := ledger.Steps.List(ctx, map[string]any{"run_id": run.ID()})
	if err != nil {
		return err
	}

	r.writePlainHeader(fmt.Sprintf("Run #%d %s (%s)", run.Sequence(), run.ID(), run.Status()))
	r.writePlain("Target: %s\n", run.BaseURL())
	r.writePlain("Started: %s\n\n", run.StartedAt().Format(time.RFC3339))

	_, err = r.output.Write(formatter.StepsToText(steps))
	return err
}

// RunsResources lists every tracked resource that was never released.
func (r *Runner) RunsResources(ctx context.Context, cmd *cli.Command) error {
	ledger, closeLedger, err := r.openLedger()
	if err != nil {
		return err
	}
	defer closeLedger()

	resources, err := ledger.Resources.List(ctx, map[string]any{"unreleased": true})
	if err != nil {
		return err
	}

	if len(resources) == 0 {
		return r.writePlain("✓ Nothing left behind\n")
	}

	r.writePlainHeader(fmt.Sprintf("%s left behind", shared.Pluralize(len(resources), "resource")))
	for _, res := range resources {
		r.writePlain("%-8s %s %q (run %s)\n", res.Kind(), res.RemoteID(), res.Name(), shortRunID(res.RunID()))
	}
	return r.writePlainln("Run 'gmx sweep' to delete them.")
}

// findRun resolves a full run id, or a prefix matching exactly one run.
func findRun(ctx context.Context, ledger *repositories.Ledger, id string) (*models.Run, error) {
	run, err := ledger.Runs.Get(ctx, id)
	if err == nil {
		return run, nil
	}
	if !errors.Is(err, shared.ErrRunNotFound) {
		return nil, err
	}

	runs, err := ledger.Runs.List(ctx, nil)
	if err != nil {
		return nil, err
	}

	var matches []*models.Run
	for _, run := range runs {
		if strings.HasPrefix(run.ID(), id) {
			matches = append(matches, run)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", shared.ErrRunNotFound, id)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("%w: %s matches %d runs", shared.ErrInvalidArgument, id, len(matches))
	}
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
