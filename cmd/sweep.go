package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/gmx/internal/shared"
	"github.com/desertthunder/gmx/internal/tasks"
)

// Sweep deletes resources the ledger still holds as unreleased.
func (r *Runner) Sweep(ctx context.Context, cmd *cli.Command) error {
	ledger, closeLedger, err := r.openLedger()
	if err != nil {
		return err
	}
	defer closeLedger()

	svc, logout, err := r.login(ctx, false)
	if err != nil {
		return err
	}
	defer logout()

	opts := tasks.SweepOpts{
		ByName:       cmd.Bool("by-name"),
		PlaylistName: r.config.Suite.PlaylistName,
		Concurrency:  int(cmd.Int("concurrency")),
		DryRun:       cmd.Bool("dry-run"),
	}
	r.logger.Info("sweeping", "by_name", opts.ByName, "dry_run", opts.DryRun)

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			r.writePlain("%s\n", update.Message)
		}
	}()

	result, err := tasks.Sweep(ctx, progressCh, svc, ledger.Tracker, opts)
	close(progressCh)
	<-done

	if result != nil {
		if opts.DryRun {
			r.writePlainHeader("Would delete")
			for _, id := range result.Playlists {
				r.writePlain("playlist %s\n", id)
			}
			for _, id := range result.Songs {
				r.writePlain("song %s\n", id)
			}
		} else {
			r.writePlainln("✓ Deleted %s and %s",
				shared.Pluralize(len(result.Playlists), "playlist"),
				shared.Pluralize(len(result.Songs), "song"))
		}
	}

	if err != nil {
		if result == nil {
			return err
		}
		return fmt.Errorf("%w: %v", shared.ErrSweepPartial, err)
	}
	return nil
}
