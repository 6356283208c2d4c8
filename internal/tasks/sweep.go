package tasks

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/desertthunder/gmx/internal/models"
	"github.com/desertthunder/gmx/internal/services"
	"github.com/desertthunder/gmx/internal/shared"
)

// Ledger lists and releases tracked resources.
type Ledger interface {
	Unreleased(ctx context.Context, kind models.ResourceKind) ([]*models.Resource, error)
	Release(ctx context.Context, kind models.ResourceKind, remoteID string) error
}

// SweepOpts contains configuration for a sweep.
type SweepOpts struct {
	ByName       bool   // Also delete user playlists named PlaylistName or PlaylistName_mod
	PlaylistName string // Test playlist name
	Concurrency  int    // Concurrent deletes (default: 4)
	DryRun       bool   // List what would be deleted without deleting
}

// SweepResult lists what a sweep deleted.
type SweepResult struct {
	Playlists []string
	Songs     []string
}

// Total returns the number of deleted resources.
func (r *SweepResult) Total() int {
	return len(r.Playlists) + len(r.Songs)
}

// Sweep deletes leaked resources: every unreleased playlist, then every unreleased song.
//
// The service must already be logged in. Per-resource failures do not stop
// the sweep; they are combined into the returned error. A resource the
// service no longer knows is released without error.
func Sweep(
	ctx context.Context,
	progress chan<- ProgressUpdate,
	srv services.Service,
	ledger Ledger,
	opts SweepOpts,
) (*SweepResult, error) {
	if srv == nil {
		return nil, fmt.Errorf("%w: service not initialized", shared.ErrServiceUnavailable)
	}
	if ledger == nil {
		return nil, fmt.Errorf("%w: ledger not initialized", shared.ErrMissingConfig)
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}

	playlists, err := remoteIDs(ctx, ledger, models.ResourcePlaylist)
	if err != nil {
		return nil, err
	}
	if opts.ByName && opts.PlaylistName != "" {
		ids, err := srv.GetAllPlaylistIDs(ctx, false, true)
		if err != nil {
			return nil, fmt.Errorf("failed to list playlists: %w", err)
		}
		for _, name := range []string{opts.PlaylistName, opts.PlaylistName + "_mod"} {
			playlists = appendUnique(playlists, ids.User[name]...)
		}
	}

	songs, err := remoteIDs(ctx, ledger, models.ResourceSong)
	if err != nil {
		return nil, err
	}

	result := &SweepResult{}
	if opts.DryRun {
		result.Playlists = playlists
		result.Songs = songs
		return result, nil
	}

	s := &sweeper{
		progress: progress,
		ledger:   ledger,
		limit:    opts.Concurrency,
		total:    len(playlists) + len(songs),
	}

	result.Playlists = s.deleteAll(ctx, models.ResourcePlaylist, playlists, func(ctx context.Context, id string) error {
		_, err := srv.DeletePlaylist(ctx, id)
		if errors.Is(err, shared.ErrPlaylistNotFound) {
			return nil
		}
		return err
	})
	result.Songs = s.deleteAll(ctx, models.ResourceSong, songs, func(ctx context.Context, id string) error {
		_, err := srv.DeleteSongs(ctx, id)
		if errors.Is(err, shared.ErrSongNotFound) {
			return nil
		}
		return err
	})

	return result, s.errs
}

type sweeper struct {
	progress chan<- ProgressUpdate
	ledger   Ledger
	limit    int
	total    int

	mu   sync.Mutex
	done int
	errs error
}

// deleteAll deletes ids with bounded concurrency and returns those deleted, in input order.
func (s *sweeper) deleteAll(ctx context.Context, kind models.ResourceKind, ids []string, del func(context.Context, string) error) []string {
	ok := make([]bool, len(ids))

	var g errgroup.Group
	g.SetLimit(s.limit)

	for i, id := range ids {
		g.Go(func() error {
			err := del(ctx, id)
			if err == nil {
				err = s.ledger.Release(ctx, kind, id)
			}

			s.mu.Lock()
			s.done++
			step := s.done
			if err != nil {
				s.errs = multierr.Append(s.errs, fmt.Errorf("%s %s: %w", kind, id, err))
			} else {
				ok[i] = true
			}
			s.mu.Unlock()

			sendProgress(s.progress, sweepUpdate(step, s.total, string(kind), id, err))
			return nil
		})
	}
	_ = g.Wait()

	deleted := make([]string, 0, len(ids))
	for i, id := range ids {
		if ok[i] {
			deleted = append(deleted, id)
		}
	}
	return deleted
}

func remoteIDs(ctx context.Context, ledger Ledger, kind models.ResourceKind) ([]string, error) {
	resources, err := ledger.Unreleased(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to list unreleased %ss: %w", kind, err)
	}
	ids := make([]string, 0, len(resources))
	for _, r := range resources {
		ids = appendUnique(ids, r.RemoteID())
	}
	return ids, nil
}

func appendUnique(ids []string, more ...string) []string {
	for _, id := range more {
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids
}
