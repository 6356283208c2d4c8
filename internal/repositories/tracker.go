package repositories

import (
	"context"
	"fmt"

	"github.com/desertthunder/gmx/internal/models"
)

// ResourceTracker records resources as the suite creates and deletes them.
//
// It satisfies the tracker interface of the tasks package.
type ResourceTracker struct {
	repo *ResourceRepository
}

// NewResourceTracker creates a new ResourceTracker with the given repository
func NewResourceTracker(repo *ResourceRepository) *ResourceTracker {
	return &ResourceTracker{repo: repo}
}

// Track records that runID created a remote resource.
func (a *ResourceTracker) Track(ctx context.Context, runID string, kind models.ResourceKind, remoteID, name string) error {
	if err := a.repo.Create(ctx, models.NewResource(runID, kind, remoteID, name)); err != nil {
		return fmt.Errorf("failed to track %s %s: %w", kind, remoteID, err)
	}
	return nil
}

// Release records that the remote resource was deleted.
func (a *ResourceTracker) Release(ctx context.Context, kind models.ResourceKind, remoteID string) error {
	return a.repo.Release(ctx, kind, remoteID)
}

// Unreleased lists resources of kind still present remotely as far as the ledger knows.
func (a *ResourceTracker) Unreleased(ctx context.Context, kind models.ResourceKind) ([]*models.Resource, error) {
	return a.repo.Unreleased(ctx, kind)
}
