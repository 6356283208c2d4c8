package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/desertthunder/gmx/internal/models"
)

// Ledger groups the repositories over one database.
type Ledger struct {
	Runs      *RunRepository
	Steps     *StepResultRepository
	Resources *ResourceRepository
	Tracker   *ResourceTracker

	db *sql.DB
}

// NewLedger creates repositories sharing db.
func NewLedger(db *sql.DB) *Ledger {
	resources := NewResourceRepository(db)
	return &Ledger{
		Runs:      NewRunRepository(db),
		Steps:     NewStepResultRepository(db),
		Resources: resources,
		Tracker:   NewResourceTracker(resources),
		db:        db,
	}
}

// Finish writes a finished run and its step results in one transaction.
//
// On error nothing is written and the run keeps its running status.
func (l *Ledger) Finish(ctx context.Context, run *models.Run, steps []*models.StepResult) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := NewRunRepository(tx).Update(ctx, run); err != nil {
		return err
	}
	stepRepo := NewStepResultRepository(tx)
	for _, step := range steps {
		if err := stepRepo.Create(ctx, step); err != nil {
			return fmt.Errorf("failed to record step %s: %w", step.Step(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", run.ID(), err)
	}
	return nil
}
