package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/gmx/internal/models"
	"github.com/desertthunder/gmx/internal/shared"
)

// RunRepository implements models.Repository[*models.Run] for suite runs.
type RunRepository struct {
	db DBTX
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db DBTX) *RunRepository {
	return &RunRepository{db: db}
}

const runColumns = `id, sequence, base_url, status, passed, failed, skipped, retries, started_at, finished_at, created_at, updated_at`

// Create inserts a run with the next sequence number. An empty id is generated.
func (r *RunRepository) Create(ctx context.Context, run *models.Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(ctx, r.db, "runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	if run.ID() == "" {
		run.SetID(shared.GenerateID())
	}
	run.SetSequence(sequence)

	query := `INSERT INTO runs (` + runColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		run.ID(),
		sequence,
		run.BaseURL(),
		string(run.Status()),
		run.Passed(),
		run.Failed(),
		run.Skipped(),
		run.Retries(),
		run.StartedAt(),
		run.FinishedAt(),
		run.CreatedAt(),
		run.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	return nil
}

// Get retrieves a run by ID
func (r *RunRepository) Get(ctx context.Context, id string) (*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ?`

	run, err := r.scan(r.db.QueryRowContext(ctx, query, id))
	if isNoRows(err) {
		return nil, fmt.Errorf("%w: run %s", shared.ErrRunNotFound, id)
	}
	return run, err
}

// Update writes the status, counts and finish time of a run
func (r *RunRepository) Update(ctx context.Context, run *models.Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	run.SetUpdatedAt(now)

	query := `
		UPDATE runs
		SET status = ?, passed = ?, failed = ?, skipped = ?, retries = ?, finished_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		string(run.Status()),
		run.Passed(),
		run.Failed(),
		run.Skipped(),
		run.Retries(),
		run.FinishedAt(),
		now,
		run.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	return affected(result, fmt.Errorf("%w: run %s", shared.ErrRunNotFound, run.ID()))
}

// List retrieves runs, newest first.
//
// Criteria: "status" (string) filters by status; "limit" (int) bounds the result.
func (r *RunRepository) List(ctx context.Context, criteria map[string]any) ([]*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1 = 1`
	args := []any{}

	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

// scan reads a row into a [models.Run]
func (r *RunRepository) scan(row scanner) (*models.Run, error) {
	var (
		id         string
		sequence   int
		baseURL    string
		status     string
		passed     int
		failed     int
		skipped    int
		retries    int
		startedAt  time.Time
		finishedAt sql.NullTime
		createdAt  time.Time
		updatedAt  time.Time
	)

	err := row.Scan(&id, &sequence, &baseURL, &status, &passed, &failed, &skipped, &retries, &startedAt, &finishedAt, &createdAt, &updatedAt)
	if isNoRows(err) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run := models.NewRun(id, baseURL, startedAt)
	run.SetSequence(sequence)
	run.SetStatus(models.RunStatus(status))
	run.SetCounts(passed, failed, skipped, retries)
	run.SetCreatedAt(createdAt)
	run.SetUpdatedAt(updatedAt)
	if finishedAt.Valid {
		t := finishedAt.Time
		run.SetFinishedAt(&t)
	}

	return run, nil
}
