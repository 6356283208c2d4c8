package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/gmx/internal/models"
	"github.com/desertthunder/gmx/internal/shared"
)

// StepResultRepository implements models.Repository[*models.StepResult] for per-step outcomes.
type StepResultRepository struct {
	db DBTX
}

// NewStepResultRepository creates a new StepResultRepository with the given database connection
func NewStepResultRepository(db DBTX) *StepResultRepository {
	return &StepResultRepository{db: db}
}

const stepColumns = `id, run_id, position, group_name, step, outcome, attempts, duration_ms, message, created_at`

// Create inserts a step result. The run must already exist.
func (r *StepResultRepository) Create(ctx context.Context, step *models.StepResult) error {
	if err := step.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	step.SetID(shared.GenerateID())

	query := `INSERT INTO step_results (` + stepColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		step.ID(),
		step.RunID(),
		step.Position(),
		step.Group(),
		step.Step(),
		step.Outcome(),
		step.Attempts(),
		step.Duration().Milliseconds(),
		nullable(step.Message()),
		step.CreatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert step result: %w", err)
	}

	return nil
}

// Get retrieves a step result by ID
func (r *StepResultRepository) Get(ctx context.Context, id string) (*models.StepResult, error) {
	query := `SELECT ` + stepColumns + ` FROM step_results WHERE id = ?`

	step, err := r.scan(r.db.QueryRowContext(ctx, query, id))
	if isNoRows(err) {
		return nil, fmt.Errorf("%w: step result %s", shared.ErrResourceNotFound, id)
	}
	return step, err
}

// List retrieves step results in suite order.
//
// Criteria: "run_id" (string) restricts to one run; "outcome" (string) filters by outcome.
func (r *StepResultRepository) List(ctx context.Context, criteria map[string]any) ([]*models.StepResult, error) {
	query := `SELECT ` + stepColumns + ` FROM step_results WHERE 1 = 1`
	args := []any{}

	if runID, ok := criteria["run_id"].(string); ok && runID != "" {
		query += " AND run_id = ?"
		args = append(args, runID)
	}

	if outcome, ok := criteria["outcome"].(string); ok && outcome != "" {
		query += " AND outcome = ?"
		args = append(args, outcome)
	}

	query += " ORDER BY run_id, position ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query step results: %w", err)
	}
	defer rows.Close()

	var steps []*models.StepResult
	for rows.Next() {
		step, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return steps, nil
}

// scan reads a row into a [models.StepResult]
func (r *StepResultRepository) scan(row scanner) (*models.StepResult, error) {
	var (
		id         string
		runID      string
		position   int
		group      string
		name       string
		outcome    string
		attempts   int
		durationMS int64
		message    sql.NullString
		createdAt  time.Time
	)

	err := row.Scan(&id, &runID, &position, &group, &name, &outcome, &attempts, &durationMS, &message, &createdAt)
	if isNoRows(err) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan step result: %w", err)
	}

	step := models.NewStepResult(runID, position, group, name, outcome)
	step.SetID(id)
	step.SetAttempts(attempts)
	step.SetDuration(time.Duration(durationMS) * time.Millisecond)
	step.SetMessage(message.String)
	step.SetCreatedAt(createdAt)
	step.SetUpdatedAt(createdAt)

	return step, nil
}
