package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/gmx/internal/models"
	"github.com/desertthunder/gmx/internal/shared"
)

// ResourceRepository implements models.Repository[*models.Resource] for remote resources created by runs.
//
// A (kind, remote id) pair is unique: tracking it again re-opens the record for the new run.
type ResourceRepository struct {
	db DBTX
}

// NewResourceRepository creates a new ResourceRepository with the given database connection
func NewResourceRepository(db DBTX) *ResourceRepository {
	return &ResourceRepository{db: db}
}

const resourceColumns = `id, run_id, kind, remote_id, name, created_at, released_at`

// Create inserts a resource, or re-opens an existing record with the same kind and remote id.
func (r *ResourceRepository) Create(ctx context.Context, res *models.Resource) error {
	if err := res.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	res.SetID(shared.GenerateID())

	query := `
		INSERT INTO resources (` + resourceColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, NULL)
		ON CONFLICT (kind, remote_id) DO UPDATE
		SET run_id = excluded.run_id, name = excluded.name, created_at = excluded.created_at, released_at = NULL
	`

	_, err := r.db.ExecContext(ctx, query,
		res.ID(),
		res.RunID(),
		string(res.Kind()),
		res.RemoteID(),
		nullable(res.Name()),
		res.CreatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert resource: %w", err)
	}

	return nil
}

// Get retrieves a resource by its ledger ID
func (r *ResourceRepository) Get(ctx context.Context, id string) (*models.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources WHERE id = ?`

	res, err := r.scan(r.db.QueryRowContext(ctx, query, id))
	if isNoRows(err) {
		return nil, fmt.Errorf("%w: %s", shared.ErrResourceNotFound, id)
	}
	return res, err
}

// GetByRemoteID retrieves a resource by kind and remote id
func (r *ResourceRepository) GetByRemoteID(ctx context.Context, kind models.ResourceKind, remoteID string) (*models.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources WHERE kind = ? AND remote_id = ?`

	res, err := r.scan(r.db.QueryRowContext(ctx, query, string(kind), remoteID))
	if isNoRows(err) {
		return nil, fmt.Errorf("%w: %s %s", shared.ErrResourceNotFound, kind, remoteID)
	}
	return res, err
}

// List retrieves resources in creation order.
//
// Criteria: "kind" ([models.ResourceKind] or string), "run_id" (string),
// "unreleased" (bool) keeps only resources not yet deleted remotely.
func (r *ResourceRepository) List(ctx context.Context, criteria map[string]any) ([]*models.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources WHERE 1 = 1`
	args := []any{}

	switch kind := criteria["kind"].(type) {
	case models.ResourceKind:
		query += " AND kind = ?"
		args = append(args, string(kind))
	case string:
		if kind != "" {
			query += " AND kind = ?"
			args = append(args, kind)
		}
	}

	if runID, ok := criteria["run_id"].(string); ok && runID != "" {
		query += " AND run_id = ?"
		args = append(args, runID)
	}

	if unreleased, ok := criteria["unreleased"].(bool); ok && unreleased {
		query += " AND released_at IS NULL"
	}

	query += " ORDER BY created_at ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query resources: %w", err)
	}
	defer rows.Close()

	var resources []*models.Resource
	for rows.Next() {
		res, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		resources = append(resources, res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return resources, nil
}

// Unreleased lists resources of kind that were created but never deleted remotely.
func (r *ResourceRepository) Unreleased(ctx context.Context, kind models.ResourceKind) ([]*models.Resource, error) {
	return r.List(ctx, map[string]any{"kind": kind, "unreleased": true})
}

// Release marks a resource as deleted remotely. Releasing an unknown or
// already released resource is a no-op.
func (r *ResourceRepository) Release(ctx context.Context, kind models.ResourceKind, remoteID string) error {
	query := `UPDATE resources SET released_at = ? WHERE kind = ? AND remote_id = ? AND released_at IS NULL`

	if _, err := r.db.ExecContext(ctx, query, time.Now().UTC(), string(kind), remoteID); err != nil {
		return fmt.Errorf("failed to release resource: %w", err)
	}
	return nil
}

// scan reads a row into a [models.Resource]
func (r *ResourceRepository) scan(row scanner) (*models.Resource, error) {
	var (
		id         string
		runID      string
		kind       string
		remoteID   string
		name       sql.NullString
		createdAt  time.Time
		releasedAt sql.NullTime
	)

	err := row.Scan(&id, &runID, &kind, &remoteID, &name, &createdAt, &releasedAt)
	if isNoRows(err) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan resource: %w", err)
	}

	res := models.NewResource(runID, models.ResourceKind(kind), remoteID, name.String)
	res.SetID(id)
	res.SetCreatedAt(createdAt)
	res.SetUpdatedAt(createdAt)
	if releasedAt.Valid {
		t := releasedAt.Time
		res.SetReleasedAt(&t)
	}

	return res, nil
}
