// package models defines the persisted records of the gmx ledger
package models

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/desertthunder/gmx/internal/shared"
)

// Model defines the base interface for all persistent models in the ledger.
// Implementations are Run, StepResult and Resource.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(ctx context.Context, model T) error                      // Create inserts a new model into the database
	Get(ctx context.Context, id string) (T, error)                  // Get retrieves a model by its ID
	List(ctx context.Context, criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// record holds the identity and timestamps shared by every model.
type record struct {
	id        string
	createdAt time.Time
	updatedAt time.Time
}

func newRecord() record {
	now := time.Now().UTC()
	return record{createdAt: now, updatedAt: now}
}

func (r *record) ID() string               { return r.id }
func (r *record) CreatedAt() time.Time     { return r.createdAt }
func (r *record) UpdatedAt() time.Time     { return r.updatedAt }
func (r *record) SetID(id string)          { r.id = id }
func (r *record) SetCreatedAt(t time.Time) { r.createdAt = t }
func (r *record) SetUpdatedAt(t time.Time) { r.updatedAt = t }

var validate = validator.New()

// check validates a single field value against validator tags.
func check(field string, value any, tag string) error {
	if err := validate.Var(value, tag); err != nil {
		return fmt.Errorf("%w: %s failed on '%s'", shared.ErrInvalidInput, field, tag)
	}
	return nil
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
