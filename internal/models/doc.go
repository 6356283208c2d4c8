// Package models defines the persisted entities of the gmx ledger.
//
// The ledger records three things:
//   - [Run] : one execution of the live suite, with outcome counts
//   - [StepResult] : the outcome of a single step within a run
//   - [Resource] : a song or playlist the suite created on the remote service
//
// All entities implement [Model], which provides the id, timestamps and
// validation. Validation uses validator tags on individual fields and wraps
// [shared.ErrInvalidInput]. The [Repository] interface defines the storage
// operations the repositories package implements for each type.
package models
