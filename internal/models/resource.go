package models

import "time"

// ResourceKind names the type of a remote resource created by the suite.
type ResourceKind string

const (
	ResourceSong     ResourceKind = "song"
	ResourcePlaylist ResourceKind = "playlist"
)

// Resource is a remote song or playlist created by a run.
//
// It is tracked as soon as the service returns its id and released once the
// service confirms the delete. An unreleased resource is a leak for sweep.
type Resource struct {
	record
	runID      string
	kind       ResourceKind
	remoteID   string
	name       string
	releasedAt *time.Time
}

// NewResource creates an unreleased resource record.
func NewResource(runID string, kind ResourceKind, remoteID, name string) *Resource {
	return &Resource{
		record:   newRecord(),
		runID:    runID,
		kind:     kind,
		remoteID: remoteID,
		name:     name,
	}
}

func (r *Resource) RunID() string          { return r.runID }
func (r *Resource) Kind() ResourceKind     { return r.kind }
func (r *Resource) RemoteID() string       { return r.remoteID }
func (r *Resource) Name() string           { return r.name }
func (r *Resource) ReleasedAt() *time.Time { return r.releasedAt }
func (r *Resource) Released() bool         { return r.releasedAt != nil }

func (r *Resource) SetReleasedAt(t *time.Time) { r.releasedAt = t }

func (r *Resource) Validate() error {
	return firstError(
		check("run_id", r.runID, "required"),
		check("kind", string(r.kind), "oneof=song playlist"),
		check("remote_id", r.remoteID, "required"),
	)
}
