package models

import (
	"fmt"
	"time"
)

type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run is one persisted playlist generation.
type Run struct {
	id        string
	sequence  int
	createdAt time.Time

	PlaylistID   string
	ProfileCount int
	SongCount    int
	ArtistCount  int
	SkippedCount int
	Status       RunStatus
	Error        string
	Tracks       []PlaylistEntry
}

// NewRun creates an unsaved run with the given ID.
func NewRun(id string) *Run {
	return &Run{id: id, createdAt: time.Now().UTC()}
}

// RestoreRun rebuilds a run loaded from storage.
func RestoreRun(id string, sequence int, createdAt time.Time) *Run {
	return &Run{id: id, sequence: sequence, createdAt: createdAt}
}

func (r *Run) ID() string           { return r.id }
func (r *Run) Sequence() int        { return r.sequence }
func (r *Run) CreatedAt() time.Time { return r.createdAt }

// SetSequence is used by repositories after allocating the next sequence value.
func (r *Run) SetSequence(n int) { r.sequence = n }

func (r *Run) Validate() error {
	if r.id == "" {
		return fmt.Errorf("run id is required")
	}
	switch r.Status {
	case RunSucceeded:
		if r.PlaylistID == "" {
			return fmt.Errorf("successful run %s has no playlist id", r.id)
		}
	case RunFailed:
	default:
		return fmt.Errorf("run %s has unknown status %q", r.id, r.Status)
	}
	return nil
}

// URIs returns the track URIs in playlist order.
func (r *Run) URIs() []string {
	uris := make([]string, len(r.Tracks))
	for i, e := range r.Tracks {
		uris[i] = e.Track.URI
	}
	return uris
}

// ResolvedTrack is a cached query → track resolution with a usage count.
type ResolvedTrack struct {
	Kind  Source
	Query string
	Track CandidateTrack
	Hits  int
}
