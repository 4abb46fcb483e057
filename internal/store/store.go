// Package store persists import artifacts: the merged batch, the bounded run
// history, the schedule status, and per-source snapshots with their markers.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/couchcryptid/orca-sightings-etl/internal/domain"
)

// ErrNotFound is returned when an artifact has never been written.
var ErrNotFound = errors.New("artifact not found")

// Store is the persistence contract the orchestrator, scheduler, and HTTP
// API share.
type Store interface {
	SaveMerged(ctx context.Context, batch domain.MergedBatch) error
	LoadMerged(ctx context.Context) (domain.MergedBatch, error)

	// AppendRun prepends run to the history and truncates it to limit.
	AppendRun(ctx context.Context, run domain.ImportRun, limit int) error
	// Runs returns the history most-recent-first; empty when none exist.
	Runs(ctx context.Context) ([]domain.ImportRun, error)

	SaveSchedule(ctx context.Context, status domain.ScheduleStatus) error
	LoadSchedule(ctx context.Context) (domain.ScheduleStatus, error)

	// SaveSource writes a source's last successful sightings and its
	// last-import marker.
	SaveSource(ctx context.Context, tag string, snap domain.SourceSnapshot) error
	// LoadSource returns ErrNotFound until sightings have been saved, even
	// when a marker exists.
	LoadSource(ctx context.Context, tag string) (domain.SourceSnapshot, error)

	// SaveMarker rewrites only the last-import marker, leaving the last
	// successful sightings in place.
	SaveMarker(ctx context.Context, tag string, marker domain.SourceMarker) error
	LoadMarker(ctx context.Context, tag string) (domain.SourceMarker, error)
}

var tagRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

func validateTag(tag string) error {
	if !tagRe.MatchString(tag) {
		return fmt.Errorf("invalid source tag %q", tag)
	}
	return nil
}
