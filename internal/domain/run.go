package domain

import "time"

// CycleState is the lifecycle state of an import cycle.
type CycleState string

const (
	StateIdle            CycleState = "idle"
	StateRunning         CycleState = "running"
	StateCompleted       CycleState = "completed"
	StatePartiallyFailed CycleState = "partially_failed"
	StateFailed          CycleState = "failed"
)

// FetchStatus is the outcome of one source within a cycle.
type FetchStatus string

const (
	FetchPending FetchStatus = "pending"
	FetchSuccess FetchStatus = "success"
	FetchError   FetchStatus = "error"
)

// SourceStatus records what one adapter contributed to a cycle.
type SourceStatus struct {
	Status    FetchStatus `json:"status"`
	Count     int         `json:"count"`
	Error     string      `json:"error,omitempty"`
	Synthetic bool        `json:"synthetic,omitempty"` // records came from the fallback set
	Cached    int         `json:"cached,omitempty"`    // sightings reused from the last successful import
	Skipped   int         `json:"skipped,omitempty"`   // records dropped by normalization
}

// SinkStatus records the downstream hand-off result of a cycle.
type SinkStatus struct {
	Mode     string `json:"mode"`
	Accepted int    `json:"accepted"`
	Error    string `json:"error,omitempty"`
}

// ImportRun is the structured report of one import cycle.
type ImportRun struct {
	ID         string                  `json:"id"`
	Trigger    string                  `json:"trigger"`
	StartedAt  time.Time               `json:"timestamp"`
	FinishedAt time.Time               `json:"finishedAt"`
	State      CycleState              `json:"state"`
	Sources    map[string]SourceStatus `json:"sources"`
	Combined   int                     `json:"combined"`
	Merged     int                     `json:"merged"`
	Duplicates int                     `json:"duplicates"`
	Sink       SinkStatus              `json:"sink"`
	Error      string                  `json:"error,omitempty"`
}

// SourceMarker is the per-source last-import marker artifact.
type SourceMarker struct {
	LastImport time.Time   `json:"lastImport"`
	Source     string      `json:"source"`
	Status     FetchStatus `json:"status"`
}

// SourceSnapshot is the last successful normalized result of one source,
// served when that source fails in a later cycle.
type SourceSnapshot struct {
	Marker    SourceMarker `json:"marker"`
	Sightings []Sighting   `json:"sightings"`
}

// ScheduleState is the operator-visible scheduler state.
type ScheduleState string

const (
	ScheduleRunning ScheduleState = "running"
	ScheduleStopped ScheduleState = "stopped"
)

// NextImport is one entry of the persisted schedule.
type NextImport struct {
	Time string    `json:"time"` // "HH:MM"
	Next time.Time `json:"next"`
}

// ScheduleStatus is the persisted schedule-status artifact.
type ScheduleStatus struct {
	Status      ScheduleState `json:"status"`
	LastUpdated time.Time     `json:"lastUpdated"`
	NextImports []NextImport  `json:"nextImports"`
}

// PrependRun inserts run at the head of history and truncates the tail to limit.
func PrependRun(history []ImportRun, run ImportRun, limit int) []ImportRun {
	out := make([]ImportRun, 0, len(history)+1)
	out = append(out, run)
	out = append(out, history...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
