package store

import (
	"context"
	"sync"

	"github.com/couchcryptid/orca-sightings-etl/internal/domain"
)

// MemoryStore keeps artifacts in memory. Values are copied in and out so
// callers cannot alias stored slices.
type MemoryStore struct {
	mu       sync.RWMutex
	merged   *domain.MergedBatch
	history  []domain.ImportRun
	schedule *domain.ScheduleStatus
	sources  map[string][]domain.Sighting
	markers  map[string]domain.SourceMarker

	// FailWrites, when set, is returned by every save. Tests use it to
	// simulate a full disk.
	FailWrites error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sources: make(map[string][]domain.Sighting),
		markers: make(map[string]domain.SourceMarker),
	}
}

func (m *MemoryStore) SaveMerged(_ context.Context, batch domain.MergedBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	batch.Sightings = append([]domain.Sighting(nil), batch.Sightings...)
	m.merged = &batch
	return nil
}

func (m *MemoryStore) LoadMerged(_ context.Context) (domain.MergedBatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.merged == nil {
		return domain.MergedBatch{}, ErrNotFound
	}
	batch := *m.merged
	batch.Sightings = append([]domain.Sighting(nil), batch.Sightings...)
	return batch, nil
}

func (m *MemoryStore) AppendRun(_ context.Context, run domain.ImportRun, limit int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	m.history = domain.PrependRun(m.history, run, limit)
	return nil
}

func (m *MemoryStore) Runs(_ context.Context) ([]domain.ImportRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.ImportRun{}, m.history...), nil
}

func (m *MemoryStore) SaveSchedule(_ context.Context, status domain.ScheduleStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	status.NextImports = append([]domain.NextImport(nil), status.NextImports...)
	m.schedule = &status
	return nil
}

func (m *MemoryStore) LoadSchedule(_ context.Context) (domain.ScheduleStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.schedule == nil {
		return domain.ScheduleStatus{}, ErrNotFound
	}
	status := *m.schedule
	status.NextImports = append([]domain.NextImport(nil), status.NextImports...)
	return status, nil
}

func (m *MemoryStore) SaveSource(_ context.Context, tag string, snap domain.SourceSnapshot) error {
	if err := validateTag(tag); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	m.sources[tag] = append([]domain.Sighting{}, snap.Sightings...)
	m.markers[tag] = snap.Marker
	return nil
}

func (m *MemoryStore) LoadSource(_ context.Context, tag string) (domain.SourceSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sightings, ok := m.sources[tag]
	if !ok {
		return domain.SourceSnapshot{}, ErrNotFound
	}
	return domain.SourceSnapshot{
		Marker:    m.markers[tag],
		Sightings: append([]domain.Sighting{}, sightings...),
	}, nil
}

func (m *MemoryStore) SaveMarker(_ context.Context, tag string, marker domain.SourceMarker) error {
	if err := validateTag(tag); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	m.markers[tag] = marker
	return nil
}

func (m *MemoryStore) LoadMarker(_ context.Context, tag string) (domain.SourceMarker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	marker, ok := m.markers[tag]
	if !ok {
		return domain.SourceMarker{}, ErrNotFound
	}
	return marker, nil
}
