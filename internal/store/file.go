package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/couchcryptid/orca-sightings-etl/internal/domain"
)

// Artifact file names inside the data directory.
const (
	mergedFile   = "sightings.json"
	historyFile  = "import_history.json"
	scheduleFile = "schedule_status.json"
	sourcesDir   = "sources"
)

// FileStore keeps each artifact as an indented JSON file. Writes go to a
// temporary file that is renamed into place, so readers never observe a
// partially written artifact.
type FileStore struct {
	dir string
	mu  sync.RWMutex
}

// NewFileStore creates the data directory layout under dir.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, sourcesDir), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the data directory.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) SaveMerged(_ context.Context, batch domain.MergedBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(mergedFile, batch)
}

func (s *FileStore) LoadMerged(_ context.Context) (domain.MergedBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var batch domain.MergedBatch
	err := s.read(mergedFile, &batch)
	return batch, err
}

func (s *FileStore) AppendRun(_ context.Context, run domain.ImportRun, limit int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var history []domain.ImportRun
	if err := s.read(historyFile, &history); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return s.write(historyFile, domain.PrependRun(history, run, limit))
}

func (s *FileStore) Runs(_ context.Context) ([]domain.ImportRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := []domain.ImportRun{}
	if err := s.read(historyFile, &history); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return history, nil
}

func (s *FileStore) SaveSchedule(_ context.Context, status domain.ScheduleStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(scheduleFile, status)
}

func (s *FileStore) LoadSchedule(_ context.Context) (domain.ScheduleStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var status domain.ScheduleStatus
	err := s.read(scheduleFile, &status)
	return status, err
}

func (s *FileStore) SaveSource(_ context.Context, tag string, snap domain.SourceSnapshot) error {
	if err := validateTag(tag); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sightings := snap.Sightings
	if sightings == nil {
		sightings = []domain.Sighting{}
	}
	if err := s.write(filepath.Join(sourcesDir, tag+".json"), sightings); err != nil {
		return err
	}
	return s.write(markerFile(tag), snap.Marker)
}

func (s *FileStore) LoadSource(_ context.Context, tag string) (domain.SourceSnapshot, error) {
	if err := validateTag(tag); err != nil {
		return domain.SourceSnapshot{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var snap domain.SourceSnapshot
	if err := s.read(filepath.Join(sourcesDir, tag+".json"), &snap.Sightings); err != nil {
		return domain.SourceSnapshot{}, err
	}
	if err := s.read(markerFile(tag), &snap.Marker); err != nil {
		return domain.SourceSnapshot{}, err
	}
	return snap, nil
}

func (s *FileStore) SaveMarker(_ context.Context, tag string, marker domain.SourceMarker) error {
	if err := validateTag(tag); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(markerFile(tag), marker)
}

func (s *FileStore) LoadMarker(_ context.Context, tag string) (domain.SourceMarker, error) {
	if err := validateTag(tag); err != nil {
		return domain.SourceMarker{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var marker domain.SourceMarker
	if err := s.read(markerFile(tag), &marker); err != nil {
		return domain.SourceMarker{}, err
	}
	return marker, nil
}

func markerFile(tag string) string {
	return filepath.Join(sourcesDir, tag+"_last_import.json")
}

func (s *FileStore) write(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	path := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", name, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("commit %s: %w", name, err)
	}
	return nil
}

func (s *FileStore) read(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}
