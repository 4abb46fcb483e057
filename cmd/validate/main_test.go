package main

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/orca-sightings-etl/internal/domain"
)

func sighting(id, key string, ts time.Time, conf float64) domain.Sighting {
	return domain.Sighting{
		ID:             id,
		Timestamp:      ts,
		LocationName:   "Lime Kiln Point State Park, WA",
		LocationKey:    key,
		LocationSource: domain.LocationFromGazetteer,
		Coordinates:    domain.Coordinates{Lat: 48.5159, Lng: -123.1524},
		GroupSize:      1,
		Behavior:       domain.BehaviorVocalizing,
		Confidence:     conf,
		Source:         "Orcasound hydrophone network",
		SourceType:     domain.SourceAcoustic,
	}
}

func encode(t *testing.T, batch domain.MergedBatch) []byte {
	t.Helper()
	data, err := json.Marshal(batch)
	require.NoError(t, err)
	return data
}

func failedPhases(phases []*phase) []string {
	var names []string
	for _, p := range phases {
		if !p.passed() {
			names = append(names, p.name)
		}
	}
	return names
}

var base = time.Date(2024, time.July, 22, 18, 0, 0, 0, time.UTC)

func TestValidate_CleanBatchPasses(t *testing.T) {
	batch := domain.NewMergedBatch([]domain.Sighting{
		sighting("orcasound_1", "lime_kiln", base, 0.75),
		sighting("orcasound_2", "lime_kiln", base.Add(-2*time.Hour), 0.7),
	}, "orca-sightings-import", base)

	phases, _, err := validate(encode(t, batch))
	require.NoError(t, err)
	assert.Empty(t, failedPhases(phases))
}

func TestValidate_DuplicateDedupeKey(t *testing.T) {
	batch := domain.NewMergedBatch([]domain.Sighting{
		sighting("orcasound_1", "lime_kiln", base.Add(30*time.Minute), 0.75),
		sighting("orcasound_2", "lime_kiln", base, 0.7),
	}, "orca-sightings-import", base)

	phases, _, err := validate(encode(t, batch))
	require.NoError(t, err)
	assert.Equal(t, []string{"Phase 2: Identity (ids, dedupe keys)"}, failedPhases(phases))
}

func TestValidate_OrderingAndTotal(t *testing.T) {
	batch := domain.NewMergedBatch([]domain.Sighting{
		sighting("orcasound_1", "lime_kiln", base.Add(-3*time.Hour), 0.75),
		sighting("orcasound_2", "lime_kiln", base, 0.7),
	}, "orca-sightings-import", base)
	batch.TotalSightings = 5

	phases, _, err := validate(encode(t, batch))
	require.NoError(t, err)
	assert.Equal(t, []string{"Phase 3: Ordering (most recent first)"}, failedPhases(phases))
	assert.Len(t, phases[2].errors, 2)
}

func TestValidate_ConfidenceOutOfRange(t *testing.T) {
	batch := domain.NewMergedBatch([]domain.Sighting{
		sighting("orcasound_1", "lime_kiln", base, 0.99),
	}, "orca-sightings-import", base)

	phases, _, err := validate(encode(t, batch))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Phase 1: Schema (JSON Schema 2020-12)",
		"Phase 4: Values (confidence, source type)",
	}, failedPhases(phases))
}

func TestValidate_SchemaRejectsUnknownBehavior(t *testing.T) {
	s := sighting("orcasound_1", "lime_kiln", base, 0.75)
	s.Behavior = "breaching"
	batch := domain.NewMergedBatch([]domain.Sighting{s}, "orca-sightings-import", base)

	phases, _, err := validate(encode(t, batch))
	require.NoError(t, err)
	require.False(t, phases[0].passed())
	assert.Contains(t, phases[0].errors[0], "/sightings/0/behavior")
}

func TestValidate_UndecodableInput(t *testing.T) {
	_, _, err := validate([]byte("not json"))
	require.Error(t, err)
}
