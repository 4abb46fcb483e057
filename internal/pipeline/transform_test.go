package pipeline_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/orca-sightings-etl/internal/adapter/upstream"
	"github.com/couchcryptid/orca-sightings-etl/internal/domain"
	"github.com/couchcryptid/orca-sightings-etl/internal/observability"
	"github.com/couchcryptid/orca-sightings-etl/internal/pipeline"
)

type fakeGeocoder struct {
	forward map[string]domain.GeocodingResult
	calls   int
}

func (f *fakeGeocoder) ForwardGeocode(_ context.Context, query string) (domain.GeocodingResult, error) {
	f.calls++
	return f.forward[query], nil
}

func (f *fakeGeocoder) ReverseGeocode(_ context.Context, _, _ float64) (domain.GeocodingResult, error) {
	f.calls++
	return domain.GeocodingResult{}, nil
}

func TestTransformer_FallbackSets(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	tr := pipeline.NewTransformer(nil, discardLogger(), metrics)

	for _, d := range upstream.Definitions() {
		t.Run(d.Context.Tag, func(t *testing.T) {
			raws, err := upstream.FallbackRecords(d)
			require.NoError(t, err)

			sightings, skipped := tr.Transform(context.Background(), d.Context, upstream.MarkSynthetic(raws))
			assert.Zero(t, skipped)
			require.Len(t, sightings, len(raws))

			ids := map[string]bool{}
			for _, s := range sightings {
				assert.False(t, ids[s.ID], "duplicate id %s", s.ID)
				ids[s.ID] = true
				assert.True(t, s.Synthetic)
				assert.GreaterOrEqual(t, s.Confidence, 0.3)
				assert.LessOrEqual(t, s.Confidence, 0.95)
				assert.False(t, s.Timestamp.IsZero())
			}
		})
	}
}

func TestTransformer_SkipsEmptyRecords(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	tr := pipeline.NewTransformer(nil, discardLogger(), metrics)

	sightings, skipped := tr.Transform(context.Background(), acoustic, []domain.RawRecord{
		{}, nil, limeKilnDetection("1", "2024-07-22T15:10:00Z"),
	})
	assert.Len(t, sightings, 1)
	assert.Equal(t, 2, skipped)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.NormalizeErrors.WithLabelValues("orcasound")))
}

func TestTransformer_DuplicateUpstreamIDs(t *testing.T) {
	tr := pipeline.NewTransformer(nil, discardLogger(), observability.NewMetricsForTesting())

	sightings, _ := tr.Transform(context.Background(), acoustic, []domain.RawRecord{
		limeKilnDetection("7", "2024-07-22T15:10:00Z"),
		limeKilnDetection("7", "2024-07-22T16:10:00Z"),
	})
	require.Len(t, sightings, 2)
	assert.Equal(t, "orcasound_7", sightings[0].ID)
	assert.Equal(t, "orcasound_7-2", sightings[1].ID)
}

func TestTransformer_GeocodesDefaultLocations(t *testing.T) {
	geo := &fakeGeocoder{forward: map[string]domain.GeocodingResult{
		"Dungeness Spit": {Lat: 48.1814, Lng: -123.1101, PlaceName: "Dungeness Spit", FormattedAddress: "Dungeness Spit, Washington"},
	}}
	tr := pipeline.NewTransformer(geo, discardLogger(), observability.NewMetricsForTesting())

	got, _ := tr.Transform(context.Background(), social, []domain.RawRecord{
		{"id": "p9", "title": "Two orcas near Dungeness Spit this morning", "created_utc": 1721660645.0},
		limeKilnDetection("1", "2024-07-22T15:10:00Z"),
	})
	require.Len(t, got, 2)

	want := domain.Sighting{
		ID:             "social_p9",
		LocationName:   "Dungeness Spit",
		LocationKey:    "grid_48.18_-123.11",
		LocationSource: domain.GeoForward,
		Coordinates:    domain.Coordinates{Lat: 48.1814, Lng: -123.1101},
		GeoSource:      domain.GeoForward,
	}
	if diff := cmp.Diff(want, got[0], cmpopts.IgnoreFields(domain.Sighting{},
		"Timestamp", "GroupSize", "Behavior", "Confidence", "Source", "SourceType", "FormattedAddress", "Original")); diff != "" {
		t.Errorf("geocoded sighting mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, domain.GeoOriginal, got[1].GeoSource)
	assert.Equal(t, 1, geo.calls)
}
