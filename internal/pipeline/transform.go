package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/orca-sightings-etl/internal/domain"
	"github.com/couchcryptid/orca-sightings-etl/internal/observability"
)

// SightingTransformer normalizes one source's raw records with optional
// geocoding enrichment.
type SightingTransformer struct {
	geocoder domain.Geocoder
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewTransformer creates a SightingTransformer. Pass a nil geocoder to disable
// geocoding enrichment.
func NewTransformer(geocoder domain.Geocoder, logger *slog.Logger, metrics *observability.Metrics) *SightingTransformer {
	return &SightingTransformer{
		geocoder: geocoder,
		logger:   logger,
		metrics:  metrics,
	}
}

// Transform normalizes every record of one source. Records that fail to
// normalize are skipped and counted; they never abort the batch.
func (t *SightingTransformer) Transform(ctx context.Context, sc domain.SourceContext, raws []domain.RawRecord) ([]domain.Sighting, int) {
	out := make([]domain.Sighting, 0, len(raws))
	skipped := 0
	for i, raw := range raws {
		s, err := domain.Normalize(raw, sc)
		if err != nil {
			t.logger.Warn("normalize failed, skipping record",
				"error", err,
				"source", sc.Tag,
				"index", i,
			)
			t.metrics.NormalizeErrors.WithLabelValues(sc.Tag).Inc()
			skipped++
			continue
		}
		out = append(out, domain.EnrichWithGeocoding(ctx, s, t.geocoder, t.logger))
	}
	return domain.EnsureUniqueIDs(out), skipped
}
