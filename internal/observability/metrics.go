package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "orca_import"

// Metrics holds the Prometheus counters, histograms, and gauges for the import service.
type Metrics struct {
	// Cycle metrics.
	CyclesTotal   *prometheus.CounterVec // labels: trigger={scheduled,startup,manual}, state={completed,partially_failed,failed}
	CycleDuration prometheus.Histogram
	CycleRunning  prometheus.Gauge
	CycleRejected prometheus.Counter

	// Source metrics.
	SourceFetches     *prometheus.CounterVec // labels: source, outcome={success,fallback,error,cached}
	CandidateAttempts *prometheus.CounterVec // labels: source, outcome={ok,http_error,transport_error,unrecognized}
	RecordsFetched    *prometheus.CounterVec // labels: source
	NormalizeErrors   *prometheus.CounterVec // labels: source

	// Merge and delivery metrics.
	DuplicatesDropped prometheus.Counter
	MergedSightings   prometheus.Gauge
	SinkSubmissions   *prometheus.CounterVec // labels: outcome={success,error,skipped}

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec   // labels: method={forward,reverse}, outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec   // labels: method={forward,reverse}, result={hit,miss}
	GeocodeAPIDuration *prometheus.HistogramVec // labels: method={forward,reverse}
	GeocodeEnabled     prometheus.Gauge
}

// NewMetrics creates and registers all import metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Import cycles finished, by trigger and final state.",
		}, []string{"trigger", "state"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a complete fetch-normalize-dedupe-persist cycle.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		}),
		CycleRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cycle_running",
			Help:      "1 while an import cycle is in progress, 0 otherwise.",
		}),
		CycleRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_rejected_total",
			Help:      "Triggers rejected because a cycle was already running.",
		}),
		SourceFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_fetches_total",
			Help:      "Source adapter fetches by outcome.",
		}, []string{"source", "outcome"}),
		CandidateAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidate_attempts_total",
			Help:      "Upstream candidate endpoint attempts by outcome.",
		}, []string{"source", "outcome"}),
		RecordsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_fetched_total",
			Help:      "Raw records returned by each source.",
		}, []string{"source"}),
		NormalizeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "normalize_errors_total",
			Help:      "Raw records skipped because they could not be normalized.",
		}, []string{"source"}),
		DuplicatesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_dropped_total",
			Help:      "Sightings collapsed by deduplication.",
		}),
		MergedSightings: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "merged_sightings",
			Help:      "Sightings in the most recently persisted merged batch.",
		}),
		SinkSubmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_submissions_total",
			Help:      "Downstream sink submissions by outcome.",
		}, []string{"outcome"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by method and outcome.",
		}, []string{"method", "outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by method and result.",
		}, []string{"method", "result"}),
		GeocodeAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method"}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      "1 when geocoding enrichment is enabled, 0 otherwise.",
		}),
	}

	prometheus.MustRegister(
		m.CyclesTotal,
		m.CycleDuration,
		m.CycleRunning,
		m.CycleRejected,
		m.SourceFetches,
		m.CandidateAttempts,
		m.RecordsFetched,
		m.NormalizeErrors,
		m.DuplicatesDropped,
		m.MergedSightings,
		m.SinkSubmissions,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		CyclesTotal:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "cycles_total"}, []string{"trigger", "state"}),
		CycleDuration:      prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "cycle_duration_seconds"}),
		CycleRunning:       prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "cycle_running"}),
		CycleRejected:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "cycles_rejected_total"}),
		SourceFetches:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "source_fetches_total"}, []string{"source", "outcome"}),
		CandidateAttempts:  prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "candidate_attempts_total"}, []string{"source", "outcome"}),
		RecordsFetched:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "records_fetched_total"}, []string{"source"}),
		NormalizeErrors:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "normalize_errors_total"}, []string{"source"}),
		DuplicatesDropped:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "duplicates_dropped_total"}),
		MergedSightings:    prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "merged_sightings"}),
		SinkSubmissions:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "sink_submissions_total"}, []string{"outcome"}),
		GeocodeRequests:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "geocode_requests_total"}, []string{"method", "outcome"}),
		GeocodeCache:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "geocode_cache_total"}, []string{"method", "result"}),
		GeocodeAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: "geocode_api_duration_seconds"}, []string{"method"}),
		GeocodeEnabled:     prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "geocode_enabled"}),
	}
}
