package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/orca-sightings-etl/internal/domain"
	"github.com/couchcryptid/orca-sightings-etl/internal/observability"
	"github.com/couchcryptid/orca-sightings-etl/internal/store"
)

// ErrCycleInProgress is returned when a trigger arrives while a cycle runs.
var ErrCycleInProgress = errors.New("import cycle already in progress")

// Cycle triggers recorded on each ImportRun.
const (
	TriggerScheduled = "scheduled"
	TriggerStartup   = "startup"
	TriggerManual    = "manual"
)

// mergedSource labels the merged batch artifact.
const mergedSource = "orca-sightings-import"

// Source fetches raw records from one upstream.
type Source interface {
	Tag() string
	Context() domain.SourceContext
	Fetch(ctx context.Context) ([]domain.RawRecord, error)
}

// Transformer normalizes one source's raw records. It returns the sightings
// and the number of records it had to skip.
type Transformer interface {
	Transform(ctx context.Context, sc domain.SourceContext, raws []domain.RawRecord) ([]domain.Sighting, int)
}

// Options tunes an Orchestrator. Zero values select defaults.
type Options struct {
	HistoryLimit   int
	AdapterTimeout time.Duration // bound on one source's whole fetch
	Clock          clockwork.Clock
}

// Orchestrator runs import cycles: fetch every source concurrently,
// normalize, dedupe, persist, and hand the merged batch to the sink.
type Orchestrator struct {
	sources        []Source
	transformer    Transformer
	store          store.Store
	sink           Sink
	logger         *slog.Logger
	metrics        *observability.Metrics
	clock          clockwork.Clock
	historyLimit   int
	adapterTimeout time.Duration

	running atomic.Bool
	ready   atomic.Bool

	mu      sync.RWMutex
	state   domain.CycleState
	lastRun *domain.ImportRun
}

// New creates an Orchestrator. A nil sink records every cycle with mode "none".
func New(sources []Source, t Transformer, st store.Store, sink Sink, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Orchestrator {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 50
	}
	if opts.AdapterTimeout <= 0 {
		opts.AdapterTimeout = time.Minute
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Orchestrator{
		sources:        sources,
		transformer:    t,
		store:          st,
		sink:           sink,
		logger:         logger,
		metrics:        metrics,
		clock:          opts.Clock,
		historyLimit:   opts.HistoryLimit,
		adapterTimeout: opts.AdapterTimeout,
		state:          domain.StateIdle,
	}
}

// CheckReadiness returns nil once a cycle has persisted its merged batch,
// or an error describing why the service is not yet ready.
func (o *Orchestrator) CheckReadiness(_ context.Context) error {
	if !o.ready.Load() {
		return errors.New("no import cycle has completed yet")
	}
	return nil
}

// State returns the current cycle state; after a cycle it is that cycle's
// final state.
func (o *Orchestrator) State() domain.CycleState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// LastRun returns the report of the most recent finished cycle.
func (o *Orchestrator) LastRun() (domain.ImportRun, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.lastRun == nil {
		return domain.ImportRun{}, false
	}
	return *o.lastRun, true
}

// RunCycle executes one import cycle. Only a local persistence failure is
// returned as an error; source and sink failures are recorded in the run.
func (o *Orchestrator) RunCycle(ctx context.Context, trigger string) (domain.ImportRun, error) {
	if !o.running.CompareAndSwap(false, true) {
		o.metrics.CycleRejected.Inc()
		o.logger.Warn("trigger rejected, cycle already running", "trigger", trigger)
		return domain.ImportRun{}, ErrCycleInProgress
	}
	defer o.running.Store(false)

	o.setState(domain.StateRunning)
	o.metrics.CycleRunning.Set(1)
	defer o.metrics.CycleRunning.Set(0)

	start := o.clock.Now()
	run := domain.ImportRun{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		StartedAt: start.UTC(),
		State:     domain.StateRunning,
		Sources:   make(map[string]domain.SourceStatus, len(o.sources)),
	}
	o.logger.Info("import cycle started", "run_id", run.ID, "trigger", trigger, "sources", len(o.sources))

	var (
		union      []domain.Sighting
		sourceErrs int
		persistErr []error
	)
	for _, res := range o.fetchAll(ctx) {
		status, sightings, err := o.collect(ctx, res)
		if err != nil {
			persistErr = append(persistErr, err)
		}
		if status.Status == domain.FetchError {
			sourceErrs++
		}
		run.Sources[res.sc.Tag] = status
		union = append(union, sightings...)
	}

	union = domain.EnsureUniqueIDs(union)
	merged := domain.Dedupe(union)
	run.Combined = len(union)
	run.Merged = len(merged)
	run.Duplicates = run.Combined - run.Merged
	o.metrics.DuplicatesDropped.Add(float64(run.Duplicates))
	o.metrics.MergedSightings.Set(float64(run.Merged))

	batch := domain.NewMergedBatch(merged, mergedSource, o.clock.Now())
	if err := o.store.SaveMerged(ctx, batch); err != nil {
		persistErr = append(persistErr, fmt.Errorf("save merged batch: %w", err))
	} else {
		o.ready.Store(true)
	}

	run.Sink = o.submit(ctx, merged)

	switch {
	case len(persistErr) > 0:
		run.State = domain.StateFailed
		run.Error = errors.Join(persistErr...).Error()
	case sourceErrs > 0:
		run.State = domain.StatePartiallyFailed
	default:
		run.State = domain.StateCompleted
	}
	run.FinishedAt = o.clock.Now().UTC()

	if err := o.store.AppendRun(ctx, run, o.historyLimit); err != nil {
		persistErr = append(persistErr, fmt.Errorf("append import run: %w", err))
		run.State = domain.StateFailed
		run.Error = errors.Join(persistErr...).Error()
	}

	o.finish(run)
	o.metrics.CyclesTotal.WithLabelValues(trigger, string(run.State)).Inc()
	o.metrics.CycleDuration.Observe(o.clock.Since(start).Seconds())

	if len(persistErr) > 0 {
		err := errors.Join(persistErr...)
		o.logger.Error("import cycle failed", "run_id", run.ID, "error", err)
		return run, err
	}
	o.logger.Info("import cycle finished",
		"run_id", run.ID,
		"state", run.State,
		"combined", run.Combined,
		"merged", run.Merged,
		"duplicates", run.Duplicates,
		"sink_mode", run.Sink.Mode,
		"duration", o.clock.Since(start),
	)
	return run, nil
}

type fetchResult struct {
	sc      domain.SourceContext
	records []domain.RawRecord
	err     error
}

// fetchAll runs every source concurrently. A failing, panicking or hung
// source never cancels or delays its siblings past the adapter timeout.
func (o *Orchestrator) fetchAll(ctx context.Context) []fetchResult {
	results := make([]fetchResult, len(o.sources))
	var wg sync.WaitGroup
	for i, src := range o.sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			results[i] = o.fetchOne(ctx, i, src)
		}(i, src)
	}
	wg.Wait()
	return results
}

type fetchOutcome struct {
	records []domain.RawRecord
	err     error
}

// fetchOne bounds a single source by the adapter timeout. A Fetch that
// ignores its context is abandoned at the deadline; its goroutine drains
// into a buffered channel.
func (o *Orchestrator) fetchOne(ctx context.Context, i int, src Source) (res fetchResult) {
	res.sc = domain.SourceContext{Tag: fmt.Sprintf("source_%d", i)}
	defer func() {
		if r := recover(); r != nil {
			res.records = nil
			res.err = fmt.Errorf("source panic: %v", r)
		}
	}()
	res.sc = src.Context()

	fctx, cancel := context.WithTimeout(ctx, o.adapterTimeout)
	defer cancel()

	done := make(chan fetchOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fetchOutcome{err: fmt.Errorf("source panic: %v", r)}
			}
		}()
		records, err := src.Fetch(fctx)
		done <- fetchOutcome{records: records, err: err}
	}()

	select {
	case out := <-done:
		res.records, res.err = out.records, out.err
	case <-fctx.Done():
		res.err = fmt.Errorf("fetch abandoned: %w", fctx.Err())
	}
	return res
}

// collect turns one fetch result into its source status and sightings. A
// failed source contributes its last successful snapshot when one exists.
// The returned error is a local persistence failure.
func (o *Orchestrator) collect(ctx context.Context, res fetchResult) (domain.SourceStatus, []domain.Sighting, error) {
	tag := res.sc.Tag
	logger := o.logger.With("source", tag)

	if res.err != nil {
		status := domain.SourceStatus{Status: domain.FetchError, Error: res.err.Error()}
		logger.Warn("source fetch failed", "error", res.err)

		var cached []domain.Sighting
		snap, err := o.store.LoadSource(ctx, tag)
		switch {
		case err == nil:
			cached = snap.Sightings
			status.Cached = len(cached)
			o.metrics.SourceFetches.WithLabelValues(tag, "cached").Inc()
			logger.Info("serving cached sightings", "cached", status.Cached, "last_import", snap.Marker.LastImport)
		case !errors.Is(err, store.ErrNotFound):
			logger.Warn("load cached sightings failed", "error", err)
			o.metrics.SourceFetches.WithLabelValues(tag, "error").Inc()
		default:
			o.metrics.SourceFetches.WithLabelValues(tag, "error").Inc()
		}

		marker := domain.SourceMarker{LastImport: o.clock.Now().UTC(), Source: tag, Status: domain.FetchError}
		if err := o.store.SaveMarker(ctx, tag, marker); err != nil {
			return status, cached, fmt.Errorf("save %s marker: %w", tag, err)
		}
		return status, cached, nil
	}

	o.metrics.RecordsFetched.WithLabelValues(tag).Add(float64(len(res.records)))
	sightings, skipped := o.transformer.Transform(ctx, res.sc, res.records)
	status := domain.SourceStatus{
		Status:  domain.FetchSuccess,
		Count:   len(sightings),
		Skipped: skipped,
	}
	for _, s := range sightings {
		if s.Synthetic {
			status.Synthetic = true
			break
		}
	}

	if status.Synthetic {
		o.metrics.SourceFetches.WithLabelValues(tag, "fallback").Inc()
		return status, sightings, nil
	}
	o.metrics.SourceFetches.WithLabelValues(tag, "success").Inc()

	snap := domain.SourceSnapshot{
		Marker: domain.SourceMarker{
			LastImport: o.clock.Now().UTC(),
			Source:     tag,
			Status:     domain.FetchSuccess,
		},
		Sightings: sightings,
	}
	if err := o.store.SaveSource(ctx, tag, snap); err != nil {
		return status, sightings, fmt.Errorf("save %s snapshot: %w", tag, err)
	}
	return status, sightings, nil
}

func (o *Orchestrator) submit(ctx context.Context, merged []domain.Sighting) domain.SinkStatus {
	if o.sink == nil {
		o.metrics.SinkSubmissions.WithLabelValues("skipped").Inc()
		return domain.SinkStatus{Mode: ModeNone}
	}

	accepted, mode, err := safeSubmit(ctx, o.sink, merged)
	status := domain.SinkStatus{Mode: mode, Accepted: accepted}
	if err != nil {
		status.Error = err.Error()
		o.metrics.SinkSubmissions.WithLabelValues("error").Inc()
		o.logger.Error("sink submission failed", "mode", mode, "accepted", accepted, "error", err)
		return status
	}
	o.metrics.SinkSubmissions.WithLabelValues("success").Inc()
	return status
}

func safeSubmit(ctx context.Context, sink Sink, merged []domain.Sighting) (accepted int, mode string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panic: %v", r)
		}
	}()
	return sink.Submit(ctx, merged)
}

func (o *Orchestrator) setState(s domain.CycleState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = s
}

func (o *Orchestrator) finish(run domain.ImportRun) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = run.State
	o.lastRun = &run
}
