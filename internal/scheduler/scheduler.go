// Package scheduler triggers import cycles at fixed daily wall-clock times.
//
// Each trigger time owns a one-shot timer. After any cycle, scheduled or
// forced, every timer is re-armed from the current time and the schedule
// status artifact is rewritten.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/orca-sightings-etl/internal/domain"
	"github.com/couchcryptid/orca-sightings-etl/internal/pipeline"
)

// ErrAlreadyStarted is returned by Start on a running scheduler.
var ErrAlreadyStarted = errors.New("scheduler already started")

// Runner executes one import cycle.
type Runner interface {
	RunCycle(ctx context.Context, trigger string) (domain.ImportRun, error)
}

// StatusStore persists the schedule status artifact.
type StatusStore interface {
	SaveSchedule(ctx context.Context, status domain.ScheduleStatus) error
}

// Options configures a Scheduler.
type Options struct {
	Times      []TimeOfDay
	Location   *time.Location
	RunOnStart bool
	Clock      clockwork.Clock
}

// Scheduler arms daily timers and runs cycles when they fire.
type Scheduler struct {
	runner     Runner
	store      StatusStore
	logger     *slog.Logger
	clock      clockwork.Clock
	times      []TimeOfDay
	loc        *time.Location
	runOnStart bool

	mu      sync.Mutex
	ctx     context.Context
	running bool
	timers  []clockwork.Timer
	next    []domain.NextImport
	updated time.Time

	inflight sync.WaitGroup
}

// New creates a stopped Scheduler.
func New(runner Runner, store StatusStore, logger *slog.Logger, opts Options) *Scheduler {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Scheduler{
		runner:     runner,
		store:      store,
		logger:     logger,
		clock:      opts.Clock,
		times:      opts.Times,
		loc:        opts.Location,
		runOnStart: opts.RunOnStart,
	}
}

// Start arms the timers and persists the running status. With RunOnStart a
// cold-start cycle begins immediately in the background. Cycles triggered by
// timers run with ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.running = true
	s.ctx = ctx
	s.armLocked()
	status := s.statusLocked()
	s.mu.Unlock()

	s.logger.Info("scheduler started", "times", formatTimes(s.times), "timezone", s.loc.String())
	s.persist(ctx, status)

	if s.runOnStart {
		s.inflight.Add(1)
		go func() {
			defer s.inflight.Done()
			s.run(ctx, pipeline.TriggerStartup)
		}()
	}
	return nil
}

// Stop cancels every pending timer, persists the stopped status, and waits
// for an in-flight scheduled cycle to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.stopTimersLocked()
	s.next = nil
	status := s.statusLocked()
	s.mu.Unlock()

	s.persist(context.Background(), status)
	s.inflight.Wait()
	s.logger.Info("scheduler stopped")
}

// ForceRun runs a manual cycle synchronously, then re-arms the timers.
// pipeline.ErrCycleInProgress is returned when a cycle is already running.
func (s *Scheduler) ForceRun(ctx context.Context) (domain.ImportRun, error) {
	return s.run(ctx, pipeline.TriggerManual)
}

// Status returns the current schedule status.
func (s *Scheduler) Status() domain.ScheduleStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

func (s *Scheduler) run(ctx context.Context, trigger string) (domain.ImportRun, error) {
	run, err := s.runner.RunCycle(ctx, trigger)
	switch {
	case errors.Is(err, pipeline.ErrCycleInProgress):
		s.logger.Warn("trigger skipped, cycle already running", "trigger", trigger)
		return run, err
	case err != nil:
		s.logger.Error("import cycle failed, will retry at next trigger", "trigger", trigger, "error", err)
	}

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return run, err
	}
	s.armLocked()
	status := s.statusLocked()
	s.mu.Unlock()

	s.persist(ctx, status)
	return run, err
}

func (s *Scheduler) fire() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	ctx := s.ctx
	s.inflight.Add(1)
	s.mu.Unlock()

	defer s.inflight.Done()
	s.run(ctx, pipeline.TriggerScheduled)
}

// armLocked replaces every timer with a fresh one-shot timer for the next
// occurrence of its trigger time.
func (s *Scheduler) armLocked() {
	s.stopTimersLocked()

	now := s.clock.Now()
	s.timers = make([]clockwork.Timer, 0, len(s.times))
	s.next = make([]domain.NextImport, 0, len(s.times))
	for _, tod := range s.times {
		at := NextOccurrence(now, tod, s.loc)
		s.timers = append(s.timers, s.clock.AfterFunc(at.Sub(now), s.fire))
		s.next = append(s.next, domain.NextImport{Time: tod.String(), Next: at.UTC()})
	}
	s.updated = now.UTC()
}

func (s *Scheduler) stopTimersLocked() {
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = nil
}

func (s *Scheduler) statusLocked() domain.ScheduleStatus {
	state := domain.ScheduleStopped
	if s.running {
		state = domain.ScheduleRunning
	}
	next := append([]domain.NextImport{}, s.next...)
	updated := s.updated
	if !s.running {
		updated = s.clock.Now().UTC()
	}
	return domain.ScheduleStatus{Status: state, LastUpdated: updated, NextImports: next}
}

func (s *Scheduler) persist(ctx context.Context, status domain.ScheduleStatus) {
	if err := s.store.SaveSchedule(ctx, status); err != nil {
		s.logger.Error("save schedule status failed", "error", err)
	}
}

func formatTimes(times []TimeOfDay) []string {
	out := make([]string, len(times))
	for i, t := range times {
		out[i] = t.String()
	}
	return out
}
