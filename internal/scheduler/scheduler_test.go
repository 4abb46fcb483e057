package scheduler_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/orca-sightings-etl/internal/domain"
	"github.com/couchcryptid/orca-sightings-etl/internal/pipeline"
	"github.com/couchcryptid/orca-sightings-etl/internal/scheduler"
	"github.com/couchcryptid/orca-sightings-etl/internal/store"
)

type fakeRunner struct {
	mu       sync.Mutex
	triggers []string
	err      error
}

func (f *fakeRunner) RunCycle(_ context.Context, trigger string) (domain.ImportRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers = append(f.triggers, trigger)
	return domain.ImportRun{ID: "run", Trigger: trigger, State: domain.StateCompleted}, f.err
}

func (f *fakeRunner) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.triggers...)
}

var start = time.Date(2024, 7, 22, 5, 0, 0, 0, time.UTC)

func newScheduler(t *testing.T, runOnStart bool) (*scheduler.Scheduler, *fakeRunner, *store.MemoryStore, *clockwork.FakeClock) {
	t.Helper()
	return newSchedulerAt(t, start, runOnStart)
}

func newSchedulerAt(t *testing.T, at time.Time, runOnStart bool) (*scheduler.Scheduler, *fakeRunner, *store.MemoryStore, *clockwork.FakeClock) {
	t.Helper()
	times, err := scheduler.ParseTimes("06:00,18:00")
	require.NoError(t, err)

	runner := &fakeRunner{}
	st := store.NewMemoryStore()
	clock := clockwork.NewFakeClockAt(at)
	s := scheduler.New(runner, st, slog.New(slog.NewTextHandler(io.Discard, nil)), scheduler.Options{
		Times:      times,
		Location:   time.UTC,
		RunOnStart: runOnStart,
		Clock:      clock,
	})
	t.Cleanup(s.Stop)
	return s, runner, st, clock
}

func TestScheduler_StartPersistsRunningStatus(t *testing.T) {
	s, runner, st, _ := newScheduler(t, false)
	require.NoError(t, s.Start(context.Background()))

	status, err := st.LoadSchedule(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.ScheduleRunning, status.Status)
	assert.Equal(t, start, status.LastUpdated)
	assert.Equal(t, []domain.NextImport{
		{Time: "06:00", Next: time.Date(2024, 7, 22, 6, 0, 0, 0, time.UTC)},
		{Time: "18:00", Next: time.Date(2024, 7, 22, 18, 0, 0, 0, time.UTC)},
	}, status.NextImports)
	assert.Equal(t, status, s.Status())
	assert.Empty(t, runner.calls())

	assert.ErrorIs(t, s.Start(context.Background()), scheduler.ErrAlreadyStarted)
}

func TestScheduler_StartLateRollsToNextDay(t *testing.T) {
	late := time.Date(2024, 7, 22, 23, 30, 0, 0, time.UTC)
	s, runner, st, clock := newSchedulerAt(t, late, false)
	require.NoError(t, s.Start(context.Background()))

	status, err := st.LoadSchedule(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.ScheduleRunning, status.Status)
	require.Len(t, status.NextImports, 2)
	for _, n := range status.NextImports {
		assert.True(t, n.Next.After(late), n.Time)
		assert.Equal(t, 23, n.Next.Day(), n.Time)
	}
	assert.Equal(t, time.Date(2024, 7, 23, 6, 0, 0, 0, time.UTC), status.NextImports[0].Next)
	assert.Equal(t, time.Date(2024, 7, 23, 18, 0, 0, 0, time.UTC), status.NextImports[1].Next)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 2))

	clock.Advance(6*time.Hour + 29*time.Minute)
	assert.Never(t, func() bool { return len(runner.calls()) > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	clock.Advance(time.Minute)
	require.Eventually(t, func() bool {
		return len(runner.calls()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestScheduler_TimerFiresAndRearms(t *testing.T) {
	s, runner, st, clock := newScheduler(t, false)
	require.NoError(t, s.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 2))

	clock.Advance(time.Hour)

	require.Eventually(t, func() bool {
		return len(runner.calls()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{pipeline.TriggerScheduled}, runner.calls())

	require.Eventually(t, func() bool {
		status, err := st.LoadSchedule(context.Background())
		return err == nil && status.NextImports[0].Next.Equal(time.Date(2024, 7, 23, 6, 0, 0, 0, time.UTC))
	}, time.Second, 5*time.Millisecond)

	status := s.Status()
	assert.Equal(t, time.Date(2024, 7, 22, 18, 0, 0, 0, time.UTC), status.NextImports[1].Next)
}

func TestScheduler_RunOnStart(t *testing.T) {
	s, runner, _, _ := newScheduler(t, true)
	require.NoError(t, s.Start(context.Background()))

	require.Eventually(t, func() bool {
		return len(runner.calls()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{pipeline.TriggerStartup}, runner.calls())
}

func TestScheduler_ForceRunRearms(t *testing.T) {
	s, runner, _, clock := newScheduler(t, false)
	require.NoError(t, s.Start(context.Background()))

	clock.Advance(30 * time.Minute)
	run, err := s.ForceRun(context.Background())
	require.NoError(t, err)

	assert.Equal(t, pipeline.TriggerManual, run.Trigger)
	assert.Equal(t, []string{pipeline.TriggerManual}, runner.calls())
	status := s.Status()
	assert.Equal(t, time.Date(2024, 7, 22, 6, 0, 0, 0, time.UTC), status.NextImports[0].Next)
	assert.Equal(t, start.Add(30*time.Minute), status.LastUpdated)
}

func TestScheduler_ForceRunRejectedWhileRunning(t *testing.T) {
	s, runner, _, _ := newScheduler(t, false)
	runner.err = pipeline.ErrCycleInProgress
	require.NoError(t, s.Start(context.Background()))

	_, err := s.ForceRun(context.Background())
	assert.ErrorIs(t, err, pipeline.ErrCycleInProgress)
}

func TestScheduler_StopCancelsTimers(t *testing.T) {
	s, runner, st, clock := newScheduler(t, false)
	require.NoError(t, s.Start(context.Background()))

	s.Stop()
	clock.Advance(48 * time.Hour)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, runner.calls())

	status, err := st.LoadSchedule(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.ScheduleStopped, status.Status)
	assert.Empty(t, status.NextImports)

	// Stop is idempotent.
	s.Stop()
}
