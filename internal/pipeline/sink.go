package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/couchcryptid/orca-sightings-etl/internal/domain"
)

// Sink accepts the merged batch downstream. It reports how many sightings
// were accepted and the delivery mode used.
type Sink interface {
	Submit(ctx context.Context, sightings []domain.Sighting) (accepted int, mode string, err error)
}

// ModeNone is reported when no downstream sink is configured.
const ModeNone = "none"

// MultiSink submits to several sinks concurrently. The accepted count is the
// minimum across sinks that succeeded; errors are joined.
type MultiSink []Sink

func (m MultiSink) Submit(ctx context.Context, sightings []domain.Sighting) (int, string, error) {
	if len(m) == 0 {
		return 0, ModeNone, nil
	}

	type result struct {
		accepted int
		mode     string
		err      error
	}
	results := make([]result, len(m))

	var wg sync.WaitGroup
	for i, sink := range m {
		wg.Add(1)
		go func(i int, sink Sink) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results[i].err = fmt.Errorf("sink panic: %v", r)
				}
			}()
			n, mode, err := sink.Submit(ctx, sightings)
			results[i] = result{accepted: n, mode: mode, err: err}
		}(i, sink)
	}
	wg.Wait()

	modes := make([]string, 0, len(results))
	var errs []error
	accepted := -1
	for _, r := range results {
		if r.mode != "" {
			modes = append(modes, r.mode)
		}
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		if accepted < 0 || r.accepted < accepted {
			accepted = r.accepted
		}
	}
	if accepted < 0 {
		accepted = 0
	}
	return accepted, strings.Join(modes, "+"), errors.Join(errs...)
}
