package scheduler

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock trigger time.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ParseTimes parses "HH:MM" entries; each argument may itself be a
// comma-separated list. The result is sorted and free of duplicates.
func ParseTimes(specs ...string) ([]TimeOfDay, error) {
	seen := make(map[TimeOfDay]bool)
	var out []TimeOfDay
	for _, spec := range specs {
		for _, part := range strings.Split(spec, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			t, err := time.Parse("15:04", part)
			if err != nil {
				return nil, fmt.Errorf("invalid trigger time %q: want HH:MM", part)
			}
			tod := TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}
			if seen[tod] {
				continue
			}
			seen[tod] = true
			out = append(out, tod)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no trigger times given")
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Hour != out[j].Hour {
			return out[i].Hour < out[j].Hour
		}
		return out[i].Minute < out[j].Minute
	})
	return out, nil
}

// NextOccurrence returns the first instant strictly after now at which the
// wall clock in loc reads tod. When today's occurrence has passed it is
// tomorrow's.
func NextOccurrence(now time.Time, tod TimeOfDay, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), tod.Hour, tod.Minute, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, tod.Hour, tod.Minute, 0, 0, loc)
	}
	return next
}
