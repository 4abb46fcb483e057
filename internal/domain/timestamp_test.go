package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 7, 22, 15, 4, 5, 0, time.UTC)

	tests := []struct {
		name string
		in   any
		want time.Time
		ok   bool
	}{
		{"RFC 3339", "2024-07-22T15:04:05Z", want, true},
		{"RFC 3339 with offset", "2024-07-22T08:04:05-07:00", want, true},
		{"space separated", "2024-07-22 15:04:05", want, true},
		{"unix seconds float", float64(want.Unix()), want, true},
		{"unix milliseconds float", float64(want.UnixMilli()), want, true},
		{"unix seconds digit string", "1721660645", want, true},
		{"unix seconds int64", want.Unix(), want, true},
		{"json number", json.Number("1721660645"), want, true},
		{"date only", "2024-07-22", time.Date(2024, 7, 22, 0, 0, 0, 0, time.UTC), true},
		{"garbage", "not-a-date", time.Time{}, false},
		{"empty", "", time.Time{}, false},
		{"zero epoch", float64(0), time.Time{}, false},
		{"epoch past year 9999", 1e15 * 1000, time.Time{}, false},
		{"overflowing digit string", "99999999999999999999", time.Time{}, false},
		{"before unix time", "1969-12-31T23:00:00Z", time.Time{}, false},
		{"nil", nil, time.Time{}, false},
		{"bool", true, time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTimestamp(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "got %s", got)
				assert.Equal(t, time.UTC, got.Location())
			}
		})
	}
}

func TestResolveTimestamp_FallsBackToNow(t *testing.T) {
	now := time.Date(2024, 7, 22, 18, 0, 0, 0, time.UTC)
	assert.Equal(t, now, ResolveTimestamp("not-a-date", "", "", now))
	assert.Equal(t, now, ResolveTimestamp(nil, "", "", now))
}

func TestResolveTimestamp_RejectsImplausibleInstants(t *testing.T) {
	now := time.Date(2024, 7, 22, 18, 0, 0, 0, time.UTC)

	assert.Equal(t, now, ResolveTimestamp(1e15, "", "", now), "unix seconds in year 33658")
	assert.Equal(t, now, ResolveTimestamp("2031-01-01T00:00:00Z", "", "", now), "far future")
	assert.Equal(t, now.Add(time.Hour), ResolveTimestamp(now.Add(time.Hour).Format(time.RFC3339), "", "", now))

	// An overlay year before unix time is dropped, the parsed value kept.
	assert.Equal(t, now, ResolveTimestamp(nil, "", "7/4/1900", now))
}

func TestResolveTimestamp_Overlays(t *testing.T) {
	now := time.Date(2024, 7, 22, 18, 0, 0, 0, time.UTC)
	got := ResolveTimestamp("2024-07-20", "3:45pm", "", now)
	assert.Equal(t, time.Date(2024, 7, 20, 15, 45, 0, 0, time.UTC), got)

	got = ResolveTimestamp(nil, "7am", "7/4", now)
	assert.Equal(t, time.Date(2024, 7, 4, 7, 0, 0, 0, time.UTC), got)
}

func TestOverlayClockTime(t *testing.T) {
	base := time.Date(2024, 7, 22, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		text string
		h, m int
	}{
		{"3:45pm", 15, 45},
		{"around 3:45 PM", 15, 45},
		{"7am", 7, 0},
		{"7 a.m.", 7, 0},
		{"12am", 0, 0},
		{"12pm", 12, 0},
		{"15:10", 15, 10},
		{"3 orcas at 9:30", 9, 30},
		{"3 orcas", 0, 0},
		{"25:00", 0, 0},
		{"13pm", 0, 0},
		{"", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := OverlayClockTime(base, tt.text)
			assert.Equal(t, tt.h, got.Hour())
			assert.Equal(t, tt.m, got.Minute())
			assert.Equal(t, 22, got.Day())
		})
	}
}

func TestOverlayDate(t *testing.T) {
	base := time.Date(2024, 7, 22, 10, 30, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2024, 7, 4, 10, 30, 0, 0, time.UTC), OverlayDate(base, "7/4"))
	assert.Equal(t, time.Date(2023, 12, 1, 10, 30, 0, 0, time.UTC), OverlayDate(base, "12/1/23"))
	assert.Equal(t, time.Date(2022, 6, 15, 10, 30, 0, 0, time.UTC), OverlayDate(base, "6/15/2022"))
	assert.Equal(t, base, OverlayDate(base, "2/30"), "month-end overflow is rejected")
	assert.Equal(t, base, OverlayDate(base, "13/1"))
	assert.Equal(t, base, OverlayDate(base, "yesterday"))
}

func TestHourBucket(t *testing.T) {
	assert.Equal(t, "2024-07-22T15", HourBucket(time.Date(2024, 7, 22, 15, 59, 59, 0, time.UTC)))
	assert.Equal(t, "2024-07-22T15", HourBucket(time.Date(2024, 7, 22, 8, 0, 0, 0, time.FixedZone("PDT", -7*3600))))
}
