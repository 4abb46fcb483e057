package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimes(t *testing.T) {
	got, err := ParseTimes("18:00, 06:00", "12:30,06:00")
	require.NoError(t, err)
	assert.Equal(t, []TimeOfDay{{6, 0}, {12, 30}, {18, 0}}, got)
	assert.Equal(t, "06:00", got[0].String())

	for _, bad := range []string{"", " , ", "24:00", "6pm", "12:60"} {
		_, err := ParseTimes(bad)
		assert.Error(t, err, bad)
	}
}

func TestNextOccurrence(t *testing.T) {
	now := time.Date(2024, 7, 22, 10, 15, 0, 0, time.UTC)

	tests := []struct {
		name string
		tod  TimeOfDay
		want time.Time
	}{
		{"later today", TimeOfDay{18, 0}, time.Date(2024, 7, 22, 18, 0, 0, 0, time.UTC)},
		{"already passed", TimeOfDay{6, 0}, time.Date(2024, 7, 23, 6, 0, 0, 0, time.UTC)},
		{"exactly now", TimeOfDay{10, 15}, time.Date(2024, 7, 23, 10, 15, 0, 0, time.UTC)},
		{"midnight", TimeOfDay{0, 0}, time.Date(2024, 7, 23, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.want.Equal(NextOccurrence(now, tt.tod, time.UTC)))
		})
	}
}

func TestNextOccurrence_AllPassedRollsToTomorrow(t *testing.T) {
	now := time.Date(2024, 12, 31, 23, 30, 0, 0, time.UTC)
	times, err := ParseTimes("00:00,06:00,12:00,18:00")
	require.NoError(t, err)

	for _, tod := range times {
		next := NextOccurrence(now, tod, time.UTC)
		assert.Equal(t, 2025, next.Year())
		assert.Equal(t, time.January, next.Month())
		assert.Equal(t, 1, next.Day())
	}
}

func TestNextOccurrence_Location(t *testing.T) {
	pacific := time.FixedZone("PDT", -7*3600)
	now := time.Date(2024, 7, 22, 12, 0, 0, 0, time.UTC) // 05:00 PDT

	next := NextOccurrence(now, TimeOfDay{6, 0}, pacific)
	assert.True(t, next.Equal(time.Date(2024, 7, 22, 13, 0, 0, 0, time.UTC)))
}
