package redis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/orca-sightings-etl/internal/domain"
)

type fakeClient struct {
	key   string
	value []byte
	err   error
}

func (f *fakeClient) Set(_ context.Context, key string, value any, _ time.Duration) *goredis.StatusCmd {
	if f.err != nil {
		return goredis.NewStatusResult("", f.err)
	}
	f.key = key
	f.value = value.([]byte)
	return goredis.NewStatusResult("OK", nil)
}

func (f *fakeClient) Close() error { return nil }

var fixed = time.Date(2024, 7, 22, 18, 0, 0, 0, time.UTC)

func newTestSink(c *fakeClient) *Sink {
	return &Sink{
		client: c,
		key:    "sightings:latest",
		source: "orca-sightings-import",
		now:    func() time.Time { return fixed },
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestSink_Submit(t *testing.T) {
	c := &fakeClient{}
	s := newTestSink(c)

	n, mode, err := s.Submit(context.Background(), []domain.Sighting{
		{ID: "social_p1", Timestamp: fixed, Original: []byte(`{"id":"p1"}`)},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, Mode, mode)
	assert.Equal(t, "sightings:latest", c.key)
	assert.Contains(t, string(c.value), `"totalSightings":1`)
	assert.Contains(t, string(c.value), `"lastUpdated":"2024-07-22T18:00:00Z"`)
	assert.NotContains(t, string(c.value), `"original"`)
}

func TestSink_SubmitEmptyStillOverwrites(t *testing.T) {
	c := &fakeClient{}
	n, _, err := newTestSink(c).Submit(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Contains(t, string(c.value), `"sightings":[]`)
}

func TestSink_SubmitError(t *testing.T) {
	c := &fakeClient{err: errors.New("NOAUTH Authentication required")}
	n, mode, err := newTestSink(c).Submit(context.Background(), []domain.Sighting{{ID: "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOAUTH")
	assert.Zero(t, n)
	assert.Equal(t, Mode, mode)
}
