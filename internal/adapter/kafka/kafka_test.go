package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/orca-sightings-etl/internal/domain"
)

type fakeWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

var submittedAt = time.Date(2024, 7, 22, 18, 0, 0, 0, time.UTC)

func newTestWriter(fw *fakeWriter) *Writer {
	return &Writer{
		writer: fw,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    func() time.Time { return submittedAt },
	}
}

func sighting(id string) domain.Sighting {
	return domain.Sighting{
		ID:          id,
		Timestamp:   time.Date(2024, 7, 22, 15, 10, 0, 0, time.UTC),
		LocationKey: "lime_kiln_point",
		SourceType:  domain.SourceAcoustic,
		Confidence:  0.75,
		Original:    []byte(`{"id":"1"}`),
	}
}

func TestSerializeToMessage(t *testing.T) {
	msg, err := serializeToMessage(sighting("orcasound_1"), submittedAt)
	require.NoError(t, err)

	assert.Equal(t, []byte("orcasound_1"), msg.Key)
	assert.Contains(t, string(msg.Value), `"locationKey":"lime_kiln_point"`)
	assert.NotContains(t, string(msg.Value), `"original"`)
	require.Len(t, msg.Headers, 4)
	assert.Equal(t, "source_type", msg.Headers[0].Key)
	assert.Equal(t, []byte("acoustic_detection"), msg.Headers[0].Value)
	assert.Equal(t, []byte("false"), msg.Headers[2].Value)
	assert.Equal(t, []byte(submittedAt.Format(time.RFC3339)), msg.Headers[3].Value)
}

func TestWriter_Submit(t *testing.T) {
	fw := &fakeWriter{}
	w := newTestWriter(fw)

	n, mode, err := w.Submit(context.Background(), []domain.Sighting{sighting("a"), sighting("b")})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, Mode, mode)
	require.Len(t, fw.msgs, 2)
	assert.Equal(t, []byte("b"), fw.msgs[1].Key)

	require.NoError(t, w.Close())
	assert.True(t, fw.closed)
}

func TestWriter_SubmitEmpty(t *testing.T) {
	fw := &fakeWriter{}
	n, mode, err := newTestWriter(fw).Submit(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, Mode, mode)
	assert.Empty(t, fw.msgs)
}

func TestWriter_SubmitError(t *testing.T) {
	fw := &fakeWriter{err: errors.New("leader not available")}
	n, mode, err := newTestWriter(fw).Submit(context.Background(), []domain.Sighting{sighting("a")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")
	assert.Zero(t, n)
	assert.Equal(t, Mode, mode)
}
