package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/orca-sightings-etl/internal/config"
	"github.com/couchcryptid/orca-sightings-etl/internal/domain"
)

// Mode is the sink mode this writer reports.
const Mode = "kafka"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes merged sightings to a Kafka topic, one message per
// sighting keyed by sighting id. It implements pipeline.Sink.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
	now    func() time.Time
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger, now: time.Now}
}

// Submit serializes and publishes the batch in a single WriteMessages call.
// Sightings are all-or-nothing: on error none are counted as accepted.
func (w *Writer) Submit(ctx context.Context, sightings []domain.Sighting) (int, string, error) {
	if len(sightings) == 0 {
		return 0, Mode, nil
	}
	submittedAt := w.now().UTC()
	msgs := make([]kafkago.Message, len(sightings))
	for i := range sightings {
		msg, err := serializeToMessage(sightings[i], submittedAt)
		if err != nil {
			return 0, Mode, err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return 0, Mode, fmt.Errorf("publish sightings: %w", err)
	}
	w.logger.Debug("published sightings", "count", len(msgs))
	return len(msgs), Mode, nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a Sighting into a Kafka message. The original
// upstream record is dropped to keep messages small.
func serializeToMessage(s domain.Sighting, submittedAt time.Time) (kafkago.Message, error) {
	s.Original = nil
	data, err := json.Marshal(s)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize sighting: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(s.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "source_type", Value: []byte(s.SourceType)},
			{Key: "location_key", Value: []byte(s.LocationKey)},
			{Key: "synthetic", Value: []byte(strconv.FormatBool(s.Synthetic))},
			{Key: "submitted_at", Value: []byte(submittedAt.Format(time.RFC3339))},
		},
	}, nil
}
