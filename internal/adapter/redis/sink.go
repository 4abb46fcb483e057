// Package redis caches the latest merged batch under a single key so
// read-heavy consumers can serve the feed without touching disk.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/couchcryptid/orca-sightings-etl/internal/domain"
)

// Mode is the sink mode this sink reports.
const Mode = "redis"

type setter interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
	Close() error
}

// Sink stores the merged batch JSON at a fixed key. It implements pipeline.Sink.
type Sink struct {
	client setter
	key    string
	source string
	now    func() time.Time
	logger *slog.Logger
}

// NewSink connects to addr. The connection is established lazily by the client.
func NewSink(addr, password string, db int, key string, logger *slog.Logger) *Sink {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Sink{client: client, key: key, source: "orca-sightings-import", now: time.Now, logger: logger}
}

// Submit replaces the cached batch. Original upstream records are dropped.
func (s *Sink) Submit(ctx context.Context, sightings []domain.Sighting) (int, string, error) {
	slim := make([]domain.Sighting, len(sightings))
	for i, v := range sightings {
		v.Original = nil
		slim[i] = v
	}
	payload, err := json.Marshal(domain.NewMergedBatch(slim, s.source, s.now()))
	if err != nil {
		return 0, Mode, fmt.Errorf("encode merged batch: %w", err)
	}
	if err := s.client.Set(ctx, s.key, payload, 0).Err(); err != nil {
		return 0, Mode, fmt.Errorf("redis set %s: %w", s.key, err)
	}
	s.logger.Debug("cached merged batch", "key", s.key, "count", len(slim), "bytes", len(payload))
	return len(slim), Mode, nil
}

func (s *Sink) Close() error {
	return s.client.Close()
}
