// Package postgres upserts merged sightings into a PostgreSQL table.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/couchcryptid/orca-sightings-etl/internal/domain"
)

// Mode is the sink mode this sink reports.
const Mode = "postgres"

const schema = `
CREATE TABLE IF NOT EXISTS sightings (
	id                TEXT PRIMARY KEY,
	observed_at       TIMESTAMPTZ      NOT NULL,
	location_name     TEXT             NOT NULL,
	location_key      TEXT             NOT NULL,
	location_source   TEXT             NOT NULL,
	lat               DOUBLE PRECISION NOT NULL,
	lng               DOUBLE PRECISION NOT NULL,
	group_size        INTEGER          NOT NULL,
	behavior          TEXT             NOT NULL,
	confidence        NUMERIC(3,2)     NOT NULL,
	source            TEXT             NOT NULL,
	source_type       TEXT             NOT NULL,
	synthetic         BOOLEAN          NOT NULL DEFAULT FALSE,
	formatted_address TEXT,
	imported_at       TIMESTAMPTZ      NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_sightings_observed_at  ON sightings (observed_at DESC);
CREATE INDEX IF NOT EXISTS idx_sightings_location_key ON sightings (location_key);
`

const upsertSQL = `
INSERT INTO sightings (id, observed_at, location_name, location_key, location_source, lat, lng,
	group_size, behavior, confidence, source, source_type, synthetic, formatted_address)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (id) DO UPDATE SET
	observed_at = EXCLUDED.observed_at,
	location_name = EXCLUDED.location_name,
	location_key = EXCLUDED.location_key,
	location_source = EXCLUDED.location_source,
	lat = EXCLUDED.lat,
	lng = EXCLUDED.lng,
	group_size = EXCLUDED.group_size,
	behavior = EXCLUDED.behavior,
	confidence = EXCLUDED.confidence,
	source = EXCLUDED.source,
	source_type = EXCLUDED.source_type,
	synthetic = EXCLUDED.synthetic,
	formatted_address = EXCLUDED.formatted_address,
	imported_at = NOW()`

// Sink writes merged batches in one transaction. It implements pipeline.Sink.
type Sink struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// NewSink wraps an open database handle.
func NewSink(db *sql.DB, logger *slog.Logger) *Sink {
	return &Sink{db: db, logger: logger}
}

// EnsureSchema creates the sightings table and its indexes when missing.
func (s *Sink) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create sightings table: %w", err)
	}
	return nil
}

// Submit upserts every sighting. The transaction is all-or-nothing.
func (s *Sink) Submit(ctx context.Context, sightings []domain.Sighting) (accepted int, mode string, err error) {
	if len(sightings) == 0 {
		return 0, Mode, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, Mode, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return 0, Mode, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, v := range sightings {
		if _, err = stmt.ExecContext(ctx,
			v.ID,
			v.Timestamp,
			v.LocationName,
			v.LocationKey,
			v.LocationSource,
			v.Coordinates.Lat,
			v.Coordinates.Lng,
			v.GroupSize,
			string(v.Behavior),
			v.Confidence,
			v.Source,
			string(v.SourceType),
			v.Synthetic,
			nullString(v.FormattedAddress),
		); err != nil {
			return 0, Mode, fmt.Errorf("upsert sighting %s: %w", v.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, Mode, fmt.Errorf("commit transaction: %w", err)
	}
	s.logger.Debug("upserted sightings", "count", len(sightings))
	return len(sightings), Mode, nil
}

func (s *Sink) Close() error {
	return s.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
