// Command genmock builds a merged sightings fixture from the bundled
// synthetic payloads of every built-in source. It runs the same transform,
// identity and dedupe steps as an import cycle so the fixture matches real
// pipeline output.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock/sightings.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/orca-sightings-etl/internal/adapter/upstream"
	"github.com/couchcryptid/orca-sightings-etl/internal/domain"
	"github.com/couchcryptid/orca-sightings-etl/internal/observability"
	"github.com/couchcryptid/orca-sightings-etl/internal/pipeline"
)

// fixtureTime pins "now" so relative timestamps and ids are reproducible.
var fixtureTime = time.Date(2024, time.July, 22, 18, 0, 0, 0, time.UTC)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the merged sightings fixture")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}

	domain.SetClock(clockwork.NewFakeClockAt(fixtureTime))
	defer domain.SetClock(nil)

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	transformer := pipeline.NewTransformer(nil, logger, observability.NewMetricsForTesting())

	var union []domain.Sighting //nolint:prealloc // size depends on fallback payloads
	for _, d := range upstream.Definitions() {
		records, err := upstream.FallbackRecords(d)
		if err != nil {
			return fmt.Errorf("loading %s: %w", d.Context.Tag, err)
		}
		sightings, skipped := transformer.Transform(ctx, d.Context, upstream.MarkSynthetic(records))
		union = append(union, sightings...)
		log.Printf("%s: %d records, %d sightings, %d skipped", d.Context.Tag, len(records), len(sightings), skipped)
	}

	union = domain.EnsureUniqueIDs(union)
	merged := domain.Dedupe(union)
	log.Printf("total: %d combined, %d merged, %d duplicates", len(union), len(merged), len(union)-len(merged))

	batch := domain.NewMergedBatch(merged, "orca-sightings-import", fixtureTime)
	if err := writeJSON(*out, batch); err != nil {
		return fmt.Errorf("writing fixture: %w", err)
	}
	log.Printf("wrote fixture: %s", *out)

	printStats(merged)
	return nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

type keyCount struct {
	key   string
	count int
}

func sortedCounts(m map[string]int) []keyCount {
	out := make([]keyCount, 0, len(m))
	for k, c := range m {
		out = append(out, keyCount{k, c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].key < out[j].key
	})
	return out
}

func printStats(sightings []domain.Sighting) {
	byType := map[string]int{}
	byBehavior := map[string]int{}
	byLocation := map[string]int{}
	var minConf, maxConf float64 = 1, 0
	for i := range sightings {
		s := &sightings[i]
		byType[string(s.SourceType)]++
		byBehavior[string(s.Behavior)]++
		byLocation[s.LocationName]++
		minConf = min(minConf, s.Confidence)
		maxConf = max(maxConf, s.Confidence)
	}

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Total: %d\n", len(sightings))
	printCounts("By source type", byType)
	printCounts("By behavior", byBehavior)
	printCounts("By location", byLocation)
	if len(sightings) > 0 {
		fmt.Printf("Confidence: min=%.2f max=%.2f\n", minConf, maxConf)
		first := sightings[0]
		fmt.Printf("\nMost recent sighting:\n")
		fmt.Printf("  ID: %s\n", first.ID)
		fmt.Printf("  Timestamp: %s\n", first.Timestamp.Format(time.RFC3339))
		fmt.Printf("  Location: %s (%s, key=%s)\n", first.LocationName, first.LocationSource, first.LocationKey)
		fmt.Printf("  Group size: %d, Behavior: %s, Confidence: %.2f\n", first.GroupSize, first.Behavior, first.Confidence)
	}
}

func printCounts(label string, m map[string]int) {
	fmt.Printf("%s:", label)
	for _, kc := range sortedCounts(m) {
		fmt.Printf(" %s=%d", kc.key, kc.count)
	}
	fmt.Println()
}
