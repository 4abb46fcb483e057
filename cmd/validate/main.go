// Command validate checks a merged sightings artifact (the importer's
// sightings.json or a genmock fixture) against its JSON schema and the
// invariants every import cycle guarantees: unique ids and dedupe keys,
// recency ordering, confidence bounds, and a consistent total.
//
// Usage:
//
//	go run ./cmd/validate -in data/sightings.json
package main

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/couchcryptid/orca-sightings-etl/internal/domain"
)

//go:embed sightings.schema.json
var schemaJSON []byte

const schemaURL = "https://orca-sightings.local/schemas/sightings.schema.json"

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	in := flag.String("in", "", "path to a merged sightings JSON artifact")
	flag.Parse()

	if *in == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*in); code != 0 {
		os.Exit(code)
	}
}

func run(path string) int {
	fmt.Println("=== Orca Sightings Integrity Validation ===")
	fmt.Println()

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read artifact: %v\n", err)
		return 1
	}

	phases, batch, err := validate(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Sightings: %d (totalSightings=%d, lastUpdated=%s)\n",
		len(batch.Sightings), batch.TotalSightings, batch.LastUpdated.Format("2006-01-02T15:04:05Z07:00"))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// validate runs every phase over a raw artifact. The returned error is for
// input that cannot be checked at all.
func validate(data []byte) ([]*phase, domain.MergedBatch, error) {
	var batch domain.MergedBatch
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, batch, fmt.Errorf("decode artifact: %w", err)
	}

	schemaPhase, err := validateSchema(data)
	if err != nil {
		return nil, batch, err
	}

	return []*phase{
		schemaPhase,
		validateIdentity(batch),
		validateOrdering(batch),
		validateValues(batch),
	}, batch, nil
}

// ── Phase 1: Schema ──

func compileSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	c.AssertFormat = true
	if err := c.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	schema, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

func validateSchema(data []byte) (*phase, error) {
	p := &phase{name: "Phase 1: Schema (JSON Schema 2020-12)"}

	schema, err := compileSchema()
	if err != nil {
		return nil, err
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}

	err = schema.Validate(doc)
	var verr *jsonschema.ValidationError
	switch {
	case err == nil:
	case errors.As(err, &verr):
		reportLeaves(p, verr)
	default:
		return nil, fmt.Errorf("validate schema: %w", err)
	}
	return p, nil
}

// reportLeaves records the most specific causes of a schema failure.
func reportLeaves(p *phase, ve *jsonschema.ValidationError) {
	if len(ve.Causes) == 0 {
		p.errorf("%s: %s", ve.InstanceLocation, ve.Message)
		return
	}
	for _, cause := range ve.Causes {
		reportLeaves(p, cause)
	}
}

// ── Phase 2: Identity ──
// Ids are unique and no two sightings share a dedupe key.

func validateIdentity(batch domain.MergedBatch) *phase {
	p := &phase{name: "Phase 2: Identity (ids, dedupe keys)"}

	ids := make(map[string]int, len(batch.Sightings))
	keys := make(map[string]int, len(batch.Sightings))
	for i := range batch.Sightings {
		s := &batch.Sightings[i]
		if first, dup := ids[s.ID]; dup {
			p.errorf("sighting %d: id %q already used by sighting %d", i, s.ID, first)
		} else {
			ids[s.ID] = i
		}
		key := domain.DedupKey(*s)
		if first, dup := keys[key]; dup {
			p.errorf("sighting %d (%s): dedupe key %q already used by sighting %d", i, s.ID, key, first)
		} else {
			keys[key] = i
		}
	}
	return p
}

// ── Phase 3: Ordering ──

func validateOrdering(batch domain.MergedBatch) *phase {
	p := &phase{name: "Phase 3: Ordering (most recent first)"}

	if batch.TotalSightings != len(batch.Sightings) {
		p.errorf("totalSightings=%d but %d sightings present", batch.TotalSightings, len(batch.Sightings))
	}
	for i := 1; i < len(batch.Sightings); i++ {
		prev, cur := batch.Sightings[i-1], batch.Sightings[i]
		if cur.Timestamp.After(prev.Timestamp) {
			p.errorf("sighting %d (%s) at %s is newer than sighting %d (%s) at %s",
				i, cur.ID, cur.Timestamp.Format("2006-01-02T15:04:05Z"), i-1, prev.ID, prev.Timestamp.Format("2006-01-02T15:04:05Z"))
		}
	}
	return p
}

// ── Phase 4: Values ──
// Confidence stays inside the range of its source type.

func validateValues(batch domain.MergedBatch) *phase {
	p := &phase{name: "Phase 4: Values (confidence, source type)"}

	for i := range batch.Sightings {
		s := &batch.Sightings[i]
		if !s.SourceType.Valid() {
			p.errorf("sighting %d (%s): unknown source type %q", i, s.ID, s.SourceType)
			continue
		}
		lo, hi := domain.ConfidenceRange(s.SourceType)
		if s.Confidence < lo || s.Confidence > hi {
			p.errorf("sighting %d (%s): confidence %.2f outside [%.2f, %.2f] for %s", i, s.ID, s.Confidence, lo, hi, s.SourceType)
		}
		if s.Timestamp.IsZero() {
			p.errorf("sighting %d (%s): timestamp is zero", i, s.ID)
		}
		if s.GroupSize < 1 {
			p.errorf("sighting %d (%s): group size %d", i, s.ID, s.GroupSize)
		}
	}
	return p
}
