package domain

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var sourceTypes = []SourceType{SourceAcoustic, SourceHuman, SourceSocial, SourceAI}

// TestConfidenceWithinRange checks every signal combination clamps into the
// per-source range and lands on two decimals.
func TestConfidenceWithinRange(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("confidence stays within source range", prop.ForAll(
		func(typeIdx int, override float64, pod, place, media, confirmed, hedged bool, detections int) bool {
			st := sourceTypes[typeIdx]
			c := ComputeConfidence(st, ConfidenceSignals{
				BaseOverride:     override,
				PodID:            pod,
				SpecificLocation: place,
				Media:            media,
				Detections:       detections,
				Confirmed:        confirmed,
				Hedging:          hedged,
			})
			lo, hi := ConfidenceRange(st)
			return c >= lo && c <= hi && c >= 0.3 && c <= 0.95
		},
		gen.IntRange(0, len(sourceTypes)-1),
		gen.Float64Range(-1, 2),
		gen.Bool(), gen.Bool(), gen.Bool(), gen.Bool(), gen.Bool(),
		gen.IntRange(0, 10),
	))

	properties.TestingRun(t)
}

// TestGroupSizeAlwaysPositive checks arbitrary text and counts never yield a
// group size outside 1..200.
func TestGroupSizeAlwaysPositive(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("group size is bounded", prop.ForAll(
		func(explicit int, text string, typeIdx int) bool {
			n := InferGroupSize(float64(explicit), text, sourceTypes[typeIdx])
			return n >= 1 && n <= maxGroupSize
		},
		gen.IntRange(-1000, 1000),
		gen.AnyString(),
		gen.IntRange(0, len(sourceTypes)-1),
	))

	properties.TestingRun(t)
}

// TestDedupeProperties checks dedupe output has unique keys, is ordered most
// recent first, and is stable under a second pass.
func TestDedupeProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)
	base := time.Date(2024, 7, 22, 0, 0, 0, 0, time.UTC)

	build := func(offsets []int) []Sighting {
		out := make([]Sighting, len(offsets))
		for i, m := range offsets {
			out[i] = sightingAt(fmt.Sprintf("s%d", i), fmt.Sprintf("k%d", m%3), base.Add(time.Duration(m)*time.Minute))
		}
		return out
	}

	properties.Property("keys are unique", prop.ForAll(
		func(offsets []int) bool {
			seen := map[string]bool{}
			for _, s := range Dedupe(build(offsets)) {
				k := DedupKey(s)
				if seen[k] {
					return false
				}
				seen[k] = true
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 600)),
	))

	properties.Property("ordered most recent first", prop.ForAll(
		func(offsets []int) bool {
			out := Dedupe(build(offsets))
			for i := 1; i < len(out); i++ {
				if out[i].Timestamp.After(out[i-1].Timestamp) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 600)),
	))

	properties.Property("idempotent", prop.ForAll(
		func(offsets []int) bool {
			once := Dedupe(build(offsets))
			twice := Dedupe(once)
			if len(once) != len(twice) {
				return false
			}
			for i := range once {
				if once[i].ID != twice[i].ID {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 600)),
	))

	properties.TestingRun(t)
}

// TestNormalizedTimestampAlwaysEncodes checks arbitrary numeric and digit
// string timestamps always yield a sighting that serializes to JSON.
func TestNormalizedTimestampAlwaysEncodes(t *testing.T) {
	now := time.Date(2024, 7, 22, 18, 0, 0, 0, time.UTC)
	pinClock(t, now)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	encodes := func(v any) bool {
		s, err := Normalize(RawRecord{"timestamp": v, "description": "calls heard"}, SourceContext{Tag: "orcasound", Type: SourceAcoustic})
		if err != nil {
			return false
		}
		if _, err := json.Marshal(s); err != nil {
			return false
		}
		return plausible(s.Timestamp) && !s.Timestamp.After(now.Add(maxFutureSkew))
	}

	properties.Property("float timestamps encode", prop.ForAll(
		func(f float64) bool { return encodes(f) },
		gen.Float64(),
	))

	properties.Property("large float timestamps encode", prop.ForAll(
		func(f float64) bool { return encodes(f) },
		gen.Float64Range(1e9, 1e22),
	))

	properties.Property("digit string timestamps encode", prop.ForAll(
		func(digits string) bool { return encodes(digits) },
		gen.NumString(),
	))

	properties.TestingRun(t)
}
