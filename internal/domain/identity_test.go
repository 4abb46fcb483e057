package domain

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUpstreamID(t *testing.T) {
	assert.Equal(t, "social_abc123", UpstreamID("social", "abc123"))
	assert.Equal(t, "aggregator_42", UpstreamID("aggregator", 42.0))
	assert.Equal(t, "aggregator_7", UpstreamID("aggregator", 7))
	assert.Empty(t, UpstreamID("social", nil))
	assert.Empty(t, UpstreamID("social", "   "))
	assert.Empty(t, UpstreamID("social", map[string]any{"x": 1}))
}

func TestSynthesizeID(t *testing.T) {
	ts := time.Date(2024, 7, 22, 18, 0, 0, 0, time.UTC)
	id := SynthesizeID("orcasound", ts)

	assert.Regexp(t, regexp.MustCompile(`^orcasound_1721671200000_[0-9a-f]{8}$`), id)
	assert.NotEqual(t, id, SynthesizeID("orcasound", ts))
}

func TestEnsureUniqueIDs(t *testing.T) {
	in := []Sighting{{ID: "a"}, {ID: "a-2"}, {ID: "a"}, {ID: "b"}, {ID: "a"}}
	out := EnsureUniqueIDs(in)

	ids := make([]string, len(out))
	for i, s := range out {
		ids[i] = s.ID
	}
	assert.Equal(t, []string{"a", "a-2", "a-3", "b", "a-4"}, ids)
}
