package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UpstreamID formats an upstream identifier into a sighting id scoped by source tag.
// Returns "" when the upstream value is missing or empty.
func UpstreamID(tag string, v any) string {
	var id string
	switch t := v.(type) {
	case string:
		id = strings.TrimSpace(t)
	case float64:
		id = strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		id = strconv.Itoa(t)
	case int64:
		id = strconv.FormatInt(t, 10)
	}
	if id == "" {
		return ""
	}
	return tag + "_" + id
}

// SynthesizeID builds an id for records without a stable upstream id:
// source tag, unix milliseconds, and a random suffix.
func SynthesizeID(tag string, ts time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%d_%s", tag, ts.UnixMilli(), suffix)
}

// EnsureUniqueIDs appends "-2", "-3", ... to ids already seen earlier in the
// batch. The input slice is modified in place and returned.
func EnsureUniqueIDs(sightings []Sighting) []Sighting {
	seen := make(map[string]int, len(sightings))
	for i := range sightings {
		id := sightings[i].ID
		n, dup := seen[id]
		if !dup {
			seen[id] = 1
			continue
		}
		for {
			n++
			candidate := fmt.Sprintf("%s-%d", id, n)
			if _, taken := seen[candidate]; !taken {
				seen[id] = n
				seen[candidate] = 1
				sightings[i].ID = candidate
				break
			}
		}
	}
	return sightings
}
