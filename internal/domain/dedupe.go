package domain

import "sort"

// DedupKey identifies the real-world event a sighting most likely describes:
// its location key and the UTC hour it falls in.
func DedupKey(s Sighting) string {
	return s.LocationKey + "_" + HourBucket(s.Timestamp)
}

// SortByRecency orders sightings by timestamp, most recent first. The sort is
// stable so equal timestamps keep their input order.
func SortByRecency(sightings []Sighting) {
	sort.SliceStable(sightings, func(i, j int) bool {
		return sightings[i].Timestamp.After(sightings[j].Timestamp)
	})
}

// Dedupe collapses sightings sharing a DedupKey, keeping the most recent one
// (first seen after sorting by recency). The result is ordered most recent
// first; the input slice is not modified and survivors are not altered.
//
// The key is coarse: distinct sightings at the same place within one
// clock hour merge, and one event reported either side of an hour boundary does not.
func Dedupe(sightings []Sighting) []Sighting {
	sorted := make([]Sighting, len(sightings))
	copy(sorted, sightings)
	SortByRecency(sorted)

	seen := make(map[string]struct{}, len(sorted))
	out := make([]Sighting, 0, len(sorted))
	for _, s := range sorted {
		key := DedupKey(s)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}
