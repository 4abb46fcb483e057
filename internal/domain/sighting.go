package domain

import (
	"encoding/json"
	"time"
)

// RawRecord is one upstream record exactly as decoded from a source payload.
// Its keys and value types are source-specific and not contractual.
type RawRecord map[string]any

// SourceType is the coarse provenance category of a sighting.
type SourceType string

const (
	SourceAcoustic SourceType = "acoustic_detection"
	SourceHuman    SourceType = "human_report"
	SourceSocial   SourceType = "social_media_report"
	SourceAI       SourceType = "ai_detection"
)

// Valid reports whether t is one of the known source types.
func (t SourceType) Valid() bool {
	switch t {
	case SourceAcoustic, SourceHuman, SourceSocial, SourceAI:
		return true
	default:
		return false
	}
}

// Behavior is the inferred activity class of the animals in a sighting.
type Behavior string

const (
	BehaviorForaging    Behavior = "foraging"
	BehaviorTraveling   Behavior = "traveling"
	BehaviorSocializing Behavior = "socializing"
	BehaviorResting     Behavior = "resting"
	BehaviorVocalizing  Behavior = "vocalizing"
	BehaviorUnknown     Behavior = "unknown"
)

// Coordinates is a WGS-84 latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// SourceContext describes the adapter a raw record came from.
type SourceContext struct {
	Tag  string     // short machine tag, e.g. "orcasound"
	Name string     // human-readable provenance label
	Type SourceType // default source type for records from this adapter
}

// Sighting is the canonical normalized whale observation. It is created by
// Normalize and is not mutated after the transform stage.
type Sighting struct {
	ID             string      `json:"id"`
	Timestamp      time.Time   `json:"timestamp"`
	LocationName   string      `json:"locationName"`
	LocationKey    string      `json:"locationKey"`
	LocationSource string      `json:"locationSource"` // "gazetteer", "coordinates", "default", "forward", "reverse"
	Coordinates    Coordinates `json:"coordinates"`
	GroupSize      int         `json:"groupSize"`
	Behavior       Behavior    `json:"behavior"`
	Confidence     float64     `json:"confidence"`
	Source         string      `json:"source"`
	SourceType     SourceType  `json:"sourceType"`
	Synthetic      bool        `json:"synthetic,omitempty"`

	// Geocoding enrichment fields.
	FormattedAddress string `json:"formattedAddress,omitempty"`
	GeoSource        string `json:"geoSource,omitempty"` // "forward", "reverse", "original", "failed"

	Original json.RawMessage `json:"original,omitempty"`
}

// MergedBatch is the persisted merged feed artifact.
type MergedBatch struct {
	LastUpdated    time.Time  `json:"lastUpdated"`
	Source         string     `json:"source"`
	TotalSightings int        `json:"totalSightings"`
	Sightings      []Sighting `json:"sightings"`
}

// NewMergedBatch wraps deduplicated sightings into the artifact shape.
func NewMergedBatch(sightings []Sighting, source string, at time.Time) MergedBatch {
	if sightings == nil {
		sightings = []Sighting{}
	}
	return MergedBatch{
		LastUpdated:    at.UTC(),
		Source:         source,
		TotalSightings: len(sightings),
		Sightings:      sightings,
	}
}
