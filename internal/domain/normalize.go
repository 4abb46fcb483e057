package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrEmptyRecord is returned for records with no fields at all.
var ErrEmptyRecord = errors.New("empty raw record")

// SyntheticMarker is the raw field adapters set on fallback records.
const SyntheticMarker = "_synthetic"

// Field aliases searched in order when reading raw records.
var (
	idFields         = []string{"id", "_id", "uuid", "detection_id", "report_id", "post_id"}
	timestampFields  = []string{"timestamp", "time", "detected_at", "created_at", "createdAt", "created", "created_utc", "date", "reported_at", "observed_at"}
	textFields       = []string{"title", "description", "comments", "comment", "text", "body", "selftext", "notes", "summary", "category", "behavior", "behaviour"}
	nodeFields       = []string{"node", "node_id", "hydrophone", "hydrophone_id", "feed", "feed_id", "location_id", "slug"}
	locationFields   = []string{"location_name", "locationName", "location", "place", "area", "site"}
	latFields        = []string{"latitude", "lat"}
	lngFields        = []string{"longitude", "lng", "lon", "long"}
	countFields      = []string{"count", "group_size", "groupSize", "number_sighted", "num_whales", "number"}
	timeTextFields   = []string{"time_text", "reported_time", "time_of_day", "sighting_time"}
	dateTextFields   = []string{"date_text", "reported_date", "sighting_date"}
	mediaFields      = []string{"media", "image", "image_url", "images", "photo", "photos", "photo_url", "video", "video_url", "audio_url", "audio_uri", "spectrogram_url", "url_overridden_by_dest"}
	podFields        = []string{"pod", "pod_id", "individual_id", "individuals", "whale_id", "ecotype_id"}
	detectionFields  = []string{"detections_count", "detection_count", "num_detections", "candidate_count", "confirmations"}
	scoreFields      = []string{"confidence", "score", "model_confidence", "probability"}
	sourceTypeFields = []string{"sourceType", "source_type"}
	verifiedFields   = []string{"verified", "confirmed"}
)

// Normalize converts one raw record into a canonical Sighting.
// It performs no I/O; "now" comes from the package clock.
func Normalize(raw RawRecord, sc SourceContext) (Sighting, error) {
	if len(raw) == 0 {
		return Sighting{}, ErrEmptyRecord
	}

	st := sc.Type
	if override := SourceType(pickString(raw, sourceTypeFields...)); override.Valid() {
		st = override
	}
	if !st.Valid() {
		st = SourceHuman
	}

	text := FreeText(raw)
	locText := strings.TrimSpace(pickString(raw, locationFields...) + " " + nestedLocationName(raw) + " " + text)
	loc := ResolveLocation(locText, pickString(raw, nodeFields...), explicitCoordinates(raw))

	ts := ResolveTimestamp(
		pickValue(raw, timestampFields...),
		pickString(raw, timeTextFields...),
		pickString(raw, dateTextFields...),
		Now(),
	)

	groupSize := InferGroupSize(pickValue(raw, countFields...), text, st)
	behavior := InferBehavior(text)

	signals := confidenceSignals(raw, st, text)
	signals.SpecificLocation = loc.Specific()

	id := UpstreamID(sc.Tag, pickValue(raw, idFields...))
	if id == "" {
		id = SynthesizeID(sc.Tag, ts)
	}

	original, err := json.Marshal(raw)
	if err != nil {
		return Sighting{}, fmt.Errorf("encode original record: %w", err)
	}

	synthetic := pickBool(raw, SyntheticMarker)
	source := sc.Name
	if source == "" {
		source = sc.Tag
	}
	if synthetic {
		source += " (synthetic)"
	}

	return Sighting{
		ID:             id,
		Timestamp:      ts,
		LocationName:   loc.Name,
		LocationKey:    loc.Key,
		LocationSource: loc.Source,
		Coordinates:    loc.Coords,
		GroupSize:      groupSize,
		Behavior:       behavior,
		Confidence:     ComputeConfidence(st, signals),
		Source:         source,
		SourceType:     st,
		Synthetic:      synthetic,
		Original:       original,
	}, nil
}

// confidenceSignals reads the corroborating details of a record. The
// location signal is left to the caller.
func confidenceSignals(raw RawRecord, st SourceType, text string) ConfidenceSignals {
	signals := ConfidenceSignals{
		PodID:      pickString(raw, podFields...) != "" || MentionsPodID(text),
		Media:      hasMedia(raw),
		Detections: detectionCount(raw),
		Confirmed:  pickBool(raw, verifiedFields...) || IsConfirmed(text),
		Hedging:    IsHedged(text),
	}
	if st == SourceAI {
		signals.BaseOverride = pickFloat(raw, scoreFields...)
	}
	return signals
}

// FreeText concatenates every free-text field of a record, space separated.
func FreeText(raw RawRecord) string {
	parts := make([]string, 0, len(textFields))
	for _, f := range textFields {
		if s, ok := raw[f].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				parts = append(parts, s)
			}
		}
	}
	return strings.Join(parts, " ")
}

func pickValue(raw RawRecord, keys ...string) any {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			continue
		}
		return v
	}
	return nil
}

func pickString(raw RawRecord, keys ...string) string {
	for _, k := range keys {
		switch v := raw[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func pickFloat(raw RawRecord, keys ...string) float64 {
	for _, k := range keys {
		switch v := raw[k].(type) {
		case float64:
			return v
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return f
			}
		}
	}
	return 0
}

func pickBool(raw RawRecord, keys ...string) bool {
	for _, k := range keys {
		switch v := raw[k].(type) {
		case bool:
			if v {
				return true
			}
		case string:
			if b, err := strconv.ParseBool(v); err == nil && b {
				return true
			}
		}
	}
	return false
}

// explicitCoordinates reads top-level lat/lng fields or a nested
// "location"/"coordinates" object.
func explicitCoordinates(raw RawRecord) *Coordinates {
	if c, ok := coordsFrom(raw); ok {
		return &c
	}
	for _, k := range []string{"location", "coordinates", "position", "geo"} {
		if obj, ok := raw[k].(map[string]any); ok {
			if c, ok := coordsFrom(RawRecord(obj)); ok {
				return &c
			}
		}
	}
	return nil
}

func coordsFrom(rec RawRecord) (Coordinates, bool) {
	lat := pickFloat(rec, latFields...)
	lng := pickFloat(rec, lngFields...)
	if lat == 0 && lng == 0 {
		return Coordinates{}, false
	}
	return Coordinates{Lat: lat, Lng: lng}, true
}

func nestedLocationName(raw RawRecord) string {
	if obj, ok := raw["location"].(map[string]any); ok {
		return pickString(RawRecord(obj), "name", "label", "title")
	}
	return ""
}

func hasMedia(raw RawRecord) bool {
	for _, k := range mediaFields {
		switch v := raw[k].(type) {
		case string:
			s := strings.TrimSpace(v)
			if s != "" && s != "self" && s != "default" && s != "nsfw" {
				return true
			}
		case []any:
			if len(v) > 0 {
				return true
			}
		case map[string]any:
			if len(v) > 0 {
				return true
			}
		}
	}
	return false
}

func detectionCount(raw RawRecord) int {
	if n := int(pickFloat(raw, detectionFields...)); n > 0 {
		return n
	}
	for _, k := range []string{"detections", "candidates", "annotations"} {
		if list, ok := raw[k].([]any); ok && len(list) > 0 {
			return len(list)
		}
	}
	return 0
}
