package domain

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
)

// Geo enrichment outcomes recorded in Sighting.GeoSource.
const (
	GeoForward  = "forward"
	GeoReverse  = "reverse"
	GeoOriginal = "original"
	GeoFailed   = "failed"
)

// placeHintRe captures a capitalized place phrase after "near", "off", "at" or "by".
var placeHintRe = regexp.MustCompile(`\b(?:near|off|at|by|outside)\s+((?:[A-Z][\w'.-]*)(?:\s+(?:[A-Z][\w'.-]*|of|de|la))*)`)

// PlaceHint extracts a candidate place name from free text, e.g. "Dungeness Spit"
// from "two orcas off Dungeness Spit this morning". Returns "" when none is found.
func PlaceHint(text string) string {
	m := placeHintRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimRight(strings.TrimSpace(m[1]), ".")
}

// EnrichWithGeocoding attempts to refine a sighting's location with a geocoder.
// Sightings left at the region center are forward geocoded from a place hint in
// their original text; sightings located by raw coordinates are reverse geocoded.
// Gazetteer matches are already precise and are left alone. When the geocoder is
// nil or fails, the sighting is returned with GeoSource set accordingly.
func EnrichWithGeocoding(ctx context.Context, s Sighting, geocoder Geocoder, logger *slog.Logger) Sighting {
	if geocoder == nil {
		return s
	}

	switch s.LocationSource {
	case LocationFromDefault:
		hint := PlaceHint(originalText(s.Original))
		if hint == "" {
			s.GeoSource = GeoOriginal
			return s
		}
		result, err := geocoder.ForwardGeocode(ctx, hint)
		if err != nil {
			logger.Warn("forward geocoding failed",
				"sighting_id", s.ID,
				"query", hint,
				"error", err,
			)
			s.GeoSource = GeoFailed
			return s
		}
		c := Coordinates{Lat: result.Lat, Lng: result.Lng}
		if !validCoords(c) {
			s.GeoSource = GeoOriginal
			return s
		}
		s.Coordinates = c
		s.LocationKey = GridKey(c)
		s.LocationName = hint
		if result.PlaceName != "" {
			s.LocationName = result.PlaceName
		}
		s.LocationSource = GeoForward
		s.FormattedAddress = result.FormattedAddress
		s.GeoSource = GeoForward
		s.Confidence = placedConfidence(s)
		return s

	case LocationFromCoordinates:
		result, err := geocoder.ReverseGeocode(ctx, s.Coordinates.Lat, s.Coordinates.Lng)
		if err != nil {
			logger.Warn("reverse geocoding failed",
				"sighting_id", s.ID,
				"lat", s.Coordinates.Lat,
				"lng", s.Coordinates.Lng,
				"error", err,
			)
			s.GeoSource = GeoFailed
			return s
		}
		if result.FormattedAddress == "" {
			s.GeoSource = GeoOriginal
			return s
		}
		if result.PlaceName != "" {
			s.LocationName = result.PlaceName
		}
		s.FormattedAddress = result.FormattedAddress
		s.GeoSource = GeoReverse
		return s
	}

	s.GeoSource = GeoOriginal
	return s
}

func originalText(original json.RawMessage) string {
	raw, ok := decodeOriginal(original)
	if !ok {
		return ""
	}
	return FreeText(raw)
}

// placedConfidence rescores a sighting that forward geocoding moved from the
// region default to a specific place, so it earns the specific-place bonus.
func placedConfidence(s Sighting) float64 {
	raw, ok := decodeOriginal(s.Original)
	if !ok {
		return s.Confidence
	}
	signals := confidenceSignals(raw, s.SourceType, FreeText(raw))
	signals.SpecificLocation = true
	return ComputeConfidence(s.SourceType, signals)
}

func decodeOriginal(original json.RawMessage) (RawRecord, bool) {
	if len(original) == 0 {
		return nil, false
	}
	var raw RawRecord
	if err := json.Unmarshal(original, &raw); err != nil || len(raw) == 0 {
		return nil, false
	}
	return raw, true
}
