// Package domain models killer whale sightings gathered from heterogeneous
// upstream feeds around the Salish Sea.
//
// # Sources
//
// Records arrive from three kinds of feed, each with its own vocabulary:
//
//	Hydrophone networks (acoustic_detection): JSON:API resources keyed by a
//	  node slug such as "rpi_lime_kiln", with detection counts and audio URIs.
//	Community forums (social_media_report): listing envelopes of posts whose
//	  title and selftext carry the whole report in prose.
//	Sighting aggregators (human_report, ai_detection): flat report objects with
//	  an optional nested location, a free-text time ("3:45pm") and, for
//	  machine-classified reports, a model score.
//
// Nothing about a raw record is contractual. [ResolvePayload] recognizes bare
// arrays and a small set of envelope fields; [Normalize] reads each field from
// an ordered alias list and never fails on a missing value.
//
// # Normalization
//
// Location: a node id or a whole-phrase gazetteer alias wins, then explicit
// coordinates (keyed on a 0.01 degree grid), then a "lat, lng" pair embedded in
// text, then the Salish Sea center. See [ResolveLocation].
//
// Timestamp: RFC 3339 and common layouts, unix seconds or milliseconds, with
// separate free-text clock times and m/d fragments overlaid. Unparseable
// values fall back to the package clock so tests can pin "now" via [SetClock].
//
// Behavior and group size: keyword rules evaluated in priority order. An
// explicit count beats a "3 orcas" mention, which beats qualitative words
// ("pod", "pair"), which beat the per-source default.
//
// Confidence: a per-source base adjusted by corroborating signals (pod id,
// specific place, media, multiple detections, confirmation) and hedging, then
// clamped to the source range and rounded to two decimals.
//
// # Deduplication
//
// Sightings sharing a location key and UTC hour are treated as one event and
// the most recent survives. See [Dedupe].
package domain
