package domain

import (
	"math"
	"regexp"
)

// Confidence increments and decrements applied on top of the source base.
const (
	BonusPodID           = 0.10
	BonusSpecificPlace   = 0.05
	BonusMedia           = 0.10
	BonusMultiDetections = 0.05
	BonusConfirmed       = 0.10
	PenaltyHedging       = 0.15
)

var (
	// podIDRe matches Southern Resident pod names and catalogue ids (J35, K21, L87, T65A, CA171).
	podIDRe = regexp.MustCompile(`(?i)\b([jkl][- ]?pod|[jkl]\d{1,3}|t\d{2,3}[a-f]?\d?|ca\d{2,3}|srkw)\b`)

	// confirmedRe does not match "unconfirmed" thanks to the leading word boundary.
	confirmedRe = regexp.MustCompile(`(?i)\b(confirmed|verified|positive id|id'?d)\b`)

	hedgingRe = regexp.MustCompile(`(?i)\b(possible|possibly|unconfirmed|unverified|maybe|might|probably|not sure|unsure|uncertain|could be|distant|far off)\b`)
)

// ConfidenceSignals are the corroborating details found in a raw record.
type ConfidenceSignals struct {
	BaseOverride     float64 // classifier score in (0,1]; 0 means use the source base
	PodID            bool
	SpecificLocation bool
	Media            bool
	Detections       int
	Confirmed        bool
	Hedging          bool
}

// BaseConfidence is the starting confidence for a source type.
func BaseConfidence(t SourceType) float64 {
	switch t {
	case SourceAcoustic:
		return 0.7
	case SourceAI:
		return 0.8
	default:
		return 0.6
	}
}

// ConfidenceRange returns the inclusive bounds confidence is clamped to.
// Every range lies within [0.3, 0.95].
func ConfidenceRange(t SourceType) (lo, hi float64) {
	switch t {
	case SourceAcoustic:
		return 0.4, 0.95
	case SourceAI:
		return 0.5, 0.95
	default:
		return 0.3, 0.95
	}
}

// ComputeConfidence applies bonuses and penalties to the source base and
// clamps the result to the source range, rounded to two decimals.
func ComputeConfidence(t SourceType, sig ConfidenceSignals) float64 {
	c := BaseConfidence(t)
	if sig.BaseOverride > 0 && sig.BaseOverride <= 1 {
		c = sig.BaseOverride
	}
	if sig.PodID {
		c += BonusPodID
	}
	if sig.SpecificLocation {
		c += BonusSpecificPlace
	}
	if sig.Media {
		c += BonusMedia
	}
	if sig.Detections > 1 {
		c += BonusMultiDetections
	}
	if sig.Confirmed {
		c += BonusConfirmed
	}
	if sig.Hedging {
		c -= PenaltyHedging
	}
	lo, hi := ConfidenceRange(t)
	return clamp(math.Round(c*100)/100, lo, hi)
}

// MentionsPodID reports whether text names a pod or catalogued individual.
func MentionsPodID(text string) bool {
	return podIDRe.MatchString(text)
}

// IsConfirmed reports explicit confirmation language.
func IsConfirmed(text string) bool {
	return confirmedRe.MatchString(text)
}

// IsHedged reports hedging language.
func IsHedged(text string) bool {
	return hedgingRe.MatchString(text)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
