package domain

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// timeLayouts are tried in order after RFC 3339.
var timeLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
	"Jan 2, 2006 3:04 PM",
	"01/02/2006 15:04",
	"01/02/2006",
}

var (
	// clockTimeRe matches free-text times such as "3:45pm", "3:45 PM", "15:10", "7am".
	clockTimeRe = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*(a\.?m\b\.?|p\.?m\b\.?)?`)

	// monthDayRe matches free-text dates such as "7/22" or "7/22/2024".
	monthDayRe = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{2,4}))?\b`)
)

// epochMillisThreshold separates unix seconds from unix milliseconds.
const epochMillisThreshold = 1e11

// maxFutureSkew bounds how far past "now" a parsed timestamp may lie before
// it is treated as garbage.
const maxFutureSkew = 48 * time.Hour

// Plausible instants lie in [1970-01-01, 9999-12-31]; everything outside
// cannot be written as an RFC 3339 timestamp or predates unix time.
var (
	earliestTimestamp = time.Unix(0, 0).UTC()
	latestTimestamp   = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)
)

// plausible reports whether t lies in the representable timestamp range.
func plausible(t time.Time) bool {
	return !t.Before(earliestTimestamp) && !t.After(latestTimestamp)
}

// ParseTimestamp parses a timestamp value of unknown type: RFC 3339 and common
// layouts, or unix seconds/milliseconds as a number or digit string. Instants
// outside [1970, 9999] are reported as unparsable.
func ParseTimestamp(v any) (time.Time, bool) {
	t, ok := parseTimestamp(v)
	if !ok || !plausible(t) {
		return time.Time{}, false
	}
	return t, true
}

func parseTimestamp(v any) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		return parseTimeString(t)
	case float64:
		return fromEpoch(t)
	case int64:
		return fromEpoch(float64(t))
	case int:
		return fromEpoch(float64(t))
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return time.Time{}, false
		}
		return fromEpoch(f)
	case time.Time:
		if t.IsZero() {
			return time.Time{}, false
		}
		return t.UTC(), true
	default:
		return time.Time{}, false
	}
}

// ResolveTimestamp parses v, substituting now when it cannot be parsed or lies
// more than maxFutureSkew ahead of now, then overlays separate free-text
// time-of-day and month/day fragments. An overlay that leaves the plausible
// range is discarded.
func ResolveTimestamp(v any, timeText, dateText string, now time.Time) time.Time {
	ts, ok := ParseTimestamp(v)
	if !ok || ts.After(now.Add(maxFutureSkew)) {
		ts = now.UTC()
	}
	overlaid := OverlayClockTime(OverlayDate(ts, dateText), timeText)
	if !plausible(overlaid) {
		return ts.UTC()
	}
	return overlaid.UTC()
}

// OverlayClockTime replaces the hour and minute of base with the first free-text
// time such as "3:45pm" or "15:10". Bare numbers ("3 orcas") are not times.
func OverlayClockTime(base time.Time, text string) time.Time {
	var m []string
	for _, cand := range clockTimeRe.FindAllStringSubmatch(text, -1) {
		if cand[2] != "" || cand[3] != "" {
			m = cand
			break
		}
	}
	if m == nil {
		return base
	}
	hour, err := strconv.Atoi(m[1])
	if err != nil {
		return base
	}
	minute := 0
	if m[2] != "" {
		minute, err = strconv.Atoi(m[2])
		if err != nil || minute > 59 {
			return base
		}
	}
	meridiem := strings.ToLower(strings.ReplaceAll(m[3], ".", ""))
	switch meridiem {
	case "am":
		if hour < 1 || hour > 12 {
			return base
		}
		if hour == 12 {
			hour = 0
		}
	case "pm":
		if hour < 1 || hour > 12 {
			return base
		}
		if hour != 12 {
			hour += 12
		}
	default:
		if hour > 23 {
			return base
		}
	}
	return time.Date(base.Year(), base.Month(), base.Day(), hour, minute, 0, 0, base.Location())
}

// OverlayDate replaces the month and day (and year, when given) of base with a
// free-text "m/d[/yyyy]" fragment.
func OverlayDate(base time.Time, text string) time.Time {
	m := monthDayRe.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return base
	}
	month, errM := strconv.Atoi(m[1])
	day, errD := strconv.Atoi(m[2])
	if errM != nil || errD != nil || month < 1 || month > 12 || day < 1 || day > 31 {
		return base
	}
	year := base.Year()
	if m[3] != "" {
		y, err := strconv.Atoi(m[3])
		if err != nil {
			return base
		}
		if y < 100 {
			y += 2000
		}
		year = y
	}
	out := time.Date(year, time.Month(month), day, base.Hour(), base.Minute(), base.Second(), 0, base.Location())
	if out.Day() != day {
		// Normalized past month end (e.g. 2/30).
		return base
	}
	return out
}

// HourBucket truncates t to the hour in UTC, formatted for dedup keys.
func HourBucket(t time.Time) string {
	return t.UTC().Truncate(time.Hour).Format("2006-01-02T15")
}

func parseTimeString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), true
	}
	if isDigits(s) {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return time.Time{}, false
		}
		return fromEpoch(f)
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func fromEpoch(f float64) (time.Time, bool) {
	if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, false
	}
	if f >= epochMillisThreshold {
		if f > float64(latestTimestamp.UnixMilli()) {
			return time.Time{}, false
		}
		return time.UnixMilli(int64(f)).UTC(), true
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			if s[i] == '.' && i > 0 {
				continue
			}
			return false
		}
	}
	return true
}
