package domain

import (
	"regexp"
	"strconv"
	"strings"
)

// BehaviorRule maps keyword patterns to a behavior class.
type BehaviorRule struct {
	Behavior Behavior
	Pattern  *regexp.Regexp
}

// behaviorRules is evaluated in priority order; the first matching rule wins.
var behaviorRules = []BehaviorRule{
	{BehaviorForaging, regexp.MustCompile(`(?i)\b(forag\w*|feed\w*|hunt\w*|fishing|chas(e|ed|ing) (salmon|fish|seals?)|kill|predation|eating|ate a)\b`)},
	{BehaviorTraveling, regexp.MustCompile(`(?i)\b(travel\w*|transit\w*|heading|headed|moving|swimming|passing|northbound|southbound|eastbound|westbound)\b`)},
	{BehaviorSocializing, regexp.MustCompile(`(?i)\b(sociali[sz]\w*|play\w*|breach\w*|spy-?hop\w*|tail ?slap\w*|cartwheel\w*|porpois\w*|pec ?slap\w*|rolling)\b`)},
	{BehaviorResting, regexp.MustCompile(`(?i)\b(rest\w*|sleep\w*|logging|milling)\b`)},
	{BehaviorVocalizing, regexp.MustCompile(`(?i)\b(vocal\w*|calls?|calling|clicks?|clicking|whistl\w*|echolocat\w*|heard)\b`)},
}

// InferBehavior returns the behavior of the first rule matching text, or
// BehaviorUnknown when none does.
func InferBehavior(text string) Behavior {
	if strings.TrimSpace(text) == "" {
		return BehaviorUnknown
	}
	for _, r := range behaviorRules {
		if r.Pattern.MatchString(text) {
			return r.Behavior
		}
	}
	return BehaviorUnknown
}

// GroupSizeRule maps a qualitative keyword to an animal count.
type GroupSizeRule struct {
	Size    int
	Pattern *regexp.Regexp
}

// groupSizeRules is evaluated in order; "superpod" precedes "pod".
var groupSizeRules = []GroupSizeRule{
	{20, regexp.MustCompile(`(?i)\bsuper ?pods?\b`)},
	{5, regexp.MustCompile(`(?i)\bpods?\b`)},
	{4, regexp.MustCompile(`(?i)\bfamil(y|ies)\b|\bmatriline\b`)},
	{3, regexp.MustCompile(`(?i)\b(group|several)\b`)},
	{2, regexp.MustCompile(`(?i)\b(pair|couple|mom and calf|mother and calf)\b`)},
	{1, regexp.MustCompile(`(?i)\b(single|lone|solo)\b`)},
}

var (
	// countRe matches explicit counts: "3 orcas", "12 killer whales", "two humpbacks".
	countRe = regexp.MustCompile(`(?i)\b(\d{1,3}|one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve|fifteen|twenty)\s+(?:(?:adult|juvenile|male|female|large|small|transient|resident|southern resident)\s+)?(orcas?|whales?|killer whales?|humpbacks?|grays?|minkes?|animals|individuals|fins?|dorsals?)\b`)

	numberWords = map[string]int{
		"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6, "seven": 7,
		"eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12, "fifteen": 15, "twenty": 20,
	}
)

// maxGroupSize caps explicit counts to reject obviously bogus values.
const maxGroupSize = 200

// DefaultGroupSize is the group size assumed when nothing more specific is known.
func DefaultGroupSize(t SourceType) int {
	switch t {
	case SourceHuman, SourceSocial:
		return 2
	default:
		return 1
	}
}

// InferGroupSize resolves a group size from an explicit count value, then a
// numeric mention in text, then keyword rules, then the source default.
func InferGroupSize(explicit any, text string, t SourceType) int {
	if n, ok := positiveInt(explicit); ok {
		return n
	}
	if n, ok := MentionedCount(text); ok {
		return n
	}
	for _, r := range groupSizeRules {
		if r.Pattern.MatchString(text) {
			return r.Size
		}
	}
	return DefaultGroupSize(t)
}

// MentionedCount extracts an explicit animal count such as "3 orcas".
func MentionedCount(text string) (int, bool) {
	m := countRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	word := strings.ToLower(m[1])
	if n, ok := numberWords[word]; ok {
		return n, true
	}
	n, err := strconv.Atoi(word)
	if err != nil || n <= 0 || n > maxGroupSize {
		return 0, false
	}
	return n, true
}

func positiveInt(v any) (int, bool) {
	var n int
	switch t := v.(type) {
	case float64:
		n = int(t)
	case int:
		n = t
	case int64:
		n = int(t)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, false
		}
		n = parsed
	default:
		return 0, false
	}
	if n <= 0 || n > maxGroupSize {
		return 0, false
	}
	return n, true
}
