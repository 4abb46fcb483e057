package upstream

import (
	"embed"
	"fmt"
	"sort"
	"strings"

	"github.com/couchcryptid/orca-sightings-etl/internal/config"
	"github.com/couchcryptid/orca-sightings-etl/internal/domain"
)

// Built-in source tags.
const (
	TagOrcasound  = "orcasound"
	TagSocial     = "social"
	TagAggregator = "aggregator"
)

//go:embed fallback/*.json
var fallbackFS embed.FS

// Definition is a built-in source: its context, default candidates, and the
// file holding its synthetic fallback payload.
type Definition struct {
	Context      domain.SourceContext
	Candidates   []Candidate
	FallbackFile string
}

// Definitions lists the built-in sources in fetch order.
func Definitions() []Definition {
	return []Definition{
		{
			Context: domain.SourceContext{Tag: TagOrcasound, Name: "Orcasound hydrophone network", Type: domain.SourceAcoustic},
			Candidates: []Candidate{
				{Name: "detections api", URL: "https://live.orcasound.net/api/json/detections?page%5Blimit%5D=100&sort=-timestamp", Kind: KindAPI},
				{Name: "detections api (legacy)", URL: "https://live.orcasound.net/api/detections?limit=100", Kind: KindAPI},
			},
			FallbackFile: "fallback/orcasound.json",
		},
		{
			Context: domain.SourceContext{Tag: TagSocial, Name: "r/orcas community feed", Type: domain.SourceSocial},
			Candidates: []Candidate{
				{Name: "subreddit listing", URL: "https://www.reddit.com/r/orcas/new.json?limit=50", Kind: KindAPI},
				{Name: "subreddit listing (old)", URL: "https://old.reddit.com/r/orcas/new.json?limit=50", Kind: KindAPI},
			},
			FallbackFile: "fallback/social.json",
		},
		{
			Context: domain.SourceContext{Tag: TagAggregator, Name: "Salish Sea sightings aggregator", Type: domain.SourceHuman},
			Candidates: []Candidate{
				{Name: "current sightings api", URL: "https://acartia.io/api/v1/sightings/current", Kind: KindAPI},
				{Name: "recent sightings page", URL: "https://www.orcanetwork.org/recent-sightings", Kind: KindScrape, ElementID: "__NEXT_DATA__"},
				{Name: "rendered sightings map", URL: "https://www.whalemuseum.org/pages/sightings", Kind: KindRendered, ElementID: "#sightings-data"},
			},
			FallbackFile: "fallback/aggregator.json",
		},
	}
}

// FallbackRecords decodes a source's bundled synthetic payload. The records
// are not yet marked synthetic.
func FallbackRecords(d Definition) ([]domain.RawRecord, error) {
	body, err := fallbackFS.ReadFile(d.FallbackFile)
	if err != nil {
		return nil, fmt.Errorf("read fallback %s: %w", d.FallbackFile, err)
	}
	p := domain.ResolvePayload(body)
	if !p.Recognized() {
		return nil, fmt.Errorf("fallback %s: %w", d.FallbackFile, ErrUnrecognizedPayload)
	}
	return p.Records, nil
}

// Build creates adapters for the built-in sources, applying overrides from a
// sources file. Overrides naming unknown sources are returned as an error.
func Build(opts Options, overrides []config.SourceOverride) ([]Adapter, error) {
	byName := make(map[string]config.SourceOverride, len(overrides))
	for _, o := range overrides {
		byName[o.Name] = o
	}

	var adapters []Adapter
	for _, d := range Definitions() {
		candidates := d.Candidates
		if o, ok := byName[d.Context.Tag]; ok {
			delete(byName, d.Context.Tag)
			if !o.IsEnabled() {
				opts.Logger.Info("source disabled by sources file", "source", d.Context.Tag)
				continue
			}
			if len(o.Candidates) > 0 {
				candidates = candidatesFrom(o.Candidates)
			}
		}

		fallback, err := FallbackRecords(d)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, NewSource(d.Context, candidates, fallback, opts))
	}

	if len(byName) > 0 {
		unknown := make([]string, 0, len(byName))
		for name := range byName {
			unknown = append(unknown, name)
		}
		sort.Strings(unknown)
		return nil, fmt.Errorf("sources file names unknown sources: %s", strings.Join(unknown, ", "))
	}
	return adapters, nil
}

func candidatesFrom(in []config.CandidateOverride) []Candidate {
	out := make([]Candidate, len(in))
	for i, c := range in {
		out[i] = Candidate{Name: c.Name, URL: c.URL, Kind: Kind(c.Kind), ElementID: c.ElementID}
	}
	return out
}
