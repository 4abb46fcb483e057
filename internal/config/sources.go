package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Candidate kinds accepted in a sources file.
const (
	KindAPI      = "api"
	KindScrape   = "scrape"
	KindRendered = "rendered"
)

// SourceOverride replaces the built-in candidate list of one source, or
// disables it. A nil Enabled leaves the source enabled.
type SourceOverride struct {
	Name       string              `yaml:"name"`
	Enabled    *bool               `yaml:"enabled"`
	Candidates []CandidateOverride `yaml:"candidates"`
}

// CandidateOverride is one upstream endpoint in a sources file.
type CandidateOverride struct {
	Name      string `yaml:"name"`
	URL       string `yaml:"url"`
	Kind      string `yaml:"kind"`
	ElementID string `yaml:"element_id"`
}

// IsEnabled reports whether the override leaves its source enabled.
func (o SourceOverride) IsEnabled() bool {
	return o.Enabled == nil || *o.Enabled
}

type sourcesFile struct {
	Sources []SourceOverride `yaml:"sources"`
}

// LoadSources reads and validates a YAML sources file.
func LoadSources(path string) ([]SourceOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}
	return ParseSources(data)
}

// ParseSources decodes and validates YAML source overrides.
func ParseSources(data []byte) ([]SourceOverride, error) {
	var f sourcesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode sources file: %w", err)
	}

	seen := make(map[string]bool, len(f.Sources))
	var errs []error
	for i, s := range f.Sources {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("sources[%d]: name is required", i))
			continue
		}
		if seen[s.Name] {
			errs = append(errs, fmt.Errorf("sources[%d]: duplicate source %q", i, s.Name))
		}
		seen[s.Name] = true
		for j, c := range s.Candidates {
			if c.URL == "" {
				errs = append(errs, fmt.Errorf("sources[%d].candidates[%d]: url is required", i, j))
			}
			switch c.Kind {
			case "":
				f.Sources[i].Candidates[j].Kind = KindAPI
			case KindAPI, KindScrape, KindRendered:
			default:
				errs = append(errs, fmt.Errorf("sources[%d].candidates[%d]: unknown kind %q", i, j, c.Kind))
			}
			if c.Kind == KindScrape && c.ElementID == "" {
				errs = append(errs, fmt.Errorf("sources[%d].candidates[%d]: element_id is required for scrape candidates", i, j))
			}
			if c.Name == "" {
				f.Sources[i].Candidates[j].Name = c.URL
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return f.Sources, nil
}
