package portal

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/JustJay7/ecourts-extractor/pkg/logger"
	"gopkg.in/yaml.v2"
)

// Portal kinds accepted in portals.yaml.
const (
	KindHighCourt     = "high_court"
	KindDistrictCourt = "district_court"
	KindSupremeCourt  = "supreme_court"
)

// Config describes one configured portal.
type Config struct {
	Name              string  `yaml:"name"`
	Kind              string  `yaml:"kind"`
	BaseURL           string  `yaml:"base_url"`
	Priority          int     `yaml:"priority"`
	Enabled           *bool   `yaml:"enabled"`
	CourtName         string  `yaml:"court_name"`
	StateCode         string  `yaml:"state_code"`
	DistrictCode      string  `yaml:"district_code"`
	CourtCode         string  `yaml:"court_code"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// IsEnabled treats a missing flag as enabled.
func (c Config) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

type portalsFile struct {
	Portals []Config `yaml:"portals"`
}

// LoadConfigs reads portal definitions from a YAML file.
func LoadConfigs(path string) ([]Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read portals file: %w", err)
	}

	var f portalsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse portals file: %w", err)
	}
	if len(f.Portals) == 0 {
		return nil, fmt.Errorf("portals file %s defines no portals", path)
	}
	return f.Portals, nil
}

// DefaultConfigs builds one portal per non-empty base URL, in the order
// High Court, District Court, Supreme Court.
func DefaultConfigs(highCourtURL, districtCourtURL, supremeCourtURL string) []Config {
	var cfgs []Config
	add := func(name, kind, base string) {
		if base != "" {
			cfgs = append(cfgs, Config{Name: name, Kind: kind, BaseURL: base, Priority: len(cfgs) + 1})
		}
	}
	add("high_court", KindHighCourt, highCourtURL)
	add("district_court", KindDistrictCourt, districtCourtURL)
	add("supreme_court", KindSupremeCourt, supremeCourtURL)
	return cfgs
}

// New creates the adapter for one portal.
func New(cfg Config, log *logger.Logger) (Adapter, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("portal %q has no base_url", cfg.Name)
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Kind
	}

	switch strings.ToLower(cfg.Kind) {
	case KindHighCourt:
		return NewHighCourt(cfg, log), nil
	case KindDistrictCourt:
		return NewDistrictCourt(cfg, log), nil
	case KindSupremeCourt:
		return NewSupremeCourt(cfg, log), nil
	}
	return nil, fmt.Errorf("portal %q has unknown kind %q", cfg.Name, cfg.Kind)
}

// Build creates adapters for the enabled portals, ordered by priority
// (lowest first). Names must be unique.
func Build(cfgs []Config, log *logger.Logger) ([]Adapter, error) {
	enabled := make([]Config, 0, len(cfgs))
	for _, c := range cfgs {
		if c.IsEnabled() {
			enabled = append(enabled, c)
		}
	}
	sort.SliceStable(enabled, func(i, j int) bool { return enabled[i].Priority < enabled[j].Priority })

	seen := map[string]bool{}
	adapters := make([]Adapter, 0, len(enabled))
	for _, c := range enabled {
		a, err := New(c, log)
		if err != nil {
			return nil, err
		}
		if seen[a.Name()] {
			return nil, fmt.Errorf("duplicate portal name %q", a.Name())
		}
		seen[a.Name()] = true
		adapters = append(adapters, a)
	}
	return adapters, nil
}
