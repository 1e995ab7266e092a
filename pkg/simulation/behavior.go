package simulation

import (
	"fmt"
	"math/rand"
	"os"

	"gopkg.in/yaml.v3"
)

// Range is an inclusive integer interval used for session lengths and
// think times.
type Range struct {
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}

// draw returns a uniform value in [Min, Max].
func (r Range) draw(rng *rand.Rand) int {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + rng.Intn(r.Max-r.Min+1)
}

// BehaviorProfile is a named user archetype. Weight is a relative
// selection probability; weights need not sum to 1. ErrorTolerance is
// the probability (0..1) of retrying after a failed request instead of
// abandoning the session.
type BehaviorProfile struct {
	Name           string  `json:"name" yaml:"name"`
	Weight         float64 `json:"weight" yaml:"weight"`
	SessionLength  Range   `json:"session_length" yaml:"session_length"`
	ThinkTimeMs    Range   `json:"think_time_ms" yaml:"think_time_ms"`
	ErrorTolerance float64 `json:"error_tolerance" yaml:"error_tolerance"`
}

// Catalog is an immutable set of behavior profiles defined at startup.
type Catalog struct {
	profiles    []BehaviorProfile
	totalWeight float64
}

// NewCatalog validates the profiles and precomputes the weight total.
func NewCatalog(profiles []BehaviorProfile) (*Catalog, error) {
	if len(profiles) == 0 {
		return nil, fmt.Errorf("catalog: no behavior profiles defined")
	}
	total := 0.0
	for _, p := range profiles {
		if p.Name == "" {
			return nil, fmt.Errorf("catalog: profile with empty name")
		}
		if p.Weight <= 0 {
			return nil, fmt.Errorf("catalog: profile %q has non-positive weight", p.Name)
		}
		if p.ErrorTolerance < 0 || p.ErrorTolerance > 1 {
			return nil, fmt.Errorf("catalog: profile %q error tolerance out of [0,1]", p.Name)
		}
		if p.SessionLength.Min < 1 || p.SessionLength.Max < p.SessionLength.Min {
			return nil, fmt.Errorf("catalog: profile %q has invalid session length range", p.Name)
		}
		if p.ThinkTimeMs.Min < 0 || p.ThinkTimeMs.Max < p.ThinkTimeMs.Min {
			return nil, fmt.Errorf("catalog: profile %q has invalid think time range", p.Name)
		}
		total += p.Weight
	}
	out := make([]BehaviorProfile, len(profiles))
	copy(out, profiles)
	return &Catalog{profiles: out, totalWeight: total}, nil
}

// DefaultCatalog returns the built-in demo population.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog([]BehaviorProfile{
		{
			Name:           "Quick Browser",
			Weight:         0.4,
			SessionLength:  Range{Min: 1, Max: 3},
			ThinkTimeMs:    Range{Min: 500, Max: 2000},
			ErrorTolerance: 0.3,
		},
		{
			Name:           "Thorough Researcher",
			Weight:         0.3,
			SessionLength:  Range{Min: 4, Max: 8},
			ThinkTimeMs:    Range{Min: 2000, Max: 5000},
			ErrorTolerance: 0.7,
		},
		{
			Name:           "Impatient User",
			Weight:         0.2,
			SessionLength:  Range{Min: 1, Max: 2},
			ThinkTimeMs:    Range{Min: 100, Max: 500},
			ErrorTolerance: 0.1,
		},
		{
			Name:           "Power User",
			Weight:         0.1,
			SessionLength:  Range{Min: 8, Max: 15},
			ThinkTimeMs:    Range{Min: 1000, Max: 3000},
			ErrorTolerance: 0.9,
		},
	})
	if err != nil {
		panic(err) // built-in catalog is valid by construction
	}
	return c
}

// LoadCatalog reads behavior profiles from a YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to read %s: %w", path, err)
	}
	var doc struct {
		Behaviors []BehaviorProfile `yaml:"behaviors"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("catalog: failed to parse %s: %w", path, err)
	}
	return NewCatalog(doc.Behaviors)
}

// Profiles returns a copy of the catalog entries.
func (c *Catalog) Profiles() []BehaviorProfile {
	out := make([]BehaviorProfile, len(c.profiles))
	copy(out, c.profiles)
	return out
}

// Select picks a profile by weighted random draw over the catalog.
// The draw is deterministic given a seeded source. If floating-point
// rounding lets the walk fall through, the first profile is returned.
func (c *Catalog) Select(rng *rand.Rand) BehaviorProfile {
	draw := rng.Float64() * c.totalWeight
	acc := 0.0
	for _, p := range c.profiles {
		acc += p.Weight
		if draw < acc {
			return p
		}
	}
	return c.profiles[0]
}
