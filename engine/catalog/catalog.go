// Package catalog holds the static component reference table: replaceable
// vehicle parts with their price tiers, labor profile, symptom phrases and
// trouble codes. The table is loaded once from YAML and never mutated, so a
// *Catalog can be shared freely between goroutines.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Category groups components by vehicle system.
type Category string

const (
	CategoryEngine       Category = "engine"
	CategoryTransmission Category = "transmission"
	CategoryBrakes       Category = "brakes"
	CategoryElectrical   Category = "electrical"
	CategorySuspension   Category = "suspension"
	CategoryCooling      Category = "cooling"
	CategoryFuel         Category = "fuel"
	CategoryExhaust      Category = "exhaust"
	CategoryHVAC         Category = "hvac"
	CategorySteering     Category = "steering"
)

// ValidCategories is the set of recognised categories.
var ValidCategories = map[Category]bool{
	CategoryEngine: true, CategoryTransmission: true, CategoryBrakes: true,
	CategoryElectrical: true, CategorySuspension: true, CategoryCooling: true,
	CategoryFuel: true, CategoryExhaust: true, CategoryHVAC: true,
	CategorySteering: true,
}

// WarningLevel is the intrinsic severity of a part failing.
type WarningLevel string

const (
	WarningLow      WarningLevel = "low"
	WarningMedium   WarningLevel = "medium"
	WarningHigh     WarningLevel = "high"
	WarningCritical WarningLevel = "critical"
)

// Rank orders warning levels low=1 … critical=4. Unknown values rank 0.
func (w WarningLevel) Rank() int {
	switch w {
	case WarningLow:
		return 1
	case WarningMedium:
		return 2
	case WarningHigh:
		return 3
	case WarningCritical:
		return 4
	default:
		return 0
	}
}

// Difficulty is the repair difficulty tier.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
	DifficultyExpert Difficulty = "expert"
)

// Rank orders difficulties easy=1 … expert=4. Unknown values rank 0.
func (d Difficulty) Rank() int {
	switch d {
	case DifficultyEasy:
		return 1
	case DifficultyMedium:
		return 2
	case DifficultyHard:
		return 3
	case DifficultyExpert:
		return 4
	default:
		return 0
	}
}

// PriceRange holds part prices in USD.
type PriceRange struct {
	Min         float64 `json:"min" yaml:"min"`
	Max         float64 `json:"max" yaml:"max"`
	OEM         float64 `json:"oem" yaml:"oem"`
	Aftermarket float64 `json:"aftermarket" yaml:"aftermarket"`
}

// LaborHours is the shop-time profile of a replacement.
type LaborHours struct {
	Min        float64    `json:"min" yaml:"min"`
	Max        float64    `json:"max" yaml:"max"`
	Difficulty Difficulty `json:"difficulty" yaml:"difficulty"`
}

// Component is one catalog entry.
type Component struct {
	ID                   string       `json:"id" yaml:"id"`
	Name                 string       `json:"name" yaml:"name"`
	Category             Category     `json:"category" yaml:"category"`
	PriceRange           PriceRange   `json:"price_range" yaml:"price_range"`
	LaborHours           LaborHours   `json:"labor_hours" yaml:"labor_hours"`
	Symptoms             []string     `json:"symptoms" yaml:"symptoms"`
	CompatibleMakes      []string     `json:"compatible_makes" yaml:"compatible_makes"`
	Description          string       `json:"description" yaml:"description"`
	CommonFailureReasons []string     `json:"common_failure_reasons" yaml:"common_failure_reasons"`
	DiagnosticCodes      []string     `json:"diagnostic_codes,omitempty" yaml:"diagnostic_codes"`
	Tools                []string     `json:"tools" yaml:"tools"`
	WarningLevel         WarningLevel `json:"warning_level" yaml:"warning_level"`
}

// Catalog is an immutable, ordered set of components.
type Catalog struct {
	components []Component
	byID       map[string]int
}

// ErrInvalidCatalog is returned when catalog data violates an invariant.
var ErrInvalidCatalog = errors.New("invalid catalog")

type document struct {
	// Makes holds the shared make lists the components reference by anchor.
	Makes      map[string][]string `yaml:"makes"`
	Components []Component         `yaml:"components"`
}

// New builds a catalog from components after validating them.
func New(components []Component) (*Catalog, error) {
	c := &Catalog{
		components: make([]Component, len(components)),
		byID:       make(map[string]int, len(components)),
	}
	for i, comp := range components {
		comp.Symptoms = lowerAll(comp.Symptoms)
		if err := validate(comp); err != nil {
			return nil, err
		}
		if _, dup := c.byID[comp.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidCatalog, comp.ID)
		}
		c.byID[comp.ID] = i
		c.components[i] = comp
	}
	return c, nil
}

// Load reads a YAML catalog document from r.
func Load(r io.Reader) (*Catalog, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	return New(doc.Components)
}

// LoadFile reads a YAML catalog from path.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

//go:embed components.yaml
var embedded string

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
)

// Default returns the catalog compiled into the binary. It panics if the
// embedded data is invalid, which can only happen with a broken build.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Load(strings.NewReader(embedded))
		if err != nil {
			panic(fmt.Sprintf("catalog: embedded data: %v", err))
		}
		defaultCat = c
	})
	return defaultCat
}

// All returns the components in catalog order. The slice is a copy; the
// components' own slices must not be modified.
func (c *Catalog) All() []Component {
	out := make([]Component, len(c.components))
	copy(out, c.components)
	return out
}

// Get returns the component with the given id.
func (c *Catalog) Get(id string) (Component, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Component{}, false
	}
	return c.components[i], true
}

// Len returns the number of components.
func (c *Catalog) Len() int { return len(c.components) }

func validate(c Component) error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s: %s", ErrInvalidCatalog, c.ID, fmt.Sprintf(format, args...))
	}
	if c.ID == "" {
		return fmt.Errorf("%w: component with empty id (name %q)", ErrInvalidCatalog, c.Name)
	}
	if c.Name == "" {
		return fail("empty name")
	}
	if !ValidCategories[c.Category] {
		return fail("unknown category %q", c.Category)
	}
	if c.WarningLevel.Rank() == 0 {
		return fail("unknown warning level %q", c.WarningLevel)
	}
	if c.LaborHours.Difficulty.Rank() == 0 {
		return fail("unknown difficulty %q", c.LaborHours.Difficulty)
	}
	p := c.PriceRange
	l := c.LaborHours
	if !finite(p.Min, p.Max, p.OEM, p.Aftermarket, l.Min, l.Max) {
		return fail("non-finite price or labor hours")
	}
	if p.Min < 0 || p.Max < 0 || p.OEM < 0 || p.Aftermarket < 0 {
		return fail("negative price")
	}
	if p.Min > p.OEM || p.OEM > p.Max || p.Min > p.Aftermarket || p.Aftermarket > p.Max {
		return fail("price tiers outside [min, max]")
	}
	if l.Min < 0 || l.Max < l.Min {
		return fail("labor hours min=%g max=%g", l.Min, l.Max)
	}
	if len(c.Symptoms) == 0 {
		return fail("no symptoms")
	}
	return nil
}

func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return out
}
