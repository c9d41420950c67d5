// Package matcher implements read-only queries over the component catalog.
// None of its functions fail on a miss; they return an empty slice.
package matcher

import (
	"slices"
	"strings"

	"github.com/WessleyAI/wessley-diagnostics/engine/catalog"
)

// DefaultLaborRate is the shop rate in USD per hour.
const DefaultLaborRate = 120.0

// Matcher queries a catalog. It holds no mutable state.
type Matcher struct {
	cat *catalog.Catalog
}

// New returns a matcher over cat. A nil catalog means catalog.Default().
func New(cat *catalog.Catalog) *Matcher {
	if cat == nil {
		cat = catalog.Default()
	}
	return &Matcher{cat: cat}
}

// Catalog returns the underlying catalog.
func (m *Matcher) Catalog() *catalog.Catalog { return m.cat }

// PhraseOverlap reports whether a and b share a substring relationship in
// either direction. Both are expected lowercase; empty strings never overlap.
func PhraseOverlap(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// MatchBySymptoms returns components with any symptom phrase overlapping any
// of phrases, ordered by warning level (critical first) then by minimum price.
func (m *Matcher) MatchBySymptoms(phrases []string) []catalog.Component {
	norm := normalize(phrases)
	if len(norm) == 0 {
		return []catalog.Component{}
	}
	out := []catalog.Component{}
	for _, c := range m.cat.All() {
		if anyOverlap(c.Symptoms, norm) {
			out = append(out, c)
		}
	}
	slices.SortStableFunc(out, func(a, b catalog.Component) int {
		if d := b.WarningLevel.Rank() - a.WarningLevel.Rank(); d != 0 {
			return d
		}
		switch {
		case a.PriceRange.Min < b.PriceRange.Min:
			return -1
		case a.PriceRange.Min > b.PriceRange.Min:
			return 1
		}
		return 0
	})
	return out
}

// MatchByTroubleCodes returns components whose diagnostic codes intersect
// codes, in catalog order.
func (m *Matcher) MatchByTroubleCodes(codes []string) []catalog.Component {
	want := make(map[string]bool, len(codes))
	for _, c := range codes {
		want[c] = true
	}
	out := []catalog.Component{}
	for _, c := range m.cat.All() {
		for _, code := range c.DiagnosticCodes {
			if want[code] {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// MatchByMake returns components listing vehicleMake among their compatible makes.
func (m *Matcher) MatchByMake(vehicleMake string) []catalog.Component {
	out := []catalog.Component{}
	vehicleMake = strings.TrimSpace(vehicleMake)
	if vehicleMake == "" {
		return out
	}
	for _, c := range m.cat.All() {
		for _, cm := range c.CompatibleMakes {
			if strings.EqualFold(cm, vehicleMake) {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// SearchFreeText returns components whose name, description, symptoms or
// failure reasons contain query, case-insensitively.
func (m *Matcher) SearchFreeText(query string) []catalog.Component {
	q := strings.ToLower(strings.TrimSpace(query))
	out := []catalog.Component{}
	if q == "" {
		return out
	}
	for _, c := range m.cat.All() {
		if containsFold(c, q) {
			out = append(out, c)
		}
	}
	return out
}

// MatchAny unions symptom and trouble-code matches. Symptom matches keep
// their ranking; code-only matches follow in catalog order.
func (m *Matcher) MatchAny(symptoms, codes []string) []catalog.Component {
	out := m.MatchBySymptoms(symptoms)
	seen := make(map[string]bool, len(out))
	for _, c := range out {
		seen[c.ID] = true
	}
	for _, c := range m.MatchByTroubleCodes(codes) {
		if !seen[c.ID] {
			seen[c.ID] = true
			out = append(out, c)
		}
	}
	return out
}

// CostSummary is an aggregate parts and labor estimate in USD.
type CostSummary struct {
	PartsMin float64 `json:"parts_min"`
	PartsMax float64 `json:"parts_max"`
	LaborMin float64 `json:"labor_min"`
	LaborMax float64 `json:"labor_max"`
	TotalMin float64 `json:"total_min"`
	TotalMax float64 `json:"total_max"`
}

// IsZero reports whether every bound is zero.
func (s CostSummary) IsZero() bool { return s == CostSummary{} }

// AggregateCost sums part prices and labor across components. A laborRate of
// zero or less means DefaultLaborRate.
func AggregateCost(components []catalog.Component, laborRate float64) CostSummary {
	if laborRate <= 0 {
		laborRate = DefaultLaborRate
	}
	var s CostSummary
	for _, c := range components {
		s.PartsMin += c.PriceRange.Min
		s.PartsMax += c.PriceRange.Max
		s.LaborMin += c.LaborHours.Min * laborRate
		s.LaborMax += c.LaborHours.Max * laborRate
	}
	s.TotalMin = s.PartsMin + s.LaborMin
	s.TotalMax = s.PartsMax + s.LaborMax
	return s
}

func normalize(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func anyOverlap(own, phrases []string) bool {
	for _, o := range own {
		for _, p := range phrases {
			if PhraseOverlap(o, p) {
				return true
			}
		}
	}
	return false
}

func containsFold(c catalog.Component, q string) bool {
	if strings.Contains(strings.ToLower(c.Name), q) || strings.Contains(strings.ToLower(c.Description), q) {
		return true
	}
	for _, s := range c.Symptoms {
		if strings.Contains(s, q) {
			return true
		}
	}
	for _, r := range c.CommonFailureReasons {
		if strings.Contains(strings.ToLower(r), q) {
			return true
		}
	}
	return false
}
