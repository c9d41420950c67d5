// Package diagnostic turns a free-text symptom description into ranked
// candidate components with likelihoods, inferred conditions and repair
// estimates. Generate is pure: it does no I/O and never fails. An input with
// no recognisable symptoms produces an empty diagnosis.
package diagnostic

import (
	"math"
	"strings"

	"github.com/WessleyAI/wessley-diagnostics/engine/catalog"
	"github.com/WessleyAI/wessley-diagnostics/engine/domain"
	"github.com/WessleyAI/wessley-diagnostics/engine/matcher"
	"github.com/WessleyAI/wessley-diagnostics/pkg/fn"
)

// Options tunes an Engine. Zero fields take the defaults, as does a
// non-finite labor rate.
type Options struct {
	LaborRate     float64
	MaxCandidates int
	Vocabulary    []string
	StopWords     []string
}

// DefaultOptions returns the production settings.
func DefaultOptions() Options {
	return Options{
		LaborRate:     matcher.DefaultLaborRate,
		MaxCandidates: 5,
		Vocabulary:    DefaultVocabulary,
		StopWords:     DefaultStopWords,
	}
}

// Engine runs diagnoses against a matcher. Safe for concurrent use.
type Engine struct {
	m         *matcher.Matcher
	laborRate float64
	limit     int
	vocab     []string
	stop      map[string]bool
}

// New creates an Engine. A nil matcher uses the default catalog.
func New(m *matcher.Matcher, opts Options) *Engine {
	def := DefaultOptions()
	if m == nil {
		m = matcher.New(nil)
	}
	if !(opts.LaborRate > 0) || math.IsInf(opts.LaborRate, 0) {
		opts.LaborRate = def.LaborRate
	}
	if opts.MaxCandidates <= 0 {
		opts.MaxCandidates = def.MaxCandidates
	}
	if len(opts.Vocabulary) == 0 {
		opts.Vocabulary = def.Vocabulary
	}
	if opts.StopWords == nil {
		opts.StopWords = def.StopWords
	}
	stop := make(map[string]bool, len(opts.StopWords))
	for _, w := range opts.StopWords {
		stop[strings.ToLower(w)] = true
	}
	return &Engine{
		m:         m,
		laborRate: opts.LaborRate,
		limit:     opts.MaxCandidates,
		vocab:     fn.Map(opts.Vocabulary, strings.ToLower),
		stop:      stop,
	}
}

// LaborRate returns the shop rate the engine prices labor at.
func (e *Engine) LaborRate() float64 { return e.laborRate }

// MatchedComponent is one ranked candidate for a request.
type MatchedComponent struct {
	Component  catalog.Component `json:"component"`
	Likelihood int               `json:"likelihood"`
	Condition  Condition         `json:"condition"`
	Priority   int               `json:"priority"`
	PartsCost  float64           `json:"parts_cost"`
	LaborCost  float64           `json:"labor_cost"`
	TotalCost  float64           `json:"total_cost"`
}

// Diagnosis is the engine output for one request.
type Diagnosis struct {
	Symptoms            []string             `json:"symptoms"`
	Keywords            []string             `json:"keywords"`
	Components          []MatchedComponent   `json:"components"`
	TotalRepairCost     matcher.CostSummary  `json:"total_repair_cost"`
	LaborRate           float64              `json:"labor_rate"`
	Urgency             domain.Urgency       `json:"urgency"`
	SafetyRisk          catalog.WarningLevel `json:"safety_risk"`
	Difficulty          catalog.Difficulty   `json:"difficulty"`
	EstimatedRepairTime string               `json:"estimated_repair_time"`
	DiagnosticSteps     []string             `json:"diagnostic_steps"`
	PreventiveMeasures  []string             `json:"preventive_measures"`
	PartsSources        []PartsSource        `json:"parts_sources"`

	// MakeFilterDropped is set when restricting to the vehicle make would
	// have left no candidates and the unrestricted list was used instead.
	MakeFilterDropped bool `json:"make_filter_dropped"`
	// FreeTextFallback is set when symptom matching found nothing and the
	// candidates come from a free-text search of the description.
	FreeTextFallback bool `json:"free_text_fallback"`
}

// Catalog returns the matched catalog entries in priority order.
func (d Diagnosis) Catalog() []catalog.Component {
	return fn.Map(d.Components, func(m MatchedComponent) catalog.Component { return m.Component })
}

// Generate diagnoses one request.
func (e *Engine) Generate(in domain.DiagnosticInput) Diagnosis {
	symptoms := e.ExtractSymptoms(in.Symptoms)
	keywords := e.ExtractKeywords(in.Symptoms)

	d := Diagnosis{
		Symptoms:  symptoms,
		Keywords:  keywords,
		LaborRate: e.laborRate,
	}

	cands := e.m.MatchBySymptoms(append(append([]string{}, symptoms...), keywords...))
	if mk := domain.CanonicalMake(in.Vehicle.Make); mk != "" && len(cands) > 0 {
		allowed := make(map[string]bool)
		for _, c := range e.m.MatchByMake(mk) {
			allowed[c.ID] = true
		}
		filtered := fn.Filter(cands, func(c catalog.Component) bool { return allowed[c.ID] })
		if len(filtered) > 0 {
			cands = filtered
		} else {
			d.MakeFilterDropped = true
		}
	}
	if len(cands) == 0 {
		cands = e.m.SearchFreeText(in.Symptoms)
		d.FreeTextFallback = len(cands) > 0
	}
	if len(cands) > e.limit {
		cands = cands[:e.limit]
	}

	d.Components = make([]MatchedComponent, len(cands))
	for i, c := range cands {
		l := Likelihood(c, symptoms, keywords)
		cond := InferCondition(in.Severity, l)
		parts, labor, total := ComponentCost(c, cond, e.laborRate)
		d.Components[i] = MatchedComponent{
			Component:  c,
			Likelihood: l,
			Condition:  cond,
			Priority:   i + 1,
			PartsCost:  parts,
			LaborCost:  labor,
			TotalCost:  total,
		}
	}

	d.TotalRepairCost = matcher.AggregateCost(cands, e.laborRate)
	d.Urgency = UrgencyFor(in.Severity, cands)
	d.SafetyRisk = SafetyRiskFor(cands)
	d.Difficulty = DifficultyFor(cands)
	d.EstimatedRepairTime = RepairTimeFor(cands)
	d.DiagnosticSteps = DiagnosticSteps(cands)
	d.PreventiveMeasures = PreventiveMeasures(cands)
	d.PartsSources = PartsSources()
	return d
}
