package diagnostic

import (
	"math"
	"strings"

	"github.com/WessleyAI/wessley-diagnostics/engine/catalog"
	"github.com/WessleyAI/wessley-diagnostics/engine/domain"
	"github.com/WessleyAI/wessley-diagnostics/engine/matcher"
)

// Condition is the inferred state of a matched component for one request.
type Condition string

const (
	ConditionGood     Condition = "good"
	ConditionFair     Condition = "fair"
	ConditionPoor     Condition = "poor"
	ConditionCritical Condition = "critical"
)

const (
	symptomWeight = 60.0
	keywordWeight = 40.0
)

// Likelihood scores how well c explains the extracted symptoms and keywords,
// in [0, 100].
func Likelihood(c catalog.Component, symptoms, keywords []string) int {
	var symptomScore float64
	if len(c.Symptoms) > 0 {
		hits := 0
		for _, own := range c.Symptoms {
			for _, s := range symptoms {
				if matcher.PhraseOverlap(own, s) {
					hits++
					break
				}
			}
		}
		symptomScore = symptomWeight * float64(hits) / float64(len(c.Symptoms))
	}

	text := strings.ToLower(c.Name + " " + c.Description + " " + strings.Join(c.CommonFailureReasons, " "))
	found := 0
	for _, k := range keywords {
		if k != "" && strings.Contains(text, k) {
			found++
		}
	}
	keywordScore := keywordWeight * float64(found) / float64(max(1, len(keywords)))

	score := int(math.Round(symptomScore + keywordScore))
	return min(100, max(0, score))
}

// InferCondition maps request severity and likelihood to a condition. Rules
// are checked from critical down and the first hit wins, so a strong match
// outranks a mild reported severity.
func InferCondition(sev domain.Severity, likelihood int) Condition {
	switch {
	case sev == domain.SeverityCritical || likelihood > 80:
		return ConditionCritical
	case sev == domain.SeverityHigh || likelihood > 60:
		return ConditionPoor
	case sev == domain.SeverityMedium || likelihood > 40:
		return ConditionFair
	default:
		return ConditionGood
	}
}

// ComponentCost prices one component replacement for a condition. Parts come
// from the price tier the condition selects; labor is the minimum hours at
// laborRate.
func ComponentCost(c catalog.Component, cond Condition, laborRate float64) (parts, labor, total float64) {
	p := c.PriceRange
	switch cond {
	case ConditionCritical:
		parts = p.OEM
	case ConditionPoor:
		parts = (p.OEM + p.Aftermarket) / 2
	case ConditionFair:
		parts = p.Aftermarket
	default:
		parts = p.Min
	}
	labor = c.LaborHours.Min * laborRate
	return parts, labor, parts + labor
}

// UrgencyFor derives repair urgency from the reported severity and the
// candidates' warning levels.
func UrgencyFor(sev domain.Severity, comps []catalog.Component) domain.Urgency {
	if sev == domain.SeverityCritical {
		return domain.UrgencyImmediate
	}
	for _, c := range comps {
		if c.WarningLevel == catalog.WarningCritical {
			return domain.UrgencyImmediate
		}
	}
	switch sev {
	case domain.SeverityHigh:
		return domain.UrgencySoon
	case domain.SeverityMedium:
		return domain.UrgencyModerate
	default:
		return domain.UrgencyLow
	}
}

// SafetyRiskFor is the highest warning level among comps, low when empty.
func SafetyRiskFor(comps []catalog.Component) catalog.WarningLevel {
	risk := catalog.WarningLow
	for _, c := range comps {
		if c.WarningLevel.Rank() > risk.Rank() {
			risk = c.WarningLevel
		}
	}
	return risk
}

// RepairTimeFor buckets the summed maximum labor hours into a display range.
func RepairTimeFor(comps []catalog.Component) string {
	var hours float64
	for _, c := range comps {
		hours += c.LaborHours.Max
	}
	return RepairTimeForHours(hours)
}

// RepairTimeForHours buckets a labor-hour total.
func RepairTimeForHours(hours float64) string {
	switch {
	case hours <= 2:
		return "1-2 hours"
	case hours <= 4:
		return "2-4 hours"
	case hours <= 8:
		return "4-8 hours (same day)"
	default:
		return "1-2 days"
	}
}

// DifficultyFor is the hardest labor tier among comps, easy when empty.
func DifficultyFor(comps []catalog.Component) catalog.Difficulty {
	d := catalog.DifficultyEasy
	for _, c := range comps {
		if c.LaborHours.Difficulty.Rank() > d.Rank() {
			d = c.LaborHours.Difficulty
		}
	}
	return d
}
