package report

import (
	"slices"
	"strings"
	"time"

	"github.com/WessleyAI/wessley-diagnostics/engine/catalog"
	"github.com/WessleyAI/wessley-diagnostics/engine/diagnostic"
	"github.com/WessleyAI/wessley-diagnostics/engine/domain"
	"github.com/WessleyAI/wessley-diagnostics/engine/suggest"
)

var consequencesByTier = map[domain.Severity][]string{
	domain.SeverityCritical: {
		"Immediate safety risk to vehicle occupants and other road users",
		"Continued driving may cause sudden failure of the affected system",
		"Delaying repair can lead to extensive secondary damage",
	},
	domain.SeverityHigh: {
		"Potential safety risk if the issue worsens while driving",
		"Risk of breakdown or loss of vehicle control",
		"Repair costs are likely to rise if left unaddressed",
	},
	domain.SeverityMedium: {
		"Reduced performance and drivability",
		"Lower fuel efficiency",
		"Accelerated wear on related components",
	},
	domain.SeverityLow: {
		"Minor impact on comfort or performance",
		"May develop into a larger issue over time",
	},
}

// ConsequencesFor returns the consequence bullets for a severity tier.
// Unknown severities get the low-tier list.
func ConsequencesFor(sev domain.Severity) []string {
	c, ok := consequencesByTier[sev]
	if !ok {
		c = consequencesByTier[domain.SeverityLow]
	}
	return slices.Clone(c)
}

// consequenceTier is the worse of the reported severity and the safety risk.
func consequenceTier(sev domain.Severity, risk catalog.WarningLevel) domain.Severity {
	if domain.Severity(risk).Rank() > sev.Rank() {
		return domain.Severity(risk)
	}
	return sev
}

// Assemble builds the result for one submission. The result gets a fresh ID;
// a store may keep or replace it.
func Assemble(in domain.DiagnosticInput, d diagnostic.Diagnosis, s suggest.Suggestions, now time.Time) DiagnosticResult {
	comps := make([]AffectedComponent, len(d.Components))
	var hours HourRange
	var tools []string
	for i, m := range d.Components {
		c := m.Component
		comps[i] = AffectedComponent{
			ID:         c.ID,
			Name:       c.Name,
			Category:   string(c.Category),
			Condition:  string(m.Condition),
			Likelihood: m.Likelihood,
			Priority:   m.Priority,
			PartsCost:  m.PartsCost,
			LaborCost:  m.LaborCost,
			TotalCost:  m.TotalCost,
			CostRange:  CostRange{Min: c.PriceRange.Min, Max: c.PriceRange.Max},
		}
		hours.Min += c.LaborHours.Min
		hours.Max += c.LaborHours.Max
		for _, t := range c.Tools {
			if !slices.Contains(tools, t) {
				tools = append(tools, t)
			}
		}
	}

	cost := d.TotalRepairCost
	r := DiagnosticResult{
		ID:                 NewID(),
		IssueTitle:         strings.TrimSpace(in.IssueTitle),
		Severity:           in.Severity,
		Description:        strings.TrimSpace(in.Symptoms),
		PossibleCauses:     slices.Clone(s.Causes),
		RecommendedActions: slices.Clone(s.Actions),
		AffectedComponents: comps,
		RepairDetails: RepairDetails{
			LaborHours:    hours,
			LaborRate:     d.LaborRate,
			LaborCost:     CostRange{Min: cost.LaborMin, Max: cost.LaborMax},
			PartsCost:     CostRange{Min: cost.PartsMin, Max: cost.PartsMax},
			TotalCost:     CostRange{Min: cost.TotalMin, Max: cost.TotalMax},
			Difficulty:    string(d.Difficulty),
			EstimatedTime: d.EstimatedRepairTime,
		},
		Consequences: ConsequencesFor(consequenceTier(in.Severity, d.SafetyRisk)),
		Resources: Resources{
			DiagnosticSteps:    d.DiagnosticSteps,
			PreventiveMeasures: d.PreventiveMeasures,
			PartsSources:       d.PartsSources,
			Tools:              tools,
		},
		Urgency:           d.Urgency,
		SafetyRisk:        string(d.SafetyRisk),
		DiagnosticType:    domain.DiagnosticManual,
		Timestamp:         now.UTC(),
		EstimatedCost:     strings.TrimSpace(in.EstimatedCost),
		MakeFilterDropped: d.MakeFilterDropped,
		FreeTextFallback:  d.FreeTextFallback,
		CustomName:        strings.TrimSpace(in.CustomName),
		Notes:             strings.TrimSpace(in.Notes),
		RepairStatus:      domain.RepairPending,
	}
	if !in.Vehicle.IsZero() {
		r.Vehicle = &VehicleInfo{
			Make:  domain.CanonicalMake(in.Vehicle.Make),
			Model: strings.TrimSpace(in.Vehicle.Model),
			Year:  in.Vehicle.Year,
		}
	}
	return r
}
