package diagnostic

import (
	"fmt"

	"github.com/WessleyAI/wessley-diagnostics/engine/catalog"
)

var openingSteps = []string{
	"Perform a visual inspection of the engine bay, undercarriage and the affected area",
	"Connect an OBD-II scanner and retrieve any stored trouble codes",
	"Check fluid levels and condition: engine oil, coolant, brake and transmission fluid",
}

const closingStep = "Road test the vehicle to verify the repair and confirm the symptoms are resolved"

// categoryStep returns the inspection instruction for one candidate.
func categoryStep(c catalog.Component) string {
	switch c.Category {
	case catalog.CategoryEngine:
		return fmt.Sprintf("Test the electrical connections and operation of the %s", c.Name)
	case catalog.CategoryBrakes:
		return fmt.Sprintf("Inspect the %s for wear, scoring and minimum thickness", c.Name)
	case catalog.CategoryElectrical:
		return fmt.Sprintf("Test %s voltage and amperage against specification", c.Name)
	default:
		return fmt.Sprintf("Inspect and test the %s", c.Name)
	}
}

// DiagnosticSteps builds the ordered inspection procedure for comps.
func DiagnosticSteps(comps []catalog.Component) []string {
	steps := make([]string, 0, len(openingSteps)+len(comps)+1)
	steps = append(steps, openingSteps...)
	for _, c := range comps {
		steps = append(steps, categoryStep(c))
	}
	return append(steps, closingStep)
}

var categoryTips = map[catalog.Category][]string{
	catalog.CategoryEngine: {
		"Change the engine oil at the manufacturer's recommended interval",
		"Use good quality fuel from reputable stations",
		"Replace the engine air filter on schedule",
	},
	catalog.CategoryBrakes: {
		"Avoid aggressive braking and riding the brake pedal",
		"Have the brakes inspected every 12,000 miles",
	},
	catalog.CategoryCooling: {
		"Flush the cooling system every 30,000 miles",
		"Check the coolant level monthly with the engine cold",
	},
	catalog.CategoryElectrical: {
		"Keep battery terminals clean and tight",
		"Have the charging system tested once a year",
	},
}

var generalTips = []string{
	"Follow the manufacturer's maintenance schedule",
	"Address dashboard warning lights promptly",
}

// PreventiveMeasures collects the distinct category tips for comps, in order
// of first appearance, followed by the general tips.
func PreventiveMeasures(comps []catalog.Component) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(tip string) {
		if !seen[tip] {
			seen[tip] = true
			out = append(out, tip)
		}
	}
	for _, c := range comps {
		for _, tip := range categoryTips[c.Category] {
			add(tip)
		}
	}
	for _, tip := range generalTips {
		add(tip)
	}
	return out
}

// PartsSource describes one place to buy replacement parts.
type PartsSource struct {
	Name         string `json:"name" yaml:"name"`
	Type         string `json:"type" yaml:"type"`
	Pricing      string `json:"pricing" yaml:"pricing"`
	Availability string `json:"availability" yaml:"availability"`
}

// PartsSources returns the fixed list of typical sourcing options.
func PartsSources() []PartsSource {
	return []PartsSource{
		{Name: "Dealership", Type: "OEM", Pricing: "Highest price, exact factory fit and warranty", Availability: "Often ordered in, 1-3 days"},
		{Name: "AutoZone / Advance Auto Parts", Type: "Aftermarket retail", Pricing: "Moderate price, varying quality tiers", Availability: "Common parts in stock same day"},
		{Name: "RockAuto", Type: "Online aftermarket", Pricing: "Lowest price on most parts", Availability: "Ships in 3-7 days"},
		{Name: "Amazon / eBay Motors", Type: "Marketplace", Pricing: "Wide price range, verify seller and fitment", Availability: "Varies by seller"},
	}
}
