package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/WessleyAI/wessley-diagnostics/engine/catalog"
	"github.com/WessleyAI/wessley-diagnostics/engine/report"
)

func validFormat(f string) bool {
	switch f {
	case "human", "json", "yaml":
		return true
	}
	return false
}

func render(w io.Writer, format string, res report.DiagnosticResult) error {
	switch format {
	case "json":
		return writeJSON(w, res)
	case "yaml":
		return writeYAML(w, res)
	default:
		renderHuman(w, res)
		return nil
	}
}

func renderComponents(w io.Writer, format string, comps []catalog.Component) error {
	switch format {
	case "json":
		return writeJSON(w, comps)
	case "yaml":
		return writeYAML(w, comps)
	}
	if len(comps) == 0 {
		fmt.Fprintln(w, "No matching components.")
		return nil
	}
	for _, c := range comps {
		fmt.Fprintf(w, "%-28s %-12s %s  %s - %s\n",
			c.ID, c.Category, warningColor(string(c.WarningLevel)).Sprint(c.WarningLevel),
			report.FormatUSD(c.PriceRange.Min), report.FormatUSD(c.PriceRange.Max))
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeYAML goes through JSON so field names match the API.
func writeYAML(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var generic any
	if err := yaml.Unmarshal(b, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(generic)
}

func renderHuman(w io.Writer, res report.DiagnosticResult) {
	bold := color.New(color.Bold)
	cyan := color.New(color.FgCyan, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)
	green := color.New(color.FgGreen, color.Bold)

	fmt.Fprintln(w)
	bold.Fprintf(w, "%s\n", res.IssueTitle)
	if v := res.Vehicle; v != nil {
		fmt.Fprintf(w, "   %d %s %s\n", v.Year, v.Make, v.Model)
	}
	warningColor(string(res.Urgency)).Fprintf(w, "   Urgency: %s", strings.ToUpper(string(res.Urgency)))
	if res.SafetyRisk != "" {
		warningColor(res.SafetyRisk).Fprintf(w, "   Safety risk: %s", strings.ToUpper(res.SafetyRisk))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w)

	if len(res.AffectedComponents) > 0 {
		cyan.Fprintln(w, "LIKELY COMPONENTS:")
		for i, c := range res.AffectedComponents {
			fmt.Fprintf(w, "   %d. %-32s %3d%%  %-9s %s\n", i+1, c.Name, c.Likelihood, c.Condition, c.CostRange)
		}
		fmt.Fprintln(w)
	} else {
		yellow.Fprintln(w, "No catalog component matched these symptoms.")
		fmt.Fprintln(w)
	}

	rd := res.RepairDetails
	cyan.Fprintln(w, "ESTIMATE:")
	fmt.Fprintf(w, "   Parts %s, labor %s (%g-%g h @ %s/h)\n",
		rd.PartsCost, rd.LaborCost, rd.LaborHours.Min, rd.LaborHours.Max, report.FormatUSD(rd.LaborRate))
	fmt.Fprintf(w, "   Total %s", green.Sprint(rd.TotalCost))
	if rd.EstimatedTime != "" {
		fmt.Fprintf(w, ", about %s", rd.EstimatedTime)
	}
	if rd.Difficulty != "" {
		fmt.Fprintf(w, ", %s difficulty", rd.Difficulty)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w)

	section(w, yellow, "POSSIBLE CAUSES:", res.PossibleCauses)
	section(w, green, "RECOMMENDED ACTIONS:", res.RecommendedActions)
	section(w, cyan, "DIAGNOSTIC STEPS:", res.Resources.DiagnosticSteps)
	section(w, yellow, "IF LEFT UNREPAIRED:", res.Consequences)

	if res.MakeFilterDropped || res.FreeTextFallback {
		fmt.Fprintln(w, color.HiBlackString("Note: no exact symptom or make match; results are broader than usual."))
	}
	fmt.Fprintln(w, strings.Repeat("─", 72))
	fmt.Fprintln(w, color.HiBlackString("Run with -o json or -o yaml for machine-readable output"))
}

func section(w io.Writer, c *color.Color, title string, items []string) {
	if len(items) == 0 {
		return
	}
	c.Fprintln(w, title)
	for _, it := range items {
		fmt.Fprintf(w, "   - %s\n", it)
	}
	fmt.Fprintln(w)
}

func warningColor(level string) *color.Color {
	switch strings.ToLower(level) {
	case "critical", "immediate":
		return color.New(color.FgRed, color.Bold)
	case "high", "soon":
		return color.New(color.FgRed)
	case "medium", "moderate":
		return color.New(color.FgYellow)
	case "low":
		return color.New(color.FgGreen)
	default:
		return color.New(color.FgWhite)
	}
}
