// Package narrative produces an optional plain-language explanation of a
// diagnosis with a generative model. The text is opaque to the rest of the
// system and a failure never blocks a diagnosis.
package narrative

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/WessleyAI/wessley-diagnostics/engine/report"
)

// ErrEmpty is returned when the model produced no text.
var ErrEmpty = errors.New("narrative: empty response")

// Generator writes a narrative for one assembled result.
type Generator interface {
	Narrate(ctx context.Context, res report.DiagnosticResult) (string, error)
}

// Options configures generation.
type Options struct {
	Model        string
	Temperature  float32
	MaxTokens    int32
	SystemPrompt string
	Timeout      time.Duration
	// RequestsPerSecond and Burst pace calls to the model.
	RequestsPerSecond float64
	Burst             int
}

// DefaultOptions returns the settings used by cmd/api.
func DefaultOptions() Options {
	return Options{
		Model:             "gemini-2.5-flash",
		Temperature:       0.3,
		MaxTokens:         512,
		SystemPrompt:      defaultSystemPrompt,
		Timeout:           15 * time.Second,
		RequestsPerSecond: 2,
		Burst:             4,
	}
}

const defaultSystemPrompt = `You are Wessley, an automotive repair assistant.
Explain the diagnosis below to a car owner in two short paragraphs. Use ONLY
the facts provided. Do not invent costs, parts or codes. Mention the urgency
and any safety risk first.`

// Prompt renders the diagnosis facts the model is allowed to use.
func Prompt(res report.DiagnosticResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Issue: %s\n", res.IssueTitle)
	if res.Vehicle != nil {
		fmt.Fprintf(&b, "Vehicle: %s\n", strings.TrimSpace(fmt.Sprintf("%s %s %s", yearOf(res.Vehicle.Year), res.Vehicle.Make, res.Vehicle.Model)))
	}
	fmt.Fprintf(&b, "Severity: %s\nUrgency: %s\n", res.Severity, res.Urgency)
	if res.SafetyRisk != "" {
		fmt.Fprintf(&b, "Safety risk: %s\n", res.SafetyRisk)
	}
	if res.Description != "" {
		fmt.Fprintf(&b, "Reported symptoms: %s\n", res.Description)
	}
	if len(res.AffectedComponents) > 0 {
		b.WriteString("Likely components:\n")
		for _, c := range res.AffectedComponents {
			fmt.Fprintf(&b, "- %s (%d%% likely, %s)\n", c.Name, c.Likelihood, c.CostRange)
		}
	}
	writeList(&b, "Possible causes", res.PossibleCauses)
	writeList(&b, "Recommended actions", res.RecommendedActions)
	if !res.RepairDetails.TotalCost.IsZero() {
		fmt.Fprintf(&b, "Estimated total: %s\n", res.RepairDetails.TotalCost)
	}
	return b.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", title)
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", it)
	}
}

func yearOf(y int) string {
	if y == 0 {
		return ""
	}
	return fmt.Sprint(y)
}
