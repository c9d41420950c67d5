package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/WessleyAI/wessley-diagnostics/engine/catalog"
	"github.com/WessleyAI/wessley-diagnostics/engine/diagnostic"
	"github.com/WessleyAI/wessley-diagnostics/engine/domain"
	"github.com/WessleyAI/wessley-diagnostics/engine/matcher"
)

// Record is the datastore row for a saved diagnosis. Nil pointers and nil
// slices are stored as NULL.
type Record struct {
	ID                 string          `json:"id"`
	OwnerID            string          `json:"user_id"`
	IssueTitle         string          `json:"issue_title"`
	Symptoms           string          `json:"symptoms"`
	Severity           string          `json:"severity"`
	Urgency            *string         `json:"urgency"`
	DiagnosticType     string          `json:"diagnostic_type"`
	VehicleMake        *string         `json:"vehicle_make"`
	VehicleModel       *string         `json:"vehicle_model"`
	VehicleYear        *int            `json:"vehicle_year"`
	PossibleCauses     []string        `json:"possible_causes"`
	RecommendedActions []string        `json:"recommended_actions"`
	EstimatedCost      *string         `json:"estimated_cost"`
	DiagnosticData     json.RawMessage `json:"diagnostic_data"`
	CustomName         *string         `json:"custom_name"`
	Notes              *string         `json:"notes"`
	Tags               []string        `json:"tags"`
	Bookmarked         bool            `json:"is_bookmarked"`
	RepairStatus       string          `json:"repair_status"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// diagnosticData is the opaque blob holding the computed part of a result.
type diagnosticData struct {
	AffectedComponents []AffectedComponent `json:"affected_components"`
	Consequences       []string            `json:"consequences"`
	RepairDetails      RepairDetails       `json:"repair_details"`
	Resources          Resources           `json:"resources"`
	SafetyRisk         string              `json:"safety_risk,omitempty"`
	Narrative          string              `json:"narrative,omitempty"`
	MakeFilterDropped  bool                `json:"make_filter_dropped,omitempty"`
	FreeTextFallback   bool                `json:"free_text_fallback,omitempty"`
}

// ToStorageRecord flattens r into a row owned by ownerID. Missing optional
// fields never fail; an error means the computed part of r could not be
// encoded (a non-finite number), and the returned record has no blob.
func ToStorageRecord(r DiagnosticResult, ownerID string) (Record, error) {
	rec := Record{
		ID:                 r.ID,
		OwnerID:            ownerID,
		IssueTitle:         r.IssueTitle,
		Symptoms:           r.Description,
		Severity:           string(r.Severity),
		Urgency:            optional(string(r.Urgency)),
		DiagnosticType:     string(r.DiagnosticType),
		PossibleCauses:     nonEmpty(r.PossibleCauses),
		RecommendedActions: nonEmpty(r.RecommendedActions),
		EstimatedCost:      optional(r.EstimatedCost),
		CustomName:         optional(r.CustomName),
		Notes:              optional(r.Notes),
		Tags:               nonEmpty(r.Tags),
		Bookmarked:         r.Bookmarked,
		RepairStatus:       string(r.RepairStatus),
		CreatedAt:          r.Timestamp,
		UpdatedAt:          r.Timestamp,
	}
	if rec.DiagnosticType == "" {
		rec.DiagnosticType = string(domain.DiagnosticManual)
	}
	if rec.RepairStatus == "" {
		rec.RepairStatus = string(domain.RepairPending)
	}
	if v := r.Vehicle; v != nil {
		rec.VehicleMake = optional(v.Make)
		rec.VehicleModel = optional(v.Model)
		if v.Year != 0 {
			year := v.Year
			rec.VehicleYear = &year
		}
	}

	blob, err := json.Marshal(diagnosticData{
		AffectedComponents: r.AffectedComponents,
		Consequences:       r.Consequences,
		RepairDetails:      r.RepairDetails,
		Resources:          r.Resources,
		SafetyRisk:         r.SafetyRisk,
		Narrative:          r.Narrative,
		MakeFilterDropped:  r.MakeFilterDropped,
		FreeTextFallback:   r.FreeTextFallback,
	})
	if err != nil {
		return rec, fmt.Errorf("report: encode diagnostic data %s: %w", r.ID, err)
	}
	rec.DiagnosticData = blob
	return rec, nil
}

// FromStorageRecord rebuilds a result from a row. When the diagnostic data
// blob is present its fields are used verbatim. Without it, placeholder
// components, a severity-based repair estimate and severity consequences
// are synthesized so a result always has something to display.
func FromStorageRecord(rec Record) DiagnosticResult {
	r := DiagnosticResult{
		ID:                 rec.ID,
		IssueTitle:         rec.IssueTitle,
		Severity:           domain.Severity(rec.Severity),
		Description:        rec.Symptoms,
		PossibleCauses:     rec.PossibleCauses,
		RecommendedActions: rec.RecommendedActions,
		Urgency:            domain.Urgency(deref(rec.Urgency)),
		DiagnosticType:     domain.DiagnosticType(rec.DiagnosticType),
		Timestamp:          rec.CreatedAt,
		EstimatedCost:      deref(rec.EstimatedCost),
		CustomName:         deref(rec.CustomName),
		Notes:              deref(rec.Notes),
		Tags:               rec.Tags,
		Bookmarked:         rec.Bookmarked,
		RepairStatus:       domain.RepairStatus(rec.RepairStatus),
	}
	if rec.VehicleMake != nil || rec.VehicleModel != nil || rec.VehicleYear != nil {
		r.Vehicle = &VehicleInfo{Make: deref(rec.VehicleMake), Model: deref(rec.VehicleModel)}
		if rec.VehicleYear != nil {
			r.Vehicle.Year = *rec.VehicleYear
		}
	}

	var data diagnosticData
	if len(rec.DiagnosticData) > 0 && string(rec.DiagnosticData) != "null" &&
		json.Unmarshal(rec.DiagnosticData, &data) == nil {
		r.AffectedComponents = data.AffectedComponents
		r.Consequences = data.Consequences
		r.RepairDetails = data.RepairDetails
		r.Resources = data.Resources
		r.SafetyRisk = data.SafetyRisk
		r.Narrative = data.Narrative
		r.MakeFilterDropped = data.MakeFilterDropped
		r.FreeTextFallback = data.FreeTextFallback
		return r
	}

	r.AffectedComponents = PlaceholderComponents(rec.Symptoms, r.Severity)
	r.RepairDetails = EstimateRepair(r.Severity, r.AffectedComponents)
	r.Consequences = ConsequencesFor(r.Severity)
	r.SafetyRisk = string(r.Severity)
	r.Resources = Resources{
		DiagnosticSteps:    diagnostic.DiagnosticSteps(nil),
		PreventiveMeasures: diagnostic.PreventiveMeasures(nil),
		PartsSources:       diagnostic.PartsSources(),
	}
	return r
}

// DefaultComponentCost is used for a component that carries no range.
var DefaultComponentCost = CostRange{Min: 100, Max: 500}

var severityLaborHours = map[domain.Severity]float64{
	domain.SeverityCritical: 4,
	domain.SeverityHigh:     3,
	domain.SeverityMedium:   2,
	domain.SeverityLow:      1,
}

var severityCondition = map[domain.Severity]diagnostic.Condition{
	domain.SeverityCritical: diagnostic.ConditionCritical,
	domain.SeverityHigh:     diagnostic.ConditionPoor,
	domain.SeverityMedium:   diagnostic.ConditionFair,
	domain.SeverityLow:      diagnostic.ConditionGood,
}

// PlaceholderComponents guesses affected systems from keywords in the stored
// symptom text. It always returns at least one component.
func PlaceholderComponents(symptoms string, sev domain.Severity) []AffectedComponent {
	text := strings.ToLower(symptoms)
	cond := string(severityCondition[sev])
	if cond == "" {
		cond = string(diagnostic.ConditionFair)
	}
	var out []AffectedComponent
	if strings.Contains(text, "engine") {
		out = append(out, AffectedComponent{Name: "Engine Components", Category: string(catalog.CategoryEngine), Condition: cond, CostRange: DefaultComponentCost})
	}
	if strings.Contains(text, "brake") || strings.Contains(text, "stopping") {
		out = append(out, AffectedComponent{Name: "Brake System", Category: string(catalog.CategoryBrakes), Condition: cond, CostRange: DefaultComponentCost})
	}
	if len(out) == 0 {
		out = append(out, AffectedComponent{Name: "Vehicle Components", Condition: cond, CostRange: DefaultComponentCost})
	}
	for i := range out {
		out[i].Priority = i + 1
	}
	return out
}

// EstimateRepair computes repair details from severity labor defaults and
// the components' cost ranges.
func EstimateRepair(sev domain.Severity, comps []AffectedComponent) RepairDetails {
	hours, ok := severityLaborHours[sev]
	if !ok {
		hours = severityLaborHours[domain.SeverityMedium]
	}
	rate := matcher.DefaultLaborRate
	var parts CostRange
	for _, c := range comps {
		cr := c.CostRange
		if cr.IsZero() {
			cr = DefaultComponentCost
		}
		parts = parts.Add(cr)
	}
	labor := CostRange{Min: hours * rate, Max: hours * rate}
	return RepairDetails{
		LaborHours:    HourRange{Min: hours, Max: hours},
		LaborRate:     rate,
		LaborCost:     labor,
		PartsCost:     parts,
		TotalCost:     parts.Add(labor),
		Difficulty:    string(difficultyFor(sev)),
		EstimatedTime: diagnostic.RepairTimeForHours(hours),
	}
}

func difficultyFor(sev domain.Severity) catalog.Difficulty {
	switch sev {
	case domain.SeverityCritical, domain.SeverityHigh:
		return catalog.DifficultyHard
	case domain.SeverityMedium:
		return catalog.DifficultyMedium
	default:
		return catalog.DifficultyEasy
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nonEmpty(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	return in
}
