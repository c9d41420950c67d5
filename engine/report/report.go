// Package report assembles the displayed and persisted DiagnosticResult from
// an engine diagnosis and converts it to and from the datastore record.
package report

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/WessleyAI/wessley-diagnostics/engine/diagnostic"
	"github.com/WessleyAI/wessley-diagnostics/engine/domain"
)

// CostRange is a USD range. Cost stays numeric end to end; the "$X - $Y"
// form exists only in String and in the JSON display field.
type CostRange struct {
	Min float64
	Max float64
}

// IsZero reports whether both bounds are zero.
func (r CostRange) IsZero() bool { return r.Min == 0 && r.Max == 0 }

// Add returns the pairwise sum.
func (r CostRange) Add(o CostRange) CostRange {
	return CostRange{Min: r.Min + o.Min, Max: r.Max + o.Max}
}

func (r CostRange) String() string {
	return FormatUSD(r.Min) + " - " + FormatUSD(r.Max)
}

type costRangeJSON struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Display string  `json:"display,omitempty"`
}

func (r CostRange) MarshalJSON() ([]byte, error) {
	return json.Marshal(costRangeJSON{Min: r.Min, Max: r.Max, Display: r.String()})
}

// UnmarshalJSON reads the numeric bounds; the display string is ignored.
func (r *CostRange) UnmarshalJSON(b []byte) error {
	var v costRangeJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	r.Min, r.Max = v.Min, v.Max
	return nil
}

// FormatUSD renders whole dollars with thousands separators, e.g. "$1,250".
func FormatUSD(v float64) string {
	n := int64(math.Round(v))
	sign := ""
	if n < 0 {
		sign, n = "-", -n
	}
	s := fmt.Sprintf("%d", n)
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return sign + "$" + s
}

// HourRange is a labor-hour range.
type HourRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// VehicleInfo identifies the diagnosed vehicle.
type VehicleInfo struct {
	Make  string `json:"make"`
	Model string `json:"model"`
	Year  int    `json:"year,omitempty"`
}

// AffectedComponent is the display projection of one matched component.
type AffectedComponent struct {
	ID         string    `json:"id,omitempty"`
	Name       string    `json:"name"`
	Category   string    `json:"category,omitempty"`
	Condition  string    `json:"condition"`
	Likelihood int       `json:"likelihood"`
	Priority   int       `json:"priority,omitempty"`
	PartsCost  float64   `json:"replacement_cost"`
	LaborCost  float64   `json:"labor_cost"`
	TotalCost  float64   `json:"total_cost"`
	CostRange  CostRange `json:"cost_range"`
}

// RepairDetails is the aggregate repair estimate.
type RepairDetails struct {
	LaborHours    HourRange `json:"labor_hours"`
	LaborRate     float64   `json:"labor_rate"`
	LaborCost     CostRange `json:"labor_cost"`
	PartsCost     CostRange `json:"parts_cost"`
	TotalCost     CostRange `json:"total_cost"`
	Difficulty    string    `json:"difficulty"`
	EstimatedTime string    `json:"estimated_time,omitempty"`
}

// Resources are the how-to material attached to a result.
type Resources struct {
	DiagnosticSteps    []string                 `json:"diagnostic_steps"`
	PreventiveMeasures []string                 `json:"preventive_measures"`
	PartsSources       []diagnostic.PartsSource `json:"parts_sources"`
	Tools              []string                 `json:"tools,omitempty"`
}

// DiagnosticResult is the displayed and persisted diagnosis.
type DiagnosticResult struct {
	ID                 string                `json:"id"`
	IssueTitle         string                `json:"issue_title"`
	Severity           domain.Severity       `json:"severity"`
	Description        string                `json:"description"`
	PossibleCauses     []string              `json:"possible_causes"`
	RecommendedActions []string              `json:"recommended_actions"`
	AffectedComponents []AffectedComponent   `json:"affected_components"`
	RepairDetails      RepairDetails         `json:"repair_details"`
	Consequences       []string              `json:"consequences"`
	Resources          Resources             `json:"resources"`
	Urgency            domain.Urgency        `json:"urgency"`
	SafetyRisk         string                `json:"safety_risk,omitempty"`
	DiagnosticType     domain.DiagnosticType `json:"diagnostic_type"`
	Timestamp          time.Time             `json:"timestamp"`
	Vehicle            *VehicleInfo          `json:"vehicle,omitempty"`
	EstimatedCost      string                `json:"estimated_cost,omitempty"`
	Narrative          string                `json:"narrative,omitempty"`

	MakeFilterDropped bool `json:"make_filter_dropped,omitempty"`
	FreeTextFallback  bool `json:"free_text_fallback,omitempty"`

	CustomName   string              `json:"custom_name,omitempty"`
	Tags         []string            `json:"tags,omitempty"`
	Notes        string              `json:"notes,omitempty"`
	Bookmarked   bool                `json:"bookmarked"`
	RepairStatus domain.RepairStatus `json:"repair_status"`
}

// NewID returns a fresh result identifier.
func NewID() string { return uuid.NewString() }
