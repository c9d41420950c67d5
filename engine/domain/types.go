// Package domain defines the request-side types, enums and validation for the
// diagnosis pipeline. It is the validation gate in front of the engine: the
// engine itself assumes its input already passed ValidateInput.
package domain

// Vehicle identifies the vehicle a diagnosis is requested for.
type Vehicle struct {
	Make  string `json:"make"`
	Model string `json:"model"`
	Year  int    `json:"year"`
}

// IsZero reports whether no vehicle field is set.
func (v Vehicle) IsZero() bool {
	return v.Make == "" && v.Model == "" && v.Year == 0
}

// Severity is the user-reported severity of an issue.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities low=1 … critical=4. Unknown values rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool { return s.Rank() > 0 }

// Urgency is how soon a repair should happen.
type Urgency string

const (
	UrgencyImmediate Urgency = "immediate"
	UrgencySoon      Urgency = "soon"
	UrgencyModerate  Urgency = "moderate"
	UrgencyLow       Urgency = "low"
)

// ValidUrgencies is the set of recognised urgency values.
var ValidUrgencies = map[Urgency]bool{
	UrgencyImmediate: true, UrgencySoon: true, UrgencyModerate: true, UrgencyLow: true,
}

// DiagnosticType records how a diagnosis was produced.
type DiagnosticType string

const (
	DiagnosticManual DiagnosticType = "manual"
	DiagnosticOBD    DiagnosticType = "obd"
)

// RepairStatus is the lifecycle of a saved diagnosis.
type RepairStatus string

const (
	RepairPending    RepairStatus = "pending"
	RepairInProgress RepairStatus = "in_progress"
	RepairCompleted  RepairStatus = "completed"
	RepairCancelled  RepairStatus = "cancelled"
)

// ValidRepairStatuses is the set of recognised repair statuses.
var ValidRepairStatuses = map[RepairStatus]bool{
	RepairPending: true, RepairInProgress: true, RepairCompleted: true, RepairCancelled: true,
}

// DiagnosticInput is one user submission of the diagnosis form.
type DiagnosticInput struct {
	Vehicle       Vehicle  `json:"vehicle"`
	Symptoms      string   `json:"symptoms"`
	IssueTitle    string   `json:"issue_title"`
	Severity      Severity `json:"severity"`
	Urgency       Urgency  `json:"urgency,omitempty"`
	EstimatedCost string   `json:"estimated_cost,omitempty"`
	CustomName    string   `json:"custom_name,omitempty"`
	Notes         string   `json:"notes,omitempty"`
}
