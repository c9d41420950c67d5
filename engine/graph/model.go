// Package graph mirrors the component catalog into Neo4j as a knowledge
// graph of components, symptoms, trouble codes and makes, and answers
// lookups against it.
package graph

// Component is a catalog component as stored on a :Component node.
type Component struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Category     string   `json:"category"`
	WarningLevel string   `json:"warning_level"`
	Difficulty   string   `json:"difficulty"`
	PriceMin     float64  `json:"price_min"`
	PriceMax     float64  `json:"price_max"`
	LaborMin     float64  `json:"labor_min"`
	LaborMax     float64  `json:"labor_max"`
	Makes        []string `json:"makes,omitempty"`
}

// SyncStats counts what SyncCatalog wrote.
type SyncStats struct {
	Components int `json:"components"`
	Symptoms   int `json:"symptoms"`
	Codes      int `json:"codes"`
	Makes      int `json:"makes"`
}
