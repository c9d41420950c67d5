// Package semantic indexes the common-issue table in Qdrant and answers
// suggestion lookups by embedding similarity.
package semantic

// Payload keys written for every issue point.
const (
	keyIssueID = "issue_id"
	keyTitle   = "title"
	keyMakes   = "makes"
	keyText    = "text"
)

// IssuePoint is one common issue with its embedding.
type IssuePoint struct {
	ID        string // point UUID
	IssueID   string
	Title     string
	Text      string
	Makes     []string
	Causes    []string
	Actions   []string
	Embedding []float32
}

// Hit is one search result.
type Hit struct {
	ID      string   `json:"id"`
	Score   float32  `json:"score"`
	IssueID string   `json:"issue_id"`
	Title   string   `json:"title"`
	Makes   []string `json:"makes,omitempty"`
	Causes  []string `json:"common_causes"`
	Actions []string `json:"common_actions"`
}
