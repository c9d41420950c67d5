package semantic

import (
	"context"
	"strings"

	"github.com/WessleyAI/wessley-diagnostics/engine/suggest"
)

// DefaultMinScore is the cosine similarity below which a hit is ignored.
const DefaultMinScore = 0.6

type issueSearcher interface {
	SearchIssues(ctx context.Context, embedding []float32, topK int, vehicleMake string) ([]Hit, error)
}

// Lookup answers suggestion queries with the nearest indexed issue.
type Lookup struct {
	store    issueSearcher
	emb      Embedder
	minScore float32
}

// NewLookup returns a suggest.Lookup over store. minScore <= 0 means
// DefaultMinScore.
func NewLookup(store issueSearcher, emb Embedder, minScore float32) *Lookup {
	if minScore <= 0 {
		minScore = DefaultMinScore
	}
	return &Lookup{store: store, emb: emb, minScore: minScore}
}

// Lookup returns suggest.ErrNoMatch when no issue is similar enough.
func (l *Lookup) Lookup(ctx context.Context, q suggest.Query) (suggest.Payload, error) {
	text := strings.TrimSpace(q.Symptoms)
	if text == "" {
		return nil, suggest.ErrNoMatch
	}
	vec, err := l.emb.Embed(ctx, text, TaskQuery)
	if err != nil {
		return nil, err
	}
	var vehicleMake string
	if q.Vehicle.Make != "" {
		vehicleMake = makeKey(q.Vehicle.Make)
	}
	hits, err := l.store.SearchIssues(ctx, vec, 1, vehicleMake)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 || hits[0].Score < l.minScore {
		return nil, suggest.ErrNoMatch
	}
	best := hits[0]
	return suggest.Payload{
		suggest.KeyCauses:  best.Causes,
		suggest.KeyActions: best.Actions,
		"issue_id":         best.IssueID,
		"title":            best.Title,
		"score":            best.Score,
	}, nil
}
