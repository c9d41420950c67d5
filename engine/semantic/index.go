package semantic

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/WessleyAI/wessley-diagnostics/engine/domain"
	"github.com/WessleyAI/wessley-diagnostics/engine/suggest"
	"github.com/WessleyAI/wessley-diagnostics/pkg/fn"
)

// pointNamespace seeds deterministic point ids so re-indexing overwrites.
var pointNamespace = uuid.MustParse("6f1c2a8e-4b7d-5e3f-9a21-0c8d7e6b5a43")

// PointID is the Qdrant point id for an issue id.
func PointID(issueID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(issueID)).String()
}

type issueWriter interface {
	EnsureCollection(ctx context.Context, dims int) error
	UpsertIssues(ctx context.Context, issues []IssuePoint) error
}

// Index embeds issues with up to workers concurrent calls and upserts them.
// It returns the number of points written.
func Index(ctx context.Context, w issueWriter, emb Embedder, issues []suggest.Issue, workers int) (int, error) {
	if len(issues) == 0 {
		return 0, nil
	}
	results := fn.ParMapResult(issues, max(workers, 1), func(is suggest.Issue) fn.Result[IssuePoint] {
		vec, err := emb.Embed(ctx, is.Text(), TaskDocument)
		if err != nil {
			return fn.Errf[IssuePoint]("issue %s: %w", is.ID, err)
		}
		return fn.Ok(toPoint(is, vec))
	})
	points, err := fn.Collect(results).Unwrap()
	if err != nil {
		return 0, fmt.Errorf("semantic: index: %w", err)
	}
	if err := w.EnsureCollection(ctx, len(points[0].Embedding)); err != nil {
		return 0, err
	}
	if err := w.UpsertIssues(ctx, points); err != nil {
		return 0, err
	}
	return len(points), nil
}

func toPoint(is suggest.Issue, vec []float32) IssuePoint {
	return IssuePoint{
		ID:        PointID(is.ID),
		IssueID:   is.ID,
		Title:     is.Title,
		Text:      is.Text(),
		Makes:     fn.Map(is.Makes, makeKey),
		Causes:    is.Causes,
		Actions:   is.Actions,
		Embedding: vec,
	}
}

// makeKey is the form makes are stored and filtered in.
func makeKey(m string) string {
	return strings.ToLower(domain.CanonicalMake(m))
}
