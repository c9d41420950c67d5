//go:build integration

package semantic

import (
	"context"
	"os"
	"testing"
)

func qdrantAddr() string {
	if v := os.Getenv("QDRANT_URL"); v != "" {
		return v
	}
	return "localhost:6334"
}

func TestQdrantIssueRoundTrip(t *testing.T) {
	vs, err := New(qdrantAddr(), "test_common_issues")
	if err != nil {
		t.Fatalf("connect qdrant: %v", err)
	}
	t.Cleanup(func() {
		_ = vs.DeleteCollection(context.Background())
		_ = vs.Close()
	})
	ctx := context.Background()

	n, err := Index(ctx, vs, &keywordEmbedder{}, testIssues, 2)
	if err != nil || n != 2 {
		t.Fatalf("Index: %d %v", n, err)
	}
	// Re-indexing overwrites the same points.
	if _, err := Index(ctx, vs, &keywordEmbedder{}, testIssues, 2); err != nil {
		t.Fatal(err)
	}

	hits, err := vs.SearchIssues(ctx, []float32{0, 1}, 5, "chevrolet")
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 || hits[0].IssueID != "brakes" {
		t.Fatalf("hits = %+v", hits)
	}

	hits, err = vs.SearchIssues(ctx, []float32{0, 1}, 5, "honda")
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].IssueID != "misfire" {
		t.Fatalf("honda hits = %+v", hits)
	}
}
