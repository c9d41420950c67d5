package semantic

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"google.golang.org/genai"

	"github.com/WessleyAI/wessley-diagnostics/engine/domain"
	"github.com/WessleyAI/wessley-diagnostics/engine/suggest"
	"github.com/WessleyAI/wessley-diagnostics/pkg/ollama"
)

type fakeEmbedAPI struct {
	model string
	task  string
	resp  *genai.EmbedContentResponse
	err   error
}

func (f *fakeEmbedAPI) EmbedContent(_ context.Context, model string, _ []*genai.Content, cfg *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	f.model, f.task = model, cfg.TaskType
	return f.resp, f.err
}

func TestGeminiEmbedder(t *testing.T) {
	api := &fakeEmbedAPI{resp: &genai.EmbedContentResponse{
		Embeddings: []*genai.ContentEmbedding{{Values: []float32{0.5, 0.25}}},
	}}
	e := newGeminiEmbedder(api, "")
	vec, err := e.Embed(context.Background(), "rough idle", TaskQuery)
	if err != nil {
		t.Fatal(err)
	}
	if len(vec) != 2 || api.model != DefaultEmbedModel || api.task != TaskQuery {
		t.Errorf("vec %v model %s task %s", vec, api.model, api.task)
	}

	api.resp = &genai.EmbedContentResponse{}
	if _, err := e.Embed(context.Background(), "x", TaskQuery); !errors.Is(err, errNoEmbedding) {
		t.Errorf("err = %v", err)
	}
	api.err = errors.New("quota")
	if _, err := e.Embed(context.Background(), "x", TaskQuery); err == nil {
		t.Error("expected error")
	}
}

func TestNewEmbedderSelectsBackend(t *testing.T) {
	e, err := NewEmbedder(context.Background(), EmbedConfig{OllamaURL: "http://localhost:11434", GeminiKey: "k"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := e.(*ollama.Embedder); !ok {
		t.Errorf("got %T, want ollama", e)
	}
	if _, err := NewEmbedder(context.Background(), EmbedConfig{}); !errors.Is(err, ErrNoBackend) {
		t.Errorf("err = %v", err)
	}
}

// keywordEmbedder maps text to a two-dimensional vector by keyword.
type keywordEmbedder struct {
	mu    sync.Mutex
	calls int
	fail  string
}

func (k *keywordEmbedder) Embed(_ context.Context, text, _ string) ([]float32, error) {
	k.mu.Lock()
	k.calls++
	k.mu.Unlock()
	if k.fail != "" && strings.Contains(text, k.fail) {
		return nil, errors.New("embed failed")
	}
	if strings.Contains(strings.ToLower(text), "brake") {
		return []float32{0, 1}, nil
	}
	return []float32{1, 0}, nil
}

type memIndex struct {
	dims   int
	points []IssuePoint
}

func (m *memIndex) EnsureCollection(_ context.Context, dims int) error {
	m.dims = dims
	return nil
}

func (m *memIndex) UpsertIssues(_ context.Context, pts []IssuePoint) error {
	m.points = append(m.points, pts...)
	return nil
}

// SearchIssues scores by dot product and applies the make filter.
func (m *memIndex) SearchIssues(_ context.Context, vec []float32, topK int, vehicleMake string) ([]Hit, error) {
	var best *Hit
	for _, p := range m.points {
		if vehicleMake != "" && len(p.Makes) > 0 && !containsString(p.Makes, vehicleMake) {
			continue
		}
		var s float32
		for i := range vec {
			s += vec[i] * p.Embedding[i]
		}
		if best == nil || s > best.Score {
			best = &Hit{ID: p.ID, Score: s, IssueID: p.IssueID, Title: p.Title, Makes: p.Makes, Causes: p.Causes, Actions: p.Actions}
		}
	}
	if best == nil {
		return nil, nil
	}
	return []Hit{*best}, nil
}

func containsString(items []string, s string) bool {
	for _, it := range items {
		if it == s {
			return true
		}
	}
	return false
}

var testIssues = []suggest.Issue{
	{ID: "misfire", Title: "Engine misfire", Symptoms: []string{"rough idle"}, Causes: []string{"Worn plugs"}, Actions: []string{"Replace plugs"}},
	{ID: "brakes", Title: "Brake squeal", Symptoms: []string{"squeal when braking"}, Makes: []string{"Chevy"}, Causes: []string{"Worn pads"}, Actions: []string{"Replace pads"}},
}

func TestIndex(t *testing.T) {
	idx := &memIndex{}
	emb := &keywordEmbedder{}
	n, err := Index(context.Background(), idx, emb, testIssues, 4)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 || idx.dims != 2 || emb.calls != 2 {
		t.Fatalf("n %d dims %d calls %d", n, idx.dims, emb.calls)
	}
	if idx.points[0].ID != PointID("misfire") || idx.points[0].IssueID != "misfire" {
		t.Errorf("order not kept: %+v", idx.points[0])
	}
	if got := idx.points[1].Makes; len(got) != 1 || got[0] != "chevrolet" {
		t.Errorf("makes = %v", got)
	}

	if n, err := Index(context.Background(), idx, emb, nil, 4); n != 0 || err != nil {
		t.Errorf("empty: %d %v", n, err)
	}
	if _, err := Index(context.Background(), &memIndex{}, &keywordEmbedder{fail: "squeal"}, testIssues, 2); err == nil {
		t.Error("expected embed error")
	}
}

func TestPointIDDeterministic(t *testing.T) {
	if PointID("a") != PointID("a") || PointID("a") == PointID("b") {
		t.Error("point ids not deterministic per issue")
	}
}

func TestLookup(t *testing.T) {
	ctx := context.Background()
	idx := &memIndex{}
	if _, err := Index(ctx, idx, &keywordEmbedder{}, testIssues, 1); err != nil {
		t.Fatal(err)
	}
	l := NewLookup(idx, &keywordEmbedder{}, 0)

	p, err := l.Lookup(ctx, suggest.Query{Symptoms: "brakes grind", Vehicle: domain.Vehicle{Make: "chevy"}})
	if err != nil {
		t.Fatal(err)
	}
	s := suggest.Parse(p)
	if s.Defaulted || s.Causes[0] != "Worn pads" || p["issue_id"] != "brakes" {
		t.Errorf("payload = %v", p)
	}

	// The brake issue is Chevrolet-only, so a Honda falls to the misfire
	// issue, which scores zero against a brake query.
	if _, err := l.Lookup(ctx, suggest.Query{Symptoms: "brakes grind", Vehicle: domain.Vehicle{Make: "Honda"}}); !errors.Is(err, suggest.ErrNoMatch) {
		t.Errorf("honda: err = %v", err)
	}
	if _, err := l.Lookup(ctx, suggest.Query{Symptoms: "  "}); !errors.Is(err, suggest.ErrNoMatch) {
		t.Errorf("blank: err = %v", err)
	}
	if _, err := NewLookup(&memIndex{}, &keywordEmbedder{}, 0).Lookup(ctx, suggest.Query{Symptoms: "idle"}); !errors.Is(err, suggest.ErrNoMatch) {
		t.Errorf("empty index: err = %v", err)
	}
	if _, err := l.Lookup(ctx, suggest.Query{Symptoms: "idle", Vehicle: domain.Vehicle{}}); err != nil {
		t.Errorf("idle: err = %v", err)
	}
	if _, err := NewLookup(idx, &keywordEmbedder{fail: "idle"}, 0).Lookup(ctx, suggest.Query{Symptoms: "idle"}); err == nil || errors.Is(err, suggest.ErrNoMatch) {
		t.Errorf("embed failure: err = %v", err)
	}
}

func TestLookupInChain(t *testing.T) {
	ctx := context.Background()
	chain := suggest.Chain{NewLookup(&memIndex{}, &keywordEmbedder{}, 0), suggest.DefaultStatic()}
	p, err := chain.Lookup(ctx, suggest.Query{Symptoms: "engine misfire and rough idle"})
	if err != nil {
		t.Fatal(err)
	}
	if suggest.Parse(p).Defaulted {
		t.Errorf("chain fell through to defaults: %v", p)
	}
}
