package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type mockResult struct {
	records []*neo4j.Record
	idx     int
}

func (m *mockResult) Next(context.Context) bool {
	if m.idx < len(m.records) {
		m.idx++
		return true
	}
	return false
}

func (m *mockResult) Record() *neo4j.Record { return m.records[m.idx-1] }

type call struct {
	cypher string
	params map[string]any
}

type mockRunner struct {
	rows  []*neo4j.Record
	err   error
	calls []call
}

func (m *mockRunner) Run(_ context.Context, cypher string, params map[string]any) (Result, error) {
	m.calls = append(m.calls, call{cypher, params})
	if m.err != nil {
		return nil, m.err
	}
	return &mockResult{records: m.rows}, nil
}

func (m *mockRunner) Close(context.Context) error { return nil }

type part struct {
	ID       string
	Category string
}

func row(id, category string) *neo4j.Record {
	return &neo4j.Record{
		Keys:   []string{"n"},
		Values: []any{map[string]any{"id": id, "category": category}},
	}
}

func decodePart(rec *neo4j.Record) (part, error) {
	m, ok := rec.Values[0].(map[string]any)
	if !ok {
		return part{}, errors.New("not a map")
	}
	return part{ID: m["id"].(string), Category: m["category"].(string)}, nil
}

func newTestRepo(r *mockRunner, opts ...Neo4jOption[part, string]) *Neo4jRepo[part, string] {
	opts = append(opts, WithRunner[part, string](func(context.Context) Runner { return r }))
	return NewNeo4jRepo[part, string](nil, "Component", decodePart, opts...)
}

func TestGet(t *testing.T) {
	r := &mockRunner{rows: []*neo4j.Record{row("brake-pads", "brakes")}}
	got, err := newTestRepo(r).Get(context.Background(), "brake-pads")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != "brake-pads" || got.Category != "brakes" {
		t.Fatalf("got %+v", got)
	}
	if r.calls[0].cypher != "MATCH (n:Component {id: $id}) RETURN n" || r.calls[0].params["id"] != "brake-pads" {
		t.Fatalf("call = %+v", r.calls[0])
	}
}

func TestGetNotFound(t *testing.T) {
	_, err := newTestRepo(&mockRunner{}).Get(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestGetCustomIDKey(t *testing.T) {
	r := &mockRunner{rows: []*neo4j.Record{row("x", "y")}}
	_, _ = newTestRepo(r, WithIDKey[part, string]("code")).Get(context.Background(), "P0300")
	if r.calls[0].cypher != "MATCH (n:Component {code: $id}) RETURN n" {
		t.Fatalf("cypher = %s", r.calls[0].cypher)
	}
}

func TestList(t *testing.T) {
	tests := []struct {
		name   string
		opts   ListOpts
		cypher string
		limit  int
	}{
		{"plain", ListOpts{}, "MATCH (n:Component) RETURN n SKIP $offset LIMIT $limit", DefaultListLimit},
		{
			"filtered and ordered",
			ListOpts{Limit: 5, OrderBy: "id", Filter: map[string]any{"warning_level": "critical", "category": "brakes"}},
			"MATCH (n:Component) WHERE n.category = $f_category AND n.warning_level = $f_warning_level RETURN n ORDER BY n.id SKIP $offset LIMIT $limit",
			5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &mockRunner{rows: []*neo4j.Record{row("a", "brakes"), row("b", "brakes")}}
			got, err := newTestRepo(r).List(context.Background(), tt.opts)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 2 {
				t.Fatalf("len = %d", len(got))
			}
			c := r.calls[0]
			if c.cypher != tt.cypher || c.params["limit"] != tt.limit {
				t.Fatalf("cypher = %s params = %v", c.cypher, c.params)
			}
		})
	}
}

func TestListRejectsBadKeys(t *testing.T) {
	repo := newTestRepo(&mockRunner{})
	if _, err := repo.List(context.Background(), ListOpts{Filter: map[string]any{"x}) DETACH DELETE n //": 1}}); err == nil {
		t.Fatal("expected filter key error")
	}
	if _, err := repo.List(context.Background(), ListOpts{OrderBy: "1abc"}); err == nil {
		t.Fatal("expected order key error")
	}
}

func TestQueryErrors(t *testing.T) {
	if _, err := newTestRepo(&mockRunner{err: errors.New("down")}).Query(context.Background(), "RETURN 1", nil); err == nil {
		t.Fatal("expected run error")
	}
	bad := &mockRunner{rows: []*neo4j.Record{{Keys: []string{"n"}, Values: []any{"string"}}}}
	if _, err := newTestRepo(bad).Query(context.Background(), "MATCH (n) RETURN n", nil); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestCount(t *testing.T) {
	r := &mockRunner{rows: []*neo4j.Record{{Keys: []string{"count"}, Values: []any{int64(22)}}}}
	n, err := newTestRepo(r).Count(context.Background())
	if err != nil || n != 22 {
		t.Fatalf("Count = %d, %v", n, err)
	}
	if r.calls[0].cypher != "MATCH (n:Component) RETURN count(n) AS count" {
		t.Fatalf("cypher = %s", r.calls[0].cypher)
	}
	if n, err := newTestRepo(&mockRunner{}).Count(context.Background()); n != 0 || err != nil {
		t.Fatalf("empty Count = %d, %v", n, err)
	}
}

func TestIsIdent(t *testing.T) {
	for s, want := range map[string]bool{"id": true, "warning_level": true, "_x1": true, "": false, "1a": false, "a-b": false, "a b": false} {
		if got := isIdent(s); got != want {
			t.Errorf("isIdent(%q) = %v", s, got)
		}
	}
}
