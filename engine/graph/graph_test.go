package graph

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/WessleyAI/wessley-diagnostics/engine/catalog"
	"github.com/WessleyAI/wessley-diagnostics/pkg/repo"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New([]catalog.Component{
		{
			ID: "brake-pads", Name: "Brake Pads", Category: catalog.CategoryBrakes,
			PriceRange: catalog.PriceRange{Min: 30, Max: 150, OEM: 90, Aftermarket: 50},
			LaborHours: catalog.LaborHours{Min: 1, Max: 2, Difficulty: catalog.DifficultyEasy},
			Symptoms:   []string{"squealing noise", "grinding noise"}, CompatibleMakes: []string{"Honda", "Toyota"},
			WarningLevel: catalog.WarningCritical,
		},
		{
			ID: "ignition-coil", Name: "Ignition Coil", Category: catalog.CategoryEngine,
			PriceRange: catalog.PriceRange{Min: 50, Max: 200, OEM: 150, Aftermarket: 80},
			LaborHours: catalog.LaborHours{Min: 0.5, Max: 1, Difficulty: catalog.DifficultyEasy},
			Symptoms:   []string{"misfire", "rough idle"}, CompatibleMakes: []string{"Honda"},
			DiagnosticCodes: []string{"P0300", "p0301"}, WarningLevel: catalog.WarningHigh,
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return cat
}

func TestSyncStatements(t *testing.T) {
	stmts, stats := syncStatements(testCatalog(t))
	if stats != (SyncStats{Components: 2, Symptoms: 4, Codes: 2, Makes: 2}) {
		t.Fatalf("stats = %+v", stats)
	}
	if len(stmts) != 5 {
		t.Fatalf("statements = %d", len(stmts))
	}
	comps := stmts[0].params["components"].([]map[string]any)
	if comps[0]["id"] != "brake-pads" || comps[0]["warning_rank"] != 4 || comps[1]["price_min"] != 50.0 {
		t.Errorf("components = %v", comps)
	}
	codes := stmts[2].params["codes"].([]map[string]any)
	if len(codes) != 2 || codes[1]["code"] != "P0301" {
		t.Errorf("codes = %v", codes)
	}
	if !strings.Contains(stmts[2].cypher, "[:INDICATES]") || !strings.Contains(stmts[1].cypher, "[:HAS_SYMPTOM]") {
		t.Error("relationship types missing")
	}
	ids := stmts[4].params["ids"].([]string)
	if len(ids) != 2 || !strings.Contains(stmts[4].cypher, "DETACH DELETE") {
		t.Errorf("prune = %v %s", ids, stmts[4].cypher)
	}
}

func TestSyncStatementsDefaultCatalog(t *testing.T) {
	_, stats := syncStatements(catalog.Default())
	if stats.Components != catalog.Default().Len() || stats.Codes == 0 || stats.Symptoms == 0 {
		t.Fatalf("stats = %+v", stats)
	}
}

type fakeTx struct {
	ran    []string
	failAt int
}

func (f *fakeTx) Run(_ context.Context, cypher string, _ map[string]any) (neo4j.ResultWithContext, error) {
	f.ran = append(f.ran, cypher)
	if len(f.ran) == f.failAt {
		return nil, errors.New("constraint violation")
	}
	return nil, nil
}

func TestRunStatements(t *testing.T) {
	stmts, _ := syncStatements(testCatalog(t))
	tx := &fakeTx{}
	if err := runStatements(context.Background(), tx, stmts); err != nil {
		t.Fatal(err)
	}
	if len(tx.ran) != len(stmts) {
		t.Fatalf("ran %d", len(tx.ran))
	}
	tx = &fakeTx{failAt: 2}
	if err := runStatements(context.Background(), tx, stmts); err == nil || len(tx.ran) != 2 {
		t.Fatalf("err = %v after %d statements", err, len(tx.ran))
	}
}

type result struct {
	rows []*neo4j.Record
	i    int
}

func (r *result) Next(context.Context) bool { r.i++; return r.i <= len(r.rows) }
func (r *result) Record() *neo4j.Record     { return r.rows[r.i-1] }

type runner struct {
	rows   []*neo4j.Record
	cypher string
	params map[string]any
}

func (r *runner) Run(_ context.Context, cypher string, params map[string]any) (repo.Result, error) {
	r.cypher, r.params = cypher, params
	return &result{rows: r.rows}, nil
}

func (r *runner) Close(context.Context) error { return nil }

func nodeRow(props map[string]any) *neo4j.Record {
	return &neo4j.Record{Keys: []string{"n"}, Values: []any{dbtype.Node{Labels: []string{"Component"}, Props: props}}}
}

func testStore(r *runner) *GraphStore {
	return &GraphStore{components: repo.NewNeo4jRepo[Component, string](nil, "Component", componentFromRecord,
		repo.WithRunner[Component, string](func(context.Context) repo.Runner { return r }))}
}

func TestComponentsForCode(t *testing.T) {
	r := &runner{rows: []*neo4j.Record{nodeRow(map[string]any{
		"id": "ignition-coil", "name": "Ignition Coil", "category": "engine",
		"price_min": 50.0, "labor_max": int64(1), "makes": []any{"Honda"},
	})}}
	got, err := testStore(r).ComponentsForCode(context.Background(), " p0300 ")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "ignition-coil" || got[0].PriceMin != 50 || got[0].LaborMax != 1 || got[0].Makes[0] != "Honda" {
		t.Fatalf("got %+v", got)
	}
	if r.params["code"] != "P0300" || !strings.Contains(r.cypher, "TroubleCode") {
		t.Fatalf("query = %s %v", r.cypher, r.params)
	}
}

func TestComponentsForSymptom(t *testing.T) {
	r := &runner{}
	got, err := testStore(r).ComponentsForSymptom(context.Background(), "Grinding ")
	if err != nil || len(got) != 0 {
		t.Fatalf("got %v, %v", got, err)
	}
	if r.params["text"] != "grinding" {
		t.Fatalf("params = %v", r.params)
	}
}

func TestListComponentsFiltersCategory(t *testing.T) {
	r := &runner{rows: []*neo4j.Record{nodeRow(map[string]any{"id": "brake-pads", "category": "brakes"})}}
	got, err := testStore(r).ListComponents(context.Background(), "brakes")
	if err != nil || len(got) != 1 {
		t.Fatalf("got %v, %v", got, err)
	}
	if r.params["f_category"] != "brakes" || !strings.Contains(r.cypher, "ORDER BY n.id") {
		t.Fatalf("query = %s %v", r.cypher, r.params)
	}
}

func TestGetComponentNotFound(t *testing.T) {
	if _, err := testStore(&runner{}).GetComponent(context.Background(), "nope"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestComponentFromPropsMissing(t *testing.T) {
	c := componentFromProps(map[string]any{"id": "x", "price_min": "cheap"})
	if c.ID != "x" || c.PriceMin != 0 || c.Makes != nil {
		t.Fatalf("got %+v", c)
	}
}
