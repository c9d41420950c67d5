package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/WessleyAI/wessley-diagnostics/engine/catalog"
	"github.com/WessleyAI/wessley-diagnostics/pkg/repo"
)

var schema = []string{
	"CREATE CONSTRAINT component_id IF NOT EXISTS FOR (n:Component) REQUIRE n.id IS UNIQUE",
	"CREATE CONSTRAINT symptom_phrase IF NOT EXISTS FOR (n:Symptom) REQUIRE n.phrase IS UNIQUE",
	"CREATE CONSTRAINT trouble_code IF NOT EXISTS FOR (n:TroubleCode) REQUIRE n.code IS UNIQUE",
	"CREATE CONSTRAINT make_name IF NOT EXISTS FOR (n:Make) REQUIRE n.name IS UNIQUE",
}

// GraphStore reads and writes the catalog graph.
type GraphStore struct {
	driver     neo4j.DriverWithContext
	database   string
	components *repo.Neo4jRepo[Component, string]
}

// New builds a GraphStore. database may be empty for the server default.
func New(driver neo4j.DriverWithContext, database string) *GraphStore {
	return &GraphStore{
		driver:   driver,
		database: database,
		components: repo.NewNeo4jRepo[Component, string](driver, "Component", componentFromRecord,
			repo.WithDatabase[Component, string](database)),
	}
}

// txRunner is the part of a managed transaction the sync uses.
type txRunner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (neo4j.ResultWithContext, error)
}

// EnsureSchema creates uniqueness constraints; it is idempotent.
func (g *GraphStore) EnsureSchema(ctx context.Context) error {
	sess := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite, DatabaseName: g.database})
	defer sess.Close(ctx)
	for _, stmt := range schema {
		if _, err := sess.Run(ctx, stmt, nil); err != nil {
			return fmt.Errorf("graph: schema: %w", err)
		}
	}
	return nil
}

// SyncCatalog merges every catalog component with its symptoms, trouble
// codes and makes in one write transaction, then removes components no
// longer in the catalog.
func (g *GraphStore) SyncCatalog(ctx context.Context, cat *catalog.Catalog) (SyncStats, error) {
	stmts, stats := syncStatements(cat)
	sess := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite, DatabaseName: g.database})
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, runStatements(ctx, tx, stmts)
	})
	if err != nil {
		return SyncStats{}, fmt.Errorf("graph: sync catalog: %w", err)
	}
	return stats, nil
}

type statement struct {
	cypher string
	params map[string]any
}

func runStatements(ctx context.Context, tx txRunner, stmts []statement) error {
	for _, s := range stmts {
		if _, err := tx.Run(ctx, s.cypher, s.params); err != nil {
			return err
		}
	}
	return nil
}

func syncStatements(cat *catalog.Catalog) ([]statement, SyncStats) {
	var (
		comps, symptoms, codes, makes []map[string]any
		ids                           []string
		stats                         SyncStats
		seenSym                       = map[string]bool{}
		seenCode                      = map[string]bool{}
		seenMake                      = map[string]bool{}
	)
	for _, c := range cat.All() {
		ids = append(ids, c.ID)
		comps = append(comps, componentToMap(c))
		for _, s := range c.Symptoms {
			symptoms = append(symptoms, map[string]any{"component": c.ID, "phrase": s})
			if !seenSym[s] {
				seenSym[s] = true
				stats.Symptoms++
			}
		}
		for _, code := range c.DiagnosticCodes {
			code = strings.ToUpper(code)
			codes = append(codes, map[string]any{"component": c.ID, "code": code})
			if !seenCode[code] {
				seenCode[code] = true
				stats.Codes++
			}
		}
		for _, m := range c.CompatibleMakes {
			makes = append(makes, map[string]any{"component": c.ID, "make": m})
			if !seenMake[m] {
				seenMake[m] = true
				stats.Makes++
			}
		}
	}
	stats.Components = len(comps)

	return []statement{
		{`UNWIND $components AS c
MERGE (n:Component {id: c.id})
SET n += c`, map[string]any{"components": comps}},
		{`UNWIND $symptoms AS s
MATCH (n:Component {id: s.component})
MERGE (y:Symptom {phrase: s.phrase})
MERGE (n)-[:HAS_SYMPTOM]->(y)`, map[string]any{"symptoms": symptoms}},
		{`UNWIND $codes AS d
MATCH (n:Component {id: d.component})
MERGE (t:TroubleCode {code: d.code})
MERGE (t)-[:INDICATES]->(n)`, map[string]any{"codes": codes}},
		{`UNWIND $makes AS m
MATCH (n:Component {id: m.component})
MERGE (k:Make {name: m.make})
MERGE (n)-[:FITS]->(k)`, map[string]any{"makes": makes}},
		{`MATCH (n:Component) WHERE NOT n.id IN $ids DETACH DELETE n`, map[string]any{"ids": ids}},
	}, stats
}

// GetComponent returns the component node with id.
func (g *GraphStore) GetComponent(ctx context.Context, id string) (Component, error) {
	return g.components.Get(ctx, id)
}

// ListComponents lists components ordered by id, optionally in one category.
func (g *GraphStore) ListComponents(ctx context.Context, category string) ([]Component, error) {
	opts := repo.ListOpts{OrderBy: "id"}
	if category != "" {
		opts.Filter = map[string]any{"category": category}
	}
	return g.components.List(ctx, opts)
}

// ComponentsForCode returns the components a trouble code indicates.
func (g *GraphStore) ComponentsForCode(ctx context.Context, code string) ([]Component, error) {
	return g.components.Query(ctx,
		`MATCH (:TroubleCode {code: $code})-[:INDICATES]->(n:Component) RETURN n ORDER BY n.id`,
		map[string]any{"code": strings.ToUpper(strings.TrimSpace(code))})
}

// ComponentsForSymptom returns components with a symptom phrase containing
// text, most critical first.
func (g *GraphStore) ComponentsForSymptom(ctx context.Context, text string) ([]Component, error) {
	return g.components.Query(ctx,
		`MATCH (n:Component)-[:HAS_SYMPTOM]->(s:Symptom)
WHERE s.phrase CONTAINS $text
RETURN DISTINCT n ORDER BY n.warning_rank DESC, n.price_min`,
		map[string]any{"text": strings.ToLower(strings.TrimSpace(text))})
}

// CountComponents returns how many component nodes exist.
func (g *GraphStore) CountComponents(ctx context.Context) (int, error) {
	return g.components.Count(ctx)
}

func componentToMap(c catalog.Component) map[string]any {
	return map[string]any{
		"id":            c.ID,
		"name":          c.Name,
		"category":      string(c.Category),
		"warning_level": string(c.WarningLevel),
		"warning_rank":  c.WarningLevel.Rank(),
		"difficulty":    string(c.LaborHours.Difficulty),
		"price_min":     c.PriceRange.Min,
		"price_max":     c.PriceRange.Max,
		"labor_min":     c.LaborHours.Min,
		"labor_max":     c.LaborHours.Max,
		"makes":         c.CompatibleMakes,
	}
}

func componentFromRecord(rec *neo4j.Record) (Component, error) {
	node, _, err := neo4j.GetRecordValue[dbtype.Node](rec, "n")
	if err != nil {
		return Component{}, err
	}
	return componentFromProps(node.Props), nil
}

func componentFromProps(props map[string]any) Component {
	c := Component{
		ID:           strProp(props, "id"),
		Name:         strProp(props, "name"),
		Category:     strProp(props, "category"),
		WarningLevel: strProp(props, "warning_level"),
		Difficulty:   strProp(props, "difficulty"),
		PriceMin:     floatProp(props, "price_min"),
		PriceMax:     floatProp(props, "price_max"),
		LaborMin:     floatProp(props, "labor_min"),
		LaborMax:     floatProp(props, "labor_max"),
	}
	if raw, ok := props["makes"].([]any); ok {
		for _, v := range raw {
			if s, ok := v.(string); ok {
				c.Makes = append(c.Makes, s)
			}
		}
	}
	return c
}

func strProp(props map[string]any, key string) string {
	s, _ := props[key].(string)
	return s
}

func floatProp(props map[string]any, key string) float64 {
	switch v := props[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}
