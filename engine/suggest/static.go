package suggest

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"slices"
	"strings"
	"unicode"

	"github.com/hbollon/go-edlib"
	"github.com/surgebase/porter2"
	"gopkg.in/yaml.v3"
)

// Issue is one entry of the common-issue reference table.
type Issue struct {
	ID       string   `yaml:"id" json:"id"`
	Title    string   `yaml:"title" json:"title"`
	Symptoms []string `yaml:"symptoms" json:"symptoms"`
	Makes    []string `yaml:"makes" json:"makes,omitempty"`
	Causes   []string `yaml:"causes" json:"causes"`
	Actions  []string `yaml:"actions" json:"actions"`
}

// Text is the searchable text of an issue.
func (i Issue) Text() string {
	return i.Title + ". " + strings.Join(i.Symptoms, ". ")
}

// AppliesTo reports whether the issue covers vehicleMake.
func (i Issue) AppliesTo(vehicleMake string) bool {
	if len(i.Makes) == 0 || vehicleMake == "" {
		return true
	}
	return slices.ContainsFunc(i.Makes, func(m string) bool { return strings.EqualFold(m, vehicleMake) })
}

// Payload is the lookup payload for the issue.
func (i Issue) Payload() Payload {
	return Payload{
		KeyCauses:  slices.Clone(i.Causes),
		KeyActions: slices.Clone(i.Actions),
		"issue_id": i.ID,
		"title":    i.Title,
	}
}

const (
	defaultMinScore = 0.25
	fuzzyThreshold  = 0.9
	fuzzyCredit     = 0.8
)

var stopWords = map[string]bool{
	"and": true, "the": true, "when": true, "with": true, "from": true,
	"have": true, "has": true, "my": true, "car": true, "is": true, "it": true,
	"of": true, "on": true, "at": true, "a": true, "an": true, "to": true,
}

type indexed struct {
	issue Issue
	stems map[string]bool
}

// Static answers lookups from the in-memory common-issue table, scoring
// entries by stemmed token overlap with Jaro-Winkler credit for near misses.
type Static struct {
	issues   []indexed
	minScore float64
}

//go:embed common_issues.yaml
var embeddedIssues string

// NewStatic reads an issue table document.
func NewStatic(r io.Reader) (*Static, error) {
	var doc struct {
		Issues []Issue `yaml:"issues"`
	}
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("suggest: decode issues: %w", err)
	}
	s := &Static{minScore: defaultMinScore}
	for _, is := range doc.Issues {
		if is.ID == "" {
			return nil, fmt.Errorf("suggest: issue %q has no id", is.Title)
		}
		s.issues = append(s.issues, indexed{issue: is, stems: stemSet(is.Text())})
	}
	return s, nil
}

// DefaultStatic returns a Static over the embedded table.
func DefaultStatic() *Static {
	s, err := NewStatic(strings.NewReader(embeddedIssues))
	if err != nil {
		panic(err)
	}
	return s
}

// Issues returns the table entries.
func (s *Static) Issues() []Issue {
	out := make([]Issue, len(s.issues))
	for i, ix := range s.issues {
		out[i] = ix.issue
	}
	return out
}

// Lookup returns the best-scoring applicable issue, or ErrNoMatch.
func (s *Static) Lookup(ctx context.Context, q Query) (Payload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	is, score := s.Best(q)
	if score < s.minScore {
		return nil, ErrNoMatch
	}
	p := is.Payload()
	p["score"] = score
	return p, nil
}

// Best returns the highest-scoring issue for q and its score in [0, 1].
// Ties keep table order.
func (s *Static) Best(q Query) (Issue, float64) {
	tokens := tokenize(q.Symptoms)
	var best Issue
	bestScore := 0.0
	for _, ix := range s.issues {
		if !ix.issue.AppliesTo(q.Vehicle.Make) {
			continue
		}
		if sc := score(tokens, ix.stems); sc > bestScore {
			best, bestScore = ix.issue, sc
		}
	}
	return best, bestScore
}

func score(tokens []string, stems map[string]bool) float64 {
	if len(tokens) == 0 {
		return 0
	}
	var total float64
	for _, t := range tokens {
		st := porter2.Stem(t)
		if stems[st] {
			total++
			continue
		}
		if bestSimilarity(st, stems) >= fuzzyThreshold {
			total += fuzzyCredit
		}
	}
	return total / float64(len(tokens))
}

func bestSimilarity(stem string, stems map[string]bool) float64 {
	var best float64
	for s := range stems {
		sim, err := edlib.StringsSimilarity(stem, s, edlib.JaroWinkler)
		if err != nil {
			continue
		}
		best = max(best, float64(sim))
	}
	return best
}

func tokenize(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := words[:0]
	for _, w := range words {
		if len(w) > 1 && !stopWords[w] {
			out = append(out, w)
		}
	}
	return out
}

func stemSet(text string) map[string]bool {
	out := make(map[string]bool)
	for _, t := range tokenize(text) {
		out[porter2.Stem(t)] = true
	}
	return out
}
