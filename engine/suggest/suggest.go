// Package suggest provides the common-causes / recommended-actions lookup
// that feeds result assembly. Backends return a loosely shaped Payload;
// Parse turns it into a typed Suggestions value with defaults.
package suggest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/WessleyAI/wessley-diagnostics/engine/domain"
)

// Payload keys understood by Parse.
const (
	KeyCauses  = "common_causes"
	KeyActions = "common_actions"
)

const (
	DefaultCause  = "Unknown cause"
	DefaultAction = "Consult a mechanic"
)

// ErrNoMatch is returned by lookups that have nothing for a query.
var ErrNoMatch = errors.New("suggest: no match")

// Payload is the untyped bag a lookup backend returns.
type Payload map[string]any

// Suggestions are the validated causes and actions for one query.
type Suggestions struct {
	Causes  []string `json:"common_causes"`
	Actions []string `json:"common_actions"`
	// Defaulted is set when either list was substituted.
	Defaulted bool `json:"-"`
}

// Defaults returns the suggestions used when nothing usable came back.
func Defaults() Suggestions {
	return Suggestions{
		Causes:    []string{DefaultCause},
		Actions:   []string{DefaultAction},
		Defaulted: true,
	}
}

// Parse validates p. A key whose value is missing, not a list of strings, or
// empty after trimming takes the one-element default.
func Parse(p Payload) Suggestions {
	var s Suggestions
	var ok bool
	if s.Causes, ok = stringList(p[KeyCauses]); !ok {
		s.Causes = []string{DefaultCause}
		s.Defaulted = true
	}
	if s.Actions, ok = stringList(p[KeyActions]); !ok {
		s.Actions = []string{DefaultAction}
		s.Defaulted = true
	}
	return s
}

// Payload converts s back into the loose wire form.
func (s Suggestions) Payload() Payload {
	return Payload{KeyCauses: s.Causes, KeyActions: s.Actions}
}

func stringList(v any) ([]string, bool) {
	var raw []string
	switch t := v.(type) {
	case []string:
		raw = t
	case []any:
		raw = make([]string, 0, len(t))
		for _, item := range t {
			str, ok := item.(string)
			if !ok {
				return nil, false
			}
			raw = append(raw, str)
		}
	default:
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, str := range raw {
		if str = strings.TrimSpace(str); str != "" {
			out = append(out, str)
		}
	}
	return out, len(out) > 0
}

// Query is one suggestion request.
type Query struct {
	Symptoms string
	Vehicle  domain.Vehicle
}

// Key is a normalized cache key for q.
func (q Query) Key() string {
	return fmt.Sprintf("%s|%s|%d|%s",
		strings.ToLower(domain.CanonicalMake(q.Vehicle.Make)),
		strings.ToLower(strings.TrimSpace(q.Vehicle.Model)),
		q.Vehicle.Year,
		strings.Join(strings.Fields(strings.ToLower(q.Symptoms)), " "))
}

// Lookup is a suggestion backend.
type Lookup interface {
	Lookup(ctx context.Context, q Query) (Payload, error)
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(ctx context.Context, q Query) (Payload, error)

func (f LookupFunc) Lookup(ctx context.Context, q Query) (Payload, error) { return f(ctx, q) }

// Chain tries each lookup in order and returns the first payload that parses
// without defaults. Errors are collected; if no lookup produced a usable
// payload the joined errors (or ErrNoMatch) are returned.
type Chain []Lookup

func (c Chain) Lookup(ctx context.Context, q Query) (Payload, error) {
	var errs []error
	for _, l := range c {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, err := l.Lookup(ctx, q)
		if err != nil {
			if !errors.Is(err, ErrNoMatch) {
				errs = append(errs, err)
			}
			continue
		}
		if !Parse(p).Defaulted {
			return p, nil
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return nil, ErrNoMatch
}
