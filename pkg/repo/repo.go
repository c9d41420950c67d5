// Package repo defines a read repository over graph nodes and its Neo4j
// implementation.
package repo

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no node has the id.
var ErrNotFound = errors.New("repo: not found")

// Repository reads entities of one node label.
type Repository[T any, ID comparable] interface {
	Get(ctx context.Context, id ID) (T, error)
	List(ctx context.Context, opts ListOpts) ([]T, error)
}

// ListOpts controls List. Filter keys are property names matched by
// equality; OrderBy is a property name.
type ListOpts struct {
	Offset  int
	Limit   int
	Filter  map[string]any
	OrderBy string
}

// DefaultListLimit applies when ListOpts.Limit is not positive.
const DefaultListLimit = 100
