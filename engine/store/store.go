// Package store persists saved diagnoses. Every read and write is scoped to
// an owner; the owner id is opaque here.
package store

import (
	"context"
	"errors"

	"github.com/WessleyAI/wessley-diagnostics/engine/report"
)

// DefaultListLimit is the history page size.
const DefaultListLimit = 25

var (
	// ErrNotFound is returned when no record matches id and owner.
	ErrNotFound = errors.New("store: record not found")
	// ErrMissingOwner is returned for operations without an owner id.
	ErrMissingOwner = errors.New("store: owner id required")
)

// Store is the diagnostic history datastore.
type Store interface {
	Insert(ctx context.Context, rec report.Record) error
	// ListByOwner returns up to limit records, newest first. A limit of
	// zero or less means DefaultListLimit.
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]report.Record, error)
	UpdateByIDAndOwner(ctx context.Context, id, ownerID string, u report.UpdateFields) (report.Record, error)
}

func normLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
