package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/WessleyAI/wessley-diagnostics/engine/report"
)

// Memory is an in-process Store for tests and local runs.
type Memory struct {
	mu   sync.RWMutex
	recs []report.Record
	now  func() time.Time
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{now: time.Now}
}

func (m *Memory) Insert(ctx context.Context, rec report.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.OwnerID == "" {
		return ErrMissingOwner
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.recs {
		if r.ID == rec.ID {
			return fmt.Errorf("store: insert: duplicate id %s", rec.ID)
		}
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = m.now().UTC()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
	m.recs = append(m.recs, clone(rec))
	return nil
}

func (m *Memory) ListByOwner(ctx context.Context, ownerID string, limit int) ([]report.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ownerID == "" {
		return nil, ErrMissingOwner
	}
	m.mu.RLock()
	var out []report.Record
	for _, r := range m.recs {
		if r.OwnerID == ownerID {
			out = append(out, clone(r))
		}
	}
	m.mu.RUnlock()

	// Insertion order breaks ties, newest insert first.
	slices.Reverse(out)
	slices.SortStableFunc(out, func(a, b report.Record) int { return b.CreatedAt.Compare(a.CreatedAt) })
	if n := normLimit(limit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (m *Memory) UpdateByIDAndOwner(ctx context.Context, id, ownerID string, u report.UpdateFields) (report.Record, error) {
	if err := ctx.Err(); err != nil {
		return report.Record{}, err
	}
	if ownerID == "" {
		return report.Record{}, ErrMissingOwner
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.recs {
		r := &m.recs[i]
		if r.ID != id || r.OwnerID != ownerID {
			continue
		}
		report.ApplyToRecord(r, u)
		r.UpdatedAt = m.now().UTC()
		return clone(*r), nil
	}
	return report.Record{}, ErrNotFound
}

func clone(r report.Record) report.Record {
	r.PossibleCauses = slices.Clone(r.PossibleCauses)
	r.RecommendedActions = slices.Clone(r.RecommendedActions)
	r.Tags = slices.Clone(r.Tags)
	r.DiagnosticData = slices.Clone(r.DiagnosticData)
	return r
}
