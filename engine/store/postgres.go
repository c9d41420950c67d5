package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/WessleyAI/wessley-diagnostics/engine/report"
)

const schema = `
CREATE TABLE IF NOT EXISTS diagnostic_results (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  issue_title TEXT NOT NULL,
  symptoms TEXT NOT NULL,
  severity TEXT NOT NULL,
  urgency TEXT,
  diagnostic_type TEXT NOT NULL DEFAULT 'manual',
  vehicle_make TEXT,
  vehicle_model TEXT,
  vehicle_year INTEGER,
  possible_causes JSONB,
  recommended_actions JSONB,
  estimated_cost TEXT,
  diagnostic_data JSONB,
  custom_name TEXT,
  notes TEXT,
  tags JSONB,
  is_bookmarked BOOLEAN NOT NULL DEFAULT FALSE,
  repair_status TEXT NOT NULL DEFAULT 'pending',
  created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_diagnostic_results_user_created
  ON diagnostic_results (user_id, created_at DESC);
`

const selectColumns = `id, user_id, issue_title, symptoms, severity, urgency, diagnostic_type,
  vehicle_make, vehicle_model, vehicle_year, possible_causes, recommended_actions,
  estimated_cost, diagnostic_data, custom_name, notes, tags, is_bookmarked,
  repair_status, created_at, updated_at`

// Postgres is a Store backed by the diagnostic_results table.
type Postgres struct {
	db *sql.DB
}

// OpenPostgres connects through the pgx database/sql driver and pings.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return NewPostgres(db), nil
}

// NewPostgres wraps an open handle.
func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// Migrate creates the table and index if missing.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// Close closes the handle.
func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) Insert(ctx context.Context, rec report.Record) error {
	if rec.OwnerID == "" {
		return ErrMissingOwner
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
	_, err := p.db.ExecContext(ctx, `
INSERT INTO diagnostic_results (`+selectColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)`,
		rec.ID, rec.OwnerID, rec.IssueTitle, rec.Symptoms, rec.Severity, rec.Urgency,
		rec.DiagnosticType, rec.VehicleMake, rec.VehicleModel, rec.VehicleYear,
		jsonList(rec.PossibleCauses), jsonList(rec.RecommendedActions),
		rec.EstimatedCost, jsonBlob(rec.DiagnosticData), rec.CustomName, rec.Notes,
		jsonList(rec.Tags), rec.Bookmarked, rec.RepairStatus, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: insert %s: %w", rec.ID, err)
	}
	return nil
}

func (p *Postgres) ListByOwner(ctx context.Context, ownerID string, limit int) ([]report.Record, error) {
	if ownerID == "" {
		return nil, ErrMissingOwner
	}
	rows, err := p.db.QueryContext(ctx, `SELECT `+selectColumns+`
FROM diagnostic_results WHERE user_id = $1
ORDER BY created_at DESC, id DESC LIMIT $2`, ownerID, normLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer rows.Close()

	out := make([]report.Record, 0, normLimit(limit))
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("store: list: scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	return out, nil
}

func (p *Postgres) UpdateByIDAndOwner(ctx context.Context, id, ownerID string, u report.UpdateFields) (report.Record, error) {
	if ownerID == "" {
		return report.Record{}, ErrMissingOwner
	}
	query, args, err := buildUpdate(id, ownerID, u, time.Now().UTC())
	if err != nil {
		return report.Record{}, err
	}
	rec, err := scanRecord(p.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return report.Record{}, ErrNotFound
	}
	if err != nil {
		return report.Record{}, fmt.Errorf("store: update %s: %w", id, err)
	}
	return rec, nil
}

// buildUpdate renders the owner-scoped partial UPDATE for u.
func buildUpdate(id, ownerID string, u report.UpdateFields, now time.Time) (string, []any, error) {
	if u.IsEmpty() {
		return "", nil, report.ErrEmptyUpdate
	}
	var sets []string
	var args []any
	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if u.CustomName != nil {
		set("custom_name", nullable(*u.CustomName))
	}
	if u.Notes != nil {
		set("notes", nullable(*u.Notes))
	}
	if u.Tags != nil {
		set("tags", jsonList(report.NormalizeTags(*u.Tags)))
	}
	if u.RepairStatus != nil {
		set("repair_status", string(*u.RepairStatus))
	}
	if u.Bookmarked != nil {
		set("is_bookmarked", *u.Bookmarked)
	}
	set("updated_at", now)

	args = append(args, id, ownerID)
	query := fmt.Sprintf("UPDATE diagnostic_results SET %s WHERE id = $%d AND user_id = $%d RETURNING %s",
		strings.Join(sets, ", "), len(args)-1, len(args), selectColumns)
	return query, args, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (report.Record, error) {
	var rec report.Record
	var causes, actions, tags, data []byte
	err := row.Scan(
		&rec.ID, &rec.OwnerID, &rec.IssueTitle, &rec.Symptoms, &rec.Severity, &rec.Urgency,
		&rec.DiagnosticType, &rec.VehicleMake, &rec.VehicleModel, &rec.VehicleYear,
		&causes, &actions, &rec.EstimatedCost, &data, &rec.CustomName, &rec.Notes,
		&tags, &rec.Bookmarked, &rec.RepairStatus, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return report.Record{}, err
	}
	if rec.PossibleCauses, err = decodeList(causes); err != nil {
		return report.Record{}, fmt.Errorf("possible_causes: %w", err)
	}
	if rec.RecommendedActions, err = decodeList(actions); err != nil {
		return report.Record{}, fmt.Errorf("recommended_actions: %w", err)
	}
	if rec.Tags, err = decodeList(tags); err != nil {
		return report.Record{}, fmt.Errorf("tags: %w", err)
	}
	if len(data) > 0 {
		rec.DiagnosticData = json.RawMessage(data)
	}
	return rec, nil
}

// jsonList encodes a list for a JSONB column; nil stays NULL.
func jsonList(v []string) any {
	if len(v) == 0 {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return string(b)
}

func jsonBlob(b json.RawMessage) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func decodeList(b []byte) ([]string, error) {
	if len(b) == 0 || string(b) == "null" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func nullable(s string) any {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return s
}
