// Package service runs a diagnosis end to end: validation, suggestion
// lookup, the engine, result assembly, persistence, event fan-out and the
// optional narrative.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/WessleyAI/wessley-diagnostics/engine/diagnostic"
	"github.com/WessleyAI/wessley-diagnostics/engine/domain"
	"github.com/WessleyAI/wessley-diagnostics/engine/narrative"
	"github.com/WessleyAI/wessley-diagnostics/engine/report"
	"github.com/WessleyAI/wessley-diagnostics/engine/store"
	"github.com/WessleyAI/wessley-diagnostics/engine/suggest"
	"github.com/WessleyAI/wessley-diagnostics/pkg/fn"
	"github.com/WessleyAI/wessley-diagnostics/pkg/metrics"
)

// SubjectCreated is the NATS subject a saved diagnosis is announced on.
const SubjectCreated = "diagnostic.created"

// ErrMissingOwner is returned when no owner id accompanies a request.
var ErrMissingOwner = errors.New("service: owner id required")

// Publisher fans out events. *natsutil.Publisher satisfies it.
type Publisher interface {
	Publish(ctx context.Context, subject string, v any) error
}

// Event is the payload published on SubjectCreated.
type Event struct {
	ID         string           `json:"id"`
	OwnerID    string           `json:"user_id"`
	IssueTitle string           `json:"issue_title"`
	Severity   string           `json:"severity"`
	Urgency    string           `json:"urgency"`
	Vehicle    string           `json:"vehicle,omitempty"`
	Components []string         `json:"components"`
	TotalCost  report.CostRange `json:"total_cost"`
	CreatedAt  time.Time        `json:"created_at"`
}

// Deps are the collaborators of a Service. Only Engine is required.
type Deps struct {
	Engine    *diagnostic.Engine
	Suggest   suggest.Lookup
	Store     store.Store
	Publisher Publisher
	Narrator  narrative.Generator
	Metrics   *metrics.Registry
	Logger    *slog.Logger
	Now       func() time.Time
}

// Service is safe for concurrent use.
type Service struct {
	deps     Deps
	diagnose fn.Stage[*run, *run]
	m        serviceMetrics
}

type serviceMetrics struct {
	reg             *metrics.Registry
	lookupFailures  *metrics.Counter
	defaulted       *metrics.Counter
	saveFailures    *metrics.Counter
	publishFailures *metrics.Counter
	narrativeFails  *metrics.Counter
	rejected        *metrics.Counter
	latency         *metrics.Histogram
}

// Outcome is the result of one Diagnose call. Result is always usable when
// err is nil, even if SaveErr is set.
type Outcome struct {
	Result    report.DiagnosticResult `json:"result"`
	Saved     bool                    `json:"saved"`
	SaveErr   error                   `json:"-"`
	Published bool                    `json:"-"`
}

// run carries one request through the pipeline.
type run struct {
	owner       string
	input       domain.DiagnosticInput
	suggestions suggest.Suggestions
	diagnosis   diagnostic.Diagnosis
	out         Outcome
}

// New wires a Service. It panics without an engine.
func New(d Deps) *Service {
	if d.Engine == nil {
		panic("service: nil engine")
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	s := &Service{deps: d}
	s.m = serviceMetrics{
		reg:             d.Metrics,
		lookupFailures:  d.Metrics.Counter("diagnostic_suggest_failures_total", "Suggestion lookups that failed."),
		defaulted:       d.Metrics.Counter("diagnostic_suggest_defaulted_total", "Results that used default causes or actions."),
		saveFailures:    d.Metrics.Counter("diagnostic_save_failures_total", "Results that could not be saved."),
		publishFailures: d.Metrics.Counter("diagnostic_publish_failures_total", "Created events that could not be published."),
		narrativeFails:  d.Metrics.Counter("diagnostic_narrative_failures_total", "Narratives that could not be generated."),
		rejected:        d.Metrics.Counter("diagnostic_rejected_total", "Submissions rejected by validation."),
		latency:         d.Metrics.Histogram("diagnostic_duration_seconds", "Diagnose latency.", nil),
	}
	s.diagnose = fn.Pipeline(
		fn.TracedStage("diagnose.validate", s.validate),
		fn.TracedStage("diagnose.suggest", s.suggest),
		fn.TracedStage("diagnose.generate", s.generate),
		fn.TracedStage("diagnose.narrate", s.narrate),
		fn.TracedStage("diagnose.save", s.save),
		fn.TracedStage("diagnose.publish", s.publish),
		fn.TapStage(s.observe),
	)
	return s
}

// Diagnose validates and diagnoses one submission for owner. Validation
// errors are *domain.ValidationError. Store, publish and narrative failures
// are logged and counted but never fail the call.
func (s *Service) Diagnose(ctx context.Context, owner string, in domain.DiagnosticInput) (Outcome, error) {
	if owner == "" {
		return Outcome{}, ErrMissingOwner
	}
	start := s.deps.Now()
	r, err := s.diagnose(ctx, &run{owner: owner, input: in}).Unwrap()
	s.m.latency.Observe(s.deps.Now().Sub(start).Seconds())
	if err != nil {
		return Outcome{}, err
	}
	return r.out, nil
}

func (s *Service) validate(ctx context.Context, r *run) fn.Result[*run] {
	if err := ctx.Err(); err != nil {
		return fn.Err[*run](err)
	}
	if err := domain.ValidateInput(r.input, s.deps.Now()); err != nil {
		s.m.rejected.Inc()
		return fn.Err[*run](err)
	}
	r.input.Vehicle.Make = domain.CanonicalMake(r.input.Vehicle.Make)
	return fn.Ok(r)
}

// suggest never fails the pipeline; a failed or unusable lookup yields the
// defaults.
func (s *Service) suggest(ctx context.Context, r *run) fn.Result[*run] {
	r.suggestions = suggest.Defaults()
	if s.deps.Suggest == nil {
		s.m.defaulted.Inc()
		return fn.Ok(r)
	}
	p, err := s.deps.Suggest.Lookup(ctx, suggest.Query{Symptoms: r.input.Symptoms, Vehicle: r.input.Vehicle})
	switch {
	case errors.Is(err, suggest.ErrNoMatch):
	case err != nil:
		s.m.lookupFailures.Inc()
		s.deps.Logger.Warn("suggestion lookup failed", "owner", r.owner, "err", err)
	default:
		r.suggestions = suggest.Parse(p)
	}
	if r.suggestions.Defaulted {
		s.m.defaulted.Inc()
	}
	return fn.Ok(r)
}

func (s *Service) generate(_ context.Context, r *run) fn.Result[*run] {
	r.diagnosis = s.deps.Engine.Generate(r.input)
	r.out.Result = report.Assemble(r.input, r.diagnosis, r.suggestions, s.deps.Now())
	return fn.Ok(r)
}

func (s *Service) narrate(ctx context.Context, r *run) fn.Result[*run] {
	if s.deps.Narrator == nil {
		return fn.Ok(r)
	}
	text, err := s.deps.Narrator.Narrate(ctx, r.out.Result)
	if err != nil {
		s.m.narrativeFails.Inc()
		s.deps.Logger.Warn("narrative skipped", "id", r.out.Result.ID, "err", err)
		return fn.Ok(r)
	}
	r.out.Result.Narrative = text
	return fn.Ok(r)
}

func (s *Service) save(ctx context.Context, r *run) fn.Result[*run] {
	if s.deps.Store == nil {
		return fn.Ok(r)
	}
	rec, err := report.ToStorageRecord(r.out.Result, r.owner)
	if err == nil {
		err = s.deps.Store.Insert(ctx, rec)
	}
	if err != nil {
		s.m.saveFailures.Inc()
		r.out.SaveErr = fmt.Errorf("service: save %s: %w", rec.ID, err)
		s.deps.Logger.Error("diagnosis not saved", "id", rec.ID, "owner", r.owner, "err", err)
		return fn.Ok(r)
	}
	r.out.Saved = true
	return fn.Ok(r)
}

func (s *Service) publish(ctx context.Context, r *run) fn.Result[*run] {
	if s.deps.Publisher == nil || !r.out.Saved {
		return fn.Ok(r)
	}
	if err := s.deps.Publisher.Publish(ctx, SubjectCreated, newEvent(r.out.Result, r.owner)); err != nil {
		s.m.publishFailures.Inc()
		s.deps.Logger.Warn("created event not published", "id", r.out.Result.ID, "err", err)
		return fn.Ok(r)
	}
	r.out.Published = true
	return fn.Ok(r)
}

func (s *Service) observe(_ context.Context, r *run) {
	res := r.out.Result
	s.m.reg.Counter(metrics.WithLabels("diagnostics_total", "urgency", string(res.Urgency)), "Diagnoses by urgency.").Inc()
	s.m.reg.Counter(metrics.WithLabels("diagnostic_components_matched_total", "count", matchBucket(len(r.diagnosis.Components))), "Diagnoses by number of matched components.").Inc()
	if r.diagnosis.MakeFilterDropped {
		s.m.reg.Counter("diagnostic_make_filter_dropped_total", "Diagnoses where the make filter was dropped.").Inc()
	}
	if r.diagnosis.FreeTextFallback {
		s.m.reg.Counter("diagnostic_free_text_fallback_total", "Diagnoses that fell back to free-text search.").Inc()
	}
	s.deps.Logger.Info("diagnosis complete",
		"id", res.ID, "owner", r.owner, "urgency", res.Urgency,
		"components", len(r.diagnosis.Components), "saved", r.out.Saved)
}

func matchBucket(n int) string {
	if n >= 5 {
		return "5+"
	}
	return strconv.Itoa(n)
}

func newEvent(res report.DiagnosticResult, owner string) Event {
	ev := Event{
		ID:         res.ID,
		OwnerID:    owner,
		IssueTitle: res.IssueTitle,
		Severity:   string(res.Severity),
		Urgency:    string(res.Urgency),
		Components: fn.Map(res.AffectedComponents, func(c report.AffectedComponent) string { return c.Name }),
		TotalCost:  res.RepairDetails.TotalCost,
		CreatedAt:  res.Timestamp,
	}
	if v := res.Vehicle; v != nil {
		ev.Vehicle = fmt.Sprintf("%d %s %s", v.Year, v.Make, v.Model)
	}
	return ev
}

// History returns owner's saved diagnoses, newest first.
func (s *Service) History(ctx context.Context, owner string, limit int) ([]report.DiagnosticResult, error) {
	if owner == "" {
		return nil, ErrMissingOwner
	}
	if s.deps.Store == nil {
		return nil, nil
	}
	recs, err := s.deps.Store.ListByOwner(ctx, owner, limit)
	if err != nil {
		return nil, fmt.Errorf("service: history: %w", err)
	}
	return fn.Map(recs, report.FromStorageRecord), nil
}

// Update applies a partial update to one of owner's diagnoses.
// store.ErrNotFound is returned when the id does not belong to owner.
func (s *Service) Update(ctx context.Context, id, owner string, u report.UpdateFields) (report.DiagnosticResult, error) {
	if owner == "" {
		return report.DiagnosticResult{}, ErrMissingOwner
	}
	if err := report.ValidateUpdate(u); err != nil {
		return report.DiagnosticResult{}, err
	}
	if s.deps.Store == nil {
		return report.DiagnosticResult{}, store.ErrNotFound
	}
	rec, err := s.deps.Store.UpdateByIDAndOwner(ctx, id, owner, u)
	if err != nil {
		return report.DiagnosticResult{}, fmt.Errorf("service: update %s: %w", id, err)
	}
	return report.FromStorageRecord(rec), nil
}
