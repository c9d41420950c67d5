package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/WessleyAI/wessley-diagnostics/engine/diagnostic"
	"github.com/WessleyAI/wessley-diagnostics/engine/domain"
	"github.com/WessleyAI/wessley-diagnostics/engine/report"
	"github.com/WessleyAI/wessley-diagnostics/engine/store"
	"github.com/WessleyAI/wessley-diagnostics/engine/suggest"
	"github.com/WessleyAI/wessley-diagnostics/pkg/metrics"
)

var fixedNow = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

func hondaInput() domain.DiagnosticInput {
	return domain.DiagnosticInput{
		Vehicle:    domain.Vehicle{Make: "honda", Model: "Civic", Year: 2015},
		Symptoms:   "rough idle and check engine light, poor fuel economy",
		IssueTitle: "Rough idle",
		Severity:   domain.SeverityHigh,
		Urgency:    domain.UrgencySoon,
	}
}

type failingStore struct{ store.Store }

func (failingStore) Insert(context.Context, report.Record) error { return errors.New("db down") }

func (failingStore) ListByOwner(context.Context, string, int) ([]report.Record, error) {
	return nil, errors.New("db down")
}

type fakePublisher struct {
	subject string
	event   any
	err     error
}

func (f *fakePublisher) Publish(_ context.Context, subject string, v any) error {
	f.subject, f.event = subject, v
	return f.err
}

type fakeNarrator struct {
	text string
	err  error
}

func (f fakeNarrator) Narrate(context.Context, report.DiagnosticResult) (string, error) {
	return f.text, f.err
}

func newService(d Deps) *Service {
	if d.Engine == nil {
		d.Engine = diagnostic.New(nil, diagnostic.DefaultOptions())
	}
	d.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	d.Now = func() time.Time { return fixedNow }
	return New(d)
}

func TestDiagnoseSavesAndPublishes(t *testing.T) {
	st := store.NewMemory()
	pub := &fakePublisher{}
	reg := metrics.New()
	svc := newService(Deps{
		Suggest:   suggest.DefaultStatic(),
		Store:     st,
		Publisher: pub,
		Narrator:  fakeNarrator{text: "Plugs are likely worn."},
		Metrics:   reg,
	})

	out, err := svc.Diagnose(context.Background(), "alice", hondaInput())
	if err != nil {
		t.Fatal(err)
	}
	res := out.Result
	if !out.Saved || !out.Published || out.SaveErr != nil {
		t.Fatalf("outcome = %+v", out)
	}
	if res.Vehicle == nil || res.Vehicle.Make != "Honda" {
		t.Errorf("vehicle = %+v", res.Vehicle)
	}
	if len(res.AffectedComponents) == 0 || res.Narrative != "Plugs are likely worn." {
		t.Errorf("result = %+v", res)
	}
	if res.PossibleCauses[0] == suggest.DefaultCause {
		t.Errorf("static lookup not used: %v", res.PossibleCauses)
	}
	if !res.Timestamp.Equal(fixedNow) {
		t.Errorf("timestamp = %v", res.Timestamp)
	}

	ev, ok := pub.event.(Event)
	if pub.subject != SubjectCreated || !ok || ev.ID != res.ID || ev.OwnerID != "alice" {
		t.Fatalf("published %s %+v", pub.subject, pub.event)
	}
	if ev.Vehicle != "2015 Honda Civic" || len(ev.Components) != len(res.AffectedComponents) {
		t.Errorf("event = %+v", ev)
	}

	hist, err := svc.History(context.Background(), "alice", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 1 || hist[0].ID != res.ID || hist[0].Narrative != res.Narrative {
		t.Fatalf("history = %+v", hist)
	}
	if len(hist[0].AffectedComponents) != len(res.AffectedComponents) {
		t.Errorf("components lost in round trip")
	}

	text := reg.Render()
	for _, want := range []string{`diagnostics_total{urgency="soon"} 1`, "diagnostic_duration_seconds_count 1"} {
		if !strings.Contains(text, want) {
			t.Errorf("metrics missing %q:\n%s", want, text)
		}
	}
}

func TestDiagnoseValidationError(t *testing.T) {
	svc := newService(Deps{Store: store.NewMemory()})
	in := hondaInput()
	in.Symptoms = "noise"
	_, err := svc.Diagnose(context.Background(), "alice", in)
	var ve *domain.ValidationError
	if !errors.As(err, &ve) || !errors.Is(err, domain.ErrSymptomsTooShort) {
		t.Fatalf("err = %v", err)
	}

	if _, err := svc.Diagnose(context.Background(), "", hondaInput()); !errors.Is(err, ErrMissingOwner) {
		t.Errorf("no owner: err = %v", err)
	}
}

func TestDiagnoseSurvivesCollaboratorFailures(t *testing.T) {
	pub := &fakePublisher{}
	reg := metrics.New()
	svc := newService(Deps{
		Suggest: suggest.LookupFunc(func(context.Context, suggest.Query) (suggest.Payload, error) {
			return nil, errors.New("lookup timeout")
		}),
		Store:     failingStore{},
		Publisher: pub,
		Narrator:  fakeNarrator{err: errors.New("model overloaded")},
		Metrics:   reg,
	})

	out, err := svc.Diagnose(context.Background(), "alice", hondaInput())
	if err != nil {
		t.Fatal(err)
	}
	if out.Saved || out.SaveErr == nil || out.Published {
		t.Errorf("outcome = %+v", out)
	}
	if pub.subject != "" {
		t.Error("published an unsaved diagnosis")
	}
	res := out.Result
	if len(res.AffectedComponents) == 0 {
		t.Error("matching did not run")
	}
	if res.PossibleCauses[0] != suggest.DefaultCause || res.RecommendedActions[0] != suggest.DefaultAction {
		t.Errorf("defaults not applied: %v %v", res.PossibleCauses, res.RecommendedActions)
	}
	if res.Narrative != "" {
		t.Errorf("narrative = %q", res.Narrative)
	}
	for _, name := range []string{
		"diagnostic_suggest_failures_total", "diagnostic_save_failures_total",
		"diagnostic_narrative_failures_total", "diagnostic_suggest_defaulted_total",
	} {
		if reg.Counter(name, "").Value() != 1 {
			t.Errorf("%s = %d", name, reg.Counter(name, "").Value())
		}
	}

	if _, err := svc.History(context.Background(), "alice", 0); err == nil {
		t.Error("expected history error")
	}
}

func TestDiagnosePublishFailureIsBestEffort(t *testing.T) {
	svc := newService(Deps{Store: store.NewMemory(), Publisher: &fakePublisher{err: errors.New("no route")}})
	out, err := svc.Diagnose(context.Background(), "alice", hondaInput())
	if err != nil || !out.Saved || out.Published {
		t.Fatalf("out %+v err %v", out, err)
	}
}

func TestDiagnoseWithoutCollaborators(t *testing.T) {
	svc := newService(Deps{})
	out, err := svc.Diagnose(context.Background(), "alice", hondaInput())
	if err != nil {
		t.Fatal(err)
	}
	if out.Saved || len(out.Result.AffectedComponents) == 0 {
		t.Errorf("out = %+v", out)
	}
	if hist, err := svc.History(context.Background(), "alice", 0); err != nil || hist != nil {
		t.Errorf("history %v err %v", hist, err)
	}
}

func TestDiagnoseCancelled(t *testing.T) {
	svc := newService(Deps{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.Diagnose(ctx, "alice", hondaInput()); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	svc := newService(Deps{Store: st})
	out, err := svc.Diagnose(ctx, "alice", hondaInput())
	if err != nil {
		t.Fatal(err)
	}

	status := domain.RepairInProgress
	tags := []string{"plugs", "Plugs", "weekend"}
	got, err := svc.Update(ctx, out.Result.ID, "alice", report.UpdateFields{RepairStatus: &status, Tags: &tags})
	if err != nil {
		t.Fatal(err)
	}
	if got.RepairStatus != domain.RepairInProgress || len(got.Tags) != 2 {
		t.Errorf("updated = %+v", got)
	}

	if _, err := svc.Update(ctx, out.Result.ID, "mallory", report.UpdateFields{RepairStatus: &status}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("other owner: err = %v", err)
	}
	if _, err := svc.Update(ctx, out.Result.ID, "alice", report.UpdateFields{}); !errors.Is(err, report.ErrEmptyUpdate) {
		t.Errorf("empty: err = %v", err)
	}
	bad := domain.RepairStatus("exploded")
	if _, err := svc.Update(ctx, out.Result.ID, "alice", report.UpdateFields{RepairStatus: &bad}); !errors.Is(err, domain.ErrInvalidStatus) {
		t.Errorf("bad status: err = %v", err)
	}
	if _, err := svc.Update(ctx, "x", "", report.UpdateFields{RepairStatus: &status}); !errors.Is(err, ErrMissingOwner) {
		t.Errorf("no owner: err = %v", err)
	}
}

func TestMatchBucket(t *testing.T) {
	for n, want := range map[int]string{0: "0", 3: "3", 5: "5+", 9: "5+"} {
		if got := matchBucket(n); got != want {
			t.Errorf("matchBucket(%d) = %s", n, got)
		}
	}
}
