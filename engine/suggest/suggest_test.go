package suggest

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/WessleyAI/wessley-diagnostics/engine/domain"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		in        Payload
		causes    []string
		actions   []string
		defaulted bool
	}{
		{
			name:    "string slices",
			in:      Payload{KeyCauses: []string{"Bad coil"}, KeyActions: []string{"Swap coils"}},
			causes:  []string{"Bad coil"},
			actions: []string{"Swap coils"},
		},
		{
			name:    "decoded json arrays",
			in:      Payload{KeyCauses: []any{"a", " b "}, KeyActions: []any{"c"}},
			causes:  []string{"a", "b"},
			actions: []string{"c"},
		},
		{
			name:      "nil payload",
			in:        nil,
			causes:    []string{DefaultCause},
			actions:   []string{DefaultAction},
			defaulted: true,
		},
		{
			name:      "string instead of list",
			in:        Payload{KeyCauses: "Bad coil", KeyActions: []string{"x"}},
			causes:    []string{DefaultCause},
			actions:   []string{"x"},
			defaulted: true,
		},
		{
			name:      "mixed element types",
			in:        Payload{KeyCauses: []any{"a", 3}, KeyActions: []any{}},
			causes:    []string{DefaultCause},
			actions:   []string{DefaultAction},
			defaulted: true,
		},
		{
			name:      "blank strings only",
			in:        Payload{KeyCauses: []string{" "}, KeyActions: []string{"ok"}},
			causes:    []string{DefaultCause},
			actions:   []string{"ok"},
			defaulted: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.in)
			if !reflect.DeepEqual(got.Causes, tt.causes) || !reflect.DeepEqual(got.Actions, tt.actions) {
				t.Errorf("got %v / %v, want %v / %v", got.Causes, got.Actions, tt.causes, tt.actions)
			}
			if got.Defaulted != tt.defaulted {
				t.Errorf("Defaulted = %v, want %v", got.Defaulted, tt.defaulted)
			}
		})
	}
}

func TestSuggestionsPayloadRoundTrip(t *testing.T) {
	s := Suggestions{Causes: []string{"a"}, Actions: []string{"b"}}
	got := Parse(s.Payload())
	if !reflect.DeepEqual(got, s) {
		t.Errorf("got %+v, want %+v", got, s)
	}
}

func TestQueryKeyNormalizes(t *testing.T) {
	a := Query{Symptoms: "Rough  Idle ", Vehicle: domain.Vehicle{Make: "chevy", Model: "Malibu ", Year: 2012}}
	b := Query{Symptoms: "rough idle", Vehicle: domain.Vehicle{Make: "Chevrolet", Model: "malibu", Year: 2012}}
	if a.Key() != b.Key() {
		t.Errorf("%q != %q", a.Key(), b.Key())
	}
}

func TestChain(t *testing.T) {
	boom := errors.New("boom")
	failing := LookupFunc(func(context.Context, Query) (Payload, error) { return nil, boom })
	empty := LookupFunc(func(context.Context, Query) (Payload, error) { return Payload{}, nil })
	miss := LookupFunc(func(context.Context, Query) (Payload, error) { return nil, ErrNoMatch })
	good := LookupFunc(func(context.Context, Query) (Payload, error) {
		return Payload{KeyCauses: []string{"c"}, KeyActions: []string{"a"}}, nil
	})

	p, err := Chain{failing, empty, good}.Lookup(context.Background(), Query{})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if Parse(p).Causes[0] != "c" {
		t.Errorf("payload = %v", p)
	}

	if _, err := (Chain{failing, miss}).Lookup(context.Background(), Query{}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if _, err := (Chain{miss, empty}).Lookup(context.Background(), Query{}); !errors.Is(err, ErrNoMatch) {
		t.Errorf("err = %v, want ErrNoMatch", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (Chain{good}).Lookup(ctx, Query{}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestCached(t *testing.T) {
	calls := 0
	next := LookupFunc(func(_ context.Context, q Query) (Payload, error) {
		calls++
		if strings.Contains(q.Symptoms, "fail") {
			return nil, errors.New("backend down")
		}
		return Payload{KeyCauses: []string{q.Symptoms}}, nil
	})
	c, err := NewCached(next, 8)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := c.Lookup(ctx, Query{Symptoms: "Rough idle"}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := c.Lookup(ctx, Query{Symptoms: "rough   IDLE"}); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("backend calls = %d, want 1", calls)
	}

	p, _ := c.Lookup(ctx, Query{Symptoms: "Rough idle"})
	p["extra"] = true
	again, _ := c.Lookup(ctx, Query{Symptoms: "Rough idle"})
	if _, leaked := again["extra"]; leaked {
		t.Error("cached payload was mutated through a returned copy")
	}

	for i := 0; i < 2; i++ {
		if _, err := c.Lookup(ctx, Query{Symptoms: "fail"}); err == nil {
			t.Fatal("expected error")
		}
	}
	if calls != 3 {
		t.Errorf("errors should not be cached, calls = %d", calls)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d", c.Len())
	}
}
