package natsutil

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func startTestNATS(t *testing.T) (*natsserver.Server, *nats.Conn) {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{Port: -1})
	if err != nil {
		t.Fatal(err)
	}
	srv.Start()
	if !srv.ReadyForConnections(3 * time.Second) {
		t.Fatal("nats not ready")
	}
	nc, err := Connect(srv.ClientURL(), "natsutil-test", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		nc.Close()
		srv.Shutdown()
	})
	return srv, nc
}

type created struct {
	ID      string `json:"id"`
	Urgency string `json:"urgency"`
}

func TestHeaderCarrier(t *testing.T) {
	msg := &nats.Msg{}
	c := (*natsHeaderCarrier)(msg)
	if c.Get("missing") != "" || c.Keys() != nil {
		t.Fatal("empty carrier should have no values")
	}
	c.Set("traceparent", "00-abc-def-01")
	c.Set("traceparent", "00-abc-def-02")
	if got := c.Get("traceparent"); got != "00-abc-def-02" {
		t.Fatalf("Get = %q", got)
	}
	if keys := c.Keys(); len(keys) != 1 {
		t.Fatalf("Keys = %v", keys)
	}
}

func TestPublishAndSubscribe(t *testing.T) {
	_, nc := startTestNATS(t)

	ch := make(chan created, 1)
	sub, err := Subscribe(nc, "diagnostic.created", func(_ context.Context, v created) { ch <- v })
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	if err := NewPublisher(nc).Publish(context.Background(), "diagnostic.created", created{ID: "d-1", Urgency: "soon"}); err != nil {
		t.Fatal(err)
	}
	select {
	case v := <-ch:
		if v.ID != "d-1" || v.Urgency != "soon" {
			t.Fatalf("got %+v", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishCarriesTraceContext(t *testing.T) {
	_, nc := startTestNATS(t)
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	ch := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe("diagnostic.created", ch)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled,
	}))
	if err := Publish(ctx, nc, "diagnostic.created", created{ID: "d-2"}); err != nil {
		t.Fatal(err)
	}
	select {
	case msg := <-ch:
		if got := msg.Header.Get("traceparent"); got != "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01" {
			t.Fatalf("traceparent = %q", got)
		}
		var v created
		if err := json.Unmarshal(msg.Data, &v); err != nil || v.ID != "d-2" {
			t.Fatalf("payload = %s (%v)", msg.Data, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout")
	}
}

func TestSubscribeDropsMalformed(t *testing.T) {
	_, nc := startTestNATS(t)

	called := make(chan struct{}, 1)
	sub, err := Subscribe(nc, "diagnostic.created", func(context.Context, created) { called <- struct{}{} })
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	_ = nc.Publish("diagnostic.created", []byte("{bad"))
	_ = nc.Flush()

	select {
	case <-called:
		t.Fatal("handler called for malformed data")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPublishErrors(t *testing.T) {
	_, nc := startTestNATS(t)
	if err := Publish(context.Background(), nc, "x", make(chan int)); err == nil {
		t.Fatal("expected encode error")
	}
	nc.Close()
	if err := Publish(context.Background(), nc, "x", created{}); err == nil {
		t.Fatal("expected publish error on closed connection")
	}
}

func TestConnectError(t *testing.T) {
	if _, err := Connect("nats://127.0.0.1:1", "t", slog.New(slog.NewTextHandler(io.Discard, nil))); err == nil {
		t.Fatal("expected connect error")
	}
}
