package logging_test

import (
	"context"
	"testing"
	"time"

	"emberfall/server/logging"
	"emberfall/server/logging/sinks"
)

func TestRouterRoutesToEnabledSink(t *testing.T) {
	mem := sinks.NewMemorySink()
	cfg := logging.DefaultConfig()
	cfg.EnabledSinks = []string{"memory"}
	cfg.Fields = map[string]any{"session": "abc"}

	clock := logging.ClockFunc(func() time.Time {
		return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	})
	router := logging.NewRouter(clock, cfg, map[string]logging.Sink{"memory": mem})

	router.Publish(context.Background(), logging.Event{
		Type:     "lifecycle.joined",
		Actor:    logging.PlayerRef(4),
		Severity: logging.SeverityInfo,
	})
	if err := router.Close(context.Background()); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	events := mem.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 routed event, got %d", len(events))
	}
	got := events[0]
	if got.Type != "lifecycle.joined" || got.Actor.ID != "4" {
		t.Fatalf("unexpected event %+v", got)
	}
	if got.Extra["session"] != "abc" {
		t.Fatalf("expected base fields merged, got %v", got.Extra)
	}
	if got.Seq == 0 || got.Time.IsZero() {
		t.Fatalf("expected sequence and timestamp assigned, got %+v", got)
	}
}

func TestRouterFiltersBelowSeverityFloor(t *testing.T) {
	mem := sinks.NewMemorySink()
	cfg := logging.DefaultConfig()
	cfg.EnabledSinks = []string{"memory"}
	cfg.MinimumSeverity = logging.SeverityWarn

	router := logging.NewRouter(nil, cfg, map[string]logging.Sink{"memory": mem})
	router.Publish(context.Background(), logging.Event{Type: "a", Severity: logging.SeverityDebug})
	router.Publish(context.Background(), logging.Event{Type: "b", Severity: logging.SeverityInfo})
	router.Publish(context.Background(), logging.Event{Type: "c", Severity: logging.SeverityError})
	if err := router.Close(context.Background()); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	events := mem.Events()
	if len(events) != 1 || events[0].Type != "c" {
		t.Fatalf("expected only the error event, got %v", events)
	}
	if stats := router.Stats(); stats.EventsTotal != 1 {
		t.Fatalf("expected 1 accepted event, got %+v", stats)
	}
}

func TestRouterIgnoresDisabledSinks(t *testing.T) {
	mem := sinks.NewMemorySink()
	cfg := logging.DefaultConfig() // console only
	router := logging.NewRouter(nil, cfg, map[string]logging.Sink{"memory": mem})
	router.Publish(context.Background(), logging.Event{Type: "x", Severity: logging.SeverityInfo})
	router.Close(context.Background())
	if len(mem.Events()) != 0 {
		t.Fatalf("disabled sink must receive nothing")
	}
}
