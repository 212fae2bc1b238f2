package botzie

import (
	"testing"
	"time"

	"github.com/manovDev/agario-botzie/internal/telemetry"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := DefaultEngineConfig()
	cfg.TickInterval = 2 * time.Millisecond
	cfg.BroadcastInterval = 5 * time.Millisecond
	cfg.Behavior = fastBehavior()
	cfg.Random = NewSeededRandom(3)
	cfg.Logger = telemetry.Discard()
	engine := NewEngine(cfg)
	t.Cleanup(func() { engine.Close(t.Context()) })
	return engine
}

func TestEngineStartStop(t *testing.T) {
	engine := newTestEngine(t)

	if _, err := engine.Start(t.Context(), "one", validConfig("Ann", 3)); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := engine.Start(t.Context(), "two", validConfig("Bob", 2)); err != nil {
		t.Fatalf("start: %v", err)
	}
	diag := engine.Diagnostics(time.Now())
	if diag.Sessions != 2 || diag.Bots != 5 {
		t.Fatalf("unexpected diagnostics %+v", diag)
	}
	if diag.TickRate != 500 {
		t.Fatalf("expected 500 ticks per second, got %v", diag.TickRate)
	}

	if removed := engine.Stop(t.Context()); removed != 2 {
		t.Fatalf("expected 2 sessions stopped, got %d", removed)
	}
	if removed := engine.Stop(t.Context()); removed != 0 {
		t.Fatalf("expected stop on empty engine to be a no-op, got %d", removed)
	}
	stats := engine.TelemetrySnapshot()
	if stats.SessionsStarted != 2 || stats.SessionsStopped != 2 || stats.BotsActive != 0 {
		t.Fatalf("unexpected telemetry %+v", stats)
	}
}

func TestEngineRunFeedsSubscribers(t *testing.T) {
	engine := newTestEngine(t)
	conn := &recordingSubscriberConn{}
	engine.Broadcaster().Subscribe(conn)

	go engine.Run(t.Context())

	if _, err := engine.Start(t.Context(), "feed", validConfig("Ann", 2)); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, time.Second, func() bool {
		frames, _ := conn.snapshot()
		return len(frames) >= 2
	}, "expected snapshots while a session is live")
}

func TestEngineCloseIsIdempotent(t *testing.T) {
	engine := newTestEngine(t)
	conn := &recordingSubscriberConn{}
	engine.Broadcaster().Subscribe(conn)
	if _, err := engine.Start(t.Context(), "x", validConfig("Ann", 1)); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := engine.Close(t.Context()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := engine.Close(t.Context()); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if engine.Registry().SessionCount() != 0 || engine.Broadcaster().SubscriberCount() != 0 {
		t.Fatal("expected close to clear sessions and subscribers")
	}
	if _, closed := conn.snapshot(); !closed {
		t.Fatal("expected subscriber connection closed")
	}
}
