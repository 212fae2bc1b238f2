package botzie

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/manovDev/agario-botzie/internal/telemetry"
	"github.com/manovDev/agario-botzie/logging/network"
)

type staticSource struct {
	mu       sync.Mutex
	bots     []BotSnapshot
	sessions int
}

func (s *staticSource) LiveBots() ([]BotSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions == 0 {
		return nil, false
	}
	return append([]BotSnapshot(nil), s.bots...), true
}

func newTestBroadcaster(source snapshotSource, pub *recordingPublisher) *SnapshotBroadcaster {
	cfg := BroadcasterConfig{
		Interval:  5 * time.Millisecond,
		WriteWait: time.Second,
		Clock:     newManualClock(time.UnixMilli(1_700_000_000_000)),
		Logger:    telemetry.Discard(),
		telemetry: newTelemetryCounters(),
	}
	if pub != nil {
		cfg.Publisher = pub
	}
	return NewSnapshotBroadcaster(source, cfg)
}

func TestPublishSkipsWhenIdle(t *testing.T) {
	broadcaster := newTestBroadcaster(&staticSource{}, nil)
	conn := &recordingSubscriberConn{}
	broadcaster.Subscribe(conn)

	if broadcaster.Publish() {
		t.Fatal("expected idle publish to send nothing")
	}
	if frames, _ := conn.snapshot(); len(frames) != 0 {
		t.Fatalf("expected no frames while idle, got %d", len(frames))
	}
	if skipped := broadcaster.telemetry.Snapshot().BroadcastsSkipped; skipped != 1 {
		t.Fatalf("expected 1 skipped broadcast, got %d", skipped)
	}
}

func TestPublishSendsSnapshotToEverySubscriber(t *testing.T) {
	source := &staticSource{
		sessions: 1,
		bots: []BotSnapshot{
			{SessionID: "s", ID: "bot_1", Nickname: "Ann_Bot1", Status: StatusPlaying, Mass: 12, Position: Position{X: 1, Y: 2}},
			{SessionID: "s", ID: "bot_2", Nickname: "Ann_Bot2", Status: StatusConnecting},
		},
	}
	broadcaster := newTestBroadcaster(source, nil)
	first := &recordingSubscriberConn{}
	second := &recordingSubscriberConn{}
	broadcaster.Subscribe(first)
	broadcaster.Subscribe(second)

	if !broadcaster.Publish() {
		t.Fatal("expected publish to send a snapshot")
	}
	for _, conn := range []*recordingSubscriberConn{first, second} {
		frames, _ := conn.snapshot()
		if len(frames) != 1 {
			t.Fatalf("expected one frame, got %d", len(frames))
		}
		var msg SnapshotMessage
		if err := json.Unmarshal(frames[0], &msg); err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		if msg.Type != SnapshotEventType || len(msg.Bots) != 2 {
			t.Fatalf("unexpected message %+v", msg)
		}
		if msg.ServerTime != 1_700_000_000_000 {
			t.Fatalf("unexpected server time %d", msg.ServerTime)
		}
		if msg.Bots[0].Position != (Position{X: 1, Y: 2}) {
			t.Fatalf("unexpected bot position %+v", msg.Bots[0].Position)
		}
	}
	stats := broadcaster.telemetry.Snapshot()
	if stats.Broadcasts != 1 || stats.BotsSent != 4 {
		t.Fatalf("unexpected telemetry %+v", stats)
	}
}

func TestPublishDropsFailedSubscriber(t *testing.T) {
	pub := &recordingPublisher{}
	broadcaster := newTestBroadcaster(&staticSource{sessions: 1}, pub)
	healthy := &recordingSubscriberConn{}
	broken := &recordingSubscriberConn{failWrite: true}
	broadcaster.Subscribe(healthy)
	broadcaster.Subscribe(broken)

	broadcaster.Publish()
	if broadcaster.SubscriberCount() != 1 {
		t.Fatalf("expected broken subscriber to be dropped, have %d", broadcaster.SubscriberCount())
	}
	if _, closed := broken.snapshot(); !closed {
		t.Fatal("expected broken subscriber to be closed")
	}
	if frames, _ := healthy.snapshot(); len(frames) != 1 {
		t.Fatalf("expected healthy subscriber to receive the snapshot, got %d frames", len(frames))
	}
	dropped := pub.ofType(network.EventSubscriberDropped)
	if len(dropped) != 1 {
		t.Fatalf("expected one drop event, got %d", len(dropped))
	}
	payload, _ := dropped[0].Payload.(network.SubscriberPayload)
	if payload.Reason != "write_failed" || payload.Subscribers != 1 {
		t.Fatalf("unexpected drop payload %+v", payload)
	}
}

func TestUnsubscribeUnknownIsIgnored(t *testing.T) {
	broadcaster := newTestBroadcaster(&staticSource{}, nil)
	broadcaster.Unsubscribe("subscriber-404", "gone")

	conn := &recordingSubscriberConn{}
	sub := broadcaster.Subscribe(conn)
	broadcaster.Unsubscribe(sub.ID(), "left")
	broadcaster.Unsubscribe(sub.ID(), "left")
	if broadcaster.SubscriberCount() != 0 {
		t.Fatal("expected subscriber removed")
	}
}

func TestMarshalSnapshotEmptyBots(t *testing.T) {
	data, err := MarshalSnapshot(SnapshotMessage{Type: SnapshotEventType})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if bots, ok := decoded["bots"].([]any); !ok || len(bots) != 0 {
		t.Fatalf("expected empty bots array, got %s", data)
	}
}

func TestRunBroadcastsUntilCancelled(t *testing.T) {
	source := &staticSource{sessions: 1, bots: []BotSnapshot{{ID: "bot_1"}}}
	broadcaster := newTestBroadcaster(source, nil)
	conn := &recordingSubscriberConn{}
	broadcaster.Subscribe(conn)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})
	go func() {
		broadcaster.Run(ctx)
		close(done)
	}()

	waitFor(t, time.Second, func() bool {
		frames, _ := conn.snapshot()
		return len(frames) >= 3
	}, "expected periodic snapshots")
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected Run to return after cancel")
	}
}

func TestStopProducesEmptyFeed(t *testing.T) {
	registry := newTestRegistry(t, nil)
	broadcaster := newTestBroadcaster(registry, nil)
	conn := &recordingSubscriberConn{}
	broadcaster.Subscribe(conn)

	if _, err := registry.CreateSession(t.Context(), "s", validConfig("Ann", 4)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if !broadcaster.Publish() {
		t.Fatal("expected snapshot while a session is live")
	}
	registry.DestroyAll(t.Context(), ReasonStopCommand)
	if broadcaster.Publish() {
		t.Fatal("expected idle skip after stop")
	}
	frames, _ := conn.snapshot()
	if len(frames) != 1 {
		t.Fatalf("expected exactly one frame, got %d", len(frames))
	}
}

// blockingConn parks its first write until released.
type blockingConn struct {
	recordingSubscriberConn
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingConn() *blockingConn {
	return &blockingConn{entered: make(chan struct{}), release: make(chan struct{})}
}

func (c *blockingConn) Write(data []byte) error {
	c.once.Do(func() {
		close(c.entered)
		<-c.release
	})
	return c.recordingSubscriberConn.Write(data)
}

func TestSubscribersJoinAndLeaveDuringPublish(t *testing.T) {
	source := &staticSource{sessions: 1, bots: []BotSnapshot{{SessionID: "s", ID: "bot_1"}}}
	broadcaster := newTestBroadcaster(source, nil)
	slow := newBlockingConn()
	slowSub := broadcaster.Subscribe(slow)

	published := make(chan bool, 1)
	go func() {
		published <- broadcaster.Publish()
	}()

	select {
	case <-slow.entered:
	case <-time.After(time.Second):
		t.Fatal("expected publish to reach the slow subscriber")
	}
	late := &recordingSubscriberConn{}
	broadcaster.Subscribe(late)
	broadcaster.Unsubscribe(slowSub.ID(), "client_closed")
	close(slow.release)

	select {
	case ok := <-published:
		if !ok {
			t.Fatal("expected the in-flight pass to publish")
		}
	case <-time.After(time.Second):
		t.Fatal("publish did not finish")
	}
	if frames, _ := late.snapshot(); len(frames) != 0 {
		t.Fatalf("subscriber added mid-pass must wait for the next tick, got %d frames", len(frames))
	}
	if broadcaster.SubscriberCount() != 1 {
		t.Fatalf("expected only the late subscriber to remain, have %d", broadcaster.SubscriberCount())
	}

	broadcaster.Publish()
	if frames, _ := late.snapshot(); len(frames) != 1 {
		t.Fatalf("expected the late subscriber to receive the next pass, got %d frames", len(frames))
	}
	if frames, _ := slow.snapshot(); len(frames) != 1 {
		t.Fatalf("expected the departed subscriber to see only the in-flight pass, got %d frames", len(frames))
	}
}

func TestSnapshotNeverEmptyWhileSessionsChurn(t *testing.T) {
	registry := newTestRegistry(t, nil)
	broadcaster := newTestBroadcaster(registry, nil)

	ctx, cancel := context.WithTimeout(t.Context(), 300*time.Millisecond)
	defer cancel()
	churned := make(chan struct{})
	go func() {
		defer close(churned)
		for ctx.Err() == nil {
			registry.CreateSession(ctx, "churn", validConfig("Ann", 2))
			registry.DestroyAll(ctx, ReasonStopCommand)
		}
	}()

	taken := 0
	for ctx.Err() == nil {
		msg, ok := broadcaster.Snapshot()
		if !ok {
			continue
		}
		taken++
		if len(msg.Bots) == 0 {
			t.Fatal("published a snapshot with no bots while reporting a live session")
		}
	}
	<-churned
	t.Logf("checked %d live snapshots", taken)
}
