package botzie

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/manovDev/agario-botzie/internal/telemetry"
	"github.com/manovDev/agario-botzie/logging"
	"github.com/manovDev/agario-botzie/logging/network"
	"github.com/manovDev/agario-botzie/logging/simulation"
)

// SnapshotEventType tags every published snapshot.
const SnapshotEventType = "bot-update"

// SnapshotMessage is the payload written to every subscriber.
type SnapshotMessage struct {
	Type       string        `json:"type"`
	Bots       []BotSnapshot `json:"bots"`
	ServerTime int64         `json:"serverTime"`
}

// SubscriberConn is the write side of an observer connection.
type SubscriberConn interface {
	Write(data []byte) error
	SetWriteDeadline(deadline time.Time) error
	Close() error
}

// Subscriber is one observer of the snapshot feed.
type Subscriber struct {
	id   string
	conn SubscriberConn
	mu   sync.Mutex
}

// ID returns the subscriber identifier.
func (s *Subscriber) ID() string {
	return s.id
}

// Write sends data with the given deadline. Writes are serialised per
// subscriber.
func (s *Subscriber) Write(data []byte, deadline time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return s.conn.Write(data)
}

type snapshotSource interface {
	LiveBots() ([]BotSnapshot, bool)
}

// BroadcasterConfig wires a SnapshotBroadcaster.
type BroadcasterConfig struct {
	Interval  time.Duration
	WriteWait time.Duration
	Clock     logging.Clock
	Publisher logging.Publisher
	Logger    telemetry.Logger
	telemetry *telemetryCounters
}

// SnapshotBroadcaster periodically publishes the bot collection to every
// subscriber. Idle ticks (no live session) publish nothing.
type SnapshotBroadcaster struct {
	mu          sync.Mutex
	subscribers map[string]*Subscriber
	nextID      atomic.Uint64

	source    snapshotSource
	interval  time.Duration
	writeWait time.Duration
	clock     logging.Clock
	publisher logging.Publisher
	logger    telemetry.Logger
	telemetry *telemetryCounters
}

// NewSnapshotBroadcaster reads snapshots from source.
func NewSnapshotBroadcaster(source snapshotSource, cfg BroadcasterConfig) *SnapshotBroadcaster {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultBroadcastInterval
	}
	writeWait := cfg.WriteWait
	if writeWait <= 0 {
		writeWait = DefaultWriteWait
	}
	clock := cfg.Clock
	if clock == nil {
		clock = logging.SystemClock{}
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.DefaultLogger()
	}
	return &SnapshotBroadcaster{
		subscribers: make(map[string]*Subscriber),
		source:      source,
		interval:    interval,
		writeWait:   writeWait,
		clock:       clock,
		publisher:   publisher,
		logger:      logger,
		telemetry:   cfg.telemetry,
	}
}

// Interval reports the publication period.
func (b *SnapshotBroadcaster) Interval() time.Duration {
	return b.interval
}

// Subscribe attaches conn to the feed. It receives the next published
// snapshot, never a partially delivered one.
func (b *SnapshotBroadcaster) Subscribe(conn SubscriberConn) *Subscriber {
	sub := &Subscriber{
		id:   fmt.Sprintf("subscriber-%d", b.nextID.Add(1)),
		conn: conn,
	}
	b.mu.Lock()
	b.subscribers[sub.id] = sub
	count := len(b.subscribers)
	b.mu.Unlock()

	network.SubscriberJoined(context.Background(), b.publisher, subscriberRef(sub.id), network.SubscriberPayload{Subscribers: count}, nil)
	return sub
}

// Unsubscribe detaches and closes a subscriber. Unknown ids are ignored.
func (b *SnapshotBroadcaster) Unsubscribe(id string, reason string) {
	b.mu.Lock()
	sub, ok := b.subscribers[id]
	if ok {
		delete(b.subscribers, id)
	}
	count := len(b.subscribers)
	b.mu.Unlock()

	if !ok {
		return
	}
	sub.conn.Close()
	network.SubscriberDropped(context.Background(), b.publisher, subscriberRef(id), network.SubscriberPayload{Reason: reason, Subscribers: count}, nil)
}

// SubscriberCount reports the attached observers.
func (b *SnapshotBroadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

// Snapshot builds the current message, or reports false when no session is
// live.
func (b *SnapshotBroadcaster) Snapshot() (SnapshotMessage, bool) {
	bots, live := b.source.LiveBots()
	if !live {
		return SnapshotMessage{}, false
	}
	return SnapshotMessage{
		Type:       SnapshotEventType,
		Bots:       bots,
		ServerTime: b.clock.Now().UnixMilli(),
	}, true
}

// MarshalSnapshot encodes a snapshot message.
func MarshalSnapshot(msg SnapshotMessage) ([]byte, error) {
	if msg.Bots == nil {
		msg.Bots = []BotSnapshot{}
	}
	return json.Marshal(msg)
}

// Publish performs one broadcast pass and reports whether anything was sent.
func (b *SnapshotBroadcaster) Publish() bool {
	msg, ok := b.Snapshot()
	if !ok {
		b.telemetry.RecordBroadcastSkipped()
		return false
	}
	data, err := MarshalSnapshot(msg)
	if err != nil {
		b.logger.Printf("failed to marshal snapshot: %v", err)
		return false
	}

	b.mu.Lock()
	subs := make([]*Subscriber, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	deadline := b.clock.Now().Add(b.writeWait)
	delivered := 0
	for _, sub := range subs {
		if err := sub.Write(data, deadline); err != nil {
			b.logger.Printf("failed to send snapshot to %s: %v", sub.id, err)
			b.telemetry.RecordSubscriberDrop()
			b.Unsubscribe(sub.id, "write_failed")
			continue
		}
		delivered++
	}
	b.telemetry.RecordBroadcast(len(data), len(msg.Bots), delivered)
	return true
}

// Run publishes every interval until ctx is cancelled.
func (b *SnapshotBroadcaster) Run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			b.Publish()
			elapsed := time.Since(start)
			b.telemetry.RecordBroadcastDuration(elapsed, b.interval)
			if elapsed > b.interval {
				simulation.TickBudgetOverrun(ctx, b.publisher, simulation.TickBudgetOverrunPayload{
					DurationMillis: elapsed.Milliseconds(),
					BudgetMillis:   b.interval.Milliseconds(),
					Ratio:          float64(elapsed) / float64(b.interval),
				}, nil)
			}
		}
	}
}

// Close detaches every subscriber.
func (b *SnapshotBroadcaster) Close() {
	b.mu.Lock()
	ids := make([]string, 0, len(b.subscribers))
	for id := range b.subscribers {
		ids = append(ids, id)
	}
	b.mu.Unlock()

	for _, id := range ids {
		b.Unsubscribe(id, "shutdown")
	}
}

func subscriberRef(id string) logging.EntityRef {
	return logging.EntityRef{ID: id, Kind: logging.EntityKindSubscriber}
}
