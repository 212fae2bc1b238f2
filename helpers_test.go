package botzie

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/manovDev/agario-botzie/internal/telemetry"
	"github.com/manovDev/agario-botzie/logging"
)

// scriptedRandom replays fixed draws, then repeats the last one.
type scriptedRandom struct {
	mu     sync.Mutex
	floats []float64
	ints   []int
}

func (r *scriptedRandom) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.floats) == 0 {
		return 0.5
	}
	v := r.floats[0]
	if len(r.floats) > 1 {
		r.floats = r.floats[1:]
	}
	return v
}

func (r *scriptedRandom) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.ints) == 0 {
		return 0
	}
	v := r.ints[0]
	if len(r.ints) > 1 {
		r.ints = r.ints[1:]
	}
	if v >= n {
		v = n - 1
	}
	return v
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock(start time.Time) *manualClock {
	return &manualClock{now: start}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingSubscriberConn struct {
	mu        sync.Mutex
	frames    [][]byte
	deadlines []time.Time
	failWrite bool
	closed    bool
}

func (c *recordingSubscriberConn) Write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWrite {
		return errors.New("broken pipe")
	}
	c.frames = append(c.frames, append([]byte(nil), data...))
	return nil
}

func (c *recordingSubscriberConn) SetWriteDeadline(deadline time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deadlines = append(c.deadlines, deadline)
	return nil
}

func (c *recordingSubscriberConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *recordingSubscriberConn) snapshot() ([][]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	frames := make([][]byte, len(c.frames))
	copy(frames, c.frames)
	return frames, c.closed
}

// fastBehavior connects bots almost immediately and keeps feeding short.
func fastBehavior() BehaviorConfig {
	return BehaviorConfig{
		ConnectDelayMin: time.Millisecond,
		ConnectDelayMax: 5 * time.Millisecond,
		FeedCooldown:    20 * time.Millisecond,
	}
}

func newTestRegistry(t *testing.T, pub logging.Publisher) *SessionRegistry {
	t.Helper()
	registry := NewSessionRegistry(RegistryConfig{
		TickInterval: 2 * time.Millisecond,
		Behavior:     fastBehavior(),
		Random:       NewSeededRandom(42),
		Publisher:    pub,
		Logger:       telemetry.Discard(),
		telemetry:    newTelemetryCounters(),
	})
	t.Cleanup(func() {
		registry.Close(t.Context())
	})
	return registry
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, format string, args ...any) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	if !cond() {
		t.Fatalf(format, args...)
	}
}

func validConfig(nickname string, count int) SessionConfig {
	return SessionConfig{Nickname: nickname, RoomURL: "wss://room.example/1", BotCount: count}
}
