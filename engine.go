package botzie

import (
	"context"
	"sync"
	"time"

	"github.com/manovDev/agario-botzie/internal/telemetry"
	"github.com/manovDev/agario-botzie/logging"
)

// EngineConfig wires the simulation engine.
type EngineConfig struct {
	TickInterval      time.Duration
	BroadcastInterval time.Duration
	WriteWait         time.Duration
	Behavior          BehaviorConfig
	Random            Random
	Clock             logging.Clock
	Publisher         logging.Publisher
	Logger            telemetry.Logger
}

// DefaultEngineConfig returns the production intervals.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		TickInterval:      DefaultTickInterval,
		BroadcastInterval: DefaultBroadcastInterval,
		WriteWait:         DefaultWriteWait,
		Behavior:          DefaultBehaviorConfig(),
	}
}

// Engine owns the session registry and the snapshot broadcaster of one
// process.
type Engine struct {
	registry    *SessionRegistry
	broadcaster *SnapshotBroadcaster
	telemetry   *telemetryCounters
	logger      telemetry.Logger
	startedAt   time.Time

	closeOnce sync.Once
	closeErr  error
}

// NewEngine constructs an engine. Call Run to start broadcasting and Close
// to tear every session down.
func NewEngine(cfg EngineConfig) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.DefaultLogger()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = logging.SystemClock{}
	}
	counters := newTelemetryCounters()
	registry := NewSessionRegistry(RegistryConfig{
		TickInterval: cfg.TickInterval,
		Behavior:     cfg.Behavior,
		Random:       cfg.Random,
		Clock:        clock,
		Publisher:    cfg.Publisher,
		Logger:       logger,
		telemetry:    counters,
	})
	broadcaster := NewSnapshotBroadcaster(registry, BroadcasterConfig{
		Interval:  cfg.BroadcastInterval,
		WriteWait: cfg.WriteWait,
		Clock:     clock,
		Publisher: cfg.Publisher,
		Logger:    logger,
		telemetry: counters,
	})
	return &Engine{
		registry:    registry,
		broadcaster: broadcaster,
		telemetry:   counters,
		logger:      logger,
		startedAt:   clock.Now(),
	}
}

// Registry exposes the session store.
func (e *Engine) Registry() *SessionRegistry {
	return e.registry
}

// Broadcaster exposes the snapshot feed.
func (e *Engine) Broadcaster() *SnapshotBroadcaster {
	return e.broadcaster
}

// Start creates a session with the given id.
func (e *Engine) Start(ctx context.Context, sessionID string, cfg SessionConfig) (SessionInfo, error) {
	return e.registry.CreateSession(ctx, sessionID, cfg)
}

// Stop tears down every session and returns how many were removed.
func (e *Engine) Stop(ctx context.Context) int {
	return e.registry.DestroyAll(ctx, ReasonStopCommand)
}

// Run broadcasts snapshots until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	e.broadcaster.Run(ctx)
}

// Close stops every session and detaches every subscriber. It is safe to
// call more than once.
func (e *Engine) Close(ctx context.Context) error {
	e.closeOnce.Do(func() {
		e.closeErr = e.registry.Close(ctx)
		e.broadcaster.Close()
	})
	return e.closeErr
}

// Diagnostics is the operational view served by the diagnostics endpoint.
type Diagnostics struct {
	Sessions          int               `json:"sessions"`
	Bots              int               `json:"bots"`
	Subscribers       int               `json:"subscribers"`
	TickIntervalMs    int64             `json:"tickIntervalMillis"`
	TickRate          float64           `json:"tickRate"`
	BroadcastInterval int64             `json:"broadcastIntervalMillis"`
	UptimeSeconds     int64             `json:"uptimeSeconds"`
	Telemetry         TelemetrySnapshot `json:"telemetry"`
}

// TelemetrySnapshot reads the engine counters.
func (e *Engine) TelemetrySnapshot() TelemetrySnapshot {
	return e.telemetry.Snapshot()
}

// Diagnostics assembles the current counters and populations.
func (e *Engine) Diagnostics(now time.Time) Diagnostics {
	tick := e.registry.TickInterval()
	rate := 0.0
	if tick > 0 {
		rate = float64(time.Second) / float64(tick)
	}
	uptime := now.Sub(e.startedAt)
	if uptime < 0 {
		uptime = 0
	}
	return Diagnostics{
		Sessions:          e.registry.SessionCount(),
		Bots:              len(e.registry.ListBots()),
		Subscribers:       e.broadcaster.SubscriberCount(),
		TickIntervalMs:    tick.Milliseconds(),
		TickRate:          rate,
		BroadcastInterval: e.broadcaster.Interval().Milliseconds(),
		UptimeSeconds:     int64(uptime / time.Second),
		Telemetry:         e.telemetry.Snapshot(),
	}
}
