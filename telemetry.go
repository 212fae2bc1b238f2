package botzie

import (
	"sync/atomic"
	"time"
)

// telemetryCounters tracks engine activity. A nil receiver is a no-op.
type telemetryCounters struct {
	sessionsStarted       atomic.Uint64
	sessionsStopped       atomic.Uint64
	botsActive            atomic.Int64
	botsCreated           atomic.Uint64
	botsConnected         atomic.Uint64
	feedings              atomic.Uint64
	ticksApplied          atomic.Uint64
	broadcasts            atomic.Uint64
	broadcastsSkipped     atomic.Uint64
	bytesSent             atomic.Uint64
	botsSent              atomic.Uint64
	lastBroadcastBots     atomic.Uint64
	broadcastDurationMs   atomic.Int64
	subscriberDrops       atomic.Uint64
	broadcastBudgetMisses atomic.Uint64
}

// TelemetrySnapshot is the diagnostics view of the counters.
type TelemetrySnapshot struct {
	SessionsStarted       uint64 `json:"sessionsStarted"`
	SessionsStopped       uint64 `json:"sessionsStopped"`
	BotsActive            int64  `json:"botsActive"`
	BotsCreated           uint64 `json:"botsCreated"`
	BotsConnected         uint64 `json:"botsConnected"`
	Feedings              uint64 `json:"feedings"`
	TicksApplied          uint64 `json:"ticksApplied"`
	Broadcasts            uint64 `json:"broadcasts"`
	BroadcastsSkipped     uint64 `json:"broadcastsSkipped"`
	BytesSent             uint64 `json:"bytesSent"`
	BotsSent              uint64 `json:"botsSent"`
	LastBroadcastBots     uint64 `json:"lastBroadcastBots"`
	BroadcastDurationMs   int64  `json:"broadcastDurationMillis"`
	SubscriberDrops       uint64 `json:"subscriberDrops"`
	BroadcastBudgetMisses uint64 `json:"broadcastBudgetMisses"`
}

func newTelemetryCounters() *telemetryCounters {
	return &telemetryCounters{}
}

func (t *telemetryCounters) RecordSessionStarted(bots int) {
	if t == nil {
		return
	}
	t.sessionsStarted.Add(1)
	t.botsCreated.Add(uint64(max(bots, 0)))
	t.botsActive.Add(int64(bots))
}

func (t *telemetryCounters) RecordSessionStopped(bots int) {
	if t == nil {
		return
	}
	t.sessionsStopped.Add(1)
	t.botsActive.Add(-int64(bots))
}

func (t *telemetryCounters) RecordBotConnected() {
	if t == nil {
		return
	}
	t.botsConnected.Add(1)
}

func (t *telemetryCounters) RecordFeeding() {
	if t == nil {
		return
	}
	t.feedings.Add(1)
}

func (t *telemetryCounters) RecordTick() {
	if t == nil {
		return
	}
	t.ticksApplied.Add(1)
}

func (t *telemetryCounters) RecordBroadcast(bytes, bots, recipients int) {
	if t == nil {
		return
	}
	t.broadcasts.Add(1)
	t.bytesSent.Add(uint64(max(bytes, 0) * max(recipients, 0)))
	t.botsSent.Add(uint64(max(bots, 0) * max(recipients, 0)))
	t.lastBroadcastBots.Store(uint64(max(bots, 0)))
}

func (t *telemetryCounters) RecordBroadcastSkipped() {
	if t == nil {
		return
	}
	t.broadcastsSkipped.Add(1)
}

func (t *telemetryCounters) RecordBroadcastDuration(duration time.Duration, budget time.Duration) {
	if t == nil {
		return
	}
	millis := duration.Milliseconds()
	if millis < 0 {
		millis = 0
	}
	t.broadcastDurationMs.Store(millis)
	if budget > 0 && duration > budget {
		t.broadcastBudgetMisses.Add(1)
	}
}

func (t *telemetryCounters) RecordSubscriberDrop() {
	if t == nil {
		return
	}
	t.subscriberDrops.Add(1)
}

func (t *telemetryCounters) Snapshot() TelemetrySnapshot {
	if t == nil {
		return TelemetrySnapshot{}
	}
	return TelemetrySnapshot{
		SessionsStarted:       t.sessionsStarted.Load(),
		SessionsStopped:       t.sessionsStopped.Load(),
		BotsActive:            t.botsActive.Load(),
		BotsCreated:           t.botsCreated.Load(),
		BotsConnected:         t.botsConnected.Load(),
		Feedings:              t.feedings.Load(),
		TicksApplied:          t.ticksApplied.Load(),
		Broadcasts:            t.broadcasts.Load(),
		BroadcastsSkipped:     t.broadcastsSkipped.Load(),
		BytesSent:             t.bytesSent.Load(),
		BotsSent:              t.botsSent.Load(),
		LastBroadcastBots:     t.lastBroadcastBots.Load(),
		BroadcastDurationMs:   t.broadcastDurationMs.Load(),
		SubscriberDrops:       t.subscriberDrops.Load(),
		BroadcastBudgetMisses: t.broadcastBudgetMisses.Load(),
	}
}
