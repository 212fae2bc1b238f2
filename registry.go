package botzie

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/manovDev/agario-botzie/internal/telemetry"
	"github.com/manovDev/agario-botzie/logging"
	"github.com/manovDev/agario-botzie/logging/lifecycle"
	"github.com/manovDev/agario-botzie/logging/simulation"
)

// Stop reasons recorded on teardown events.
const (
	ReasonStopCommand = "stop_command"
	ReasonShutdown    = "shutdown"
	ReasonDestroyed   = "destroyed"
)

// RegistryConfig wires the collaborators of a SessionRegistry.
type RegistryConfig struct {
	TickInterval time.Duration
	Behavior     BehaviorConfig
	Random       Random
	Clock        logging.Clock
	Publisher    logging.Publisher
	Logger       telemetry.Logger
	telemetry    *telemetryCounters
}

// SessionRegistry is the single owner of every session and, through them,
// every bot. One mutex guards the session map and all bot records; bot tasks
// take it for the duration of one tick.
type SessionRegistry struct {
	mu         sync.Mutex
	sessions   map[string]*sessionRecord
	generation uint64
	closed     bool

	behavior  Behavior
	scheduler *Scheduler
	clock     logging.Clock
	publisher logging.Publisher
	logger    telemetry.Logger
	telemetry *telemetryCounters
}

type sessionRecord struct {
	id         string
	generation uint64
	config     SessionConfig
	createdAt  time.Time
	bots       []*Bot
	tasks      []*Task
}

// NewSessionRegistry constructs an empty registry. Close it on shutdown.
func NewSessionRegistry(cfg RegistryConfig) *SessionRegistry {
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
	r := &SessionRegistry{
		sessions:  make(map[string]*sessionRecord),
		behavior:  NewBehavior(cfg.Behavior, cfg.Random),
		clock:     clock,
		publisher: publisher,
		logger:    logger,
		telemetry: cfg.telemetry,
	}
	r.scheduler = newScheduler(cfg.TickInterval, clock, r)
	return r
}

// Behavior exposes the state machine used for every bot.
func (r *SessionRegistry) Behavior() Behavior {
	return r.behavior
}

// TickInterval reports the per-bot tick period.
func (r *SessionRegistry) TickInterval() time.Duration {
	return r.scheduler.Interval()
}

// CreateSession registers a session and starts a task for each of its bots.
// All bots exist, connecting, by the time it returns.
func (r *SessionRegistry) CreateSession(ctx context.Context, id string, cfg SessionConfig) (SessionInfo, error) {
	if id == "" {
		return SessionInfo{}, &ValidationError{Field: "sessionId", Reason: "session id is required"}
	}
	if err := cfg.Validate(); err != nil {
		return SessionInfo{}, err
	}
	cfg = cfg.clone()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return SessionInfo{}, ErrRegistryClosed
	}
	if _, exists := r.sessions[id]; exists {
		r.mu.Unlock()
		return SessionInfo{}, &DuplicateSessionError{SessionID: id}
	}

	now := r.clock.Now()
	r.generation++
	record := &sessionRecord{
		id:         id,
		generation: r.generation,
		config:     cfg,
		createdAt:  now,
		bots:       make([]*Bot, 0, cfg.BotCount),
		tasks:      make([]*Task, 0, cfg.BotCount),
	}
	for i := 0; i < cfg.BotCount; i++ {
		delay := r.behavior.ConnectDelay()
		record.bots = append(record.bots, newBot(cfg, i+1, r.behavior.SpawnPosition(), delay, now))
	}
	r.sessions[id] = record
	for i, bot := range record.bots {
		handle := BotHandle{SessionID: id, Generation: record.generation, Index: i}
		record.tasks = append(record.tasks, r.scheduler.Schedule(handle, bot.connectDelay))
	}
	info := record.infoLocked(true)
	r.mu.Unlock()

	r.telemetry.RecordSessionStarted(cfg.BotCount)
	r.logger.Printf("starting %d bots for %s on %s (session %s)", cfg.BotCount, cfg.Nickname, cfg.RoomURL, id)
	lifecycle.SessionStarted(ctx, r.publisher, logging.SessionRef(id), lifecycle.SessionStartedPayload{
		Nickname: cfg.Nickname,
		RoomURL:  cfg.RoomURL,
		BotCount: cfg.BotCount,
		Feeding:  cfg.FeedingEnabled,
		Split:    cfg.SplittingEnabled,
	}, nil)
	return info, nil
}

// DestroySession tears down one session. Unknown ids are a no-op. When it
// returns no task of the session is running.
func (r *SessionRegistry) DestroySession(ctx context.Context, id string) bool {
	r.mu.Lock()
	record, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	r.teardown(ctx, []*sessionRecord{record}, ReasonDestroyed)
	return true
}

// DestroyAll tears down every session and returns how many were removed.
func (r *SessionRegistry) DestroyAll(ctx context.Context, reason string) int {
	r.mu.Lock()
	records := make([]*sessionRecord, 0, len(r.sessions))
	for id, record := range r.sessions {
		records = append(records, record)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if reason == "" {
		reason = ReasonStopCommand
	}
	r.teardown(ctx, records, reason)
	return len(records)
}

// Close rejects further sessions and tears down the live ones.
func (r *SessionRegistry) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.DestroyAll(ctx, ReasonShutdown)
	return nil
}

// teardown runs on records already unlinked from the map, so nothing but
// their own tasks can reach them; those are joined before bots disconnect.
func (r *SessionRegistry) teardown(ctx context.Context, records []*sessionRecord, reason string) {
	if len(records) == 0 {
		return
	}
	var tasks []*Task
	for _, record := range records {
		tasks = append(tasks, record.tasks...)
	}
	stopTasks(tasks)

	sort.Slice(records, func(i, j int) bool { return records[i].generation < records[j].generation })
	for _, record := range records {
		for _, bot := range record.bots {
			r.behavior.Disconnect(bot)
			lifecycle.BotDisconnected(ctx, r.publisher, logging.BotRef(record.id, bot.ID), lifecycle.BotDisconnectedPayload{
				Nickname: bot.Nickname,
				Mass:     bot.Mass,
			}, nil)
		}
		record.tasks = nil
		r.telemetry.RecordSessionStopped(len(record.bots))
		r.logger.Printf("stopped session %s (%d bots, reason=%s)", record.id, len(record.bots), reason)
		lifecycle.SessionStopped(ctx, r.publisher, logging.SessionRef(record.id), lifecycle.SessionStoppedPayload{
			Reason:   reason,
			BotCount: len(record.bots),
		}, nil)
	}
}

// ConnectBot implements botStepper.
func (r *SessionRegistry) ConnectBot(handle BotHandle, now time.Time) bool {
	r.mu.Lock()
	bot, record := r.resolveLocked(handle)
	if bot == nil {
		r.mu.Unlock()
		return false
	}
	transition := r.behavior.Connect(bot)
	delay := bot.connectDelay
	nickname := bot.Nickname
	botID := bot.ID
	address := record.config.RoomURL
	if record.config.ServerInfo != nil && record.config.ServerInfo.WSURL != "" {
		address = record.config.ServerInfo.WSURL
	}
	r.mu.Unlock()

	if transition.Changed() {
		r.telemetry.RecordBotConnected()
		lifecycle.BotConnected(context.Background(), r.publisher, logging.BotRef(handle.SessionID, botID), lifecycle.BotConnectedPayload{
			Nickname:       nickname,
			Mass:           transition.MassAfter,
			DelayMillis:    delay.Milliseconds(),
			ConnectAddress: address,
		}, nil)
	}
	return true
}

// StepBot implements botStepper.
func (r *SessionRegistry) StepBot(handle BotHandle, now time.Time) bool {
	r.mu.Lock()
	bot, _ := r.resolveLocked(handle)
	if bot == nil {
		r.mu.Unlock()
		return false
	}
	transition := r.behavior.Step(bot, now)
	botID := bot.ID
	r.mu.Unlock()

	r.telemetry.RecordTick()
	if transition.Changed() && transition.To == StatusFeeding {
		r.telemetry.RecordFeeding()
		simulation.BotFeeding(context.Background(), r.publisher, logging.BotRef(handle.SessionID, botID), simulation.BotFeedingPayload{
			MassBefore: transition.MassBefore + transition.Ate,
			MassAfter:  transition.MassAfter,
		}, nil)
	}
	return transition.To != StatusDisconnected
}

func (r *SessionRegistry) resolveLocked(handle BotHandle) (*Bot, *sessionRecord) {
	record, ok := r.sessions[handle.SessionID]
	if !ok || record.generation != handle.Generation {
		return nil, nil
	}
	if handle.Index < 0 || handle.Index >= len(record.bots) {
		return nil, nil
	}
	return record.bots[handle.Index], record
}

// ListBots returns a flattened value copy of every live bot, ordered by
// session creation and then bot ordinal.
func (r *SessionRegistry) ListBots() []BotSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listBotsLocked()
}

// LiveBots reads every bot and whether any session is live in one pass
// under the registry lock.
func (r *SessionRegistry) LiveBots() ([]BotSnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sessions) == 0 {
		return nil, false
	}
	return r.listBotsLocked(), true
}

func (r *SessionRegistry) listBotsLocked() []BotSnapshot {
	records := r.orderedLocked()
	total := 0
	for _, record := range records {
		total += len(record.bots)
	}
	bots := make([]BotSnapshot, 0, total)
	for _, record := range records {
		for _, bot := range record.bots {
			bots = append(bots, bot.Snapshot(record.id))
		}
	}
	return bots
}

// Sessions lists the live sessions without their bots.
func (r *SessionRegistry) Sessions() []SessionInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	records := r.orderedLocked()
	infos := make([]SessionInfo, 0, len(records))
	for _, record := range records {
		infos = append(infos, record.infoLocked(false))
	}
	return infos
}

// Session returns one live session with its bots.
func (r *SessionRegistry) Session(id string) (SessionInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.sessions[id]
	if !ok {
		return SessionInfo{}, &UnknownSessionError{SessionID: id}
	}
	return record.infoLocked(true), nil
}

// SessionCount reports the number of live sessions.
func (r *SessionRegistry) SessionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *SessionRegistry) orderedLocked() []*sessionRecord {
	records := make([]*sessionRecord, 0, len(r.sessions))
	for _, record := range r.sessions {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].generation < records[j].generation })
	return records
}

func (s *sessionRecord) infoLocked(withBots bool) SessionInfo {
	info := SessionInfo{
		ID:        s.id,
		Config:    s.config.clone(),
		CreatedAt: s.createdAt,
	}
	if withBots {
		info.Bots = make([]BotSnapshot, 0, len(s.bots))
		for _, bot := range s.bots {
			info.Bots = append(info.Bots, bot.Snapshot(s.id))
		}
	}
	return info
}
