package botzie

import (
	"math"
	"time"
)

// BehaviorConfig holds the timings of the bot state machine.
type BehaviorConfig struct {
	ConnectDelayMin time.Duration `yaml:"connectDelayMin"`
	ConnectDelayMax time.Duration `yaml:"connectDelayMax"`
	FeedCooldown    time.Duration `yaml:"feedCooldown"`
}

// DefaultBehaviorConfig returns the production timings.
func DefaultBehaviorConfig() BehaviorConfig {
	return BehaviorConfig{
		ConnectDelayMin: ConnectDelayMin,
		ConnectDelayMax: ConnectDelayMax,
		FeedCooldown:    FeedCooldown,
	}
}

// Normalized fills zero values with defaults and orders the delay bounds.
func (c BehaviorConfig) Normalized() BehaviorConfig {
	defaults := DefaultBehaviorConfig()
	if c.ConnectDelayMin < 0 {
		c.ConnectDelayMin = 0
	}
	if c.ConnectDelayMax <= 0 {
		c.ConnectDelayMax = defaults.ConnectDelayMax
		if c.ConnectDelayMin == 0 {
			c.ConnectDelayMin = defaults.ConnectDelayMin
		}
	}
	if c.ConnectDelayMax < c.ConnectDelayMin {
		c.ConnectDelayMin, c.ConnectDelayMax = c.ConnectDelayMax, c.ConnectDelayMin
	}
	if c.FeedCooldown <= 0 {
		c.FeedCooldown = defaults.FeedCooldown
	}
	return c
}

// Transition describes what a single state machine evaluation did.
type Transition struct {
	From       Status
	To         Status
	MassBefore int
	MassAfter  int
	Ate        int
}

// Changed reports whether the status moved.
func (t Transition) Changed() bool {
	return t.From != t.To
}

// Behavior is the bot state machine:
//
//	connecting --(connect delay)--> playing
//	playing    --(p=FeedProbability, mass>FeedMassThreshold)--> feeding
//	feeding    --(FeedCooldown)--> playing
//	any        --(session teardown)--> disconnected
type Behavior struct {
	cfg BehaviorConfig
	rng Random
}

// NewBehavior builds a state machine. A nil rng uses math/rand.
func NewBehavior(cfg BehaviorConfig, rng Random) Behavior {
	if rng == nil {
		rng = globalRandom{}
	}
	return Behavior{cfg: cfg.Normalized(), rng: rng}
}

// Config returns the normalised timings.
func (b Behavior) Config() BehaviorConfig {
	return b.cfg
}

// ConnectDelay draws a connect delay in [ConnectDelayMin, ConnectDelayMax).
func (b Behavior) ConnectDelay() time.Duration {
	span := b.cfg.ConnectDelayMax - b.cfg.ConnectDelayMin
	if span <= 0 {
		return b.cfg.ConnectDelayMin
	}
	return b.cfg.ConnectDelayMin + time.Duration(b.rng.Float64()*float64(span))
}

// SpawnPosition draws a uniform position in the arena.
func (b Behavior) SpawnPosition() Position {
	return Position{X: b.rng.Float64() * ArenaMax, Y: b.rng.Float64() * ArenaMax}
}

// Connect moves a connecting bot to playing and draws its spawn mass. The
// caller decides that the connect delay has elapsed.
func (b Behavior) Connect(bot *Bot) Transition {
	t := Transition{From: bot.Status, To: bot.Status, MassBefore: bot.Mass, MassAfter: bot.Mass}
	if bot.Status != StatusConnecting {
		return t
	}
	bot.Status = StatusPlaying
	bot.Mass = randomIntBetween(b.rng, SpawnMassMin, SpawnMassMax)
	t.To = bot.Status
	t.MassAfter = bot.Mass
	return t
}

// Step evaluates one tick for bot at now.
func (b Behavior) Step(bot *Bot, now time.Time) Transition {
	t := Transition{From: bot.Status, To: bot.Status, MassBefore: bot.Mass}

	switch bot.Status {
	case StatusConnecting:
		if !now.Before(bot.connectAt) {
			return b.Connect(bot)
		}
	case StatusPlaying:
		b.move(bot)
		if b.rng.Float64() < EatProbability {
			t.Ate = randomIntBetween(b.rng, EatMassMin, EatMassMax)
			bot.Mass += t.Ate
		}
		if b.rng.Float64() < FeedProbability && bot.Mass > FeedMassThreshold {
			bot.Status = StatusFeeding
			bot.Mass -= FeedMassCost
			bot.feedingUntil = now.Add(b.cfg.FeedCooldown)
		}
	case StatusFeeding:
		b.move(bot)
		if !now.Before(bot.feedingUntil) {
			bot.Status = StatusPlaying
			bot.feedingUntil = time.Time{}
		}
	case StatusDisconnected:
	}

	if bot.Mass < 0 {
		bot.Mass = 0
	}
	t.To = bot.Status
	t.MassAfter = bot.Mass
	return t
}

// Disconnect moves bot to the terminal state.
func (b Behavior) Disconnect(bot *Bot) Transition {
	t := Transition{From: bot.Status, To: StatusDisconnected, MassBefore: bot.Mass, MassAfter: bot.Mass}
	bot.Status = StatusDisconnected
	bot.feedingUntil = time.Time{}
	return t
}

func (b Behavior) move(bot *Bot) {
	bot.Position.X = clampArena(bot.Position.X + (b.rng.Float64()-0.5)*MoveSpan)
	bot.Position.Y = clampArena(bot.Position.Y + (b.rng.Float64()-0.5)*MoveSpan)
}

func clampArena(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(ArenaMax, v))
}
