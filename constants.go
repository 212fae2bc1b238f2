package botzie

import "time"

const (
	// ArenaMax bounds both position axes; positions live in [0, ArenaMax].
	ArenaMax = 1000.0

	// MinBotCount and MaxBotCount bound the bots requested per session.
	MinBotCount = 1
	MaxBotCount = 50

	// DefaultTickInterval is the per-bot simulation period.
	DefaultTickInterval = 100 * time.Millisecond
	// DefaultBroadcastInterval is the snapshot publication period.
	DefaultBroadcastInterval = time.Second
	// DefaultWriteWait caps a single subscriber write.
	DefaultWriteWait = 10 * time.Second
)

// Behavior thresholds. The state machine reads them through BehaviorConfig so
// tests can shorten the timings, but the probabilities and mass rules are
// fixed.
const (
	ConnectDelayMin = time.Second
	ConnectDelayMax = 3 * time.Second

	SpawnMassMin = 10
	SpawnMassMax = 59

	// MoveSpan is the width of the per-axis random step, centred on zero.
	MoveSpan = 10.0

	EatProbability = 0.10
	EatMassMin     = 1
	EatMassMax     = 3

	FeedProbability   = 0.05
	FeedMassThreshold = 20
	FeedMassCost      = 5
	FeedCooldown      = time.Second
)
