package botzie

import (
	"fmt"
	"time"
)

// Status is a bot lifecycle state.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusPlaying      Status = "playing"
	StatusFeeding      Status = "feeding"
	StatusDisconnected Status = "disconnected"
)

// Position is a point in the arena.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Bot is the mutable record of one simulated participant. It is owned by its
// session and only mutated by its own task or by session teardown.
type Bot struct {
	ID           string
	Nickname     string
	Status       Status
	Mass         int
	Position     Position
	TargetPlayer string
	RoomURL      string
	Server       ServerDescriptor

	connectDelay time.Duration
	connectAt    time.Time
	feedingUntil time.Time
}

// BotSnapshot is the value copy published to observers.
type BotSnapshot struct {
	SessionID    string   `json:"sessionId"`
	ID           string   `json:"id"`
	Nickname     string   `json:"nickname"`
	Status       Status   `json:"status"`
	Mass         int      `json:"mass"`
	Position     Position `json:"position"`
	TargetPlayer string   `json:"targetPlayer"`
	RoomURL      string   `json:"roomUrl"`
	Server       string   `json:"server,omitempty"`
	Port         int      `json:"port,omitempty"`
	Region       string   `json:"region,omitempty"`
	WSURL        string   `json:"wsUrl,omitempty"`
}

func newBot(cfg SessionConfig, ordinal int, spawn Position, delay time.Duration, now time.Time) *Bot {
	bot := &Bot{
		ID:           BotID(ordinal),
		Nickname:     BotNickname(cfg.Nickname, ordinal),
		Status:       StatusConnecting,
		Position:     spawn,
		TargetPlayer: cfg.Nickname,
		RoomURL:      cfg.RoomURL,
		connectDelay: delay,
		connectAt:    now.Add(delay),
	}
	if cfg.ServerInfo != nil {
		bot.Server = *cfg.ServerInfo
	}
	return bot
}

// BotID names the bot with the given 1-based ordinal.
func BotID(ordinal int) string {
	return fmt.Sprintf("bot_%d", ordinal)
}

// BotNickname derives a bot's display name from its owner.
func BotNickname(owner string, ordinal int) string {
	return fmt.Sprintf("%s_Bot%d", owner, ordinal)
}

// ConnectAt reports when the bot's connect delay elapses.
func (b *Bot) ConnectAt() time.Time {
	return b.connectAt
}

// Snapshot copies the observable fields.
func (b *Bot) Snapshot(sessionID string) BotSnapshot {
	return BotSnapshot{
		SessionID:    sessionID,
		ID:           b.ID,
		Nickname:     b.Nickname,
		Status:       b.Status,
		Mass:         b.Mass,
		Position:     b.Position,
		TargetPlayer: b.TargetPlayer,
		RoomURL:      b.RoomURL,
		Server:       b.Server.Server,
		Port:         b.Server.Port,
		Region:       b.Server.Region,
		WSURL:        b.Server.WSURL,
	}
}

// PlaceholderBots lists the bots a start command will create, all still
// connecting. The control API answers with these before the engine reports.
func PlaceholderBots(sessionID string, cfg SessionConfig) []BotSnapshot {
	bots := make([]BotSnapshot, 0, cfg.BotCount)
	for i := 1; i <= cfg.BotCount; i++ {
		bot := newBot(cfg, i, Position{}, 0, time.Time{})
		bots = append(bots, bot.Snapshot(sessionID))
	}
	return bots
}
