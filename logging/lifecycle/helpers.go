package lifecycle

import (
	"context"

	"github.com/manovDev/agario-botzie/logging"
)

const (
	// EventSessionStarted is emitted when a session and its bots are created.
	EventSessionStarted logging.EventType = "lifecycle.session_started"
	// EventSessionStopped is emitted when a session is torn down.
	EventSessionStopped logging.EventType = "lifecycle.session_stopped"
	// EventBotConnected is emitted when a bot leaves the connecting state.
	EventBotConnected logging.EventType = "lifecycle.bot_connected"
	// EventBotDisconnected is emitted for every bot of a destroyed session.
	EventBotDisconnected logging.EventType = "lifecycle.bot_disconnected"
)

// SessionStartedPayload captures the command that created a session.
type SessionStartedPayload struct {
	Nickname string `json:"nickname"`
	RoomURL  string `json:"roomUrl"`
	BotCount int    `json:"botCount"`
	Feeding  bool   `json:"feedingEnabled"`
	Split    bool   `json:"splittingEnabled"`
}

// SessionStoppedPayload captures why a session ended.
type SessionStoppedPayload struct {
	Reason   string `json:"reason"`
	BotCount int    `json:"botCount"`
}

// BotConnectedPayload captures the mass a bot spawned with.
type BotConnectedPayload struct {
	Nickname       string `json:"nickname"`
	Mass           int    `json:"mass"`
	DelayMillis    int64  `json:"delayMillis"`
	ConnectAddress string `json:"connectAddress,omitempty"`
}

// BotDisconnectedPayload captures the final bot state.
type BotDisconnectedPayload struct {
	Nickname string `json:"nickname"`
	Mass     int    `json:"mass"`
}

// SessionStarted publishes a session start event.
func SessionStarted(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload SessionStartedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSessionStarted,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	})
}

// SessionStopped publishes a session teardown event.
func SessionStopped(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload SessionStoppedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSessionStopped,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	})
}

// BotConnected publishes a debug event when a bot starts playing.
func BotConnected(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload BotConnectedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventBotConnected,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	})
}

// BotDisconnected publishes a debug event when a bot is torn down.
func BotDisconnected(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload BotDisconnectedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventBotDisconnected,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	})
}
