package network

import (
	"context"

	"github.com/manovDev/agario-botzie/logging"
)

const (
	// EventSubscriberJoined is emitted when an observer attaches to the snapshot feed.
	EventSubscriberJoined logging.EventType = "network.subscriber_joined"
	// EventSubscriberDropped is emitted when an observer is removed from the feed.
	EventSubscriberDropped logging.EventType = "network.subscriber_dropped"
	// EventUpstreamUnavailable is emitted when the control API cannot reach the engine.
	EventUpstreamUnavailable logging.EventType = "network.upstream_unavailable"
)

// SubscriberPayload captures the subscriber population after a change.
type SubscriberPayload struct {
	Reason      string `json:"reason,omitempty"`
	Subscribers int    `json:"subscribers"`
}

// UpstreamPayload captures a failed engine notification.
type UpstreamPayload struct {
	Action string `json:"action"`
	Error  string `json:"error"`
}

// SubscriberJoined publishes a debug event for a new feed subscriber.
func SubscriberJoined(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload SubscriberPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSubscriberJoined,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	})
}

// SubscriberDropped publishes an event when a subscriber leaves or fails a write.
func SubscriberDropped(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload SubscriberPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSubscriberDropped,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	})
}

// UpstreamUnavailable publishes a warning for a swallowed notification failure.
func UpstreamUnavailable(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload UpstreamPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventUpstreamUnavailable,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	})
}
