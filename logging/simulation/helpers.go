package simulation

import (
	"context"

	"github.com/manovDev/agario-botzie/logging"
)

const (
	// EventBotFeeding is emitted when a bot ejects mass.
	EventBotFeeding logging.EventType = "simulation.bot_feeding"
	// EventTickBudgetOverrun is emitted when a broadcast pass exceeds its interval.
	EventTickBudgetOverrun logging.EventType = "simulation.tick_budget_overrun"
)

// BotFeedingPayload captures the mass before and after a feed.
type BotFeedingPayload struct {
	MassBefore int `json:"massBefore"`
	MassAfter  int `json:"massAfter"`
}

// TickBudgetOverrunPayload captures timing details for a budget breach.
type TickBudgetOverrunPayload struct {
	DurationMillis int64   `json:"durationMillis"`
	BudgetMillis   int64   `json:"budgetMillis"`
	Ratio          float64 `json:"ratio"`
}

// BotFeeding publishes a debug event when a bot enters the feeding state.
func BotFeeding(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload BotFeedingPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventBotFeeding,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategorySimulation,
		Payload:  payload,
		Extra:    extra,
	})
}

// TickBudgetOverrun publishes a warning when a periodic pass runs long.
func TickBudgetOverrun(ctx context.Context, pub logging.Publisher, payload TickBudgetOverrunPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventTickBudgetOverrun,
		Actor:    logging.EntityRef{Kind: logging.EntityKindEngine},
		Severity: logging.SeverityWarn,
		Category: logging.CategorySimulation,
		Payload:  payload,
		Extra:    extra,
	})
}
