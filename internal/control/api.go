// Package control implements the command boundary: it validates start and
// stop commands, records them in the ledger and notifies the engine.
package control

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	botzie "github.com/manovDev/agario-botzie"
	"github.com/manovDev/agario-botzie/internal/ledger"
	"github.com/manovDev/agario-botzie/internal/telemetry"
	"github.com/manovDev/agario-botzie/logging"
	"github.com/manovDev/agario-botzie/logging/network"
)

const tracerName = "github.com/manovDev/agario-botzie/internal/control"

// StopMessage is returned by every stop command.
const StopMessage = "All bots stopped successfully"

// ErrRateLimited rejects start commands above the configured rate.
var ErrRateLimited = errors.New("too many start commands, retry later")

// Ledger is the session record the API keeps.
type Ledger interface {
	RecordStart(ctx context.Context, session ledger.Session) error
	MarkNotified(ctx context.Context, id string, notifyErr error) error
	StopAll(ctx context.Context, stoppedAt time.Time) (int, error)
	Active(ctx context.Context) ([]ledger.Session, error)
}

// Config wires an API.
type Config struct {
	Ledger    Ledger
	Notifier  Notifier
	Clock     logging.Clock
	Publisher logging.Publisher
	Logger    telemetry.Logger
	// StartRate caps start commands per second; zero disables the limit.
	StartRate  float64
	StartBurst int
	NewID      func() string
}

// API is the control boundary.
type API struct {
	ledger    Ledger
	notifier  Notifier
	clock     logging.Clock
	publisher logging.Publisher
	logger    telemetry.Logger
	limiter   *rate.Limiter
	newID     func() string
	tracer    trace.Tracer
}

// StartResult answers an accepted start command.
type StartResult struct {
	Success   bool                 `json:"success"`
	SessionID string               `json:"sessionId"`
	Bots      []botzie.BotSnapshot `json:"bots"`
	Message   string               `json:"message"`
}

// StopResult answers a stop command.
type StopResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Stopped int    `json:"stoppedSessions"`
}

// Listing is the ledger view of active sessions.
type Listing struct {
	ActiveSessions []ledger.Session `json:"activeSessions"`
	TotalSessions  int              `json:"totalSessions"`
}

// New constructs an API. Ledger and Notifier are required.
func New(cfg Config) (*API, error) {
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("control: ledger is required")
	}
	if cfg.Notifier == nil {
		return nil, fmt.Errorf("control: notifier is required")
	}
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
	newID := cfg.NewID
	if newID == nil {
		newID = func() string { return uuid.NewString() }
	}
	var limiter *rate.Limiter
	if cfg.StartRate > 0 {
		burst := cfg.StartBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.StartRate), burst)
	}
	return &API{
		ledger:    cfg.Ledger,
		notifier:  cfg.Notifier,
		clock:     clock,
		publisher: publisher,
		logger:    logger,
		limiter:   limiter,
		newID:     newID,
		tracer:    otel.Tracer(tracerName),
	}, nil
}

// Start validates cfg, records a new session and notifies the engine. A
// failed notification is logged and does not fail the command.
func (a *API) Start(ctx context.Context, cfg botzie.SessionConfig) (StartResult, error) {
	ctx, span := a.tracer.Start(ctx, "control.start", trace.WithAttributes(
		attribute.String("bots.nickname", cfg.Nickname),
		attribute.Int("bots.count", cfg.BotCount),
	))
	defer span.End()

	if err := cfg.Validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return StartResult{}, err
	}
	if a.limiter != nil && !a.limiter.Allow() {
		span.SetStatus(codes.Error, ErrRateLimited.Error())
		return StartResult{}, ErrRateLimited
	}

	sessionID := a.newID()
	span.SetAttributes(attribute.String("session.id", sessionID))
	if err := a.ledger.RecordStart(ctx, ledger.SessionFromConfig(sessionID, cfg, a.clock.Now())); err != nil {
		if errors.Is(err, ledger.ErrAlreadyExists) {
			err = &botzie.DuplicateSessionError{SessionID: sessionID}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return StartResult{}, err
	}

	notifyErr := a.notifier.StartBots(ctx, sessionID, cfg)
	if notifyErr != nil {
		a.upstreamFailed(ctx, span, ActionStartBots, notifyErr)
	}
	if err := a.ledger.MarkNotified(ctx, sessionID, notifyErr); err != nil {
		a.logger.Printf("failed to record notification for %s: %v", sessionID, err)
	}

	return StartResult{
		Success:   true,
		SessionID: sessionID,
		Bots:      botzie.PlaceholderBots(sessionID, cfg),
		Message:   fmt.Sprintf("Started %d bots for %s", cfg.BotCount, cfg.Nickname),
	}, nil
}

// Stop stops every session swarm-wide.
func (a *API) Stop(ctx context.Context) (StopResult, error) {
	ctx, span := a.tracer.Start(ctx, "control.stop")
	defer span.End()

	if err := a.notifier.StopBots(ctx); err != nil {
		a.upstreamFailed(ctx, span, ActionStopBots, err)
	}
	stopped, err := a.ledger.StopAll(ctx, a.clock.Now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return StopResult{}, err
	}
	span.SetAttributes(attribute.Int("sessions.stopped", stopped))
	return StopResult{Success: true, Message: StopMessage, Stopped: stopped}, nil
}

// List reports the sessions the ledger still considers active.
func (a *API) List(ctx context.Context) (Listing, error) {
	ctx, span := a.tracer.Start(ctx, "control.list")
	defer span.End()

	sessions, err := a.ledger.Active(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Listing{}, err
	}
	return Listing{ActiveSessions: sessions, TotalSessions: len(sessions)}, nil
}

func (a *API) upstreamFailed(ctx context.Context, span trace.Span, action string, err error) {
	span.RecordError(err)
	span.SetAttributes(attribute.Bool("upstream.unavailable", true))
	a.logger.Printf("bot service error: %v", err)
	network.UpstreamUnavailable(ctx, a.publisher, logging.EntityRef{ID: "engine", Kind: logging.EntityKindEngine}, network.UpstreamPayload{
		Action: action,
		Error:  err.Error(),
	}, nil)
}
