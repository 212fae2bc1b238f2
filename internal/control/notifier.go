package control

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	botzie "github.com/manovDev/agario-botzie"
)

// Engine command protocol shared by the notifier and the engine endpoint.
const (
	HeaderAction    = "X-Action"
	HeaderSessionID = "X-Session-ID"

	ActionStartBots = "start-bots"
	ActionStopBots  = "stop-bots"
)

// Notifier tells the simulation engine about accepted commands. Failures
// are reported as *botzie.UpstreamUnavailableError.
type Notifier interface {
	StartBots(ctx context.Context, sessionID string, cfg botzie.SessionConfig) error
	StopBots(ctx context.Context) error
}

// EngineCommands is the part of the engine the in-process notifier drives.
type EngineCommands interface {
	Start(ctx context.Context, sessionID string, cfg botzie.SessionConfig) (botzie.SessionInfo, error)
	Stop(ctx context.Context) int
}

// LocalNotifier forwards commands to an engine in the same process.
type LocalNotifier struct {
	engine EngineCommands
}

// NewLocalNotifier wraps engine.
func NewLocalNotifier(engine EngineCommands) *LocalNotifier {
	return &LocalNotifier{engine: engine}
}

// StartBots implements Notifier.
func (n *LocalNotifier) StartBots(ctx context.Context, sessionID string, cfg botzie.SessionConfig) error {
	if n == nil || n.engine == nil {
		return &botzie.UpstreamUnavailableError{Action: ActionStartBots, Err: fmt.Errorf("engine is not configured")}
	}
	if _, err := n.engine.Start(ctx, sessionID, cfg); err != nil {
		return &botzie.UpstreamUnavailableError{Action: ActionStartBots, Err: err}
	}
	return nil
}

// StopBots implements Notifier.
func (n *LocalNotifier) StopBots(ctx context.Context) error {
	if n == nil || n.engine == nil {
		return &botzie.UpstreamUnavailableError{Action: ActionStopBots, Err: fmt.Errorf("engine is not configured")}
	}
	n.engine.Stop(ctx)
	return nil
}

// HTTPNotifierConfig tunes the remote notifier.
type HTTPNotifierConfig struct {
	RequestTimeout  time.Duration
	MaxTries        uint
	MaxElapsed      time.Duration
	InitialInterval time.Duration
	Transport       http.RoundTripper
}

// DefaultHTTPNotifierConfig returns bounded retry settings.
func DefaultHTTPNotifierConfig() HTTPNotifierConfig {
	return HTTPNotifierConfig{
		RequestTimeout:  5 * time.Second,
		MaxTries:        3,
		MaxElapsed:      10 * time.Second,
		InitialInterval: 200 * time.Millisecond,
	}
}

// HTTPNotifier posts commands to a remote engine endpoint.
type HTTPNotifier struct {
	endpoint string
	client   *http.Client
	cfg      HTTPNotifierConfig
}

// NewHTTPNotifier targets the engine listening at endpoint.
func NewHTTPNotifier(endpoint string, cfg HTTPNotifierConfig) *HTTPNotifier {
	defaults := DefaultHTTPNotifierConfig()
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaults.RequestTimeout
	}
	if cfg.MaxTries == 0 {
		cfg.MaxTries = defaults.MaxTries
	}
	if cfg.MaxElapsed <= 0 {
		cfg.MaxElapsed = defaults.MaxElapsed
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = defaults.InitialInterval
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &HTTPNotifier{
		endpoint: strings.TrimRight(endpoint, "/") + "/",
		client: &http.Client{
			Transport: otelhttp.NewTransport(transport),
			Timeout:   cfg.RequestTimeout,
		},
		cfg: cfg,
	}
}

// StartBots implements Notifier.
func (n *HTTPNotifier) StartBots(ctx context.Context, sessionID string, cfg botzie.SessionConfig) error {
	body, err := json.Marshal(cfg)
	if err != nil {
		return &botzie.UpstreamUnavailableError{Action: ActionStartBots, Err: err}
	}
	return n.send(ctx, ActionStartBots, sessionID, body)
}

// StopBots implements Notifier.
func (n *HTTPNotifier) StopBots(ctx context.Context) error {
	return n.send(ctx, ActionStopBots, "", nil)
}

type engineReply struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (n *HTTPNotifier) send(ctx context.Context, action, sessionID string, body []byte) error {
	operation := func() (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(HeaderAction, action)
		if sessionID != "" {
			req.Header.Set(HeaderSessionID, sessionID)
		}

		resp, err := n.client.Do(req)
		if err != nil {
			return struct{}{}, err
		}
		defer resp.Body.Close()

		var reply engineReply
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&reply)
		switch {
		case resp.StatusCode >= http.StatusInternalServerError:
			return struct{}{}, fmt.Errorf("engine responded %s", resp.Status)
		case resp.StatusCode >= http.StatusBadRequest:
			if reply.Error != "" {
				return struct{}{}, backoff.Permanent(fmt.Errorf("engine rejected %s: %s", action, reply.Error))
			}
			return struct{}{}, backoff.Permanent(fmt.Errorf("engine responded %s", resp.Status))
		}
		return struct{}{}, nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = n.cfg.InitialInterval
	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(n.cfg.MaxTries),
		backoff.WithMaxElapsedTime(n.cfg.MaxElapsed),
	)
	if err != nil {
		return &botzie.UpstreamUnavailableError{Action: action, Err: err}
	}
	return nil
}
