package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"

	botzie "github.com/manovDev/agario-botzie"
	"github.com/manovDev/agario-botzie/internal/config"
	"github.com/manovDev/agario-botzie/internal/control"
	"github.com/manovDev/agario-botzie/internal/ledger"
	servernet "github.com/manovDev/agario-botzie/internal/net"
	"github.com/manovDev/agario-botzie/internal/observability"
	"github.com/manovDev/agario-botzie/internal/telemetry"
	"github.com/manovDev/agario-botzie/logging"
	loggingSinks "github.com/manovDev/agario-botzie/logging/sinks"
)

// Mode selects which surfaces a process hosts.
type Mode string

const (
	// ModeServe hosts the engine and the control API on one listener.
	ModeServe Mode = "serve"
	// ModeEngine hosts only the engine: command endpoint, feed and diagnostics.
	ModeEngine Mode = "engine"
	// ModeControl hosts only the control API and reaches the engine over HTTP.
	ModeControl Mode = "control"
)

type Config struct {
	Mode     Mode
	Settings *config.Config
	Logger   telemetry.Logger
	// Stdout receives the console sink; nil means os.Stdout.
	Stdout io.Writer
	// Ready, when set, is called with the bound listen address once the
	// server accepts connections.
	Ready func(addr string)
	// Memory, when set, receives events in place of a fresh memory sink.
	Memory *loggingSinks.MemorySink
}

// Run hosts the selected mode until ctx is cancelled, then shuts everything
// down in reverse order of construction.
func Run(ctx context.Context, cfg Config) error {
	settings := cfg.Settings
	if settings == nil {
		settings = config.Default()
	}
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	mode := cfg.Mode
	if mode == "" {
		mode = ModeServe
	}

	telemetryLogger := cfg.Logger
	if telemetryLogger == nil {
		telemetryLogger = telemetry.WrapLogger(log.Default())
	}

	routerCfg := settings.LoggingRouterConfig()
	routerCfg.Fields = map[string]any{"mode": string(mode)}
	sinks, err := buildSinks(routerCfg, cfg)
	if err != nil {
		return err
	}
	router, err := logging.NewRouter(logging.SystemClock{}, routerCfg, sinks)
	if err != nil {
		return fmt.Errorf("failed to construct logging router: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			telemetryLogger.Printf("failed to close logging router: %v", cerr)
		}
	}()

	shutdownTracing, err := observability.SetupTracing(ctx, settings.Observability)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if cerr := shutdownTracing(closeCtx); cerr != nil {
			telemetryLogger.Printf("failed to flush traces: %v", cerr)
		}
	}()

	handlerCfg := servernet.HTTPHandlerConfig{
		Logger:        telemetryLogger,
		Observability: settings.Observability,
	}

	var engine *botzie.Engine
	if mode == ModeServe || mode == ModeEngine {
		engine = newEngine(settings, router, telemetryLogger)
		handlerCfg.Engine = engine
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
			defer cancel()
			if cerr := engine.Close(closeCtx); cerr != nil {
				telemetryLogger.Printf("failed to close engine: %v", cerr)
			}
		}()
	}

	if mode == ModeServe || mode == ModeControl {
		store, err := ledger.Open(ctx, settings.LedgerDSN)
		if err != nil {
			return fmt.Errorf("failed to open session ledger: %w", err)
		}
		defer func() {
			if cerr := store.Close(); cerr != nil {
				telemetryLogger.Printf("failed to close session ledger: %v", cerr)
			}
		}()

		var notifier control.Notifier
		if engine != nil {
			notifier = control.NewLocalNotifier(engine)
		} else {
			notifierCfg := control.DefaultHTTPNotifierConfig()
			notifierCfg.RequestTimeout = settings.Control.NotifyTimeout
			notifierCfg.MaxTries = settings.Control.NotifyMaxTries
			notifier = control.NewHTTPNotifier(settings.EngineURL, notifierCfg)
		}

		api, err := control.New(control.Config{
			Ledger:     store,
			Notifier:   notifier,
			Publisher:  router,
			Logger:     telemetryLogger,
			StartRate:  settings.Control.StartRate,
			StartBurst: settings.Control.StartBurst,
		})
		if err != nil {
			return fmt.Errorf("failed to construct control api: %w", err)
		}
		handlerCfg.Control = api
	}

	addr := settings.ControlAddr
	if mode == ModeEngine {
		addr = settings.EngineAddr
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	runCtx, stopRun := context.WithCancel(ctx)
	defer stopRun()
	if engine != nil {
		go engine.Run(runCtx)
	}

	srv := &http.Server{
		Handler:           servernet.NewHTTPHandler(handlerCfg),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ErrorLog:          telemetry.StandardLogger(telemetryLogger),
	}
	telemetryLogger.Printf("%s listening on %s", mode, listener.Addr())
	if cfg.Ready != nil {
		cfg.Ready(listener.Addr().String())
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		telemetryLogger.Printf("graceful shutdown failed: %v", err)
	}
	telemetryLogger.Printf("%s stopped", mode)
	return nil
}

func newEngine(settings *config.Config, publisher logging.Publisher, logger telemetry.Logger) *botzie.Engine {
	engineCfg := botzie.DefaultEngineConfig()
	engineCfg.TickInterval = settings.Simulation.TickInterval
	engineCfg.BroadcastInterval = settings.Simulation.BroadcastInterval
	engineCfg.WriteWait = settings.Simulation.WriteWait
	engineCfg.Behavior = settings.Behavior()
	if settings.Simulation.Seed != 0 {
		engineCfg.Random = botzie.NewSeededRandom(settings.Simulation.Seed)
	}
	engineCfg.Publisher = publisher
	engineCfg.Logger = logger
	return botzie.NewEngine(engineCfg)
}

func buildSinks(routerCfg logging.Config, cfg Config) ([]logging.NamedSink, error) {
	var sinks []logging.NamedSink
	if routerCfg.HasSink("console") {
		out := cfg.Stdout
		if out == nil {
			out = os.Stdout
		}
		sinks = append(sinks, logging.NamedSink{Name: "console", Sink: loggingSinks.NewConsoleSink(out)})
	}
	if routerCfg.HasSink("json") {
		var out io.Writer = os.Stdout
		if path := routerCfg.JSON.FilePath; path != "" {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create json log directory: %w", err)
			}
			file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return nil, fmt.Errorf("failed to open json log file: %w", err)
			}
			out = file
		}
		sinks = append(sinks, logging.NamedSink{Name: "json", Sink: loggingSinks.NewJSON(out, routerCfg.JSON.FlushInterval)})
	}
	if routerCfg.HasSink("memory") {
		memory := cfg.Memory
		if memory == nil {
			memory = loggingSinks.NewMemorySink()
		}
		sinks = append(sinks, logging.NamedSink{Name: "memory", Sink: memory})
	}
	return sinks, nil
}
