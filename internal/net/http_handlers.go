package net

import (
	"context"
	"encoding/json"
	"errors"
	nethttp "net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	botzie "github.com/manovDev/agario-botzie"
	"github.com/manovDev/agario-botzie/internal/control"
	"github.com/manovDev/agario-botzie/internal/net/ws"
	"github.com/manovDev/agario-botzie/internal/observability"
	"github.com/manovDev/agario-botzie/internal/telemetry"
)

const maxRequestBody = 1 << 20

// ControlService is the command boundary served under /api/bots/.
type ControlService interface {
	Start(ctx context.Context, cfg botzie.SessionConfig) (control.StartResult, error)
	Stop(ctx context.Context) (control.StopResult, error)
	List(ctx context.Context) (control.Listing, error)
}

// HTTPHandlerConfig selects the surfaces a process serves. Control and
// Engine may each be nil in a split deployment.
type HTTPHandlerConfig struct {
	Control       ControlService
	Engine        *botzie.Engine
	Logger        telemetry.Logger
	Observability observability.Config
}

type successMessage struct {
	Success bool `json:"success"`
}

type errorMessage struct {
	Error string `json:"error"`
}

func NewHTTPHandler(cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.DefaultLogger()
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/api/bots/schema", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, nethttp.StatusOK, botzie.SessionConfigSchema())
	})

	if cfg.Control != nil {
		registerControlRoutes(mux, cfg.Control, logger)
	}
	if cfg.Engine != nil {
		registerEngineRoutes(mux, cfg.Engine, logger)
	}
	observability.MountPprof(mux, cfg.Observability)

	return otelhttp.NewHandler(withCORS(mux), "botzie")
}

func registerControlRoutes(mux *nethttp.ServeMux, api ControlService, logger telemetry.Logger) {
	list := func(w nethttp.ResponseWriter, r *nethttp.Request) {
		listing, err := api.List(r.Context())
		if err != nil {
			logger.Printf("list sessions failed: %v", err)
			writeError(w, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, listing)
	}

	mux.HandleFunc("/api/bots/start", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		switch r.Method {
		case nethttp.MethodGet:
			list(w, r)
		case nethttp.MethodPost:
			cfg, err := botzie.DecodeSessionConfig(nethttp.MaxBytesReader(w, r.Body, maxRequestBody))
			if err != nil {
				writeError(w, err)
				return
			}
			result, err := api.Start(r.Context(), cfg)
			if err != nil {
				if !botzie.IsValidation(err) && !errors.Is(err, control.ErrRateLimited) {
					logger.Printf("start bots error: %v", err)
				}
				writeError(w, err)
				return
			}
			writeJSON(w, nethttp.StatusOK, result)
		default:
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/api/bots/sessions", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		list(w, r)
	})

	mux.HandleFunc("/api/bots/stop", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		result, err := api.Stop(r.Context())
		if err != nil {
			logger.Printf("stop bots error: %v", err)
			writeError(w, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, result)
	})
}

func registerEngineRoutes(mux *nethttp.ServeMux, engine *botzie.Engine, logger telemetry.Logger) {
	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		now := time.Now()
		payload := struct {
			Status      string             `json:"status"`
			ServerTime  int64              `json:"serverTime"`
			Diagnostics botzie.Diagnostics `json:"diagnostics"`
		}{
			Status:      "ok",
			ServerTime:  now.UnixMilli(),
			Diagnostics: engine.Diagnostics(now),
		}
		writeJSON(w, nethttp.StatusOK, payload)
	})

	feed := ws.NewHandler(engine.Broadcaster(), ws.HandlerConfig{Logger: logger})
	mux.HandleFunc("/ws", feed.Handle)

	mux.HandleFunc("/", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.URL.Path != "/" {
			httpError(w, "not found", nethttp.StatusNotFound)
			return
		}
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		handleEngineCommand(w, r, engine, logger)
	})
}

// handleEngineCommand serves the command protocol the control API speaks
// in a split deployment.
func handleEngineCommand(w nethttp.ResponseWriter, r *nethttp.Request, engine *botzie.Engine, logger telemetry.Logger) {
	switch action := r.Header.Get(control.HeaderAction); action {
	case control.ActionStartBots:
		sessionID := r.Header.Get(control.HeaderSessionID)
		if sessionID == "" {
			httpError(w, "missing "+control.HeaderSessionID+" header", nethttp.StatusBadRequest)
			return
		}
		cfg, err := botzie.DecodeSessionConfig(nethttp.MaxBytesReader(w, r.Body, maxRequestBody))
		if err != nil {
			writeError(w, err)
			return
		}
		if _, err := engine.Start(r.Context(), sessionID, cfg); err != nil {
			if !botzie.IsValidation(err) {
				logger.Printf("engine start for %s failed: %v", sessionID, err)
			}
			writeError(w, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, successMessage{Success: true})
	case control.ActionStopBots:
		engine.Stop(r.Context())
		writeJSON(w, nethttp.StatusOK, successMessage{Success: true})
	default:
		httpError(w, "unknown action "+quote(action), nethttp.StatusBadRequest)
	}
}

func withCORS(next nethttp.Handler) nethttp.Handler {
	return nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		header := w.Header()
		header.Set("Access-Control-Allow-Origin", "*")
		header.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		header.Set("Access-Control-Allow-Headers", "Content-Type, "+control.HeaderAction+", "+control.HeaderSessionID)
		if r.Method == nethttp.MethodOptions {
			w.WriteHeader(nethttp.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeError maps domain errors onto status codes.
func writeError(w nethttp.ResponseWriter, err error) {
	var (
		validation *botzie.ValidationError
		duplicate  *botzie.DuplicateSessionError
	)
	switch {
	case errors.As(err, &validation):
		httpError(w, validation.Reason, nethttp.StatusBadRequest)
	case errors.As(err, &duplicate):
		httpError(w, duplicate.Error(), nethttp.StatusConflict)
	case errors.Is(err, control.ErrRateLimited):
		httpError(w, err.Error(), nethttp.StatusTooManyRequests)
	case errors.Is(err, botzie.ErrRegistryClosed):
		httpError(w, err.Error(), nethttp.StatusServiceUnavailable)
	default:
		httpError(w, "internal server error", nethttp.StatusInternalServerError)
	}
}

func writeJSON(w nethttp.ResponseWriter, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	data, _ := json.Marshal(errorMessage{Error: msg})
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	w.Write(data)
}

func quote(value string) string {
	data, _ := json.Marshal(value)
	return string(data)
}
