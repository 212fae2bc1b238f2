package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/manovDev/agario-botzie/internal/config"
	"github.com/manovDev/agario-botzie/internal/control"
	"github.com/manovDev/agario-botzie/internal/telemetry"
	"github.com/manovDev/agario-botzie/logging/lifecycle"
	loggingSinks "github.com/manovDev/agario-botzie/logging/sinks"
)

func testSettings() *config.Config {
	settings := config.Default()
	settings.ControlAddr = "127.0.0.1:0"
	settings.EngineAddr = "127.0.0.1:0"
	settings.Simulation.TickInterval = 5 * time.Millisecond
	settings.Simulation.BroadcastInterval = 10 * time.Millisecond
	settings.Simulation.ConnectDelayMin = time.Millisecond
	settings.Simulation.ConnectDelayMax = 2 * time.Millisecond
	settings.Simulation.Seed = 7
	settings.Logging.Sinks = []string{"memory"}
	settings.Control.StartRate = 0
	return settings
}

type running struct {
	addr string
	done chan error
}

func start(t *testing.T, ctx context.Context, mode Mode, settings *config.Config, memory *loggingSinks.MemorySink) running {
	t.Helper()
	ready := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Config{
			Mode:     mode,
			Settings: settings,
			Logger:   telemetry.Discard(),
			Memory:   memory,
			Ready:    func(addr string) { ready <- addr },
		})
	}()
	select {
	case addr := <-ready:
		return running{addr: "http://" + addr, done: done}
	case err := <-done:
		t.Fatalf("%s exited before listening: %v", mode, err)
	case <-time.After(5 * time.Second):
		t.Fatalf("%s did not start listening", mode)
	}
	return running{}
}

func (r running) wait(t *testing.T) {
	t.Helper()
	select {
	case err := <-r.done:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return after cancellation")
	}
}

func postJSON(t *testing.T, url, body string, out any) int {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			t.Fatalf("decode %s response %q: %v", url, data, err)
		}
	}
	return resp.StatusCode
}

func getJSON(t *testing.T, url string, out any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
}

type diagnosticsReply struct {
	Diagnostics struct {
		Sessions int `json:"sessions"`
		Bots     int `json:"bots"`
	} `json:"diagnostics"`
}

func TestServeHostsEngineAndControl(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	memory := loggingSinks.NewMemorySink()
	srv := start(t, ctx, ModeServe, testSettings(), memory)

	var started control.StartResult
	status := postJSON(t, srv.addr+"/api/bots/start", `{"nickname":"Ann","roomUrl":"room-1","botCount":3}`, &started)
	if status != http.StatusOK || !started.Success || len(started.Bots) != 3 {
		t.Fatalf("unexpected start reply %d %+v", status, started)
	}

	var listing control.Listing
	getJSON(t, srv.addr+"/api/bots/sessions", &listing)
	if listing.TotalSessions != 1 || listing.ActiveSessions[0].ID != started.SessionID {
		t.Fatalf("unexpected listing %+v", listing)
	}

	var diag diagnosticsReply
	getJSON(t, srv.addr+"/diagnostics", &diag)
	if diag.Diagnostics.Sessions != 1 || diag.Diagnostics.Bots != 3 {
		t.Fatalf("unexpected diagnostics %+v", diag)
	}

	var stopped control.StopResult
	if status := postJSON(t, srv.addr+"/api/bots/stop", "", &stopped); status != http.StatusOK || stopped.Stopped != 1 {
		t.Fatalf("unexpected stop reply %d %+v", status, stopped)
	}

	cancel()
	srv.wait(t)

	if got := len(memory.EventsOfType(lifecycle.EventSessionStarted)); got != 1 {
		t.Fatalf("expected 1 session started event, got %d", got)
	}
	if got := len(memory.EventsOfType(lifecycle.EventSessionStopped)); got != 1 {
		t.Fatalf("expected 1 session stopped event, got %d", got)
	}
}

func TestSplitControlReachesEngineOverHTTP(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engineSettings := testSettings()
	engine := start(t, ctx, ModeEngine, engineSettings, nil)

	controlSettings := testSettings()
	controlSettings.EngineURL = engine.addr
	ctrl := start(t, ctx, ModeControl, controlSettings, nil)

	var started control.StartResult
	if status := postJSON(t, ctrl.addr+"/api/bots/start", `{"nickname":"Bob","roomUrl":"r","botCount":2}`, &started); status != http.StatusOK {
		t.Fatalf("unexpected start status %d", status)
	}

	var diag diagnosticsReply
	getJSON(t, engine.addr+"/diagnostics", &diag)
	if diag.Diagnostics.Bots != 2 {
		t.Fatalf("expected engine to host 2 bots, got %+v", diag)
	}

	resp, err := http.Get(ctrl.addr + "/diagnostics")
	if err != nil {
		t.Fatalf("get control diagnostics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("control process must not serve engine routes, got %d", resp.StatusCode)
	}

	cancel()
	ctrl.wait(t)
	engine.wait(t)
}

func TestRunRejectsInvalidSettings(t *testing.T) {
	settings := testSettings()
	settings.Simulation.TickInterval = 0
	err := Run(context.Background(), Config{Mode: ModeServe, Settings: settings, Logger: telemetry.Discard()})
	if err == nil {
		t.Fatal("expected invalid settings to be rejected")
	}
}

func TestRunReportsListenFailure(t *testing.T) {
	settings := testSettings()
	settings.EngineAddr = "256.0.0.1:bad"
	err := Run(context.Background(), Config{Mode: ModeEngine, Settings: settings, Logger: telemetry.Discard()})
	if err == nil || !strings.Contains(err.Error(), "failed to listen") {
		t.Fatalf("expected listen failure, got %v", err)
	}
}

func TestConsoleSinkWritesEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	settings := testSettings()
	settings.Logging.Sinks = []string{"console"}

	var out bytes.Buffer
	ready := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Config{
			Mode:     ModeServe,
			Settings: settings,
			Logger:   telemetry.Discard(),
			Stdout:   &out,
			Ready:    func(addr string) { ready <- addr },
		})
	}()
	addr := "http://" + <-ready
	if status := postJSON(t, addr+"/api/bots/start", `{"nickname":"Cy","roomUrl":"r","botCount":1}`, nil); status != http.StatusOK {
		t.Fatalf("unexpected start status %d", status)
	}
	cancel()
	running{done: done}.wait(t)

	if !strings.Contains(out.String(), string(lifecycle.EventSessionStarted)) {
		t.Fatalf("expected console output to mention session start, got %q", out.String())
	}
}
