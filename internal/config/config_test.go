package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/manovDev/agario-botzie/logging"
)

func writeFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "botzie.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Simulation.TickInterval != 100*time.Millisecond {
		t.Fatalf("expected 100ms tick, got %v", cfg.Simulation.TickInterval)
	}
	if cfg.Simulation.BroadcastInterval != time.Second {
		t.Fatalf("expected 1s broadcast, got %v", cfg.Simulation.BroadcastInterval)
	}
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := LoadWithEnv("", map[string]string{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ControlAddr != Default().ControlAddr {
		t.Fatalf("expected default control addr, got %q", cfg.ControlAddr)
	}
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	if _, err := LoadWithEnv(filepath.Join(t.TempDir(), "nope.yaml"), map[string]string{}); err == nil {
		t.Fatal("expected an error for a missing explicit config file")
	}
}

func TestLoadLayersFileThenEnv(t *testing.T) {
	path := writeFile(t, `
controlAddr: ":4000"
engineUrl: "http://engine:9000"
simulation:
  tickInterval: 50ms
  broadcastInterval: 2s
logging:
  sinks: [json]
  level: debug
observability:
  serviceName: from-file
`)
	environ := map[string]string{
		"BOTZIE_CONTROL_ADDR":           ":5000",
		"BOTZIE_SIM_BROADCAST_INTERVAL": "250ms",
		"BOTZIE_LOG_SINKS":              "console,memory",
		"BOTZIE_OTEL_ENDPOINT":          "localhost:4318",
	}

	cfg, err := LoadWithEnv(path, environ)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ControlAddr != ":5000" {
		t.Fatalf("expected env to win over file, got %q", cfg.ControlAddr)
	}
	if cfg.EngineURL != "http://engine:9000" {
		t.Fatalf("expected file value for engine url, got %q", cfg.EngineURL)
	}
	if cfg.Simulation.TickInterval != 50*time.Millisecond {
		t.Fatalf("expected file tick, got %v", cfg.Simulation.TickInterval)
	}
	if cfg.Simulation.BroadcastInterval != 250*time.Millisecond {
		t.Fatalf("expected env broadcast, got %v", cfg.Simulation.BroadcastInterval)
	}
	if strings.Join(cfg.Logging.Sinks, ",") != "console,memory" {
		t.Fatalf("unexpected sinks %v", cfg.Logging.Sinks)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected file level, got %q", cfg.Logging.Level)
	}
	if cfg.Observability.ServiceName != "from-file" || !cfg.Observability.TracingEnabled() {
		t.Fatalf("unexpected observability config %+v", cfg.Observability)
	}
	if cfg.Simulation.ConnectDelayMax != Default().Simulation.ConnectDelayMax {
		t.Fatal("expected untouched fields to keep defaults")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"zero tick":      {"BOTZIE_SIM_TICK_INTERVAL": "0s"},
		"unknown sink":   {"BOTZIE_LOG_SINKS": "syslog"},
		"unknown level":  {"BOTZIE_LOG_LEVEL": "loud"},
		"inverted delay": {"BOTZIE_SIM_CONNECT_DELAY_MIN": "5s", "BOTZIE_SIM_CONNECT_DELAY_MAX": "1s"},
		"bad duration":   {"BOTZIE_SIM_TICK_INTERVAL": "soon"},
		"file ledger":    {"BOTZIE_LEDGER_DSN": "/tmp/botzie.db"},
	}
	for name, environ := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadWithEnv("", environ); err == nil {
				t.Fatal("expected load to fail")
			}
		})
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeFile(t, "simulation: [not, a, map]\n")
	if _, err := LoadWithEnv(path, map[string]string{}); err == nil {
		t.Fatal("expected malformed yaml to fail")
	}
}

func TestFlagsOverrideOnlyWhenSet(t *testing.T) {
	cfg, err := LoadWithEnv("", map[string]string{"BOTZIE_ENGINE_ADDR": ":7000"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags := BindFlags(fs)
	if err := fs.Parse([]string{"--tick=20ms", "--log-sinks=json,memory", "--pprof"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if err := flags.Apply(fs, cfg); err != nil {
		t.Fatalf("apply flags: %v", err)
	}

	if cfg.Simulation.TickInterval != 20*time.Millisecond {
		t.Fatalf("expected flag tick, got %v", cfg.Simulation.TickInterval)
	}
	if strings.Join(cfg.Logging.Sinks, ",") != "json,memory" {
		t.Fatalf("unexpected sinks %v", cfg.Logging.Sinks)
	}
	if !cfg.Observability.EnablePprofTrace {
		t.Fatal("expected pprof to be enabled")
	}
	if cfg.EngineAddr != ":7000" {
		t.Fatalf("unset flag must not mask env value, got %q", cfg.EngineAddr)
	}
}

func TestFlagsApplyRevalidates(t *testing.T) {
	cfg := Default()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags := BindFlags(fs)
	if err := fs.Parse([]string{"--log-level=verbose"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if err := flags.Apply(fs, cfg); err == nil {
		t.Fatal("expected invalid level to be rejected")
	}
}

func TestLoggingRouterConfig(t *testing.T) {
	cfg := Default()
	cfg.Logging.Sinks = []string{"json"}
	cfg.Logging.Level = "warn"
	cfg.Logging.JSONPath = "/tmp/events.jsonl"
	cfg.Logging.BufferSize = 64

	routerCfg := cfg.LoggingRouterConfig()
	if !routerCfg.HasSink("json") || routerCfg.HasSink("console") {
		t.Fatalf("unexpected sinks %v", routerCfg.EnabledSinks)
	}
	if routerCfg.MinimumSeverity != logging.SeverityWarn {
		t.Fatalf("expected warn severity, got %v", routerCfg.MinimumSeverity)
	}
	if routerCfg.JSON.FilePath != "/tmp/events.jsonl" || routerCfg.BufferSize != 64 {
		t.Fatalf("unexpected router config %+v", routerCfg)
	}
}

func TestBehaviorCarriesTimings(t *testing.T) {
	cfg := Default()
	cfg.Simulation.FeedCooldown = 3 * time.Second
	if got := cfg.Behavior().FeedCooldown; got != 3*time.Second {
		t.Fatalf("expected 3s cooldown, got %v", got)
	}
}
