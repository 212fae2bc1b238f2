// Package config loads process configuration. Sources are layered, lowest
// precedence first: built-in defaults, an optional YAML file, BOTZIE_*
// environment variables and finally command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	botzie "github.com/manovDev/agario-botzie"
	"github.com/manovDev/agario-botzie/internal/ledger"
	"github.com/manovDev/agario-botzie/internal/observability"
	"github.com/manovDev/agario-botzie/logging"
)

// EnvPrefix namespaces every environment variable.
const EnvPrefix = "BOTZIE_"

// DefaultFile is read from the working directory when no path is given.
const DefaultFile = "botzie.yaml"

// Config is the full process configuration.
type Config struct {
	ControlAddr string `yaml:"controlAddr" env:"CONTROL_ADDR"`
	EngineAddr  string `yaml:"engineAddr" env:"ENGINE_ADDR"`
	// EngineURL is where a standalone control API reaches the engine.
	EngineURL string `yaml:"engineUrl" env:"ENGINE_URL"`
	// LedgerDSN must name an in-memory database; sessions end with the process.
	LedgerDSN string `yaml:"ledgerDsn" env:"LEDGER_DSN"`

	Simulation    SimulationConfig     `yaml:"simulation" envPrefix:"SIM_"`
	Control       ControlConfig        `yaml:"control" envPrefix:"CONTROL_"`
	Logging       LoggingConfig        `yaml:"logging" envPrefix:"LOG_"`
	Observability observability.Config `yaml:"observability"`
}

// SimulationConfig tunes the engine.
type SimulationConfig struct {
	TickInterval      time.Duration `yaml:"tickInterval" env:"TICK_INTERVAL"`
	BroadcastInterval time.Duration `yaml:"broadcastInterval" env:"BROADCAST_INTERVAL"`
	WriteWait         time.Duration `yaml:"writeWait" env:"WRITE_WAIT"`
	ConnectDelayMin   time.Duration `yaml:"connectDelayMin" env:"CONNECT_DELAY_MIN"`
	ConnectDelayMax   time.Duration `yaml:"connectDelayMax" env:"CONNECT_DELAY_MAX"`
	FeedCooldown      time.Duration `yaml:"feedCooldown" env:"FEED_COOLDOWN"`
	// Seed fixes the random source; zero draws from math/rand.
	Seed int64 `yaml:"seed" env:"SEED"`
}

// ControlConfig tunes the command boundary.
type ControlConfig struct {
	StartRate      float64       `yaml:"startRate" env:"START_RATE"`
	StartBurst     int           `yaml:"startBurst" env:"START_BURST"`
	NotifyTimeout  time.Duration `yaml:"notifyTimeout" env:"NOTIFY_TIMEOUT"`
	NotifyMaxTries uint          `yaml:"notifyMaxTries" env:"NOTIFY_MAX_TRIES"`
}

// LoggingConfig selects the event sinks.
type LoggingConfig struct {
	Sinks      []string `yaml:"sinks" env:"SINKS" envSeparator:","`
	Level      string   `yaml:"level" env:"LEVEL"`
	JSONPath   string   `yaml:"jsonPath" env:"JSON_PATH"`
	BufferSize int      `yaml:"bufferSize" env:"BUFFER_SIZE"`
}

// Default returns the built-in configuration.
func Default() *Config {
	behavior := botzie.DefaultBehaviorConfig()
	return &Config{
		ControlAddr: ":3000",
		EngineAddr:  ":3003",
		EngineURL:   "http://127.0.0.1:3003",
		LedgerDSN:   ledger.MemoryDSN,
		Simulation: SimulationConfig{
			TickInterval:      botzie.DefaultTickInterval,
			BroadcastInterval: botzie.DefaultBroadcastInterval,
			WriteWait:         botzie.DefaultWriteWait,
			ConnectDelayMin:   behavior.ConnectDelayMin,
			ConnectDelayMax:   behavior.ConnectDelayMax,
			FeedCooldown:      behavior.FeedCooldown,
		},
		Control: ControlConfig{
			StartRate:      5,
			StartBurst:     10,
			NotifyTimeout:  5 * time.Second,
			NotifyMaxTries: 3,
		},
		Logging: LoggingConfig{
			Sinks:      []string{"console"},
			Level:      "info",
			BufferSize: 1024,
		},
		Observability: observability.Config{
			ServiceName: observability.DefaultServiceName,
		},
	}
}

// Load layers defaults, the YAML file at path and the process environment.
// An empty path reads DefaultFile when it exists.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, nil)
}

// LoadWithEnv is Load with an explicit environment; nil reads the process
// environment.
func LoadWithEnv(path string, environ map[string]string) (*Config, error) {
	cfg := Default()

	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = DefaultFile
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	} else if explicit || !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := ParseEnv(cfg, environ); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseEnv overlays BOTZIE_* environment variables onto target.
func ParseEnv(target any, environ map[string]string) error {
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(target, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks the settings the process cannot run without.
func (c *Config) Validate() error {
	if c.Simulation.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %v", c.Simulation.TickInterval)
	}
	if c.Simulation.BroadcastInterval <= 0 {
		return fmt.Errorf("broadcast interval must be positive, got %v", c.Simulation.BroadcastInterval)
	}
	if c.Simulation.ConnectDelayMin < 0 || c.Simulation.ConnectDelayMax < c.Simulation.ConnectDelayMin {
		return fmt.Errorf("connect delay bounds must satisfy 0 <= min <= max, got [%v, %v]",
			c.Simulation.ConnectDelayMin, c.Simulation.ConnectDelayMax)
	}
	if dsn := strings.TrimSpace(c.LedgerDSN); dsn != "" && dsn != ledger.MemoryDSN {
		return fmt.Errorf("ledger DSN must be %s, got %q", ledger.MemoryDSN, c.LedgerDSN)
	}
	if c.Control.StartRate < 0 {
		return fmt.Errorf("start rate must be non-negative, got %v", c.Control.StartRate)
	}
	for _, sink := range c.Logging.Sinks {
		switch sink {
		case "console", "json", "memory":
		default:
			return fmt.Errorf("invalid log sink: %s (valid: console, json, memory)", sink)
		}
	}
	validLevels := map[string]bool{"": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}
	return nil
}

// Behavior converts the simulation timings for the state machine.
func (c *Config) Behavior() botzie.BehaviorConfig {
	return botzie.BehaviorConfig{
		ConnectDelayMin: c.Simulation.ConnectDelayMin,
		ConnectDelayMax: c.Simulation.ConnectDelayMax,
		FeedCooldown:    c.Simulation.FeedCooldown,
	}
}

// LoggingRouterConfig converts the sink selection for the event router.
func (c *Config) LoggingRouterConfig() logging.Config {
	cfg := logging.DefaultConfig()
	if len(c.Logging.Sinks) > 0 {
		cfg.EnabledSinks = append([]string(nil), c.Logging.Sinks...)
	}
	if c.Logging.BufferSize > 0 {
		cfg.BufferSize = c.Logging.BufferSize
	}
	cfg.MinimumSeverity = logging.ParseSeverity(c.Logging.Level)
	if c.Logging.JSONPath != "" {
		cfg.JSON.FilePath = c.Logging.JSONPath
	}
	return cfg
}
