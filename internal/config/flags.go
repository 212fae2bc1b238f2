package config

import "github.com/spf13/pflag"

type flagBinding struct {
	name  string
	apply func(dst, src *Config)
}

// Flags holds command-line overrides. Only flags the user actually set are
// applied, so a flag default never masks a file or environment value.
type Flags struct {
	values   Config
	bindings []flagBinding
}

// BindFlags registers the override flags on fs.
func BindFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{values: *Default()}
	v := &f.values

	fs.StringVar(&v.ControlAddr, "control-addr", v.ControlAddr, "control API listen address")
	f.bind("control-addr", func(dst, src *Config) { dst.ControlAddr = src.ControlAddr })

	fs.StringVar(&v.EngineAddr, "engine-addr", v.EngineAddr, "engine listen address")
	f.bind("engine-addr", func(dst, src *Config) { dst.EngineAddr = src.EngineAddr })

	fs.StringVar(&v.EngineURL, "engine-url", v.EngineURL, "engine base URL used by a standalone control API")
	f.bind("engine-url", func(dst, src *Config) { dst.EngineURL = src.EngineURL })

	fs.StringVar(&v.LedgerDSN, "ledger", v.LedgerDSN, "session ledger DSN (only :memory: is accepted)")
	f.bind("ledger", func(dst, src *Config) { dst.LedgerDSN = src.LedgerDSN })

	fs.DurationVar(&v.Simulation.TickInterval, "tick", v.Simulation.TickInterval, "per-bot simulation period")
	f.bind("tick", func(dst, src *Config) { dst.Simulation.TickInterval = src.Simulation.TickInterval })

	fs.DurationVar(&v.Simulation.BroadcastInterval, "broadcast", v.Simulation.BroadcastInterval, "snapshot broadcast period")
	f.bind("broadcast", func(dst, src *Config) { dst.Simulation.BroadcastInterval = src.Simulation.BroadcastInterval })

	fs.Int64Var(&v.Simulation.Seed, "seed", v.Simulation.Seed, "random seed (0 picks one)")
	f.bind("seed", func(dst, src *Config) { dst.Simulation.Seed = src.Simulation.Seed })

	fs.StringSliceVar(&v.Logging.Sinks, "log-sinks", v.Logging.Sinks, "event sinks: console, json, memory")
	f.bind("log-sinks", func(dst, src *Config) { dst.Logging.Sinks = append([]string(nil), src.Logging.Sinks...) })

	fs.StringVar(&v.Logging.Level, "log-level", v.Logging.Level, "minimum event severity")
	f.bind("log-level", func(dst, src *Config) { dst.Logging.Level = src.Logging.Level })

	fs.StringVar(&v.Logging.JSONPath, "log-json-path", v.Logging.JSONPath, "JSON sink output file")
	f.bind("log-json-path", func(dst, src *Config) { dst.Logging.JSONPath = src.Logging.JSONPath })

	fs.BoolVar(&v.Observability.EnablePprofTrace, "pprof", v.Observability.EnablePprofTrace, "mount /debug/pprof handlers")
	f.bind("pprof", func(dst, src *Config) { dst.Observability.EnablePprofTrace = src.Observability.EnablePprofTrace })

	fs.StringVar(&v.Observability.OTelEndpoint, "otel-endpoint", v.Observability.OTelEndpoint, "OTLP/HTTP trace collector endpoint")
	f.bind("otel-endpoint", func(dst, src *Config) { dst.Observability.OTelEndpoint = src.Observability.OTelEndpoint })

	return f
}

func (f *Flags) bind(name string, apply func(dst, src *Config)) {
	f.bindings = append(f.bindings, flagBinding{name: name, apply: apply})
}

// Apply copies the flags set on fs into cfg and revalidates.
func (f *Flags) Apply(fs *pflag.FlagSet, cfg *Config) error {
	for _, b := range f.bindings {
		if fs.Changed(b.name) {
			b.apply(cfg, &f.values)
		}
	}
	return cfg.Validate()
}
