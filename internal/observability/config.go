package observability

// Config captures opt-in observability toggles that wire into the server.
type Config struct {
	EnablePprofTrace bool   `yaml:"enablePprofTrace" env:"ENABLE_PPROF_TRACE"`
	OTelEndpoint     string `yaml:"otelEndpoint" env:"OTEL_ENDPOINT"`
	ServiceName      string `yaml:"serviceName" env:"SERVICE_NAME"`
}

// DefaultServiceName names spans when no service name is configured.
const DefaultServiceName = "botzie"

// TracingEnabled reports whether spans are exported.
func (c Config) TracingEnabled() bool {
	return c.OTelEndpoint != ""
}
