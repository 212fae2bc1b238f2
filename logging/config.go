package logging

import "time"

type Config struct {
	EnabledSinks []string `yaml:"sinks"`
	// BufferSize bounds the queue of each sink.
	BufferSize      int            `yaml:"bufferSize"`
	MinimumSeverity Severity       `yaml:"-"`
	Fields          map[string]any `yaml:"fields"`
	JSON            JSONConfig     `yaml:"json"`
}

type JSONConfig struct {
	FilePath      string        `yaml:"filePath"`
	FlushInterval time.Duration `yaml:"flushInterval"`
}

func DefaultConfig() Config {
	return Config{
		EnabledSinks:    []string{"console"},
		BufferSize:      512,
		MinimumSeverity: SeverityInfo,
		JSON: JSONConfig{
			FlushInterval: 2 * time.Second,
		},
	}
}

func (c Config) HasSink(name string) bool {
	for _, s := range c.EnabledSinks {
		if s == name {
			return true
		}
	}
	return false
}

func (c Config) CloneFields() map[string]any {
	if len(c.Fields) == 0 {
		return nil
	}
	cloned := make(map[string]any, len(c.Fields))
	for k, v := range c.Fields {
		cloned[k] = v
	}
	return cloned
}
