package telemetry

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func TestWrapLoggerWritesThroughStandardLogger(t *testing.T) {
	var buf bytes.Buffer
	std := log.New(&buf, "", 0)

	logger := WrapLogger(std)
	logger.Printf("hello %s", "swarm")

	if got := strings.TrimSpace(buf.String()); got != "hello swarm" {
		t.Fatalf("unexpected output %q", got)
	}
	if StandardLogger(logger) != std {
		t.Fatalf("expected StandardLogger to expose the wrapped logger")
	}
}

func TestLoggerFuncNilIsSafe(t *testing.T) {
	var fn LoggerFunc
	fn.Printf("ignored %d", 1)
}

func TestStandardLoggerFallsBackToDefault(t *testing.T) {
	if StandardLogger(Discard()) != log.Default() {
		t.Fatalf("expected default logger fallback")
	}
}
