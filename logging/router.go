package logging

import (
	"context"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"
)

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

// SystemClock reads wall-clock time.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

type Sink interface {
	Write(Event) error
	Close(context.Context) error
}

type NamedSink struct {
	Name string
	Sink Sink
}

// dropReportEvery spaces out fallback warnings while a sink is saturated.
const dropReportEvery = 1000

// Router stamps and filters events on the publishing goroutine and hands
// each one to a queue per sink. Publish never blocks: a sink whose queue is
// full misses the event and the drop is counted.
type Router struct {
	clock    Clock
	min      Severity
	fields   map[string]any
	fallback *log.Logger
	workers  []*sinkWorker

	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
	dropped atomic.Uint64
}

func NewRouter(clock Clock, cfg Config, namedSinks []NamedSink) (*Router, error) {
	if clock == nil {
		clock = SystemClock{}
	}
	queueSize := cfg.BufferSize
	if queueSize <= 0 {
		queueSize = 512
	}
	r := &Router{
		clock:    clock,
		min:      cfg.MinimumSeverity,
		fields:   cfg.CloneFields(),
		fallback: log.New(os.Stderr, "[logging] ", log.LstdFlags),
	}
	for _, named := range namedSinks {
		if named.Sink == nil {
			continue
		}
		w := &sinkWorker{name: named.Name, sink: named.Sink, queue: make(chan Event, queueSize)}
		r.workers = append(r.workers, w)
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			for event := range w.queue {
				if err := w.sink.Write(event); err != nil {
					r.fallback.Printf("sink %s: write %s: %v", w.name, event.Type, err)
				}
			}
		}()
	}
	return r, nil
}

func (r *Router) Publish(ctx context.Context, event Event) {
	if event.Type == "" || event.Severity < r.min {
		return
	}
	if event.TraceID == "" && ctx != nil {
		if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
			event.TraceID = sc.TraceID().String()
		}
	}
	if event.Time.IsZero() {
		event.Time = r.clock.Now()
	}
	event = mergeFields(event, r.fields)

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	for _, w := range r.workers {
		select {
		case w.queue <- cloneForFields(event):
		default:
			if n := r.dropped.Add(1); n%dropReportEvery == 1 {
				r.fallback.Printf("sink %s saturated, %d events dropped so far (latest %s)", w.name, n, event.Type)
			}
		}
	}
}

// Dropped reports how many sink deliveries were skipped on full queues.
func (r *Router) Dropped() uint64 {
	return r.dropped.Load()
}

// Close stops accepting events, lets every sink finish its queue and then
// closes the sinks. It returns ctx.Err() if the queues outlive ctx.
func (r *Router) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	for _, w := range r.workers {
		close(w.queue)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	var firstErr error
	for _, w := range r.workers {
		if err := w.sink.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type sinkWorker struct {
	name  string
	sink  Sink
	queue chan Event
}
