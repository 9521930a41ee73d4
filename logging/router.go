package logging

import (
	"context"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Clock supplies event timestamps; tests substitute a fixed one.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function into a Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time {
	return f()
}

// SystemClock is the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Sink consumes routed events.
type Sink interface {
	Write(Event) error
	Close(context.Context) error
}

// Router queues published events and drains them to the enabled sinks from a
// single dispatch goroutine. Publishing never blocks: when the queue is full
// the event is dropped and the drop total climbs.
type Router struct {
	cfg      Config
	queue    chan Event
	sinks    map[string]Sink
	clock    Clock
	fallback *log.Logger
	fields   map[string]any

	closed      atomic.Bool
	wg          sync.WaitGroup
	nextSeq     atomic.Uint64
	eventsTotal atomic.Uint64
	dropped     atomic.Uint64
	lastDropLog atomic.Int64
}

// RouterStats reports publish/drop totals for diagnostics.
type RouterStats struct {
	EventsTotal  uint64
	DroppedTotal uint64
}

// NewRouter starts a router draining to the sinks named in cfg.EnabledSinks.
func NewRouter(clock Clock, cfg Config, sinks map[string]Sink) *Router {
	if clock == nil {
		clock = SystemClock{}
	}
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = 512
	}
	enabled := make(map[string]Sink)
	for name, sink := range sinks {
		if sink != nil && cfg.HasSink(name) {
			enabled[name] = sink
		}
	}
	r := &Router{
		cfg:      cfg,
		queue:    make(chan Event, bufferSize),
		sinks:    enabled,
		clock:    clock,
		fallback: log.New(os.Stderr, "[logging] ", log.LstdFlags),
		fields:   cfg.CloneFields(),
	}
	r.wg.Add(1)
	go r.dispatch()
	return r
}

// Publish implements Publisher. Events under the severity floor are skipped;
// a full queue drops rather than stalls the tick loop.
func (r *Router) Publish(_ context.Context, event Event) {
	if r == nil || r.closed.Load() {
		return
	}
	if event.Severity < r.cfg.MinimumSeverity {
		return
	}
	if event.Time.IsZero() {
		event.Time = r.clock.Now()
	}
	event.Seq = r.nextSeq.Add(1)
	if len(r.fields) > 0 {
		merged := make(map[string]any, len(r.fields)+len(event.Extra))
		for k, v := range r.fields {
			merged[k] = v
		}
		for k, v := range event.Extra {
			merged[k] = v
		}
		event.Extra = merged
	}

	select {
	case r.queue <- event:
		r.eventsTotal.Add(1)
	default:
		r.noteDrop()
	}
}

func (r *Router) noteDrop() {
	total := r.dropped.Add(1)
	interval := r.cfg.DropWarnInterval
	if interval <= 0 {
		return
	}
	now := r.clock.Now().UnixNano()
	last := r.lastDropLog.Load()
	if now-last < int64(interval) {
		return
	}
	if r.lastDropLog.CompareAndSwap(last, now) {
		r.fallback.Printf("event queue full, %d events dropped so far", total)
	}
}

func (r *Router) dispatch() {
	defer r.wg.Done()
	for event := range r.queue {
		for name, sink := range r.sinks {
			if err := sink.Write(event); err != nil {
				r.fallback.Printf("sink %s write failed: %v", name, err)
			}
		}
	}
}

// Stats reports publish and drop totals.
func (r *Router) Stats() RouterStats {
	return RouterStats{
		EventsTotal:  r.eventsTotal.Load(),
		DroppedTotal: r.dropped.Load(),
	}
}

// Close drains the queue and closes every sink.
func (r *Router) Close(ctx context.Context) error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(r.queue)
	r.wg.Wait()
	var firstErr error
	for name, sink := range r.sinks {
		if err := sink.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
			r.fallback.Printf("sink %s close failed: %v", name, err)
		}
	}
	return firstErr
}

var _ Publisher = (*Router)(nil)
