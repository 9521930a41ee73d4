// Package telemetry defines the small logging and metrics capabilities that
// library packages depend on, so they never import the full event router.
package telemetry

import (
	"log"
	"sync"
	"sync/atomic"
)

// Logger exposes the printf-style logging required by library components.
type Logger interface {
	Printf(format string, args ...any)
}

// LoggerFunc adapts functions into the Logger interface.
type LoggerFunc func(format string, args ...any)

// Printf implements Logger for LoggerFunc.
func (f LoggerFunc) Printf(format string, args ...any) {
	if f == nil {
		return
	}
	f(format, args...)
}

// WrapLogger adapts a standard library logger to the Logger interface.
func WrapLogger(logger *log.Logger) Logger {
	return &loggerAdapter{logger: logger}
}

type loggerAdapter struct {
	logger *log.Logger
}

func (l *loggerAdapter) Printf(format string, args ...any) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Printf(format, args...)
}

// Metrics exposes the counter surface components record into.
type Metrics interface {
	Add(key string, delta uint64)
	Store(key string, value uint64)
}

// NopMetrics discards every sample.
func NopMetrics() Metrics {
	return nopMetrics{}
}

type nopMetrics struct{}

func (nopMetrics) Add(string, uint64)   {}
func (nopMetrics) Store(string, uint64) {}

// MapMetrics is a concurrency-safe keyed counter set, enough for tests and
// the diagnostics endpoint.
type MapMetrics struct {
	counters sync.Map // string -> *atomic.Uint64
}

// NewMapMetrics returns an empty counter set.
func NewMapMetrics() *MapMetrics {
	return &MapMetrics{}
}

func (m *MapMetrics) counter(key string) *atomic.Uint64 {
	if v, ok := m.counters.Load(key); ok {
		return v.(*atomic.Uint64)
	}
	v, _ := m.counters.LoadOrStore(key, &atomic.Uint64{})
	return v.(*atomic.Uint64)
}

// Add implements Metrics.
func (m *MapMetrics) Add(key string, delta uint64) {
	m.counter(key).Add(delta)
}

// Store implements Metrics.
func (m *MapMetrics) Store(key string, value uint64) {
	m.counter(key).Store(value)
}

// Value reads a counter, zero when absent.
func (m *MapMetrics) Value(key string) uint64 {
	if v, ok := m.counters.Load(key); ok {
		return v.(*atomic.Uint64).Load()
	}
	return 0
}

// Snapshot copies every counter for serialization.
func (m *MapMetrics) Snapshot() map[string]uint64 {
	out := make(map[string]uint64)
	m.counters.Range(func(k, v any) bool {
		out[k.(string)] = v.(*atomic.Uint64).Load()
		return true
	})
	return out
}
