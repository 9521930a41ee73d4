package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"emberfall/server/logging"
)

// JSONSink appends newline-delimited JSON events to a file, flushing either
// when the batch fills or when the flush interval elapses.
type JSONSink struct {
	mu      sync.Mutex
	file    *os.File
	batch   [][]byte
	max     int
	ticker  *time.Ticker
	done    chan struct{}
	stopped sync.Once
}

// NewJSONSink opens (or creates) the file at cfg.FilePath for appending.
func NewJSONSink(cfg logging.JSONConfig) (*JSONSink, error) {
	if cfg.FilePath == "" {
		return nil, fmt.Errorf("json sink: file path required")
	}
	file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("json sink: open %s: %w", cfg.FilePath, err)
	}
	maxBatch := cfg.MaxBatch
	if maxBatch <= 0 {
		maxBatch = 32
	}
	interval := cfg.FlushInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	s := &JSONSink{
		file:   file,
		batch:  make([][]byte, 0, maxBatch),
		max:    maxBatch,
		ticker: time.NewTicker(interval),
		done:   make(chan struct{}),
	}
	go s.flushLoop()
	return s, nil
}

// Write implements logging.Sink.
func (s *JSONSink) Write(event logging.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("json sink: marshal event: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batch = append(s.batch, data)
	if len(s.batch) >= s.max {
		return s.flushLocked()
	}
	return nil
}

func (s *JSONSink) flushLoop() {
	for {
		select {
		case <-s.ticker.C:
			s.mu.Lock()
			s.flushLocked()
			s.mu.Unlock()
		case <-s.done:
			return
		}
	}
}

func (s *JSONSink) flushLocked() error {
	if len(s.batch) == 0 {
		return nil
	}
	var firstErr error
	for _, line := range s.batch {
		if _, err := s.file.Write(append(line, '\n')); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.batch = s.batch[:0]
	return firstErr
}

// Close implements logging.Sink, flushing what remains.
func (s *JSONSink) Close(context.Context) error {
	var err error
	s.stopped.Do(func() {
		s.ticker.Stop()
		close(s.done)
		s.mu.Lock()
		err = s.flushLocked()
		if cerr := s.file.Close(); err == nil {
			err = cerr
		}
		s.mu.Unlock()
	})
	return err
}
