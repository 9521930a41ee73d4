// Package sinks provides the built-in logging sinks: console for humans,
// batching JSON for ingestion, memory for tests.
package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"

	"emberfall/server/logging"
)

// ConsoleSink writes one line per event through a standard logger.
type ConsoleSink struct {
	logger *log.Logger
}

// NewConsoleSink wraps w with the default timestamp flags.
func NewConsoleSink(w io.Writer) *ConsoleSink {
	return &ConsoleSink{logger: log.New(w, "", log.LstdFlags)}
}

// Write implements logging.Sink.
func (s *ConsoleSink) Write(event logging.Event) error {
	if s.logger == nil {
		return nil
	}
	s.logger.Printf("[%s] severity=%s actor=%s%s", event.Type, severityName(event.Severity), formatEntity(event.Actor), formatPayload(event.Payload))
	return nil
}

// Close implements logging.Sink.
func (s *ConsoleSink) Close(context.Context) error {
	return nil
}

func severityName(sev logging.Severity) string {
	switch sev {
	case logging.SeverityDebug:
		return "debug"
	case logging.SeverityInfo:
		return "info"
	case logging.SeverityWarn:
		return "warn"
	case logging.SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

func formatEntity(ref logging.EntityRef) string {
	if ref.ID == "" {
		return string(ref.Kind)
	}
	if ref.Kind == "" {
		return ref.ID
	}
	return fmt.Sprintf("%s:%s", ref.Kind, ref.ID)
}

func formatPayload(payload any) string {
	if payload == nil {
		return ""
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf(" payload=%v", payload)
	}
	return " payload=" + string(data)
}
