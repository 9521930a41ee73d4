// Package network owns the event vocabulary for transport-level conditions.
package network

import (
	"context"

	"emberfall/server/logging"
)

const (
	// EventDecodeFailed is emitted when an inbound datagram fails to parse
	// and is dropped.
	EventDecodeFailed logging.EventType = "network.decode_failed"
	// EventReliableRetry is emitted on each retransmission of a reliable
	// message.
	EventReliableRetry logging.EventType = "network.reliable_retry"
	// EventReliableDropped is emitted when a reliable message exhausts its
	// retries and is abandoned quietly.
	EventReliableDropped logging.EventType = "network.reliable_dropped"
)

// DecodePayload describes a dropped datagram.
type DecodePayload struct {
	MsgType uint8  `json:"msgType"`
	Size    int    `json:"size"`
	Reason  string `json:"reason"`
}

// DecodeFailed publishes a debug event for a datagram that did not parse.
func DecodeFailed(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload DecodePayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventDecodeFailed,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}

// ReliablePayload describes the state of a reliable send.
type ReliablePayload struct {
	Seq     uint32 `json:"seq"`
	Retries int    `json:"retries,omitempty"`
}

// ReliableRetry publishes a debug event for a retransmission.
func ReliableRetry(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload ReliablePayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventReliableRetry,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}

// ReliableDropped publishes the warning required by the give-up-quietly
// contract: the drop is logged, never surfaced as an error.
func ReliableDropped(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload ReliablePayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventReliableDropped,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}
