// Package resync owns the event vocabulary for client-side reconciliation.
package resync

import (
	"context"

	"emberfall/server/logging"
)

const (
	// EventDivergence is emitted when the local/confirmed position gap
	// crosses the divergence threshold. Observational only.
	EventDivergence logging.EventType = "resync.divergence"
	// EventSnap is emitted when a single implausible gap forces a hard
	// position correction.
	EventSnap logging.EventType = "resync.snap"
	// EventDesyncWarning is emitted when broadcast silence passes the
	// watchdog threshold; extra carries whether the warning is raising or
	// clearing.
	EventDesyncWarning logging.EventType = "resync.desync_warning"
	// EventForcedResync is emitted when the post-warning broadcast
	// overwrites the full local state.
	EventForcedResync logging.EventType = "resync.forced"
)

// DistancePayload carries the measured divergence in world units.
type DistancePayload struct {
	Distance float64 `json:"distance"`
}

// Divergence publishes an observational divergence sample.
func Divergence(ctx context.Context, pub logging.Publisher, id uint32, distance float64) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventDivergence,
		Actor:    logging.PlayerRef(id),
		Severity: logging.SeverityDebug,
		Category: logging.CategoryResync,
		Payload:  DistancePayload{Distance: distance},
	})
}

// Snap publishes a hard position correction forced by a single implausible
// gap.
func Snap(ctx context.Context, pub logging.Publisher, id uint32, distance float64) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSnap,
		Actor:    logging.PlayerRef(id),
		Severity: logging.SeverityInfo,
		Category: logging.CategoryResync,
		Payload:  DistancePayload{Distance: distance},
	})
}

// DesyncWarning publishes the watchdog flipping on or off.
func DesyncWarning(ctx context.Context, pub logging.Publisher, id uint32, active bool) {
	if pub == nil {
		return
	}
	severity := logging.SeverityWarn
	if !active {
		severity = logging.SeverityInfo
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventDesyncWarning,
		Actor:    logging.PlayerRef(id),
		Severity: severity,
		Category: logging.CategoryResync,
		Extra:    map[string]any{"active": active},
	})
}

// Forced publishes a completed forced resynchronization.
func Forced(ctx context.Context, pub logging.Publisher, id uint32) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventForcedResync,
		Actor:    logging.PlayerRef(id),
		Severity: logging.SeverityInfo,
		Category: logging.CategoryResync,
	})
}
