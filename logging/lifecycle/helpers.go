// Package lifecycle owns the event vocabulary for session membership.
package lifecycle

import (
	"context"

	"emberfall/server/logging"
)

const (
	EventJoined      logging.EventType = "lifecycle.joined"
	EventLeft        logging.EventType = "lifecycle.left"
	EventServerFull  logging.EventType = "lifecycle.server_full"
	EventHostChanged logging.EventType = "lifecycle.host_changed"
	EventEvicted     logging.EventType = "lifecycle.evicted"
	EventRestart     logging.EventType = "lifecycle.restart"
)

// Joined publishes a join with the assigned id.
func Joined(ctx context.Context, pub logging.Publisher, id uint32) {
	publish(ctx, pub, logging.Event{
		Type:     EventJoined,
		Actor:    logging.PlayerRef(id),
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
	})
}

// Left publishes a voluntary leave.
func Left(ctx context.Context, pub logging.Publisher, id uint32) {
	publish(ctx, pub, logging.Event{
		Type:     EventLeft,
		Actor:    logging.PlayerRef(id),
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
	})
}

// ServerFull publishes a rejected join.
func ServerFull(ctx context.Context, pub logging.Publisher, addr string) {
	publish(ctx, pub, logging.Event{
		Type:     EventServerFull,
		Actor:    logging.ConnRef(addr),
		Severity: logging.SeverityWarn,
		Category: logging.CategoryLifecycle,
	})
}

// HostPayload carries the advisory host and simulation-authority ids.
type HostPayload struct {
	HostID      uint32 `json:"hostId"`
	AuthorityID uint32 `json:"authorityId"`
}

// HostChanged publishes a host migration.
func HostChanged(ctx context.Context, pub logging.Publisher, payload HostPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventHostChanged,
		Actor:    logging.PlayerRef(payload.HostID),
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
	})
}

// Evicted publishes a stale-connection eviction.
func Evicted(ctx context.Context, pub logging.Publisher, id uint32, addr string) {
	publish(ctx, pub, logging.Event{
		Type:     EventEvicted,
		Actor:    logging.PlayerRef(id),
		Severity: logging.SeverityWarn,
		Category: logging.CategoryLifecycle,
		Extra:    map[string]any{"addr": addr},
	})
}

// Restart publishes a session restart with its reason code.
func Restart(ctx context.Context, pub logging.Publisher, reason uint8) {
	publish(ctx, pub, logging.Event{
		Type:     EventRestart,
		Actor:    logging.EntityRef{Kind: logging.EntityKindWorld},
		Severity: logging.SeverityWarn,
		Category: logging.CategoryLifecycle,
		Extra:    map[string]any{"reason": reason},
	})
}

func publish(ctx context.Context, pub logging.Publisher, event logging.Event) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, event)
}
