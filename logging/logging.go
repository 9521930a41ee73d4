// Package logging is the structured event pipeline shared by the server and
// the client tooling. Components publish typed events; a router fans them out
// asynchronously to the configured sinks. Helper subpackages (network,
// lifecycle, resync) own the event vocabulary for their domain so call sites
// never build raw events by hand.
package logging

import (
	"context"
	"strconv"
	"time"
)

// EventType names an event, namespaced by domain ("network.decode_failed").
type EventType string

// Severity orders events for filtering.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarn
	SeverityError
)

// EntityKind classifies the actor an event is about.
type EntityKind string

const (
	EntityKindUnknown    EntityKind = "unknown"
	EntityKindPlayer     EntityKind = "player"
	EntityKindEntity     EntityKind = "entity"
	EntityKindProjectile EntityKind = "projectile"
	EntityKindConnection EntityKind = "connection"
	EntityKindWorld      EntityKind = "world"
)

// EntityRef identifies the subject of an event.
type EntityRef struct {
	ID   string     `json:"id"`
	Kind EntityKind `json:"kind"`
}

// Event is one structured log record.
type Event struct {
	Type     EventType      `json:"type"`
	Seq      uint64         `json:"seq"`
	Time     time.Time      `json:"time"`
	Actor    EntityRef      `json:"actor"`
	Severity Severity       `json:"severity"`
	Category string         `json:"category,omitempty"`
	Payload  any            `json:"payload,omitempty"`
	Extra    map[string]any `json:"extra,omitempty"`
}

// Event categories.
const (
	CategoryNetwork   = "network"
	CategoryLifecycle = "lifecycle"
	CategoryResync    = "resync"
	CategorySystem    = "system"
)

// Publisher accepts events for routing.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// PublisherFunc adapts a function into a Publisher.
type PublisherFunc func(ctx context.Context, event Event)

// Publish implements Publisher.
func (f PublisherFunc) Publish(ctx context.Context, event Event) {
	if f == nil {
		return
	}
	f(ctx, event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) {}

// NopPublisher discards every event.
func NopPublisher() Publisher {
	return nopPublisher{}
}

// PlayerRef builds an EntityRef for a participant id.
func PlayerRef(id uint32) EntityRef {
	return EntityRef{ID: formatID(id), Kind: EntityKindPlayer}
}

// EntityRefFor builds an EntityRef for an NPC id.
func EntityRefFor(id uint32) EntityRef {
	return EntityRef{ID: formatID(id), Kind: EntityKindEntity}
}

// ConnRef builds an EntityRef for a transport address.
func ConnRef(addr string) EntityRef {
	return EntityRef{ID: addr, Kind: EntityKindConnection}
}

func formatID(id uint32) string {
	return strconv.FormatUint(uint64(id), 10)
}
