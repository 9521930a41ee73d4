// Package reconcile implements the client-side reconciliation engine: an
// optimistic local state advanced immediately from input, a server-confirmed
// shadow of it, snapshots of every other participant, and the two independent
// correction paths that pull the optimistic state back toward the authority
// when prediction and truth drift apart.
package reconcile

import (
	"math"
	"time"

	"emberfall/server/internal/game"
	"emberfall/server/internal/proto"
)

const (
	// DivergenceThreshold is the local/confirmed position gap that fires a
	// divergence event. The event is observational; it never moves the
	// player by itself.
	DivergenceThreshold = 1.0
	// SnapThreshold is the single-sample gap large enough to be
	// implausible, forcing an immediate hard position correction. Kept
	// separate from DivergenceThreshold: the two address different
	// failure modes and are tuned independently.
	SnapThreshold = 3.0
	// DesyncWarningAfter is how long the engine tolerates broadcast
	// silence before warning and arming a full forced resync.
	DesyncWarningAfter = 500 * time.Millisecond
)

// Phase is the connection state machine. Spectating is an orthogonal
// sub-mode of Connected, entered on first contact and left on join.
type Phase int

const (
	PhaseDisconnected Phase = iota
	PhaseConnecting
	PhaseConnected
)

// Engine reconciles optimistic local state against authoritative broadcasts.
// It owns no socket and never blocks; the client tick loop feeds it decoded
// messages and a clock.
type Engine struct {
	phase      Phase
	spectating bool
	localID    uint32

	local         proto.PlayerRecord
	confirmed     proto.PlayerRecord
	haveConfirmed bool

	remotes  map[uint32]proto.PlayerRecord
	entities map[uint32]proto.EntityRecord

	lastWorldSeq uint32
	haveSeq      bool

	lastBroadcast  time.Time
	haveBroadcast  bool
	desyncWarned   bool
	recoveryNeeded bool

	hostID      uint32
	authorityID uint32

	latency latencyTracker

	events   game.Events
	registry *game.Registry

	// OnDivergence observes each accepted divergence sample above the
	// threshold. OnSnap observes each hard position correction.
	// OnDesyncWarning flips the UI-visible warning indicator.
	OnDivergence     func(distance float64)
	OnSnap           func(distance float64)
	OnDesyncWarning  func(active bool)
	OnForcedResync   func()
	ForcedResyncs    uint64
	DivergenceEvents uint64
}

// NewEngine builds a disconnected engine. events must not be nil; registry
// may be nil when no render objects are bound (headless clients).
func NewEngine(events game.Events, registry *game.Registry) *Engine {
	if events == nil {
		events = game.NopEvents{}
	}
	return &Engine{
		events:   events,
		registry: registry,
		remotes:  make(map[uint32]proto.PlayerRecord),
		entities: make(map[uint32]proto.EntityRecord),
	}
}

// Phase reports the connection phase.
func (e *Engine) Phase() Phase {
	return e.phase
}

// Spectating reports whether the engine is in receive-only mode.
func (e *Engine) Spectating() bool {
	return e.spectating
}

// LocalID reports the id the authority assigned, zero while spectating.
func (e *Engine) LocalID() uint32 {
	return e.localID
}

// StartConnecting marks the connection attempt in progress.
func (e *Engine) StartConnecting() {
	e.phase = PhaseConnecting
}

// FirstContact moves to Connected in spectating mode: broadcasts flow in but
// no local participant exists until an explicit join completes.
func (e *Engine) FirstContact(now time.Time) {
	if e.phase == PhaseConnected {
		return
	}
	e.phase = PhaseConnected
	e.spectating = true
	e.lastBroadcast = now
	e.haveBroadcast = true
}

// JoinConfirmed leaves spectating mode with the id the authority assigned.
func (e *Engine) JoinConfirmed(assignedID, hostID uint32, now time.Time) {
	e.phase = PhaseConnected
	e.spectating = false
	e.localID = assignedID
	e.local.ID = assignedID
	e.local.Active = 1
	// Peer-hosted sessions put simulation authority on the host. A
	// dedicated server corrects this with its first HostChange.
	e.hostID = hostID
	e.authorityID = hostID
	e.lastBroadcast = now
	e.haveBroadcast = true
}

// Disconnect resets to the idle state, dropping all tracked snapshots but
// keeping the registered observation hooks.
func (e *Engine) Disconnect() {
	fresh := NewEngine(e.events, e.registry)
	fresh.OnDivergence = e.OnDivergence
	fresh.OnSnap = e.OnSnap
	fresh.OnDesyncWarning = e.OnDesyncWarning
	fresh.OnForcedResync = e.OnForcedResync
	*e = *fresh
}

// SubmitLocalIntent applies local input optimistically and immediately,
// independent of any network round trip.
func (e *Engine) SubmitLocalIntent(pos proto.Vec3, yaw float32, state uint8, anim string, health float32) {
	e.local.Pos = pos
	e.local.Yaw = yaw
	e.local.State = state
	e.local.AnimName = anim
	e.local.Health = health
}

// LocalState returns the current optimistic record, the one the tick loop
// serializes into Move messages.
func (e *Engine) LocalState() proto.PlayerRecord {
	return e.local
}

// ConfirmedState returns the last authority-confirmed snapshot for a
// participant: the shadow copy for the local id, the remote snapshot
// otherwise.
func (e *Engine) ConfirmedState(id uint32) (proto.PlayerRecord, bool) {
	if id == e.localID && e.localID != 0 {
		if !e.haveConfirmed {
			return proto.PlayerRecord{}, false
		}
		return e.confirmed, true
	}
	rec, ok := e.remotes[id]
	return rec, ok
}

// SetHost records a host migration and surfaces it to the game.
func (e *Engine) SetHost(hostID, authorityID uint32) {
	if e.hostID == hostID && e.authorityID == authorityID {
		return
	}
	e.hostID = hostID
	e.authorityID = authorityID
	e.events.OnHostChanged(hostID, authorityID)
}

// Host reports the advisory host and the entity-simulation authority.
func (e *Engine) Host() (hostID, authorityID uint32) {
	return e.hostID, e.authorityID
}

// IsAuthority reports whether this participant simulates NPCs.
func (e *Engine) IsAuthority() bool {
	return e.localID != 0 && e.localID == e.authorityID
}

// ApplyStateBroadcast ingests a full world broadcast. Acceptance is strictly
// monotonic in the world sequence; stale and duplicate broadcasts are
// discarded and reported as not accepted.
func (e *Engine) ApplyStateBroadcast(worldSeq uint32, players []proto.PlayerRecord, now time.Time) bool {
	if e.haveSeq && worldSeq <= e.lastWorldSeq {
		return false
	}
	e.lastWorldSeq = worldSeq
	e.haveSeq = true
	e.lastBroadcast = now
	e.haveBroadcast = true

	forced := e.recoveryNeeded
	e.recoveryNeeded = false
	if e.desyncWarned {
		e.desyncWarned = false
		if e.OnDesyncWarning != nil {
			e.OnDesyncWarning(false)
		}
	}

	seen := make(map[uint32]bool, len(players))
	for _, rec := range players {
		if rec.Active == 0 {
			continue
		}
		if rec.ID == e.localID && e.localID != 0 {
			e.reconcileLocal(rec, forced)
			continue
		}
		seen[rec.ID] = true
		if _, known := e.remotes[rec.ID]; !known {
			e.events.OnParticipantJoined(rec.ID)
		}
		e.remotes[rec.ID] = rec
	}
	for id := range e.remotes {
		if !seen[id] {
			delete(e.remotes, id)
			e.events.OnParticipantLeft(id)
		}
	}

	if forced {
		e.ForcedResyncs++
		e.forceEntityResync()
		if e.OnForcedResync != nil {
			e.OnForcedResync()
		}
	}
	return true
}

// reconcileLocal updates the confirmed shadow and applies the correction
// policy: a forced resync overwrites position, health, and rotation outright;
// otherwise only an implausibly large single-sample gap snaps position, and
// a merely notable gap fires an observational event.
func (e *Engine) reconcileLocal(rec proto.PlayerRecord, forced bool) {
	e.confirmed = rec
	e.haveConfirmed = true

	dist := distance(e.local.Pos, rec.Pos)
	switch {
	case forced:
		e.local.Pos = rec.Pos
		e.local.Health = rec.Health
		e.local.Yaw = rec.Yaw
	case dist > SnapThreshold:
		e.local.Pos = rec.Pos
		if e.OnSnap != nil {
			e.OnSnap(dist)
		}
	case dist > DivergenceThreshold:
		e.DivergenceEvents++
		if e.OnDivergence != nil {
			e.OnDivergence(dist)
		}
	}
}

// forceEntityResync reapplies the full tracked network state of every NPC,
// bypassing smoothing for this one frame.
func (e *Engine) forceEntityResync() {
	for id, rec := range e.entities {
		e.applyEntity(id, rec, true)
	}
}

// ApplyEntityState ingests an NPC broadcast. The broadcast carries the full
// live set, so entities absent from it are dropped.
func (e *Engine) ApplyEntityState(entities []proto.EntityRecord, now time.Time) {
	e.lastBroadcast = now
	e.haveBroadcast = true

	seen := make(map[uint32]bool, len(entities))
	for _, rec := range entities {
		if rec.ID == 0 {
			continue
		}
		seen[rec.ID] = true
		e.entities[rec.ID] = rec
		e.applyEntity(rec.ID, rec, false)
	}
	for id := range e.entities {
		if !seen[id] {
			delete(e.entities, id)
			if e.registry != nil {
				e.registry.Unregister(id)
			}
		}
	}
}

func (e *Engine) applyEntity(id uint32, rec proto.EntityRecord, hard bool) {
	e.events.OnEntityUpdated(id, rec, hard)
	if e.registry == nil {
		return
	}
	if obj, ok := e.registry.Lookup(id); ok {
		obj.ApplyState(game.Snapshot{
			Pos:    rec.Pos,
			Yaw:    rec.Yaw,
			State:  rec.State,
			Health: rec.Health,
		}, hard)
	}
}

// Entity returns the last tracked snapshot for an NPC.
func (e *Engine) Entity(id uint32) (proto.EntityRecord, bool) {
	rec, ok := e.entities[id]
	return rec, ok
}

// Tick drives the desynchronization watchdog. Once broadcast silence passes
// the warning threshold the warning raises once and the recovery flag arms;
// the next accepted broadcast then performs the forced resync.
func (e *Engine) Tick(now time.Time) {
	if e.phase != PhaseConnected || !e.haveBroadcast || e.desyncWarned {
		return
	}
	if now.Sub(e.lastBroadcast) > DesyncWarningAfter {
		e.desyncWarned = true
		e.recoveryNeeded = true
		if e.OnDesyncWarning != nil {
			e.OnDesyncWarning(true)
		}
	}
}

// Desynchronized reports whether the warning indicator is active.
func (e *Engine) Desynchronized() bool {
	return e.desyncWarned
}

func distance(a, b proto.Vec3) float64 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	dz := float64(a.Z - b.Z)
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
