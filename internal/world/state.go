// Package world holds the authoritative session state: fixed-capacity slot
// tables for players, NPC entities, and projectiles, the id allocators, and
// the host/authority designation. The State is owned by the server tick loop
// alone; clients never touch it directly, they submit intents that the owner
// validates and applies. No locking happens here.
package world

import (
	"errors"

	"emberfall/server/internal/proto"
)

var (
	// ErrServerFull is returned when a join finds no free player slot.
	ErrServerFull = errors.New("world: server full")
	// ErrTableFull is returned when an entity or projectile table has no
	// free slot.
	ErrTableFull = errors.New("world: slot table full")
	// ErrUnknownID is returned when an intent references an id with no
	// live slot.
	ErrUnknownID = errors.New("world: unknown id")
)

// NoHost is the host id meaning no participant currently holds the role.
const NoHost uint32 = 0

// Config sizes the slot tables.
type Config struct {
	MaxPlayers     int
	MaxEntities    int
	MaxProjectiles int
	// Dedicated pins the entity-simulation authority to the server
	// instead of delegating it to the current host.
	Dedicated bool
}

// DefaultConfig returns the capacities used by a standard session.
func DefaultConfig() Config {
	return Config{MaxPlayers: 16, MaxEntities: 64, MaxProjectiles: 128}
}

// State is the single source of truth for a session. Slot indices are reused
// after release; ids are monotonic and never reused within a session.
type State struct {
	cfg Config

	players     []proto.PlayerRecord
	entities    []proto.EntityRecord
	projectiles []proto.ProjectileRecord

	playerIndex     map[uint32]int
	entityIndex     map[uint32]int
	projectileIndex map[uint32]int

	nextPlayerID uint32
	nextEntityID uint32

	// hostID is the advisory joined-first marker. authorityID is the
	// participant simulating NPCs; the two coincide in peer-hosted
	// sessions and diverge when the server keeps simulation for itself.
	hostID      uint32
	authorityID uint32

	seq uint32
}

// NewState builds an empty session with the given capacities.
func NewState(cfg Config) *State {
	if cfg.MaxPlayers <= 0 {
		cfg.MaxPlayers = DefaultConfig().MaxPlayers
	}
	if cfg.MaxEntities <= 0 {
		cfg.MaxEntities = DefaultConfig().MaxEntities
	}
	if cfg.MaxProjectiles <= 0 {
		cfg.MaxProjectiles = DefaultConfig().MaxProjectiles
	}
	return &State{
		cfg:             cfg,
		players:         make([]proto.PlayerRecord, cfg.MaxPlayers),
		entities:        make([]proto.EntityRecord, cfg.MaxEntities),
		projectiles:     make([]proto.ProjectileRecord, cfg.MaxProjectiles),
		playerIndex:     make(map[uint32]int),
		entityIndex:     make(map[uint32]int),
		projectileIndex: make(map[uint32]int),
		nextPlayerID:    1,
		nextEntityID:    1,
	}
}

// Seq reports the world sequence. It increments on every state-affecting
// operation so receivers can discard stale or duplicate broadcasts.
func (s *State) Seq() uint32 {
	return s.seq
}

func (s *State) bump() {
	s.seq++
}

// Host returns the advisory host id and the entity-simulation authority id.
func (s *State) Host() (hostID, authorityID uint32) {
	return s.hostID, s.authorityID
}

// HostChange describes a host/authority reassignment that must be broadcast.
type HostChange struct {
	HostID      uint32
	AuthorityID uint32
}

// Join claims a free player slot and allocates a fresh id. The id field of
// the requested record is ignored. The first successful join becomes host.
// A full server is a rejectable condition, not a fault.
func (s *State) Join(rec proto.PlayerRecord) (uint32, *HostChange, error) {
	slot := -1
	for i := range s.players {
		if s.players[i].Active == 0 {
			slot = i
			break
		}
	}
	if slot < 0 {
		return 0, nil, ErrServerFull
	}

	id := s.nextPlayerID
	s.nextPlayerID++

	rec.ID = id
	rec.Active = 1
	s.players[slot] = rec
	s.playerIndex[id] = slot
	s.bump()

	var change *HostChange
	if s.hostID == NoHost {
		s.hostID = id
		if !s.cfg.Dedicated {
			s.authorityID = id
		}
		change = &HostChange{HostID: s.hostID, AuthorityID: s.authorityID}
	}
	return id, change, nil
}

// ApplyMove overwrites the stored snapshot for the sender. Movement is
// accepted unconditionally: physical validation is a declared trust boundary
// of this design, not an oversight.
func (s *State) ApplyMove(rec proto.PlayerRecord) error {
	slot, ok := s.playerIndex[rec.ID]
	if !ok {
		return ErrUnknownID
	}
	stored := &s.players[slot]
	stored.Pos = rec.Pos
	stored.Yaw = rec.Yaw
	stored.State = rec.State
	stored.CombatMode = rec.CombatMode
	stored.Class = rec.Class
	stored.Health = rec.Health
	stored.AnimName = rec.AnimName
	s.bump()
	return nil
}

// Leave releases the player's slot. The slot becomes immediately reusable;
// the id is retired for the session. If the leaver held the host role the
// lowest remaining id inherits it and the returned change must be broadcast.
func (s *State) Leave(id uint32) (*HostChange, error) {
	slot, ok := s.playerIndex[id]
	if !ok {
		return nil, ErrUnknownID
	}
	s.players[slot] = proto.PlayerRecord{}
	delete(s.playerIndex, id)
	s.bump()

	if s.hostID != id {
		return nil, nil
	}
	s.hostID = s.lowestPlayerID()
	if !s.cfg.Dedicated {
		s.authorityID = s.hostID
	}
	return &HostChange{HostID: s.hostID, AuthorityID: s.authorityID}, nil
}

func (s *State) lowestPlayerID() uint32 {
	lowest := NoHost
	for id := range s.playerIndex {
		if lowest == NoHost || id < lowest {
			lowest = id
		}
	}
	return lowest
}

// Player looks up a live player snapshot by id.
func (s *State) Player(id uint32) (proto.PlayerRecord, bool) {
	slot, ok := s.playerIndex[id]
	if !ok {
		return proto.PlayerRecord{}, false
	}
	return s.players[slot], true
}

// PlayerCount reports the number of live players.
func (s *State) PlayerCount() int {
	return len(s.playerIndex)
}

// SnapshotPlayers copies the live player records for a broadcast.
func (s *State) SnapshotPlayers() []proto.PlayerRecord {
	out := make([]proto.PlayerRecord, 0, len(s.playerIndex))
	for i := range s.players {
		if s.players[i].Active != 0 {
			out = append(out, s.players[i])
		}
	}
	return out
}

// DamagePlayer applies damage to a player, clamping health at zero, and
// returns the updated record for the damage broadcast.
func (s *State) DamagePlayer(rec proto.DamageRecord) (proto.PlayerRecord, error) {
	slot, ok := s.playerIndex[rec.TargetID]
	if !ok {
		return proto.PlayerRecord{}, ErrUnknownID
	}
	stored := &s.players[slot]
	stored.Health -= rec.Damage
	if stored.Health < 0 {
		stored.Health = 0
	}
	s.bump()
	return *stored, nil
}

// Reset releases every slot and clears the host designation while keeping
// the id allocators and world sequence monotonic, so a restarted session
// never hands out an id or sequence an old datagram could collide with.
func (s *State) Reset() {
	for i := range s.players {
		s.players[i] = proto.PlayerRecord{}
	}
	for i := range s.entities {
		s.entities[i] = proto.EntityRecord{}
	}
	for i := range s.projectiles {
		s.projectiles[i] = proto.ProjectileRecord{}
	}
	s.playerIndex = make(map[uint32]int)
	s.entityIndex = make(map[uint32]int)
	s.projectileIndex = make(map[uint32]int)
	s.hostID = NoHost
	if !s.cfg.Dedicated {
		s.authorityID = NoHost
	}
	s.bump()
}
