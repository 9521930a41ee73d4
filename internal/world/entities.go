package world

import "emberfall/server/internal/proto"

// RegisterEntity claims an entity slot and allocates a fresh id from the
// entity id space (separate from player ids). Used when the server itself
// simulates NPCs.
func (s *State) RegisterEntity(rec proto.EntityRecord) (uint32, error) {
	slot := -1
	for i := range s.entities {
		if s.entities[i].ID == 0 {
			slot = i
			break
		}
	}
	if slot < 0 {
		return 0, ErrTableFull
	}
	id := s.nextEntityID
	s.nextEntityID++
	rec.ID = id
	s.entities[slot] = rec
	s.entityIndex[id] = slot
	s.bump()
	return id, nil
}

// UpsertEntity applies an authoritative entity snapshot from the simulation
// authority, registering the id on first sight. Ids minted remotely are kept
// ahead of the local allocator so the two spaces never collide.
func (s *State) UpsertEntity(rec proto.EntityRecord) error {
	if rec.ID == 0 {
		return ErrUnknownID
	}
	if slot, ok := s.entityIndex[rec.ID]; ok {
		s.entities[slot] = rec
		s.bump()
		return nil
	}
	slot := -1
	for i := range s.entities {
		if s.entities[i].ID == 0 {
			slot = i
			break
		}
	}
	if slot < 0 {
		return ErrTableFull
	}
	s.entities[slot] = rec
	s.entityIndex[rec.ID] = slot
	if rec.ID >= s.nextEntityID {
		s.nextEntityID = rec.ID + 1
	}
	s.bump()
	return nil
}

// DamageEntity applies damage to an NPC, clamping health at zero, and
// returns the updated record.
func (s *State) DamageEntity(rec proto.DamageRecord) (proto.EntityRecord, error) {
	slot, ok := s.entityIndex[rec.TargetID]
	if !ok {
		return proto.EntityRecord{}, ErrUnknownID
	}
	stored := &s.entities[slot]
	stored.Health -= rec.Damage
	if stored.Health < 0 {
		stored.Health = 0
	}
	s.bump()
	return *stored, nil
}

// RemoveEntity releases the entity's slot for reuse.
func (s *State) RemoveEntity(id uint32) error {
	slot, ok := s.entityIndex[id]
	if !ok {
		return ErrUnknownID
	}
	s.entities[slot] = proto.EntityRecord{}
	delete(s.entityIndex, id)
	s.bump()
	return nil
}

// Entity looks up a live entity snapshot by id.
func (s *State) Entity(id uint32) (proto.EntityRecord, bool) {
	slot, ok := s.entityIndex[id]
	if !ok {
		return proto.EntityRecord{}, false
	}
	return s.entities[slot], true
}

// SnapshotEntities copies the live entity records for a broadcast.
func (s *State) SnapshotEntities() []proto.EntityRecord {
	out := make([]proto.EntityRecord, 0, len(s.entityIndex))
	for i := range s.entities {
		if s.entities[i].ID != 0 {
			out = append(out, s.entities[i])
		}
	}
	return out
}
