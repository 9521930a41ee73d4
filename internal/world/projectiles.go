package world

import "emberfall/server/internal/proto"

// RegisterProjectile records a relayed projectile spawn. Projectile ids are
// minted by the shooter; the table only tracks which are in flight so a later
// hit can be validated. A duplicate spawn for a live id overwrites in place.
func (s *State) RegisterProjectile(rec proto.ProjectileRecord) error {
	if rec.ID == 0 {
		return ErrUnknownID
	}
	rec.Active = 1
	if slot, ok := s.projectileIndex[rec.ID]; ok {
		s.projectiles[slot] = rec
		s.bump()
		return nil
	}
	slot := -1
	for i := range s.projectiles {
		if s.projectiles[i].ID == 0 {
			slot = i
			break
		}
	}
	if slot < 0 {
		return ErrTableFull
	}
	s.projectiles[slot] = rec
	s.projectileIndex[rec.ID] = slot
	s.bump()
	return nil
}

// HitProjectile deactivates the projectile, releases its slot, and returns
// the impact record for the broadcast. Hits for unknown projectiles are
// rejected so a duplicated hit datagram relays only once.
func (s *State) HitProjectile(hit proto.HitRecord) (proto.HitRecord, error) {
	slot, ok := s.projectileIndex[hit.ProjectileID]
	if !ok {
		return proto.HitRecord{}, ErrUnknownID
	}
	s.projectiles[slot] = proto.ProjectileRecord{}
	delete(s.projectileIndex, hit.ProjectileID)
	s.bump()
	return hit, nil
}

// RemoveProjectile releases the slot without producing an impact, used when
// a projectile expires in flight.
func (s *State) RemoveProjectile(id uint32) error {
	slot, ok := s.projectileIndex[id]
	if !ok {
		return ErrUnknownID
	}
	s.projectiles[slot] = proto.ProjectileRecord{}
	delete(s.projectileIndex, id)
	s.bump()
	return nil
}

// ProjectileCount reports the number of projectiles in flight.
func (s *State) ProjectileCount() int {
	return len(s.projectileIndex)
}
