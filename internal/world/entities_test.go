package world

import (
	"testing"

	"emberfall/server/internal/proto"
)

func TestEntityRegisterDamageRemove(t *testing.T) {
	s := NewState(Config{MaxEntities: 2})
	id, err := s.RegisterEntity(proto.EntityRecord{Type: proto.EntityKindRoamer, Health: 50})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if id == 0 {
		t.Fatalf("entity id must be non-zero")
	}

	got, err := s.DamageEntity(proto.DamageRecord{TargetID: id, Damage: 80})
	if err != nil {
		t.Fatalf("damage failed: %v", err)
	}
	if got.Health != 0 {
		t.Fatalf("expected health clamped at 0, got %f", got.Health)
	}

	if err := s.RemoveEntity(id); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if err := s.RemoveEntity(id); err != ErrUnknownID {
		t.Fatalf("expected ErrUnknownID on double remove, got %v", err)
	}
}

func TestEntitySlotReuseAfterRemove(t *testing.T) {
	s := NewState(Config{MaxEntities: 1})
	id1, _ := s.RegisterEntity(proto.EntityRecord{Type: proto.EntityKindFlyer})
	if _, err := s.RegisterEntity(proto.EntityRecord{}); err != ErrTableFull {
		t.Fatalf("expected ErrTableFull, got %v", err)
	}
	s.RemoveEntity(id1)
	id2, err := s.RegisterEntity(proto.EntityRecord{Type: proto.EntityKindRoamer})
	if err != nil {
		t.Fatalf("register after remove failed: %v", err)
	}
	if id2 == id1 {
		t.Fatalf("entity ids must not be reused, got %d twice", id2)
	}
}

func TestUpsertEntityRegistersAndUpdates(t *testing.T) {
	s := NewState(DefaultConfig())
	rec := proto.EntityRecord{Type: proto.EntityKindFlyer, ID: 40, Pos: proto.Vec3{X: 1}, Health: 20}
	if err := s.UpsertEntity(rec); err != nil {
		t.Fatalf("upsert register failed: %v", err)
	}
	rec.Pos.X = 5
	if err := s.UpsertEntity(rec); err != nil {
		t.Fatalf("upsert update failed: %v", err)
	}
	got, ok := s.Entity(40)
	if !ok || got.Pos.X != 5 {
		t.Fatalf("expected updated entity, got %+v ok=%v", got, ok)
	}
	if len(s.SnapshotEntities()) != 1 {
		t.Fatalf("expected one live entity, got %d", len(s.SnapshotEntities()))
	}

	// Local allocation must skip past remotely minted ids.
	id, err := s.RegisterEntity(proto.EntityRecord{Type: proto.EntityKindRoamer})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if id <= 40 {
		t.Fatalf("expected allocator past remote id 40, got %d", id)
	}
}

func TestProjectileHitReleasesSlot(t *testing.T) {
	s := NewState(Config{MaxProjectiles: 1})
	spawn := proto.ProjectileRecord{ID: 7, ShooterID: 2, Dir: proto.Vec3{Z: -1}}
	if err := s.RegisterProjectile(spawn); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := s.RegisterProjectile(proto.ProjectileRecord{ID: 8}); err != ErrTableFull {
		t.Fatalf("expected ErrTableFull, got %v", err)
	}

	hit := proto.HitRecord{ProjectileID: 7, HitPos: proto.Vec3{X: 3}, HitEntityID: 0}
	got, err := s.HitProjectile(hit)
	if err != nil {
		t.Fatalf("hit failed: %v", err)
	}
	if got != hit {
		t.Fatalf("expected hit record %+v, got %+v", hit, got)
	}
	if s.ProjectileCount() != 0 {
		t.Fatalf("expected slot released, got %d in flight", s.ProjectileCount())
	}
	if _, err := s.HitProjectile(hit); err != ErrUnknownID {
		t.Fatalf("expected duplicate hit rejected, got %v", err)
	}

	// Released slot is immediately reusable.
	if err := s.RegisterProjectile(proto.ProjectileRecord{ID: 9}); err != nil {
		t.Fatalf("register after hit failed: %v", err)
	}
}
