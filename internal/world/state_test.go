package world

import (
	"testing"

	"emberfall/server/internal/proto"
)

func TestJoinRejectsWhenFull(t *testing.T) {
	s := NewState(Config{MaxPlayers: 3})
	for i := 0; i < 3; i++ {
		if _, _, err := s.Join(proto.PlayerRecord{Health: 100}); err != nil {
			t.Fatalf("join %d failed: %v", i, err)
		}
	}
	if _, _, err := s.Join(proto.PlayerRecord{}); err != ErrServerFull {
		t.Fatalf("expected ErrServerFull, got %v", err)
	}
}

func TestSlotReuseKeepsIDsFresh(t *testing.T) {
	s := NewState(Config{MaxPlayers: 2})
	id1, _, _ := s.Join(proto.PlayerRecord{})
	id2, _, _ := s.Join(proto.PlayerRecord{})
	if _, _, err := s.Join(proto.PlayerRecord{}); err != ErrServerFull {
		t.Fatalf("expected ErrServerFull, got %v", err)
	}

	if _, err := s.Leave(id1); err != nil {
		t.Fatalf("leave failed: %v", err)
	}

	id3, _, err := s.Join(proto.PlayerRecord{})
	if err != nil {
		t.Fatalf("join after leave failed: %v", err)
	}
	if id3 == id1 || id3 == id2 {
		t.Fatalf("expected a fresh id, got reused id %d", id3)
	}
	if id3 <= id2 {
		t.Fatalf("expected monotonically increasing id, got %d after %d", id3, id2)
	}
	if s.PlayerCount() != 2 {
		t.Fatalf("expected 2 live players, got %d", s.PlayerCount())
	}
}

func TestHostMigrationPicksLowestRemainingID(t *testing.T) {
	s := NewState(Config{MaxPlayers: 4})
	id1, change, _ := s.Join(proto.PlayerRecord{})
	if change == nil || change.HostID != id1 {
		t.Fatalf("expected first join to become host, got %+v", change)
	}
	id2, change, _ := s.Join(proto.PlayerRecord{})
	if change != nil {
		t.Fatalf("expected no host change on second join, got %+v", change)
	}
	id3, _, _ := s.Join(proto.PlayerRecord{})

	change, err := s.Leave(id1)
	if err != nil {
		t.Fatalf("leave failed: %v", err)
	}
	if change == nil || change.HostID != id2 {
		t.Fatalf("expected host %d after first leave, got %+v", id2, change)
	}

	change, _ = s.Leave(id2)
	if change == nil || change.HostID != id3 {
		t.Fatalf("expected host %d after second leave, got %+v", id3, change)
	}

	change, _ = s.Leave(id3)
	if change == nil || change.HostID != NoHost {
		t.Fatalf("expected host reset to none, got %+v", change)
	}
}

func TestLeaveByNonHostRaisesNoChange(t *testing.T) {
	s := NewState(Config{MaxPlayers: 4})
	s.Join(proto.PlayerRecord{})
	id2, _, _ := s.Join(proto.PlayerRecord{})
	change, err := s.Leave(id2)
	if err != nil {
		t.Fatalf("leave failed: %v", err)
	}
	if change != nil {
		t.Fatalf("expected no host change when a non-host leaves, got %+v", change)
	}
}

func TestApplyMoveOverwritesSnapshot(t *testing.T) {
	s := NewState(DefaultConfig())
	id, _, _ := s.Join(proto.PlayerRecord{Health: 100})

	before := s.Seq()
	move := proto.PlayerRecord{
		ID:       id,
		Pos:      proto.Vec3{X: 10, Y: 2, Z: -4},
		Yaw:      1.25,
		State:    3,
		Health:   91,
		AnimName: "sprint",
	}
	if err := s.ApplyMove(move); err != nil {
		t.Fatalf("move failed: %v", err)
	}
	got, ok := s.Player(id)
	if !ok {
		t.Fatalf("player %d missing after move", id)
	}
	if got.Pos != move.Pos || got.Yaw != move.Yaw || got.AnimName != "sprint" || got.Health != 91 {
		t.Fatalf("snapshot not overwritten: %+v", got)
	}
	if got.Active != 1 {
		t.Fatalf("move must not clear the active flag")
	}
	if s.Seq() <= before {
		t.Fatalf("expected world sequence to advance, got %d -> %d", before, s.Seq())
	}

	if err := s.ApplyMove(proto.PlayerRecord{ID: 9999}); err != ErrUnknownID {
		t.Fatalf("expected ErrUnknownID for unknown mover, got %v", err)
	}
}

func TestDamagePlayerClampsAtZero(t *testing.T) {
	s := NewState(DefaultConfig())
	id, _, _ := s.Join(proto.PlayerRecord{Health: 10})
	got, err := s.DamagePlayer(proto.DamageRecord{TargetID: id, Damage: 25})
	if err != nil {
		t.Fatalf("damage failed: %v", err)
	}
	if got.Health != 0 {
		t.Fatalf("expected health clamped at 0, got %f", got.Health)
	}
}

func TestResetClearsTablesKeepsMonotonicCounters(t *testing.T) {
	s := NewState(Config{MaxPlayers: 2})
	id1, _, _ := s.Join(proto.PlayerRecord{})
	seqBefore := s.Seq()
	s.Reset()
	if s.PlayerCount() != 0 {
		t.Fatalf("expected empty player table after reset, got %d", s.PlayerCount())
	}
	if host, _ := s.Host(); host != NoHost {
		t.Fatalf("expected host cleared, got %d", host)
	}
	if s.Seq() <= seqBefore {
		t.Fatalf("world sequence must stay monotonic across reset")
	}
	id2, _, _ := s.Join(proto.PlayerRecord{})
	if id2 <= id1 {
		t.Fatalf("expected fresh id after reset, got %d after %d", id2, id1)
	}
}
