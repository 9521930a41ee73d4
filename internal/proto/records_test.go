package proto

import (
	"strings"
	"testing"
)

func TestPlayerRecordRoundTrip(t *testing.T) {
	records := []PlayerRecord{
		{},
		{
			ID:         42,
			Pos:        Vec3{X: 1.5, Y: -2.25, Z: 1024.125},
			Yaw:        3.14159,
			State:      7,
			CombatMode: 1,
			Class:      3,
			Health:     87.5,
			AnimName:   "run_forward",
			Active:     1,
		},
		{ID: 4294967295, Health: -0.5, AnimName: strings.Repeat("a", AnimNameSize), Active: 1},
	}
	for _, want := range records {
		buf := AppendPlayerRecord(nil, want)
		if len(buf) != PlayerRecordSize {
			t.Fatalf("expected %d encoded bytes, got %d", PlayerRecordSize, len(buf))
		}
		got, err := DecodePlayerRecord(buf)
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if got != want {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
		}
	}
}

func TestPlayerRecordAnimNameTruncated(t *testing.T) {
	long := strings.Repeat("x", AnimNameSize+10)
	buf := AppendPlayerRecord(nil, PlayerRecord{AnimName: long})
	if len(buf) != PlayerRecordSize {
		t.Fatalf("expected %d encoded bytes, got %d", PlayerRecordSize, len(buf))
	}
	got, err := DecodePlayerRecord(buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got.AnimName != long[:AnimNameSize] {
		t.Fatalf("expected name truncated to %d bytes, got %q", AnimNameSize, got.AnimName)
	}
}

func TestEntityRecordRoundTrip(t *testing.T) {
	want := EntityRecord{
		Type:   EntityKindFlyer,
		ID:     9001,
		Pos:    Vec3{X: -10, Y: 44.5, Z: 0.001},
		Yaw:    -1.25,
		State:  2,
		Health: 30,
		Extra:  [8]uint8{3, 0, 180, 0, 0, 0, 0, 255},
	}
	buf := AppendEntityRecord(nil, want)
	if len(buf) != EntityRecordSize {
		t.Fatalf("expected %d encoded bytes, got %d", EntityRecordSize, len(buf))
	}
	got, err := DecodeEntityRecord(buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestProjectileRecordRoundTrip(t *testing.T) {
	want := ProjectileRecord{
		ID:        17,
		ShooterID: 3,
		Pos:       Vec3{X: 5, Y: 1.75, Z: -3},
		Dir:       Vec3{X: 0, Y: 0, Z: -1},
		Active:    1,
	}
	buf := AppendProjectileRecord(nil, want)
	if len(buf) != ProjectileRecordSize {
		t.Fatalf("expected %d encoded bytes, got %d", ProjectileRecordSize, len(buf))
	}
	got, err := DecodeProjectileRecord(buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestHitRecordRoundTrip(t *testing.T) {
	for _, want := range []HitRecord{
		{ProjectileID: 17, HitPos: Vec3{X: 5, Y: 0, Z: -3}, HitEntityID: 9001},
		{ProjectileID: 18, HitEntityID: 0}, // ground hit
	} {
		buf := AppendHitRecord(nil, want)
		if len(buf) != HitRecordSize {
			t.Fatalf("expected %d encoded bytes, got %d", HitRecordSize, len(buf))
		}
		got, err := DecodeHitRecord(buf)
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if got != want {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
		}
	}
}

func TestDamageRecordRoundTrip(t *testing.T) {
	want := DamageRecord{
		TargetID:         5,
		Damage:           12.5,
		AttackerEntityID: 9001,
		Knockback:        Vec3{X: 0.5, Y: 2, Z: -0.5},
	}
	buf := AppendDamageRecord(nil, want)
	if len(buf) != DamageRecordSize {
		t.Fatalf("expected %d encoded bytes, got %d", DamageRecordSize, len(buf))
	}
	got, err := DecodeDamageRecord(buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestDecodeRejectsShortBuffers(t *testing.T) {
	if _, err := DecodePlayerRecord(make([]byte, PlayerRecordSize-1)); err != ErrShortBuffer {
		t.Fatalf("expected ErrShortBuffer, got %v", err)
	}
	if _, err := DecodeEntityRecord(make([]byte, EntityRecordSize-1)); err != ErrShortBuffer {
		t.Fatalf("expected ErrShortBuffer, got %v", err)
	}
	if _, err := DecodeProjectileRecord(make([]byte, ProjectileRecordSize-1)); err != ErrShortBuffer {
		t.Fatalf("expected ErrShortBuffer, got %v", err)
	}
	if _, err := DecodeHitRecord(make([]byte, HitRecordSize-1)); err != ErrShortBuffer {
		t.Fatalf("expected ErrShortBuffer, got %v", err)
	}
	if _, err := DecodeDamageRecord(make([]byte, DamageRecordSize-1)); err != ErrShortBuffer {
		t.Fatalf("expected ErrShortBuffer, got %v", err)
	}
	if _, err := ParseHeader(make([]byte, HeaderSize-1)); err != ErrShortBuffer {
		t.Fatalf("expected ErrShortBuffer, got %v", err)
	}
}
