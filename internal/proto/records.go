package proto

import "encoding/binary"

// Record sizes in bytes. Receivers iterate payloads by these strides.
const (
	PlayerRecordSize     = 60
	EntityRecordSize     = 34
	ProjectileRecordSize = 33
	HitRecordSize        = 20
	DamageRecordSize     = 24
)

// AnimNameSize is the fixed capacity of the animation-name field.
const AnimNameSize = 32

// Vec3 is a position or direction in world units.
type Vec3 struct {
	X, Y, Z float32
}

// PlayerRecord is the per-participant snapshot carried by Join, Move, and
// State messages. A record is live when Active is non-zero; Id is globally
// unique for the session and never reused.
type PlayerRecord struct {
	ID         uint32
	Pos        Vec3
	Yaw        float32
	State      uint8
	CombatMode uint8
	Class      uint8
	Health     float32
	AnimName   string
	Active     uint8
}

// AppendPlayerRecord appends the 60-byte wire form of r to dst.
func AppendPlayerRecord(dst []byte, r PlayerRecord) []byte {
	dst = appendU32(dst, r.ID)
	dst = appendF32(dst, r.Pos.X)
	dst = appendF32(dst, r.Pos.Y)
	dst = appendF32(dst, r.Pos.Z)
	dst = appendF32(dst, r.Yaw)
	dst = append(dst, r.State, r.CombatMode, r.Class)
	dst = appendF32(dst, r.Health)
	dst = appendString(dst, r.AnimName, AnimNameSize)
	dst = append(dst, r.Active)
	return dst
}

// DecodePlayerRecord reads one record from buf, which must hold at least
// PlayerRecordSize bytes.
func DecodePlayerRecord(buf []byte) (PlayerRecord, error) {
	if len(buf) < PlayerRecordSize {
		return PlayerRecord{}, ErrShortBuffer
	}
	return PlayerRecord{
		ID:         binary.LittleEndian.Uint32(buf[0:4]),
		Pos:        Vec3{readF32(buf[4:8]), readF32(buf[8:12]), readF32(buf[12:16])},
		Yaw:        readF32(buf[16:20]),
		State:      buf[20],
		CombatMode: buf[21],
		Class:      buf[22],
		Health:     readF32(buf[23:27]),
		AnimName:   cutString(buf[27 : 27+AnimNameSize]),
		Active:     buf[59],
	}, nil
}

// EntityKind distinguishes NPC archetypes inside EntityRecord.Type.
type EntityKind uint8

const (
	EntityKindNone EntityKind = iota
	EntityKindRoamer
	EntityKindFlyer
)

// EntityRecord is the NPC snapshot carried by EntityState messages. Extra
// holds archetype-specific scalars packed by the simulation authority (the
// flyer stores its lap counter and patrol angle there).
type EntityRecord struct {
	Type   EntityKind
	ID     uint32
	Pos    Vec3
	Yaw    float32
	State  uint8
	Health float32
	Extra  [8]uint8
}

// AppendEntityRecord appends the 34-byte wire form of r to dst.
func AppendEntityRecord(dst []byte, r EntityRecord) []byte {
	dst = append(dst, byte(r.Type))
	dst = appendU32(dst, r.ID)
	dst = appendF32(dst, r.Pos.X)
	dst = appendF32(dst, r.Pos.Y)
	dst = appendF32(dst, r.Pos.Z)
	dst = appendF32(dst, r.Yaw)
	dst = append(dst, r.State)
	dst = appendF32(dst, r.Health)
	dst = append(dst, r.Extra[:]...)
	return dst
}

// DecodeEntityRecord reads one record from buf, which must hold at least
// EntityRecordSize bytes.
func DecodeEntityRecord(buf []byte) (EntityRecord, error) {
	if len(buf) < EntityRecordSize {
		return EntityRecord{}, ErrShortBuffer
	}
	rec := EntityRecord{
		Type:   EntityKind(buf[0]),
		ID:     binary.LittleEndian.Uint32(buf[1:5]),
		Pos:    Vec3{readF32(buf[5:9]), readF32(buf[9:13]), readF32(buf[13:17])},
		Yaw:    readF32(buf[17:21]),
		State:  buf[21],
		Health: readF32(buf[22:26]),
	}
	copy(rec.Extra[:], buf[26:34])
	return rec, nil
}

// ProjectileRecord describes a projectile spawn. Dir is a unit direction; the
// receiver integrates flight locally, so only the spawn is networked.
type ProjectileRecord struct {
	ID        uint32
	ShooterID uint32
	Pos       Vec3
	Dir       Vec3
	Active    uint8
}

// AppendProjectileRecord appends the 33-byte wire form of r to dst.
func AppendProjectileRecord(dst []byte, r ProjectileRecord) []byte {
	dst = appendU32(dst, r.ID)
	dst = appendU32(dst, r.ShooterID)
	dst = appendF32(dst, r.Pos.X)
	dst = appendF32(dst, r.Pos.Y)
	dst = appendF32(dst, r.Pos.Z)
	dst = appendF32(dst, r.Dir.X)
	dst = appendF32(dst, r.Dir.Y)
	dst = appendF32(dst, r.Dir.Z)
	dst = append(dst, r.Active)
	return dst
}

// DecodeProjectileRecord reads one record from buf, which must hold at least
// ProjectileRecordSize bytes.
func DecodeProjectileRecord(buf []byte) (ProjectileRecord, error) {
	if len(buf) < ProjectileRecordSize {
		return ProjectileRecord{}, ErrShortBuffer
	}
	return ProjectileRecord{
		ID:        binary.LittleEndian.Uint32(buf[0:4]),
		ShooterID: binary.LittleEndian.Uint32(buf[4:8]),
		Pos:       Vec3{readF32(buf[8:12]), readF32(buf[12:16]), readF32(buf[16:20])},
		Dir:       Vec3{readF32(buf[20:24]), readF32(buf[24:28]), readF32(buf[28:32])},
		Active:    buf[32],
	}, nil
}

// HitRecord reports a projectile impact. HitEntityID zero means the
// projectile struck world geometry rather than an entity.
type HitRecord struct {
	ProjectileID uint32
	HitPos       Vec3
	HitEntityID  uint32
}

// AppendHitRecord appends the 20-byte wire form of r to dst.
func AppendHitRecord(dst []byte, r HitRecord) []byte {
	dst = appendU32(dst, r.ProjectileID)
	dst = appendF32(dst, r.HitPos.X)
	dst = appendF32(dst, r.HitPos.Y)
	dst = appendF32(dst, r.HitPos.Z)
	dst = appendU32(dst, r.HitEntityID)
	return dst
}

// DecodeHitRecord reads one record from buf, which must hold at least
// HitRecordSize bytes.
func DecodeHitRecord(buf []byte) (HitRecord, error) {
	if len(buf) < HitRecordSize {
		return HitRecord{}, ErrShortBuffer
	}
	return HitRecord{
		ProjectileID: binary.LittleEndian.Uint32(buf[0:4]),
		HitPos:       Vec3{readF32(buf[4:8]), readF32(buf[8:12]), readF32(buf[12:16])},
		HitEntityID:  binary.LittleEndian.Uint32(buf[16:20]),
	}, nil
}

// DamageRecord carries a damage application with its knockback impulse. The
// wire size is 24 bytes: target, damage, attacker, and a full 3-axis
// knockback vector, nothing more.
type DamageRecord struct {
	TargetID         uint32
	Damage           float32
	AttackerEntityID uint32
	Knockback        Vec3
}

// AppendDamageRecord appends the 24-byte wire form of r to dst.
func AppendDamageRecord(dst []byte, r DamageRecord) []byte {
	dst = appendU32(dst, r.TargetID)
	dst = appendF32(dst, r.Damage)
	dst = appendU32(dst, r.AttackerEntityID)
	dst = appendF32(dst, r.Knockback.X)
	dst = appendF32(dst, r.Knockback.Y)
	dst = appendF32(dst, r.Knockback.Z)
	return dst
}

// DecodeDamageRecord reads one record from buf, which must hold at least
// DamageRecordSize bytes.
func DecodeDamageRecord(buf []byte) (DamageRecord, error) {
	if len(buf) < DamageRecordSize {
		return DamageRecord{}, ErrShortBuffer
	}
	return DamageRecord{
		TargetID:         binary.LittleEndian.Uint32(buf[0:4]),
		Damage:           readF32(buf[4:8]),
		AttackerEntityID: binary.LittleEndian.Uint32(buf[8:12]),
		Knockback:        Vec3{readF32(buf[12:16]), readF32(buf[16:20]), readF32(buf[20:24])},
	}, nil
}
