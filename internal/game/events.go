package game

import "emberfall/server/internal/proto"

// Events is the callback surface the netcode raises toward rendering, VFX,
// and UI code. Callbacks run on the tick loop; implementations hand work to
// their own frame logic instead of blocking.
type Events interface {
	OnParticipantJoined(id uint32)
	OnParticipantLeft(id uint32)
	OnEntityUpdated(id uint32, rec proto.EntityRecord, hard bool)
	OnProjectileSpawned(rec proto.ProjectileRecord)
	OnProjectileHit(rec proto.HitRecord)
	OnHostChanged(hostID, authorityID uint32)
	OnDamageReceived(amount float32, knockback proto.Vec3, sourceEntityID uint32)
	OnRestartRequested(reason proto.RestartReason)
}

// NopEvents discards every callback, for headless clients and tests.
type NopEvents struct{}

func (NopEvents) OnParticipantJoined(uint32)                        {}
func (NopEvents) OnParticipantLeft(uint32)                          {}
func (NopEvents) OnEntityUpdated(uint32, proto.EntityRecord, bool)  {}
func (NopEvents) OnProjectileSpawned(proto.ProjectileRecord)        {}
func (NopEvents) OnProjectileHit(proto.HitRecord)                   {}
func (NopEvents) OnHostChanged(uint32, uint32)                      {}
func (NopEvents) OnDamageReceived(float32, proto.Vec3, uint32)      {}
func (NopEvents) OnRestartRequested(proto.RestartReason)            {}

var _ Events = NopEvents{}
