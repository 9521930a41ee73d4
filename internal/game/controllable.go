// Package game defines the narrow interfaces between the netcode core and the
// rest of the game: the contract a network-driven object implements, the
// registry that locates such objects by stable id, and the callback surface
// rendering/input code subscribes to. Capability is expressed through these
// interfaces at compile time; nothing in the core discovers collaborators by
// name or by walking a scene graph.
package game

import "emberfall/server/internal/proto"

// Snapshot is the network-visible state of a controllable object.
type Snapshot struct {
	Pos      proto.Vec3
	Yaw      float32
	State    uint8
	Health   float32
	AnimName string
}

// NetworkControllable is implemented by any game object the netcode drives.
// hard means the caller is force-resynchronizing: the implementation must
// take the snapshot verbatim and skip smoothing or interpolation for this
// one frame.
type NetworkControllable interface {
	ApplyState(s Snapshot, hard bool)
	State() Snapshot
}

// SimulatedEntity exposes the getters the tick loop polls once per send
// interval when this process is the entity-simulation authority.
type SimulatedEntity interface {
	ID() uint32
	Kind() proto.EntityKind
	Position() proto.Vec3
	Facing() float32
	Health() float32
	// Extra returns archetype-specific scalars packed for EntityRecord.Extra.
	Extra() [8]uint8
}

// EntitySpawner is a SimulatedEntity whose network id is minted by the world
// on first sight. AssignID hands the allocated id back; ID must report it
// from then on. Zero-id entities that do not implement it are dropped.
type EntitySpawner interface {
	SimulatedEntity
	AssignID(id uint32)
}

// EntitySource enumerates the live simulated entities. The game supplies one
// when hosting; the tick loop never goes looking for instances itself.
type EntitySource interface {
	Entities() []SimulatedEntity
}

// Registry maps stable ids to controllable objects. It is populated at
// object creation time and owned by the tick loop that reads it.
type Registry struct {
	objects map[uint32]NetworkControllable
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{objects: make(map[uint32]NetworkControllable)}
}

// Register binds id to obj, replacing any previous binding.
func (r *Registry) Register(id uint32, obj NetworkControllable) {
	if obj == nil {
		return
	}
	r.objects[id] = obj
}

// Unregister removes the binding for id.
func (r *Registry) Unregister(id uint32) {
	delete(r.objects, id)
}

// Lookup resolves id to its controllable object.
func (r *Registry) Lookup(id uint32) (NetworkControllable, bool) {
	obj, ok := r.objects[id]
	return obj, ok
}

// Len reports the number of registered objects.
func (r *Registry) Len() int {
	return len(r.objects)
}
