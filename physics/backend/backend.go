// Package backend defines the boundary between the synchronization layer and
// a rigid-body physics engine: a body store, a collider store, per-body state
// accessors and a stepping primitive.
//
// Type parameters follow the engine's native representation: V is a linear
// vector, A an angular velocity and O an orientation. Planar engines use
// (mgl64.Vec2, float64, float64), spatial ones (mgl64.Vec3, mgl64.Vec3,
// mgl64.Quat).
package backend

import "errors"

var (
	// ErrDiverged is returned by Step when the solve produced a non-finite
	// body state.
	ErrDiverged = errors.New("backend: simulation diverged")
	// ErrUnsupportedShape is returned when an engine cannot represent a shape.
	ErrUnsupportedShape = errors.New("backend: unsupported shape")
)

// Kind is the engine-side body kind.
type Kind uint8

const (
	Dynamic Kind = iota
	Static
	KinematicPosition
	KinematicVelocity
)

func (k Kind) String() string {
	switch k {
	case Dynamic:
		return "dynamic"
	case Static:
		return "static"
	case KinematicPosition:
		return "kinematic_position"
	case KinematicVelocity:
		return "kinematic_velocity"
	default:
		return "unknown"
	}
}

// BodyDesc describes a body to create.
type BodyDesc[V, A, O any] struct {
	Kind            Kind
	Position        V
	Rotation        O
	LinearVelocity  V
	AngularVelocity A
	GravityScale    float64
	LinearDamping   float64
	AngularDamping  float64
}

// ShapeKind tags a ShapeDesc.
type ShapeKind uint8

const (
	Ball ShapeKind = iota + 1
	Cuboid
	Capsule
	ConvexHull
)

// ShapeDesc is a collider geometry in engine-native coordinates. Only the
// fields relevant to Kind are read:
//   - Ball: Radius
//   - Cuboid: HalfExtents, Radius (border)
//   - Capsule: HalfHeight (along the local Y axis), Radius
//   - ConvexHull: Points, Radius (border)
type ShapeDesc[V any] struct {
	Kind        ShapeKind
	Radius      float64
	HalfExtents V
	HalfHeight  float64
	Points      []V
}

// Material holds the contact and mass properties of a collider.
type Material struct {
	Density     float64
	Friction    float64
	Restitution float64
}

// DefaultMaterial is used when an entity declares no material.
var DefaultMaterial = Material{Density: 1}

// InteractionGroups is the collision filter of a collider. Two colliders
// interact when each one's Memberships intersects the other's Filter.
type InteractionGroups struct {
	Memberships uint32
	Filter      uint32
}

// Interacts reports whether g and other may collide.
func (g InteractionGroups) Interacts(other InteractionGroups) bool {
	return g.Memberships&other.Filter != 0 && other.Memberships&g.Filter != 0
}

// ColliderDesc describes a collider attached to a body.
type ColliderDesc[V any] struct {
	Shape    ShapeDesc[V]
	Sensor   bool
	Material Material
	Groups   InteractionGroups
}

// Body gives access to one engine body.
type Body[V, A, O any] interface {
	Kind() Kind
	LinearVelocity() V
	SetLinearVelocity(v V)
	AngularVelocity() A
	SetAngularVelocity(w A)
	Position() V
	Rotation() O
	SetPose(position V, rotation O)
	SetGravityScale(scale float64)
	SetDamping(linear, angular float64)
}

// Collider gives access to one engine collider.
type Collider interface {
	Groups() InteractionGroups
	SetGroups(g InteractionGroups)
	Sensor() bool
	SetSensor(sensor bool)
	SetMaterial(m Material)
}

// Backend is a physics engine owning a body store and a collider store.
type Backend[V, A, O any] interface {
	CreateBody(desc BodyDesc[V, A, O]) BodyHandle
	// CreateCollider attaches a collider to an existing body.
	CreateCollider(body BodyHandle, desc ColliderDesc[V]) (ColliderHandle, error)
	// RemoveBody destroys the body and every collider attached to it.
	RemoveBody(h BodyHandle) error
	Body(h BodyHandle) (Body[V, A, O], error)
	Collider(h ColliderHandle) (Collider, error)
	SetGravity(g V)
	// Step advances the simulation by one fixed duration in seconds.
	Step(dt float64) error
}

// Contact reports a pair of colliders that started or stopped touching.
type Contact struct {
	A, B    ColliderHandle
	Started bool
}

// ContactReporter is implemented by engines that detect contacts.
type ContactReporter interface {
	// DrainContacts returns the contacts reported since the last call.
	DrainContacts() []Contact
}
