// Package dim converts between the world representation of vectors and
// rotations (always 3-D) and the native representation of a physics backend.
package dim

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/milk9111/physync/ecs/component"
	"github.com/milk9111/physync/physics/backend"
)

// Dimension maps world values to a backend whose linear vectors are V,
// angular velocities A and orientations O.
type Dimension[V, A, O any] interface {
	Name() string
	Vector(v mgl64.Vec3) V
	// WorldVector converts back; prev supplies the components V does not carry.
	WorldVector(v V, prev mgl64.Vec3) mgl64.Vec3
	Angular(a component.AxisAngle) A
	WorldAngular(a A) component.AxisAngle
	Rotation(q mgl64.Quat) O
	WorldRotation(o O) mgl64.Quat
	Shape(s component.CollisionShape) backend.ShapeDesc[V]
	// Validate reports shapes the backend cannot represent.
	Validate(s component.CollisionShape) error
}

// Planar maps onto a 2-D backend working in the XY plane. Rotations are
// angles about +Z.
type Planar struct{}

var _ Dimension[mgl64.Vec2, float64, float64] = Planar{}

func (Planar) Name() string { return "planar" }

func (Planar) Vector(v mgl64.Vec3) mgl64.Vec2 { return v.Vec2() }

func (Planar) WorldVector(v mgl64.Vec2, prev mgl64.Vec3) mgl64.Vec3 {
	return v.Vec3(prev.Z())
}

// Angular keeps the signed rotation rate about +Z.
func (Planar) Angular(a component.AxisAngle) float64 { return a.Vec().Z() }

func (Planar) WorldAngular(w float64) component.AxisAngle {
	return component.AxisAngle{0, 0, w}
}

// Rotation returns the yaw of q about +Z.
func (Planar) Rotation(q mgl64.Quat) float64 {
	q = q.Normalize()
	x, y, z := q.V.Elem()
	return math.Atan2(2*(q.W*z+x*y), 1-2*(y*y+z*z))
}

func (Planar) WorldRotation(angle float64) mgl64.Quat {
	return mgl64.QuatRotate(angle, mgl64.Vec3{0, 0, 1})
}

func (Planar) Validate(s component.CollisionShape) error { return s.Validate() }

func (p Planar) Shape(s component.CollisionShape) backend.ShapeDesc[mgl64.Vec2] {
	desc := backend.ShapeDesc[mgl64.Vec2]{Radius: s.Radius}
	switch s.Kind {
	case component.SphereShape:
		desc.Kind = backend.Ball
	case component.CuboidShape:
		desc.Kind = backend.Cuboid
		desc.HalfExtents = s.HalfExtents.Vec2()
	case component.CapsuleShape:
		desc.Kind = backend.Capsule
		desc.HalfHeight = s.HalfSegment
	case component.ConvexHullShape:
		desc.Kind = backend.ConvexHull
		desc.Points = make([]mgl64.Vec2, len(s.Points))
		for i, pt := range s.Points {
			desc.Points[i] = pt.Vec2()
		}
	}
	return desc
}

// Spatial maps onto a 3-D backend. Every conversion is the identity.
type Spatial struct{}

var _ Dimension[mgl64.Vec3, mgl64.Vec3, mgl64.Quat] = Spatial{}

func (Spatial) Name() string { return "spatial" }

func (Spatial) Vector(v mgl64.Vec3) mgl64.Vec3 { return v }

func (Spatial) WorldVector(v mgl64.Vec3, _ mgl64.Vec3) mgl64.Vec3 { return v }

func (Spatial) Angular(a component.AxisAngle) mgl64.Vec3 { return a.Vec() }

func (Spatial) WorldAngular(w mgl64.Vec3) component.AxisAngle { return component.AxisAngle(w) }

func (Spatial) Rotation(q mgl64.Quat) mgl64.Quat { return q.Normalize() }

func (Spatial) WorldRotation(q mgl64.Quat) mgl64.Quat { return q }

func (Spatial) Validate(s component.CollisionShape) error { return s.ValidateVolume() }

func (Spatial) Shape(s component.CollisionShape) backend.ShapeDesc[mgl64.Vec3] {
	desc := backend.ShapeDesc[mgl64.Vec3]{Radius: s.Radius}
	switch s.Kind {
	case component.SphereShape:
		desc.Kind = backend.Ball
	case component.CuboidShape:
		desc.Kind = backend.Cuboid
		desc.HalfExtents = s.HalfExtents
	case component.CapsuleShape:
		desc.Kind = backend.Capsule
		desc.HalfHeight = s.HalfSegment
	case component.ConvexHullShape:
		desc.Kind = backend.ConvexHull
		desc.Points = append([]mgl64.Vec3(nil), s.Points...)
	}
	return desc
}
