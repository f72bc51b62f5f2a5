package component

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

var ErrInvalidShape = errors.New("ecs: invalid collision shape")

type ShapeKind uint8

const (
	SphereShape ShapeKind = iota + 1
	CuboidShape
	CapsuleShape
	ConvexHullShape
)

func (k ShapeKind) String() string {
	switch k {
	case SphereShape:
		return "sphere"
	case CuboidShape:
		return "cuboid"
	case CapsuleShape:
		return "capsule"
	case ConvexHullShape:
		return "convex_hull"
	default:
		return fmt.Sprintf("shape(%d)", uint8(k))
	}
}

// CollisionShape is the collider geometry of an entity, in local space.
//
// Radius is the sphere or capsule radius, and the rounded border of cuboids
// and hulls. Capsules are aligned on the local Y axis. Planar backends ignore
// the Z coordinate of HalfExtents and Points.
type CollisionShape struct {
	Kind        ShapeKind
	Radius      float64
	HalfExtents mgl64.Vec3
	HalfSegment float64
	Points      []mgl64.Vec3
}

// Sphere panics if radius is not positive.
func Sphere(radius float64) CollisionShape {
	return mustShape(CollisionShape{Kind: SphereShape, Radius: radius})
}

// Cuboid panics if the X or Y half extent is not positive, or if Z or the
// border radius is negative.
func Cuboid(halfExtents mgl64.Vec3, borderRadius float64) CollisionShape {
	return mustShape(CollisionShape{Kind: CuboidShape, HalfExtents: halfExtents, Radius: borderRadius})
}

// Capsule panics if radius is not positive or halfSegment is negative.
func Capsule(halfSegment, radius float64) CollisionShape {
	return mustShape(CollisionShape{Kind: CapsuleShape, HalfSegment: halfSegment, Radius: radius})
}

// ConvexHull panics unless the points span a non-degenerate polygon.
func ConvexHull(points ...mgl64.Vec3) CollisionShape {
	pts := make([]mgl64.Vec3, len(points))
	copy(pts, points)
	return mustShape(CollisionShape{Kind: ConvexHullShape, Points: pts})
}

// WithBorderRadius rounds the corners of a cuboid or hull.
func (s CollisionShape) WithBorderRadius(r float64) CollisionShape {
	if s.Kind == CuboidShape || s.Kind == ConvexHullShape {
		s.Radius = r
	}
	return mustShape(s)
}

// Validate reports the same problems the constructors panic on.
func (s CollisionShape) Validate() error {
	switch s.Kind {
	case SphereShape:
		if !positive(s.Radius) {
			return fmt.Errorf("%w: sphere radius %v", ErrInvalidShape, s.Radius)
		}
	case CuboidShape:
		h := s.HalfExtents
		if !positive(h.X()) || !positive(h.Y()) || !nonNegative(h.Z()) {
			return fmt.Errorf("%w: cuboid half extents %v", ErrInvalidShape, h)
		}
		if !nonNegative(s.Radius) {
			return fmt.Errorf("%w: cuboid border radius %v", ErrInvalidShape, s.Radius)
		}
	case CapsuleShape:
		if !positive(s.Radius) || !nonNegative(s.HalfSegment) {
			return fmt.Errorf("%w: capsule half segment %v radius %v", ErrInvalidShape, s.HalfSegment, s.Radius)
		}
	case ConvexHullShape:
		if len(s.Points) < 3 {
			return fmt.Errorf("%w: convex hull needs at least 3 points, got %d", ErrInvalidShape, len(s.Points))
		}
		for _, p := range s.Points {
			if !finite(p.X()) || !finite(p.Y()) || !finite(p.Z()) {
				return fmt.Errorf("%w: convex hull point %v", ErrInvalidShape, p)
			}
		}
		if !spansArea(s.Points) {
			return fmt.Errorf("%w: convex hull points are collinear", ErrInvalidShape)
		}
		if !nonNegative(s.Radius) {
			return fmt.Errorf("%w: convex hull border radius %v", ErrInvalidShape, s.Radius)
		}
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidShape, s.Kind)
	}
	return nil
}

// ValidateVolume is Validate for 3-D backends, where a cuboid also needs a
// positive Z half extent. Validate lets Z be zero so planar scenes can leave
// it out.
func (s CollisionShape) ValidateVolume() error {
	if err := s.Validate(); err != nil {
		return err
	}
	if s.Kind == CuboidShape && !positive(s.HalfExtents.Z()) {
		return fmt.Errorf("%w: cuboid has no depth %v", ErrInvalidShape, s.HalfExtents)
	}
	return nil
}

func mustShape(s CollisionShape) CollisionShape {
	if err := s.Validate(); err != nil {
		panic(err)
	}
	return s
}

func positive(v float64) bool    { return finite(v) && v > 0 }
func nonNegative(v float64) bool { return finite(v) && v >= 0 }
func finite(v float64) bool      { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// spansArea reports whether the XY projection of points is not collinear.
func spansArea(points []mgl64.Vec3) bool {
	p0 := points[0].Vec2()
	for i := 1; i < len(points); i++ {
		a := points[i].Vec2().Sub(p0)
		for j := i + 1; j < len(points); j++ {
			b := points[j].Vec2().Sub(p0)
			if math.Abs(a.X()*b.Y()-a.Y()*b.X()) > 1e-12 {
				return true
			}
		}
	}
	return false
}

var CollisionShapeComponent = NewComponent[CollisionShape]()
