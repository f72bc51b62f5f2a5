package component

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// AxisAngle is a rotation stored as a scaled axis: the direction is the
// rotation axis and the length is the angle in radians.
type AxisAngle mgl64.Vec3

func NewAxisAngle(axis mgl64.Vec3, angle float64) AxisAngle {
	if axis.Len() == 0 || angle == 0 {
		return AxisAngle{}
	}
	return AxisAngle(axis.Normalize().Mul(angle))
}

// AxisAngleFromQuat converts a rotation quaternion, taking the short way
// around.
func AxisAngleFromQuat(q mgl64.Quat) AxisAngle {
	if q.Len() == 0 {
		return AxisAngle{}
	}
	q = q.Normalize()
	if q.W < 0 {
		q = q.Scale(-1)
	}
	s := math.Sqrt(math.Max(0, 1-q.W*q.W))
	if s < 1e-9 {
		return AxisAngle{}
	}
	angle := 2 * math.Acos(mgl64.Clamp(q.W, -1, 1))
	return NewAxisAngle(q.V.Mul(1/s), angle)
}

func (a AxisAngle) Vec() mgl64.Vec3 {
	return mgl64.Vec3(a)
}

// Axis returns the unit rotation axis, or the zero vector for no rotation.
func (a AxisAngle) Axis() mgl64.Vec3 {
	v := a.Vec()
	if v.Len() == 0 {
		return mgl64.Vec3{}
	}
	return v.Normalize()
}

func (a AxisAngle) Angle() float64 {
	return a.Vec().Len()
}

func (a AxisAngle) Quat() mgl64.Quat {
	angle := a.Angle()
	if angle == 0 {
		return mgl64.QuatIdent()
	}
	return mgl64.QuatRotate(angle, a.Axis())
}

// Velocity is the linear and angular velocity of a body in world space.
type Velocity struct {
	Linear  mgl64.Vec3
	Angular AxisAngle
}

func VelocityFromLinear(linear mgl64.Vec3) Velocity {
	return Velocity{Linear: linear}
}

func (v Velocity) WithAngular(angular AxisAngle) Velocity {
	v.Angular = angular
	return v
}

// Acceleration is applied to the Velocity of dynamic bodies on every physics
// step.
type Acceleration struct {
	Linear  mgl64.Vec3
	Angular AxisAngle
}

func AccelerationFromLinear(linear mgl64.Vec3) Acceleration {
	return Acceleration{Linear: linear}
}

func (a Acceleration) WithAngular(angular AxisAngle) Acceleration {
	a.Angular = angular
	return a
}

var (
	VelocityComponent     = NewComponent[Velocity]()
	AccelerationComponent = NewComponent[Acceleration]()
)
