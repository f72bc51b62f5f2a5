// Package rigid3d is a spatial backend that integrates rigid bodies without
// generating contacts. It stores colliders and their filters so the
// synchronization layer can run unchanged in 3-D.
package rigid3d

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/milk9111/physync/physics/backend"
)

type World struct {
	bodies    backend.Arena[*body]
	colliders backend.Arena[*collider]
	gravity   mgl64.Vec3
}

var _ backend.Backend[mgl64.Vec3, mgl64.Vec3, mgl64.Quat] = (*World)(nil)

func New() *World {
	return &World{}
}

func (w *World) SetGravity(g mgl64.Vec3) {
	w.gravity = g
}

func (w *World) Gravity() mgl64.Vec3 {
	return w.gravity
}

func (w *World) CreateBody(desc backend.BodyDesc[mgl64.Vec3, mgl64.Vec3, mgl64.Quat]) backend.BodyHandle {
	b := &body{
		kind:         desc.Kind,
		pos:          desc.Position,
		rot:          desc.Rotation.Normalize(),
		gravityScale: desc.GravityScale,
		linDamping:   desc.LinearDamping,
		angDamping:   desc.AngularDamping,
	}
	b.SetLinearVelocity(desc.LinearVelocity)
	b.SetAngularVelocity(desc.AngularVelocity)
	return backend.BodyHandle(w.bodies.Insert(b))
}

func (w *World) CreateCollider(bh backend.BodyHandle, desc backend.ColliderDesc[mgl64.Vec3]) (backend.ColliderHandle, error) {
	b, err := w.bodies.Get(backend.Handle(bh))
	if err != nil {
		return backend.ColliderHandle{}, err
	}
	switch desc.Shape.Kind {
	case backend.Ball, backend.Cuboid, backend.Capsule, backend.ConvexHull:
	default:
		return backend.ColliderHandle{}, fmt.Errorf("%w: kind %d", backend.ErrUnsupportedShape, desc.Shape.Kind)
	}
	c := &collider{
		body:     bh,
		shape:    desc.Shape,
		sensor:   desc.Sensor,
		material: desc.Material,
		groups:   desc.Groups,
	}
	h := backend.ColliderHandle(w.colliders.Insert(c))
	b.colliders = append(b.colliders, h)
	return h, nil
}

func (w *World) RemoveBody(bh backend.BodyHandle) error {
	b, err := w.bodies.Remove(backend.Handle(bh))
	if err != nil {
		return err
	}
	for _, ch := range b.colliders {
		_, _ = w.colliders.Remove(backend.Handle(ch))
	}
	return nil
}

func (w *World) Body(bh backend.BodyHandle) (backend.Body[mgl64.Vec3, mgl64.Vec3, mgl64.Quat], error) {
	b, err := w.bodies.Get(backend.Handle(bh))
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (w *World) Collider(ch backend.ColliderHandle) (backend.Collider, error) {
	c, err := w.colliders.Get(backend.Handle(ch))
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Len returns the number of live bodies and colliders.
func (w *World) Len() (bodies, colliders int) {
	return w.bodies.Len(), w.colliders.Len()
}

// Step integrates velocities, then poses (semi-implicit Euler).
func (w *World) Step(dt float64) error {
	var diverged error
	w.bodies.Each(func(h backend.Handle, b *body) {
		if diverged != nil {
			return
		}
		b.integrate(w.gravity, dt)
		if !b.finite() {
			diverged = fmt.Errorf("%w: %s", backend.ErrDiverged, backend.BodyHandle(h))
		}
	})
	return diverged
}

type body struct {
	kind         backend.Kind
	pos          mgl64.Vec3
	rot          mgl64.Quat
	linvel       mgl64.Vec3
	angvel       mgl64.Vec3
	gravityScale float64
	linDamping   float64
	angDamping   float64
	colliders    []backend.ColliderHandle
}

func (b *body) integrate(gravity mgl64.Vec3, dt float64) {
	switch b.kind {
	case backend.Static, backend.KinematicPosition:
		return
	case backend.Dynamic:
		b.linvel = b.linvel.Add(gravity.Mul(b.gravityScale * dt))
		b.linvel = b.linvel.Mul(1 / (1 + dt*b.linDamping))
		b.angvel = b.angvel.Mul(1 / (1 + dt*b.angDamping))
	}

	b.pos = b.pos.Add(b.linvel.Mul(dt))
	if angle := b.angvel.Len() * dt; angle != 0 {
		b.rot = mgl64.QuatRotate(angle, b.angvel.Normalize()).Mul(b.rot).Normalize()
	}
}

func (b *body) finite() bool {
	for _, v := range [...]float64{
		b.pos[0], b.pos[1], b.pos[2],
		b.linvel[0], b.linvel[1], b.linvel[2],
		b.angvel[0], b.angvel[1], b.angvel[2],
		b.rot.W, b.rot.V[0], b.rot.V[1], b.rot.V[2],
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (b *body) Kind() backend.Kind { return b.kind }
func (b *body) LinearVelocity() mgl64.Vec3 { return b.linvel }
func (b *body) AngularVelocity() mgl64.Vec3 { return b.angvel }
func (b *body) Position() mgl64.Vec3 { return b.pos }
func (b *body) Rotation() mgl64.Quat { return b.rot }
func (b *body) SetGravityScale(scale float64) { b.gravityScale = scale }
func (b *body) SetDamping(linear, angular float64) {
	b.linDamping, b.angDamping = linear, angular
}

// Velocities of static bodies stay zero.
func (b *body) SetLinearVelocity(v mgl64.Vec3) {
	if b.kind != backend.Static {
		b.linvel = v
	}
}

func (b *body) SetAngularVelocity(w mgl64.Vec3) {
	if b.kind != backend.Static {
		b.angvel = w
	}
}

func (b *body) SetPose(position mgl64.Vec3, rotation mgl64.Quat) {
	b.pos = position
	b.rot = rotation.Normalize()
}

type collider struct {
	body     backend.BodyHandle
	shape    backend.ShapeDesc[mgl64.Vec3]
	sensor   bool
	material backend.Material
	groups   backend.InteractionGroups
}

func (c *collider) Groups() backend.InteractionGroups { return c.groups }
func (c *collider) SetGroups(g backend.InteractionGroups) { c.groups = g }
func (c *collider) Sensor() bool { return c.sensor }
func (c *collider) SetSensor(sensor bool) { c.sensor = sensor }
func (c *collider) SetMaterial(m backend.Material) { c.material = m }

// Material returns the collider material.
func (c *collider) Material() backend.Material { return c.material }
