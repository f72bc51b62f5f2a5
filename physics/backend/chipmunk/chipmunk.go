// Package chipmunk is a planar backend built on Chipmunk2D
// (github.com/jakecoffman/cp).
package chipmunk

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/jakecoffman/cp"

	"github.com/milk9111/physync/physics/backend"
)

type (
	bodyDesc     = backend.BodyDesc[mgl64.Vec2, float64, float64]
	colliderDesc = backend.ColliderDesc[mgl64.Vec2]
)

// Every collider shares one collision type so a single handler sees all
// contacts.
const collisionTypeCollider cp.CollisionType = 1

type World struct {
	space     *cp.Space
	bodies    backend.Arena[*body]
	colliders backend.Arena[*collider]
	shapes    map[*cp.Shape]backend.ColliderHandle
	contacts  []backend.Contact
}

var (
	_ backend.Backend[mgl64.Vec2, float64, float64] = (*World)(nil)
	_ backend.ContactReporter                       = (*World)(nil)
)

type Option func(*World)

// WithIterations sets the solver iteration count. Zero is ignored.
func WithIterations(n uint) Option {
	return func(w *World) {
		if n > 0 {
			w.space.Iterations = n
		}
	}
}

func New(opts ...Option) *World {
	w := &World{
		space:  cp.NewSpace(),
		shapes: make(map[*cp.Shape]backend.ColliderHandle),
	}
	w.space.Iterations = 20
	for _, opt := range opts {
		opt(w)
	}

	handler := w.space.NewCollisionHandler(collisionTypeCollider, collisionTypeCollider)
	handler.BeginFunc = func(arb *cp.Arbiter, space *cp.Space, userData interface{}) bool {
		w.recordContact(arb, true)
		return true
	}
	handler.SeparateFunc = func(arb *cp.Arbiter, space *cp.Space, userData interface{}) {
		w.recordContact(arb, false)
	}
	return w
}

// Space exposes the Chipmunk space for debug drawing.
func (w *World) Space() *cp.Space {
	return w.space
}

func (w *World) SetGravity(g mgl64.Vec2) {
	w.space.SetGravity(toVector(g))
}

func (w *World) CreateBody(desc bodyDesc) backend.BodyHandle {
	var cpBody *cp.Body
	switch desc.Kind {
	case backend.Static:
		cpBody = cp.NewStaticBody()
	case backend.KinematicPosition, backend.KinematicVelocity:
		cpBody = cp.NewKinematicBody()
	default:
		// Placeholder mass until colliders are attached.
		cpBody = cp.NewBody(1, 1)
	}
	cpBody.SetAngle(desc.Rotation)
	cpBody.SetPosition(toVector(desc.Position))

	b := &body{
		world:        w,
		cp:           cpBody,
		kind:         desc.Kind,
		gravityScale: desc.GravityScale,
		linDamping:   desc.LinearDamping,
		angDamping:   desc.AngularDamping,
	}
	if desc.Kind == backend.Dynamic {
		cpBody.SetVelocityUpdateFunc(b.updateVelocity)
	}
	if desc.Kind != backend.Static {
		cpBody.SetVelocityVector(toVector(desc.LinearVelocity))
		cpBody.SetAngularVelocity(desc.AngularVelocity)
	}
	w.space.AddBody(cpBody)
	return backend.BodyHandle(w.bodies.Insert(b))
}

func (w *World) CreateCollider(bh backend.BodyHandle, desc colliderDesc) (backend.ColliderHandle, error) {
	b, err := w.bodies.Get(backend.Handle(bh))
	if err != nil {
		return backend.ColliderHandle{}, err
	}
	shape, err := newShape(b.cp, desc.Shape)
	if err != nil {
		return backend.ColliderHandle{}, err
	}
	shape.SetCollisionType(collisionTypeCollider)
	shape.SetSensor(desc.Sensor)

	c := &collider{shape: shape, body: b}
	c.SetGroups(desc.Groups)
	c.applyMaterial(desc.Material, false)

	w.space.AddShape(shape)
	b.ensureMass()

	h := backend.ColliderHandle(w.colliders.Insert(c))
	w.shapes[shape] = h
	b.colliders = append(b.colliders, h)
	return h, nil
}

func (w *World) RemoveBody(bh backend.BodyHandle) error {
	b, err := w.bodies.Remove(backend.Handle(bh))
	if err != nil {
		return err
	}
	for _, ch := range b.colliders {
		c, err := w.colliders.Remove(backend.Handle(ch))
		if err != nil {
			continue
		}
		if w.space.ContainsShape(c.shape) {
			w.space.RemoveShape(c.shape)
		}
		delete(w.shapes, c.shape)
	}
	if w.space.ContainsBody(b.cp) {
		w.space.RemoveBody(b.cp)
	}
	return nil
}

func (w *World) Body(bh backend.BodyHandle) (backend.Body[mgl64.Vec2, float64, float64], error) {
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

func (w *World) Step(dt float64) error {
	w.space.Step(dt)

	var diverged error
	w.bodies.Each(func(h backend.Handle, b *body) {
		if diverged == nil && !b.finite() {
			diverged = fmt.Errorf("%w: %s", backend.ErrDiverged, backend.BodyHandle(h))
		}
	})
	return diverged
}

func (w *World) DrainContacts() []backend.Contact {
	out := w.contacts
	w.contacts = nil
	return out
}

func (w *World) recordContact(arb *cp.Arbiter, started bool) {
	a, b := arb.Shapes()
	ha, okA := w.shapes[a]
	hb, okB := w.shapes[b]
	if !okA || !okB {
		return
	}
	w.contacts = append(w.contacts, backend.Contact{A: ha, B: hb, Started: started})
}

func newShape(b *cp.Body, s backend.ShapeDesc[mgl64.Vec2]) (*cp.Shape, error) {
	switch s.Kind {
	case backend.Ball:
		return cp.NewCircle(b, s.Radius, cp.Vector{}), nil
	case backend.Cuboid:
		return cp.NewBox(b, 2*s.HalfExtents.X(), 2*s.HalfExtents.Y(), s.Radius), nil
	case backend.Capsule:
		if s.HalfHeight == 0 {
			return cp.NewCircle(b, s.Radius, cp.Vector{}), nil
		}
		return cp.NewSegment(b, cp.Vector{Y: -s.HalfHeight}, cp.Vector{Y: s.HalfHeight}, s.Radius), nil
	case backend.ConvexHull:
		verts := make([]cp.Vector, len(s.Points))
		for i, p := range s.Points {
			verts[i] = toVector(p)
		}
		return cp.NewPolyShape(b, len(verts), verts, cp.NewTransformIdentity(), s.Radius), nil
	default:
		return nil, fmt.Errorf("%w: kind %d", backend.ErrUnsupportedShape, s.Kind)
	}
}

type body struct {
	world        *World
	cp           *cp.Body
	kind         backend.Kind
	gravityScale float64
	linDamping   float64
	angDamping   float64
	colliders    []backend.ColliderHandle
}

// updateVelocity applies the per-body gravity scale and damping on top of
// Chipmunk's default integration.
func (b *body) updateVelocity(cpBody *cp.Body, gravity cp.Vector, damping float64, dt float64) {
	linear := 1 / (1 + dt*b.linDamping)
	cp.BodyUpdateVelocity(cpBody, gravity.Mult(b.gravityScale), damping*linear, dt)
	if b.angDamping != b.linDamping {
		cpBody.SetAngularVelocity(cpBody.AngularVelocity() / linear / (1 + dt*b.angDamping))
	}
}

// ensureMass gives a unit mass to dynamic bodies whose colliders carry none.
func (b *body) ensureMass() {
	if b.kind != backend.Dynamic {
		return
	}
	if b.cp.Mass() <= 0 || math.IsInf(b.cp.Mass(), 0) {
		b.cp.SetMass(1)
	}
	if b.cp.Moment() <= 0 || math.IsInf(b.cp.Moment(), 0) {
		b.cp.SetMoment(1)
	}
}

func (b *body) finite() bool {
	p, v := b.cp.Position(), b.cp.Velocity()
	for _, f := range [...]float64{p.X, p.Y, v.X, v.Y, b.cp.Angle(), b.cp.AngularVelocity()} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

func (b *body) Kind() backend.Kind { return b.kind }

func (b *body) LinearVelocity() mgl64.Vec2 { return fromVector(b.cp.Velocity()) }

func (b *body) SetLinearVelocity(v mgl64.Vec2) {
	if b.kind != backend.Static {
		b.cp.SetVelocityVector(toVector(v))
	}
}

func (b *body) AngularVelocity() float64 { return b.cp.AngularVelocity() }

func (b *body) SetAngularVelocity(w float64) {
	if b.kind != backend.Static {
		b.cp.SetAngularVelocity(w)
	}
}

func (b *body) Position() mgl64.Vec2 { return fromVector(b.cp.Position()) }

func (b *body) Rotation() float64 { return b.cp.Angle() }

func (b *body) SetPose(position mgl64.Vec2, rotation float64) {
	b.cp.SetAngle(rotation)
	b.cp.SetPosition(toVector(position))
	if b.kind == backend.Static {
		b.reindex()
	}
}

// reindex refreshes the static spatial index after a static body moved.
func (b *body) reindex() {
	space := b.world.space
	for _, ch := range b.colliders {
		c, err := b.world.colliders.Get(backend.Handle(ch))
		if err != nil || !space.ContainsShape(c.shape) {
			continue
		}
		space.RemoveShape(c.shape)
		space.AddShape(c.shape)
	}
}

func (b *body) SetGravityScale(scale float64) { b.gravityScale = scale }

func (b *body) SetDamping(linear, angular float64) {
	b.linDamping, b.angDamping = linear, angular
}

type collider struct {
	shape  *cp.Shape
	body   *body
	groups backend.InteractionGroups
}

func (c *collider) Groups() backend.InteractionGroups { return c.groups }

func (c *collider) SetGroups(g backend.InteractionGroups) {
	c.groups = g
	c.shape.SetFilter(cp.ShapeFilter{
		Group:      cp.NO_GROUP,
		Categories: uint(g.Memberships),
		Mask:       uint(g.Filter),
	})
}

func (c *collider) Sensor() bool { return c.shape.Sensor() }

func (c *collider) SetSensor(sensor bool) { c.shape.SetSensor(sensor) }

func (c *collider) SetMaterial(m backend.Material) {
	c.applyMaterial(m, true)
}

func (c *collider) applyMaterial(m backend.Material, attached bool) {
	c.shape.SetFriction(m.Friction)
	c.shape.SetElasticity(m.Restitution)
	if c.body.kind == backend.Dynamic && m.Density > 0 {
		c.shape.SetDensity(m.Density)
	}
	if attached {
		c.body.ensureMass()
	}
}

// Shape exposes the Chipmunk shape for debug drawing and tests.
func (c *collider) Shape() *cp.Shape { return c.shape }

func toVector(v mgl64.Vec2) cp.Vector { return cp.Vector{X: v.X(), Y: v.Y()} }

func fromVector(v cp.Vector) mgl64.Vec2 { return mgl64.Vec2{v.X, v.Y} }
