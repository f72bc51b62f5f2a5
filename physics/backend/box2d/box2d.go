// Package box2d is a planar backend built on the Go port of Box2D
// (github.com/ByteArena/box2d).
//
// Box2D filters are 16 bits wide. Colliders keep the full 32-bit groups and
// hand the low half to the engine.
package box2d

import (
	"fmt"
	"math"

	"github.com/ByteArena/box2d"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/milk9111/physync/physics/backend"
)

type (
	bodyDesc     = backend.BodyDesc[mgl64.Vec2, float64, float64]
	colliderDesc = backend.ColliderDesc[mgl64.Vec2]
)

const (
	defaultVelocityIterations = 8
	defaultPositionIterations = 3
)

type World struct {
	world     *box2d.B2World
	bodies    backend.Arena[*body]
	colliders backend.Arena[*collider]
	contacts  []backend.Contact

	velocityIterations int
	positionIterations int
}

var (
	_ backend.Backend[mgl64.Vec2, float64, float64] = (*World)(nil)
	_ backend.ContactReporter                       = (*World)(nil)
)

type Option func(*World)

// WithIterations sets the velocity and position solver iterations. Values
// below one keep the defaults.
func WithIterations(velocity, position int) Option {
	return func(w *World) {
		if velocity > 0 {
			w.velocityIterations = velocity
		}
		if position > 0 {
			w.positionIterations = position
		}
	}
}

func New(opts ...Option) *World {
	world := box2d.MakeB2World(box2d.MakeB2Vec2(0, 0))
	w := &World{
		world:              &world,
		velocityIterations: defaultVelocityIterations,
		positionIterations: defaultPositionIterations,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.world.SetContactListener(&contactListener{world: w})
	return w
}

// B2World exposes the underlying Box2D world.
func (w *World) B2World() *box2d.B2World {
	return w.world
}

func (w *World) SetGravity(g mgl64.Vec2) {
	w.world.SetGravity(toVec(g))
}

func (w *World) CreateBody(desc bodyDesc) backend.BodyHandle {
	def := box2d.MakeB2BodyDef()
	def.Type = bodyType(desc.Kind)
	def.Position = toVec(desc.Position)
	def.Angle = desc.Rotation
	if desc.Kind != backend.Static {
		def.LinearVelocity = toVec(desc.LinearVelocity)
		def.AngularVelocity = desc.AngularVelocity
	}
	def.GravityScale = desc.GravityScale
	def.LinearDamping = desc.LinearDamping
	def.AngularDamping = desc.AngularDamping

	b := &body{b2: w.world.CreateBody(&def), kind: desc.Kind}
	return backend.BodyHandle(w.bodies.Insert(b))
}

func (w *World) CreateCollider(bh backend.BodyHandle, desc colliderDesc) (backend.ColliderHandle, error) {
	b, err := w.bodies.Get(backend.Handle(bh))
	if err != nil {
		return backend.ColliderHandle{}, err
	}
	shape, err := newShape(desc.Shape)
	if err != nil {
		return backend.ColliderHandle{}, err
	}

	c := &collider{body: b, groups: desc.Groups}
	h := backend.ColliderHandle(w.colliders.Insert(c))

	def := box2d.MakeB2FixtureDef()
	def.Shape = shape
	def.UserData = h
	def.IsSensor = desc.Sensor
	def.Friction = desc.Material.Friction
	def.Restitution = desc.Material.Restitution
	def.Density = density(desc.Material)
	def.Filter = filter(desc.Groups)
	c.fixture = b.b2.CreateFixtureFromDef(&def)

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
	w.world.DestroyBody(b.b2)
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

// Step advances the world by dt. Box2D caps how far a body can travel in a
// single step, so large steps slow fast bodies down.
func (w *World) Step(dt float64) error {
	w.world.Step(dt, w.velocityIterations, w.positionIterations)

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

type contactListener struct {
	world *World
}

func (l *contactListener) BeginContact(contact box2d.B2ContactInterface) {
	l.record(contact, true)
}

func (l *contactListener) EndContact(contact box2d.B2ContactInterface) {
	l.record(contact, false)
}

func (l *contactListener) PreSolve(box2d.B2ContactInterface, box2d.B2Manifold) {}

func (l *contactListener) PostSolve(box2d.B2ContactInterface, *box2d.B2ContactImpulse) {}

func (l *contactListener) record(contact box2d.B2ContactInterface, started bool) {
	a, okA := contact.GetFixtureA().GetUserData().(backend.ColliderHandle)
	b, okB := contact.GetFixtureB().GetUserData().(backend.ColliderHandle)
	if !okA || !okB {
		return
	}
	l.world.contacts = append(l.world.contacts, backend.Contact{A: a, B: b, Started: started})
}

func bodyType(k backend.Kind) uint8 {
	switch k {
	case backend.Static:
		return box2d.B2BodyType.B2_staticBody
	case backend.KinematicPosition, backend.KinematicVelocity:
		return box2d.B2BodyType.B2_kinematicBody
	default:
		return box2d.B2BodyType.B2_dynamicBody
	}
}

func newShape(s backend.ShapeDesc[mgl64.Vec2]) (box2d.B2ShapeInterface, error) {
	switch s.Kind {
	case backend.Ball:
		return circle(s.Radius), nil
	case backend.Cuboid:
		poly := box2d.NewB2PolygonShape()
		poly.SetAsBox(s.HalfExtents.X(), s.HalfExtents.Y())
		return poly, nil
	case backend.Capsule:
		if s.HalfHeight == 0 {
			return circle(s.Radius), nil
		}
		return polygon(capsuleHull(s.HalfHeight, s.Radius)), nil
	case backend.ConvexHull:
		if len(s.Points) < 3 || len(s.Points) > box2d.B2_maxPolygonVertices {
			return nil, fmt.Errorf("%w: hull with %d points", backend.ErrUnsupportedShape, len(s.Points))
		}
		verts := make([]box2d.B2Vec2, len(s.Points))
		for i, p := range s.Points {
			verts[i] = toVec(p)
		}
		return polygon(verts), nil
	default:
		return nil, fmt.Errorf("%w: kind %d", backend.ErrUnsupportedShape, s.Kind)
	}
}

func circle(radius float64) *box2d.B2CircleShape {
	c := box2d.NewB2CircleShape()
	c.M_radius = radius
	return c
}

func polygon(verts []box2d.B2Vec2) *box2d.B2PolygonShape {
	poly := box2d.NewB2PolygonShape()
	poly.Set(verts, len(verts))
	return poly
}

// capsuleHull approximates a Y-aligned capsule with an eight-sided polygon,
// four vertices on each cap.
func capsuleHull(halfHeight, radius float64) []box2d.B2Vec2 {
	verts := make([]box2d.B2Vec2, 0, 8)
	for i := 0; i < 4; i++ {
		a := float64(i) * math.Pi / 3
		verts = append(verts, box2d.MakeB2Vec2(radius*math.Cos(a), halfHeight+radius*math.Sin(a)))
	}
	for i := 0; i < 4; i++ {
		a := math.Pi + float64(i)*math.Pi/3
		verts = append(verts, box2d.MakeB2Vec2(radius*math.Cos(a), -halfHeight+radius*math.Sin(a)))
	}
	return verts
}

// Box2D rejects negative densities.
func density(m backend.Material) float64 {
	return math.Max(m.Density, 0)
}

func filter(g backend.InteractionGroups) box2d.B2Filter {
	return box2d.B2Filter{
		CategoryBits: uint16(g.Memberships),
		MaskBits:     uint16(g.Filter),
	}
}

type body struct {
	b2        *box2d.B2Body
	kind      backend.Kind
	colliders []backend.ColliderHandle
}

func (b *body) finite() bool {
	p, v := b.b2.GetPosition(), b.b2.GetLinearVelocity()
	for _, f := range [...]float64{p.X, p.Y, v.X, v.Y, b.b2.GetAngle(), b.b2.GetAngularVelocity()} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

func (b *body) Kind() backend.Kind { return b.kind }

func (b *body) LinearVelocity() mgl64.Vec2 { return fromVec(b.b2.GetLinearVelocity()) }

// Box2D ignores velocity writes on static bodies.
func (b *body) SetLinearVelocity(v mgl64.Vec2) { b.b2.SetLinearVelocity(toVec(v)) }

func (b *body) AngularVelocity() float64 { return b.b2.GetAngularVelocity() }

func (b *body) SetAngularVelocity(w float64) { b.b2.SetAngularVelocity(w) }

func (b *body) Position() mgl64.Vec2 { return fromVec(b.b2.GetPosition()) }

func (b *body) Rotation() float64 { return b.b2.GetAngle() }

func (b *body) SetPose(position mgl64.Vec2, rotation float64) {
	b.b2.SetTransform(toVec(position), rotation)
}

func (b *body) SetGravityScale(scale float64) { b.b2.SetGravityScale(scale) }

func (b *body) SetDamping(linear, angular float64) {
	b.b2.SetLinearDamping(linear)
	b.b2.SetAngularDamping(angular)
}

type collider struct {
	fixture *box2d.B2Fixture
	body    *body
	groups  backend.InteractionGroups
}

func (c *collider) Groups() backend.InteractionGroups { return c.groups }

func (c *collider) SetGroups(g backend.InteractionGroups) {
	c.groups = g
	c.fixture.SetFilterData(filter(g))
}

func (c *collider) Sensor() bool { return c.fixture.IsSensor() }

func (c *collider) SetSensor(sensor bool) { c.fixture.SetSensor(sensor) }

func (c *collider) SetMaterial(m backend.Material) {
	c.fixture.SetFriction(m.Friction)
	c.fixture.SetRestitution(m.Restitution)
	c.fixture.SetDensity(density(m))
	c.body.b2.ResetMassData()
}

// Fixture exposes the Box2D fixture for tests and debug tooling.
func (c *collider) Fixture() *box2d.B2Fixture { return c.fixture }

func toVec(v mgl64.Vec2) box2d.B2Vec2 { return box2d.MakeB2Vec2(v.X(), v.Y()) }

func fromVec(v box2d.B2Vec2) mgl64.Vec2 { return mgl64.Vec2{v.X, v.Y} }
