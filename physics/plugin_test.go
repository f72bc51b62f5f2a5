package physics

import (
	"errors"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/milk9111/physync/ecs"
	"github.com/milk9111/physync/ecs/component"
	"github.com/milk9111/physync/physics/backend"
	"github.com/milk9111/physync/physics/backend/box2d"
	"github.com/milk9111/physync/physics/backend/chipmunk"
	"github.com/milk9111/physync/physics/backend/rigid3d"
	"github.com/milk9111/physync/physics/collision"
	"github.com/milk9111/physync/physics/steps"
)

const tolerance = 1e-3

var quiet = slog.New(slog.DiscardHandler)

// harness runs the same scenario against every backend. Box2D limits how far
// a body moves per step, so it runs shorter steps.
type harness struct {
	name   string
	planar bool
	step   time.Duration
	open   func(w *ecs.World, opts ...Option) (Runner, error)
}

func harnesses() []harness {
	return []harness{
		{"chipmunk", true, time.Second, func(w *ecs.World, opts ...Option) (Runner, error) {
			return NewPlanar(w, chipmunk.New(), opts...)
		}},
		{"box2d", true, 100 * time.Millisecond, func(w *ecs.World, opts ...Option) (Runner, error) {
			return NewPlanar(w, box2d.New(), opts...)
		}},
		{"rigid3d", false, time.Second, func(w *ecs.World, opts ...Option) (Runner, error) {
			return NewSpatial(w, rigid3d.New(), opts...)
		}},
	}
}

func (h harness) start(t *testing.T, opts ...Option) (*ecs.World, Runner) {
	t.Helper()
	w := ecs.NewWorld()
	opts = append([]Option{WithLogger(quiet), WithSteps(steps.EveryFrame(h.step))}, opts...)
	r, err := h.open(w, opts...)
	if err != nil {
		t.Fatalf("open %s: %v", h.name, err)
	}
	return w, r
}

func (h harness) dt() float64 { return h.step.Seconds() }

// vecClose compares only X and Y for planar backends.
func (h harness) vecClose(got, want mgl64.Vec3) bool {
	if h.planar {
		got[2], want[2] = 0, 0
	}
	return got.ApproxEqualThreshold(want, tolerance)
}

func frame(t *testing.T, w *ecs.World, r Runner) {
	t.Helper()
	if err := r.Frame(w); err != nil {
		t.Fatalf("Frame: %v", err)
	}
}

func mustAdd[T any](t *testing.T, w *ecs.World, e ecs.Entity, h component.ComponentHandle[T], v T) {
	t.Helper()
	if err := ecs.Add(w, e, h, v); err != nil {
		t.Fatalf("Add: %v", err)
	}
}

func spawn(t *testing.T, w *ecs.World, rb component.RigidBody, shape component.CollisionShape) ecs.Entity {
	t.Helper()
	e := w.CreateEntity()
	mustAdd(t, w, e, component.TransformComponent, component.IdentityTransform())
	mustAdd(t, w, e, component.RigidBodyComponent, rb)
	mustAdd(t, w, e, component.CollisionShapeComponent, shape)
	return e
}

type testLayer uint8

const (
	layerA testLayer = iota
	layerB
)

type testCodec struct{}

func (testCodec) ToBits(l testLayer) uint32 {
	switch l {
	case layerA:
		return 1
	case layerB:
		return 2
	default:
		return 0
	}
}

func (testCodec) AllBits() uint32 { return 3 }

func groupsOf(t *testing.T, r Runner, e ecs.Entity) backend.InteractionGroups {
	t.Helper()
	c, err := r.Collider(e)
	if err != nil {
		t.Fatalf("Collider: %v", err)
	}
	return c.Groups()
}

func TestCollisionLayers(t *testing.T) {
	layers := collision.NewLayers[testLayer](testCodec{}, []testLayer{layerA}, []testLayer{layerB})
	want := backend.InteractionGroups{Memberships: 1, Filter: 2}
	all := backend.InteractionGroups{Memberships: collision.AllBits, Filter: collision.AllBits}

	for _, h := range harnesses() {
		t.Run(h.name+"/on_creation", func(t *testing.T) {
			w, r := h.start(t)
			e := spawn(t, w, component.Sensor, component.Sphere(10))
			mustAdd(t, w, e, component.CollisionLayersComponent, layers)
			frame(t, w, r)
			if got := groupsOf(t, r, e); got != want {
				t.Fatalf("groups = %+v, want %+v", got, want)
			}
		})
		t.Run(h.name+"/added_later", func(t *testing.T) {
			w, r := h.start(t)
			e := spawn(t, w, component.Sensor, component.Sphere(10))
			frame(t, w, r)
			if got := groupsOf(t, r, e); got != all {
				t.Fatalf("groups without layers = %+v", got)
			}
			before, _ := r.Registry().Lookup(e)
			mustAdd(t, w, e, component.CollisionLayersComponent, layers)
			frame(t, w, r)
			if got := groupsOf(t, r, e); got != want {
				t.Fatalf("groups = %+v, want %+v", got, want)
			}
			if after, _ := r.Registry().Lookup(e); after != before {
				t.Fatalf("collider was recreated: %+v -> %+v", before, after)
			}
		})
		t.Run(h.name+"/removed", func(t *testing.T) {
			w, r := h.start(t)
			e := spawn(t, w, component.Sensor, component.Sphere(10))
			mustAdd(t, w, e, component.CollisionLayersComponent, layers)
			frame(t, w, r)
			ecs.Remove(w, e, component.CollisionLayersComponent)
			frame(t, w, r)
			if got := groupsOf(t, r, e); got != all {
				t.Fatalf("groups = %+v, want %+v", got, all)
			}
		})
	}
}

func TestVelocityReachesBackend(t *testing.T) {
	vel := component.VelocityFromLinear(mgl64.Vec3{1, 2, 3}).
		WithAngular(component.NewAxisAngle(mgl64.Vec3{0, 0, 1}, 2))

	kinds := []component.RigidBody{component.Dynamic, component.KinematicVelocityBased}
	for _, h := range harnesses() {
		for _, kind := range kinds {
			for _, later := range []bool{false, true} {
				name := h.name + "/" + kind.String() + "/with_body"
				if later {
					name = h.name + "/" + kind.String() + "/added_later"
				}
				t.Run(name, func(t *testing.T) {
					w, r := h.start(t)
					e := spawn(t, w, kind, component.Sphere(1))
					if later {
						frame(t, w, r)
					}
					mustAdd(t, w, e, component.VelocityComponent, vel)
					frame(t, w, r)

					st, err := r.BodyState(e)
					if err != nil {
						t.Fatalf("BodyState: %v", err)
					}
					if !h.vecClose(st.LinearVelocity, vel.Linear) {
						t.Fatalf("linear velocity = %v, want %v", st.LinearVelocity, vel.Linear)
					}
					if !st.AngularVelocity.Vec().ApproxEqualThreshold(mgl64.Vec3{0, 0, 2}, tolerance) {
						t.Fatalf("angular velocity = %v, want 2 about Z", st.AngularVelocity)
					}
				})
			}
		}
	}
}

func TestAccelerationChangesVelocity(t *testing.T) {
	acc := component.AccelerationFromLinear(mgl64.Vec3{1, 2, 3}).
		WithAngular(component.NewAxisAngle(mgl64.Vec3{0, 0, 1}, math.Pi/2))

	for _, h := range harnesses() {
		t.Run(h.name, func(t *testing.T) {
			w, r := h.start(t)
			e := spawn(t, w, component.Dynamic, component.Sphere(1))
			mustAdd(t, w, e, component.VelocityComponent, component.Velocity{})
			mustAdd(t, w, e, component.AccelerationComponent, acc)

			frame(t, w, r)
			frame(t, w, r)

			vel, _ := ecs.Get(w, e, component.VelocityComponent)
			want := acc.Linear.Mul(h.dt())
			if !h.vecClose(vel.Linear, want) {
				t.Fatalf("linear velocity = %v, want %v", vel.Linear, want)
			}
			if got, want := vel.Angular.Vec().Z(), math.Pi/2*h.dt(); math.Abs(got-want) > tolerance {
				t.Fatalf("angular velocity = %v, want %v about Z", got, want)
			}
		})
	}
}

func TestVelocityMovesTransform(t *testing.T) {
	angular := component.AxisAngleFromQuat(mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 0, 1}))
	vel := component.VelocityFromLinear(mgl64.Vec3{1, 2, 3}).WithAngular(angular)

	for _, h := range harnesses() {
		for _, kind := range []component.RigidBody{component.Dynamic, component.KinematicVelocityBased} {
			t.Run(h.name+"/"+kind.String(), func(t *testing.T) {
				w, r := h.start(t)
				e := spawn(t, w, kind, component.Sphere(2))
				mustAdd(t, w, e, component.VelocityComponent, vel)
				frame(t, w, r)

				tr, _ := ecs.Get(w, e, component.TransformComponent)
				want := vel.Linear.Mul(h.dt())
				if h.planar {
					want[2] = 0
				}
				if !tr.Translation.ApproxEqualThreshold(want, tolerance) {
					t.Fatalf("translation = %v, want %v", tr.Translation, want)
				}
				got := component.AxisAngleFromQuat(tr.Rotation)
				if !got.Vec().ApproxEqualThreshold(angular.Vec().Mul(h.dt()), tolerance) {
					t.Fatalf("rotation = %v (axis %v angle %v)", tr.Rotation, got.Axis(), got.Angle())
				}

				after, _ := ecs.Get(w, e, component.VelocityComponent)
				if kind == component.KinematicVelocityBased {
					// Kinematic velocity is owned by the user.
					if after != vel {
						t.Fatalf("velocity overwritten: %+v", after)
					}
					return
				}
				if !h.vecClose(after.Linear, vel.Linear) {
					t.Fatalf("pulled linear velocity = %v, want %v", after.Linear, vel.Linear)
				}
			})
		}
	}
}

func TestPlanarKeepsZ(t *testing.T) {
	for _, h := range harnesses() {
		if !h.planar {
			continue
		}
		t.Run(h.name, func(t *testing.T) {
			w, r := h.start(t)
			e := w.CreateEntity()
			mustAdd(t, w, e, component.TransformComponent, component.TransformFromTranslation(mgl64.Vec3{5, 5, 5}))
			mustAdd(t, w, e, component.RigidBodyComponent, component.Dynamic)
			mustAdd(t, w, e, component.CollisionShapeComponent, component.Sphere(1))
			mustAdd(t, w, e, component.VelocityComponent, component.VelocityFromLinear(mgl64.Vec3{1, 2, 3}))
			frame(t, w, r)

			tr, _ := ecs.Get(w, e, component.TransformComponent)
			if tr.Translation.Z() != 5 {
				t.Fatalf("translation Z = %v, want 5", tr.Translation.Z())
			}
			if tr.Translation.X() == 5 {
				t.Fatalf("body did not move: %v", tr.Translation)
			}
			vel, _ := ecs.Get(w, e, component.VelocityComponent)
			if vel.Linear.Z() != 3 {
				t.Fatalf("velocity Z = %v, want 3", vel.Linear.Z())
			}
		})
	}
}

func TestKindChanges(t *testing.T) {
	for _, h := range harnesses() {
		t.Run(h.name+"/recreate", func(t *testing.T) {
			w, r := h.start(t)
			e := spawn(t, w, component.Dynamic, component.Sphere(1))
			frame(t, w, r)
			before, _ := r.Registry().Lookup(e)

			mustAdd(t, w, e, component.RigidBodyComponent, component.KinematicPositionBased)
			frame(t, w, r)
			after, ok := r.Registry().Lookup(e)
			if !ok || after == before {
				t.Fatalf("body not recreated: %+v -> %+v", before, after)
			}
			st, err := r.BodyState(e)
			if err != nil {
				t.Fatalf("BodyState: %v", err)
			}
			if st.Kind != backend.KinematicPosition {
				t.Fatalf("kind = %v", st.Kind)
			}
			handle, _ := ecs.Get(w, e, component.RigidBodyHandleComponent)
			if handle.Handle != after.Body {
				t.Fatalf("handle component = %v, want %v", handle.Handle, after.Body)
			}
		})
		t.Run(h.name+"/sensor_in_place", func(t *testing.T) {
			w, r := h.start(t)
			e := spawn(t, w, component.Static, component.Sphere(1))
			frame(t, w, r)
			before, _ := r.Registry().Lookup(e)

			mustAdd(t, w, e, component.RigidBodyComponent, component.Sensor)
			frame(t, w, r)
			if after, _ := r.Registry().Lookup(e); after != before {
				t.Fatalf("static to sensor recreated the body")
			}
			c, _ := r.Collider(e)
			if !c.Sensor() {
				t.Fatalf("collider is not a sensor")
			}

			mustAdd(t, w, e, component.RigidBodyComponent, component.Static)
			frame(t, w, r)
			if c.Sensor() {
				t.Fatalf("collider is still a sensor")
			}
		})
	}
}

func TestShapeChangeRecreates(t *testing.T) {
	for _, h := range harnesses() {
		t.Run(h.name, func(t *testing.T) {
			w, r := h.start(t)
			e := spawn(t, w, component.Static, component.Sphere(1))
			frame(t, w, r)
			before, _ := r.Registry().Lookup(e)

			mustAdd(t, w, e, component.CollisionShapeComponent, component.Cuboid(mgl64.Vec3{1, 2, 1}, 0))
			frame(t, w, r)
			after, _ := r.Registry().Lookup(e)
			if after == before {
				t.Fatalf("collider not recreated")
			}
			if r.Registry().Len() != 1 {
				t.Fatalf("registry has %d bindings", r.Registry().Len())
			}
		})
	}
}

func TestRemoval(t *testing.T) {
	for _, h := range harnesses() {
		t.Run(h.name+"/component", func(t *testing.T) {
			w, r := h.start(t)
			e := spawn(t, w, component.Dynamic, component.Sphere(1))
			frame(t, w, r)

			ecs.Remove(w, e, component.CollisionShapeComponent)
			frame(t, w, r)
			if r.Registry().Len() != 0 {
				t.Fatalf("binding survived shape removal")
			}
			if ecs.Has(w, e, component.RigidBodyHandleComponent) || ecs.Has(w, e, component.ColliderHandleComponent) {
				t.Fatalf("handle components survived")
			}
			if _, err := r.BodyState(e); err == nil {
				t.Fatalf("BodyState on an unbound entity should fail")
			}
		})
		t.Run(h.name+"/entity", func(t *testing.T) {
			w, r := h.start(t)
			a := spawn(t, w, component.Dynamic, component.Sphere(1))
			b := spawn(t, w, component.Static, component.Sphere(1))
			frame(t, w, r)

			w.DestroyEntity(a)
			frame(t, w, r)
			if got := r.Registry().Entities(); len(got) != 1 || got[0] != b {
				t.Fatalf("bound entities = %v, want [%v]", got, b)
			}
		})
	}
}

func TestPosesPushedToBackend(t *testing.T) {
	target := mgl64.Vec3{3, 4, 0}
	for _, h := range harnesses() {
		for _, kind := range []component.RigidBody{component.Static, component.KinematicPositionBased} {
			t.Run(h.name+"/"+kind.String(), func(t *testing.T) {
				w, r := h.start(t)
				e := spawn(t, w, kind, component.Sphere(1))
				frame(t, w, r)

				mustAdd(t, w, e, component.TransformComponent, component.TransformFromTranslation(target))
				frame(t, w, r)
				st, err := r.BodyState(e)
				if err != nil {
					t.Fatalf("BodyState: %v", err)
				}
				if !h.vecClose(st.Position, target) {
					t.Fatalf("position = %v, want %v", st.Position, target)
				}
			})
		}
	}
}

func TestGravityScaleInPlace(t *testing.T) {
	w := ecs.NewWorld()
	r, err := NewSpatial(w, rigid3d.New(),
		WithLogger(quiet),
		WithSteps(steps.EveryFrame(time.Second)),
		WithGravity(mgl64.Vec3{0, -10, 0}))
	if err != nil {
		t.Fatalf("NewSpatial: %v", err)
	}
	e := spawn(t, w, component.Dynamic, component.Sphere(1))
	mustAdd(t, w, e, component.VelocityComponent, component.Velocity{})
	mustAdd(t, w, e, component.GravityScaleComponent, component.GravityScale{Scale: 0})
	frame(t, w, r)
	if vel, _ := ecs.Get(w, e, component.VelocityComponent); vel.Linear != (mgl64.Vec3{}) {
		t.Fatalf("zero gravity scale still fell: %v", vel.Linear)
	}

	ecs.Remove(w, e, component.GravityScaleComponent)
	frame(t, w, r)
	if vel, _ := ecs.Get(w, e, component.VelocityComponent); !vel.Linear.ApproxEqualThreshold(mgl64.Vec3{0, -10, 0}, tolerance) {
		t.Fatalf("velocity = %v, want full gravity", vel.Linear)
	}
}

func TestContactsBecomeEvents(t *testing.T) {
	w := ecs.NewWorld()
	r, err := NewPlanar(w, chipmunk.New(), WithLogger(quiet))
	if err != nil {
		t.Fatalf("NewPlanar: %v", err)
	}
	a := spawn(t, w, component.Dynamic, component.Sphere(1))
	b := w.CreateEntity()
	mustAdd(t, w, b, component.TransformComponent, component.TransformFromTranslation(mgl64.Vec3{1, 0, 0}))
	mustAdd(t, w, b, component.RigidBodyComponent, component.Dynamic)
	mustAdd(t, w, b, component.CollisionShapeComponent, component.Sphere(1))
	frame(t, w, r)

	events := CollisionEvents(w)
	if len(events) != 1 || events[0].Kind != CollisionStarted {
		t.Fatalf("events = %+v", events)
	}
	if got := map[ecs.Entity]bool{events[0].A: true, events[0].B: true}; !got[a] || !got[b] {
		t.Fatalf("event entities = %v %v, want %v %v", events[0].A, events[0].B, a, b)
	}
}

func TestInvalidShapeIsFatal(t *testing.T) {
	w := ecs.NewWorld()
	r, err := NewSpatial(w, rigid3d.New(), WithLogger(quiet))
	if err != nil {
		t.Fatalf("NewSpatial: %v", err)
	}
	spawn(t, w, component.Dynamic, component.CollisionShape{Kind: component.SphereShape, Radius: -1})
	if err := r.Frame(w); !errors.Is(err, component.ErrInvalidShape) {
		t.Fatalf("expected ErrInvalidShape, got %v", err)
	}
}

func TestInvalidShapeKeepsRestOfBatch(t *testing.T) {
	w := ecs.NewWorld()
	r, err := NewSpatial(w, rigid3d.New(), WithLogger(quiet))
	if err != nil {
		t.Fatalf("NewSpatial: %v", err)
	}
	bad := spawn(t, w, component.Dynamic, component.CollisionShape{Kind: component.SphereShape, Radius: -1})
	good := spawn(t, w, component.Dynamic, component.Sphere(1))
	worse := spawn(t, w, component.Static, component.CollisionShape{Kind: component.CuboidShape})

	err = r.Frame(w)
	if !errors.Is(err, component.ErrInvalidShape) {
		t.Fatalf("expected ErrInvalidShape, got %v", err)
	}
	if _, ok := r.Registry().Lookup(good); !ok {
		t.Fatalf("valid entity after a failing one was not bound")
	}
	for _, e := range []ecs.Entity{bad, worse} {
		if _, ok := r.Registry().Lookup(e); ok {
			t.Fatalf("invalid entity %s was bound", e)
		}
	}

	// The plugin stays usable.
	frame(t, w, r)
	if r.Registry().Len() != 1 {
		t.Fatalf("bound %d entities, want 1", r.Registry().Len())
	}
}

func TestPhaseOrder(t *testing.T) {
	w := ecs.NewWorld()
	p, err := NewSpatial(w, rigid3d.New(), WithLogger(quiet))
	if err != nil {
		t.Fatalf("NewSpatial: %v", err)
	}
	if err := p.Push(w); !errors.Is(err, ErrPhaseOrder) {
		t.Fatalf("Push before Reconcile: %v", err)
	}
	if err := p.Reconcile(w); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if err := p.Reconcile(w); !errors.Is(err, ErrPhaseOrder) {
		t.Fatalf("Reconcile twice: %v", err)
	}
	if err := p.Step(w); !errors.Is(err, ErrPhaseOrder) {
		t.Fatalf("Step before Push: %v", err)
	}
	if err := p.Push(ecs.NewWorld()); !errors.Is(err, ErrForeignWorld) {
		t.Fatalf("Push on another world: %v", err)
	}
	for _, run := range []func(*ecs.World) error{p.Push, p.Step, p.Pull} {
		if err := run(w); err != nil {
			t.Fatalf("phase: %v", err)
		}
	}
	frame(t, w, p)
}

func TestInstalledSystemsPanicOnError(t *testing.T) {
	w := ecs.NewWorld()
	p, err := NewSpatial(w, rigid3d.New(), WithLogger(quiet))
	if err != nil {
		t.Fatalf("NewSpatial: %v", err)
	}
	s := ecs.NewScheduler()
	p.Install(s)
	if got := len(s.Systems()); got != 4 {
		t.Fatalf("installed %d systems, want 4", got)
	}
	s.Update(w)

	spawn(t, w, component.Dynamic, component.CollisionShape{Kind: component.CuboidShape})
	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic")
		}
	}()
	s.Update(w)
}

func TestFixedRateUsesFrameTime(t *testing.T) {
	w := ecs.NewWorld()
	r, err := NewSpatial(w, rigid3d.New(),
		WithLogger(quiet),
		WithSteps(steps.FixedRate(100*time.Millisecond, 5)))
	if err != nil {
		t.Fatalf("NewSpatial: %v", err)
	}
	e := spawn(t, w, component.KinematicVelocityBased, component.Sphere(1))
	mustAdd(t, w, e, component.VelocityComponent, component.VelocityFromLinear(mgl64.Vec3{1, 0, 0}))
	ecs.SetResource(w, &FrameTime{Delta: 250 * time.Millisecond})
	frame(t, w, r)

	if plan := r.Context().Plan(); plan.Count != 2 {
		t.Fatalf("plan = %+v, want 2 steps", plan)
	}
	tr, _ := ecs.Get(w, e, component.TransformComponent)
	if math.Abs(tr.Translation.X()-0.2) > tolerance {
		t.Fatalf("translation = %v, want x 0.2", tr.Translation)
	}
}

func TestCloseAndReopen(t *testing.T) {
	w := ecs.NewWorld()
	first := chipmunk.New()
	p, err := NewPlanar(w, first, WithLogger(quiet))
	if err != nil {
		t.Fatalf("NewPlanar: %v", err)
	}
	e := spawn(t, w, component.Dynamic, component.Sphere(1))
	frame(t, w, p)
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if bodies, _ := first.Len(); bodies != 0 {
		t.Fatalf("closed backend still has %d bodies", bodies)
	}
	if ecs.Has(w, e, component.RigidBodyHandleComponent) {
		t.Fatalf("handle component survived Close")
	}

	second, err := NewSpatial(w, rigid3d.New(), WithLogger(quiet))
	if err != nil {
		t.Fatalf("NewSpatial: %v", err)
	}
	frame(t, w, second)
	if _, ok := second.Registry().Lookup(e); !ok {
		t.Fatalf("reopened plugin did not bind the existing entity")
	}
}
