package physics

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/milk9111/physync/ecs"
	"github.com/milk9111/physync/ecs/component"
	"github.com/milk9111/physync/physics/backend"
)

// CollisionEventType is the ecs.Event type of collision events.
const CollisionEventType = "physics.collision"

type CollisionEventKind uint8

const (
	CollisionStarted CollisionEventKind = iota + 1
	CollisionStopped
)

func (k CollisionEventKind) String() string {
	switch k {
	case CollisionStarted:
		return "started"
	case CollisionStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// CollisionEvent reports two entities starting or stopping to touch.
type CollisionEvent struct {
	Kind CollisionEventKind
	A, B ecs.Entity
}

// CollisionEvents returns the collision events queued in w this frame.
func CollisionEvents(w *ecs.World) []CollisionEvent {
	var out []CollisionEvent
	for _, evt := range w.Events().Peek(CollisionEventType) {
		if ce, ok := evt.Data.(CollisionEvent); ok {
			out = append(out, ce)
		}
	}
	return out
}

// push writes entity velocities and kinematic poses to the backend.
func (c *Context[V, A, O]) push() error {
	w := c.world
	for _, e := range c.registry.Entities() {
		rb := c.kinds[e]
		switch rb {
		case component.Dynamic, component.KinematicVelocityBased:
			vel, ok := ecs.Get(w, e, component.VelocityComponent)
			if !ok {
				continue
			}
			b, err := c.body(e)
			if err != nil {
				return err
			}
			b.SetLinearVelocity(c.dim.Vector(vel.Linear))
			b.SetAngularVelocity(c.dim.Angular(vel.Angular))
		case component.KinematicPositionBased:
			tr, ok := ecs.Get(w, e, component.TransformComponent)
			if !ok {
				continue
			}
			b, err := c.body(e)
			if err != nil {
				return err
			}
			b.SetPose(c.dim.Vector(tr.Translation), c.dim.Rotation(tr.Orientation()))
		}
	}
	return nil
}

// step runs the planned steps. Accelerations are integrated before each
// step, except on the first step of a body.
func (c *Context[V, A, O]) step() error {
	dt := c.plan.Seconds()
	for i := 0; i < c.plan.Count; i++ {
		if err := c.accelerate(dt); err != nil {
			return err
		}
		clear(c.fresh)
		if err := c.backend.Step(dt); err != nil {
			return fmt.Errorf("physics: step %d of %d: %w", i+1, c.plan.Count, err)
		}
	}
	c.forwardContacts()
	return nil
}

func (c *Context[V, A, O]) accelerate(dt float64) error {
	w := c.world
	for _, e := range w.Query(component.AccelerationComponent, component.RigidBodyHandleComponent) {
		if c.kinds[e] != component.Dynamic {
			continue
		}
		if _, ok := c.fresh[e]; ok {
			continue
		}
		acc, _ := ecs.Get(w, e, component.AccelerationComponent)
		b, err := c.body(e)
		if err != nil {
			return err
		}
		linear := c.dim.WorldVector(b.LinearVelocity(), mgl64.Vec3{}).Add(acc.Linear.Mul(dt))
		angular := c.dim.WorldAngular(b.AngularVelocity()).Vec().Add(acc.Angular.Vec().Mul(dt))
		b.SetLinearVelocity(c.dim.Vector(linear))
		b.SetAngularVelocity(c.dim.Angular(component.AxisAngle(angular)))
	}
	return nil
}

// forwardContacts turns backend contact reports into collision events.
// Reports about colliders that are no longer bound are dropped.
func (c *Context[V, A, O]) forwardContacts() {
	reporter, ok := c.backend.(backend.ContactReporter)
	if !ok {
		return
	}
	for _, contact := range reporter.DrainContacts() {
		a, okA := c.registry.EntityOf(contact.A)
		b, okB := c.registry.EntityOf(contact.B)
		if !okA || !okB {
			continue
		}
		kind := CollisionStopped
		if contact.Started {
			kind = CollisionStarted
		}
		c.world.Events().Push(ecs.Event{
			Type: CollisionEventType,
			Data: CollisionEvent{Kind: kind, A: a, B: b},
		})
	}
}

// pull copies backend poses and velocities onto the entities.
func (c *Context[V, A, O]) pull() error {
	w := c.world
	for _, e := range c.registry.Entities() {
		rb := c.kinds[e]
		if rb != component.Dynamic && rb != component.KinematicVelocityBased {
			continue
		}
		b, err := c.body(e)
		if err != nil {
			return err
		}

		tr, ok := ecs.Get(w, e, component.TransformComponent)
		if !ok {
			tr = component.IdentityTransform()
		}
		tr.Translation = c.dim.WorldVector(b.Position(), tr.Translation)
		tr.Rotation = c.dim.WorldRotation(b.Rotation())
		if err := ecs.Add(w, e, component.TransformComponent, tr); err != nil {
			return fmt.Errorf("physics: entity %s: %w", e, err)
		}

		if rb != component.Dynamic {
			continue
		}
		vel, ok := ecs.Get(w, e, component.VelocityComponent)
		if !ok {
			continue
		}
		vel.Linear = c.dim.WorldVector(b.LinearVelocity(), vel.Linear)
		vel.Angular = c.dim.WorldAngular(b.AngularVelocity())
		if err := ecs.Add(w, e, component.VelocityComponent, vel); err != nil {
			return fmt.Errorf("physics: entity %s: %w", e, err)
		}
	}
	return nil
}
