package physics

import (
	"errors"
	"fmt"

	"github.com/milk9111/physync/ecs"
	"github.com/milk9111/physync/ecs/component"
	"github.com/milk9111/physync/physics/backend"
	"github.com/milk9111/physync/physics/collision"
)

func trackedKinds() []component.Kind {
	return []component.Kind{
		component.RigidBodyComponent,
		component.CollisionShapeComponent,
		component.CollisionLayersComponent,
		component.PhysicMaterialComponent,
		component.DampingComponent,
		component.GravityScaleComponent,
		component.TransformComponent,
	}
}

// dirty collects what changed on one entity since the last reconcile.
type dirty struct {
	kind      bool
	shape     bool
	layers    bool
	material  bool
	damping   bool
	gravity   bool
	transform bool
}

// BackendKind maps a rigid body kind to the backend body kind. Sensors are
// static bodies with a sensor collider.
func BackendKind(rb component.RigidBody) backend.Kind {
	switch rb {
	case component.Static, component.Sensor:
		return backend.Static
	case component.KinematicPositionBased:
		return backend.KinematicPosition
	case component.KinematicVelocityBased:
		return backend.KinematicVelocity
	default:
		return backend.Dynamic
	}
}

func (c *Context[V, A, O]) reconcile() error {
	changes := c.tracker.Drain()
	if len(changes) == 0 {
		return nil
	}

	order := make([]ecs.Entity, 0, len(changes))
	byEntity := make(map[ecs.Entity]*dirty, len(changes))
	for _, ch := range changes {
		d, ok := byEntity[ch.Entity]
		if !ok {
			d = &dirty{}
			byEntity[ch.Entity] = d
			order = append(order, ch.Entity)
		}
		switch ch.Component {
		case component.RigidBodyComponent.ID():
			d.kind = true
		case component.CollisionShapeComponent.ID():
			d.shape = true
		case component.CollisionLayersComponent.ID():
			d.layers = true
		case component.PhysicMaterialComponent.ID():
			d.material = true
		case component.DampingComponent.ID():
			d.damping = true
		case component.GravityScaleComponent.ID():
			d.gravity = true
		case component.TransformComponent.ID():
			d.transform = true
		}
	}

	// A failing entity does not stop the rest of the batch; its changes are
	// not retried.
	var errs []error
	for _, e := range order {
		if err := c.reconcileEntity(e, byEntity[e]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Context[V, A, O]) reconcileEntity(e ecs.Entity, d *dirty) error {
	w := c.world
	rb, hasBody := ecs.Get(w, e, component.RigidBodyComponent)
	shape, hasShape := ecs.Get(w, e, component.CollisionShapeComponent)
	_, bound := c.registry.Lookup(e)

	if !w.IsAlive(e) || !hasBody || !hasShape {
		if bound {
			return c.destroy(e)
		}
		return nil
	}
	if !bound {
		return c.create(e, rb, shape)
	}

	if d.shape || (d.kind && BackendKind(c.kinds[e]) != BackendKind(rb)) {
		if err := c.destroy(e); err != nil {
			return err
		}
		return c.create(e, rb, shape)
	}
	return c.update(e, rb, d)
}

// update applies changes that do not need a new backend object.
func (c *Context[V, A, O]) update(e ecs.Entity, rb component.RigidBody, d *dirty) error {
	w := c.world
	h, _ := c.registry.Lookup(e)
	col, err := c.backend.Collider(h.Collider)
	if err != nil {
		return fmt.Errorf("physics: entity %s: %w", e, err)
	}
	b, err := c.backend.Body(h.Body)
	if err != nil {
		return fmt.Errorf("physics: entity %s: %w", e, err)
	}

	if d.kind && c.kinds[e] != rb {
		col.SetSensor(rb.IsSensor())
		c.logger.Debug("physics: sensor flag changed", "entity", e, "kind", rb)
		c.kinds[e] = rb
	}
	if d.layers {
		layers, ok := ecs.Get(w, e, component.CollisionLayersComponent)
		col.SetGroups(collision.Filter(layers, ok))
	}
	if d.material {
		col.SetMaterial(material(w, e))
	}
	if d.damping {
		damping, _ := ecs.Get(w, e, component.DampingComponent)
		b.SetDamping(damping.Linear, damping.Angular)
	}
	if d.gravity {
		b.SetGravityScale(gravityScale(w, e))
	}
	if d.transform && BackendKind(rb) == backend.Static {
		tr := transform(w, e)
		b.SetPose(c.dim.Vector(tr.Translation), c.dim.Rotation(tr.Orientation()))
	}
	return nil
}

func (c *Context[V, A, O]) create(e ecs.Entity, rb component.RigidBody, shape component.CollisionShape) error {
	w := c.world
	if err := c.dim.Validate(shape); err != nil {
		return fmt.Errorf("physics: entity %s: %w", e, err)
	}

	tr := transform(w, e)
	desc := backend.BodyDesc[V, A, O]{
		Kind:         BackendKind(rb),
		Position:     c.dim.Vector(tr.Translation),
		Rotation:     c.dim.Rotation(tr.Orientation()),
		GravityScale: gravityScale(w, e),
	}
	if damping, ok := ecs.Get(w, e, component.DampingComponent); ok {
		desc.LinearDamping, desc.AngularDamping = damping.Linear, damping.Angular
	}
	if usesVelocity(rb) {
		if vel, ok := ecs.Get(w, e, component.VelocityComponent); ok {
			desc.LinearVelocity = c.dim.Vector(vel.Linear)
			desc.AngularVelocity = c.dim.Angular(vel.Angular)
		}
	}
	bh := c.backend.CreateBody(desc)

	layers, hasLayers := ecs.Get(w, e, component.CollisionLayersComponent)
	ch, err := c.backend.CreateCollider(bh, backend.ColliderDesc[V]{
		Shape:    c.dim.Shape(shape),
		Sensor:   rb.IsSensor(),
		Material: material(w, e),
		Groups:   collision.Filter(layers, hasLayers),
	})
	if err != nil {
		_ = c.backend.RemoveBody(bh)
		return fmt.Errorf("physics: entity %s: %w", e, err)
	}

	if err := c.registry.Bind(e, Handles{Body: bh, Collider: ch}); err != nil {
		_ = c.backend.RemoveBody(bh)
		return err
	}
	c.kinds[e] = rb
	c.fresh[e] = struct{}{}

	if err := ecs.Add(w, e, component.RigidBodyHandleComponent, component.RigidBodyHandle{Handle: bh}); err != nil {
		return fmt.Errorf("physics: entity %s: %w", e, err)
	}
	if err := ecs.Add(w, e, component.ColliderHandleComponent, component.ColliderHandle{Handle: ch}); err != nil {
		return fmt.Errorf("physics: entity %s: %w", e, err)
	}
	c.logger.Debug("physics: created body", "entity", e, "kind", rb, "shape", shape.Kind, "body", bh, "collider", ch)
	return nil
}

// destroy releases the binding of e, removes its backend objects and, if e
// is still alive, its handle components.
func (c *Context[V, A, O]) destroy(e ecs.Entity) error {
	h, ok := c.registry.Release(e)
	if !ok {
		return nil
	}
	delete(c.kinds, e)
	delete(c.fresh, e)

	if err := c.backend.RemoveBody(h.Body); err != nil {
		return fmt.Errorf("physics: entity %s: %w", e, err)
	}
	if c.world.IsAlive(e) {
		ecs.Remove(c.world, e, component.RigidBodyHandleComponent)
		ecs.Remove(c.world, e, component.ColliderHandleComponent)
	}
	c.logger.Debug("physics: removed body", "entity", e, "body", h.Body)
	return nil
}

func usesVelocity(rb component.RigidBody) bool {
	return rb == component.Dynamic || rb == component.KinematicVelocityBased
}

func transform(w *ecs.World, e ecs.Entity) component.Transform {
	if tr, ok := ecs.Get(w, e, component.TransformComponent); ok {
		return tr
	}
	return component.IdentityTransform()
}

func gravityScale(w *ecs.World, e ecs.Entity) float64 {
	if gs, ok := ecs.Get(w, e, component.GravityScaleComponent); ok {
		return gs.Scale
	}
	return 1
}

func material(w *ecs.World, e ecs.Entity) backend.Material {
	m, ok := ecs.Get(w, e, component.PhysicMaterialComponent)
	if !ok {
		m = component.DefaultPhysicMaterial()
	}
	return backend.Material{Density: m.Density, Friction: m.Friction, Restitution: m.Restitution}
}
