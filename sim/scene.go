package sim

import (
	"fmt"

	"github.com/milk9111/physync/config"
	"github.com/milk9111/physync/ecs"
	"github.com/milk9111/physync/ecs/component"
)

// spawnPlan is a scene entry whose parts have all been checked.
type spawnPlan struct {
	spec   config.EntitySpec
	body   component.RigidBody
	shape  component.CollisionShape
	layers component.CollisionLayers
}

// Spawn creates one entity per scene entry. Every entry is checked before
// any entity is created, so a bad scene leaves the world untouched.
func (s *Sim) Spawn(scene *config.Scene) ([]ecs.Entity, error) {
	plans := make([]spawnPlan, 0, len(scene.Entities))
	for _, spec := range scene.Entities {
		if _, ok := s.Entity(spec.Name); ok {
			return nil, fmt.Errorf("sim: entity %q already spawned", spec.Name)
		}
		p, err := s.plan(spec)
		if err != nil {
			return nil, fmt.Errorf("sim: entity %q: %w", spec.Name, err)
		}
		plans = append(plans, p)
	}

	out := make([]ecs.Entity, 0, len(plans))
	for _, p := range plans {
		e, err := s.spawn(p)
		if err != nil {
			return out, fmt.Errorf("sim: entity %q: %w", p.spec.Name, err)
		}
		out = append(out, e)
	}
	s.logger.Info("sim: scene spawned", "entities", len(out))
	return out, nil
}

func (s *Sim) plan(spec config.EntitySpec) (spawnPlan, error) {
	body, err := component.ParseRigidBody(spec.Body)
	if err != nil {
		return spawnPlan{}, err
	}
	shape, err := spec.Shape.CollisionShape()
	if err != nil {
		return spawnPlan{}, err
	}
	p := spawnPlan{spec: spec, body: body, shape: shape}
	if spec.Layers != nil {
		p.layers, err = s.layers.Layers(spec.Layers.Groups, spec.Layers.Masks)
		if err != nil {
			return spawnPlan{}, err
		}
	}
	return p, nil
}

func (s *Sim) spawn(p spawnPlan) (ecs.Entity, error) {
	w := s.World
	e := w.CreateEntity()
	spec := p.spec

	if err := ecs.Add(w, e, component.TransformComponent, spec.Transform.Transform()); err != nil {
		return e, err
	}
	if spec.Velocity != nil {
		if err := ecs.Add(w, e, component.VelocityComponent, spec.Velocity.Velocity()); err != nil {
			return e, err
		}
	}
	if spec.Acceleration != nil {
		if err := ecs.Add(w, e, component.AccelerationComponent, spec.Acceleration.Acceleration()); err != nil {
			return e, err
		}
	}
	if spec.Layers != nil {
		if err := ecs.Add(w, e, component.CollisionLayersComponent, p.layers); err != nil {
			return e, err
		}
		s.layerSpecs[e] = *spec.Layers
	}
	if spec.Material != nil {
		if err := ecs.Add(w, e, component.PhysicMaterialComponent, *spec.Material); err != nil {
			return e, err
		}
	}
	if spec.Damping != nil {
		if err := ecs.Add(w, e, component.DampingComponent, *spec.Damping); err != nil {
			return e, err
		}
	}
	if spec.GravityScale != nil {
		if err := ecs.Add(w, e, component.GravityScaleComponent, component.GravityScale{Scale: *spec.GravityScale}); err != nil {
			return e, err
		}
	}
	if err := ecs.Add(w, e, component.CollisionShapeComponent, p.shape); err != nil {
		return e, err
	}
	if err := ecs.Add(w, e, component.RigidBodyComponent, p.body); err != nil {
		return e, err
	}

	s.names[spec.Name] = e
	s.logger.Debug("sim: spawned", "name", spec.Name, "entity", e, "body", p.body, "shape", p.shape.Kind)
	return e, nil
}
