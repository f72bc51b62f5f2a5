package physics

import (
	"errors"
	"fmt"
	"slices"

	"github.com/milk9111/physync/ecs"
	"github.com/milk9111/physync/physics/backend"
)

var ErrAlreadyBound = errors.New("physics: entity already bound")

// Handles is the backend body and collider owned by one entity.
type Handles struct {
	Body     backend.BodyHandle
	Collider backend.ColliderHandle
}

// Registry correlates entities with their backend handles. An entity owns at
// most one body/collider pair.
type Registry struct {
	byEntity   map[ecs.Entity]Handles
	byCollider map[backend.ColliderHandle]ecs.Entity
}

func NewRegistry() *Registry {
	return &Registry{
		byEntity:   make(map[ecs.Entity]Handles),
		byCollider: make(map[backend.ColliderHandle]ecs.Entity),
	}
}

func (r *Registry) Bind(e ecs.Entity, h Handles) error {
	if _, ok := r.byEntity[e]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyBound, e)
	}
	r.byEntity[e] = h
	r.byCollider[h.Collider] = e
	return nil
}

func (r *Registry) Lookup(e ecs.Entity) (Handles, bool) {
	h, ok := r.byEntity[e]
	return h, ok
}

// Release forgets the binding of e and returns it so the caller can destroy
// the backend objects.
func (r *Registry) Release(e ecs.Entity) (Handles, bool) {
	h, ok := r.byEntity[e]
	if !ok {
		return Handles{}, false
	}
	delete(r.byEntity, e)
	delete(r.byCollider, h.Collider)
	return h, true
}

// EntityOf maps a collider back to its entity.
func (r *Registry) EntityOf(h backend.ColliderHandle) (ecs.Entity, bool) {
	e, ok := r.byCollider[h]
	return e, ok
}

func (r *Registry) Len() int {
	return len(r.byEntity)
}

// Entities returns the bound entities in ascending order.
func (r *Registry) Entities() []ecs.Entity {
	out := make([]ecs.Entity, 0, len(r.byEntity))
	for e := range r.byEntity {
		out = append(out, e)
	}
	slices.Sort(out)
	return out
}
