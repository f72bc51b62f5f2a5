package ecs

import (
	"fmt"
	"reflect"

	"github.com/milk9111/physync/ecs/component"
)

// System updates a world each frame.
type System interface {
	Update(w *World)
}

// World owns entities, component stores, change trackers, events and
// resources.
type World struct {
	entities  entityStore
	stores    map[component.ComponentID]*SparseSet
	trackers  []*ChangeTracker
	events    EventQueue
	resources map[reflect.Type]any
}

// NewWorld creates an empty ECS world.
func NewWorld() *World {
	return &World{
		stores:    make(map[component.ComponentID]*SparseSet),
		resources: make(map[reflect.Type]any),
	}
}

// CreateEntity allocates a new entity.
func (w *World) CreateEntity() Entity {
	return w.entities.create()
}

// DestroyEntity removes every component of e, reporting each removal to the
// change trackers, and retires the entity id.
func (w *World) DestroyEntity(e Entity) bool {
	if w == nil || !w.entities.isAlive(e) {
		return false
	}
	for id, store := range w.stores {
		if store.Remove(e) {
			w.notify(e, id, Removed)
		}
	}
	return w.entities.destroy(e)
}

// IsAlive reports whether an entity handle is valid.
func (w *World) IsAlive(e Entity) bool {
	if w == nil {
		return false
	}
	return w.entities.isAlive(e)
}

// Entities returns every live entity in slot order.
func (w *World) Entities() []Entity {
	if w == nil {
		return nil
	}
	return w.entities.all()
}

// Events returns the world event queue.
func (w *World) Events() *EventQueue {
	if w == nil {
		return nil
	}
	return &w.events
}

// AddComponent stores value as the component of the given kind on e.
func (w *World) AddComponent(e Entity, kind component.Kind, value any) error {
	if kind == nil || kind.ID() == 0 {
		return component.ErrInvalidComponentKind
	}
	if !w.IsAlive(e) {
		return fmt.Errorf("%w: add %s to %s", component.ErrEntityNotAlive, kind.Name(), e)
	}
	store := w.store(kind.ID(), true)
	if store.Set(e, value) {
		w.notify(e, kind.ID(), Changed)
	} else {
		w.notify(e, kind.ID(), Added)
	}
	return nil
}

// RemoveComponent deletes the component of the given kind from e.
func (w *World) RemoveComponent(e Entity, kind component.Kind) bool {
	if w == nil || kind == nil {
		return false
	}
	store := w.store(kind.ID(), false)
	if store == nil || !store.Remove(e) {
		return false
	}
	w.notify(e, kind.ID(), Removed)
	return true
}

// HasComponent reports whether e carries a component of the given kind.
func (w *World) HasComponent(e Entity, kind component.Kind) bool {
	if w == nil || kind == nil {
		return false
	}
	return w.store(kind.ID(), false).Has(e)
}

// GetComponent returns the raw component value of the given kind.
func (w *World) GetComponent(e Entity, kind component.Kind) (any, bool) {
	if w == nil || kind == nil {
		return nil, false
	}
	store := w.store(kind.ID(), false)
	if !store.Has(e) {
		return nil, false
	}
	return store.Get(e), true
}

func (w *World) store(id component.ComponentID, create bool) *SparseSet {
	if w.stores == nil {
		w.stores = make(map[component.ComponentID]*SparseSet)
	}
	s := w.stores[id]
	if s == nil && create {
		s = &SparseSet{}
		w.stores[id] = s
	}
	return s
}
