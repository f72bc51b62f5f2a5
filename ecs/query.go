package ecs

import "github.com/milk9111/physync/ecs/component"

// Query returns the live entities that carry every given component kind. The
// smallest store drives the iteration.
func (w *World) Query(kinds ...component.Kind) []Entity {
	if w == nil || len(kinds) == 0 {
		return nil
	}
	sets := make([]*SparseSet, 0, len(kinds))
	for _, k := range kinds {
		s := w.store(k.ID(), false)
		if s == nil || s.Len() == 0 {
			return nil
		}
		sets = append(sets, s)
	}
	driver := 0
	for i, s := range sets {
		if s.Len() < sets[driver].Len() {
			driver = i
		}
	}

	out := make([]Entity, 0, sets[driver].Len())
outer:
	for _, e := range sets[driver].Entities() {
		if !w.entities.isAlive(e) {
			continue
		}
		for i, s := range sets {
			if i != driver && !s.Has(e) {
				continue outer
			}
		}
		out = append(out, e)
	}
	return out
}

// First returns the first live entity carrying every given kind.
func (w *World) First(kinds ...component.Kind) (Entity, bool) {
	ents := w.Query(kinds...)
	if len(ents) == 0 {
		return 0, false
	}
	return ents[0], true
}
