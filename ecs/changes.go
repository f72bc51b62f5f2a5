package ecs

import "github.com/milk9111/physync/ecs/component"

// ChangeKind classifies a component change.
type ChangeKind uint8

const (
	Added ChangeKind = iota + 1
	Changed
	Removed
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Changed:
		return "changed"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Change records one add/change/remove of a component on an entity.
type Change struct {
	Entity    Entity
	Component component.ComponentID
	Kind      ChangeKind
}

// ChangeTracker buffers changes to a fixed set of component kinds until the
// owner drains them. Each tracker has its own buffer, so several consumers can
// observe the same world independently.
type ChangeTracker struct {
	kinds   map[component.ComponentID]struct{}
	changes []Change
	closed  bool
}

// Track registers a tracker for the given kinds. Components already present
// in the world are reported as Added on the first Drain.
func (w *World) Track(kinds ...component.Kind) *ChangeTracker {
	t := &ChangeTracker{kinds: make(map[component.ComponentID]struct{}, len(kinds))}
	for _, k := range kinds {
		t.kinds[k.ID()] = struct{}{}
	}
	if w == nil {
		return t
	}
	for _, k := range kinds {
		store := w.store(k.ID(), false)
		for _, e := range store.Entities() {
			if w.entities.isAlive(e) {
				t.changes = append(t.changes, Change{Entity: e, Component: k.ID(), Kind: Added})
			}
		}
	}
	w.trackers = append(w.trackers, t)
	return t
}

// Untrack stops delivering changes to t.
func (w *World) Untrack(t *ChangeTracker) {
	if w == nil || t == nil {
		return
	}
	for i, other := range w.trackers {
		if other == t {
			w.trackers = append(w.trackers[:i], w.trackers[i+1:]...)
			break
		}
	}
	t.closed = true
}

// Drain returns the buffered changes in the order they happened and clears
// the buffer.
func (t *ChangeTracker) Drain() []Change {
	if t == nil || len(t.changes) == 0 {
		return nil
	}
	out := t.changes
	t.changes = nil
	return out
}

// Pending reports how many changes are buffered.
func (t *ChangeTracker) Pending() int {
	if t == nil {
		return 0
	}
	return len(t.changes)
}

func (w *World) notify(e Entity, id component.ComponentID, kind ChangeKind) {
	for _, t := range w.trackers {
		if _, ok := t.kinds[id]; ok && !t.closed {
			t.changes = append(t.changes, Change{Entity: e, Component: id, Kind: kind})
		}
	}
}
