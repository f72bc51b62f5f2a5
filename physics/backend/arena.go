package backend

import (
	"errors"
	"fmt"
)

// ErrStaleHandle is returned when a handle's generation no longer matches the
// slot it points at, or the slot is empty.
var ErrStaleHandle = errors.New("backend: stale handle")

// Handle identifies a slot in an Arena. It is a back-reference only: the
// arena owns the value.
type Handle struct {
	Index      uint32
	Generation uint32
}

func (h Handle) String() string {
	return fmt.Sprintf("%d#%d", h.Index, h.Generation)
}

// BodyHandle identifies a backend body.
type BodyHandle Handle

func (h BodyHandle) String() string { return "body " + Handle(h).String() }

// ColliderHandle identifies a backend collider.
type ColliderHandle Handle

func (h ColliderHandle) String() string { return "collider " + Handle(h).String() }

type slot[T any] struct {
	value    T
	gen      uint32
	occupied bool
}

// Arena is a generation-checked slot store. Removing a value bumps the slot
// generation so every outstanding handle to it becomes stale.
type Arena[T any] struct {
	slots []slot[T]
	free  []uint32
	count int
}

// Insert stores v and returns its handle.
func (a *Arena[T]) Insert(v T) Handle {
	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		a.slots = append(a.slots, slot[T]{})
		idx = uint32(len(a.slots) - 1)
	}
	s := &a.slots[idx]
	s.value = v
	s.occupied = true
	a.count++
	return Handle{Index: idx, Generation: s.gen}
}

// Get returns the value for h.
func (a *Arena[T]) Get(h Handle) (T, error) {
	var zero T
	if !a.Contains(h) {
		return zero, fmt.Errorf("%w: %s", ErrStaleHandle, h)
	}
	return a.slots[h.Index].value, nil
}

// Contains reports whether h points at a live value.
func (a *Arena[T]) Contains(h Handle) bool {
	if a == nil || int(h.Index) >= len(a.slots) {
		return false
	}
	s := a.slots[h.Index]
	return s.occupied && s.gen == h.Generation
}

// Remove deletes the value for h and returns it.
func (a *Arena[T]) Remove(h Handle) (T, error) {
	var zero T
	if !a.Contains(h) {
		return zero, fmt.Errorf("%w: %s", ErrStaleHandle, h)
	}
	s := &a.slots[h.Index]
	v := s.value
	s.value = zero
	s.occupied = false
	s.gen++
	a.free = append(a.free, h.Index)
	a.count--
	return v, nil
}

// Len returns the number of live values.
func (a *Arena[T]) Len() int {
	if a == nil {
		return 0
	}
	return a.count
}

// Each calls fn for every live value in slot order.
func (a *Arena[T]) Each(fn func(h Handle, v T)) {
	if a == nil {
		return
	}
	for i, s := range a.slots {
		if s.occupied {
			fn(Handle{Index: uint32(i), Generation: s.gen}, s.value)
		}
	}
}
