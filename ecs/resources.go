package ecs

import (
	"fmt"
	"reflect"
)

// SetResource stores a world-scoped singleton keyed by its type.
func SetResource[T any](w *World, value *T) {
	if w == nil {
		return
	}
	if w.resources == nil {
		w.resources = make(map[reflect.Type]any)
	}
	key := reflect.TypeFor[T]()
	if value == nil {
		delete(w.resources, key)
		return
	}
	w.resources[key] = value
}

// Resource returns the singleton of type T, if one was set.
func Resource[T any](w *World) (*T, bool) {
	if w == nil || w.resources == nil {
		return nil, false
	}
	v, ok := w.resources[reflect.TypeFor[T]()]
	if !ok {
		return nil, false
	}
	r, ok := v.(*T)
	return r, ok
}

// MustResource returns the singleton of type T or panics.
func MustResource[T any](w *World) *T {
	r, ok := Resource[T](w)
	if !ok {
		panic(fmt.Sprintf("ecs: resource %s not set", reflect.TypeFor[T]()))
	}
	return r
}
