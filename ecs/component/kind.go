package component

import (
	"errors"
	"reflect"
	"sync/atomic"
)

var (
	ErrEntityNotAlive       = errors.New("ecs: entity not alive")
	ErrInvalidComponentKind = errors.New("ecs: invalid component kind")
)

type ComponentID uint32

var nextComponentID atomic.Uint32

// Kind identifies a component type for untyped world operations such as
// queries and change tracking.
type Kind interface {
	ID() ComponentID
	Name() string
}

// ComponentKind is the typed identity of component type T. Every call to
// NewComponentKind allocates a fresh id, so kinds are created once at
// package level.
type ComponentKind[T any] struct {
	id   ComponentID
	name string
}

func NewComponentKind[T any]() ComponentKind[T] {
	return ComponentKind[T]{
		id:   ComponentID(nextComponentID.Add(1)),
		name: reflect.TypeFor[T]().String(),
	}
}

func (k ComponentKind[T]) ID() ComponentID { return k.id }

// Name is the Go type name of T, for logs and errors.
func (k ComponentKind[T]) Name() string { return k.name }

func (k ComponentKind[T]) Valid() bool { return k.id != 0 }

// ComponentHandle is what packages export for each component type; the
// generic ecs helpers take handles so values stay typed.
type ComponentHandle[T any] struct {
	kind ComponentKind[T]
}

func NewComponent[T any]() ComponentHandle[T] {
	return ComponentHandle[T]{kind: NewComponentKind[T]()}
}

func (h ComponentHandle[T]) Kind() ComponentKind[T] { return h.kind }

func (h ComponentHandle[T]) ID() ComponentID { return h.kind.id }

func (h ComponentHandle[T]) Name() string { return h.kind.name }
