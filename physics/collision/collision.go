// Package collision encodes collision layers as the 32-bit membership and
// filter masks backends use for collision filtering.
package collision

import (
	"errors"
	"fmt"

	"github.com/milk9111/physync/ecs/component"
	"github.com/milk9111/physync/physics/backend"
)

// AllBits is the mask of an entity that belongs to, and collides with, every
// layer.
const AllBits uint32 = 0xFFFFFFFF

var (
	ErrTooManyLayers  = errors.New("collision: more than 32 layers")
	ErrDuplicateLayer = errors.New("collision: duplicate layer")
	ErrUnknownLayer   = errors.New("collision: unknown layer")
)

// LayerCodec maps an application layer type to bits. Both functions must be
// pure.
type LayerCodec[L any] interface {
	ToBits(layer L) uint32
	AllBits() uint32
}

// Bits ORs the bits of every layer. No layers yields 0.
func Bits[L any](codec LayerCodec[L], layers ...L) uint32 {
	var bits uint32
	for _, l := range layers {
		bits |= codec.ToBits(l)
	}
	return bits
}

func NewLayers[L any](codec LayerCodec[L], groups, masks []L) component.CollisionLayers {
	return component.CollisionLayers{
		Groups: Bits(codec, groups...),
		Masks:  Bits(codec, masks...),
	}
}

// AllLayers puts an entity in every layer of codec and lets it collide with
// all of them.
func AllLayers[L any](codec LayerCodec[L]) component.CollisionLayers {
	all := codec.AllBits()
	return component.CollisionLayers{Groups: all, Masks: all}
}

// Filter returns the backend filter for an entity. Entities without layers
// interact with everything.
func Filter(layers component.CollisionLayers, present bool) backend.InteractionGroups {
	if !present {
		return backend.InteractionGroups{Memberships: AllBits, Filter: AllBits}
	}
	return backend.InteractionGroups{Memberships: layers.Groups, Filter: layers.Masks}
}

// NamedLayers assigns bit i to the i-th name. It is the codec used by
// configuration and scene files.
type NamedLayers struct {
	names []string
	index map[string]int
}

var _ LayerCodec[string] = (*NamedLayers)(nil)

func NewNamedLayers(names []string) (*NamedLayers, error) {
	if len(names) > 32 {
		return nil, fmt.Errorf("%w: %d", ErrTooManyLayers, len(names))
	}
	n := &NamedLayers{
		names: append([]string(nil), names...),
		index: make(map[string]int, len(names)),
	}
	for i, name := range names {
		if name == "" {
			return nil, fmt.Errorf("collision: layer %d has no name", i)
		}
		if _, ok := n.index[name]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateLayer, name)
		}
		n.index[name] = i
	}
	return n, nil
}

// ToBits returns 0 for unknown names.
func (n *NamedLayers) ToBits(name string) uint32 {
	bit, _ := n.Lookup(name)
	return bit
}

func (n *NamedLayers) Lookup(name string) (uint32, bool) {
	if n == nil {
		return 0, false
	}
	i, ok := n.index[name]
	if !ok {
		return 0, false
	}
	return 1 << uint(i), true
}

func (n *NamedLayers) AllBits() uint32 {
	if n == nil {
		return 0
	}
	if len(n.names) == 32 {
		return AllBits
	}
	return 1<<uint(len(n.names)) - 1
}

func (n *NamedLayers) Names() []string {
	if n == nil {
		return nil
	}
	return append([]string(nil), n.names...)
}

// Layers is NewLayers with unknown names reported as errors.
func (n *NamedLayers) Layers(groups, masks []string) (component.CollisionLayers, error) {
	for _, name := range append(append([]string(nil), groups...), masks...) {
		if _, ok := n.Lookup(name); !ok {
			return component.CollisionLayers{}, fmt.Errorf("%w: %q", ErrUnknownLayer, name)
		}
	}
	return NewLayers[string](n, groups, masks), nil
}
