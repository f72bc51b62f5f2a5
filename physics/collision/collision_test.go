package collision

import (
	"errors"
	"fmt"
	"testing"

	"github.com/milk9111/physync/ecs/component"
	"github.com/milk9111/physync/physics/backend"
)

type testLayer int

const (
	layerA testLayer = iota
	layerB
)

type testCodec struct{}

func (testCodec) ToBits(l testLayer) uint32 {
	switch l {
	case layerA:
		return 1
	case layerB:
		return 2
	}
	return 0
}

func (testCodec) AllBits() uint32 { return 3 }

func TestBits(t *testing.T) {
	tests := []struct {
		name   string
		layers []testLayer
		want   uint32
	}{
		{"empty", nil, 0},
		{"a", []testLayer{layerA}, 1},
		{"a_b", []testLayer{layerA, layerB}, 3},
		{"repeat", []testLayer{layerB, layerB}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Bits[testLayer](testCodec{}, tt.layers...); got != tt.want {
				t.Fatalf("Bits() = %b, want %b", got, tt.want)
			}
		})
	}
}

func TestNewLayersAndFilter(t *testing.T) {
	l := NewLayers[testLayer](testCodec{}, []testLayer{layerA}, []testLayer{layerB})
	if l != (component.CollisionLayers{Groups: 1, Masks: 2}) {
		t.Fatalf("NewLayers = %+v", l)
	}

	got := Filter(l, true)
	if got != (backend.InteractionGroups{Memberships: 1, Filter: 2}) {
		t.Fatalf("Filter = %+v", got)
	}

	absent := Filter(component.CollisionLayers{}, false)
	if absent.Memberships != AllBits || absent.Filter != AllBits {
		t.Fatalf("absent layers must map to all bits, got %+v", absent)
	}

	all := AllLayers[testLayer](testCodec{})
	if all.Groups != 3 || all.Masks != 3 {
		t.Fatalf("AllLayers = %+v", all)
	}
}

func TestNamedLayers(t *testing.T) {
	n, err := NewNamedLayers([]string{"world", "player", "enemy"})
	if err != nil {
		t.Fatalf("NewNamedLayers: %v", err)
	}
	if n.ToBits("enemy") != 4 || n.ToBits("missing") != 0 {
		t.Fatalf("unexpected bits")
	}
	if n.AllBits() != 7 {
		t.Fatalf("AllBits = %b", n.AllBits())
	}

	l, err := n.Layers([]string{"player"}, []string{"world", "enemy"})
	if err != nil {
		t.Fatalf("Layers: %v", err)
	}
	if l.Groups != 2 || l.Masks != 5 {
		t.Fatalf("Layers = %+v", l)
	}
	if _, err := n.Layers([]string{"ghost"}, nil); !errors.Is(err, ErrUnknownLayer) {
		t.Fatalf("expected ErrUnknownLayer, got %v", err)
	}
}

func TestNamedLayersLimits(t *testing.T) {
	names := make([]string, 32)
	for i := range names {
		names[i] = fmt.Sprintf("l%d", i)
	}
	n, err := NewNamedLayers(names)
	if err != nil {
		t.Fatalf("32 layers should be accepted: %v", err)
	}
	if n.AllBits() != AllBits || n.ToBits("l31") != 1<<31 {
		t.Fatalf("unexpected bits for full codec")
	}

	if _, err := NewNamedLayers(append(names, "extra")); !errors.Is(err, ErrTooManyLayers) {
		t.Fatalf("expected ErrTooManyLayers, got %v", err)
	}
	if _, err := NewNamedLayers([]string{"a", "a"}); !errors.Is(err, ErrDuplicateLayer) {
		t.Fatalf("expected ErrDuplicateLayer, got %v", err)
	}
}
