package ecs

import (
	"errors"
	"testing"

	"github.com/milk9111/physync/ecs/component"
)

func TestWorldEntityLifecycle(t *testing.T) {
	cases := []struct {
		name         string
		create       int
		destroyIndex int // -1 = none
	}{
		{"single", 1, 0},
		{"three_create_destroy_middle", 3, 1},
		{"none_destroy", 2, -1},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w := NewWorld()
			ents := make([]Entity, 0, c.create)
			for i := 0; i < c.create; i++ {
				ents = append(ents, w.CreateEntity())
			}
			if len(w.Entities()) != c.create {
				t.Fatalf("expected %d entities, got %d", c.create, len(w.Entities()))
			}
			if c.destroyIndex >= 0 {
				if !w.DestroyEntity(ents[c.destroyIndex]) {
					t.Fatalf("DestroyEntity should return true for alive entity")
				}
				if w.IsAlive(ents[c.destroyIndex]) {
					t.Fatalf("entity should not be alive after destruction")
				}
				if w.DestroyEntity(ents[c.destroyIndex]) {
					t.Fatalf("DestroyEntity should return false for a dead entity")
				}
			}
		})
	}
}

func TestWorldRecyclesIDsWithNewGeneration(t *testing.T) {
	w := NewWorld()
	e1 := w.CreateEntity()
	w.DestroyEntity(e1)
	e2 := w.CreateEntity()

	if e1.id() != e2.id() {
		t.Fatalf("expected slot reuse, got %v and %v", e1, e2)
	}
	if e1 == e2 {
		t.Fatalf("recycled entity must carry a new generation")
	}
	if w.IsAlive(e1) {
		t.Fatalf("stale entity reported alive")
	}

	h := component.NewComponent[int]()
	if err := Add(w, e1, h, 1); !errors.Is(err, component.ErrEntityNotAlive) {
		t.Fatalf("expected ErrEntityNotAlive, got %v", err)
	}
}

func TestWorldComponents(t *testing.T) {
	w := NewWorld()

	h1 := component.NewComponent[int]()
	h2 := component.NewComponent[string]()

	e1 := w.CreateEntity()
	e2 := w.CreateEntity()

	tests := []struct {
		name     string
		setup    func() error
		check    func(t *testing.T)
		teardown func() bool
	}{
		{
			name:  "add_int_to_e1",
			setup: func() error { return Add(w, e1, h1, 10) },
			check: func(t *testing.T) {
				v, ok := Get(w, e1, h1)
				if !ok || v != 10 {
					t.Fatalf("expected 10, got %v ok=%v", v, ok)
				}
			},
			teardown: func() bool { return Remove(w, e1, h1) },
		},
		{
			name: "add_str_to_e1_and_e2",
			setup: func() error {
				if err := Add(w, e1, h2, "a"); err != nil {
					return err
				}
				return Add(w, e2, h2, "b")
			},
			check: func(t *testing.T) {
				if !Has(w, e1, h2) || !Has(w, e2, h2) {
					t.Fatalf("expected both entities to have string component")
				}
				if v, _ := Get(w, e2, h2); v != "b" {
					t.Fatalf("expected b, got %q", v)
				}
			},
			teardown: func() bool { return Remove(w, e1, h2) },
		},
		{
			name:  "replace_value",
			setup: func() error { _ = Add(w, e1, h1, 1); return Add(w, e1, h1, 2) },
			check: func(t *testing.T) {
				if v, _ := Get(w, e1, h1); v != 2 {
					t.Fatalf("expected replaced value 2, got %d", v)
				}
			},
			teardown: func() bool { return Remove(w, e1, h1) },
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.setup(); err != nil {
				t.Fatalf("setup failed: %v", err)
			}
			tc.check(t)
			if !tc.teardown() {
				t.Fatalf("teardown failed for %s", tc.name)
			}
		})
	}
}

func TestQuery(t *testing.T) {
	tests := []struct {
		name string
		run  func(t *testing.T)
	}{
		{
			name: "intersection",
			run: func(t *testing.T) {
				w := NewWorld()
				e1 := w.CreateEntity()
				e2 := w.CreateEntity()
				e3 := w.CreateEntity()

				ka := component.NewComponent[int]()
				kb := component.NewComponent[int]()
				kc := component.NewComponent[int]()

				_ = Add(w, e1, ka, 1)
				_ = Add(w, e2, ka, 2)
				_ = Add(w, e2, kb, 3)
				_ = Add(w, e2, kc, 5)
				_ = Add(w, e3, kb, 4)

				res := w.Query(ka.Kind(), kb.Kind(), kc.Kind())
				if len(res) != 1 || res[0] != e2 {
					t.Fatalf("expected only e2, got %v", res)
				}
			},
		},
		{
			name: "ignores_dead_entities",
			run: func(t *testing.T) {
				w := NewWorld()
				e := w.CreateEntity()
				ka := component.NewComponent[int]()
				_ = Add(w, e, ka, 1)
				w.DestroyEntity(e)

				if res := w.Query(ka.Kind()); len(res) != 0 {
					t.Fatalf("expected empty result after destroy, got %v", res)
				}
			},
		},
		{
			name: "missing_store_returns_nil",
			run: func(t *testing.T) {
				w := NewWorld()
				e := w.CreateEntity()
				ka := component.NewComponent[int]()
				kb := component.NewComponent[int]()
				_ = Add(w, e, ka, 1)

				if res := w.Query(ka.Kind(), kb.Kind()); len(res) != 0 {
					t.Fatalf("expected empty when other store missing, got %v", res)
				}
			},
		},
		{
			name: "first_and_for_each",
			run: func(t *testing.T) {
				w := NewWorld()
				ka := component.NewComponent[int]()
				if _, ok := w.First(ka.Kind()); ok {
					t.Fatalf("First on empty store should fail")
				}
				e1 := w.CreateEntity()
				e2 := w.CreateEntity()
				_ = Add(w, e1, ka, 1)
				_ = Add(w, e2, ka, 2)

				sum := 0
				ForEach(w, ka, func(_ Entity, v int) { sum += v })
				if sum != 3 {
					t.Fatalf("expected sum 3, got %d", sum)
				}
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, tc.run)
	}
}

func TestResources(t *testing.T) {
	type clock struct{ ticks int }

	w := NewWorld()
	if _, ok := Resource[clock](w); ok {
		t.Fatalf("resource should be absent")
	}
	SetResource(w, &clock{ticks: 3})
	c := MustResource[clock](w)
	c.ticks++
	if got, _ := Resource[clock](w); got.ticks != 4 {
		t.Fatalf("expected shared pointer, got %d", got.ticks)
	}
	SetResource[clock](w, nil)
	if _, ok := Resource[clock](w); ok {
		t.Fatalf("resource should be cleared")
	}
}

func TestSchedulerOrderAndEventLifetime(t *testing.T) {
	w := NewWorld()
	var order []string
	s := NewScheduler(
		SystemFunc(func(w *World) {
			order = append(order, "a")
			w.Events().Push(Event{Type: "tick"})
		}),
		nil,
		SystemFunc(func(w *World) { order = append(order, "b") }),
	)

	s.Update(w)
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("unexpected order %v", order)
	}
	if got := len(w.Events().Peek("tick")); got != 1 {
		t.Fatalf("expected event to survive the frame, got %d", got)
	}

	s.Update(w)
	if got := len(w.Events().Drain()); got != 1 {
		t.Fatalf("expected previous frame's events to be cleared, got %d", got)
	}
}
