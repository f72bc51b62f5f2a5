// Package sim builds a world and a physics plugin from configuration, spawns
// scenes into it and applies configuration reloads between frames.
package sim

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/jakecoffman/cp"

	"github.com/milk9111/physync/config"
	"github.com/milk9111/physync/ecs"
	"github.com/milk9111/physync/ecs/component"
	"github.com/milk9111/physync/physics"
	"github.com/milk9111/physync/physics/backend/box2d"
	"github.com/milk9111/physync/physics/backend/chipmunk"
	"github.com/milk9111/physync/physics/backend/rigid3d"
	"github.com/milk9111/physync/physics/collision"
)

var ErrUnknownBackend = errors.New("sim: unknown backend")

type Sim struct {
	World *ecs.World

	runner physics.Runner
	space  *cp.Space
	cfg    *config.Config
	layers *collision.NamedLayers
	logger *slog.Logger

	names      map[string]ecs.Entity
	layerSpecs map[ecs.Entity]config.LayersSpec
	frames     uint64
	elapsed    time.Duration
}

func New(cfg *config.Config, logger *slog.Logger) (*Sim, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	layers, err := cfg.NamedLayers()
	if err != nil {
		return nil, err
	}
	s := &Sim{
		World:      ecs.NewWorld(),
		cfg:        cfg,
		layers:     layers,
		logger:     logger,
		names:      make(map[string]ecs.Entity),
		layerSpecs: make(map[ecs.Entity]config.LayersSpec),
	}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sim) open() error {
	opts := []physics.Option{
		physics.WithLogger(s.logger),
		physics.WithGravity(s.cfg.GravityVec()),
	}
	policy, err := s.cfg.StepsPolicy()
	if err != nil {
		return err
	}
	opts = append(opts, physics.WithSteps(policy))

	s.space = nil
	switch s.cfg.Backend {
	case "chipmunk":
		b := chipmunk.New(chipmunk.WithIterations(s.cfg.Chipmunk.Iterations))
		s.space = b.Space()
		s.runner, err = physics.NewPlanar(s.World, b, opts...)
	case "box2d":
		b := box2d.New(box2d.WithIterations(s.cfg.Box2D.VelocityIterations, s.cfg.Box2D.PositionIterations))
		s.runner, err = physics.NewPlanar(s.World, b, opts...)
	case "rigid3d":
		s.runner, err = physics.NewSpatial(s.World, rigid3d.New(), opts...)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, s.cfg.Backend)
	}
	if err != nil {
		return err
	}
	s.logger.Info("sim: backend ready", "backend", s.cfg.Backend, "dimension", s.runner.Dimension())
	return nil
}

func (s *Sim) Runner() physics.Runner { return s.runner }

func (s *Sim) Config() *config.Config { return s.cfg }

// Space returns the Chipmunk space, or nil for other backends.
func (s *Sim) Space() *cp.Space { return s.space }

func (s *Sim) Frames() uint64 { return s.frames }

func (s *Sim) Elapsed() time.Duration { return s.elapsed }

// Frame advances the world by one frame of wall-clock time delta. Events
// from the previous frame are dropped first.
func (s *Sim) Frame(delta time.Duration) error {
	s.World.Events().Drain()
	ecs.SetResource(s.World, &physics.FrameTime{Delta: delta})
	if err := s.runner.Frame(s.World); err != nil {
		return fmt.Errorf("sim: frame %d: %w", s.frames, err)
	}
	for _, evt := range physics.CollisionEvents(s.World) {
		s.logger.Debug("sim: contact", "kind", evt.Kind, "a", evt.A, "b", evt.B, "frame", s.frames)
	}
	s.frames++
	s.elapsed += delta
	return nil
}

// Apply switches to cfg. A different backend rebuilds every body from the
// entity components; other settings are changed in place. Nothing changes
// when cfg is rejected, including a layer table that no longer names every
// layer a spawned entity uses.
func (s *Sim) Apply(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	layers, err := cfg.NamedLayers()
	if err != nil {
		return err
	}
	policy, err := cfg.StepsPolicy()
	if err != nil {
		return err
	}
	prev := s.cfg

	var relayered map[ecs.Entity]component.CollisionLayers
	if !slices.Equal(prev.Layers, cfg.Layers) {
		if relayered, err = s.encodeLayers(layers); err != nil {
			return err
		}
	}

	if prev.Backend != cfg.Backend || prev.Chipmunk != cfg.Chipmunk || prev.Box2D != cfg.Box2D {
		if err := s.runner.Close(); err != nil {
			return fmt.Errorf("sim: close %s: %w", prev.Backend, err)
		}
		s.cfg = cfg
		if err := s.open(); err != nil {
			s.cfg = prev
			if rerr := s.open(); rerr != nil {
				return errors.Join(err, rerr)
			}
			return err
		}
	} else {
		if err := s.runner.SetSteps(policy); err != nil {
			return err
		}
		s.runner.SetGravity(cfg.GravityVec())
		s.cfg = cfg
	}

	if relayered != nil {
		s.layers = layers
		for e, l := range relayered {
			if err := ecs.Add(s.World, e, component.CollisionLayersComponent, l); err != nil {
				return err
			}
		}
	}
	return nil
}

// encodeLayers re-encodes the named layers of spawned entities against a new
// layer table without touching the world.
func (s *Sim) encodeLayers(table *collision.NamedLayers) (map[ecs.Entity]component.CollisionLayers, error) {
	out := make(map[ecs.Entity]component.CollisionLayers, len(s.layerSpecs))
	for e, spec := range s.layerSpecs {
		if !s.World.IsAlive(e) {
			delete(s.layerSpecs, e)
			continue
		}
		layers, err := table.Layers(spec.Groups, spec.Masks)
		if err != nil {
			return nil, fmt.Errorf("sim: entity %s: %w", e, err)
		}
		out[e] = layers
	}
	return out, nil
}

// Entity returns the entity spawned under name.
func (s *Sim) Entity(name string) (ecs.Entity, bool) {
	e, ok := s.names[name]
	if !ok || !s.World.IsAlive(e) {
		return 0, false
	}
	return e, true
}

// Names returns the names of the spawned entities, sorted.
func (s *Sim) Names() []string {
	out := make([]string, 0, len(s.names))
	for name := range s.names {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

func (s *Sim) Close() error {
	return s.runner.Close()
}
