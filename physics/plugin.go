// Package physics keeps an ECS world and a rigid-body backend in sync.
//
// Entities declare physics intent with components (RigidBody,
// CollisionShape, CollisionLayers, Velocity, ...). Every frame the plugin
// runs four phases in order: reconcile the declared components into backend
// bodies and colliders, push velocities and kinematic poses, step the
// backend, then pull poses and velocities back onto the entities.
package physics

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/milk9111/physync/ecs"
	"github.com/milk9111/physync/ecs/component"
	"github.com/milk9111/physync/physics/backend"
	"github.com/milk9111/physync/physics/dim"
	"github.com/milk9111/physync/physics/steps"
)

var (
	ErrPhaseOrder   = errors.New("physics: phase out of order")
	ErrForeignWorld = errors.New("physics: world not owned by this plugin")
)

// DefaultSteps is one 60 Hz step per frame.
var DefaultSteps = steps.EveryFrame(time.Second / 60)

// FrameTime is the world resource holding the wall-clock time of the current
// frame. Without it every frame counts as one step duration.
type FrameTime struct {
	Delta time.Duration
}

type phase uint8

const (
	phaseIdle phase = iota
	phaseReconciled
	phasePushed
	phaseStepped
)

func (p phase) String() string {
	switch p {
	case phaseIdle:
		return "idle"
	case phaseReconciled:
		return "reconciled"
	case phasePushed:
		return "pushed"
	case phaseStepped:
		return "stepped"
	default:
		return "unknown"
	}
}

type options struct {
	logger  *slog.Logger
	steps   steps.Steps
	gravity mgl64.Vec3
}

type Option func(*options)

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func WithSteps(s steps.Steps) Option {
	return func(o *options) { o.steps = s }
}

// WithGravity sets the world-space gravity. Planar backends drop Z.
func WithGravity(g mgl64.Vec3) Option {
	return func(o *options) { o.gravity = g }
}

// Context is the state shared by every phase of one plugin.
type Context[V, A, O any] struct {
	world     *ecs.World
	backend   backend.Backend[V, A, O]
	dim       dim.Dimension[V, A, O]
	registry  *Registry
	scheduler *steps.Scheduler
	tracker   *ecs.ChangeTracker
	logger    *slog.Logger
	gravity   mgl64.Vec3

	kinds map[ecs.Entity]component.RigidBody
	// Bodies that have not been stepped yet.
	fresh map[ecs.Entity]struct{}
	phase phase
	plan  steps.Plan
}

func (c *Context[V, A, O]) Backend() backend.Backend[V, A, O] { return c.backend }

func (c *Context[V, A, O]) Dimension() dim.Dimension[V, A, O] { return c.dim }

func (c *Context[V, A, O]) Registry() *Registry { return c.registry }

// Plan returns the step plan of the current frame.
func (c *Context[V, A, O]) Plan() steps.Plan { return c.plan }

// Runner is the dimension-independent face of a Plugin.
type Runner interface {
	Install(s *ecs.Scheduler)
	Frame(w *ecs.World) error
	Steps() steps.Steps
	SetSteps(s steps.Steps) error
	SetGravity(g mgl64.Vec3)
	BodyState(e ecs.Entity) (BodyState, error)
	Collider(e ecs.Entity) (backend.Collider, error)
	Registry() *Registry
	Dimension() string
	Close() error
}

type Plugin[V, A, O any] struct {
	ctx *Context[V, A, O]
}

var (
	_ Runner = (*Plugin[mgl64.Vec2, float64, float64])(nil)
	_ Runner = (*Plugin[mgl64.Vec3, mgl64.Vec3, mgl64.Quat])(nil)
)

// New attaches a plugin to w. Components already present in w are
// reconciled on the first frame.
func New[V, A, O any](w *ecs.World, b backend.Backend[V, A, O], d dim.Dimension[V, A, O], opts ...Option) (*Plugin[V, A, O], error) {
	if w == nil || b == nil || d == nil {
		return nil, errors.New("physics: world, backend and dimension are required")
	}
	o := options{logger: slog.Default(), steps: DefaultSteps}
	for _, opt := range opts {
		opt(&o)
	}
	sched, err := steps.NewScheduler(o.steps)
	if err != nil {
		return nil, fmt.Errorf("physics: %w", err)
	}

	ctx := &Context[V, A, O]{
		world:     w,
		backend:   b,
		dim:       d,
		registry:  NewRegistry(),
		scheduler: sched,
		logger:    o.logger.With("dimension", d.Name()),
		gravity:   o.gravity,
		kinds:     make(map[ecs.Entity]component.RigidBody),
		fresh:     make(map[ecs.Entity]struct{}),
	}
	ctx.tracker = w.Track(trackedKinds()...)
	b.SetGravity(d.Vector(o.gravity))

	ctx.logger.Info("physics: plugin ready", "steps", o.steps.Mode, "step", o.steps.Duration)
	return &Plugin[V, A, O]{ctx: ctx}, nil
}

func NewPlanar(w *ecs.World, b backend.Backend[mgl64.Vec2, float64, float64], opts ...Option) (*Plugin[mgl64.Vec2, float64, float64], error) {
	return New[mgl64.Vec2, float64, float64](w, b, dim.Planar{}, opts...)
}

func NewSpatial(w *ecs.World, b backend.Backend[mgl64.Vec3, mgl64.Vec3, mgl64.Quat], opts ...Option) (*Plugin[mgl64.Vec3, mgl64.Vec3, mgl64.Quat], error) {
	return New[mgl64.Vec3, mgl64.Vec3, mgl64.Quat](w, b, dim.Spatial{}, opts...)
}

func (p *Plugin[V, A, O]) Context() *Context[V, A, O] { return p.ctx }

func (p *Plugin[V, A, O]) Registry() *Registry { return p.ctx.registry }

func (p *Plugin[V, A, O]) Dimension() string { return p.ctx.dim.Name() }

func (p *Plugin[V, A, O]) Steps() steps.Steps { return p.ctx.scheduler.Steps() }

// SetSteps changes the step policy. It takes effect on the next frame.
func (p *Plugin[V, A, O]) SetSteps(s steps.Steps) error {
	if err := p.ctx.scheduler.Set(s); err != nil {
		return fmt.Errorf("physics: %w", err)
	}
	p.ctx.logger.Info("physics: steps changed", "mode", s.Mode, "step", s.Duration)
	return nil
}

func (p *Plugin[V, A, O]) SetGravity(g mgl64.Vec3) {
	p.ctx.gravity = g
	p.ctx.backend.SetGravity(p.ctx.dim.Vector(g))
}

// Install registers the four phases on s, in order. The systems panic on
// fatal errors; use Frame to receive them as values.
func (p *Plugin[V, A, O]) Install(s *ecs.Scheduler) {
	s.Add(system("reconcile", p.Reconcile))
	s.Add(system("push", p.Push))
	s.Add(system("step", p.Step))
	s.Add(system("pull", p.Pull))
}

func system(name string, run func(*ecs.World) error) ecs.SystemFunc {
	return func(w *ecs.World) {
		if err := run(w); err != nil {
			panic("physics " + name + " system: " + err.Error())
		}
	}
}

// Frame runs reconcile, push, step and pull. After an error the plugin is
// back in its idle phase.
func (p *Plugin[V, A, O]) Frame(w *ecs.World) error {
	for _, run := range [...]func(*ecs.World) error{p.Reconcile, p.Push, p.Step, p.Pull} {
		if err := run(w); err != nil {
			p.ctx.phase = phaseIdle
			return err
		}
	}
	return nil
}

// Reconcile plans the frame's steps and applies component changes to the
// backend.
func (p *Plugin[V, A, O]) Reconcile(w *ecs.World) error {
	if err := p.ctx.enter(w, phaseIdle); err != nil {
		return err
	}
	delta := p.ctx.scheduler.Steps().Duration
	if ft, ok := ecs.Resource[FrameTime](w); ok {
		delta = ft.Delta
	}
	p.ctx.plan = p.ctx.scheduler.Plan(delta)
	if err := p.ctx.reconcile(); err != nil {
		return err
	}
	p.ctx.phase = phaseReconciled
	return nil
}

func (p *Plugin[V, A, O]) Push(w *ecs.World) error {
	if err := p.ctx.enter(w, phaseReconciled); err != nil {
		return err
	}
	if err := p.ctx.push(); err != nil {
		return err
	}
	p.ctx.phase = phasePushed
	return nil
}

func (p *Plugin[V, A, O]) Step(w *ecs.World) error {
	if err := p.ctx.enter(w, phasePushed); err != nil {
		return err
	}
	if err := p.ctx.step(); err != nil {
		return err
	}
	p.ctx.phase = phaseStepped
	return nil
}

func (p *Plugin[V, A, O]) Pull(w *ecs.World) error {
	if err := p.ctx.enter(w, phaseStepped); err != nil {
		return err
	}
	if err := p.ctx.pull(); err != nil {
		return err
	}
	p.ctx.phase = phaseIdle
	return nil
}

// BodyState is the backend state of an entity's body in world space.
type BodyState struct {
	Kind            backend.Kind
	Position        mgl64.Vec3
	Rotation        mgl64.Quat
	LinearVelocity  mgl64.Vec3
	AngularVelocity component.AxisAngle
}

// BodyState reads the backend body bound to e. Planar backends report Z as 0.
func (p *Plugin[V, A, O]) BodyState(e ecs.Entity) (BodyState, error) {
	b, err := p.ctx.body(e)
	if err != nil {
		return BodyState{}, err
	}
	d := p.ctx.dim
	return BodyState{
		Kind:            b.Kind(),
		Position:        d.WorldVector(b.Position(), mgl64.Vec3{}),
		Rotation:        d.WorldRotation(b.Rotation()),
		LinearVelocity:  d.WorldVector(b.LinearVelocity(), mgl64.Vec3{}),
		AngularVelocity: d.WorldAngular(b.AngularVelocity()),
	}, nil
}

func (p *Plugin[V, A, O]) Collider(e ecs.Entity) (backend.Collider, error) {
	h, ok := p.ctx.registry.Lookup(e)
	if !ok {
		return nil, fmt.Errorf("physics: entity %s has no collider", e)
	}
	c, err := p.ctx.backend.Collider(h.Collider)
	if err != nil {
		return nil, fmt.Errorf("physics: entity %s: %w", e, err)
	}
	return c, nil
}

// Close destroys every backend body the plugin created, removes the handle
// components and detaches from the world. A new plugin on the same world
// recreates the bodies from the components.
func (p *Plugin[V, A, O]) Close() error {
	c := p.ctx
	var errs []error
	for _, e := range c.registry.Entities() {
		if err := c.destroy(e); err != nil {
			errs = append(errs, err)
		}
	}
	c.world.Untrack(c.tracker)
	c.phase = phaseIdle
	return errors.Join(errs...)
}

func (c *Context[V, A, O]) enter(w *ecs.World, want phase) error {
	if w != c.world {
		return ErrForeignWorld
	}
	if c.phase != want {
		return fmt.Errorf("%w: in %s, want %s", ErrPhaseOrder, c.phase, want)
	}
	return nil
}

func (c *Context[V, A, O]) body(e ecs.Entity) (backend.Body[V, A, O], error) {
	h, ok := c.registry.Lookup(e)
	if !ok {
		return nil, fmt.Errorf("physics: entity %s has no body", e)
	}
	b, err := c.backend.Body(h.Body)
	if err != nil {
		return nil, fmt.Errorf("physics: entity %s: %w", e, err)
	}
	return b, nil
}
