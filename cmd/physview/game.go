package main

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"golang.org/x/image/colornames"

	"github.com/milk9111/physync/config"
	"github.com/milk9111/physync/physics"
	"github.com/milk9111/physync/sim"
)

const (
	baseWidth  = 1280
	baseHeight = 720
)

// Game shows a running simulation. The panel switches backend, step mode
// and gravity. P pauses, N steps one frame while paused and B cycles through
// the backends.
type Game struct {
	sim     *sim.Sim
	logger  *slog.Logger
	watcher *config.Watcher
	panel   *Panel
	scale   float64

	// gravity is restored when the panel turns gravity back on.
	gravity  [3]float64
	paused   bool
	contacts int
	status   string
}

func NewGame(s *sim.Sim, logger *slog.Logger, scale float64) *Game {
	if scale <= 0 {
		scale = 32
	}
	g := &Game{sim: s, logger: logger, scale: scale, gravity: s.Config().Gravity}
	g.panel = NewPanel(s.Config(), panelHandlers{
		backend: g.setBackend,
		steps:   g.setStepsMode,
		gravity: g.setGravity,
		pause:   g.togglePause,
	})
	return g
}

func (g *Game) Update() error {
	g.poll()
	g.panel.Update()

	if inpututil.IsKeyJustPressed(ebiten.KeyB) {
		g.cycleBackend()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		g.togglePause()
	}
	if g.paused && !inpututil.IsKeyJustPressed(ebiten.KeyN) {
		return nil
	}

	if err := g.sim.Frame(time.Second / time.Duration(ebiten.TPS())); err != nil {
		return err
	}
	g.contacts += len(physics.CollisionEvents(g.sim.World))
	return nil
}

func (g *Game) poll() {
	if g.watcher == nil {
		return
	}
	select {
	case cfg := <-g.watcher.Configs:
		g.apply(cfg)
	case err := <-g.watcher.Errors:
		g.status = err.Error()
	default:
	}
}

func (g *Game) cycleBackend() {
	i := slices.Index(config.Backends, g.sim.Config().Backend)
	g.setBackend(config.Backends[(i+1)%len(config.Backends)])
}

func (g *Game) setBackend(name string) {
	next := g.sim.Config().Clone()
	next.Backend = name
	g.apply(next)
}

func (g *Game) setStepsMode(mode string) {
	next := g.sim.Config().Clone()
	next.Steps.Mode = mode
	g.apply(next)
}

func (g *Game) setGravity(on bool) {
	next := g.sim.Config().Clone()
	next.Gravity = [3]float64{}
	if on {
		next.Gravity = g.gravity
	}
	g.apply(next)
}

func (g *Game) togglePause() {
	g.paused = !g.paused
	g.panel.Sync(g.sim.Config(), g.paused)
}

// apply switches to cfg and brings the panel in line with whatever config
// is in effect afterwards.
func (g *Game) apply(cfg *config.Config) {
	defer func() { g.panel.Sync(g.sim.Config(), g.paused) }()
	if err := g.sim.Apply(cfg); err != nil {
		g.logger.Error("physview: apply config", "err", err)
		g.status = err.Error()
		return
	}
	if cfg.Gravity != [3]float64{} {
		g.gravity = cfg.Gravity
	}
	g.status = fmt.Sprintf("%s, %s steps", cfg.Backend, cfg.Steps.Mode)
}

func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(colornames.Midnightblue)

	cam := camera{
		zoom:   g.scale,
		width:  float64(screen.Bounds().Dx()),
		height: float64(screen.Bounds().Dy()),
	}
	if space := g.sim.Space(); space != nil {
		drawSpace(screen, space, cam)
	} else {
		drawShapes(screen, g.sim.World, cam)
	}

	cfg := g.sim.Config()
	text := fmt.Sprintf("Backend: %s (%s)\nFrames: %d    FPS: %.2f\nBodies: %d    Contacts: %d",
		cfg.Backend, g.sim.Runner().Dimension(), g.sim.Frames(), ebiten.ActualFPS(),
		g.sim.Runner().Registry().Len(), g.contacts)
	if g.paused {
		text += "\nPaused"
	}
	if g.status != "" {
		text += "\n" + g.status
	}
	ebitenutil.DebugPrint(screen, text)
	g.panel.Draw(screen)
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return baseWidth, baseHeight
}
