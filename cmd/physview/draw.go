package main

import (
	"image/color"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/jakecoffman/cp"
	"golang.org/x/image/colornames"

	"github.com/milk9111/physync/ecs"
	"github.com/milk9111/physync/ecs/component"
)

const (
	debugCircleSegments = 24
	debugDotSize        = 4
)

// camera maps world units to screen pixels with the origin at the centre of
// the screen and +Y up.
type camera struct {
	x, y          float64
	zoom          float64
	width, height float64
}

func (c camera) toScreen(x, y float64) (float64, float64) {
	return c.width/2 + (x-c.x)*c.zoom, c.height/2 - (y-c.y)*c.zoom
}

func drawSpace(screen *ebiten.Image, space *cp.Space, cam camera) {
	cp.DrawSpace(space, &physicsDebugDrawer{screen: screen, cam: cam})
}

type physicsDebugDrawer struct {
	screen *ebiten.Image
	cam    camera
}

func (d *physicsDebugDrawer) DrawCircle(pos cp.Vector, angle, radius float64, outline, fill cp.FColor, data interface{}) {
	if radius <= 0 {
		return
	}
	d.drawCircle(pos, radius, outline)
	end := cp.Vector{X: pos.X + math.Cos(angle)*radius, Y: pos.Y + math.Sin(angle)*radius}
	d.drawLine(pos, end, outline)
}

func (d *physicsDebugDrawer) DrawSegment(a, b cp.Vector, fill cp.FColor, data interface{}) {
	d.drawLine(a, b, fill)
}

func (d *physicsDebugDrawer) DrawFatSegment(a, b cp.Vector, radius float64, outline, fill cp.FColor, data interface{}) {
	d.drawLine(a, b, outline)
	if radius > 0 {
		d.drawCircle(a, radius, outline)
		d.drawCircle(b, radius, outline)
	}
}

func (d *physicsDebugDrawer) DrawPolygon(count int, verts []cp.Vector, radius float64, outline, fill cp.FColor, data interface{}) {
	if count <= 0 {
		return
	}
	d.drawPolygon(verts[:count], outline)
}

func (d *physicsDebugDrawer) DrawDot(size float64, pos cp.Vector, fill cp.FColor, data interface{}) {
	if size <= 0 {
		size = debugDotSize
	}
	half := size / 2 / d.cam.zoom
	d.drawLine(cp.Vector{X: pos.X - half, Y: pos.Y}, cp.Vector{X: pos.X + half, Y: pos.Y}, fill)
	d.drawLine(cp.Vector{X: pos.X, Y: pos.Y - half}, cp.Vector{X: pos.X, Y: pos.Y + half}, fill)
}

func (d *physicsDebugDrawer) Flags() uint {
	return cp.DRAW_SHAPES | cp.DRAW_COLLISION_POINTS
}

func (d *physicsDebugDrawer) OutlineColor() cp.FColor {
	return cp.FColor{R: 0.2, G: 1, B: 0.2, A: 0.9}
}

// ShapeColor tints sensors so they stand out from solid shapes.
func (d *physicsDebugDrawer) ShapeColor(shape *cp.Shape, data interface{}) cp.FColor {
	if shape.Sensor() {
		return cp.FColor{R: 0.9, G: 0.8, B: 0.1, A: 0.5}
	}
	return cp.FColor{R: 0.1, G: 0.6, B: 0.1, A: 0.5}
}

func (d *physicsDebugDrawer) ConstraintColor() cp.FColor {
	return cp.FColor{R: 1, G: 0.5, B: 0.1, A: 0.9}
}

func (d *physicsDebugDrawer) CollisionPointColor() cp.FColor {
	return cp.FColor{R: 1, G: 0.2, B: 0.2, A: 0.9}
}

func (d *physicsDebugDrawer) Data() interface{} {
	return nil
}

func (d *physicsDebugDrawer) drawLine(a, b cp.Vector, c cp.FColor) {
	strokeLine(d.screen, d.cam, a.X, a.Y, b.X, b.Y, toNRGBA(c))
}

func (d *physicsDebugDrawer) drawPolygon(verts []cp.Vector, c cp.FColor) {
	for i := range verts {
		a := verts[i]
		b := verts[(i+1)%len(verts)]
		d.drawLine(a, b, c)
	}
}

func (d *physicsDebugDrawer) drawCircle(center cp.Vector, radius float64, c cp.FColor) {
	strokeCircle(d.screen, d.cam, center.X, center.Y, radius, toNRGBA(c))
}

func toNRGBA(c cp.FColor) color.NRGBA {
	return color.NRGBA{
		R: uint8(clamp01(c.R) * 255),
		G: uint8(clamp01(c.G) * 255),
		B: uint8(clamp01(c.B) * 255),
		A: uint8(clamp01(c.A) * 255),
	}
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// drawShapes outlines every entity shape from its components. It serves the
// backends that have no debug renderer of their own; spatial shapes are
// projected onto the XY plane.
func drawShapes(screen *ebiten.Image, w *ecs.World, cam camera) {
	ecs.ForEach(w, component.CollisionShapeComponent, func(e ecs.Entity, shape component.CollisionShape) {
		tr, ok := ecs.Get(w, e, component.TransformComponent)
		if !ok {
			tr = component.TransformFromTranslation(mgl64.Vec3{})
		}
		rb, _ := ecs.Get(w, e, component.RigidBodyComponent)
		clr := kindColor(rb)
		if !ecs.Has(w, e, component.RigidBodyHandleComponent) {
			clr = colornames.Gray
		}

		point := func(p mgl64.Vec3) mgl64.Vec3 {
			return tr.Translation.Add(tr.Rotation.Rotate(p))
		}
		switch shape.Kind {
		case component.SphereShape:
			c := tr.Translation
			strokeCircle(screen, cam, c.X(), c.Y(), shape.Radius, clr)
			edge := point(mgl64.Vec3{shape.Radius, 0, 0})
			strokeLine(screen, cam, c.X(), c.Y(), edge.X(), edge.Y(), clr)
		case component.CuboidShape:
			h := shape.HalfExtents
			strokePolygon(screen, cam, clr,
				point(mgl64.Vec3{-h.X(), -h.Y(), 0}),
				point(mgl64.Vec3{h.X(), -h.Y(), 0}),
				point(mgl64.Vec3{h.X(), h.Y(), 0}),
				point(mgl64.Vec3{-h.X(), h.Y(), 0}))
		case component.CapsuleShape:
			r, hs := shape.Radius, shape.HalfSegment
			a, b := point(mgl64.Vec3{0, -hs, 0}), point(mgl64.Vec3{0, hs, 0})
			strokeCircle(screen, cam, a.X(), a.Y(), r, clr)
			strokeCircle(screen, cam, b.X(), b.Y(), r, clr)
			for _, side := range []float64{-r, r} {
				p, q := point(mgl64.Vec3{side, -hs, 0}), point(mgl64.Vec3{side, hs, 0})
				strokeLine(screen, cam, p.X(), p.Y(), q.X(), q.Y(), clr)
			}
		case component.ConvexHullShape:
			pts := make([]mgl64.Vec3, len(shape.Points))
			for i, p := range shape.Points {
				pts[i] = point(p)
			}
			strokePolygon(screen, cam, clr, pts...)
		}
	})
}

func kindColor(rb component.RigidBody) color.Color {
	switch rb {
	case component.Static:
		return colornames.Lightslategray
	case component.Sensor:
		return colornames.Gold
	case component.KinematicPositionBased, component.KinematicVelocityBased:
		return colornames.Deepskyblue
	default:
		return colornames.Limegreen
	}
}

func strokeLine(screen *ebiten.Image, cam camera, x1, y1, x2, y2 float64, clr color.Color) {
	sx1, sy1 := cam.toScreen(x1, y1)
	sx2, sy2 := cam.toScreen(x2, y2)
	ebitenutil.DrawLine(screen, sx1, sy1, sx2, sy2, clr)
}

func strokePolygon(screen *ebiten.Image, cam camera, clr color.Color, pts ...mgl64.Vec3) {
	for i := range pts {
		a, b := pts[i], pts[(i+1)%len(pts)]
		strokeLine(screen, cam, a.X(), a.Y(), b.X(), b.Y(), clr)
	}
}

func strokeCircle(screen *ebiten.Image, cam camera, cx, cy, radius float64, clr color.Color) {
	if radius <= 0 {
		return
	}
	px, py := cx+radius, cy
	for i := 1; i <= debugCircleSegments; i++ {
		t := 2 * math.Pi * float64(i) / debugCircleSegments
		x, y := cx+math.Cos(t)*radius, cy+math.Sin(t)*radius
		strokeLine(screen, cam, px, py, x, y, clr)
		px, py = x, y
	}
}
