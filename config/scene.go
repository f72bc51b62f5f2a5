package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"

	"github.com/milk9111/physync/ecs/component"
)

type Scene struct {
	Entities []EntitySpec `yaml:"entities"`
}

type EntitySpec struct {
	Name         string                    `yaml:"name"`
	Body         string                    `yaml:"body"`
	Shape        ShapeSpec                 `yaml:"shape"`
	Transform    TransformSpec             `yaml:"transform"`
	Velocity     *MotionSpec               `yaml:"velocity"`
	Acceleration *MotionSpec               `yaml:"acceleration"`
	Layers       *LayersSpec               `yaml:"layers"`
	Material     *component.PhysicMaterial `yaml:"material"`
	Damping      *component.Damping        `yaml:"damping"`
	GravityScale *float64                  `yaml:"gravity_scale"`
}

type ShapeSpec struct {
	Kind         string       `yaml:"kind"`
	Radius       float64      `yaml:"radius"`
	HalfExtents  [3]float64   `yaml:"half_extents"`
	HalfSegment  float64      `yaml:"half_segment"`
	BorderRadius float64      `yaml:"border_radius"`
	Points       [][3]float64 `yaml:"points"`
}

// TransformSpec places an entity. Rotation is in radians about +Z; Scale
// defaults to one.
type TransformSpec struct {
	Translation [3]float64  `yaml:"translation"`
	Rotation    float64     `yaml:"rotation"`
	Scale       *[3]float64 `yaml:"scale"`
}

// MotionSpec is a linear vector plus an angular scaled axis.
type MotionSpec struct {
	Linear  [3]float64 `yaml:"linear"`
	Angular [3]float64 `yaml:"angular"`
}

type LayersSpec struct {
	Groups []string `yaml:"groups"`
	Masks  []string `yaml:"masks"`
}

// LoadScene reads a scene from disk, falling back to the embedded scenes.
func LoadScene(name string) (*Scene, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		data, err = FS.ReadFile(embeddedScenePath(name))
		if err != nil {
			return nil, fmt.Errorf("config: load scene %s: %w", name, err)
		}
	}
	scene, err := ParseScene(data)
	if err != nil {
		return nil, fmt.Errorf("config: scene %s: %w", name, err)
	}
	return scene, nil
}

func ParseScene(data []byte) (*Scene, error) {
	var scene Scene
	if err := yaml.Unmarshal(data, &scene); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	seen := make(map[string]struct{}, len(scene.Entities))
	for i, e := range scene.Entities {
		if e.Name == "" {
			return nil, fmt.Errorf("entity %d has no name", i)
		}
		if _, ok := seen[e.Name]; ok {
			return nil, fmt.Errorf("duplicate entity %q", e.Name)
		}
		seen[e.Name] = struct{}{}
	}
	return &scene, nil
}

func embeddedScenePath(name string) string {
	s := filepath.ToSlash(name)
	if after, ok := strings.CutPrefix(s, "config/"); ok {
		s = after
	}
	if !strings.HasPrefix(s, "scenes/") {
		s = "scenes/" + s
	}
	return s
}

// CollisionShape validates s and builds the shape without panicking.
func (s ShapeSpec) CollisionShape() (component.CollisionShape, error) {
	shape := component.CollisionShape{
		Radius:      s.Radius,
		HalfExtents: mgl64.Vec3(s.HalfExtents),
		HalfSegment: s.HalfSegment,
	}
	switch strings.ToLower(s.Kind) {
	case "sphere", "ball":
		shape.Kind = component.SphereShape
	case "cuboid", "box":
		shape.Kind = component.CuboidShape
		shape.Radius = s.BorderRadius
	case "capsule":
		shape.Kind = component.CapsuleShape
	case "convex_hull", "hull":
		shape.Kind = component.ConvexHullShape
		shape.Radius = s.BorderRadius
		for _, p := range s.Points {
			shape.Points = append(shape.Points, mgl64.Vec3(p))
		}
	default:
		return component.CollisionShape{}, fmt.Errorf("%w: unknown kind %q", component.ErrInvalidShape, s.Kind)
	}
	if err := shape.Validate(); err != nil {
		return component.CollisionShape{}, err
	}
	return shape, nil
}

func (t TransformSpec) Transform() component.Transform {
	tr := component.TransformFromTranslation(mgl64.Vec3(t.Translation))
	if t.Rotation != 0 {
		tr.Rotation = mgl64.QuatRotate(t.Rotation, mgl64.Vec3{0, 0, 1})
	}
	if t.Scale != nil {
		tr.Scale = mgl64.Vec3(*t.Scale)
	}
	return tr
}

func (m MotionSpec) Velocity() component.Velocity {
	return component.Velocity{Linear: mgl64.Vec3(m.Linear), Angular: component.AxisAngle(m.Angular)}
}

func (m MotionSpec) Acceleration() component.Acceleration {
	return component.Acceleration{Linear: mgl64.Vec3(m.Linear), Angular: component.AxisAngle(m.Angular)}
}
