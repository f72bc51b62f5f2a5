package component

// GravityScale scales world gravity for a dynamic physics body.
// 1.0 = normal gravity, 0.0 = no gravity. Removing it restores 1.0.
type GravityScale struct {
	Scale float64 `yaml:"scale"`
}

// Damping slows a body down independently of contacts. Both coefficients are
// per second; zero disables damping.
type Damping struct {
	Linear  float64 `yaml:"linear"`
	Angular float64 `yaml:"angular"`
}

// PhysicMaterial describes the surface and mass of a collider.
type PhysicMaterial struct {
	Restitution float64 `yaml:"restitution"`
	Density     float64 `yaml:"density"`
	Friction    float64 `yaml:"friction"`
}

// DefaultPhysicMaterial is the material of entities that declare none.
func DefaultPhysicMaterial() PhysicMaterial {
	return PhysicMaterial{Density: 1}
}

var (
	GravityScaleComponent   = NewComponent[GravityScale]()
	DampingComponent        = NewComponent[Damping]()
	PhysicMaterialComponent = NewComponent[PhysicMaterial]()
)
