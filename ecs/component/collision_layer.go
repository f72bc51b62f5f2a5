package component

// CollisionLayers declares the groups an entity belongs to and the groups it
// collides with. Two entities collide when each one's Groups intersects the
// other's Masks. An entity without CollisionLayers is in every group and
// collides with every group.
type CollisionLayers struct {
	Groups uint32 `yaml:"groups"`
	Masks  uint32 `yaml:"masks"`
}

// NoLayers returns layers that are in no group and collide with nothing.
func NoLayers() CollisionLayers {
	return CollisionLayers{}
}

func (l CollisionLayers) WithGroupBits(bits uint32) CollisionLayers {
	l.Groups |= bits
	return l
}

func (l CollisionLayers) WithoutGroupBits(bits uint32) CollisionLayers {
	l.Groups &^= bits
	return l
}

func (l CollisionLayers) WithMaskBits(bits uint32) CollisionLayers {
	l.Masks |= bits
	return l
}

func (l CollisionLayers) WithoutMaskBits(bits uint32) CollisionLayers {
	l.Masks &^= bits
	return l
}

// Interacts reports whether entities with l and other may collide.
func (l CollisionLayers) Interacts(other CollisionLayers) bool {
	return l.Groups&other.Masks != 0 && other.Groups&l.Masks != 0
}

var CollisionLayersComponent = NewComponent[CollisionLayers]()
