package component

import "github.com/go-gl/mathgl/mgl64"

type Transform struct {
	Translation mgl64.Vec3
	Rotation    mgl64.Quat
	Scale       mgl64.Vec3
}

func IdentityTransform() Transform {
	return Transform{Rotation: mgl64.QuatIdent(), Scale: mgl64.Vec3{1, 1, 1}}
}

func TransformFromTranslation(t mgl64.Vec3) Transform {
	tr := IdentityTransform()
	tr.Translation = t
	return tr
}

// Orientation returns the normalized rotation. A zero quaternion is read as
// identity so that zero-value transforms are usable.
func (t Transform) Orientation() mgl64.Quat {
	if t.Rotation.W == 0 && t.Rotation.V == (mgl64.Vec3{}) {
		return mgl64.QuatIdent()
	}
	return t.Rotation.Normalize()
}

var TransformComponent = NewComponent[Transform]()
