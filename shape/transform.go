package shape

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Transform is a rigid transform: a rotation followed by a translation.
// The zero value is the identity.
type Transform struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
}

// Identity returns the identity transform
func Identity() Transform {
	return Transform{
		Position: mgl64.Vec3{0, 0, 0},
		Rotation: mgl64.QuatIdent(),
	}
}

// NewTransform creates a transform from a translation and a rotation
func NewTransform(position mgl64.Vec3, rotation mgl64.Quat) Transform {
	return Transform{Position: position, Rotation: rotation}
}

// rotation returns the rotation, treating the zero quaternion as identity
func (t Transform) rotation() mgl64.Quat {
	if t.Rotation.W == 0 && t.Rotation.V == (mgl64.Vec3{}) {
		return mgl64.QuatIdent()
	}
	return t.Rotation
}

// TransformPosition maps a point from local space into the parent space.
func (t Transform) TransformPosition(p mgl64.Vec3) mgl64.Vec3 {
	return t.rotation().Rotate(p).Add(t.Position)
}

// TransformVector rotates a direction, ignoring the translation.
func (t Transform) TransformVector(v mgl64.Vec3) mgl64.Vec3 {
	return t.rotation().Rotate(v)
}

// InverseTransformVector rotates a direction from the parent space back into local space.
func (t Transform) InverseTransformVector(v mgl64.Vec3) mgl64.Vec3 {
	return t.rotation().Conjugate().Rotate(v)
}

// InverseTransformPosition maps a point from the parent space back into local space.
func (t Transform) InverseTransformPosition(p mgl64.Vec3) mgl64.Vec3 {
	return t.InverseTransformVector(p.Sub(t.Position))
}

// Inverse returns the transform mapping parent space back into local space.
func (t Transform) Inverse() Transform {
	inv := t.rotation().Conjugate()
	return Transform{
		Position: inv.Rotate(t.Position.Mul(-1)),
		Rotation: inv,
	}
}

// Mul composes two transforms: the result applies other first, then t.
func (t Transform) Mul(other Transform) Transform {
	return Transform{
		Position: t.TransformPosition(other.Position),
		Rotation: t.rotation().Mul(other.rotation()),
	}
}

// IsValid reports whether the transform holds finite values and a unit rotation.
func (t Transform) IsValid() bool {
	q := t.rotation()
	values := [7]float64{
		t.Position[0], t.Position[1], t.Position[2],
		q.W, q.V[0], q.V[1], q.V[2],
	}
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}

	return math.Abs(q.Len()-1) <= 1e-6
}
