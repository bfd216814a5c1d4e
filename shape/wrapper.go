package shape

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Scaled applies a per-axis scale to a shared inner shape.
//
// A uniform scale keeps the inner core/margin split, scaling both. A non-uniform
// scale deforms the rounding, so the whole inner shape becomes the core and the
// margin is zero.
type Scaled struct {
	inner   Shape
	scale   mgl64.Vec3
	uniform bool
}

func NewScaled(inner Shape, scale mgl64.Vec3) (*Scaled, error) {
	if inner == nil {
		return nil, ErrNilShape
	}
	for _, s := range scale {
		if s == 0 || math.IsNaN(s) || math.IsInf(s, 0) {
			return nil, ErrInvalidScale
		}
	}

	return &Scaled{
		inner:   inner,
		scale:   scale,
		uniform: scale[0] == scale[1] && scale[1] == scale[2],
	}, nil
}

func (s *Scaled) Inner() Shape {
	return s.inner
}

func (s *Scaled) Scale() mgl64.Vec3 {
	return s.scale
}

func (s *Scaled) scaled(v mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{v[0] * s.scale[0], v[1] * s.scale[1], v[2] * s.scale[2]}
}

// SupportCore maps the direction into the inner space with the (diagonal) scale
// transpose, then maps the inner support point back out.
func (s *Scaled) SupportCore(direction mgl64.Vec3) mgl64.Vec3 {
	innerDir := s.scaled(direction)
	if s.uniform {
		return s.scaled(s.inner.SupportCore(innerDir))
	}
	return s.scaled(s.inner.Support(innerDir, 0))
}

func (s *Scaled) Support(direction mgl64.Vec3, margin float64) mgl64.Vec3 {
	return inflate(s.SupportCore(direction), direction, s.Margin()+margin)
}

func (s *Scaled) Margin() float64 {
	if s.uniform {
		return math.Abs(s.scale[0]) * s.inner.Margin()
	}
	return 0
}

func (s *Scaled) BoundingBox() AABB {
	inner := s.inner.BoundingBox()
	lo, hi := s.scaled(inner.Min), s.scaled(inner.Max)
	return AABB{Min: lo, Max: lo}.Union(AABB{Min: hi, Max: hi})
}

// FaceIndex forwards to the inner shape, mapping the normal with the inverse
// transpose of the scale. Returns -1 when the inner shape has no faces.
func (s *Scaled) FaceIndex(normal mgl64.Vec3) int {
	locator, ok := s.inner.(FaceLocator)
	if !ok {
		return -1
	}
	return locator.FaceIndex(s.scaled(normal))
}

// Instanced shares one immutable shape between many owners.
type Instanced struct {
	inner Shape
}

func NewInstanced(inner Shape) (*Instanced, error) {
	if inner == nil {
		return nil, ErrNilShape
	}
	return &Instanced{inner: inner}, nil
}

func (i *Instanced) Inner() Shape {
	return i.inner
}

func (i *Instanced) SupportCore(direction mgl64.Vec3) mgl64.Vec3 {
	return i.inner.SupportCore(direction)
}

func (i *Instanced) Support(direction mgl64.Vec3, margin float64) mgl64.Vec3 {
	return i.inner.Support(direction, margin)
}

func (i *Instanced) Margin() float64 {
	return i.inner.Margin()
}

func (i *Instanced) BoundingBox() AABB {
	return i.inner.BoundingBox()
}

func (i *Instanced) FaceIndex(normal mgl64.Vec3) int {
	locator, ok := i.inner.(FaceLocator)
	if !ok {
		return -1
	}
	return locator.FaceIndex(normal)
}
