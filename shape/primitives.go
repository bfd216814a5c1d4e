package shape

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Sphere is a point core inflated by its radius.
type Sphere struct {
	Center mgl64.Vec3
	Radius float64
}

func NewSphere(center mgl64.Vec3, radius float64) *Sphere {
	return &Sphere{Center: center, Radius: radius}
}

func (s *Sphere) SupportCore(direction mgl64.Vec3) mgl64.Vec3 {
	return s.Center
}

func (s *Sphere) Support(direction mgl64.Vec3, margin float64) mgl64.Vec3 {
	return inflate(s.Center, direction, s.Radius+margin)
}

func (s *Sphere) Margin() float64 {
	return s.Radius
}

func (s *Sphere) BoundingBox() AABB {
	return AABB{Min: s.Center, Max: s.Center}.Thicken(s.Radius)
}

// Box is an axis-aligned box in its local space. Min may equal Max on any
// axis, which gives thin plates, lines and needles.
type Box struct {
	Min mgl64.Vec3
	Max mgl64.Vec3
}

func NewBox(min, max mgl64.Vec3) *Box {
	return &Box{Min: min, Max: max}
}

// NewBoxFromHalfExtents creates a box centered on the origin
func NewBoxFromHalfExtents(halfExtents mgl64.Vec3) *Box {
	return &Box{Min: halfExtents.Mul(-1), Max: halfExtents}
}

func (b *Box) SupportCore(direction mgl64.Vec3) mgl64.Vec3 {
	if isZeroDirection(direction) {
		return b.Min.Add(b.Max).Mul(0.5)
	}

	support := b.Max
	if direction.X() < 0 {
		support[0] = b.Min.X()
	}
	if direction.Y() < 0 {
		support[1] = b.Min.Y()
	}
	if direction.Z() < 0 {
		support[2] = b.Min.Z()
	}

	return support
}

func (b *Box) Support(direction mgl64.Vec3, margin float64) mgl64.Vec3 {
	return inflate(b.SupportCore(direction), direction, margin)
}

func (b *Box) Margin() float64 {
	return 0
}

func (b *Box) BoundingBox() AABB {
	return AABB{Min: b.Min, Max: b.Max}
}

// Box face indices, in the order returned by FaceIndex.
const (
	FacePosX = iota
	FaceNegX
	FacePosY
	FaceNegY
	FacePosZ
	FaceNegZ
)

var boxFaceNormals = [6]mgl64.Vec3{
	{1, 0, 0}, {-1, 0, 0},
	{0, 1, 0}, {0, -1, 0},
	{0, 0, 1}, {0, 0, -1},
}

// FaceIndex returns the face most aligned with normal; the first face wins a tie.
func (b *Box) FaceIndex(normal mgl64.Vec3) int {
	bestFace := FacePosX
	bestDot := -math.MaxFloat64
	for i, n := range boxFaceNormals {
		if d := n.Dot(normal); d > bestDot {
			bestDot = d
			bestFace = i
		}
	}
	return bestFace
}

// Capsule is a segment core inflated by its radius.
type Capsule struct {
	A      mgl64.Vec3
	B      mgl64.Vec3
	Radius float64
}

func NewCapsule(a, b mgl64.Vec3, radius float64) *Capsule {
	return &Capsule{A: a, B: b, Radius: radius}
}

func (c *Capsule) SupportCore(direction mgl64.Vec3) mgl64.Vec3 {
	if isZeroDirection(direction) {
		return c.A.Add(c.B).Mul(0.5)
	}
	if direction.Dot(c.B) > direction.Dot(c.A) {
		return c.B
	}
	return c.A
}

func (c *Capsule) Support(direction mgl64.Vec3, margin float64) mgl64.Vec3 {
	return inflate(c.SupportCore(direction), direction, c.Radius+margin)
}

func (c *Capsule) Margin() float64 {
	return c.Radius
}

func (c *Capsule) BoundingBox() AABB {
	return AABB{Min: c.A, Max: c.A}.Union(AABB{Min: c.B, Max: c.B}).Thicken(c.Radius)
}
