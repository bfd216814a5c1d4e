package shape

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Convex is the convex hull of a point set. The support mapping scans every
// point, so interior points cost time but never change the result.
type Convex struct {
	points []mgl64.Vec3
	bounds AABB
}

// NewConvex builds a hull from a copy of points.
func NewConvex(points []mgl64.Vec3) (*Convex, error) {
	if len(points) == 0 {
		return nil, ErrEmptyHull
	}

	c := &Convex{points: make([]mgl64.Vec3, len(points))}
	copy(c.points, points)

	c.bounds = AABB{Min: c.points[0], Max: c.points[0]}
	for _, p := range c.points[1:] {
		c.bounds = c.bounds.Union(AABB{Min: p, Max: p})
	}

	return c, nil
}

// Points returns the hull vertices. The slice must not be modified.
func (c *Convex) Points() []mgl64.Vec3 {
	return c.points
}

// SupportCore returns the first vertex with the greatest projection on direction.
func (c *Convex) SupportCore(direction mgl64.Vec3) mgl64.Vec3 {
	if isZeroDirection(direction) {
		return c.points[0]
	}

	best := 0
	bestDot := direction.Dot(c.points[0])
	for i := 1; i < len(c.points); i++ {
		if d := direction.Dot(c.points[i]); d > bestDot {
			bestDot = d
			best = i
		}
	}

	return c.points[best]
}

func (c *Convex) Support(direction mgl64.Vec3, margin float64) mgl64.Vec3 {
	return inflate(c.SupportCore(direction), direction, margin)
}

func (c *Convex) Margin() float64 {
	return 0
}

func (c *Convex) BoundingBox() AABB {
	return c.bounds
}
