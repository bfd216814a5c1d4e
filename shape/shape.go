// Package shape provides the convex shapes consumed by the narrow-phase queries.
//
// Every shape is described by its support mapping: the farthest point of the shape
// along a direction. Shapes are split into a core and a margin: the full shape is
// the core inflated by a sphere of radius Margin(). Spheres and capsules have a
// point or segment core with their radius as margin, which lets GJK converge on
// the exact core and add the rounding analytically.
//
// All shapes are immutable once built and safe to share between goroutines.
package shape

import (
	"errors"

	"github.com/go-gl/mathgl/mgl64"
)

// DirectionEpsilon is the squared length under which a direction is treated as zero.
const DirectionEpsilon = 1e-24

var (
	ErrEmptyHull    = errors.New("shape: convex hull needs at least one point")
	ErrInvalidScale = errors.New("shape: scale components must be finite and non-zero")
	ErrNilShape     = errors.New("shape: inner shape is nil")
)

// Shape is the interface that all convex collision shapes must implement
type Shape interface {
	// Support returns the farthest point of the full shape along direction,
	// inflated by an extra margin.
	Support(direction mgl64.Vec3, margin float64) mgl64.Vec3
	// SupportCore returns the farthest point of the core along direction.
	SupportCore(direction mgl64.Vec3) mgl64.Vec3
	// Margin is the radius by which the core is inflated.
	Margin() float64
	// BoundingBox is the local-space bound of the full shape.
	BoundingBox() AABB
}

// FaceLocator is implemented by shapes with discrete faces.
// FaceIndex returns the face whose outward normal best matches normal.
type FaceLocator interface {
	FaceIndex(normal mgl64.Vec3) int
}

func isZeroDirection(direction mgl64.Vec3) bool {
	return direction.LenSqr() < DirectionEpsilon
}

// inflate pushes a core support point outward along direction by radius.
func inflate(core, direction mgl64.Vec3, radius float64) mgl64.Vec3 {
	if radius == 0 || isZeroDirection(direction) {
		return core
	}
	return core.Add(direction.Normalize().Mul(radius))
}
