// Package gjk implements the Gilbert-Johnson-Keerthi (GJK) algorithm for
// distance and intersection queries between convex shapes.
//
// GJK works on the Minkowski difference D = A - B of the two shape cores: the
// shapes are disjoint exactly when D does not contain the origin, and the
// point of D closest to the origin gives the separating vector. The algorithm
// builds a simplex incrementally, converging toward the origin in typically
// 3-6 iterations. Margins (sphere and capsule radii, query thickness) are not
// part of D: they are added to the result analytically, which keeps the loop
// exact for rounded shapes.
//
// References:
//   - Gilbert, Johnson, Keerthi: "A Fast Procedure for Computing the Distance Between
//     Complex Objects in Three-Dimensional Space" (1988)
//   - Van den Bergen: "Collision Detection in Interactive 3D Environments" (2003)
//   - Ericson: "Real-Time Collision Detection" (2004), closest point on triangle
package gjk

import (
	"math"

	"github.com/akmonengine/narrowphase/shape"
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
)

// Mode selects how far the GJK loop runs.
type Mode int

const (
	// ModeIntersect stops as soon as overlap or separation is proven.
	ModeIntersect Mode = iota
	// ModeClosest converges on the closest points of the cores.
	ModeClosest
)

// Vertex is one support point of the Minkowski difference, with the two
// shape points that produced it. All three are in A's space.
type Vertex struct {
	A mgl64.Vec3
	B mgl64.Vec3
	W mgl64.Vec3
}

// MinkowskiSupport computes a support point of the core Minkowski difference (A - B).
//
// Parameters:
//   - a, b: The two shapes, each in its own local space
//   - bToA: Maps B's local space into A's local space
//   - direction: Search direction in A's space
//
// Returns:
//
//	Vertex with A = coreSupport(A, direction), B = coreSupport(B, -direction)
//	expressed in A's space, and W = A - B.
func MinkowskiSupport(a, b shape.Shape, bToA shape.Transform, direction mgl64.Vec3) Vertex {
	supportA := a.SupportCore(direction)
	directionB := bToA.InverseTransformVector(direction.Mul(-1))
	supportB := bToA.TransformPosition(b.SupportCore(directionB))

	return Vertex{A: supportA, B: supportB, W: supportA.Sub(supportB)}
}

// Scale is the combined size of two shapes, used to make tolerances relative.
func Scale(a, b shape.Shape) float64 {
	scale := a.BoundingBox().Diagonal() + b.BoundingBox().Diagonal()
	if scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return 1
	}
	return scale
}

// Tolerance is the absolute GJK tolerance for a pair.
func Tolerance(a, b shape.Shape, cfg *Config) float64 {
	return cfg.Epsilon * Scale(a, b)
}

// State is the outcome of one GJK run. Vertices[0:Simplex.NumVerts] are the
// active support points, oldest first, with Barycentric holding their weights.
type State struct {
	Simplex     Simplex
	Vertices    [4]Vertex
	Barycentric [4]float64

	// Closest is the point of the core Minkowski difference closest to the origin.
	Closest mgl64.Vec3
	// Overlap reports that the full shapes (cores plus Radius) intersect.
	Overlap bool
	// CoreOverlap reports that the cores themselves intersect.
	CoreOverlap bool

	Iterations int
	// Capped is set when the loop hit cfg.MaxIterations.
	Capped bool

	Radius    float64
	Tolerance float64
}

// Witnesses returns the closest points of both cores, interpolated from the
// original support points with the simplex weights.
func (s *State) Witnesses() (mgl64.Vec3, mgl64.Vec3) {
	var witnessA, witnessB mgl64.Vec3
	for i := 0; i < s.Simplex.NumVerts; i++ {
		witnessA = witnessA.Add(s.Vertices[i].A.Mul(s.Barycentric[i]))
		witnessB = witnessB.Add(s.Vertices[i].B.Mul(s.Barycentric[i]))
	}
	return witnessA, witnessB
}

// Run executes GJK on the cores of a and b.
//
// Algorithm overview:
//  1. Take a first support point along initialDir (defaults to B's offset, then +X)
//  2. Reduce the simplex to the feature closest to the origin, giving v
//  3. Stop if the origin is within radius of v (intersect mode), or enclosed
//  4. Query a new support point w along -v
//  5. Stop if w proves separation (intersect mode) or brings no progress
//  6. Add w and repeat from step 2
//
// Parameters:
//   - radius: Combined inflation of the cores (margins plus query thickness)
//   - initialDir: First search direction in A's space, zero for the default
//   - mode: ModeIntersect for a boolean answer, ModeClosest for witnesses
//
// The returned state holds a compacted simplex: the active vertices occupy
// slots 0..NumVerts-1. When CoreOverlap is set it is the starting point for EPA.
func Run(a, b shape.Shape, bToA shape.Transform, radius float64, initialDir mgl64.Vec3, mode Mode, cfg *Config) State {
	cfg = cfg.OrDefault()

	st := State{Radius: radius, Tolerance: Tolerance(a, b, cfg)}
	tol := st.Tolerance

	direction := initialDir
	if direction.LenSqr() < shape.DirectionEpsilon {
		direction = bToA.Position
		if direction.LenSqr() < shape.DirectionEpsilon {
			direction = mgl64.Vec3{1, 0, 0}
		}
	}

	st.Vertices[0] = MinkowskiSupport(a, b, bToA, direction)
	st.Simplex = Simplex{NumVerts: 1}
	st.Barycentric[0] = 1
	v := st.Vertices[0].W
	vv := v.Dot(v)

	converged := false
	for st.Iterations < cfg.MaxIterations {
		st.Iterations++

		if mode == ModeIntersect && vv <= (radius+tol)*(radius+tol) {
			st.Closest = v
			st.Overlap = true
			return st
		}
		if vv <= tol*tol {
			st.CoreOverlap = true
			converged = true
			break
		}

		w := MinkowskiSupport(a, b, bToA, v.Mul(-1))
		vw := v.Dot(w.W)

		// The support plane through w bounds the distance from below by vw/|v|
		if mode == ModeIntersect && vw > 0 && vw*vw > vv*(radius+tol)*(radius+tol) {
			st.Closest = v
			return st
		}
		if vv-vw <= math.Max(cfg.Epsilon*vv, tol*tol) {
			converged = true
			break
		}

		previous := st
		n := st.Simplex.NumVerts
		st.Vertices[n] = w
		st.Simplex.Idxs[n] = n
		st.Simplex.NumVerts = n + 1

		var points [4]mgl64.Vec3
		for i := 0; i <= n; i++ {
			points[i] = st.Vertices[i].W
			st.Simplex.Idxs[i] = i
		}
		next := ClosestToOrigin(&points, &st.Simplex, &st.Barycentric)
		st.compact()

		if st.Simplex.NumVerts == 4 {
			v = next
			vv = v.Dot(v)
			st.CoreOverlap = true
			converged = true
			break
		}

		nextVV := next.Dot(next)
		if nextVV >= vv {
			// No progress: keep the previous simplex
			previous.Iterations = st.Iterations
			st = previous
			converged = true
			break
		}
		v = next
		vv = nextVV
	}

	if !converged {
		st.Capped = true
		cfg.Stats.RecordGJKCapped()
		cfg.Degraded("gjk iteration cap reached",
			zap.Int("iterations", st.Iterations),
			zap.Float64("distance", math.Sqrt(vv)),
		)
	}

	st.Closest = v
	st.Overlap = st.CoreOverlap || math.Sqrt(vv) <= radius+tol
	return st
}

// compact moves the active vertices to slots 0..NumVerts-1, keeping their order.
func (s *State) compact() {
	var vertices [4]Vertex
	var barycentric [4]float64
	for i := 0; i < s.Simplex.NumVerts; i++ {
		idx := s.Simplex.Idxs[i]
		vertices[i] = s.Vertices[idx]
		barycentric[i] = s.Barycentric[idx]
		s.Simplex.Idxs[i] = i
	}
	s.Vertices = vertices
	s.Barycentric = barycentric
}
