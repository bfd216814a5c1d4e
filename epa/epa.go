// Package epa implements the Expanding Polytope Algorithm for computing penetration depth.
//
// EPA is run after GJK finds that the shape cores overlap, to determine:
//   - Penetration depth (how far shapes overlap)
//   - Contact normal (direction to separate shapes)
//   - Witness points on both shapes
//
// The algorithm expands a polytope (starting from GJK's final simplex) toward the
// boundary of the core Minkowski difference, finding the face closest to the origin,
// which gives the Minimum Translation Vector (MTV) to separate the cores. The shape
// margins are then added to the core depth.
//
// References:
//   - Van den Bergen: "Proximity Queries and Penetration Depth Computation on 3D Game Objects" (2001)
package epa

import (
	"math"

	"github.com/akmonengine/narrowphase/gjk"
	"github.com/akmonengine/narrowphase/shape"
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
)

const (
	// NormalSnapThreshold is used to clamp nearly-zero normal components to exactly zero.
	// This helps with numerical stability and axis-aligned collisions.
	NormalSnapThreshold = 1e-8

	// degenerateFaceEpsilon bounds |normal|² of a face relative to its squared longest edge squared.
	degenerateFaceEpsilon = 1e-14

	// flatVolumeEpsilon bounds the initial tetrahedron volume relative to its longest edge cubed.
	flatVolumeEpsilon = 1e-10

	// Small initial capacity for PolytopeBuilder - grows dynamically as needed
	polytopeInitialCapacity = 4
)

// expansion is the outcome of EPA on the cores, before margins are applied.
type expansion struct {
	normal      mgl64.Vec3
	depth       float64
	witnessA    mgl64.Vec3
	witnessB    mgl64.Vec3
	approximate bool
}

// expand computes the core penetration of a GJK state with CoreOverlap set.
//
// Algorithm overview:
//  1. Grow the GJK simplex into a tetrahedron enclosing the origin
//  2. Build initial polytope faces from the tetrahedron
//  3. Find face closest to origin
//  4. Get support point in face normal direction
//  5. If converged (new point doesn't improve distance) → done
//  6. Otherwise, expand polytope by adding support point
//  7. Repeat from step 3
//
// When the core difference is flat the depth is zero and the normal is
// orthogonal to it.
func expand(a, b shape.Shape, bToA shape.Transform, st *gjk.State, cfg *gjk.Config) expansion {
	tetrahedron, fallback, ok := completeSimplex(a, b, bToA, st)
	if !ok {
		return degenerate(fallback, st, cfg)
	}

	// Get builder from pool
	builder := polytopeBuilderPool.Get().(*PolytopeBuilder)
	defer polytopeBuilderPool.Put(builder)
	builder.Reset()

	if err := builder.BuildInitialFaces(tetrahedron); err != nil {
		fallback.witnessA, fallback.witnessB = st.Witnesses()
		fallback.normal = mgl64.Vec3{0, 0, 1}
		fallback.approximate = true
		return degenerate(fallback, st, cfg)
	}

	epsilon := cfg.EPAEpsilon * gjk.Scale(a, b)

	for i := 0; i < cfg.EPAMaxIterations; i++ {
		closestFaceIndex := builder.FindClosestFaceIndex()
		if closestFaceIndex < 0 {
			break
		}
		closestFace := builder.faces[closestFaceIndex]

		support := gjk.MinkowskiSupport(a, b, bToA, closestFace.Normal)
		if support.W.Dot(closestFace.Normal)-closestFace.Distance <= epsilon {
			return builder.faceExpansion(closestFaceIndex)
		}

		builder.AddPointAndRebuildFaces(support, closestFaceIndex)
	}

	// Cap reached: return the current best estimate
	cfg.Stats.RecordEPACapped()
	cfg.Degraded("epa iteration cap reached",
		zap.Int("iterations", cfg.EPAMaxIterations),
		zap.Int("faces", len(builder.faces)),
	)

	closestFaceIndex := builder.FindClosestFaceIndex()
	if closestFaceIndex < 0 {
		witnessA, witnessB := st.Witnesses()
		return expansion{normal: mgl64.Vec3{0, 0, 1}, witnessA: witnessA, witnessB: witnessB, approximate: true}
	}

	result := builder.faceExpansion(closestFaceIndex)
	result.approximate = true
	return result
}

func degenerate(fallback expansion, st *gjk.State, cfg *gjk.Config) expansion {
	cfg.Stats.RecordEPADegenerate()
	if fallback.approximate {
		cfg.Degraded("epa fell back on a flat core difference",
			zap.Int("vertices", st.Simplex.NumVerts),
		)
	}
	return fallback
}

// faceExpansion projects the origin on a face and interpolates the witnesses.
func (b *PolytopeBuilder) faceExpansion(faceIndex int) expansion {
	face := &b.faces[faceIndex]

	var points [4]mgl64.Vec3
	for i, idx := range face.Idxs {
		points[i] = b.vertices[idx].W
	}
	simplex := gjk.Simplex{Idxs: [4]int{0, 1, 2}, NumVerts: 3}
	var barycentric [4]float64
	gjk.ClosestToOrigin(&points, &simplex, &barycentric)

	var witnessA, witnessB mgl64.Vec3
	for i, idx := range face.Idxs {
		witnessA = witnessA.Add(b.vertices[idx].A.Mul(barycentric[i]))
		witnessB = witnessB.Add(b.vertices[idx].B.Mul(barycentric[i]))
	}

	return expansion{
		normal:   snapNormalToAxis(face.Normal),
		depth:    math.Max(0, face.Distance),
		witnessA: witnessA,
		witnessB: witnessB,
	}
}

var searchAxes = [6]mgl64.Vec3{
	{1, 0, 0}, {-1, 0, 0},
	{0, 1, 0}, {0, -1, 0},
	{0, 0, 1}, {0, 0, -1},
}

// completeSimplex grows the GJK simplex to a tetrahedron by support queries.
// When no query adds a new dimension it returns false with the flat fallback:
// zero core depth along a direction orthogonal to the core difference.
func completeSimplex(a, b shape.Shape, bToA shape.Transform, st *gjk.State) ([4]gjk.Vertex, expansion, bool) {
	var tetrahedron [4]gjk.Vertex
	n := st.Simplex.NumVerts
	copy(tetrahedron[:], st.Vertices[:n])

	tol := st.Tolerance
	witnessA, witnessB := st.Witnesses()
	flat := func(normal mgl64.Vec3, approximate bool) ([4]gjk.Vertex, expansion, bool) {
		return tetrahedron, expansion{
			normal:      snapNormalToAxis(normal),
			witnessA:    witnessA,
			witnessB:    witnessB,
			approximate: approximate,
		}, false
	}

	if n == 1 {
		for _, axis := range searchAxes {
			w := gjk.MinkowskiSupport(a, b, bToA, axis)
			if w.W.Sub(tetrahedron[0].W).Len() > tol {
				tetrahedron[1] = w
				n = 2
				break
			}
		}
		if n == 1 {
			return flat(mgl64.Vec3{0, 0, 1}, true)
		}
	}

	if n == 2 {
		line := tetrahedron[1].W.Sub(tetrahedron[0].W).Normalize()
		p1 := line.Cross(leastAlignedAxis(line)).Normalize()
		p2 := line.Cross(p1)

		for _, direction := range [4]mgl64.Vec3{p1, p1.Mul(-1), p2, p2.Mul(-1)} {
			w := gjk.MinkowskiSupport(a, b, bToA, direction)
			offset := w.W.Sub(tetrahedron[0].W)
			if offset.Sub(line.Mul(offset.Dot(line))).Len() > tol {
				tetrahedron[2] = w
				n = 3
				break
			}
		}
		if n == 2 {
			return flat(p1, false)
		}
	}

	if n == 3 {
		normal := tetrahedron[1].W.Sub(tetrahedron[0].W).Cross(tetrahedron[2].W.Sub(tetrahedron[0].W)).Normalize()

		for _, direction := range [2]mgl64.Vec3{normal, normal.Mul(-1)} {
			w := gjk.MinkowskiSupport(a, b, bToA, direction)
			if math.Abs(w.W.Sub(tetrahedron[0].W).Dot(normal)) > tol {
				tetrahedron[3] = w
				n = 4
				break
			}
		}
		if n == 3 {
			return flat(normal, false)
		}
	}

	return tetrahedron, expansion{}, true
}

// leastAlignedAxis returns the coordinate axis along the smallest component of v.
func leastAlignedAxis(v mgl64.Vec3) mgl64.Vec3 {
	x, y, z := math.Abs(v.X()), math.Abs(v.Y()), math.Abs(v.Z())
	if x <= y && x <= z {
		return mgl64.Vec3{1, 0, 0}
	}
	if y <= z {
		return mgl64.Vec3{0, 1, 0}
	}
	return mgl64.Vec3{0, 0, 1}
}

// snapNormalToAxis clamps nearly-zero components of a normal vector to exactly zero.
//
// This improves numerical stability for axis-aligned contacts by preventing
// tiny floating-point errors from leaking into tangent directions.
//
// Components with absolute value < NormalSnapThreshold are set to 0, then the
// vector is renormalized.
func snapNormalToAxis(normal mgl64.Vec3) mgl64.Vec3 {
	const threshold = NormalSnapThreshold

	x := normal[0]
	y := normal[1]
	z := normal[2]

	// Clamp tiny components to zero
	if math.Abs(x) < threshold {
		x = 0
	}
	if math.Abs(y) < threshold {
		y = 0
	}
	if math.Abs(z) < threshold {
		z = 0
	}

	clamped := mgl64.Vec3{x, y, z}

	length := math.Sqrt(clamped.Dot(clamped))
	if length > 1e-8 {
		clamped = clamped.Mul(1.0 / length)
	} else {
		// If all components were clamped to zero, return default
		return mgl64.Vec3{0, 0, 1}
	}

	return clamped
}
