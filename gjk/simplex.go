package gjk

import (
	"github.com/go-gl/mathgl/mgl64"
)

const (
	// degenerateTriangleEpsilon bounds |AB×AC|² relative to the squared longest edge squared.
	degenerateTriangleEpsilon = 1e-14
	// degenerateTetrahedronEpsilon bounds the squared volume relative to the longest edge cubed (squared lengths).
	degenerateTetrahedronEpsilon = 1e-14
	// relativeTieEpsilon decides when two candidate distances are treated as equal.
	relativeTieEpsilon = 1e-9
)

// Simplex is a set of 1-4 vertex indices into a caller-owned point array.
// Idxs keeps the relative order in which the points were added, the most
// recent point last.
type Simplex struct {
	Idxs     [4]int
	NumVerts int
}

// ClosestToOrigin reduces the simplex to the smallest feature containing the
// point closest to the origin and returns that point.
//
// barycentric is indexed by the original point index: on return it holds the
// weight of every vertex still in the simplex and zero elsewhere. The returned
// point is always the weighted sum of the original points.
func ClosestToOrigin(points *[4]mgl64.Vec3, simplex *Simplex, barycentric *[4]float64) mgl64.Vec3 {
	*barycentric = [4]float64{}

	switch simplex.NumVerts {
	case 1:
		barycentric[simplex.Idxs[0]] = 1
		return points[simplex.Idxs[0]]
	case 2:
		return closestOnLine(points, simplex, barycentric)
	case 3:
		return closestOnTriangle(points, simplex, barycentric)
	case 4:
		return closestOnTetrahedron(points, simplex, barycentric)
	}

	return mgl64.Vec3{}
}

func closestOnLine(points *[4]mgl64.Vec3, simplex *Simplex, barycentric *[4]float64) mgl64.Vec3 {
	i0, i1 := simplex.Idxs[0], simplex.Idxs[1]
	a, b := points[i0], points[i1]

	ab := b.Sub(a)
	t := a.Mul(-1).Dot(ab)
	if t <= 0 {
		// Also covers a == b
		simplex.NumVerts = 1
		barycentric[i0] = 1
		return a
	}

	abLenSqr := ab.Dot(ab)
	if t >= abLenSqr {
		simplex.Idxs[0] = i1
		simplex.NumVerts = 1
		barycentric[i1] = 1
		return b
	}

	u := Clamp(t/abLenSqr, 0, 1)
	barycentric[i0] = 1 - u
	barycentric[i1] = u
	return a.Mul(1 - u).Add(b.Mul(u))
}

// closestOnTriangle follows the Voronoi region tests of Ericson's
// ClosestPtPointTriangle with the query point at the origin.
func closestOnTriangle(points *[4]mgl64.Vec3, simplex *Simplex, barycentric *[4]float64) mgl64.Vec3 {
	ia, ib, ic := simplex.Idxs[0], simplex.Idxs[1], simplex.Idxs[2]
	a, b, c := points[ia], points[ib], points[ic]

	ab := b.Sub(a)
	ac := c.Sub(a)
	bc := c.Sub(b)

	n := ab.Cross(ac)
	maxEdge := max(ab.Dot(ab), ac.Dot(ac), bc.Dot(bc))
	if n.Dot(n) <= degenerateTriangleEpsilon*maxEdge*maxEdge {
		return closestOnDegenerateTriangle(points, simplex, barycentric, [3]float64{ab.Dot(ab), ac.Dot(ac), bc.Dot(bc)})
	}

	d1 := ab.Dot(a.Mul(-1))
	d2 := ac.Dot(a.Mul(-1))
	if d1 <= 0 && d2 <= 0 {
		return keepVertex(simplex, barycentric, ia, a)
	}

	d3 := ab.Dot(b.Mul(-1))
	d4 := ac.Dot(b.Mul(-1))
	if d3 >= 0 && d4 <= d3 {
		return keepVertex(simplex, barycentric, ib, b)
	}

	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		v := Clamp(d1/(d1-d3), 0, 1)
		return keepEdge(simplex, barycentric, ia, ib, a, b, v)
	}

	d5 := ab.Dot(c.Mul(-1))
	d6 := ac.Dot(c.Mul(-1))
	if d6 >= 0 && d5 <= d6 {
		return keepVertex(simplex, barycentric, ic, c)
	}

	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		w := Clamp(d2/(d2-d6), 0, 1)
		return keepEdge(simplex, barycentric, ia, ic, a, c, w)
	}

	va := d3*d6 - d5*d4
	if va <= 0 && (d4-d3) >= 0 && (d5-d6) >= 0 {
		w := Clamp((d4-d3)/((d4-d3)+(d5-d6)), 0, 1)
		return keepEdge(simplex, barycentric, ib, ic, b, c, w)
	}

	denom := 1 / (va + vb + vc)
	v := vb * denom
	w := vc * denom
	u := 1 - v - w
	barycentric[ia] = u
	barycentric[ib] = v
	barycentric[ic] = w
	return a.Mul(u).Add(b.Mul(v)).Add(c.Mul(w))
}

// closestOnDegenerateTriangle handles a (nearly) collinear triangle by testing
// its two longest edges. On a tie the edge without the most recent vertex wins.
func closestOnDegenerateTriangle(points *[4]mgl64.Vec3, simplex *Simplex, barycentric *[4]float64, edgeLenSqr [3]float64) mgl64.Vec3 {
	edges := [3][2]int{{0, 1}, {0, 2}, {1, 2}}

	// Drop the shortest edge, the later one on ties
	shortest := 0
	for k := 1; k < 3; k++ {
		if edgeLenSqr[k] <= edgeLenSqr[shortest] {
			shortest = k
		}
	}

	var best Simplex
	var bestBary [4]float64
	var bestPoint mgl64.Vec3
	bestDist := -1.0

	for k, edge := range edges {
		if k == shortest {
			continue
		}

		candidate := Simplex{Idxs: [4]int{simplex.Idxs[edge[0]], simplex.Idxs[edge[1]]}, NumVerts: 2}
		var candidateBary [4]float64
		p := closestOnLine(points, &candidate, &candidateBary)

		if d := p.Dot(p); bestDist < 0 || d < bestDist*(1-relativeTieEpsilon) {
			best, bestBary, bestPoint, bestDist = candidate, candidateBary, p, d
		}
	}

	*simplex = best
	*barycentric = bestBary
	return bestPoint
}

func closestOnTetrahedron(points *[4]mgl64.Vec3, simplex *Simplex, barycentric *[4]float64) mgl64.Vec3 {
	idxs := simplex.Idxs
	a, b, c, d := points[idxs[0]], points[idxs[1]], points[idxs[2]], points[idxs[3]]

	volume := signedVolume(a, b, c, d)
	maxEdge := max(
		lenSqr(b.Sub(a)), lenSqr(c.Sub(a)), lenSqr(d.Sub(a)),
		lenSqr(c.Sub(b)), lenSqr(d.Sub(b)), lenSqr(d.Sub(c)),
	)

	if volume*volume <= degenerateTetrahedronEpsilon*maxEdge*maxEdge*maxEdge {
		// Flat: discard the most recent vertex
		simplex.NumVerts = 3
		return closestOnTriangle(points, simplex, barycentric)
	}

	var origin mgl64.Vec3
	lambda := [4]float64{
		signedVolume(origin, b, c, d) / volume,
		signedVolume(a, origin, c, d) / volume,
		signedVolume(a, b, origin, d) / volume,
		signedVolume(a, b, c, origin) / volume,
	}

	if lambda[0] >= 0 && lambda[1] >= 0 && lambda[2] >= 0 && lambda[3] >= 0 {
		var closest mgl64.Vec3
		for k := 0; k < 4; k++ {
			barycentric[idxs[k]] = lambda[k]
			closest = closest.Add(points[idxs[k]].Mul(lambda[k]))
		}
		return closest
	}

	// Faces listed with the vertex opposite to them last
	faces := [4][4]int{{0, 1, 2, 3}, {0, 1, 3, 2}, {0, 2, 3, 1}, {1, 2, 3, 0}}

	var best Simplex
	var bestBary [4]float64
	var bestPoint mgl64.Vec3
	bestDist := -1.0

	for _, face := range faces {
		if lambda[face[3]] >= 0 {
			continue
		}

		candidate := Simplex{Idxs: [4]int{idxs[face[0]], idxs[face[1]], idxs[face[2]]}, NumVerts: 3}
		var candidateBary [4]float64
		p := closestOnTriangle(points, &candidate, &candidateBary)

		if dist := p.Dot(p); bestDist < 0 || dist < bestDist*(1-relativeTieEpsilon) {
			best, bestBary, bestPoint, bestDist = candidate, candidateBary, p, dist
		}
	}
	if best.NumVerts == 0 {
		simplex.NumVerts = 3
		return closestOnTriangle(points, simplex, barycentric)
	}

	*simplex = best
	*barycentric = bestBary
	return bestPoint
}

func keepVertex(simplex *Simplex, barycentric *[4]float64, i int, p mgl64.Vec3) mgl64.Vec3 {
	simplex.Idxs[0] = i
	simplex.NumVerts = 1
	barycentric[i] = 1
	return p
}

// keepEdge reduces the simplex to the edge (i, j), i added before j, with weight t on j.
func keepEdge(simplex *Simplex, barycentric *[4]float64, i, j int, p, q mgl64.Vec3, t float64) mgl64.Vec3 {
	simplex.Idxs[0] = i
	simplex.Idxs[1] = j
	simplex.NumVerts = 2
	barycentric[i] = 1 - t
	barycentric[j] = t
	return p.Mul(1 - t).Add(q.Mul(t))
}

// signedVolume is six times the signed volume of the tetrahedron (p, q, r, s).
func signedVolume(p, q, r, s mgl64.Vec3) float64 {
	return q.Sub(p).Dot(r.Sub(p).Cross(s.Sub(p)))
}

func lenSqr(v mgl64.Vec3) float64 {
	return v.Dot(v)
}
