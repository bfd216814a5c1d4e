package epa

import (
	"errors"
	"math"
	"sync"

	"github.com/akmonengine/narrowphase/gjk"
	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/exp/slices"
)

var errFlatPolytope = errors.New("epa: initial tetrahedron is flat")

// Face is a triangle of the polytope, referencing vertices by index.
type Face struct {
	Idxs     [3]int
	Normal   mgl64.Vec3 // Outward unit normal
	Distance float64    // Signed distance from the origin to the face plane
	// Degenerate faces have no usable normal; they are never expanded or returned.
	Degenerate bool
}

// EdgeEntry represents an edge with occurrence counting for boundary detection.
// An edge is a boundary edge if it appears exactly once (count == 1).
// Edges are normalized so A < B for consistent deduplication.
type EdgeEntry struct {
	A, B  int
	Count int
}

// PolytopeBuilder manages polytope expansion with dynamic buffers.
type PolytopeBuilder struct {
	vertices []gjk.Vertex
	faces    []Face

	// Edge tracking for boundary detection
	edges []EdgeEntry

	// Visible face tracking
	visibleIndices []int

	// Interior point used to orient every face outward. It stays inside while
	// the polytope grows, since the polytope is convex.
	interior mgl64.Vec3
}

// polytopeBuilderPool is the single sync.Pool for PolytopeBuilder instances.
var polytopeBuilderPool = sync.Pool{
	New: func() interface{} {
		return &PolytopeBuilder{
			vertices:       make([]gjk.Vertex, 0, polytopeInitialCapacity),
			faces:          make([]Face, 0, polytopeInitialCapacity),
			edges:          make([]EdgeEntry, 0, polytopeInitialCapacity),
			visibleIndices: make([]int, 0, polytopeInitialCapacity),
		}
	},
}

// Reset prepares the builder for reuse by clearing all slices.
func (b *PolytopeBuilder) Reset() {
	b.vertices = b.vertices[:0]
	b.faces = b.faces[:0]
	b.edges = b.edges[:0]
	b.visibleIndices = b.visibleIndices[:0]
}

// Vertex returns the polytope vertex at index i
func (b *PolytopeBuilder) Vertex(i int) gjk.Vertex {
	return b.vertices[i]
}

// Faces returns the current faces. The slice is reused by the next expansion.
func (b *PolytopeBuilder) Faces() []Face {
	return b.faces
}

// BuildInitialFaces creates the initial polytope from a tetrahedron enclosing the origin.
// Returns an error if the tetrahedron has no volume.
func (b *PolytopeBuilder) BuildInitialFaces(tetrahedron [4]gjk.Vertex) error {
	p0, p1, p2, p3 := tetrahedron[0].W, tetrahedron[1].W, tetrahedron[2].W, tetrahedron[3].W

	volume := p1.Sub(p0).Dot(p2.Sub(p0).Cross(p3.Sub(p0)))
	scale := max(p1.Sub(p0).Len(), p2.Sub(p0).Len(), p3.Sub(p0).Len())
	if math.Abs(volume) <= flatVolumeEpsilon*scale*scale*scale {
		return errFlatPolytope
	}

	b.vertices = append(b.vertices, tetrahedron[:]...)
	b.interior = p0.Add(p1).Add(p2).Add(p3).Mul(0.25)

	b.faces = append(b.faces,
		b.createFaceOutward(0, 1, 2),
		b.createFaceOutward(0, 2, 3),
		b.createFaceOutward(0, 3, 1),
		b.createFaceOutward(1, 3, 2),
	)

	return nil
}

// createFaceOutward creates a Face with normal pointing away from the interior point.
//
// Algorithm:
//  1. Compute normal via cross product: (b-a) × (c-a)
//  2. Flag the face degenerate if its area is negligible against its edges
//  3. Flip the normal if it points toward the interior
//  4. Distance is the plane offset along the normal
func (b *PolytopeBuilder) createFaceOutward(i0, i1, i2 int) Face {
	face := Face{Idxs: [3]int{i0, i1, i2}}
	p0, p1, p2 := b.vertices[i0].W, b.vertices[i1].W, b.vertices[i2].W

	edge1 := p1.Sub(p0)
	edge2 := p2.Sub(p0)
	normal := edge1.Cross(edge2)

	maxEdge := max(edge1.LenSqr(), edge2.LenSqr(), p2.Sub(p1).LenSqr())
	normalLenSqr := normal.LenSqr()
	if normalLenSqr <= degenerateFaceEpsilon*maxEdge*maxEdge || normalLenSqr == 0 {
		face.Degenerate = true
		face.Distance = math.MaxFloat64
		return face
	}
	normal = normal.Mul(1 / math.Sqrt(normalLenSqr))

	// If normal points toward the interior, it's pointing inward
	if normal.Dot(b.interior.Sub(p0)) > 0 {
		normal = normal.Mul(-1)
		face.Idxs[1], face.Idxs[2] = face.Idxs[2], face.Idxs[1]
	}

	face.Normal = normal
	face.Distance = p0.Dot(normal)

	return face
}

// FindClosestFaceIndex returns the index of the non-degenerate face closest to the origin.
// Returns -1 if no such face exists.
func (b *PolytopeBuilder) FindClosestFaceIndex() int {
	closestIndex := -1
	minDistance := math.MaxFloat64

	for i := range b.faces {
		if b.faces[i].Degenerate {
			continue
		}
		if b.faces[i].Distance < minDistance {
			closestIndex = i
			minDistance = b.faces[i].Distance
		}
	}

	return closestIndex
}

// findBoundaryEdges identifies boundary edges from visible faces.
// A boundary edge appears exactly once (count == 1), while internal edges
// appear twice and are filtered out.
func (b *PolytopeBuilder) findBoundaryEdges() {
	b.edges = b.edges[:0]

	for _, faceIdx := range b.visibleIndices {
		face := &b.faces[faceIdx]

		edges := [3][2]int{
			{face.Idxs[0], face.Idxs[1]},
			{face.Idxs[1], face.Idxs[2]},
			{face.Idxs[2], face.Idxs[0]},
		}

		for _, edge := range edges {
			edgeA, edgeB := edge[0], edge[1]
			if edgeA > edgeB {
				edgeA, edgeB = edgeB, edgeA
			}

			if edgeIdx := b.findEdgeIndex(edgeA, edgeB); edgeIdx >= 0 {
				b.edges[edgeIdx].Count++
			} else {
				b.edges = append(b.edges, EdgeEntry{A: edgeA, B: edgeB, Count: 1})
			}
		}
	}
}

// findEdgeIndex performs linear search for an edge in the edges buffer.
// Returns the index if found, -1 otherwise.
// Linear search is efficient for small edge counts (typically < 30).
func (b *PolytopeBuilder) findEdgeIndex(edgeA, edgeB int) int {
	for i := range b.edges {
		if b.edges[i].A == edgeA && b.edges[i].B == edgeB {
			return i
		}
	}
	return -1
}

// findVisibleFaces populates visibleIndices with faces visible from the support point.
// A face is visible if the support point lies strictly in front of its plane.
func (b *PolytopeBuilder) findVisibleFaces(support mgl64.Vec3) {
	b.visibleIndices = b.visibleIndices[:0]

	for i := range b.faces {
		face := &b.faces[i]
		if face.Degenerate {
			continue
		}
		if support.Sub(b.vertices[face.Idxs[0]].W).Dot(face.Normal) > 0 {
			b.visibleIndices = append(b.visibleIndices, i)
		}
	}
}

// removeVisibleFaces removes faces marked in visibleIndices using swap-with-last pattern.
// Indices are removed in descending order to prevent index invalidation.
func (b *PolytopeBuilder) removeVisibleFaces() {
	slices.Sort(b.visibleIndices)

	for i := len(b.visibleIndices) - 1; i >= 0; i-- {
		idx := b.visibleIndices[i]
		last := len(b.faces) - 1
		b.faces[idx] = b.faces[last]
		b.faces = b.faces[:last]
	}
}

// addBoundaryFaces creates new faces connecting boundary edges to the new vertex.
func (b *PolytopeBuilder) addBoundaryFaces(vertexIdx int) {
	for _, edge := range b.edges {
		if edge.Count != 1 {
			continue // Not a boundary edge
		}
		b.faces = append(b.faces, b.createFaceOutward(edge.A, edge.B, vertexIdx))
	}
}

// AddPointAndRebuildFaces expands the polytope by adding a support point.
// This is the main EPA expansion step that:
//  1. Finds visible faces from the support point
//  2. Identifies boundary edges (the horizon) of the visible region
//  3. Removes visible faces
//  4. Creates new faces connecting the horizon to the support point
func (b *PolytopeBuilder) AddPointAndRebuildFaces(support gjk.Vertex, closestIndex int) {
	b.findVisibleFaces(support.W)

	// The closest face is always expanded: the caller only adds points beyond it
	if !slices.Contains(b.visibleIndices, closestIndex) {
		b.visibleIndices = append(b.visibleIndices, closestIndex)
	}

	b.findBoundaryEdges()
	b.removeVisibleFaces()

	b.vertices = append(b.vertices, support)
	b.addBoundaryFaces(len(b.vertices) - 1)
}
