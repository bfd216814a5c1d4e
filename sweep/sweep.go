// Package sweep answers time-of-impact queries for a convex shape translating
// linearly against another, by conservative advancement over repeated GJK
// distance queries.
//
// For pure translation the distance between two convex shapes is a convex
// function of time, so stepping by distance over closing speed never passes
// the first contact. Each step warm-starts GJK with the previous separating
// direction.
//
// References:
//   - Mirtich: "Impulse-based Dynamic Simulation of Rigid Body Systems" (1996)
//   - Van den Bergen: "Ray Casting against General Convex Objects with
//     Application to Continuous Collision Detection" (2004)
package sweep

import (
	"fmt"
	"math"

	"github.com/akmonengine/narrowphase/epa"
	"github.com/akmonengine/narrowphase/gjk"
	"github.com/akmonengine/narrowphase/shape"
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
)

const (
	// unitTolerance is the allowed deviation of |dir| from 1.
	unitTolerance = 1e-3
	// minApproach is the closing speed under which B is considered to move away.
	minApproach = 1e-12
)

// Hit describes the first contact of a sweep, in A's space.
//
// Time > 0 is the travelled distance at first contact. Time == 0 reports an
// initial overlap when no MTD was requested; with MTD, Time is minus the
// initial penetration depth. Normal is A's outward normal pointing toward B,
// Position lies on A's surface.
type Hit struct {
	Time     float64
	Position mgl64.Vec3
	Normal   mgl64.Vec3
	// FaceIndex is the face of A hit, or -1 if A has no discrete faces.
	FaceIndex int
	// Approximate marks a best-effort answer after an iteration cap.
	Approximate bool
}

// Cast sweeps b from startBToA along dir, over length, against a fixed a.
//
// Parameters:
//   - startBToA: B's starting pose in A's space
//   - dir: Unit direction of travel in A's space
//   - length: Travel distance, must be positive
//   - thickness: Extra inflation of the pair
//   - computeMTD: Report the initial penetration when the shapes start overlapping
//   - initialDir: First GJK search direction, zero for the default
//
// Returns false when there is no contact within length.
func Cast(a, b shape.Shape, startBToA shape.Transform, dir mgl64.Vec3, length, thickness float64, computeMTD bool, initialDir mgl64.Vec3, cfg *gjk.Config) (Hit, bool, error) {
	cfg, err := gjk.Prepare(a, b, startBToA, thickness, cfg)
	if err != nil {
		return Hit{}, false, err
	}
	if !(length > 0) || math.IsInf(length, 0) {
		return Hit{}, false, fmt.Errorf("%w: sweep length must be positive and finite, got %g", gjk.ErrInvalidArgument, length)
	}
	if dirLen := dir.Len(); !(math.Abs(dirLen-1) <= unitTolerance) {
		return Hit{}, false, fmt.Errorf("%w: sweep direction must be unit length, got |dir| = %g", gjk.ErrInvalidArgument, dirLen)
	}

	// Cheap rejection: A's bounds against the bounds B covers over the whole sweep
	boundsA := a.BoundingBox().Thicken(thickness)
	boundsB := b.BoundingBox().Transformed(startBToA).Swept(dir.Mul(length))
	if !boundsA.Overlaps(boundsB) {
		return Hit{}, false, nil
	}

	c := caster{a: a, b: b, start: startBToA, dir: dir, radius: gjk.CombinedRadius(a, b, thickness), cfg: cfg}

	st := c.at(0, initialDir)
	if st.Overlap {
		if !computeMTD {
			return Hit{Time: 0, FaceIndex: -1}, true, nil
		}
		contact := epa.FromState(a, b, startBToA, &st, cfg)
		return Hit{
			Time:        -contact.Penetration,
			Position:    contact.ClosestA,
			Normal:      contact.Normal,
			FaceIndex:   faceIndex(a, contact.Normal),
			Approximate: contact.Approximate,
		}, true, nil
	}

	return c.advance(st, length)
}

// caster holds the inputs of one sweep.
type caster struct {
	a, b   shape.Shape
	start  shape.Transform
	dir    mgl64.Vec3
	radius float64
	cfg    *gjk.Config
}

// at runs GJK with B moved t along the sweep.
func (c *caster) at(t float64, initialDir mgl64.Vec3) gjk.State {
	tm := c.start
	tm.Position = c.start.Position.Add(c.dir.Mul(t))
	return gjk.Run(c.a, c.b, tm, c.radius, initialDir, gjk.ModeClosest, c.cfg)
}

func (c *caster) advance(st gjk.State, length float64) (Hit, bool, error) {
	tol := st.Tolerance
	t := 0.0
	normal := separatingNormal(&st, mgl64.Vec3{})

	for i := 0; i < c.cfg.SweepMaxIterations; i++ {
		distance := st.Closest.Len() - c.radius

		approach := -c.dir.Dot(normal)
		if approach <= minApproach {
			return Hit{}, false, nil
		}

		previousT := t
		previous := st
		t += distance / approach
		if t > length+tol {
			return Hit{}, false, nil
		}

		st = c.at(t, previous.Closest.Mul(-1))
		distance = st.Closest.Len() - c.radius

		if distance < -tol {
			// Numerical overshoot: bisect back toward the last separated time
			t, st = c.refine(previousT, previous, t)
			normal = separatingNormal(&st, normal)
			return c.hit(&st, min(t, length), normal, false), true, nil
		}
		normal = separatingNormal(&st, normal)

		if distance <= tol {
			return c.hit(&st, min(t, length), normal, false), true, nil
		}
	}

	c.cfg.Stats.RecordSweepCapped()
	c.cfg.Degraded("sweep iteration cap reached",
		zap.Int("iterations", c.cfg.SweepMaxIterations),
		zap.Float64("time", t),
		zap.Float64("distance", st.Closest.Len()-c.radius),
	)

	return c.hit(&st, min(t, length), normal, true), true, nil
}

// refine bisects between a separated time lo and an overlapping time hi,
// returning the last separated time and its state.
func (c *caster) refine(lo float64, loState gjk.State, hi float64) (float64, gjk.State) {
	tol := loState.Tolerance
	for i := 0; i < c.cfg.SweepRefineIterations; i++ {
		mid := gjk.Clamp(0.5*(lo+hi), lo, hi)
		st := c.at(mid, loState.Closest.Mul(-1))
		distance := st.Closest.Len() - c.radius

		switch {
		case distance < -tol:
			hi = mid
		case distance <= tol:
			return mid, st
		default:
			lo, loState = mid, st
		}
	}
	return lo, loState
}

func (c *caster) hit(st *gjk.State, t float64, normal mgl64.Vec3, approximate bool) Hit {
	witnessA, _ := st.Witnesses()
	return Hit{
		Time:        t,
		Position:    witnessA.Add(normal.Mul(c.a.Margin())),
		Normal:      normal,
		FaceIndex:   faceIndex(c.a, normal),
		Approximate: approximate || st.Capped,
	}
}

// separatingNormal is A's outward normal toward B for a separated state,
// or fallback when the cores are too close to define one.
func separatingNormal(st *gjk.State, fallback mgl64.Vec3) mgl64.Vec3 {
	vv := st.Closest.LenSqr()
	if vv <= st.Tolerance*st.Tolerance {
		return fallback
	}
	return st.Closest.Mul(-1 / math.Sqrt(vv))
}

func faceIndex(s shape.Shape, normal mgl64.Vec3) int {
	if locator, ok := s.(shape.FaceLocator); ok {
		return locator.FaceIndex(normal)
	}
	return -1
}
