package epa

import (
	"github.com/akmonengine/narrowphase/gjk"
	"github.com/akmonengine/narrowphase/shape"
	"github.com/go-gl/mathgl/mgl64"
)

// FromState turns a closest-mode GJK state into a contact.
//
// Separated cores give the distance, or the margin penetration when only the
// margins overlap, directly from the GJK witnesses. Overlapping cores run EPA
// and add the combined radius to the core depth.
func FromState(a, b shape.Shape, bToA shape.Transform, st *gjk.State, cfg *gjk.Config) gjk.Contact {
	if !st.CoreOverlap {
		return st.SurfaceContact(a.Margin(), b.Margin())
	}

	result := expand(a, b, bToA, st, cfg.OrDefault())
	return gjk.Contact{
		ClosestA:    result.witnessA.Add(result.normal.Mul(a.Margin())),
		ClosestB:    result.witnessB.Sub(result.normal.Mul(b.Margin())),
		Normal:      result.normal,
		Penetration: result.depth + st.Radius,
		Approximate: result.approximate || st.Capped,
	}
}

// Penetration computes how deep a and b, inflated by thickness, overlap.
// It returns false when the shapes are separated.
//
// The normal is A's outward normal pointing toward B: translating B by
// Penetration along it brings the shapes into touching contact.
func Penetration(a, b shape.Shape, bToA shape.Transform, thickness float64, initialDir mgl64.Vec3, cfg *gjk.Config) (gjk.Contact, bool, error) {
	cfg, err := gjk.Prepare(a, b, bToA, thickness, cfg)
	if err != nil {
		return gjk.Contact{}, false, err
	}

	st := gjk.Run(a, b, bToA, gjk.CombinedRadius(a, b, thickness), initialDir, gjk.ModeClosest, cfg)
	if !st.Overlap {
		return gjk.Contact{}, false, nil
	}

	return FromState(a, b, bToA, &st, cfg), true, nil
}

// Query returns either the distance (Separated) or the penetration of a and b.
func Query(a, b shape.Shape, bToA shape.Transform, thickness float64, initialDir mgl64.Vec3, cfg *gjk.Config) (gjk.Contact, error) {
	cfg, err := gjk.Prepare(a, b, bToA, thickness, cfg)
	if err != nil {
		return gjk.Contact{}, err
	}

	st := gjk.Run(a, b, bToA, gjk.CombinedRadius(a, b, thickness), initialDir, gjk.ModeClosest, cfg)
	return FromState(a, b, bToA, &st, cfg), nil
}
