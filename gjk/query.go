package gjk

import (
	"fmt"
	"math"

	"github.com/akmonengine/narrowphase/shape"
	"github.com/go-gl/mathgl/mgl64"
)

// Contact is the result of a distance or penetration query, in A's space.
//
// Normal is A's outward normal pointing toward B. ClosestA lies on A's surface
// and ClosestB on B's surface; the query thickness is not applied to them.
// Exactly one of Distance (Separated) or Penetration (!Separated) is meaningful.
type Contact struct {
	Separated   bool
	ClosestA    mgl64.Vec3
	ClosestB    mgl64.Vec3
	Normal      mgl64.Vec3
	Distance    float64
	Penetration float64
	// Approximate marks a best-effort answer after an iteration cap or a degenerate fallback.
	Approximate bool
}

// Prepare checks the arguments shared by every query and resolves cfg.
func Prepare(a, b shape.Shape, bToA shape.Transform, thickness float64, cfg *Config) (*Config, error) {
	if a == nil || b == nil {
		return nil, fmt.Errorf("%w: nil shape", ErrInvalidArgument)
	}
	if !(thickness >= 0) || math.IsInf(thickness, 0) {
		return nil, fmt.Errorf("%w: thickness must be finite and non-negative, got %g", ErrInvalidArgument, thickness)
	}
	if !bToA.IsValid() {
		return nil, fmt.Errorf("%w: transform is not finite or not a unit rotation", ErrInvalidArgument)
	}
	for _, m := range [2]float64{a.Margin(), b.Margin()} {
		if !(m >= 0) || math.IsInf(m, 0) {
			return nil, fmt.Errorf("%w: shape margin must be finite and non-negative, got %g", ErrInvalidArgument, m)
		}
	}

	cfg = cfg.OrDefault()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Stats.RecordQuery()

	return cfg, nil
}

// CombinedRadius is the inflation applied to the core difference of a and b.
func CombinedRadius(a, b shape.Shape, thickness float64) float64 {
	return a.Margin() + b.Margin() + thickness
}

// Intersect reports whether a and b, inflated by thickness, overlap.
func Intersect(a, b shape.Shape, bToA shape.Transform, thickness float64, initialDir mgl64.Vec3, cfg *Config) (bool, error) {
	cfg, err := Prepare(a, b, bToA, thickness, cfg)
	if err != nil {
		return false, err
	}

	st := Run(a, b, bToA, CombinedRadius(a, b, thickness), initialDir, ModeIntersect, cfg)
	return st.Overlap, nil
}

// Distance computes the separation of a and b inflated by thickness.
// It returns false when the shapes overlap.
func Distance(a, b shape.Shape, bToA shape.Transform, thickness float64, initialDir mgl64.Vec3, cfg *Config) (Contact, bool, error) {
	cfg, err := Prepare(a, b, bToA, thickness, cfg)
	if err != nil {
		return Contact{}, false, err
	}

	st := Run(a, b, bToA, CombinedRadius(a, b, thickness), initialDir, ModeClosest, cfg)
	if st.Overlap {
		return Contact{}, false, nil
	}

	return st.SurfaceContact(a.Margin(), b.Margin()), true, nil
}

// SurfaceContact builds a contact from a state whose cores are separated.
// The closest core points are pushed out to the shape surfaces along the normal;
// a shallow overlap of the margins gives a penetration.
func (s *State) SurfaceContact(marginA, marginB float64) Contact {
	length := s.Closest.Len()
	normal := s.Closest.Mul(-1 / length)
	witnessA, witnessB := s.Witnesses()

	contact := Contact{
		ClosestA:    witnessA.Add(normal.Mul(marginA)),
		ClosestB:    witnessB.Sub(normal.Mul(marginB)),
		Normal:      normal,
		Approximate: s.Capped,
	}
	if s.Overlap {
		contact.Penetration = math.Max(0, s.Radius-length)
	} else {
		contact.Separated = true
		contact.Distance = length - s.Radius
	}

	return contact
}
