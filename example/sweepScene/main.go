package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/akmonengine/narrowphase"
	"github.com/akmonengine/narrowphase/epa"
	"github.com/akmonengine/narrowphase/gjk"
	"github.com/akmonengine/narrowphase/shape"
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "TOML configuration file")
	flag.Parse()

	cfg := narrowphase.DefaultConfig()
	if *configPath != "" {
		loaded, err := narrowphase.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	logger, err := narrowphase.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	stats := &gjk.Stats{}
	cfg.Instrument(logger, stats)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	floor, crate, ball, pill := setupScene()
	detectScene(ctx, logger, cfg, floor, crate, ball, pill)
	sweepScene(ctx, logger, cfg, floor, crate, ball)
	localQueries(logger, cfg)

	snapshot := stats.Snapshot()
	logger.Info("query stats",
		zap.Int64("queries", snapshot.Queries),
		zap.Int64("gjk_capped", snapshot.GJKCapped),
		zap.Int64("epa_capped", snapshot.EPACapped),
		zap.Int64("epa_degenerate", snapshot.EPADegenerate),
		zap.Int64("sweep_capped", snapshot.SweepCapped),
	)
}

// setupScene creates a floor slab, a tilted crate resting on it, a ball and a pill.
func setupScene() (floor, crate, ball, pill *narrowphase.Body) {
	floor = &narrowphase.Body{
		Shape:     shape.NewBoxFromHalfExtents(mgl64.Vec3{10, 10, 0.5}),
		Transform: shape.NewTransform(mgl64.Vec3{0, 0, -0.5}, mgl64.QuatIdent()),
	}
	crate = &narrowphase.Body{
		Shape:     shape.NewBoxFromHalfExtents(mgl64.Vec3{0.5, 0.5, 0.5}),
		Transform: shape.NewTransform(mgl64.Vec3{0, 0, 0.6}, mgl64.QuatRotate(math.Pi/4, mgl64.Vec3{1, 0, 0})),
	}
	ball = &narrowphase.Body{
		Shape:     shape.NewSphere(mgl64.Vec3{}, 0.5),
		Transform: shape.NewTransform(mgl64.Vec3{3, 0, 0.45}, mgl64.QuatIdent()),
	}
	pill = &narrowphase.Body{
		Shape:     shape.NewCapsule(mgl64.Vec3{0, -0.5, 0}, mgl64.Vec3{0, 0.5, 0}, 0.25),
		Transform: shape.NewTransform(mgl64.Vec3{3, 0, 1.5}, mgl64.QuatIdent()),
	}
	return
}

func detectScene(ctx context.Context, logger *zap.Logger, cfg *narrowphase.Config, floor, crate, ball, pill *narrowphase.Body) {
	pairs := []narrowphase.Pair{
		{BodyA: floor, BodyB: crate},
		{BodyA: floor, BodyB: ball},
		{BodyA: ball, BodyB: pill},
		{BodyA: crate, BodyB: ball, Thickness: 0.05},
	}

	results, err := narrowphase.Detect(ctx, pairs, cfg)
	if err != nil {
		logger.Error("detect", zap.Error(err))
	}
	for _, result := range results {
		if result.Err != nil {
			continue
		}
		c := result.Contact
		logger.Info("contact",
			zap.Int("pair", result.Index),
			zap.Bool("separated", c.Separated),
			zap.Float64("distance", c.Distance),
			zap.Float64("penetration", c.Penetration),
			zap.Float64s("normal", c.Normal[:]),
			zap.Float64s("closest_a", c.ClosestA[:]),
			zap.Float64s("closest_b", c.ClosestB[:]),
			zap.Bool("approximate", c.Approximate),
		)
	}
}

func sweepScene(ctx context.Context, logger *zap.Logger, cfg *narrowphase.Config, floor, crate, ball *narrowphase.Body) {
	sweeps := []narrowphase.SweepPair{
		{BodyA: crate, BodyB: ball, Direction: mgl64.Vec3{-1, 0, 0}, Length: 5},
		{BodyA: floor, BodyB: ball, Direction: mgl64.Vec3{0, 0, 1}, Length: 5},
		{BodyA: floor, BodyB: ball, Direction: mgl64.Vec3{0, 0, -1}, Length: 1, ComputeMTD: true},
	}

	results, err := narrowphase.SweepAll(ctx, sweeps, cfg)
	if err != nil {
		logger.Error("sweep", zap.Error(err))
	}
	for _, result := range results {
		if result.Err != nil {
			continue
		}
		if !result.Found {
			logger.Info("sweep missed", zap.Int("sweep", result.Index))
			continue
		}
		hit := result.Hit
		logger.Info("sweep hit",
			zap.Int("sweep", result.Index),
			zap.Float64("time", hit.Time),
			zap.Float64s("position", hit.Position[:]),
			zap.Float64s("normal", hit.Normal[:]),
			zap.Int("face", hit.FaceIndex),
		)
	}
}

// localQueries calls the single-pair entry points in A's local space.
func localQueries(logger *zap.Logger, cfg *narrowphase.Config) {
	hull, err := shape.NewConvex([]mgl64.Vec3{
		{1, 0, 0}, {-1, 0, 0}, {0, 1, 0}, {0, -1, 0}, {0, 0, 1}, {0, 0, -1},
	})
	if err != nil {
		logger.Error("hull", zap.Error(err))
		return
	}
	stretched, err := shape.NewScaled(hull, mgl64.Vec3{2, 1, 1})
	if err != nil {
		logger.Error("scaled hull", zap.Error(err))
		return
	}
	probe, err := shape.NewInstanced(shape.NewSphere(mgl64.Vec3{}, 0.5))
	if err != nil {
		logger.Error("probe", zap.Error(err))
		return
	}
	offset := shape.NewTransform(mgl64.Vec3{2.25, 0, 0}, mgl64.QuatIdent())

	bounds := stretched.BoundingBox()
	center := bounds.Center()
	logger.Info("shapes",
		zap.String("a", describe(stretched)),
		zap.String("b", describe(probe)),
		zap.Float64s("a_bounds_center", center[:]),
		zap.Bool("b_center_in_a_bounds", bounds.ContainsPoint(offset.Position)),
	)

	overlap, err := gjk.Intersect(stretched, probe, offset, 0, mgl64.Vec3{}, &cfg.Query)
	if err != nil {
		logger.Error("intersect", zap.Error(err))
		return
	}
	contact, err := epa.Query(stretched, probe, offset, 0, mgl64.Vec3{}, &cfg.Query)
	if err != nil {
		logger.Error("query", zap.Error(err))
		return
	}
	logger.Info("stretched octahedron against probe",
		zap.Bool("overlap", overlap),
		zap.Float64("distance", contact.Distance),
		zap.Float64("penetration", contact.Penetration),
		zap.Float64s("normal", contact.Normal[:]),
	)
}

// describe names a shape, unwrapping scaled and instanced wrappers.
func describe(s shape.Shape) string {
	switch s := s.(type) {
	case *shape.Sphere:
		return fmt.Sprintf("sphere(r=%g)", s.Radius)
	case *shape.Capsule:
		return fmt.Sprintf("capsule(r=%g)", s.Radius)
	case *shape.Box:
		return fmt.Sprintf("box(%v..%v)", s.Min, s.Max)
	case *shape.Convex:
		return fmt.Sprintf("convex(%d points)", len(s.Points()))
	case *shape.Scaled:
		return fmt.Sprintf("scaled(%v, %s)", s.Scale(), describe(s.Inner()))
	case *shape.Instanced:
		return fmt.Sprintf("instanced(%s)", describe(s.Inner()))
	default:
		return fmt.Sprintf("%T", s)
	}
}
