package narrowphase

import (
	"context"
	"fmt"
	"sync"

	"github.com/akmonengine/narrowphase/gjk"
	"github.com/akmonengine/narrowphase/sweep"
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// SweepPair moves BodyB in a straight line against a fixed BodyA.
type SweepPair struct {
	BodyA *Body
	BodyB *Body
	// Direction is the unit direction of travel in world space.
	Direction mgl64.Vec3
	Length    float64
	Thickness float64
	// ComputeMTD reports the initial penetration of overlapping starts.
	ComputeMTD bool
	InitialDir mgl64.Vec3
}

// SweepResult is the outcome of one SweepPair, in world space.
type SweepResult struct {
	Index int
	Hit   sweep.Hit
	// Found is false when BodyB travels the whole length without contact.
	Found bool
	Err   error
}

// SweepAll casts every sweep, splitting them in contiguous chunks across the
// workers. Results are in the order of sweeps.
func SweepAll(ctx context.Context, sweeps []SweepPair, cfg *Config) ([]SweepResult, error) {
	cfg = cfg.OrDefault()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	query, logger := cfg.batch()
	logger.Debug("sweep batch started", zap.Int("sweeps", len(sweeps)), zap.Int("workers", cfg.Workers))

	results := make([]SweepResult, len(sweeps))
	ran := make([]bool, len(sweeps))
	task(ctx, cfg.Workers, sweeps, func(i int, s SweepPair) {
		results[i] = castOne(i, s, query)
		ran[i] = true
	})

	var errs error
	for i := range results {
		if results[i].Err != nil {
			errs = multierr.Append(errs, fmt.Errorf("sweep %d: %w", i, results[i].Err))
		}
	}

	if err := ctx.Err(); err != nil {
		skipped := 0
		for i := range results {
			if !ran[i] {
				results[i] = SweepResult{Index: i, Err: err}
				skipped++
			}
		}
		logger.Debug("sweep batch cancelled", zap.Int("skipped", skipped), zap.Error(err))
		return results, multierr.Append(err, errs)
	}

	logger.Debug("sweep batch finished", zap.Int("sweeps", len(sweeps)), zap.Int("errors", len(multierr.Errors(errs))))
	return results, errs
}

func castOne(i int, s SweepPair, cfg *gjk.Config) SweepResult {
	bToA, err := relative(s.BodyA, s.BodyB)
	if err != nil {
		return SweepResult{Index: i, Err: err}
	}

	a := s.BodyA.Transform
	dir := a.InverseTransformVector(s.Direction)
	hit, found, err := sweep.Cast(s.BodyA.Shape, shapeOf(s.BodyB), bToA, dir, s.Length, s.Thickness, s.ComputeMTD, s.InitialDir, cfg)
	if err != nil {
		return SweepResult{Index: i, Err: err}
	}
	if found && hit.Normal != (mgl64.Vec3{}) {
		hit.Position = a.TransformPosition(hit.Position)
		hit.Normal = a.TransformVector(hit.Normal)
	}

	return SweepResult{Index: i, Hit: hit, Found: found}
}

// task runs fn over data in workersCount contiguous chunks. Once ctx is done
// the remaining items of every chunk are skipped.
func task[T any](ctx context.Context, workersCount int, data []T, fn func(i int, data T)) {
	var wg sync.WaitGroup
	dataSize := len(data)
	chunkSize := (dataSize + workersCount - 1) / workersCount

	for workerID := 0; workerID < workersCount; workerID++ {
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				if ctx.Err() != nil {
					return
				}
				fn(i, data[i])
			}
		}(workerID*chunkSize, min((workerID+1)*chunkSize, dataSize))
	}
	wg.Wait()
}
