// Package narrowphase runs batches of convex collision queries across a pool
// of workers.
//
// Each query is answered by the gjk, epa and sweep packages; this package
// places the shapes in a common world frame, fans the pairs out to workers
// and collects the results in input order.
package narrowphase

import (
	"context"
	"fmt"
	"sync"

	"github.com/akmonengine/narrowphase/epa"
	"github.com/akmonengine/narrowphase/gjk"
	"github.com/akmonengine/narrowphase/shape"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Body is a shape placed in the world.
type Body struct {
	Shape     shape.Shape
	Transform shape.Transform
}

// Pair is one distance/penetration query between two bodies.
type Pair struct {
	BodyA *Body
	BodyB *Body
	// Thickness inflates both shapes for this query only.
	Thickness float64
	// InitialDir seeds GJK in A's local space, zero for the default.
	InitialDir mgl64.Vec3
}

// PairResult is the outcome of one Pair, in world space.
type PairResult struct {
	Index int
	// Contact holds either the distance (Separated) or the penetration.
	Contact gjk.Contact
	Err     error
}

// relative returns B's pose in A's local space.
func relative(a, b *Body) (shape.Transform, error) {
	if a == nil || b == nil {
		return shape.Transform{}, fmt.Errorf("%w: nil body", gjk.ErrInvalidArgument)
	}
	if !a.Transform.IsValid() {
		return shape.Transform{}, fmt.Errorf("%w: body A transform is not finite or not a unit rotation", gjk.ErrInvalidArgument)
	}
	return a.Transform.Inverse().Mul(b.Transform), nil
}

// toWorld maps a contact from A's local space into world space.
func toWorld(a *Body, contact gjk.Contact) gjk.Contact {
	contact.ClosestA = a.Transform.TransformPosition(contact.ClosestA)
	contact.ClosestB = a.Transform.TransformPosition(contact.ClosestB)
	contact.Normal = a.Transform.TransformVector(contact.Normal)
	return contact
}

// collisionPair is a pair whose cores overlap, waiting for EPA.
type collisionPair struct {
	index int
	pair  Pair
	bToA  shape.Transform
	state gjk.State
}

type job struct {
	index int
	pair  Pair
}

// Detect answers every pair with its distance, or its penetration when the
// bodies overlap. Results are in the order of pairs.
//
// Pairs are checked by GJK first; only the pairs whose cores overlap reach the
// EPA stage. The returned error combines every per-pair error, or reports the
// context error if the batch was cancelled; results of pairs that were not
// run then carry the context error.
func Detect(ctx context.Context, pairs []Pair, cfg *Config) ([]PairResult, error) {
	cfg = cfg.OrDefault()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	query, logger := cfg.batch()
	logger.Debug("detect batch started", zap.Int("pairs", len(pairs)), zap.Int("workers", cfg.Workers))

	out := make(chan PairResult, cfg.Workers)
	overlaps := runGJK(dispatch(ctx, pairs), cfg.Workers, query, out)
	done := runEPA(overlaps, cfg.Workers, query, out)
	go func() {
		<-done
		close(out)
	}()

	results := make([]PairResult, len(pairs))
	received := make([]bool, len(pairs))
	var errs error
	for result := range out {
		results[result.Index] = result
		received[result.Index] = true
		if result.Err != nil {
			errs = multierr.Append(errs, fmt.Errorf("pair %d: %w", result.Index, result.Err))
		}
	}

	if err := ctx.Err(); err != nil {
		skipped := 0
		for i := range results {
			if !received[i] {
				results[i] = PairResult{Index: i, Err: err}
				skipped++
			}
		}
		logger.Debug("detect batch cancelled", zap.Int("skipped", skipped), zap.Error(err))
		return results, multierr.Append(err, errs)
	}

	logger.Debug("detect batch finished", zap.Int("pairs", len(pairs)), zap.Int("errors", len(multierr.Errors(errs))))
	return results, errs
}

// dispatch feeds the pairs to the workers until ctx is done.
func dispatch(ctx context.Context, pairs []Pair) <-chan job {
	jobs := make(chan job)

	go func() {
		defer close(jobs)

		for i, pair := range pairs {
			select {
			case <-ctx.Done():
				return
			case jobs <- job{index: i, pair: pair}:
			}
		}
	}()

	return jobs
}

// runGJK runs the GJK stage. Separated pairs and margin-only overlaps are
// answered on out; pairs whose cores overlap are forwarded to EPA.
func runGJK(jobs <-chan job, workersCount int, cfg *gjk.Config, out chan<- PairResult) <-chan collisionPair {
	collisionChan := make(chan collisionPair, workersCount)

	go func() {
		var wg sync.WaitGroup
		defer close(collisionChan)

		for w := 0; w < workersCount; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()

				for j := range jobs {
					bToA, err := relative(j.pair.BodyA, j.pair.BodyB)
					if err == nil {
						_, err = gjk.Prepare(shapeOf(j.pair.BodyA), shapeOf(j.pair.BodyB), bToA, j.pair.Thickness, cfg)
					}
					if err != nil {
						out <- PairResult{Index: j.index, Err: err}
						continue
					}

					a, b := j.pair.BodyA.Shape, j.pair.BodyB.Shape
					st := gjk.Run(a, b, bToA, gjk.CombinedRadius(a, b, j.pair.Thickness), j.pair.InitialDir, gjk.ModeClosest, cfg)
					if st.CoreOverlap {
						collisionChan <- collisionPair{index: j.index, pair: j.pair, bToA: bToA, state: st}
						continue
					}

					contact := st.SurfaceContact(a.Margin(), b.Margin())
					out <- PairResult{Index: j.index, Contact: toWorld(j.pair.BodyA, contact)}
				}
			}()
		}
		wg.Wait()
	}()

	return collisionChan
}

// runEPA runs the penetration stage on the pairs forwarded by GJK. The returned
// channel is closed once every pair has been answered.
func runEPA(p <-chan collisionPair, workersCount int, cfg *gjk.Config, out chan<- PairResult) <-chan struct{} {
	done := make(chan struct{})

	go func() {
		var wg sync.WaitGroup
		defer close(done)

		for w := 0; w < workersCount; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for pair := range p {
					contact := epa.FromState(pair.pair.BodyA.Shape, pair.pair.BodyB.Shape, pair.bToA, &pair.state, cfg)
					out <- PairResult{Index: pair.index, Contact: toWorld(pair.pair.BodyA, contact)}
				}
			}()
		}

		wg.Wait()
	}()

	return done
}

func shapeOf(b *Body) shape.Shape {
	if b == nil {
		return nil
	}
	return b.Shape
}

// batch returns the query configuration and logger of one batch, tagged with
// a fresh batch id.
func (c *Config) batch() (*gjk.Config, *zap.Logger) {
	query := c.Query
	logger := query.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("batch", uuid.NewString()))
	if query.Logger != nil {
		query.Logger = logger
	}
	return &query, logger
}
