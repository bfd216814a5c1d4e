package narrowphase

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"github.com/akmonengine/narrowphase/gjk"
	"github.com/akmonengine/narrowphase/shape"
	"github.com/go-gl/mathgl/mgl64"
)

func TestSweepAll(t *testing.T) {
	box := &Body{
		Shape:     shape.NewBox(mgl64.Vec3{3, -1, 0}, mgl64.Vec3{4, 1, 4}),
		Transform: shape.Identity(),
	}
	turned := &Body{
		Shape:     box.Shape,
		Transform: shape.NewTransform(mgl64.Vec3{10, 0, 0}, mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 0, 1})),
	}

	sweeps := []SweepPair{
		{BodyA: box, BodyB: createSphere(mgl64.Vec3{}, 1), Direction: mgl64.Vec3{1, 0, 0}, Length: 4},
		{BodyA: turned, BodyB: createSphere(mgl64.Vec3{10, 0, 0}, 1), Direction: mgl64.Vec3{0, 1, 0}, Length: 4},
		{BodyA: box, BodyB: createSphere(mgl64.Vec3{0, 0, 5.01}, 1), Direction: mgl64.Vec3{1, 0, 0}, Length: 10},
		{BodyA: box, BodyB: createSphere(mgl64.Vec3{4.25, 0, 2}, 1), Direction: mgl64.Vec3{1, 0, 0}, Length: 4, ComputeMTD: true},
	}

	for _, workers := range []int{1, 2, 8} {
		results, err := SweepAll(context.Background(), sweeps, workersConfig(workers))
		if err != nil {
			t.Fatalf("workers %d: SweepAll: %v", workers, err)
		}
		for i, result := range results {
			if result.Index != i {
				t.Errorf("workers %d: results[%d].Index = %d", workers, i, result.Index)
			}
		}

		head := results[0]
		if !head.Found || !floatEqual(head.Hit.Time, 2, 1e-6) {
			t.Fatalf("workers %d: head on: got %+v, want a hit at 2", workers, head)
		}
		if !vec3Equal(head.Hit.Position, mgl64.Vec3{3, 0, 0}, 1e-6) || head.Hit.FaceIndex != shape.FaceNegX {
			t.Errorf("workers %d: head on: got %+v", workers, head.Hit)
		}

		moved := results[1]
		if !moved.Found || !floatEqual(moved.Hit.Time, 2, 1e-6) {
			t.Fatalf("workers %d: turned box: got %+v, want a hit at 2", workers, moved)
		}
		if !vec3Equal(moved.Hit.Position, mgl64.Vec3{10, 3, 0}, 1e-6) {
			t.Errorf("workers %d: turned box: Position = %v, want (10, 3, 0) in world space", workers, moved.Hit.Position)
		}
		if !vec3Equal(moved.Hit.Normal, mgl64.Vec3{0, -1, 0}, 1e-6) {
			t.Errorf("workers %d: turned box: Normal = %v, want (0, -1, 0) in world space", workers, moved.Hit.Normal)
		}
		if moved.Hit.FaceIndex != shape.FaceNegX {
			t.Errorf("workers %d: turned box: FaceIndex = %d, want the local -X face", workers, moved.Hit.FaceIndex)
		}

		if results[2].Found {
			t.Errorf("workers %d: passing over: got %+v, want no hit", workers, results[2])
		}

		mtd := results[3]
		if !mtd.Found || !floatEqual(mtd.Hit.Time, -0.75, 1e-6) {
			t.Errorf("workers %d: MTD: got %+v, want time -0.75", workers, mtd)
		}
	}
}

func TestSweepAllErrors(t *testing.T) {
	unit := createSphere(mgl64.Vec3{}, 1)
	sweeps := []SweepPair{
		{BodyA: unit, BodyB: createSphere(mgl64.Vec3{-5, 0, 0}, 1), Direction: mgl64.Vec3{1, 0, 0}, Length: 0},
		{BodyA: unit, BodyB: createSphere(mgl64.Vec3{-5, 0, 0}, 1), Direction: mgl64.Vec3{1, 0, 0}, Length: 10},
		{BodyA: unit, BodyB: createSphere(mgl64.Vec3{-5, 0, 0}, 1), Direction: mgl64.Vec3{3, 0, 0}, Length: 10},
		{BodyA: nil, BodyB: unit, Direction: mgl64.Vec3{1, 0, 0}, Length: 10},
	}

	results, err := SweepAll(context.Background(), sweeps, workersConfig(2))
	if !errors.Is(err, gjk.ErrInvalidArgument) {
		t.Fatalf("SweepAll error = %v, want ErrInvalidArgument", err)
	}
	for _, i := range []int{0, 2, 3} {
		if !errors.Is(results[i].Err, gjk.ErrInvalidArgument) {
			t.Errorf("results[%d].Err = %v, want ErrInvalidArgument", i, results[i].Err)
		}
	}
	if results[1].Err != nil || !results[1].Found || !floatEqual(results[1].Hit.Time, 3, 1e-6) {
		t.Errorf("valid sweep: got %+v, want a hit at 3", results[1])
	}
}

func TestSweepAllCancelled(t *testing.T) {
	unit := createSphere(mgl64.Vec3{}, 1)
	sweeps := make([]SweepPair, 10)
	for i := range sweeps {
		sweeps[i] = SweepPair{BodyA: unit, BodyB: createSphere(mgl64.Vec3{-5, 0, 0}, 1), Direction: mgl64.Vec3{1, 0, 0}, Length: 10}
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := SweepAll(ctx, sweeps, workersConfig(2))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("SweepAll error = %v, want context.Canceled", err)
	}
	for i, result := range results {
		if !errors.Is(result.Err, context.Canceled) {
			t.Errorf("results[%d].Err = %v, want context.Canceled", i, result.Err)
		}
	}
}

func TestTask(t *testing.T) {
	tests := []struct {
		name    string
		workers int
		size    int
	}{
		{"empty", 3, 0},
		{"fewer items than workers", 8, 3},
		{"even split", 4, 20},
		{"uneven split", 3, 10},
		{"single worker", 1, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := make([]int, tt.size)
			for i := range data {
				data[i] = i
			}
			visits := make([]int32, tt.size)
			var calls atomic.Int32

			task(context.Background(), tt.workers, data, func(i int, v int) {
				if i != v {
					t.Errorf("fn called with index %d for item %d", i, v)
				}
				atomic.AddInt32(&visits[i], 1)
				calls.Add(1)
			})

			if got := int(calls.Load()); got != tt.size {
				t.Errorf("fn called %d times, want %d", got, tt.size)
			}
			for i, n := range visits {
				if n != 1 {
					t.Errorf("item %d visited %d times", i, n)
				}
			}
		})
	}
}

func TestSweepAllDeterministic(t *testing.T) {
	bodies := mixedBodies(t, 16)
	var sweeps []SweepPair
	for i := range bodies {
		j := (i + 2) % len(bodies)
		// Aim B at A with a small lateral offset so some sweeps graze and some miss
		direction := bodies[i].Transform.Position.Sub(bodies[j].Transform.Position).
			Add(mgl64.Vec3{0, 0, 0.15 * float64(i%5-2)}).Normalize()
		sweeps = append(sweeps, SweepPair{
			BodyA:      bodies[i],
			BodyB:      bodies[j],
			Direction:  direction,
			Length:     8,
			ComputeMTD: i%2 == 0,
		})
	}

	reference, err := SweepAll(context.Background(), sweeps, workersConfig(1))
	if err != nil {
		t.Fatalf("SweepAll: %v", err)
	}

	for _, workers := range []int{1, 3, 8} {
		for run := 0; run < 3; run++ {
			results, err := SweepAll(context.Background(), sweeps, workersConfig(workers))
			if err != nil {
				t.Fatalf("workers %d run %d: SweepAll: %v", workers, run, err)
			}
			for i := range results {
				if results[i].Found != reference[i].Found || results[i].Hit != reference[i].Hit {
					t.Errorf("workers %d run %d: sweep %d: got %+v, want %+v", workers, run, i, results[i], reference[i])
				}
			}
		}
	}
}
