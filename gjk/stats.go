package gjk

import "go.uber.org/atomic"

// Stats counts queries and degraded results. It is safe for concurrent use,
// and every method is a no-op on a nil *Stats.
type Stats struct {
	queries       atomic.Int64
	gjkCapped     atomic.Int64
	epaCapped     atomic.Int64
	epaDegenerate atomic.Int64
	sweepCapped   atomic.Int64
}

// StatsSnapshot is a point-in-time copy of the counters.
type StatsSnapshot struct {
	Queries       int64
	GJKCapped     int64
	EPACapped     int64
	EPADegenerate int64
	SweepCapped   int64
}

func (s *Stats) RecordQuery() {
	if s != nil {
		s.queries.Inc()
	}
}

func (s *Stats) RecordGJKCapped() {
	if s != nil {
		s.gjkCapped.Inc()
	}
}

func (s *Stats) RecordEPACapped() {
	if s != nil {
		s.epaCapped.Inc()
	}
}

func (s *Stats) RecordEPADegenerate() {
	if s != nil {
		s.epaDegenerate.Inc()
	}
}

func (s *Stats) RecordSweepCapped() {
	if s != nil {
		s.sweepCapped.Inc()
	}
}

func (s *Stats) Snapshot() StatsSnapshot {
	if s == nil {
		return StatsSnapshot{}
	}
	return StatsSnapshot{
		Queries:       s.queries.Load(),
		GJKCapped:     s.gjkCapped.Load(),
		EPACapped:     s.epaCapped.Load(),
		EPADegenerate: s.epaDegenerate.Load(),
		SweepCapped:   s.sweepCapped.Load(),
	}
}
