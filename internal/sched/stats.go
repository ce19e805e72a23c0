package sched

import "math"

// Stats aggregates run-wide counters. Ready-time figures only change when a
// process terminates.
type Stats struct {
	Start        int64 // first tick of the simulation
	Runtime      int64 // current tick; the end tick once the run is over
	Instructions int
	Completed    int
	TotalReady   int64
	MaxReady     int64
	minReady     int64
}

func newStats(start int64) Stats {
	return Stats{Start: start, Runtime: start, minReady: math.MaxInt64}
}

func (s *Stats) fold(ready int64) {
	s.Completed++
	s.TotalReady += ready
	s.MaxReady = max(s.MaxReady, ready)
	s.minReady = min(s.minReady, ready)
}

// MinReady returns the smallest ready time of a terminated process, or 0
// when none terminated.
func (s Stats) MinReady() int64 {
	if s.Completed == 0 {
		return 0
	}
	return s.minReady
}

// AverageReady returns the mean ready time over terminated processes.
func (s Stats) AverageReady() float64 {
	if s.Completed == 0 {
		return 0
	}
	return float64(s.TotalReady) / float64(s.Completed)
}
