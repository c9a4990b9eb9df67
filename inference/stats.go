package inference

import (
	"sync"
	"time"
)

// Stats accumulates pipeline outcomes and engine latencies. It is safe for
// concurrent use.
//
// Several pipelines may share one Stats.
type Stats struct {
	mu         sync.RWMutex
	runs       int64
	successes  int64
	detections int64
	failures   map[FaultKind]int64
	calls      int64
	totalTime  time.Duration
	minTime    time.Duration
	maxTime    time.Duration
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Runs          int64               `json:"runs"`
	Successes     int64               `json:"successes"`
	Detections    int64               `json:"detections"`
	Failures      map[FaultKind]int64 `json:"failures"`
	EngineCalls   int64               `json:"engine_calls"`
	TotalTimeMs   float64             `json:"total_time_ms"`
	MinTimeMs     float64             `json:"min_time_ms"`
	MaxTimeMs     float64             `json:"max_time_ms"`
	AverageTimeMs float64             `json:"average_time_ms"`
	ThroughputFPS float64             `json:"throughput_fps"`
}

// NewStats creates an empty Stats.
func NewStats() *Stats {
	return &Stats{failures: make(map[FaultKind]int64)}
}

// recordEngine adds one timed engine call.
func (s *Stats) recordEngine(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	s.totalTime += d
	if s.minTime == 0 || d < s.minTime {
		s.minTime = d
	}
	if d > s.maxTime {
		s.maxTime = d
	}
}

// recordSuccess counts a successful invocation.
func (s *Stats) recordSuccess(detections int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs++
	s.successes++
	s.detections += int64(detections)
}

// recordFailure counts a failed invocation.
func (s *Stats) recordFailure(kind FaultKind) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failures == nil {
		s.failures = make(map[FaultKind]int64)
	}
	s.runs++
	s.failures[kind]++
}

// Snapshot returns the current counters and derived averages.
//
// Returns:
//   - StatsSnapshot: The counters. Average and throughput are computed over
//     timed engine calls and are zero before the first call.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	failures := make(map[FaultKind]int64, len(s.failures))
	for k, v := range s.failures {
		failures[k] = v
	}

	snap := StatsSnapshot{
		Runs:        s.runs,
		Successes:   s.successes,
		Detections:  s.detections,
		Failures:    failures,
		EngineCalls: s.calls,
		TotalTimeMs: ms(s.totalTime),
		MinTimeMs:   ms(s.minTime),
		MaxTimeMs:   ms(s.maxTime),
	}
	if s.calls > 0 && s.totalTime > 0 {
		snap.AverageTimeMs = snap.TotalTimeMs / float64(s.calls)
		snap.ThroughputFPS = 1000.0 / snap.AverageTimeMs
	}
	return snap
}

// Reset clears all counters.
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs, s.successes, s.detections, s.calls = 0, 0, 0, 0
	s.failures = make(map[FaultKind]int64)
	s.totalTime, s.minTime, s.maxTime = 0, 0, 0
}

func ms(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}
