package simulation

import "sync"

// Stats accumulates per-request and per-session results for one run.
// Every in-flight session mutates it concurrently, so all access goes
// through a single mutex; Snapshot never shows a total without its
// matching success/failure increment.
type Stats struct {
	mu                 sync.Mutex
	totalRequests      int64
	successfulRequests int64
	failedRequests     int64
	responseTimesMs    []float64
	errorCounts        map[Outcome]int64
	completedSessions  int
	failedSessions     int
}

// NewStats returns an empty accumulator.
func NewStats() *Stats {
	return &Stats{errorCounts: make(map[Outcome]int64)}
}

// RecordRequest records one request result. Failed requests also bump
// the error-kind histogram.
func (s *Stats) RecordRequest(latencyMs float64, outcome Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalRequests++
	s.responseTimesMs = append(s.responseTimesMs, latencyMs)
	if outcome == OutcomeSuccess {
		s.successfulRequests++
		return
	}
	s.failedRequests++
	s.errorCounts[outcome]++
}

// RecordSession records a session reaching a terminal state.
func (s *Stats) RecordSession(completed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if completed {
		s.completedSessions++
	} else {
		s.failedSessions++
	}
}

// recordSessionPanic marks a session that died outside the classified
// taxonomy: a failed session with an unknown error kind.
func (s *Stats) recordSessionPanic() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failedSessions++
	s.errorCounts[OutcomeUnknown]++
}

// Sessions returns the completed and failed session counts.
func (s *Stats) Sessions() (completed, failed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completedSessions, s.failedSessions
}

// Snapshot returns an internally consistent view. The average response
// time is derived at query time and is 0 when no samples exist.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	avg := 0.0
	if len(s.responseTimesMs) > 0 {
		sum := 0.0
		for _, rt := range s.responseTimesMs {
			sum += rt
		}
		avg = sum / float64(len(s.responseTimesMs))
	}

	counts := make(map[Outcome]int64, len(s.errorCounts))
	for k, v := range s.errorCounts {
		counts[k] = v
	}

	return Snapshot{
		TotalRequests:      s.totalRequests,
		SuccessfulRequests: s.successfulRequests,
		FailedRequests:     s.failedRequests,
		AvgResponseTimeMs:  avg,
		ErrorCounts:        counts,
	}
}
