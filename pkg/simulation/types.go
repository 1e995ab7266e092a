package simulation

import (
	"errors"
	"time"
)

// Errors surfaced by the orchestrator's control operations.
var (
	ErrAlreadyRunning   = errors.New("simulation: already running")
	ErrNotRunning       = errors.New("simulation: not running")
	ErrInvalidParameter = errors.New("simulation: invalid parameter")
)

// Parameter bounds enforced by Start.
const (
	MinSessions = 1
	MaxSessions = 1000
	MinDelayMs  = 100
	MaxDelayMs  = 10000
)

// Outcome classifies the result of one simulated analysis request.
type Outcome string

const (
	OutcomeSuccess         Outcome = "success"
	OutcomeTimeout         Outcome = "timeout"
	OutcomeRateLimited     Outcome = "rate_limited"
	OutcomeUpstreamFailure Outcome = "upstream_failure"
	OutcomeClientError     Outcome = "client_error"
	// OutcomeUnknown covers failures outside the classified taxonomy,
	// including recovered panics at the session boundary.
	OutcomeUnknown Outcome = "unknown_error"
)

// SessionOutcome is produced by RunSession when a session ends.
// Completed=true means every planned request succeeded. Completed=false
// with a non-empty FailureKind means the session gave up on a failed
// request. Completed=false with an empty FailureKind means the session
// was stopped cooperatively before finishing; such sessions count toward
// neither completed nor failed session totals.
type SessionOutcome struct {
	Index          int     `json:"session_index"`
	Behavior       string  `json:"behavior"`
	RequestsIssued int     `json:"requests_issued"`
	DurationMs     int64   `json:"duration_ms"`
	Completed      bool    `json:"completed"`
	FailureKind    Outcome `json:"failure_kind,omitempty"`
}

// Stopped reports whether the session ended because the run was cancelled.
func (o SessionOutcome) Stopped() bool {
	return !o.Completed && o.FailureKind == ""
}

// Snapshot is a consistent point-in-time view of a run's statistics.
type Snapshot struct {
	TotalRequests      int64             `json:"total_requests"`
	SuccessfulRequests int64             `json:"successful_requests"`
	FailedRequests     int64             `json:"failed_requests"`
	AvgResponseTimeMs  float64           `json:"avg_response_time_ms"`
	ErrorCounts        map[Outcome]int64 `json:"error_counts"`
}

// Progress summarizes session completion for status queries.
type Progress struct {
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Total     int `json:"total"`
}

// Status is the orchestrator's answer to a status query. It is safe to
// request at any time, including while no simulation exists.
type Status struct {
	IsRunning  bool      `json:"is_running"`
	ID         string    `json:"id,omitempty"`
	StartTime  time.Time `json:"start_time,omitempty"`
	Progress   Progress  `json:"progress"`
	Statistics Snapshot  `json:"statistics"`
}

// StartInfo identifies a freshly started simulation.
type StartInfo struct {
	ID        string    `json:"id"`
	StartTime time.Time `json:"start_time"`
}

// RunRecord describes one finished (stopped) simulation run for
// persistence. The orchestrator hands it to a Recorder after Stop.
type RunRecord struct {
	ID           string    `json:"id"`
	StartedAt    time.Time `json:"started_at"`
	EndedAt      time.Time `json:"ended_at"`
	SessionCount int       `json:"session_count"`
	Progress     Progress  `json:"progress"`
	Statistics   Snapshot  `json:"statistics"`
}
