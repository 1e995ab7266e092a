package api

import "github.com/kpujjigit/productpulse/pkg/simulation"

// AnalyzeRequest is the body of POST /v1/analyze.
type AnalyzeRequest struct {
	URL string `json:"url"`
}

// ErrorResponse is the uniform error envelope for all endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// StartSimulationRequest is the body of POST /v1/simulation/start.
type StartSimulationRequest struct {
	Sessions int `json:"sessions"`
	DelayMs  int `json:"delay_ms"`
}

// StartSimulationResponse acknowledges a started run.
type StartSimulationResponse struct {
	Status    string `json:"status"`
	ID        string `json:"id"`
	StartTime string `json:"start_time"`
	Sessions  int    `json:"sessions"`
	DelayMs   int    `json:"delay_ms"`
}

// StopSimulationResponse carries the final statistics of a stopped run.
type StopSimulationResponse struct {
	Status     string              `json:"status"`
	Statistics simulation.Snapshot `json:"statistics"`
}

// RunsResponse wraps the run history listing.
type RunsResponse struct {
	Runs []simulation.RunRecord `json:"runs"`
}
