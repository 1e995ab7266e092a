package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kpujjigit/productpulse/pkg/analysis"
	"github.com/kpujjigit/productpulse/pkg/simulation"
)

// Context keys
type contextKey string

const traceIDKey contextKey = "trace_id"

// Interfaces for dependencies to enable mocking

type SimulationController interface {
	Start(sessionCount, delayMs int) (simulation.StartInfo, error)
	Stop(ctx context.Context) (simulation.Snapshot, error)
	Status() simulation.Status
}

type Analyzer interface {
	Analyze(ctx context.Context, url string) (*analysis.Result, error)
}

type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]simulation.RunRecord, error)
}

// Server encapsulates the HTTP API server
type Server struct {
	sim      SimulationController
	analyzer Analyzer
	runs     RunLister
	server   *http.Server
}

// NewServer creates a new API server instance. runs may be nil when run
// persistence is disabled; /v1/runs then returns 503.
func NewServer(sim SimulationController, analyzer Analyzer, runs RunLister, addr string) *Server {
	s := &Server{
		sim:      sim,
		analyzer: analyzer,
		runs:     runs,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/health", handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/v1/analyze", s.handleAnalyze)
	mux.HandleFunc("/v1/simulation/start", s.handleSimulationStart)
	mux.HandleFunc("/v1/simulation/stop", s.handleSimulationStop)
	mux.HandleFunc("/v1/simulation/status", s.handleSimulationStatus)
	mux.HandleFunc("/v1/runs", s.handleRuns)

	// Middleware: Logging, Panic Recovery, Security Headers
	handler := withLogging(withRecovery(withSecureHeaders(mux)))

	if addr == "" {
		addr = ":8090"
	}

	s.server = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	return s
}

// Handler exposes the full middleware-wrapped handler for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start runs the HTTP server (blocking)
func (s *Server) Start() error {
	fmt.Printf(`{"level":"info","msg":"server_starting","addr":"%s"}`+"\n", s.server.Addr)
	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	fmt.Println(`{"level":"info","msg":"server_stopping"}`)
	return s.server.Shutdown(ctx)
}

// handleAnalyze fetches and analyzes a single product page.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid_json_body"}`, http.StatusBadRequest)
		return
	}
	if req.URL == "" {
		http.Error(w, `{"error":"missing_url"}`, http.StatusBadRequest)
		return
	}

	result, err := s.analyzer.Analyze(r.Context(), req.URL)
	if err != nil {
		writeAnalysisError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, result)

	fmt.Printf(`{"level":"info","msg":"analysis_completed","trace_id":"%s","url":"%s","cached":%t}`+"\n",
		getTraceID(r.Context()), req.URL, result.Cached)
}

// handleSimulationStart launches a traffic simulation.
func (s *Server) handleSimulationStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	var req StartSimulationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid_json_body"}`, http.StatusBadRequest)
		return
	}

	info, err := s.sim.Start(req.Sessions, req.DelayMs)
	if err != nil {
		switch {
		case errors.Is(err, simulation.ErrAlreadyRunning):
			writeJSON(w, r, http.StatusConflict, ErrorResponse{Error: "simulation_already_running"})
		case errors.Is(err, simulation.ErrInvalidParameter):
			writeJSON(w, r, http.StatusBadRequest, ErrorResponse{Error: "invalid_parameter", Message: err.Error()})
		default:
			fmt.Printf(`{"level":"error","msg":"failed_to_start_simulation","trace_id":"%s","error":"%v"}`+"\n", getTraceID(r.Context()), err)
			writeJSON(w, r, http.StatusInternalServerError, ErrorResponse{Error: "internal_server_error"})
		}
		return
	}

	resp := StartSimulationResponse{
		Status:    "started",
		ID:        info.ID,
		StartTime: info.StartTime.Format(time.RFC3339),
		Sessions:  req.Sessions,
		DelayMs:   req.DelayMs,
	}
	writeJSON(w, r, http.StatusOK, resp)

	fmt.Printf(`{"level":"info","msg":"simulation_started","trace_id":"%s","run_id":"%s","sessions":%d,"delay_ms":%d}`+"\n",
		getTraceID(r.Context()), info.ID, req.Sessions, req.DelayMs)
}

// handleSimulationStop stops the active simulation and returns its
// final statistics. Blocks until in-flight sessions have drained.
func (s *Server) handleSimulationStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	snapshot, err := s.sim.Stop(r.Context())
	if err != nil {
		if errors.Is(err, simulation.ErrNotRunning) {
			writeJSON(w, r, http.StatusConflict, ErrorResponse{Error: "simulation_not_running"})
			return
		}
		fmt.Printf(`{"level":"error","msg":"failed_to_stop_simulation","trace_id":"%s","error":"%v"}`+"\n", getTraceID(r.Context()), err)
		writeJSON(w, r, http.StatusInternalServerError, ErrorResponse{Error: "internal_server_error"})
		return
	}

	writeJSON(w, r, http.StatusOK, StopSimulationResponse{Status: "stopped", Statistics: snapshot})

	fmt.Printf(`{"level":"info","msg":"simulation_stopped","trace_id":"%s","total_requests":%d}`+"\n",
		getTraceID(r.Context()), snapshot.TotalRequests)
}

// handleSimulationStatus reports live progress and statistics.
func (s *Server) handleSimulationStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, r, http.StatusOK, s.sim.Status())
}

// handleRuns lists persisted simulation runs, newest first.
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	if s.runs == nil {
		writeJSON(w, r, http.StatusServiceUnavailable, ErrorResponse{Error: "run_history_not_available"})
		return
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil && val > 0 {
			limit = val
		}
	}

	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		fmt.Printf(`{"level":"error","msg":"failed_to_list_runs","trace_id":"%s","error":"%v"}`+"\n", getTraceID(r.Context()), err)
		writeJSON(w, r, http.StatusInternalServerError, ErrorResponse{Error: "internal_server_error"})
		return
	}
	if runs == nil {
		runs = []simulation.RunRecord{}
	}

	writeJSON(w, r, http.StatusOK, RunsResponse{Runs: runs})
}

// handleHealth returns simple status
func handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// writeAnalysisError maps analysis errors onto HTTP statuses using the
// error's own code. Unknown errors become 500.
func writeAnalysisError(w http.ResponseWriter, r *http.Request, err error) {
	var aerr *analysis.Error
	if errors.As(err, &aerr) {
		writeJSON(w, r, aerr.HTTPStatus(), ErrorResponse{Error: aerr.Code, Message: aerr.Message})
		return
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		writeJSON(w, r, http.StatusRequestTimeout, ErrorResponse{Error: "request_cancelled"})
		return
	}
	fmt.Printf(`{"level":"error","msg":"analysis_failed","trace_id":"%s","error":"%v"}`+"\n", getTraceID(r.Context()), err)
	writeJSON(w, r, http.StatusInternalServerError, ErrorResponse{Error: "internal_server_error"})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		fmt.Printf(`{"level":"error","msg":"failed_to_encode_response","trace_id":"%s","error":"%v"}`+"\n", getTraceID(r.Context()), err)
	}
}

// Middleware: Panic Recovery
func withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				fmt.Printf(`{"level":"error","msg":"panic_recovered","error":"%v","path":"%s"}`+"\n", err, r.URL.Path)
				http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Middleware: Request Logging
func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" {
			traceID = generateTraceID()
		}

		ctx := context.WithValue(r.Context(), traceIDKey, traceID)
		r = r.WithContext(ctx)

		// Wrap writer to capture status code
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		w.Header().Set("X-Trace-ID", traceID)

		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		fmt.Printf(`{"level":"info","msg":"http_request","trace_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`+"\n",
			traceID, r.Method, r.URL.Path, ww.status, duration.Milliseconds())
	})
}

// Middleware: Secure Headers
func withSecureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")

		next.ServeHTTP(w, r)
	})
}

func generateTraceID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// Fallback if random fails (unlikely)
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

func getTraceID(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return ""
}

// statusWriter captures HTTP status code
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
