package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kpujjigit/productpulse/pkg/analysis"
)

// fastBackoff keeps retry tests quick.
type fastBackoff struct{}

func (fastBackoff) Next(attempt int) time.Duration { return time.Millisecond }

func newTestClient(srv *httptest.Server) *Client {
	c := NewClient(srv.URL)
	c.SetBackoff(fastBackoff{}, 3)
	return c
}

func TestAnalyzeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/analyze" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req struct {
			URL string `json:"url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		result := analysis.Result{
			URL:     req.URL,
			Product: analysis.Product{Title: "Widget", Price: 19.99},
			Model:   "pulse-extract-1",
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
	}))
	defer srv.Close()

	result, err := newTestClient(srv).Analyze(context.Background(), "https://shop.example.com/p/1")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if result.Product.Title != "Widget" {
		t.Errorf("expected Widget, got %q", result.Product.Title)
	}
}

func TestAnalyzeErrorCodePreserved(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusGatewayTimeout)
		json.NewEncoder(w).Encode(map[string]string{
			"error":   analysis.CodeLLMTimeout,
			"message": "language model timed out",
		})
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Analyze(context.Background(), "https://shop.example.com/p/1")
	if err == nil {
		t.Fatal("expected error")
	}

	var aerr *analysis.Error
	if !errors.As(err, &aerr) {
		t.Fatalf("expected *analysis.Error, got %T: %v", err, err)
	}
	if aerr.Code != analysis.CodeLLMTimeout {
		t.Errorf("expected code %s, got %s", analysis.CodeLLMTimeout, aerr.Code)
	}
}

func TestStartSimulation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/simulation/start" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req struct {
			Sessions int `json:"sessions"`
			DelayMs  int `json:"delay_ms"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(StartResult{
			Status:   "started",
			ID:       "run-1",
			Sessions: req.Sessions,
			DelayMs:  req.DelayMs,
		})
	}))
	defer srv.Close()

	result, err := newTestClient(srv).StartSimulation(context.Background(), 10, 500)
	if err != nil {
		t.Fatalf("StartSimulation failed: %v", err)
	}
	if result.ID != "run-1" || result.Sessions != 10 || result.DelayMs != 500 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestStartSimulationConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"error": "simulation_already_running"})
	}))
	defer srv.Close()

	_, err := newTestClient(srv).StartSimulation(context.Background(), 10, 500)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestStopSimulation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/simulation/stop" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"stopped","statistics":{"total_requests":42,"successful_requests":40,"failed_requests":2,"avg_response_time_ms":12.5}}`))
	}))
	defer srv.Close()

	snap, err := newTestClient(srv).StopSimulation(context.Background())
	if err != nil {
		t.Fatalf("StopSimulation failed: %v", err)
	}
	if snap.TotalRequests != 42 || snap.AvgResponseTimeMs != 12.5 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
}

func TestGetStatusRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"is_running":true,"progress":{"completed":1,"failed":0,"total":5}}`))
	}))
	defer srv.Close()

	status, err := newTestClient(srv).GetStatus(context.Background())
	if err != nil {
		t.Fatalf("GetStatus failed: %v", err)
	}
	if !status.IsRunning {
		t.Error("expected running status")
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("expected 3 calls, got %d", got)
	}
}

func TestGetStatusGivesUpAfterRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).GetStatus(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	// maxRetries=3 means 4 total attempts
	if got := atomic.LoadInt32(&calls); got != 4 {
		t.Errorf("expected 4 calls, got %d", got)
	}
}

func TestGetRuns(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "5" {
			t.Errorf("expected limit=5, got %s", r.URL.Query().Get("limit"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"runs":[{"id":"run-2"},{"id":"run-1"}]}`))
	}))
	defer srv.Close()

	runs, err := newTestClient(srv).GetRuns(context.Background(), 5)
	if err != nil {
		t.Fatalf("GetRuns failed: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-2" {
		t.Errorf("unexpected runs: %+v", runs)
	}
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	if err := newTestClient(srv).Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestPingUnreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1")
	c.SetBackoff(fastBackoff{}, 1)

	if err := c.Ping(context.Background()); err == nil {
		t.Error("expected error for unreachable daemon")
	}
}
