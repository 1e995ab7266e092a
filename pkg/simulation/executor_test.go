package simulation

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func analyzeStub(status int, body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/analyze" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
}

func TestHTTPExecutor_Success(t *testing.T) {
	srv := analyzeStub(http.StatusOK, `{"url":"https://shop.example.com/p/1","product":{"title":"Widget"}}`)
	defer srv.Close()

	exec := NewHTTPExecutor(srv.URL)
	latency, outcome, err := exec.Execute(context.Background(), "https://shop.example.com/p/1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeSuccess {
		t.Errorf("outcome = %s, want success", outcome)
	}
	if latency <= 0 {
		t.Errorf("latency = %v, want > 0", latency)
	}
}

func TestHTTPExecutor_Classification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		outcome Outcome
	}{
		{"rate limited by status", http.StatusTooManyRequests, `{"error":"RATE_LIMITED","message":"slow down"}`, OutcomeRateLimited},
		{"rate limited code wins over status", http.StatusServiceUnavailable, `{"error":"RATE_LIMITED"}`, OutcomeRateLimited},
		{"llm timeout code", http.StatusGatewayTimeout, `{"error":"LLM_TIMEOUT"}`, OutcomeTimeout},
		{"scraping failed", http.StatusBadGateway, `{"error":"SCRAPING_FAILED"}`, OutcomeUpstreamFailure},
		{"plain 500", http.StatusInternalServerError, `{"error":"internal_server_error"}`, OutcomeUpstreamFailure},
		{"client error", http.StatusBadRequest, `{"error":"INVALID_URL"}`, OutcomeClientError},
		{"not found", http.StatusNotFound, `{"error":"not_found"}`, OutcomeClientError},
		{"garbled 500 body", http.StatusInternalServerError, `not json`, OutcomeUpstreamFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := analyzeStub(tt.status, tt.body)
			defer srv.Close()

			exec := NewHTTPExecutor(srv.URL)
			_, outcome, err := exec.Execute(context.Background(), "https://shop.example.com/p/1")
			if outcome != tt.outcome {
				t.Errorf("outcome = %s, want %s", outcome, tt.outcome)
			}
			if err == nil {
				t.Error("expected a classification error for failed request")
			}
		})
	}
}

func TestHTTPExecutor_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	exec := NewHTTPExecutor(srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, outcome, err := exec.Execute(ctx, "https://shop.example.com/p/1")
	if outcome != OutcomeTimeout {
		t.Errorf("outcome = %s, want timeout", outcome)
	}
	if err == nil {
		t.Error("expected timeout error")
	}
}

func TestHTTPExecutor_ConnectionRefused(t *testing.T) {
	// Grab an address that refuses connections.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	exec := NewHTTPExecutor(srv.URL)
	_, outcome, err := exec.Execute(context.Background(), "https://shop.example.com/p/1")
	if outcome != OutcomeUpstreamFailure {
		t.Errorf("outcome = %s, want upstream_failure", outcome)
	}
	if err == nil {
		t.Error("expected network error")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		status  int
		code    string
		outcome Outcome
	}{
		{200, "RATE_LIMITED", OutcomeRateLimited},
		{500, "LLM_TIMEOUT", OutcomeTimeout},
		{429, "", OutcomeRateLimited},
		{504, "", OutcomeTimeout},
		{503, "", OutcomeUpstreamFailure},
		{422, "", OutcomeClientError},
	}
	for _, tt := range tests {
		if got := classify(tt.status, tt.code); got != tt.outcome {
			t.Errorf("classify(%d, %q) = %s, want %s", tt.status, tt.code, got, tt.outcome)
		}
	}
}
