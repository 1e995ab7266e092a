package simulation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// DefaultRequestTimeout bounds one simulated analysis request.
const DefaultRequestTimeout = 30 * time.Second

// Executor issues one simulated user request and classifies the result.
// It is stateless; the caller records the outcome into Stats.
type Executor interface {
	Execute(ctx context.Context, url string) (latencyMs float64, outcome Outcome, err error)
}

// HTTPExecutor calls the product-analysis endpoint over HTTP.
type HTTPExecutor struct {
	endpoint string
	client   *http.Client
}

// NewHTTPExecutor creates an executor targeting the given base URL
// (e.g. "http://127.0.0.1:8090").
func NewHTTPExecutor(endpoint string) *HTTPExecutor {
	return &HTTPExecutor{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: DefaultRequestTimeout,
		},
	}
}

// errorEnvelope is the analyze endpoint's failure payload; Error carries
// the machine-readable code (e.g. RATE_LIMITED).
type errorEnvelope struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Execute sends one analysis request and maps the result into exactly
// one Outcome. Transport timeouts become OutcomeTimeout, other network
// errors OutcomeUpstreamFailure.
func (e *HTTPExecutor) Execute(ctx context.Context, url string) (float64, Outcome, error) {
	body, err := json.Marshal(map[string]string{"url": url})
	if err != nil {
		return 0, OutcomeUnknown, fmt.Errorf("executor: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint+"/v1/analyze", bytes.NewReader(body))
	if err != nil {
		return 0, OutcomeUnknown, fmt.Errorf("executor: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := e.client.Do(req)
	latencyMs := float64(time.Since(start)) / float64(time.Millisecond)
	if err != nil {
		if isTimeout(err) {
			return latencyMs, OutcomeTimeout, fmt.Errorf("executor: request timed out: %w", err)
		}
		return latencyMs, OutcomeUpstreamFailure, fmt.Errorf("executor: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return latencyMs, OutcomeSuccess, nil
	}

	// Best effort: a garbled body still classifies by status alone.
	var envelope errorEnvelope
	_ = json.NewDecoder(resp.Body).Decode(&envelope)

	outcome := classify(resp.StatusCode, envelope.Error)
	return latencyMs, outcome, fmt.Errorf("executor: analysis failed: status=%d code=%s", resp.StatusCode, envelope.Error)
}

// classify maps an HTTP status and a machine-readable error code into
// the outcome taxonomy. The code wins over the status when it names a
// more specific failure.
func classify(status int, code string) Outcome {
	switch code {
	case "RATE_LIMITED":
		return OutcomeRateLimited
	case "LLM_TIMEOUT":
		return OutcomeTimeout
	case "SCRAPING_FAILED":
		return OutcomeUpstreamFailure
	}
	switch {
	case status == http.StatusTooManyRequests:
		return OutcomeRateLimited
	case status == http.StatusGatewayTimeout:
		return OutcomeTimeout
	case status >= 500:
		return OutcomeUpstreamFailure
	case status >= 400:
		return OutcomeClientError
	default:
		return OutcomeUpstreamFailure
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
