package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kpujjigit/productpulse/pkg/analysis"
	"github.com/kpujjigit/productpulse/pkg/simulation"
)

// Client is the productpulse SDK client.
type Client struct {
	endpoint   string
	http       *http.Client
	backoff    BackoffStrategy
	maxRetries int
}

// NewClient creates a new productpulse client.
// endpoint defaults to "http://127.0.0.1:8090" if empty.
func NewClient(endpoint string) *Client {
	if endpoint == "" {
		endpoint = "http://127.0.0.1:8090"
	}
	return &Client{
		endpoint: endpoint,
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
		backoff:    DefaultBackoff(),
		maxRetries: 3,
	}
}

// SetBackoff overrides the retry strategy used for idempotent reads.
func (c *Client) SetBackoff(b BackoffStrategy, maxRetries int) {
	c.backoff = b
	c.maxRetries = maxRetries
}

// Analyze requests an analysis of a single product URL. Analysis errors
// from the daemon come back as *analysis.Error with their original code.
func (c *Client) Analyze(ctx context.Context, url string) (*analysis.Result, error) {
	body, err := json.Marshal(map[string]string{"url": url})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint+"/v1/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("daemon unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}

	var result analysis.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}

// StartSimulation launches a traffic simulation on the daemon.
func (c *Client) StartSimulation(ctx context.Context, sessions, delayMs int) (StartResult, error) {
	body, err := json.Marshal(map[string]int{"sessions": sessions, "delay_ms": delayMs})
	if err != nil {
		return StartResult{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint+"/v1/simulation/start", bytes.NewReader(body))
	if err != nil {
		return StartResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return StartResult{}, fmt.Errorf("daemon unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return StartResult{}, decodeError(resp)
	}

	var result StartResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return StartResult{}, fmt.Errorf("failed to decode response: %w", err)
	}
	return result, nil
}

// StopSimulation stops the active simulation and returns its final
// statistics. The call blocks while the daemon drains sessions.
func (c *Client) StopSimulation(ctx context.Context) (simulation.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint+"/v1/simulation/stop", nil)
	if err != nil {
		return simulation.Snapshot{}, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return simulation.Snapshot{}, fmt.Errorf("daemon unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return simulation.Snapshot{}, decodeError(resp)
	}

	var body struct {
		Status     string              `json:"status"`
		Statistics simulation.Snapshot `json:"statistics"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return simulation.Snapshot{}, fmt.Errorf("failed to decode response: %w", err)
	}
	return body.Statistics, nil
}

// GetStatus fetches live simulation progress. Retries transient
// failures with exponential backoff.
func (c *Client) GetStatus(ctx context.Context) (simulation.Status, error) {
	var status simulation.Status
	err := c.getWithRetry(ctx, c.endpoint+"/v1/simulation/status", &status)
	return status, err
}

// GetRuns fetches persisted run history, newest first.
func (c *Client) GetRuns(ctx context.Context, limit int) ([]simulation.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var body struct {
		Runs []simulation.RunRecord `json:"runs"`
	}
	url := fmt.Sprintf("%s/v1/runs?limit=%d", c.endpoint, limit)
	if err := c.getWithRetry(ctx, url, &body); err != nil {
		return nil, err
	}
	return body.Runs, nil
}

// Ping checks the health of the daemon.
func (c *Client) Ping(ctx context.Context) error {
	var body struct {
		Status string `json:"status"`
	}
	if err := c.getWithRetry(ctx, c.endpoint+"/v1/health", &body); err != nil {
		return err
	}
	if body.Status != "ok" {
		return fmt.Errorf("unexpected health status: %s", body.Status)
	}
	return nil
}

// getWithRetry performs an idempotent GET, retrying network errors and
// 5xx responses. 4xx responses are returned immediately.
func (c *Client) getWithRetry(ctx context.Context, url string, out interface{}) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.backoff.Next(attempt - 1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
		if err != nil {
			return err
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			lastErr = fmt.Errorf("upstream error: status %d", resp.StatusCode)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			err := decodeError(resp)
			resp.Body.Close()
			return err
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("request failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

// decodeError turns an error response into a Go error. Analysis error
// codes are preserved as *analysis.Error so callers can match on them.
func decodeError(resp *http.Response) error {
	var envelope apiError
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil || envelope.Error == "" {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	switch envelope.Error {
	case analysis.CodeInvalidURL, analysis.CodeScrapingFailed, analysis.CodeLLMTimeout,
		analysis.CodeRateLimited, analysis.CodeAnalysisFailed:
		return &analysis.Error{Code: envelope.Error, Message: envelope.Message}
	}

	if envelope.Message != "" {
		return fmt.Errorf("%s: %s (status %d)", envelope.Error, envelope.Message, resp.StatusCode)
	}
	return fmt.Errorf("%s (status %d)", envelope.Error, resp.StatusCode)
}
