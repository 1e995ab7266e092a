package simulation

import (
	"context"
	"math/rand"
	"time"
)

const (
	// DefaultRetryBackoff is the fixed wait before retrying a failed
	// request when the behavior's error tolerance allows it.
	DefaultRetryBackoff = 1 * time.Second
	// DefaultMaxAttempts bounds retries of one logical request. The
	// loop is capped explicitly so a permissive tolerance cannot retry
	// forever.
	DefaultMaxAttempts = 5
)

// SessionConfig carries the collaborators one session needs. Stats and
// Sink are shared across all sessions of a run; everything else is
// read-only.
type SessionConfig struct {
	Executor     Executor
	Catalog      *Catalog
	URLs         []string
	Stats        *Stats
	Sink         Sink
	RetryBackoff time.Duration
	MaxAttempts  int
}

func (c *SessionConfig) withDefaults() SessionConfig {
	out := *c
	if out.Sink == nil {
		out.Sink = NopSink()
	}
	if out.RetryBackoff <= 0 {
		out.RetryBackoff = DefaultRetryBackoff
	}
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = DefaultMaxAttempts
	}
	return out
}

// RunSession drives one simulated user: it samples a behavior, draws a
// session length, then issues sequential requests with think-time
// pauses, retrying failures according to the behavior's error
// tolerance. It observes ctx at every loop and pause boundary and exits
// promptly when the run is stopped.
//
// rng must be owned by this session; *rand.Rand is not safe for
// concurrent use.
func RunSession(ctx context.Context, cfg SessionConfig, index int, rng *rand.Rand) SessionOutcome {
	cfg = cfg.withDefaults()
	start := time.Now()

	profile := cfg.Catalog.Select(rng)
	length := profile.SessionLength.draw(rng)

	out := SessionOutcome{Index: index, Behavior: profile.Name}
	finish := func() SessionOutcome {
		out.DurationMs = time.Since(start).Milliseconds()
		return out
	}

	cfg.Sink.Emit("session_started", map[string]any{
		"session_index": index,
		"behavior":      profile.Name,
		"planned":       length,
	})

	for i := 0; i < length; i++ {
		if ctx.Err() != nil {
			return finish()
		}

		url := cfg.URLs[rng.Intn(len(cfg.URLs))]

		failureKind, stopped := runRequest(ctx, cfg, profile, url, rng, &out)
		if stopped {
			return finish()
		}
		if failureKind != "" {
			out.FailureKind = failureKind
			cfg.Stats.RecordSession(false)
			SimSessionsTotal.WithLabelValues("failed").Inc()
			cfg.Sink.Emit("session_failed", map[string]any{
				"session_index": index,
				"behavior":      profile.Name,
				"failure_kind":  string(failureKind),
				"requests":      out.RequestsIssued,
			})
			return finish()
		}

		// Think before the next request; the last request needs no pause.
		if i < length-1 {
			think := time.Duration(profile.ThinkTimeMs.draw(rng)) * time.Millisecond
			if !sleepCtx(ctx, think) {
				return finish()
			}
		}
	}

	out.Completed = true
	cfg.Stats.RecordSession(true)
	SimSessionsTotal.WithLabelValues("completed").Inc()
	cfg.Sink.Emit("session_completed", map[string]any{
		"session_index": index,
		"behavior":      profile.Name,
		"requests":      out.RequestsIssued,
	})
	return finish()
}

// runRequest performs one logical request including its retries.
// It returns the failure kind that ended the session ("" on success)
// and whether the session was stopped mid-request.
func runRequest(ctx context.Context, cfg SessionConfig, profile BehaviorProfile, url string, rng *rand.Rand, out *SessionOutcome) (Outcome, bool) {
	for attempt := 1; ; attempt++ {
		latencyMs, outcome, err := cfg.Executor.Execute(ctx, url)

		// A failure that comes back after the run context is cancelled
		// is the stop itself, not an upstream condition; it must not
		// enter the counters.
		if outcome != OutcomeSuccess && ctx.Err() != nil {
			return "", true
		}

		cfg.Stats.RecordRequest(latencyMs, outcome)
		out.RequestsIssued++
		SimRequestsTotal.WithLabelValues(profile.Name, string(outcome)).Inc()
		SimRequestDuration.Observe(latencyMs / 1000)

		attrs := map[string]any{
			"session_index": out.Index,
			"behavior":      profile.Name,
			"url":           url,
			"latency_ms":    latencyMs,
			"outcome":       string(outcome),
			"attempt":       attempt,
		}
		if err != nil {
			attrs["error"] = err.Error()
		}
		cfg.Sink.Emit("request_finished", attrs)

		if outcome == OutcomeSuccess {
			return "", false
		}

		// The tolerance draw decides retry vs abandon; the attempt cap
		// keeps a tolerant profile from retrying without bound.
		if rng.Float64() >= profile.ErrorTolerance || attempt >= cfg.MaxAttempts {
			return outcome, false
		}

		cfg.Sink.Emit("request_retrying", map[string]any{
			"session_index": out.Index,
			"behavior":      profile.Name,
			"url":           url,
			"attempt":       attempt,
		})
		if !sleepCtx(ctx, cfg.RetryBackoff) {
			return "", true
		}
	}
}

// sleepCtx sleeps for d or until ctx is done. It reports whether the
// full duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
