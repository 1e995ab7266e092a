package simulation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingSink struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingSink) Emit(event string, attrs map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingSink) has(event string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == event {
			return true
		}
	}
	return false
}

type fakeRecorder struct {
	mu   sync.Mutex
	runs []RunRecord
}

func (f *fakeRecorder) RecordRun(ctx context.Context, run RunRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, run)
	return nil
}

func newTestOrchestrator(t *testing.T, exec Executor) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(Config{
		Executor:     exec,
		Catalog:      singleProfileCatalog(t, Range{Min: 1, Max: 2}, 0),
		URLs:         []string{"https://shop.example.com/p/1"},
		Seed:         99,
		RetryBackoff: time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}
	return o
}

func TestNewOrchestrator_RequiresExecutor(t *testing.T) {
	if _, err := NewOrchestrator(Config{}); err == nil {
		t.Error("expected error for missing executor")
	}
}

func TestOrchestrator_StartValidation(t *testing.T) {
	o := newTestOrchestrator(t, &stubExecutor{outcome: OutcomeSuccess})

	tests := []struct {
		sessions int
		delayMs  int
	}{
		{0, 100},
		{-1, 100},
		{1001, 100},
		{1, 99},
		{1, 10001},
	}
	for _, tt := range tests {
		if _, err := o.Start(tt.sessions, tt.delayMs); !errors.Is(err, ErrInvalidParameter) {
			t.Errorf("Start(%d, %d): err = %v, want ErrInvalidParameter", tt.sessions, tt.delayMs, err)
		}
	}

	// Invalid starts must leave the orchestrator idle.
	if o.Status().IsRunning {
		t.Error("orchestrator should still be idle after rejected starts")
	}
}

func TestOrchestrator_StartConflict(t *testing.T) {
	o := newTestOrchestrator(t, &stubExecutor{outcome: OutcomeSuccess})

	info, err := o.Start(2, 100)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer o.Stop(context.Background())

	if _, err := o.Start(2, 100); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start: err = %v, want ErrAlreadyRunning", err)
	}

	// The conflicting start must not disturb the running simulation.
	status := o.Status()
	if !status.IsRunning || status.ID != info.ID {
		t.Errorf("status after conflict = %+v, want running id %s", status, info.ID)
	}
	if status.Progress.Total != 2 {
		t.Errorf("progress total = %d, want 2", status.Progress.Total)
	}
}

func TestOrchestrator_StopWhenIdle(t *testing.T) {
	o := newTestOrchestrator(t, &stubExecutor{outcome: OutcomeSuccess})
	if _, err := o.Stop(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Stop: err = %v, want ErrNotRunning", err)
	}
}

func TestOrchestrator_StatusWhenIdle(t *testing.T) {
	o := newTestOrchestrator(t, &stubExecutor{outcome: OutcomeSuccess})
	status := o.Status()
	if status.IsRunning {
		t.Error("idle orchestrator reports running")
	}
	if status.Progress.Total != 0 || status.Statistics.TotalRequests != 0 {
		t.Errorf("idle status not empty: %+v", status)
	}
}

func TestOrchestrator_FullRun(t *testing.T) {
	exec := &stubExecutor{outcome: OutcomeSuccess, latency: 50}
	sink := &recordingSink{}
	recorder := &fakeRecorder{}
	o, err := NewOrchestrator(Config{
		Executor: exec,
		Catalog:  singleProfileCatalog(t, Range{Min: 1, Max: 2}, 0),
		URLs:     []string{"https://shop.example.com/p/1"},
		Sink:     sink,
		Recorder: recorder,
		Seed:     7,
	})
	if err != nil {
		t.Fatal(err)
	}

	info, err := o.Start(3, 100)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if info.ID == "" {
		t.Error("Start returned empty id")
	}

	status := o.Status()
	if !status.IsRunning {
		t.Error("Status right after Start must report running")
	}
	if status.Progress.Total != 3 {
		t.Errorf("progress total = %d, want 3", status.Progress.Total)
	}

	// Wait for all sessions to complete, checking the counter invariant
	// at every snapshot along the way.
	deadline := time.After(10 * time.Second)
	for {
		status = o.Status()
		snap := status.Statistics
		if snap.SuccessfulRequests+snap.FailedRequests != snap.TotalRequests {
			t.Fatalf("invariant violated: %d + %d != %d",
				snap.SuccessfulRequests, snap.FailedRequests, snap.TotalRequests)
		}
		if status.Progress.Completed+status.Progress.Failed > status.Progress.Total {
			t.Fatalf("session counts exceed total: %+v", status.Progress)
		}
		if status.Progress.Completed == 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("sessions did not drain, status: %+v", status)
		case <-time.After(10 * time.Millisecond):
		}
	}

	snapshot, err := o.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if snapshot.TotalRequests < 3 {
		t.Errorf("total requests = %d, want >= 3 (one per session)", snapshot.TotalRequests)
	}
	if snapshot.FailedRequests != 0 {
		t.Errorf("failed requests = %d, want 0", snapshot.FailedRequests)
	}

	if o.Status().IsRunning {
		t.Error("orchestrator still running after Stop")
	}

	// A fresh run must be allowed after Stop.
	if _, err := o.Start(1, 100); err != nil {
		t.Fatalf("restart after Stop: %v", err)
	}
	if _, err := o.Stop(context.Background()); err != nil {
		t.Fatalf("second Stop: %v", err)
	}

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if len(recorder.runs) != 2 {
		t.Fatalf("recorded runs = %d, want 2", len(recorder.runs))
	}
	first := recorder.runs[0]
	if first.ID != info.ID || first.SessionCount != 3 || first.Progress.Completed != 3 {
		t.Errorf("recorded run = %+v", first)
	}

	for _, event := range []string{"simulation_started", "session_started", "request_finished", "session_completed", "simulation_stopped"} {
		if !sink.has(event) {
			t.Errorf("telemetry sink missing event %q", event)
		}
	}
}

func TestOrchestrator_StopCancelsInFlightSessions(t *testing.T) {
	// Sessions think for a long time; Stop must still return promptly
	// and no statistics mutation may happen after its snapshot.
	exec := &stubExecutor{outcome: OutcomeSuccess, latency: 1}
	catalog, err := NewCatalog([]BehaviorProfile{{
		Name:          "Slow Thinker",
		Weight:        1,
		SessionLength: Range{Min: 50, Max: 50},
		ThinkTimeMs:   Range{Min: 5000, Max: 5000},
	}})
	if err != nil {
		t.Fatal(err)
	}
	o, err := NewOrchestrator(Config{
		Executor: exec,
		Catalog:  catalog,
		URLs:     []string{"https://shop.example.com/p/1"},
		Seed:     3,
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := o.Start(5, 100); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Let at least one request land first.
	time.Sleep(50 * time.Millisecond)

	stopDone := make(chan Snapshot, 1)
	go func() {
		snap, err := o.Stop(context.Background())
		if err != nil {
			t.Errorf("Stop: %v", err)
		}
		stopDone <- snap
	}()

	var snapshot Snapshot
	select {
	case snapshot = <-stopDone:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return after cancelling sessions")
	}

	calls := exec.callCount()
	if int64(calls) != snapshot.TotalRequests {
		t.Errorf("snapshot total %d != executed calls %d (stats mutated after stop?)",
			snapshot.TotalRequests, calls)
	}

	// No further requests may be issued once Stop returned.
	time.Sleep(100 * time.Millisecond)
	if after := exec.callCount(); after != calls {
		t.Errorf("executor called %d more times after Stop returned", after-calls)
	}

	if _, err := o.Stop(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Stop after Stop: err = %v, want ErrNotRunning", err)
	}
}
