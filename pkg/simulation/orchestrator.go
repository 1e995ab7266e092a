package simulation

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Recorder persists a finished run. The orchestrator works identically
// with a nil recorder.
type Recorder interface {
	RecordRun(ctx context.Context, run RunRecord) error
}

// Config wires an orchestrator's collaborators. Executor and Catalog
// are required; everything else has working defaults.
type Config struct {
	Executor Executor
	Catalog  *Catalog
	URLs     []string
	Sink     Sink
	Recorder Recorder
	// Seed makes a run's random draws reproducible; 0 picks a
	// time-based seed per run.
	Seed         int64
	RetryBackoff time.Duration
	MaxAttempts  int
}

// Orchestrator owns the lifecycle of the single active simulation.
// At most one simulation runs at a time; Start conflicts otherwise.
// Control operations never block on session execution.
type Orchestrator struct {
	mu      sync.Mutex
	cfg     Config
	current *run
}

// run is the orchestrator's private view of one simulation.
type run struct {
	id           string
	startTime    time.Time
	sessionCount int
	delay        time.Duration
	stats        *Stats
	cancel       context.CancelFunc
	done         chan struct{} // closed once every launched session returned
	stopping     bool
}

// NewOrchestrator validates the config and returns an idle orchestrator.
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if cfg.Executor == nil {
		return nil, fmt.Errorf("simulation: executor is required")
	}
	if cfg.Catalog == nil {
		cfg.Catalog = DefaultCatalog()
	}
	if len(cfg.URLs) == 0 {
		cfg.URLs = DefaultSampleURLs()
	}
	if cfg.Sink == nil {
		cfg.Sink = NopSink()
	}
	return &Orchestrator{cfg: cfg}, nil
}

// DefaultSampleURLs is the built-in pool of candidate product pages the
// session runners draw from.
func DefaultSampleURLs() []string {
	return []string{
		"https://shop.example.com/products/wireless-earbuds-pro",
		"https://shop.example.com/products/mechanical-keyboard-tkl",
		"https://shop.example.com/products/espresso-machine-deluxe",
		"https://shop.example.com/products/trail-running-shoes",
		"https://shop.example.com/products/4k-action-camera",
		"https://shop.example.com/products/standing-desk-oak",
		"https://shop.example.com/products/noise-cancelling-headset",
		"https://shop.example.com/products/smart-thermostat-v3",
	}
}

// Start creates a fresh simulation and begins launching sessions in the
// background with staggered starts. It returns immediately with the new
// run's identity. Only valid when no simulation is running.
func (o *Orchestrator) Start(sessionCount, delayMs int) (StartInfo, error) {
	if sessionCount < MinSessions || sessionCount > MaxSessions {
		return StartInfo{}, fmt.Errorf("%w: sessions must be in [%d,%d], got %d",
			ErrInvalidParameter, MinSessions, MaxSessions, sessionCount)
	}
	if delayMs < MinDelayMs || delayMs > MaxDelayMs {
		return StartInfo{}, fmt.Errorf("%w: delay_ms must be in [%d,%d], got %d",
			ErrInvalidParameter, MinDelayMs, MaxDelayMs, delayMs)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current != nil {
		return StartInfo{}, ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &run{
		id:           uuid.NewString(),
		startTime:    time.Now(),
		sessionCount: sessionCount,
		delay:        time.Duration(delayMs) * time.Millisecond,
		stats:        NewStats(),
		cancel:       cancel,
		done:         make(chan struct{}),
	}
	o.current = r

	seed := o.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	fmt.Printf(`{"level":"info","msg":"simulation_started","id":"%s","sessions":%d,"delay_ms":%d,"seed":%d}`+"\n",
		r.id, sessionCount, delayMs, seed)
	o.cfg.Sink.Emit("simulation_started", map[string]any{
		"id":       r.id,
		"sessions": sessionCount,
		"delay_ms": delayMs,
	})

	go o.launch(ctx, r, seed)

	return StartInfo{ID: r.id, StartTime: r.startTime}, nil
}

// launch spawns one session goroutine per index, delaying each start by
// the inter-session delay. Sessions overlap; only their starts are
// staggered. It closes r.done once every launched session has returned,
// which is the signal Stop waits on.
func (o *Orchestrator) launch(ctx context.Context, r *run, seed int64) {
	sessionCfg := SessionConfig{
		Executor:     o.cfg.Executor,
		Catalog:      o.cfg.Catalog,
		URLs:         o.cfg.URLs,
		Stats:        r.stats,
		Sink:         o.cfg.Sink,
		RetryBackoff: o.cfg.RetryBackoff,
		MaxAttempts:  o.cfg.MaxAttempts,
	}

	var wg sync.WaitGroup
	for i := 0; i < r.sessionCount; i++ {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(idx int, sessionSeed int64) {
			defer wg.Done()
			SimActiveSessions.Inc()
			defer SimActiveSessions.Dec()
			// A runaway session must not take the run down with it.
			defer func() {
				if rec := recover(); rec != nil {
					fmt.Printf(`{"level":"error","msg":"session_panicked","id":"%s","session_index":%d,"error":"%v"}`+"\n",
						r.id, idx, rec)
					r.stats.recordSessionPanic()
					SimSessionsTotal.WithLabelValues("failed").Inc()
				}
			}()
			RunSession(ctx, sessionCfg, idx, rand.New(rand.NewSource(sessionSeed)))
		}(i, seed+int64(i))

		if i < r.sessionCount-1 && !sleepCtx(ctx, r.delay) {
			break
		}
	}
	wg.Wait()
	close(r.done)
}

// Stop cancels the running simulation, waits until no session can still
// mutate statistics, and returns the final snapshot. The wait is bounded
// by the in-flight request timeout. Only valid while running.
func (o *Orchestrator) Stop(ctx context.Context) (Snapshot, error) {
	o.mu.Lock()
	r := o.current
	if r == nil || r.stopping {
		o.mu.Unlock()
		return Snapshot{}, ErrNotRunning
	}
	r.stopping = true
	o.mu.Unlock()

	r.cancel()
	<-r.done

	snapshot := r.stats.Snapshot()
	completed, failed := r.stats.Sessions()

	o.mu.Lock()
	o.current = nil
	o.mu.Unlock()

	fmt.Printf(`{"level":"info","msg":"simulation_stopped","id":"%s","total_requests":%d,"completed_sessions":%d,"failed_sessions":%d}`+"\n",
		r.id, snapshot.TotalRequests, completed, failed)
	o.cfg.Sink.Emit("simulation_stopped", map[string]any{
		"id":             r.id,
		"total_requests": snapshot.TotalRequests,
	})

	if o.cfg.Recorder != nil {
		record := RunRecord{
			ID:           r.id,
			StartedAt:    r.startTime,
			EndedAt:      time.Now(),
			SessionCount: r.sessionCount,
			Progress:     Progress{Completed: completed, Failed: failed, Total: r.sessionCount},
			Statistics:   snapshot,
		}
		if err := o.cfg.Recorder.RecordRun(ctx, record); err != nil {
			// Persistence is best effort; the snapshot is still valid.
			fmt.Printf(`{"level":"error","msg":"failed_to_record_run","id":"%s","error":"%v"}`+"\n", r.id, err)
		}
	}

	return snapshot, nil
}

// Status returns the orchestrator's current view without blocking on
// session execution. With no active simulation it reports a non-error
// idle status.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	r := o.current
	o.mu.Unlock()

	if r == nil {
		return Status{Statistics: Snapshot{ErrorCounts: map[Outcome]int64{}}}
	}

	completed, failed := r.stats.Sessions()
	return Status{
		IsRunning: true,
		ID:        r.id,
		StartTime: r.startTime,
		Progress: Progress{
			Completed: completed,
			Failed:    failed,
			Total:     r.sessionCount,
		},
		Statistics: r.stats.Snapshot(),
	}
}
