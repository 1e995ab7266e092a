package simulation

import (
	"encoding/json"
	"fmt"
)

// Sink receives named telemetry events from the simulation engine.
// Implementations must be safe for concurrent use. The engine behaves
// identically whether the sink is a real collector, a logger, or a no-op.
type Sink interface {
	Emit(event string, attrs map[string]any)
}

type nopSink struct{}

func (nopSink) Emit(string, map[string]any) {}

// NopSink returns a sink that drops every event.
func NopSink() Sink { return nopSink{} }

// LogSink writes each event as a structured JSON log line.
type LogSink struct{}

func (LogSink) Emit(event string, attrs map[string]any) {
	payload, err := json.Marshal(attrs)
	if err != nil {
		payload = []byte("{}")
	}
	fmt.Printf(`{"level":"debug","msg":"sim_event","event":"%s","attrs":%s}`+"\n", event, payload)
}
