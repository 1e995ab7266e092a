package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/kpujjigit/productpulse/pkg/client"
	"github.com/kpujjigit/productpulse/pkg/simulation"
)

func main() {
	var (
		apiURL     string
		sessions   int
		delayMs    int
		duration   time.Duration
		jsonOutput bool
		outputFile string
	)

	flag.StringVar(&apiURL, "api", "http://127.0.0.1:8090", "Base URL of productpulse-d API")
	flag.IntVar(&sessions, "sessions", 10, "Number of concurrent sessions (1-1000)")
	flag.IntVar(&delayMs, "delay", 500, "Stagger delay between session launches in ms (100-10000)")
	flag.DurationVar(&duration, "duration", 30*time.Second, "How long to let the simulation run before stopping")
	flag.BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	flag.StringVar(&outputFile, "out", "", "Write output to file instead of stdout")
	flag.Parse()

	ctx := context.Background()
	c := client.NewClient(apiURL)

	if err := c.Ping(ctx); err != nil {
		log.Fatalf("Daemon unreachable at %s: %v", apiURL, err)
	}

	start, err := c.StartSimulation(ctx, sessions, delayMs)
	if err != nil {
		log.Fatalf("Failed to start simulation: %v", err)
	}
	fmt.Fprintf(os.Stderr, "Simulation %s started (%d sessions, %dms stagger). Running for %s...\n",
		start.ID, sessions, delayMs, duration)

	// Poll until the duration elapses or every session finishes.
	deadline := time.Now().Add(duration)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

poll:
	for time.Now().Before(deadline) {
		<-ticker.C
		status, err := c.GetStatus(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "status poll failed: %v\n", err)
			continue
		}
		fmt.Fprintf(os.Stderr, "progress: %d/%d sessions done, %d requests, avg %.1fms\n",
			status.Progress.Completed+status.Progress.Failed, status.Progress.Total,
			status.Statistics.TotalRequests, status.Statistics.AvgResponseTimeMs)

		if status.Progress.Completed+status.Progress.Failed >= status.Progress.Total {
			fmt.Fprintln(os.Stderr, "all sessions finished early")
			break poll
		}
	}

	snapshot, err := c.StopSimulation(ctx)
	if err != nil {
		log.Fatalf("Failed to stop simulation: %v", err)
	}

	writeReport(start.ID, snapshot, jsonOutput, outputFile)
}

func writeReport(runID string, snap simulation.Snapshot, jsonFmt bool, filePath string) {
	var output []byte
	var err error

	if jsonFmt {
		output, err = json.MarshalIndent(map[string]interface{}{
			"run_id":     runID,
			"statistics": snap,
		}, "", "  ")
	} else {
		var buf bytes.Buffer
		buf.WriteString(fmt.Sprintf("\n--- Simulation Report: %s ---\n", runID))
		buf.WriteString(fmt.Sprintf("Requests: %d | Success: %d | Failed: %d\n",
			snap.TotalRequests, snap.SuccessfulRequests, snap.FailedRequests))
		buf.WriteString(fmt.Sprintf("Avg response time: %.1fms\n", snap.AvgResponseTimeMs))

		if len(snap.ErrorCounts) > 0 {
			buf.WriteString("\nErrors by outcome:\n")
			outcomes := make([]string, 0, len(snap.ErrorCounts))
			for outcome := range snap.ErrorCounts {
				outcomes = append(outcomes, string(outcome))
			}
			sort.Strings(outcomes)
			for _, outcome := range outcomes {
				buf.WriteString(fmt.Sprintf("  %s: %d\n", outcome, snap.ErrorCounts[simulation.Outcome(outcome)]))
			}
		}
		output = buf.Bytes()
	}

	if err != nil {
		log.Fatalf("Failed to marshal report: %v", err)
	}

	if filePath != "" {
		if err := os.WriteFile(filePath, output, 0644); err != nil {
			log.Fatalf("Failed to write report to %s: %v", filePath, err)
		}
		fmt.Printf("Report written to %s\n", filePath)
	} else {
		fmt.Println(string(output))
	}
}
