package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kpujjigit/productpulse/pkg/client"
)

// Server adapts productpulse-d to the Model Context Protocol.
type Server struct {
	mcpServer *server.MCPServer
	apiClient *client.Client
}

// NewServer creates a new MCP server instance.
func NewServer(apiURL string) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"productpulse",
			"1.0.0",
		),
		apiClient: client.NewClient(apiURL),
	}
	s.registerResources()
	s.registerTools()
	s.registerPrompts()
	return s
}

// Serve starts the MCP server on stdio.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcpServer)
}

// --- Resources ---

func (s *Server) registerResources() {
	// productpulse://status
	s.mcpServer.AddResource(mcp.NewResource(
		"productpulse://status",
		"Simulation Status",
		mcp.WithResourceDescription("Live progress and statistics of the active traffic simulation"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadStatus)

	// productpulse://runs
	s.mcpServer.AddResource(mcp.NewResource(
		"productpulse://runs",
		"Simulation Run History",
		mcp.WithResourceDescription("Finished simulation runs with their final statistics, newest first"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadRuns)
}

// --- Tools ---

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		"analyze_product",
		mcp.WithDescription("Scrape a product page and extract structured data plus insights."),
		mcp.WithString("url", mcp.Required(), mcp.Description("The product page URL to analyze")),
	), s.handleAnalyzeProduct)

	s.mcpServer.AddTool(mcp.NewTool(
		"start_simulation",
		mcp.WithDescription("Start a traffic simulation with concurrent user sessions. Fails if one is already running."),
		mcp.WithNumber("sessions", mcp.Required(), mcp.Description("Number of concurrent sessions (1-1000)")),
		mcp.WithNumber("delay_ms", mcp.Required(), mcp.Description("Stagger delay between session launches in milliseconds (100-10000)")),
	), s.handleStartSimulation)

	s.mcpServer.AddTool(mcp.NewTool(
		"stop_simulation",
		mcp.WithDescription("Stop the active traffic simulation and return its final statistics."),
	), s.handleStopSimulation)

	s.mcpServer.AddTool(mcp.NewTool(
		"get_simulation_status",
		mcp.WithDescription("Get live progress and statistics of the traffic simulation."),
	), s.handleGetStatus)
}

// --- Prompts ---

func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(mcp.NewPrompt(
		"productpulse-aware",
		mcp.WithPromptDescription("Provides context about ProductPulse concepts (analyses, simulations, behavior profiles)"),
	), s.handleGetPrompt)
}

// --- Handlers ---

func (s *Server) handleReadStatus(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	status, err := s.apiClient.GetStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch status: %w", err)
	}

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal status: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleReadRuns(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	runs, err := s.apiClient.GetRuns(ctx, 20)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch runs: %w", err)
	}

	data, err := json.MarshalIndent(runs, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal runs: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleAnalyzeProduct(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url := mcp.ParseString(request, "url", "")
	if url == "" {
		return mcp.NewToolResultError("url is required"), nil
	}

	result, err := s.apiClient.Analyze(ctx, url)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("analysis failed: %v", err)), nil
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleStartSimulation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessions := mcp.ParseInt(request, "sessions", 0)
	delayMs := mcp.ParseInt(request, "delay_ms", 0)

	result, err := s.apiClient.StartSimulation(ctx, sessions, delayMs)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to start simulation: %v", err)), nil
	}

	msg := fmt.Sprintf("Simulation started.\nRun ID: %s\nSessions: %d\nDelay: %dms", result.ID, result.Sessions, result.DelayMs)
	return mcp.NewToolResultText(msg), nil
}

func (s *Server) handleStopSimulation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snapshot, err := s.apiClient.StopSimulation(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to stop simulation: %v", err)), nil
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal statistics: %v", err)), nil
	}
	return mcp.NewToolResultText("Simulation stopped. Final statistics:\n" + string(data)), nil
}

func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.apiClient.GetStatus(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to fetch status: %v", err)), nil
	}

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal status: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleGetPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	name := request.Params.Name
	if name != "productpulse-aware" {
		return nil, fmt.Errorf("prompt not found: %s", name)
	}

	promptText := `You are interacting with ProductPulse, a product analysis service with a built-in traffic simulator.

Concepts:
- Analysis: Scraping a product page and extracting structured data (title, price, rating) plus model-derived insights (sentiment, key features).
- Simulation: A run of concurrent synthetic user sessions hitting the analysis endpoint to generate realistic load.
- Behavior profile: Each session is assigned a weighted-random profile (Quick Browser, Thorough Researcher, Impatient User, Power User) controlling session length, think time, and retry tolerance.
- Run: One start-to-stop simulation with its aggregated statistics.

Use 'analyze_product' for a single URL. Use 'start_simulation' / 'stop_simulation' to generate load, and 'get_simulation_status' to follow progress. Only one simulation runs at a time.
`

	return mcp.NewGetPromptResult(
		"productpulse-aware",
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(promptText)),
		},
	), nil
}
