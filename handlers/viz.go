// ABOUTME: GraphViz visualization MCP handlers
// ABOUTME: Provides the pipeline_graph and dashboard tools for agents
package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/leadsheet/viz"
)

type VizHandlers struct {
	pipeline *Pipeline
}

func NewVizHandlers(pipeline *Pipeline) *VizHandlers {
	return &VizHandlers{pipeline: pipeline}
}

type PipelineGraphInput struct{}

type PipelineGraphOutput struct {
	DOTSource      string `json:"dot_source"`
	NodeCount      int    `json:"node_count"`
	EdgeCount      int    `json:"edge_count"`
	ForbiddenCount int    `json:"forbidden_count"`
}

func (h *VizHandlers) PipelineGraph(ctx context.Context, _ *mcp.CallToolRequest, _ PipelineGraphInput) (*mcp.CallToolResult, PipelineGraphOutput, error) {
	data := h.pipeline.Snapshot(ctx, false)
	dot, err := viz.NewGraphGenerator(data).GeneratePipelineGraph(ctx)
	if err != nil {
		return nil, PipelineGraphOutput{}, fmt.Errorf("failed to generate graph: %w", err)
	}

	return nil, PipelineGraphOutput{
		DOTSource:      dot,
		NodeCount:      strings.Count(dot, "leads\""),
		EdgeCount:      strings.Count(dot, "->"),
		ForbiddenCount: strings.Count(dot, "label=forbidden"),
	}, nil
}

type DashboardInput struct{}

type DashboardOutput struct {
	Text string `json:"text"`
}

func (h *VizHandlers) Dashboard(ctx context.Context, _ *mcp.CallToolRequest, _ DashboardInput) (*mcp.CallToolResult, DashboardOutput, error) {
	data := h.pipeline.Snapshot(ctx, false)
	stats := viz.GenerateDashboardStats(data, h.pipeline.Now())
	return nil, DashboardOutput{Text: viz.RenderDashboard(stats)}, nil
}

// RegisterVizTools adds the visualization tools to server.
func RegisterVizTools(server *mcp.Server, h *VizHandlers) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "pipeline_graph",
		Description: "Render the stage pipeline as GraphViz DOT with lead counts and forbidden transitions",
	}, h.PipelineGraph)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "pipeline_dashboard",
		Description: "Text dashboard of stage counts, health, and leads needing attention",
	}, h.Dashboard)
}
