// ABOUTME: MCP resource handlers for exposing pipeline data
// ABOUTME: Provides read-only access to leads, rules, options, and stage counts via URI
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/leadsheet/viz"
)

const resourceScheme = "leadsheet://"

type ResourceHandlers struct {
	pipeline *Pipeline
}

func NewResourceHandlers(pipeline *Pipeline) *ResourceHandlers {
	return &ResourceHandlers{pipeline: pipeline}
}

// ReadResource handles resource read requests
func (h *ResourceHandlers) ReadResource(ctx context.Context, request *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := request.Params.URI
	if !strings.HasPrefix(uri, resourceScheme) {
		return nil, fmt.Errorf("invalid URI scheme: expected %s", resourceScheme)
	}

	parts := strings.Split(strings.TrimPrefix(uri, resourceScheme), "/")
	data := h.pipeline.Snapshot(ctx, false)

	switch parts[0] {
	case "leads":
		if len(parts) == 1 || parts[1] == "" {
			return jsonResource(uri, data.Leads)
		}
		lead, ok := data.FindLead(parts[1])
		if !ok {
			return nil, mcp.ResourceNotFoundError(uri)
		}
		return jsonResource(uri, lead)

	case "rules":
		return jsonResource(uri, data.RuleSets)

	case "options":
		return jsonResource(uri, data.Options)

	case "pipeline":
		stages, counts := viz.StageCounts(data)
		type stageCount struct {
			Stage string `json:"stage"`
			Count int    `json:"count"`
		}
		out := make([]stageCount, 0, len(stages))
		for _, s := range stages {
			out = append(out, stageCount{Stage: s, Count: counts[s]})
		}
		return jsonResource(uri, out)

	default:
		return nil, fmt.Errorf("unknown resource: %s", parts[0])
	}
}

func jsonResource(uri string, v interface{}) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{
		{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}}, nil
}

// RegisterResources adds the fixed resources and the per-lead template.
func RegisterResources(server *mcp.Server, h *ResourceHandlers) {
	for _, r := range []struct{ name, path, desc string }{
		{"leads", "leads", "All leads with SLA annotations"},
		{"rules", "rules", "Stage, SLA, auto-action, and category rules"},
		{"options", "options", "Dropdown vocabularies from the settings sheet"},
		{"pipeline", "pipeline", "Lead counts per stage"},
	} {
		server.AddResource(&mcp.Resource{
			URI:         resourceScheme + r.path,
			Name:        r.name,
			Description: r.desc,
			MIMEType:    "application/json",
		}, h.ReadResource)
	}

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: resourceScheme + "leads/{id}",
		Name:        "lead",
		Description: "A single lead by ID",
		MIMEType:    "application/json",
	}, h.ReadResource)
}
