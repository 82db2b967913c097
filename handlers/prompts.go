// ABOUTME: MCP prompt handlers for reusable pipeline workflow templates
// ABOUTME: Provides lead review, standup, and follow-up prompts built from live data
package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/leadsheet/viz"
	"github.com/harperreed/leadsheet/workflow"
)

type PromptHandlers struct {
	pipeline *Pipeline
}

func NewPromptHandlers(pipeline *Pipeline) *PromptHandlers {
	return &PromptHandlers{pipeline: pipeline}
}

// GetPrompt generates the prompt message based on the template
func (h *PromptHandlers) GetPrompt(ctx context.Context, request *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	name := request.Params.Name
	arguments := request.Params.Arguments
	switch name {
	case "lead-review":
		return h.getLeadReviewPrompt(ctx, arguments)
	case "pipeline-standup":
		return h.getStandupPrompt(ctx)
	case "follow-up-suggestions":
		return h.getFollowUpPrompt(ctx, arguments)
	default:
		return nil, fmt.Errorf("unknown prompt: %s", name)
	}
}

func userPrompt(description, text string) *mcp.GetPromptResult {
	return &mcp.GetPromptResult{
		Description: description,
		Messages: []*mcp.PromptMessage{
			{
				Role:    "user",
				Content: &mcp.TextContent{Text: text},
			},
		},
	}
}

func (h *PromptHandlers) getLeadReviewPrompt(ctx context.Context, args map[string]string) (*mcp.GetPromptResult, error) {
	leadID, ok := args["lead_id"]
	if !ok || leadID == "" {
		return nil, fmt.Errorf("lead_id is required")
	}

	lead, data, err := h.pipeline.Lead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	health := workflow.DetermineLeadHealth(lead, data.SLARules, h.pipeline.Now())

	var b strings.Builder
	b.WriteString("Review this lead and recommend the next step:\n\n")
	fmt.Fprintf(&b, "Lead: %s (%s)\n", lead.CompanyName, lead.LeadID)
	fmt.Fprintf(&b, "Stage: %s, priority %s, owner %s\n", lead.CurrentStage(), lead.Priority, lead.YdsPoc)
	if lead.Category != "" {
		fmt.Fprintf(&b, "Category: %s\n", lead.Category)
	}
	if lead.EstimatedQty > 0 {
		fmt.Fprintf(&b, "Estimated quantity: %d\n", lead.EstimatedQty)
	}
	if lead.NextAction != "" {
		fmt.Fprintf(&b, "Next action: %s on %s\n", lead.NextAction, lead.NextActionDate)
	}
	fmt.Fprintf(&b, "Health: %s (%s) %s\n", health.Label, health.Status, health.Message)
	if lead.Remarks != "" {
		fmt.Fprintf(&b, "Remarks: %s\n", lead.Remarks)
	}

	if next, ok := AdjacentStage(data.Stages(), lead.CurrentStage(), 1); ok {
		check := CheckMove(lead, next, data)
		if len(check.Missing) > 0 {
			fmt.Fprintf(&b, "\nTo reach %s it still needs: %s\n", next, strings.Join(check.Missing, ", "))
		}
	}

	b.WriteString("\nPlease cover what is blocking progress, what to ask the contact, and whether the priority looks right.")
	return userPrompt("Review of lead "+lead.LeadID, b.String()), nil
}

func (h *PromptHandlers) getStandupPrompt(ctx context.Context) (*mcp.GetPromptResult, error) {
	data := h.pipeline.Snapshot(ctx, false)
	report := SummarizeHealth(data, h.pipeline.Now())
	stages, counts := viz.StageCounts(data)

	var b strings.Builder
	b.WriteString("Prepare a short sales standup from this pipeline snapshot:\n\n")
	for _, s := range stages {
		fmt.Fprintf(&b, "- %s: %d\n", s, counts[s])
	}
	fmt.Fprintf(&b, "\nHealth: %d healthy, %d warning, %d violated\n",
		report.Counts[workflow.HealthHealthy], report.Counts[workflow.HealthWarning], report.Counts[workflow.HealthViolated])
	if len(report.Attention) > 0 {
		b.WriteString("\nNeeds attention:\n")
		for _, e := range report.Attention {
			fmt.Fprintf(&b, "- %s %s (%s, %s): %s\n", e.LeadID, e.CompanyName, e.Stage, e.Label, e.Message)
		}
	}
	b.WriteString("\nSummarize wins, risks, and the three most important actions for today.")
	return userPrompt("Pipeline standup", b.String()), nil
}

func (h *PromptHandlers) getFollowUpPrompt(ctx context.Context, args map[string]string) (*mcp.GetPromptResult, error) {
	leads, _ := h.pipeline.Leads(ctx, LeadQuery{Owner: args["owner"], OpenOnly: true}, false)

	var b strings.Builder
	b.WriteString("Suggest follow-ups for these open leads, most urgent first:\n\n")
	if len(leads) == 0 {
		b.WriteString("(no open leads)\n")
	}
	for _, l := range leads {
		fmt.Fprintf(&b, "- %s %s: %s, next %q due %s, SLA %s\n",
			l.LeadID, l.CompanyName, l.CurrentStage(), l.NextAction, l.NextActionDate, l.SLAStatus)
	}
	return userPrompt("Follow-up suggestions", b.String()), nil
}

// RegisterPrompts adds every prompt to server.
func RegisterPrompts(server *mcp.Server, h *PromptHandlers) {
	server.AddPrompt(&mcp.Prompt{
		Name:        "lead-review",
		Description: "Review one lead and recommend the next step",
		Arguments:   []*mcp.PromptArgument{{Name: "lead_id", Description: "Lead ID", Required: true}},
	}, h.GetPrompt)

	server.AddPrompt(&mcp.Prompt{
		Name:        "pipeline-standup",
		Description: "Summarize the pipeline for a standup",
	}, h.GetPrompt)

	server.AddPrompt(&mcp.Prompt{
		Name:        "follow-up-suggestions",
		Description: "Suggest follow-ups for open leads",
		Arguments:   []*mcp.PromptArgument{{Name: "owner", Description: "Only leads owned by this POC"}},
	}, h.GetPrompt)
}
