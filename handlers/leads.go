// ABOUTME: Lead MCP tool handlers
// ABOUTME: Implements list, get, add, update, stage moves, health, and refresh tools
package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/leadsheet/models"
	"github.com/harperreed/leadsheet/workflow"
)

type LeadHandlers struct {
	pipeline *Pipeline
}

func NewLeadHandlers(pipeline *Pipeline) *LeadHandlers {
	return &LeadHandlers{pipeline: pipeline}
}

// SourceOutput describes where a snapshot came from.
type SourceOutput struct {
	DataSource string `json:"data_source"`
	ReadOnly   bool   `json:"read_only"`
	LastError  string `json:"last_error,omitempty"`
	FetchedAt  string `json:"fetched_at,omitempty"`
}

func sourceOf(data *models.SystemData) SourceOutput {
	out := SourceOutput{
		DataSource: string(data.DataSource),
		ReadOnly:   data.ReadOnly,
		LastError:  data.LastError,
	}
	if !data.FetchedAt.IsZero() {
		out.FetchedAt = data.FetchedAt.Format(time.RFC3339)
	}
	return out
}

type ListLeadsInput struct {
	Stage    string `json:"stage,omitempty" jsonschema:"Only leads in this stage"`
	Category string `json:"category,omitempty" jsonschema:"Only leads in this category"`
	Owner    string `json:"owner,omitempty" jsonschema:"Only leads owned by this POC"`
	Health   string `json:"health,omitempty" jsonschema:"Only leads with this health status or label (Healthy, Warning, Violated, Overdue, Stagnant)"`
	Query    string `json:"query,omitempty" jsonschema:"Search company, contact, email, number, or city"`
	OpenOnly bool   `json:"open_only,omitempty" jsonschema:"Exclude Won and Lost leads"`
	Limit    int    `json:"limit,omitempty" jsonschema:"Maximum results to return (default 50)"`
}

type ListLeadsOutput struct {
	Leads []models.Lead `json:"leads"`
	Count int           `json:"count"`
	SourceOutput
}

func (h *LeadHandlers) ListLeads(ctx context.Context, _ *mcp.CallToolRequest, input ListLeadsInput) (*mcp.CallToolResult, ListLeadsOutput, error) {
	if input.Limit == 0 {
		input.Limit = 50
	}
	leads, data := h.pipeline.Leads(ctx, LeadQuery{
		Stage:    input.Stage,
		Category: input.Category,
		Owner:    input.Owner,
		Health:   input.Health,
		Search:   input.Query,
		OpenOnly: input.OpenOnly,
		Limit:    input.Limit,
	}, false)

	return nil, ListLeadsOutput{Leads: leads, Count: len(leads), SourceOutput: sourceOf(data)}, nil
}

type GetLeadInput struct {
	LeadID string `json:"lead_id" jsonschema:"Lead ID (required)"`
}

type LeadOutput struct {
	Lead   models.Lead     `json:"lead"`
	Health workflow.Health `json:"health"`
}

func (h *LeadHandlers) GetLead(ctx context.Context, _ *mcp.CallToolRequest, input GetLeadInput) (*mcp.CallToolResult, LeadOutput, error) {
	if input.LeadID == "" {
		return nil, LeadOutput{}, fmt.Errorf("lead_id is required")
	}
	lead, data, err := h.pipeline.Lead(ctx, input.LeadID)
	if err != nil {
		return nil, LeadOutput{}, err
	}
	return nil, LeadOutput{
		Lead:   lead,
		Health: workflow.DetermineLeadHealth(lead, data.SLARules, h.pipeline.Now()),
	}, nil
}

type LeadHealthInput struct{}

func (h *LeadHandlers) LeadHealth(ctx context.Context, _ *mcp.CallToolRequest, _ LeadHealthInput) (*mcp.CallToolResult, HealthReport, error) {
	return nil, h.pipeline.Health(ctx), nil
}

type MissingFieldsInput struct {
	LeadID  string `json:"lead_id" jsonschema:"Lead ID (required)"`
	ToStage string `json:"to_stage" jsonschema:"Target stage (required)"`
}

func (h *LeadHandlers) MissingFields(ctx context.Context, _ *mcp.CallToolRequest, input MissingFieldsInput) (*mcp.CallToolResult, MoveCheck, error) {
	if input.LeadID == "" || input.ToStage == "" {
		return nil, MoveCheck{}, fmt.Errorf("lead_id and to_stage are required")
	}
	check, err := h.pipeline.Missing(ctx, input.LeadID, input.ToStage)
	if err != nil {
		return nil, MoveCheck{}, err
	}
	return nil, check, nil
}

type MoveLeadStageInput struct {
	LeadID  string `json:"lead_id" jsonschema:"Lead ID (required)"`
	ToStage string `json:"to_stage" jsonschema:"Target stage (required)"`
}

func (h *LeadHandlers) MoveLeadStage(ctx context.Context, _ *mcp.CallToolRequest, input MoveLeadStageInput) (*mcp.CallToolResult, models.Lead, error) {
	if input.LeadID == "" || input.ToStage == "" {
		return nil, models.Lead{}, fmt.Errorf("lead_id and to_stage are required")
	}
	lead, err := h.pipeline.Move(ctx, input.LeadID, input.ToStage)
	if err != nil {
		return nil, models.Lead{}, fmt.Errorf("failed to move lead: %w", err)
	}
	return nil, lead, nil
}

type AddLeadInput struct {
	CompanyName    string `json:"company_name" jsonschema:"Company name"`
	ContactPerson  string `json:"contact_person,omitempty" jsonschema:"Contact person"`
	Number         string `json:"number,omitempty" jsonschema:"Phone number"`
	Email          string `json:"email,omitempty" jsonschema:"Email address"`
	City           string `json:"city,omitempty" jsonschema:"City"`
	Source         string `json:"source,omitempty" jsonschema:"Lead source"`
	Category       string `json:"category,omitempty" jsonschema:"Category, e.g. Corporate, Dropshipping, Sampling"`
	ProductType    string `json:"product_type,omitempty" jsonschema:"Product type"`
	PrintType      string `json:"print_type,omitempty" jsonschema:"Print type"`
	EstimatedQty   int    `json:"estimated_qty,omitempty" jsonschema:"Estimated quantity; drives priority when none is given"`
	Owner          string `json:"owner,omitempty" jsonschema:"YDS POC who owns the lead"`
	Priority       string `json:"priority,omitempty" jsonschema:"High, Medium, Low, or None"`
	Remarks        string `json:"remarks,omitempty" jsonschema:"Free-form remarks"`
	AllowDuplicate bool   `json:"allow_duplicate,omitempty" jsonschema:"Add even if a lead with the same email or number exists"`
}

// Lead builds an unsaved lead from the input.
func (input AddLeadInput) Lead() models.Lead {
	lead := models.NewLead()
	lead.CompanyName = strings.TrimSpace(input.CompanyName)
	lead.ContactPerson = strings.TrimSpace(input.ContactPerson)
	lead.Number = strings.TrimSpace(input.Number)
	lead.Email = strings.TrimSpace(input.Email)
	lead.City = input.City
	lead.Source = input.Source
	lead.Category = input.Category
	lead.ProductType = input.ProductType
	lead.PrintType = input.PrintType
	lead.EstimatedQty = input.EstimatedQty
	lead.YdsPoc = input.Owner
	lead.Priority = input.Priority
	lead.Remarks = input.Remarks
	return lead
}

func (h *LeadHandlers) AddLead(ctx context.Context, _ *mcp.CallToolRequest, input AddLeadInput) (*mcp.CallToolResult, models.Lead, error) {
	created, err := h.pipeline.Add(ctx, input.Lead(), input.AllowDuplicate)
	if err != nil {
		return nil, models.Lead{}, fmt.Errorf("failed to add lead: %w", err)
	}
	return nil, created, nil
}

type UpdateLeadInput struct {
	LeadID string            `json:"lead_id" jsonschema:"Lead ID (required)"`
	Fields map[string]string `json:"fields" jsonschema:"Fields to set, keyed by field name (companyName) or sheet header (Company Name)"`
}

func (h *LeadHandlers) UpdateLead(ctx context.Context, _ *mcp.CallToolRequest, input UpdateLeadInput) (*mcp.CallToolResult, models.Lead, error) {
	if input.LeadID == "" {
		return nil, models.Lead{}, fmt.Errorf("lead_id is required")
	}
	if len(input.Fields) == 0 {
		return nil, models.Lead{}, fmt.Errorf("no fields to update")
	}
	lead, err := h.pipeline.Update(ctx, input.LeadID, input.Fields)
	if err != nil {
		return nil, models.Lead{}, fmt.Errorf("failed to update lead: %w", err)
	}
	return nil, lead, nil
}

type RefreshDataInput struct{}

type RefreshDataOutput struct {
	Leads  int      `json:"leads"`
	Stages []string `json:"stages"`
	SourceOutput
}

func (h *LeadHandlers) RefreshData(ctx context.Context, _ *mcp.CallToolRequest, _ RefreshDataInput) (*mcp.CallToolResult, RefreshDataOutput, error) {
	data := h.pipeline.Snapshot(ctx, true)
	return nil, RefreshDataOutput{
		Leads:        len(data.Leads),
		Stages:       data.Stages(),
		SourceOutput: sourceOf(data),
	}, nil
}

// RegisterTools adds every lead tool to server.
func RegisterTools(server *mcp.Server, h *LeadHandlers) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_leads",
		Description: "List leads with optional stage, category, owner, health, and text filters",
	}, h.ListLeads)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_lead",
		Description: "Get one lead by ID with its SLA health",
	}, h.GetLead)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "lead_health",
		Description: "Summarize pipeline health and list overdue or stagnant leads",
	}, h.LeadHealth)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "missing_fields",
		Description: "Preview a stage move: required fields, missing fields, and whether the move is allowed",
	}, h.MissingFields)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "move_lead_stage",
		Description: "Move a lead to another stage after validating transitions and required fields",
	}, h.MoveLeadStage)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_lead",
		Description: "Add a new lead; rejects likely duplicates by email or phone unless allow_duplicate is set",
	}, h.AddLead)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_lead",
		Description: "Update fields of an existing lead",
	}, h.UpdateLead)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "refresh_data",
		Description: "Bypass the cache and re-read the spreadsheet",
	}, h.RefreshData)
}
