// ABOUTME: Tests for the lead, rules, sync, and viz CLI commands
// ABOUTME: Captures command output against a local-only seeded pipeline
package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/leadsheet/handlers"
	"github.com/harperreed/leadsheet/models"
)

var testNow = time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)

func setupTestCLI(t *testing.T) (*handlers.Pipeline, *bytes.Buffer) {
	t.Helper()

	var buf bytes.Buffer
	prev := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = prev })

	return handlers.NewTestPipeline(t, testNow), &buf
}

func TestLeadsListCommand(t *testing.T) {
	p, out := setupTestCLI(t)

	require.NoError(t, LeadsListCommand(p, []string{"--owner", "ravi", "--open"}))
	assert.Contains(t, out.String(), "Northwind Apparel")
	assert.Contains(t, out.String(), "Chai Point Events")
	assert.NotContains(t, out.String(), "Loop Threads")
	assert.Contains(t, out.String(), "2 lead(s)")

	out.Reset()
	require.NoError(t, LeadsListCommand(p, []string{"--stage", "Lost", "--json"}))
	var leads []models.Lead
	require.NoError(t, json.Unmarshal(out.Bytes(), &leads))
	require.Len(t, leads, 1)
	assert.Equal(t, "L-0005", leads[0].LeadID)

	out.Reset()
	require.NoError(t, LeadsListCommand(p, []string{"--query", "nobody"}))
	assert.Contains(t, out.String(), "No leads found")
}

func TestLeadsShowCommand(t *testing.T) {
	p, out := setupTestCLI(t)

	require.NoError(t, LeadsShowCommand(p, []string{"L-0003"}))
	assert.Contains(t, out.String(), "Chai Point Events")
	assert.Contains(t, out.String(), "Overdue")

	assert.Error(t, LeadsShowCommand(p, []string{"L-9999"}))
	assert.Error(t, LeadsShowCommand(p, nil))
}

func TestLeadsAddCommand(t *testing.T) {
	p, out := setupTestCLI(t)

	err := LeadsAddCommand(p, []string{"--company", "Acme", "--number", "+91 98200 12345"})
	require.Error(t, err)
	assert.ErrorIs(t, err, handlers.ErrDuplicateLead)
	assert.Contains(t, err.Error(), "--allow-duplicate")

	require.NoError(t, LeadsAddCommand(p, []string{"--company", "Acme Tees", "--qty", "40", "--owner", "Ana"}))
	assert.Contains(t, out.String(), "Lead added: Acme Tees")
	assert.Contains(t, out.String(), "Row: not in sheet yet (local)")

	leads, _ := p.Leads(t.Context(), handlers.LeadQuery{Search: "acme tees"}, false)
	require.Len(t, leads, 1)
	assert.Equal(t, "Ana", leads[0].YdsPoc)
	assert.Equal(t, models.StageNew, leads[0].Status)
}

func TestLeadsUpdateCommand(t *testing.T) {
	p, out := setupTestCLI(t)

	require.NoError(t, LeadsUpdateCommand(p, []string{"--set", "city=Pune", "--set", "Remarks=call after 5", "L-0006"}))
	assert.Contains(t, out.String(), "Lead updated")

	lead, _, err := p.Lead(t.Context(), "L-0006")
	require.NoError(t, err)
	assert.Equal(t, "Pune", lead.City)
	assert.Equal(t, "call after 5", lead.Remarks)

	assert.Error(t, LeadsUpdateCommand(p, []string{"L-0006"}))
	assert.ErrorIs(t, LeadsUpdateCommand(p, []string{"--set", "status=Won", "L-0006"}), handlers.ErrProtectedField)

	var f fieldFlags = fieldFlags{}
	assert.Error(t, f.Set("novalue"))
}

func TestLeadsMoveAndMissingCommands(t *testing.T) {
	p, out := setupTestCLI(t)

	require.NoError(t, LeadsMissingCommand(p, []string{"L-0002", "Proposal"}))
	assert.Contains(t, out.String(), "missing: integrationReady")

	err := LeadsMoveCommand(p, []string{"L-0002", "Proposal"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "integrationReady")

	assert.Error(t, LeadsMoveCommand(p, []string{"L-0006", "Contacted"}), "contact is still Unassigned")
	require.NoError(t, LeadsUpdateCommand(p, []string{"--set", "contactPerson=Asha", "--set", "number=9800000000", "L-0006"}))

	out.Reset()
	require.NoError(t, LeadsMoveCommand(p, []string{"L-0006", "Contacted"}))
	assert.Contains(t, out.String(), "L-0006 moved to Contacted")
	assert.Contains(t, out.String(), "Send catalogue and price sheet")

	out.Reset()
	require.NoError(t, LeadsMissingCommand(p, []string{"L-0004", "Sample", "Dispatched"}))
	assert.Contains(t, out.String(), "Won → Sample Dispatched")

	assert.Error(t, LeadsMoveCommand(p, []string{"L-0005", "Won"}))
	assert.Error(t, LeadsMoveCommand(p, []string{"L-0005"}))
}

func TestLeadsHealthCommand(t *testing.T) {
	p, out := setupTestCLI(t)

	require.NoError(t, LeadsHealthCommand(p, nil))
	assert.Contains(t, out.String(), "Healthy: 3  Warning: 2  Violated: 1")
	assert.Contains(t, out.String(), "L-0003")

	out.Reset()
	require.NoError(t, LeadsHealthCommand(p, []string{"--owner", "nobody"}))
	assert.Contains(t, out.String(), "Nothing needs attention")
}

func TestRulesCommands(t *testing.T) {
	p, out := setupTestCLI(t)

	require.NoError(t, RulesListCommand(p, nil))
	assert.Contains(t, out.String(), "STAGE RULES")
	assert.Contains(t, out.String(), "Follow up on proposal")

	path := filepath.Join(t.TempDir(), "rules.json")
	require.NoError(t, RulesExportCommand(p, []string{"--output", path}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var rules models.RuleSets
	require.NoError(t, json.Unmarshal(raw, &rules))
	rules.AutoActionRules = append(rules.AutoActionRules, models.AutoActionRule{
		TriggerStage: "Negotiation", DefaultNextAction: "Share final quote", DefaultDays: 1,
	})
	raw, err = json.Marshal(rules)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0644))

	out.Reset()
	require.NoError(t, RulesImportCommand(p, []string{path}))
	assert.Contains(t, out.String(), "Rules saved to local")

	data := p.Snapshot(t.Context(), false)
	assert.Len(t, data.AutoActionRules, len(rules.AutoActionRules))

	rules.SLARules[0].ThresholdHours = -1
	raw, _ = json.Marshal(rules)
	require.NoError(t, os.WriteFile(path, raw, 0644))
	assert.Error(t, RulesImportCommand(p, []string{path}))
}

func TestSyncCommands(t *testing.T) {
	p, out := setupTestCLI(t)

	require.NoError(t, SyncRefreshCommand(p, nil))
	assert.Contains(t, out.String(), "Loaded 6 leads")
	assert.Contains(t, out.String(), "no spreadsheet configured")

	out.Reset()
	require.NoError(t, LeadsUpdateCommand(p, []string{"--set", "city=Goa", "L-0001"}))
	out.Reset()
	require.NoError(t, SyncStatusCommand(p, nil))
	assert.Contains(t, out.String(), "Writes go to: local")
	assert.Contains(t, out.String(), "L-0001")

	out.Reset()
	require.NoError(t, SyncSchemaCommand(p, nil))
	assert.Contains(t, out.String(), "No sheet header seen yet")
	assert.Contains(t, out.String(), "Company Name")
}

func TestVizCommands(t *testing.T) {
	p, out := setupTestCLI(t)

	require.NoError(t, VizPipelineCommand(p, nil))
	assert.Contains(t, out.String(), "digraph")

	path := filepath.Join(t.TempDir(), "pipeline.svg")
	require.NoError(t, VizPipelineCommand(p, []string{"--output", path}))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "<svg")

	assert.Error(t, VizPipelineCommand(p, []string{"--format", "pdf"}))

	out.Reset()
	require.NoError(t, VizDashboardCommand(p, nil))
	assert.Contains(t, out.String(), "PIPELINE OVERVIEW")
}

func TestNewMCPServer(t *testing.T) {
	p, _ := setupTestCLI(t)
	assert.NotNil(t, NewMCPServer(p, "test"))
}
