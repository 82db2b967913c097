package viz

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/leadsheet/models"
	"github.com/harperreed/leadsheet/workflow"
)

func testData() *models.SystemData {
	return &models.SystemData{
		Leads: []models.Lead{
			{LeadID: "L-1", CompanyName: "Acme", Status: "New", EstimatedQty: 100, NextActionDate: "2026-03-01"},
			{LeadID: "L-2", CompanyName: "Globex", Status: "new", EstimatedQty: 20},
			{LeadID: "L-3", CompanyName: "Initech", Status: "Won"},
			{LeadID: "L-4", CompanyName: "Hooli", Status: "Parked"},
		},
		RuleSets: models.RuleSets{
			StageRules: []models.StageRule{{FromStage: "Proposal", ToStage: "Contacted", Forbidden: true}},
		},
	}
}

func findEdge(edges []Edge, from, to string) (Edge, bool) {
	for _, e := range edges {
		if e.From == from && e.To == to {
			return e, true
		}
	}
	return Edge{}, false
}

func TestStageCounts(t *testing.T) {
	stages, counts := StageCounts(testData())

	assert.Equal(t, append(append([]string(nil), models.DefaultStages...), "Parked"), stages)
	assert.Equal(t, 2, counts["New"])
	assert.Equal(t, 1, counts["Won"])
	assert.Equal(t, 1, counts["Parked"])
	assert.Equal(t, 0, counts["Lost"])
}

func TestPipelineEdges(t *testing.T) {
	data := testData()
	edges := PipelineEdges(data.Stages(), workflow.ForbiddenMap(data.StageRules))

	e, ok := findEdge(edges, "New", "Contacted")
	require.True(t, ok)
	assert.False(t, e.Forbidden)

	e, ok = findEdge(edges, "Sample Dispatched", "Won")
	require.True(t, ok)
	assert.False(t, e.Forbidden)

	_, ok = findEdge(edges, "Qualified", "Lost")
	assert.True(t, ok, "every open stage can drop to Lost")

	for _, pair := range [][2]string{{"Won", "New"}, {"Lost", "New"}, {"Proposal", "Contacted"}} {
		e, ok = findEdge(edges, pair[0], pair[1])
		require.True(t, ok, "%s -> %s should be drawn", pair[0], pair[1])
		assert.True(t, e.Forbidden, "%s -> %s should be forbidden", pair[0], pair[1])
	}

	_, ok = findEdge(edges, "Won", "Won")
	assert.False(t, ok)
}

func TestPipelineEdgesWildcard(t *testing.T) {
	forbidden := workflow.ForbiddenMap([]models.StageRule{{FromStage: "*", ToStage: "New", Forbidden: true}})
	edges := PipelineEdges([]string{"New", "Contacted", "Won"}, forbidden)

	e, ok := findEdge(edges, "Contacted", "New")
	require.True(t, ok)
	assert.True(t, e.Forbidden)
}

func TestGeneratePipelineGraph(t *testing.T) {
	dot, err := NewGraphGenerator(testData()).GeneratePipelineGraph(t.Context())
	require.NoError(t, err)

	assert.Contains(t, dot, "digraph")
	assert.Contains(t, dot, "2 leads")
	assert.Contains(t, dot, "red")
	assert.Contains(t, dot, "dashed")
}

func TestParseFormat(t *testing.T) {
	for _, name := range []string{"", "dot", ".svg", "PNG"} {
		_, err := ParseFormat(name)
		assert.NoError(t, err, name)
	}
	_, err := ParseFormat("pdf")
	assert.Error(t, err)
}

func TestDashboard(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	stats := GenerateDashboardStats(testData(), now)

	assert.Equal(t, 4, stats.TotalLeads)
	assert.Equal(t, 3, stats.OpenLeads)
	assert.Equal(t, 1, stats.WonLeads)
	assert.Equal(t, 120, stats.PipelineByStage["New"].Quantity)
	require.Len(t, stats.Overdue, 1)
	assert.Equal(t, "L-1", stats.Overdue[0].LeadID)

	out := RenderDashboard(stats)
	assert.True(t, strings.Contains(out, "PIPELINE OVERVIEW"))
	assert.Contains(t, out, "NEEDS ATTENTION")
	assert.Contains(t, out, "Acme")
}
