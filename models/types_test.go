// ABOUTME: Tests for lead pipeline data models
// ABOUTME: Covers field table access, cloning, and stage helpers
package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLeadDefaults(t *testing.T) {
	lead := NewLead()

	assert.Equal(t, StageNew, lead.Status)
	assert.Equal(t, StageNew, lead.Stage)
	assert.Equal(t, -1, lead.RowIndex, "unpersisted leads carry no row index")
}

func TestNewLeadIDUnique(t *testing.T) {
	a := NewLeadID()
	b := NewLeadID()

	assert.True(t, strings.HasPrefix(a, "L-"))
	assert.NotEqual(t, a, b)
}

func TestNewLeadIDMonotonic(t *testing.T) {
	ids := make([]string, 500)
	for i := range ids {
		ids[i] = NewLeadID()
	}
	for i := 1; i < len(ids); i++ {
		require.Less(t, ids[i-1], ids[i], "ids sort in creation order")
	}
}

func TestLeadGetSet(t *testing.T) {
	var lead Lead

	require.True(t, lead.Set("platformType", "Shopify"))
	require.True(t, lead.Set("estimatedQty", "120"))

	v, ok := lead.Get("platformType")
	require.True(t, ok)
	assert.Equal(t, "Shopify", v)
	assert.Equal(t, 120, lead.EstimatedQty)

	_, ok = lead.Get("noSuchField")
	assert.False(t, ok)
	assert.False(t, lead.Set("noSuchField", "x"))
}

func TestIntegerFieldCoercion(t *testing.T) {
	var lead Lead

	lead.Set("estimatedQty", "not a number")
	assert.Equal(t, 0, lead.EstimatedQty)

	lead.Set("estimatedQty", "75.0")
	assert.Equal(t, 75, lead.EstimatedQty)
}

func TestLeadFieldsUnique(t *testing.T) {
	keys := map[string]bool{}
	headers := map[string]bool{}
	for _, f := range LeadFields {
		assert.False(t, keys[f.Key], "duplicate key %s", f.Key)
		assert.False(t, headers[f.Header], "duplicate header %s", f.Header)
		keys[f.Key] = true
		headers[f.Header] = true
	}
}

func TestSetStatusKeepsStageInSync(t *testing.T) {
	lead := NewLead()
	lead.SetStatus(StageQualified)

	assert.Equal(t, StageQualified, lead.Status)
	assert.Equal(t, StageQualified, lead.Stage)
}

func TestIsTerminalStage(t *testing.T) {
	assert.True(t, IsTerminalStage("Won"))
	assert.True(t, IsTerminalStage("lost"))
	assert.False(t, IsTerminalStage("Negotiation"))
}

func TestSystemDataCloneIsDeep(t *testing.T) {
	data := &SystemData{
		Leads: []Lead{{LeadID: "L1", Extra: map[string]string{"Notes 2": "a"}}},
		RuleSets: RuleSets{
			SLARules: []SLARule{{Stage: "New", ThresholdHours: 24}},
		},
	}

	clone := data.Clone()
	clone.Leads[0].Extra["Notes 2"] = "changed"
	clone.Leads[0].CompanyName = "Other"
	clone.SLARules[0].ThresholdHours = 1

	assert.Equal(t, "a", data.Leads[0].Extra["Notes 2"])
	assert.Empty(t, data.Leads[0].CompanyName)
	assert.Equal(t, float64(24), data.SLARules[0].ThresholdHours)
}

func TestSystemDataStagesFallback(t *testing.T) {
	data := &SystemData{}
	assert.Equal(t, DefaultStages, data.Stages())

	data.Options.Stages = []string{"New", "Won"}
	assert.Equal(t, []string{"New", "Won"}, data.Stages())
}

func TestFindLead(t *testing.T) {
	data := &SystemData{Leads: []Lead{{LeadID: "A"}, {LeadID: "B", CompanyName: "Beta"}}}

	lead, ok := data.FindLead("B")
	require.True(t, ok)
	assert.Equal(t, "Beta", lead.CompanyName)

	_, ok = data.FindLead("C")
	assert.False(t, ok)
}
