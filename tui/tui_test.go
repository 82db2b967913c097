// ABOUTME: Tests for the stage board model
// ABOUTME: Drives Update with key messages against a local-only seeded pipeline
package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/leadsheet/handlers"
	"github.com/harperreed/leadsheet/models"
)

var testNow = time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// send applies msg and runs any follow-up commands to completion.
func send(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	for msg != nil {
		next, cmd := m.Update(msg)
		m = next.(Model)
		if cmd == nil {
			break
		}
		msg = cmd()
	}
	return m
}

func loadedModel(t *testing.T) (Model, *handlers.Pipeline) {
	t.Helper()
	p := handlers.NewTestPipeline(t, testNow)
	m := NewModel(t.Context(), p)
	m = send(t, m, m.Init()())
	require.False(t, m.loading)
	return m, p
}

func TestBoardColumns(t *testing.T) {
	m, _ := loadedModel(t)

	require.Len(t, m.stages, 8)
	assert.Equal(t, models.StageNew, m.stages[0])
	require.Len(t, m.columns[models.StageNew], 1)
	assert.Equal(t, "L-0006", m.columns[models.StageNew][0].LeadID)

	view := m.View()
	assert.Contains(t, view, "LEADSHEET PIPELINE")
	assert.Contains(t, view, "Monsoon Merch")
}

func TestBoardNavigation(t *testing.T) {
	m, _ := loadedModel(t)

	m = send(t, m, key("l"))
	m = send(t, m, key("l"))
	lead, ok := m.selectedLead()
	require.True(t, ok)
	assert.Equal(t, "L-0002", lead.LeadID)

	m = send(t, m, key("h"))
	lead, _ = m.selectedLead()
	assert.Equal(t, "L-0003", lead.LeadID)

	for i := 0; i < 20; i++ {
		m = send(t, m, key("l"))
	}
	assert.Equal(t, len(m.stages)-1, m.col)
}

func TestBoardMoveBlockedByMissingFields(t *testing.T) {
	m, _ := loadedModel(t)
	m.col = 2

	m = send(t, m, key(">"))
	require.Error(t, m.err)
	assert.Contains(t, m.View(), "missing integrationReady")
	lead, _ := m.selectedLead()
	assert.Equal(t, models.StageQualified, lead.CurrentStage())
}

func TestBoardMoveForward(t *testing.T) {
	m, p := loadedModel(t)
	m.col = 4

	m = send(t, m, key(">"))
	require.NoError(t, m.err)
	assert.Contains(t, m.message, "L-0001 moved to Sample Dispatched")
	assert.Contains(t, m.message, "Confirm sample delivery")

	assert.Equal(t, 5, m.col, "selection follows the moved lead")
	lead, ok := m.selectedLead()
	require.True(t, ok)
	assert.Equal(t, "L-0001", lead.LeadID)

	stored, _, err := p.Lead(t.Context(), "L-0001")
	require.NoError(t, err)
	assert.Equal(t, models.StageSampleDispatched, stored.Status)

	m = send(t, m, key("<"))
	require.NoError(t, m.err)
	assert.Equal(t, 4, m.col)
}

func TestEditSavesFields(t *testing.T) {
	m, p := loadedModel(t)

	m = send(t, m, key("e"))
	require.Equal(t, ViewEdit, m.viewMode)
	require.Len(t, m.formInputs, len(editFields))

	m.formInputs[2].SetValue("call after lunch")
	m = send(t, m, key("enter"))
	require.NoError(t, m.err)
	assert.Equal(t, ViewBoard, m.viewMode)

	lead, _, err := p.Lead(t.Context(), "L-0006")
	require.NoError(t, err)
	assert.Equal(t, "call after lunch", lead.Remarks)
}

func TestDetailSyncAndDashboardViews(t *testing.T) {
	m, _ := loadedModel(t)
	m.col = 2

	m = send(t, m, key("enter"))
	require.Equal(t, ViewDetail, m.viewMode)
	view := m.View()
	assert.Contains(t, view, "Loop Threads")
	assert.Contains(t, view, "NEXT: Proposal")
	assert.Contains(t, view, "integrationReady")

	m = send(t, m, key("esc"))
	m = send(t, m, key("s"))
	require.Equal(t, ViewSync, m.viewMode)
	require.NotNil(t, m.status)
	assert.Contains(t, m.View(), "Writes go to: local")

	m = send(t, m, key("d"))
	assert.Contains(t, m.View(), "PIPELINE OVERVIEW")

	m = send(t, m, key("esc"))
	m = send(t, m, key("tab"))
	require.Equal(t, ViewList, m.viewMode)
	assert.Contains(t, m.View(), "ALL LEADS")
}
