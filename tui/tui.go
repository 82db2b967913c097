// ABOUTME: Terminal User Interface using bubbletea framework
// ABOUTME: Provides a full-screen stage board for moving and editing leads
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/leadsheet/handlers"
	"github.com/harperreed/leadsheet/models"
	"github.com/harperreed/leadsheet/sync"
	"github.com/harperreed/leadsheet/viz"
	"github.com/harperreed/leadsheet/workflow"
)

// ViewMode represents the current TUI view
type ViewMode int

const (
	ViewBoard ViewMode = iota
	ViewList
	ViewDetail
	ViewEdit
	ViewSync
	ViewDashboard
)

// Messages produced by the pipeline commands.
type (
	dataLoadedMsg struct {
		data *models.SystemData
	}
	leadMovedMsg struct {
		lead models.Lead
	}
	leadSavedMsg struct {
		lead models.Lead
	}
	statusLoadedMsg struct {
		status *sync.Status
	}
	errMsg struct {
		err error
	}
)

// Model is the main bubbletea model
type Model struct {
	ctx      context.Context
	pipeline *handlers.Pipeline
	viewMode ViewMode

	data    *models.SystemData
	stages  []string
	columns map[string][]models.Lead

	// Board state
	col int
	row int

	// List view state
	listRow int

	// Lead to select after the next load
	focusID string

	// Edit view state
	formInputs []textinput.Model
	focusIndex int
	editID     string

	// Sync view state
	status *sync.Status

	// UI state
	loading bool
	message string
	err     error
	width   int
	height  int
}

// NewModel creates a new TUI model
func NewModel(ctx context.Context, pipeline *handlers.Pipeline) Model {
	return Model{
		ctx:      ctx,
		pipeline: pipeline,
		viewMode: ViewBoard,
		columns:  map[string][]models.Lead{},
		loading:  true,
		width:    120,
		height:   30,
	}
}

func (m Model) Init() tea.Cmd {
	return m.loadCmd(false)
}

func (m Model) loadCmd(refresh bool) tea.Cmd {
	return func() tea.Msg {
		return dataLoadedMsg{data: m.pipeline.Snapshot(m.ctx, refresh)}
	}
}

func (m Model) stepCmd(leadID string, delta int) tea.Cmd {
	return func() tea.Msg {
		lead, err := m.pipeline.Step(m.ctx, leadID, delta)
		if err != nil {
			return errMsg{err: err}
		}
		return leadMovedMsg{lead: lead}
	}
}

func (m Model) statusCmd() tea.Cmd {
	return func() tea.Msg {
		status, err := m.pipeline.Engine().Status(m.ctx)
		if err != nil {
			return errMsg{err: err}
		}
		return statusLoadedMsg{status: status}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case dataLoadedMsg:
		m.loading = false
		m.setData(msg.data)
		if m.viewMode == ViewSync {
			return m, m.statusCmd()
		}
		return m, nil
	case leadMovedMsg:
		m.err = nil
		m.message = fmt.Sprintf("✓ %s moved to %s", msg.lead.LeadID, msg.lead.CurrentStage())
		if msg.lead.NextAction != "" {
			m.message += fmt.Sprintf(" • next: %s (%s)", msg.lead.NextAction, msg.lead.NextActionDate)
		}
		m.focusID = msg.lead.LeadID
		return m, m.loadCmd(false)
	case leadSavedMsg:
		m.err = nil
		m.message = fmt.Sprintf("✓ %s saved", msg.lead.LeadID)
		m.focusID = msg.lead.LeadID
		m.viewMode = ViewBoard
		m.formInputs = nil
		return m, m.loadCmd(false)
	case statusLoadedMsg:
		m.status = msg.status
		return m, nil
	case errMsg:
		m.message = ""
		m.err = msg.err
		return m, nil
	}
	return m, nil
}

// setData groups leads into stage columns and restores the selection.
func (m *Model) setData(data *models.SystemData) {
	m.data = data
	m.stages, _ = viz.StageCounts(data)
	m.columns = make(map[string][]models.Lead, len(m.stages))
	for _, lead := range data.Leads {
		stage := lead.CurrentStage()
		for _, s := range m.stages {
			if strings.EqualFold(s, stage) {
				m.columns[s] = append(m.columns[s], lead)
				break
			}
		}
	}

	if m.focusID != "" {
		for c, s := range m.stages {
			for r, lead := range m.columns[s] {
				if lead.LeadID == m.focusID {
					m.col, m.row = c, r
				}
			}
		}
		m.focusID = ""
	}
	m.clampSelection()
}

func (m *Model) clampSelection() {
	if m.col >= len(m.stages) {
		m.col = len(m.stages) - 1
	}
	if m.col < 0 {
		m.col = 0
	}
	n := len(m.currentColumn())
	if m.row >= n {
		m.row = n - 1
	}
	if m.row < 0 {
		m.row = 0
	}
}

func (m Model) currentColumn() []models.Lead {
	if m.col < 0 || m.col >= len(m.stages) {
		return nil
	}
	return m.columns[m.stages[m.col]]
}

// selectedLead returns the lead under the cursor in the current view.
func (m Model) selectedLead() (models.Lead, bool) {
	if m.viewMode == ViewList {
		if m.data == nil || m.listRow >= len(m.data.Leads) {
			return models.Lead{}, false
		}
		return m.data.Leads[m.listRow], true
	}
	leads := m.currentColumn()
	if m.row < 0 || m.row >= len(leads) {
		return models.Lead{}, false
	}
	return leads[m.row], true
}

func (m Model) View() string {
	if m.loading {
		return titleStyle.Render("LEADSHEET") + "\n\nLoading pipeline..."
	}

	var body string
	switch m.viewMode {
	case ViewBoard:
		body = m.renderBoardView()
	case ViewList:
		body = m.renderListView()
	case ViewDetail:
		body = m.renderDetailView()
	case ViewEdit:
		body = m.renderEditView()
	case ViewSync:
		body = m.renderSyncView()
	case ViewDashboard:
		body = m.renderDashboardView()
	}
	return body + "\n" + m.renderStatusLine()
}

func (m Model) renderStatusLine() string {
	switch {
	case m.err != nil:
		return errorStyle.Render("✗ " + describeError(m.err))
	case m.message != "":
		return messageStyle.Render(m.message)
	}
	return ""
}

// describeError turns validation failures into short board feedback.
func describeError(err error) string {
	var verr *workflow.ValidationError
	var terr *workflow.TransitionError
	switch {
	case errors.As(err, &verr):
		return fmt.Sprintf("cannot move to %s: missing %s", verr.Stage, strings.Join(verr.Missing, ", "))
	case errors.As(err, &terr):
		return fmt.Sprintf("moving from %s to %s is not allowed", terr.From, terr.To)
	}
	return err.Error()
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.viewMode == ViewEdit {
		return m.handleEditKeys(msg)
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "r":
		m.loading = true
		m.message = ""
		m.err = nil
		if lead, ok := m.selectedLead(); ok {
			m.focusID = lead.LeadID
		}
		return m, m.loadCmd(true)
	case "s":
		m.viewMode = ViewSync
		return m, m.statusCmd()
	case "d":
		m.viewMode = ViewDashboard
		return m, nil
	}

	// Delegate to view-specific handlers
	switch m.viewMode {
	case ViewBoard:
		return m.handleBoardKeys(msg)
	case ViewList:
		return m.handleListKeys(msg)
	case ViewDetail:
		return m.handleDetailKeys(msg)
	case ViewSync:
		return m.handleSyncKeys(msg)
	case ViewDashboard:
		if msg.String() == "esc" {
			m.viewMode = ViewBoard
		}
	}

	return m, nil
}

// Run starts the board full-screen.
func Run(ctx context.Context, pipeline *handlers.Pipeline) error {
	p := tea.NewProgram(NewModel(ctx, pipeline), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			MarginBottom(1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	messageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	healthyColor  = lipgloss.Color("42")
	warningColor  = lipgloss.Color("214")
	violatedColor = lipgloss.Color("196")
)

func healthColor(health string) lipgloss.Color {
	switch health {
	case workflow.HealthViolated:
		return violatedColor
	case workflow.HealthWarning:
		return warningColor
	}
	return healthyColor
}
