package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
)

func (m Model) renderListView() string {
	var s strings.Builder

	// Title
	s.WriteString(titleStyle.Render("ALL LEADS"))
	s.WriteString("\n")

	// Table
	s.WriteString(m.renderLeadsTable())
	s.WriteString("\n")

	// Help
	s.WriteString(m.renderListHelp())

	return s.String()
}

func (m Model) renderLeadsTable() string {
	if m.data == nil || len(m.data.Leads) == 0 {
		return "No leads found"
	}

	columns := []table.Column{
		{Title: "ID", Width: 12},
		{Title: "Company", Width: 28},
		{Title: "Stage", Width: 18},
		{Title: "Priority", Width: 8},
		{Title: "Owner", Width: 10},
		{Title: "Next", Width: 10},
		{Title: "Health", Width: 10},
	}

	var rows []table.Row
	for _, lead := range m.data.Leads {
		rows = append(rows, table.Row{
			lead.LeadID,
			lead.CompanyName,
			lead.CurrentStage(),
			lead.Priority,
			lead.YdsPoc,
			lead.NextActionDate,
			lead.SLAStatus,
		})
	}

	height := m.height - 8
	if height < 3 {
		height = 3
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(height),
	)

	// Set selected row
	if m.listRow < len(rows) {
		t.SetCursor(m.listRow)
	}

	return t.View()
}

func (m Model) renderListHelp() string {
	help := []string{
		"↑/↓: Navigate",
		"Enter: View details",
		"Tab/Esc: Board",
		"q: Quit",
	}
	count := 0
	if m.data != nil {
		count = len(m.data.Leads)
	}
	return helpStyle.Render(fmt.Sprintf("%d leads • %s", count, strings.Join(help, " • ")))
}

func (m Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.listRow > 0 {
			m.listRow--
		}
	case "down", "j":
		if m.data != nil && m.listRow < len(m.data.Leads)-1 {
			m.listRow++
		}
	case "enter":
		if lead, ok := m.selectedLead(); ok {
			m.focusID = lead.LeadID
			m.setData(m.data)
			m.viewMode = ViewDetail
		}
	case "tab", "esc":
		m.viewMode = ViewBoard
	}

	return m, nil
}
