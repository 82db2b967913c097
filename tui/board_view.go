package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/leadsheet/models"
)

const minColumnWidth = 22

var (
	columnHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Padding(0, 1)

	columnActiveHeaderStyle = columnHeaderStyle.
				Background(lipgloss.Color("235")).
				Foreground(lipgloss.Color("170"))

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)

	cardMutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))
)

func (m Model) renderBoardView() string {
	var s strings.Builder

	title := "LEADSHEET PIPELINE"
	if m.data != nil {
		title += fmt.Sprintf("  •  %s", m.data.DataSource)
		if m.data.ReadOnly {
			title += " (read-only)"
		}
	}
	s.WriteString(titleStyle.Render(title))
	s.WriteString("\n")

	if len(m.stages) == 0 {
		s.WriteString("No stages configured\n")
		return s.String()
	}

	first, last, width := m.visibleColumns()
	var cols []string
	for c := first; c < last; c++ {
		cols = append(cols, m.renderColumn(c, width))
	}
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cols...))
	s.WriteString("\n")

	if first > 0 || last < len(m.stages) {
		s.WriteString(cardMutedStyle.Render(fmt.Sprintf("stages %d-%d of %d", first+1, last, len(m.stages))))
		s.WriteString("\n")
	}

	s.WriteString(m.renderBoardHelp())
	return s.String()
}

// visibleColumns picks the window of stage columns that fits the terminal
// and contains the selected column.
func (m Model) visibleColumns() (first, last, width int) {
	n := len(m.stages)
	fit := m.width / minColumnWidth
	if fit < 1 {
		fit = 1
	}
	if fit > n {
		fit = n
	}
	width = m.width / fit

	first = m.col - fit/2
	if first+fit > n {
		first = n - fit
	}
	if first < 0 {
		first = 0
	}
	return first, first + fit, width
}

func (m Model) maxCards() int {
	n := (m.height - 8) / 4
	if n < 1 {
		return 1
	}
	return n
}

func (m Model) renderColumn(c, width int) string {
	stage := m.stages[c]
	leads := m.columns[stage]
	active := c == m.col

	header := fmt.Sprintf("%s (%d)", truncate(stage, width-8), len(leads))
	var parts []string
	if active {
		parts = append(parts, columnActiveHeaderStyle.Width(width-1).Render(header))
	} else {
		parts = append(parts, columnHeaderStyle.Width(width-1).Render(header))
	}

	start := 0
	limit := m.maxCards()
	if active && m.row >= limit {
		start = m.row - limit + 1
	}
	if start > 0 {
		parts = append(parts, cardMutedStyle.Render(fmt.Sprintf("  ↑ %d more", start)))
	}
	for r := start; r < len(leads) && r < start+limit; r++ {
		parts = append(parts, m.renderCard(leads[r], width, active && r == m.row))
	}
	if rest := len(leads) - start - limit; rest > 0 {
		parts = append(parts, cardMutedStyle.Render(fmt.Sprintf("  ↓ %d more", rest)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) renderCard(lead models.Lead, width int, selected bool) string {
	inner := width - 5
	name := lead.CompanyName
	if name == "" {
		name = lead.ContactPerson
	}
	lines := []string{
		truncate(name, inner),
		cardMutedStyle.Render(truncate(fmt.Sprintf("%s • %s", lead.LeadID, dashIfEmpty(lead.Priority)), inner)),
	}
	if lead.SLAStatus != "" {
		lines = append(lines, lipgloss.NewStyle().Foreground(healthColor(lead.SLAHealth)).Render(truncate(lead.SLAStatus, inner)))
	}

	style := cardStyle.Width(width - 3).BorderForeground(healthColor(lead.SLAHealth))
	if selected {
		style = style.Bold(true).Border(lipgloss.ThickBorder()).Background(lipgloss.Color("235"))
	}
	return style.Render(strings.Join(lines, "\n"))
}

func (m Model) renderBoardHelp() string {
	help := []string{
		"←/→: Stage",
		"↑/↓: Lead",
		">: Move forward",
		"<: Move back",
		"Enter: Details",
		"e: Edit",
		"Tab: List",
		"d: Dashboard",
		"s: Sync",
		"r: Refresh",
		"q: Quit",
	}
	return helpStyle.Render(strings.Join(help, " • "))
}

func (m Model) handleBoardKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "left", "h":
		if m.col > 0 {
			m.col--
			m.row = 0
		}
	case "right", "l":
		if m.col < len(m.stages)-1 {
			m.col++
			m.row = 0
		}
	case "up", "k":
		if m.row > 0 {
			m.row--
		}
	case "down", "j":
		if m.row < len(m.currentColumn())-1 {
			m.row++
		}
	case ">", ".":
		if lead, ok := m.selectedLead(); ok {
			return m, m.stepCmd(lead.LeadID, 1)
		}
	case "<", ",":
		if lead, ok := m.selectedLead(); ok {
			return m, m.stepCmd(lead.LeadID, -1)
		}
	case "enter":
		if _, ok := m.selectedLead(); ok {
			m.viewMode = ViewDetail
		}
	case "e":
		if lead, ok := m.selectedLead(); ok {
			m.startEdit(lead)
			m.viewMode = ViewEdit
		}
	case "tab":
		m.viewMode = ViewList
	}
	return m, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 1 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
