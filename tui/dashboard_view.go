package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/leadsheet/viz"
)

func (m Model) renderDashboardView() string {
	var s strings.Builder

	if m.data == nil {
		s.WriteString("No data loaded\n")
	} else {
		stats := viz.GenerateDashboardStats(m.data, m.pipeline.Now())
		s.WriteString(lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Render(viz.RenderDashboard(stats)))
	}

	s.WriteString("\n")
	s.WriteString(helpStyle.Render(strings.Join([]string{"Esc: Back", "r: Refresh", "q: Quit"}, " • ")))
	return s.String()
}
