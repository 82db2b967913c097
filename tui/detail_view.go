package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/leadsheet/handlers"
	"github.com/harperreed/leadsheet/models"
	"github.com/harperreed/leadsheet/workflow"
)

var (
	detailLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245")).
				Width(20)

	detailSectionStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				MarginTop(1)
)

func (m Model) renderDetailView() string {
	lead, ok := m.selectedLead()
	if !ok {
		return "No lead selected"
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render(fmt.Sprintf("%s  •  %s", lead.LeadID, dashIfEmpty(lead.CompanyName))))
	s.WriteString("\n")

	h := workflow.DetermineLeadHealth(lead, m.data.SLARules, m.pipeline.Now())
	s.WriteString(lipgloss.NewStyle().Foreground(healthColor(h.Status)).Bold(true).
		Render(fmt.Sprintf("%s: %s", h.Label, h.Message)))
	s.WriteString("\n")

	for _, f := range models.LeadFields {
		if f.Key == "slaStatus" || f.Key == "slaHealth" {
			continue
		}
		value := f.Value(&lead)
		if value == "" || value == "0" {
			continue
		}
		s.WriteString(detailLabelStyle.Render(f.Header))
		s.WriteString(value)
		s.WriteString("\n")
	}
	for header, value := range lead.Extra {
		if value == "" {
			continue
		}
		s.WriteString(detailLabelStyle.Render(header))
		s.WriteString(value)
		s.WriteString("\n")
	}

	s.WriteString(m.renderNextStage(lead))
	s.WriteString(m.renderDetailHelp())
	return s.String()
}

// renderNextStage previews what the next forward move would need.
func (m Model) renderNextStage(lead models.Lead) string {
	next, ok := handlers.AdjacentStage(m.data.Stages(), lead.CurrentStage(), 1)
	if !ok {
		return ""
	}
	check := handlers.CheckMove(lead, next, m.data)

	var s strings.Builder
	s.WriteString(detailSectionStyle.Render("NEXT: " + next))
	s.WriteString("\n")
	if check.Allowed {
		s.WriteString(messageStyle.Render("ready to move"))
	} else {
		s.WriteString(errorStyle.Render(check.Reason))
	}
	s.WriteString("\n")
	return s.String()
}

func (m Model) renderDetailHelp() string {
	help := []string{
		">: Move forward",
		"<: Move back",
		"e: Edit",
		"Esc: Back",
		"q: Quit",
	}
	return helpStyle.Render(strings.Join(help, " • "))
}

func (m Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	lead, ok := m.selectedLead()
	switch msg.String() {
	case "esc":
		m.viewMode = ViewBoard
	case ">", ".":
		if ok {
			return m, m.stepCmd(lead.LeadID, 1)
		}
	case "<", ",":
		if ok {
			return m, m.stepCmd(lead.LeadID, -1)
		}
	case "e":
		if ok {
			m.startEdit(lead)
			m.viewMode = ViewEdit
		}
	}
	return m, nil
}
