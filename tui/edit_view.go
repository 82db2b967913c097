package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/harperreed/leadsheet/models"
)

// editFields are the lead fields editable from the board.
var editFields = []struct {
	key         string
	placeholder string
}{
	{"nextAction", "Next Action"},
	{"nextActionDate", "Next Action Date (YYYY-MM-DD)"},
	{"remarks", "Remarks"},
	{"priority", "Priority"},
	{"ydsPoc", "Owner"},
}

func (m *Model) startEdit(lead models.Lead) {
	m.editID = lead.LeadID
	m.focusIndex = 0
	m.formInputs = make([]textinput.Model, len(editFields))
	for i, f := range editFields {
		input := textinput.New()
		input.Placeholder = f.placeholder
		input.Prompt = f.placeholder + ": "
		input.CharLimit = 200
		input.Width = 50
		if value, ok := lead.Get(f.key); ok {
			input.SetValue(value)
		}
		m.formInputs[i] = input
	}
	m.updateFormFocus()
}

func (m Model) renderEditView() string {
	var s strings.Builder

	// Title
	s.WriteString(titleStyle.Render("EDIT " + m.editID))
	s.WriteString("\n\n")

	// Form fields
	for i, input := range m.formInputs {
		if i == m.focusIndex {
			s.WriteString("> ")
		} else {
			s.WriteString("  ")
		}
		s.WriteString(input.View())
		s.WriteString("\n")
	}

	s.WriteString("\n")

	// Help
	s.WriteString(m.renderEditHelp())

	return s.String()
}

func (m Model) renderEditHelp() string {
	help := []string{
		"Tab: Next field",
		"Enter: Save",
		"Esc: Cancel",
	}
	return helpStyle.Render(strings.Join(help, " • "))
}

func (m Model) handleEditKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.viewMode = ViewBoard
		m.formInputs = nil
		return m, nil
	case "tab", "down":
		m.focusIndex = (m.focusIndex + 1) % len(m.formInputs)
		m.updateFormFocus()
		return m, nil
	case "shift+tab", "up":
		m.focusIndex = (m.focusIndex - 1 + len(m.formInputs)) % len(m.formInputs)
		m.updateFormFocus()
		return m, nil
	case "enter":
		return m, m.saveCmd(m.editID, m.formValues())
	}

	// Update focused input
	var cmd tea.Cmd
	m.formInputs[m.focusIndex], cmd = m.formInputs[m.focusIndex].Update(msg)
	return m, cmd
}

func (m *Model) updateFormFocus() {
	for i := range m.formInputs {
		if i == m.focusIndex {
			m.formInputs[i].Focus()
		} else {
			m.formInputs[i].Blur()
		}
	}
}

func (m Model) formValues() map[string]string {
	fields := make(map[string]string, len(m.formInputs))
	for i, input := range m.formInputs {
		fields[editFields[i].key] = strings.TrimSpace(input.Value())
	}
	return fields
}

func (m Model) saveCmd(leadID string, fields map[string]string) tea.Cmd {
	return func() tea.Msg {
		lead, err := m.pipeline.Update(m.ctx, leadID, fields)
		if err != nil {
			return errMsg{err: err}
		}
		return leadSavedMsg{lead: lead}
	}
}
