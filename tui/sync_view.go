// ABOUTME: TUI view for sheet sync status
// ABOUTME: Shows the write target, tier states and recent writes; r forces a refresh
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/leadsheet/db"
)

var (
	syncHeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Underline(true)

	syncServiceStyle = lipgloss.NewStyle().
				Bold(true).
				Width(12)

	syncIdleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	syncErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	syncMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Italic(true)
)

func (m Model) renderSyncView() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("SHEET SYNC"))
	s.WriteString("\n")

	if m.status == nil {
		s.WriteString("Loading status...\n")
		s.WriteString(m.renderSyncHelp())
		return s.String()
	}
	st := m.status

	spreadsheet := st.SpreadsheetID
	if spreadsheet == "" {
		spreadsheet = "(none)"
	}
	target := db.TargetLocal
	if st.HasSession {
		target = db.TargetRemote
	}
	fmt.Fprintf(&s, "Spreadsheet:  %s\n", spreadsheet)
	fmt.Fprintf(&s, "Session:      %s\n", onOff(st.HasSession))
	fmt.Fprintf(&s, "API key:      %s\n", onOff(st.HasAPIKey))
	fmt.Fprintf(&s, "Writes go to: %s\n", target)
	cache := "empty"
	if st.CacheAge > 0 {
		cache = fmt.Sprintf("%s old", st.CacheAge.Round(time.Second))
		if !st.CacheFresh {
			cache += " (stale)"
		}
	}
	fmt.Fprintf(&s, "Cache:        %s\n", cache)
	fmt.Fprintf(&s, "Not in sheet: %d\n\n", st.PendingLeads)

	s.WriteString(syncHeaderStyle.Render("TIERS"))
	s.WriteString("\n")
	if len(st.SyncStates) == 0 {
		s.WriteString(syncMessageStyle.Render("no loads recorded yet"))
		s.WriteString("\n")
	}
	for _, state := range st.SyncStates {
		s.WriteString(syncServiceStyle.Render(state.Service))
		switch state.Status {
		case db.SyncStatusError:
			msg := "error"
			if state.ErrorMessage != nil {
				msg += ": " + *state.ErrorMessage
			}
			s.WriteString(syncErrorStyle.Render(msg))
		default:
			s.WriteString(syncIdleStyle.Render(state.Status))
		}
		if state.LastSyncTime != nil {
			s.WriteString(syncMessageStyle.Render("  " + state.LastSyncTime.Format("2006-01-02 15:04")))
		}
		s.WriteString("\n")
	}

	s.WriteString("\n")
	s.WriteString(syncHeaderStyle.Render("RECENT WRITES"))
	s.WriteString("\n")
	if len(st.RecentWrites) == 0 {
		s.WriteString(syncMessageStyle.Render("no writes yet"))
		s.WriteString("\n")
	}
	for _, w := range st.RecentWrites {
		line := fmt.Sprintf("%-10s %-8s %-7s row %-4d %s", w.LeadID, w.Op, w.Target, w.RowIndex, w.CreatedAt.Format("01-02 15:04"))
		if w.ErrorMessage != "" {
			s.WriteString(syncErrorStyle.Render(line + "  " + w.ErrorMessage))
		} else {
			s.WriteString(line)
		}
		s.WriteString("\n")
	}

	s.WriteString(m.renderSyncHelp())
	return s.String()
}

func onOff(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func (m Model) renderSyncHelp() string {
	help := []string{
		"r: Refresh from sheet",
		"Esc: Back",
		"q: Quit",
	}
	return helpStyle.Render(strings.Join(help, " • "))
}

func (m Model) handleSyncKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "esc" {
		m.viewMode = ViewBoard
	}
	return m, nil
}
