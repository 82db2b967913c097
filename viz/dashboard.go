// ABOUTME: Terminal dashboard statistics and rendering
// ABOUTME: Provides an ASCII pipeline overview with health and attention lists
package viz

import (
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/leadsheet/models"
	"github.com/harperreed/leadsheet/workflow"
)

type DashboardStats struct {
	Stages          []string
	PipelineByStage map[string]PipelineStageStats

	TotalLeads int
	OpenLeads  int
	WonLeads   int
	LostLeads  int

	Health map[string]int

	// Needs attention
	Overdue  []AttentionItem
	Stagnant []AttentionItem
	DueToday []AttentionItem

	Source    models.DataSource
	ReadOnly  bool
	LastError string
}

type PipelineStageStats struct {
	Stage    string
	Count    int
	Quantity int
}

type AttentionItem struct {
	LeadID      string
	CompanyName string
	Stage       string
	Message     string
}

// GenerateDashboardStats derives dashboard figures from a snapshot.
func GenerateDashboardStats(data *models.SystemData, now time.Time) *DashboardStats {
	stages, counts := StageCounts(data)
	stats := &DashboardStats{
		Stages:          stages,
		PipelineByStage: make(map[string]PipelineStageStats, len(stages)),
		Health:          make(map[string]int),
		TotalLeads:      len(data.Leads),
		Source:          data.DataSource,
		ReadOnly:        data.ReadOnly,
		LastError:       data.LastError,
	}
	for _, s := range stages {
		stats.PipelineByStage[s] = PipelineStageStats{Stage: s, Count: counts[s]}
	}

	for _, lead := range data.Leads {
		stage := lead.CurrentStage()
		for _, s := range stages {
			if strings.EqualFold(s, stage) {
				pstats := stats.PipelineByStage[s]
				pstats.Quantity += lead.EstimatedQty
				stats.PipelineByStage[s] = pstats
				break
			}
		}

		switch {
		case strings.EqualFold(stage, models.StageWon):
			stats.WonLeads++
		case strings.EqualFold(stage, models.StageLost):
			stats.LostLeads++
		default:
			stats.OpenLeads++
		}

		h := workflow.DetermineLeadHealth(lead, data.SLARules, now)
		stats.Health[h.Status]++
		item := AttentionItem{LeadID: lead.LeadID, CompanyName: lead.CompanyName, Stage: stage, Message: h.Message}
		switch h.Label {
		case workflow.LabelOverdue:
			stats.Overdue = append(stats.Overdue, item)
		case workflow.LabelStagnant:
			stats.Stagnant = append(stats.Stagnant, item)
		case workflow.LabelDueToday:
			stats.DueToday = append(stats.DueToday, item)
		}
	}
	return stats
}

func RenderDashboard(stats *DashboardStats) string {
	var out strings.Builder

	// Header
	out.WriteString("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	out.WriteString("  LEADSHEET PIPELINE DASHBOARD\n")
	out.WriteString("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

	source := string(stats.Source)
	if stats.ReadOnly {
		source += ", read-only"
	}
	out.WriteString(fmt.Sprintf("SOURCE  %s\n", source))
	if stats.LastError != "" {
		out.WriteString(fmt.Sprintf("  last error: %s\n", stats.LastError))
	}
	out.WriteString("\n")

	out.WriteString("PIPELINE OVERVIEW\n")
	renderPipeline(&out, stats)
	out.WriteString("\n")

	out.WriteString("STATS\n")
	out.WriteString(fmt.Sprintf("  %d leads  %d open  %d won  %d lost\n",
		stats.TotalLeads, stats.OpenLeads, stats.WonLeads, stats.LostLeads))
	out.WriteString(fmt.Sprintf("  health: %d healthy, %d warning, %d violated\n\n",
		stats.Health[workflow.HealthHealthy], stats.Health[workflow.HealthWarning], stats.Health[workflow.HealthViolated]))

	if len(stats.Overdue) > 0 || len(stats.Stagnant) > 0 || len(stats.DueToday) > 0 {
		out.WriteString("NEEDS ATTENTION\n")
		renderAttention(&out, "overdue", stats.Overdue)
		renderAttention(&out, "stagnant", stats.Stagnant)
		renderAttention(&out, "due today", stats.DueToday)
	}

	return out.String()
}

func renderAttention(out *strings.Builder, label string, items []AttentionItem) {
	if len(items) == 0 {
		return
	}
	out.WriteString(fmt.Sprintf("  ⚠️  %d %s\n", len(items), label))
	for _, item := range items {
		out.WriteString(fmt.Sprintf("     %-12s %-24s %s\n", item.LeadID, truncate(item.CompanyName, 24), item.Message))
	}
}

func renderPipeline(out *strings.Builder, stats *DashboardStats) {
	maxCount := 0
	for _, pstats := range stats.PipelineByStage {
		if pstats.Count > maxCount {
			maxCount = pstats.Count
		}
	}
	if maxCount == 0 {
		maxCount = 1
	}

	for _, stage := range stats.Stages {
		pstats := stats.PipelineByStage[stage]

		// Calculate bar length (0-10 blocks)
		barLength := (pstats.Count * 10) / maxCount
		bar := strings.Repeat("█", barLength) + strings.Repeat("░", 10-barLength)

		out.WriteString(fmt.Sprintf("  %-18s %s  %2d (%d pcs)\n",
			truncate(stage, 18), bar, pstats.Count, pstats.Quantity))
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
