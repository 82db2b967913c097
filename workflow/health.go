// ABOUTME: SLA health classification for leads
// ABOUTME: Pure function of the lead's persisted fields, the SLA rules, and the current time
package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/leadsheet/models"
	"github.com/harperreed/leadsheet/schema"
)

// Health statuses.
const (
	HealthHealthy  = "Healthy"
	HealthWarning  = "Warning"
	HealthViolated = "Violated"
)

// Health labels.
const (
	LabelClosed   = "Closed"
	LabelOverdue  = "Overdue"
	LabelDueToday = "Due Today"
	LabelStagnant = "Stagnant"
	LabelOK       = "OK"
)

// Urgency levels.
const (
	UrgencyNone     = "none"
	UrgencyCritical = "critical"
	UrgencyHigh     = "high"
	UrgencyNormal   = "normal"
)

// Health is the derived SLA classification of a lead.
type Health struct {
	Status  string `json:"status"`
	Label   string `json:"label"`
	Urgency string `json:"urgency"`
	Message string `json:"message,omitempty"`
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DetermineLeadHealth classifies a lead. Closed leads are always healthy;
// otherwise the next-action date wins over stage dwell time.
func DetermineLeadHealth(lead models.Lead, slaRules []models.SLARule, now time.Time) Health {
	stage := lead.CurrentStage()
	if models.IsTerminalStage(stage) {
		return Health{Status: HealthHealthy, Label: LabelClosed, Urgency: UrgencyNone, Message: "Lead is " + stage}
	}

	today := startOfDay(now)
	if due, ok := schema.ParseDate(lead.NextActionDate, now.Location()); ok {
		due = startOfDay(due)
		switch {
		case due.Before(today):
			days := int(today.Sub(due).Hours() / 24)
			return Health{
				Status:  HealthViolated,
				Label:   LabelOverdue,
				Urgency: UrgencyCritical,
				Message: fmt.Sprintf("Next action overdue by %d day(s)", days),
			}
		case due.Equal(today):
			return Health{Status: HealthWarning, Label: LabelDueToday, Urgency: UrgencyHigh, Message: "Next action due today"}
		}
	}

	if rule, ok := slaRuleFor(stage, slaRules); ok {
		since, ok := schema.ParseDate(lead.StageChangedDate, now.Location())
		if !ok {
			since, ok = schema.ParseDate(lead.Date, now.Location())
		}
		if ok {
			elapsed := now.Sub(since).Hours()
			if elapsed > rule.ThresholdHours {
				level := rule.AlertLevel
				if level == "" {
					level = UrgencyCritical
				}
				return Health{
					Status:  HealthViolated,
					Label:   LabelStagnant,
					Urgency: UrgencyCritical,
					Message: fmt.Sprintf("In %s for %.0fh, limit %.0fh (%s)", stage, elapsed, rule.ThresholdHours, level),
				}
			}
		}
	}

	return Health{Status: HealthHealthy, Label: LabelOK, Urgency: UrgencyNormal}
}

func slaRuleFor(stage string, rules []models.SLARule) (models.SLARule, bool) {
	for _, r := range rules {
		if r.ThresholdHours > 0 && strings.EqualFold(strings.TrimSpace(r.Stage), strings.TrimSpace(stage)) {
			return r, true
		}
	}
	return models.SLARule{}, false
}

// DaysOpen counts whole days from the creation date until now, or until the
// close date for a closed lead. Unknown creation dates yield 0.
func DaysOpen(lead models.Lead, now time.Time) int {
	created, ok := schema.ParseDate(lead.Date, now.Location())
	if !ok {
		return 0
	}
	end := startOfDay(now)
	closeDate := ""
	switch {
	case strings.EqualFold(lead.CurrentStage(), models.StageWon):
		closeDate = lead.WonDate
	case strings.EqualFold(lead.CurrentStage(), models.StageLost):
		closeDate = lead.LostDate
	}
	if closed, ok := schema.ParseDate(closeDate, now.Location()); ok {
		end = startOfDay(closed)
	}
	days := int(end.Sub(startOfDay(created)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// Annotate recomputes the derived fields of a lead.
func Annotate(lead models.Lead, slaRules []models.SLARule, now time.Time) models.Lead {
	h := DetermineLeadHealth(lead, slaRules, now)
	lead.DaysOpen = DaysOpen(lead, now)
	lead.SLAStatus = h.Label
	lead.SLAHealth = h.Status
	return lead
}

// AnnotateAll annotates every lead of a snapshot copy.
func AnnotateAll(leads []models.Lead, slaRules []models.SLARule, now time.Time) []models.Lead {
	out := make([]models.Lead, len(leads))
	for i, l := range leads {
		out[i] = Annotate(l.Clone(), slaRules, now)
	}
	return out
}
