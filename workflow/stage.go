// ABOUTME: Stage changes and automatic next-action scheduling
// ABOUTME: Validates, fills close dates and follow-ups, and re-annotates the moved lead
package workflow

import (
	"strings"
	"time"

	"github.com/harperreed/leadsheet/models"
	"github.com/harperreed/leadsheet/schema"
)

// DefaultAutoAction is the built-in follow-up for a stage.
type DefaultAutoAction struct {
	Action string
	Days   int
}

// DefaultAutoActions is used when no AutoActionRule covers the target stage.
var DefaultAutoActions = map[string]DefaultAutoAction{
	models.StageNew:              {Action: "Make first contact", Days: 1},
	models.StageContacted:        {Action: "Qualify requirements", Days: 2},
	models.StageQualified:        {Action: "Send proposal", Days: 3},
	models.StageProposal:         {Action: "Follow up on proposal", Days: 3},
	models.StageNegotiation:      {Action: "Close negotiation", Days: 2},
	models.StageSampleDispatched: {Action: "Confirm sample delivery", Days: 4},
	models.StageWon:              {Action: "Kick off first order", Days: 1},
}

// Rules bundles every rule set the engine consults.
type Rules struct {
	Stages            []string
	Forbidden         map[string][]string
	StageRules        []models.StageRule
	SLARules          []models.SLARule
	AutoActions       []models.AutoActionRule
	CategoryOverrides []models.CategoryOverride
}

// RulesFrom builds Rules from a snapshot.
func RulesFrom(data *models.SystemData) Rules {
	if data == nil {
		return Rules{Forbidden: ForbiddenMap(nil)}
	}
	return Rules{
		Stages:            data.Stages(),
		Forbidden:         ForbiddenMap(data.StageRules),
		StageRules:        data.StageRules,
		SLARules:          data.SLARules,
		AutoActions:       data.AutoActionRules,
		CategoryOverrides: data.CategoryOverrides,
	}
}

// NextAction returns the follow-up for entering stage. ok is false when
// neither a configured nor a built-in rule exists.
func NextAction(stage string, autoRules []models.AutoActionRule, now time.Time) (action, date string, ok bool) {
	stage = strings.TrimSpace(stage)
	for _, r := range autoRules {
		if strings.EqualFold(strings.TrimSpace(r.TriggerStage), stage) && r.DefaultNextAction != "" {
			return r.DefaultNextAction, schema.FormatDate(now.AddDate(0, 0, r.DefaultDays)), true
		}
	}
	for name, d := range DefaultAutoActions {
		if strings.EqualFold(name, stage) {
			return d.Action, schema.FormatDate(now.AddDate(0, 0, d.Days)), true
		}
	}
	return "", "", false
}

// ApplyStageChange moves lead to stage to. The returned lead is a copy; the
// input is never modified. A target outside rules.Stages returns
// ErrUnknownStage, a forbidden move returns a *TransitionError and a move
// with unfilled required fields returns a *ValidationError.
func ApplyStageChange(lead models.Lead, to string, rules Rules, now time.Time) (models.Lead, error) {
	to, err := ResolveStage(to, rules.Stages)
	if err != nil {
		return lead, err
	}
	from := lead.CurrentStage()
	if rules.Forbidden == nil {
		rules.Forbidden = ForbiddenMap(rules.StageRules)
	}
	if err := ValidateTransition(from, to, rules.Forbidden); err != nil {
		return lead, err
	}
	if missing := MissingFields(lead, to, rules); len(missing) > 0 {
		return lead, &ValidationError{Stage: to, Missing: missing}
	}

	out := lead.Clone()
	if strings.EqualFold(from, to) {
		return out, nil
	}

	today := schema.FormatDate(now)
	out.SetStatus(to)
	out.StageChangedDate = today
	switch {
	case strings.EqualFold(to, models.StageWon):
		out.WonDate = today
		out.LostDate = ""
	case strings.EqualFold(to, models.StageLost):
		out.LostDate = today
		out.WonDate = ""
	}

	if action, date, ok := NextAction(to, rules.AutoActions, now); ok {
		out.NextAction = action
		out.NextActionDate = date
	}
	return Annotate(out, rules.SLARules, now), nil
}
