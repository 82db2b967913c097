// ABOUTME: Codecs for the configuration tables stored beside the leads sheet
// ABOUTME: Stage rules, SLA rules, auto actions, category overrides, and settings lists
package schema

import (
	"strconv"
	"strings"

	"github.com/harperreed/leadsheet/models"
)

// Canonical headers of the configuration tables.
var (
	StageRuleHeaders        = []string{"From Stage", "To Stage", "Requires Field", "Forbidden"}
	SLARuleHeaders          = []string{"Stage", "Threshold Hours", "Alert Level"}
	AutoActionHeaders       = []string{"Trigger Stage", "Default Next Action", "Default Days"}
	CategoryOverrideHeaders = []string{"Category", "Stage", "Add Fields", "Drop Fields"}
	SettingsHeaders         = []string{"Stages", "Categories", "Sources", "YDS POC", "Print Types", "Customer Types", "Platform Types"}
)

type tableRow struct {
	m   *Map
	row []interface{}
}

// get returns the first non-empty cell among the header aliases.
func (r tableRow) get(aliases ...string) string {
	for _, h := range aliases {
		if idx, ok := r.m.Column(h); ok {
			if v := cellAt(r.row, idx); v != "" {
				return v
			}
		}
	}
	return ""
}

func eachRow(values [][]interface{}, fn func(tableRow)) {
	if len(values) < 2 {
		return
	}
	m := BuildFromRow(values[0])
	for _, row := range values[1:] {
		if isBlank(row) {
			continue
		}
		fn(tableRow{m: m, row: row})
	}
}

// SplitList splits a comma or semicolon separated cell.
func SplitList(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' || r == '\n' })
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseBool accepts the spellings people type into a checkbox-less sheet.
func ParseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1", "x":
		return true
	}
	return false
}

// DecodeStageRules reads the stage rules table.
func DecodeStageRules(values [][]interface{}) []models.StageRule {
	var rules []models.StageRule
	eachRow(values, func(r tableRow) {
		rule := models.StageRule{
			FromStage:      r.get("From Stage", "From"),
			ToStage:        r.get("To Stage", "To"),
			RequiresFields: SplitList(r.get("Requires Field", "Requires Fields", "Required Fields")),
			Forbidden:      ParseBool(r.get("Forbidden", "Blocked")),
		}
		if rule.ToStage == "" {
			return
		}
		rules = append(rules, rule)
	})
	return rules
}

// DecodeSLARules reads the SLA table. Rows without a positive threshold are dropped.
func DecodeSLARules(values [][]interface{}) []models.SLARule {
	var rules []models.SLARule
	eachRow(values, func(r tableRow) {
		hours, err := strconv.ParseFloat(r.get("Threshold Hours", "Hours"), 64)
		if err != nil || hours <= 0 {
			return
		}
		stage := r.get("Stage")
		if stage == "" {
			return
		}
		rules = append(rules, models.SLARule{
			Stage:          stage,
			ThresholdHours: hours,
			AlertLevel:     r.get("Alert Level", "Level"),
		})
	})
	return rules
}

// DecodeAutoActionRules reads the auto-action table.
func DecodeAutoActionRules(values [][]interface{}) []models.AutoActionRule {
	var rules []models.AutoActionRule
	eachRow(values, func(r tableRow) {
		stage := r.get("Trigger Stage", "Stage")
		action := r.get("Default Next Action", "Next Action")
		if stage == "" || action == "" {
			return
		}
		days, err := strconv.Atoi(r.get("Default Days", "Days"))
		if err != nil {
			days = 0
		}
		rules = append(rules, models.AutoActionRule{
			TriggerStage:      stage,
			DefaultNextAction: action,
			DefaultDays:       days,
		})
	})
	return rules
}

// DecodeCategoryOverrides reads the category rules table.
func DecodeCategoryOverrides(values [][]interface{}) []models.CategoryOverride {
	var overrides []models.CategoryOverride
	eachRow(values, func(r tableRow) {
		category := r.get("Category")
		if category == "" {
			return
		}
		overrides = append(overrides, models.CategoryOverride{
			Category: category,
			Stage:    r.get("Stage"),
			Add:      SplitList(r.get("Add Fields", "Add")),
			Drop:     SplitList(r.get("Drop Fields", "Drop")),
		})
	})
	return overrides
}

// DecodeOptions reads the settings table, one option list per column.
func DecodeOptions(values [][]interface{}) models.AppOptions {
	var opts models.AppOptions
	if len(values) == 0 {
		return opts
	}
	m := BuildFromRow(values[0])
	column := func(aliases ...string) []string {
		for _, h := range aliases {
			idx, ok := m.Column(h)
			if !ok {
				continue
			}
			var list []string
			for _, row := range values[1:] {
				if v := cellAt(row, idx); v != "" {
					list = append(list, v)
				}
			}
			return list
		}
		return nil
	}
	opts.Stages = column("Stages", "Stage")
	opts.Categories = column("Categories", "Category")
	opts.Sources = column("Sources", "Source")
	opts.Owners = column("YDS POC", "Owners", "POC")
	opts.PrintTypes = column("Print Types", "Print Type")
	opts.CustomerTypes = column("Customer Types", "Customer Type")
	opts.PlatformTypes = column("Platform Types", "Platform Type")
	return opts
}

func headerRow(headers []string) []interface{} {
	row := make([]interface{}, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	return row
}

func boolCell(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

// EncodeStageRules writes the stage rules table including its header row.
func EncodeStageRules(rules []models.StageRule) [][]interface{} {
	out := [][]interface{}{headerRow(StageRuleHeaders)}
	for _, r := range rules {
		out = append(out, []interface{}{r.FromStage, r.ToStage, strings.Join(r.RequiresFields, ", "), boolCell(r.Forbidden)})
	}
	return out
}

// EncodeSLARules writes the SLA table including its header row.
func EncodeSLARules(rules []models.SLARule) [][]interface{} {
	out := [][]interface{}{headerRow(SLARuleHeaders)}
	for _, r := range rules {
		out = append(out, []interface{}{r.Stage, strconv.FormatFloat(r.ThresholdHours, 'f', -1, 64), r.AlertLevel})
	}
	return out
}

// EncodeAutoActionRules writes the auto-action table including its header row.
func EncodeAutoActionRules(rules []models.AutoActionRule) [][]interface{} {
	out := [][]interface{}{headerRow(AutoActionHeaders)}
	for _, r := range rules {
		out = append(out, []interface{}{r.TriggerStage, r.DefaultNextAction, strconv.Itoa(r.DefaultDays)})
	}
	return out
}

// EncodeCategoryOverrides writes the category rules table including its header row.
func EncodeCategoryOverrides(overrides []models.CategoryOverride) [][]interface{} {
	out := [][]interface{}{headerRow(CategoryOverrideHeaders)}
	for _, o := range overrides {
		out = append(out, []interface{}{o.Category, o.Stage, strings.Join(o.Add, ", "), strings.Join(o.Drop, ", ")})
	}
	return out
}

// EncodeOptions writes the settings table, padding short columns with blanks.
func EncodeOptions(opts models.AppOptions) [][]interface{} {
	columns := [][]string{
		opts.Stages, opts.Categories, opts.Sources, opts.Owners,
		opts.PrintTypes, opts.CustomerTypes, opts.PlatformTypes,
	}
	height := 0
	for _, c := range columns {
		if len(c) > height {
			height = len(c)
		}
	}
	out := [][]interface{}{headerRow(SettingsHeaders)}
	for i := 0; i < height; i++ {
		row := make([]interface{}, len(columns))
		for j, c := range columns {
			if i < len(c) {
				row[j] = c[i]
			} else {
				row[j] = ""
			}
		}
		out = append(out, row)
	}
	return out
}
