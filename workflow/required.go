// ABOUTME: Category-aware required-field resolution for stage moves
// ABOUTME: Evaluates an ordered list of predicate/effect rules with union-then-drop semantics
package workflow

import (
	"sort"
	"strconv"
	"strings"

	"github.com/harperreed/leadsheet/models"
	"github.com/harperreed/leadsheet/schema"
)

// Context is what a requirement rule can match on.
type Context struct {
	Category  string
	FromStage string
	ToStage   string
}

// RequirementRule adds and then drops fields when Match holds.
type RequirementRule struct {
	Name  string
	Match func(Context) bool
	Add   []string
	Drop  []string
}

// DefaultRequiredFields is the built-in table keyed by target stage.
var DefaultRequiredFields = map[string][]string{
	models.StageContacted:        {"contactPerson", "number"},
	models.StageQualified:        {"contactPerson", "number", "email", "category", "printType", "estimatedQty"},
	models.StageProposal:         {"contactPerson", "number", "email", "category", "printType", "estimatedQty", "productType", "ydsPoc"},
	models.StageNegotiation:      {"contactPerson", "number", "email", "category", "printType", "estimatedQty", "productType", "ydsPoc", "nextActionDate"},
	models.StageSampleDispatched: {"contactPerson", "number", "productType"},
	models.StageWon:              {"companyName", "estimatedQty", "orderInfo"},
	models.StageLost:             {"lostReason"},
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), substr)
}

func isDropshipCategory(category string) bool {
	return containsFold(category, "dropship") || containsFold(category, "partner")
}

func isSamplingCategory(category string) bool {
	return containsFold(category, "sampl")
}

func isDispatchStage(stage string) bool {
	return containsFold(stage, "dispatch")
}

func matchStage(want, got string) bool {
	want = strings.TrimSpace(want)
	return want == "" || want == wildcard || strings.EqualFold(want, strings.TrimSpace(got))
}

// RequirementRules builds the evaluation order: default table, configured
// stage rules, built-in category rules, then configured category overrides.
func RequirementRules(stageRules []models.StageRule, overrides []models.CategoryOverride) []RequirementRule {
	stages := make([]string, 0, len(DefaultRequiredFields))
	for stage := range DefaultRequiredFields {
		stages = append(stages, stage)
	}
	sort.Strings(stages)

	var rules []RequirementRule
	for _, stage := range stages {
		stage := stage
		rules = append(rules, RequirementRule{
			Name:  "default:" + stage,
			Match: func(c Context) bool { return strings.EqualFold(c.ToStage, stage) },
			Add:   DefaultRequiredFields[stage],
		})
	}

	for _, sr := range stageRules {
		if sr.Forbidden || len(sr.RequiresFields) == 0 {
			continue
		}
		sr := sr
		rules = append(rules, RequirementRule{
			Name: "stage:" + sr.FromStage + "->" + sr.ToStage,
			Match: func(c Context) bool {
				return matchStage(sr.FromStage, c.FromStage) && strings.EqualFold(strings.TrimSpace(sr.ToStage), c.ToStage)
			},
			Add: sr.RequiresFields,
		})
	}

	rules = append(rules,
		RequirementRule{
			Name:  "category:dropship",
			Match: func(c Context) bool { return isDropshipCategory(c.Category) },
			Add:   []string{"platformType", "integrationReady", "customerType"},
			Drop:  []string{"printType"},
		},
		RequirementRule{
			Name:  "category:sampling",
			Match: func(c Context) bool { return isSamplingCategory(c.Category) },
			Drop:  []string{"estimatedQty"},
		},
		RequirementRule{
			Name:  "category:sampling-dispatch",
			Match: func(c Context) bool { return isSamplingCategory(c.Category) && isDispatchStage(c.ToStage) },
			Add:   []string{"sampleRequired", "sampleStatus"},
		},
	)

	for _, o := range overrides {
		o := o
		rules = append(rules, RequirementRule{
			Name: "override:" + o.Category,
			Match: func(c Context) bool {
				return containsFold(c.Category, strings.ToLower(strings.TrimSpace(o.Category))) && matchStage(o.Stage, c.ToStage)
			},
			Add:  o.Add,
			Drop: o.Drop,
		})
	}
	return rules
}

// Evaluate applies rules left to right and returns the sorted field set.
func Evaluate(rules []RequirementRule, c Context) []string {
	set := make(map[string]bool)
	for _, r := range rules {
		if r.Match == nil || !r.Match(c) {
			continue
		}
		for _, f := range r.Add {
			set[FieldKey(f)] = true
		}
		for _, f := range r.Drop {
			delete(set, FieldKey(f))
		}
	}
	out := make([]string, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// RequiredFields returns the fields a lead of category must have to move from -> to.
func RequiredFields(category, from, to string, rules Rules) []string {
	return Evaluate(
		RequirementRules(rules.StageRules, rules.CategoryOverrides),
		Context{Category: strings.TrimSpace(category), FromStage: strings.TrimSpace(from), ToStage: strings.TrimSpace(to)},
	)
}

// MissingFields returns the required fields that lead has not filled in for a move to stage.
func MissingFields(lead models.Lead, to string, rules Rules) []string {
	var missing []string
	for _, key := range RequiredFields(lead.Category, lead.CurrentStage(), to, rules) {
		if IsMissing(key, fieldValue(&lead, key)) {
			missing = append(missing, key)
		}
	}
	return missing
}

// IsMissing reports whether value counts as not filled in for field key.
func IsMissing(key, value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return true
	}
	if models.QuantityFields[key] {
		if n, err := strconv.ParseFloat(value, 64); err == nil && n == 0 {
			return true
		}
	}
	for _, p := range models.PlaceholderValues {
		if strings.EqualFold(value, p) {
			return true
		}
	}
	return false
}

// FieldKey resolves a configured field name, which may be a key or a header
// label, to the logical field key. Unknown names are returned as given.
func FieldKey(name string) string {
	name = strings.TrimSpace(name)
	if _, ok := models.LookupField(name); ok {
		return name
	}
	norm := schema.Normalize(name)
	for _, f := range models.LeadFields {
		if strings.EqualFold(f.Key, name) || schema.Normalize(f.Header) == norm {
			return f.Key
		}
	}
	return name
}

func fieldValue(lead *models.Lead, key string) string {
	if v, ok := lead.Get(key); ok {
		return v
	}
	for header, v := range lead.Extra {
		if schema.Normalize(header) == schema.Normalize(key) {
			return v
		}
	}
	return ""
}
