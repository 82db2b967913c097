// ABOUTME: Pipeline operations shared by every surface (MCP, CLI, HTTP, board)
// ABOUTME: Resolves a snapshot, annotates health, and routes edits through the writer
package handlers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/harperreed/leadsheet/db"
	"github.com/harperreed/leadsheet/models"
	"github.com/harperreed/leadsheet/sync"
	"github.com/harperreed/leadsheet/workflow"
)

var (
	// ErrDuplicateLead is returned by Add when a lead with the same email or number exists.
	ErrDuplicateLead = errors.New("possible duplicate lead")

	// ErrUnknownField is returned by Update for keys that are neither lead fields nor sheet columns.
	ErrUnknownField = errors.New("unknown lead field")

	// ErrProtectedField is returned by Update for fields only a stage move may change.
	ErrProtectedField = errors.New("field cannot be edited directly")

	// ErrIncompleteLead is returned by Add for a lead with neither company nor contact.
	ErrIncompleteLead = errors.New("company name or contact person is required")
)

var protectedFields = map[string]string{
	"leadId":    "the lead id is permanent",
	"status":    "use a stage move",
	"stage":     "use a stage move",
	"daysOpen":  "derived",
	"slaStatus": "derived",
	"slaHealth": "derived",
}

// Pipeline wraps an engine with the read-annotate-write cycle.
type Pipeline struct {
	engine *sync.Engine
}

func NewPipeline(engine *sync.Engine) *Pipeline {
	return &Pipeline{engine: engine}
}

// Engine exposes the underlying engine for status and config operations.
func (p *Pipeline) Engine() *sync.Engine {
	return p.engine
}

// Now is the engine's clock.
func (p *Pipeline) Now() time.Time {
	if p.engine.Now != nil {
		return p.engine.Now()
	}
	return time.Now()
}

// Snapshot resolves the current data and annotates every lead's health.
func (p *Pipeline) Snapshot(ctx context.Context, refresh bool) *models.SystemData {
	data := p.engine.Resolver().Resolve(ctx, refresh)
	data.Leads = workflow.AnnotateAll(data.Leads, data.SLARules, p.Now())
	return data
}

// LeadQuery filters a lead list. Empty fields match everything.
type LeadQuery struct {
	Stage    string
	Category string
	Owner    string
	Health   string
	Search   string
	OpenOnly bool
	Limit    int
}

// Match reports whether lead satisfies q. Health compares against the
// annotated SLAHealth or SLAStatus.
func (q LeadQuery) Match(lead models.Lead) bool {
	if q.Stage != "" && !strings.EqualFold(lead.CurrentStage(), q.Stage) {
		return false
	}
	if q.Category != "" && !strings.EqualFold(lead.Category, q.Category) {
		return false
	}
	if q.Owner != "" && !strings.EqualFold(lead.YdsPoc, q.Owner) {
		return false
	}
	if q.Health != "" && !strings.EqualFold(lead.SLAHealth, q.Health) && !strings.EqualFold(lead.SLAStatus, q.Health) {
		return false
	}
	if q.OpenOnly && models.IsTerminalStage(lead.CurrentStage()) {
		return false
	}
	if q.Search != "" {
		needle := strings.ToLower(q.Search)
		haystack := strings.ToLower(strings.Join([]string{
			lead.LeadID, lead.CompanyName, lead.ContactPerson, lead.Email, lead.Number, lead.City,
		}, " "))
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}

// FilterLeads applies q to leads, keeping order.
func FilterLeads(leads []models.Lead, q LeadQuery) []models.Lead {
	out := make([]models.Lead, 0, len(leads))
	for _, l := range leads {
		if !q.Match(l) {
			continue
		}
		out = append(out, l)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out
}

// Leads returns the leads matching q along with the snapshot they came from.
func (p *Pipeline) Leads(ctx context.Context, q LeadQuery, refresh bool) ([]models.Lead, *models.SystemData) {
	data := p.Snapshot(ctx, refresh)
	return FilterLeads(data.Leads, q), data
}

// Lead finds one annotated lead.
func (p *Pipeline) Lead(ctx context.Context, leadID string) (models.Lead, *models.SystemData, error) {
	data := p.Snapshot(ctx, false)
	lead, ok := data.FindLead(strings.TrimSpace(leadID))
	if !ok {
		return models.Lead{}, data, fmt.Errorf("%w: %s", db.ErrLeadNotFound, leadID)
	}
	return lead, data, nil
}

// Add creates a lead. Unless allowDuplicate is set, a lead sharing an email
// or phone number with an existing one is rejected.
func (p *Pipeline) Add(ctx context.Context, lead models.Lead, allowDuplicate bool) (models.Lead, error) {
	if strings.TrimSpace(lead.CompanyName) == "" && strings.TrimSpace(lead.ContactPerson) == "" {
		return models.Lead{}, ErrIncompleteLead
	}
	if !allowDuplicate {
		data := p.engine.Resolver().Resolve(ctx, false)
		if match, found := sync.NewLeadMatcher(data.Leads).FindMatch(lead.Email, lead.Number); found {
			return models.Lead{}, fmt.Errorf("%w: matches %s (%s)", ErrDuplicateLead, match.LeadID, match.CompanyName)
		}
	}
	return p.engine.Writer().AddLead(ctx, lead)
}

// Update applies field edits keyed by field key or sheet header.
func (p *Pipeline) Update(ctx context.Context, leadID string, fields map[string]string) (models.Lead, error) {
	lead, data, err := p.Lead(ctx, leadID)
	if err != nil {
		return models.Lead{}, err
	}
	if err := ApplyFields(&lead, fields); err != nil {
		return models.Lead{}, err
	}
	lead = workflow.Annotate(lead, data.SLARules, p.Now())
	return p.engine.Writer().UpdateLead(ctx, lead)
}

// ApplyFields sets each key on lead. Keys may be field keys ("companyName")
// or header labels ("Company Name"); extra sheet columns already on the
// lead are editable by their header.
func ApplyFields(lead *models.Lead, fields map[string]string) error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, name := range keys {
		value := strings.TrimSpace(fields[name])
		key := workflow.FieldKey(name)
		if reason, ok := protectedFields[key]; ok {
			return fmt.Errorf("%w: %s (%s)", ErrProtectedField, name, reason)
		}
		if lead.Set(key, value) {
			continue
		}
		if _, ok := lead.Extra[name]; ok {
			lead.Extra[name] = value
			continue
		}
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	return nil
}

// MoveCheck previews a stage move without writing.
type MoveCheck struct {
	LeadID   string   `json:"lead_id"`
	From     string   `json:"from"`
	To       string   `json:"to"`
	Allowed  bool     `json:"allowed"`
	Required []string `json:"required"`
	Missing  []string `json:"missing"`
	Reason   string   `json:"reason,omitempty"`
}

// CheckMove reports whether a lead could move to stage and what it lacks.
func CheckMove(lead models.Lead, to string, data *models.SystemData) MoveCheck {
	rules := workflow.RulesFrom(data)
	from := lead.CurrentStage()
	canonical, err := workflow.ResolveStage(to, rules.Stages)
	if err != nil {
		return MoveCheck{LeadID: lead.LeadID, From: from, To: to, Required: []string{}, Missing: []string{}, Reason: err.Error()}
	}
	to = canonical
	check := MoveCheck{
		LeadID:   lead.LeadID,
		From:     from,
		To:       to,
		Required: workflow.RequiredFields(lead.Category, from, to, rules),
		Missing:  workflow.MissingFields(lead, to, rules),
	}
	if check.Required == nil {
		check.Required = []string{}
	}
	if check.Missing == nil {
		check.Missing = []string{}
	}
	if err := workflow.ValidateTransition(from, to, rules.Forbidden); err != nil {
		check.Reason = err.Error()
		return check
	}
	if len(check.Missing) > 0 {
		check.Reason = "missing " + strings.Join(check.Missing, ", ")
		return check
	}
	check.Allowed = true
	return check
}

// Missing previews the move of leadID to stage.
func (p *Pipeline) Missing(ctx context.Context, leadID, to string) (MoveCheck, error) {
	lead, data, err := p.Lead(ctx, leadID)
	if err != nil {
		return MoveCheck{}, err
	}
	return CheckMove(lead, strings.TrimSpace(to), data), nil
}

// Move validates and persists a stage change.
func (p *Pipeline) Move(ctx context.Context, leadID, to string) (models.Lead, error) {
	data := p.Snapshot(ctx, false)
	return p.engine.Writer().MoveStage(ctx, data, strings.TrimSpace(leadID), to, p.Now())
}

// Step moves a lead one stage forward (delta 1) or back (delta -1) in the
// configured stage order.
func (p *Pipeline) Step(ctx context.Context, leadID string, delta int) (models.Lead, error) {
	lead, data, err := p.Lead(ctx, leadID)
	if err != nil {
		return models.Lead{}, err
	}
	to, ok := AdjacentStage(data.Stages(), lead.CurrentStage(), delta)
	if !ok {
		return models.Lead{}, fmt.Errorf("no stage %+d from %s", delta, lead.CurrentStage())
	}
	return p.engine.Writer().MoveStage(ctx, data, lead.LeadID, to, p.Now())
}

// AdjacentStage returns the stage delta positions from stage.
func AdjacentStage(stages []string, stage string, delta int) (string, bool) {
	for i, s := range stages {
		if !strings.EqualFold(s, stage) {
			continue
		}
		j := i + delta
		if j < 0 || j >= len(stages) {
			return "", false
		}
		return stages[j], true
	}
	return "", false
}

// HealthReport groups open leads by health.
type HealthReport struct {
	Counts    map[string]int `json:"counts"`
	Attention []HealthEntry  `json:"attention"`
}

// HealthEntry is one lead that needs attention.
type HealthEntry struct {
	LeadID      string `json:"lead_id"`
	CompanyName string `json:"company_name"`
	Stage       string `json:"stage"`
	Owner       string `json:"owner,omitempty"`
	Status      string `json:"status"`
	Label       string `json:"label"`
	Urgency     string `json:"urgency"`
	Message     string `json:"message,omitempty"`
}

var urgencyRank = map[string]int{
	workflow.UrgencyCritical: 0,
	workflow.UrgencyHigh:     1,
	workflow.UrgencyNormal:   2,
	workflow.UrgencyNone:     3,
}

// SummarizeHealth classifies every lead. Leads that are not healthy are
// listed most urgent first.
func SummarizeHealth(data *models.SystemData, now time.Time) HealthReport {
	report := HealthReport{Counts: make(map[string]int), Attention: []HealthEntry{}}
	for _, lead := range data.Leads {
		h := workflow.DetermineLeadHealth(lead, data.SLARules, now)
		report.Counts[h.Status]++
		if h.Status == workflow.HealthHealthy {
			continue
		}
		report.Attention = append(report.Attention, HealthEntry{
			LeadID:      lead.LeadID,
			CompanyName: lead.CompanyName,
			Stage:       lead.CurrentStage(),
			Owner:       lead.YdsPoc,
			Status:      h.Status,
			Label:       h.Label,
			Urgency:     h.Urgency,
			Message:     h.Message,
		})
	}
	sort.SliceStable(report.Attention, func(i, j int) bool {
		return urgencyRank[report.Attention[i].Urgency] < urgencyRank[report.Attention[j].Urgency]
	})
	return report
}

// Health summarizes the current snapshot.
func (p *Pipeline) Health(ctx context.Context) HealthReport {
	return SummarizeHealth(p.Snapshot(ctx, false), p.Now())
}
