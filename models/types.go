// ABOUTME: Data models for the lead pipeline
// ABOUTME: Defines Lead, rule sets, AppOptions, and the SystemData read snapshot
package models

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Lead is a single pipeline record. Known columns map onto typed fields;
// anything else the sheet carries is kept in Extra under its raw header.
type Lead struct {
	LeadID           string `json:"leadId"`
	Date             string `json:"date,omitempty"`
	CompanyName      string `json:"companyName,omitempty"`
	ContactPerson    string `json:"contactPerson,omitempty"`
	Number           string `json:"number,omitempty"`
	Email            string `json:"email,omitempty"`
	City             string `json:"city,omitempty"`
	Source           string `json:"source,omitempty"`
	Category         string `json:"category,omitempty"`
	CustomerType     string `json:"customerType,omitempty"`
	PlatformType     string `json:"platformType,omitempty"`
	IntegrationReady string `json:"integrationReady,omitempty"`
	PrintType        string `json:"printType,omitempty"`
	ProductType      string `json:"productType,omitempty"`
	EstimatedQty     int    `json:"estimatedQty"`
	OrderInfo        string `json:"orderInfo,omitempty"`
	SampleRequired   string `json:"sampleRequired,omitempty"`
	SampleStatus     string `json:"sampleStatus,omitempty"`
	Status           string `json:"status"`
	Stage            string `json:"stage"`
	YdsPoc           string `json:"ydsPoc,omitempty"`
	Priority         string `json:"priority,omitempty"`
	NextAction       string `json:"nextAction,omitempty"`
	NextActionDate   string `json:"nextActionDate,omitempty"`
	StageChangedDate string `json:"stageChangedDate,omitempty"`
	LastContactDate  string `json:"lastContactDate,omitempty"`
	WonDate          string `json:"wonDate,omitempty"`
	LostDate         string `json:"lostDate,omitempty"`
	LostReason       string `json:"lostReason,omitempty"`
	Remarks          string `json:"remarks,omitempty"`

	// Derived; recomputed by the workflow package, never used as rule input.
	DaysOpen  int    `json:"daysOpen"`
	SLAStatus string `json:"slaStatus,omitempty"`
	SLAHealth string `json:"slaHealth,omitempty"`

	RowIndex int               `json:"_rowIndex"`
	Pending  bool              `json:"_pending,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
}

// NewLead returns a lead in the initial stage that has not been persisted yet.
func NewLead() Lead {
	return Lead{
		Status:   StageNew,
		Stage:    StageNew,
		RowIndex: -1,
	}
}

var (
	idMu      sync.Mutex
	idEntropy = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

// NewLeadID synthesizes a lead id for records created without one. Ids
// sort in creation order, including within one millisecond.
func NewLeadID() string {
	idMu.Lock()
	defer idMu.Unlock()
	return "L-" + ulid.MustNew(ulid.Timestamp(time.Now()), idEntropy).String()
}

// SetStatus keeps status and stage in sync.
func (l *Lead) SetStatus(stage string) {
	l.Status = stage
	l.Stage = stage
}

// CurrentStage returns the status, falling back to stage.
func (l *Lead) CurrentStage() string {
	if l.Status != "" {
		return l.Status
	}
	return l.Stage
}

// Clone returns a deep copy.
func (l Lead) Clone() Lead {
	if l.Extra != nil {
		extra := make(map[string]string, len(l.Extra))
		for k, v := range l.Extra {
			extra[k] = v
		}
		l.Extra = extra
	}
	return l
}

// Default pipeline stages.
const (
	StageNew              = "New"
	StageContacted        = "Contacted"
	StageQualified        = "Qualified"
	StageProposal         = "Proposal"
	StageNegotiation      = "Negotiation"
	StageSampleDispatched = "Sample Dispatched"
	StageWon              = "Won"
	StageLost             = "Lost"
)

// DefaultStages is the stage vocabulary used when no Settings sheet supplies one.
var DefaultStages = []string{
	StageNew,
	StageContacted,
	StageQualified,
	StageProposal,
	StageNegotiation,
	StageSampleDispatched,
	StageWon,
	StageLost,
}

// IsTerminalStage reports whether the stage closes a lead.
func IsTerminalStage(stage string) bool {
	return strings.EqualFold(stage, StageWon) || strings.EqualFold(stage, StageLost)
}

// Priority values. PriorityUnset is how a sheet marks "no priority chosen".
const (
	PriorityHigh   = "High"
	PriorityMedium = "Medium"
	PriorityLow    = "Low"
	PriorityNone   = "None"
	PriorityUnset  = "Unset"
)

// PlaceholderValues count as "not filled in" for required-field checks.
var PlaceholderValues = []string{"Unassigned", "Pending", "Not Contacted", "Not Needed"}

// StageRule adds required fields to a specific transition, or forbids it.
// An empty or "*" FromStage matches any origin stage.
type StageRule struct {
	FromStage      string   `json:"fromStage" validate:"max=64"`
	ToStage        string   `json:"toStage" validate:"required,max=64"`
	RequiresFields []string `json:"requiresField,omitempty" validate:"dive,required"`
	Forbidden      bool     `json:"forbidden,omitempty"`
}

// SLARule bounds how long a lead may sit in a stage.
type SLARule struct {
	Stage          string  `json:"stage" validate:"required,max=64"`
	ThresholdHours float64 `json:"thresholdHours" validate:"gt=0"`
	AlertLevel     string  `json:"alertLevel,omitempty"`
}

// AutoActionRule sets the follow-up assigned when a lead enters a stage.
type AutoActionRule struct {
	TriggerStage      string `json:"triggerStage" validate:"required,max=64"`
	DefaultNextAction string `json:"defaultNextAction" validate:"required"`
	DefaultDays       int    `json:"defaultDays" validate:"gte=0,lte=365"`
}

// CategoryOverride adjusts required fields for leads whose category matches.
// Category matches case-insensitively as a substring; an empty Stage matches any target.
type CategoryOverride struct {
	Category string   `json:"category" validate:"required"`
	Stage    string   `json:"stage,omitempty"`
	Add      []string `json:"add,omitempty"`
	Drop     []string `json:"drop,omitempty"`
}

// AppOptions holds the option lists the settings sheet supplies.
type AppOptions struct {
	Stages        []string `json:"stages"`
	Categories    []string `json:"categories,omitempty"`
	Sources       []string `json:"sources,omitempty"`
	Owners        []string `json:"owners,omitempty"`
	PrintTypes    []string `json:"printTypes,omitempty"`
	CustomerTypes []string `json:"customerTypes,omitempty"`
	PlatformTypes []string `json:"platformTypes,omitempty"`
}

// RuleSets groups the configuration tables saved through the write path.
type RuleSets struct {
	StageRules        []StageRule        `json:"stageRules" validate:"dive"`
	SLARules          []SLARule          `json:"slaRules" validate:"dive"`
	AutoActionRules   []AutoActionRule   `json:"autoActionRules" validate:"dive"`
	CategoryOverrides []CategoryOverride `json:"categoryOverrides" validate:"dive"`
	Options           AppOptions         `json:"options"`
}

// DataSource identifies which tier served a snapshot.
type DataSource string

const (
	SourceCloud DataSource = "cloud"
	SourceCache DataSource = "cache"
	SourceLocal DataSource = "local"
)

// SchemaReport describes header drift between the sheet and the expected schema.
type SchemaReport struct {
	Missing    []string `json:"missing,omitempty"`
	Unknown    []string `json:"unknown,omitempty"`
	Duplicates []string `json:"duplicates,omitempty"`
}

// OK reports whether every expected header was found exactly once.
func (r SchemaReport) OK() bool {
	return len(r.Missing) == 0 && len(r.Duplicates) == 0
}

// SystemData is the read snapshot handed out by the resolver. A new value is
// built on every call; callers must not mutate it.
type SystemData struct {
	Leads []Lead `json:"leads"`
	RuleSets

	DataSource DataSource    `json:"dataSource"`
	ReadOnly   bool          `json:"readOnly"`
	LastError  string        `json:"lastError,omitempty"`
	FetchedAt  time.Time     `json:"fetchedAt"`
	Schema     *SchemaReport `json:"schemaReport,omitempty"`
}

// FindLead returns the lead with the given id.
func (d *SystemData) FindLead(leadID string) (Lead, bool) {
	for _, l := range d.Leads {
		if l.LeadID == leadID {
			return l, true
		}
	}
	return Lead{}, false
}

// Stages returns the configured vocabulary or the defaults.
func (d *SystemData) Stages() []string {
	if len(d.Options.Stages) > 0 {
		return d.Options.Stages
	}
	return DefaultStages
}

// Clone returns a deep copy so cached data cannot be mutated through a snapshot.
func (d *SystemData) Clone() *SystemData {
	if d == nil {
		return nil
	}
	out := *d
	out.Leads = make([]Lead, len(d.Leads))
	for i, l := range d.Leads {
		out.Leads[i] = l.Clone()
	}
	out.StageRules = append([]StageRule(nil), d.StageRules...)
	out.SLARules = append([]SLARule(nil), d.SLARules...)
	out.AutoActionRules = append([]AutoActionRule(nil), d.AutoActionRules...)
	out.CategoryOverrides = append([]CategoryOverride(nil), d.CategoryOverrides...)
	if d.Schema != nil {
		report := *d.Schema
		out.Schema = &report
	}
	return &out
}
