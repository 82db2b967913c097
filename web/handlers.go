// ABOUTME: HTTP handlers for leads, rules, and sync state
// ABOUTME: Decodes requests, calls the pipeline, and maps domain errors to status codes
package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/harperreed/leadsheet/db"
	"github.com/harperreed/leadsheet/handlers"
	"github.com/harperreed/leadsheet/models"
	"github.com/harperreed/leadsheet/sync"
	"github.com/harperreed/leadsheet/workflow"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Details string   `json:"details,omitempty"`
	Missing []string `json:"missing,omitempty"`
}

// Source describes which tier served a response.
type Source struct {
	DataSource models.DataSource `json:"dataSource"`
	ReadOnly   bool              `json:"readOnly"`
	LastError  string            `json:"lastError,omitempty"`
	FetchedAt  time.Time         `json:"fetchedAt"`
}

func sourceOf(data *models.SystemData) Source {
	return Source{
		DataSource: data.DataSource,
		ReadOnly:   data.ReadOnly,
		LastError:  data.LastError,
		FetchedAt:  data.FetchedAt,
	}
}

type LeadListResponse struct {
	Leads []models.Lead `json:"leads"`
	Count int           `json:"count"`
	Source
}

type LeadResponse struct {
	Lead   models.Lead     `json:"lead"`
	Health workflow.Health `json:"health"`
}

type UpdateLeadRequest struct {
	Fields map[string]string `json:"fields"`
}

type MoveStageRequest struct {
	Stage string `json:"stage"`
}

type OptionsResponse struct {
	models.AppOptions
	Stages []string `json:"stages"`
}

type StatusResponse struct {
	SpreadsheetID string             `json:"spreadsheetId,omitempty"`
	HasSession    bool               `json:"hasSession"`
	HasAPIKey     bool               `json:"hasApiKey"`
	WriteTarget   string             `json:"writeTarget"`
	CacheAgeSecs  int64              `json:"cacheAgeSeconds"`
	CacheFresh    bool               `json:"cacheFresh"`
	PendingLeads  int                `json:"pendingLeads"`
	Tiers         []TierStatus       `json:"tiers"`
	RecentWrites  []WriteLogResponse `json:"recentWrites"`
}

type TierStatus struct {
	Tier     string     `json:"tier"`
	Status   string     `json:"status"`
	LastSync *time.Time `json:"lastSync,omitempty"`
	Error    string     `json:"error,omitempty"`
}

type WriteLogResponse struct {
	ID        string    `json:"id"`
	LeadID    string    `json:"leadId,omitempty"`
	Op        string    `json:"op"`
	Target    string    `json:"target"`
	RowIndex  int       `json:"rowIndex"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError picks a status for errors returned by the pipeline.
func (s *Server) writeDomainError(w http.ResponseWriter, message string, err error) {
	var verr *workflow.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: message, Details: err.Error(), Missing: verr.Missing})
	case errors.Is(err, db.ErrLeadNotFound):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, handlers.ErrDuplicateLead), errors.Is(err, workflow.ErrForbiddenTransition):
		writeError(w, http.StatusConflict, message, err)
	case errors.Is(err, handlers.ErrUnknownField), errors.Is(err, handlers.ErrProtectedField),
		errors.Is(err, handlers.ErrIncompleteLead), errors.Is(err, sync.ErrInvalidRules),
		errors.Is(err, workflow.ErrUnknownStage),
		errors.Is(err, sync.ErrNoRow):
		writeError(w, http.StatusBadRequest, message, err)
	case errors.Is(err, sync.ErrRemoteWrite):
		writeError(w, http.StatusBadGateway, message, err)
	default:
		s.logger.Error(message, zap.Error(err))
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func queryBool(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && v
}

// ListLeads handles GET /api/leads.
func (s *Server) ListLeads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit", err)
			return
		}
		limit = n
	}

	leads, data := s.pipeline.Leads(r.Context(), handlers.LeadQuery{
		Stage:    q.Get("stage"),
		Category: q.Get("category"),
		Owner:    q.Get("owner"),
		Health:   q.Get("health"),
		Search:   q.Get("q"),
		OpenOnly: queryBool(r, "open"),
		Limit:    limit,
	}, queryBool(r, "refresh"))
	if leads == nil {
		leads = []models.Lead{}
	}

	writeJSON(w, http.StatusOK, LeadListResponse{Leads: leads, Count: len(leads), Source: sourceOf(data)})
}

// GetLead handles GET /api/leads/{id}.
func (s *Server) GetLead(w http.ResponseWriter, r *http.Request) {
	lead, data, err := s.pipeline.Lead(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, "lead not found", err)
		return
	}
	writeJSON(w, http.StatusOK, LeadResponse{
		Lead:   lead,
		Health: workflow.DetermineLeadHealth(lead, data.SLARules, s.pipeline.Now()),
	})
}

// CreateLead handles POST /api/leads.
func (s *Server) CreateLead(w http.ResponseWriter, r *http.Request) {
	var req handlers.AddLeadInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	lead, err := s.pipeline.Add(r.Context(), req.Lead(), req.AllowDuplicate)
	if err != nil {
		s.writeDomainError(w, "failed to add lead", err)
		return
	}
	writeJSON(w, http.StatusCreated, lead)
}

// UpdateLead handles PUT /api/leads/{id}.
func (s *Server) UpdateLead(w http.ResponseWriter, r *http.Request) {
	var req UpdateLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if len(req.Fields) == 0 {
		writeError(w, http.StatusBadRequest, "no fields to update", nil)
		return
	}

	lead, err := s.pipeline.Update(r.Context(), chi.URLParam(r, "id"), req.Fields)
	if err != nil {
		s.writeDomainError(w, "failed to update lead", err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

// MissingFields handles GET /api/leads/{id}/missing?stage=.
func (s *Server) MissingFields(w http.ResponseWriter, r *http.Request) {
	stage := strings.TrimSpace(r.URL.Query().Get("stage"))
	if stage == "" {
		writeError(w, http.StatusBadRequest, "stage is required", nil)
		return
	}
	check, err := s.pipeline.Missing(r.Context(), chi.URLParam(r, "id"), stage)
	if err != nil {
		s.writeDomainError(w, "lead not found", err)
		return
	}
	writeJSON(w, http.StatusOK, check)
}

// MoveStage handles POST /api/leads/{id}/stage.
func (s *Server) MoveStage(w http.ResponseWriter, r *http.Request) {
	var req MoveStageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Stage) == "" {
		writeError(w, http.StatusBadRequest, "stage is required", nil)
		return
	}

	lead, err := s.pipeline.Move(r.Context(), chi.URLParam(r, "id"), req.Stage)
	if err != nil {
		s.writeDomainError(w, "failed to move lead", err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

// Health handles GET /api/health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.pipeline.Health(r.Context()))
}

// Options handles GET /api/options.
func (s *Server) Options(w http.ResponseWriter, r *http.Request) {
	data := s.pipeline.Snapshot(r.Context(), false)
	writeJSON(w, http.StatusOK, OptionsResponse{AppOptions: data.Options, Stages: data.Stages()})
}

// GetRules handles GET /api/rules.
func (s *Server) GetRules(w http.ResponseWriter, r *http.Request) {
	data := s.pipeline.Snapshot(r.Context(), false)
	writeJSON(w, http.StatusOK, data.RuleSets)
}

// SaveRules handles PUT /api/rules.
func (s *Server) SaveRules(w http.ResponseWriter, r *http.Request) {
	var rules models.RuleSets
	if err := json.NewDecoder(r.Body).Decode(&rules); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if err := s.pipeline.Engine().Writer().SaveConfig(r.Context(), rules); err != nil {
		s.writeDomainError(w, "failed to save rules", err)
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

// Status handles GET /api/status.
func (s *Server) Status(w http.ResponseWriter, r *http.Request) {
	engine := s.pipeline.Engine()
	status, err := engine.Status(r.Context())
	if err != nil {
		s.writeDomainError(w, "failed to read status", err)
		return
	}

	resp := StatusResponse{
		SpreadsheetID: status.SpreadsheetID,
		HasSession:    status.HasSession,
		HasAPIKey:     status.HasAPIKey,
		WriteTarget:   engine.Writer().Target(),
		CacheAgeSecs:  int64(status.CacheAge / time.Second),
		CacheFresh:    status.CacheFresh,
		PendingLeads:  status.PendingLeads,
		Tiers:         []TierStatus{},
		RecentWrites:  []WriteLogResponse{},
	}
	for _, st := range status.SyncStates {
		tier := TierStatus{Tier: st.Service, Status: st.Status, LastSync: st.LastSyncTime}
		if st.ErrorMessage != nil {
			tier.Error = *st.ErrorMessage
		}
		resp.Tiers = append(resp.Tiers, tier)
	}
	for _, e := range status.RecentWrites {
		resp.RecentWrites = append(resp.RecentWrites, WriteLogResponse{
			ID:        e.ID,
			LeadID:    e.LeadID,
			Op:        e.Op,
			Target:    e.Target,
			RowIndex:  e.RowIndex,
			Error:     e.ErrorMessage,
			CreatedAt: e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Refresh handles POST /api/refresh.
func (s *Server) Refresh(w http.ResponseWriter, r *http.Request) {
	data := s.pipeline.Snapshot(r.Context(), true)
	writeJSON(w, http.StatusOK, struct {
		Leads int `json:"leads"`
		Source
	}{Leads: len(data.Leads), Source: sourceOf(data)})
}
