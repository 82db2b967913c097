package sync

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/leadsheet/db"
	"github.com/harperreed/leadsheet/models"
	"github.com/harperreed/leadsheet/workflow"
)

func assertCacheEmpty(t *testing.T, e *Engine) {
	t.Helper()
	_, ok, err := e.Cache.Load()
	require.NoError(t, err)
	assert.False(t, ok, "cache should be invalidated")
}

func TestAddLeadLocally(t *testing.T) {
	e, _ := newTestEngine(t, nil, nil)
	w := e.Writer()
	assert.Equal(t, db.TargetLocal, w.Target())

	require.NoError(t, e.Cache.Store(&models.SystemData{}))

	lead, err := w.AddLead(t.Context(), models.Lead{CompanyName: "New Co", EstimatedQty: 60})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(lead.LeadID, "L-"))
	assert.Equal(t, models.StageNew, lead.Status)
	assert.Equal(t, models.StageNew, lead.Stage)
	assert.Equal(t, models.PriorityMedium, lead.Priority)
	assert.Equal(t, "2026-03-10", lead.Date)
	assert.Equal(t, -1, lead.RowIndex, "a local lead has no sheet row")
	assert.True(t, lead.Pending)
	assertCacheEmpty(t, e)

	data := e.Resolver().Resolve(t.Context(), false)
	_, found := data.FindLead(lead.LeadID)
	assert.True(t, found)

	writes, err := db.RecentWrites(e.DB, 5)
	require.NoError(t, err)
	require.Len(t, writes, 1)
	assert.Equal(t, db.OpAdd, writes[0].Op)
	assert.Equal(t, db.TargetLocal, writes[0].Target)
	assert.Equal(t, lead.LeadID, writes[0].LeadID)
}

func TestAddLeadAlwaysStartsAtNew(t *testing.T) {
	e, _ := newTestEngine(t, nil, nil)

	lead, err := e.Writer().AddLead(t.Context(), models.Lead{CompanyName: "Shortcut", Status: models.StageWon, WonDate: "2026-01-01"})
	require.NoError(t, err)
	assert.Equal(t, models.StageNew, lead.Status)
	assert.Equal(t, models.StageNew, lead.Stage)
	assert.Empty(t, lead.WonDate)
}

func TestPublicOnlyWritesGoLocal(t *testing.T) {
	public := newFakeStore()
	e, _ := newTestEngine(t, nil, public)
	seedSheet(public, e.Ranges)

	w := e.Writer()
	assert.Equal(t, db.TargetLocal, w.Target())

	added, err := w.AddLead(t.Context(), models.Lead{CompanyName: "Walk-in"})
	require.NoError(t, err)
	assert.Empty(t, public.appended)

	data := e.Resolver().Resolve(t.Context(), false)
	assert.Equal(t, models.SourceCloud, data.DataSource, "reads still come from the public sheet")
	require.Len(t, data.Leads, 3)
	lead, found := data.FindLead(added.LeadID)
	require.True(t, found, "the local lead survives a public read")
	assert.Equal(t, -1, lead.RowIndex)

	lead.Remarks = "called back"
	_, err = w.UpdateLead(t.Context(), lead)
	require.NoError(t, err)

	data = e.Resolver().Resolve(t.Context(), false)
	lead, found = data.FindLead(added.LeadID)
	require.True(t, found)
	assert.Equal(t, "called back", lead.Remarks)

	_, err = w.MoveStage(t.Context(), data, added.LeadID, models.StageContacted, e.now())
	assert.ErrorIs(t, err, workflow.ErrUnknownStage, "the sheet's stage list has no Contacted")
}

func TestLocalLeadIsAppendedWhenSheetUnreadable(t *testing.T) {
	e, clock := newTestEngine(t, nil, nil)
	added, err := e.Writer().AddLead(t.Context(), models.Lead{CompanyName: "Walk-in", ContactPerson: "Ravi", Number: "9820012345"})
	require.NoError(t, err)

	auth := newFakeStore()
	auth.batchErr = errUnavailable
	auth.getErr[e.Ranges.Leads] = errUnavailable
	e.Auth = auth

	data := e.Resolver().Resolve(t.Context(), false)
	require.Equal(t, models.SourceLocal, data.DataSource)

	moved, err := e.Writer().MoveStage(t.Context(), data, added.LeadID, models.StageContacted, clock.Now())
	require.NoError(t, err)
	assert.Empty(t, auth.updates, "no existing sheet row is overwritten")
	require.Len(t, auth.appended, 1)
	assert.Equal(t, added.LeadID, auth.appended[0][0])
	assert.Equal(t, 9, moved.RowIndex)
	assert.False(t, moved.Pending)

	stored, err := e.Offline.Load(t.Context())
	require.NoError(t, err)
	lead, found := stored.FindLead(added.LeadID)
	require.True(t, found)
	assert.Equal(t, 9, lead.RowIndex, "the appended row is recorded locally")

	lead.Remarks = "second edit"
	_, err = e.Writer().UpdateLead(t.Context(), lead)
	require.NoError(t, err)
	assert.Len(t, auth.appended, 1, "a placed lead is updated in place")
	assert.Contains(t, auth.updates, "Leads!A9")
}

func TestAddLeadRemotelyUsesSheetColumnOrder(t *testing.T) {
	auth := newFakeStore()
	e, _ := newTestEngine(t, auth, nil)
	seedSheet(auth, e.Ranges)
	e.Resolver().Resolve(t.Context(), false)

	w := e.Writer()
	assert.Equal(t, db.TargetRemote, w.Target())

	lead, err := w.AddLead(t.Context(), models.Lead{
		LeadID:      "L-200",
		CompanyName: "Initech",
		Extra:       map[string]string{"GST Number": "29BBBB"},
	})
	require.NoError(t, err)
	assert.Equal(t, 9, lead.RowIndex)
	assert.Equal(t, e.Ranges.Leads, auth.appendRange)

	require.Len(t, auth.appended, 1)
	row := auth.appended[0]
	require.Len(t, row, 7)
	assert.Equal(t, models.StageNew, row[0])
	assert.Equal(t, "L-200", row[1])
	assert.Equal(t, "Initech", row[2])
	assert.Equal(t, "29BBBB", row[6])

	assertCacheEmpty(t, e)
}

func TestUpdateLeadRemotely(t *testing.T) {
	auth := newFakeStore()
	e, _ := newTestEngine(t, auth, nil)
	w := e.Writer()

	_, err := w.UpdateLead(t.Context(), models.Lead{RowIndex: -1})
	assert.ErrorIs(t, err, ErrNoRow)

	appended, err := w.UpdateLead(t.Context(), models.Lead{LeadID: "L-1", RowIndex: 1})
	require.NoError(t, err)
	assert.Equal(t, 9, appended.RowIndex, "a lead without a row is appended")
	assert.Len(t, auth.appended, 1)
	assert.Empty(t, auth.updates)

	updated, err := w.UpdateLead(t.Context(), models.Lead{LeadID: "L-1", Stage: models.StageQualified, RowIndex: 5})
	require.NoError(t, err)
	assert.Equal(t, models.StageQualified, updated.Status)
	assert.Contains(t, auth.updates, "Leads!A5")
}

func TestRemoteWriteFailureKeepsCache(t *testing.T) {
	auth := newFakeStore()
	e, _ := newTestEngine(t, auth, nil)
	seedSheet(auth, e.Ranges)
	e.Resolver().Resolve(t.Context(), false)
	auth.writeErr = errors.New("quota exceeded")

	_, err := e.Writer().AddLead(t.Context(), models.Lead{CompanyName: "Umbrella"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRemoteWrite)
	assert.Contains(t, err.Error(), "quota exceeded")

	_, ok, err := e.Cache.Load()
	require.NoError(t, err)
	assert.True(t, ok, "a failed write leaves the cache alone")

	writes, err := db.RecentWrites(e.DB, 5)
	require.NoError(t, err)
	require.Len(t, writes, 1)
	assert.Contains(t, writes[0].ErrorMessage, "quota exceeded")
}

func TestUpdateLeadLocallyUnknownLead(t *testing.T) {
	e, _ := newTestEngine(t, nil, nil)

	_, err := e.Writer().UpdateLead(t.Context(), models.Lead{LeadID: "L-NOPE"})
	assert.ErrorIs(t, err, db.ErrLeadNotFound)

	updated, err := e.Writer().UpdateLead(t.Context(), models.Lead{LeadID: "L-LOCAL-1", CompanyName: "Renamed", Status: "Contacted"})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.RowIndex)
	assert.Equal(t, "Contacted", updated.Stage)
}

func validRules() models.RuleSets {
	return models.RuleSets{
		StageRules:      []models.StageRule{{FromStage: "Won", ToStage: "Proposal", Forbidden: true}},
		SLARules:        []models.SLARule{{Stage: "New", ThresholdHours: 12}},
		AutoActionRules: []models.AutoActionRule{{TriggerStage: "New", DefaultNextAction: "Call", DefaultDays: 1}},
		Options:         models.AppOptions{Stages: []string{"New", "Won"}},
	}
}

func TestSaveConfigRemotely(t *testing.T) {
	auth := newFakeStore()
	e, _ := newTestEngine(t, auth, nil)

	require.NoError(t, e.Writer().SaveConfig(t.Context(), validRules()))

	assert.Len(t, auth.cleared, 5)
	assert.Len(t, auth.updates, 5)
	rows := auth.updates[RowRange(e.Ranges.SLARules, 1)]
	require.Len(t, rows, 2)
	assert.Equal(t, "Stage", rows[0][0])
}

func TestSaveConfigRejectsInvalidRules(t *testing.T) {
	auth := newFakeStore()
	e, _ := newTestEngine(t, auth, nil)

	rules := validRules()
	rules.SLARules[0].ThresholdHours = 0

	err := e.Writer().SaveConfig(t.Context(), rules)
	require.ErrorIs(t, err, ErrInvalidRules)
	assert.Contains(t, err.Error(), "ThresholdHours")
	assert.Empty(t, auth.cleared)
}

func TestSaveConfigLocally(t *testing.T) {
	e, _ := newTestEngine(t, nil, nil)

	require.NoError(t, e.Writer().SaveConfig(t.Context(), validRules()))

	data := e.Resolver().Resolve(t.Context(), false)
	require.Len(t, data.SLARules, 1)
	assert.Equal(t, 12.0, data.SLARules[0].ThresholdHours)
	assert.Equal(t, []string{"New", "Won"}, data.Options.Stages)
}

func TestMoveStage(t *testing.T) {
	auth := newFakeStore()
	e, clock := newTestEngine(t, auth, nil)
	w := e.Writer()

	data := &models.SystemData{Leads: []models.Lead{
		{LeadID: "L-1", Status: models.StageNew, Stage: models.StageNew, RowIndex: 2, LostReason: "Budget"},
		{LeadID: "L-2", Status: models.StageWon, Stage: models.StageWon, RowIndex: 3},
		{LeadID: "L-3", Status: models.StageNew, Stage: models.StageNew, RowIndex: 4},
	}}

	_, err := w.MoveStage(t.Context(), data, "L-2", models.StageNew, clock.Now())
	assert.ErrorIs(t, err, workflow.ErrForbiddenTransition)

	_, err = w.MoveStage(t.Context(), data, "L-3", models.StageLost, clock.Now())
	assert.ErrorIs(t, err, workflow.ErrMissingFields)

	_, err = w.MoveStage(t.Context(), data, "L-404", models.StageLost, clock.Now())
	assert.ErrorIs(t, err, db.ErrLeadNotFound)

	_, err = w.MoveStage(t.Context(), data, "L-1", "Bogus Stage", clock.Now())
	assert.ErrorIs(t, err, workflow.ErrUnknownStage)
	assert.Empty(t, auth.updates, "rejected moves never write")

	moved, err := w.MoveStage(t.Context(), data, "L-1", "lost", clock.Now())
	require.NoError(t, err)
	assert.Equal(t, models.StageLost, moved.Status, "stage names take the configured spelling")
	assert.Equal(t, "2026-03-10", moved.LostDate)
	assert.Contains(t, auth.updates, "Leads!A2")
}
