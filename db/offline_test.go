// ABOUTME: Tests for the offline store, sync state, and write log
// ABOUTME: Uses in-memory SQLite; the bundled seed is exercised on first load
package db

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/leadsheet/models"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOfflineStoreSeedsOnFirstLoad(t *testing.T) {
	ctx := context.Background()
	store := NewOfflineStore(setupTestDB(t))

	data, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, data.Leads)
	assert.NotEmpty(t, data.SLARules)
	assert.NotEmpty(t, data.Options.Stages)
	for _, l := range data.Leads {
		assert.NotEmpty(t, l.LeadID)
		assert.NotEmpty(t, l.Status)
		assert.Equal(t, -1, l.RowIndex, "bundled leads have no sheet row")
		assert.False(t, IsPending(l))
	}

	pending, err := store.PendingLeads(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestOfflineStoreAddLead(t *testing.T) {
	ctx := context.Background()
	store := NewOfflineStore(setupTestDB(t)).WithSeed([]byte(`{"leads":[]}`))

	first, err := store.AddLead(ctx, models.Lead{CompanyName: "Acme", RowIndex: 7})
	require.NoError(t, err)
	assert.Equal(t, -1, first.RowIndex, "local leads never claim a sheet row")
	assert.True(t, IsPending(first))
	assert.Regexp(t, `^L-[0-9A-Z]{26}$`, first.LeadID)
	assert.Equal(t, models.StageNew, first.Status)
	assert.Equal(t, models.StageNew, first.Stage)

	second, err := store.AddLead(ctx, models.Lead{LeadID: "L-given", Status: "Contacted"})
	require.NoError(t, err)
	assert.Equal(t, -1, second.RowIndex)
	assert.Equal(t, "L-given", second.LeadID)
	assert.Equal(t, "Contacted", second.Stage)

	data, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, data.Leads, 2)
	assert.Equal(t, "Acme", data.Leads[0].CompanyName, "insertion order is kept")

	pending, err := store.PendingLeads(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestOfflineStoreUpdateLead(t *testing.T) {
	ctx := context.Background()
	store := NewOfflineStore(setupTestDB(t)).WithSeed([]byte(`{"leads":[{"leadId":"L-1","companyName":"Acme","status":"New","_rowIndex":4}]}`))

	updated, err := store.UpdateLead(ctx, models.Lead{LeadID: "L-1", CompanyName: "Acme Prints", RowIndex: 99})
	require.NoError(t, err)
	assert.Equal(t, 4, updated.RowIndex, "row index is owned by the store")

	data, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Acme Prints", data.Leads[0].CompanyName)

	_, err = store.UpdateLead(ctx, models.Lead{LeadID: "L-missing"})
	assert.ErrorIs(t, err, ErrLeadNotFound)

	data, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, data.Leads, 1, "unknown ids are a no-op")
}

func TestOfflineStoreUpdateRecordsAppendedRow(t *testing.T) {
	ctx := context.Background()
	store := NewOfflineStore(setupTestDB(t)).WithSeed([]byte(`{"leads":[]}`))

	added, err := store.AddLead(ctx, models.Lead{CompanyName: "Walk-in"})
	require.NoError(t, err)

	added.Remarks = "edited offline"
	edited, err := store.UpdateLead(ctx, added)
	require.NoError(t, err)
	assert.True(t, IsPending(edited), "local edits keep the lead pending")

	edited.RowIndex = 12
	placed, err := store.UpdateLead(ctx, edited)
	require.NoError(t, err)
	assert.Equal(t, 12, placed.RowIndex)
	assert.False(t, IsPending(placed))

	pending, err := store.PendingLeads(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestOfflineStoreMirrorKeepsPendingLeads(t *testing.T) {
	ctx := context.Background()
	store := NewOfflineStore(setupTestDB(t)).WithSeed([]byte(`{"leads":[]}`))

	local, err := store.AddLead(ctx, models.Lead{LeadID: "L-local", CompanyName: "Walk-in"})
	require.NoError(t, err)

	snapshot := &models.SystemData{Leads: []models.Lead{
		{LeadID: "L-1", Status: "New", RowIndex: 2},
		{LeadID: "L-2", Status: "New", RowIndex: 10},
	}}
	kept, err := store.Mirror(ctx, snapshot)
	require.NoError(t, err)
	require.Len(t, kept, 1)
	assert.Equal(t, local.LeadID, kept[0].LeadID)

	data, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, data.Leads, 3)
	assert.Equal(t, "L-local", data.Leads[2].LeadID, "pending leads follow the sheet rows")
	assert.Len(t, snapshot.Leads, 2, "the snapshot itself is not modified")

	snapshot.Leads[0].CompanyName = "mutated after mirror"
	data, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, data.Leads[0].CompanyName)

	placed := models.Lead{LeadID: "L-local", CompanyName: "Walk-in", Status: "New", RowIndex: 11}
	kept, err = store.Mirror(ctx, &models.SystemData{Leads: []models.Lead{placed}})
	require.NoError(t, err)
	assert.Empty(t, kept, "a lead the sheet holds is no longer pending")

	data, err = store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, data.Leads, 1)
	assert.Equal(t, 11, data.Leads[0].RowIndex)
}

func TestOfflineStoreSaveConfigAndReset(t *testing.T) {
	ctx := context.Background()
	store := NewOfflineStore(setupTestDB(t))

	rules := models.RuleSets{
		SLARules: []models.SLARule{{Stage: "Proposal", ThresholdHours: 6}},
		Options:  models.AppOptions{Stages: []string{"New", "Won", "Lost"}},
	}
	require.NoError(t, store.SaveConfig(ctx, rules))

	data, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, rules.SLARules, data.SLARules)
	assert.Equal(t, []string{"New", "Won", "Lost"}, data.Stages())
	assert.NotEmpty(t, data.Leads, "config saves leave leads alone")

	require.NoError(t, store.Reset(ctx))
	data, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, data.SLARules, 4, "reset reseeds from the bundled data")
}

func TestSyncStateAndLastError(t *testing.T) {
	db := setupTestDB(t)

	state, err := GetSyncState(db, "sheets")
	require.NoError(t, err)
	assert.Nil(t, state)

	msg, err := LastSyncError(db)
	require.NoError(t, err)
	assert.Empty(t, msg)

	require.NoError(t, RecordSyncError(db, "sheets", "token expired"))
	msg, err = LastSyncError(db)
	require.NoError(t, err)
	assert.Equal(t, "token expired", msg)

	require.NoError(t, RecordSyncSuccess(db, "sheets", "42 leads"))
	state, err = GetSyncState(db, "sheets")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, SyncStatusOK, state.Status)
	assert.Nil(t, state.ErrorMessage)
	require.NotNil(t, state.LastSyncTime)
	require.NotNil(t, state.Detail)
	assert.Equal(t, "42 leads", *state.Detail)

	msg, err = LastSyncError(db)
	require.NoError(t, err)
	assert.Empty(t, msg)

	require.NoError(t, RecordSyncError(db, "public", "quota exceeded"))
	states, err := GetAllSyncStates(db)
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, "public", states[0].Service)
}

func TestWriteLog(t *testing.T) {
	db := setupTestDB(t)

	id, err := AppendWriteLog(db, WriteLogEntry{LeadID: "L-1", Op: OpAdd, Target: TargetLocal, RowIndex: 2})
	require.NoError(t, err)
	assert.Len(t, id, 36)

	_, err = AppendWriteLog(db, WriteLogEntry{LeadID: "L-1", Op: OpUpdate, Target: TargetRemote, RowIndex: 2, ErrorMessage: "503"})
	require.NoError(t, err)

	_, err = AppendWriteLog(db, WriteLogEntry{Op: "delete", Target: TargetLocal})
	assert.Error(t, err, "unknown ops violate the check constraint")

	entries, err := RecentWrites(db, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, OpUpdate, entries[0].Op)
	assert.Equal(t, "503", entries[0].ErrorMessage)
	assert.Equal(t, OpAdd, entries[1].Op)
	assert.Empty(t, entries[1].ErrorMessage)
}
