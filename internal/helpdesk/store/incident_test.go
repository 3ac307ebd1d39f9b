package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/helpdesk-x/internal/model"
	"github.com/kart-io/helpdesk-x/pkg/errors"
)

func newTestFactory(t *testing.T) Factory {
	t.Helper()
	f, err := NewFactory("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func sampleIncident(id string) *model.Incident {
	return &model.Incident{
		IncidentID:   id,
		SessionID:    "11111111-2222-4333-8444-555555555555",
		UseCase:      "vpn connection drops after sleep",
		Status:       model.StatusPendingInfo,
		RequiredInfo: []string{"operating system", "vpn client version"},
		CollectedInfo: map[string]string{
			"operating system": "windows 11",
		},
		Questions:       []string{"Which operating system are you on?", "Which VPN client version?"},
		IsNewKBEntry:    true,
		NeedsKBApproval: false,
	}
}

func TestIncidentCreateGet(t *testing.T) {
	ctx := context.Background()
	s := newTestFactory(t).Incidents()

	inc := sampleIncident("INC20260829101500000")
	require.NoError(t, s.Create(ctx, inc))

	got, err := s.Get(ctx, "INC20260829101500000")
	require.NoError(t, err)
	assert.Equal(t, inc.UseCase, got.UseCase)
	assert.Equal(t, model.StatusPendingInfo, got.Status)
	assert.Equal(t, []string{"operating system", "vpn client version"}, got.RequiredInfo)
	assert.Equal(t, "windows 11", got.CollectedInfo["operating system"])
	assert.Equal(t, []string{"vpn client version"}, got.MissingInfo())
}

func TestIncidentGetNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestFactory(t).Incidents()

	_, err := s.Get(ctx, "INC20260829000000000")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrIncidentNotFound)
}

func TestIncidentUpdateStatusCAS(t *testing.T) {
	ctx := context.Background()
	s := newTestFactory(t).Incidents()

	inc := sampleIncident("INC20260829101500001")
	require.NoError(t, s.Create(ctx, inc))

	// First transition wins.
	require.NoError(t, s.UpdateStatus(ctx, inc.IncidentID, model.StatusPendingInfo, model.StatusOpen))

	// Second writer still expects pending_info and must lose.
	err := s.UpdateStatus(ctx, inc.IncidentID, model.StatusPendingInfo, model.StatusOpen)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidTransition)

	got, err := s.Get(ctx, inc.IncidentID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOpen, got.Status)
}

func TestIncidentUpdateStatusMissing(t *testing.T) {
	ctx := context.Background()
	s := newTestFactory(t).Incidents()

	err := s.UpdateStatus(ctx, "INC20260829000000000", model.StatusOpen, model.StatusResolved)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrIncidentNotFound)
}

func TestIncidentListFilters(t *testing.T) {
	ctx := context.Background()
	s := newTestFactory(t).Incidents()

	a := sampleIncident("INC20260829101500002")
	b := sampleIncident("INC20260829101500003")
	b.Status = model.StatusOpen
	b.NeedsKBApproval = true
	c := sampleIncident("INC20260829101500004")
	c.SessionID = "99999999-8888-4777-8666-555555555555"
	require.NoError(t, s.Create(ctx, a))
	require.NoError(t, s.Create(ctx, b))
	require.NoError(t, s.Create(ctx, c))

	count, items, err := s.List(ctx, IncidentListOptions{Status: model.StatusPendingInfo})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Len(t, items, 2)

	approval := true
	count, items, err = s.List(ctx, IncidentListOptions{NeedsKBApproval: &approval})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	require.Len(t, items, 1)
	assert.Equal(t, "INC20260829101500003", items[0].IncidentID)

	count, _, err = s.List(ctx, IncidentListOptions{SessionID: c.SessionID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestIncidentCountByStatus(t *testing.T) {
	ctx := context.Background()
	s := newTestFactory(t).Incidents()

	a := sampleIncident("INC20260829101500005")
	b := sampleIncident("INC20260829101500006")
	b.Status = model.StatusResolved
	require.NoError(t, s.Create(ctx, a))
	require.NoError(t, s.Create(ctx, b))

	counts, err := s.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[model.StatusPendingInfo])
	assert.Equal(t, int64(1), counts[model.StatusResolved])
}

func TestIncidentDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestFactory(t).Incidents()

	inc := sampleIncident("INC20260829101500007")
	require.NoError(t, s.Create(ctx, inc))
	require.NoError(t, s.Delete(ctx, inc.IncidentID))

	err := s.Delete(ctx, inc.IncidentID)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrIncidentNotFound)
}

func TestKBEntryRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestFactory(t).KBEntries()

	entry := &model.KBEntry{
		KBID:          "KB01J9ZA6T1R2Q3W4E5R6T7Y8U",
		UseCase:       "outlook keeps asking for password",
		RequiredInfo:  []string{"operating system", "outlook version"},
		Questions:     []string{"Which operating system?", "Which Outlook version?"},
		SolutionSteps: "1. Clear the credential cache\n2. Re-add the account",
	}
	require.NoError(t, s.Create(ctx, entry))

	got, err := s.Get(ctx, entry.KBID)
	require.NoError(t, err)
	assert.Equal(t, entry.UseCase, got.UseCase)
	assert.Equal(t, entry.SolutionSteps, got.SolutionSteps)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// Idempotent delete.
	require.NoError(t, s.Delete(ctx, entry.KBID))
	require.NoError(t, s.Delete(ctx, entry.KBID))

	_, err = s.Get(ctx, entry.KBID)
	assert.ErrorIs(t, err, errors.ErrKBEntryNotFound)
}
