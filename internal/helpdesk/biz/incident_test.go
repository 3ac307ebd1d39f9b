package biz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/helpdesk-x/internal/helpdesk/store"
	"github.com/kart-io/helpdesk-x/internal/model"
	"github.com/kart-io/helpdesk-x/pkg/errors"
)

func newTestFactory(t *testing.T) store.Factory {
	t.Helper()
	f, err := store.NewFactory("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func newTestIncidentService(t *testing.T) *IncidentService {
	t.Helper()
	return NewIncidentService(newTestFactory(t))
}

func vpnCreateParams() CreateParams {
	return CreateParams{
		SessionID:    "11111111-2222-4333-8444-555555555555",
		UseCase:      "vpn connection drops after sleep",
		RequiredInfo: []string{"operating system", "vpn client version"},
		Questions:    []string{"Which operating system are you on?", "Which VPN client version?"},
		KBID:         "KB001",
		SolutionSteps: "1. Open the VPN client settings.\n" +
			"2. Disable the power saving integration.",
	}
}

func TestIncidentCreatePendingInfo(t *testing.T) {
	ctx := context.Background()
	svc := newTestIncidentService(t)

	incident, err := svc.Create(ctx, vpnCreateParams())
	require.NoError(t, err)
	assert.Equal(t, model.StatusPendingInfo, incident.Status)
	assert.False(t, incident.NeedsKBApproval)
	require.NotNil(t, incident.KBID)
	assert.Equal(t, "KB001", *incident.KBID)
	assert.Equal(t, []string{"operating system", "vpn client version"}, incident.MissingInfo())

	got, err := svc.Get(ctx, incident.IncidentID)
	require.NoError(t, err)
	assert.Equal(t, incident.UseCase, got.UseCase)
}

func TestIncidentCreateWithoutSlotsOpensDirectly(t *testing.T) {
	ctx := context.Background()
	svc := newTestIncidentService(t)

	incident, err := svc.Create(ctx, CreateParams{
		SessionID:    "11111111-2222-4333-8444-555555555555",
		UseCase:      "guest wifi password request",
		IsNewKBEntry: true,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusOpen, incident.Status)
	assert.True(t, incident.NeedsKBApproval)
}

func TestIncidentRecordAnswer(t *testing.T) {
	ctx := context.Background()
	svc := newTestIncidentService(t)

	created, err := svc.Create(ctx, vpnCreateParams())
	require.NoError(t, err)

	incident, err := svc.RecordAnswer(ctx, created.IncidentID, "operating system", "windows 11, the one with all the ads")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPendingInfo, incident.Status)
	// Answers are stored verbatim, no cleanup.
	assert.Equal(t, "windows 11, the one with all the ads", incident.CollectedInfo["operating system"])
	assert.Equal(t, []string{"vpn client version"}, incident.MissingInfo())

	incident, err = svc.RecordAnswer(ctx, created.IncidentID, "vpn client version", "6.2.1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusOpen, incident.Status)
	assert.Empty(t, incident.MissingInfo())
	assert.False(t, incident.NeedsKBApproval)
}

func TestIncidentRecordAnswerFlagsNewUseCase(t *testing.T) {
	ctx := context.Background()
	svc := newTestIncidentService(t)

	created, err := svc.Create(ctx, CreateParams{
		SessionID:    "11111111-2222-4333-8444-555555555555",
		UseCase:      "standing desk controller unresponsive",
		RequiredInfo: []string{"affected device or system"},
		Questions:    []string{"Which device or system is affected?"},
		IsNewKBEntry: true,
	})
	require.NoError(t, err)

	incident, err := svc.RecordAnswer(ctx, created.IncidentID, "affected device or system", "desk controller in room 4b")
	require.NoError(t, err)
	assert.Equal(t, model.StatusOpen, incident.Status)
	assert.True(t, incident.NeedsKBApproval)
}

func TestIncidentRecordAnswerRejectsEmpty(t *testing.T) {
	ctx := context.Background()
	svc := newTestIncidentService(t)

	created, err := svc.Create(ctx, vpnCreateParams())
	require.NoError(t, err)

	_, err = svc.RecordAnswer(ctx, created.IncidentID, "operating system", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestIncidentStatusTransitions(t *testing.T) {
	ctx := context.Background()
	svc := newTestIncidentService(t)

	created, err := svc.Create(ctx, vpnCreateParams())
	require.NoError(t, err)

	// pending_info -> resolved skips open and is rejected.
	_, err = svc.SetStatus(ctx, created.IncidentID, model.StatusResolved)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidTransition)

	incident, err := svc.SetStatus(ctx, created.IncidentID, model.StatusOpen)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOpen, incident.Status)

	incident, err = svc.SetStatus(ctx, created.IncidentID, model.StatusResolved)
	require.NoError(t, err)
	assert.Equal(t, model.StatusResolved, incident.Status)

	// resolved -> open reopens the incident.
	_, err = svc.SetStatus(ctx, created.IncidentID, model.StatusOpen)
	require.NoError(t, err)

	incident, err = svc.Close(ctx, created.IncidentID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusClosed, incident.Status)

	// closed is terminal.
	_, err = svc.SetStatus(ctx, created.IncidentID, model.StatusOpen)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidTransition)
}

func TestIncidentResolveRequiresSolutionSteps(t *testing.T) {
	ctx := context.Background()
	svc := newTestIncidentService(t)

	created, err := svc.Create(ctx, CreateParams{
		SessionID:    "11111111-2222-4333-8444-555555555555",
		UseCase:      "standing desk controller unresponsive",
		IsNewKBEntry: true,
	})
	require.NoError(t, err)
	require.Equal(t, model.StatusOpen, created.Status)

	// Resolving without published steps is rejected, steps come through the
	// approval flow.
	_, err = svc.SetStatus(ctx, created.IncidentID, model.StatusResolved)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrValidation)

	got, err := svc.Get(ctx, created.IncidentID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOpen, got.Status)
}

func TestIncidentSetStatusUnknown(t *testing.T) {
	ctx := context.Background()
	svc := newTestIncidentService(t)

	_, err := svc.SetStatus(ctx, "INC20260829101500000", model.Status("archived"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestIncidentStats(t *testing.T) {
	ctx := context.Background()
	svc := newTestIncidentService(t)

	_, err := svc.Create(ctx, vpnCreateParams())
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateParams{
		SessionID:    "22222222-2222-4333-8444-555555555555",
		UseCase:      "guest wifi password request",
		IsNewKBEntry: true,
	})
	require.NoError(t, err)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.ByStatus[model.StatusPendingInfo])
	assert.Equal(t, int64(1), stats.ByStatus[model.StatusOpen])
	assert.Equal(t, int64(2), stats.CreatedLast24h)
	assert.Equal(t, int64(1), stats.PendingApproval)
}

func TestIncidentAdminMessage(t *testing.T) {
	ctx := context.Background()
	svc := newTestIncidentService(t)

	created, err := svc.Create(ctx, vpnCreateParams())
	require.NoError(t, err)
	assert.Equal(t, "We are still collecting details for this incident.", AdminMessage(created))

	incident, err := svc.SetAdminMessage(ctx, created.IncidentID, "Waiting on the network team.")
	require.NoError(t, err)
	assert.Equal(t, "Waiting on the network team.", AdminMessage(incident))

	// Last writer wins.
	incident, err = svc.SetAdminMessage(ctx, created.IncidentID, "Network team is on it.")
	require.NoError(t, err)
	assert.Equal(t, "Network team is on it.", AdminMessage(incident))
}

func TestIncidentPendingApproval(t *testing.T) {
	ctx := context.Background()
	svc := newTestIncidentService(t)

	_, err := svc.Create(ctx, vpnCreateParams())
	require.NoError(t, err)
	flagged, err := svc.Create(ctx, CreateParams{
		SessionID:    "22222222-2222-4333-8444-555555555555",
		UseCase:      "guest wifi password request",
		IsNewKBEntry: true,
	})
	require.NoError(t, err)

	list, err := svc.PendingApproval(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), list.TotalCount)
	assert.Equal(t, flagged.IncidentID, list.Items[0].IncidentID)
}
