package biz

import (
	"context"
	"time"

	"github.com/kart-io/helpdesk-x/internal/helpdesk/store"
	"github.com/kart-io/helpdesk-x/internal/model"
	"github.com/kart-io/helpdesk-x/pkg/errors"
	"github.com/kart-io/helpdesk-x/pkg/id"
)

// freshWindow is the lookback used by Stats for the recent incident count.
const freshWindow = 24 * time.Hour

// defaultAdminMessages are shown when an incident carries no explicit admin
// note for its current status.
var defaultAdminMessages = map[model.Status]string{
	model.StatusPendingInfo: "We are still collecting details for this incident.",
	model.StatusOpen:        "Your incident is queued. An engineer will pick it up shortly.",
	model.StatusResolved:    "A solution has been published for this incident.",
	model.StatusClosed:      "This incident is closed. Open a new one if the problem returns.",
}

// IncidentStats is the admin dashboard summary.
type IncidentStats struct {
	Total           int64                  `json:"total"`
	ByStatus        map[model.Status]int64 `json:"by_status"`
	CreatedLast24h  int64                  `json:"created_last_24h"`
	PendingApproval int64                  `json:"pending_approval"`
}

// IncidentService handles incident business logic.
type IncidentService struct {
	store  store.Factory
	idents *id.IncidentGenerator
}

// NewIncidentService creates a new IncidentService.
func NewIncidentService(factory store.Factory) *IncidentService {
	return &IncidentService{
		store:  factory,
		idents: id.NewIncidentGenerator(),
	}
}

// CreateParams carries everything needed to open an incident.
type CreateParams struct {
	SessionID    string
	UseCase      string
	RequiredInfo []string
	Questions    []string
	// KBID binds the incident to a matched knowledge base entry. Empty for a
	// brand new use case.
	KBID          string
	SolutionSteps string
	IsNewKBEntry  bool
}

// Create opens a new incident in pending_info, or directly in open when the
// use case needs no further information.
func (s *IncidentService) Create(ctx context.Context, params CreateParams) (*model.Incident, error) {
	incident := &model.Incident{
		IncidentID:    s.idents.Next(),
		SessionID:     params.SessionID,
		UseCase:       params.UseCase,
		Status:        model.StatusPendingInfo,
		RequiredInfo:  params.RequiredInfo,
		CollectedInfo: map[string]string{},
		Questions:     params.Questions,
		SolutionSteps: params.SolutionSteps,
		IsNewKBEntry:  params.IsNewKBEntry,
	}
	if params.KBID != "" {
		kbID := params.KBID
		incident.KBID = &kbID
	}
	if len(params.RequiredInfo) == 0 {
		incident.Status = model.StatusOpen
		incident.NeedsKBApproval = params.IsNewKBEntry
	}
	if err := s.store.Incidents().Create(ctx, incident); err != nil {
		return nil, err
	}
	return incident, nil
}

// Get returns one incident by id.
func (s *IncidentService) Get(ctx context.Context, incidentID string) (*model.Incident, error) {
	return s.store.Incidents().Get(ctx, incidentID)
}

// Update persists a modified incident.
func (s *IncidentService) Update(ctx context.Context, incident *model.Incident) error {
	return s.store.Incidents().Update(ctx, incident)
}

// RecordAnswer stores one verbatim slot answer and moves the incident to
// open once the last slot is filled. It returns the updated incident.
func (s *IncidentService) RecordAnswer(ctx context.Context, incidentID, slot, answer string) (*model.Incident, error) {
	if answer == "" {
		return nil, errors.ErrValidation.WithMessage("answer must not be empty")
	}
	incident, err := s.store.Incidents().Get(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	if incident.CollectedInfo == nil {
		incident.CollectedInfo = map[string]string{}
	}
	incident.CollectedInfo[slot] = answer
	incident.AppendHistory("user", answer)

	if len(incident.MissingInfo()) == 0 && incident.Status == model.StatusPendingInfo {
		incident.Status = model.StatusOpen
		incident.NeedsKBApproval = incident.IsNewKBEntry
	}
	if err := s.store.Incidents().Update(ctx, incident); err != nil {
		return nil, err
	}
	return incident, nil
}

// SetStatus transitions an incident, rejecting moves the lifecycle does not
// allow. The write itself is a compare-and-set so concurrent transitions
// cannot both win.
func (s *IncidentService) SetStatus(ctx context.Context, incidentID string, to model.Status) (*model.Incident, error) {
	if !to.Valid() {
		return nil, errors.ErrValidation.WithMessagef("unknown status %q", to)
	}
	incident, err := s.store.Incidents().Get(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	if !incident.Status.CanTransitionTo(to) {
		return nil, errors.ErrInvalidTransition.WithMessagef(
			"cannot move incident %s from %s to %s", incidentID, incident.Status, to)
	}
	// A resolved incident always carries published steps, admins publish
	// them through the approval flow.
	if to == model.StatusResolved && incident.SolutionSteps == "" {
		return nil, errors.ErrValidation.WithMessagef(
			"incident %s has no solution steps, approve it instead", incidentID)
	}
	if err := s.store.Incidents().UpdateStatus(ctx, incidentID, incident.Status, to); err != nil {
		return nil, err
	}
	incident.Status = to
	return incident, nil
}

// Close moves an incident to closed from any non-terminal state.
func (s *IncidentService) Close(ctx context.Context, incidentID string) (*model.Incident, error) {
	return s.SetStatus(ctx, incidentID, model.StatusClosed)
}

// Delete removes an incident permanently.
func (s *IncidentService) Delete(ctx context.Context, incidentID string) error {
	return s.store.Incidents().Delete(ctx, incidentID)
}

// List returns incidents matching opts with the total match count.
func (s *IncidentService) List(ctx context.Context, opts store.IncidentListOptions) (*model.IncidentList, error) {
	total, items, err := s.store.Incidents().List(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &model.IncidentList{TotalCount: total, Items: items}, nil
}

// PendingApproval lists open incidents waiting for a knowledge base decision.
func (s *IncidentService) PendingApproval(ctx context.Context) (*model.IncidentList, error) {
	needs := true
	return s.List(ctx, store.IncidentListOptions{NeedsKBApproval: &needs})
}

// Stats aggregates counts for the admin dashboard.
func (s *IncidentService) Stats(ctx context.Context) (*IncidentStats, error) {
	byStatus, err := s.store.Incidents().CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	var total int64
	for _, n := range byStatus {
		total += n
	}

	since := time.Now().Add(-freshWindow).UnixMilli()
	recent, err := s.store.Incidents().CountSince(ctx, since)
	if err != nil {
		return nil, err
	}

	needs := true
	pending, _, err := s.store.Incidents().List(ctx, store.IncidentListOptions{NeedsKBApproval: &needs})
	if err != nil {
		return nil, err
	}

	return &IncidentStats{
		Total:           total,
		ByStatus:        byStatus,
		CreatedLast24h:  recent,
		PendingApproval: pending,
	}, nil
}

// SetAdminMessage overwrites the admin note on an incident. Last writer wins.
func (s *IncidentService) SetAdminMessage(ctx context.Context, incidentID, message string) (*model.Incident, error) {
	incident, err := s.store.Incidents().Get(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	incident.AdminMessage = message
	if err := s.store.Incidents().Update(ctx, incident); err != nil {
		return nil, err
	}
	return incident, nil
}

// AdminMessage returns the incident's admin note, falling back to the stock
// message for its status.
func AdminMessage(incident *model.Incident) string {
	if incident.AdminMessage != "" {
		return incident.AdminMessage
	}
	return defaultAdminMessages[incident.Status]
}
