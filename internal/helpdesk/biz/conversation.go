package biz

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/helpdesk-x/internal/helpdesk/store"
	"github.com/kart-io/helpdesk-x/internal/model"
	"github.com/kart-io/helpdesk-x/pkg/errors"
	"github.com/kart-io/helpdesk-x/pkg/id"
)

// Slots collected for use cases the knowledge base has never seen. They keep
// the dialog shape identical to matched incidents until an admin curates the
// real slot list at approval time.
var (
	newUseCaseRequiredInfo = []string{
		"affected device or system",
		"when the issue started",
	}
	newUseCaseQuestions = []string{
		"Which device or system is affected?",
		"When did the issue start?",
	}
)

// ConversationService drives the multi-turn helpdesk dialog. Turns of one
// session are processed strictly one at a time.
type ConversationService struct {
	sessions  store.SessionStore
	incidents *IncidentService
	kb        *SyncEngine
	matcher   *MatcherService
	locks     *keyedMutex
}

// NewConversationService creates a new ConversationService.
func NewConversationService(sessions store.SessionStore, incidents *IncidentService, kb *SyncEngine, matcher *MatcherService) *ConversationService {
	return &ConversationService{
		sessions:  sessions,
		incidents: incidents,
		kb:        kb,
		matcher:   matcher,
		locks:     newKeyedMutex(),
	}
}

// Handle processes one user turn. An empty sessionID starts a fresh session.
// The session is only persisted when the turn succeeds, a failed turn leaves
// the conversation exactly where it was.
func (c *ConversationService) Handle(ctx context.Context, sessionID, message string) (*Reply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, errors.ErrValidation.WithMessage("message must not be empty")
	}
	if sessionID == "" {
		sessionID = id.NewSessionID()
	}

	unlock := c.locks.Lock(sessionID)
	defer unlock()

	session, err := c.sessions.Get(ctx, sessionID)
	if err != nil {
		if !stderrors.Is(err, errors.ErrSessionNotFound) {
			return nil, err
		}
		session = model.NewSession(sessionID)
	}

	reply, err := c.dispatch(ctx, session, message)
	if err != nil {
		return nil, err
	}
	reply.SessionID = session.ID

	session.AppendMessage("user", message)
	session.AppendMessage("assistant", reply.Message)
	session.Touch()
	if err := c.sessions.Put(ctx, session); err != nil {
		return nil, err
	}
	return reply, nil
}

// ClearSession drops a session entirely. Deleting a session that does not
// exist is not an error.
func (c *ConversationService) ClearSession(ctx context.Context, sessionID string) error {
	unlock := c.locks.Lock(sessionID)
	defer unlock()

	if err := c.sessions.Delete(ctx, sessionID); err != nil && !stderrors.Is(err, errors.ErrSessionNotFound) {
		return err
	}
	return nil
}

func (c *ConversationService) dispatch(ctx context.Context, session *model.Session, message string) (*Reply, error) {
	// Global commands win over whatever state the dialog is in.
	switch {
	case isGreeting(message):
		session.ClearFlow()
		return menuReply(session.ID, msgMenu), nil
	case isClearCommand(message):
		session.ClearFlow()
		return &Reply{
			Message:           msgSessionCleared,
			Action:            actionSessionCleared,
			ShowActionButtons: true,
			ActionButtons:     menuButtons(),
		}, nil
	case isFarewell(message):
		return &Reply{Message: msgFarewell}, nil
	case isCloseCommand(message):
		return c.handleClose(ctx, session, message)
	}

	switch session.State {
	case model.StateAwaitingIntent:
		return c.handleIntent(ctx, session, message)
	case model.StateAwaitingIssueDescription:
		return c.handleIssueDescription(ctx, session, message)
	case model.StateAwaitingDecision:
		return c.handleDecision(ctx, session, message)
	case model.StateAwaitingIncidentSelection:
		return c.handleSelection(ctx, session, message)
	case model.StateCollectingInfo:
		return c.handleAnswer(ctx, session, message)
	case model.StateAwaitingIncidentID:
		return c.handleTrack(ctx, session, message)
	case model.StateAwaitingPreviousIncidentID:
		return c.handlePrevious(ctx, session, message)
	default:
		session.ClearFlow()
		return menuReply(session.ID, msgMenu), nil
	}
}

func (c *ConversationService) handleIntent(ctx context.Context, session *model.Session, message string) (*Reply, error) {
	switch parseIntent(message) {
	case IntentCreate:
		return c.startCreateFlow(ctx, session)
	case IntentTrack:
		session.State = model.StateAwaitingIncidentID
		return &Reply{Message: msgAskIncidentID}, nil
	case IntentPrevious:
		session.State = model.StateAwaitingPreviousIncidentID
		return &Reply{Message: msgAskIncidentID}, nil
	}
	return menuReply(session.ID, "Sorry, I did not catch that.\n\n"+msgMenu), nil
}

// startCreateFlow checks for an unfinished incident in this session before
// asking for a fresh description.
func (c *ConversationService) startCreateFlow(ctx context.Context, session *model.Session) (*Reply, error) {
	_, pending, err := c.incidents.store.Incidents().List(ctx, store.IncidentListOptions{
		SessionID: session.ID,
		Status:    model.StatusPendingInfo,
		Limit:     1,
	})
	if err != nil {
		return nil, err
	}
	if len(pending) > 0 {
		incident := pending[0]
		session.State = model.StateAwaitingIncidentSelection
		session.ActiveIncidentID = incident.IncidentID
		return &Reply{
			Message: fmt.Sprintf(
				"You already have an unfinished incident %s (%s). Want to continue with it or start a new one?",
				incident.IncidentID, incident.UseCase),
			IncidentID:        incident.IncidentID,
			ShowActionButtons: true,
			ActionButtons:     selectionButtons(),
		}, nil
	}

	session.State = model.StateAwaitingIssueDescription
	return &Reply{Message: msgDescribeIssue}, nil
}

func (c *ConversationService) handleIssueDescription(ctx context.Context, session *model.Session, message string) (*Reply, error) {
	match, err := c.matcher.Best(ctx, message)
	if err != nil {
		if stderrors.Is(err, errors.ErrUpstreamTimeout) {
			// Keep the state, the user can simply resend the description.
			logger.Warnw("向量化超时, 提示用户重试", "session_id", session.ID)
			return &Reply{Message: msgEmbedDown}, nil
		}
		return nil, err
	}

	if match != nil {
		session.State = model.StateAwaitingDecision
		session.PendingIssue = message
		session.PendingKBID = match.KBID
		return &Reply{
			Message:           matchSuggestion(match.UseCase, match.Score),
			ShowActionButtons: true,
			ActionButtons:     decisionButtons(),
		}, nil
	}
	return c.createNewUseCaseIncident(ctx, session, message)
}

func (c *ConversationService) handleDecision(ctx context.Context, session *model.Session, message string) (*Reply, error) {
	switch parseDecision(message) {
	case DecisionKeep:
		entry, err := c.kb.Entry(ctx, session.PendingKBID)
		if err != nil {
			if stderrors.Is(err, errors.ErrKBEntryNotFound) {
				// The entry was removed between match and decision, fall back
				// to the new use case path.
				logger.Warnw("匹配条目已被删除", "kb_id", session.PendingKBID, "session_id", session.ID)
				return c.createNewUseCaseIncident(ctx, session, session.PendingIssue)
			}
			return nil, err
		}
		return c.createIncidentFromEntry(ctx, session, entry)
	case DecisionIgnore:
		return c.createNewUseCaseIncident(ctx, session, session.PendingIssue)
	}
	return &Reply{
		Message:           "Please pick one of the options.",
		ShowActionButtons: true,
		ActionButtons:     decisionButtons(),
	}, nil
}

func (c *ConversationService) handleSelection(ctx context.Context, session *model.Session, message string) (*Reply, error) {
	switch parseSelection(message) {
	case SelectionContinue:
		incident, err := c.incidents.Get(ctx, session.ActiveIncidentID)
		if err != nil {
			if stderrors.Is(err, errors.ErrIncidentNotFound) {
				session.State = model.StateAwaitingIssueDescription
				session.ActiveIncidentID = ""
				return &Reply{Message: "That incident is gone. " + msgDescribeIssue}, nil
			}
			return nil, err
		}
		question, ok := incident.NextQuestion()
		if !ok {
			// Nothing left to collect, treat it as complete.
			return c.finishCollection(ctx, session, incident)
		}
		session.State = model.StateCollectingInfo
		return &Reply{
			Message:    fmt.Sprintf("Picking up incident %s. %s", incident.IncidentID, question),
			IncidentID: incident.IncidentID,
			Status:     incident.Status,
			Action:     actionIncidentResumed,
		}, nil
	case SelectionNew:
		session.State = model.StateAwaitingIssueDescription
		session.ActiveIncidentID = ""
		return &Reply{Message: msgDescribeIssue}, nil
	}
	return &Reply{
		Message:           "Please pick one of the options.",
		ShowActionButtons: true,
		ActionButtons:     selectionButtons(),
	}, nil
}

func (c *ConversationService) handleAnswer(ctx context.Context, session *model.Session, message string) (*Reply, error) {
	incident, err := c.incidents.Get(ctx, session.ActiveIncidentID)
	if err != nil {
		return nil, err
	}
	missing := incident.MissingInfo()
	if len(missing) == 0 {
		return c.finishCollection(ctx, session, incident)
	}

	// Answers are stored verbatim against the slot currently being asked.
	incident, err = c.incidents.RecordAnswer(ctx, incident.IncidentID, missing[0], message)
	if err != nil {
		return nil, err
	}

	if question, ok := incident.NextQuestion(); ok {
		return &Reply{
			Message:    question,
			IncidentID: incident.IncidentID,
			Status:     incident.Status,
		}, nil
	}
	return c.finishCollection(ctx, session, incident)
}

func (c *ConversationService) handleTrack(ctx context.Context, session *model.Session, message string) (*Reply, error) {
	incidentID, ok := id.ExtractIncidentID(message)
	if !ok {
		return &Reply{Message: msgNoIncidentID}, nil
	}
	incident, err := c.incidents.Get(ctx, incidentID)
	if err != nil {
		if stderrors.Is(err, errors.ErrIncidentNotFound) {
			return &Reply{
				Message: fmt.Sprintf("I could not find incident %s. Please double check the number.", incidentID),
				Action:  actionIncidentNotFound,
			}, nil
		}
		return nil, err
	}

	session.ClearFlow()
	session.ActiveIncidentID = incident.IncidentID
	reply := &Reply{
		Message:    incidentStatusLine(incident),
		IncidentID: incident.IncidentID,
		Status:     incident.Status,
	}
	if !incident.Status.IsTerminal() {
		reply.ShowActionButtons = true
		reply.ActionButtons = []model.ActionButton{{Label: "Close this incident", Value: "close_incident"}}
	}
	return reply, nil
}

func (c *ConversationService) handlePrevious(ctx context.Context, session *model.Session, message string) (*Reply, error) {
	incidentID, ok := id.ExtractIncidentID(message)
	if !ok {
		return &Reply{Message: msgNoIncidentID}, nil
	}
	incident, err := c.incidents.Get(ctx, incidentID)
	if err != nil {
		if stderrors.Is(err, errors.ErrIncidentNotFound) {
			return &Reply{
				Message: fmt.Sprintf("I could not find incident %s. Please double check the number.", incidentID),
				Action:  actionIncidentNotFound,
			}, nil
		}
		return nil, err
	}

	session.ClearFlow()
	if incident.SolutionSteps == "" {
		return &Reply{
			Message: fmt.Sprintf(
				"Incident %s has no published solution yet (status %s).", incident.IncidentID, incident.Status),
			IncidentID: incident.IncidentID,
			Status:     incident.Status,
			Action:     actionIncidentNotFound,
		}, nil
	}
	return &Reply{
		Message:    fmt.Sprintf("Solution for incident %s:\n%s", incident.IncidentID, incident.SolutionSteps),
		IncidentID: incident.IncidentID,
		Status:     incident.Status,
	}, nil
}

// handleClose closes the incident named in the message, falling back to the
// session's active incident.
func (c *ConversationService) handleClose(ctx context.Context, session *model.Session, message string) (*Reply, error) {
	incidentID, ok := id.ExtractIncidentID(message)
	if !ok {
		incidentID = session.ActiveIncidentID
	}
	if incidentID == "" {
		return &Reply{Message: "Which incident should I close? " + msgAskIncidentID}, nil
	}

	incident, err := c.incidents.Close(ctx, incidentID)
	if err != nil {
		switch {
		case stderrors.Is(err, errors.ErrIncidentNotFound):
			return &Reply{Message: fmt.Sprintf("I could not find incident %s.", incidentID)}, nil
		case stderrors.Is(err, errors.ErrInvalidTransition):
			return &Reply{Message: fmt.Sprintf("Incident %s is already closed.", incidentID)}, nil
		}
		return nil, err
	}

	session.ClearFlow()
	return &Reply{
		Message:    fmt.Sprintf("Done, incident %s is closed. Anything else?", incident.IncidentID),
		IncidentID: incident.IncidentID,
		Status:     incident.Status,
		Action:     actionIncidentClosed,
	}, nil
}

// createIncidentFromEntry opens an incident bound to a matched knowledge
// base entry, inheriting its slots and published solution.
func (c *ConversationService) createIncidentFromEntry(ctx context.Context, session *model.Session, entry *model.KBEntry) (*Reply, error) {
	incident, err := c.incidents.Create(ctx, CreateParams{
		SessionID:     session.ID,
		UseCase:       entry.UseCase,
		RequiredInfo:  entry.RequiredInfo,
		Questions:     entry.Questions,
		KBID:          entry.KBID,
		SolutionSteps: entry.SolutionSteps,
	})
	if err != nil {
		return nil, err
	}
	return c.afterCreate(ctx, session, incident)
}

// createNewUseCaseIncident opens an incident for a description nothing in
// the knowledge base matched. It collects the generic slot set and flags the
// incident for admin approval once complete.
func (c *ConversationService) createNewUseCaseIncident(ctx context.Context, session *model.Session, issue string) (*Reply, error) {
	incident, err := c.incidents.Create(ctx, CreateParams{
		SessionID:    session.ID,
		UseCase:      issue,
		RequiredInfo: newUseCaseRequiredInfo,
		Questions:    newUseCaseQuestions,
		IsNewKBEntry: true,
	})
	if err != nil {
		return nil, err
	}
	return c.afterCreate(ctx, session, incident)
}

func (c *ConversationService) afterCreate(ctx context.Context, session *model.Session, incident *model.Incident) (*Reply, error) {
	session.PendingIssue = ""
	session.PendingKBID = ""
	session.ActiveIncidentID = incident.IncidentID

	question, ok := incident.NextQuestion()
	if !ok {
		return c.finishCollection(ctx, session, incident)
	}
	session.State = model.StateCollectingInfo
	return &Reply{
		Message: fmt.Sprintf(
			"I created incident %s for you. A few quick questions first.\n%s",
			incident.IncidentID, question),
		IncidentID: incident.IncidentID,
		Status:     incident.Status,
		Action:     actionIncidentCreated,
	}, nil
}

// finishCollection wraps up slot filling and returns the session to the
// main menu. Incidents bound to an entry with published steps resolve on
// the spot with the steps surfaced, everything else stays open for an
// engineer.
func (c *ConversationService) finishCollection(ctx context.Context, session *model.Session, incident *model.Incident) (*Reply, error) {
	if incident.Status == model.StatusPendingInfo {
		var err error
		incident, err = c.incidents.SetStatus(ctx, incident.IncidentID, model.StatusOpen)
		if err != nil {
			return nil, err
		}
		if incident.IsNewKBEntry && !incident.NeedsKBApproval {
			incident.NeedsKBApproval = true
			if err := c.incidents.Update(ctx, incident); err != nil {
				return nil, err
			}
		}
	}

	knownFix := incident.SolutionSteps != "" && !incident.IsNewKBEntry
	if knownFix && incident.Status == model.StatusOpen {
		var err error
		incident, err = c.incidents.SetStatus(ctx, incident.IncidentID, model.StatusResolved)
		if err != nil {
			return nil, err
		}
	}

	var msg string
	if knownFix {
		msg = fmt.Sprintf("Thanks, that is everything I need. Incident %s is resolved.", incident.IncidentID) +
			"\n\nHere is the fix that worked before:\n" + incident.SolutionSteps +
			"\n\nIf this does not solve it, reply here and an engineer will follow up."
	} else {
		msg = fmt.Sprintf(
			"Thanks, that is everything I need. Incident %s is now open. An engineer will take a look shortly.",
			incident.IncidentID)
	}

	session.ClearFlow()
	session.ActiveIncidentID = incident.IncidentID
	return &Reply{
		Message:    msg,
		IncidentID: incident.IncidentID,
		Status:     incident.Status,
		Action:     actionIncidentComplete,
	}, nil
}
