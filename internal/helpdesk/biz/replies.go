package biz

import (
	"fmt"

	"github.com/kart-io/helpdesk-x/internal/model"
)

// Reply is one assistant turn sent back to the chat client.
type Reply struct {
	Message    string       `json:"message"`
	SessionID  string       `json:"session_id"`
	IncidentID string       `json:"incident_id,omitempty"`
	Status     model.Status `json:"status,omitempty"`

	// Action hints the client at what just happened, e.g. "incident_created".
	Action string `json:"action,omitempty"`

	ShowActionButtons bool                 `json:"show_action_buttons"`
	ActionButtons     []model.ActionButton `json:"action_buttons,omitempty"`
}

const (
	actionIncidentCreated  = "incident_created"
	actionIncidentResumed  = "incident_resumed"
	actionIncidentComplete = "incident_complete"
	actionIncidentClosed   = "incident_closed"
	actionSessionCleared   = "session_cleared"

	// actionIncidentNotFound marks lookups the client should treat as a
	// miss rather than parse out of the prose.
	actionIncidentNotFound = "incident_not_found"
)

const (
	msgMenu = "Hello! I am the IT helpdesk assistant. What would you like to do?\n" +
		"1. Report a new issue\n" +
		"2. Track an existing incident\n" +
		"3. View the solution of a previous incident"
	msgFarewell       = "You're welcome! Come back any time your IT acts up."
	msgSessionCleared = "All set, I cleared our conversation. What would you like to do next?"
	msgDescribeIssue  = "Please describe the issue you are running into."
	msgAskIncidentID  = "Please give me the incident number (it looks like INC20260829101500000)."
	msgNoIncidentID   = "I could not find an incident number in that. It looks like INC followed by 17 digits."
	msgEmbedDown      = "I am having trouble analyzing descriptions right now. Please try again in a moment."
)

func menuButtons() []model.ActionButton {
	return []model.ActionButton{
		{Label: "Report a new issue", Value: string(IntentCreate)},
		{Label: "Track an incident", Value: string(IntentTrack)},
		{Label: "View a previous solution", Value: string(IntentPrevious)},
	}
}

func decisionButtons() []model.ActionButton {
	return []model.ActionButton{
		{Label: "Yes, that's my issue", Value: string(DecisionKeep)},
		{Label: "No, it's something else", Value: string(DecisionIgnore)},
	}
}

func selectionButtons() []model.ActionButton {
	return []model.ActionButton{
		{Label: "Continue where we left off", Value: string(SelectionContinue)},
		{Label: "Start a new incident", Value: string(SelectionNew)},
	}
}

func menuReply(sessionID, message string) *Reply {
	return &Reply{
		Message:           message,
		SessionID:         sessionID,
		ShowActionButtons: true,
		ActionButtons:     menuButtons(),
	}
}

func matchSuggestion(useCase string, score float32) string {
	return fmt.Sprintf(
		"That sounds like a known issue: %q (similarity %.0f%%). Is this what you are seeing?",
		useCase, score*100)
}

func incidentStatusLine(incident *model.Incident) string {
	msg := fmt.Sprintf("Incident %s is %s.", incident.IncidentID, incident.Status)
	if note := AdminMessage(incident); note != "" {
		msg += "\n" + note
	}
	if incident.Status == model.StatusResolved && incident.SolutionSteps != "" {
		msg += "\n\nSolution:\n" + incident.SolutionSteps
	}
	return msg
}
