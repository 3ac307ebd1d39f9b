package model

import "time"

// ConversationState names the point the dialog state machine is at for one
// session. The state decides how the next user turn is interpreted.
type ConversationState string

const (
	// StateAwaitingIntent 等待用户选择操作 (track / create / view previous)
	StateAwaitingIntent ConversationState = "awaiting_intent"
	// StateAwaitingIssueDescription a create flow has started and the next
	// turn is treated as the free text issue description.
	StateAwaitingIssueDescription ConversationState = "awaiting_issue_description"
	// StateAwaitingDecision a known use case matched the description and the
	// user must KEEP the suggestion or IGNORE it and file a brand new issue.
	StateAwaitingDecision ConversationState = "awaiting_decision"
	// StateAwaitingIncidentSelection the session already holds an unfinished
	// incident and the user must pick it up again or start over.
	StateAwaitingIncidentSelection ConversationState = "awaiting_incident_selection"
	// StateCollectingInfo slot filling, one question per turn.
	StateCollectingInfo ConversationState = "collecting_info"
	// StateAwaitingIncidentID tracking flow, next turn is an incident id.
	StateAwaitingIncidentID ConversationState = "awaiting_incident_id"
	// StateAwaitingPreviousIncidentID view-previous-solution flow.
	StateAwaitingPreviousIncidentID ConversationState = "awaiting_previous_incident_id"
)

// MaxSessionMessages caps the per-session rolling message window.
const MaxSessionMessages = 10

// ActionButton is a clickable shortcut rendered by the chat client. Value is
// what the client sends back when the button is pressed.
type ActionButton struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Session is the per-conversation state. It lives in the session store only
// (memory or redis, JSON encoded) and is dropped on TTL expiry.
type Session struct {
	ID    string            `json:"id"`
	State ConversationState `json:"state"`

	// ActiveIncidentID is the incident currently being collected or the last
	// one this session touched. Empty when none.
	ActiveIncidentID string `json:"active_incident_id,omitempty"`

	// PendingIssue parks a fresh issue description while the user decides
	// between a suggested match (awaiting_decision) or between resuming an
	// unfinished incident and starting over (awaiting_incident_selection).
	PendingIssue string `json:"pending_issue,omitempty"`
	// PendingKBID is the matched entry offered in awaiting_decision.
	PendingKBID string `json:"pending_kb_id,omitempty"`

	Messages []ChatMessage `json:"messages"`

	CreatedAt  int64 `json:"created_at"`
	LastActive int64 `json:"last_active"`
}

// NewSession returns an initialized session in the intent menu state.
func NewSession(id string) *Session {
	now := time.Now().UnixMilli()
	return &Session{
		ID:         id,
		State:      StateAwaitingIntent,
		CreatedAt:  now,
		LastActive: now,
	}
}

// Touch refreshes the last activity timestamp.
func (s *Session) Touch() {
	s.LastActive = time.Now().UnixMilli()
}

// AppendMessage records one turn, evicting the oldest messages beyond the
// rolling window.
func (s *Session) AppendMessage(role, content string) {
	s.Messages = append(s.Messages, ChatMessage{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UnixMilli(),
	})
	if n := len(s.Messages); n > MaxSessionMessages {
		s.Messages = s.Messages[n-MaxSessionMessages:]
	}
}

// ClearFlow resets flow scoped fields while keeping the message window.
func (s *Session) ClearFlow() {
	s.State = StateAwaitingIntent
	s.ActiveIncidentID = ""
	s.PendingIssue = ""
	s.PendingKBID = ""
}
