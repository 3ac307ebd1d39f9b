package biz

import "strings"

// Intent is what the user wants from the main menu.
type Intent string

const (
	IntentCreate   Intent = "create_incident"
	IntentTrack    Intent = "track_incident"
	IntentPrevious Intent = "view_solution"
	IntentUnknown  Intent = ""
)

// Decision is the user's answer to a suggested knowledge base match.
type Decision string

const (
	DecisionKeep    Decision = "keep"
	DecisionIgnore  Decision = "ignore"
	DecisionUnknown Decision = ""
)

// Selection is the user's answer to the resume-or-start-over prompt.
type Selection string

const (
	SelectionContinue Selection = "continue_incident"
	SelectionNew      Selection = "new_incident"
	SelectionUnknown  Selection = ""
)

func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

var greetings = map[string]struct{}{
	"hi": {}, "hello": {}, "hey": {}, "start": {}, "menu": {}, "help": {},
	"good morning": {}, "good afternoon": {}, "good evening": {},
}

func isGreeting(text string) bool {
	_, ok := greetings[normalize(text)]
	return ok
}

var farewells = map[string]struct{}{
	"bye": {}, "goodbye": {}, "thanks": {}, "thank you": {}, "exit": {}, "quit": {},
}

func isFarewell(text string) bool {
	_, ok := farewells[normalize(text)]
	return ok
}

func isClearCommand(text string) bool {
	switch normalize(text) {
	case "clear", "reset", "clear session", "start over":
		return true
	}
	return false
}

// Canonical keywords per intent, matched as substrings so free phrasings
// like "I want to create an incident" land on the right flow. Create wins
// over track when both families appear in one message.
var (
	createKeywords   = []string{"create", "report", "new incident", "new issue", "open an incident"}
	trackKeywords    = []string{"track", "status", "check on"}
	previousKeywords = []string{"previous", "solution", "past incident"}
)

// parseIntent resolves a main menu turn. Button values and ordinal
// shortcuts match exactly, everything else goes through the keyword lists.
func parseIntent(text string) Intent {
	n := normalize(text)
	switch n {
	case string(IntentCreate), "1", "new":
		return IntentCreate
	case string(IntentTrack), "2":
		return IntentTrack
	case string(IntentPrevious), "3":
		return IntentPrevious
	}
	for _, kw := range createKeywords {
		if strings.Contains(n, kw) {
			return IntentCreate
		}
	}
	for _, kw := range trackKeywords {
		if strings.Contains(n, kw) {
			return IntentTrack
		}
	}
	for _, kw := range previousKeywords {
		if strings.Contains(n, kw) {
			return IntentPrevious
		}
	}
	return IntentUnknown
}

func parseDecision(text string) Decision {
	switch normalize(text) {
	case string(DecisionKeep), "1", "yes", "y", "that's it", "correct":
		return DecisionKeep
	case string(DecisionIgnore), "2", "no", "n", "different", "something else":
		return DecisionIgnore
	}
	return DecisionUnknown
}

func parseSelection(text string) Selection {
	switch normalize(text) {
	case string(SelectionContinue), "1", "continue", "resume":
		return SelectionContinue
	case string(SelectionNew), "2", "new", "start new", "start over":
		return SelectionNew
	}
	return SelectionUnknown
}

// isCloseCommand matches "close" and "close INC..." turns.
func isCloseCommand(text string) bool {
	n := normalize(text)
	return n == "close" || n == "close_incident" || strings.HasPrefix(n, "close ")
}
