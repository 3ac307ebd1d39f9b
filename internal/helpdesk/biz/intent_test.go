package biz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseIntent(t *testing.T) {
	cases := map[string]Intent{
		"1":               IntentCreate,
		"create_incident": IntentCreate,
		"Report an issue": IntentCreate,
		"2":               IntentTrack,
		"track":           IntentTrack,
		"3":               IntentPrevious,
		"view solution":   IntentPrevious,
		"the weather is nice today": IntentUnknown,
	}
	for input, want := range cases {
		assert.Equal(t, want, parseIntent(input), "input %q", input)
	}
}

// Free phrasings resolve by keyword, an exact menu phrase is not required.
func TestParseIntentKeywordPhrases(t *testing.T) {
	cases := map[string]Intent{
		"I want to create an incident":      IntentCreate,
		"can I report something broken":     IntentCreate,
		"please open an incident for me":    IntentCreate,
		"track my incident":                 IntentTrack,
		"what is the status of my ticket":   IntentTrack,
		"show me the previous solution":     IntentPrevious,
		"I need the solution from last time": IntentPrevious,
	}
	for input, want := range cases {
		assert.Equal(t, want, parseIntent(input), "input %q", input)
	}
}

func TestParseDecision(t *testing.T) {
	assert.Equal(t, DecisionKeep, parseDecision("YES"))
	assert.Equal(t, DecisionKeep, parseDecision("keep"))
	assert.Equal(t, DecisionIgnore, parseDecision("something else"))
	assert.Equal(t, DecisionUnknown, parseDecision("maybe?"))
}

func TestParseSelection(t *testing.T) {
	assert.Equal(t, SelectionContinue, parseSelection("resume"))
	assert.Equal(t, SelectionNew, parseSelection("new"))
	assert.Equal(t, SelectionUnknown, parseSelection("hmm"))
}

func TestGlobalCommands(t *testing.T) {
	assert.True(t, isGreeting("  Hello "))
	assert.True(t, isFarewell("Thank you"))
	assert.True(t, isClearCommand("start over"))
	assert.True(t, isCloseCommand("close INC20260829101500000"))
	assert.True(t, isCloseCommand("close"))
	assert.False(t, isCloseCommand("closet door stuck"))
}
