package id

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

func TestIncidentGeneratorFormat(t *testing.T) {
	g := NewIncidentGenerator()
	got := g.Next()

	if !IsIncidentID(got) {
		t.Errorf("generated id %q does not match the incident pattern", got)
	}
	if len(got) != len("INC")+14+3 {
		t.Errorf("id %q has length %d, want %d", got, len(got), 20)
	}
}

func TestIncidentGeneratorSameSecond(t *testing.T) {
	fixed := time.Date(2026, 8, 29, 10, 15, 0, 0, time.UTC)
	g := NewIncidentGeneratorWithClock(func() time.Time { return fixed })

	a := g.Next()
	b := g.Next()
	if a == b {
		t.Errorf("two ids in the same second must differ, both %q", a)
	}
	if a != "INC20260829101500000" {
		t.Errorf("first id = %q", a)
	}
	if b != "INC20260829101500001" {
		t.Errorf("second id = %q", b)
	}
}

func TestExtractIncidentID(t *testing.T) {
	tests := []struct {
		text string
		want string
		ok   bool
	}{
		{"INC20260829101500000", "INC20260829101500000", true},
		{"please check inc20260829101500007 for me", "INC20260829101500007", true},
		{"  INC20260829101500000.", "INC20260829101500000", true},
		{"no id here", "", false},
		{"INC123", "", false},
	}
	for _, tt := range tests {
		got, ok := ExtractIncidentID(tt.text)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ExtractIncidentID(%q) = (%q, %v), want (%q, %v)", tt.text, got, ok, tt.want, tt.ok)
		}
	}
}

func TestKBID(t *testing.T) {
	id := NewKBID()
	if !strings.HasPrefix(id, KBPrefix) {
		t.Errorf("NewKBID() = %q, missing %q prefix", id, KBPrefix)
	}
	if _, err := ulid.ParseStrict(id[len(KBPrefix):]); err != nil {
		t.Errorf("NewKBID() = %q, suffix is not a ULID: %v", id, err)
	}

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		v := NewKBID()
		if seen[v] {
			t.Fatalf("duplicate kb id %q", v)
		}
		seen[v] = true
	}
}

func TestSessionID(t *testing.T) {
	id := NewSessionID()
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("NewSessionID() = %q, not a UUID: %v", id, err)
	}
}
