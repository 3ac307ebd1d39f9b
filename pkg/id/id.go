// Package id generates the identifier families used across Helpdesk-X:
// incident ids, knowledge base entry ids, and session ids.
package id

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

const (
	// IncidentPrefix starts every incident id.
	IncidentPrefix = "INC"
	// KBPrefix starts every knowledge base entry id.
	KBPrefix = "KB"

	incidentTimeLayout = "20060102150405"
)

var (
	incidentIDPattern = regexp.MustCompile(`^INC\d{17}$`)
	incidentIDSearch  = regexp.MustCompile(`INC\d{17}`)
)

// IncidentGenerator issues incident ids of the form INC<yyyymmddHHMMSS><seq>.
// The three digit sequence disambiguates ids minted within the same second.
type IncidentGenerator struct {
	mu       sync.Mutex
	now      func() time.Time
	lastTick string
	seq      int
}

// NewIncidentGenerator creates an incident id generator using wall clock time.
func NewIncidentGenerator() *IncidentGenerator {
	return &IncidentGenerator{now: time.Now}
}

// NewIncidentGeneratorWithClock creates a generator with a custom clock.
func NewIncidentGeneratorWithClock(now func() time.Time) *IncidentGenerator {
	return &IncidentGenerator{now: now}
}

// Next returns a fresh incident id.
func (g *IncidentGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	tick := g.now().UTC().Format(incidentTimeLayout)
	if tick == g.lastTick {
		g.seq = (g.seq + 1) % 1000
	} else {
		g.lastTick = tick
		g.seq = 0
	}
	return fmt.Sprintf("%s%s%03d", IncidentPrefix, tick, g.seq)
}

// IsIncidentID reports whether s looks like an incident id.
func IsIncidentID(s string) bool {
	return incidentIDPattern.MatchString(s)
}

// ExtractIncidentID pulls the first incident id out of free text, so users
// can type "please check INC20260829101500000 for me".
func ExtractIncidentID(text string) (string, bool) {
	m := incidentIDSearch.FindString(normalizeIncidentText(text))
	if m == "" {
		return "", false
	}
	return m, true
}

func normalizeIncidentText(text string) string {
	// Match case-insensitively on the prefix but return the canonical form.
	upper := strings.ToUpper(text)
	return upper
}

// NewKBID returns a knowledge base entry id, KB followed by a ULID. ULIDs
// sort by creation time which keeps the export file roughly chronological.
func NewKBID() string {
	return KBPrefix + ulid.MustNew(ulid.Timestamp(time.Now()), ulid.DefaultEntropy()).String()
}

// NewSessionID returns a random UUID v4 session id.
func NewSessionID() string {
	return uuid.NewString()
}
