package store

import (
	"context"

	"github.com/kart-io/helpdesk-x/internal/model"
)

// Factory defines the factory interface for creating record stores.
type Factory interface {
	Incidents() IncidentStore
	KBEntries() KBEntryStore
	Close() error
}

// IncidentListOptions filters incident listings.
type IncidentListOptions struct {
	// Status filters by incident status when non-empty.
	Status model.Status
	// NeedsKBApproval filters by the approval flag when non-nil.
	NeedsKBApproval *bool
	// SessionID filters by owning session when non-empty.
	SessionID string

	Offset int
	Limit  int
}

// IncidentStore defines incident persistence.
//
// Get and Delete return errors.ErrIncidentNotFound when the id resolves to
// nothing. UpdateStatus is a compare-and-set: it only applies the change when
// the stored status still equals from, and returns errors.ErrInvalidTransition
// when another writer got there first.
type IncidentStore interface {
	Create(ctx context.Context, incident *model.Incident) error
	Get(ctx context.Context, incidentID string) (*model.Incident, error)
	Update(ctx context.Context, incident *model.Incident) error
	UpdateStatus(ctx context.Context, incidentID string, from, to model.Status) error
	Delete(ctx context.Context, incidentID string) error
	List(ctx context.Context, opts IncidentListOptions) (int64, []*model.Incident, error)
	CountByStatus(ctx context.Context) (map[model.Status]int64, error)
	CountSince(ctx context.Context, sinceMilli int64) (int64, error)
}

// KBEntryStore defines knowledge base entry persistence.
type KBEntryStore interface {
	Create(ctx context.Context, entry *model.KBEntry) error
	Get(ctx context.Context, kbID string) (*model.KBEntry, error)
	Delete(ctx context.Context, kbID string) error
	List(ctx context.Context, offset, limit int) (int64, []*model.KBEntry, error)
	All(ctx context.Context) ([]*model.KBEntry, error)
	Count(ctx context.Context) (int64, error)
}
