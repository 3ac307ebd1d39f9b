package store

import (
	"context"
	stderrors "errors"
	"time"

	"gorm.io/gorm"

	"github.com/kart-io/helpdesk-x/internal/model"
	"github.com/kart-io/helpdesk-x/pkg/errors"
)

type incidents struct {
	db *gorm.DB
}

func newIncidents(db *gorm.DB) *incidents {
	return &incidents{db}
}

// Create persists a new incident.
func (s *incidents) Create(ctx context.Context, incident *model.Incident) error {
	if err := s.db.WithContext(ctx).Create(incident).Error; err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}

// Get retrieves an incident by its incident id.
func (s *incidents) Get(ctx context.Context, incidentID string) (*model.Incident, error) {
	var incident model.Incident
	err := s.db.WithContext(ctx).Where("incident_id = ?", incidentID).First(&incident).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrIncidentNotFound
		}
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return &incident, nil
}

// Update saves the full incident row.
func (s *incidents) Update(ctx context.Context, incident *model.Incident) error {
	if err := s.db.WithContext(ctx).Save(incident).Error; err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}

// UpdateStatus applies a compare-and-set status change. The WHERE clause
// carries the expected current status, so of two racing writers exactly one
// sees RowsAffected == 1.
func (s *incidents) UpdateStatus(ctx context.Context, incidentID string, from, to model.Status) error {
	res := s.db.WithContext(ctx).
		Model(&model.Incident{}).
		Where("incident_id = ? AND status = ?", incidentID, from).
		Updates(map[string]any{
			"status":     to,
			"updated_at": time.Now().UnixMilli(),
		})
	if res.Error != nil {
		return errors.ErrDatabase.WithCause(res.Error)
	}
	if res.RowsAffected == 0 {
		// Either the incident is gone or its status moved under us.
		if _, err := s.Get(ctx, incidentID); err != nil {
			return err
		}
		return errors.ErrInvalidTransition.WithMessagef(
			"incident %s is no longer %s", incidentID, from)
	}
	return nil
}

// Delete removes an incident by its incident id.
func (s *incidents) Delete(ctx context.Context, incidentID string) error {
	res := s.db.WithContext(ctx).Where("incident_id = ?", incidentID).Delete(&model.Incident{})
	if res.Error != nil {
		return errors.ErrDatabase.WithCause(res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.ErrIncidentNotFound
	}
	return nil
}

// List lists incidents with optional filters and pagination, newest first.
func (s *incidents) List(ctx context.Context, opts IncidentListOptions) (int64, []*model.Incident, error) {
	query := s.db.WithContext(ctx).Model(&model.Incident{})
	if opts.Status != "" {
		query = query.Where("status = ?", opts.Status)
	}
	if opts.NeedsKBApproval != nil {
		query = query.Where("needs_kb_approval = ?", *opts.NeedsKBApproval)
	}
	if opts.SessionID != "" {
		query = query.Where("session_id = ?", opts.SessionID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, nil, errors.ErrDatabase.WithCause(err)
	}

	var items []*model.Incident
	query = query.Order("created_at DESC")
	if opts.Offset > 0 {
		query = query.Offset(opts.Offset)
	}
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}
	if err := query.Find(&items).Error; err != nil {
		return 0, nil, errors.ErrDatabase.WithCause(err)
	}

	return count, items, nil
}

// CountByStatus returns incident counts grouped by status.
func (s *incidents) CountByStatus(ctx context.Context) (map[model.Status]int64, error) {
	type row struct {
		Status model.Status
		Total  int64
	}
	var rows []row
	err := s.db.WithContext(ctx).
		Model(&model.Incident{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}

	counts := make(map[model.Status]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Total
	}
	return counts, nil
}

// CountSince returns the number of incidents created at or after sinceMilli.
func (s *incidents) CountSince(ctx context.Context, sinceMilli int64) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&model.Incident{}).
		Where("created_at >= ?", sinceMilli).
		Count(&count).Error
	if err != nil {
		return 0, errors.ErrDatabase.WithCause(err)
	}
	return count, nil
}

var _ IncidentStore = (*incidents)(nil)
