package store

import (
	"context"
	stderrors "errors"

	"gorm.io/gorm"

	"github.com/kart-io/helpdesk-x/internal/model"
	"github.com/kart-io/helpdesk-x/pkg/errors"
)

type kbEntries struct {
	db *gorm.DB
}

func newKBEntries(db *gorm.DB) *kbEntries {
	return &kbEntries{db}
}

// Create persists a new knowledge base entry.
func (s *kbEntries) Create(ctx context.Context, entry *model.KBEntry) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}

// Get retrieves an entry by kb id.
func (s *kbEntries) Get(ctx context.Context, kbID string) (*model.KBEntry, error) {
	var entry model.KBEntry
	err := s.db.WithContext(ctx).Where("kb_id = ?", kbID).First(&entry).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrKBEntryNotFound
		}
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return &entry, nil
}

// Delete removes an entry by kb id. Deleting an absent entry is not an
// error, removal has to stay idempotent for sync retries.
func (s *kbEntries) Delete(ctx context.Context, kbID string) error {
	if err := s.db.WithContext(ctx).Where("kb_id = ?", kbID).Delete(&model.KBEntry{}).Error; err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}

// List lists entries with pagination, oldest first to mirror the export file.
func (s *kbEntries) List(ctx context.Context, offset, limit int) (int64, []*model.KBEntry, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.KBEntry{}).Count(&count).Error; err != nil {
		return 0, nil, errors.ErrDatabase.WithCause(err)
	}

	var items []*model.KBEntry
	query := s.db.WithContext(ctx).Order("created_at ASC")
	if offset > 0 {
		query = query.Offset(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&items).Error; err != nil {
		return 0, nil, errors.ErrDatabase.WithCause(err)
	}

	return count, items, nil
}

// All returns every entry, oldest first.
func (s *kbEntries) All(ctx context.Context) ([]*model.KBEntry, error) {
	var items []*model.KBEntry
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&items).Error; err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return items, nil
}

// Count returns the total number of entries.
func (s *kbEntries) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.KBEntry{}).Count(&count).Error; err != nil {
		return 0, errors.ErrDatabase.WithCause(err)
	}
	return count, nil
}

var _ KBEntryStore = (*kbEntries)(nil)
