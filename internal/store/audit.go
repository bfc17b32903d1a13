package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/facility-logbook/backend/internal/models"
)

// AuditStore reads and prunes the audit trail. Writes go through the
// slog handler, not through here.
type AuditStore struct {
	db *gorm.DB
}

// AuditFilter narrows audit listings.
type AuditFilter struct {
	Level    string
	Source   string
	UserID   string
	Search   string
	From, To *time.Time
}

func (f AuditFilter) apply(q *gorm.DB) *gorm.DB {
	if f.Level != "" {
		q = q.Where("level = ?", f.Level)
	}
	if f.Source != "" {
		q = q.Where("source = ?", f.Source)
	}
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Search != "" {
		q = q.Where("message LIKE ?", "%"+f.Search+"%")
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", *f.To)
	}
	return q
}

func (s *AuditStore) List(ctx context.Context, f AuditFilter, p Page) ([]models.AuditRecord, int64, error) {
	q := f.apply(s.db.WithContext(ctx).Model(&models.AuditRecord{}))
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, wrapErr(err)
	}
	var records []models.AuditRecord
	err := q.Scopes(paginate(p)).Order("created_at DESC").Find(&records).Error
	if err != nil {
		return nil, 0, wrapErr(err)
	}
	return records, total, nil
}

// PruneBefore deletes audit rows older than the cutoff and returns the
// number removed.
func (s *AuditStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.AuditRecord{})
	return res.RowsAffected, wrapErr(res.Error)
}
