package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/facility-logbook/backend/internal/limits"
	"github.com/facility-logbook/backend/internal/models"
)

// InstrumentStore persists the calibrated instrument register.
type InstrumentStore struct {
	db *gorm.DB
}

// InstrumentFilter narrows List. Status filters on the derived
// calibration state, so it is applied after the SQL fetch.
type InstrumentFilter struct {
	SiteID   string
	IsActive *bool
	Search   string
	Status   limits.CalStatus
}

func (s *InstrumentStore) Create(ctx context.Context, in *models.Instrument) error {
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	return wrapErr(s.db.WithContext(ctx).Create(in).Error)
}

func (s *InstrumentStore) GetByID(ctx context.Context, id string) (*models.Instrument, error) {
	var in models.Instrument
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&in).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	return &in, nil
}

// List returns a page of instruments. When f.Status is set the page
// is computed over the status-matching rows.
func (s *InstrumentStore) List(ctx context.Context, f InstrumentFilter, p Page, now time.Time) ([]models.Instrument, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Instrument{})
	if f.SiteID != "" {
		q = q.Where("site_id = ?", f.SiteID)
	}
	if f.IsActive != nil {
		q = q.Where("is_active = ?", *f.IsActive)
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		q = q.Where("name LIKE ? OR make LIKE ? OR model LIKE ? OR serial_number LIKE ?", like, like, like, like)
	}
	if f.Status != "" {
		// Translate the derived status into date arithmetic so
		// pagination stays in SQL.
		edge := now.Add(limits.ExpiryWindow)
		switch f.Status {
		case limits.CalExpired:
			q = q.Where("calibration_due_date < ?", now)
		case limits.CalExpiring:
			q = q.Where("calibration_due_date >= ? AND calibration_due_date <= ?", now, edge)
		case limits.CalValid:
			q = q.Where("calibration_due_date > ?", edge)
		}
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, wrapErr(err)
	}

	var instruments []models.Instrument
	err := q.Scopes(paginate(p)).Order("calibration_due_date ASC").Find(&instruments).Error
	if err != nil {
		return nil, 0, wrapErr(err)
	}
	return instruments, total, nil
}

// DueWithin returns active instruments whose calibration lapses before
// the horizon, for the daily calibration scan.
func (s *InstrumentStore) DueWithin(ctx context.Context, horizon time.Time) ([]models.Instrument, error) {
	var instruments []models.Instrument
	err := s.db.WithContext(ctx).
		Where("is_active = ? AND calibration_due_date <= ?", true, horizon).
		Order("calibration_due_date ASC").
		Find(&instruments).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	return instruments, nil
}

func (s *InstrumentStore) Update(ctx context.Context, in *models.Instrument) error {
	return wrapErr(s.db.WithContext(ctx).Save(in).Error)
}

func (s *InstrumentStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Instrument{})
	if res.Error != nil {
		return wrapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
