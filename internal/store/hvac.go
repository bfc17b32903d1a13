package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/facility-logbook/backend/internal/models"
)

// HVACStore persists air-change validation records.
type HVACStore struct {
	db *gorm.DB
}

// HVACFilter narrows List.
type HVACFilter struct {
	RoomName string
	ISOClass int
	Result   models.TestStatus
	Status   models.Status
	From, To *time.Time
}

func (s *HVACStore) Create(ctx context.Context, v *models.HVACValidation) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	return wrapErr(s.db.WithContext(ctx).Create(v).Error)
}

func (s *HVACStore) GetByID(ctx context.Context, id string) (*models.HVACValidation, error) {
	var v models.HVACValidation
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&v).Error; err != nil {
		return nil, wrapErr(err)
	}
	return &v, nil
}

func (s *HVACStore) List(ctx context.Context, f HVACFilter, p Page) ([]models.HVACValidation, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.HVACValidation{})
	if f.RoomName != "" {
		q = q.Where("room_name LIKE ?", "%"+f.RoomName+"%")
	}
	if f.ISOClass != 0 {
		q = q.Where("iso_class = ?", f.ISOClass)
	}
	if f.Result != "" {
		q = q.Where("result = ?", f.Result)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", *f.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, wrapErr(err)
	}

	var validations []models.HVACValidation
	if err := q.Scopes(paginate(p)).Order("created_at DESC").Find(&validations).Error; err != nil {
		return nil, 0, wrapErr(err)
	}
	return validations, total, nil
}

func (s *HVACStore) Update(ctx context.Context, v *models.HVACValidation) error {
	return wrapErr(s.db.WithContext(ctx).Save(v).Error)
}

func (s *HVACStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.HVACValidation{})
	if res.Error != nil {
		return wrapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
