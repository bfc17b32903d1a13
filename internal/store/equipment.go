package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/facility-logbook/backend/internal/models"
)

// EquipmentStore persists the four equipment log registers.
type EquipmentStore struct {
	db *gorm.DB
}

// LogFilter narrows equipment log listings. EquipmentType applies to
// utility logs only.
type LogFilter struct {
	EquipmentID   string
	EquipmentType models.EquipmentType
	SiteID        string
	Status        models.Status
	OperatorID    string
	From, To      *time.Time
}

func (f LogFilter) apply(q *gorm.DB) *gorm.DB {
	if f.EquipmentID != "" {
		q = q.Where("equipment_id = ?", f.EquipmentID)
	}
	if f.SiteID != "" {
		q = q.Where("site_id = ?", f.SiteID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.OperatorID != "" {
		q = q.Where("operator_id = ?", f.OperatorID)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", *f.To)
	}
	return q
}

func (s *EquipmentStore) CreateChiller(ctx context.Context, l *models.ChillerLog) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return wrapErr(s.db.WithContext(ctx).Create(l).Error)
}

func (s *EquipmentStore) GetChiller(ctx context.Context, id string) (*models.ChillerLog, error) {
	var l models.ChillerLog
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&l).Error; err != nil {
		return nil, wrapErr(err)
	}
	return &l, nil
}

func (s *EquipmentStore) ListChillers(ctx context.Context, f LogFilter, p Page) ([]models.ChillerLog, int64, error) {
	q := f.apply(s.db.WithContext(ctx).Model(&models.ChillerLog{}))
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, wrapErr(err)
	}
	var logs []models.ChillerLog
	if err := q.Scopes(paginate(p)).Order("created_at DESC").Find(&logs).Error; err != nil {
		return nil, 0, wrapErr(err)
	}
	return logs, total, nil
}

func (s *EquipmentStore) UpdateChiller(ctx context.Context, l *models.ChillerLog) error {
	return wrapErr(s.db.WithContext(ctx).Save(l).Error)
}

func (s *EquipmentStore) DeleteChiller(ctx context.Context, id string) error {
	return s.deleteByID(ctx, &models.ChillerLog{}, id)
}

func (s *EquipmentStore) CreateBoiler(ctx context.Context, l *models.BoilerLog) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return wrapErr(s.db.WithContext(ctx).Create(l).Error)
}

func (s *EquipmentStore) GetBoiler(ctx context.Context, id string) (*models.BoilerLog, error) {
	var l models.BoilerLog
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&l).Error; err != nil {
		return nil, wrapErr(err)
	}
	return &l, nil
}

func (s *EquipmentStore) ListBoilers(ctx context.Context, f LogFilter, p Page) ([]models.BoilerLog, int64, error) {
	q := f.apply(s.db.WithContext(ctx).Model(&models.BoilerLog{}))
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, wrapErr(err)
	}
	var logs []models.BoilerLog
	if err := q.Scopes(paginate(p)).Order("created_at DESC").Find(&logs).Error; err != nil {
		return nil, 0, wrapErr(err)
	}
	return logs, total, nil
}

func (s *EquipmentStore) UpdateBoiler(ctx context.Context, l *models.BoilerLog) error {
	return wrapErr(s.db.WithContext(ctx).Save(l).Error)
}

func (s *EquipmentStore) DeleteBoiler(ctx context.Context, id string) error {
	return s.deleteByID(ctx, &models.BoilerLog{}, id)
}

func (s *EquipmentStore) CreateCompressor(ctx context.Context, l *models.CompressorLog) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return wrapErr(s.db.WithContext(ctx).Create(l).Error)
}

func (s *EquipmentStore) GetCompressor(ctx context.Context, id string) (*models.CompressorLog, error) {
	var l models.CompressorLog
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&l).Error; err != nil {
		return nil, wrapErr(err)
	}
	return &l, nil
}

func (s *EquipmentStore) ListCompressors(ctx context.Context, f LogFilter, p Page) ([]models.CompressorLog, int64, error) {
	q := f.apply(s.db.WithContext(ctx).Model(&models.CompressorLog{}))
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, wrapErr(err)
	}
	var logs []models.CompressorLog
	if err := q.Scopes(paginate(p)).Order("created_at DESC").Find(&logs).Error; err != nil {
		return nil, 0, wrapErr(err)
	}
	return logs, total, nil
}

func (s *EquipmentStore) UpdateCompressor(ctx context.Context, l *models.CompressorLog) error {
	return wrapErr(s.db.WithContext(ctx).Save(l).Error)
}

func (s *EquipmentStore) DeleteCompressor(ctx context.Context, id string) error {
	return s.deleteByID(ctx, &models.CompressorLog{}, id)
}

func (s *EquipmentStore) CreateUtility(ctx context.Context, l *models.UtilityLog) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return wrapErr(s.db.WithContext(ctx).Create(l).Error)
}

func (s *EquipmentStore) GetUtility(ctx context.Context, id string) (*models.UtilityLog, error) {
	var l models.UtilityLog
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&l).Error; err != nil {
		return nil, wrapErr(err)
	}
	return &l, nil
}

func (s *EquipmentStore) ListUtilities(ctx context.Context, f LogFilter, p Page) ([]models.UtilityLog, int64, error) {
	q := f.apply(s.db.WithContext(ctx).Model(&models.UtilityLog{}))
	if f.EquipmentType != "" {
		q = q.Where("equipment_type = ?", f.EquipmentType)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, wrapErr(err)
	}
	var logs []models.UtilityLog
	if err := q.Scopes(paginate(p)).Order("created_at DESC").Find(&logs).Error; err != nil {
		return nil, 0, wrapErr(err)
	}
	return logs, total, nil
}

func (s *EquipmentStore) UpdateUtility(ctx context.Context, l *models.UtilityLog) error {
	return wrapErr(s.db.WithContext(ctx).Save(l).Error)
}

func (s *EquipmentStore) DeleteUtility(ctx context.Context, id string) error {
	return s.deleteByID(ctx, &models.UtilityLog{}, id)
}

func (s *EquipmentStore) deleteByID(ctx context.Context, model interface{}, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(model)
	if res.Error != nil {
		return wrapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
