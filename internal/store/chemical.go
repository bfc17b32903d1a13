package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/facility-logbook/backend/internal/models"
)

// ChemicalStore persists chemical preparation records.
type ChemicalStore struct {
	db *gorm.DB
}

// ChemicalFilter narrows List.
type ChemicalFilter struct {
	EquipmentName string
	ChemicalName  string
	Status        models.Status
	OperatorID    string
	From, To      *time.Time
}

func (s *ChemicalStore) Create(ctx context.Context, c *models.ChemicalPreparation) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return wrapErr(s.db.WithContext(ctx).Create(c).Error)
}

func (s *ChemicalStore) GetByID(ctx context.Context, id string) (*models.ChemicalPreparation, error) {
	var c models.ChemicalPreparation
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, wrapErr(err)
	}
	return &c, nil
}

func (s *ChemicalStore) List(ctx context.Context, f ChemicalFilter, p Page) ([]models.ChemicalPreparation, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.ChemicalPreparation{})
	if f.EquipmentName != "" {
		q = q.Where("equipment_name LIKE ?", "%"+f.EquipmentName+"%")
	}
	if f.ChemicalName != "" {
		q = q.Where("chemical_name LIKE ?", "%"+f.ChemicalName+"%")
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

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, wrapErr(err)
	}

	var preps []models.ChemicalPreparation
	if err := q.Scopes(paginate(p)).Order("created_at DESC").Find(&preps).Error; err != nil {
		return nil, 0, wrapErr(err)
	}
	return preps, total, nil
}

func (s *ChemicalStore) Update(ctx context.Context, c *models.ChemicalPreparation) error {
	return wrapErr(s.db.WithContext(ctx).Save(c).Error)
}

func (s *ChemicalStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.ChemicalPreparation{})
	if res.Error != nil {
		return wrapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
