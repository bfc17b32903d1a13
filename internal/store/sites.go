package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/facility-logbook/backend/internal/models"
)

// SiteStore persists facility sites.
type SiteStore struct {
	db *gorm.DB
}

// SiteFilter narrows List.
type SiteFilter struct {
	ClientID string
	IsActive *bool
	Search   string
}

func (s *SiteStore) Create(ctx context.Context, site *models.Site) error {
	if site.ID == "" {
		site.ID = uuid.NewString()
	}
	return wrapErr(s.db.WithContext(ctx).Create(site).Error)
}

func (s *SiteStore) GetByID(ctx context.Context, id string) (*models.Site, error) {
	var site models.Site
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&site).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	return &site, nil
}

func (s *SiteStore) List(ctx context.Context, f SiteFilter, p Page) ([]models.Site, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Site{})
	if f.ClientID != "" {
		q = q.Where("client_id = ?", f.ClientID)
	}
	if f.IsActive != nil {
		q = q.Where("is_active = ?", *f.IsActive)
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		q = q.Where("name LIKE ? OR location LIKE ?", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, wrapErr(err)
	}

	var sites []models.Site
	err := q.Scopes(paginate(p)).Order("name ASC").Find(&sites).Error
	if err != nil {
		return nil, 0, wrapErr(err)
	}
	return sites, total, nil
}

func (s *SiteStore) Update(ctx context.Context, site *models.Site) error {
	return wrapErr(s.db.WithContext(ctx).Save(site).Error)
}

func (s *SiteStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Site{})
	if res.Error != nil {
		return wrapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
