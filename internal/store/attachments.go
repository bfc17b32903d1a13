package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/facility-logbook/backend/internal/models"
)

// AttachmentStore tracks uploaded file metadata. File bytes live in
// the storage manager; rows here carry the name, size and owner record.
type AttachmentStore struct {
	db *gorm.DB
}

func (s *AttachmentStore) Create(ctx context.Context, a *models.Attachment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return wrapErr(s.db.WithContext(ctx).Create(a).Error)
}

func (s *AttachmentStore) GetByID(ctx context.Context, id string) (*models.Attachment, error) {
	var a models.Attachment
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, wrapErr(err)
	}
	return &a, nil
}

// ListForRecord returns all attachments on one owning record.
func (s *AttachmentStore) ListForRecord(ctx context.Context, recordType, recordID string) ([]models.Attachment, error) {
	var out []models.Attachment
	err := s.db.WithContext(ctx).
		Where("record_type = ? AND record_id = ?", recordType, recordID).
		Order("uploaded_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	return out, nil
}

func (s *AttachmentStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Attachment{})
	if res.Error != nil {
		return wrapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
