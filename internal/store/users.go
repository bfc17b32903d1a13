package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/facility-logbook/backend/internal/models"
)

// UserStore persists accounts. Soft-deleted users are invisible to
// every method except GetAny and Restore.
type UserStore struct {
	db *gorm.DB
}

// UserFilter narrows List.
type UserFilter struct {
	Roles          []models.Role // visibility set; empty means all
	Role           models.Role   // exact match from the query string
	Search         string        // name or email substring
	IncludeDeleted bool
}

// Create inserts a new user, assigning its ID.
func (s *UserStore) Create(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return wrapErr(s.db.WithContext(ctx).Create(u).Error)
}

// GetByID fetches a live user.
func (s *UserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).
		Where("id = ? AND is_deleted = ?", id, false).
		First(&u).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	return &u, nil
}

// GetAny fetches a user regardless of deletion state.
func (s *UserStore) GetAny(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	return &u, nil
}

// GetByEmail fetches a live user by email, for login.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).
		Where("email = ? AND is_deleted = ?", email, false).
		First(&u).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	return &u, nil
}

// List returns a page of users and the unpaged total.
func (s *UserStore) List(ctx context.Context, f UserFilter, p Page) ([]models.User, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.User{})
	if !f.IncludeDeleted {
		q = q.Where("is_deleted = ?", false)
	}
	if len(f.Roles) > 0 {
		q = q.Where("role IN ?", f.Roles)
	}
	if f.Role != "" {
		q = q.Where("role = ?", f.Role)
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		q = q.Where("name LIKE ? OR email LIKE ?", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, wrapErr(err)
	}

	var users []models.User
	err := q.Scopes(paginate(p)).Order("created_at DESC").Find(&users).Error
	if err != nil {
		return nil, 0, wrapErr(err)
	}
	return users, total, nil
}

// Update saves changed fields of an existing user.
func (s *UserStore) Update(ctx context.Context, u *models.User) error {
	return wrapErr(s.db.WithContext(ctx).Save(u).Error)
}

// SoftDelete hides a user and deactivates their login.
func (s *UserStore) SoftDelete(ctx context.Context, id string, now time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Updates(map[string]interface{}{
			"is_deleted": true,
			"deleted_at": now,
			"is_active":  false,
		})
	if res.Error != nil {
		return wrapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Restore brings a soft-deleted user back.
func (s *UserStore) Restore(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND is_deleted = ?", id, true).
		Updates(map[string]interface{}{
			"is_deleted": false,
			"deleted_at": nil,
			"is_active":  true,
		})
	if res.Error != nil {
		return wrapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the number of accounts ever created, deleted included.
// Used to decide whether the bootstrap admin is needed.
func (s *UserStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.User{}).Count(&n).Error
	return n, wrapErr(err)
}
