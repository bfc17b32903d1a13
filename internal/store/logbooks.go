package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/facility-logbook/backend/internal/models"
)

// LogbookStore persists custom logbook schemas, their role
// assignments, and the entries recorded against them.
type LogbookStore struct {
	db *gorm.DB
}

// SchemaFilter narrows ListSchemas. VisibleToRole applies the
// assignment rule; managers and super admins pass an empty value to
// see everything.
type SchemaFilter struct {
	Category      models.Category
	ClientID      string
	Search        string
	VisibleToRole models.Role
}

// EntryFilter narrows ListEntries.
type EntryFilter struct {
	SchemaID      string
	SiteID        string
	Status        models.Status
	OperatorID    string
	From, To      *time.Time
	VisibleToRole models.Role
}

func (s *LogbookStore) CreateSchema(ctx context.Context, schema *models.LogbookSchema) error {
	if schema.ID == "" {
		schema.ID = uuid.NewString()
	}
	return wrapErr(s.db.WithContext(ctx).Omit("RoleAssignments").Create(schema).Error)
}

func (s *LogbookStore) GetSchema(ctx context.Context, id string) (*models.LogbookSchema, error) {
	var schema models.LogbookSchema
	err := s.db.WithContext(ctx).
		Preload("RoleAssignments").
		Where("id = ?", id).
		First(&schema).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	return &schema, nil
}

func (s *LogbookStore) ListSchemas(ctx context.Context, f SchemaFilter, p Page) ([]models.LogbookSchema, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.LogbookSchema{})
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.ClientID != "" {
		q = q.Where("client_id = ?", f.ClientID)
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		q = q.Where("name LIKE ? OR description LIKE ?", like, like)
	}
	if f.VisibleToRole != "" {
		q = q.Where("id IN (?)", s.db.Model(&models.LogbookRoleAssignment{}).
			Select("schema_id").
			Where("role = ?", f.VisibleToRole))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, wrapErr(err)
	}

	var schemas []models.LogbookSchema
	err := q.Preload("RoleAssignments").
		Scopes(paginate(p)).
		Order("created_at DESC").
		Find(&schemas).Error
	if err != nil {
		return nil, 0, wrapErr(err)
	}
	return schemas, total, nil
}

func (s *LogbookStore) UpdateSchema(ctx context.Context, schema *models.LogbookSchema) error {
	return wrapErr(s.db.WithContext(ctx).Omit("RoleAssignments").Save(schema).Error)
}

// DeleteSchema removes a schema along with its assignments and entries.
func (s *LogbookStore) DeleteSchema(ctx context.Context, id string) error {
	return wrapErr(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("schema_id = ?", id).Delete(&models.LogbookRoleAssignment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("schema_id = ?", id).Delete(&models.LogbookEntry{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.LogbookSchema{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	}))
}

// AssignRoles replaces a schema's whole assignment set.
func (s *LogbookStore) AssignRoles(ctx context.Context, schemaID string, roles []models.Role, assignedBy string, now time.Time) ([]models.LogbookRoleAssignment, error) {
	var assignedByID *string
	if assignedBy != "" {
		assignedByID = &assignedBy
	}
	assignments := make([]models.LogbookRoleAssignment, 0, len(roles))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("schema_id = ?", schemaID).Delete(&models.LogbookRoleAssignment{}).Error; err != nil {
			return err
		}
		for _, role := range roles {
			a := models.LogbookRoleAssignment{
				ID:           uuid.NewString(),
				SchemaID:     schemaID,
				Role:         role,
				AssignedByID: assignedByID,
				AssignedAt:   now,
			}
			if err := tx.Create(&a).Error; err != nil {
				return err
			}
			assignments = append(assignments, a)
		}
		return nil
	})
	if err != nil {
		return nil, wrapErr(err)
	}
	return assignments, nil
}

// ListAssignments returns a schema's current role assignments.
func (s *LogbookStore) ListAssignments(ctx context.Context, schemaID string) ([]models.LogbookRoleAssignment, error) {
	var assignments []models.LogbookRoleAssignment
	err := s.db.WithContext(ctx).
		Where("schema_id = ?", schemaID).
		Order("role ASC").
		Find(&assignments).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	return assignments, nil
}

func (s *LogbookStore) CreateEntry(ctx context.Context, e *models.LogbookEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return wrapErr(s.db.WithContext(ctx).Create(e).Error)
}

func (s *LogbookStore) GetEntry(ctx context.Context, id string) (*models.LogbookEntry, error) {
	var e models.LogbookEntry
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&e).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	return &e, nil
}

func (s *LogbookStore) ListEntries(ctx context.Context, f EntryFilter, p Page) ([]models.LogbookEntry, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.LogbookEntry{})
	if f.SchemaID != "" {
		q = q.Where("schema_id = ?", f.SchemaID)
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
	if f.VisibleToRole != "" {
		q = q.Where("schema_id IN (?)", s.db.Model(&models.LogbookRoleAssignment{}).
			Select("schema_id").
			Where("role = ?", f.VisibleToRole))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, wrapErr(err)
	}

	var entries []models.LogbookEntry
	err := q.Scopes(paginate(p)).Order("created_at DESC").Find(&entries).Error
	if err != nil {
		return nil, 0, wrapErr(err)
	}
	return entries, total, nil
}

func (s *LogbookStore) UpdateEntry(ctx context.Context, e *models.LogbookEntry) error {
	return wrapErr(s.db.WithContext(ctx).Save(e).Error)
}

func (s *LogbookStore) DeleteEntry(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.LogbookEntry{})
	if res.Error != nil {
		return wrapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
