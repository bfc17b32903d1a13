package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/facility-logbook/backend/internal/models"
)

// ReportStore holds the approval register. Rows are never updated in
// place; a re-approved source gets a fresh row and rows disappear when
// their source record is deleted.
type ReportStore struct {
	db *gorm.DB
}

// ReportFilter narrows report listings. ClientView restricts the
// result to report types visible to client accounts.
type ReportFilter struct {
	Types      []models.ReportType
	Site       string
	Search     string
	From, To   *time.Time
	ClientView bool
}

func (f ReportFilter) apply(q *gorm.DB) *gorm.DB {
	if len(f.Types) > 0 {
		q = q.Where("report_type IN ?", f.Types)
	}
	if f.Site != "" {
		q = q.Where("site = ?", f.Site)
	}
	if f.Search != "" {
		q = q.Where("title LIKE ?", "%"+f.Search+"%")
	}
	if f.From != nil {
		q = q.Where("approved_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("approved_at <= ?", *f.To)
	}
	if f.ClientView {
		q = q.Where("report_type NOT IN ?", []models.ReportType{models.ReportChemical, models.ReportLogbook})
	}
	return q
}

func (s *ReportStore) Create(ctx context.Context, r *models.Report) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return wrapErr(s.db.WithContext(ctx).Create(r).Error)
}

func (s *ReportStore) GetByID(ctx context.Context, id string) (*models.Report, error) {
	var r models.Report
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		return nil, wrapErr(err)
	}
	return &r, nil
}

func (s *ReportStore) List(ctx context.Context, f ReportFilter, p Page) ([]models.Report, int64, error) {
	q := f.apply(s.db.WithContext(ctx).Model(&models.Report{}))
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, wrapErr(err)
	}
	var reports []models.Report
	err := q.Scopes(paginate(p)).Order("approved_at DESC").Find(&reports).Error
	if err != nil {
		return nil, 0, wrapErr(err)
	}
	return reports, total, nil
}

// ListAll returns every report matching the filter without pagination,
// for archive export.
func (s *ReportStore) ListAll(ctx context.Context, f ReportFilter) ([]models.Report, error) {
	var reports []models.Report
	err := f.apply(s.db.WithContext(ctx).Model(&models.Report{})).
		Order("approved_at ASC").
		Find(&reports).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	return reports, nil
}

// DeleteBySource removes the register rows for a deleted source
// record. Returns the number of rows removed.
func (s *ReportStore) DeleteBySource(ctx context.Context, table, sourceID string) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("source_table = ? AND source_id = ?", table, sourceID).
		Delete(&models.Report{})
	return res.RowsAffected, wrapErr(res.Error)
}

// CountByType groups approved reports by type, for the dashboard.
func (s *ReportStore) CountByType(ctx context.Context) (map[models.ReportType]int64, error) {
	type row struct {
		ReportType models.ReportType
		N          int64
	}
	var rows []row
	err := s.db.WithContext(ctx).Model(&models.Report{}).
		Select("report_type, COUNT(*) AS n").
		Group("report_type").
		Find(&rows).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	out := make(map[models.ReportType]int64, len(rows))
	for _, r := range rows {
		out[r.ReportType] = r.N
	}
	return out, nil
}
