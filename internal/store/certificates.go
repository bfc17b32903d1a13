package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/facility-logbook/backend/internal/models"
)

// CertificateStore persists the five test certificate families.
// Creates are nested: one request carries the certificate and all of
// its rooms/readings/points, written in a single transaction.
type CertificateStore struct {
	db *gorm.DB
}

// CertFilter narrows certificate listings.
type CertFilter struct {
	CertificateNo string
	ClientName    string
	AHUNumber     string
	Status        models.Status
	From, To      *time.Time
}

func (f CertFilter) apply(q *gorm.DB) *gorm.DB {
	if f.CertificateNo != "" {
		q = q.Where("certificate_no LIKE ?", "%"+f.CertificateNo+"%")
	}
	if f.ClientName != "" {
		q = q.Where("client_name LIKE ?", "%"+f.ClientName+"%")
	}
	if f.AHUNumber != "" {
		q = q.Where("ahu_number = ?", f.AHUNumber)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.From != nil {
		q = q.Where("date >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("date <= ?", *f.To)
	}
	return q
}

// CreateAirVelocity writes the certificate and its rooms and filters.
func (s *CertificateStore) CreateAirVelocity(ctx context.Context, t *models.AirVelocityTest) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(t).Error; err != nil {
			return err
		}
		for i := range t.Rooms {
			room := &t.Rooms[i]
			room.ID = uuid.NewString()
			room.TestID = t.ID
			if err := tx.Omit(clause.Associations).Create(room).Error; err != nil {
				return err
			}
			for j := range room.Filters {
				f := &room.Filters[j]
				f.ID = uuid.NewString()
				f.RoomID = room.ID
				if err := tx.Create(f).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	return wrapErr(err)
}

func (s *CertificateStore) GetAirVelocity(ctx context.Context, id string) (*models.AirVelocityTest, error) {
	var t models.AirVelocityTest
	err := s.db.WithContext(ctx).
		Preload("Rooms.Filters").
		Where("id = ?", id).
		First(&t).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	return &t, nil
}

func (s *CertificateStore) ListAirVelocity(ctx context.Context, f CertFilter, p Page) ([]models.AirVelocityTest, int64, error) {
	q := f.apply(s.db.WithContext(ctx).Model(&models.AirVelocityTest{}))
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, wrapErr(err)
	}
	var tests []models.AirVelocityTest
	err := q.Preload("Rooms.Filters").
		Scopes(paginate(p)).
		Order("created_at DESC").
		Find(&tests).Error
	if err != nil {
		return nil, 0, wrapErr(err)
	}
	return tests, total, nil
}

// UpdateAirVelocity saves header fields; when Rooms is non-nil the
// whole room tree is replaced.
func (s *CertificateStore) UpdateAirVelocity(ctx context.Context, t *models.AirVelocityTest) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(t).Error; err != nil {
			return err
		}
		if t.Rooms == nil {
			return nil
		}
		if err := deleteAirVelocityChildren(tx, t.ID); err != nil {
			return err
		}
		for i := range t.Rooms {
			room := &t.Rooms[i]
			room.ID = uuid.NewString()
			room.TestID = t.ID
			if err := tx.Omit(clause.Associations).Create(room).Error; err != nil {
				return err
			}
			for j := range room.Filters {
				f := &room.Filters[j]
				f.ID = uuid.NewString()
				f.RoomID = room.ID
				if err := tx.Create(f).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	return wrapErr(err)
}

func (s *CertificateStore) DeleteAirVelocity(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteAirVelocityChildren(tx, id); err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.AirVelocityTest{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	return wrapErr(err)
}

func deleteAirVelocityChildren(tx *gorm.DB, testID string) error {
	roomIDs := tx.Model(&models.AirVelocityRoom{}).Select("id").Where("test_id = ?", testID)
	if err := tx.Where("room_id IN (?)", roomIDs).Delete(&models.AirVelocityFilter{}).Error; err != nil {
		return err
	}
	return tx.Where("test_id = ?", testID).Delete(&models.AirVelocityRoom{}).Error
}

// CreateFilterIntegrity writes the certificate and its rooms and readings.
func (s *CertificateStore) CreateFilterIntegrity(ctx context.Context, t *models.FilterIntegrityTest) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(t).Error; err != nil {
			return err
		}
		for i := range t.Rooms {
			room := &t.Rooms[i]
			room.ID = uuid.NewString()
			room.TestID = t.ID
			if err := tx.Omit(clause.Associations).Create(room).Error; err != nil {
				return err
			}
			for j := range room.Readings {
				r := &room.Readings[j]
				r.ID = uuid.NewString()
				r.RoomID = room.ID
				if err := tx.Create(r).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	return wrapErr(err)
}

func (s *CertificateStore) GetFilterIntegrity(ctx context.Context, id string) (*models.FilterIntegrityTest, error) {
	var t models.FilterIntegrityTest
	err := s.db.WithContext(ctx).
		Preload("Rooms.Readings").
		Where("id = ?", id).
		First(&t).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	return &t, nil
}

func (s *CertificateStore) ListFilterIntegrity(ctx context.Context, f CertFilter, p Page) ([]models.FilterIntegrityTest, int64, error) {
	q := f.apply(s.db.WithContext(ctx).Model(&models.FilterIntegrityTest{}))
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, wrapErr(err)
	}
	var tests []models.FilterIntegrityTest
	err := q.Preload("Rooms.Readings").
		Scopes(paginate(p)).
		Order("created_at DESC").
		Find(&tests).Error
	if err != nil {
		return nil, 0, wrapErr(err)
	}
	return tests, total, nil
}

func (s *CertificateStore) UpdateFilterIntegrity(ctx context.Context, t *models.FilterIntegrityTest) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(t).Error; err != nil {
			return err
		}
		if t.Rooms == nil {
			return nil
		}
		if err := deleteFilterIntegrityChildren(tx, t.ID); err != nil {
			return err
		}
		for i := range t.Rooms {
			room := &t.Rooms[i]
			room.ID = uuid.NewString()
			room.TestID = t.ID
			if err := tx.Omit(clause.Associations).Create(room).Error; err != nil {
				return err
			}
			for j := range room.Readings {
				r := &room.Readings[j]
				r.ID = uuid.NewString()
				r.RoomID = room.ID
				if err := tx.Create(r).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	return wrapErr(err)
}

func (s *CertificateStore) DeleteFilterIntegrity(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteFilterIntegrityChildren(tx, id); err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.FilterIntegrityTest{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	return wrapErr(err)
}

func deleteFilterIntegrityChildren(tx *gorm.DB, testID string) error {
	roomIDs := tx.Model(&models.FilterIntegrityRoom{}).Select("id").Where("test_id = ?", testID)
	if err := tx.Where("room_id IN (?)", roomIDs).Delete(&models.FilterIntegrityReading{}).Error; err != nil {
		return err
	}
	return tx.Where("test_id = ?", testID).Delete(&models.FilterIntegrityRoom{}).Error
}

// CreateRecovery writes the certificate and its data points.
func (s *CertificateStore) CreateRecovery(ctx context.Context, t *models.RecoveryTest) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(t).Error; err != nil {
			return err
		}
		for i := range t.DataPoints {
			dp := &t.DataPoints[i]
			dp.ID = uuid.NewString()
			dp.TestID = t.ID
			if err := tx.Create(dp).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return wrapErr(err)
}

func (s *CertificateStore) GetRecovery(ctx context.Context, id string) (*models.RecoveryTest, error) {
	var t models.RecoveryTest
	err := s.db.WithContext(ctx).
		Preload("DataPoints").
		Where("id = ?", id).
		First(&t).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	return &t, nil
}

func (s *CertificateStore) ListRecovery(ctx context.Context, f CertFilter, p Page) ([]models.RecoveryTest, int64, error) {
	q := f.apply(s.db.WithContext(ctx).Model(&models.RecoveryTest{}))
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, wrapErr(err)
	}
	var tests []models.RecoveryTest
	err := q.Preload("DataPoints").
		Scopes(paginate(p)).
		Order("created_at DESC").
		Find(&tests).Error
	if err != nil {
		return nil, 0, wrapErr(err)
	}
	return tests, total, nil
}

func (s *CertificateStore) UpdateRecovery(ctx context.Context, t *models.RecoveryTest) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(t).Error; err != nil {
			return err
		}
		if t.DataPoints == nil {
			return nil
		}
		if err := tx.Where("test_id = ?", t.ID).Delete(&models.RecoveryDataPoint{}).Error; err != nil {
			return err
		}
		for i := range t.DataPoints {
			dp := &t.DataPoints[i]
			dp.ID = uuid.NewString()
			dp.TestID = t.ID
			if err := tx.Create(dp).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return wrapErr(err)
}

func (s *CertificateStore) DeleteRecovery(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("test_id = ?", id).Delete(&models.RecoveryDataPoint{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.RecoveryTest{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	return wrapErr(err)
}

// CreateDifferentialPressure writes the certificate and its readings.
func (s *CertificateStore) CreateDifferentialPressure(ctx context.Context, t *models.DifferentialPressureTest) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(t).Error; err != nil {
			return err
		}
		for i := range t.Readings {
			r := &t.Readings[i]
			r.ID = uuid.NewString()
			r.TestID = t.ID
			if err := tx.Create(r).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return wrapErr(err)
}

func (s *CertificateStore) GetDifferentialPressure(ctx context.Context, id string) (*models.DifferentialPressureTest, error) {
	var t models.DifferentialPressureTest
	err := s.db.WithContext(ctx).
		Preload("Readings").
		Where("id = ?", id).
		First(&t).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	return &t, nil
}

func (s *CertificateStore) ListDifferentialPressure(ctx context.Context, f CertFilter, p Page) ([]models.DifferentialPressureTest, int64, error) {
	q := f.apply(s.db.WithContext(ctx).Model(&models.DifferentialPressureTest{}))
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, wrapErr(err)
	}
	var tests []models.DifferentialPressureTest
	err := q.Preload("Readings").
		Scopes(paginate(p)).
		Order("created_at DESC").
		Find(&tests).Error
	if err != nil {
		return nil, 0, wrapErr(err)
	}
	return tests, total, nil
}

func (s *CertificateStore) UpdateDifferentialPressure(ctx context.Context, t *models.DifferentialPressureTest) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(t).Error; err != nil {
			return err
		}
		if t.Readings == nil {
			return nil
		}
		if err := tx.Where("test_id = ?", t.ID).Delete(&models.DifferentialPressureReading{}).Error; err != nil {
			return err
		}
		for i := range t.Readings {
			r := &t.Readings[i]
			r.ID = uuid.NewString()
			r.TestID = t.ID
			if err := tx.Create(r).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return wrapErr(err)
}

func (s *CertificateStore) DeleteDifferentialPressure(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("test_id = ?", id).Delete(&models.DifferentialPressureReading{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.DifferentialPressureTest{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	return wrapErr(err)
}

// CreateNVPC writes the certificate, its rooms and sampling points.
func (s *CertificateStore) CreateNVPC(ctx context.Context, t *models.NVPCTest) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(t).Error; err != nil {
			return err
		}
		for i := range t.Rooms {
			room := &t.Rooms[i]
			room.ID = uuid.NewString()
			room.TestID = t.ID
			if err := tx.Omit(clause.Associations).Create(room).Error; err != nil {
				return err
			}
			for j := range room.SamplingPoints {
				sp := &room.SamplingPoints[j]
				sp.ID = uuid.NewString()
				sp.RoomID = room.ID
				if err := tx.Create(sp).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	return wrapErr(err)
}

func (s *CertificateStore) GetNVPC(ctx context.Context, id string) (*models.NVPCTest, error) {
	var t models.NVPCTest
	err := s.db.WithContext(ctx).
		Preload("Rooms.SamplingPoints").
		Where("id = ?", id).
		First(&t).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	return &t, nil
}

func (s *CertificateStore) ListNVPC(ctx context.Context, f CertFilter, p Page) ([]models.NVPCTest, int64, error) {
	q := f.apply(s.db.WithContext(ctx).Model(&models.NVPCTest{}))
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, wrapErr(err)
	}
	var tests []models.NVPCTest
	err := q.Preload("Rooms.SamplingPoints").
		Scopes(paginate(p)).
		Order("created_at DESC").
		Find(&tests).Error
	if err != nil {
		return nil, 0, wrapErr(err)
	}
	return tests, total, nil
}

func (s *CertificateStore) UpdateNVPC(ctx context.Context, t *models.NVPCTest) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(t).Error; err != nil {
			return err
		}
		if t.Rooms == nil {
			return nil
		}
		if err := deleteNVPCChildren(tx, t.ID); err != nil {
			return err
		}
		for i := range t.Rooms {
			room := &t.Rooms[i]
			room.ID = uuid.NewString()
			room.TestID = t.ID
			if err := tx.Omit(clause.Associations).Create(room).Error; err != nil {
				return err
			}
			for j := range room.SamplingPoints {
				sp := &room.SamplingPoints[j]
				sp.ID = uuid.NewString()
				sp.RoomID = room.ID
				if err := tx.Create(sp).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	return wrapErr(err)
}

func (s *CertificateStore) DeleteNVPC(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteNVPCChildren(tx, id); err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.NVPCTest{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	return wrapErr(err)
}

func deleteNVPCChildren(tx *gorm.DB, testID string) error {
	roomIDs := tx.Model(&models.NVPCRoom{}).Select("id").Where("test_id = ?", testID)
	if err := tx.Where("room_id IN (?)", roomIDs).Delete(&models.NVPCSamplingPoint{}).Error; err != nil {
		return err
	}
	return tx.Where("test_id = ?", testID).Delete(&models.NVPCRoom{}).Error
}
