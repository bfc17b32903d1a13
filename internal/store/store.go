// Package store is the persistence layer: one sqlite database opened
// through gorm, one store type per resource family. All list methods
// paginate and filter at the SQL level.
package store

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/facility-logbook/backend/internal/models"
)

// Open opens (and creates if needed) the record database at path and
// migrates the schema. WAL keeps readers unblocked during approvals;
// the busy timeout covers writer contention from background tickers.
func Open(path string) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.PasswordResetToken{},
		&models.RevokedToken{},
		&models.Site{},
		&models.Instrument{},
		&models.LogbookSchema{},
		&models.LogbookRoleAssignment{},
		&models.LogbookEntry{},
		&models.ChillerLog{},
		&models.BoilerLog{},
		&models.CompressorLog{},
		&models.UtilityLog{},
		&models.ChemicalPreparation{},
		&models.HVACValidation{},
		&models.AirVelocityTest{},
		&models.AirVelocityRoom{},
		&models.AirVelocityFilter{},
		&models.FilterIntegrityTest{},
		&models.FilterIntegrityRoom{},
		&models.FilterIntegrityReading{},
		&models.RecoveryTest{},
		&models.RecoveryDataPoint{},
		&models.DifferentialPressureTest{},
		&models.DifferentialPressureReading{},
		&models.NVPCTest{},
		&models.NVPCRoom{},
		&models.NVPCSamplingPoint{},
		&models.Report{},
		&models.AuditRecord{},
		&models.Attachment{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Store bundles the per-resource stores over one database handle.
type Store struct {
	DB *gorm.DB

	Users        *UserStore
	Tokens       *TokenStore
	Sites        *SiteStore
	Instruments  *InstrumentStore
	Logbooks     *LogbookStore
	Equipment    *EquipmentStore
	Chemicals    *ChemicalStore
	HVAC         *HVACStore
	Certificates *CertificateStore
	Reports      *ReportStore
	Audit        *AuditStore
	Attachments  *AttachmentStore
}

// New wires the per-resource stores around db.
func New(db *gorm.DB) *Store {
	return &Store{
		DB:           db,
		Users:        &UserStore{db: db},
		Tokens:       &TokenStore{db: db},
		Sites:        &SiteStore{db: db},
		Instruments:  &InstrumentStore{db: db},
		Logbooks:     &LogbookStore{db: db},
		Equipment:    &EquipmentStore{db: db},
		Chemicals:    &ChemicalStore{db: db},
		HVAC:         &HVACStore{db: db},
		Certificates: &CertificateStore{db: db},
		Reports:      &ReportStore{db: db},
		Audit:        &AuditStore{db: db},
		Attachments:  &AttachmentStore{db: db},
	}
}

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Page is a 1-based pagination request.
type Page struct {
	Number int
	Size   int
}

// Normalize clamps the page request to sane bounds.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = defaultPageSize
	}
	if p.Size > maxPageSize {
		p.Size = maxPageSize
	}
	return p
}

// Offset returns the row offset for the normalized page.
func (p Page) Offset() int {
	n := p.Normalize()
	return (n.Number - 1) * n.Size
}

func paginate(p Page) func(*gorm.DB) *gorm.DB {
	n := p.Normalize()
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(n.Offset()).Limit(n.Size)
	}
}
