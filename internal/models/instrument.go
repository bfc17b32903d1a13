package models

import (
	"time"

	"github.com/facility-logbook/backend/internal/limits"
)

// Instrument is a calibrated measuring device referenced by test
// certificates. Calibration status is derived, never stored.
type Instrument struct {
	ID                 string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name               string    `json:"name"`
	Make               string    `json:"make"`
	Model              string    `json:"model"`
	SerialNumber       string    `json:"serialNumber" gorm:"uniqueIndex"`
	IDNumber           string    `json:"idNumber"`
	CalibrationDate    time.Time `json:"calibrationDate"`
	CalibrationDueDate time.Time `json:"calibrationDueDate" gorm:"index"`
	CertificateFileID  string    `json:"certificateFileId"`
	SiteID             string    `json:"siteId" gorm:"index"`
	IsActive           bool      `json:"isActive" gorm:"default:true"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// CalibrationStatus returns valid, expiring or expired relative to now.
func (i *Instrument) CalibrationStatus(now time.Time) string {
	return string(limits.CalibrationStatus(i.CalibrationDueDate, now))
}
