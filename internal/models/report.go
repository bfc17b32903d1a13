package models

import "time"

// ReportType identifies which register an approved record came from.
type ReportType string

const (
	ReportUtility              ReportType = "utility"
	ReportChemical             ReportType = "chemical"
	ReportValidation           ReportType = "validation"
	ReportAirVelocity          ReportType = "air_velocity"
	ReportFilterIntegrity      ReportType = "filter_integrity"
	ReportRecovery             ReportType = "recovery"
	ReportDifferentialPressure ReportType = "differential_pressure"
	ReportNVPC                 ReportType = "nvpc"
	ReportLogbook              ReportType = "logbook"
)

func (t ReportType) Valid() bool {
	switch t {
	case ReportUtility, ReportChemical, ReportValidation, ReportAirVelocity,
		ReportFilterIntegrity, ReportRecovery, ReportDifferentialPressure,
		ReportNVPC, ReportLogbook:
		return true
	}
	return false
}

// ClientVisible reports whether client accounts may see reports of
// this type. Internal housekeeping registers stay off the client view.
func (t ReportType) ClientVisible() bool {
	return t != ReportChemical && t != ReportLogbook
}

// Report is the read-only index row written whenever a record is
// approved. It points back at the source row rather than copying it.
type Report struct {
	ID          string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ReportType  ReportType `json:"reportType" gorm:"type:varchar(50);index:idx_reports_type_approved"`
	SourceID    string     `json:"sourceId" gorm:"type:varchar(36);index:idx_reports_source"`
	SourceTable string     `json:"sourceTable" gorm:"index:idx_reports_source"`
	Title       string     `json:"title"`
	Site        string     `json:"site"`

	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`

	ApprovedByID *string   `json:"approvedById" gorm:"type:varchar(36)"`
	ApprovedAt   time.Time `json:"approvedAt" gorm:"index:idx_reports_type_approved"`
	Remarks      string    `json:"remarks"`

	UpdatedAt time.Time `json:"updatedAt"`
}
