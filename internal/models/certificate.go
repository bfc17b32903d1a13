package models

import "time"

// AHUStatus marks whether the air handling unit was running when a
// recovery data point was sampled.
type AHUStatus string

const (
	AHUOn  AHUStatus = "ON"
	AHUOff AHUStatus = "OFF"
)

func (s AHUStatus) Valid() bool {
	return s == AHUOn || s == AHUOff
}

// CertificateHeader carries the identification block every test
// certificate starts with. CertificateNo is unique per test family.
type CertificateHeader struct {
	CertificateNo string    `json:"certificateNo" gorm:"uniqueIndex"`
	ClientName    string    `json:"clientName"`
	ClientAddress string    `json:"clientAddress"`
	Date          time.Time `json:"date"`
	AHUNumber     string    `json:"ahuNumber"`
}

// InstrumentDetails is the instrument block printed on a certificate.
// Values are copied off the instrument register at test time so the
// certificate stays truthful if the register changes later.
type InstrumentDetails struct {
	InstrumentName               string     `json:"instrumentName"`
	InstrumentMake               string     `json:"instrumentMake"`
	InstrumentModel              string     `json:"instrumentModel"`
	InstrumentSerialNumber       string     `json:"instrumentSerialNumber"`
	InstrumentIDNumber           string     `json:"instrumentIdNumber"`
	InstrumentCalibrationDate    *time.Time `json:"instrumentCalibrationDate"`
	InstrumentCalibrationDueDate *time.Time `json:"instrumentCalibrationDueDate"`
	InstrumentFlowRate           string     `json:"instrumentFlowRate"`
	InstrumentSamplingTime       string     `json:"instrumentSamplingTime"`
}

// AirVelocityTest certifies filter face velocities and room air
// changes for one AHU.
type AirVelocityTest struct {
	ID                string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CertificateHeader `gorm:"embedded"`
	TestReference     string `json:"testReference"`
	Inference         string `json:"inference"`
	InstrumentDetails `gorm:"embedded"`
	PreparedBy        string `json:"preparedBy"`

	Workflow `gorm:"embedded"`

	Rooms []AirVelocityRoom `json:"rooms" gorm:"foreignKey:TestID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `json:"createdAt" gorm:"index"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AirVelocityRoom groups the filters measured in one room.
type AirVelocityRoom struct {
	ID              string   `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TestID          string   `json:"testId" gorm:"type:varchar(36);index"`
	RoomName        string   `json:"roomName"`
	RoomNumber      string   `json:"roomNumber"`
	TotalAirFlowCFM float64  `json:"totalAirFlowCfm"`
	RoomVolumeCFT   float64  `json:"roomVolumeCft"`
	ACH             float64  `json:"ach"`
	DesignACPH      *float64 `json:"designAcph"`

	Filters []AirVelocityFilter `json:"filters" gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AirVelocityFilter is one terminal filter with its five grid
// readings and derived velocity/flow figures.
type AirVelocityFilter struct {
	ID          string  `json:"id" gorm:"primaryKey;type:varchar(36)"`
	RoomID      string  `json:"roomId" gorm:"type:varchar(36);index"`
	FilterID    string  `json:"filterId"`
	FilterArea  float64 `json:"filterArea"`
	Reading1    float64 `json:"reading1"`
	Reading2    float64 `json:"reading2"`
	Reading3    float64 `json:"reading3"`
	Reading4    float64 `json:"reading4"`
	Reading5    float64 `json:"reading5"`
	AvgVelocity float64 `json:"avgVelocity"`
	AirFlowCFM  float64 `json:"airFlowCfm"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Readings returns the five grid readings in measurement order.
func (f *AirVelocityFilter) Readings() []float64 {
	return []float64{f.Reading1, f.Reading2, f.Reading3, f.Reading4, f.Reading5}
}

// FilterIntegrityTest certifies HEPA filter leak scans for one AHU.
type FilterIntegrityTest struct {
	ID                string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CertificateHeader `gorm:"embedded"`
	TestReference     string `json:"testReference"`
	Inference         string `json:"inference"`
	InstrumentDetails `gorm:"embedded"`
	PreparedBy        string `json:"preparedBy"`

	Workflow `gorm:"embedded"`

	Rooms []FilterIntegrityRoom `json:"rooms" gorm:"foreignKey:TestID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `json:"createdAt" gorm:"index"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FilterIntegrityRoom groups the filters scanned in one room.
type FilterIntegrityRoom struct {
	ID         string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TestID     string `json:"testId" gorm:"type:varchar(36);index"`
	RoomName   string `json:"roomName"`
	RoomNumber string `json:"roomNumber"`

	Readings []FilterIntegrityReading `json:"readings" gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FilterIntegrityReading is one filter's aerosol challenge result.
type FilterIntegrityReading struct {
	ID                      string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	RoomID                  string     `json:"roomId" gorm:"type:varchar(36);index"`
	FilterID                string     `json:"filterId"`
	UpstreamConcentration   float64    `json:"upstreamConcentration"`
	AerosolConcentration    float64    `json:"aerosolConcentration"`
	DownstreamConcentration float64    `json:"downstreamConcentration"`
	DownstreamLeakage       float64    `json:"downstreamLeakage"`
	AcceptableLimit         float64    `json:"acceptableLimit"`
	TestStatus              TestStatus `json:"testStatus" gorm:"type:varchar(10)"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RecoveryTest certifies how fast a cleanroom returns to its particle
// class after a challenge, sampled as a time series.
type RecoveryTest struct {
	ID                 string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CertificateHeader  `gorm:"embedded"`
	AreaClassification string     `json:"areaClassification"`
	RoomName           string     `json:"roomName"`
	RoomNumber         string     `json:"roomNumber"`
	TestCondition      string     `json:"testCondition"`
	RecoveryTime       float64    `json:"recoveryTime"`
	TestStatus         TestStatus `json:"testStatus" gorm:"type:varchar(10)"`
	AuditStatement     string     `json:"auditStatement"`
	InstrumentDetails  `gorm:"embedded"`
	PreparedBy         string `json:"preparedBy"`

	Workflow `gorm:"embedded"`

	DataPoints []RecoveryDataPoint `json:"dataPoints" gorm:"foreignKey:TestID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `json:"createdAt" gorm:"index"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RecoveryDataPoint is one sample in the recovery time series.
type RecoveryDataPoint struct {
	ID              string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TestID          string    `json:"testId" gorm:"type:varchar(36);index"`
	Time            string    `json:"time"`
	AHUStatus       AHUStatus `json:"ahuStatus" gorm:"type:varchar(10)"`
	ParticleCount05 int       `json:"particleCount05"`
	ParticleCount5  int       `json:"particleCount5"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DifferentialPressureTest certifies room-to-room pressure cascades.
type DifferentialPressureTest struct {
	ID                string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CertificateHeader `gorm:"embedded"`
	InstrumentDetails `gorm:"embedded"`
	PreparedBy        string `json:"preparedBy"`

	Workflow `gorm:"embedded"`

	Readings []DifferentialPressureReading `json:"readings" gorm:"foreignKey:TestID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `json:"createdAt" gorm:"index"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DifferentialPressureReading is the pressure drop across one door.
type DifferentialPressureReading struct {
	ID           string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TestID       string     `json:"testId" gorm:"type:varchar(36);index"`
	RoomPositive string     `json:"roomPositive"`
	RoomNegative string     `json:"roomNegative"`
	DPReading    float64    `json:"dpReading"`
	Limit        float64    `json:"limit"`
	TestStatus   TestStatus `json:"testStatus" gorm:"type:varchar(10)"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NVPCTest certifies non-viable particle counts per ISO 14644-1.
type NVPCTest struct {
	ID                 string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CertificateHeader  `gorm:"embedded"`
	AreaClassification string `json:"areaClassification"`
	AreaName           string `json:"areaName"`
	Inference          string `json:"inference"`
	InstrumentDetails  `gorm:"embedded"`
	PreparedBy         string `json:"preparedBy"`

	Workflow `gorm:"embedded"`

	Rooms []NVPCRoom `json:"rooms" gorm:"foreignKey:TestID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `json:"createdAt" gorm:"index"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NVPCRoom aggregates a room's sampling points. Means are across
// point averages; the room passes only if every point passes.
type NVPCRoom struct {
	ID         string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TestID     string     `json:"testId" gorm:"type:varchar(36);index"`
	RoomName   string     `json:"roomName"`
	RoomNumber string     `json:"roomNumber"`
	ISOClass   *int       `json:"isoClass"`
	Mean05     *float64   `json:"mean05"`
	Mean5      *float64   `json:"mean5"`
	RoomStatus TestStatus `json:"roomStatus" gorm:"type:varchar(10)"`

	SamplingPoints []NVPCSamplingPoint `json:"samplingPoints" gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NVPCSamplingPoint holds the raw counter readings at one location
// for the 0.5µm and 5µm channels.
type NVPCSamplingPoint struct {
	ID         string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	RoomID     string     `json:"roomId" gorm:"type:varchar(36);index"`
	PointID    string     `json:"pointId"`
	Location   string     `json:"location"`
	Readings05 FloatList  `json:"readings05" gorm:"type:text"`
	Readings5  FloatList  `json:"readings5" gorm:"type:text"`
	Average05  float64    `json:"average05"`
	Average5   float64    `json:"average5"`
	Limit05    float64    `json:"limit05"`
	Limit5     float64    `json:"limit5"`
	TestStatus TestStatus `json:"testStatus" gorm:"type:varchar(10)"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
