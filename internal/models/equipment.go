package models

import "time"

// EquipmentType classifies a utility log reading.
type EquipmentType string

const (
	EquipmentChiller    EquipmentType = "chiller"
	EquipmentBoiler     EquipmentType = "boiler"
	EquipmentCompressor EquipmentType = "compressor"
)

func (t EquipmentType) Valid() bool {
	switch t {
	case EquipmentChiller, EquipmentBoiler, EquipmentCompressor:
		return true
	}
	return false
}

// ChillerLog is one monitoring round of a chiller plant: chilled water
// loop, cooling tower, evaporator/condenser circuits and the daily
// water-treatment chemical additions.
type ChillerLog struct {
	ID          string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	EquipmentID string `json:"equipmentId" gorm:"index"`
	SiteID      string `json:"siteId" gorm:"index"`

	ChillerSupplyTemp         float64  `json:"chillerSupplyTemp"`
	ChillerReturnTemp         float64  `json:"chillerReturnTemp"`
	CoolingTowerSupplyTemp    float64  `json:"coolingTowerSupplyTemp"`
	CoolingTowerReturnTemp    float64  `json:"coolingTowerReturnTemp"`
	CTDifferentialTemp        float64  `json:"ctDifferentialTemp"`
	ChillerWaterInletPressure float64  `json:"chillerWaterInletPressure"`
	ChillerMakeupWaterFlow    *float64 `json:"chillerMakeupWaterFlow"`

	EvapWaterInletPressure  *float64 `json:"evapWaterInletPressure"`
	EvapWaterOutletPressure *float64 `json:"evapWaterOutletPressure"`
	EvapEnteringWaterTemp   *float64 `json:"evapEnteringWaterTemp"`
	EvapLeavingWaterTemp    *float64 `json:"evapLeavingWaterTemp"`
	EvapApproachTemp        *float64 `json:"evapApproachTemp"`

	CondWaterInletPressure  *float64 `json:"condWaterInletPressure"`
	CondWaterOutletPressure *float64 `json:"condWaterOutletPressure"`
	CondEnteringWaterTemp   *float64 `json:"condEnteringWaterTemp"`
	CondLeavingWaterTemp    *float64 `json:"condLeavingWaterTemp"`
	CondApproachTemp        *float64 `json:"condApproachTemp"`

	ChillerControlSignal     *float64 `json:"chillerControlSignal"`
	AvgMotorCurrent          *float64 `json:"avgMotorCurrent"`
	CompressorRunningTimeMin *float64 `json:"compressorRunningTimeMin"`
	StarterEnergyKWH         *float64 `json:"starterEnergyKwh"`

	CoolingTowerPumpStatus         string   `json:"coolingTowerPumpStatus"`
	ChilledWaterPumpStatus         string   `json:"chilledWaterPumpStatus"`
	CoolingTowerFanStatus          string   `json:"coolingTowerFanStatus"`
	CoolingTowerBlowoffValveStatus string   `json:"coolingTowerBlowoffValveStatus"`
	CoolingTowerBlowdownTimeMin    *float64 `json:"coolingTowerBlowdownTimeMin"`

	CoolingTowerChemicalName      string   `json:"coolingTowerChemicalName"`
	CoolingTowerChemicalQtyPerDay *float64 `json:"coolingTowerChemicalQtyPerDay"`
	ChilledWaterPumpChemicalName  string   `json:"chilledWaterPumpChemicalName"`
	ChilledWaterPumpChemicalQtyKg *float64 `json:"chilledWaterPumpChemicalQtyKg"`
	CoolingTowerFanChemicalName   string   `json:"coolingTowerFanChemicalName"`
	CoolingTowerFanChemicalQtyKg  *float64 `json:"coolingTowerFanChemicalQtyKg"`

	RecordingFrequency string `json:"recordingFrequency"`
	OperatorSign       string `json:"operatorSign"`
	VerifiedBy         string `json:"verifiedBy"`

	Workflow  `gorm:"embedded"`
	CreatedAt time.Time `json:"createdAt" gorm:"index"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BoilerLog is one monitoring round of a steam boiler.
type BoilerLog struct {
	ID          string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	EquipmentID string `json:"equipmentId" gorm:"index"`
	SiteID      string `json:"siteId" gorm:"index"`

	FeedWaterTemp float64  `json:"feedWaterTemp"`
	OilTemp       float64  `json:"oilTemp"`
	SteamTemp     float64  `json:"steamTemp"`
	SteamPressure float64  `json:"steamPressure"`
	SteamFlowLPH  *float64 `json:"steamFlowLph"`

	Workflow  `gorm:"embedded"`
	CreatedAt time.Time `json:"createdAt" gorm:"index"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CompressorLog is one monitoring round of an air compressor.
type CompressorLog struct {
	ID          string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	EquipmentID string `json:"equipmentId" gorm:"index"`
	SiteID      string `json:"siteId" gorm:"index"`

	CompressorSupplyTemp float64  `json:"compressorSupplyTemp"`
	CompressorReturnTemp float64  `json:"compressorReturnTemp"`
	CompressorPressure   float64  `json:"compressorPressure"`
	CompressorFlow       *float64 `json:"compressorFlow"`

	Workflow  `gorm:"embedded"`
	CreatedAt time.Time `json:"createdAt" gorm:"index"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UtilityLog is the generic two-temperature/two-pressure reading kept
// for equipment that has no dedicated log type.
type UtilityLog struct {
	ID            string        `json:"id" gorm:"primaryKey;type:varchar(36)"`
	EquipmentType EquipmentType `json:"equipmentType" gorm:"type:varchar(20);index"`
	EquipmentID   string        `json:"equipmentId" gorm:"index"`
	SiteID        string        `json:"siteId" gorm:"index"`

	T1       float64  `json:"t1"`
	T2       float64  `json:"t2"`
	P1       float64  `json:"p1"`
	P2       float64  `json:"p2"`
	FlowRate *float64 `json:"flowRate"`

	Workflow  `gorm:"embedded"`
	CreatedAt time.Time `json:"createdAt" gorm:"index"`
	UpdatedAt time.Time `json:"updatedAt"`
}
