package models

import "time"

// HVACValidation stores an air-change validation for one cleanroom:
// anemometer grid readings, derived airflow figures and the pass/fail
// verdict against the design specification.
type HVACValidation struct {
	ID              string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	RoomName        string     `json:"roomName"`
	ISOClass        int        `json:"isoClass"`
	RoomVolume      float64    `json:"roomVolume"`
	GridReadings    FloatList  `json:"gridReadings" gorm:"type:text"`
	AverageVelocity float64    `json:"averageVelocity"`
	FlowRateCFM     float64    `json:"flowRateCfm"`
	TotalCFM        float64    `json:"totalCfm"`
	ACH             float64    `json:"ach"`
	DesignSpec      float64    `json:"designSpec"`
	Result          TestStatus `json:"result" gorm:"type:varchar(10)"`

	Workflow  `gorm:"embedded"`
	CreatedAt time.Time `json:"createdAt" gorm:"index"`
	UpdatedAt time.Time `json:"updatedAt"`
}
