package models

import "time"

// ChemicalPreparation records a batch of treatment solution mixed for
// a piece of equipment: chemical strength, water and chemical
// quantities, and who double-checked the mix.
type ChemicalPreparation struct {
	ID                    string   `json:"id" gorm:"primaryKey;type:varchar(36)"`
	EquipmentName         string   `json:"equipmentName"`
	ChemicalName          string   `json:"chemicalName"`
	ChemicalPercent       *float64 `json:"chemicalPercent"`
	SolutionConcentration *float64 `json:"solutionConcentration"`
	WaterQty              *float64 `json:"waterQty"`
	ChemicalQty           *float64 `json:"chemicalQty"`
	CheckedBy             string   `json:"checkedBy"`

	Workflow  `gorm:"embedded"`
	CreatedAt time.Time `json:"createdAt" gorm:"index"`
	UpdatedAt time.Time `json:"updatedAt"`
}
