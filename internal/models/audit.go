package models

import "time"

// AuditRecord is one line of the persistent application audit trail.
// Rows are written by the logging pipeline, never by handlers
// directly, and pruned on a retention schedule.
type AuditRecord struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"createdAt" gorm:"index"`
	Level     string    `json:"level" gorm:"index"`
	Message   string    `json:"message"`
	Source    string    `json:"source" gorm:"index"`
	UserID    *string   `json:"userId" gorm:"type:varchar(36);index"`
	Data      string    `json:"data"`
}
