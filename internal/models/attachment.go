package models

import "time"

// Attachment is metadata for a file kept in the attachment store:
// calibration certificates, signed scans, photos tied to a record.
// The bytes live on disk under the attachment root; only metadata is
// kept here.
type Attachment struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType"`
	RecordType  string    `json:"recordType" gorm:"index:idx_attachment_record"`
	RecordID    string    `json:"recordId" gorm:"index:idx_attachment_record"`
	UploadedBy  *string   `json:"uploadedBy" gorm:"type:varchar(36)"`
	UploadedAt  time.Time `json:"uploadedAt"`
}
