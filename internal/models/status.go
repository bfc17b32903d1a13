// Package models contains domain types for the facility logbook service.
package models

import "time"

// Status represents the approval workflow state of a record.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is one of the known workflow states.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Submittable reports whether a client may set this status on create/update.
// Approved and rejected are only reachable through the approve action.
func (s Status) Submittable() bool {
	return s == StatusDraft || s == StatusPending
}

// TestStatus is the pass/fail outcome of a single certificate reading.
type TestStatus string

const (
	TestPass TestStatus = "PASS"
	TestFail TestStatus = "FAIL"
)

// Valid reports whether t is PASS or FAIL.
func (t TestStatus) Valid() bool {
	return t == TestPass || t == TestFail
}

// Workflow is the approval block shared by every loggable record.
// Operator identity is stamped server-side from the authenticated user.
type Workflow struct {
	OperatorID   *string    `json:"operatorId" gorm:"type:varchar(36);index"`
	OperatorName string     `json:"operatorName"`
	Status       Status     `json:"status" gorm:"type:varchar(20);default:draft;index"`
	ApprovedByID *string    `json:"approvedById" gorm:"type:varchar(36)"`
	ApprovedAt   *time.Time `json:"approvedAt"`
	Remarks      string     `json:"remarks"`
}

// Approve stamps the workflow with the outcome of an approval decision.
func (w *Workflow) Approve(approverID string, approved bool, remarks string, now time.Time) {
	if approved {
		w.Status = StatusApproved
	} else {
		w.Status = StatusRejected
	}
	w.ApprovedByID = &approverID
	w.ApprovedAt = &now
	if remarks != "" {
		w.Remarks = remarks
	}
}
