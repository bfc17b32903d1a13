// workflow.go - shared create/approve plumbing for loggable records
package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/facility-logbook/backend/internal/models"
	"github.com/facility-logbook/backend/internal/store"
)

// stampOperator overwrites the workflow's operator identity with the
// authenticated user. Client-supplied operator fields never survive.
func stampOperator(w *models.Workflow, u *models.User) {
	id := u.ID
	w.OperatorID = &id
	w.OperatorName = u.DisplayName()
}

// submitStatus normalizes the status a client may set on create or
// update. Empty means draft; approved/rejected are unreachable here.
func submitStatus(s models.Status) (models.Status, error) {
	if s == "" {
		return models.StatusDraft, nil
	}
	if !s.Submittable() {
		return "", NewValidationError("status must be draft or pending")
	}
	return s, nil
}

// resetApproval clears the approval stamps. Editing a record voids
// any earlier decision.
func resetApproval(w *models.Workflow) {
	w.ApprovedByID = nil
	w.ApprovedAt = nil
	w.Remarks = ""
}

// approveOutcome applies an approval decision to a workflow in place.
func approveOutcome(w *models.Workflow, req approvalRequest, approver *models.User) (bool, error) {
	approved, err := req.decide()
	if err != nil {
		return false, err
	}
	w.Approve(approver.ID, approved, req.Remarks, time.Now())
	return approved, nil
}

// recordReport files the report row for an approved record. A source
// edited and approved again keeps a single register row. Report
// writing is bookkeeping: a failure is logged, never surfaced.
func recordReport(ctx context.Context, st *store.Store, log *slog.Logger, r *models.Report) {
	if _, err := st.Reports.DeleteBySource(ctx, r.SourceTable, r.SourceID); err != nil {
		log.Error("failed to clear earlier report rows",
			"source", "reports", "source_table", r.SourceTable,
			"source_id", r.SourceID, "error", err)
	}
	if err := st.Reports.Create(ctx, r); err != nil {
		log.Error("failed to record report",
			"source", "reports", "report_type", string(r.ReportType),
			"source_id", r.SourceID, "error", err)
	}
}

// dropReports removes the report rows of a deleted source record.
func dropReports(ctx context.Context, st *store.Store, log *slog.Logger, table, sourceID string) {
	if _, err := st.Reports.DeleteBySource(ctx, table, sourceID); err != nil {
		log.Error("failed to drop reports for deleted record",
			"source", "reports", "source_table", table,
			"source_id", sourceID, "error", err)
	}
}

// notify broadcasts a workflow event when a hub is attached.
func notify(hub *Hub, msgType string, payload EventPayload) {
	if hub != nil {
		hub.Broadcast(msgType, payload)
	}
}

// eventForDecision picks the broadcast type for an approval outcome.
func eventForDecision(approved bool) string {
	if approved {
		return MsgTypeRecordApproved
	}
	return MsgTypeRecordRejected
}
