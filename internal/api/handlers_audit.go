// handlers_audit.go - read access to the audit trail
package api

import (
	"github.com/labstack/echo/v4"

	"github.com/facility-logbook/backend/internal/store"
)

// AuditHandler lists the persistent audit trail. Writes happen in the
// logging pipeline; this is query-only.
type AuditHandler struct {
	st *store.Store
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(st *store.Store) *AuditHandler {
	return &AuditHandler{st: st}
}

// HandleListAudit lists audit records, newest first.
func (h *AuditHandler) HandleListAudit(c echo.Context) error {
	from, err := timeQuery(c, "from")
	if err != nil {
		return err
	}
	to, err := timeQuery(c, "to")
	if err != nil {
		return err
	}
	f := store.AuditFilter{
		Level:  c.QueryParam("level"),
		Source: c.QueryParam("source"),
		UserID: c.QueryParam("userId"),
		Search: c.QueryParam("search"),
		From:   from,
		To:     to,
	}
	records, total, err := h.st.Audit.List(c.Request().Context(), f, pageFromQuery(c))
	if err != nil {
		return NewInternalError("failed to list audit records", err)
	}
	return listResponse(c, records, total, pageFromQuery(c))
}
