// handlers_logbooks.go - custom logbook schemas, role assignments and
// entries
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/facility-logbook/backend/internal/models"
	"github.com/facility-logbook/backend/internal/store"
)

// LogbookHandler implements the schema-driven logbook register.
type LogbookHandler struct {
	st  *store.Store
	hub *Hub
	log *slog.Logger
}

// NewLogbookHandler creates a new logbook handler.
func NewLogbookHandler(st *store.Store, hub *Hub, log *slog.Logger) *LogbookHandler {
	return &LogbookHandler{st: st, hub: hub, log: log}
}

// schemaVisible reports whether a user may use a schema. Managers see
// everything; other roles need an assignment. A schema with no
// assignments is manager-only.
func schemaVisible(s *models.LogbookSchema, u *models.User) bool {
	if u.Role.CanManageUsers() {
		return true
	}
	for _, a := range s.RoleAssignments {
		if a.Role == u.Role {
			return true
		}
	}
	return false
}

func validateSchema(s *models.LogbookSchema) error {
	if s.Name == "" {
		return NewValidationError("name is required")
	}
	if s.Category == "" {
		s.Category = models.CategoryCustom
	}
	if !s.Category.Valid() {
		return NewValidationError("invalid category")
	}
	if len(s.Fields) == 0 {
		return NewValidationError("fields must declare at least one column")
	}
	if _, err := s.FieldDefs(); err != nil {
		return NewValidationError("invalid fields: " + err.Error())
	}
	return nil
}

// ---- schemas ----

// HandleListSchemas lists logbook schemas visible to the caller.
func (h *LogbookHandler) HandleListSchemas(c echo.Context) error {
	user := currentUser(c)
	f := store.SchemaFilter{
		Category: models.Category(c.QueryParam("category")),
		ClientID: c.QueryParam("clientId"),
		Search:   c.QueryParam("search"),
	}
	if !user.Role.CanManageUsers() {
		f.VisibleToRole = user.Role
	}
	schemas, total, err := h.st.Logbooks.ListSchemas(c.Request().Context(), f, pageFromQuery(c))
	if err != nil {
		return NewInternalError("failed to list logbook schemas", err)
	}
	return listResponse(c, schemas, total, pageFromQuery(c))
}

// HandleGetSchema returns one schema with its role assignments.
func (h *LogbookHandler) HandleGetSchema(c echo.Context) error {
	s, err := h.st.Logbooks.GetSchema(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storeError(err, "logbook schema", c.Param("id"))
	}
	if !schemaVisible(s, currentUser(c)) {
		return NewNotFoundError("logbook schema", s.ID)
	}
	return c.JSON(http.StatusOK, s)
}

// HandleCreateSchema defines a new logbook template.
func (h *LogbookHandler) HandleCreateSchema(c echo.Context) error {
	var s models.LogbookSchema
	if err := c.Bind(&s); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := validateSchema(&s); err != nil {
		return err
	}

	user := currentUser(c)
	id := user.ID
	s.ID = ""
	s.CreatedByID = &id
	s.RoleAssignments = nil

	if err := h.st.Logbooks.CreateSchema(c.Request().Context(), &s); err != nil {
		return storeError(err, "logbook schema", s.Name)
	}
	return c.JSON(http.StatusCreated, s)
}

// HandleUpdateSchema replaces a schema definition. Role assignments
// are managed through the roles endpoint and stay untouched.
func (h *LogbookHandler) HandleUpdateSchema(c echo.Context) error {
	ctx := c.Request().Context()
	cur, err := h.st.Logbooks.GetSchema(ctx, c.Param("id"))
	if err != nil {
		return storeError(err, "logbook schema", c.Param("id"))
	}

	var s models.LogbookSchema
	if err := c.Bind(&s); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := validateSchema(&s); err != nil {
		return err
	}

	s.ID = cur.ID
	s.CreatedByID = cur.CreatedByID
	s.CreatedAt = cur.CreatedAt
	s.RoleAssignments = nil

	if err := h.st.Logbooks.UpdateSchema(ctx, &s); err != nil {
		return storeError(err, "logbook schema", s.ID)
	}
	s.RoleAssignments = cur.RoleAssignments
	return c.JSON(http.StatusOK, s)
}

// HandleDeleteSchema removes a schema, its assignments and entries.
func (h *LogbookHandler) HandleDeleteSchema(c echo.Context) error {
	id := c.Param("id")
	if err := h.st.Logbooks.DeleteSchema(c.Request().Context(), id); err != nil {
		return storeError(err, "logbook schema", id)
	}
	return c.NoContent(http.StatusNoContent)
}

// ---- role assignments ----

type assignRolesRequest struct {
	Roles []models.Role `json:"roles"`
}

// HandleAssignRoles replaces a schema's whole role assignment set.
func (h *LogbookHandler) HandleAssignRoles(c echo.Context) error {
	ctx := c.Request().Context()
	s, err := h.st.Logbooks.GetSchema(ctx, c.Param("id"))
	if err != nil {
		return storeError(err, "logbook schema", c.Param("id"))
	}

	var req assignRolesRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	for _, r := range req.Roles {
		if !r.Valid() {
			return NewValidationError(fmt.Sprintf("invalid role %q", r))
		}
	}

	assignments, err := h.st.Logbooks.AssignRoles(ctx, s.ID, req.Roles, currentUser(c).ID, time.Now())
	if err != nil {
		return NewInternalError("failed to assign roles", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"schemaId": s.ID,
		"roles":    assignments,
	})
}

// HandleListRoles returns a schema's current role assignments.
func (h *LogbookHandler) HandleListRoles(c echo.Context) error {
	ctx := c.Request().Context()
	s, err := h.st.Logbooks.GetSchema(ctx, c.Param("id"))
	if err != nil {
		return storeError(err, "logbook schema", c.Param("id"))
	}
	assignments, err := h.st.Logbooks.ListAssignments(ctx, s.ID)
	if err != nil {
		return NewInternalError("failed to list role assignments", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"schemaId": s.ID,
		"roles":    assignments,
	})
}

// ---- entries ----

// HandleListEntries lists logbook entries visible to the caller.
func (h *LogbookHandler) HandleListEntries(c echo.Context) error {
	user := currentUser(c)
	from, err := timeQuery(c, "from")
	if err != nil {
		return err
	}
	to, err := timeQuery(c, "to")
	if err != nil {
		return err
	}
	f := store.EntryFilter{
		SchemaID:   c.QueryParam("schemaId"),
		SiteID:     c.QueryParam("siteId"),
		Status:     models.Status(c.QueryParam("status")),
		OperatorID: c.QueryParam("operatorId"),
		From:       from,
		To:         to,
	}
	if !user.Role.CanManageUsers() {
		f.VisibleToRole = user.Role
	}
	entries, total, err := h.st.Logbooks.ListEntries(c.Request().Context(), f, pageFromQuery(c))
	if err != nil {
		return NewInternalError("failed to list logbook entries", err)
	}
	return listResponse(c, entries, total, pageFromQuery(c))
}

// HandleGetEntry returns one entry. Visibility follows the schema's
// role assignments.
func (h *LogbookHandler) HandleGetEntry(c echo.Context) error {
	ctx := c.Request().Context()
	e, err := h.st.Logbooks.GetEntry(ctx, c.Param("id"))
	if err != nil {
		return storeError(err, "logbook entry", c.Param("id"))
	}
	s, err := h.st.Logbooks.GetSchema(ctx, e.SchemaID)
	if err != nil {
		return storeError(err, "logbook schema", e.SchemaID)
	}
	if !schemaVisible(s, currentUser(c)) {
		return NewNotFoundError("logbook entry", e.ID)
	}
	return c.JSON(http.StatusOK, e)
}

// HandleCreateEntry records an entry against a schema. The data block
// is validated against the schema's field declarations.
func (h *LogbookHandler) HandleCreateEntry(c echo.Context) error {
	ctx := c.Request().Context()
	var e models.LogbookEntry
	if err := c.Bind(&e); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if e.SchemaID == "" {
		return NewValidationError("schemaId is required")
	}

	s, err := h.st.Logbooks.GetSchema(ctx, e.SchemaID)
	if err != nil {
		return storeError(err, "logbook schema", e.SchemaID)
	}
	user := currentUser(c)
	if !schemaVisible(s, user) {
		return NewNotFoundError("logbook schema", e.SchemaID)
	}
	if err := s.ValidateData(e.Data); err != nil {
		return NewValidationError(err.Error())
	}
	status, serr := submitStatus(e.Status)
	if serr != nil {
		return serr
	}

	e.ID = ""
	e.Status = status
	if e.ClientID == "" {
		e.ClientID = s.ClientID
	}
	stampOperator(&e.Workflow, user)
	resetApproval(&e.Workflow)

	if err := h.st.Logbooks.CreateEntry(ctx, &e); err != nil {
		return storeError(err, "logbook entry", e.SchemaID)
	}
	notify(h.hub, MsgTypeRecordCreated, EventPayload{
		RecordType: "logbook_entry", RecordID: e.ID, Title: s.Name,
		Status: string(e.Status), Actor: user.DisplayName(),
	})
	return c.JSON(http.StatusCreated, e)
}

// HandleUpdateEntry replaces an entry's data block. The entry stays on
// its schema; any earlier approval is voided.
func (h *LogbookHandler) HandleUpdateEntry(c echo.Context) error {
	ctx := c.Request().Context()
	cur, err := h.st.Logbooks.GetEntry(ctx, c.Param("id"))
	if err != nil {
		return storeError(err, "logbook entry", c.Param("id"))
	}
	s, err := h.st.Logbooks.GetSchema(ctx, cur.SchemaID)
	if err != nil {
		return storeError(err, "logbook schema", cur.SchemaID)
	}
	user := currentUser(c)
	if !schemaVisible(s, user) {
		return NewNotFoundError("logbook entry", cur.ID)
	}

	var e models.LogbookEntry
	if err := c.Bind(&e); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := s.ValidateData(e.Data); err != nil {
		return NewValidationError(err.Error())
	}
	status, serr := submitStatus(e.Status)
	if serr != nil {
		return serr
	}

	e.ID = cur.ID
	e.SchemaID = cur.SchemaID
	e.ClientID = cur.ClientID
	e.Status = status
	e.OperatorID = cur.OperatorID
	e.OperatorName = cur.OperatorName
	e.CreatedAt = cur.CreatedAt
	resetApproval(&e.Workflow)

	if err := h.st.Logbooks.UpdateEntry(ctx, &e); err != nil {
		return storeError(err, "logbook entry", e.ID)
	}
	notify(h.hub, MsgTypeRecordUpdated, EventPayload{
		RecordType: "logbook_entry", RecordID: e.ID, Title: s.Name,
		Status: string(e.Status), Actor: user.DisplayName(),
	})
	return c.JSON(http.StatusOK, e)
}

// HandleApproveEntry applies an approval decision to an entry.
func (h *LogbookHandler) HandleApproveEntry(c echo.Context) error {
	ctx := c.Request().Context()
	e, err := h.st.Logbooks.GetEntry(ctx, c.Param("id"))
	if err != nil {
		return storeError(err, "logbook entry", c.Param("id"))
	}
	s, err := h.st.Logbooks.GetSchema(ctx, e.SchemaID)
	if err != nil {
		return storeError(err, "logbook schema", e.SchemaID)
	}
	user := currentUser(c)
	if !schemaVisible(s, user) {
		return NewNotFoundError("logbook entry", e.ID)
	}

	var req approvalRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	approved, aerr := approveOutcome(&e.Workflow, req, user)
	if aerr != nil {
		return aerr
	}
	if err := h.st.Logbooks.UpdateEntry(ctx, e); err != nil {
		return storeError(err, "logbook entry", e.ID)
	}

	if approved {
		recordReport(ctx, h.st, h.log, &models.Report{
			ReportType:   models.ReportLogbook,
			SourceID:     e.ID,
			SourceTable:  "logbook_entries",
			Title:        fmt.Sprintf("%s (%s)", s.Name, e.CreatedAt.Format("2006-01-02")),
			Site:         e.SiteID,
			CreatedBy:    e.OperatorName,
			CreatedAt:    e.CreatedAt,
			ApprovedByID: e.ApprovedByID,
			ApprovedAt:   *e.ApprovedAt,
			Remarks:      e.Remarks,
		})
	}
	notify(h.hub, eventForDecision(approved), EventPayload{
		RecordType: "logbook_entry", RecordID: e.ID, Title: s.Name,
		Status: string(e.Status), Actor: user.DisplayName(),
	})
	return c.JSON(http.StatusOK, e)
}

// HandleDeleteEntry removes an entry and its report rows.
func (h *LogbookHandler) HandleDeleteEntry(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	if err := h.st.Logbooks.DeleteEntry(ctx, id); err != nil {
		return storeError(err, "logbook entry", id)
	}
	dropReports(ctx, h.st, h.log, "logbook_entries", id)
	notify(h.hub, MsgTypeRecordDeleted, EventPayload{
		RecordType: "logbook_entry", RecordID: id, Actor: currentUser(c).DisplayName(),
	})
	return c.NoContent(http.StatusNoContent)
}
