// handlers_chemical.go - chemical preparation records
package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/facility-logbook/backend/internal/models"
	"github.com/facility-logbook/backend/internal/store"
)

// ChemicalHandler implements the chemical preparation register.
type ChemicalHandler struct {
	st  *store.Store
	hub *Hub
	log *slog.Logger
}

// NewChemicalHandler creates a new chemical preparation handler.
func NewChemicalHandler(st *store.Store, hub *Hub, log *slog.Logger) *ChemicalHandler {
	return &ChemicalHandler{st: st, hub: hub, log: log}
}

func validateChemicalPrep(p *models.ChemicalPreparation) error {
	if p.EquipmentName == "" {
		return NewValidationError("equipmentName is required")
	}
	if p.ChemicalName == "" {
		return NewValidationError("chemicalName is required")
	}
	if p.ChemicalPercent != nil && (*p.ChemicalPercent < 0 || *p.ChemicalPercent > 100) {
		return NewValidationError("chemicalPercent must be between 0 and 100")
	}
	return nonNegativePtr(map[string]*float64{
		"solutionConcentration": p.SolutionConcentration,
		"waterQty":              p.WaterQty,
		"chemicalQty":           p.ChemicalQty,
	})
}

// HandleListChemicalPreps lists chemical preparation batches.
func (h *ChemicalHandler) HandleListChemicalPreps(c echo.Context) error {
	from, err := timeQuery(c, "from")
	if err != nil {
		return err
	}
	to, err := timeQuery(c, "to")
	if err != nil {
		return err
	}
	f := store.ChemicalFilter{
		EquipmentName: c.QueryParam("equipmentName"),
		ChemicalName:  c.QueryParam("chemicalName"),
		Status:        models.Status(c.QueryParam("status")),
		OperatorID:    c.QueryParam("operatorId"),
		From:          from,
		To:            to,
	}
	preps, total, err := h.st.Chemicals.List(c.Request().Context(), f, pageFromQuery(c))
	if err != nil {
		return NewInternalError("failed to list chemical preparations", err)
	}
	return listResponse(c, preps, total, pageFromQuery(c))
}

// HandleGetChemicalPrep returns one preparation batch.
func (h *ChemicalHandler) HandleGetChemicalPrep(c echo.Context) error {
	p, err := h.st.Chemicals.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storeError(err, "chemical preparation", c.Param("id"))
	}
	return c.JSON(http.StatusOK, p)
}

// HandleCreateChemicalPrep records a preparation batch.
func (h *ChemicalHandler) HandleCreateChemicalPrep(c echo.Context) error {
	var p models.ChemicalPreparation
	if err := c.Bind(&p); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := validateChemicalPrep(&p); err != nil {
		return err
	}
	status, err := submitStatus(p.Status)
	if err != nil {
		return err
	}

	user := currentUser(c)
	p.ID = ""
	p.Status = status
	stampOperator(&p.Workflow, user)
	resetApproval(&p.Workflow)

	if err := h.st.Chemicals.Create(c.Request().Context(), &p); err != nil {
		return storeError(err, "chemical preparation", p.EquipmentName)
	}
	notify(h.hub, MsgTypeRecordCreated, EventPayload{
		RecordType: "chemical_preparation", RecordID: p.ID, Title: p.ChemicalName,
		Status: string(p.Status), Actor: user.DisplayName(),
	})
	return c.JSON(http.StatusCreated, p)
}

// HandleUpdateChemicalPrep replaces a batch's readings.
func (h *ChemicalHandler) HandleUpdateChemicalPrep(c echo.Context) error {
	ctx := c.Request().Context()
	cur, err := h.st.Chemicals.GetByID(ctx, c.Param("id"))
	if err != nil {
		return storeError(err, "chemical preparation", c.Param("id"))
	}

	var p models.ChemicalPreparation
	if err := c.Bind(&p); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := validateChemicalPrep(&p); err != nil {
		return err
	}
	status, err := submitStatus(p.Status)
	if err != nil {
		return err
	}

	p.ID = cur.ID
	p.Status = status
	p.OperatorID = cur.OperatorID
	p.OperatorName = cur.OperatorName
	p.CreatedAt = cur.CreatedAt
	resetApproval(&p.Workflow)

	if err := h.st.Chemicals.Update(ctx, &p); err != nil {
		return storeError(err, "chemical preparation", p.ID)
	}
	notify(h.hub, MsgTypeRecordUpdated, EventPayload{
		RecordType: "chemical_preparation", RecordID: p.ID, Title: p.ChemicalName,
		Status: string(p.Status), Actor: currentUser(c).DisplayName(),
	})
	return c.JSON(http.StatusOK, p)
}

// HandleApproveChemicalPrep applies an approval decision to a batch.
func (h *ChemicalHandler) HandleApproveChemicalPrep(c echo.Context) error {
	ctx := c.Request().Context()
	p, err := h.st.Chemicals.GetByID(ctx, c.Param("id"))
	if err != nil {
		return storeError(err, "chemical preparation", c.Param("id"))
	}

	var req approvalRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	user := currentUser(c)
	approved, aerr := approveOutcome(&p.Workflow, req, user)
	if aerr != nil {
		return aerr
	}
	if err := h.st.Chemicals.Update(ctx, p); err != nil {
		return storeError(err, "chemical preparation", p.ID)
	}

	if approved {
		recordReport(ctx, h.st, h.log, &models.Report{
			ReportType:   models.ReportChemical,
			SourceID:     p.ID,
			SourceTable:  "chemical_preparations",
			Title:        fmt.Sprintf("%s for %s (%s)", p.ChemicalName, p.EquipmentName, p.CreatedAt.Format("2006-01-02")),
			CreatedBy:    p.OperatorName,
			CreatedAt:    p.CreatedAt,
			ApprovedByID: p.ApprovedByID,
			ApprovedAt:   *p.ApprovedAt,
			Remarks:      p.Remarks,
		})
	}
	notify(h.hub, eventForDecision(approved), EventPayload{
		RecordType: "chemical_preparation", RecordID: p.ID, Title: p.ChemicalName,
		Status: string(p.Status), Actor: user.DisplayName(),
	})
	return c.JSON(http.StatusOK, p)
}

// HandleDeleteChemicalPrep removes a batch and its report rows.
func (h *ChemicalHandler) HandleDeleteChemicalPrep(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	if err := h.st.Chemicals.Delete(ctx, id); err != nil {
		return storeError(err, "chemical preparation", id)
	}
	dropReports(ctx, h.st, h.log, "chemical_preparations", id)
	notify(h.hub, MsgTypeRecordDeleted, EventPayload{
		RecordType: "chemical_preparation", RecordID: id, Actor: currentUser(c).DisplayName(),
	})
	return c.NoContent(http.StatusNoContent)
}
