// handlers_hvac.go - cleanroom air-change validation records
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/facility-logbook/backend/internal/limits"
	"github.com/facility-logbook/backend/internal/models"
	"github.com/facility-logbook/backend/internal/store"
)

// HVACHandler implements the air-change validation register. The
// derived figures are always recomputed server-side; client-supplied
// averages, ACH and verdicts are ignored.
type HVACHandler struct {
	st  *store.Store
	hub *Hub
	log *slog.Logger
}

// NewHVACHandler creates a new HVAC validation handler.
func NewHVACHandler(st *store.Store, hub *Hub, log *slog.Logger) *HVACHandler {
	return &HVACHandler{st: st, hub: hub, log: log}
}

func validateHVAC(v *models.HVACValidation) error {
	if v.RoomName == "" {
		return NewValidationError("roomName is required")
	}
	if len(v.GridReadings) == 0 {
		return NewValidationError("gridReadings must hold at least one reading")
	}
	for i, r := range v.GridReadings {
		if r < 0 {
			return NewValidationError(fmt.Sprintf("gridReadings[%d] must not be negative", i))
		}
	}
	return nonNegative(map[string]float64{
		"roomVolume":  v.RoomVolume,
		"flowRateCfm": v.FlowRateCFM,
		"totalCfm":    v.TotalCFM,
		"designSpec":  v.DesignSpec,
	})
}

// computeDerived fills the airflow figures and verdict from the raw
// readings. TotalCFM falls back to the single-filter flow when the
// client did not sum multiple filters.
func computeDerived(v *models.HVACValidation) {
	v.AverageVelocity = limits.AverageVelocity(v.GridReadings)
	if v.TotalCFM == 0 {
		v.TotalCFM = v.FlowRateCFM
	}
	v.ACH = limits.ACH(v.TotalCFM, v.RoomVolume)
	v.Result = models.TestStatus(limits.CheckNLT(v.ACH, v.DesignSpec))
}

// HandleListHVACValidations lists air-change validations.
func (h *HVACHandler) HandleListHVACValidations(c echo.Context) error {
	from, err := timeQuery(c, "from")
	if err != nil {
		return err
	}
	to, err := timeQuery(c, "to")
	if err != nil {
		return err
	}
	f := store.HVACFilter{
		RoomName: c.QueryParam("roomName"),
		Result:   models.TestStatus(c.QueryParam("result")),
		Status:   models.Status(c.QueryParam("status")),
		From:     from,
		To:       to,
	}
	if raw := c.QueryParam("isoClass"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return NewValidationError("isoClass must be an integer")
		}
		f.ISOClass = n
	}
	validations, total, err := h.st.HVAC.List(c.Request().Context(), f, pageFromQuery(c))
	if err != nil {
		return NewInternalError("failed to list HVAC validations", err)
	}
	return listResponse(c, validations, total, pageFromQuery(c))
}

// HandleGetHVACValidation returns one validation.
func (h *HVACHandler) HandleGetHVACValidation(c echo.Context) error {
	v, err := h.st.HVAC.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storeError(err, "HVAC validation", c.Param("id"))
	}
	return c.JSON(http.StatusOK, v)
}

// HandleCreateHVACValidation records an air-change validation.
func (h *HVACHandler) HandleCreateHVACValidation(c echo.Context) error {
	var v models.HVACValidation
	if err := c.Bind(&v); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := validateHVAC(&v); err != nil {
		return err
	}
	status, err := submitStatus(v.Status)
	if err != nil {
		return err
	}

	user := currentUser(c)
	v.ID = ""
	v.Status = status
	computeDerived(&v)
	stampOperator(&v.Workflow, user)
	resetApproval(&v.Workflow)

	if err := h.st.HVAC.Create(c.Request().Context(), &v); err != nil {
		return storeError(err, "HVAC validation", v.RoomName)
	}
	notify(h.hub, MsgTypeRecordCreated, EventPayload{
		RecordType: "hvac_validation", RecordID: v.ID, Title: v.RoomName,
		Status: string(v.Status), Actor: user.DisplayName(),
	})
	return c.JSON(http.StatusCreated, v)
}

// HandleUpdateHVACValidation replaces a validation's readings and
// recomputes the derived figures.
func (h *HVACHandler) HandleUpdateHVACValidation(c echo.Context) error {
	ctx := c.Request().Context()
	cur, err := h.st.HVAC.GetByID(ctx, c.Param("id"))
	if err != nil {
		return storeError(err, "HVAC validation", c.Param("id"))
	}

	var v models.HVACValidation
	if err := c.Bind(&v); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := validateHVAC(&v); err != nil {
		return err
	}
	status, err := submitStatus(v.Status)
	if err != nil {
		return err
	}

	v.ID = cur.ID
	v.Status = status
	v.OperatorID = cur.OperatorID
	v.OperatorName = cur.OperatorName
	v.CreatedAt = cur.CreatedAt
	computeDerived(&v)
	resetApproval(&v.Workflow)

	if err := h.st.HVAC.Update(ctx, &v); err != nil {
		return storeError(err, "HVAC validation", v.ID)
	}
	notify(h.hub, MsgTypeRecordUpdated, EventPayload{
		RecordType: "hvac_validation", RecordID: v.ID, Title: v.RoomName,
		Status: string(v.Status), Actor: currentUser(c).DisplayName(),
	})
	return c.JSON(http.StatusOK, v)
}

// HandleApproveHVACValidation applies an approval decision.
func (h *HVACHandler) HandleApproveHVACValidation(c echo.Context) error {
	ctx := c.Request().Context()
	v, err := h.st.HVAC.GetByID(ctx, c.Param("id"))
	if err != nil {
		return storeError(err, "HVAC validation", c.Param("id"))
	}

	var req approvalRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	user := currentUser(c)
	approved, aerr := approveOutcome(&v.Workflow, req, user)
	if aerr != nil {
		return aerr
	}
	if err := h.st.HVAC.Update(ctx, v); err != nil {
		return storeError(err, "HVAC validation", v.ID)
	}

	if approved {
		recordReport(ctx, h.st, h.log, &models.Report{
			ReportType:   models.ReportValidation,
			SourceID:     v.ID,
			SourceTable:  "hvac_validations",
			Title:        fmt.Sprintf("Air validation %s (%s)", v.RoomName, v.CreatedAt.Format("2006-01-02")),
			CreatedBy:    v.OperatorName,
			CreatedAt:    v.CreatedAt,
			ApprovedByID: v.ApprovedByID,
			ApprovedAt:   *v.ApprovedAt,
			Remarks:      v.Remarks,
		})
	}
	notify(h.hub, eventForDecision(approved), EventPayload{
		RecordType: "hvac_validation", RecordID: v.ID, Title: v.RoomName,
		Status: string(v.Status), Actor: user.DisplayName(),
	})
	return c.JSON(http.StatusOK, v)
}

// HandleDeleteHVACValidation removes a validation and its report rows.
func (h *HVACHandler) HandleDeleteHVACValidation(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	if err := h.st.HVAC.Delete(ctx, id); err != nil {
		return storeError(err, "HVAC validation", id)
	}
	dropReports(ctx, h.st, h.log, "hvac_validations", id)
	notify(h.hub, MsgTypeRecordDeleted, EventPayload{
		RecordType: "hvac_validation", RecordID: id, Actor: currentUser(c).DisplayName(),
	})
	return c.NoContent(http.StatusNoContent)
}
