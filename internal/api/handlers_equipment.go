// handlers_equipment.go - chiller, boiler, compressor and generic
// utility log endpoints
package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/facility-logbook/backend/internal/models"
	"github.com/facility-logbook/backend/internal/store"
	"github.com/facility-logbook/backend/internal/trend"
)

// EquipmentHandler implements the four equipment log registers. All
// four share the same workflow; only the reading block differs.
type EquipmentHandler struct {
	st     *store.Store
	mirror *trend.Mirror
	hub    *Hub
	log    *slog.Logger
}

// NewEquipmentHandler creates a new equipment log handler.
func NewEquipmentHandler(st *store.Store, mirror *trend.Mirror, hub *Hub, log *slog.Logger) *EquipmentHandler {
	return &EquipmentHandler{st: st, mirror: mirror, hub: hub, log: log}
}

func logFilterFromQuery(c echo.Context) (store.LogFilter, error) {
	from, err := timeQuery(c, "from")
	if err != nil {
		return store.LogFilter{}, err
	}
	to, err := timeQuery(c, "to")
	if err != nil {
		return store.LogFilter{}, err
	}
	return store.LogFilter{
		EquipmentID:   c.QueryParam("equipmentId"),
		EquipmentType: models.EquipmentType(c.QueryParam("equipmentType")),
		SiteID:        c.QueryParam("siteId"),
		Status:        models.Status(c.QueryParam("status")),
		OperatorID:    c.QueryParam("operatorId"),
		From:          from,
		To:            to,
	}, nil
}

// mirrorReadings enqueues trend samples for a new log. The mirror is
// analytics, not the system of record: failures only get logged.
func (h *EquipmentHandler) mirrorReadings(readings []trend.Reading) {
	if h.mirror == nil {
		return
	}
	h.mirror.Record(readings...)
	if err := h.mirror.LastError(); err != nil {
		h.log.Warn("trend mirror write failed", "source", "trend", "error", err)
	}
}

// ---- chiller logs ----

// HandleListChillerLogs lists chiller monitoring rounds.
func (h *EquipmentHandler) HandleListChillerLogs(c echo.Context) error {
	f, err := logFilterFromQuery(c)
	if err != nil {
		return err
	}
	logs, total, err := h.st.Equipment.ListChillers(c.Request().Context(), f, pageFromQuery(c))
	if err != nil {
		return NewInternalError("failed to list chiller logs", err)
	}
	return listResponse(c, logs, total, pageFromQuery(c))
}

// HandleGetChillerLog returns one chiller log.
func (h *EquipmentHandler) HandleGetChillerLog(c echo.Context) error {
	l, err := h.st.Equipment.GetChiller(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storeError(err, "chiller log", c.Param("id"))
	}
	return c.JSON(http.StatusOK, l)
}

func validateChillerReadings(l *models.ChillerLog) error {
	if l.EquipmentID == "" {
		return NewValidationError("equipmentId is required")
	}
	if err := nonNegative(map[string]float64{
		"chillerSupplyTemp":         l.ChillerSupplyTemp,
		"chillerReturnTemp":         l.ChillerReturnTemp,
		"coolingTowerSupplyTemp":    l.CoolingTowerSupplyTemp,
		"coolingTowerReturnTemp":    l.CoolingTowerReturnTemp,
		"chillerWaterInletPressure": l.ChillerWaterInletPressure,
	}); err != nil {
		return err
	}
	return nonNegativePtr(map[string]*float64{
		"chillerMakeupWaterFlow":       l.ChillerMakeupWaterFlow,
		"avgMotorCurrent":              l.AvgMotorCurrent,
		"compressorRunningTimeMin":     l.CompressorRunningTimeMin,
		"starterEnergyKwh":             l.StarterEnergyKWH,
		"coolingTowerBlowdownTimeMin":  l.CoolingTowerBlowdownTimeMin,
		"coolingTowerChemicalQtyPerDay": l.CoolingTowerChemicalQtyPerDay,
	})
}

// HandleCreateChillerLog records a chiller monitoring round.
func (h *EquipmentHandler) HandleCreateChillerLog(c echo.Context) error {
	var l models.ChillerLog
	if err := c.Bind(&l); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := validateChillerReadings(&l); err != nil {
		return err
	}
	status, err := submitStatus(l.Status)
	if err != nil {
		return err
	}

	user := currentUser(c)
	l.ID = ""
	l.Status = status
	stampOperator(&l.Workflow, user)
	resetApproval(&l.Workflow)

	if err := h.st.Equipment.CreateChiller(c.Request().Context(), &l); err != nil {
		return storeError(err, "chiller log", l.EquipmentID)
	}

	h.mirrorReadings(trend.FromChillerLog(&l))
	notify(h.hub, MsgTypeRecordCreated, EventPayload{
		RecordType: "chiller_log", RecordID: l.ID,
		Status: string(l.Status), Actor: user.DisplayName(),
	})
	return c.JSON(http.StatusCreated, l)
}

// HandleUpdateChillerLog replaces a round's readings. Identity and
// creation time stay; any earlier approval is voided.
func (h *EquipmentHandler) HandleUpdateChillerLog(c echo.Context) error {
	ctx := c.Request().Context()
	cur, err := h.st.Equipment.GetChiller(ctx, c.Param("id"))
	if err != nil {
		return storeError(err, "chiller log", c.Param("id"))
	}

	var l models.ChillerLog
	if err := c.Bind(&l); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := validateChillerReadings(&l); err != nil {
		return err
	}
	status, err := submitStatus(l.Status)
	if err != nil {
		return err
	}

	l.ID = cur.ID
	l.Status = status
	l.OperatorID = cur.OperatorID
	l.OperatorName = cur.OperatorName
	l.CreatedAt = cur.CreatedAt
	resetApproval(&l.Workflow)

	if err := h.st.Equipment.UpdateChiller(ctx, &l); err != nil {
		return storeError(err, "chiller log", l.ID)
	}
	notify(h.hub, MsgTypeRecordUpdated, EventPayload{
		RecordType: "chiller_log", RecordID: l.ID,
		Status: string(l.Status), Actor: currentUser(c).DisplayName(),
	})
	return c.JSON(http.StatusOK, l)
}

// HandleApproveChillerLog applies an approval decision to a round.
func (h *EquipmentHandler) HandleApproveChillerLog(c echo.Context) error {
	ctx := c.Request().Context()
	l, err := h.st.Equipment.GetChiller(ctx, c.Param("id"))
	if err != nil {
		return storeError(err, "chiller log", c.Param("id"))
	}

	var req approvalRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	user := currentUser(c)
	approved, aerr := approveOutcome(&l.Workflow, req, user)
	if aerr != nil {
		return aerr
	}
	if err := h.st.Equipment.UpdateChiller(ctx, l); err != nil {
		return storeError(err, "chiller log", l.ID)
	}

	if approved {
		recordReport(ctx, h.st, h.log, &models.Report{
			ReportType:   models.ReportUtility,
			SourceID:     l.ID,
			SourceTable:  "chiller_logs",
			Title:        fmt.Sprintf("Chiller log %s (%s)", l.EquipmentID, l.CreatedAt.Format("2006-01-02")),
			Site:         l.SiteID,
			CreatedBy:    l.OperatorName,
			CreatedAt:    l.CreatedAt,
			ApprovedByID: l.ApprovedByID,
			ApprovedAt:   *l.ApprovedAt,
			Remarks:      l.Remarks,
		})
	}
	notify(h.hub, eventForDecision(approved), EventPayload{
		RecordType: "chiller_log", RecordID: l.ID,
		Status: string(l.Status), Actor: user.DisplayName(),
	})
	return c.JSON(http.StatusOK, l)
}

// HandleDeleteChillerLog removes a round and its report rows.
func (h *EquipmentHandler) HandleDeleteChillerLog(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	if err := h.st.Equipment.DeleteChiller(ctx, id); err != nil {
		return storeError(err, "chiller log", id)
	}
	dropReports(ctx, h.st, h.log, "chiller_logs", id)
	notify(h.hub, MsgTypeRecordDeleted, EventPayload{
		RecordType: "chiller_log", RecordID: id, Actor: currentUser(c).DisplayName(),
	})
	return c.NoContent(http.StatusNoContent)
}

// ---- boiler logs ----

// HandleListBoilerLogs lists boiler monitoring rounds.
func (h *EquipmentHandler) HandleListBoilerLogs(c echo.Context) error {
	f, err := logFilterFromQuery(c)
	if err != nil {
		return err
	}
	logs, total, err := h.st.Equipment.ListBoilers(c.Request().Context(), f, pageFromQuery(c))
	if err != nil {
		return NewInternalError("failed to list boiler logs", err)
	}
	return listResponse(c, logs, total, pageFromQuery(c))
}

// HandleGetBoilerLog returns one boiler log.
func (h *EquipmentHandler) HandleGetBoilerLog(c echo.Context) error {
	l, err := h.st.Equipment.GetBoiler(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storeError(err, "boiler log", c.Param("id"))
	}
	return c.JSON(http.StatusOK, l)
}

func validateBoilerReadings(l *models.BoilerLog) error {
	if l.EquipmentID == "" {
		return NewValidationError("equipmentId is required")
	}
	if err := nonNegative(map[string]float64{
		"feedWaterTemp": l.FeedWaterTemp,
		"oilTemp":       l.OilTemp,
		"steamTemp":     l.SteamTemp,
		"steamPressure": l.SteamPressure,
	}); err != nil {
		return err
	}
	return nonNegativePtr(map[string]*float64{"steamFlowLph": l.SteamFlowLPH})
}

// HandleCreateBoilerLog records a boiler monitoring round.
func (h *EquipmentHandler) HandleCreateBoilerLog(c echo.Context) error {
	var l models.BoilerLog
	if err := c.Bind(&l); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := validateBoilerReadings(&l); err != nil {
		return err
	}
	status, err := submitStatus(l.Status)
	if err != nil {
		return err
	}

	user := currentUser(c)
	l.ID = ""
	l.Status = status
	stampOperator(&l.Workflow, user)
	resetApproval(&l.Workflow)

	if err := h.st.Equipment.CreateBoiler(c.Request().Context(), &l); err != nil {
		return storeError(err, "boiler log", l.EquipmentID)
	}

	h.mirrorReadings(trend.FromBoilerLog(&l))
	notify(h.hub, MsgTypeRecordCreated, EventPayload{
		RecordType: "boiler_log", RecordID: l.ID,
		Status: string(l.Status), Actor: user.DisplayName(),
	})
	return c.JSON(http.StatusCreated, l)
}

// HandleUpdateBoilerLog replaces a round's readings.
func (h *EquipmentHandler) HandleUpdateBoilerLog(c echo.Context) error {
	ctx := c.Request().Context()
	cur, err := h.st.Equipment.GetBoiler(ctx, c.Param("id"))
	if err != nil {
		return storeError(err, "boiler log", c.Param("id"))
	}

	var l models.BoilerLog
	if err := c.Bind(&l); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := validateBoilerReadings(&l); err != nil {
		return err
	}
	status, err := submitStatus(l.Status)
	if err != nil {
		return err
	}

	l.ID = cur.ID
	l.Status = status
	l.OperatorID = cur.OperatorID
	l.OperatorName = cur.OperatorName
	l.CreatedAt = cur.CreatedAt
	resetApproval(&l.Workflow)

	if err := h.st.Equipment.UpdateBoiler(ctx, &l); err != nil {
		return storeError(err, "boiler log", l.ID)
	}
	notify(h.hub, MsgTypeRecordUpdated, EventPayload{
		RecordType: "boiler_log", RecordID: l.ID,
		Status: string(l.Status), Actor: currentUser(c).DisplayName(),
	})
	return c.JSON(http.StatusOK, l)
}

// HandleApproveBoilerLog applies an approval decision to a round.
func (h *EquipmentHandler) HandleApproveBoilerLog(c echo.Context) error {
	ctx := c.Request().Context()
	l, err := h.st.Equipment.GetBoiler(ctx, c.Param("id"))
	if err != nil {
		return storeError(err, "boiler log", c.Param("id"))
	}

	var req approvalRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	user := currentUser(c)
	approved, aerr := approveOutcome(&l.Workflow, req, user)
	if aerr != nil {
		return aerr
	}
	if err := h.st.Equipment.UpdateBoiler(ctx, l); err != nil {
		return storeError(err, "boiler log", l.ID)
	}

	if approved {
		recordReport(ctx, h.st, h.log, &models.Report{
			ReportType:   models.ReportUtility,
			SourceID:     l.ID,
			SourceTable:  "boiler_logs",
			Title:        fmt.Sprintf("Boiler log %s (%s)", l.EquipmentID, l.CreatedAt.Format("2006-01-02")),
			Site:         l.SiteID,
			CreatedBy:    l.OperatorName,
			CreatedAt:    l.CreatedAt,
			ApprovedByID: l.ApprovedByID,
			ApprovedAt:   *l.ApprovedAt,
			Remarks:      l.Remarks,
		})
	}
	notify(h.hub, eventForDecision(approved), EventPayload{
		RecordType: "boiler_log", RecordID: l.ID,
		Status: string(l.Status), Actor: user.DisplayName(),
	})
	return c.JSON(http.StatusOK, l)
}

// HandleDeleteBoilerLog removes a round and its report rows.
func (h *EquipmentHandler) HandleDeleteBoilerLog(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	if err := h.st.Equipment.DeleteBoiler(ctx, id); err != nil {
		return storeError(err, "boiler log", id)
	}
	dropReports(ctx, h.st, h.log, "boiler_logs", id)
	notify(h.hub, MsgTypeRecordDeleted, EventPayload{
		RecordType: "boiler_log", RecordID: id, Actor: currentUser(c).DisplayName(),
	})
	return c.NoContent(http.StatusNoContent)
}

// ---- compressor logs ----

// HandleListCompressorLogs lists compressor monitoring rounds.
func (h *EquipmentHandler) HandleListCompressorLogs(c echo.Context) error {
	f, err := logFilterFromQuery(c)
	if err != nil {
		return err
	}
	logs, total, err := h.st.Equipment.ListCompressors(c.Request().Context(), f, pageFromQuery(c))
	if err != nil {
		return NewInternalError("failed to list compressor logs", err)
	}
	return listResponse(c, logs, total, pageFromQuery(c))
}

// HandleGetCompressorLog returns one compressor log.
func (h *EquipmentHandler) HandleGetCompressorLog(c echo.Context) error {
	l, err := h.st.Equipment.GetCompressor(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storeError(err, "compressor log", c.Param("id"))
	}
	return c.JSON(http.StatusOK, l)
}

func validateCompressorReadings(l *models.CompressorLog) error {
	if l.EquipmentID == "" {
		return NewValidationError("equipmentId is required")
	}
	if err := nonNegative(map[string]float64{
		"compressorSupplyTemp": l.CompressorSupplyTemp,
		"compressorReturnTemp": l.CompressorReturnTemp,
		"compressorPressure":   l.CompressorPressure,
	}); err != nil {
		return err
	}
	return nonNegativePtr(map[string]*float64{"compressorFlow": l.CompressorFlow})
}

// HandleCreateCompressorLog records a compressor monitoring round.
func (h *EquipmentHandler) HandleCreateCompressorLog(c echo.Context) error {
	var l models.CompressorLog
	if err := c.Bind(&l); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := validateCompressorReadings(&l); err != nil {
		return err
	}
	status, err := submitStatus(l.Status)
	if err != nil {
		return err
	}

	user := currentUser(c)
	l.ID = ""
	l.Status = status
	stampOperator(&l.Workflow, user)
	resetApproval(&l.Workflow)

	if err := h.st.Equipment.CreateCompressor(c.Request().Context(), &l); err != nil {
		return storeError(err, "compressor log", l.EquipmentID)
	}

	h.mirrorReadings(trend.FromCompressorLog(&l))
	notify(h.hub, MsgTypeRecordCreated, EventPayload{
		RecordType: "compressor_log", RecordID: l.ID,
		Status: string(l.Status), Actor: user.DisplayName(),
	})
	return c.JSON(http.StatusCreated, l)
}

// HandleUpdateCompressorLog replaces a round's readings.
func (h *EquipmentHandler) HandleUpdateCompressorLog(c echo.Context) error {
	ctx := c.Request().Context()
	cur, err := h.st.Equipment.GetCompressor(ctx, c.Param("id"))
	if err != nil {
		return storeError(err, "compressor log", c.Param("id"))
	}

	var l models.CompressorLog
	if err := c.Bind(&l); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := validateCompressorReadings(&l); err != nil {
		return err
	}
	status, err := submitStatus(l.Status)
	if err != nil {
		return err
	}

	l.ID = cur.ID
	l.Status = status
	l.OperatorID = cur.OperatorID
	l.OperatorName = cur.OperatorName
	l.CreatedAt = cur.CreatedAt
	resetApproval(&l.Workflow)

	if err := h.st.Equipment.UpdateCompressor(ctx, &l); err != nil {
		return storeError(err, "compressor log", l.ID)
	}
	notify(h.hub, MsgTypeRecordUpdated, EventPayload{
		RecordType: "compressor_log", RecordID: l.ID,
		Status: string(l.Status), Actor: currentUser(c).DisplayName(),
	})
	return c.JSON(http.StatusOK, l)
}

// HandleApproveCompressorLog applies an approval decision to a round.
func (h *EquipmentHandler) HandleApproveCompressorLog(c echo.Context) error {
	ctx := c.Request().Context()
	l, err := h.st.Equipment.GetCompressor(ctx, c.Param("id"))
	if err != nil {
		return storeError(err, "compressor log", c.Param("id"))
	}

	var req approvalRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	user := currentUser(c)
	approved, aerr := approveOutcome(&l.Workflow, req, user)
	if aerr != nil {
		return aerr
	}
	if err := h.st.Equipment.UpdateCompressor(ctx, l); err != nil {
		return storeError(err, "compressor log", l.ID)
	}

	if approved {
		recordReport(ctx, h.st, h.log, &models.Report{
			ReportType:   models.ReportUtility,
			SourceID:     l.ID,
			SourceTable:  "compressor_logs",
			Title:        fmt.Sprintf("Compressor log %s (%s)", l.EquipmentID, l.CreatedAt.Format("2006-01-02")),
			Site:         l.SiteID,
			CreatedBy:    l.OperatorName,
			CreatedAt:    l.CreatedAt,
			ApprovedByID: l.ApprovedByID,
			ApprovedAt:   *l.ApprovedAt,
			Remarks:      l.Remarks,
		})
	}
	notify(h.hub, eventForDecision(approved), EventPayload{
		RecordType: "compressor_log", RecordID: l.ID,
		Status: string(l.Status), Actor: user.DisplayName(),
	})
	return c.JSON(http.StatusOK, l)
}

// HandleDeleteCompressorLog removes a round and its report rows.
func (h *EquipmentHandler) HandleDeleteCompressorLog(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	if err := h.st.Equipment.DeleteCompressor(ctx, id); err != nil {
		return storeError(err, "compressor log", id)
	}
	dropReports(ctx, h.st, h.log, "compressor_logs", id)
	notify(h.hub, MsgTypeRecordDeleted, EventPayload{
		RecordType: "compressor_log", RecordID: id, Actor: currentUser(c).DisplayName(),
	})
	return c.NoContent(http.StatusNoContent)
}

// ---- generic utility logs ----

// HandleListUtilityLogs lists generic utility readings.
func (h *EquipmentHandler) HandleListUtilityLogs(c echo.Context) error {
	f, err := logFilterFromQuery(c)
	if err != nil {
		return err
	}
	logs, total, err := h.st.Equipment.ListUtilities(c.Request().Context(), f, pageFromQuery(c))
	if err != nil {
		return NewInternalError("failed to list utility logs", err)
	}
	return listResponse(c, logs, total, pageFromQuery(c))
}

// HandleGetUtilityLog returns one utility log.
func (h *EquipmentHandler) HandleGetUtilityLog(c echo.Context) error {
	l, err := h.st.Equipment.GetUtility(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storeError(err, "utility log", c.Param("id"))
	}
	return c.JSON(http.StatusOK, l)
}

func validateUtilityReadings(l *models.UtilityLog) error {
	if l.EquipmentID == "" {
		return NewValidationError("equipmentId is required")
	}
	if !l.EquipmentType.Valid() {
		return NewValidationError("equipmentType must be chiller, boiler or compressor")
	}
	if err := nonNegative(map[string]float64{
		"t1": l.T1, "t2": l.T2, "p1": l.P1, "p2": l.P2,
	}); err != nil {
		return err
	}
	return nonNegativePtr(map[string]*float64{"flowRate": l.FlowRate})
}

// HandleCreateUtilityLog records a generic utility reading.
func (h *EquipmentHandler) HandleCreateUtilityLog(c echo.Context) error {
	var l models.UtilityLog
	if err := c.Bind(&l); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := validateUtilityReadings(&l); err != nil {
		return err
	}
	status, err := submitStatus(l.Status)
	if err != nil {
		return err
	}

	user := currentUser(c)
	l.ID = ""
	l.Status = status
	stampOperator(&l.Workflow, user)
	resetApproval(&l.Workflow)

	if err := h.st.Equipment.CreateUtility(c.Request().Context(), &l); err != nil {
		return storeError(err, "utility log", l.EquipmentID)
	}

	h.mirrorReadings(trend.FromUtilityLog(&l))
	notify(h.hub, MsgTypeRecordCreated, EventPayload{
		RecordType: "utility_log", RecordID: l.ID,
		Status: string(l.Status), Actor: user.DisplayName(),
	})
	return c.JSON(http.StatusCreated, l)
}

// HandleUpdateUtilityLog replaces a reading.
func (h *EquipmentHandler) HandleUpdateUtilityLog(c echo.Context) error {
	ctx := c.Request().Context()
	cur, err := h.st.Equipment.GetUtility(ctx, c.Param("id"))
	if err != nil {
		return storeError(err, "utility log", c.Param("id"))
	}

	var l models.UtilityLog
	if err := c.Bind(&l); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := validateUtilityReadings(&l); err != nil {
		return err
	}
	status, err := submitStatus(l.Status)
	if err != nil {
		return err
	}

	l.ID = cur.ID
	l.Status = status
	l.OperatorID = cur.OperatorID
	l.OperatorName = cur.OperatorName
	l.CreatedAt = cur.CreatedAt
	resetApproval(&l.Workflow)

	if err := h.st.Equipment.UpdateUtility(ctx, &l); err != nil {
		return storeError(err, "utility log", l.ID)
	}
	notify(h.hub, MsgTypeRecordUpdated, EventPayload{
		RecordType: "utility_log", RecordID: l.ID,
		Status: string(l.Status), Actor: currentUser(c).DisplayName(),
	})
	return c.JSON(http.StatusOK, l)
}

// HandleApproveUtilityLog applies an approval decision to a reading.
func (h *EquipmentHandler) HandleApproveUtilityLog(c echo.Context) error {
	ctx := c.Request().Context()
	l, err := h.st.Equipment.GetUtility(ctx, c.Param("id"))
	if err != nil {
		return storeError(err, "utility log", c.Param("id"))
	}

	var req approvalRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	user := currentUser(c)
	approved, aerr := approveOutcome(&l.Workflow, req, user)
	if aerr != nil {
		return aerr
	}
	if err := h.st.Equipment.UpdateUtility(ctx, l); err != nil {
		return storeError(err, "utility log", l.ID)
	}

	if approved {
		recordReport(ctx, h.st, h.log, &models.Report{
			ReportType:   models.ReportUtility,
			SourceID:     l.ID,
			SourceTable:  "utility_logs",
			Title:        fmt.Sprintf("%s log %s (%s)", l.EquipmentType, l.EquipmentID, l.CreatedAt.Format("2006-01-02")),
			Site:         l.SiteID,
			CreatedBy:    l.OperatorName,
			CreatedAt:    l.CreatedAt,
			ApprovedByID: l.ApprovedByID,
			ApprovedAt:   *l.ApprovedAt,
			Remarks:      l.Remarks,
		})
	}
	notify(h.hub, eventForDecision(approved), EventPayload{
		RecordType: "utility_log", RecordID: l.ID,
		Status: string(l.Status), Actor: user.DisplayName(),
	})
	return c.JSON(http.StatusOK, l)
}

// HandleDeleteUtilityLog removes a reading and its report rows.
func (h *EquipmentHandler) HandleDeleteUtilityLog(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	if err := h.st.Equipment.DeleteUtility(ctx, id); err != nil {
		return storeError(err, "utility log", id)
	}
	dropReports(ctx, h.st, h.log, "utility_logs", id)
	notify(h.hub, MsgTypeRecordDeleted, EventPayload{
		RecordType: "utility_log", RecordID: id, Actor: currentUser(c).DisplayName(),
	})
	return c.NoContent(http.StatusNoContent)
}
