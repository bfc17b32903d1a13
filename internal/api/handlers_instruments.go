// handlers_instruments.go - calibrated instrument register
package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/facility-logbook/backend/internal/limits"
	"github.com/facility-logbook/backend/internal/models"
	"github.com/facility-logbook/backend/internal/store"
)

// InstrumentHandler implements the instrument register.
type InstrumentHandler struct {
	st  *store.Store
	log *slog.Logger
}

// NewInstrumentHandler creates a new instrument handler.
func NewInstrumentHandler(st *store.Store, log *slog.Logger) *InstrumentHandler {
	return &InstrumentHandler{st: st, log: log}
}

// instrumentResponse adds the derived calibration status to the
// stored register row.
type instrumentResponse struct {
	*models.Instrument
	CalibrationStatus string `json:"calibrationStatus"`
}

func instrumentView(in *models.Instrument, now time.Time) instrumentResponse {
	return instrumentResponse{Instrument: in, CalibrationStatus: in.CalibrationStatus(now)}
}

// HandleListInstruments lists instruments with derived status. The
// status filter accepts valid, expiring or expired.
func (h *InstrumentHandler) HandleListInstruments(c echo.Context) error {
	f := store.InstrumentFilter{
		SiteID: c.QueryParam("siteId"),
		Search: c.QueryParam("search"),
		Status: limits.CalStatus(c.QueryParam("status")),
	}
	if v := c.QueryParam("isActive"); v != "" {
		active := v == "true"
		f.IsActive = &active
	}

	now := time.Now()
	instruments, total, err := h.st.Instruments.List(c.Request().Context(), f, pageFromQuery(c), now)
	if err != nil {
		return NewInternalError("failed to list instruments", err)
	}

	items := make([]instrumentResponse, len(instruments))
	for i := range instruments {
		items[i] = instrumentView(&instruments[i], now)
	}
	return listResponse(c, items, total, pageFromQuery(c))
}

// HandleGetInstrument returns one instrument with derived status.
func (h *InstrumentHandler) HandleGetInstrument(c echo.Context) error {
	in, err := h.st.Instruments.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storeError(err, "instrument", c.Param("id"))
	}
	return c.JSON(http.StatusOK, instrumentView(in, time.Now()))
}

// HandleExpiringInstruments lists instruments whose calibration is due
// within the requested window (default 30 days), soonest first.
func (h *InstrumentHandler) HandleExpiringInstruments(c echo.Context) error {
	days, _ := strconv.Atoi(c.QueryParam("days"))
	if days <= 0 {
		days = 30
	}

	now := time.Now()
	due, err := h.st.Instruments.DueWithin(c.Request().Context(), now.AddDate(0, 0, days))
	if err != nil {
		return NewInternalError("failed to list expiring instruments", err)
	}

	items := make([]instrumentResponse, len(due))
	for i := range due {
		items[i] = instrumentView(&due[i], now)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"items": items,
		"total": len(items),
		"days":  days,
	})
}

type instrumentRequest struct {
	Name               string     `json:"name"`
	Make               string     `json:"make"`
	Model              string     `json:"model"`
	SerialNumber       string     `json:"serialNumber"`
	IDNumber           string     `json:"idNumber"`
	CalibrationDate    *time.Time `json:"calibrationDate"`
	CalibrationDueDate *time.Time `json:"calibrationDueDate"`
	CertificateFileID  string     `json:"certificateFileId"`
	SiteID             string     `json:"siteId"`
	IsActive           *bool      `json:"isActive"`
}

// HandleCreateInstrument registers an instrument.
func (h *InstrumentHandler) HandleCreateInstrument(c echo.Context) error {
	var req instrumentRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.Name == "" || req.SerialNumber == "" {
		return NewValidationError("name and serialNumber are required")
	}
	if req.CalibrationDate == nil || req.CalibrationDueDate == nil {
		return NewValidationError("calibrationDate and calibrationDueDate are required")
	}
	if !req.CalibrationDueDate.After(*req.CalibrationDate) {
		return NewValidationError("calibrationDueDate must be after calibrationDate")
	}

	in := &models.Instrument{
		Name:               req.Name,
		Make:               req.Make,
		Model:              req.Model,
		SerialNumber:       req.SerialNumber,
		IDNumber:           req.IDNumber,
		CalibrationDate:    *req.CalibrationDate,
		CalibrationDueDate: *req.CalibrationDueDate,
		CertificateFileID:  req.CertificateFileID,
		SiteID:             req.SiteID,
		IsActive:           true,
	}
	if req.IsActive != nil {
		in.IsActive = *req.IsActive
	}
	if err := h.st.Instruments.Create(c.Request().Context(), in); err != nil {
		return storeError(err, "instrument", req.SerialNumber)
	}

	h.log.Info("instrument created", "source", "instruments",
		"user_id", currentUser(c).ID, "instrument_id", in.ID)
	return c.JSON(http.StatusCreated, instrumentView(in, time.Now()))
}

// HandleUpdateInstrument updates a register row, typically after a
// fresh calibration.
func (h *InstrumentHandler) HandleUpdateInstrument(c echo.Context) error {
	ctx := c.Request().Context()
	in, err := h.st.Instruments.GetByID(ctx, c.Param("id"))
	if err != nil {
		return storeError(err, "instrument", c.Param("id"))
	}

	var req instrumentRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.Name != "" {
		in.Name = req.Name
	}
	if req.Make != "" {
		in.Make = req.Make
	}
	if req.Model != "" {
		in.Model = req.Model
	}
	if req.SerialNumber != "" {
		in.SerialNumber = req.SerialNumber
	}
	if req.IDNumber != "" {
		in.IDNumber = req.IDNumber
	}
	if req.CalibrationDate != nil {
		in.CalibrationDate = *req.CalibrationDate
	}
	if req.CalibrationDueDate != nil {
		in.CalibrationDueDate = *req.CalibrationDueDate
	}
	if req.CertificateFileID != "" {
		in.CertificateFileID = req.CertificateFileID
	}
	if req.SiteID != "" {
		in.SiteID = req.SiteID
	}
	if req.IsActive != nil {
		in.IsActive = *req.IsActive
	}
	if !in.CalibrationDueDate.After(in.CalibrationDate) {
		return NewValidationError("calibrationDueDate must be after calibrationDate")
	}

	if err := h.st.Instruments.Update(ctx, in); err != nil {
		return storeError(err, "instrument", in.ID)
	}
	return c.JSON(http.StatusOK, instrumentView(in, time.Now()))
}

// HandleDeleteInstrument removes an instrument from the register.
func (h *InstrumentHandler) HandleDeleteInstrument(c echo.Context) error {
	id := c.Param("id")
	if err := h.st.Instruments.Delete(c.Request().Context(), id); err != nil {
		return storeError(err, "instrument", id)
	}
	h.log.Info("instrument deleted", "source", "instruments",
		"user_id", currentUser(c).ID, "instrument_id", id)
	return c.NoContent(http.StatusNoContent)
}
