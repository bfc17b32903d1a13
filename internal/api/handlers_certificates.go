// handlers_certificates.go - the five test certificate families.
// Creates are nested: one request carries the certificate and its
// whole room/reading tree. Derived figures and verdicts are always
// recomputed server-side before the row is written.
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/facility-logbook/backend/internal/limits"
	"github.com/facility-logbook/backend/internal/models"
	"github.com/facility-logbook/backend/internal/pdfgen"
	"github.com/facility-logbook/backend/internal/store"
)

// CertificateHandler implements the test certificate registers and
// their PDF rendering.
type CertificateHandler struct {
	st  *store.Store
	hub *Hub
	log *slog.Logger
}

// NewCertificateHandler creates a new certificate handler.
func NewCertificateHandler(st *store.Store, hub *Hub, log *slog.Logger) *CertificateHandler {
	return &CertificateHandler{st: st, hub: hub, log: log}
}

func certFilterFromQuery(c echo.Context) (store.CertFilter, error) {
	from, err := timeQuery(c, "from")
	if err != nil {
		return store.CertFilter{}, err
	}
	to, err := timeQuery(c, "to")
	if err != nil {
		return store.CertFilter{}, err
	}
	return store.CertFilter{
		CertificateNo: c.QueryParam("certificateNo"),
		ClientName:    c.QueryParam("clientName"),
		AHUNumber:     c.QueryParam("ahuNumber"),
		Status:        models.Status(c.QueryParam("status")),
		From:          from,
		To:            to,
	}, nil
}

func validateHeader(h *models.CertificateHeader) error {
	if h.CertificateNo == "" {
		return NewValidationError("certificateNo is required")
	}
	if h.ClientName == "" {
		return NewValidationError("clientName is required")
	}
	if h.Date.IsZero() {
		h.Date = time.Now()
	}
	return nil
}

// pdfFilename builds a safe attachment name from a certificate number.
func pdfFilename(prefix, certNo string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '_', r == '-':
			return r
		default:
			return '-'
		}
	}, certNo)
	return fmt.Sprintf("%s-%s.pdf", prefix, safe)
}

func servePDF(c echo.Context, name string, data []byte) error {
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, "application/pdf", data)
}

// ---- air velocity tests ----

// prepareAirVelocity validates the nested payload and recomputes each
// filter's velocity/flow and each room's total flow and ACH.
func prepareAirVelocity(t *models.AirVelocityTest) error {
	if err := validateHeader(&t.CertificateHeader); err != nil {
		return err
	}
	for ri := range t.Rooms {
		room := &t.Rooms[ri]
		if room.RoomName == "" {
			return NewValidationError("rooms[].roomName is required")
		}
		if room.RoomVolumeCFT < 0 {
			return NewValidationError("rooms[].roomVolumeCft must not be negative")
		}
		var total float64
		for fi := range room.Filters {
			f := &room.Filters[fi]
			if f.FilterArea < 0 {
				return NewValidationError("filters[].filterArea must not be negative")
			}
			for _, r := range f.Readings() {
				if r < 0 {
					return NewValidationError("filter readings must not be negative")
				}
			}
			f.AvgVelocity = limits.AverageVelocity(f.Readings())
			f.AirFlowCFM = limits.AirflowCFM(f.AvgVelocity, f.FilterArea)
			total += f.AirFlowCFM
		}
		// Rooms without filter rows keep the flow the client measured
		// by other means.
		if len(room.Filters) > 0 {
			room.TotalAirFlowCFM = total
		}
		room.ACH = limits.ACH(room.TotalAirFlowCFM, room.RoomVolumeCFT)
	}
	return nil
}

// HandleListAirVelocityTests lists air velocity certificates.
func (h *CertificateHandler) HandleListAirVelocityTests(c echo.Context) error {
	f, err := certFilterFromQuery(c)
	if err != nil {
		return err
	}
	tests, total, err := h.st.Certificates.ListAirVelocity(c.Request().Context(), f, pageFromQuery(c))
	if err != nil {
		return NewInternalError("failed to list air velocity tests", err)
	}
	return listResponse(c, tests, total, pageFromQuery(c))
}

// HandleGetAirVelocityTest returns one certificate with its rooms.
func (h *CertificateHandler) HandleGetAirVelocityTest(c echo.Context) error {
	t, err := h.st.Certificates.GetAirVelocity(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storeError(err, "air velocity test", c.Param("id"))
	}
	return c.JSON(http.StatusOK, t)
}

// HandleCreateAirVelocityTest records a certificate and its room tree.
func (h *CertificateHandler) HandleCreateAirVelocityTest(c echo.Context) error {
	var t models.AirVelocityTest
	if err := c.Bind(&t); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := prepareAirVelocity(&t); err != nil {
		return err
	}
	status, err := submitStatus(t.Status)
	if err != nil {
		return err
	}

	user := currentUser(c)
	t.ID = ""
	t.Status = status
	stampOperator(&t.Workflow, user)
	resetApproval(&t.Workflow)

	if err := h.st.Certificates.CreateAirVelocity(c.Request().Context(), &t); err != nil {
		return storeError(err, "air velocity test", t.CertificateNo)
	}
	notify(h.hub, MsgTypeRecordCreated, EventPayload{
		RecordType: "air_velocity_test", RecordID: t.ID, Title: t.CertificateNo,
		Status: string(t.Status), Actor: user.DisplayName(),
	})
	return c.JSON(http.StatusCreated, t)
}

// HandleUpdateAirVelocityTest replaces a certificate. Omitting rooms
// keeps the stored tree.
func (h *CertificateHandler) HandleUpdateAirVelocityTest(c echo.Context) error {
	ctx := c.Request().Context()
	cur, err := h.st.Certificates.GetAirVelocity(ctx, c.Param("id"))
	if err != nil {
		return storeError(err, "air velocity test", c.Param("id"))
	}

	var t models.AirVelocityTest
	if err := c.Bind(&t); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := prepareAirVelocity(&t); err != nil {
		return err
	}
	status, err := submitStatus(t.Status)
	if err != nil {
		return err
	}

	t.ID = cur.ID
	t.Status = status
	t.OperatorID = cur.OperatorID
	t.OperatorName = cur.OperatorName
	t.CreatedAt = cur.CreatedAt
	resetApproval(&t.Workflow)

	if err := h.st.Certificates.UpdateAirVelocity(ctx, &t); err != nil {
		return storeError(err, "air velocity test", t.ID)
	}
	notify(h.hub, MsgTypeRecordUpdated, EventPayload{
		RecordType: "air_velocity_test", RecordID: t.ID, Title: t.CertificateNo,
		Status: string(t.Status), Actor: currentUser(c).DisplayName(),
	})
	return c.JSON(http.StatusOK, t)
}

// HandleApproveAirVelocityTest applies an approval decision.
func (h *CertificateHandler) HandleApproveAirVelocityTest(c echo.Context) error {
	ctx := c.Request().Context()
	t, err := h.st.Certificates.GetAirVelocity(ctx, c.Param("id"))
	if err != nil {
		return storeError(err, "air velocity test", c.Param("id"))
	}

	var req approvalRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	user := currentUser(c)
	approved, aerr := approveOutcome(&t.Workflow, req, user)
	if aerr != nil {
		return aerr
	}
	// Approval only stamps the header; the room tree stays untouched.
	rooms := t.Rooms
	t.Rooms = nil
	if err := h.st.Certificates.UpdateAirVelocity(ctx, t); err != nil {
		return storeError(err, "air velocity test", t.ID)
	}
	t.Rooms = rooms

	if approved {
		recordReport(ctx, h.st, h.log, &models.Report{
			ReportType:   models.ReportAirVelocity,
			SourceID:     t.ID,
			SourceTable:  "air_velocity_tests",
			Title:        "Air velocity certificate " + t.CertificateNo,
			Site:         t.ClientName,
			CreatedBy:    t.OperatorName,
			CreatedAt:    t.CreatedAt,
			ApprovedByID: t.ApprovedByID,
			ApprovedAt:   *t.ApprovedAt,
			Remarks:      t.Remarks,
		})
	}
	notify(h.hub, eventForDecision(approved), EventPayload{
		RecordType: "air_velocity_test", RecordID: t.ID, Title: t.CertificateNo,
		Status: string(t.Status), Actor: user.DisplayName(),
	})
	return c.JSON(http.StatusOK, t)
}

// HandleDeleteAirVelocityTest removes a certificate and its tree.
func (h *CertificateHandler) HandleDeleteAirVelocityTest(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	if err := h.st.Certificates.DeleteAirVelocity(ctx, id); err != nil {
		return storeError(err, "air velocity test", id)
	}
	dropReports(ctx, h.st, h.log, "air_velocity_tests", id)
	notify(h.hub, MsgTypeRecordDeleted, EventPayload{
		RecordType: "air_velocity_test", RecordID: id, Actor: currentUser(c).DisplayName(),
	})
	return c.NoContent(http.StatusNoContent)
}

// HandleAirVelocityTestPDF renders the certificate as a PDF document.
func (h *CertificateHandler) HandleAirVelocityTestPDF(c echo.Context) error {
	t, err := h.st.Certificates.GetAirVelocity(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storeError(err, "air velocity test", c.Param("id"))
	}
	data, err := pdfgen.RenderAirVelocity(t)
	if err != nil {
		return NewInternalError("failed to render certificate", err)
	}
	return servePDF(c, pdfFilename("air-velocity", t.CertificateNo), data)
}

// ---- filter integrity tests ----

// prepareFilterIntegrity validates the nested payload and recomputes
// each reading's leakage percentage and verdict.
func prepareFilterIntegrity(t *models.FilterIntegrityTest) error {
	if err := validateHeader(&t.CertificateHeader); err != nil {
		return err
	}
	for ri := range t.Rooms {
		room := &t.Rooms[ri]
		if room.RoomName == "" {
			return NewValidationError("rooms[].roomName is required")
		}
		for i := range room.Readings {
			r := &room.Readings[i]
			if err := nonNegative(map[string]float64{
				"upstreamConcentration":   r.UpstreamConcentration,
				"aerosolConcentration":    r.AerosolConcentration,
				"downstreamConcentration": r.DownstreamConcentration,
				"acceptableLimit":         r.AcceptableLimit,
			}); err != nil {
				return err
			}
			r.DownstreamLeakage = limits.DownstreamLeakagePercent(r.DownstreamConcentration, r.UpstreamConcentration)
			r.TestStatus = models.TestStatus(limits.CheckFilterLeakage(r.DownstreamLeakage, r.AcceptableLimit))
		}
	}
	return nil
}

// HandleListFilterIntegrityTests lists filter integrity certificates.
func (h *CertificateHandler) HandleListFilterIntegrityTests(c echo.Context) error {
	f, err := certFilterFromQuery(c)
	if err != nil {
		return err
	}
	tests, total, err := h.st.Certificates.ListFilterIntegrity(c.Request().Context(), f, pageFromQuery(c))
	if err != nil {
		return NewInternalError("failed to list filter integrity tests", err)
	}
	return listResponse(c, tests, total, pageFromQuery(c))
}

// HandleGetFilterIntegrityTest returns one certificate.
func (h *CertificateHandler) HandleGetFilterIntegrityTest(c echo.Context) error {
	t, err := h.st.Certificates.GetFilterIntegrity(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storeError(err, "filter integrity test", c.Param("id"))
	}
	return c.JSON(http.StatusOK, t)
}

// HandleCreateFilterIntegrityTest records a certificate.
func (h *CertificateHandler) HandleCreateFilterIntegrityTest(c echo.Context) error {
	var t models.FilterIntegrityTest
	if err := c.Bind(&t); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := prepareFilterIntegrity(&t); err != nil {
		return err
	}
	status, err := submitStatus(t.Status)
	if err != nil {
		return err
	}

	user := currentUser(c)
	t.ID = ""
	t.Status = status
	stampOperator(&t.Workflow, user)
	resetApproval(&t.Workflow)

	if err := h.st.Certificates.CreateFilterIntegrity(c.Request().Context(), &t); err != nil {
		return storeError(err, "filter integrity test", t.CertificateNo)
	}
	notify(h.hub, MsgTypeRecordCreated, EventPayload{
		RecordType: "filter_integrity_test", RecordID: t.ID, Title: t.CertificateNo,
		Status: string(t.Status), Actor: user.DisplayName(),
	})
	return c.JSON(http.StatusCreated, t)
}

// HandleUpdateFilterIntegrityTest replaces a certificate.
func (h *CertificateHandler) HandleUpdateFilterIntegrityTest(c echo.Context) error {
	ctx := c.Request().Context()
	cur, err := h.st.Certificates.GetFilterIntegrity(ctx, c.Param("id"))
	if err != nil {
		return storeError(err, "filter integrity test", c.Param("id"))
	}

	var t models.FilterIntegrityTest
	if err := c.Bind(&t); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := prepareFilterIntegrity(&t); err != nil {
		return err
	}
	status, err := submitStatus(t.Status)
	if err != nil {
		return err
	}

	t.ID = cur.ID
	t.Status = status
	t.OperatorID = cur.OperatorID
	t.OperatorName = cur.OperatorName
	t.CreatedAt = cur.CreatedAt
	resetApproval(&t.Workflow)

	if err := h.st.Certificates.UpdateFilterIntegrity(ctx, &t); err != nil {
		return storeError(err, "filter integrity test", t.ID)
	}
	notify(h.hub, MsgTypeRecordUpdated, EventPayload{
		RecordType: "filter_integrity_test", RecordID: t.ID, Title: t.CertificateNo,
		Status: string(t.Status), Actor: currentUser(c).DisplayName(),
	})
	return c.JSON(http.StatusOK, t)
}

// HandleApproveFilterIntegrityTest applies an approval decision.
func (h *CertificateHandler) HandleApproveFilterIntegrityTest(c echo.Context) error {
	ctx := c.Request().Context()
	t, err := h.st.Certificates.GetFilterIntegrity(ctx, c.Param("id"))
	if err != nil {
		return storeError(err, "filter integrity test", c.Param("id"))
	}

	var req approvalRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	user := currentUser(c)
	approved, aerr := approveOutcome(&t.Workflow, req, user)
	if aerr != nil {
		return aerr
	}
	rooms := t.Rooms
	t.Rooms = nil
	if err := h.st.Certificates.UpdateFilterIntegrity(ctx, t); err != nil {
		return storeError(err, "filter integrity test", t.ID)
	}
	t.Rooms = rooms

	if approved {
		recordReport(ctx, h.st, h.log, &models.Report{
			ReportType:   models.ReportFilterIntegrity,
			SourceID:     t.ID,
			SourceTable:  "filter_integrity_tests",
			Title:        "Filter integrity certificate " + t.CertificateNo,
			Site:         t.ClientName,
			CreatedBy:    t.OperatorName,
			CreatedAt:    t.CreatedAt,
			ApprovedByID: t.ApprovedByID,
			ApprovedAt:   *t.ApprovedAt,
			Remarks:      t.Remarks,
		})
	}
	notify(h.hub, eventForDecision(approved), EventPayload{
		RecordType: "filter_integrity_test", RecordID: t.ID, Title: t.CertificateNo,
		Status: string(t.Status), Actor: user.DisplayName(),
	})
	return c.JSON(http.StatusOK, t)
}

// HandleDeleteFilterIntegrityTest removes a certificate and its tree.
func (h *CertificateHandler) HandleDeleteFilterIntegrityTest(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	if err := h.st.Certificates.DeleteFilterIntegrity(ctx, id); err != nil {
		return storeError(err, "filter integrity test", id)
	}
	dropReports(ctx, h.st, h.log, "filter_integrity_tests", id)
	notify(h.hub, MsgTypeRecordDeleted, EventPayload{
		RecordType: "filter_integrity_test", RecordID: id, Actor: currentUser(c).DisplayName(),
	})
	return c.NoContent(http.StatusNoContent)
}

// HandleFilterIntegrityTestPDF renders the certificate as a PDF.
func (h *CertificateHandler) HandleFilterIntegrityTestPDF(c echo.Context) error {
	t, err := h.st.Certificates.GetFilterIntegrity(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storeError(err, "filter integrity test", c.Param("id"))
	}
	data, err := pdfgen.RenderFilterIntegrity(t)
	if err != nil {
		return NewInternalError("failed to render certificate", err)
	}
	return servePDF(c, pdfFilename("filter-integrity", t.CertificateNo), data)
}

// ---- recovery tests ----

// prepareRecovery validates the payload. The pass/fail verdict stays
// client-declared: the acceptance window is contractual and is not
// stored on the record.
func prepareRecovery(t *models.RecoveryTest) error {
	if err := validateHeader(&t.CertificateHeader); err != nil {
		return err
	}
	if t.RoomName == "" {
		return NewValidationError("roomName is required")
	}
	if t.RecoveryTime < 0 {
		return NewValidationError("recoveryTime must not be negative")
	}
	if !t.TestStatus.Valid() {
		return NewValidationError("testStatus must be PASS or FAIL")
	}
	for i := range t.DataPoints {
		dp := &t.DataPoints[i]
		if !dp.AHUStatus.Valid() {
			return NewValidationError("dataPoints[].ahuStatus must be ON or OFF")
		}
		if dp.ParticleCount05 < 0 || dp.ParticleCount5 < 0 {
			return NewValidationError("particle counts must not be negative")
		}
	}
	return nil
}

// HandleListRecoveryTests lists recovery certificates.
func (h *CertificateHandler) HandleListRecoveryTests(c echo.Context) error {
	f, err := certFilterFromQuery(c)
	if err != nil {
		return err
	}
	tests, total, err := h.st.Certificates.ListRecovery(c.Request().Context(), f, pageFromQuery(c))
	if err != nil {
		return NewInternalError("failed to list recovery tests", err)
	}
	return listResponse(c, tests, total, pageFromQuery(c))
}

// HandleGetRecoveryTest returns one certificate.
func (h *CertificateHandler) HandleGetRecoveryTest(c echo.Context) error {
	t, err := h.st.Certificates.GetRecovery(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storeError(err, "recovery test", c.Param("id"))
	}
	return c.JSON(http.StatusOK, t)
}

// HandleCreateRecoveryTest records a certificate and its time series.
func (h *CertificateHandler) HandleCreateRecoveryTest(c echo.Context) error {
	var t models.RecoveryTest
	if err := c.Bind(&t); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := prepareRecovery(&t); err != nil {
		return err
	}
	status, err := submitStatus(t.Status)
	if err != nil {
		return err
	}

	user := currentUser(c)
	t.ID = ""
	t.Status = status
	stampOperator(&t.Workflow, user)
	resetApproval(&t.Workflow)

	if err := h.st.Certificates.CreateRecovery(c.Request().Context(), &t); err != nil {
		return storeError(err, "recovery test", t.CertificateNo)
	}
	notify(h.hub, MsgTypeRecordCreated, EventPayload{
		RecordType: "recovery_test", RecordID: t.ID, Title: t.CertificateNo,
		Status: string(t.Status), Actor: user.DisplayName(),
	})
	return c.JSON(http.StatusCreated, t)
}

// HandleUpdateRecoveryTest replaces a certificate. Omitting
// dataPoints keeps the stored series.
func (h *CertificateHandler) HandleUpdateRecoveryTest(c echo.Context) error {
	ctx := c.Request().Context()
	cur, err := h.st.Certificates.GetRecovery(ctx, c.Param("id"))
	if err != nil {
		return storeError(err, "recovery test", c.Param("id"))
	}

	var t models.RecoveryTest
	if err := c.Bind(&t); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := prepareRecovery(&t); err != nil {
		return err
	}
	status, err := submitStatus(t.Status)
	if err != nil {
		return err
	}

	t.ID = cur.ID
	t.Status = status
	t.OperatorID = cur.OperatorID
	t.OperatorName = cur.OperatorName
	t.CreatedAt = cur.CreatedAt
	resetApproval(&t.Workflow)

	if err := h.st.Certificates.UpdateRecovery(ctx, &t); err != nil {
		return storeError(err, "recovery test", t.ID)
	}
	notify(h.hub, MsgTypeRecordUpdated, EventPayload{
		RecordType: "recovery_test", RecordID: t.ID, Title: t.CertificateNo,
		Status: string(t.Status), Actor: currentUser(c).DisplayName(),
	})
	return c.JSON(http.StatusOK, t)
}

// HandleApproveRecoveryTest applies an approval decision.
func (h *CertificateHandler) HandleApproveRecoveryTest(c echo.Context) error {
	ctx := c.Request().Context()
	t, err := h.st.Certificates.GetRecovery(ctx, c.Param("id"))
	if err != nil {
		return storeError(err, "recovery test", c.Param("id"))
	}

	var req approvalRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	user := currentUser(c)
	approved, aerr := approveOutcome(&t.Workflow, req, user)
	if aerr != nil {
		return aerr
	}
	points := t.DataPoints
	t.DataPoints = nil
	if err := h.st.Certificates.UpdateRecovery(ctx, t); err != nil {
		return storeError(err, "recovery test", t.ID)
	}
	t.DataPoints = points

	if approved {
		recordReport(ctx, h.st, h.log, &models.Report{
			ReportType:   models.ReportRecovery,
			SourceID:     t.ID,
			SourceTable:  "recovery_tests",
			Title:        "Recovery certificate " + t.CertificateNo,
			Site:         t.ClientName,
			CreatedBy:    t.OperatorName,
			CreatedAt:    t.CreatedAt,
			ApprovedByID: t.ApprovedByID,
			ApprovedAt:   *t.ApprovedAt,
			Remarks:      t.Remarks,
		})
	}
	notify(h.hub, eventForDecision(approved), EventPayload{
		RecordType: "recovery_test", RecordID: t.ID, Title: t.CertificateNo,
		Status: string(t.Status), Actor: user.DisplayName(),
	})
	return c.JSON(http.StatusOK, t)
}

// HandleDeleteRecoveryTest removes a certificate and its series.
func (h *CertificateHandler) HandleDeleteRecoveryTest(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	if err := h.st.Certificates.DeleteRecovery(ctx, id); err != nil {
		return storeError(err, "recovery test", id)
	}
	dropReports(ctx, h.st, h.log, "recovery_tests", id)
	notify(h.hub, MsgTypeRecordDeleted, EventPayload{
		RecordType: "recovery_test", RecordID: id, Actor: currentUser(c).DisplayName(),
	})
	return c.NoContent(http.StatusNoContent)
}

// HandleRecoveryTestPDF renders the certificate as a PDF.
func (h *CertificateHandler) HandleRecoveryTestPDF(c echo.Context) error {
	t, err := h.st.Certificates.GetRecovery(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storeError(err, "recovery test", c.Param("id"))
	}
	data, err := pdfgen.RenderRecovery(t)
	if err != nil {
		return NewInternalError("failed to render certificate", err)
	}
	return servePDF(c, pdfFilename("recovery", t.CertificateNo), data)
}

// ---- differential pressure tests ----

// prepareDifferentialPressure validates the payload and recomputes the
// verdict of every reading. A negative reading means the cascade is
// reversed and simply fails against its limit.
func prepareDifferentialPressure(t *models.DifferentialPressureTest) error {
	if err := validateHeader(&t.CertificateHeader); err != nil {
		return err
	}
	for i := range t.Readings {
		r := &t.Readings[i]
		if r.RoomPositive == "" {
			return NewValidationError("readings[].roomPositive is required")
		}
		if r.Limit < 0 {
			return NewValidationError("readings[].limit must not be negative")
		}
		r.TestStatus = models.TestStatus(limits.CheckDifferentialPressure(r.DPReading, r.Limit))
	}
	return nil
}

// HandleListDifferentialPressureTests lists DP certificates.
func (h *CertificateHandler) HandleListDifferentialPressureTests(c echo.Context) error {
	f, err := certFilterFromQuery(c)
	if err != nil {
		return err
	}
	tests, total, err := h.st.Certificates.ListDifferentialPressure(c.Request().Context(), f, pageFromQuery(c))
	if err != nil {
		return NewInternalError("failed to list differential pressure tests", err)
	}
	return listResponse(c, tests, total, pageFromQuery(c))
}

// HandleGetDifferentialPressureTest returns one certificate.
func (h *CertificateHandler) HandleGetDifferentialPressureTest(c echo.Context) error {
	t, err := h.st.Certificates.GetDifferentialPressure(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storeError(err, "differential pressure test", c.Param("id"))
	}
	return c.JSON(http.StatusOK, t)
}

// HandleCreateDifferentialPressureTest records a certificate.
func (h *CertificateHandler) HandleCreateDifferentialPressureTest(c echo.Context) error {
	var t models.DifferentialPressureTest
	if err := c.Bind(&t); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := prepareDifferentialPressure(&t); err != nil {
		return err
	}
	status, err := submitStatus(t.Status)
	if err != nil {
		return err
	}

	user := currentUser(c)
	t.ID = ""
	t.Status = status
	stampOperator(&t.Workflow, user)
	resetApproval(&t.Workflow)

	if err := h.st.Certificates.CreateDifferentialPressure(c.Request().Context(), &t); err != nil {
		return storeError(err, "differential pressure test", t.CertificateNo)
	}
	notify(h.hub, MsgTypeRecordCreated, EventPayload{
		RecordType: "differential_pressure_test", RecordID: t.ID, Title: t.CertificateNo,
		Status: string(t.Status), Actor: user.DisplayName(),
	})
	return c.JSON(http.StatusCreated, t)
}

// HandleUpdateDifferentialPressureTest replaces a certificate.
func (h *CertificateHandler) HandleUpdateDifferentialPressureTest(c echo.Context) error {
	ctx := c.Request().Context()
	cur, err := h.st.Certificates.GetDifferentialPressure(ctx, c.Param("id"))
	if err != nil {
		return storeError(err, "differential pressure test", c.Param("id"))
	}

	var t models.DifferentialPressureTest
	if err := c.Bind(&t); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := prepareDifferentialPressure(&t); err != nil {
		return err
	}
	status, err := submitStatus(t.Status)
	if err != nil {
		return err
	}

	t.ID = cur.ID
	t.Status = status
	t.OperatorID = cur.OperatorID
	t.OperatorName = cur.OperatorName
	t.CreatedAt = cur.CreatedAt
	resetApproval(&t.Workflow)

	if err := h.st.Certificates.UpdateDifferentialPressure(ctx, &t); err != nil {
		return storeError(err, "differential pressure test", t.ID)
	}
	notify(h.hub, MsgTypeRecordUpdated, EventPayload{
		RecordType: "differential_pressure_test", RecordID: t.ID, Title: t.CertificateNo,
		Status: string(t.Status), Actor: currentUser(c).DisplayName(),
	})
	return c.JSON(http.StatusOK, t)
}

// HandleApproveDifferentialPressureTest applies an approval decision.
func (h *CertificateHandler) HandleApproveDifferentialPressureTest(c echo.Context) error {
	ctx := c.Request().Context()
	t, err := h.st.Certificates.GetDifferentialPressure(ctx, c.Param("id"))
	if err != nil {
		return storeError(err, "differential pressure test", c.Param("id"))
	}

	var req approvalRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	user := currentUser(c)
	approved, aerr := approveOutcome(&t.Workflow, req, user)
	if aerr != nil {
		return aerr
	}
	readings := t.Readings
	t.Readings = nil
	if err := h.st.Certificates.UpdateDifferentialPressure(ctx, t); err != nil {
		return storeError(err, "differential pressure test", t.ID)
	}
	t.Readings = readings

	if approved {
		recordReport(ctx, h.st, h.log, &models.Report{
			ReportType:   models.ReportDifferentialPressure,
			SourceID:     t.ID,
			SourceTable:  "differential_pressure_tests",
			Title:        "Differential pressure certificate " + t.CertificateNo,
			Site:         t.ClientName,
			CreatedBy:    t.OperatorName,
			CreatedAt:    t.CreatedAt,
			ApprovedByID: t.ApprovedByID,
			ApprovedAt:   *t.ApprovedAt,
			Remarks:      t.Remarks,
		})
	}
	notify(h.hub, eventForDecision(approved), EventPayload{
		RecordType: "differential_pressure_test", RecordID: t.ID, Title: t.CertificateNo,
		Status: string(t.Status), Actor: user.DisplayName(),
	})
	return c.JSON(http.StatusOK, t)
}

// HandleDeleteDifferentialPressureTest removes a certificate.
func (h *CertificateHandler) HandleDeleteDifferentialPressureTest(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	if err := h.st.Certificates.DeleteDifferentialPressure(ctx, id); err != nil {
		return storeError(err, "differential pressure test", id)
	}
	dropReports(ctx, h.st, h.log, "differential_pressure_tests", id)
	notify(h.hub, MsgTypeRecordDeleted, EventPayload{
		RecordType: "differential_pressure_test", RecordID: id, Actor: currentUser(c).DisplayName(),
	})
	return c.NoContent(http.StatusNoContent)
}

// HandleDifferentialPressureTestPDF renders the certificate as a PDF.
func (h *CertificateHandler) HandleDifferentialPressureTestPDF(c echo.Context) error {
	t, err := h.st.Certificates.GetDifferentialPressure(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storeError(err, "differential pressure test", c.Param("id"))
	}
	data, err := pdfgen.RenderDifferentialPressure(t)
	if err != nil {
		return NewInternalError("failed to render certificate", err)
	}
	return servePDF(c, pdfFilename("differential-pressure", t.CertificateNo), data)
}

// ---- NVPC tests ----

// prepareNVPC validates the payload and recomputes every sampling
// point's averages and verdict, then each room's means and status.
// Unset point limits default from the room's ISO class; rooms without
// a class fall back to ISO 8.
func prepareNVPC(t *models.NVPCTest) error {
	if err := validateHeader(&t.CertificateHeader); err != nil {
		return err
	}
	for ri := range t.Rooms {
		room := &t.Rooms[ri]
		if room.RoomName == "" {
			return NewValidationError("rooms[].roomName is required")
		}
		if len(room.SamplingPoints) == 0 {
			return NewValidationError("rooms[].samplingPoints must hold at least one point")
		}
		class := 8
		if room.ISOClass != nil {
			class = *room.ISOClass
		}
		classLimits, ok := limits.ParticleLimits(class)
		if !ok {
			return NewValidationError("isoClass must be between 5 and 8")
		}

		roomPassed := true
		var sum05, sum5 float64
		for pi := range room.SamplingPoints {
			p := &room.SamplingPoints[pi]
			for _, v := range p.Readings05 {
				if v < 0 {
					return NewValidationError("readings05 values must not be negative")
				}
			}
			for _, v := range p.Readings5 {
				if v < 0 {
					return NewValidationError("readings5 values must not be negative")
				}
			}
			if p.Limit05 < 0 || p.Limit5 < 0 {
				return NewValidationError("point limits must not be negative")
			}
			if p.Limit05 == 0 {
				p.Limit05 = classLimits.At05
			}
			if p.Limit5 == 0 {
				p.Limit5 = classLimits.At5
			}
			p.Average05 = limits.Average(p.Readings05)
			p.Average5 = limits.Average(p.Readings5)
			pass05 := limits.CheckNMT(p.Average05, p.Limit05)
			pass5 := limits.CheckNMT(p.Average5, p.Limit5)
			if pass05 == limits.Pass && pass5 == limits.Pass {
				p.TestStatus = models.TestPass
			} else {
				p.TestStatus = models.TestFail
				roomPassed = false
			}
			sum05 += p.Average05
			sum5 += p.Average5
		}

		n := float64(len(room.SamplingPoints))
		mean05 := sum05 / n
		mean5 := sum5 / n
		room.Mean05 = &mean05
		room.Mean5 = &mean5
		if roomPassed {
			room.RoomStatus = models.TestPass
		} else {
			room.RoomStatus = models.TestFail
		}
	}
	return nil
}

// HandleListNVPCTests lists particle count certificates.
func (h *CertificateHandler) HandleListNVPCTests(c echo.Context) error {
	f, err := certFilterFromQuery(c)
	if err != nil {
		return err
	}
	tests, total, err := h.st.Certificates.ListNVPC(c.Request().Context(), f, pageFromQuery(c))
	if err != nil {
		return NewInternalError("failed to list NVPC tests", err)
	}
	return listResponse(c, tests, total, pageFromQuery(c))
}

// HandleGetNVPCTest returns one certificate.
func (h *CertificateHandler) HandleGetNVPCTest(c echo.Context) error {
	t, err := h.st.Certificates.GetNVPC(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storeError(err, "NVPC test", c.Param("id"))
	}
	return c.JSON(http.StatusOK, t)
}

// HandleCreateNVPCTest records a certificate and its sampling tree.
func (h *CertificateHandler) HandleCreateNVPCTest(c echo.Context) error {
	var t models.NVPCTest
	if err := c.Bind(&t); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := prepareNVPC(&t); err != nil {
		return err
	}
	status, err := submitStatus(t.Status)
	if err != nil {
		return err
	}

	user := currentUser(c)
	t.ID = ""
	t.Status = status
	stampOperator(&t.Workflow, user)
	resetApproval(&t.Workflow)

	if err := h.st.Certificates.CreateNVPC(c.Request().Context(), &t); err != nil {
		return storeError(err, "NVPC test", t.CertificateNo)
	}
	notify(h.hub, MsgTypeRecordCreated, EventPayload{
		RecordType: "nvpc_test", RecordID: t.ID, Title: t.CertificateNo,
		Status: string(t.Status), Actor: user.DisplayName(),
	})
	return c.JSON(http.StatusCreated, t)
}

// HandleUpdateNVPCTest replaces a certificate. Omitting rooms keeps
// the stored tree.
func (h *CertificateHandler) HandleUpdateNVPCTest(c echo.Context) error {
	ctx := c.Request().Context()
	cur, err := h.st.Certificates.GetNVPC(ctx, c.Param("id"))
	if err != nil {
		return storeError(err, "NVPC test", c.Param("id"))
	}

	var t models.NVPCTest
	if err := c.Bind(&t); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := prepareNVPC(&t); err != nil {
		return err
	}
	status, err := submitStatus(t.Status)
	if err != nil {
		return err
	}

	t.ID = cur.ID
	t.Status = status
	t.OperatorID = cur.OperatorID
	t.OperatorName = cur.OperatorName
	t.CreatedAt = cur.CreatedAt
	resetApproval(&t.Workflow)

	if err := h.st.Certificates.UpdateNVPC(ctx, &t); err != nil {
		return storeError(err, "NVPC test", t.ID)
	}
	notify(h.hub, MsgTypeRecordUpdated, EventPayload{
		RecordType: "nvpc_test", RecordID: t.ID, Title: t.CertificateNo,
		Status: string(t.Status), Actor: currentUser(c).DisplayName(),
	})
	return c.JSON(http.StatusOK, t)
}

// HandleApproveNVPCTest applies an approval decision.
func (h *CertificateHandler) HandleApproveNVPCTest(c echo.Context) error {
	ctx := c.Request().Context()
	t, err := h.st.Certificates.GetNVPC(ctx, c.Param("id"))
	if err != nil {
		return storeError(err, "NVPC test", c.Param("id"))
	}

	var req approvalRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	user := currentUser(c)
	approved, aerr := approveOutcome(&t.Workflow, req, user)
	if aerr != nil {
		return aerr
	}
	rooms := t.Rooms
	t.Rooms = nil
	if err := h.st.Certificates.UpdateNVPC(ctx, t); err != nil {
		return storeError(err, "NVPC test", t.ID)
	}
	t.Rooms = rooms

	if approved {
		recordReport(ctx, h.st, h.log, &models.Report{
			ReportType:   models.ReportNVPC,
			SourceID:     t.ID,
			SourceTable:  "nvpc_tests",
			Title:        "NVPC certificate " + t.CertificateNo,
			Site:         t.ClientName,
			CreatedBy:    t.OperatorName,
			CreatedAt:    t.CreatedAt,
			ApprovedByID: t.ApprovedByID,
			ApprovedAt:   *t.ApprovedAt,
			Remarks:      t.Remarks,
		})
	}
	notify(h.hub, eventForDecision(approved), EventPayload{
		RecordType: "nvpc_test", RecordID: t.ID, Title: t.CertificateNo,
		Status: string(t.Status), Actor: user.DisplayName(),
	})
	return c.JSON(http.StatusOK, t)
}

// HandleDeleteNVPCTest removes a certificate and its tree.
func (h *CertificateHandler) HandleDeleteNVPCTest(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	if err := h.st.Certificates.DeleteNVPC(ctx, id); err != nil {
		return storeError(err, "NVPC test", id)
	}
	dropReports(ctx, h.st, h.log, "nvpc_tests", id)
	notify(h.hub, MsgTypeRecordDeleted, EventPayload{
		RecordType: "nvpc_test", RecordID: id, Actor: currentUser(c).DisplayName(),
	})
	return c.NoContent(http.StatusNoContent)
}

// HandleNVPCTestPDF renders the certificate as a PDF.
func (h *CertificateHandler) HandleNVPCTestPDF(c echo.Context) error {
	t, err := h.st.Certificates.GetNVPC(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storeError(err, "NVPC test", c.Param("id"))
	}
	data, err := pdfgen.RenderNVPC(t)
	if err != nil {
		return NewInternalError("failed to render certificate", err)
	}
	return servePDF(c, pdfFilename("nvpc", t.CertificateNo), data)
}
