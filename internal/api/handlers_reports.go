// handlers_reports.go - approval register listing and archive export
package api

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/facility-logbook/backend/internal/archive"
	"github.com/facility-logbook/backend/internal/models"
	"github.com/facility-logbook/backend/internal/store"
)

// ReportHandler serves the read-only approval register and its
// MessagePack archive exports.
type ReportHandler struct {
	st         *store.Store
	archiveDir string
	log        *slog.Logger
}

// NewReportHandler creates a new report handler.
func NewReportHandler(st *store.Store, archiveDir string, log *slog.Logger) *ReportHandler {
	return &ReportHandler{st: st, archiveDir: archiveDir, log: log}
}

// reportFilterFromQuery builds the register filter. Client accounts
// are always restricted to client-visible report types.
func reportFilterFromQuery(c echo.Context) (store.ReportFilter, error) {
	from, err := timeQuery(c, "from")
	if err != nil {
		return store.ReportFilter{}, err
	}
	to, err := timeQuery(c, "to")
	if err != nil {
		return store.ReportFilter{}, err
	}

	var types []models.ReportType
	if raw := c.QueryParam("type"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			t := models.ReportType(strings.TrimSpace(part))
			if !t.Valid() {
				return store.ReportFilter{}, NewValidationError(fmt.Sprintf("unknown report type %q", part))
			}
			types = append(types, t)
		}
	}

	return store.ReportFilter{
		Types:      types,
		Site:       c.QueryParam("site"),
		Search:     c.QueryParam("search"),
		From:       from,
		To:         to,
		ClientView: currentUser(c).Role == models.RoleClient,
	}, nil
}

// HandleListReports lists the approval register.
func (h *ReportHandler) HandleListReports(c echo.Context) error {
	f, err := reportFilterFromQuery(c)
	if err != nil {
		return err
	}
	reports, total, err := h.st.Reports.List(c.Request().Context(), f, pageFromQuery(c))
	if err != nil {
		return NewInternalError("failed to list reports", err)
	}
	return listResponse(c, reports, total, pageFromQuery(c))
}

// HandleGetReport returns one register row.
func (h *ReportHandler) HandleGetReport(c echo.Context) error {
	r, err := h.st.Reports.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storeError(err, "report", c.Param("id"))
	}
	if currentUser(c).Role == models.RoleClient && !r.ReportType.ClientVisible() {
		return NewNotFoundError("report", c.Param("id"))
	}
	return c.JSON(http.StatusOK, r)
}

// HandleReportSummary returns the per-type report counts.
func (h *ReportHandler) HandleReportSummary(c echo.Context) error {
	counts, err := h.st.Reports.CountByType(c.Request().Context())
	if err != nil {
		return NewInternalError("failed to summarize reports", err)
	}
	if currentUser(c).Role == models.RoleClient {
		for t := range counts {
			if !t.ClientVisible() {
				delete(counts, t)
			}
		}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"counts": counts,
	})
}

// exportBundle assembles the archive bundle for the request's filter.
func (h *ReportHandler) exportBundle(c echo.Context) (*archive.Bundle, error) {
	f, err := reportFilterFromQuery(c)
	if err != nil {
		return nil, err
	}
	reports, err := h.st.Reports.ListAll(c.Request().Context(), f)
	if err != nil {
		return nil, NewInternalError("failed to export reports", err)
	}

	now := time.Now()
	from, to := now, now
	if f.From != nil {
		from = *f.From
	} else if len(reports) > 0 {
		from = reports[0].ApprovedAt
	}
	if f.To != nil {
		to = *f.To
	}
	return archive.NewBundle(reports, from, to, currentUser(c).DisplayName(), now), nil
}

// HandleExportReports streams the matching register rows as a
// compressed MessagePack bundle.
func (h *ReportHandler) HandleExportReports(c echo.Context) error {
	b, err := h.exportBundle(c)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := b.Encode(&buf); err != nil {
		return NewInternalError("failed to encode bundle", err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", b.Filename()))
	return c.Blob(http.StatusOK, "application/gzip", buf.Bytes())
}

// HandleArchiveReports writes the matching register rows as a bundle
// into the archive directory.
func (h *ReportHandler) HandleArchiveReports(c echo.Context) error {
	b, err := h.exportBundle(c)
	if err != nil {
		return err
	}
	info, err := archive.Write(h.archiveDir, b)
	if err != nil {
		return NewInternalError("failed to write archive bundle", err)
	}
	h.log.Info("archived reports",
		"source", "reports", "bundle", info.Name,
		"count", b.Manifest.Count, "user", currentUser(c).DisplayName())
	return c.JSON(http.StatusCreated, info)
}

// HandleListArchives lists the stored bundles, newest first.
func (h *ReportHandler) HandleListArchives(c echo.Context) error {
	infos, err := archive.List(h.archiveDir)
	if err != nil {
		return NewInternalError("failed to list archives", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"items": infos,
	})
}

// HandleDownloadArchive serves one stored bundle file.
func (h *ReportHandler) HandleDownloadArchive(c echo.Context) error {
	name := c.Param("name")
	path, err := archive.Resolve(h.archiveDir, name)
	if err != nil {
		return NewValidationError(err.Error())
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.File(path)
}
