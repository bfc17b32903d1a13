// handlers_reports_test.go - Tests for the reports register and archive
package api

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/facility-logbook/backend/internal/archive"
	"github.com/facility-logbook/backend/internal/models"
	"github.com/facility-logbook/backend/internal/store"
)

func seedReports(t *testing.T, env *testEnv) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()
	rows := []models.Report{
		{
			ReportType: models.ReportUtility, SourceID: "src-1", SourceTable: "chiller_logs",
			Title: "Chiller log CH-01", Site: "plant-a",
			CreatedBy: "Op One", CreatedAt: now.Add(-48 * time.Hour), ApprovedAt: now.Add(-47 * time.Hour),
		},
		{
			ReportType: models.ReportChemical, SourceID: "src-2", SourceTable: "chemical_preparations",
			Title: "Caustic dosing batch 7", Site: "plant-a",
			CreatedBy: "Op Two", CreatedAt: now.Add(-24 * time.Hour), ApprovedAt: now.Add(-23 * time.Hour),
		},
		{
			ReportType: models.ReportLogbook, SourceID: "src-3", SourceTable: "logbook_entries",
			Title: "Autoclave Cycle Log", Site: "plant-b",
			CreatedBy: "Op One", CreatedAt: now.Add(-2 * time.Hour), ApprovedAt: now.Add(-time.Hour),
		},
	}
	for i := range rows {
		if err := env.st.Reports.Create(ctx, &rows[i]); err != nil {
			t.Fatalf("seed report: %v", err)
		}
	}
}

func TestReportHandler_HandleListReports(t *testing.T) {
	env := newTestEnv(t)
	manager := env.seedUser(t, models.RoleManager)
	client := env.seedUser(t, models.RoleClient)
	h := NewReportHandler(env.st, env.dir, env.log)
	seedReports(t, env)

	type listResult struct {
		Items []models.Report `json:"items"`
		Total int64           `json:"total"`
	}
	list := func(query string, u *models.User) listResult {
		t.Helper()
		c, rec := env.jsonCtx(t, http.MethodGet, "/api/reports"+query, nil, u)
		if err := h.HandleListReports(c); err != nil {
			t.Fatalf("list %q: %v", query, err)
		}
		var out listResult
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return out
	}

	if got := list("", manager); got.Total != 3 {
		t.Errorf("expected manager to see 3 reports, got %d", got.Total)
	}
	if got := list("?type=chemical", manager); got.Total != 1 {
		t.Errorf("expected 1 chemical report, got %d", got.Total)
	}
	if got := list("?type=utility,logbook", manager); got.Total != 2 {
		t.Errorf("expected 2 reports for the type pair, got %d", got.Total)
	}
	if got := list("?search=Caustic", manager); got.Total != 1 {
		t.Errorf("expected title search to match 1 report, got %d", got.Total)
	}

	// Housekeeping registers stay off the client view.
	clientView := list("", client)
	if clientView.Total != 1 {
		t.Errorf("expected client to see 1 report, got %d", clientView.Total)
	}
	for _, r := range clientView.Items {
		if !r.ReportType.ClientVisible() {
			t.Errorf("client view leaked report type %s", r.ReportType)
		}
	}

	c, _ := env.jsonCtx(t, http.MethodGet, "/api/reports?type=gossip", nil, manager)
	err := h.HandleListReports(c)
	if err == nil {
		t.Fatal("expected unknown report type to be rejected")
	}
	if code := apiErrCode(t, err); code != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR, got %s", code)
	}
}

func TestReportHandler_HandleGetReport(t *testing.T) {
	env := newTestEnv(t)
	manager := env.seedUser(t, models.RoleManager)
	client := env.seedUser(t, models.RoleClient)
	h := NewReportHandler(env.st, env.dir, env.log)
	seedReports(t, env)

	all, err := env.st.Reports.ListAll(context.Background(), store.ReportFilter{})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	var chemical models.Report
	for _, r := range all {
		if r.ReportType == models.ReportChemical {
			chemical = r
		}
	}

	c, rec := env.jsonCtx(t, http.MethodGet, "/api/reports/"+chemical.ID, nil, manager)
	setParamID(c, chemical.ID)
	if err := h.HandleGetReport(c); err != nil {
		t.Fatalf("get as manager: %v", err)
	}
	if !strings.Contains(rec.Body.String(), chemical.ID) {
		t.Error("expected report body")
	}

	// Clients get a 404, not a 403: the row's existence is private.
	c, _ = env.jsonCtx(t, http.MethodGet, "/api/reports/"+chemical.ID, nil, client)
	setParamID(c, chemical.ID)
	gerr := h.HandleGetReport(c)
	if gerr == nil {
		t.Fatal("expected client to be refused")
	}
	if code := apiErrCode(t, gerr); code != "NOT_FOUND" {
		t.Errorf("expected NOT_FOUND, got %s", code)
	}
}

func TestReportHandler_HandleReportSummary(t *testing.T) {
	env := newTestEnv(t)
	manager := env.seedUser(t, models.RoleManager)
	client := env.seedUser(t, models.RoleClient)
	h := NewReportHandler(env.st, env.dir, env.log)
	seedReports(t, env)

	c, rec := env.jsonCtx(t, http.MethodGet, "/api/reports/summary", nil, manager)
	if err := h.HandleReportSummary(c); err != nil {
		t.Fatalf("summary: %v", err)
	}
	var out struct {
		Counts map[string]int64 `json:"counts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Counts["utility"] != 1 || out.Counts["chemical"] != 1 || out.Counts["logbook"] != 1 {
		t.Errorf("unexpected counts: %v", out.Counts)
	}

	c, rec = env.jsonCtx(t, http.MethodGet, "/api/reports/summary", nil, client)
	if err := h.HandleReportSummary(c); err != nil {
		t.Fatalf("client summary: %v", err)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, leaked := out.Counts["chemical"]; leaked {
		t.Error("client summary leaked the chemical register")
	}
	if _, leaked := out.Counts["logbook"]; leaked {
		t.Error("client summary leaked the logbook register")
	}
}

func TestReportHandler_ExportAndArchive(t *testing.T) {
	env := newTestEnv(t)
	manager := env.seedUser(t, models.RoleManager)
	h := NewReportHandler(env.st, env.dir, env.log)
	seedReports(t, env)

	// 1. Export streams a gzipped msgpack bundle.
	c, rec := env.jsonCtx(t, http.MethodGet, "/api/reports/export", nil, manager)
	if err := h.HandleExportReports(c); err != nil {
		t.Fatalf("export: %v", err)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/gzip" {
		t.Errorf("expected application/gzip, got %s", got)
	}
	gz, err := gzip.NewReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	var b archive.Bundle
	if err := msgpack.NewDecoder(gz).Decode(&b); err != nil {
		t.Fatalf("decode bundle: %v", err)
	}
	if b.Manifest.Count != 3 || len(b.Reports) != 3 {
		t.Errorf("expected 3 reports in bundle, got count=%d len=%d", b.Manifest.Count, len(b.Reports))
	}
	if b.Manifest.GeneratedBy != manager.DisplayName() {
		t.Errorf("expected generator stamped, got %q", b.Manifest.GeneratedBy)
	}

	// 2. Archive writes the bundle to disk and lists it back.
	c, rec = env.jsonCtx(t, http.MethodPost, "/api/reports/archive", nil, manager)
	if err := h.HandleArchiveReports(c); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d", rec.Code)
	}
	var info archive.Info
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("unmarshal info: %v", err)
	}
	if !strings.HasPrefix(info.Name, "reports_") || !strings.HasSuffix(info.Name, ".msgpack.gz") {
		t.Errorf("unexpected bundle name %q", info.Name)
	}

	c, rec = env.jsonCtx(t, http.MethodGet, "/api/reports/archives", nil, manager)
	if err := h.HandleListArchives(c); err != nil {
		t.Fatalf("list archives: %v", err)
	}
	if !strings.Contains(rec.Body.String(), info.Name) {
		t.Errorf("expected %s in archive list", info.Name)
	}

	// 3. Stored bundles download by name; traversal is refused.
	c, rec = env.jsonCtx(t, http.MethodGet, "/api/reports/archives/"+info.Name, nil, manager)
	c.SetParamNames("name")
	c.SetParamValues(info.Name)
	if err := h.HandleDownloadArchive(c); err != nil {
		t.Fatalf("download archive: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	c, _ = env.jsonCtx(t, http.MethodGet, "/api/reports/archives/escape", nil, manager)
	c.SetParamNames("name")
	c.SetParamValues("../test.db")
	err = h.HandleDownloadArchive(c)
	if err == nil {
		t.Fatal("expected traversal to be refused")
	}
	if code := apiErrCode(t, err); code != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR, got %s", code)
	}
}
