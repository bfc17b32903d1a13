// handlers_test.go - Shared fixtures and end-to-end workflow tests
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"

	"github.com/facility-logbook/backend/internal/auth"
	"github.com/facility-logbook/backend/internal/models"
	"github.com/facility-logbook/backend/internal/storage"
	"github.com/facility-logbook/backend/internal/store"
)

// testEnv bundles what every handler test needs: a migrated sqlite
// store in a temp dir, a token manager and a quiet logger.
type testEnv struct {
	e   *echo.Echo
	st  *store.Store
	mgr *auth.Manager
	hub *Hub
	log *slog.Logger
	dir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	db, err := store.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler
	return &testEnv{
		e:   e,
		st:  store.New(db),
		mgr: auth.NewManager("test-secret", time.Hour, 24*time.Hour),
		hub: NewHub(log),
		log: log,
		dir: dir,
	}
}

const seedPassword = "orig-pass-1234"

// seedUser creates an active account for the role. The bcrypt cost is
// the minimum so test runs stay fast.
func (env *testEnv) seedUser(t *testing.T, role models.Role) *models.User {
	t.Helper()
	hash, err := auth.HashPassword(seedPassword, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u := &models.User{
		Email:        string(role) + "@plant.test",
		Name:         "Test " + string(role),
		Role:         role,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := env.st.Users.Create(context.Background(), u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

// jsonCtx builds an echo context carrying a JSON body and, when u is
// set, the authenticated user the middleware would have attached.
func (env *testEnv) jsonCtx(t *testing.T, method, target string, body interface{}, u *models.User) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := env.e.NewContext(req, rec)
	if u != nil {
		c.Set(userContextKey, u)
	}
	return c, rec
}

func setParamID(c echo.Context, id string) {
	c.SetParamNames("id")
	c.SetParamValues(id)
}

func apiErrCode(t *testing.T, err error) string {
	t.Helper()
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	return apiErr.Code
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t)
	operator := env.seedUser(t, models.RoleOperator)
	h := NewAuthHandler(env.st, env.mgr, env.log, 15*time.Minute)

	// 1. Login with the seeded credentials
	c, rec := env.jsonCtx(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email": operator.Email, "password": seedPassword,
	}, nil)
	var tokens tokenResponse
	if assert.NoError(t, h.HandleLogin(c)) {
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tokens))
		assert.NotEmpty(t, tokens.AccessToken)
		assert.NotEmpty(t, tokens.RefreshToken)
		assert.Equal(t, operator.Email, tokens.User.Email)
	}

	// 2. A wrong password answers the same 401 as an unknown account
	c, _ = env.jsonCtx(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email": operator.Email, "password": "wrong",
	}, nil)
	err := h.HandleLogin(c)
	if assert.Error(t, err) {
		assert.Equal(t, "UNAUTHORIZED", apiErrCode(t, err))
	}

	// 3. Refresh rotates the pair
	c, rec = env.jsonCtx(t, http.MethodPost, "/api/auth/refresh", map[string]string{
		"refreshToken": tokens.RefreshToken,
	}, nil)
	var rotated tokenResponse
	if assert.NoError(t, h.HandleRefresh(c)) {
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rotated))
		assert.NotEqual(t, tokens.RefreshToken, rotated.RefreshToken)
	}

	// 4. The rotated-out token must not work twice
	c, _ = env.jsonCtx(t, http.MethodPost, "/api/auth/refresh", map[string]string{
		"refreshToken": tokens.RefreshToken,
	}, nil)
	err = h.HandleRefresh(c)
	if assert.Error(t, err) {
		assert.Equal(t, "UNAUTHORIZED", apiErrCode(t, err))
	}

	// 5. Me returns the authenticated account
	c, rec = env.jsonCtx(t, http.MethodGet, "/api/auth/me", nil, operator)
	if assert.NoError(t, h.HandleMe(c)) {
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), operator.Email)
	}
}

func TestEquipmentWorkflow(t *testing.T) {
	env := newTestEnv(t)
	operator := env.seedUser(t, models.RoleOperator)
	supervisor := env.seedUser(t, models.RoleSupervisor)
	h := NewEquipmentHandler(env.st, nil, env.hub, env.log)
	rh := NewReportHandler(env.st, filepath.Join(env.dir, "archives"), env.log)

	// 1. Operator submits a chiller round for approval
	c, rec := env.jsonCtx(t, http.MethodPost, "/api/equipment/chiller-logs", map[string]interface{}{
		"equipmentId":       "CH-01",
		"siteId":            "plant-a",
		"chillerSupplyTemp": 6.5,
		"chillerReturnTemp": 11.8,
		"status":            "pending",
		"operatorName":      "spoofed",
	}, operator)
	var created models.ChillerLog
	if assert.NoError(t, h.HandleCreateChillerLog(c)) {
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, models.StatusPending, created.Status)
		// Operator identity comes from the session, not the payload
		assert.Equal(t, operator.DisplayName(), created.OperatorName)
	}

	// 2. Supervisor approves the round
	c, rec = env.jsonCtx(t, http.MethodPut, "/api/equipment/chiller-logs/"+created.ID+"/approve", map[string]string{
		"action": "approve", "remarks": "readings in range",
	}, supervisor)
	setParamID(c, created.ID)
	if assert.NoError(t, h.HandleApproveChillerLog(c)) {
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"approved"`)
		assert.Contains(t, rec.Body.String(), supervisor.ID)
	}

	// 3. The approval filed a report row
	c, rec = env.jsonCtx(t, http.MethodGet, "/api/reports", nil, supervisor)
	if assert.NoError(t, rh.HandleListReports(c)) {
		assert.Contains(t, rec.Body.String(), `"reportType":"utility"`)
		assert.Contains(t, rec.Body.String(), created.ID)
	}

	// 4. Editing the round voids the approval
	c, rec = env.jsonCtx(t, http.MethodPut, "/api/equipment/chiller-logs/"+created.ID, map[string]interface{}{
		"equipmentId":       "CH-01",
		"siteId":            "plant-a",
		"chillerSupplyTemp": 7.1,
		"chillerReturnTemp": 12.0,
		"status":            "pending",
	}, operator)
	setParamID(c, created.ID)
	if assert.NoError(t, h.HandleUpdateChillerLog(c)) {
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"pending"`)
		assert.Contains(t, rec.Body.String(), `"approvedById":null`)
	}

	// 5. A second approval keeps a single report row
	c, _ = env.jsonCtx(t, http.MethodPut, "/api/equipment/chiller-logs/"+created.ID+"/approve", map[string]string{
		"action": "approve",
	}, supervisor)
	setParamID(c, created.ID)
	assert.NoError(t, h.HandleApproveChillerLog(c))
	reports, total, err := env.st.Reports.List(context.Background(), store.ReportFilter{}, store.Page{})
	if assert.NoError(t, err) {
		assert.Equal(t, int64(1), total)
		assert.Len(t, reports, 1)
	}

	// 6. Deleting the round drops its report rows
	c, rec = env.jsonCtx(t, http.MethodDelete, "/api/equipment/chiller-logs/"+created.ID, nil, supervisor)
	setParamID(c, created.ID)
	if assert.NoError(t, h.HandleDeleteChillerLog(c)) {
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
	_, total, err = env.st.Reports.List(context.Background(), store.ReportFilter{}, store.Page{})
	if assert.NoError(t, err) {
		assert.Equal(t, int64(0), total)
	}
}

func TestCertificateWorkflow(t *testing.T) {
	env := newTestEnv(t)
	operator := env.seedUser(t, models.RoleOperator)
	supervisor := env.seedUser(t, models.RoleSupervisor)
	h := NewCertificateHandler(env.st, env.hub, env.log)

	// 1. Create an air velocity certificate; derived figures are
	// recomputed server-side from the grid readings.
	c, rec := env.jsonCtx(t, http.MethodPost, "/api/certificates/air-velocity", map[string]interface{}{
		"certificateNo": "AV-2026-001",
		"clientName":    "Acme Pharma",
		"ahuNumber":     "AHU-7",
		"status":        "pending",
		"rooms": []map[string]interface{}{
			{
				"roomName":      "Filling Room",
				"roomVolumeCft": 1000.0,
				"filters": []map[string]interface{}{
					{
						"filterId": "F-1", "filterArea": 4.0,
						"reading1": 90.0, "reading2": 95.0, "reading3": 100.0,
						"reading4": 105.0, "reading5": 110.0,
						"avgVelocity": 1.0, "airFlowCfm": 1.0,
					},
					{
						"filterId": "F-2", "filterArea": 2.0,
						"reading1": 80.0, "reading2": 85.0, "reading3": 90.0,
						"reading4": 95.0, "reading5": 100.0,
					},
				},
			},
		},
	}, operator)
	var cert models.AirVelocityTest
	if assert.NoError(t, h.HandleCreateAirVelocityTest(c)) {
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cert))
		if assert.Len(t, cert.Rooms, 1) && assert.Len(t, cert.Rooms[0].Filters, 2) {
			assert.InDelta(t, 100.0, cert.Rooms[0].Filters[0].AvgVelocity, 1e-9)
			assert.InDelta(t, 400.0, cert.Rooms[0].Filters[0].AirFlowCFM, 1e-9)
			assert.InDelta(t, 90.0, cert.Rooms[0].Filters[1].AvgVelocity, 1e-9)
			assert.InDelta(t, 180.0, cert.Rooms[0].Filters[1].AirFlowCFM, 1e-9)
			assert.InDelta(t, 580.0, cert.Rooms[0].TotalAirFlowCFM, 1e-9)
			assert.InDelta(t, 34.8, cert.Rooms[0].ACH, 1e-9)
		}
	}

	// 2. Approval stamps the header without touching the room tree
	c, rec = env.jsonCtx(t, http.MethodPut, "/api/certificates/air-velocity/"+cert.ID+"/approve", map[string]string{
		"action": "approve",
	}, supervisor)
	setParamID(c, cert.ID)
	if assert.NoError(t, h.HandleApproveAirVelocityTest(c)) {
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"approved"`)
	}
	c, rec = env.jsonCtx(t, http.MethodGet, "/api/certificates/air-velocity/"+cert.ID, nil, supervisor)
	setParamID(c, cert.ID)
	var after models.AirVelocityTest
	if assert.NoError(t, h.HandleGetAirVelocityTest(c)) {
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &after))
		assert.Equal(t, models.StatusApproved, after.Status)
		if assert.Len(t, after.Rooms, 1) {
			assert.Len(t, after.Rooms[0].Filters, 2)
		}
	}

	// 3. The certificate renders as a PDF
	c, rec = env.jsonCtx(t, http.MethodGet, "/api/certificates/air-velocity/"+cert.ID+"/pdf", nil, supervisor)
	setParamID(c, cert.ID)
	if assert.NoError(t, h.HandleAirVelocityTestPDF(c)) {
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/pdf", rec.Header().Get(echo.HeaderContentType))
		assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
		assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "air-velocity-AV-2026-001.pdf")
	}
}

func TestAttachmentFlow(t *testing.T) {
	env := newTestEnv(t)
	operator := env.seedUser(t, models.RoleOperator)
	files, err := storage.NewLocalStore(filepath.Join(env.dir, "uploads"), 1<<20, ".txt,.pdf")
	if err != nil {
		t.Fatalf("local store: %v", err)
	}
	h := NewFileHandler(env.st, files)

	upload := func(name, content string) (echo.Context, *httptest.ResponseRecorder) {
		body := new(bytes.Buffer)
		writer := multipart.NewWriter(body)
		part, _ := writer.CreateFormFile("file", name)
		part.Write([]byte(content))
		writer.WriteField("recordType", "chiller_log")
		writer.WriteField("recordId", "rec-1")
		writer.Close()
		req := httptest.NewRequest(http.MethodPost, "/api/files", body)
		req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
		rec := httptest.NewRecorder()
		c := env.e.NewContext(req, rec)
		c.Set(userContextKey, operator)
		return c, rec
	}

	// 1. Upload an allowed file
	c, rec := upload("calibration-notes.txt", "flow verified at 400 CFM")
	var att models.Attachment
	if assert.NoError(t, h.HandleUploadFile(c)) {
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &att))
		assert.Equal(t, "calibration-notes.txt", att.Name)
		assert.Equal(t, int64(len("flow verified at 400 CFM")), att.Size)
	}

	// 2. A disallowed extension is rejected before anything is stored
	c, _ = upload("malware.exe", "nope")
	err = h.HandleUploadFile(c)
	if assert.Error(t, err) {
		assert.Equal(t, "VALIDATION_ERROR", apiErrCode(t, err))
	}

	// 3. The attachment lists under its record
	c, rec = env.jsonCtx(t, http.MethodGet, "/api/files?recordType=chiller_log&recordId=rec-1", nil, operator)
	if assert.NoError(t, h.HandleListFiles(c)) {
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "calibration-notes.txt")
	}

	// 4. Download round-trips the bytes
	c, rec = env.jsonCtx(t, http.MethodGet, "/api/files/"+att.ID, nil, operator)
	setParamID(c, att.ID)
	if assert.NoError(t, h.HandleDownloadFile(c)) {
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "flow verified at 400 CFM", rec.Body.String())
	}

	// 5. Delete removes both the row and the blob
	path, err := files.Path(att.ID)
	assert.NoError(t, err)
	c, rec = env.jsonCtx(t, http.MethodDelete, "/api/files/"+att.ID, nil, operator)
	setParamID(c, att.ID)
	if assert.NoError(t, h.HandleDeleteFile(c)) {
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
