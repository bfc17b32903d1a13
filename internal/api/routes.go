// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"log/slog"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/facility-logbook/backend/internal/auth"
	"github.com/facility-logbook/backend/internal/config"
	"github.com/facility-logbook/backend/internal/models"
	"github.com/facility-logbook/backend/internal/storage"
	"github.com/facility-logbook/backend/internal/store"
	"github.com/facility-logbook/backend/internal/trend"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store      *store.Store
	Auth       *auth.Manager
	Mirror     *trend.Mirror
	Files      storage.Store
	Hub        *Hub
	Log        *slog.Logger
	ArchiveDir string
	ResetTTL   time.Duration
	Version    string
}

// Handlers holds all handler instances
type Handlers struct {
	Health       *HealthHandler
	Auth         *AuthHandler
	Users        *UserHandler
	Sites        *SiteHandler
	Instruments  *InstrumentHandler
	Logbooks     *LogbookHandler
	Equipment    *EquipmentHandler
	Chemicals    *ChemicalHandler
	HVAC         *HVACHandler
	Certificates *CertificateHandler
	Reports      *ReportHandler
	Trends       *TrendHandler
	Audit        *AuditHandler
	Files        *FileHandler
	Hub          *Hub
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:       NewHealthHandler(deps.Version),
		Auth:         NewAuthHandler(deps.Store, deps.Auth, deps.Log, deps.ResetTTL),
		Users:        NewUserHandler(deps.Store, deps.Auth, deps.Log),
		Sites:        NewSiteHandler(deps.Store, deps.Log),
		Instruments:  NewInstrumentHandler(deps.Store, deps.Log),
		Logbooks:     NewLogbookHandler(deps.Store, deps.Hub, deps.Log),
		Equipment:    NewEquipmentHandler(deps.Store, deps.Mirror, deps.Hub, deps.Log),
		Chemicals:    NewChemicalHandler(deps.Store, deps.Hub, deps.Log),
		HVAC:         NewHVACHandler(deps.Store, deps.Hub, deps.Log),
		Certificates: NewCertificateHandler(deps.Store, deps.Hub, deps.Log),
		Reports:      NewReportHandler(deps.Store, deps.ArchiveDir, deps.Log),
		Trends:       NewTrendHandler(deps.Mirror),
		Audit:        NewAuditHandler(deps.Store),
		Files:        NewFileHandler(deps.Store, deps.Files),
		Hub:          deps.Hub,
	}
}

// RegisterRoutes registers all API routes with the Echo instance.
// Everything except health and the auth entry points sits behind
// bearer authentication; finer role gates are applied per route.
func RegisterRoutes(e *echo.Echo, deps *Dependencies, h *Handlers) {
	adminOnly := RequireRoles(models.RoleSuperAdmin, models.RoleManager)

	// Health check
	e.GET("/api/health", h.Health.HandleHealth)

	// Auth entry points (no token yet)
	authGroup := e.Group("/api/auth")
	authGroup.POST("/login", h.Auth.HandleLogin)
	authGroup.POST("/refresh", h.Auth.HandleRefresh)
	authGroup.POST("/logout", h.Auth.HandleLogout)
	authGroup.POST("/forgot-password", h.Auth.HandleForgotPassword)
	authGroup.POST("/validate-reset-token", h.Auth.HandleValidateResetToken)
	authGroup.POST("/reset-password", h.Auth.HandleResetPassword)

	api := e.Group("/api", RequireAuth(deps.Auth, deps.Store))

	// Session introspection
	api.GET("/auth/me", h.Auth.HandleMe)
	api.POST("/auth/change-password", h.Auth.HandleChangePassword)

	// Account administration
	users := api.Group("/users", RequireUserAdmin())
	users.GET("", h.Users.HandleListUsers)
	users.POST("", h.Users.HandleCreateUser)
	users.GET("/:id", h.Users.HandleGetUser)
	users.PUT("/:id", h.Users.HandleUpdateUser)
	users.DELETE("/:id", h.Users.HandleDeleteUser)
	users.POST("/:id/restore", h.Users.HandleRestoreUser)

	// Site register
	api.GET("/sites", h.Sites.HandleListSites)
	api.GET("/sites/:id", h.Sites.HandleGetSite)
	api.POST("/sites", h.Sites.HandleCreateSite, adminOnly)
	api.PUT("/sites/:id", h.Sites.HandleUpdateSite, adminOnly)
	api.DELETE("/sites/:id", h.Sites.HandleDeleteSite, adminOnly)

	// Instrument register
	api.GET("/instruments", h.Instruments.HandleListInstruments)
	api.GET("/instruments/expiring", h.Instruments.HandleExpiringInstruments)
	api.GET("/instruments/:id", h.Instruments.HandleGetInstrument)
	api.POST("/instruments", h.Instruments.HandleCreateInstrument, adminOnly)
	api.PUT("/instruments/:id", h.Instruments.HandleUpdateInstrument, adminOnly)
	api.DELETE("/instruments/:id", h.Instruments.HandleDeleteInstrument, adminOnly)

	// Custom logbook schemas and entries
	logbooks := api.Group("/logbooks")
	logbooks.GET("/schemas", h.Logbooks.HandleListSchemas)
	logbooks.GET("/schemas/:id", h.Logbooks.HandleGetSchema)
	logbooks.POST("/schemas", h.Logbooks.HandleCreateSchema, adminOnly)
	logbooks.PUT("/schemas/:id", h.Logbooks.HandleUpdateSchema, adminOnly)
	logbooks.DELETE("/schemas/:id", h.Logbooks.HandleDeleteSchema, adminOnly)
	logbooks.POST("/schemas/:id/roles", h.Logbooks.HandleAssignRoles, adminOnly)
	logbooks.GET("/schemas/:id/roles", h.Logbooks.HandleListRoles)
	logbooks.GET("/entries", h.Logbooks.HandleListEntries)
	logbooks.GET("/entries/:id", h.Logbooks.HandleGetEntry)
	logbooks.POST("/entries", h.Logbooks.HandleCreateEntry, RequireRecorder())
	logbooks.PUT("/entries/:id", h.Logbooks.HandleUpdateEntry, RequireRecorder())
	logbooks.POST("/entries/:id/approve", h.Logbooks.HandleApproveEntry, RequireApprover())
	logbooks.DELETE("/entries/:id", h.Logbooks.HandleDeleteEntry, adminOnly)

	// Equipment logs
	api.GET("/chiller-logs", h.Equipment.HandleListChillerLogs)
	api.GET("/chiller-logs/:id", h.Equipment.HandleGetChillerLog)
	api.POST("/chiller-logs", h.Equipment.HandleCreateChillerLog, RequireRecorder())
	api.PUT("/chiller-logs/:id", h.Equipment.HandleUpdateChillerLog, RequireRecorder())
	api.POST("/chiller-logs/:id/approve", h.Equipment.HandleApproveChillerLog, RequireApprover())
	api.DELETE("/chiller-logs/:id", h.Equipment.HandleDeleteChillerLog, adminOnly)

	api.GET("/boiler-logs", h.Equipment.HandleListBoilerLogs)
	api.GET("/boiler-logs/:id", h.Equipment.HandleGetBoilerLog)
	api.POST("/boiler-logs", h.Equipment.HandleCreateBoilerLog, RequireRecorder())
	api.PUT("/boiler-logs/:id", h.Equipment.HandleUpdateBoilerLog, RequireRecorder())
	api.POST("/boiler-logs/:id/approve", h.Equipment.HandleApproveBoilerLog, RequireApprover())
	api.DELETE("/boiler-logs/:id", h.Equipment.HandleDeleteBoilerLog, adminOnly)

	api.GET("/compressor-logs", h.Equipment.HandleListCompressorLogs)
	api.GET("/compressor-logs/:id", h.Equipment.HandleGetCompressorLog)
	api.POST("/compressor-logs", h.Equipment.HandleCreateCompressorLog, RequireRecorder())
	api.PUT("/compressor-logs/:id", h.Equipment.HandleUpdateCompressorLog, RequireRecorder())
	api.POST("/compressor-logs/:id/approve", h.Equipment.HandleApproveCompressorLog, RequireApprover())
	api.DELETE("/compressor-logs/:id", h.Equipment.HandleDeleteCompressorLog, adminOnly)

	api.GET("/utility-logs", h.Equipment.HandleListUtilityLogs)
	api.GET("/utility-logs/:id", h.Equipment.HandleGetUtilityLog)
	api.POST("/utility-logs", h.Equipment.HandleCreateUtilityLog, RequireRecorder())
	api.PUT("/utility-logs/:id", h.Equipment.HandleUpdateUtilityLog, RequireRecorder())
	api.POST("/utility-logs/:id/approve", h.Equipment.HandleApproveUtilityLog, RequireApprover())
	api.DELETE("/utility-logs/:id", h.Equipment.HandleDeleteUtilityLog, adminOnly)

	// Chemical preparation register
	api.GET("/chemical-preps", h.Chemicals.HandleListChemicalPreps)
	api.GET("/chemical-preps/:id", h.Chemicals.HandleGetChemicalPrep)
	api.POST("/chemical-preps", h.Chemicals.HandleCreateChemicalPrep, RequireRecorder())
	api.PUT("/chemical-preps/:id", h.Chemicals.HandleUpdateChemicalPrep, RequireRecorder())
	api.POST("/chemical-preps/:id/approve", h.Chemicals.HandleApproveChemicalPrep, RequireApprover())
	api.DELETE("/chemical-preps/:id", h.Chemicals.HandleDeleteChemicalPrep, adminOnly)

	// HVAC air validation register
	api.GET("/hvac-validations", h.HVAC.HandleListHVACValidations)
	api.GET("/hvac-validations/:id", h.HVAC.HandleGetHVACValidation)
	api.POST("/hvac-validations", h.HVAC.HandleCreateHVACValidation, RequireRecorder())
	api.PUT("/hvac-validations/:id", h.HVAC.HandleUpdateHVACValidation, RequireRecorder())
	api.POST("/hvac-validations/:id/approve", h.HVAC.HandleApproveHVACValidation, RequireApprover())
	api.DELETE("/hvac-validations/:id", h.HVAC.HandleDeleteHVACValidation, adminOnly)

	// Test certificates
	api.GET("/air-velocity-tests", h.Certificates.HandleListAirVelocityTests)
	api.GET("/air-velocity-tests/:id", h.Certificates.HandleGetAirVelocityTest)
	api.GET("/air-velocity-tests/:id/pdf", h.Certificates.HandleAirVelocityTestPDF)
	api.POST("/air-velocity-tests", h.Certificates.HandleCreateAirVelocityTest, RequireRecorder())
	api.PUT("/air-velocity-tests/:id", h.Certificates.HandleUpdateAirVelocityTest, RequireRecorder())
	api.POST("/air-velocity-tests/:id/approve", h.Certificates.HandleApproveAirVelocityTest, RequireApprover())
	api.DELETE("/air-velocity-tests/:id", h.Certificates.HandleDeleteAirVelocityTest, adminOnly)

	api.GET("/filter-integrity-tests", h.Certificates.HandleListFilterIntegrityTests)
	api.GET("/filter-integrity-tests/:id", h.Certificates.HandleGetFilterIntegrityTest)
	api.GET("/filter-integrity-tests/:id/pdf", h.Certificates.HandleFilterIntegrityTestPDF)
	api.POST("/filter-integrity-tests", h.Certificates.HandleCreateFilterIntegrityTest, RequireRecorder())
	api.PUT("/filter-integrity-tests/:id", h.Certificates.HandleUpdateFilterIntegrityTest, RequireRecorder())
	api.POST("/filter-integrity-tests/:id/approve", h.Certificates.HandleApproveFilterIntegrityTest, RequireApprover())
	api.DELETE("/filter-integrity-tests/:id", h.Certificates.HandleDeleteFilterIntegrityTest, adminOnly)

	api.GET("/recovery-tests", h.Certificates.HandleListRecoveryTests)
	api.GET("/recovery-tests/:id", h.Certificates.HandleGetRecoveryTest)
	api.GET("/recovery-tests/:id/pdf", h.Certificates.HandleRecoveryTestPDF)
	api.POST("/recovery-tests", h.Certificates.HandleCreateRecoveryTest, RequireRecorder())
	api.PUT("/recovery-tests/:id", h.Certificates.HandleUpdateRecoveryTest, RequireRecorder())
	api.POST("/recovery-tests/:id/approve", h.Certificates.HandleApproveRecoveryTest, RequireApprover())
	api.DELETE("/recovery-tests/:id", h.Certificates.HandleDeleteRecoveryTest, adminOnly)

	api.GET("/differential-pressure-tests", h.Certificates.HandleListDifferentialPressureTests)
	api.GET("/differential-pressure-tests/:id", h.Certificates.HandleGetDifferentialPressureTest)
	api.GET("/differential-pressure-tests/:id/pdf", h.Certificates.HandleDifferentialPressureTestPDF)
	api.POST("/differential-pressure-tests", h.Certificates.HandleCreateDifferentialPressureTest, RequireRecorder())
	api.PUT("/differential-pressure-tests/:id", h.Certificates.HandleUpdateDifferentialPressureTest, RequireRecorder())
	api.POST("/differential-pressure-tests/:id/approve", h.Certificates.HandleApproveDifferentialPressureTest, RequireApprover())
	api.DELETE("/differential-pressure-tests/:id", h.Certificates.HandleDeleteDifferentialPressureTest, adminOnly)

	api.GET("/nvpc-tests", h.Certificates.HandleListNVPCTests)
	api.GET("/nvpc-tests/:id", h.Certificates.HandleGetNVPCTest)
	api.GET("/nvpc-tests/:id/pdf", h.Certificates.HandleNVPCTestPDF)
	api.POST("/nvpc-tests", h.Certificates.HandleCreateNVPCTest, RequireRecorder())
	api.PUT("/nvpc-tests/:id", h.Certificates.HandleUpdateNVPCTest, RequireRecorder())
	api.POST("/nvpc-tests/:id/approve", h.Certificates.HandleApproveNVPCTest, RequireApprover())
	api.DELETE("/nvpc-tests/:id", h.Certificates.HandleDeleteNVPCTest, adminOnly)

	// Approval register and archive export
	api.GET("/reports", h.Reports.HandleListReports)
	api.GET("/reports/summary", h.Reports.HandleReportSummary)
	api.GET("/reports/export", h.Reports.HandleExportReports, adminOnly)
	api.POST("/reports/archive", h.Reports.HandleArchiveReports, adminOnly)
	api.GET("/reports/archives", h.Reports.HandleListArchives, adminOnly)
	api.GET("/reports/archives/:name", h.Reports.HandleDownloadArchive, adminOnly)
	api.GET("/reports/:id", h.Reports.HandleGetReport)

	// Reading mirror queries
	api.GET("/trends/equipment", h.Trends.HandleListTrendEquipment)
	api.GET("/trends/summary", h.Trends.HandleTrendSummary)
	api.GET("/trends/:equipmentType/:equipmentId", h.Trends.HandleTrendSeries)
	api.GET("/trends/:equipmentType/:equipmentId/metrics", h.Trends.HandleListTrendMetrics)

	// Audit trail
	api.GET("/audit", h.Audit.HandleListAudit, adminOnly)

	// Attachments
	api.POST("/files", h.Files.HandleUploadFile, RequireRecorder())
	api.GET("/files", h.Files.HandleListFiles)
	api.GET("/files/:id", h.Files.HandleDownloadFile)
	api.DELETE("/files/:id", h.Files.HandleDeleteFile, adminOnly)

	// Live event feed
	api.GET("/ws/events", h.Hub.HandleEvents)
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, cfg *config.AppConfig) {
	// Use custom error handler
	e.HTTPErrorHandler = ErrorHandler

	e.Use(middleware.Recover())

	if cfg.Audit.EnableRequestLogging {
		e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
			Skipper: func(c echo.Context) bool {
				return c.Request().URL.Path == "/api/health"
			},
		}))
	}

	if cfg.Server.EnableCORS {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: strings.Split(cfg.Server.AllowOrigins, ","),
			AllowMethods: []string{echo.GET, echo.POST, echo.PUT, echo.DELETE, echo.OPTIONS},
		}))
	}

	if cfg.Server.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))
	}

	// Compress JSON responses; the websocket upgrade must stay plain.
	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Skipper: func(c echo.Context) bool {
			return strings.HasPrefix(c.Path(), "/api/ws/")
		},
	}))
}
