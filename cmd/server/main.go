package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/facility-logbook/backend/internal/api"
	"github.com/facility-logbook/backend/internal/auth"
	"github.com/facility-logbook/backend/internal/config"
	"github.com/facility-logbook/backend/internal/limits"
	"github.com/facility-logbook/backend/internal/logger"
	"github.com/facility-logbook/backend/internal/models"
	"github.com/facility-logbook/backend/internal/storage"
	"github.com/facility-logbook/backend/internal/store"
	"github.com/facility-logbook/backend/internal/trend"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", defaultConfigPath(), "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Printf("Failed to create directories: %v\n", err)
		os.Exit(1)
	}

	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		fmt.Printf("Failed to open database: %v\n", err)
		os.Exit(1)
	}
	st := store.New(db)
	log := logger.New(db, cfg.Audit.LogLevel)

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		secret = randomHex(32)
		log.Warn("no JWT secret configured; issued tokens will not survive a restart",
			"source", "server")
	}
	mgr := auth.NewManager(secret,
		time.Duration(cfg.Auth.AccessTTLMinutes)*time.Minute,
		time.Duration(cfg.Auth.RefreshTTLHours)*time.Hour)

	mirror, err := trend.Open(cfg.Trend.Path, cfg.Trend.Threads, cfg.Trend.MemoryLimit)
	if err != nil {
		fmt.Printf("Failed to open trend mirror: %v\n", err)
		os.Exit(1)
	}

	files, err := storage.NewLocalStore(cfg.Storage.UploadsDirectory, cfg.Storage.MaxUploadSize, cfg.Storage.AllowedFileTypes)
	if err != nil {
		fmt.Printf("Failed to initialize file storage: %v\n", err)
		os.Exit(1)
	}

	if err := bootstrapAdmin(st, cfg, log); err != nil {
		fmt.Printf("Failed to bootstrap admin account: %v\n", err)
		os.Exit(1)
	}

	hub := api.NewHub(log)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	api.SetupMiddleware(e, cfg)

	deps := &api.Dependencies{
		Store:      st,
		Auth:       mgr,
		Mirror:     mirror,
		Files:      files,
		Hub:        hub,
		Log:        log,
		ArchiveDir: cfg.Storage.ArchiveDirectory,
		ResetTTL:   time.Duration(cfg.Auth.ResetTTLMinutes) * time.Minute,
		Version:    Version,
	}
	api.RegisterRoutes(e, deps, api.NewHandlers(deps))

	stopJanitors := startJanitors(st, hub, log, cfg)

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           Facility Logbook Server                         ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", *configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Database:  %-46s║\n", cfg.Database.Path)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")

	go func() {
		if err := e.StartServer(s); err != nil && err != http.ErrServerClosed {
			log.Error("server stopped", "source", "server", "error", err)
		}
	}()
	log.Info("server started", "source", "server", "addr", cfg.GetServerAddr(), "version", Version)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down", "source", "server")
	close(stopJanitors)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown incomplete", "source", "server", "error", err)
	}
	if err := mirror.Close(); err != nil {
		log.Error("failed to close trend mirror", "source", "server", "error", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}

func defaultConfigPath() string {
	if p := os.Getenv("LOGBOOK_CONFIG"); p != "" {
		return p
	}
	return "logbook.yaml"
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return hex.EncodeToString(buf)
}

// bootstrapAdmin seeds the first super admin account when the user
// table is empty. Without it a fresh install has no account to log
// in with. A generated password goes to the audit sink, which on a
// fresh install only the operator bringing the box up can read.
func bootstrapAdmin(st *store.Store, cfg *config.AppConfig, log *slog.Logger) error {
	ctx := context.Background()
	n, err := st.Users.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	password := cfg.Bootstrap.AdminPassword
	generated := false
	if password == "" {
		password = randomHex(8)
		generated = true
	}
	hash, err := auth.HashPassword(password, cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}

	admin := &models.User{
		Email:        cfg.Bootstrap.AdminEmail,
		Name:         cfg.Bootstrap.AdminName,
		Role:         models.RoleSuperAdmin,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := st.Users.Create(ctx, admin); err != nil {
		return err
	}
	if generated {
		log.Warn("bootstrapped admin account with a generated password",
			"source", "bootstrap", "email", admin.Email, "password", password)
	} else {
		log.Info("bootstrapped admin account",
			"source", "bootstrap", "email", admin.Email)
	}
	return nil
}

// startJanitors runs the background maintenance loops until the
// returned channel is closed: hourly token and audit pruning, daily
// instrument calibration scans.
func startJanitors(st *store.Store, hub *api.Hub, log *slog.Logger, cfg *config.AppConfig) chan<- struct{} {
	stop := make(chan struct{})
	go func() {
		hourly := time.NewTicker(time.Hour)
		daily := time.NewTicker(24 * time.Hour)
		defer hourly.Stop()
		defer daily.Stop()

		pruneTokens(st, log)
		scanCalibrations(st, hub, log)
		for {
			select {
			case <-stop:
				return
			case <-hourly.C:
				pruneTokens(st, log)
				pruneAudit(st, log, cfg.Audit.MaxAgeDays)
			case <-daily.C:
				scanCalibrations(st, hub, log)
			}
		}
	}()
	return stop
}

func pruneTokens(st *store.Store, log *slog.Logger) {
	ctx := context.Background()
	now := time.Now()
	n, err := st.Tokens.PruneExpired(ctx, now)
	if err != nil {
		log.Error("failed to prune revoked tokens", "source", "janitor", "error", err)
	} else if n > 0 {
		log.Info("pruned revoked tokens", "source", "janitor", "count", n)
	}
	if err := st.Tokens.DeleteExpiredResetTokens(ctx, now); err != nil {
		log.Error("failed to prune reset tokens", "source", "janitor", "error", err)
	}
}

func pruneAudit(st *store.Store, log *slog.Logger, maxAgeDays int) {
	if maxAgeDays <= 0 {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -maxAgeDays)
	n, err := st.Audit.PruneBefore(context.Background(), cutoff)
	if err != nil {
		log.Error("failed to prune audit trail", "source", "janitor", "error", err)
	} else if n > 0 {
		log.Info("pruned audit trail", "source", "janitor", "count", n, "cutoff", cutoff)
	}
}

// scanCalibrations flags instruments whose calibration is past due or
// inside the expiry window, so certificates never quietly reference a
// stale instrument.
func scanCalibrations(st *store.Store, hub *api.Hub, log *slog.Logger) {
	now := time.Now()
	due, err := st.Instruments.DueWithin(context.Background(), now.Add(limits.ExpiryWindow))
	if err != nil {
		log.Error("calibration scan failed", "source", "calibration", "error", err)
		return
	}
	for i := range due {
		in := &due[i]
		status := in.CalibrationStatus(now)
		log.Warn("instrument calibration needs attention",
			"source", "calibration", "instrument", in.Name,
			"serial", in.SerialNumber, "due", in.CalibrationDueDate, "status", status)
		hub.Broadcast(api.MsgTypeCalibrationDue, api.EventPayload{
			RecordType: "instrument",
			RecordID:   in.ID,
			Title:      in.Name,
			Status:     status,
		})
	}
}
