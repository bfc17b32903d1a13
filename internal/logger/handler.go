// Package logger wires log/slog into the audit trail. Records go to
// stdout as JSON and, in parallel, into the audit_records table so the
// admin API can query who did what. Attrs named "source" and "user_id"
// are lifted into their own columns; everything else lands in the JSON
// data blob.
package logger

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/facility-logbook/backend/internal/models"
)

// DBHandler is a slog.Handler that mirrors records into the database.
type DBHandler struct {
	db     *gorm.DB
	stdout slog.Handler
	attrs  []slog.Attr
	min    slog.Level
}

// New builds the application logger. Level is one of debug, info,
// warn, error; anything else means info.
func New(db *gorm.DB, level string) *slog.Logger {
	return slog.New(NewDBHandler(db, ParseLevel(level)))
}

// NewDBHandler creates the handler directly, for callers that want to
// compose it themselves.
func NewDBHandler(db *gorm.DB, min slog.Level) *DBHandler {
	return &DBHandler{
		db:     db,
		stdout: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: min}),
		min:    min,
	}
}

// ParseLevel maps a config string to a slog level.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (h *DBHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.min
}

func (h *DBHandler) Handle(ctx context.Context, r slog.Record) error {
	_ = h.stdout.Handle(ctx, r)

	attrs := make(map[string]any)
	var source string
	var userID *string

	collect := func(a slog.Attr) {
		switch a.Key {
		case "source":
			source = a.Value.String()
		case "user_id":
			if id := a.Value.String(); id != "" {
				userID = &id
			}
		default:
			attrs[a.Key] = a.Value.Any()
		}
	}

	for _, a := range h.attrs {
		collect(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		collect(a)
		return true
	})

	var data string
	if len(attrs) > 0 {
		b, _ := json.Marshal(attrs)
		data = string(b)
	}

	record := models.AuditRecord{
		CreatedAt: time.Now(),
		Level:     r.Level.String(),
		Message:   r.Message,
		Source:    source,
		UserID:    userID,
		Data:      data,
	}
	return h.db.Create(&record).Error
}

func (h *DBHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, len(h.attrs)+len(attrs))
	copy(merged, h.attrs)
	copy(merged[len(h.attrs):], attrs)
	return &DBHandler{
		db:     h.db,
		stdout: h.stdout.WithAttrs(attrs),
		attrs:  merged,
		min:    h.min,
	}
}

func (h *DBHandler) WithGroup(name string) slog.Handler {
	return h
}
