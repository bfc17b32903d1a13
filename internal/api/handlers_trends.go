// handlers_trends.go - read side of the DuckDB reading mirror
package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/facility-logbook/backend/internal/models"
	"github.com/facility-logbook/backend/internal/trend"
)

// Series queries without an explicit range default to the most recent
// month of readings.
const defaultTrendWindow = 30 * 24 * time.Hour

// TrendHandler serves aggregate queries over the reading mirror.
type TrendHandler struct {
	mirror *trend.Mirror
}

// NewTrendHandler creates a new trend handler.
func NewTrendHandler(mirror *trend.Mirror) *TrendHandler {
	return &TrendHandler{mirror: mirror}
}

// HandleListTrendEquipment lists every equipment the mirror has seen.
func (h *TrendHandler) HandleListTrendEquipment(c echo.Context) error {
	refs, err := h.mirror.Equipment(c.Request().Context())
	if err != nil {
		return NewInternalError("failed to list mirrored equipment", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"items": refs,
	})
}

// HandleListTrendMetrics lists the metrics recorded for one equipment.
func (h *TrendHandler) HandleListTrendMetrics(c echo.Context) error {
	equipmentType := c.Param("equipmentType")
	if !models.EquipmentType(equipmentType).Valid() {
		return NewValidationError("equipmentType must be chiller, boiler or compressor")
	}
	metrics, err := h.mirror.Metrics(c.Request().Context(), equipmentType, c.Param("equipmentId"))
	if err != nil {
		return NewInternalError("failed to list metrics", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"equipmentType": equipmentType,
		"equipmentId":   c.Param("equipmentId"),
		"metrics":       metrics,
	})
}

// HandleTrendSeries returns bucketed aggregates for one metric of one
// equipment. bucket is hour or day; the range defaults to the last 30
// days ending now.
func (h *TrendHandler) HandleTrendSeries(c echo.Context) error {
	equipmentType := c.Param("equipmentType")
	if !models.EquipmentType(equipmentType).Valid() {
		return NewValidationError("equipmentType must be chiller, boiler or compressor")
	}
	metric := c.QueryParam("metric")
	if metric == "" {
		return NewValidationError("metric is required")
	}

	var interval time.Duration
	switch c.QueryParam("bucket") {
	case "", "day":
		interval = 24 * time.Hour
	case "hour":
		interval = time.Hour
	default:
		return NewValidationError("bucket must be hour or day")
	}

	fromQ, err := timeQuery(c, "from")
	if err != nil {
		return err
	}
	toQ, err := timeQuery(c, "to")
	if err != nil {
		return err
	}
	to := time.Now()
	if toQ != nil {
		to = *toQ
	}
	from := to.Add(-defaultTrendWindow)
	if fromQ != nil {
		from = *fromQ
	}

	buckets, err := h.mirror.Series(c.Request().Context(), trend.SeriesQuery{
		EquipmentType: equipmentType,
		EquipmentID:   c.Param("equipmentId"),
		Metric:        metric,
		From:          from,
		To:            to,
		Interval:      interval,
	})
	if err != nil {
		return NewInternalError("failed to query trend series", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"equipmentType": equipmentType,
		"equipmentId":   c.Param("equipmentId"),
		"metric":        metric,
		"from":          from,
		"to":            to,
		"buckets":       buckets,
	})
}

// equipmentSummary is one equipment's rollup in the monthly summary.
type equipmentSummary struct {
	EquipmentType string                `json:"equipmentType"`
	EquipmentID   string                `json:"equipmentId"`
	Site          string                `json:"site"`
	Metrics       []trend.MetricSummary `json:"metrics"`
}

// HandleTrendSummary aggregates every mirrored equipment over one
// calendar month (?month=YYYY-MM, default the current month).
func (h *TrendHandler) HandleTrendSummary(c echo.Context) error {
	now := time.Now().UTC()
	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	if raw := c.QueryParam("month"); raw != "" {
		parsed, err := time.Parse("2006-01", raw)
		if err != nil {
			return NewValidationError("month must be YYYY-MM")
		}
		month = parsed
	}
	from := month
	to := month.AddDate(0, 1, 0)

	ctx := c.Request().Context()
	refs, err := h.mirror.Equipment(ctx)
	if err != nil {
		return NewInternalError("failed to list mirrored equipment", err)
	}

	summaries := make([]equipmentSummary, 0, len(refs))
	for _, ref := range refs {
		metrics, err := h.mirror.Summary(ctx, ref.EquipmentType, ref.EquipmentID, from, to)
		if err != nil {
			return NewInternalError("failed to summarize readings", err)
		}
		if len(metrics) == 0 {
			continue
		}
		summaries = append(summaries, equipmentSummary{
			EquipmentType: ref.EquipmentType,
			EquipmentID:   ref.EquipmentID,
			Site:          ref.Site,
			Metrics:       metrics,
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"month": month.Format("2006-01"),
		"items": summaries,
	})
}
