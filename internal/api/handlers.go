// handlers.go - shared handler plumbing and request helpers
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/facility-logbook/backend/internal/store"
)

// HealthHandler answers liveness probes.
type HealthHandler struct {
	version string
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{version: version}
}

// HandleHealth returns server health status.
func (h *HealthHandler) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": h.version,
	})
}

// pageFromQuery reads page/pageSize query parameters. Out-of-range
// values are normalized by the store.
func pageFromQuery(c echo.Context) store.Page {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("pageSize"))
	return store.Page{Number: page, Size: size}
}

// listResponse is the envelope every paginated list endpoint returns.
func listResponse(c echo.Context, items interface{}, total int64, p store.Page) error {
	p = p.Normalize()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"items":    items,
		"total":    total,
		"page":     p.Number,
		"pageSize": p.Size,
	})
}

// timeQuery parses an optional time query parameter. Accepts RFC3339
// or a bare date; a bare date means midnight UTC of that day.
func timeQuery(c echo.Context, name string) (*time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, NewValidationError(name + " must be RFC3339 or YYYY-MM-DD")
	}
	return &t, nil
}

// approvalRequest is the body of every .../:id/approve endpoint.
type approvalRequest struct {
	Action  string `json:"action"`
	Remarks string `json:"remarks"`
}

// decide maps the action to the approved flag, rejecting anything
// other than approve or reject.
func (r approvalRequest) decide() (bool, error) {
	switch r.Action {
	case "approve":
		return true, nil
	case "reject":
		return false, nil
	default:
		return false, NewValidationError("action must be approve or reject")
	}
}

// nonNegative validates a batch of labelled readings in one pass.
func nonNegative(fields map[string]float64) error {
	for name, v := range fields {
		if v < 0 {
			return NewValidationError(name + " must not be negative")
		}
	}
	return nil
}

// nonNegativePtr applies the same check to optional readings.
func nonNegativePtr(fields map[string]*float64) error {
	for name, v := range fields {
		if v != nil && *v < 0 {
			return NewValidationError(name + " must not be negative")
		}
	}
	return nil
}
