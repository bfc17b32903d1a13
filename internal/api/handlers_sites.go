// handlers_sites.go - client facility registry
package api

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/facility-logbook/backend/internal/models"
	"github.com/facility-logbook/backend/internal/store"
)

// SiteHandler implements the site registry.
type SiteHandler struct {
	st  *store.Store
	log *slog.Logger
}

// NewSiteHandler creates a new site handler.
func NewSiteHandler(st *store.Store, log *slog.Logger) *SiteHandler {
	return &SiteHandler{st: st, log: log}
}

// HandleListSites lists sites. Client accounts only see their own.
func (h *SiteHandler) HandleListSites(c echo.Context) error {
	user := currentUser(c)
	f := store.SiteFilter{
		ClientID: c.QueryParam("clientId"),
		Search:   c.QueryParam("search"),
	}
	if user.Role == models.RoleClient {
		f.ClientID = user.ID
	}
	if v := c.QueryParam("isActive"); v != "" {
		active := v == "true"
		f.IsActive = &active
	}

	sites, total, err := h.st.Sites.List(c.Request().Context(), f, pageFromQuery(c))
	if err != nil {
		return NewInternalError("failed to list sites", err)
	}
	return listResponse(c, sites, total, pageFromQuery(c))
}

// HandleGetSite returns one site.
func (h *SiteHandler) HandleGetSite(c echo.Context) error {
	site, err := h.st.Sites.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storeError(err, "site", c.Param("id"))
	}
	if user := currentUser(c); user.Role == models.RoleClient && site.ClientID != user.ID {
		return NewNotFoundError("site", c.Param("id"))
	}
	return c.JSON(http.StatusOK, site)
}

type siteRequest struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	Address  string `json:"address"`
	ClientID string `json:"clientId"`
	IsActive *bool  `json:"isActive"`
}

// HandleCreateSite registers a site.
func (h *SiteHandler) HandleCreateSite(c echo.Context) error {
	var req siteRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.Name == "" {
		return NewValidationError("name is required")
	}

	site := &models.Site{
		Name:     req.Name,
		Location: req.Location,
		Address:  req.Address,
		ClientID: req.ClientID,
		IsActive: true,
	}
	if req.IsActive != nil {
		site.IsActive = *req.IsActive
	}
	if err := h.st.Sites.Create(c.Request().Context(), site); err != nil {
		return storeError(err, "site", req.Name)
	}

	h.log.Info("site created", "source", "sites",
		"user_id", currentUser(c).ID, "site_id", site.ID)
	return c.JSON(http.StatusCreated, site)
}

// HandleUpdateSite updates a site's details.
func (h *SiteHandler) HandleUpdateSite(c echo.Context) error {
	ctx := c.Request().Context()
	site, err := h.st.Sites.GetByID(ctx, c.Param("id"))
	if err != nil {
		return storeError(err, "site", c.Param("id"))
	}

	var req siteRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.Name != "" {
		site.Name = req.Name
	}
	if req.Location != "" {
		site.Location = req.Location
	}
	if req.Address != "" {
		site.Address = req.Address
	}
	if req.ClientID != "" {
		site.ClientID = req.ClientID
	}
	if req.IsActive != nil {
		site.IsActive = *req.IsActive
	}

	if err := h.st.Sites.Update(ctx, site); err != nil {
		return storeError(err, "site", site.ID)
	}
	return c.JSON(http.StatusOK, site)
}

// HandleDeleteSite removes a site.
func (h *SiteHandler) HandleDeleteSite(c echo.Context) error {
	id := c.Param("id")
	if err := h.st.Sites.Delete(c.Request().Context(), id); err != nil {
		return storeError(err, "site", id)
	}
	h.log.Info("site deleted", "source", "sites",
		"user_id", currentUser(c).ID, "site_id", id)
	return c.NoContent(http.StatusNoContent)
}
