// handlers_users.go - account administration
package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/facility-logbook/backend/internal/auth"
	"github.com/facility-logbook/backend/internal/models"
	"github.com/facility-logbook/backend/internal/store"
)

// UserHandler implements user CRUD for administrators.
type UserHandler struct {
	st  *store.Store
	mgr *auth.Manager
	log *slog.Logger
}

// NewUserHandler creates a new user admin handler.
func NewUserHandler(st *store.Store, mgr *auth.Manager, log *slog.Logger) *UserHandler {
	return &UserHandler{st: st, mgr: mgr, log: log}
}

// manageableRoles returns the set of roles an actor may see and
// administer. Super admins cover everything; managers stop below
// manager level.
func manageableRoles(actor models.Role) []models.Role {
	if actor == models.RoleSuperAdmin {
		return nil
	}
	return []models.Role{models.RoleSupervisor, models.RoleOperator, models.RoleClient}
}

func roleManageable(actor, target models.Role) bool {
	allowed := manageableRoles(actor)
	if allowed == nil {
		return true
	}
	for _, r := range allowed {
		if r == target {
			return true
		}
	}
	return false
}

type userRequest struct {
	Email    string      `json:"email"`
	Name     string      `json:"name"`
	Role     models.Role `json:"role"`
	Password string      `json:"password"`
	IsActive *bool       `json:"isActive"`
}

// HandleListUsers returns accounts visible to the caller.
func (h *UserHandler) HandleListUsers(c echo.Context) error {
	actor := currentUser(c)
	f := store.UserFilter{
		Roles:          manageableRoles(actor.Role),
		Role:           models.Role(c.QueryParam("role")),
		Search:         c.QueryParam("search"),
		IncludeDeleted: c.QueryParam("includeDeleted") == "true",
	}
	users, total, err := h.st.Users.List(c.Request().Context(), f, pageFromQuery(c))
	if err != nil {
		return NewInternalError("failed to list users", err)
	}
	return listResponse(c, users, total, pageFromQuery(c))
}

// HandleCreateUser creates an account. Managers may not mint peers or
// super admins.
func (h *UserHandler) HandleCreateUser(c echo.Context) error {
	var req userRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return NewValidationError("a valid email is required")
	}
	if req.Role == "" {
		req.Role = models.RoleOperator
	}
	if !req.Role.Valid() {
		return NewValidationError("unknown role "+string(req.Role))
	}
	if len(req.Password) < minPasswordLength {
		return NewValidationError("password must be at least 8 characters")
	}

	actor := currentUser(c)
	if !roleManageable(actor.Role, req.Role) {
		return NewForbiddenError("cannot create accounts with role "+string(req.Role))
	}

	hash, err := auth.HashPassword(req.Password, 0)
	if err != nil {
		return NewInternalError("failed to hash password", err)
	}

	user := &models.User{
		Email:        req.Email,
		Name:         req.Name,
		Role:         req.Role,
		PasswordHash: hash,
		IsActive:     true,
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	if err := h.st.Users.Create(c.Request().Context(), user); err != nil {
		return storeError(err, "user", req.Email)
	}

	h.log.Info("user created", "source", "users", "user_id", actor.ID,
		"created_id", user.ID, "role", string(user.Role))
	return c.JSON(http.StatusCreated, user)
}

// HandleGetUser returns one account, including soft-deleted ones.
// Accounts outside the caller's visibility answer 404.
func (h *UserHandler) HandleGetUser(c echo.Context) error {
	user, err := h.st.Users.GetAny(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storeError(err, "user", c.Param("id"))
	}
	if !roleManageable(currentUser(c).Role, user.Role) {
		return NewNotFoundError("user", c.Param("id"))
	}
	return c.JSON(http.StatusOK, user)
}

// HandleUpdateUser updates name, role, active flag, email or password.
// A password set here revokes the target's sessions.
func (h *UserHandler) HandleUpdateUser(c echo.Context) error {
	ctx := c.Request().Context()
	user, err := h.st.Users.GetByID(ctx, c.Param("id"))
	if err != nil {
		return storeError(err, "user", c.Param("id"))
	}

	actor := currentUser(c)
	if !roleManageable(actor.Role, user.Role) {
		return NewNotFoundError("user", c.Param("id"))
	}

	var req userRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	if req.Name != "" {
		user.Name = req.Name
	}
	if req.Email != "" {
		email := strings.TrimSpace(strings.ToLower(req.Email))
		if !strings.Contains(email, "@") {
			return NewValidationError("a valid email is required")
		}
		user.Email = email
	}
	if req.Role != "" {
		if !req.Role.Valid() {
			return NewValidationError("unknown role "+string(req.Role))
		}
		if !roleManageable(actor.Role, req.Role) {
			return NewForbiddenError("cannot assign role "+string(req.Role))
		}
		user.Role = req.Role
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	passwordChanged := false
	if req.Password != "" {
		if len(req.Password) < minPasswordLength {
			return NewValidationError("password must be at least 8 characters")
		}
		hash, err := auth.HashPassword(req.Password, 0)
		if err != nil {
			return NewInternalError("failed to hash password", err)
		}
		user.PasswordHash = hash
		passwordChanged = true
	}

	if err := h.st.Users.Update(ctx, user); err != nil {
		return storeError(err, "user", user.ID)
	}
	if passwordChanged || (req.IsActive != nil && !*req.IsActive) {
		now := time.Now()
		if err := h.st.Tokens.RevokeAllForUser(ctx, user.ID, now.Add(h.mgr.RefreshTTL())); err != nil {
			h.log.Error("failed to revoke sessions after admin update",
				"source", "users", "user_id", user.ID, "error", err)
		}
	}

	h.log.Info("user updated", "source", "users", "user_id", actor.ID, "updated_id", user.ID)
	return c.JSON(http.StatusOK, user)
}

// HandleDeleteUser soft-deletes an account and kills its sessions.
// Records the account wrote keep their operator reference.
func (h *UserHandler) HandleDeleteUser(c echo.Context) error {
	id := c.Param("id")
	actor := currentUser(c)
	if id == actor.ID {
		return NewValidationError("cannot delete your own account")
	}

	ctx := c.Request().Context()
	user, err := h.st.Users.GetByID(ctx, id)
	if err != nil {
		return storeError(err, "user", id)
	}
	if !roleManageable(actor.Role, user.Role) {
		return NewNotFoundError("user", id)
	}

	now := time.Now()
	if err := h.st.Users.SoftDelete(ctx, id, now); err != nil {
		return storeError(err, "user", id)
	}
	if err := h.st.Tokens.RevokeAllForUser(ctx, id, now.Add(h.mgr.RefreshTTL())); err != nil {
		h.log.Error("failed to revoke sessions after delete",
			"source", "users", "user_id", id, "error", err)
	}

	h.log.Info("user deleted", "source", "users", "user_id", actor.ID, "deleted_id", id)
	return c.NoContent(http.StatusNoContent)
}

// HandleRestoreUser reactivates a soft-deleted account.
func (h *UserHandler) HandleRestoreUser(c echo.Context) error {
	id := c.Param("id")
	ctx := c.Request().Context()

	user, err := h.st.Users.GetAny(ctx, id)
	if err != nil {
		return storeError(err, "user", id)
	}
	actor := currentUser(c)
	if !roleManageable(actor.Role, user.Role) {
		return NewNotFoundError("user", id)
	}
	if !user.IsDeleted {
		return NewValidationError("user is not deleted")
	}

	if err := h.st.Users.Restore(ctx, id); err != nil {
		return storeError(err, "user", id)
	}
	restored, err := h.st.Users.GetByID(ctx, id)
	if err != nil {
		return storeError(err, "user", id)
	}

	h.log.Info("user restored", "source", "users", "user_id", actor.ID, "restored_id", id)
	return c.JSON(http.StatusOK, restored)
}
