package api

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/facility-logbook/backend/internal/auth"
	"github.com/facility-logbook/backend/internal/models"
	"github.com/facility-logbook/backend/internal/store"
)

// Context keys where RequireAuth stashes the authenticated user and
// the parsed access-token claims.
const (
	userContextKey   = "authUser"
	claimsContextKey = "authClaims"
)

// RequireAuth validates the bearer token, rejects revoked tokens, and
// loads the live user record into the request context. Soft-deleted
// and deactivated accounts fail here even with a valid signature.
func RequireAuth(mgr *auth.Manager, st *store.Store) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			const prefix = "Bearer "
			if !strings.HasPrefix(header, prefix) {
				return NewUnauthorizedError("missing bearer token")
			}
			claims, err := mgr.Parse(strings.TrimPrefix(header, prefix), auth.KindAccess)
			if err != nil {
				return NewUnauthorizedError("invalid or expired token")
			}

			ctx := c.Request().Context()
			revoked, err := st.Tokens.IsRevoked(ctx, claims.ID, claims.UserID, claims.IssuedAt.Time)
			if err != nil {
				return NewInternalError("token check failed", err)
			}
			if revoked {
				return NewUnauthorizedError("token has been revoked")
			}

			user, err := st.Users.GetByID(ctx, claims.UserID)
			if err != nil {
				return NewUnauthorizedError("account no longer available")
			}
			if !user.IsActive {
				return NewUnauthorizedError("account is deactivated")
			}

			c.Set(userContextKey, user)
			c.Set(claimsContextKey, claims)
			return next(c)
		}
	}
}

// RequireRoles allows only the listed roles through.
func RequireRoles(roles ...models.Role) echo.MiddlewareFunc {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u := currentUser(c)
			if u == nil {
				return NewUnauthorizedError("authentication required")
			}
			if _, ok := allowed[u.Role]; !ok {
				return NewForbiddenError("insufficient role")
			}
			return next(c)
		}
	}
}

// RequireRecorder gates record create/update to roles that may log entries.
func RequireRecorder() echo.MiddlewareFunc {
	return requirePermission(models.Role.CanLogEntries, "role may not log entries")
}

// RequireApprover gates approval endpoints.
func RequireApprover() echo.MiddlewareFunc {
	return requirePermission(models.Role.CanApprove, "role may not approve records")
}

// RequireUserAdmin gates account administration.
func RequireUserAdmin() echo.MiddlewareFunc {
	return requirePermission(models.Role.CanManageUsers, "role may not manage users")
}

func requirePermission(check func(models.Role) bool, message string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u := currentUser(c)
			if u == nil {
				return NewUnauthorizedError("authentication required")
			}
			if !check(u.Role) {
				return NewForbiddenError(message)
			}
			return next(c)
		}
	}
}

// currentUser returns the authenticated user, or nil outside RequireAuth.
func currentUser(c echo.Context) *models.User {
	u, _ := c.Get(userContextKey).(*models.User)
	return u
}

// currentClaims returns the parsed access-token claims, or nil
// outside RequireAuth.
func currentClaims(c echo.Context) *auth.Claims {
	cl, _ := c.Get(claimsContextKey).(*auth.Claims)
	return cl
}
