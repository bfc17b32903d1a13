// middleware_test.go - Tests for the auth and role guards
package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/facility-logbook/backend/internal/models"
)

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestRequireAuth(t *testing.T) {
	env := newTestEnv(t)
	operator := env.seedUser(t, models.RoleOperator)
	pair, err := env.mgr.IssuePair(operator, time.Now())
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}
	guard := RequireAuth(env.mgr, env.st)(okHandler)

	tests := []struct {
		name    string
		header  string
		wantErr bool
	}{
		{
			name:   "valid bearer token",
			header: "Bearer " + pair.AccessToken,
		},
		{
			name:    "missing header",
			header:  "",
			wantErr: true,
		},
		{
			name:    "wrong scheme",
			header:  "Token " + pair.AccessToken,
			wantErr: true,
		},
		{
			name:    "garbage token",
			header:  "Bearer not-a-jwt",
			wantErr: true,
		},
		{
			name:    "refresh token on an access endpoint",
			header:  "Bearer " + pair.RefreshToken,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := env.jsonCtx(t, http.MethodGet, "/api/sites", nil, nil)
			if tt.header != "" {
				c.Request().Header.Set(echo.HeaderAuthorization, tt.header)
			}

			err := guard(c)

			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
					return
				}
				if code := apiErrCode(t, err); code != "UNAUTHORIZED" {
					t.Errorf("expected UNAUTHORIZED, got %s", code)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if rec.Code != http.StatusOK {
				t.Errorf("expected status 200, got %d", rec.Code)
			}
			u := currentUser(c)
			if u == nil || u.ID != operator.ID {
				t.Error("expected authenticated user in context")
			}
		})
	}
}

func TestRequireAuth_RejectsStaleSessions(t *testing.T) {
	env := newTestEnv(t)
	operator := env.seedUser(t, models.RoleOperator)
	guard := RequireAuth(env.mgr, env.st)(okHandler)
	ctx := context.Background()

	pair, err := env.mgr.IssuePair(operator, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}
	if err := env.st.Tokens.RevokeAllForUser(ctx, operator.ID, time.Now().Add(24*time.Hour)); err != nil {
		t.Fatalf("revoke all: %v", err)
	}

	c, _ := env.jsonCtx(t, http.MethodGet, "/api/sites", nil, nil)
	c.Request().Header.Set(echo.HeaderAuthorization, "Bearer "+pair.AccessToken)
	if err := guard(c); err == nil {
		t.Error("expected revoked session to be rejected")
	}

	// Deactivating the account kills even unrevoked tokens.
	fresh, err := env.mgr.IssuePair(operator, time.Now().Add(time.Second))
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}
	operator.IsActive = false
	if err := env.st.Users.Update(ctx, operator); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	c, _ = env.jsonCtx(t, http.MethodGet, "/api/sites", nil, nil)
	c.Request().Header.Set(echo.HeaderAuthorization, "Bearer "+fresh.AccessToken)
	if err := guard(c); err == nil {
		t.Error("expected deactivated account to be rejected")
	}
}

func TestRoleGuards(t *testing.T) {
	env := newTestEnv(t)
	users := map[models.Role]*models.User{
		models.RoleSuperAdmin: env.seedUser(t, models.RoleSuperAdmin),
		models.RoleManager:    env.seedUser(t, models.RoleManager),
		models.RoleSupervisor: env.seedUser(t, models.RoleSupervisor),
		models.RoleOperator:   env.seedUser(t, models.RoleOperator),
		models.RoleClient:     env.seedUser(t, models.RoleClient),
	}

	tests := []struct {
		name    string
		guard   echo.MiddlewareFunc
		allowed []models.Role
	}{
		{
			name:    "recorder guard",
			guard:   RequireRecorder(),
			allowed: []models.Role{models.RoleSuperAdmin, models.RoleManager, models.RoleOperator},
		},
		{
			name:    "approver guard",
			guard:   RequireApprover(),
			allowed: []models.Role{models.RoleSuperAdmin, models.RoleManager, models.RoleSupervisor},
		},
		{
			name:    "user admin guard",
			guard:   RequireUserAdmin(),
			allowed: []models.Role{models.RoleSuperAdmin, models.RoleManager},
		},
		{
			name:    "explicit role list",
			guard:   RequireRoles(models.RoleSuperAdmin, models.RoleManager),
			allowed: []models.Role{models.RoleSuperAdmin, models.RoleManager},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allowed := make(map[models.Role]bool)
			for _, r := range tt.allowed {
				allowed[r] = true
			}
			h := tt.guard(okHandler)
			for role, u := range users {
				c, _ := env.jsonCtx(t, http.MethodGet, "/", nil, u)
				err := h(c)
				if allowed[role] && err != nil {
					t.Errorf("role %s: unexpected error: %v", role, err)
				}
				if !allowed[role] {
					if err == nil {
						t.Errorf("role %s: expected FORBIDDEN, got nil", role)
					} else if code := apiErrCode(t, err); code != "FORBIDDEN" {
						t.Errorf("role %s: expected FORBIDDEN, got %s", role, code)
					}
				}
			}

			// No authenticated user at all answers 401, not 403.
			c, _ := env.jsonCtx(t, http.MethodGet, "/", nil, nil)
			if err := h(c); err == nil {
				t.Error("expected error without a session")
			} else if code := apiErrCode(t, err); code != "UNAUTHORIZED" {
				t.Errorf("expected UNAUTHORIZED, got %s", code)
			}
		})
	}
}
