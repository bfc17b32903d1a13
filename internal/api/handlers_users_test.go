// handlers_users_test.go - Account administration
package api

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/facility-logbook/backend/internal/models"
)

func TestUserHandler_HandleCreateUser(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedUser(t, models.RoleSuperAdmin)
	manager := env.seedUser(t, models.RoleManager)
	h := NewUserHandler(env.st, env.mgr, env.log)

	tests := []struct {
		name    string
		actor   *models.User
		body    map[string]interface{}
		wantErr bool
		errCode string
	}{
		{
			name:  "manager creates operator",
			actor: manager,
			body: map[string]interface{}{
				"email": "op.two@plant.test", "name": "Op Two",
				"role": "operator", "password": "op-two-secret",
			},
		},
		{
			name:  "super admin creates manager",
			actor: admin,
			body: map[string]interface{}{
				"email": "shift.lead@plant.test", "name": "Shift Lead",
				"role": "manager", "password": "lead-secret-1",
			},
		},
		{
			name:  "manager cannot mint a peer",
			actor: manager,
			body: map[string]interface{}{
				"email": "rogue@plant.test", "role": "manager", "password": "rogue-secret-1",
			},
			wantErr: true,
			errCode: "FORBIDDEN",
		},
		{
			name:    "email without at sign",
			actor:   manager,
			body:    map[string]interface{}{"email": "plant.test", "password": "whatever-1234"},
			wantErr: true,
			errCode: "VALIDATION_ERROR",
		},
		{
			name:    "short password",
			actor:   manager,
			body:    map[string]interface{}{"email": "p@plant.test", "password": "short"},
			wantErr: true,
			errCode: "VALIDATION_ERROR",
		},
		{
			name:    "unknown role",
			actor:   manager,
			body:    map[string]interface{}{"email": "j@plant.test", "role": "janitor", "password": "janitor-secret"},
			wantErr: true,
			errCode: "VALIDATION_ERROR",
		},
		{
			name:    "duplicate email",
			actor:   manager,
			body:    map[string]interface{}{"email": "op.two@plant.test", "password": "op-two-secret"},
			wantErr: true,
			errCode: "CONFLICT",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := env.jsonCtx(t, http.MethodPost, "/api/users", tt.body, tt.actor)
			err := h.HandleCreateUser(c)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if code := apiErrCode(t, err); code != tt.errCode {
					t.Errorf("expected %s, got %s", tt.errCode, code)
				}
				return
			}
			if err != nil {
				t.Fatalf("create user: %v", err)
			}
			if rec.Code != http.StatusCreated {
				t.Errorf("expected 201, got %d", rec.Code)
			}
			if strings.Contains(rec.Body.String(), "passwordHash") {
				t.Error("response leaked the password hash")
			}
		})
	}
}

func TestUserHandler_DeleteRestoreLifecycle(t *testing.T) {
	env := newTestEnv(t)
	manager := env.seedUser(t, models.RoleManager)
	operator := env.seedUser(t, models.RoleOperator)
	h := NewUserHandler(env.st, env.mgr, env.log)
	authH := NewAuthHandler(env.st, env.mgr, env.log, 15*time.Minute)

	login := func() error {
		c, _ := env.jsonCtx(t, http.MethodPost, "/api/auth/login", map[string]string{
			"email": operator.Email, "password": seedPassword,
		}, nil)
		return authH.HandleLogin(c)
	}

	// Deleting yourself is refused before anything else is looked at.
	c, _ := env.jsonCtx(t, http.MethodDelete, "/api/users/"+manager.ID, nil, manager)
	setParamID(c, manager.ID)
	err := h.HandleDeleteUser(c)
	if err == nil || apiErrCode(t, err) != "VALIDATION_ERROR" {
		t.Fatalf("expected self-delete to be refused, got %v", err)
	}

	c, rec := env.jsonCtx(t, http.MethodDelete, "/api/users/"+operator.ID, nil, manager)
	setParamID(c, operator.ID)
	if err := h.HandleDeleteUser(c); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}

	if err := login(); err == nil || apiErrCode(t, err) != "UNAUTHORIZED" {
		t.Fatalf("expected deleted account login to fail, got %v", err)
	}

	// The row stays reachable for admins.
	c, rec = env.jsonCtx(t, http.MethodGet, "/api/users/"+operator.ID, nil, manager)
	setParamID(c, operator.ID)
	if err := h.HandleGetUser(c); err != nil {
		t.Fatalf("get deleted: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"isDeleted":true`) {
		t.Error("expected the deleted flag in the body")
	}

	// Default listing hides it; includeDeleted brings it back.
	c, rec = env.jsonCtx(t, http.MethodGet, "/api/users", nil, manager)
	if err := h.HandleListUsers(c); err != nil {
		t.Fatalf("list: %v", err)
	}
	if strings.Contains(rec.Body.String(), operator.ID) {
		t.Error("default listing shows a deleted account")
	}
	c, rec = env.jsonCtx(t, http.MethodGet, "/api/users?includeDeleted=true", nil, manager)
	if err := h.HandleListUsers(c); err != nil {
		t.Fatalf("list with deleted: %v", err)
	}
	if !strings.Contains(rec.Body.String(), operator.ID) {
		t.Error("includeDeleted listing misses the account")
	}

	// Restore brings the login back.
	c, rec = env.jsonCtx(t, http.MethodPost, "/api/users/"+operator.ID+"/restore", nil, manager)
	setParamID(c, operator.ID)
	if err := h.HandleRestoreUser(c); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"isActive":true`) {
		t.Error("expected the restored account to be active")
	}
	if err := login(); err != nil {
		t.Fatalf("expected restored account to log in: %v", err)
	}

	// Restoring a live account is an error.
	c, _ = env.jsonCtx(t, http.MethodPost, "/api/users/"+operator.ID+"/restore", nil, manager)
	setParamID(c, operator.ID)
	err = h.HandleRestoreUser(c)
	if err == nil || apiErrCode(t, err) != "VALIDATION_ERROR" {
		t.Fatalf("expected restore of a live account to fail, got %v", err)
	}
}

func TestUserHandler_ManagerVisibility(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedUser(t, models.RoleSuperAdmin)
	manager := env.seedUser(t, models.RoleManager)
	supervisor := env.seedUser(t, models.RoleSupervisor)
	h := NewUserHandler(env.st, env.mgr, env.log)

	// Managers never see admin-level accounts.
	c, rec := env.jsonCtx(t, http.MethodGet, "/api/users", nil, manager)
	if err := h.HandleListUsers(c); err != nil {
		t.Fatalf("list: %v", err)
	}
	body := rec.Body.String()
	if strings.Contains(body, admin.ID) || strings.Contains(body, manager.ID) {
		t.Error("manager listing shows admin-level accounts")
	}
	if !strings.Contains(body, supervisor.ID) {
		t.Error("manager listing misses a supervisor")
	}

	// Accounts outside the visibility set answer 404, not 403.
	c, _ = env.jsonCtx(t, http.MethodGet, "/api/users/"+admin.ID, nil, manager)
	setParamID(c, admin.ID)
	err := h.HandleGetUser(c)
	if err == nil || apiErrCode(t, err) != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}

	// Promotion past the manager ceiling is refused.
	c, _ = env.jsonCtx(t, http.MethodPut, "/api/users/"+supervisor.ID,
		map[string]interface{}{"role": "manager"}, manager)
	setParamID(c, supervisor.ID)
	err = h.HandleUpdateUser(c)
	if err == nil || apiErrCode(t, err) != "FORBIDDEN" {
		t.Fatalf("expected FORBIDDEN, got %v", err)
	}

	// A super admin sees everything.
	c, rec = env.jsonCtx(t, http.MethodGet, "/api/users", nil, admin)
	if err := h.HandleListUsers(c); err != nil {
		t.Fatalf("admin list: %v", err)
	}
	if !strings.Contains(rec.Body.String(), manager.ID) {
		t.Error("admin listing misses the manager")
	}
}

func TestUserHandler_HandleUpdateUser_RevokesSessions(t *testing.T) {
	env := newTestEnv(t)
	manager := env.seedUser(t, models.RoleManager)
	operator := env.seedUser(t, models.RoleOperator)
	h := NewUserHandler(env.st, env.mgr, env.log)
	authH := NewAuthHandler(env.st, env.mgr, env.log, 15*time.Minute)

	pair, err := env.mgr.IssuePair(operator, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}

	c, _ := env.jsonCtx(t, http.MethodPut, "/api/users/"+operator.ID,
		map[string]interface{}{"password": "rotated-secret-99"}, manager)
	setParamID(c, operator.ID)
	if err := h.HandleUpdateUser(c); err != nil {
		t.Fatalf("update: %v", err)
	}

	// The session issued before the rotation is dead.
	c, _ = env.jsonCtx(t, http.MethodPost, "/api/auth/refresh",
		map[string]string{"refreshToken": pair.RefreshToken}, nil)
	rerr := authH.HandleRefresh(c)
	if rerr == nil || apiErrCode(t, rerr) != "UNAUTHORIZED" {
		t.Fatalf("expected old refresh token to be dead, got %v", rerr)
	}

	// The rotated password is live immediately.
	c, _ = env.jsonCtx(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email": operator.Email, "password": "rotated-secret-99",
	}, nil)
	if err := authH.HandleLogin(c); err != nil {
		t.Fatalf("login with rotated password: %v", err)
	}
}
