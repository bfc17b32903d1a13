// handlers_auth.go - login, token lifecycle and password management
package api

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/facility-logbook/backend/internal/auth"
	"github.com/facility-logbook/backend/internal/models"
	"github.com/facility-logbook/backend/internal/store"
)

const minPasswordLength = 8

// AuthHandler implements login, refresh and password endpoints.
type AuthHandler struct {
	st       *store.Store
	mgr      *auth.Manager
	log      *slog.Logger
	resetTTL time.Duration
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(st *store.Store, mgr *auth.Manager, log *slog.Logger, resetTTL time.Duration) *AuthHandler {
	if resetTTL <= 0 {
		resetTTL = 15 * time.Minute
	}
	return &AuthHandler{st: st, mgr: mgr, log: log, resetTTL: resetTTL}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	ExpiresIn    int64        `json:"expiresIn"`
}

// HandleLogin exchanges credentials for a token pair. Every failure
// mode answers the same 401 so accounts cannot be enumerated.
func (h *AuthHandler) HandleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.Email == "" || req.Password == "" {
		return NewValidationError("email and password are required")
	}

	ctx := c.Request().Context()
	user, err := h.st.Users.GetByEmail(ctx, req.Email)
	if err != nil || !auth.CheckPassword(user.PasswordHash, req.Password) || !user.IsActive {
		return NewUnauthorizedError("invalid email or password")
	}

	pair, err := h.mgr.IssuePair(user, time.Now())
	if err != nil {
		return NewInternalError("failed to issue tokens", err)
	}

	h.log.Info("user logged in", "source", "auth", "user_id", user.ID, "role", string(user.Role))
	return c.JSON(http.StatusOK, tokenResponse{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	})
}

// HandleRefresh rotates a refresh token: the presented token is
// revoked and a fresh pair is issued.
func (h *AuthHandler) HandleRefresh(c echo.Context) error {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.RefreshToken == "" {
		return NewValidationError("refreshToken is required")
	}

	claims, err := h.mgr.Parse(req.RefreshToken, auth.KindRefresh)
	if err != nil {
		return NewUnauthorizedError("invalid refresh token")
	}

	ctx := c.Request().Context()
	revoked, err := h.st.Tokens.IsRevoked(ctx, claims.ID, claims.UserID, claims.IssuedAt.Time)
	if err != nil {
		return NewInternalError("token check failed", err)
	}
	if revoked {
		return NewUnauthorizedError("refresh token has been revoked")
	}

	user, err := h.st.Users.GetByID(ctx, claims.UserID)
	if err != nil || !user.IsActive {
		return NewUnauthorizedError("account no longer available")
	}

	// Rotation: the old token must not work twice.
	if err := h.st.Tokens.Revoke(ctx, &models.RevokedToken{
		JTI:       claims.ID,
		UserID:    claims.UserID,
		ExpiresAt: claims.ExpiresAt.Time,
	}); err != nil {
		return NewInternalError("failed to rotate token", err)
	}

	pair, err := h.mgr.IssuePair(user, time.Now())
	if err != nil {
		return NewInternalError("failed to issue tokens", err)
	}
	return c.JSON(http.StatusOK, tokenResponse{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	})
}

// HandleLogout revokes the current access token and, when supplied,
// the session's refresh token.
func (h *AuthHandler) HandleLogout(c echo.Context) error {
	user := currentUser(c)
	claims := currentClaims(c)
	ctx := c.Request().Context()

	if err := h.st.Tokens.Revoke(ctx, &models.RevokedToken{
		JTI:       claims.ID,
		UserID:    claims.UserID,
		ExpiresAt: claims.ExpiresAt.Time,
	}); err != nil {
		return NewInternalError("failed to revoke token", err)
	}

	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := c.Bind(&req); err == nil && req.RefreshToken != "" {
		if rc, err := h.mgr.Parse(req.RefreshToken, auth.KindRefresh); err == nil && rc.UserID == user.ID {
			_ = h.st.Tokens.Revoke(ctx, &models.RevokedToken{
				JTI:       rc.ID,
				UserID:    rc.UserID,
				ExpiresAt: rc.ExpiresAt.Time,
			})
		}
	}

	h.log.Info("user logged out", "source", "auth", "user_id", user.ID)
	return c.JSON(http.StatusOK, map[string]string{"status": "logged out"})
}

// HandleMe returns the authenticated account.
func (h *AuthHandler) HandleMe(c echo.Context) error {
	return c.JSON(http.StatusOK, currentUser(c))
}

// HandleChangePassword verifies the current password, stores the new
// hash and invalidates every outstanding session. A fresh pair is
// returned so the caller stays logged in.
func (h *AuthHandler) HandleChangePassword(c echo.Context) error {
	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	user := currentUser(c)
	if !auth.CheckPassword(user.PasswordHash, req.CurrentPassword) {
		return NewUnauthorizedError("current password is incorrect")
	}
	if len(req.NewPassword) < minPasswordLength {
		return NewValidationError("password must be at least 8 characters")
	}

	hash, err := auth.HashPassword(req.NewPassword, 0)
	if err != nil {
		return NewInternalError("failed to hash password", err)
	}

	ctx := c.Request().Context()
	now := time.Now()
	user.PasswordHash = hash
	if err := h.st.Users.Update(ctx, user); err != nil {
		return storeError(err, "user", user.ID)
	}
	if err := h.st.Tokens.RevokeAllForUser(ctx, user.ID, now.Add(h.mgr.RefreshTTL())); err != nil {
		return NewInternalError("failed to revoke sessions", err)
	}

	pair, err := h.mgr.IssuePair(user, now.Add(time.Second))
	if err != nil {
		return NewInternalError("failed to issue tokens", err)
	}

	h.log.Info("password changed", "source", "auth", "user_id", user.ID)
	return c.JSON(http.StatusOK, tokenResponse{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	})
}

// HandleForgotPassword issues a single-use reset token. The response
// is the same whether or not the account exists; the token itself
// only surfaces in the audit log for an administrator to relay.
func (h *AuthHandler) HandleForgotPassword(c echo.Context) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.Email == "" {
		return NewValidationError("email is required")
	}

	ctx := c.Request().Context()
	if user, err := h.st.Users.GetByEmail(ctx, req.Email); err == nil && user.IsActive {
		raw := uuid.NewString()
		t := &models.PasswordResetToken{
			UserID:    user.ID,
			TokenHash: hashResetToken(raw),
			ExpiresAt: time.Now().Add(h.resetTTL),
		}
		if err := h.st.Tokens.CreateResetToken(ctx, t); err != nil {
			return NewInternalError("failed to create reset token", err)
		}
		h.log.Info("password reset token issued",
			"source", "auth", "user_id", user.ID, "reset_token", raw,
			"expires_at", t.ExpiresAt.Format(time.RFC3339))
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "if the account exists, a reset token has been issued",
	})
}

// HandleValidateResetToken reports whether a reset token is still usable.
func (h *AuthHandler) HandleValidateResetToken(c echo.Context) error {
	var req struct {
		Token string `json:"token"`
	}
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	valid := false
	if req.Token != "" {
		if t, err := h.st.Tokens.GetResetToken(c.Request().Context(), hashResetToken(req.Token)); err == nil {
			valid = t.Usable(time.Now())
		}
	}
	return c.JSON(http.StatusOK, map[string]bool{"valid": valid})
}

// HandleResetPassword redeems a reset token for a new password and
// kills every outstanding session of the account.
func (h *AuthHandler) HandleResetPassword(c echo.Context) error {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.Token == "" {
		return NewValidationError("token is required")
	}
	if len(req.Password) < minPasswordLength {
		return NewValidationError("password must be at least 8 characters")
	}

	ctx := c.Request().Context()
	now := time.Now()
	t, err := h.st.Tokens.GetResetToken(ctx, hashResetToken(req.Token))
	if err != nil || !t.Usable(now) {
		return NewUnauthorizedError("invalid or expired reset token")
	}
	if err := h.st.Tokens.ConsumeResetToken(ctx, t.ID, now); err != nil {
		return NewUnauthorizedError("invalid or expired reset token")
	}

	user, err := h.st.Users.GetByID(ctx, t.UserID)
	if err != nil {
		return NewUnauthorizedError("account no longer available")
	}

	hash, err := auth.HashPassword(req.Password, 0)
	if err != nil {
		return NewInternalError("failed to hash password", err)
	}
	user.PasswordHash = hash
	if err := h.st.Users.Update(ctx, user); err != nil {
		return storeError(err, "user", user.ID)
	}
	if err := h.st.Tokens.RevokeAllForUser(ctx, user.ID, now.Add(h.mgr.RefreshTTL())); err != nil {
		return NewInternalError("failed to revoke sessions", err)
	}

	h.log.Info("password reset completed", "source", "auth", "user_id", user.ID)
	return c.JSON(http.StatusOK, map[string]string{"status": "password updated"})
}

func hashResetToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
