package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/facility-logbook/backend/internal/models"
)

// TokenStore persists password-reset tokens and the refresh-token
// denylist.
type TokenStore struct {
	db *gorm.DB
}

// CreateResetToken stores a new reset token (hash only).
func (s *TokenStore) CreateResetToken(ctx context.Context, t *models.PasswordResetToken) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return wrapErr(s.db.WithContext(ctx).Create(t).Error)
}

// GetResetToken looks a token up by its hash.
func (s *TokenStore) GetResetToken(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error) {
	var t models.PasswordResetToken
	err := s.db.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&t).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	return &t, nil
}

// ConsumeResetToken marks a token used. Only one caller wins.
func (s *TokenStore) ConsumeResetToken(ctx context.Context, id string, now time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.PasswordResetToken{}).
		Where("id = ? AND used_at IS NULL", id).
		Update("used_at", now)
	if res.Error != nil {
		return wrapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteExpiredResetTokens clears tokens past their expiry.
func (s *TokenStore) DeleteExpiredResetTokens(ctx context.Context, now time.Time) error {
	return wrapErr(s.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&models.PasswordResetToken{}).Error)
}

// Revoke adds a refresh-token JTI to the denylist.
func (s *TokenStore) Revoke(ctx context.Context, t *models.RevokedToken) error {
	// Re-revoking the same JTI is a no-op, not an error.
	err := wrapErr(s.db.WithContext(ctx).Create(t).Error)
	if err == ErrDuplicate {
		return nil
	}
	return err
}

// RevokeAllForUser denylists every outstanding refresh token a user
// holds, keyed by a wildcard row. Called on password reset.
func (s *TokenStore) RevokeAllForUser(ctx context.Context, userID string, until time.Time) error {
	t := &models.RevokedToken{
		JTI:       "user:" + userID,
		UserID:    userID,
		ExpiresAt: until,
	}
	err := s.db.WithContext(ctx).Save(t).Error
	return wrapErr(err)
}

// IsRevoked reports whether a JTI (or the holder's wildcard row issued
// after the token) denies the refresh token.
func (s *TokenStore) IsRevoked(ctx context.Context, jti, userID string, issuedAt time.Time) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.RevokedToken{}).
		Where("jti = ?", jti).
		Count(&n).Error
	if err != nil {
		return false, wrapErr(err)
	}
	if n > 0 {
		return true, nil
	}

	var wild models.RevokedToken
	err = s.db.WithContext(ctx).Where("jti = ?", "user:"+userID).First(&wild).Error
	if err != nil {
		if wrapErr(err) == ErrNotFound {
			return false, nil
		}
		return false, wrapErr(err)
	}
	// The wildcard only covers tokens issued before it was written.
	return issuedAt.Before(wild.CreatedAt), nil
}

// PruneExpired removes denylist rows whose tokens have expired anyway.
func (s *TokenStore) PruneExpired(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&models.RevokedToken{})
	return res.RowsAffected, wrapErr(res.Error)
}
