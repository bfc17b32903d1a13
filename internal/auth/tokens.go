// Package auth issues and verifies the JWT pair used by the API:
// short-lived access tokens presented on every request, and refresh
// tokens redeemed for new pairs. Every token carries a JTI so that
// logout and password resets can revoke it server-side.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/facility-logbook/backend/internal/models"
)

// Issuer identifies tokens minted by this service.
const Issuer = "facility-logbook"

// TokenKind distinguishes the two halves of the token pair.
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

var (
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrWrongKind    = errors.New("auth: wrong token kind")
)

// Claims is the JWT payload for both token kinds.
type Claims struct {
	UserID string      `json:"uid"`
	Role   models.Role `json:"role"`
	Name   string      `json:"name"`
	Kind   TokenKind   `json:"kind"`
	jwt.RegisteredClaims
}

// Manager signs and parses tokens with a single HMAC secret.
type Manager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewManager creates a token manager. TTLs of zero fall back to
// 60 minutes for access and 7 days for refresh tokens.
func NewManager(secret string, accessTTL, refreshTTL time.Duration) *Manager {
	if accessTTL <= 0 {
		accessTTL = time.Hour
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &Manager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// TokenPair is what a successful login or refresh returns.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// IssuePair mints a fresh access/refresh pair for the user.
func (m *Manager) IssuePair(u *models.User, now time.Time) (*TokenPair, error) {
	access, err := m.issue(u, KindAccess, now, m.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := m.issue(u, KindRefresh, now, m.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(m.accessTTL.Seconds()),
	}, nil
}

func (m *Manager) issue(u *models.User, kind TokenKind, now time.Time, ttl time.Duration) (string, error) {
	claims := Claims{
		UserID: u.ID,
		Role:   u.Role,
		Name:   u.DisplayName(),
		Kind:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   u.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, nil
}

// Parse validates signature, expiry and issuer, and checks the token
// is of the expected kind.
func (m *Manager) Parse(tokenString string, kind TokenKind) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(Issuer))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Kind != kind {
		return nil, ErrWrongKind
	}
	return claims, nil
}

// RefreshTTL exposes the refresh lifetime, for revocation records.
func (m *Manager) RefreshTTL() time.Duration { return m.refreshTTL }

// AccessTTL exposes the access lifetime.
func (m *Manager) AccessTTL() time.Duration { return m.accessTTL }
