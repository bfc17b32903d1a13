package models

import "time"

// Role controls what a user may do. Mirrors the plant hierarchy:
// operators record, supervisors approve, managers administer, clients read.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleManager    Role = "manager"
	RoleSupervisor Role = "supervisor"
	RoleOperator   Role = "operator"
	RoleClient     Role = "client"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleManager, RoleSupervisor, RoleOperator, RoleClient:
		return true
	}
	return false
}

// CanLogEntries reports whether the role may create or edit records.
func (r Role) CanLogEntries() bool {
	return r == RoleSuperAdmin || r == RoleManager || r == RoleOperator
}

// CanApprove reports whether the role may approve or reject records.
func (r Role) CanApprove() bool {
	return r == RoleSuperAdmin || r == RoleManager || r == RoleSupervisor
}

// CanManageUsers reports whether the role may administer user accounts.
func (r Role) CanManageUsers() bool {
	return r == RoleSuperAdmin || r == RoleManager
}

// User is an account in the logbook system. Accounts are soft-deleted so
// historical records keep a resolvable operator reference.
type User struct {
	ID           string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Email        string     `json:"email" gorm:"uniqueIndex"`
	Name         string     `json:"name"`
	Role         Role       `json:"role" gorm:"type:varchar(20);default:operator"`
	PasswordHash string     `json:"-"`
	IsActive     bool       `json:"isActive" gorm:"default:true"`
	IsDeleted    bool       `json:"isDeleted" gorm:"default:false;index"`
	DeletedAt    *time.Time `json:"deletedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// DisplayName returns the operator name stamped onto records.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// PasswordResetToken is a single-use, short-lived reset credential.
// Only the SHA-256 of the raw token is stored.
type PasswordResetToken struct {
	ID        string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID    string     `json:"userId" gorm:"type:varchar(36);index"`
	TokenHash string     `json:"-" gorm:"uniqueIndex"`
	ExpiresAt time.Time  `json:"expiresAt"`
	UsedAt    *time.Time `json:"usedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Usable reports whether the token can still redeem a password reset.
func (t *PasswordResetToken) Usable(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}

// RevokedToken records a refresh-token JTI invalidated by logout or
// password reset. Rows are pruned once the token would have expired anyway.
type RevokedToken struct {
	JTI       string    `json:"jti" gorm:"primaryKey;type:varchar(64)"`
	UserID    string    `json:"userId" gorm:"type:varchar(36);index"`
	ExpiresAt time.Time `json:"expiresAt" gorm:"index"`
	CreatedAt time.Time `json:"createdAt"`
}
