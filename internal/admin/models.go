package admin

import (
	"time"

	"gorm.io/gorm"
)

// Admin roles.
const (
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

// Admin is an authenticated staff identity. Inactive admins are treated as
// unauthenticated for every settlement operation.
type Admin struct {
	gorm.Model   `json:"-"`
	AdminID      string `gorm:"uniqueIndex" json:"admin_id"`
	Username     string `gorm:"uniqueIndex" json:"username"`
	PasswordHash string `json:"-"`
	Role         string `json:"role"` // admin or super_admin
	IsActive     bool   `json:"is_active"`
}

// IsSuper reports whether this admin bypasses assignment scoping.
func (a *Admin) IsSuper() bool {
	return a.Role == RoleSuperAdmin
}

// InviteCode is an invitation code created by an admin and redeemed by end
// users at registration. Redemption produces the durable edge the
// assignment resolver follows: created_by (admin) -> user (via code).
type InviteCode struct {
	gorm.Model `json:"-"`
	Code       string     `gorm:"uniqueIndex" json:"code"`
	CreatedBy  string     `gorm:"index" json:"created_by"` // AdminID
	UsedCount  int        `json:"used_count"`
	MaxUses    int        `json:"max_uses"`
	ExpiresAt  *time.Time `json:"expires_at"`
}
