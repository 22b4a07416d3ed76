package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// UserStatus is the lifecycle state of a user account.
type UserStatus string

const (
	StatusPending     UserStatus = "pending"     // awaiting activation
	StatusActive      UserStatus = "active"      // account in good standing
	StatusSuspended   UserStatus = "suspended"   // temporarily blocked
	StatusDeactivated UserStatus = "deactivated" // permanently closed
)

// --- RBAC model ---

// Permission is one concrete operation that can be granted, e.g.
// "documents:delete" or "finetune:create".
type Permission struct {
	gorm.Model
	Name        string `gorm:"unique;not null;size:255"`
	Description string `gorm:"size:1024"`
}

// AuthRole is a named set of permissions, e.g. "admin" or "auditor".
type AuthRole struct {
	gorm.Model
	Name        string        `gorm:"unique;not null;size:255"`
	Description string        `gorm:"size:1024"`
	Permissions []*Permission `gorm:"many2many:role_permissions;"`
}

// RoleAdmin guards the administrative surfaces: document deletion, fine-tune
// job management and the model registry. RoleMember is assigned to every new
// account.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// User is one account in the system.
type User struct {
	gorm.Model

	Username  string `gorm:"unique;not null"`
	FullName  string `gorm:"size:255"`
	Email     string `gorm:"uniqueIndex;not null"`
	Phone     string `gorm:"uniqueIndex;size:32"`
	Password  string `gorm:"size:255" json:"-"` // bcrypt hash, never serialized
	AvatarURL string

	Status      UserStatus `gorm:"type:varchar(20);default:'pending';not null"`
	LastLoginAt *time.Time
	Settings    datatypes.JSON

	// A user may hold multiple roles.
	Roles []*AuthRole `gorm:"many2many:user_roles;"`
}

// HasRole reports whether the user holds the named role.
func (u *User) HasRole(name string) bool {
	for _, r := range u.Roles {
		if r != nil && r.Name == name {
			return true
		}
	}
	return false
}

// --- custom table names ---

func (User) TableName() string {
	return "users"
}

func (AuthRole) TableName() string {
	return "roles"
}

func (Permission) TableName() string {
	return "permissions"
}
