package store

import (
	"gorm.io/gorm"

	"accord/backend/go/internal/models"
	"accord/backend/go/internal/user_service/service"
)

// Store wraps all database operations of the user service.
type Store struct {
	DB *gorm.DB
}

var _ service.UserStore = (*Store)(nil)

// NewStore creates a new Store instance.
func NewStore(db *gorm.DB) *Store {
	return &Store{DB: db}
}

// Migrate creates or updates the user, role and permission tables and makes
// sure the built-in roles exist.
func (s *Store) Migrate() error {
	if err := s.DB.AutoMigrate(&models.User{}, &models.AuthRole{}, &models.Permission{}); err != nil {
		return err
	}
	if err := s.EnsureRole(models.RoleMember, "Default role for new accounts"); err != nil {
		return err
	}
	return s.EnsureRole(models.RoleAdmin, "Full access to administrative endpoints")
}

// --- Role Management ---

// EnsureRole creates the named role if it does not exist yet.
func (s *Store) EnsureRole(name, description string) error {
	role := models.AuthRole{Name: name, Description: description}
	return s.DB.Where("name = ?", name).FirstOrCreate(&role).Error
}

// GetRoleByName looks a role up by name.
func (s *Store) GetRoleByName(name string) (*models.AuthRole, error) {
	var role models.AuthRole
	if err := s.DB.Where("name = ?", name).First(&role).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

// DeleteRole removes a role.
func (s *Store) DeleteRole(roleID uint) error {
	return s.DB.Delete(&models.AuthRole{}, roleID).Error
}

// --- Permission Management ---

// CreatePermission creates a new permission.
func (s *Store) CreatePermission(permission *models.Permission) error {
	return s.DB.Create(permission).Error
}

// DeletePermission removes a permission.
func (s *Store) DeletePermission(permissionID uint) error {
	return s.DB.Delete(&models.Permission{}, permissionID).Error
}

// --- Role-Permission Association ---

// AddPermissionToRole grants a permission to a role.
func (s *Store) AddPermissionToRole(roleID, permissionID uint) error {
	role := &models.AuthRole{Model: gorm.Model{ID: roleID}}
	permission := &models.Permission{Model: gorm.Model{ID: permissionID}}
	return s.DB.Model(role).Association("Permissions").Append(permission)
}

// RemovePermissionFromRole revokes a permission from a role.
func (s *Store) RemovePermissionFromRole(roleID, permissionID uint) error {
	role := &models.AuthRole{Model: gorm.Model{ID: roleID}}
	permission := &models.Permission{Model: gorm.Model{ID: permissionID}}
	return s.DB.Model(role).Association("Permissions").Delete(permission)
}

// --- User-Role Association ---

// AssignRoleToUser adds the named role to a user.
func (s *Store) AssignRoleToUser(userID uint, roleName string) error {
	role, err := s.GetRoleByName(roleName)
	if err != nil {
		return err
	}
	user := &models.User{Model: gorm.Model{ID: userID}}
	return s.DB.Model(user).Association("Roles").Append(role)
}

// RevokeRoleFromUser removes the named role from a user.
func (s *Store) RevokeRoleFromUser(userID uint, roleName string) error {
	role, err := s.GetRoleByName(roleName)
	if err != nil {
		return err
	}
	user := &models.User{Model: gorm.Model{ID: userID}}
	return s.DB.Model(user).Association("Roles").Delete(role)
}

// GetUserRoles returns all roles held by a user.
func (s *Store) GetUserRoles(userID uint) ([]*models.AuthRole, error) {
	var user models.User
	if err := s.DB.Preload("Roles").First(&user, userID).Error; err != nil {
		return nil, err
	}
	return user.Roles, nil
}

// GetUserPermissions returns the deduplicated permissions a user holds
// through all of their roles.
func (s *Store) GetUserPermissions(userID uint) ([]*models.Permission, error) {
	var user models.User
	if err := s.DB.Preload("Roles.Permissions").First(&user, userID).Error; err != nil {
		return nil, err
	}

	permissionMap := make(map[uint]*models.Permission)
	for _, role := range user.Roles {
		for _, perm := range role.Permissions {
			permissionMap[perm.ID] = perm
		}
	}

	permissions := make([]*models.Permission, 0, len(permissionMap))
	for _, perm := range permissionMap {
		permissions = append(permissions, perm)
	}

	return permissions, nil
}
