package store

import (
	"time"

	"gorm.io/gorm"

	"accord/backend/go/internal/models"
)

// --- User Management ---

// CreateUser creates a new user and assigns the default member role. Both
// happen in one transaction so a user never exists without a role.
func (s *Store) CreateUser(user *models.User) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}

		var defaultRole models.AuthRole
		err := tx.Where("name = ?", models.RoleMember).First(&defaultRole).Error
		if err == gorm.ErrRecordNotFound {
			defaultRole = models.AuthRole{Name: models.RoleMember, Description: "Default role for new accounts"}
			err = tx.Create(&defaultRole).Error
		}
		if err != nil {
			return err
		}

		return tx.Model(user).Association("Roles").Append(&defaultRole)
	})
}

// GetUserByEmail looks a user up by email address.
func (s *Store) GetUserByEmail(email string) (*models.User, error) {
	var user models.User
	if err := s.DB.Preload("Roles").Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByUsername looks a user up by username.
func (s *Store) GetUserByUsername(username string) (*models.User, error) {
	var user models.User
	if err := s.DB.Preload("Roles").Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByPhone looks a user up by phone number.
func (s *Store) GetUserByPhone(phone string) (*models.User, error) {
	var user models.User
	if err := s.DB.Preload("Roles").Where("phone = ?", phone).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByID looks a user up by ID.
func (s *Store) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	if err := s.DB.Preload("Roles").First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser saves changed user fields.
func (s *Store) UpdateUser(user *models.User) error {
	return s.DB.Save(user).Error
}

// UpdateLastLogin records the time of a successful login.
func (s *Store) UpdateLastLogin(userID uint, at time.Time) error {
	return s.DB.Model(&models.User{}).Where("id = ?", userID).Update("last_login_at", at).Error
}
