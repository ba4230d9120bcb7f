package services

import (
	"pixelmint_go_backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultUserStore implements UserStore on gorm.
type DefaultUserStore struct {
	db *gorm.DB
}

func NewUserStoreDB(db *gorm.DB) *DefaultUserStore {
	return &DefaultUserStore{db: db}
}

func (s *DefaultUserStore) GetByID(id uuid.UUID) (*models.User, error) {
	var user models.User
	result := s.db.Where("id = ?", id).First(&user)
	if result.Error != nil {
		return nil, result.Error
	}
	return &user, nil
}

func (s *DefaultUserStore) GetByEmail(email string) (*models.User, error) {
	var user models.User
	result := s.db.Where("email = ?", email).First(&user)
	if result.Error != nil {
		return nil, result.Error
	}
	return &user, nil
}

// UpdatePreferences stores the user's provider preference inputs.
func (s *DefaultUserStore) UpdatePreferences(id uuid.UUID, preferredProvider string, prioritizeFree bool) error {
	return s.db.Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"preferred_provider": preferredProvider,
			"prioritize_free":    prioritizeFree,
		}).Error
}
