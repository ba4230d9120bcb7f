package services

import (
	"pixelmint_go_backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultHistoryStore implements HistoryStore on gorm.
type DefaultHistoryStore struct {
	db *gorm.DB
}

func NewHistoryStoreDB(db *gorm.DB) HistoryStore {
	return &DefaultHistoryStore{db: db}
}

func (s *DefaultHistoryStore) Create(h *models.ImageHistory) error {
	return s.db.Create(h).Error
}

func (s *DefaultHistoryStore) Save(h *models.ImageHistory) error {
	return s.db.Save(h).Error
}

func (s *DefaultHistoryStore) GetByID(id uint) (*models.ImageHistory, error) {
	var history models.ImageHistory
	result := s.db.First(&history, id)
	if result.Error != nil {
		return nil, result.Error
	}
	return &history, nil
}

func (s *DefaultHistoryStore) GetByIDForUser(id uint, userID uuid.UUID) (*models.ImageHistory, error) {
	var history models.ImageHistory
	result := s.db.Where("id = ? AND user_id = ?", id, userID).First(&history)
	if result.Error != nil {
		return nil, result.Error
	}
	return &history, nil
}

// ListByUser returns one page of a user's history, newest first, along
// with the total row count for pagination.
func (s *DefaultHistoryStore) ListByUser(userID uuid.UUID, page, limit int) ([]models.ImageHistory, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	var total int64
	if err := s.db.Model(&models.ImageHistory{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var histories []models.ImageHistory
	result := s.db.Where("user_id = ?", userID).
		Order("created_at desc").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&histories)
	if result.Error != nil {
		return nil, 0, result.Error
	}
	return histories, total, nil
}

func (s *DefaultHistoryStore) ListAllByUser(userID uuid.UUID) ([]models.ImageHistory, error) {
	var histories []models.ImageHistory
	result := s.db.Where("user_id = ?", userID).Order("created_at desc").Find(&histories)
	if result.Error != nil {
		return nil, result.Error
	}
	return histories, nil
}

func (s *DefaultHistoryStore) Delete(id uint) error {
	return s.db.Delete(&models.ImageHistory{}, id).Error
}
