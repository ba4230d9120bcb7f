package services

import (
	"pixelmint_go_backend/internal/models"

	"gorm.io/gorm"
)

// DefaultGenerationLogStore implements GenerationLogStore on gorm. The
// trail is append-only; there is deliberately no update or delete.
type DefaultGenerationLogStore struct {
	db *gorm.DB
}

func NewGenerationLogStoreDB(db *gorm.DB) GenerationLogStore {
	return &DefaultGenerationLogStore{db: db}
}

func (s *DefaultGenerationLogStore) AppendStep(historyID uint, step, message string) error {
	entry := &models.GenerationLog{
		HistoryID: historyID,
		Step:      step,
		Message:   message,
	}
	return s.db.Create(entry).Error
}

func (s *DefaultGenerationLogStore) ListByHistory(historyID uint) ([]models.GenerationLog, error) {
	var entries []models.GenerationLog
	result := s.db.Where("history_id = ?", historyID).Order("created_at asc").Find(&entries)
	if result.Error != nil {
		return nil, result.Error
	}
	return entries, nil
}
