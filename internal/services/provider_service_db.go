package services

import (
	"context"
	"time"

	"pixelmint_go_backend/internal/models"

	"gorm.io/gorm"
)

// DefaultProviderStore implements ProviderStore on gorm.
type DefaultProviderStore struct {
	db *gorm.DB
}

func NewProviderStoreDB(db *gorm.DB) ProviderStore {
	return &DefaultProviderStore{db: db}
}

func (s *DefaultProviderStore) List() ([]models.ProviderConfig, error) {
	var providers []models.ProviderConfig
	result := s.db.Order("id asc").Find(&providers)
	if result.Error != nil {
		return nil, result.Error
	}
	return providers, nil
}

// ListActive returns active providers in stable catalog order, which the
// selection algorithm relies on for its unranked tie-break.
func (s *DefaultProviderStore) ListActive() ([]models.ProviderConfig, error) {
	var providers []models.ProviderConfig
	result := s.db.Where("is_active = ?", true).Order("id asc").Find(&providers)
	if result.Error != nil {
		return nil, result.Error
	}
	return providers, nil
}

func (s *DefaultProviderStore) GetByName(name string) (*models.ProviderConfig, error) {
	var provider models.ProviderConfig
	result := s.db.Where("name = ?", name).First(&provider)
	if result.Error != nil {
		return nil, result.Error
	}
	return &provider, nil
}

// IncrementUsage applies the increment inside the database so concurrent
// successful generations against the same provider never lose an update.
func (s *DefaultProviderStore) IncrementUsage(ctx context.Context, name string) error {
	result := s.db.WithContext(ctx).Model(&models.ProviderConfig{}).
		Where("name = ?", name).
		UpdateColumn("usage_count", gorm.Expr("usage_count + ?", 1))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// AddCredits raises a provider's credit ceiling, used by quota top-ups.
func (s *DefaultProviderStore) AddCredits(name string, credits int64) error {
	result := s.db.Model(&models.ProviderConfig{}).
		Where("name = ?", name).
		UpdateColumn("quota_credits", gorm.Expr("COALESCE(quota_credits, 0) + ?", credits))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *DefaultProviderStore) TouchChecked(name string) error {
	now := time.Now().UTC()
	return s.db.Model(&models.ProviderConfig{}).
		Where("name = ?", name).
		Update("last_checked", now).Error
}

func (s *DefaultProviderStore) Update(p *models.ProviderConfig) error {
	return s.db.Save(p).Error
}
