package models

import (
	"time"

	"gorm.io/gorm"
)

// ProviderConfig describes one configured image generation backend.
// Name is the stable key; it never changes once a provider is created.
type ProviderConfig struct {
	gorm.Model
	Name           string `gorm:"uniqueIndex;not null"`
	DisplayName    string `gorm:"not null"`
	APIBaseURL     string `gorm:"not null"`
	APIKeyEnvVar   string `gorm:"not null"`
	UsageCount     int64  `gorm:"not null;default:0"`
	QuotaRequests  *int64
	QuotaCredits   *int64
	IsFreeTier     bool `gorm:"not null;default:true"`
	IsActive       bool `gorm:"not null;default:true"`
	Unconstrained  bool `gorm:"not null;default:false"`
	CostPerRequest float64
	CostUnit       string
	LastChecked    *time.Time
}

// QuotaLimit returns the configured ceiling, requests taking precedence
// over credits. A nil result means no ceiling is configured.
func (p *ProviderConfig) QuotaLimit() *int64 {
	if p.QuotaRequests != nil {
		return p.QuotaRequests
	}
	return p.QuotaCredits
}
