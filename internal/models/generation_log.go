package models

import (
	"gorm.io/gorm"
)

// GenerationLog is an append-only audit trail entry for one generation
// request. Rows are never updated or deleted; CreatedAt orders the trail.
type GenerationLog struct {
	gorm.Model
	HistoryID uint   `gorm:"index"`
	Step      string `gorm:"not null"`
	Message   string
}
