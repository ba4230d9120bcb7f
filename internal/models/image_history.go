package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	GenerationStatusPending   = "pending"
	GenerationStatusCompleted = "completed"
	GenerationStatusFailed    = "failed"
)

// ImageHistory is the single record of an in-flight generation request.
// It is created on the first provider attempt and mutated in place on
// every subsequent attempt, never re-created per attempt.
type ImageHistory struct {
	gorm.Model
	UserID       uuid.UUID `gorm:"type:uuid;index"`
	Prompt       string    `gorm:"not null"`
	Parameters   []byte    // JSON-encoded generation parameters
	ProviderUsed string    `gorm:"not null"`
	ImageURL     string
	Status       string `gorm:"not null;default:'pending'"`
	Cost         float64
	ErrorMessage string
}
