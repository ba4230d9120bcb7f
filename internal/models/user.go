package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// PreferredProviderAuto lets the selection algorithm pick freely.
const PreferredProviderAuto = "auto"

type User struct {
	gorm.Model
	ID                uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Email             string    `gorm:"unique;not null"`
	FullName          string
	Role              string `gorm:"not null;default:'user'"`
	PreferredProvider string `gorm:"not null;default:'auto'"`
	PrioritizeFree    bool   `gorm:"not null;default:true"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
	DeletedAt         gorm.DeletedAt `gorm:"index"`
}

// Preferences is the read-only selection input derived from a user row.
type Preferences struct {
	PreferredProvider string
	PrioritizeFree    bool
}

func (u *User) Preferences() Preferences {
	preferred := u.PreferredProvider
	if preferred == "" {
		preferred = PreferredProviderAuto
	}
	return Preferences{PreferredProvider: preferred, PrioritizeFree: u.PrioritizeFree}
}
