package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the storefront account consulted for delivery defaults.
type User struct {
	ID                   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email                string    `gorm:"type:text;not null;uniqueIndex"`
	Phone                *string   `gorm:"column:phone"`
	DisplayName          string    `gorm:"column:display_name;not null;default:''"`
	SavedEmail           *string   `gorm:"column:saved_email"`
	SavedMessagingHandle *string   `gorm:"column:saved_messaging_handle"`
	CreatedAt            time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
