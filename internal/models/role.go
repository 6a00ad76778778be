package models

import (
	"time"

	"gorm.io/gorm"
)

// Role is a named set of "<model>:<action>" permissions (admin, editor, viewer).
type Role struct {
	ID          uint           `gorm:"primarykey" json:"id"`
	Name        string         `gorm:"uniqueIndex;not null" json:"name"`
	Description string         `json:"description"`
	Permissions []string       `gorm:"serializer:json;type:text" json:"permissions"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}
