package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditLog is one recorded user action. Rows are written once and never updated.
type AuditLog struct {
	ID         string            `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID     string            `gorm:"type:varchar(64);not null;index" json:"user_id"`
	UserEmail  string            `json:"user_email,omitempty"`
	Action     string            `gorm:"type:varchar(16);not null;index" json:"action"` // create, update, delete, view, login, logout
	EntityType string            `gorm:"not null;index:idx_audit_entity" json:"entity_type"`
	EntityID   string            `gorm:"index:idx_audit_entity" json:"entity_id,omitempty"`
	EntityName string            `json:"entity_name,omitempty"`
	Changes    datatypes.JSONMap `json:"changes,omitempty"`
	IPAddress  string            `gorm:"type:varchar(64)" json:"ip_address,omitempty"`
	UserAgent  string            `json:"user_agent,omitempty"`
	CreatedAt  time.Time         `gorm:"not null;index" json:"created_at"`
}

// TableName pins the table used by the audit viewer.
func (AuditLog) TableName() string { return "audit_logs" }

// BeforeCreate hook to generate UUID
func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
