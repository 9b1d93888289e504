package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// AuditLog is an append-only record of a mutating operation. It doubles as
// the activity feed surfaced to callers; correctness never depends on it.
type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey"`
	ActorID    string            `gorm:"type:text;index"`
	ActorName  string            `gorm:"type:text"`
	Action     string            `gorm:"type:text;not null;index"`
	TargetType string            `gorm:"type:text;not null;index"`
	TargetID   *string           `gorm:"type:text;index"`
	Metadata   datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'"`
	IPAddress  string            `gorm:"type:text"`
	UserAgent  string            `gorm:"type:text"`
	CreatedAt  time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (AuditLog) TableName() string { return "audit_logs" }
