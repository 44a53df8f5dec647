package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/payrelay/payrelay-backend/pkg/enums"
)

// FCMDevice is a push registration token owned by a user. Tokens that FCM
// reports as dead are flipped inactive rather than deleted.
type FCMDevice struct {
	ID         uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID     uuid.UUID        `gorm:"column:user_id;type:uuid;not null;index"`
	Token      string           `gorm:"column:token;type:text;not null;uniqueIndex"`
	DeviceType enums.DeviceType `gorm:"column:device_type;type:device_type;not null"`
	Name       *string          `gorm:"column:name"`
	IsActive   bool             `gorm:"column:is_active;not null;default:true"`
	LastUsedAt time.Time        `gorm:"column:last_used_at;autoCreateTime"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
