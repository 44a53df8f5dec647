package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/payrelay/payrelay-backend/pkg/enums"
)

// Notification stores per-recipient notification records produced by the
// dispatcher. TransactionReference is denormalized so list views avoid a join.
type Notification struct {
	ID                   uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RecipientUserID      uuid.UUID                `gorm:"column:recipient_user_id;type:uuid;not null;index"`
	Type                 enums.NotificationType   `gorm:"column:type;type:notification_type;not null"`
	Title                string                   `gorm:"column:title;type:text;not null"`
	Message              string                   `gorm:"column:message;type:text;not null"`
	TransactionID        *uuid.UUID               `gorm:"column:transaction_id;type:uuid;index"`
	TransactionReference *string                  `gorm:"column:transaction_reference;type:text"`
	Status               enums.NotificationStatus `gorm:"column:status;type:notification_status;not null;default:'pending'"`
	SentAt               *time.Time               `gorm:"column:sent_at"`
	DeliveredAt          *time.Time               `gorm:"column:delivered_at"`
	ReadAt               *time.Time               `gorm:"column:read_at"`
	CreatedAt            time.Time                `gorm:"column:created_at;autoCreateTime"`
}
