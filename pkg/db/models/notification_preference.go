package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationPreference holds the per-user opt-in switches. A missing row
// means defaults: everything on.
type NotificationPreference struct {
	ID                      uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID                  uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	PushTransactionCreated  bool      `gorm:"column:push_transaction_created;not null;default:true"`
	PushTransactionUpdated  bool      `gorm:"column:push_transaction_updated;not null;default:true"`
	PushTransactionComplete bool      `gorm:"column:push_transaction_complete;not null;default:true"`
	AdminNewTransactions    bool      `gorm:"column:admin_new_transactions;not null;default:true"`
	CreatedAt               time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt               time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
