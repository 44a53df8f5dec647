package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/payrelay/payrelay-backend/pkg/enums"
	"github.com/payrelay/payrelay-backend/pkg/types"
)

// Transaction is the payment lifecycle aggregate. Status moves along the
// lifecycle graph only; ProcessingAdminID is set exactly once, by the first
// admin whose claim lands.
type Transaction struct {
	ID                uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ReferenceNumber   string                  `gorm:"column:reference_number;type:text;not null;uniqueIndex"`
	UserID            uuid.UUID               `gorm:"column:user_id;type:uuid;not null;index"`
	ProcessingAdminID *uuid.UUID              `gorm:"column:processing_admin_id;type:uuid"`
	Status            enums.TransactionStatus `gorm:"column:status;type:transaction_status;not null;default:'pending';index"`
	Amount            decimal.Decimal         `gorm:"column:amount;type:numeric(18,2);not null"`
	Currency          enums.Currency          `gorm:"column:currency;type:text;not null;default:'USD'"`
	Description       string                  `gorm:"column:description;type:text;not null"`
	Notes             *string                 `gorm:"column:notes"`
	FailureReason     *string                 `gorm:"column:failure_reason"`
	ReceiverName      string                  `gorm:"column:receiver_name;type:text;not null"`
	ReceiverAccount   string                  `gorm:"column:receiver_account;type:text;not null"`
	ReceiverBank      *string                 `gorm:"column:receiver_bank"`
	Documents         types.DocumentList      `gorm:"column:documents;type:jsonb;serializer:json"`
	ProcessedAt       *time.Time              `gorm:"column:processed_at"`
	CompletedAt       *time.Time              `gorm:"column:completed_at"`
	CreatedAt         time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
