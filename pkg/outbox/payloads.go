package outbox

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/payrelay/payrelay-backend/pkg/enums"
)

// TransactionCreatedData is the event body for transaction_created.
type TransactionCreatedData struct {
	TransactionID   uuid.UUID       `json:"transactionId"`
	ReferenceNumber string          `json:"referenceNumber"`
	UserID          uuid.UUID       `json:"userId"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        enums.Currency  `json:"currency"`
	Description     string          `json:"description"`
}

// TransactionStatusChangedData is the event body for transaction_status_changed.
type TransactionStatusChangedData struct {
	TransactionID   uuid.UUID               `json:"transactionId"`
	ReferenceNumber string                  `json:"referenceNumber"`
	UserID          uuid.UUID               `json:"userId"`
	OldStatus       enums.TransactionStatus `json:"oldStatus"`
	NewStatus       enums.TransactionStatus `json:"newStatus"`
	FailureReason   *string                 `json:"failureReason,omitempty"`
}
