package transactions

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/payrelay/payrelay-backend/pkg/db/models"
	"github.com/payrelay/payrelay-backend/pkg/enums"
	"github.com/payrelay/payrelay-backend/pkg/pagination"
	"github.com/payrelay/payrelay-backend/pkg/types"
)

// CreateInput carries the fields needed to open a transaction.
type CreateInput struct {
	UserID          uuid.UUID
	Amount          decimal.Decimal
	Currency        enums.Currency
	Description     string
	ReceiverName    string
	ReceiverAccount string
	ReceiverBank    *string
	Documents       types.DocumentList
}

// TransitionInput captures a requested status change and its actor.
type TransitionInput struct {
	TransactionID      uuid.UUID
	Target             enums.TransactionStatus
	ActorID            uuid.UUID
	ActorRole          enums.SystemRole
	Notes              *string
	FailureReason      *string
	CompletionDocument *types.DocumentRef
}

// ViewResult is the outcome of an admin view. Claimed is true only for the
// request whose claim landed.
type ViewResult struct {
	Transaction *models.Transaction
	Claimed     bool
}

// ListInput filters and paginates transaction listings.
type ListInput struct {
	Filter ListFilter
	Page   pagination.Params
}

// ListResult holds one page plus the cursor for the next one.
type ListResult struct {
	Transactions []models.Transaction
	NextCursor   string
}

// Response is the wire shape returned by controllers.
type Response struct {
	ID                uuid.UUID          `json:"id"`
	ReferenceNumber   string             `json:"referenceNumber"`
	UserID            uuid.UUID          `json:"userId"`
	ProcessingAdminID *uuid.UUID         `json:"processingAdminId,omitempty"`
	Status            string             `json:"status"`
	Amount            decimal.Decimal    `json:"amount"`
	Currency          string             `json:"currency"`
	Description       string             `json:"description"`
	Notes             *string            `json:"notes,omitempty"`
	FailureReason     *string            `json:"failureReason,omitempty"`
	ReceiverName      string             `json:"receiverName"`
	ReceiverAccount   string             `json:"receiverAccount"`
	ReceiverBank      *string            `json:"receiverBank,omitempty"`
	Documents         types.DocumentList `json:"documents,omitempty"`
	ProcessedAt       *time.Time         `json:"processedAt,omitempty"`
	CompletedAt       *time.Time         `json:"completedAt,omitempty"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}

// ToResponse maps the model onto the wire shape.
func ToResponse(txn *models.Transaction) Response {
	return Response{
		ID:                txn.ID,
		ReferenceNumber:   txn.ReferenceNumber,
		UserID:            txn.UserID,
		ProcessingAdminID: txn.ProcessingAdminID,
		Status:            txn.Status.String(),
		Amount:            txn.Amount,
		Currency:          txn.Currency.String(),
		Description:       txn.Description,
		Notes:             txn.Notes,
		FailureReason:     txn.FailureReason,
		ReceiverName:      txn.ReceiverName,
		ReceiverAccount:   txn.ReceiverAccount,
		ReceiverBank:      txn.ReceiverBank,
		Documents:         txn.Documents,
		ProcessedAt:       txn.ProcessedAt,
		CompletedAt:       txn.CompletedAt,
		CreatedAt:         txn.CreatedAt,
		UpdatedAt:         txn.UpdatedAt,
	}
}

// ToResponseList maps a page of models.
func ToResponseList(rows []models.Transaction) []Response {
	out := make([]Response, 0, len(rows))
	for i := range rows {
		out = append(out, ToResponse(&rows[i]))
	}
	return out
}
