package transactions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/payrelay/payrelay-backend/pkg/db"
	"github.com/payrelay/payrelay-backend/pkg/db/models"
	"github.com/payrelay/payrelay-backend/pkg/enums"
	pkgerrors "github.com/payrelay/payrelay-backend/pkg/errors"
	"github.com/payrelay/payrelay-backend/pkg/outbox"
	"github.com/payrelay/payrelay-backend/pkg/pagination"
	"github.com/payrelay/payrelay-backend/pkg/types"
)

const (
	referenceAttempts = 3

	completionDocumentKind = "completion"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service defines transaction lifecycle operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Transaction, error)
	ViewAsOwner(ctx context.Context, userID, transactionID uuid.UUID) (*models.Transaction, error)
	ViewAsAdmin(ctx context.Context, adminID, transactionID uuid.UUID) (*ViewResult, error)
	Transition(ctx context.Context, input TransitionInput) (*models.Transaction, error)
	List(ctx context.Context, input ListInput) (*ListResult, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
}

// NewService builds a transaction service with the required dependencies.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("transactions repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:   repo,
		tx:     tx,
		outbox: outbox,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Transaction, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if !input.Currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid currency")
	}
	if input.Description == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "description required")
	}
	if input.ReceiverName == "" || input.ReceiverAccount == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "receiver name and account required")
	}

	var created *models.Transaction
	for attempt := 0; attempt < referenceAttempts; attempt++ {
		reference, err := newReferenceNumber()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate reference number")
		}

		txn := &models.Transaction{
			ReferenceNumber: reference,
			UserID:          input.UserID,
			Status:          enums.TransactionStatusPending,
			Amount:          input.Amount,
			Currency:        input.Currency,
			Description:     input.Description,
			ReceiverName:    input.ReceiverName,
			ReceiverAccount: input.ReceiverAccount,
			ReceiverBank:    input.ReceiverBank,
			Documents:       input.Documents,
		}

		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			row, err := repo.Create(ctx, txn)
			if err != nil {
				return err
			}
			event := outbox.DomainEvent{
				EventType:     enums.EventTransactionCreated,
				AggregateType: enums.AggregateTransaction,
				AggregateID:   row.ID,
				Version:       1,
				Actor:         buildActor(input.UserID, enums.SystemRoleUser),
				Data: outbox.TransactionCreatedData{
					TransactionID:   row.ID,
					ReferenceNumber: row.ReferenceNumber,
					UserID:          row.UserID,
					Amount:          row.Amount,
					Currency:        row.Currency,
					Description:     row.Description,
				},
			}
			if err := s.outbox.Emit(ctx, tx, event); err != nil {
				return err
			}
			created = row
			return nil
		})
		if err == nil {
			return created, nil
		}
		if dbpkg.IsUniqueViolation(err, "transactions_reference_number_key") {
			continue
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create transaction")
	}
	return nil, pkgerrors.New(pkgerrors.CodeDependency, "could not allocate reference number")
}

func (s *service) ViewAsOwner(ctx context.Context, userID, transactionID uuid.UUID) (*models.Transaction, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if transactionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id required")
	}

	txn, err := s.repo.FindByID(ctx, transactionID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transaction")
	}
	if txn.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "transaction does not belong to user")
	}
	return txn, nil
}

// ViewAsAdmin returns the transaction and, when it is still pending and not
// the viewer's own submission, races to claim it. Losing the race is not an
// error: the loser sees the fresh row with someone else's id on it.
func (s *service) ViewAsAdmin(ctx context.Context, adminID, transactionID uuid.UUID) (*ViewResult, error) {
	if adminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "admin identity missing")
	}
	if transactionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id required")
	}

	txn, err := s.repo.FindByID(ctx, transactionID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transaction")
	}

	// An admin never claims a transaction they submitted themselves.
	if txn.Status != enums.TransactionStatusPending || txn.UserID == adminID {
		return &ViewResult{Transaction: txn}, nil
	}

	claimed := false
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := time.Now()
		affected, err := repo.UpdateConditional(ctx, txn.ID, enums.TransactionStatusPending, map[string]any{
			"status":              enums.TransactionStatusProcessing,
			"processing_admin_id": adminID,
			"processed_at":        now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim transaction")
		}
		if affected == 0 {
			return nil
		}

		fresh, err := repo.FindByID(ctx, txn.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload transaction")
		}
		txn = fresh
		claimed = true

		return s.outbox.Emit(ctx, tx, statusChangedEvent(txn, enums.TransactionStatusPending, adminID, enums.SystemRoleAdmin))
	})
	if err != nil {
		return nil, err
	}

	if !claimed {
		// Claim lost. Hand back whatever the winner left behind.
		fresh, err := s.repo.FindByID(ctx, transactionID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload transaction")
		}
		return &ViewResult{Transaction: fresh}, nil
	}

	return &ViewResult{Transaction: txn, Claimed: true}, nil
}

func (s *service) Transition(ctx context.Context, input TransitionInput) (*models.Transaction, error) {
	if input.TransactionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	if !input.Target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid target status")
	}

	var out *models.Transaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		txn, err := repo.FindByID(ctx, input.TransactionID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transaction")
		}

		if !txn.Status.CanTransitionTo(input.Target) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot move %s transaction to %s", txn.Status, input.Target))
		}

		if err := checkActor(txn, input); err != nil {
			return err
		}

		updates := map[string]any{"status": input.Target}
		if input.Notes != nil {
			updates["notes"] = *input.Notes
		}
		switch input.Target {
		case enums.TransactionStatusCompleted:
			// A proof document must either ride along or already be attached.
			if input.CompletionDocument != nil {
				doc := *input.CompletionDocument
				if doc.Kind == "" {
					doc.Kind = completionDocumentKind
				}
				if doc.UploadedAt.IsZero() {
					doc.UploadedAt = time.Now()
				}
				updates["documents"] = append(txn.Documents, doc)
			} else if !hasCompletionDocument(txn.Documents) {
				return pkgerrors.New(pkgerrors.CodeValidation, "completion document required")
			}
			updates["completed_at"] = time.Now()
		case enums.TransactionStatusFailed:
			if input.FailureReason == nil || *input.FailureReason == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "failure reason required")
			}
			updates["failure_reason"] = *input.FailureReason
		case enums.TransactionStatusProcessing:
			updates["processing_admin_id"] = input.ActorID
			updates["processed_at"] = time.Now()
		}

		affected, err := repo.UpdateConditional(ctx, txn.ID, txn.Status, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update transaction status")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "transaction state changed concurrently")
		}

		oldStatus := txn.Status
		fresh, err := repo.FindByID(ctx, txn.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload transaction")
		}
		out = fresh

		return s.outbox.Emit(ctx, tx, statusChangedEvent(fresh, oldStatus, input.ActorID, input.ActorRole))
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) List(ctx context.Context, input ListInput) (*ListResult, error) {
	cursor, err := pagination.ParseCursor(input.Page.Cursor)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(input.Page.Limit)
	rows, err := s.repo.List(ctx, input.Filter, cursor, pagination.LimitWithBuffer(input.Page.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transactions")
	}

	result := &ListResult{Transactions: rows}
	if len(rows) > limit {
		result.Transactions = rows[:limit]
		last := result.Transactions[limit-1]
		result.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return result, nil
}

func hasCompletionDocument(docs types.DocumentList) bool {
	for _, doc := range docs {
		if doc.Kind == completionDocumentKind {
			return true
		}
	}
	return false
}

// checkActor enforces who may request a given transition. The lifecycle
// legality of the edge itself is already settled by this point.
func checkActor(txn *models.Transaction, input TransitionInput) error {
	switch input.ActorRole {
	case enums.SystemRoleUser:
		if txn.UserID != input.ActorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "transaction does not belong to user")
		}
		if input.Target != enums.TransactionStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeForbidden, "users may only cancel their transactions")
		}
		return nil
	case enums.SystemRoleAdmin:
		// Transitions out of processing belong to the claiming admin.
		if txn.Status == enums.TransactionStatusProcessing {
			if txn.ProcessingAdminID == nil || *txn.ProcessingAdminID != input.ActorID {
				return pkgerrors.New(pkgerrors.CodeForbidden, "transaction is claimed by another admin")
			}
		}
		if input.Target == enums.TransactionStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the owner may cancel a transaction")
		}
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeForbidden, "unknown actor role")
	}
}

func statusChangedEvent(txn *models.Transaction, oldStatus enums.TransactionStatus, actorID uuid.UUID, role enums.SystemRole) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     enums.EventTransactionStatusChanged,
		AggregateType: enums.AggregateTransaction,
		AggregateID:   txn.ID,
		Version:       1,
		Actor:         buildActor(actorID, role),
		Data: outbox.TransactionStatusChangedData{
			TransactionID:   txn.ID,
			ReferenceNumber: txn.ReferenceNumber,
			UserID:          txn.UserID,
			OldStatus:       oldStatus,
			NewStatus:       txn.Status,
			FailureReason:   txn.FailureReason,
		},
	}
}

func buildActor(userID uuid.UUID, role enums.SystemRole) *outbox.ActorRef {
	return &outbox.ActorRef{UserID: userID, Role: string(role)}
}
