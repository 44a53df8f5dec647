package controllers

import (
	"net/http"

	"github.com/payrelay/payrelay-backend/api/responses"
	"github.com/payrelay/payrelay-backend/api/validators"
	"github.com/payrelay/payrelay-backend/internal/transactions"
	"github.com/payrelay/payrelay-backend/pkg/enums"
	pkgerrors "github.com/payrelay/payrelay-backend/pkg/errors"
	"github.com/payrelay/payrelay-backend/pkg/logger"
	"github.com/payrelay/payrelay-backend/pkg/types"
)

type adminTransactionDetailResponse struct {
	Transaction transactions.Response `json:"transaction"`
	Claimed     bool                  `json:"claimed"`
}

type completeTransactionRequest struct {
	CompletionDocument *types.DocumentRef `json:"completion_document,omitempty"`
	Notes              *string            `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

type failTransactionRequest struct {
	FailureReason string  `json:"failure_reason" validate:"required,max=500"`
	Notes         *string `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// AdminListTransactions returns all transactions with optional filters.
func AdminListTransactions(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transactions service unavailable"))
			return
		}

		input, err := parseTransactionListInput(r, nil)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, transactionListResponse{
			Items:      transactions.ToResponseList(result.Transactions),
			NextCursor: result.NextCursor,
		})
	}
}

// AdminTransactionDetail returns a transaction and, when it is still pending,
// claims it for the viewing admin. Claimed reports whether this request won
// the claim.
func AdminTransactionDetail(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transactions service unavailable"))
			return
		}

		adminID, _, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		transactionID, err := parseTransactionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.ViewAsAdmin(r.Context(), adminID, transactionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, adminTransactionDetailResponse{
			Transaction: transactions.ToResponse(view.Transaction),
			Claimed:     view.Claimed,
		})
	}
}

// AdminCompleteTransaction moves a processing transaction to completed.
func AdminCompleteTransaction(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transactions service unavailable"))
			return
		}

		adminID, role, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		transactionID, err := parseTransactionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body completeTransactionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		txn, err := svc.Transition(r.Context(), transactions.TransitionInput{
			TransactionID:      transactionID,
			Target:             enums.TransactionStatusCompleted,
			ActorID:            adminID,
			ActorRole:          role,
			Notes:              body.Notes,
			CompletionDocument: body.CompletionDocument,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, transactions.ToResponse(txn))
	}
}

// AdminFailTransaction moves a pending or processing transaction to failed.
func AdminFailTransaction(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transactions service unavailable"))
			return
		}

		adminID, role, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		transactionID, err := parseTransactionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body failTransactionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		txn, err := svc.Transition(r.Context(), transactions.TransitionInput{
			TransactionID: transactionID,
			Target:        enums.TransactionStatusFailed,
			ActorID:       adminID,
			ActorRole:     role,
			Notes:         body.Notes,
			FailureReason: &body.FailureReason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, transactions.ToResponse(txn))
	}
}
