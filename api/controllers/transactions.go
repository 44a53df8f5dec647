package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/payrelay/payrelay-backend/api/middleware"
	"github.com/payrelay/payrelay-backend/api/responses"
	"github.com/payrelay/payrelay-backend/api/validators"
	"github.com/payrelay/payrelay-backend/internal/transactions"
	"github.com/payrelay/payrelay-backend/pkg/enums"
	pkgerrors "github.com/payrelay/payrelay-backend/pkg/errors"
	"github.com/payrelay/payrelay-backend/pkg/logger"
	"github.com/payrelay/payrelay-backend/pkg/pagination"
	"github.com/payrelay/payrelay-backend/pkg/types"
)

type createTransactionRequest struct {
	Amount          decimal.Decimal    `json:"amount" validate:"required"`
	Currency        string             `json:"currency" validate:"required"`
	Description     string             `json:"description" validate:"required,max=500"`
	ReceiverName    string             `json:"receiver_name" validate:"required,max=120"`
	ReceiverAccount string             `json:"receiver_account" validate:"required,max=64"`
	ReceiverBank    *string            `json:"receiver_bank,omitempty" validate:"omitempty,max=120"`
	Documents       types.DocumentList `json:"documents,omitempty"`
}

type transactionListResponse struct {
	Items      []transactions.Response `json:"items"`
	NextCursor string                  `json:"next_cursor,omitempty"`
}

func actorFromContext(r *http.Request) (uuid.UUID, enums.SystemRole, error) {
	rawID := middleware.UserIDFromContext(r.Context())
	userID, err := uuid.Parse(rawID)
	if err != nil {
		return uuid.Nil, "", pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid actor")
	}
	role, err := enums.ParseSystemRole(middleware.RoleFromContext(r.Context()))
	if err != nil {
		return uuid.Nil, "", pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid actor role")
	}
	return userID, role, nil
}

func parseTransactionID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "transactionId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid transaction id")
	}
	return id, nil
}

func parseTransactionListInput(r *http.Request, userID *uuid.UUID) (transactions.ListInput, error) {
	var input transactions.ListInput
	input.Filter.UserID = userID

	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return input, err
	}
	input.Page = pagination.Params{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := enums.ParseTransactionStatus(raw)
		if err != nil {
			return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		input.Filter.Status = &status
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("currency")); raw != "" {
		currency, err := enums.ParseCurrency(raw)
		if err != nil {
			return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid currency filter")
		}
		input.Filter.Currency = &currency
	}
	return input, nil
}

// CreateTransaction opens a pending transaction for the authenticated user.
func CreateTransaction(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transactions service unavailable"))
			return
		}

		userID, _, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createTransactionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		currency, err := enums.ParseCurrency(body.Currency)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid currency"))
			return
		}

		txn, err := svc.Create(r.Context(), transactions.CreateInput{
			UserID:          userID,
			Amount:          body.Amount,
			Currency:        currency,
			Description:     body.Description,
			ReceiverName:    body.ReceiverName,
			ReceiverAccount: body.ReceiverAccount,
			ReceiverBank:    body.ReceiverBank,
			Documents:       body.Documents,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, transactions.ToResponse(txn))
	}
}

// ListTransactions returns the authenticated user's transactions.
func ListTransactions(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transactions service unavailable"))
			return
		}

		userID, _, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := parseTransactionListInput(r, &userID)
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

// TransactionDetail returns one of the user's own transactions.
func TransactionDetail(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transactions service unavailable"))
			return
		}

		userID, _, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		transactionID, err := parseTransactionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		txn, err := svc.ViewAsOwner(r.Context(), userID, transactionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, transactions.ToResponse(txn))
	}
}

// CancelTransaction cancels one of the user's own pending transactions.
func CancelTransaction(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transactions service unavailable"))
			return
		}

		userID, role, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		transactionID, err := parseTransactionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		txn, err := svc.Transition(r.Context(), transactions.TransitionInput{
			TransactionID: transactionID,
			Target:        enums.TransactionStatusCancelled,
			ActorID:       userID,
			ActorRole:     role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, transactions.ToResponse(txn))
	}
}
