package controllers

import (
	"net/http"

	"github.com/payrelay/payrelay-backend/api/responses"
	"github.com/payrelay/payrelay-backend/api/validators"
	"github.com/payrelay/payrelay-backend/internal/preferences"
	pkgerrors "github.com/payrelay/payrelay-backend/pkg/errors"
	"github.com/payrelay/payrelay-backend/pkg/logger"
)

type updatePreferencesRequest struct {
	PushTransactionCreated  *bool `json:"push_transaction_created,omitempty"`
	PushTransactionUpdated  *bool `json:"push_transaction_updated,omitempty"`
	PushTransactionComplete *bool `json:"push_transaction_complete,omitempty"`
	AdminNewTransactions    *bool `json:"admin_new_transactions,omitempty"`
}

// GetPreferences returns the user's notification preferences, materializing
// defaults when no row exists yet.
func GetPreferences(svc preferences.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "preferences service unavailable"))
			return
		}

		userID, _, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		prefs, err := svc.GetForUser(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, prefs)
	}
}

// UpdatePreferences flips the provided switches; omitted fields are unchanged.
func UpdatePreferences(svc preferences.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "preferences service unavailable"))
			return
		}

		userID, _, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updatePreferencesRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		prefs, err := svc.Update(r.Context(), preferences.UpdateInput{
			UserID:                  userID,
			PushTransactionCreated:  body.PushTransactionCreated,
			PushTransactionUpdated:  body.PushTransactionUpdated,
			PushTransactionComplete: body.PushTransactionComplete,
			AdminNewTransactions:    body.AdminNewTransactions,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, prefs)
	}
}
