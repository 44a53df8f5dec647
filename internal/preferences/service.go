package preferences

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/payrelay/payrelay-backend/pkg/db/models"
	"github.com/payrelay/payrelay-backend/pkg/enums"
	pkgerrors "github.com/payrelay/payrelay-backend/pkg/errors"
)

// UpdateInput carries the switches a user may flip. Nil leaves a switch as-is.
type UpdateInput struct {
	UserID                  uuid.UUID
	PushTransactionCreated  *bool
	PushTransactionUpdated  *bool
	PushTransactionComplete *bool
	AdminNewTransactions    *bool
}

// Service defines preference read/write operations.
type Service interface {
	GetForUser(ctx context.Context, userID uuid.UUID) (*models.NotificationPreference, error)
	Update(ctx context.Context, input UpdateInput) (*models.NotificationPreference, error)
	AllowsStatusPush(ctx context.Context, userID uuid.UUID, status enums.TransactionStatus) (bool, error)
}

type service struct {
	repo Repository
}

// NewService wires the preferences service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "preferences repository required")
	}
	return &service{repo: repo}, nil
}

// defaults returns the everything-on preference row for users without one.
func defaults(userID uuid.UUID) *models.NotificationPreference {
	return &models.NotificationPreference{
		UserID:                  userID,
		PushTransactionCreated:  true,
		PushTransactionUpdated:  true,
		PushTransactionComplete: true,
		AdminNewTransactions:    true,
	}
}

func (s *service) GetForUser(ctx context.Context, userID uuid.UUID) (*models.NotificationPreference, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	prefs, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return defaults(userID), nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load preferences")
	}
	return prefs, nil
}

func (s *service) Update(ctx context.Context, input UpdateInput) (*models.NotificationPreference, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	prefs, err := s.repo.FindByUser(ctx, input.UserID)
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load preferences")
		}
		prefs = defaults(input.UserID)
	}

	if input.PushTransactionCreated != nil {
		prefs.PushTransactionCreated = *input.PushTransactionCreated
	}
	if input.PushTransactionUpdated != nil {
		prefs.PushTransactionUpdated = *input.PushTransactionUpdated
	}
	if input.PushTransactionComplete != nil {
		prefs.PushTransactionComplete = *input.PushTransactionComplete
	}
	if input.AdminNewTransactions != nil {
		prefs.AdminNewTransactions = *input.AdminNewTransactions
	}

	saved, err := s.repo.Save(ctx, prefs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save preferences")
	}
	return saved, nil
}

// AllowsStatusPush resolves whether the user accepts a push for the given
// committed status. Completed has its own switch; the rest share the
// updated switch.
func (s *service) AllowsStatusPush(ctx context.Context, userID uuid.UUID, status enums.TransactionStatus) (bool, error) {
	prefs, err := s.GetForUser(ctx, userID)
	if err != nil {
		return false, err
	}
	if status == enums.TransactionStatusCompleted {
		return prefs.PushTransactionComplete, nil
	}
	return prefs.PushTransactionUpdated, nil
}
