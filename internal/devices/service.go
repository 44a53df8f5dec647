package devices

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/payrelay/payrelay-backend/pkg/db/models"
	"github.com/payrelay/payrelay-backend/pkg/enums"
	pkgerrors "github.com/payrelay/payrelay-backend/pkg/errors"
)

// RegisterInput carries a device registration request.
type RegisterInput struct {
	UserID     uuid.UUID
	Token      string
	DeviceType enums.DeviceType
	Name       *string
}

// Service defines device registration operations.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*models.FCMDevice, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.FCMDevice, error)
	Deactivate(ctx context.Context, userID, deviceID uuid.UUID) error
}

type service struct {
	repo Repository
}

// NewService wires the devices service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "devices repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Register(ctx context.Context, input RegisterInput) (*models.FCMDevice, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if strings.TrimSpace(input.Token) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "device token required")
	}
	if !input.DeviceType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid device type")
	}

	device := &models.FCMDevice{
		UserID:     input.UserID,
		Token:      strings.TrimSpace(input.Token),
		DeviceType: input.DeviceType,
		Name:       input.Name,
		IsActive:   true,
		LastUsedAt: time.Now(),
	}
	row, err := s.repo.Upsert(ctx, device)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "register device")
	}
	return row, nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.FCMDevice, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list devices")
	}
	return rows, nil
}

func (s *service) Deactivate(ctx context.Context, userID, deviceID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if deviceID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "device id required")
	}

	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load devices")
	}
	for _, device := range rows {
		if device.ID == deviceID {
			if err := s.repo.Deactivate(ctx, deviceID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate device")
			}
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeNotFound, "device not found")
}
