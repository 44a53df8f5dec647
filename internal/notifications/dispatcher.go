package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/payrelay/payrelay-backend/pkg/db/models"
	"github.com/payrelay/payrelay-backend/pkg/enums"
	"github.com/payrelay/payrelay-backend/pkg/fcm"
	"github.com/payrelay/payrelay-backend/pkg/logger"
	"github.com/payrelay/payrelay-backend/pkg/metrics"
	"github.com/payrelay/payrelay-backend/pkg/outbox"
)

type adminDirectory interface {
	ListActiveAdmins(ctx context.Context) ([]models.User, error)
}

type preferenceResolver interface {
	GetForUser(ctx context.Context, userID uuid.UUID) (*models.NotificationPreference, error)
	AllowsStatusPush(ctx context.Context, userID uuid.UUID, status enums.TransactionStatus) (bool, error)
}

type deviceDirectory interface {
	ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]models.FCMDevice, error)
	DeactivateByToken(ctx context.Context, token string) error
	TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Dispatcher turns transaction events into persisted notifications and push
// sends. Recipients are resolved at dispatch time, never at emit time.
type Dispatcher struct {
	repo    Repository
	admins  adminDirectory
	prefs   preferenceResolver
	devices deviceDirectory
	sender  fcm.Sender
	metrics *metrics.DispatchMetrics
	logg    *logger.Logger
}

// NewDispatcher builds the dispatcher with its fan-out dependencies.
func NewDispatcher(
	repo Repository,
	admins adminDirectory,
	prefs preferenceResolver,
	devices deviceDirectory,
	sender fcm.Sender,
	dispatchMetrics *metrics.DispatchMetrics,
	logg *logger.Logger,
) (*Dispatcher, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if admins == nil {
		return nil, fmt.Errorf("admin directory required")
	}
	if prefs == nil {
		return nil, fmt.Errorf("preference resolver required")
	}
	if devices == nil {
		return nil, fmt.Errorf("device directory required")
	}
	if sender == nil {
		return nil, fmt.Errorf("push sender required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Dispatcher{
		repo:    repo,
		admins:  admins,
		prefs:   prefs,
		devices: devices,
		sender:  sender,
		metrics: dispatchMetrics,
		logg:    logg,
	}, nil
}

// HandleCreated notifies every active admin who has opted into new-transaction
// alerts. Skipped admins are not an error.
func (d *Dispatcher) HandleCreated(ctx context.Context, data outbox.TransactionCreatedData) error {
	d.metrics.IncHandled(string(enums.EventTransactionCreated))

	admins, err := d.admins.ListActiveAdmins(ctx)
	if err != nil {
		return fmt.Errorf("list admins: %w", err)
	}

	title := "New transaction pending review"
	message := fmt.Sprintf("Transaction %s for %s %s awaits review.",
		data.ReferenceNumber, data.Amount.StringFixed(2), data.Currency)

	var errs error
	for _, admin := range admins {
		prefs, err := d.prefs.GetForUser(ctx, admin.ID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("preferences for %s: %w", admin.ID, err))
			continue
		}
		if !prefs.AdminNewTransactions {
			continue
		}
		if err := d.notify(ctx, admin.ID, enums.NotificationTypeTransactionCreated, title, message, data.TransactionID, data.ReferenceNumber); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// HandleStatusChanged notifies the transaction owner if their preferences
// allow a push for the new status.
func (d *Dispatcher) HandleStatusChanged(ctx context.Context, data outbox.TransactionStatusChangedData) error {
	d.metrics.IncHandled(string(enums.EventTransactionStatusChanged))

	notificationType, ok := enums.NotificationTypeForStatus(data.NewStatus)
	if !ok {
		logCtx := d.logg.WithFields(ctx, map[string]any{"status": data.NewStatus})
		d.logg.Info(logCtx, "status not handled")
		return nil
	}

	allowed, err := d.prefs.AllowsStatusPush(ctx, data.UserID, data.NewStatus)
	if err != nil {
		return fmt.Errorf("resolve preferences: %w", err)
	}
	if !allowed {
		return nil
	}

	title, message := statusCopy(data)
	return d.notify(ctx, data.UserID, notificationType, title, message, data.TransactionID, data.ReferenceNumber)
}

// notify persists one notification row and fans the push out to the
// recipient's active devices. Push delivery is single-attempt: failures are
// recorded on the row and never returned, so the event is not redelivered.
func (d *Dispatcher) notify(ctx context.Context, recipientID uuid.UUID, notificationType enums.NotificationType, title, message string, transactionID uuid.UUID, reference string) error {
	notification := &models.Notification{
		RecipientUserID:      recipientID,
		Type:                 notificationType,
		Title:                title,
		Message:              message,
		TransactionID:        &transactionID,
		TransactionReference: &reference,
		Status:               enums.NotificationStatusPending,
	}
	if err := d.repo.Create(ctx, notification); err != nil {
		return fmt.Errorf("persist notification: %w", err)
	}

	devices, err := d.devices.ListActiveByUser(ctx, recipientID)
	if err != nil {
		return fmt.Errorf("list devices: %w", err)
	}
	if len(devices) == 0 {
		// In-app only. The row stays pending until read.
		return nil
	}

	delivered := 0
	for _, device := range devices {
		err := d.sender.Send(ctx, fcm.Message{
			Token: device.Token,
			Title: title,
			Body:  message,
			Data: map[string]string{
				"notification_id": notification.ID.String(),
				"transaction_id":  transactionID.String(),
				"reference":       reference,
				"type":            string(notificationType),
			},
		})
		if err == nil {
			delivered++
			d.metrics.IncDelivered(string(notificationType))
			_ = d.devices.TouchLastUsed(ctx, device.ID, time.Now())
			continue
		}

		d.metrics.IncFailed(string(notificationType))
		logCtx := d.logg.WithFields(ctx, map[string]any{
			"device_id":       device.ID.String(),
			"notification_id": notification.ID.String(),
		})
		// Unreachable endpoint. Deactivate instead of retrying.
		if deactivateErr := d.devices.DeactivateByToken(ctx, device.Token); deactivateErr != nil {
			d.logg.Error(logCtx, "failed to deactivate device", deactivateErr)
		}
		d.logg.Error(logCtx, "push delivery failed, device deactivated", err)
	}

	now := time.Now()
	if delivered > 0 {
		if err := d.repo.MarkSent(ctx, notification.ID, now); err != nil {
			return fmt.Errorf("mark notification sent: %w", err)
		}
		return nil
	}
	if err := d.repo.MarkFailed(ctx, notification.ID); err != nil {
		return fmt.Errorf("mark notification failed: %w", err)
	}
	return nil
}

func statusCopy(data outbox.TransactionStatusChangedData) (string, string) {
	switch data.NewStatus {
	case enums.TransactionStatusProcessing:
		return "Transaction in review",
			fmt.Sprintf("Transaction %s is now being processed.", data.ReferenceNumber)
	case enums.TransactionStatusCompleted:
		return "Transaction completed",
			fmt.Sprintf("Transaction %s has been completed.", data.ReferenceNumber)
	case enums.TransactionStatusFailed:
		reason := ""
		if data.FailureReason != nil && *data.FailureReason != "" {
			reason = fmt.Sprintf(" Reason: %s", *data.FailureReason)
		}
		return "Transaction failed",
			fmt.Sprintf("Transaction %s failed.%s", data.ReferenceNumber, reason)
	case enums.TransactionStatusCancelled:
		return "Transaction cancelled",
			fmt.Sprintf("Transaction %s was cancelled.", data.ReferenceNumber)
	default:
		return "Transaction updated",
			fmt.Sprintf("Transaction %s changed to %s.", data.ReferenceNumber, data.NewStatus)
	}
}
