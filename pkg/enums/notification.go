package enums

import "fmt"

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypeTransactionCreated    NotificationType = "transaction_created"
	NotificationTypeTransactionProcessing NotificationType = "transaction_processing"
	NotificationTypeTransactionCompleted  NotificationType = "transaction_completed"
	NotificationTypeTransactionFailed     NotificationType = "transaction_failed"
	NotificationTypeTransactionCancelled  NotificationType = "transaction_cancelled"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeTransactionCreated,
	NotificationTypeTransactionProcessing,
	NotificationTypeTransactionCompleted,
	NotificationTypeTransactionFailed,
	NotificationTypeTransactionCancelled,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}

// NotificationTypeForStatus maps a committed transaction status onto the
// notification type announcing it.
func NotificationTypeForStatus(status TransactionStatus) (NotificationType, bool) {
	switch status {
	case TransactionStatusProcessing:
		return NotificationTypeTransactionProcessing, true
	case TransactionStatusCompleted:
		return NotificationTypeTransactionCompleted, true
	case TransactionStatusFailed:
		return NotificationTypeTransactionFailed, true
	case TransactionStatusCancelled:
		return NotificationTypeTransactionCancelled, true
	}
	return "", false
}

// NotificationStatus maps to the notification_status enum in Postgres.
type NotificationStatus string

const (
	NotificationStatusPending   NotificationStatus = "pending"
	NotificationStatusSent      NotificationStatus = "sent"
	NotificationStatusDelivered NotificationStatus = "delivered"
	NotificationStatusFailed    NotificationStatus = "failed"
	NotificationStatusRead      NotificationStatus = "read"
)

var validNotificationStatuses = []NotificationStatus{
	NotificationStatusPending,
	NotificationStatusSent,
	NotificationStatusDelivered,
	NotificationStatusFailed,
	NotificationStatusRead,
}

// IsValid reports whether the status matches the canonical enum.
func (s NotificationStatus) IsValid() bool {
	for _, candidate := range validNotificationStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}
