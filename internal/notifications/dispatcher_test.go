package notifications

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/payrelay/payrelay-backend/pkg/db/models"
	"github.com/payrelay/payrelay-backend/pkg/enums"
	"github.com/payrelay/payrelay-backend/pkg/fcm"
	"github.com/payrelay/payrelay-backend/pkg/logger"
	"github.com/payrelay/payrelay-backend/pkg/outbox"
	"github.com/payrelay/payrelay-backend/pkg/pagination"
)

type fakeNotifRepo struct {
	mu      sync.Mutex
	rows    map[uuid.UUID]*models.Notification
	created []uuid.UUID
}

func newFakeNotifRepo() *fakeNotifRepo {
	return &fakeNotifRepo{rows: map[uuid.UUID]*models.Notification{}}
}

func (f *fakeNotifRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeNotifRepo) Create(ctx context.Context, notification *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if notification.ID == uuid.Nil {
		notification.ID = uuid.New()
	}
	notification.CreatedAt = time.Now()
	clone := *notification
	f.rows[notification.ID] = &clone
	f.created = append(f.created, notification.ID)
	return nil
}

func (f *fakeNotifRepo) List(ctx context.Context, params listNotificationsParams) ([]models.Notification, *pagination.Cursor, error) {
	return nil, nil, nil
}

func (f *fakeNotifRepo) CountUnread(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	return 0, nil
}

func (f *fakeNotifRepo) MarkRead(ctx context.Context, recipientID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error) {
	return notificationMarkResult{}, nil
}

func (f *fakeNotifRepo) MarkAllRead(ctx context.Context, recipientID uuid.UUID, now time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeNotifRepo) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row, ok := f.rows[id]; ok && row.Status == enums.NotificationStatusPending {
		row.Status = enums.NotificationStatusSent
		row.SentAt = &at
	}
	return nil
}

func (f *fakeNotifRepo) MarkFailed(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row, ok := f.rows[id]; ok && row.Status == enums.NotificationStatusPending {
		row.Status = enums.NotificationStatusFailed
	}
	return nil
}

func (f *fakeNotifRepo) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeNotifRepo) byRecipient(recipientID uuid.UUID) []models.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Notification{}
	for _, row := range f.rows {
		if row.RecipientUserID == recipientID {
			out = append(out, *row)
		}
	}
	return out
}

type fakeAdminDirectory struct {
	admins []models.User
}

func (f *fakeAdminDirectory) ListActiveAdmins(ctx context.Context) ([]models.User, error) {
	return f.admins, nil
}

type fakePrefs struct {
	optedOutAdmins map[uuid.UUID]bool
	pushDisabled   map[uuid.UUID]bool
}

func (f *fakePrefs) GetForUser(ctx context.Context, userID uuid.UUID) (*models.NotificationPreference, error) {
	return &models.NotificationPreference{
		UserID:                  userID,
		PushTransactionCreated:  true,
		PushTransactionUpdated:  !f.pushDisabled[userID],
		PushTransactionComplete: !f.pushDisabled[userID],
		AdminNewTransactions:    !f.optedOutAdmins[userID],
	}, nil
}

func (f *fakePrefs) AllowsStatusPush(ctx context.Context, userID uuid.UUID, status enums.TransactionStatus) (bool, error) {
	return !f.pushDisabled[userID], nil
}

type fakeDevices struct {
	mu          sync.Mutex
	byUser      map[uuid.UUID][]models.FCMDevice
	deactivated []string
}

func (f *fakeDevices) ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]models.FCMDevice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byUser[userID], nil
}

func (f *fakeDevices) DeactivateByToken(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deactivated = append(f.deactivated, token)
	return nil
}

func (f *fakeDevices) TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error {
	return nil
}

type fakeSender struct {
	mu       sync.Mutex
	errByTok map[string]error
	sent     []string
}

func (f *fakeSender) Send(ctx context.Context, msg fcm.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errByTok[msg.Token]; ok {
		return err
	}
	f.sent = append(f.sent, msg.Token)
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func device(userID uuid.UUID, token string) models.FCMDevice {
	return models.FCMDevice{
		ID:         uuid.New(),
		UserID:     userID,
		Token:      token,
		DeviceType: enums.DeviceTypeAndroid,
		IsActive:   true,
	}
}

func newTestDispatcher(t *testing.T, admins *fakeAdminDirectory, prefs *fakePrefs, devices *fakeDevices, sender *fakeSender) (*Dispatcher, *fakeNotifRepo) {
	t.Helper()
	repo := newFakeNotifRepo()
	dispatcher, err := NewDispatcher(repo, admins, prefs, devices, sender, nil, testLogger())
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	return dispatcher, repo
}

func createdData() outbox.TransactionCreatedData {
	return outbox.TransactionCreatedData{
		TransactionID:   uuid.New(),
		ReferenceNumber: "TXN-11AA22BB",
		UserID:          uuid.New(),
		Amount:          decimal.NewFromInt(500),
		Currency:        enums.CurrencyUSD,
		Description:     "supplier payment",
	}
}

func TestHandleCreatedSkipsOptedOutAdmins(t *testing.T) {
	optedIn := models.User{ID: uuid.New(), SystemRole: enums.SystemRoleAdmin, IsActive: true}
	optedOut := models.User{ID: uuid.New(), SystemRole: enums.SystemRoleAdmin, IsActive: true}

	admins := &fakeAdminDirectory{admins: []models.User{optedIn, optedOut}}
	prefs := &fakePrefs{optedOutAdmins: map[uuid.UUID]bool{optedOut.ID: true}}
	devices := &fakeDevices{byUser: map[uuid.UUID][]models.FCMDevice{}}
	sender := &fakeSender{}

	dispatcher, repo := newTestDispatcher(t, admins, prefs, devices, sender)

	if err := dispatcher.HandleCreated(context.Background(), createdData()); err != nil {
		t.Fatalf("HandleCreated: %v", err)
	}

	if got := repo.byRecipient(optedIn.ID); len(got) != 1 {
		t.Fatalf("expected 1 notification for opted-in admin, got %d", len(got))
	}
	if got := repo.byRecipient(optedOut.ID); len(got) != 0 {
		t.Fatalf("expected no notification for opted-out admin, got %d", len(got))
	}
}

func TestHandleStatusChangedRespectsOwnerPreference(t *testing.T) {
	owner := uuid.New()
	admins := &fakeAdminDirectory{}
	prefs := &fakePrefs{pushDisabled: map[uuid.UUID]bool{owner: true}}
	devices := &fakeDevices{byUser: map[uuid.UUID][]models.FCMDevice{}}
	sender := &fakeSender{}

	dispatcher, repo := newTestDispatcher(t, admins, prefs, devices, sender)

	err := dispatcher.HandleStatusChanged(context.Background(), outbox.TransactionStatusChangedData{
		TransactionID:   uuid.New(),
		ReferenceNumber: "TXN-33CC44DD",
		UserID:          owner,
		OldStatus:       enums.TransactionStatusPending,
		NewStatus:       enums.TransactionStatusProcessing,
	})
	if err != nil {
		t.Fatalf("HandleStatusChanged: %v", err)
	}
	if got := repo.byRecipient(owner); len(got) != 0 {
		t.Fatalf("expected no notification for opted-out owner, got %d", len(got))
	}
}

func TestNotifyMarksSentAndDeactivatesDeadTokens(t *testing.T) {
	owner := uuid.New()
	good := device(owner, "tok-good")
	dead := device(owner, "tok-dead")

	admins := &fakeAdminDirectory{}
	prefs := &fakePrefs{}
	devices := &fakeDevices{byUser: map[uuid.UUID][]models.FCMDevice{owner: {good, dead}}}
	sender := &fakeSender{errByTok: map[string]error{"tok-dead": fcm.ErrTokenNotRegistered}}

	dispatcher, repo := newTestDispatcher(t, admins, prefs, devices, sender)

	err := dispatcher.HandleStatusChanged(context.Background(), outbox.TransactionStatusChangedData{
		TransactionID:   uuid.New(),
		ReferenceNumber: "TXN-55EE66FF",
		UserID:          owner,
		OldStatus:       enums.TransactionStatusProcessing,
		NewStatus:       enums.TransactionStatusCompleted,
	})
	if err != nil {
		t.Fatalf("HandleStatusChanged: %v", err)
	}

	rows := repo.byRecipient(owner)
	if len(rows) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(rows))
	}
	if rows[0].Status != enums.NotificationStatusSent {
		t.Fatalf("expected sent status, got %s", rows[0].Status)
	}
	if len(devices.deactivated) != 1 || devices.deactivated[0] != "tok-dead" {
		t.Fatalf("expected dead token to be deactivated, got %v", devices.deactivated)
	}
}

func TestNotifyMarksFailedWhenAllPushesFail(t *testing.T) {
	owner := uuid.New()
	broken := device(owner, "tok-broken")

	admins := &fakeAdminDirectory{}
	prefs := &fakePrefs{}
	devices := &fakeDevices{byUser: map[uuid.UUID][]models.FCMDevice{owner: {broken}}}
	sender := &fakeSender{errByTok: map[string]error{"tok-broken": errors.New("upstream 500")}}

	dispatcher, repo := newTestDispatcher(t, admins, prefs, devices, sender)

	err := dispatcher.HandleStatusChanged(context.Background(), outbox.TransactionStatusChangedData{
		TransactionID:   uuid.New(),
		ReferenceNumber: "TXN-77AA88BB",
		UserID:          owner,
		OldStatus:       enums.TransactionStatusProcessing,
		NewStatus:       enums.TransactionStatusFailed,
	})
	if err != nil {
		t.Fatalf("delivery failure must not bubble up: %v", err)
	}

	rows := repo.byRecipient(owner)
	if len(rows) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(rows))
	}
	if rows[0].Status != enums.NotificationStatusFailed {
		t.Fatalf("expected failed status, got %s", rows[0].Status)
	}
	if len(devices.deactivated) != 1 || devices.deactivated[0] != "tok-broken" {
		t.Fatalf("expected broken device deactivated, got %v", devices.deactivated)
	}
}

func TestNotifyMarksFailedWhenAllTokensUnregistered(t *testing.T) {
	owner := uuid.New()
	gone1 := device(owner, "tok-gone-1")
	gone2 := device(owner, "tok-gone-2")

	admins := &fakeAdminDirectory{}
	prefs := &fakePrefs{}
	devices := &fakeDevices{byUser: map[uuid.UUID][]models.FCMDevice{owner: {gone1, gone2}}}
	sender := &fakeSender{errByTok: map[string]error{
		"tok-gone-1": fcm.ErrTokenNotRegistered,
		"tok-gone-2": fcm.ErrTokenNotRegistered,
	}}

	dispatcher, repo := newTestDispatcher(t, admins, prefs, devices, sender)

	err := dispatcher.HandleStatusChanged(context.Background(), outbox.TransactionStatusChangedData{
		TransactionID:   uuid.New(),
		ReferenceNumber: "TXN-12EF34AB",
		UserID:          owner,
		OldStatus:       enums.TransactionStatusProcessing,
		NewStatus:       enums.TransactionStatusCompleted,
	})
	if err != nil {
		t.Fatalf("HandleStatusChanged: %v", err)
	}

	rows := repo.byRecipient(owner)
	if len(rows) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(rows))
	}
	if rows[0].Status != enums.NotificationStatusFailed {
		t.Fatalf("expected failed when no device accepted the push, got %s", rows[0].Status)
	}
	if len(devices.deactivated) != 2 {
		t.Fatalf("expected both dead tokens deactivated, got %v", devices.deactivated)
	}
}

func TestHandleCreatedPushFailureIsRecordedNotReturned(t *testing.T) {
	admin := models.User{ID: uuid.New(), SystemRole: enums.SystemRoleAdmin, IsActive: true}
	flaky := device(admin.ID, "tok-flaky")

	admins := &fakeAdminDirectory{admins: []models.User{admin}}
	prefs := &fakePrefs{}
	devices := &fakeDevices{byUser: map[uuid.UUID][]models.FCMDevice{admin.ID: {flaky}}}
	sender := &fakeSender{errByTok: map[string]error{"tok-flaky": errors.New("upstream 503")}}

	dispatcher, repo := newTestDispatcher(t, admins, prefs, devices, sender)

	// A returned error would nack the message and redeliver the event,
	// creating a second row for the same admin and transaction.
	if err := dispatcher.HandleCreated(context.Background(), createdData()); err != nil {
		t.Fatalf("delivery failure must not bubble up: %v", err)
	}

	rows := repo.byRecipient(admin.ID)
	if len(rows) != 1 {
		t.Fatalf("expected exactly 1 notification, got %d", len(rows))
	}
	if rows[0].Status != enums.NotificationStatusFailed {
		t.Fatalf("expected failed status, got %s", rows[0].Status)
	}
	if len(devices.deactivated) != 1 || devices.deactivated[0] != "tok-flaky" {
		t.Fatalf("expected failing device deactivated, got %v", devices.deactivated)
	}
}

func TestNotifyWithoutDevicesStaysPending(t *testing.T) {
	owner := uuid.New()
	admins := &fakeAdminDirectory{}
	prefs := &fakePrefs{}
	devices := &fakeDevices{byUser: map[uuid.UUID][]models.FCMDevice{}}
	sender := &fakeSender{}

	dispatcher, repo := newTestDispatcher(t, admins, prefs, devices, sender)

	err := dispatcher.HandleStatusChanged(context.Background(), outbox.TransactionStatusChangedData{
		TransactionID:   uuid.New(),
		ReferenceNumber: "TXN-99CC00DD",
		UserID:          owner,
		OldStatus:       enums.TransactionStatusPending,
		NewStatus:       enums.TransactionStatusCancelled,
	})
	if err != nil {
		t.Fatalf("HandleStatusChanged: %v", err)
	}

	rows := repo.byRecipient(owner)
	if len(rows) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(rows))
	}
	if rows[0].Status != enums.NotificationStatusPending {
		t.Fatalf("expected pending status for in-app only, got %s", rows[0].Status)
	}
}
